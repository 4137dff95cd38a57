package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/cipher-ai-go/internal/api"
	"github.com/irfndi/cipher-ai-go/internal/config"
	"github.com/irfndi/cipher-ai-go/internal/telemetry"
)

func TestLoadEnv(t *testing.T) {
	assert.NoError(t, loadEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CIPHER_TEST_VALUE=loaded\n"), 0o600))
	t.Setenv("CIPHER_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("CIPHER_TEST_VALUE"))

	require.NoError(t, loadEnv(path))
	assert.Equal(t, "loaded", os.Getenv("CIPHER_TEST_VALUE"))
}

func TestNewLogger(t *testing.T) {
	logger := newLogger(&config.Config{LogLevel: "debug", LogFormat: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = newLogger(&config.Config{LogLevel: "warn", Environment: "development"})
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger = newLogger(&config.Config{LogLevel: "info", Environment: "production"})
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestAttachLogExport_Disabled(t *testing.T) {
	cases := []config.TelemetryConfig{
		{Enabled: false, ExportLogs: true, Exporter: telemetry.ExporterOTLP},
		{Enabled: true, ExportLogs: false, Exporter: telemetry.ExporterOTLP},
		{Enabled: true, ExportLogs: true, Exporter: telemetry.ExporterStdout},
	}
	for _, tc := range cases {
		logger := logrus.New()
		shutdown, err := attachLogExport(context.Background(), &config.Config{Telemetry: tc}, logger)
		require.NoError(t, err)
		require.NotNil(t, shutdown)
		assert.NoError(t, shutdown(context.Background()))
		assert.Empty(t, logger.Hooks)
	}
}

func TestAttachLogExport_OTLP(t *testing.T) {
	logger := logrus.New()
	cfg := &config.Config{
		Environment: "test",
		Telemetry: config.TelemetryConfig{
			Enabled:     true,
			ExportLogs:  true,
			Exporter:    telemetry.ExporterOTLP,
			Endpoint:    "127.0.0.1:1",
			ServiceName: "cipher-ai",
		},
	}

	shutdown, err := attachLogExport(context.Background(), cfg, logger)
	require.NoError(t, err)
	assert.NotEmpty(t, logger.Hooks[logrus.InfoLevel])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestNewRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := newRouter(&config.Config{Environment: "test"}, api.Dependencies{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
