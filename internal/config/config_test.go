package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/cipher-ai-go/internal/engine"
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

func loadFresh(t *testing.T) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadFresh(t)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeoutDuration())
	assert.Equal(t, "cipher_ai", cfg.Database.DBName)
	assert.Equal(t, []string{"15m", "1h", "4h"}, cfg.Scanner.Timeframes)
	assert.Equal(t, 15*time.Minute, cfg.Scanner.CacheTTLDuration())
	assert.Equal(t, 2*time.Minute, cfg.Scanner.TimeoutDuration())
	assert.Equal(t, 30*24*time.Hour, cfg.Scanner.ReportRetentionDuration())
	assert.False(t, cfg.Telemetry.ExportLogs)
	assert.Equal(t, engine.DefaultConfig(), cfg.Engine)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENVIRONMENT", "PRODUCTION")
	t.Setenv("SCANNER_WORKERS", "4")
	t.Setenv("ENGINE_INDICATORS_RSI_PERIOD", "21")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/cipher")

	cfg, err := loadFresh(t)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 4, cfg.Scanner.Workers)
	assert.Equal(t, 21, cfg.Engine.Indicators.RSI.Period)
	assert.Equal(t, "postgres://u:p@db/cipher", cfg.Database.DSN())
}

func TestLoad_InconsistentWeightsFailFast(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENGINE_SCORING_POINTS_WAVETREND_CROSS", "40")

	_, err := loadFresh(t)
	require.Error(t, err)
	assert.True(t, utils.IsConfigurationError(err))
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9090
scanner:
  schedule: "0 * * * *"
  symbols: ["SOL/USDT"]
engine:
  divergence:
    wavetrend:
      zone_filter: false
      max_lookback: 60
  scoring:
    composites:
      - name: stoch_flip
        conditions: [stoch_cross_up, stoch_oversold]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Chdir(dir)

	cfg, err := loadFresh(t)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"SOL/USDT"}, cfg.Scanner.Symbols)
	assert.False(t, cfg.Engine.Divergence.WaveTrend.ZoneFilter)
	assert.Equal(t, 60, cfg.Engine.Divergence.WaveTrend.MaxLookback)
	assert.Equal(t, -65.0, cfg.Engine.Divergence.WaveTrend.Oversold)
	require.Len(t, cfg.Engine.Scoring.Composites, 1)
	assert.Equal(t, "stoch_flip", cfg.Engine.Scoring.Composites[0].Name)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:    ServerConfig{Port: 8080, ShutdownTimeout: "10s"},
			Telemetry: TelemetryConfig{Exporter: "stdout", SampleRatio: 1},
			Scanner: ScannerConfig{
				Schedule:    "*/5 * * * *",
				Timeframes:  []string{"1h"},
				CandleLimit: 200,
				CacheTTL:    "5m",
				Timeout:     "1m",

				ReportRetention: "24h",
			},
			Engine: engine.DefaultConfig(),
		}
	}
	base := valid()
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"origin scheme", func(c *Config) { c.Server.AllowedOrigins = []string{"localhost:3000"} }},
		{"duration", func(c *Config) { c.Scanner.CacheTTL = "soon" }},
		{"retention", func(c *Config) { c.Scanner.ReportRetention = "-1h" }},
		{"exporter", func(c *Config) { c.Telemetry.Exporter = "zipkin" }},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }},
		{"schedule", func(c *Config) { c.Scanner.Schedule = "every minute" }},
		{"timeframes", func(c *Config) { c.Scanner.Timeframes = nil }},
		{"candle limit", func(c *Config) { c.Scanner.CandleLimit = 0 }},
		{"workers", func(c *Config) { c.Scanner.Workers = -1 }},
		{"engine", func(c *Config) { c.Engine.Indicators.WaveTrend.ChannelLen = 0 }},
		{"mfi divergence", func(c *Config) { c.Engine.Divergence.MFI.Oversold = 95 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, utils.IsConfigurationError(err))
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "x", SSLMode: "require", MaxConns: 4}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=x sslmode=require pool_max_conns=4", cfg.DSN())
}
