package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cipher-ai-go/internal/api/handlers"
	"github.com/irfndi/cipher-ai-go/internal/middleware"
	"github.com/irfndi/cipher-ai-go/internal/services"
	"github.com/irfndi/cipher-ai-go/internal/telemetry"
)

// Scanner is the read side of the market scanner
type Scanner interface {
	LastScan() (*services.ScanSummary, bool)
	LastScanAt() (time.Time, bool)
}

// Dependencies are the collaborators of the HTTP API. Everything except Logger may be nil.
type Dependencies struct {
	DB             handlers.HealthChecker
	Redis          handlers.HealthChecker
	Analyzer       handlers.Analyzer
	Reports        handlers.ReportReader
	Cache          handlers.ReportCache
	Scanner        Scanner
	Timeframes     []string
	AllowedOrigins []string
	Logger         *logrus.Logger
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	router.Use(
		middleware.Tracing(telemetry.ServiceName),
		middleware.RequestLogger(deps.Logger),
		middleware.CORS(deps.AllowedOrigins),
	)

	var (
		scans  handlers.ScanResults
		status handlers.ScanStatus
	)
	if deps.Scanner != nil {
		scans = deps.Scanner
		status = deps.Scanner
	}

	health := handlers.NewHealthHandler(deps.DB, deps.Redis, status)
	router.GET("/health", gin.WrapF(health.HealthCheck))
	router.HEAD("/health", gin.WrapF(health.HealthCheck))
	router.GET("/ready", gin.WrapF(health.ReadinessCheck))
	router.GET("/live", gin.WrapF(health.LivenessCheck))

	analysis := handlers.NewAnalysisHandler(deps.Analyzer, deps.Reports, deps.Cache, scans, deps.Timeframes, deps.Logger)

	v1 := router.Group("/api/v1")
	{
		signals := v1.Group("/signals")
		{
			signals.GET("/:symbol", analysis.GetSignal)
			signals.GET("/:symbol/history", analysis.GetSignalHistory)
		}

		v1.POST("/analyze", analysis.Analyze)
		v1.GET("/scan/latest", analysis.GetLatestScan)
	}
}
