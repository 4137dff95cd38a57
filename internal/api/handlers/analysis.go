package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cipher-ai-go/internal/database"
	"github.com/irfndi/cipher-ai-go/internal/middleware"
	"github.com/irfndi/cipher-ai-go/internal/models"
	"github.com/irfndi/cipher-ai-go/internal/services"
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Analyzer runs pipelines and builds reports
type Analyzer interface {
	AnalyzeTimeframe(ctx context.Context, symbol, timeframe string) (*models.TimeframeAnalysis, error)
	AnalyzeCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) (*models.TimeframeAnalysis, error)
	BuildReport(ctx context.Context, symbol string, timeframes []string) (*models.SignalReport, error)
}

// ReportReader reads stored reports
type ReportReader interface {
	GetLatestReport(ctx context.Context, symbol string) (*models.SignalReport, error)
	ListReports(ctx context.Context, symbol string, limit int) ([]database.ReportSummary, error)
}

// ReportCache reads the latest published report of a symbol
type ReportCache interface {
	Get(ctx context.Context, symbol string) (*models.SignalReport, bool)
}

// ScanResults exposes the latest scanner pass
type ScanResults interface {
	LastScan() (*services.ScanSummary, bool)
}

type AnalysisHandler struct {
	analyzer   Analyzer
	reports    ReportReader
	cache      ReportCache
	scans      ScanResults
	timeframes []string
	logger     *logrus.Logger
}

type SignalResponse struct {
	Source string               `json:"source"`
	Report *models.SignalReport `json:"report"`
}

type HistoryResponse struct {
	Symbol  string                   `json:"symbol"`
	Reports []database.ReportSummary `json:"reports"`
	Count   int                      `json:"count"`
}

type AnalyzeRequest struct {
	Symbol    string          `json:"symbol" binding:"required"`
	Timeframe string          `json:"timeframe" binding:"required"`
	Candles   []models.Candle `json:"candles" binding:"omitempty,dive"`
	Detail    bool            `json:"detail"`
}

type AnalyzeResponse struct {
	Symbol      string                    `json:"symbol"`
	Timeframe   string                    `json:"timeframe"`
	Candles     int                       `json:"candles"`
	Latest      *models.IndicatorState    `json:"latest,omitempty"`
	Divergences []models.Divergence       `json:"divergences"`
	Analysis    *models.TimeframeAnalysis `json:"analysis,omitempty"`
	Timestamp   time.Time                 `json:"timestamp"`
}

// NewAnalysisHandler builds the handler. reports, cache and scans may be nil; timeframes are
// used for live reports when the request names none.
func NewAnalysisHandler(analyzer Analyzer, reports ReportReader, cache ReportCache, scans ScanResults, timeframes []string, logger *logrus.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer:   analyzer,
		reports:    reports,
		cache:      cache,
		scans:      scans,
		timeframes: timeframes,
		logger:     logger,
	}
}

// SymbolFromParam turns a path-safe symbol such as BTC-USDT into BTC/USDT.
func SymbolFromParam(param string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(param), "-", "/"))
}

// GetSignal returns the latest report of a symbol from the cache, then the database, then a
// live analysis. refresh=true skips straight to the live analysis.
func (h *AnalysisHandler) GetSignal(c *gin.Context) {
	symbol := SymbolFromParam(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol parameter is required"})
		return
	}
	middleware.AddSpanAttribute(c, "symbol", symbol)
	ctx := c.Request.Context()

	if c.Query("refresh") != "true" {
		if h.cache != nil {
			if report, ok := h.cache.Get(ctx, symbol); ok {
				c.JSON(http.StatusOK, SignalResponse{Source: "cache", Report: report})
				return
			}
		}
		if h.reports != nil {
			report, err := h.reports.GetLatestReport(ctx, symbol)
			if err == nil {
				c.JSON(http.StatusOK, SignalResponse{Source: "database", Report: report})
				return
			}
			if !errors.Is(err, utils.ErrNotFound) {
				h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to read stored report")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read stored report"})
				return
			}
		}
	}

	if h.analyzer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report for " + symbol})
		return
	}

	timeframes := h.timeframes
	if raw := c.Query("timeframes"); raw != "" {
		timeframes = splitList(raw)
	}
	if len(timeframes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one timeframe is required"})
		return
	}

	report, err := h.analyzer.BuildReport(ctx, symbol, timeframes)
	if err != nil {
		h.respondError(c, err, "Failed to build signal report")
		return
	}
	c.JSON(http.StatusOK, SignalResponse{Source: "live", Report: report})
}

// GetSignalHistory lists stored report summaries, newest first.
func (h *AnalysisHandler) GetSignalHistory(c *gin.Context) {
	symbol := SymbolFromParam(c.Param("symbol"))
	if h.reports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report storage is not configured"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	summaries, err := h.reports.ListReports(c.Request.Context(), symbol, limit)
	if err != nil {
		h.respondError(c, err, "Failed to list reports")
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{
		Symbol:  symbol,
		Reports: summaries,
		Count:   len(summaries),
	})
}

// Analyze runs one pipeline over the posted candles, or over the stored candles when the
// request carries none.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if h.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis is not configured"})
		return
	}
	if err := validateCandles(req.Candles); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Symbol = SymbolFromParam(req.Symbol)

	middleware.AddSpanAttribute(c, "symbol", req.Symbol)
	middleware.AddSpanAttribute(c, "timeframe", req.Timeframe)
	middleware.AddSpanAttribute(c, "posted_candles", len(req.Candles))

	ctx := c.Request.Context()
	var (
		analysis *models.TimeframeAnalysis
		err      error
	)
	if len(req.Candles) > 0 {
		analysis, err = h.analyzer.AnalyzeCandles(ctx, req.Symbol, req.Timeframe, req.Candles)
	} else {
		analysis, err = h.analyzer.AnalyzeTimeframe(ctx, req.Symbol, req.Timeframe)
	}
	if err != nil {
		h.respondError(c, err, "Failed to analyze candles")
		return
	}

	resp := AnalyzeResponse{
		Symbol:      analysis.Symbol,
		Timeframe:   analysis.Timeframe,
		Candles:     analysis.Candles,
		Divergences: analysis.Divergences,
		Timestamp:   time.Now(),
	}
	if latest, ok := analysis.Latest(); ok {
		resp.Latest = &latest
	}
	if req.Detail {
		resp.Analysis = analysis
	}
	c.JSON(http.StatusOK, resp)
}

// GetLatestScan returns the summary of the most recent scanner pass.
func (h *AnalysisHandler) GetLatestScan(c *gin.Context) {
	if h.scans == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner is not configured"})
		return
	}
	summary, ok := h.scans.LastScan()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no scan has completed yet"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *AnalysisHandler) respondError(c *gin.Context, err error, message string) {
	middleware.RecordError(c, err, message)
	switch {
	case utils.IsConfigurationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request cancelled"})
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func validateCandles(candles []models.Candle) error {
	for i := 1; i < len(candles); i++ {
		if !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("candle timestamps must be strictly increasing (index %d)", i)
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
