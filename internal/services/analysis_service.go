package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/irfndi/cipher-ai-go/internal/cache"
	"github.com/irfndi/cipher-ai-go/internal/confluence"
	"github.com/irfndi/cipher-ai-go/internal/engine"
	"github.com/irfndi/cipher-ai-go/internal/models"
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

// CandleSource supplies the ordered candles of one (symbol, timeframe)
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}

// AnalysisConfig bounds the candle window and the worker pool
type AnalysisConfig struct {
	CandleLimit int
	Workers     int
}

// AnalysisService runs pipelines on a bounded worker pool and keeps the latest run of every
// pipeline so later passes only process new candles.
type AnalysisService struct {
	engine  *engine.Engine
	candles CandleSource
	runs    *cache.RunCache
	cfg     AnalysisConfig
	logger  *logrus.Logger
}

func NewAnalysisService(eng *engine.Engine, candles CandleSource, runs *cache.RunCache, cfg AnalysisConfig, logger *logrus.Logger) (*AnalysisService, error) {
	if err := utils.RequirePositive("scanner.candle_limit", cfg.CandleLimit); err != nil {
		return nil, err
	}
	cfg.Workers = WorkerCount(cfg.Workers)
	if runs == nil {
		runs = cache.NewRunCache()
	}
	return &AnalysisService{
		engine:  eng,
		candles: candles,
		runs:    runs,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Workers returns the worker pool size.
func (s *AnalysisService) Workers() int {
	return s.cfg.Workers
}

// Engine returns the pipeline engine.
func (s *AnalysisService) Engine() *engine.Engine {
	return s.engine
}

// AnalyzeTimeframe loads the candle window and runs the pipeline, extending the cached run
// when the window still shares its prefix.
func (s *AnalysisService) AnalyzeTimeframe(ctx context.Context, symbol, timeframe string) (*models.TimeframeAnalysis, error) {
	candles, err := s.candles.GetCandles(ctx, symbol, timeframe, s.cfg.CandleLimit)
	if err != nil {
		return nil, err
	}

	var (
		analysis *models.TimeframeAnalysis
		run      *engine.Run
	)
	if prev, ok := s.runs.Get(symbol, timeframe); ok {
		analysis, run, err = s.engine.Extend(ctx, prev, candles)
	} else {
		analysis, run, err = s.engine.Analyze(ctx, symbol, timeframe, candles)
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline %s %s: %w", symbol, timeframe, err)
	}
	s.runs.Put(run)
	return analysis, nil
}

// AnalyzeCandles runs a one-off pipeline over caller-supplied candles. Nothing is cached.
func (s *AnalysisService) AnalyzeCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) (*models.TimeframeAnalysis, error) {
	analysis, _, err := s.engine.Analyze(ctx, symbol, timeframe, candles)
	return analysis, err
}

type pipelineKey struct {
	symbol    string
	timeframe string
}

type pipelineResult struct {
	analysis *models.TimeframeAnalysis
	err      error
}

// analyzeAll runs every (symbol, timeframe) pipeline on the worker pool. A failing pipeline
// does not stop the others.
func (s *AnalysisService) analyzeAll(ctx context.Context, symbols, timeframes []string) map[pipelineKey]pipelineResult {
	var (
		mu      sync.Mutex
		results = make(map[pipelineKey]pipelineResult, len(symbols)*len(timeframes))
	)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)
	for _, symbol := range symbols {
		for _, tf := range timeframes {
			key := pipelineKey{symbol: symbol, timeframe: tf}
			g.Go(func() error {
				a, err := s.AnalyzeTimeframe(ctx, key.symbol, key.timeframe)
				mu.Lock()
				results[key] = pipelineResult{analysis: a, err: err}
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()
	return results
}

// BuildReport analyses symbol on every timeframe and aggregates the latest states. Any
// failing timeframe fails the report.
func (s *AnalysisService) BuildReport(ctx context.Context, symbol string, timeframes []string) (*models.SignalReport, error) {
	results := s.analyzeAll(ctx, []string{symbol}, timeframes)
	analyses := make(map[string]*models.TimeframeAnalysis, len(timeframes))
	for _, tf := range timeframes {
		r := results[pipelineKey{symbol: symbol, timeframe: tf}]
		if r.err != nil {
			return nil, r.err
		}
		analyses[tf] = r.analysis
	}
	report := s.report(symbol, analyses)
	return &report, nil
}

// ScanError records one failed pipeline of a scan
type ScanError struct {
	Symbol    string
	Timeframe string
	Err       error
}

func (e ScanError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Symbol, e.Timeframe, e.Err)
}

func (e ScanError) Unwrap() error {
	return e.Err
}

// Scan builds a report for every symbol whose pipelines all succeed and returns them ranked.
// Failed pipelines are returned in symbol then timeframe order.
func (s *AnalysisService) Scan(ctx context.Context, symbols, timeframes []string) ([]models.SignalReport, []ScanError) {
	start := time.Now()
	results := s.analyzeAll(ctx, symbols, timeframes)

	var (
		reports []models.SignalReport
		failed  []ScanError
	)
	for _, symbol := range symbols {
		analyses := make(map[string]*models.TimeframeAnalysis, len(timeframes))
		ok := true
		for _, tf := range timeframes {
			r := results[pipelineKey{symbol: symbol, timeframe: tf}]
			if r.err != nil {
				failed = append(failed, ScanError{Symbol: symbol, Timeframe: tf, Err: r.err})
				ok = false
				continue
			}
			analyses[tf] = r.analysis
		}
		if ok {
			reports = append(reports, s.report(symbol, analyses))
		}
	}
	confluence.RankReports(reports)

	s.logger.WithFields(logrus.Fields{
		"symbols":  len(symbols),
		"reports":  len(reports),
		"failed":   len(failed),
		"workers":  s.cfg.Workers,
		"duration": time.Since(start),
	}).Info("Scan completed")
	return reports, failed
}

func (s *AnalysisService) report(symbol string, analyses map[string]*models.TimeframeAnalysis) models.SignalReport {
	latest := make(map[string]models.IndicatorState, len(analyses))
	tfs := make([]string, 0, len(analyses))
	for tf, a := range analyses {
		if st, ok := a.Latest(); ok {
			latest[tf] = st
		}
		tfs = append(tfs, tf)
	}
	sort.Strings(tfs)

	conf := s.engine.Confluence(symbol, analyses)
	s.logger.WithFields(logrus.Fields{
		"symbol":     symbol,
		"timeframes": tfs,
		"signal":     conf.Signal,
		"verdict":    conf.VerdictScore,
		"confidence": conf.Confidence.String(),
	}).Debug("Built signal report")

	return models.SignalReport{
		ID:          uuid.New().String(),
		Symbol:      symbol,
		GeneratedAt: time.Now().UTC(),
		Confluence:  conf,
		Timeframes:  latest,
	}
}
