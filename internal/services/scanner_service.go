package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cipher-ai-go/internal/config"
	"github.com/irfndi/cipher-ai-go/internal/models"
	"github.com/irfndi/cipher-ai-go/internal/telemetry"
)

// ReportStore persists reports
type ReportStore interface {
	SaveReport(ctx context.Context, report *models.SignalReport) error
}

// ReportPublisher makes the latest report of a symbol available to readers
type ReportPublisher interface {
	Set(ctx context.Context, report models.SignalReport) error
}

// ErrScanInProgress is returned by RunOnce while another pass is running.
var ErrScanInProgress = errors.New("scan already in progress")

// ScanSummary is the outcome of one scanner pass
type ScanSummary struct {
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
	Reports   []models.SignalReport `json:"reports"`
	Failed    []string              `json:"failed,omitempty"`
}

// ScannerService scans the configured universe on a cron schedule, stores every report and
// publishes the latest one per symbol.
type ScannerService struct {
	analysis  *AnalysisService
	store     ReportStore
	publisher ReportPublisher
	tracer    *telemetry.BusinessTracer
	cfg       config.ScannerConfig
	logger    *logrus.Logger

	cron    *cron.Cron
	running sync.Mutex

	mu   sync.RWMutex
	last *ScanSummary
}

// NewScannerService wires a scanner. store and publisher may be nil.
func NewScannerService(analysis *AnalysisService, store ReportStore, publisher ReportPublisher, cfg config.ScannerConfig, logger *logrus.Logger) *ScannerService {
	return &ScannerService{
		analysis:  analysis,
		store:     store,
		publisher: publisher,
		tracer:    telemetry.NewBusinessTracer(),
		cfg:       cfg,
		logger:    logger,
	}
}

// Start registers the scan on the cron schedule and starts the scheduler.
func (s *ScannerService) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrScanInProgress) {
			s.logger.WithError(err).Error("Scheduled scan failed")
		}
	}); err != nil {
		return fmt.Errorf("register scan schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron = c
	c.Start()

	s.logger.WithFields(logrus.Fields{
		"schedule":   s.cfg.Schedule,
		"symbols":    s.cfg.Symbols,
		"timeframes": s.cfg.Timeframes,
	}).Info("Scanner started")
	return nil
}

// Stop stops the scheduler and waits for a running scan to finish or ctx to expire.
func (s *ScannerService) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Scanner stop timed out with a scan still running")
	}
	s.logger.Info("Scanner stopped")
}

// RunOnce performs one scan pass. Store and publish failures are logged per report and do
// not abort the pass.
func (s *ScannerService) RunOnce(ctx context.Context) (*ScanSummary, error) {
	if !s.running.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.running.Unlock()

	if timeout := s.cfg.TimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	ctx, span := s.tracer.TraceScan(ctx, s.cfg.Symbols, s.cfg.Timeframes)
	defer span.End()

	reports, failed := s.analysis.Scan(ctx, s.cfg.Symbols, s.cfg.Timeframes)
	for i := range reports {
		s.persist(ctx, &reports[i])
	}

	summary := &ScanSummary{
		StartedAt: start.UTC(),
		Duration:  time.Since(start),
		Reports:   reports,
	}
	for _, f := range failed {
		summary.Failed = append(summary.Failed, f.Error())
		s.logger.WithFields(logrus.Fields{
			"symbol":    f.Symbol,
			"timeframe": f.Timeframe,
		}).WithError(f.Err).Warn("Pipeline failed")
	}

	s.tracer.RecordScanMetrics(span, telemetry.ScanMetrics{
		Symbols:  len(s.cfg.Symbols),
		Reports:  len(reports),
		Failed:   len(failed),
		Duration: summary.Duration,
	})

	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("scan interrupted: %w", err)
	}
	return summary, nil
}

func (s *ScannerService) persist(ctx context.Context, report *models.SignalReport) {
	ctx, span := s.tracer.TraceReport(ctx, report.Symbol)
	defer span.End()

	if s.store != nil {
		if err := s.store.SaveReport(ctx, report); err != nil {
			s.tracer.RecordError(span, err)
			s.logger.WithField("symbol", report.Symbol).WithError(err).Error("Failed to store report")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Set(ctx, *report); err != nil {
			s.tracer.RecordError(span, err)
			s.logger.WithField("symbol", report.Symbol).WithError(err).Error("Failed to publish report")
		}
	}
	s.tracer.RecordReport(span, *report)
}

// LastScan returns the summary of the most recent pass.
func (s *ScannerService) LastScan() (*ScanSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.last != nil
}

// LastScanAt returns when the most recent pass started.
func (s *ScannerService) LastScanAt() (time.Time, bool) {
	last, ok := s.LastScan()
	if !ok {
		return time.Time{}, false
	}
	return last.StartedAt, true
}
