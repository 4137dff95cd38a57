package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ReportPruner deletes stored reports older than a cutoff
type ReportPruner interface {
	DeleteReportsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService handles automatic cleanup of old signal reports
type CleanupService struct {
	pruner    ReportPruner
	retention time.Duration
	logger    *logrus.Logger
	now       func() time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(pruner ReportPruner, retention time.Duration, logger *logrus.Logger) *CleanupService {
	return &CleanupService{
		pruner:    pruner,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Start runs a cleanup immediately and then every interval until Stop or ctx ends.
func (c *CleanupService) Start(ctx context.Context, interval time.Duration) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	c.logger.WithFields(logrus.Fields{
		"retention": c.retention,
		"interval":  interval,
	}).Info("Starting report cleanup service")

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if _, err := c.RunCleanup(ctx); err != nil && ctx.Err() == nil {
				c.logger.WithError(err).Error("Report cleanup failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops the cleanup loop and waits for it to exit
func (c *CleanupService) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.logger.Info("Stopped report cleanup service")
}

// RunCleanup deletes reports older than the retention window
func (c *CleanupService) RunCleanup(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.retention)
	n, err := c.pruner.DeleteReportsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup reports before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		c.logger.WithFields(logrus.Fields{
			"deleted": n,
			"cutoff":  cutoff,
		}).Info("Deleted old signal reports")
	}
	return n, nil
}
