package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/irfndi/cipher-ai-go/internal/models"
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

// SignalRepository persists confluence reports. The verdict columns are denormalised for
// querying; the full report is stored as JSON.
type SignalRepository struct {
	pool DatabasePool
}

func NewSignalRepository(pool DatabasePool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// SaveReport inserts report, assigning an ID and a generation time when they are unset.
func (r *SignalRepository) SaveReport(ctx context.Context, report *models.SignalReport) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO signal_reports (id, symbol, generated_at, signal, direction, verdict_score, confidence, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	conf := report.Confluence
	_, err = r.pool.Exec(ctx, query,
		report.ID,
		report.Symbol,
		report.GeneratedAt,
		string(conf.Signal),
		string(conf.Direction),
		conf.VerdictScore,
		conf.Confidence,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report for %s: %w", report.Symbol, err)
	}
	return nil
}

// GetLatestReport returns the most recent report for symbol, or utils.ErrNotFound.
func (r *SignalRepository) GetLatestReport(ctx context.Context, symbol string) (*models.SignalReport, error) {
	query := `
		SELECT payload
		FROM signal_reports
		WHERE symbol = $1
		ORDER BY generated_at DESC
		LIMIT 1`

	var payload []byte
	if err := r.pool.QueryRow(ctx, query, symbol).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("report for %s: %w", symbol, utils.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query latest report for %s: %w", symbol, err)
	}

	var report models.SignalReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report for %s: %w", symbol, err)
	}
	return &report, nil
}

// ReportSummary is one row of a symbol's report history
type ReportSummary struct {
	ID           string        `json:"id"`
	Symbol       string        `json:"symbol"`
	GeneratedAt  time.Time     `json:"generated_at"`
	Signal       models.Signal `json:"signal"`
	Direction    models.Family `json:"direction"`
	VerdictScore int           `json:"verdict_score"`
}

// ListReports returns up to limit summaries for symbol, newest first.
func (r *SignalRepository) ListReports(ctx context.Context, symbol string, limit int) ([]ReportSummary, error) {
	query := `
		SELECT id, symbol, generated_at, signal, direction, verdict_score
		FROM signal_reports
		WHERE symbol = $1
		ORDER BY generated_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var (
			s                 ReportSummary
			signal, direction string
		)
		if err := rows.Scan(&s.ID, &s.Symbol, &s.GeneratedAt, &signal, &direction, &s.VerdictScore); err != nil {
			return nil, fmt.Errorf("failed to scan report summary: %w", err)
		}
		s.Signal = models.Signal(signal)
		s.Direction = models.Family(direction)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read report summaries: %w", err)
	}
	return out, nil
}

// DeleteReportsBefore removes reports generated before cutoff and returns how many went.
func (r *SignalRepository) DeleteReportsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM signal_reports WHERE generated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old reports: %w", err)
	}
	return tag.RowsAffected(), nil
}
