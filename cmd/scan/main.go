package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cipher-ai-go/internal/cache"
	"github.com/irfndi/cipher-ai-go/internal/config"
	"github.com/irfndi/cipher-ai-go/internal/database"
	"github.com/irfndi/cipher-ai-go/internal/engine"
	"github.com/irfndi/cipher-ai-go/internal/logging"
	"github.com/irfndi/cipher-ai-go/internal/models"
	"github.com/irfndi/cipher-ai-go/internal/services"
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

type options struct {
	symbols    string
	timeframes string
	file       string
	store      bool
	asJSON     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.symbols, "symbols", "", "comma separated symbols (default: scanner.symbols)")
	flag.StringVar(&opts.timeframes, "timeframes", "", "comma separated timeframes (default: scanner.timeframes)")
	flag.StringVar(&opts.file, "file", "", "read candles from a JSON file instead of PostgreSQL")
	flag.BoolVar(&opts.store, "store", false, "store reports in PostgreSQL and publish them to Redis; with -file, import the candles too")
	flag.BoolVar(&opts.asJSON, "json", false, "print reports as JSON")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel, logging.FormatText)
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout, logger); err != nil {
		logger.WithError(err).Fatal("Scan failed")
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, out io.Writer, logger *logrus.Logger) error {
	symbols := cfg.Scanner.Symbols
	if opts.symbols != "" {
		symbols = splitList(opts.symbols)
	}
	timeframes := cfg.Scanner.Timeframes
	if opts.timeframes != "" {
		timeframes = splitList(opts.timeframes)
	}
	if len(symbols) == 0 || len(timeframes) == 0 {
		return utils.NewConfigurationError("scanner", "at least one symbol and one timeframe are required")
	}

	var (
		source    services.CandleSource
		store     services.ReportStore
		publisher services.ReportPublisher
		file      fileSource
	)
	if opts.file != "" {
		fs, err := loadFileSource(opts.file)
		if err != nil {
			return err
		}
		file = fs
		source = fs
	}
	if opts.file == "" || opts.store {
		db, err := database.NewPostgresConnection(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		pool := database.NewTracedPool(db.Pool)
		candles := database.NewCandleRepository(pool)
		if file == nil {
			source = candles
		} else {
			if err := database.Migrate(ctx, pool, logger); err != nil {
				return err
			}
			if _, err := importCandles(ctx, candles, file, symbols, timeframes, logger); err != nil {
				return err
			}
		}
		if opts.store {
			store = database.NewSignalRepository(pool)
		}
	}
	if opts.store {
		redisClient, err := database.NewRedisConnection(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		publisher = cache.NewRedisSignalCache(redisClient.Client, cfg.Scanner.CacheTTLDuration(), logger)
	}

	eng, err := engine.New(cfg.Engine, logger)
	if err != nil {
		return err
	}
	analysis, err := services.NewAnalysisService(eng, source, nil, services.AnalysisConfig{
		CandleLimit: cfg.Scanner.CandleLimit,
		Workers:     cfg.Scanner.Workers,
	}, logger)
	if err != nil {
		return err
	}

	scanCfg := cfg.Scanner
	scanCfg.Symbols = symbols
	scanCfg.Timeframes = timeframes
	summary, err := services.NewScannerService(analysis, store, publisher, scanCfg, logger).RunOnce(ctx)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	renderReports(out, summary.Reports, timeframes)
	renderFailures(out, summary.Failed)
	return nil
}

// fileSource serves candles from a JSON document keyed by symbol then timeframe.
type fileSource map[string]map[string][]models.Candle

func loadFileSource(path string) (fileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candle file: %w", err)
	}
	var fs fileSource
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("failed to decode candle file %s: %w", path, err)
	}
	return fs, nil
}

// GetCandles returns the last limit candles of (symbol, timeframe).
func (f fileSource) GetCandles(_ context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	candles := f[symbol][timeframe]
	if len(candles) == 0 {
		return nil, fmt.Errorf("candles for %s %s: %w", symbol, timeframe, utils.ErrNotFound)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// candleWriter persists candles; the upsert lets a re-import revise bars in place.
type candleWriter interface {
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) (int64, error)
}

var _ candleWriter = (*database.CandleRepository)(nil)

// importCandles writes the file's candles for the scanned universe so the server reads the
// same history.
func importCandles(ctx context.Context, w candleWriter, f fileSource, symbols, timeframes []string, logger *logrus.Logger) (int64, error) {
	var total int64
	for _, symbol := range symbols {
		for _, tf := range timeframes {
			candles := f[symbol][tf]
			if len(candles) == 0 {
				continue
			}
			n, err := w.SaveCandles(ctx, symbol, tf, candles)
			total += n
			if err != nil {
				return total, fmt.Errorf("failed to import candles: %w", err)
			}
		}
	}
	logger.WithFields(logrus.Fields{
		"symbols":    len(symbols),
		"timeframes": len(timeframes),
		"rows":       total,
	}).Info("Imported candles")
	return total, nil
}

func renderReports(out io.Writer, reports []models.SignalReport, timeframes []string) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("Signal Scan")

	header := table.Row{"#", "SYMBOL", "SIGNAL", "VERDICT", "CONFIDENCE", "ALIGNED"}
	for _, tf := range timeframes {
		header = append(header, strings.ToUpper(tf))
	}
	t.AppendHeader(header)

	for i, r := range reports {
		c := r.Confluence
		row := table.Row{
			i + 1,
			r.Symbol,
			c.Signal,
			c.VerdictScore,
			c.Confidence.StringFixed(2),
			fmt.Sprintf("%d/%d", c.AlignmentCount, c.TotalTimeframes),
		}
		for _, tf := range timeframes {
			state, ok := r.Timeframes[tf]
			if !ok {
				row = append(row, "-")
				continue
			}
			row = append(row, fmt.Sprintf("%s (%d)", state.Signal, state.Score))
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", "REPORTS", len(reports)})
	t.Render()
}

func renderFailures(out io.Writer, failed []string) {
	if len(failed) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("Failed Pipelines")
	for _, f := range failed {
		t.AppendRow(table.Row{f})
	}
	t.Render()
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
