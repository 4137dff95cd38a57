package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/irfndi/cipher-ai-go/internal/divergence"
	"github.com/irfndi/cipher-ai-go/internal/engine"
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFormat   string          `mapstructure:"log_format"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	Scanner     ScannerConfig   `mapstructure:"scanner"`
	Engine      engine.Config   `mapstructure:"engine"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	DatabaseURL string `mapstructure:"database_url"`
	MaxConns    int    `mapstructure:"max_conns"`
}

// DSN returns DatabaseURL when set, otherwise a keyword/value connection string.
func (c DatabaseConfig) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
	if c.MaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", c.MaxConns)
	}
	return dsn
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TelemetryConfig selects the trace exporter. ExportLogs additionally ships log entries
// over OTLP when the exporter is otlp.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	ExportLogs  bool    `mapstructure:"export_logs"`
}

// ScannerConfig drives the scheduled market scan
type ScannerConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Schedule    string   `mapstructure:"schedule"`
	Symbols     []string `mapstructure:"symbols"`
	Timeframes  []string `mapstructure:"timeframes"`
	CandleLimit int      `mapstructure:"candle_limit"`
	Workers     int      `mapstructure:"workers"`
	CacheTTL    string   `mapstructure:"cache_ttl"`
	Timeout     string   `mapstructure:"timeout"`

	// ReportRetention is how long stored reports are kept before cleanup deletes them
	ReportRetention string `mapstructure:"report_retention"`
}

// CacheTTLDuration parses CacheTTL; Validate guarantees it parses.
func (c ScannerConfig) CacheTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.CacheTTL)
	return d
}

// TimeoutDuration parses Timeout; Validate guarantees it parses.
func (c ScannerConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// ReportRetentionDuration parses ReportRetention; Validate guarantees it parses.
func (c ScannerConfig) ReportRetentionDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReportRetention)
	return d
}

// ShutdownTimeoutDuration parses ShutdownTimeout; Validate guarantees it parses.
func (c ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("database.database_url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks service settings and the engine configuration. Engine problems surface as
// *utils.ConfigurationError.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return utils.NewConfigurationErrorf("server.port", "must be in 1..65535, got %d", c.Server.Port)
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return utils.NewConfigurationErrorf("server.allowed_origins", "origin %q needs an http:// or https:// scheme", origin)
		}
	}
	durations := map[string]string{
		"server.shutdown_timeout":  c.Server.ShutdownTimeout,
		"scanner.cache_ttl":        c.Scanner.CacheTTL,
		"scanner.timeout":          c.Scanner.Timeout,
		"scanner.report_retention": c.Scanner.ReportRetention,
	}
	for field, value := range durations {
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			return utils.NewConfigurationErrorf(field, "invalid duration %q", value)
		}
	}

	switch c.Telemetry.Exporter {
	case "stdout", "otlp":
	default:
		return utils.NewConfigurationErrorf("telemetry.exporter", "unknown exporter %q", c.Telemetry.Exporter)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return utils.NewConfigurationErrorf("telemetry.sample_ratio", "must be in [0, 1], got %v", c.Telemetry.SampleRatio)
	}

	if _, err := cron.ParseStandard(c.Scanner.Schedule); err != nil {
		return utils.NewConfigurationErrorf("scanner.schedule", "invalid cron expression %q: %v", c.Scanner.Schedule, err)
	}
	if len(c.Scanner.Timeframes) == 0 {
		return utils.NewConfigurationError("scanner.timeframes", "at least one timeframe is required")
	}
	if c.Scanner.CandleLimit <= 0 {
		return utils.NewConfigurationErrorf("scanner.candle_limit", "must be > 0, got %d", c.Scanner.CandleLimit)
	}
	if c.Scanner.Workers < 0 {
		return utils.NewConfigurationErrorf("scanner.workers", "must be >= 0, got %d", c.Scanner.Workers)
	}

	return c.Engine.Validate()
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Set database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "cipher_ai")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_conns", 10)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.exporter", "stdout")
	viper.SetDefault("telemetry.endpoint", "localhost:4318")
	viper.SetDefault("telemetry.service_name", "cipher-ai")
	viper.SetDefault("telemetry.sample_ratio", 1.0)
	viper.SetDefault("telemetry.export_logs", false)

	// Scanner
	viper.SetDefault("scanner.enabled", true)
	viper.SetDefault("scanner.schedule", "*/5 * * * *")
	viper.SetDefault("scanner.symbols", []string{"BTC/USDT", "ETH/USDT"})
	viper.SetDefault("scanner.timeframes", []string{"15m", "1h", "4h"})
	viper.SetDefault("scanner.candle_limit", 500)
	viper.SetDefault("scanner.workers", 0)
	viper.SetDefault("scanner.cache_ttl", "15m")
	viper.SetDefault("scanner.timeout", "2m")
	viper.SetDefault("scanner.report_retention", "720h")

	setEngineDefaults(engine.DefaultConfig())
}

func setEngineDefaults(d engine.Config) {
	ind := d.Indicators
	viper.SetDefault("engine.indicators.wavetrend.channel_len", ind.WaveTrend.ChannelLen)
	viper.SetDefault("engine.indicators.wavetrend.average_len", ind.WaveTrend.AverageLen)
	viper.SetDefault("engine.indicators.wavetrend.signal_len", ind.WaveTrend.SignalLen)
	viper.SetDefault("engine.indicators.rsi.period", ind.RSI.Period)
	viper.SetDefault("engine.indicators.stoch_rsi.rsi_len", ind.StochRSI.RSILen)
	viper.SetDefault("engine.indicators.stoch_rsi.stoch_len", ind.StochRSI.StochLen)
	viper.SetDefault("engine.indicators.stoch_rsi.k_smooth", ind.StochRSI.KSmooth)
	viper.SetDefault("engine.indicators.stoch_rsi.d_smooth", ind.StochRSI.DSmooth)
	viper.SetDefault("engine.indicators.stoch_rsi.use_log", ind.StochRSI.UseLog)
	viper.SetDefault("engine.indicators.money_flow.period", ind.MoneyFlow.Period)
	viper.SetDefault("engine.indicators.money_flow.multiplier", ind.MoneyFlow.Multiplier)
	viper.SetDefault("engine.indicators.money_flow.offset", ind.MoneyFlow.Offset)
	viper.SetDefault("engine.indicators.mfi.period", ind.MFI.Period)
	viper.SetDefault("engine.indicators.context.macd_fast", ind.Context.MACDFast)
	viper.SetDefault("engine.indicators.context.macd_slow", ind.Context.MACDSlow)
	viper.SetDefault("engine.indicators.context.macd_signal", ind.Context.MACDSignal)

	setDivergenceDefaults("engine.divergence.wavetrend.", d.Divergence.WaveTrend)
	setDivergenceDefaults("engine.divergence.rsi.", d.Divergence.RSI)
	setDivergenceDefaults("engine.divergence.mfi.", d.Divergence.MFI)

	p := d.Scoring.Points
	viper.SetDefault("engine.scoring.points.wavetrend_cross", p.WaveTrendCross)
	viper.SetDefault("engine.scoring.points.wavetrend_zone", p.WaveTrendZone)
	viper.SetDefault("engine.scoring.points.rsi_cross", p.RSICross)
	viper.SetDefault("engine.scoring.points.rsi_zone", p.RSIZone)
	viper.SetDefault("engine.scoring.points.stoch_cross", p.StochCross)
	viper.SetDefault("engine.scoring.points.stoch_zone", p.StochZone)
	viper.SetDefault("engine.scoring.points.money_flow", p.MoneyFlow)
	viper.SetDefault("engine.scoring.points.divergence_regular", p.DivergenceRegular)
	viper.SetDefault("engine.scoring.points.divergence_hidden", p.DivergenceHidden)
	viper.SetDefault("engine.scoring.points.mfi_cross", p.MFICross)
	viper.SetDefault("engine.scoring.points.mfi_divergence", p.MFIDivergence)

	z := d.Scoring.Zones
	viper.SetDefault("engine.scoring.zones.wavetrend_overbought", z.WaveTrendOverbought)
	viper.SetDefault("engine.scoring.zones.wavetrend_oversold", z.WaveTrendOversold)
	viper.SetDefault("engine.scoring.zones.wavetrend_cross_overbought", z.WaveTrendCrossOverbought)
	viper.SetDefault("engine.scoring.zones.wavetrend_cross_oversold", z.WaveTrendCrossOversold)
	viper.SetDefault("engine.scoring.zones.wavetrend_extreme_overbought", z.WaveTrendExtremeOverbought)
	viper.SetDefault("engine.scoring.zones.wavetrend_extreme_oversold", z.WaveTrendExtremeOversold)
	viper.SetDefault("engine.scoring.zones.rsi_overbought", z.RSIOverbought)
	viper.SetDefault("engine.scoring.zones.rsi_oversold", z.RSIOversold)
	viper.SetDefault("engine.scoring.zones.stoch_overbought", z.StochOverbought)
	viper.SetDefault("engine.scoring.zones.stoch_oversold", z.StochOversold)
	viper.SetDefault("engine.scoring.zones.mfi_overbought", z.MFIOverbought)
	viper.SetDefault("engine.scoring.zones.mfi_oversold", z.MFIOversold)

	viper.SetDefault("engine.scoring.thresholds.strong", d.Scoring.Thresholds.Strong)
	viper.SetDefault("engine.scoring.thresholds.weak", d.Scoring.Thresholds.Weak)

	composites := make([]map[string]interface{}, 0, len(d.Scoring.Composites))
	for _, rule := range d.Scoring.Composites {
		composites = append(composites, map[string]interface{}{
			"name":       rule.Name,
			"conditions": rule.Conditions,
		})
	}
	viper.SetDefault("engine.scoring.composites", composites)

	viper.SetDefault("engine.confluence.alignment_weight", d.Confluence.AlignmentWeight)
	viper.SetDefault("engine.confluence.score_weight", d.Confluence.ScoreWeight)
}

func setDivergenceDefaults(prefix string, c divergence.Config) {
	viper.SetDefault(prefix+"pivot_source", c.PivotSource)
	viper.SetDefault(prefix+"price_source", c.PriceSource)
	viper.SetDefault(prefix+"zone_filter", c.ZoneFilter)
	viper.SetDefault(prefix+"zone_filter_hidden", c.ZoneFilterHidden)
	viper.SetDefault(prefix+"overbought", c.Overbought)
	viper.SetDefault(prefix+"oversold", c.Oversold)
	viper.SetDefault(prefix+"max_lookback", c.MaxLookback)
}
