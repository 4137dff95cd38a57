package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/cipher-ai-go/internal/models"
)

// SignalCacheEntry is the cached envelope of the latest report for one symbol
type SignalCacheEntry struct {
	Report    models.SignalReport `json:"report"`
	CachedAt  time.Time           `json:"cached_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// SignalCacheStats tracks cache performance metrics
type SignalCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// RedisSignalCache publishes the latest signal report per symbol in Redis
type RedisSignalCache struct {
	redis  *redis.Client
	ttl    time.Duration
	stats  *SignalCacheStats
	prefix string
	logger *logrus.Logger
}

// NewRedisSignalCache creates a new Redis-based signal cache
func NewRedisSignalCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisSignalCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisSignalCache{
		redis:  redisClient,
		ttl:    ttl,
		stats:  &SignalCacheStats{},
		prefix: "signal:latest:",
		logger: logger,
	}
}

func (c *RedisSignalCache) miss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}

// Get retrieves the latest report for a symbol.
func (c *RedisSignalCache) Get(ctx context.Context, symbol string) (*models.SignalReport, bool) {
	data, err := c.redis.Get(ctx, c.prefix+symbol).Result()
	if errors.Is(err, redis.Nil) {
		c.miss()
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("Redis error getting signal report")
		c.miss()
		return nil, false
	}

	var entry SignalCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to decode cached signal report")
		c.miss()
		return nil, false
	}

	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	return &entry.Report, true
}

// Set stores report as the latest for its symbol and publishes it on the symbol channel.
func (c *RedisSignalCache) Set(ctx context.Context, report models.SignalReport) error {
	now := time.Now()
	data, err := json.Marshal(SignalCacheEntry{
		Report:    report,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to encode signal report for %s: %w", report.Symbol, err)
	}

	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, c.prefix+report.Symbol, data, c.ttl)
	pipe.Publish(ctx, Channel(report.Symbol), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache signal report for %s: %w", report.Symbol, err)
	}

	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"symbol": report.Symbol,
		"signal": report.Confluence.Signal,
		"ttl":    c.ttl,
	}).Debug("Cached signal report")
	return nil
}

// Channel is the pub/sub channel carrying reports of one symbol.
func Channel(symbol string) string {
	return "signal:updates:" + symbol
}

// GetStats returns current cache statistics
func (c *RedisSignalCache) GetStats() SignalCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return SignalCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

// LogStats logs current cache performance statistics
func (c *RedisSignalCache) LogStats() {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	c.logger.WithFields(logrus.Fields{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"sets":     stats.Sets,
		"hit_rate": fmt.Sprintf("%.2f%%", hitRate),
	}).Info("Signal cache stats")
}

func (c *RedisSignalCache) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error scanning cache keys: %w", err)
	}
	return keys, nil
}

// Clear removes every cached report.
func (c *RedisSignalCache) Clear(ctx context.Context) error {
	keys, err := c.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing cache: %w", err)
	}
	c.logger.WithField("entries", len(keys)).Info("Cleared signal cache")
	return nil
}

// Symbols returns the symbols that have a cached report.
func (c *RedisSignalCache) Symbols(ctx context.Context) ([]string, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return nil, err
	}
	var symbols []string
	for _, key := range keys {
		if len(key) > len(c.prefix) {
			symbols = append(symbols, key[len(c.prefix):])
		}
	}
	return symbols, nil
}
