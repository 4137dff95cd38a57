// Package testutil holds Redis fixtures shared by package tests.
package testutil

import (
	"os"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/irfndi/cipher-ai-go/internal/config"
)

// GetTestRedisOptions returns options for an external Redis used by integration runs.
// REDIS_TEST_ADDR overrides the address; DB 1 keeps test keys away from DB 0.
func GetTestRedisOptions() *redis.Options {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return &redis.Options{
		Addr: addr,
		DB:   1,
	}
}

// NewMiniredis starts an in-memory Redis and a client bound to it. Both are closed when the
// test ends.
func NewMiniredis(tb testing.TB) (*miniredis.Miniredis, *redis.Client) {
	tb.Helper()
	mr := miniredis.RunT(tb)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// RedisConfig points a config.RedisConfig at mr.
func RedisConfig(tb testing.TB, mr *miniredis.Miniredis) config.RedisConfig {
	tb.Helper()
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		tb.Fatalf("invalid miniredis port %q: %v", mr.Port(), err)
	}
	return config.RedisConfig{Host: mr.Host(), Port: port}
}
