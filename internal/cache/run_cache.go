package cache

import (
	"sync"

	"github.com/irfndi/cipher-ai-go/internal/engine"
)

// RunCache holds the latest resumable run per (symbol, timeframe). Runs are immutable once
// stored; writers replace them under the write lock.
type RunCache struct {
	mu   sync.RWMutex
	runs map[string]*engine.Run
}

// NewRunCache creates an empty run cache
func NewRunCache() *RunCache {
	return &RunCache{runs: make(map[string]*engine.Run)}
}

func runKey(symbol, timeframe string) string {
	return symbol + "|" + timeframe
}

// Get returns the cached run for symbol and timeframe.
func (c *RunCache) Get(symbol, timeframe string) (*engine.Run, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	run, ok := c.runs[runKey(symbol, timeframe)]
	return run, ok
}

// Put stores run unless a run that consumed more candles is already cached.
func (c *RunCache) Put(run *engine.Run) bool {
	if run == nil {
		return false
	}
	key := runKey(run.Symbol, run.Timeframe)

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.runs[key]; ok && cur.Len() > run.Len() {
		return false
	}
	c.runs[key] = run
	return true
}

// Delete drops the cached run.
func (c *RunCache) Delete(symbol, timeframe string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.runs, runKey(symbol, timeframe))
}

// Len returns the number of cached runs.
func (c *RunCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.runs)
}
