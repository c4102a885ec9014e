package engine

import (
	"sync"
	"time"
)

// AnalysisContext carries the mutable cross-call state for one engine
// instance: the monotonic version token of the last pass and its cached
// result. It replaces process-wide globals; every analysis call receives
// it explicitly through the engine.
type AnalysisContext struct {
	mu        sync.Mutex
	version   int64
	result    *AnalysisResult
	expiresAt time.Time
	ttl       time.Duration
}

// NewAnalysisContext creates a context with the given cache TTL.
func NewAnalysisContext(ttl time.Duration) *AnalysisContext {
	return &AnalysisContext{ttl: ttl}
}

// Cached returns the cached result when it matches the store version and
// has not expired.
func (c *AnalysisContext) Cached(version int64) *AnalysisResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil || c.version != version || time.Now().After(c.expiresAt) {
		return nil
	}
	return c.result
}

// Put stores a pass result keyed on the store version.
func (c *AnalysisContext) Put(version int64, result *AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version = version
	c.result = result
	c.expiresAt = time.Now().Add(c.ttl)
}

// Invalidate drops the cached result. Called after any record mutation.
func (c *AnalysisContext) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = nil
}
