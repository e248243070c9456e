// Package degrade isolates cache-layer failures from the translation path.
//
// The controller is a circuit breaker: once the error count reaches the
// configured threshold it disables caching for the rest of the process (and
// any later process that observes the same failures) until an explicit
// reset. There is no automatic recovery — re-enabling on a timer would flap
// between states on transient storage errors.
package degrade

import (
	"sync"

	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/ports"
)

// DefaultFailureThreshold disables the cache after this many errors.
const DefaultFailureThreshold = 3

// Controller tracks cache-layer failures behind a mutex; typical usage is
// single-call-per-process, but concurrent orchestrator calls stay safe.
type Controller struct {
	mu        sync.Mutex
	threshold int
	errors    int
	disabled  bool
	lastErr   error
	log       ports.Logger
}

// NewController builds a controller that trips after threshold errors.
func NewController(threshold int, log ports.Logger) *Controller {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &Controller{threshold: threshold, log: log}
}

// Guard runs op when the circuit is closed. On any error it records the
// failure, possibly trips the breaker, and returns fallback() instead — the
// caller never observes a cache-layer error.
func Guard[T any](c *Controller, op func() (T, error), fallback func() T) T {
	if !c.Allow() {
		return fallback()
	}
	result, err := op()
	if err != nil {
		c.Record(err)
		return fallback()
	}
	return result
}

// Allow reports whether cache operations may run.
func (c *Controller) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.disabled
}

// Record counts one failure and trips the breaker at the threshold.
func (c *Controller) Record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors++
	c.lastErr = err
	c.log.Warn("cache operation failed", map[string]interface{}{
		"errors": c.errors,
		"error":  err.Error(),
	})

	if !c.disabled && c.errors >= c.threshold {
		c.disabled = true
		c.log.Error("cache disabled after repeated failures", err, map[string]interface{}{
			"errors":    c.errors,
			"threshold": c.threshold,
		})
	}
}

// Disable opens the circuit immediately, bypassing the threshold. Used when
// configuration turns caching off.
func (c *Controller) Disable(reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = true
	c.lastErr = reason
}

// Reset closes the circuit and clears the error count. Only an explicit
// reset re-enables caching.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = 0
	c.disabled = false
	c.lastErr = nil
}

// Health reports the controller's observable state.
func (c *Controller) Health() domain.CacheHealth {
	c.mu.Lock()
	defer c.mu.Unlock()

	health := domain.CacheHealth{
		Enabled:    !c.disabled,
		ErrorCount: c.errors,
	}
	if c.lastErr != nil {
		health.LastError = c.lastErr.Error()
	}
	return health
}
