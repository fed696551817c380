package ratelimit

import (
	"sync"
	"time"

	"github.com/go-chi/httprate"
)

var _ httprate.LimitCounter = (*MemoryCounter)(nil)

// MemoryCounter is a fixed-window httprate.LimitCounter held in process
// memory. It never reports a previous-window count, so httprate's sliding
// estimate collapses to the count of the current window.
type MemoryCounter struct {
	mu     sync.Mutex
	window time.Time
	counts map[string]int
}

// NewMemoryCounter returns an empty counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

// Config is a no-op; windows arrive with every call.
func (c *MemoryCounter) Config(int, time.Duration) {}

// Increment adds one hit for key in currentWindow.
func (c *MemoryCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

// IncrementBy adds amount hits for key in currentWindow. Moving to a new
// window discards every count of the old one.
func (c *MemoryCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.roll(currentWindow)
	c.counts[key] += amount
	return nil
}

// Get returns the hits for key in currentWindow and always 0 for the
// previous window.
func (c *MemoryCounter) Get(key string, currentWindow, _ time.Time) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.window.Equal(currentWindow) {
		return 0, 0, nil
	}
	return c.counts[key], 0, nil
}

func (c *MemoryCounter) roll(currentWindow time.Time) {
	if c.window.Equal(currentWindow) {
		return
	}
	c.window = currentWindow
	clear(c.counts)
}
