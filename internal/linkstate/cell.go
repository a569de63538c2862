// Package linkstate provides the single-slot cell that carries the latest
// connection state from event producers to the indicator controller.
//
// The cell keeps no history: a publish overwrites whatever the reader has not
// consumed yet. Any number of goroutines may publish; one goroutine reads.
package linkstate

import (
	"context"
	"sync"

	"github.com/sweeney/link-indicator/internal/logic"
)

// Cell holds the most recently published state.
type Cell struct {
	mu    sync.Mutex
	value logic.State
	gen   uint64 // number of publications
	seen  uint64 // gen at the reader's last Wait

	// notify carries at most one pending wake-up.
	notify chan struct{}
}

// New returns an empty cell.
func New() *Cell {
	return &Cell{notify: make(chan struct{}, 1)}
}

// Publish stores s as the current value and wakes the reader. It never blocks.
func (c *Cell) Publish(s logic.State) {
	c.mu.Lock()
	c.value = s
	c.gen++
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
		// a wake-up is already pending
	}
}

// Wait returns the latest value once something has been published since the
// previous Wait. If that already happened it returns without blocking.
// The only error is ctx.Err().
func (c *Cell) Wait(ctx context.Context) (logic.State, error) {
	for {
		c.mu.Lock()
		if c.gen != c.seen {
			c.seen = c.gen
			s := c.value
			c.mu.Unlock()
			return s, nil
		}
		c.mu.Unlock()

		select {
		case <-c.notify:
		case <-ctx.Done():
			return logic.StateDisconnected, ctx.Err()
		}
	}
}

// Still reports whether the latest published value equals expected.
// Republishing the same value does not make it false.
func (c *Cell) Still(expected logic.State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen > 0 && c.value == expected
}

// Latest returns the current value without consuming it.
// The bool is false until the first publication.
func (c *Cell) Latest() (logic.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.gen > 0
}

// Publications returns the number of Publish calls so far.
func (c *Cell) Publications() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}
