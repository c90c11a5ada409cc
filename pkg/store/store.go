// Package store persists committed strokes.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/astromechza/ink-relay/pkg/ink"
)

// Store is the durable record of committed strokes.
type Store interface {
	// Upsert inserts the stroke or fully replaces the row with the same id. The original creation time of
	// a replaced row is kept.
	Upsert(ctx context.Context, stroke ink.Stroke) error
	// DeleteByID returns the number of rows removed. Deleting a missing stroke is not an error.
	DeleteByID(ctx context.Context, sessionID, id string) (int64, error)
	// ListBySession returns the strokes of a session ordered by creation time.
	ListBySession(ctx context.Context, sessionID string) ([]ink.Stroke, error)
}

// clock hands out strictly increasing timestamps so that creation order is total.
type clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func (c *clock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	t := now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}
