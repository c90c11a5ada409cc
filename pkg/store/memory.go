package store

import (
	"context"
	"slices"
	"sync"

	"github.com/astromechza/ink-relay/pkg/ink"
)

// Memory is an in-process Store. Nothing survives a restart.
type Memory struct {
	mu      sync.RWMutex
	strokes map[string]ink.Stroke
	clock   clock
}

func NewMemory() *Memory {
	return &Memory{strokes: make(map[string]ink.Stroke)}
}

func (m *Memory) Upsert(ctx context.Context, stroke ink.Stroke) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stroke.Points = slices.Clone(stroke.Points)
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.strokes[stroke.ID]; ok {
		stroke.CreatedAt = existing.CreatedAt
	} else if stroke.CreatedAt.IsZero() {
		stroke.CreatedAt = m.clock.next()
	}
	m.strokes[stroke.ID] = stroke
	return nil
}

func (m *Memory) DeleteByID(ctx context.Context, sessionID, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.strokes[id]; ok && s.SessionID == sessionID {
		delete(m.strokes, id)
		return 1, nil
	}
	return 0, nil
}

func (m *Memory) ListBySession(ctx context.Context, sessionID string) ([]ink.Stroke, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]ink.Stroke, 0, len(m.strokes))
	for _, s := range m.strokes {
		if s.SessionID == sessionID {
			s.Points = slices.Clone(s.Points)
			out = append(out, s)
		}
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b ink.Stroke) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}
