package relay

import (
	"context"
	"fmt"

	"github.com/astromechza/ink-relay/pkg/inflight"
	"github.com/astromechza/ink-relay/pkg/ink"
	"github.com/astromechza/ink-relay/pkg/store"
)

// SnapshotBuilder produces the frames a joining client needs to catch up: every committed stroke of the
// board in creation order, followed by every stroke still being drawn.
type SnapshotBuilder struct {
	sessionID string
	store     store.Store
	table     *inflight.Table
}

func NewSnapshotBuilder(sessionID string, st store.Store, table *inflight.Table) *SnapshotBuilder {
	return &SnapshotBuilder{sessionID: sessionID, store: st, table: table}
}

func (b *SnapshotBuilder) Build(ctx context.Context) ([][]byte, error) {
	strokes, err := b.store.ListBySession(ctx, b.sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list strokes: %w", err)
	}
	inFlight := b.table.Snapshot()

	frames := make([][]byte, 0, len(strokes)+len(inFlight))
	for _, s := range strokes {
		raw, err := ink.EncodeFull(s)
		if err != nil {
			return nil, fmt.Errorf("failed to encode stroke %s: %w", s.ID, err)
		}
		frames = append(frames, raw)
	}
	for _, e := range inFlight {
		raw, err := ink.EncodeSnapshot(e.ID, e.Points)
		if err != nil {
			return nil, fmt.Errorf("failed to encode in-flight stroke %s: %w", e.ID, err)
		}
		frames = append(frames, raw)
	}
	return frames, nil
}
