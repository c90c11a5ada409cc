package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/astromechza/ink-relay/pkg/inflight"
	"github.com/astromechza/ink-relay/pkg/ink"
	"github.com/astromechza/ink-relay/pkg/metrics"
	"github.com/astromechza/ink-relay/pkg/store"
)

// Processor applies the local effects of one client's frames to the shared in-flight table and the store.
// It is owned by a single session and is not safe for concurrent use; the table and store it talks to are.
type Processor struct {
	sessionID string
	table     *inflight.Table
	store     store.Store
	metrics   *metrics.Collector
	logger    *slog.Logger

	// strokes this client started and has not yet finished or undone
	owned map[string]struct{}
}

func NewProcessor(sessionID string, table *inflight.Table, st store.Store, m *metrics.Collector, logger *slog.Logger) *Processor {
	return &Processor{
		sessionID: sessionID,
		table:     table,
		store:     st,
		metrics:   m,
		logger:    logger,
		owned:     make(map[string]struct{}),
	}
}

// Apply decodes raw and performs its local effect. Decoding errors wrap ink.ErrMalformed or
// ink.ErrUnknownKind and leave all state untouched. A failed commit is returned after the in-flight
// entry has already been consumed; a failed delete is logged and swallowed.
func (p *Processor) Apply(ctx context.Context, raw []byte) (ink.Message, error) {
	msg, err := ink.Decode(raw)
	p.metrics.FramesReceived.WithLabelValues(kindLabel(msg.Kind, err)).Inc()
	if err != nil {
		return msg, err
	}
	defer func() {
		p.metrics.InFlightStrokes.Set(float64(p.table.Len()))
	}()

	switch msg.Kind {
	case ink.KindStrokeStart:
		id := msg.StrokeID()
		p.table.Start(id, msg.First)
		p.owned[id] = struct{}{}

	case ink.KindStrokePoints:
		if !p.table.Append(msg.ID, msg.Pts) {
			p.logger.Debug("points for unknown stroke", "stroke", msg.ID)
		}

	case ink.KindStrokeEnd:
		delete(p.owned, msg.ID)
		stroke := ink.Stroke{
			ID:        msg.ID,
			SessionID: p.sessionID,
			OwnerID:   msg.Stroke.OwnerID,
			Color:     msg.Stroke.Color,
			Width:     msg.Stroke.Width,
			Points:    p.table.Finalize(msg.ID),
		}
		if err := p.store.Upsert(ctx, stroke); err != nil {
			p.metrics.StoreErrors.WithLabelValues("upsert").Inc()
			return msg, fmt.Errorf("failed to commit stroke %s: %w", msg.ID, err)
		}
		p.metrics.StrokesCommitted.Inc()
		p.logger.Debug("committed stroke", "stroke", msg.ID, "points", stroke.Pairs())

	case ink.KindUndo:
		delete(p.owned, msg.ID)
		p.table.Discard(msg.ID)
		p.metrics.StrokesUndone.Inc()
		n, err := p.store.DeleteByID(ctx, p.sessionID, msg.ID)
		if err != nil {
			p.metrics.StoreErrors.WithLabelValues("delete").Inc()
			p.logger.Error("undo failed", "stroke", msg.ID, "err", err)
			return msg, nil
		}
		p.logger.Info("undo", "stroke", msg.ID, "deleted", n)
	}
	return msg, nil
}

// Abandon discards every stroke this client started but never finished and returns their ids. A stroke
// that another client has already finished or undone is no longer in flight and is left out.
func (p *Processor) Abandon() []string {
	if len(p.owned) == 0 {
		return nil
	}
	var ids []string
	for id := range p.owned {
		if p.table.Discard(id) {
			ids = append(ids, id)
		}
	}
	clear(p.owned)
	if len(ids) == 0 {
		return nil
	}
	p.metrics.StrokesAbandoned.Add(float64(len(ids)))
	p.metrics.InFlightStrokes.Set(float64(p.table.Len()))
	return ids
}

func kindLabel(k ink.Kind, err error) string {
	switch k {
	case ink.KindStrokeStart, ink.KindStrokePoints, ink.KindStrokeEnd, ink.KindUndo:
		if err != nil {
			return "malformed"
		}
		return string(k)
	}
	if err != nil && k == "" {
		return "malformed"
	}
	return "other"
}
