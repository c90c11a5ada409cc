package bus

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

// Local is an in-process Bus. A subscriber that cannot keep up is closed rather than silently missing
// frames, which ends its session and makes the client rejoin with a fresh snapshot.
type Local struct {
	mu     sync.RWMutex
	subs   map[*localSub]struct{}
	buffer int
	logger *slog.Logger
	onDrop func()
}

type LocalOption func(*Local)

// WithDropHook registers a callback invoked each time a slow subscriber is closed.
func WithDropHook(fn func()) LocalOption {
	return func(l *Local) {
		l.onDrop = fn
	}
}

func NewLocal(buffer int, logger *slog.Logger, opts ...LocalOption) *Local {
	if buffer <= 0 {
		buffer = 256
	}
	l := &Local{
		subs:   make(map[*localSub]struct{}),
		buffer: buffer,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type localSub struct {
	bus *Local
	ch  chan Delivery
}

func (s *localSub) C() <-chan Delivery {
	return s.ch
}

func (s *localSub) Close() error {
	s.bus.remove(s)
	return nil
}

func (l *Local) remove(s *localSub) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[s]; !ok {
		return false
	}
	delete(l.subs, s)
	close(s.ch)
	return true
}

func (l *Local) Subscribe(ctx context.Context) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &localSub{bus: l, ch: make(chan Delivery, l.buffer)}
	l.mu.Lock()
	l.subs[s] = struct{}{}
	l.mu.Unlock()
	return s, nil
}

func (l *Local) Publish(ctx context.Context, from string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := Delivery{From: from, Payload: bytes.Clone(payload)}

	var slow []*localSub
	l.mu.RLock()
	for s := range l.subs {
		select {
		case s.ch <- d:
		default:
			slow = append(slow, s)
		}
	}
	l.mu.RUnlock()

	for _, s := range slow {
		if l.remove(s) {
			l.logger.Warn("closing slow subscriber", "buffer", l.buffer)
			if l.onDrop != nil {
				l.onDrop()
			}
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (l *Local) Subscribers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}
