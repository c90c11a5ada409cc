package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/ink-relay/pkg/bus"
	"github.com/astromechza/ink-relay/pkg/inflight"
	"github.com/astromechza/ink-relay/pkg/metrics"
	"github.com/astromechza/ink-relay/pkg/store"
)

type refusingBus struct {
	bus.Bus
	err error
}

func (r refusingBus) Publish(ctx context.Context, _ string, _ []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.err
}

func newBareSession(b bus.Bus) *Session {
	m := metrics.New("test")
	return &Session{
		id:        "client-a",
		bus:       b,
		processor: NewProcessor(board, inflight.New(), store.NewMemory(), m, discard),
		socket:    DefaultSocketOptions(),
		metrics:   m,
		logger:    discard,
	}
}

func TestHandlePublishFailureEndsSession(t *testing.T) {
	boom := errors.New("broker unavailable")
	s := newBareSession(refusingBus{err: boom})

	err := s.handle(context.Background(), []byte(pointsS1))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestHandleDuringShutdownIsCleanExit(t *testing.T) {
	s := newBareSession(bus.NewLocal(4, discard))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, s.handle(ctx, []byte(pointsS1)))
}
