package bus

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestLocalFanOut(t *testing.T) {
	ctx := context.Background()
	b := NewLocal(4, discard)

	a, err := b.Subscribe(ctx)
	require.NoError(t, err)
	c, err := b.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Subscribers())

	payload := []byte(`{"kind":"undo","id":"x"}`)
	require.NoError(t, b.Publish(ctx, "client-a", payload))
	payload[0] = 'X'

	for _, sub := range []Subscription{a, c} {
		d := <-sub.C()
		assert.Equal(t, "client-a", d.From)
		assert.Equal(t, `{"kind":"undo","id":"x"}`, string(d.Payload))
	}
}

func TestLocalCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := NewLocal(4, discard)
	sub, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers())

	require.NoError(t, b.Publish(ctx, "x", []byte("after close")))
}

func TestLocalClosesSlowSubscriber(t *testing.T) {
	ctx := context.Background()
	drops := 0
	b := NewLocal(2, discard, WithDropHook(func() { drops++ }))

	slow, err := b.Subscribe(ctx)
	require.NoError(t, err)
	fast, err := b.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(ctx, "p", []byte{byte('a' + i)}))
		<-fast.C()
	}

	assert.Equal(t, 1, drops)
	assert.Equal(t, 1, b.Subscribers())

	// buffered frames are still readable, then the channel reports closed
	var got []string
	for d := range slow.C() {
		got = append(got, string(d.Payload))
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestLocalSubscribeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal(1, discard).Subscribe(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
