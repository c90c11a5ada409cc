// Package bus fans raw frames out to every subscribed connection. Frames are tagged with the id of the
// client that published them so that each subscriber can skip its own.
package bus

import (
	"context"
	"errors"
)

var ErrSubscriptionClosed = errors.New("subscription closed")

// Delivery is one published frame. Payload is shared between subscribers and must not be modified.
type Delivery struct {
	From    string
	Payload []byte
}

// Envelope is the encoding of a Delivery on an external broker.
type Envelope struct {
	From    string `json:"from"`
	Payload string `json:"payload"`
}

type Bus interface {
	Publish(ctx context.Context, from string, payload []byte) error
	// Subscribe returns once the subscription is live: anything published after it returns is delivered.
	Subscribe(ctx context.Context) (Subscription, error)
}

type Subscription interface {
	// C is closed when the subscription ends, either through Close or because the bus gave up on it.
	C() <-chan Delivery
	Close() error
}
