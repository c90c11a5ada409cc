package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "ink-events"

// Redis is a Bus backed by a redis pub/sub channel, so that several relay processes can share a board.
type Redis struct {
	client  *redis.Client
	channel string
	buffer  int
	logger  *slog.Logger
}

func NewRedis(client *redis.Client, channel string, buffer int, logger *slog.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Redis{client: client, channel: channel, buffer: buffer, logger: logger}
}

func (r *Redis) Publish(ctx context.Context, from string, payload []byte) error {
	raw, err := json.Marshal(Envelope{From: from, Payload: string(payload)})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context) (Subscription, error) {
	ps := r.client.Subscribe(ctx, r.channel)
	// wait for the subscribe confirmation so nothing published afterwards is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	s := &redisSub{
		ps:   ps,
		ch:   make(chan Delivery, r.buffer),
		done: make(chan struct{}),
	}
	go s.pump(r.logger)
	return s, nil
}

type redisSub struct {
	ps        *redis.PubSub
	ch        chan Delivery
	done      chan struct{}
	closeOnce sync.Once
}

func (s *redisSub) pump(logger *slog.Logger) {
	defer close(s.ch)
	msgs := s.ps.Channel()
	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				logger.Warn("dropping undecodable envelope", "err", err)
				continue
			}
			select {
			case s.ch <- Delivery{From: env.From, Payload: []byte(env.Payload)}:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSub) C() <-chan Delivery {
	return s.ch
}

func (s *redisSub) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
