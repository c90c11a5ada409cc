package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/astromechza/ink-relay/pkg/bus"
	"github.com/astromechza/ink-relay/pkg/ink"
	"github.com/astromechza/ink-relay/pkg/metrics"
)

// SocketOptions bound how long a session waits on its peer.
type SocketOptions struct {
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxMessageBytes int64
}

func DefaultSocketOptions() SocketOptions {
	return SocketOptions{
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		PingPeriod:      54 * time.Second,
		MaxMessageBytes: 512 * 1024,
	}
}

// Session is one connected client. It reads frames from the socket into the processor and onto the bus,
// and forwards frames from the bus that other clients published.
type Session struct {
	id        string
	conn      *websocket.Conn
	bus       bus.Bus
	processor *Processor
	snapshots *SnapshotBuilder
	socket    SocketOptions
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// Run serves the client until it disconnects, the socket fails or ctx is cancelled. The bus subscription
// is taken before the snapshot is built so that no live frame can fall between the two; a stroke that
// commits in that window may reach the client twice. On every exit the subscription is released and the
// strokes the client left unfinished are discarded.
func (s *Session) Run(ctx context.Context) error {
	sub, err := s.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			s.logger.Warn("failed to close subscription", "err", err)
		}
	}()
	defer s.abandon(ctx)

	frames, err := s.snapshots.Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build snapshot: %w", err)
	}
	for _, f := range frames {
		if err := s.write(websocket.TextMessage, f); err != nil {
			return fmt.Errorf("failed to send snapshot: %w", err)
		}
	}
	s.logger.Info("sent snapshot", "frames", len(frames))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		// closing the socket is what unblocks the read loop
		defer s.conn.Close()
		return s.relay(ctx, sub)
	})

	g.Go(func() error {
		defer cancel()
		return s.readLoop(ctx)
	})

	return g.Wait()
}

func (s *Session) write(messageType int, data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.socket.WriteWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

func (s *Session) relay(ctx context.Context, sub bus.Subscription) error {
	t := time.NewTicker(s.socket.PingPeriod)
	defer t.Stop()
	for {
		select {
		case d, ok := <-sub.C():
			if !ok {
				return bus.ErrSubscriptionClosed
			}
			if d.From == s.id {
				continue
			}
			if err := s.write(websocket.TextMessage, d.Payload); err != nil {
				return fmt.Errorf("failed to write message: %w", err)
			}
			s.metrics.FramesRelayed.Inc()
		case <-t.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("failed to send ping: %w", err)
			}
		case <-ctx.Done():
			_ = s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(s.socket.WriteWait),
			)
			return nil
		}
	}
}

func (s *Session) readLoop(ctx context.Context) error {
	s.conn.SetReadLimit(s.socket.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.socket.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.socket.PongWait))
	})

	for {
		mt, raw, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if ctx.Err() != nil || errors.As(err, &closeErr) {
				s.logger.Debug("read loop stopped", "err", err)
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		if err := s.handle(ctx, raw); err != nil {
			return err
		}
	}
}

// handle applies the frame locally and then republishes it, whatever the outcome of the local effect.
func (s *Session) handle(ctx context.Context, raw []byte) error {
	msg, err := s.processor.Apply(ctx, raw)
	switch {
	case errors.Is(err, ink.ErrMalformed), errors.Is(err, ink.ErrUnknownKind):
		s.logger.Debug("relaying frame without local effect", "err", err)
	case err != nil:
		s.logger.Error("failed to apply frame", "kind", msg.Kind, "err", err)
	}
	if err := s.bus.Publish(ctx, s.id, raw); err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("dropped frame read during shutdown", "err", err)
			return nil
		}
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

func (s *Session) abandon(ctx context.Context) {
	ids := s.processor.Abandon()
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.socket.WriteWait)
	defer cancel()
	for _, id := range ids {
		raw, err := ink.EncodeUndo(id)
		if err != nil {
			s.logger.Error("failed to encode undo", "stroke", id, "err", err)
			continue
		}
		if err := s.bus.Publish(ctx, s.id, raw); err != nil {
			s.logger.Warn("failed to publish undo for unfinished stroke", "stroke", id, "err", err)
		}
	}
	s.logger.Info("discarded unfinished strokes", "count", len(ids))
}
