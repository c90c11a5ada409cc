// Package relay serves the websocket endpoint that keeps every connected client's board in sync.
package relay

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/astromechza/ink-relay/pkg/bus"
	"github.com/astromechza/ink-relay/pkg/inflight"
	"github.com/astromechza/ink-relay/pkg/metrics"
	"github.com/astromechza/ink-relay/pkg/store"
)

type Options struct {
	// SessionID names the board every client of this handler draws on.
	SessionID string
	Table     *inflight.Table
	Store     store.Store
	Bus       bus.Bus
	Metrics   *metrics.Collector
	Logger    *slog.Logger
	Socket    SocketOptions
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades requests to websockets and runs a Session on each.
type Handler struct {
	opts      Options
	upgrader  websocket.Upgrader
	snapshots *SnapshotBuilder
	sessions  sync.WaitGroup
}

func NewHandler(opts Options) *Handler {
	if opts.Socket == (SocketOptions{}) {
		opts.Socket = DefaultSocketOptions()
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		snapshots: NewSnapshotBuilder(opts.SessionID, opts.Store, opts.Table),
	}
}

func (h *Handler) newSession(conn *websocket.Conn) *Session {
	id := uuid.NewString()
	logger := h.opts.Logger.With("client", id)
	return &Session{
		id:        id,
		conn:      conn,
		bus:       h.opts.Bus,
		processor: NewProcessor(h.opts.SessionID, h.opts.Table, h.opts.Store, h.opts.Metrics, logger),
		snapshots: h.snapshots,
		socket:    h.opts.Socket,
		metrics:   h.opts.Metrics,
		logger:    logger,
	}
}

func (h *Handler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	conn, err := h.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		h.opts.Logger.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()
	h.sessions.Add(1)
	defer h.sessions.Done()

	s := h.newSession(conn)
	h.opts.Metrics.ActiveSessions.Inc()
	defer h.opts.Metrics.ActiveSessions.Dec()

	s.logger.Info("client connected", "remote", request.RemoteAddr)
	if err := s.Run(request.Context()); err != nil {
		s.logger.Error("session failed", "err", err)
		return
	}
	s.logger.Info("client disconnected")
}

// Wait blocks until every session has finished. Sessions end when their request context is cancelled.
func (h *Handler) Wait() {
	h.sessions.Wait()
}
