package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/astromechza/ink-relay/pkg/bus"
	"github.com/astromechza/ink-relay/pkg/config"
	"github.com/astromechza/ink-relay/pkg/inflight"
	"github.com/astromechza/ink-relay/pkg/metrics"
	"github.com/astromechza/ink-relay/pkg/relay"
	"github.com/astromechza/ink-relay/pkg/store"
	"github.com/astromechza/ink-relay/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	configVar := flag.String("config", "", "path to a yaml config file")
	addrVar := flag.String("addr", "", "the address to listen on, overrides the config")
	flag.Parse()

	cfg, err := config.Load(*configVar)
	if err != nil {
		return err
	}
	if *addrVar != "" {
		cfg.Addr = *addrVar
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	guarded := store.NewGuarded(st, cfg.Store.Timeout, store.BreakerSettings{
		Name:         "strokes",
		MaxRequests:  cfg.Store.Breaker.MaxRequests,
		Interval:     cfg.Store.Breaker.Interval,
		Timeout:      cfg.Store.Breaker.Timeout,
		FailureRatio: cfg.Store.Breaker.FailureRatio,
		MinRequests:  cfg.Store.Breaker.MinRequests,
	}, logger)

	collector := metrics.New(cfg.Metrics.Namespace)
	b, closeBus, err := openBus(cfg, logger, collector)
	if err != nil {
		return err
	}
	defer closeBus()

	h := relay.NewHandler(relay.Options{
		SessionID: cfg.SessionID,
		Table:     inflight.New(),
		Store:     guarded,
		Bus:       b,
		Metrics:   collector,
		Logger:    logger,
		Socket: relay.SocketOptions{
			WriteWait:       cfg.Socket.WriteWait,
			PongWait:        cfg.Socket.PongWait,
			PingPeriod:      cfg.Socket.PingPeriod,
			MaxMessageBytes: cfg.Socket.MaxMessageBytes,
		},
		CheckOrigin: originChecker(cfg.Socket.AllowedOrigins),
	})

	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			slog.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(health)
	r.Methods(http.MethodGet).Path("/ws").Handler(h)
	if cfg.Metrics.Enabled {
		r.Methods(http.MethodGet).Path("/metrics").Handler(collector.Handler())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := new(sync.WaitGroup)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
		// sessions hang off this context, so cancelling it ends every websocket
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("listening", "addr", cfg.Addr, "session", cfg.SessionID, "store", cfg.Store.Driver, "bus", cfg.Bus.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen failed", "err", err)
		}
	}()

	exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("Signal caught", "sig", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down cleanly", "err", err)
		_ = httpServer.Close()
	}

	h.Wait()
	wg.Wait()

	if cfg.Render.OnShutdown {
		strokes, err := st.ListBySession(context.Background(), cfg.SessionID)
		if err != nil {
			slog.Error("failed to load board for render", "err", err)
		} else if path, err := viz.RenderToTemp(strokes, cfg.Render.Width, cfg.Render.Height); err != nil {
			slog.Error("failed to render", "err", err)
		} else {
			slog.Info("rendered", "session", cfg.SessionID, "strokes", len(strokes), "path", "file://"+path)
		}
	}
	return nil
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), func() {}, nil
	default:
		slog.Info("Opening database", "path", cfg.Store.Path)
		db, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, func() {
			if err := db.Close(); err != nil {
				slog.Error("failed to close database", "err", err)
			}
		}, nil
	}
}

func openBus(cfg *config.Config, logger *slog.Logger, m *metrics.Collector) (bus.Bus, func(), error) {
	switch cfg.Bus.Driver {
	case "redis":
		opts, err := redis.ParseURL(cfg.Bus.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return bus.NewRedis(client, cfg.Bus.Channel, cfg.Bus.Buffer, logger), func() {
			if err := client.Close(); err != nil {
				slog.Error("failed to close redis client", "err", err)
			}
		}, nil
	default:
		return bus.NewLocal(cfg.Bus.Buffer, logger, bus.WithDropHook(m.SlowSubscribers.Inc)), func() {}, nil
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}

func health(writer http.ResponseWriter, _ *http.Request) {
	writer.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(map[string]string{"status": "ok"}); err != nil {
		slog.Error("failed to write", "err", err)
	}
}
