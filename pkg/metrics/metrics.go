// Package metrics exposes the relay's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the relay metrics. Each Collector owns its registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	ActiveSessions   prometheus.Gauge
	FramesReceived   *prometheus.CounterVec
	FramesRelayed    prometheus.Counter
	StrokesCommitted prometheus.Counter
	StrokesUndone    prometheus.Counter
	StrokesAbandoned prometheus.Counter
	StoreErrors      *prometheus.CounterVec
	InFlightStrokes  prometheus.Gauge
	SlowSubscribers  prometheus.Counter
}

func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of connected websocket sessions",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames read from clients by message kind",
		}, []string{"kind"}),
		FramesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_relayed_total",
			Help:      "Frames forwarded from the bus to clients",
		}),
		StrokesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strokes_committed_total",
			Help:      "Strokes persisted on stroke-end",
		}),
		StrokesUndone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strokes_undone_total",
			Help:      "Undo frames processed",
		}),
		StrokesAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strokes_abandoned_total",
			Help:      "In-flight strokes discarded because their author disconnected",
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed store operations by operation",
		}, []string{"op"}),
		InFlightStrokes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_strokes",
			Help:      "Strokes started but not yet committed",
		}),
		SlowSubscribers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_subscribers_total",
			Help:      "Bus subscriptions closed because they fell behind",
		}),
	}
	c.registry.MustRegister(
		c.ActiveSessions,
		c.FramesReceived,
		c.FramesRelayed,
		c.StrokesCommitted,
		c.StrokesUndone,
		c.StrokesAbandoned,
		c.StoreErrors,
		c.InFlightStrokes,
		c.SlowSubscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
