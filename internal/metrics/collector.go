// Package metrics exposes prometheus instrumentation for the dialogue
// engine. A nil *Collector is valid and records nothing, so callers never
// have to guard their instrumentation sites.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector bundles every metric the engine emits.
type Collector struct {
	turnsTotal        *prometheus.CounterVec
	turnDuration      *prometheus.HistogramVec
	repliesTotal      *prometheus.CounterVec
	sessionsActive    *prometheus.GaugeVec
	sessionsEvicted   *prometheus.CounterVec
	compileFailures   *prometheus.CounterVec
	collaboratorCalls *prometheus.CounterVec
}

// NewCollector registers the engine metrics on the given registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "convograph",
			Name:      "turns_total",
			Help:      "Dialogue turns processed, by robot.",
		}, []string{"robot"}),
		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "convograph",
			Name:      "turn_duration_seconds",
			Help:      "Wall time spent handling one turn.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"robot"}),
		repliesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "convograph",
			Name:      "replies_total",
			Help:      "Replies produced, by source (flow, faq, chitchat).",
		}, []string{"robot", "source"}),
		sessionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "convograph",
			Name:      "sessions_active",
			Help:      "Sessions currently cached, by robot.",
		}, []string{"robot"}),
		sessionsEvicted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "convograph",
			Name:      "sessions_evicted_total",
			Help:      "Sessions removed by the idle-TTL sweep.",
		}, []string{"robot"}),
		compileFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "convograph",
			Name:      "graph_compile_failures_total",
			Help:      "Graphs rejected by static checks.",
		}, []string{"robot"}),
		collaboratorCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "convograph",
			Name:      "collaborator_errors_total",
			Help:      "Failed calls to external collaborators.",
		}, []string{"robot", "service"}),
	}
}

// TurnObserved records one completed turn.
func (c *Collector) TurnObserved(robot string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(robot).Inc()
	c.turnDuration.WithLabelValues(robot).Observe(elapsed.Seconds())
}

// ReplyProduced records one reply by source.
func (c *Collector) ReplyProduced(robot, source string) {
	if c == nil {
		return
	}
	c.repliesTotal.WithLabelValues(robot, source).Inc()
}

// SessionCount sets the active-session gauge.
func (c *Collector) SessionCount(robot string, n int) {
	if c == nil {
		return
	}
	c.sessionsActive.WithLabelValues(robot).Set(float64(n))
}

// SessionEvicted records one idle-session eviction.
func (c *Collector) SessionEvicted(robot string) {
	if c == nil {
		return
	}
	c.sessionsEvicted.WithLabelValues(robot).Inc()
}

// CompileFailed records one rejected graph.
func (c *Collector) CompileFailed(robot string) {
	if c == nil {
		return
	}
	c.compileFailures.WithLabelValues(robot).Inc()
}

// CollaboratorError records one failed external call.
func (c *Collector) CollaboratorError(robot, service string) {
	if c == nil {
		return
	}
	c.collaboratorCalls.WithLabelValues(robot, service).Inc()
}
