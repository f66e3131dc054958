package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records engine activity. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	candidates *prometheus.CounterVec
	callbacks  *prometheus.CounterVec
}

var (
	registerOnce sync.Once
	defaultSet   *Metrics
)

func NewMetrics() *Metrics {
	return &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "domainkit",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Abstraction and specialization operations by result.",
			},
			[]string{"op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "domainkit",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Engine operation duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
			},
			[]string{"op"},
		),
		candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "domainkit",
				Subsystem: "engine",
				Name:      "candidates_total",
				Help:      "Candidate paths examined.",
			},
			[]string{"op"},
		),
		callbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "domainkit",
				Subsystem: "engine",
				Name:      "callbacks_total",
				Help:      "Deferred relation callbacks executed.",
			},
			[]string{"direction", "success"},
		),
	}
}

// Register adds the collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.operations, m.duration, m.candidates, m.callbacks} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Default returns the process-wide set registered on the default registry.
func Default() *Metrics {
	registerOnce.Do(func() {
		defaultSet = NewMetrics()
		prometheus.MustRegister(defaultSet.operations, defaultSet.duration, defaultSet.candidates, defaultSet.callbacks)
	})
	return defaultSet
}

func (m *Metrics) RecordOperation(op, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *Metrics) RecordCandidates(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.candidates.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) RecordCallback(direction string, success bool) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(direction, strconv.FormatBool(success)).Inc()
}
