package runtime

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weftworks/weft/metric"
)

// runtimeMetrics tracks scheduler activity. A nil receiver disables all
// recording, so a Runtime built without a metric registry pays only a nil
// check per tick.
type runtimeMetrics struct {
	ticks        *prometheus.CounterVec
	tickFailures *prometheus.CounterVec
	tickDuration *prometheus.HistogramVec
	active       prometheus.Gauge
	queueDepth   *prometheus.GaugeVec
}

func newRuntimeMetrics(registry *metric.Registry) (*runtimeMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &runtimeMetrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weft_operator_ticks_total",
			Help: "Number of completed operator ticks.",
		}, []string{"operator"}),
		tickFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weft_operator_tick_failures_total",
			Help: "Number of operator ticks that returned an error or panicked.",
		}, []string{"operator"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weft_operator_tick_duration_seconds",
			Help:    "Wall time of operator ticks.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"operator"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weft_components_active",
			Help: "Number of components currently attached to the runtime.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "weft_port_queue_depth",
			Help: "Entities waiting in each connection queue.",
		}, []string{"connection"}),
	}

	for name, collector := range map[string]prometheus.Collector{
		"operator_ticks_total":         m.ticks,
		"operator_tick_failures_total": m.tickFailures,
		"operator_tick_duration":       m.tickDuration,
		"components_active":            m.active,
		"port_queue_depth":             m.queueDepth,
	} {
		if err := registry.Register("runtime", name, collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *runtimeMetrics) recordTick(operator string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(operator).Inc()
	m.tickDuration.WithLabelValues(operator).Observe(d.Seconds())
	if err != nil {
		m.tickFailures.WithLabelValues(operator).Inc()
	}
}

func (m *runtimeMetrics) setActive(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}

func (m *runtimeMetrics) setQueueDepth(connection string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(connection).Set(float64(depth))
}
