package volt

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		requests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "volt",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Logical API requests by method and final status code.",
		}, []string{"method", "code"})),
		duration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "volt",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Latency of logical API requests including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"})),
		retries: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "volt",
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Retried HTTP attempts by method.",
		}, []string{"method"})),
	}
}

// register adds col to reg, reusing an identical collector registered by an
// earlier client.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) T {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return col
}

func (m *metrics) observe(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, code).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *metrics) retried(method string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(method).Inc()
}
