// Package metrics exposes the chat service's Prometheus instruments.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	modelRequests  *prometheus.CounterVec
	modelLatency   *prometheus.HistogramVec
	submitRejected *prometheus.CounterVec
	formsGenerated *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		modelRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brokerchat",
			Name:      "model_requests_total",
			Help:      "Total number of settled model requests.",
		}, []string{"responder", "result"}),
		modelLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brokerchat",
			Name:      "model_request_seconds",
			Help:      "Latency from submission to settle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"responder", "result"}),
		submitRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brokerchat",
			Name:      "submit_rejected_total",
			Help:      "Submissions ignored because the text was blank or a reply was pending.",
		}, []string{"reason"}),
		formsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brokerchat",
			Name:      "forms_generated_total",
			Help:      "Generated form records by kind.",
		}, []string{"kind"}),
		activeSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "brokerchat",
			Name:      "active_sessions",
			Help:      "Open conversation sessions.",
		}),
	}
})

func get() *metrics {
	return metricsSingleton()
}

// ModelRequest records one settled request; result is "ok" or "error".
func ModelRequest(responder, result string, d time.Duration) {
	m := get()
	m.modelRequests.WithLabelValues(responder, result).Inc()
	m.modelLatency.WithLabelValues(responder, result).Observe(d.Seconds())
}

func SubmitRejected(reason string) {
	get().submitRejected.WithLabelValues(reason).Inc()
}

func FormGenerated(kind string) {
	get().formsGenerated.WithLabelValues(kind).Inc()
}

func SetActiveSessions(n int) {
	get().activeSessions.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	get()
	return promhttp.Handler()
}
