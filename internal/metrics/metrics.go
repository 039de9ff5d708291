package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"windowsauth/internal/ntlm"
)

type Recorder struct {
	registry   *prometheus.Registry
	handshakes *prometheus.CounterVec
	errors     *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "windowsauth",
			Name:      "handshakes_total",
			Help:      "NTLM handshake attempts by outcome.",
		}, []string{"outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "windowsauth",
			Name:      "handshake_errors_total",
			Help:      "Handshake anomalies by error code.",
		}, []string{"code"}),
	}
	r.registry.MustRegister(r.handshakes, r.errors)
	return r
}

func (r *Recorder) ObserveHandshake(outcome ntlm.Outcome, errs []ntlm.AuthError) {
	r.handshakes.WithLabelValues(outcome.String()).Inc()
	for _, e := range errs {
		r.errors.WithLabelValues(string(e.Code)).Inc()
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
