package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Render outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeInvalid       = "invalid"
	OutcomeUnknownPreset = "unknown_preset"
	OutcomeError         = "error"
)

// Counters
var (
	RendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resonate_renders_total",
		Help: "Total renders by kind and outcome",
	}, []string{"kind", "outcome"})
	SamplesRenderedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resonate_samples_rendered_total",
		Help: "Total PCM samples rendered",
	})
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resonate_http_requests_total",
		Help: "Total HTTP requests by route and status code",
	}, []string{"route", "code"})
)

// Histograms
var (
	RenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resonate_render_duration_seconds",
		Help:    "Render duration in seconds by kind",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind"})
)
