// Package metrics exposes Prometheus instrumentation for detectors.
package metrics

import (
	"context"
	"image"
	"net/http"
	"time"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "detect"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors of one registry.
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	detections *prometheus.CounterVec
}

// New creates the detector collectors on a fresh registry, together with the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Detect calls by detector and outcome.",
		}, []string{"detector", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Detect latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"detector"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Objects reported by detector and label.",
		}, []string{"detector", "label"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.detections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument wraps d so every Detect call is counted and timed.
func (m *Metrics) Instrument(d detector.Detector) detector.Detector {
	return &instrumented{Detector: d, m: m}
}

// InstrumentSet wraps every detector of s.
func (m *Metrics) InstrumentSet(s *detector.Set) *detector.Set {
	wrapped := make([]detector.Detector, 0, len(s.Kinds()))
	for _, kind := range s.Kinds() {
		d, _ := s.Get(kind)
		wrapped = append(wrapped, m.Instrument(d))
	}
	return detector.NewSet(wrapped...)
}

type instrumented struct {
	detector.Detector
	m *Metrics
}

func (i *instrumented) Detect(ctx context.Context, img image.Image, opts ...detector.Option) ([]common.Detection, error) {
	kind := string(i.Kind())
	start := time.Now()

	dets, err := i.Detector.Detect(ctx, img, opts...)
	i.m.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		i.m.requests.WithLabelValues(kind, OutcomeError).Inc()
		return nil, err
	}

	i.m.requests.WithLabelValues(kind, OutcomeOK).Inc()
	for _, d := range dets {
		i.m.detections.WithLabelValues(kind, d.Label).Inc()
	}
	return dets, nil
}
