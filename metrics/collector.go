package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sdloader/boundary"
)

// Namespace prefixes every exported metric.
const Namespace = "sdloader"

// Collector exports boundary events as Prometheus metrics. Each Collector
// owns its registry, so tests and multiple loaders never collide on the
// default registerer.
type Collector struct {
	registry *prometheus.Registry

	ModelLoads         *prometheus.CounterVec
	LiveHandles        prometheus.Gauge
	Releases           *prometheus.CounterVec
	Generations        *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	GeneratedBytes     prometheus.Counter
	GeneratedPixels    *prometheus.HistogramVec
	HostAllocFailures  prometheus.Counter
}

// NewCollector creates a Collector with its own registry, including Go
// runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		ModelLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "model_loads_total",
			Help:      "Model load attempts by outcome",
		}, []string{"status"}),
		LiveHandles: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "live_handles",
			Help:      "Handles currently holding an engine context",
		}),
		Releases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "releases_total",
			Help:      "Release calls by outcome (released or noop)",
		}, []string{"status"}),
		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "generations_total",
			Help:      "Text-to-image calls by outcome",
		}, []string{"status"}),
		GenerationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of text-to-image calls",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		GeneratedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "generated_bytes_total",
			Help:      "Pixel bytes copied into host buffers",
		}),
		GeneratedPixels: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "generated_image_pixels",
			Help:      "Distribution of width*height per image",
			Buckets:   []float64{64 * 64, 256 * 256, 512 * 512, 768 * 768, 1024 * 1024, 2048 * 2048},
		}, []string{"channels"}),
		HostAllocFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "host_alloc_failures_total",
			Help:      "Generations whose host buffer could not be allocated",
		}),
	}
}

// Registry returns the registry the Collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe implements boundary.Observer.
func (c *Collector) Observe(e boundary.Event) {
	switch e.Kind {
	case boundary.EventLoad:
		if e.Err != nil {
			c.ModelLoads.WithLabelValues(StatusError).Inc()
			return
		}
		c.ModelLoads.WithLabelValues(StatusSuccess).Inc()
		c.LiveHandles.Inc()

	case boundary.EventRelease:
		if !e.Released {
			c.Releases.WithLabelValues(StatusNoop).Inc()
			return
		}
		c.Releases.WithLabelValues("released").Inc()
		c.LiveHandles.Dec()

	case boundary.EventGenerate:
		c.GenerationDuration.Observe(e.Duration.Seconds())
		if e.Err != nil {
			c.Generations.WithLabelValues(StatusError).Inc()
			if errors.Is(e.Err, boundary.ErrHostAllocation) {
				c.HostAllocFailures.Inc()
			}
			return
		}
		c.Generations.WithLabelValues(StatusSuccess).Inc()
		c.GeneratedBytes.Add(float64(e.Bytes))
		c.GeneratedPixels.WithLabelValues(channelLabel(e.Channels)).Observe(float64(e.Width * e.Height))
	}
}

// WriteTextfile writes the current metrics in the text exposition format,
// for node_exporter's textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

func channelLabel(n int) string {
	switch n {
	case 1:
		return "1"
	case 3:
		return "3"
	case 4:
		return "4"
	default:
		return "other"
	}
}

var _ boundary.Observer = (*Collector)(nil)
