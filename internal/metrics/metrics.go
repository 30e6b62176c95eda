// Package metrics exposes detector and daemon counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alarm-monitor/alarm-sensor/internal/logic"
)

const namespace = "alarm_sensor"

var channelLabelNames = []string{"channel", "name"}

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	edges         *prometheus.CounterVec
	resolutions   prometheus.Counter
	reports       *prometheus.CounterVec
	status        *prometheus.GaugeVec
	level         *prometheus.GaugeVec
	threshold     *prometheus.GaugeVec
	publishErrors prometheus.Counter
	readErrors    *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

// New creates the collectors and registers them with a fresh registry,
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		edges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_total",
			Help:      "Idle to active signal transitions counted per channel.",
		}, channelLabelNames),
		resolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Observation windows resolved.",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Status changes reported per channel and new status.",
		}, append(channelLabelNames, "status")),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "status",
			Help:      "Last reported status code (0 unknown, 1 off, 2 blinking, 3 steady).",
		}, channelLabelNames),
		level: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "level",
			Help:      "Last sampled light level (0-100).",
		}, channelLabelNames),
		threshold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threshold",
			Help:      "Current light threshold (0-99).",
		}, channelLabelNames),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "MQTT publish failures.",
		}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analog_read_errors_total",
			Help:      "Analog read failures per channel.",
		}, channelLabelNames),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the status server.",
		}, []string{"code", "method"}),
	}

	m.registry.MustRegister(
		m.edges, m.resolutions, m.reports, m.status, m.level, m.threshold,
		m.publishErrors, m.readErrors, m.httpRequests,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func labels(id int, name string) prometheus.Labels {
	return prometheus.Labels{"channel": strconv.Itoa(id), "name": name}
}

// ObserveWindow records one resolution pass.
func (m *Metrics) ObserveWindow(w logic.Window) {
	m.resolutions.Inc()
	for _, r := range w.Results {
		m.edges.With(labels(r.Channel, r.Name)).Add(float64(r.Edges))
	}
	for _, e := range w.Events {
		l := labels(e.Channel, e.Name)
		m.status.With(l).Set(float64(e.Status))
		l["status"] = e.Status.String()
		m.reports.With(l).Inc()
	}
}

// ObserveChannels records the per-channel gauges.
func (m *Metrics) ObserveChannels(chs []logic.ChannelState) {
	for _, c := range chs {
		l := labels(c.ID, c.Name)
		m.level.With(l).Set(float64(c.Level))
		m.threshold.With(l).Set(float64(c.Threshold))
		m.status.With(l).Set(float64(c.Reported))
	}
}

// PublishError counts one failed MQTT publish.
func (m *Metrics) PublishError() {
	m.publishErrors.Inc()
}

// ReadError counts one failed analog read.
func (m *Metrics) ReadError(id int, name string) {
	m.readErrors.With(labels(id, name)).Inc()
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument wraps h to count requests by status code and method.
func (m *Metrics) Instrument(h http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.httpRequests, h)
}
