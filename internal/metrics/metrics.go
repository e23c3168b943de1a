// Package metrics exposes the twin's telemetry and HTTP traffic to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"microgrid_twin/internal/model"
	"microgrid_twin/internal/simulator"
)

const namespace = "microgrid"

// Metrics implements simulator.Callback. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	voltage      prometheus.Gauge
	current      prometheus.Gauge
	power        *prometheus.GaugeVec
	batteryLevel prometheus.Gauge
	irradiance   prometheus.Gauge
	simHour      prometheus.Gauge
	running      prometheus.Gauge
	progress     prometheus.Gauge
	autarky      prometheus.Gauge
	energy       *prometheus.GaugeVec
	samplesTotal prometheus.Counter
	runsTotal    *prometheus.CounterVec
	publishTotal *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		voltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "bus_voltage_volts",
			Help: "Panel bus voltage of the latest step.",
		}),
		current: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "array_current_amperes",
			Help: "Total array current of the latest step.",
		}),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "power_watts",
			Help: "Power of the latest step by flow (generated, load, net).",
		}, []string{"flow"}),
		batteryLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "battery_level_percent",
			Help: "Battery state of charge.",
		}),
		irradiance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "irradiance_ratio",
			Help: "Relative irradiance in [0,1].",
		}),
		simHour: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sim_hour",
			Help: "Simulated hour of day of the latest step.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "running",
			Help: "1 while a run is in progress.",
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_progress_ratio",
			Help: "Fraction of the current run elapsed at the last event.",
		}),
		autarky: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "autarky_percent",
			Help: "Share of consumption not drawn from the grid in the current run.",
		}),
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_energy_kwh",
			Help: "Cumulative energy of the current run by kind (from_grid, to_grid, consumed).",
		}, []string{"kind"}),
		samplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "samples_total",
			Help: "Recomputed half-hour steps.",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_total",
			Help: "Run lifecycle transitions by event (started, stopped, completed).",
		}, []string{"event"}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "published_samples_total",
			Help: "Samples handed to external sinks by sink and result.",
		}, []string{"sink", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.voltage,
		m.current,
		m.power,
		m.batteryLevel,
		m.irradiance,
		m.simHour,
		m.running,
		m.progress,
		m.autarky,
		m.energy,
		m.samplesTotal,
		m.runsTotal,
		m.publishTotal,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OnState(state simulator.State) {
	if m == nil {
		return
	}
	m.progress.Set(state.Progress)
	switch {
	case state.Running:
		m.running.Set(1)
		m.runsTotal.WithLabelValues("started").Inc()
		m.autarky.Set(0)
		m.energy.Reset()
	case state.Completed:
		m.running.Set(0)
		m.runsTotal.WithLabelValues("completed").Inc()
	default:
		m.running.Set(0)
		m.runsTotal.WithLabelValues("stopped").Inc()
	}
}

func (m *Metrics) OnSample(sample model.Sample) {
	if m == nil {
		return
	}
	t := sample.Telemetry
	m.voltage.Set(t.Voltage)
	m.current.Set(t.Current)
	m.power.WithLabelValues("generated").Set(t.PowerGenerated)
	m.power.WithLabelValues("load").Set(t.PowerLoad)
	m.power.WithLabelValues("net").Set(t.PowerNet)
	m.batteryLevel.Set(t.BatteryLevel)
	m.irradiance.Set(t.Irradiance)
	m.simHour.Set(float64(t.Hour) + float64(t.Minute)/60)

	o := sample.Overview
	m.autarky.Set(o.Autarky)
	m.energy.WithLabelValues("from_grid").Set(o.EnergyFromGridKWh)
	m.energy.WithLabelValues("to_grid").Set(o.EnergyToGridKWh)
	m.energy.WithLabelValues("consumed").Set(o.EnergyConsumedKWh)
	m.samplesTotal.Inc()
}

// Published counts one sample handed to sink.
func (m *Metrics) Published(sink string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.publishTotal.WithLabelValues(sink, result).Inc()
}

// Dropped counts a sample discarded because sink's queue was full.
func (m *Metrics) Dropped(sink string) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(sink, "dropped").Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer, which the
// websocket upgrade needs.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// WrapHandler records request count and latency under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
