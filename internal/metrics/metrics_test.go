package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microgrid_twin/internal/model"
	"microgrid_twin/internal/simulator"
)

func TestMetrics_OnSample(t *testing.T) {
	m := New()
	m.OnSample(model.Sample{
		Telemetry: model.Telemetry{
			Voltage: 180, Current: 12, PowerGenerated: 2160, PowerLoad: 150, PowerNet: 2010,
			BatteryLevel: 42, Hour: 12, Minute: 30, Irradiance: 1,
		},
		Overview: model.Overview{Autarky: 80, EnergyFromGridKWh: 1.5, EnergyToGridKWh: 2, EnergyConsumedKWh: 7.5},
	})

	assert.InDelta(t, 180, testutil.ToFloat64(m.voltage), 1e-9)
	assert.InDelta(t, 2160, testutil.ToFloat64(m.power.WithLabelValues("generated")), 1e-9)
	assert.InDelta(t, 2010, testutil.ToFloat64(m.power.WithLabelValues("net")), 1e-9)
	assert.InDelta(t, 42, testutil.ToFloat64(m.batteryLevel), 1e-9)
	assert.InDelta(t, 12.5, testutil.ToFloat64(m.simHour), 1e-9)
	assert.InDelta(t, 80, testutil.ToFloat64(m.autarky), 1e-9)
	assert.InDelta(t, 1.5, testutil.ToFloat64(m.energy.WithLabelValues("from_grid")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.samplesTotal), 1e-9)
}

func TestMetrics_OnState(t *testing.T) {
	m := New()
	m.OnState(simulator.State{RunID: "a", Running: true})
	assert.InDelta(t, 1, testutil.ToFloat64(m.running), 1e-9)

	m.OnState(simulator.State{RunID: "a", Completed: true})
	assert.InDelta(t, 0, testutil.ToFloat64(m.running), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runsTotal.WithLabelValues("started")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runsTotal.WithLabelValues("completed")), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(m.runsTotal.WithLabelValues("stopped")), 1e-9)
}

func TestMetrics_Published(t *testing.T) {
	m := New()
	m.Published("mqtt", nil)
	m.Published("mqtt", errors.New("boom"))
	m.Dropped("kafka")

	assert.InDelta(t, 1, testutil.ToFloat64(m.publishTotal.WithLabelValues("mqtt", "ok")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.publishTotal.WithLabelValues("mqtt", "error")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.publishTotal.WithLabelValues("kafka", "dropped")), 1e-9)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.OnSample(model.Sample{})
	m.OnState(simulator.State{})
	m.Published("x", nil)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.WrapHandler("/", h))
}

func TestMetrics_WrapHandlerAndExposition(t *testing.T) {
	m := New()
	h := m.WrapHandler("/api/data", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/data", nil))
	assert.InDelta(t, 1, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/data", "418")), 1e-9)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "microgrid_http_requests_total")
}

var _ simulator.Callback = (*Metrics)(nil)
