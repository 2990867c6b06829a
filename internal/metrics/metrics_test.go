package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/EspressoLine/internal/events"
)

func emit(t *testing.T, m *Metrics, name string, fields map[string]interface{}) {
	t.Helper()
	require.NoError(t, m.Write(events.Event{Name: name, Fields: fields}))
}

func TestMetricsCountEvents(t *testing.T) {
	m := New()

	emit(t, m, "pipeline.started", nil)
	emit(t, m, "check.failed", map[string]interface{}{"subsystem": "MilkTank", "kind": "insufficient_material"})
	emit(t, m, "order.rejected", nil)
	emit(t, m, "order.admitted", nil)
	emit(t, m, "order.admitted", nil)
	emit(t, m, "stage.started", map[string]interface{}{"stage": "grind_coffee"})
	emit(t, m, "stage.completed", map[string]interface{}{"stage": "grind_coffee"})
	emit(t, m, "order.dropped", map[string]interface{}{"stage": "dispense_water"})
	emit(t, m, "transport.failed", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersAdmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckFailures.WithLabelValues("MilkTank", "insufficient_material")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageCompleted.WithLabelValues("grind_coffee")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageDropped.WithLabelValues("dispense_water")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransportFails))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StagesActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("order.admitted")))

	emit(t, m, "stage.drained", map[string]interface{}{"stage": "grind_coffee"})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StagesActive))
}

func TestMetricsMissingLabel(t *testing.T) {
	m := New()
	emit(t, m, "stage.completed", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageCompleted.WithLabelValues("unknown")))
}

func TestMetricsAsBusSink(t *testing.T) {
	m := New()
	bus := events.NewBus(16)
	bus.AddSink("metrics", m)

	_, err := bus.Emit("info", "order.admitted", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersAdmitted))
}

func TestHandler(t *testing.T) {
	m := New()
	emit(t, m, "order.admitted", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "espresso_orders_admitted_total 1"))
}
