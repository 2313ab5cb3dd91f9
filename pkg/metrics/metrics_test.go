package metrics

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dougsko/ftx1d/pkg/cat"
	"github.com/dougsko/ftx1d/pkg/radio"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func counterWithLabel(f *dto.MetricFamily, name, value string) float64 {
	for _, m := range f.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == name && l.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return -1
}

func TestObserveExchange(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.ObserveExchange(cat.Exchange{Command: "FA;", Response: "FA014074000;", Duration: 10 * time.Millisecond})
	m.ObserveExchange(cat.Exchange{Command: "FA;", TimedOut: true, Duration: time.Second})
	m.ObserveExchange(cat.Exchange{Command: "FA;", Err: errors.New("io")})

	f := gather(t, reg)
	ex := f["ftx1_cat_exchanges_total"]
	require.NotNil(t, ex)
	assert.Equal(t, 1.0, counterWithLabel(ex, "result", "ok"))
	assert.Equal(t, 1.0, counterWithLabel(ex, "result", "timeout"))
	assert.Equal(t, 1.0, counterWithLabel(ex, "result", "error"))

	lat := f["ftx1_cat_exchange_seconds"]
	require.NotNil(t, lat)
	assert.Equal(t, uint64(3), lat.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestObservePollSkipsInfinite(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.ObservePoll(map[string]radio.MeterReading{
		"SWR":    {Name: "SWR", Value: math.Inf(1)},
		"S_MAIN": {Name: "S_MAIN", Value: 9},
	}, false, 20*time.Millisecond)

	f := gather(t, reg)
	values := f["ftx1_meter_value"]
	require.NotNil(t, values)
	require.Len(t, values.GetMetric(), 1)
	assert.Equal(t, 9.0, values.GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 1.0, counterWithLabel(f["ftx1_meter_polls_total"], "result", "ok"))
}

func TestObserveResyncAndCommands(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.ObserveResync(radio.State{})
	m.ObserveResync(radio.State{Errors: []string{"ptt: closed"}})
	m.ObserveCommand("f", true)
	m.ObserveCommand("Z", false)
	m.SetClients(2)
	m.SetConnected(true)

	f := gather(t, reg)
	assert.Equal(t, 1.0, counterWithLabel(f["ftx1_resyncs_total"], "result", "ok"))
	assert.Equal(t, 1.0, counterWithLabel(f["ftx1_resyncs_total"], "result", "partial"))
	assert.Equal(t, 1.0, counterWithLabel(f["ftx1_rigctl_commands_total"], "cmd", "Z"))
	assert.Equal(t, 2.0, f["ftx1_rigctl_clients"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 1.0, f["ftx1_connected"].GetMetric()[0].GetGauge().GetValue())
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)
	m.SetConnected(true)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ftx1_connected 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
