// Package metrics exposes daemon counters and gauges to Prometheus
package metrics

import (
	"math"
	"net/http"
	"time"

	"github.com/dougsko/ftx1d/pkg/cat"
	"github.com/dougsko/ftx1d/pkg/radio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a registry with the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics are the daemon's own metrics
type AppMetrics struct {
	Connected         prometheus.Gauge
	CATExchanges      *prometheus.CounterVec // labels: result=ok|timeout|error
	CATLatency        prometheus.Histogram
	BridgeClients     prometheus.Gauge
	BridgeCommands    *prometheus.CounterVec // labels: cmd, result=ok|error
	MeterPolls        *prometheus.CounterVec // labels: result=ok|error
	MeterPollDuration prometheus.Histogram
	MeterValues       *prometheus.GaugeVec // labels: meter
	Resyncs           *prometheus.CounterVec // labels: result=ok|partial
}

// NewAppMetrics registers and returns the daemon metrics
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ftx1_connected",
			Help: "1 while the CAT link is open.",
		}),
		CATExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ftx1_cat_exchanges_total",
			Help: "CAT command exchanges by result.",
		}, []string{"result"}),
		CATLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ftx1_cat_exchange_seconds",
			Help:    "Time from command write to terminator or timeout.",
			Buckets: []float64{.005, .01, .02, .05, .1, .25, .5, 1, 2},
		}),
		BridgeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ftx1_rigctl_clients",
			Help: "Current number of rigctl clients.",
		}),
		BridgeCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ftx1_rigctl_commands_total",
			Help: "rigctl commands by command and result.",
		}, []string{"cmd", "result"}),
		MeterPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ftx1_meter_polls_total",
			Help: "Telemetry passes by result.",
		}, []string{"result"}),
		MeterPollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ftx1_meter_poll_seconds",
			Help:    "Duration of one pass over every meter channel.",
			Buckets: prometheus.DefBuckets,
		}),
		MeterValues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ftx1_meter_value",
			Help: "Last converted meter value by channel.",
		}, []string{"meter"}),
		Resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ftx1_resyncs_total",
			Help: "Full state reads by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.Connected, m.CATExchanges, m.CATLatency, m.BridgeClients,
		m.BridgeCommands, m.MeterPolls, m.MeterPollDuration, m.MeterValues, m.Resyncs)
	return m
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// ObserveExchange records one CAT round trip
func (m *AppMetrics) ObserveExchange(x cat.Exchange) {
	switch {
	case x.Err != nil:
		m.CATExchanges.WithLabelValues("error").Inc()
	case x.TimedOut:
		m.CATExchanges.WithLabelValues("timeout").Inc()
	default:
		m.CATExchanges.WithLabelValues("ok").Inc()
	}
	m.CATLatency.Observe(x.Duration.Seconds())
}

// ObserveCommand records one rigctl command
func (m *AppMetrics) ObserveCommand(cmd string, ok bool) {
	m.BridgeCommands.WithLabelValues(cmd, result(ok)).Inc()
}

// SetClients records the rigctl client count
func (m *AppMetrics) SetClients(n int) {
	m.BridgeClients.Set(float64(n))
}

// ObservePoll records one telemetry pass. Infinite values are skipped.
func (m *AppMetrics) ObservePoll(meters map[string]radio.MeterReading, failed bool, d time.Duration) {
	m.MeterPolls.WithLabelValues(result(!failed)).Inc()
	m.MeterPollDuration.Observe(d.Seconds())
	for name, r := range meters {
		if math.IsInf(r.Value, 0) || math.IsNaN(r.Value) {
			continue
		}
		m.MeterValues.WithLabelValues(name).Set(r.Value)
	}
}

// ObserveResync records one full state read
func (m *AppMetrics) ObserveResync(st radio.State) {
	if len(st.Errors) > 0 {
		m.Resyncs.WithLabelValues("partial").Inc()
		return
	}
	m.Resyncs.WithLabelValues("ok").Inc()
}

// SetConnected records the CAT link state
func (m *AppMetrics) SetConnected(on bool) {
	if on {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}
