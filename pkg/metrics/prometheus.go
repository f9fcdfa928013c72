package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal     *prometheus.CounterVec
	droppedTotal   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
	candlesTotal   *prometheus.CounterVec
	decisionsTotal *prometheus.CounterVec
	riskRejections *prometheus.CounterVec
	connected      *prometheus.GaugeVec
	reconnects     *prometheus.CounterVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		ticksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeflow_ticks_received_total",
				Help: "Total number of normalized ticks received from exchanges",
			},
			[]string{"market", "symbol"},
		),
		droppedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeflow_dropped_total",
				Help: "Units dropped by a pipeline stage",
			},
			[]string{"stage", "reason"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradeflow_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradeflow_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		candlesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeflow_candles_finalized_total",
				Help: "Finalized candles, including synthetic gap candles",
			},
			[]string{"timeframe", "gap"},
		),
		decisionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeflow_decisions_total",
				Help: "Emitted trade decisions",
			},
			[]string{"action"},
		),
		riskRejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeflow_risk_rejections_total",
				Help: "Position updates rejected by a risk rule",
			},
			[]string{"rule"},
		),
		connected: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradeflow_exchange_connected",
				Help: "1 when the market connector is connected",
			},
			[]string{"market"},
		),
		reconnects: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeflow_exchange_reconnects_total",
				Help: "Connector reconnect attempts",
			},
			[]string{"market"},
		),
	}
}

func (r *Recorder) RecordTick(market, symbol string) {
	r.ticksTotal.WithLabelValues(market, symbol).Inc()
}

// RecordDropped records a unit skipped by a stage (malformed message, late tick, validation).
func (r *Recorder) RecordDropped(stage, reason string) {
	r.droppedTotal.WithLabelValues(stage, reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordCandle(timeframe string, gap bool) {
	r.candlesTotal.WithLabelValues(timeframe, strconv.FormatBool(gap)).Inc()
}

func (r *Recorder) RecordDecision(action string) {
	r.decisionsTotal.WithLabelValues(action).Inc()
}

func (r *Recorder) RecordRiskRejection(rule string) {
	r.riskRejections.WithLabelValues(rule).Inc()
}

func (r *Recorder) SetConnected(market string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	r.connected.WithLabelValues(market).Set(v)
}

func (r *Recorder) RecordReconnect(market string) {
	r.reconnects.WithLabelValues(market).Inc()
}

// Nop is a Metrics implementation that records nothing.
type Nop struct{}

func (Nop) RecordTick(string, string) {}
func (Nop) RecordDropped(string, string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLastPrice(string, float64) {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) RecordCandle(string, bool) {}
func (Nop) RecordDecision(string) {}
func (Nop) RecordRiskRejection(string) {}
func (Nop) SetConnected(string, bool) {}
func (Nop) RecordReconnect(string) {}
