package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fxconverter"

// Metrics holds the collectors for the rate pipeline. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	SyncTotal       *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	ConversionTotal *prometheus.CounterVec
	RatesCached     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SyncTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_total",
				Help:      "Rate sync attempts by outcome",
			},
			[]string{"status"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Remote rate fetch latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"result"},
		),
		ConversionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Conversions by result",
			},
			[]string{"result"},
		),
		RatesCached: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rates_cached",
				Help:      "Number of currencies in the in-memory rate table",
			},
		),
	}
}

func (m *Metrics) ObserveSync(status string) {
	if m == nil {
		return
	}
	m.SyncTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveFetch(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FetchDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveConversion(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ConversionTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetRatesCached(n int) {
	if m == nil {
		return
	}
	m.RatesCached.Set(float64(n))
}
