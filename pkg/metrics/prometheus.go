package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	predictions   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPredicted *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
	modelLoaded   prometheus.Gauge
	cacheLookups  *prometheus.CounterVec
}

// New registers the recorder's collectors on reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_predictions_total",
				Help: "Total number of forecasts served",
			},
			[]string{"ticker"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPredicted: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricecast_last_predicted_price",
				Help: "Final predicted price of the most recent forecast for a ticker",
			},
			[]string{"ticker"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		modelLoaded: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricecast_model_loaded",
				Help: "1 when a forecasting model is loaded, 0 otherwise",
			},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_history_cache_lookups_total",
				Help: "History cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// RecordPrediction counts a served forecast and stores its final price.
func (r *Recorder) RecordPrediction(ticker string, predicted float64) {
	r.predictions.WithLabelValues(ticker).Inc()
	r.lastPredicted.WithLabelValues(ticker).Set(predicted)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) SetModelLoaded(loaded bool) {
	if loaded {
		r.modelLoaded.Set(1)
		return
	}
	r.modelLoaded.Set(0)
}

// RecordCacheLookup counts a history cache hit or miss.
func (r *Recorder) RecordCacheLookup(hit bool) {
	if hit {
		r.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	r.cacheLookups.WithLabelValues("miss").Inc()
}
