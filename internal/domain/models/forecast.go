package models

import "time"

// PredictRequest is the body of POST /api/predict.
type PredictRequest struct {
	Ticker string `json:"ticker" validate:"required,ticker"`
	Days   int    `json:"days" default:"30" validate:"gte=1"`
}

// Forecast is the outcome of one autoregressive rollout.
type Forecast struct {
	Ticker    string
	Days      int
	History   *PriceSeries
	Predicted []float64
	Dates     []time.Time
}

// SeriesData is a parallel dates/prices pair used for charting.
type SeriesData struct {
	Dates  []string  `json:"dates"`
	Prices []float64 `json:"prices"`
}

// ForecastResponse is the body returned by POST /api/predict.
type ForecastResponse struct {
	Ticker         string     `json:"ticker"`
	CurrentPrice   float64    `json:"current_price"`
	PredictedPrice float64    `json:"predicted_price"`
	PriceChange    float64    `json:"price_change"`
	PercentChange  float64    `json:"percent_change"`
	PredictionDays int        `json:"prediction_days"`
	HistoricalData SeriesData `json:"historical_data"`
	FutureData     SeriesData `json:"future_data"`
	Timestamp      string     `json:"timestamp"`
}

// HealthStatus is the body returned by GET /health.
type HealthStatus struct {
	Status         string `json:"status"`
	ModelLoaded    bool   `json:"model_loaded"`
	Timestamp      string `json:"timestamp"`
	ModelTicker    string `json:"model_ticker,omitempty"`
	SequenceLength int    `json:"sequence_length,omitempty"`
	TrainDate      string `json:"train_date,omitempty"`
}
