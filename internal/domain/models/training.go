package models

import "time"

// ModelMetadata describes a trained model artifact.
type ModelMetadata struct {
	Ticker         string  `json:"ticker"`
	SequenceLength int     `json:"sequence_length"`
	TestLoss       float64 `json:"test_loss"`
	TestMAE        float64 `json:"test_mae"`
	TrainDate      string  `json:"train_date"`
	EpochsRun      int     `json:"epochs_run"`
	BestValLoss    float64 `json:"best_val_loss"`
	RunID          string  `json:"run_id"`
}

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// TrainingRun is one row of the training ledger.
type TrainingRun struct {
	ID           string
	Ticker       string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       RunStatus
	Observations int
	TrainSamples int
	TestSamples  int
	EpochsRun    int
	BestValLoss  float64
	TestLoss     float64
	TestMAE      float64
	Error        string
}

// ModelTrainedEvent is published after artifacts are written.
type ModelTrainedEvent struct {
	Type           string    `json:"type"`
	RunID          string    `json:"run_id"`
	Ticker         string    `json:"ticker"`
	SequenceLength int       `json:"sequence_length"`
	TestLoss       float64   `json:"test_loss"`
	TestMAE        float64   `json:"test_mae"`
	EpochsRun      int       `json:"epochs_run"`
	At             time.Time `json:"at"`
}

// ForecastCompletedEvent is published after a forecast is served.
type ForecastCompletedEvent struct {
	Type           string    `json:"type"`
	RequestID      string    `json:"request_id"`
	Ticker         string    `json:"ticker"`
	Days           int       `json:"days"`
	CurrentPrice   float64   `json:"current_price"`
	PredictedPrice float64   `json:"predicted_price"`
	At             time.Time `json:"at"`
}

const (
	EventModelTrained      = "model.trained"
	EventForecastCompleted = "forecast.completed"
)
