package repository

import (
	"context"
	"time"

	"PriceCast/internal/domain/models"
)

// MarketData supplies daily close history.
type MarketData interface {
	DailyCloses(ctx context.Context, ticker string, from, to time.Time) (*models.PriceSeries, error)
}

// ProfileSource supplies descriptive company data.
type ProfileSource interface {
	Profile(ctx context.Context, ticker string) (*models.CompanyProfile, error)
}

type EventPublisher interface {
	PublishModelTrained(ctx context.Context, e models.ModelTrainedEvent) error
	PublishForecastCompleted(ctx context.Context, e models.ForecastCompletedEvent) error
	Close() error
}

// RunLedger persists one row per training run.
type RunLedger interface {
	Init(ctx context.Context) error
	Start(ctx context.Context, run *models.TrainingRun) error
	Finish(ctx context.Context, run *models.TrainingRun) error
	Recent(ctx context.Context, limit int) ([]models.TrainingRun, error)
	Close() error
}

type Metrics interface {
	RecordPrediction(ticker string, predicted float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	SetModelLoaded(loaded bool)
	RecordCacheLookup(hit bool)
}
