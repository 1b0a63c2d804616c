package usecase

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"PriceCast/internal/artifact"
	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/nn"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

// TrainDateLayout is the metadata train_date format.
const TrainDateLayout = "2006-01-02 15:04:05"

type TrainingConfig struct {
	Ticker          string
	Start           time.Time
	ModelDir        string
	SequenceLength  int
	TrainSplit      float64
	ValidationSplit float64
	Epochs          int
	BatchSize       int
	Patience        int
	LearningRate    float64
	LSTMUnits       int
	LSTMLayers      int
	DenseUnits      int
	Dropout         float64
	Seed            int64
}

// TrainingResult summarises a successful run.
type TrainingResult struct {
	Run      models.TrainingRun
	Metadata models.ModelMetadata
	History  *nn.History
}

// TrainingUseCase runs the offline training pipeline end to end.
type TrainingUseCase struct {
	data   domrepo.MarketData
	ledger domrepo.RunLedger
	events domrepo.EventPublisher
	l      *applogger.Logger
	now    func() time.Time
}

func NewTrainingUseCase(data domrepo.MarketData, ledger domrepo.RunLedger, events domrepo.EventPublisher, l *applogger.Logger) *TrainingUseCase {
	if l == nil {
		l = applogger.NewNop()
	}
	return &TrainingUseCase{data: data, ledger: ledger, events: events, l: l, now: time.Now}
}

// Train fetches history, fits the scaler and network, evaluates on the
// chronological hold-out and writes the artifacts. Every run, failed or
// not, is recorded in the ledger.
func (uc *TrainingUseCase) Train(ctx context.Context, cfg TrainingConfig) (res *TrainingResult, err error) {
	run := &models.TrainingRun{
		ID:        uuid.NewString(),
		Ticker:    util.NormalizeTicker(cfg.Ticker),
		StartedAt: uc.now().UTC(),
		Status:    models.RunRunning,
	}
	log := uc.l.With(applogger.String("run_id", run.ID), applogger.String("ticker", run.Ticker))

	if err := uc.ledger.Start(ctx, run); err != nil {
		log.Warn("ledger start failed", applogger.Error(err))
	}
	defer func() {
		finished := uc.now().UTC()
		run.FinishedAt = &finished
		if err != nil {
			run.Status = models.RunFailed
			run.Error = err.Error()
			log.Error("training failed", applogger.Error(err))
		} else {
			run.Status = models.RunSucceeded
			res.Run = *run
		}
		// the caller's ctx may already be cancelled
		if ferr := uc.ledger.Finish(context.Background(), run); ferr != nil {
			log.Warn("ledger finish failed", applogger.Error(ferr))
		}
	}()

	log.Info("fetching history", applogger.String("start", util.FormatDay(cfg.Start)))
	series, err := uc.data.DailyCloses(ctx, run.Ticker, cfg.Start, uc.now())
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	closes := series.Closes()
	run.Observations = len(closes)
	log.Info("history fetched", applogger.Int("observations", len(closes)))

	scaler, err := forecast.FitScaler(closes)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	X, y, err := forecast.BuildSequences(scaler.Transform(closes), cfg.SequenceLength)
	if err != nil {
		return nil, err
	}

	split := forecast.SplitIndex(len(X), cfg.TrainSplit)
	if split == 0 || split == len(X) {
		return nil, fmt.Errorf("train split %.2f leaves an empty partition of %d sequences", cfg.TrainSplit, len(X))
	}
	xTrain, yTrain := X[:split], y[:split]
	xTest, yTest := X[split:], y[split:]
	run.TrainSamples, run.TestSamples = len(xTrain), len(xTest)

	arch := architecture(cfg)
	model, err := nn.NewModel(arch, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, err
	}

	log.Info("training started",
		applogger.Int("train_samples", len(xTrain)),
		applogger.Int("test_samples", len(xTest)),
		applogger.Int("epochs", cfg.Epochs),
	)
	hist, err := nn.Fit(ctx, model, xTrain, yTrain, nn.FitConfig{
		Epochs:          cfg.Epochs,
		BatchSize:       cfg.BatchSize,
		ValidationSplit: cfg.ValidationSplit,
		Patience:        cfg.Patience,
		LearningRate:    cfg.LearningRate,
		Seed:            cfg.Seed,
		OnEpoch: func(s nn.EpochStats) {
			log.Info("epoch",
				applogger.Int("epoch", s.Epoch),
				applogger.Float64("loss", s.Loss),
				applogger.Float64("val_loss", finiteOrZero(s.ValLoss)),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	run.EpochsRun = hist.EpochsRun()
	run.BestValLoss = hist.BestLoss

	mse, mae := nn.Evaluate(model, xTest, yTest)
	run.TestLoss, run.TestMAE = mse, mae
	log.Info("evaluation",
		applogger.Float64("test_loss", mse),
		applogger.Float64("test_mae", mae),
		applogger.Bool("stopped_early", hist.StoppedEarly),
	)

	meta := models.ModelMetadata{
		Ticker:         run.Ticker,
		SequenceLength: cfg.SequenceLength,
		TestLoss:       mse,
		TestMAE:        mae,
		TrainDate:      uc.now().Format(TrainDateLayout),
		EpochsRun:      run.EpochsRun,
		BestValLoss:    hist.BestLoss,
		RunID:          run.ID,
	}
	if err := artifact.Save(cfg.ModelDir, &artifact.Bundle{Model: model, Scaler: scaler, Metadata: meta}); err != nil {
		return nil, fmt.Errorf("save artifacts: %w", err)
	}
	log.Info("artifacts saved", applogger.String("dir", cfg.ModelDir))

	if uc.events != nil {
		perr := uc.events.PublishModelTrained(ctx, models.ModelTrainedEvent{
			RunID:          run.ID,
			Ticker:         run.Ticker,
			SequenceLength: cfg.SequenceLength,
			TestLoss:       mse,
			TestMAE:        mae,
			EpochsRun:      run.EpochsRun,
		})
		if perr != nil {
			log.Warn("publish model event failed", applogger.Error(perr))
		}
	}

	return &TrainingResult{Metadata: meta, History: hist}, nil
}

// Runs lists the most recent ledger entries.
func (uc *TrainingUseCase) Runs(ctx context.Context, limit int) ([]models.TrainingRun, error) {
	return uc.ledger.Recent(ctx, limit)
}

func architecture(cfg TrainingConfig) nn.Architecture {
	arch := nn.DefaultArchitecture(cfg.SequenceLength)
	layers := cfg.LSTMLayers
	if layers <= 0 {
		layers = len(arch.LSTMUnits)
	}
	if cfg.LSTMUnits > 0 {
		arch.LSTMUnits = make([]int, layers)
		for i := range arch.LSTMUnits {
			arch.LSTMUnits[i] = cfg.LSTMUnits
		}
	}
	if cfg.DenseUnits > 0 {
		arch.DenseUnits = cfg.DenseUnits
	}
	arch.Dropout = cfg.Dropout
	return arch
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
