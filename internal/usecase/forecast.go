package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"PriceCast/internal/artifact"
	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/forecast"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

type ForecastConfig struct {
	LookbackDays int // calendar days of history fetched per request
	ChartDays    int // observations echoed back as historical_data
	MaxHorizon   int
}

// ForecastUseCase serves forecasts from the model loaded at startup.
type ForecastUseCase struct {
	sc         *artifact.ServiceContext
	forecaster *forecast.Forecaster
	data       domrepo.MarketData
	events     domrepo.EventPublisher
	metrics    domrepo.Metrics
	cfg        ForecastConfig
	l          *applogger.Logger
	now        func() time.Time
}

func NewForecastUseCase(
	sc *artifact.ServiceContext,
	data domrepo.MarketData,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	cfg ForecastConfig,
	l *applogger.Logger,
) *ForecastUseCase {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 365
	}
	if cfg.ChartDays <= 0 {
		cfg.ChartDays = 90
	}
	if cfg.MaxHorizon <= 0 {
		cfg.MaxHorizon = 90
	}
	if l == nil {
		l = applogger.NewNop()
	}

	uc := &ForecastUseCase{
		sc:      sc,
		data:    data,
		events:  events,
		metrics: metrics,
		cfg:     cfg,
		l:       l,
		now:     time.Now,
	}
	if sc.Loaded() {
		uc.forecaster = forecast.NewForecaster(sc.Predictor(), cfg.MaxHorizon)
	}
	if metrics != nil {
		metrics.SetModelLoaded(sc.Loaded())
	}
	return uc
}

// Predict forecasts the next days closes for ticker. days above the
// maximum horizon are clamped.
func (uc *ForecastUseCase) Predict(ctx context.Context, ticker string, days int) (*models.ForecastResponse, error) {
	start := uc.now()
	ticker = util.NormalizeTicker(ticker)

	if uc.forecaster == nil {
		uc.recordError("model_unavailable")
		return nil, service.ErrModelUnavailable
	}
	horizon, err := uc.forecaster.ClampHorizon(days)
	if err != nil {
		return nil, err
	}

	to := uc.now()
	from := to.AddDate(0, 0, -uc.cfg.LookbackDays)
	history, err := uc.data.DailyCloses(ctx, ticker, from, to)
	if err != nil {
		if errors.Is(err, service.ErrTickerNotFound) {
			uc.recordError("ticker_not_found")
		} else {
			uc.recordError("provider")
		}
		return nil, err
	}
	if history.Len() == 0 {
		uc.recordError("ticker_not_found")
		return nil, fmt.Errorf("%w: %s", service.ErrTickerNotFound, ticker)
	}

	scaler := uc.sc.Scaler()
	scaled := scaler.Transform(history.Closes())
	out, err := uc.forecaster.Rollout(ctx, scaled, horizon)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientHistory) {
			uc.recordError("insufficient_history")
		} else {
			uc.recordError("rollout")
		}
		return nil, err
	}
	predicted := scaler.Inverse(out)

	f := &models.Forecast{
		Ticker:    ticker,
		Days:      horizon,
		History:   history,
		Predicted: predicted,
		Dates:     util.NextDays(history.Last().Date, horizon),
	}
	resp := uc.buildResponse(f)

	elapsed := uc.now().Sub(start)
	if uc.metrics != nil {
		uc.metrics.RecordPrediction(ticker, resp.PredictedPrice)
		uc.metrics.RecordLatency("forecast", elapsed.Seconds())
	}
	uc.l.Info("forecast served",
		applogger.String("ticker", ticker),
		applogger.Int("days", horizon),
		applogger.Int("observations", history.Len()),
		applogger.Float64("predicted_price", resp.PredictedPrice),
		applogger.Duration("duration_ms", elapsed),
	)
	uc.publish(ctx, resp)
	return resp, nil
}

func (uc *ForecastUseCase) buildResponse(f *models.Forecast) *models.ForecastResponse {
	current := f.History.Last().Close
	final := f.Predicted[len(f.Predicted)-1]
	change := final - current
	pct := 0.0
	if current != 0 {
		pct = change / current * 100
	}

	tail := f.History.Tail(uc.cfg.ChartDays)
	hist := models.SeriesData{
		Dates:  make([]string, len(tail)),
		Prices: make([]float64, len(tail)),
	}
	for i, p := range tail {
		hist.Dates[i] = util.FormatDay(p.Date)
		hist.Prices[i] = round2(p.Close)
	}

	future := models.SeriesData{
		Dates:  make([]string, len(f.Dates)),
		Prices: make([]float64, len(f.Predicted)),
	}
	for i, d := range f.Dates {
		future.Dates[i] = util.FormatDay(d)
	}
	for i, v := range f.Predicted {
		future.Prices[i] = round2(v)
	}

	return &models.ForecastResponse{
		Ticker:         f.Ticker,
		CurrentPrice:   round2(current),
		PredictedPrice: round2(final),
		PriceChange:    round2(change),
		PercentChange:  round2(pct),
		PredictionDays: f.Days,
		HistoricalData: hist,
		FutureData:     future,
		Timestamp:      uc.now().UTC().Format(time.RFC3339),
	}
}

func (uc *ForecastUseCase) publish(ctx context.Context, resp *models.ForecastResponse) {
	if uc.events == nil {
		return
	}
	err := uc.events.PublishForecastCompleted(ctx, models.ForecastCompletedEvent{
		RequestID:      uuid.NewString(),
		Ticker:         resp.Ticker,
		Days:           resp.PredictionDays,
		CurrentPrice:   resp.CurrentPrice,
		PredictedPrice: resp.PredictedPrice,
		At:             uc.now().UTC(),
	})
	if err != nil {
		uc.l.Warn("publish forecast event failed",
			applogger.String("ticker", resp.Ticker),
			applogger.Error(err),
		)
	}
}

// Health reports whether a model is loaded and, if so, which.
func (uc *ForecastUseCase) Health() models.HealthStatus {
	h := models.HealthStatus{
		Status:    "healthy",
		Timestamp: uc.now().UTC().Format(time.RFC3339),
	}
	if meta, ok := uc.sc.Metadata(); ok {
		h.ModelLoaded = true
		h.ModelTicker = meta.Ticker
		h.SequenceLength = meta.SequenceLength
		h.TrainDate = meta.TrainDate
	}
	return h
}

func (uc *ForecastUseCase) recordError(kind string) {
	if uc.metrics != nil {
		uc.metrics.RecordError(kind)
	}
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
