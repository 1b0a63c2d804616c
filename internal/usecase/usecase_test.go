package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"PriceCast/internal/artifact"
	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/nn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 14, 15, 30, 0, 0, time.UTC)

type fakeMarket struct {
	series *models.PriceSeries
	err    error
	calls  int
}

func (f *fakeMarket) DailyCloses(_ context.Context, ticker string, _, _ time.Time) (*models.PriceSeries, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s := *f.series
	s.Ticker = ticker
	return &s, nil
}

func closesSeries(n int) *models.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := make([]models.PricePoint, n)
	for i := range pts {
		pts[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Close: 100 + 10*math.Sin(float64(i)/7) + float64(i)*0.1}
	}
	return &models.PriceSeries{Points: pts}
}

type fakeEvents struct {
	trained  []models.ModelTrainedEvent
	forecast []models.ForecastCompletedEvent
}

func (f *fakeEvents) PublishModelTrained(_ context.Context, e models.ModelTrainedEvent) error {
	f.trained = append(f.trained, e)
	return nil
}

func (f *fakeEvents) PublishForecastCompleted(_ context.Context, e models.ForecastCompletedEvent) error {
	f.forecast = append(f.forecast, e)
	return nil
}

func (f *fakeEvents) Close() error { return nil }

type fakeMetrics struct {
	predictions int
	errs        []string
	loaded      bool
}

func (m *fakeMetrics) RecordPrediction(string, float64) { m.predictions++ }
func (m *fakeMetrics) RecordError(kind string)          { m.errs = append(m.errs, kind) }
func (m *fakeMetrics) RecordLatency(string, float64)    {}
func (m *fakeMetrics) SetModelLoaded(loaded bool)       { m.loaded = loaded }
func (m *fakeMetrics) RecordCacheLookup(bool)           {}

func loadedContext(t *testing.T, seqLen int) *artifact.ServiceContext {
	t.Helper()
	m, err := nn.NewModel(nn.Architecture{
		SequenceLength: seqLen,
		Features:       1,
		LSTMUnits:      []int{4},
		DenseUnits:     2,
	}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	s, err := forecast.FitScaler(closesSeries(100).Closes())
	require.NoError(t, err)
	return artifact.NewServiceContext(&artifact.Bundle{
		Model:  m,
		Scaler: s,
		Metadata: models.ModelMetadata{
			Ticker:         "AAPL",
			SequenceLength: seqLen,
			TrainDate:      "2024-06-01 09:00:00",
		},
	})
}

func newForecastUC(t *testing.T, sc *artifact.ServiceContext, data *fakeMarket) (*ForecastUseCase, *fakeEvents, *fakeMetrics) {
	t.Helper()
	ev := &fakeEvents{}
	mt := &fakeMetrics{}
	uc := NewForecastUseCase(sc, data, ev, mt, ForecastConfig{LookbackDays: 365, ChartDays: 90, MaxHorizon: 90}, nil)
	uc.now = func() time.Time { return fixedNow }
	return uc, ev, mt
}

func TestPredict_ModelNotLoaded(t *testing.T) {
	data := &fakeMarket{series: closesSeries(100)}
	uc, _, mt := newForecastUC(t, artifact.NewServiceContext(nil), data)

	_, err := uc.Predict(context.Background(), "AAPL", 5)
	assert.ErrorIs(t, err, service.ErrModelUnavailable)
	assert.Equal(t, 0, data.calls, "provider is not called without a model")
	assert.False(t, mt.loaded)
}

func TestPredict_BuildsResponse(t *testing.T) {
	data := &fakeMarket{series: closesSeries(65)}
	uc, ev, mt := newForecastUC(t, loadedContext(t, 60), data)

	res, err := uc.Predict(context.Background(), "aapl", 5)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, 5, res.PredictionDays)
	require.Len(t, res.FutureData.Prices, 5)
	assert.Equal(t, []string{"2024-03-06", "2024-03-07", "2024-03-08", "2024-03-09", "2024-03-10"}, res.FutureData.Dates)
	assert.Len(t, res.HistoricalData.Prices, 65)
	assert.Equal(t, "2024-03-05", res.HistoricalData.Dates[64])

	assert.Equal(t, res.FutureData.Prices[4], res.PredictedPrice)
	assert.Equal(t, res.HistoricalData.Prices[64], res.CurrentPrice)
	assert.InDelta(t, res.PredictedPrice-res.CurrentPrice, res.PriceChange, 0.011)
	for _, p := range append(res.FutureData.Prices, res.CurrentPrice, res.PercentChange) {
		assert.InDelta(t, math.Round(p*100), p*100, 1e-6, "rounded to cents")
	}
	assert.Equal(t, "2024-06-14T15:30:00Z", res.Timestamp)

	assert.Equal(t, 1, mt.predictions)
	require.Len(t, ev.forecast, 1)
	assert.NotEmpty(t, ev.forecast[0].RequestID)
	assert.Equal(t, 5, ev.forecast[0].Days)
}

func TestPredict_ClampsHorizonAndTrimsHistory(t *testing.T) {
	uc, _, _ := newForecastUC(t, loadedContext(t, 10), &fakeMarket{series: closesSeries(200)})

	res, err := uc.Predict(context.Background(), "AAPL", 120)
	require.NoError(t, err)
	assert.Equal(t, 90, res.PredictionDays)
	assert.Len(t, res.FutureData.Prices, 90)
	assert.Len(t, res.HistoricalData.Prices, 90)
}

func TestPredict_InsufficientHistory(t *testing.T) {
	uc, _, mt := newForecastUC(t, loadedContext(t, 60), &fakeMarket{series: closesSeries(30)})

	_, err := uc.Predict(context.Background(), "AAPL", 5)
	var short *service.InsufficientHistoryError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, 60, short.Need)
	assert.Equal(t, 30, short.Have)
	assert.Contains(t, mt.errs, "insufficient_history")
}

func TestPredict_TickerNotFound(t *testing.T) {
	uc, _, _ := newForecastUC(t, loadedContext(t, 5), &fakeMarket{series: &models.PriceSeries{}})

	_, err := uc.Predict(context.Background(), "ZZZZ", 5)
	assert.ErrorIs(t, err, service.ErrTickerNotFound)
}

func TestPredict_ProviderError(t *testing.T) {
	boom := errors.New("upstream timeout")
	uc, _, mt := newForecastUC(t, loadedContext(t, 5), &fakeMarket{err: boom})

	_, err := uc.Predict(context.Background(), "AAPL", 5)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, mt.errs, "provider")
}

func TestHealth(t *testing.T) {
	down, _, _ := newForecastUC(t, artifact.NewServiceContext(nil), &fakeMarket{})
	h := down.Health()
	assert.Equal(t, "healthy", h.Status)
	assert.False(t, h.ModelLoaded)

	up, _, mt := newForecastUC(t, loadedContext(t, 5), &fakeMarket{})
	h = up.Health()
	assert.True(t, h.ModelLoaded)
	assert.Equal(t, "AAPL", h.ModelTicker)
	assert.Equal(t, 5, h.SequenceLength)
	assert.True(t, mt.loaded)
}

type fakeProfiles struct {
	p     *models.CompanyProfile
	err   error
	calls int
}

func (f *fakeProfiles) Profile(_ context.Context, _ string) (*models.CompanyProfile, error) {
	f.calls++
	return f.p, f.err
}

func TestStockInfo_DefaultsAndCache(t *testing.T) {
	src := &fakeProfiles{p: &models.CompanyProfile{}}
	uc := NewStockInfoUseCase(src, time.Minute, nil)

	info, err := uc.Info(context.Background(), "tsla")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", info.Ticker)
	assert.Equal(t, "TSLA", info.Name)
	assert.Equal(t, "N/A", info.Sector)
	assert.Equal(t, "N/A", info.Industry)
	assert.Equal(t, "USD", info.Currency)
	assert.Equal(t, "N/A", info.MarketCap)
	assert.Equal(t, "No description available....", info.Description)

	_, err = uc.Info(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestStockInfo_TruncatesDescription(t *testing.T) {
	mcap := int64(2_000_000_000)
	long := make([]rune, 250)
	for i := range long {
		long[i] = 'é'
	}
	src := &fakeProfiles{p: &models.CompanyProfile{LongName: "Acme", MarketCap: &mcap, Summary: string(long)}}
	uc := NewStockInfoUseCase(src, time.Minute, nil)

	info, err := uc.Info(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "Acme", info.Name)
	assert.Equal(t, mcap, info.MarketCap)
	assert.Equal(t, string(long[:200])+"...", info.Description)
}

func TestStockInfo_ErrorNotCached(t *testing.T) {
	src := &fakeProfiles{err: service.ErrTickerNotFound}
	uc := NewStockInfoUseCase(src, time.Minute, nil)

	for i := 0; i < 2; i++ {
		_, err := uc.Info(context.Background(), "NOPE")
		assert.ErrorIs(t, err, service.ErrTickerNotFound)
	}
	assert.Equal(t, 2, src.calls)
}

type memLedger struct {
	started  []models.TrainingRun
	finished []models.TrainingRun
}

func (l *memLedger) Init(context.Context) error { return nil }
func (l *memLedger) Start(_ context.Context, r *models.TrainingRun) error {
	l.started = append(l.started, *r)
	return nil
}
func (l *memLedger) Finish(_ context.Context, r *models.TrainingRun) error {
	l.finished = append(l.finished, *r)
	return nil
}
func (l *memLedger) Recent(context.Context, int) ([]models.TrainingRun, error) {
	return l.finished, nil
}
func (l *memLedger) Close() error { return nil }

func smallTraining(dir string) TrainingConfig {
	return TrainingConfig{
		Ticker:          "aapl",
		Start:           time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		ModelDir:        dir,
		SequenceLength:  5,
		TrainSplit:      0.8,
		ValidationSplit: 0.1,
		Epochs:          2,
		BatchSize:       8,
		Patience:        10,
		LearningRate:    0.01,
		LSTMUnits:       3,
		LSTMLayers:      1,
		DenseUnits:      2,
		Dropout:         0.1,
		Seed:            42,
	}
}

func TestTrain_WritesArtifactsAndLedger(t *testing.T) {
	dir := t.TempDir()
	ledger := &memLedger{}
	ev := &fakeEvents{}
	uc := NewTrainingUseCase(&fakeMarket{series: closesSeries(60)}, ledger, ev, nil)
	uc.now = func() time.Time { return fixedNow }

	res, err := uc.Train(context.Background(), smallTraining(dir))
	require.NoError(t, err)

	// 60 closes, L=5 -> 55 sequences, 44 train / 11 test
	assert.Equal(t, 44, res.Run.TrainSamples)
	assert.Equal(t, 11, res.Run.TestSamples)
	assert.Equal(t, 60, res.Run.Observations)
	assert.Equal(t, models.RunSucceeded, res.Run.Status)
	assert.Equal(t, "2024-06-14 15:30:00", res.Metadata.TrainDate)
	assert.Equal(t, "AAPL", res.Metadata.Ticker)

	b, err := artifact.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, res.Metadata, b.Metadata)
	assert.Equal(t, 5, b.Model.WindowSize())

	require.Len(t, ledger.started, 1)
	require.Len(t, ledger.finished, 1)
	assert.Equal(t, ledger.started[0].ID, ledger.finished[0].ID)
	assert.Equal(t, models.RunSucceeded, ledger.finished[0].Status)
	require.Len(t, ev.trained, 1)
	assert.Equal(t, res.Metadata.RunID, ev.trained[0].RunID)
}

func TestTrain_FailureIsRecorded(t *testing.T) {
	dir := t.TempDir()
	ledger := &memLedger{}
	ev := &fakeEvents{}
	uc := NewTrainingUseCase(&fakeMarket{err: service.ErrTickerNotFound}, ledger, ev, nil)

	_, err := uc.Train(context.Background(), smallTraining(dir))
	require.ErrorIs(t, err, service.ErrTickerNotFound)

	require.Len(t, ledger.finished, 1)
	assert.Equal(t, models.RunFailed, ledger.finished[0].Status)
	assert.NotEmpty(t, ledger.finished[0].Error)
	assert.Empty(t, ev.trained)

	_, err = artifact.Load(dir)
	assert.Error(t, err, "no artifacts are written on failure")
}

func TestTrain_TooLittleHistory(t *testing.T) {
	uc := NewTrainingUseCase(&fakeMarket{series: closesSeries(5)}, &memLedger{}, nil, nil)
	_, err := uc.Train(context.Background(), smallTraining(t.TempDir()))
	assert.Error(t, err)
}
