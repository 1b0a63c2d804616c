package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/artifact"
	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/nn"
	"PriceCast/internal/usecase"
)

type stubMarket struct {
	n   int
	err error
}

func (s stubMarket) DailyCloses(_ context.Context, ticker string, _, to time.Time) (*models.PriceSeries, error) {
	if s.err != nil {
		return nil, s.err
	}
	pts := make([]models.PricePoint, s.n)
	start := to.AddDate(0, 0, -s.n)
	for i := range pts {
		pts[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Close: 150 + float64(i%7)}
	}
	return &models.PriceSeries{Ticker: ticker, Points: pts}, nil
}

type stubProfiles struct {
	err error
}

func (s stubProfiles) Profile(_ context.Context, ticker string) (*models.CompanyProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.CompanyProfile{Ticker: ticker, LongName: "Apple Inc.", Sector: "Technology", Summary: "Designs phones."}, nil
}

func serviceContext(t *testing.T, loaded bool) *artifact.ServiceContext {
	t.Helper()
	if !loaded {
		return artifact.NewServiceContext(nil)
	}
	m, err := nn.NewModel(nn.Architecture{SequenceLength: 10, Features: 1, LSTMUnits: []int{3}, DenseUnits: 2}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	s, err := forecast.FitScaler([]float64{140, 160})
	require.NoError(t, err)
	return artifact.NewServiceContext(&artifact.Bundle{
		Model:    m,
		Scaler:   s,
		Metadata: models.ModelMetadata{Ticker: "AAPL", SequenceLength: 10},
	})
}

func newServer(t *testing.T, loaded bool, market stubMarket, profiles stubProfiles, mw ...echo.MiddlewareFunc) *echo.Echo {
	t.Helper()
	fc := usecase.NewForecastUseCase(serviceContext(t, loaded), market, nil, nil, usecase.ForecastConfig{}, nil)
	info := usecase.NewStockInfoUseCase(profiles, time.Minute, nil)
	e := echo.New()
	NewForecastEchoHandler(nil, fc, info, mw...).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPredict_OK(t *testing.T) {
	e := newServer(t, true, stubMarket{n: 120}, stubProfiles{})

	rec := do(e, http.MethodPost, "/api/predict", `{"ticker":"aapl","days":7}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res models.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, 7, res.PredictionDays)
	assert.Len(t, res.FutureData.Dates, 7)
	assert.Len(t, res.HistoricalData.Dates, 90)
}

func TestPredict_DefaultDays(t *testing.T) {
	e := newServer(t, true, stubMarket{n: 120}, stubProfiles{})

	rec := do(e, http.MethodPost, "/api/predict", `{"ticker":"AAPL"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 30, decode(t, rec)["prediction_days"])
}

func TestPredict_Errors(t *testing.T) {
	tests := []struct {
		name   string
		loaded bool
		market stubMarket
		body   string
		status int
		detail string
	}{
		{"model missing", false, stubMarket{n: 120}, `{"ticker":"AAPL"}`, http.StatusServiceUnavailable, "Model not loaded. Please train the model first."},
		{"unknown ticker", true, stubMarket{err: service.ErrTickerNotFound}, `{"ticker":"zzzz"}`, http.StatusNotFound, "Stock ticker 'ZZZZ' not found"},
		{"short history", true, stubMarket{n: 4}, `{"ticker":"AAPL"}`, http.StatusBadRequest, "Insufficient data. Need at least 10 days of historical data."},
		{"provider failure", true, stubMarket{err: errors.New("connection reset")}, `{"ticker":"AAPL"}`, http.StatusInternalServerError, "Prediction error: connection reset"},
		{"negative days", true, stubMarket{n: 120}, `{"ticker":"AAPL","days":-3}`, http.StatusBadRequest, "days must be greater than or equal to 1"},
		{"missing ticker", true, stubMarket{n: 120}, `{"days":3}`, http.StatusBadRequest, "ticker is required"},
		{"bad ticker", true, stubMarket{n: 120}, `{"ticker":"not a ticker"}`, http.StatusBadRequest, ""},
		{"malformed json", true, stubMarket{n: 120}, `{"ticker":`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServer(t, tt.loaded, tt.market, stubProfiles{})
			rec := do(e, http.MethodPost, "/api/predict", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode(t, rec)
			if tt.detail != "" {
				assert.Equal(t, tt.detail, body["detail"])
			} else {
				assert.NotEmpty(t, body["detail"])
			}
		})
	}
}

func TestPredict_ShortHistoryCarriesParams(t *testing.T) {
	e := newServer(t, true, stubMarket{n: 4}, stubProfiles{})

	rec := do(e, http.MethodPost, "/api/predict", `{"ticker":"AAPL"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	params, ok := decode(t, rec)["params"].(map[string]interface{})
	require.True(t, ok, rec.Body.String())
	assert.EqualValues(t, 10, params["need"])
	assert.EqualValues(t, 4, params["have"])
}

func TestPredict_RateLimited(t *testing.T) {
	e := newServer(t, true, stubMarket{n: 120}, stubProfiles{}, ratelimit.Middleware(ratelimit.New(1, 0)))

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/api/predict", `{"ticker":"AAPL","days":1}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodPost, "/api/predict", `{"ticker":"AAPL","days":1}`).Code)
	// other routes are not limited
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health", "").Code)
}

func TestStockInfo(t *testing.T) {
	e := newServer(t, true, stubMarket{}, stubProfiles{})

	rec := do(e, http.MethodGet, "/api/stock-info/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "AAPL", body["ticker"])
	assert.Equal(t, "Apple Inc.", body["name"])
	assert.Equal(t, "N/A", body["industry"])
	assert.Equal(t, "N/A", body["market_cap"])
	assert.Equal(t, "Designs phones....", body["description"])
}

func TestStockInfo_NotFound(t *testing.T) {
	e := newServer(t, true, stubMarket{}, stubProfiles{err: service.ErrTickerNotFound})

	rec := do(e, http.MethodGet, "/api/stock-info/ZZZZ", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.HasPrefix(decode(t, rec)["detail"].(string), "Stock information not found: "))
}

func TestHealth(t *testing.T) {
	for _, loaded := range []bool{false, true} {
		e := newServer(t, loaded, stubMarket{}, stubProfiles{})
		rec := do(e, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, loaded, body["model_loaded"])
		assert.NotEmpty(t, body["timestamp"])
	}
}
