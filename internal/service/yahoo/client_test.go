package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PriceCast/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `{"chart":{"result":[{"meta":{"symbol":"AAPL","gmtoffset":-14400},
"timestamp":[1704378600,1704205800,1704292200,1704465000],
"indicators":{"quote":[{"close":[181.91,185.64,null,181.18]}]}}],"error":null}}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL), WithRateLimit(0, 0))
}

func TestDailyCloses_SkipsNullsAndSorts(t *testing.T) {
	var gotPath, gotInterval, gotUA string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(chartBody))
	})

	s, err := c.DailyCloses(context.Background(), "aapl", time.Now().AddDate(-1, 0, 0), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "1d", gotInterval)
	assert.Equal(t, "Mozilla/5.0", gotUA)

	assert.Equal(t, "AAPL", s.Ticker)
	require.Len(t, s.Points, 3)
	assert.Equal(t, []float64{185.64, 181.91, 181.18}, s.Closes())
	assert.Equal(t, "2024-01-02", s.Points[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-01-05", s.Points[2].Date.Format("2006-01-02"))
}

func TestDailyCloses_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})

	_, err := c.DailyCloses(context.Background(), "ZZZZ", time.Now().AddDate(-1, 0, 0), time.Now())
	assert.ErrorIs(t, err, service.ErrTickerNotFound)
}

func TestDailyCloses_EmptyResultIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{},"timestamp":[],"indicators":{"quote":[{"close":[]}]}}],"error":null}}`))
	})

	_, err := c.DailyCloses(context.Background(), "AAPL", time.Now().AddDate(-1, 0, 0), time.Now())
	assert.ErrorIs(t, err, service.ErrTickerNotFound)
}

func TestDailyCloses_ServerErrorIsNotNotFound(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.DailyCloses(context.Background(), "AAPL", time.Now().AddDate(-1, 0, 0), time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrTickerNotFound)
	assert.Equal(t, 1, calls, "no retries")
}

func TestProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v10/finance/quoteSummary/MSFT", r.URL.Path)
		assert.Equal(t, "assetProfile,price", r.URL.Query().Get("modules"))
		_, _ = w.Write([]byte(`{"quoteSummary":{"result":[{
			"assetProfile":{"sector":"Technology","industry":"Software","longBusinessSummary":"Makes software."},
			"price":{"longName":"Microsoft Corporation","currency":"USD","marketCap":{"raw":3100000000000,"fmt":"3.1T"}}}],"error":null}}`))
	})

	p, err := c.Profile(context.Background(), "msft")
	require.NoError(t, err)
	assert.Equal(t, "Microsoft Corporation", p.LongName)
	assert.Equal(t, "Technology", p.Sector)
	assert.Equal(t, "Software", p.Industry)
	require.NotNil(t, p.MarketCap)
	assert.Equal(t, int64(3100000000000), *p.MarketCap)
}

func TestProfile_ErrorIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found"}}}`))
	})

	_, err := c.Profile(context.Background(), "NOPE")
	assert.ErrorIs(t, err, service.ErrTickerNotFound)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	c := New(WithBaseURL("http://127.0.0.1:0"), WithRateLimit(0.001, 1))
	// drain the single token
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.DailyCloses(ctx, "AAPL", time.Now(), time.Now())
	assert.Error(t, err)
}
