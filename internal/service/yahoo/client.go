// Package yahoo reads daily closes and company profiles from the public
// Yahoo Finance JSON endpoints.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/repository"
	"PriceCast/internal/domain/service"
	xhttp "PriceCast/pkg/http"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Client is a single-attempt Yahoo Finance client. Outbound calls share a
// token-bucket limiter; nothing is retried.
type Client struct {
	http    *xhttp.Client
	baseURL string
	limiter *rate.Limiter
	log     *applogger.Logger
}

var (
	_ repository.MarketData    = (*Client)(nil)
	_ repository.ProfileSource = (*Client)(nil)
)

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(hc *xhttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit allows rps requests per second with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		log:     applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(
			xhttp.WithTimeout(30*time.Second),
			xhttp.WithHeader("User-Agent", "Mozilla/5.0"),
		)
	}
	return c
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// DailyCloses returns daily closes in [from, to], oldest first. Bars with a
// missing or non-positive close are skipped.
func (c *Client) DailyCloses(ctx context.Context, ticker string, from, to time.Time) (*models.PriceSeries, error) {
	ticker = util.NormalizeTicker(ticker)
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(ticker)),
		QueryParams: map[string][]string{
			"interval": {"1d"},
			"period1":  {strconv.FormatInt(from.Unix(), 10)},
			"period2":  {strconv.FormatInt(to.Unix(), 10)},
			"events":   {"history"},
		},
	}, &resp)
	if err != nil {
		return nil, c.mapError(ticker, "chart", err)
	}
	if e := resp.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, fmt.Errorf("%w: %s", service.ErrTickerNotFound, ticker)
		}
		return nil, fmt.Errorf("yahoo chart %s: %s", ticker, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", service.ErrTickerNotFound, ticker)
	}

	res := resp.Chart.Result[0]
	var closes []*float64
	if len(res.Indicators.Quote) > 0 {
		closes = res.Indicators.Quote[0].Close
	}

	points := make([]models.PricePoint, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		points = append(points, models.PricePoint{
			Date:  util.Day(time.Unix(ts+res.Meta.GMTOffset, 0)),
			Close: *closes[i],
		})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", service.ErrTickerNotFound, ticker)
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return &models.PriceSeries{Ticker: ticker, Points: points}, nil
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Sector              string `json:"sector"`
				Industry            string `json:"industry"`
				LongBusinessSummary string `json:"longBusinessSummary"`
			} `json:"assetProfile"`
			Price struct {
				LongName  string `json:"longName"`
				ShortName string `json:"shortName"`
				Currency  string `json:"currency"`
				MarketCap struct {
					Raw *int64 `json:"raw"`
				} `json:"marketCap"`
			} `json:"price"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"quoteSummary"`
}

// Profile returns descriptive data for ticker.
func (c *Client) Profile(ctx context.Context, ticker string) (*models.CompanyProfile, error) {
	ticker = util.NormalizeTicker(ticker)
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var resp summaryResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         fmt.Sprintf("%s/v10/finance/quoteSummary/%s", c.baseURL, url.PathEscape(ticker)),
		QueryParams: map[string][]string{"modules": {"assetProfile,price"}},
	}, &resp)
	if err != nil {
		return nil, c.mapError(ticker, "quoteSummary", err)
	}
	if e := resp.QuoteSummary.Error; e != nil {
		return nil, fmt.Errorf("%w: %s: %s", service.ErrTickerNotFound, ticker, e.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", service.ErrTickerNotFound, ticker)
	}

	r := resp.QuoteSummary.Result[0]
	return &models.CompanyProfile{
		Ticker:    ticker,
		LongName:  r.Price.LongName,
		Sector:    r.AssetProfile.Sector,
		Industry:  r.AssetProfile.Industry,
		Currency:  r.Price.Currency,
		MarketCap: r.Price.MarketCap.Raw,
		Summary:   r.AssetProfile.LongBusinessSummary,
	}, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("yahoo rate limit: %w", err)
	}
	return nil
}

func (c *Client) mapError(ticker, endpoint string, err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", service.ErrTickerNotFound, ticker)
	}
	c.log.Warn("yahoo request failed",
		applogger.String("endpoint", endpoint),
		applogger.String("ticker", ticker),
		applogger.Error(err),
	)
	return fmt.Errorf("yahoo %s %s: %w", endpoint, ticker, err)
}
