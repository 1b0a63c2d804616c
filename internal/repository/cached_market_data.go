package repository

import (
	"context"
	"errors"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/pkg/cache"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

// CachedMarketData memoizes another MarketData per (ticker, from day, to day).
// Cache failures fall through to the source.
type CachedMarketData struct {
	src     domrepo.MarketData
	cache   cache.Service
	ttl     time.Duration
	metrics domrepo.Metrics
	l       *applogger.Logger
}

var _ domrepo.MarketData = (*CachedMarketData)(nil)

func NewCachedMarketData(src domrepo.MarketData, c cache.Service, ttl time.Duration, m domrepo.Metrics, l *applogger.Logger) *CachedMarketData {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CachedMarketData{src: src, cache: c, ttl: ttl, metrics: m, l: l}
}

func (c *CachedMarketData) DailyCloses(ctx context.Context, ticker string, from, to time.Time) (*models.PriceSeries, error) {
	ticker = util.NormalizeTicker(ticker)
	key := cache.GenerateKey("history", ticker, util.FormatDay(from), util.FormatDay(to))

	var cached models.PriceSeries
	err := c.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		c.record(true)
		return &cached, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		c.l.Warn("history cache get failed", applogger.String("key", key), applogger.Error(err))
	}
	c.record(false)

	series, err := c.src.DailyCloses(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, series, c.ttl); err != nil {
		c.l.Warn("history cache set failed", applogger.String("key", key), applogger.Error(err))
	}
	return series, nil
}

func (c *CachedMarketData) record(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(hit)
	}
}
