package usecase

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

const (
	notAvailable        = "N/A"
	noDescription       = "No description available."
	descriptionMaxLen   = 200
	descriptionEllipsis = "..."
)

// StockInfoUseCase returns descriptive data for a ticker, cached in process.
type StockInfoUseCase struct {
	src   domrepo.ProfileSource
	cache *gocache.Cache
	l     *applogger.Logger
}

func NewStockInfoUseCase(src domrepo.ProfileSource, ttl time.Duration, l *applogger.Logger) *StockInfoUseCase {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &StockInfoUseCase{
		src:   src,
		cache: gocache.New(ttl, 2*ttl),
		l:     l,
	}
}

func (uc *StockInfoUseCase) Info(ctx context.Context, ticker string) (*models.StockInfo, error) {
	ticker = util.NormalizeTicker(ticker)
	if v, ok := uc.cache.Get(ticker); ok {
		info := v.(models.StockInfo)
		return &info, nil
	}

	p, err := uc.src.Profile(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", ticker, err)
	}

	info := toStockInfo(ticker, p)
	uc.cache.SetDefault(ticker, info)
	uc.l.Debug("stock info fetched", applogger.String("ticker", ticker))
	return &info, nil
}

func toStockInfo(ticker string, p *models.CompanyProfile) models.StockInfo {
	info := models.StockInfo{
		Ticker:    ticker,
		Name:      orDefault(p.LongName, ticker),
		Sector:    orDefault(p.Sector, notAvailable),
		Industry:  orDefault(p.Industry, notAvailable),
		Currency:  orDefault(p.Currency, "USD"),
		MarketCap: notAvailable,
	}
	if p.MarketCap != nil {
		info.MarketCap = *p.MarketCap
	}
	// the ellipsis is appended unconditionally, including to the default
	summary := orDefault(p.Summary, noDescription)
	info.Description = util.Truncate(summary, descriptionMaxLen, "") + descriptionEllipsis
	return info
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
