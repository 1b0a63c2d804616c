package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/domain/service"
	pkgch "PriceCast/pkg/clickhouse"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

// CHPriceStore serves daily closes from a ClickHouse table of
// (ticker, day, close) rows.
type CHPriceStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.MarketData = (*CHPriceStore)(nil)

func NewCHPriceStore(ch *pkgch.Client, table string) *CHPriceStore {
	return &CHPriceStore{db: ch.DB(), table: table, l: applogger.NewNop()}
}

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// Init creates the bars table if missing.
func (s *CHPriceStore) Init(ctx context.Context) error {
	q := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ticker LowCardinality(String),
            day    Date,
            close  Float64
        )
        ENGINE = ReplacingMergeTree
        ORDER BY (ticker, day)
    `, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func (s *CHPriceStore) DailyCloses(ctx context.Context, ticker string, from, to time.Time) (*models.PriceSeries, error) {
	start := time.Now()
	ticker = util.NormalizeTicker(ticker)

	q := fmt.Sprintf(`
        SELECT day, close
        FROM %s
        WHERE ticker = ? AND day >= ? AND day <= ?
        ORDER BY day ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, util.Day(from), util.Day(to))
	if err != nil {
		s.l.Error("clickhouse daily_closes query error",
			applogger.String("table", s.table),
			applogger.String("ticker", ticker),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("daily closes: %w", err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0, 256)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		if p.Close <= 0 {
			continue
		}
		p.Date = util.Day(p.Date)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", service.ErrTickerNotFound, ticker)
	}

	s.l.Debug("clickhouse daily_closes ok",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return &models.PriceSeries{Ticker: ticker, Points: out}, nil
}

// StoreBars upserts a series. Rows are written in multi-row VALUES chunks.
func (s *CHPriceStore) StoreBars(ctx context.Context, series *models.PriceSeries) error {
	if series == nil || len(series.Points) == 0 {
		return nil
	}
	const chunkSize = 2000
	ticker := util.NormalizeTicker(series.Ticker)

	for start := 0; start < len(series.Points); start += chunkSize {
		end := start + chunkSize
		if end > len(series.Points) {
			end = len(series.Points)
		}
		chunk := series.Points[start:end]

		var b strings.Builder
		fmt.Fprintf(&b, "INSERT INTO %s (ticker, day, close) VALUES ", s.table)
		args := make([]interface{}, 0, len(chunk)*3)
		for i, p := range chunk {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(?, ?, ?)")
			args = append(args, ticker, util.Day(p.Date), p.Close)
		}
		if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
			return fmt.Errorf("insert bars %d-%d: %w", start, end, err)
		}
	}

	s.l.Info("clickhouse bars stored",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(series.Points)),
	)
	return nil
}
