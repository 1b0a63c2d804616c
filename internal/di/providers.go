package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	"PriceCast/internal/artifact"
	"PriceCast/internal/domain/repository"
	"PriceCast/internal/handler/api"
	internalrepo "PriceCast/internal/repository"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/service/yahoo"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/cache"
	pkgch "PriceCast/pkg/clickhouse"
	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
	"PriceCast/pkg/server"
	"PriceCast/pkg/util"
)

// Program names the binary; it is stamped on published log batches.
type Program string

// ProvideLogger builds the application logger and, when Kafka is enabled,
// attaches a collector that ships aggregated error logs to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer, program Program) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Source:         string(program),
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideKafkaProducer creates a Kafka producer. It returns nil when Kafka
// is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes domain events to Kafka, or drops them
// when no producer is configured.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
}

// ProvideClickHouseClient connects to ClickHouse when it serves history or
// the archive; otherwise it returns nil.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouseEnabled() {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvidePriceStore creates the ClickHouse daily bar table and returns its
// store, or nil without a client.
func ProvidePriceStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (*internalrepo.CHPriceStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHPriceStore(ch, cfg.ClickHouse.Table)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideHistoryCache builds the history cache backend, or nil for "none".
func ProvideHistoryCache(cfg *config.Config) (cache.Service, error) {
	c := cfg.History.Cache
	switch c.Backend {
	case "memory":
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(c.MemoryMaxSize),
			cache.WithMemoryDefaultTTL(c.TTL),
		), nil
	case "redis", "layered":
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		if c.Backend == "layered" {
			return cache.NewLayeredCache(rc, c.MemoryMaxSize, c.TTL/3), nil
		}
		return rc, nil
	default:
		return nil, nil
	}
}

// ProvideYahooClient creates the Yahoo Finance client.
func ProvideYahooClient(cfg *config.Config, l *applogger.Logger) *yahoo.Client {
	hc := xhttp.NewClient(
		xhttp.WithTimeout(cfg.Yahoo.Timeout),
		xhttp.WithHeader("User-Agent", cfg.Yahoo.UserAgent),
	)
	return yahoo.New(
		yahoo.WithBaseURL(cfg.Yahoo.BaseURL),
		yahoo.WithHTTPClient(hc),
		yahoo.WithRateLimit(cfg.Yahoo.RequestsPerSecond, cfg.Yahoo.Burst),
		yahoo.WithLogger(l),
	)
}

// ProvideMarketData selects the history provider and wraps it with the
// configured cache.
func ProvideMarketData(
	cfg *config.Config,
	yc *yahoo.Client,
	store *internalrepo.CHPriceStore,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) (repository.MarketData, error) {
	var src repository.MarketData = yc
	if cfg.History.Provider == "clickhouse" {
		if store == nil {
			return nil, fmt.Errorf("history provider clickhouse requires a clickhouse connection")
		}
		src = store
	}
	if c == nil {
		return src, nil
	}
	return internalrepo.NewCachedMarketData(src, c, cfg.History.Cache.TTL, m, l), nil
}

func ProvideProfileSource(yc *yahoo.Client) repository.ProfileSource {
	return yc
}

// ProvideServiceContext loads model artifacts once at startup.
func ProvideServiceContext(cfg *config.Config, l *applogger.Logger) *artifact.ServiceContext {
	return artifact.LoadServiceContext(cfg.Model.Dir, l)
}

func ProvideForecastUseCase(
	sc *artifact.ServiceContext,
	data repository.MarketData,
	events repository.EventPublisher,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.ForecastUseCase {
	return usecase.NewForecastUseCase(sc, data, events, m, usecase.ForecastConfig{
		LookbackDays: cfg.History.LookbackDays,
		ChartDays:    cfg.History.ChartDays,
		MaxHorizon:   cfg.Model.MaxHorizon,
	}, l)
}

func ProvideStockInfoUseCase(src repository.ProfileSource, cfg *config.Config, l *applogger.Logger) *usecase.StockInfoUseCase {
	return usecase.NewStockInfoUseCase(src, cfg.StockInfo.CacheTTL, l)
}

// ProvideRateLimiter returns the per-client limiter for POST /api/predict,
// or nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

func ProvideForecastHandler(
	l *applogger.Logger,
	forecasts *usecase.ForecastUseCase,
	info *usecase.StockInfoUseCase,
	limiter *ratelimit.Limiter,
) *api.ForecastEchoHandler {
	var mw []echo.MiddlewareFunc
	if limiter != nil {
		mw = append(mw, ratelimit.Middleware(limiter))
	}
	return api.NewForecastEchoHandler(l, forecasts, info, mw...)
}

// ProvideApp creates the application server and hands it every resource
// that must be released on shutdown.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	h *api.ForecastEchoHandler,
	limiter *ratelimit.Limiter,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	c cache.Service,
) *server.App {
	var sweeper server.Sweeper
	if limiter != nil {
		sweeper = limiter
	}
	var closers []server.Closer
	if c != nil {
		closers = append(closers, server.Closer{Name: "history cache", Close: c.Close})
	}
	if producer != nil {
		closers = append(closers, server.Closer{Name: "kafka producer", Close: producer.Close})
	}
	if ch != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Close: ch.Close})
	}
	return server.New(cfg, l, h, sweeper, closers...)
}

// ProvideRunLedger opens the SQLite training ledger next to the model
// artifacts unless a path is configured.
func ProvideRunLedger(cfg *config.Config) (repository.RunLedger, error) {
	path := cfg.Training.LedgerPath
	if path == "" {
		path = filepath.Join(cfg.Model.Dir, "training_runs.db")
	}
	ledger, err := internalrepo.NewSQLiteRunLedger(path)
	if err != nil {
		return nil, fmt.Errorf("run ledger: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ledger.Init(ctx); err != nil {
		_ = ledger.Close()
		return nil, fmt.Errorf("run ledger schema: %w", err)
	}
	return ledger, nil
}

func ProvideTrainingUseCase(
	data repository.MarketData,
	ledger repository.RunLedger,
	events repository.EventPublisher,
	l *applogger.Logger,
) *usecase.TrainingUseCase {
	return usecase.NewTrainingUseCase(data, ledger, events, l)
}

// ProvideTrainingConfig maps the training section of the config file.
func ProvideTrainingConfig(cfg *config.Config) (usecase.TrainingConfig, error) {
	t := cfg.Training
	start, ok := util.ParseTime(t.StartDate)
	if !ok {
		return usecase.TrainingConfig{}, fmt.Errorf("training.start_date: cannot parse %q", t.StartDate)
	}
	return usecase.TrainingConfig{
		Ticker:          util.NormalizeTicker(t.Ticker),
		Start:           start,
		ModelDir:        cfg.Model.Dir,
		SequenceLength:  t.SequenceLength,
		TrainSplit:      t.TrainSplit,
		ValidationSplit: t.ValidationSplit,
		Epochs:          t.Epochs,
		BatchSize:       t.BatchSize,
		Patience:        t.Patience,
		LearningRate:    t.LearningRate,
		LSTMUnits:       t.Units,
		LSTMLayers:      t.Layers,
		DenseUnits:      t.DenseUnits,
		Dropout:         t.Dropout,
		Seed:            t.Seed,
	}, nil
}

// Trainer bundles the offline training pipeline with the resources it
// owns.
type Trainer struct {
	UseCase *usecase.TrainingUseCase
	Config  usecase.TrainingConfig
	Yahoo   *yahoo.Client
	Archive *internalrepo.CHPriceStore // nil unless ClickHouse is enabled
	Logger  *applogger.Logger

	ledger   repository.RunLedger
	cache    cache.Service
	producer *pkgkafka.Producer
	ch       *pkgch.Client
}

func ProvideTrainer(
	uc *usecase.TrainingUseCase,
	tc usecase.TrainingConfig,
	yc *yahoo.Client,
	archive *internalrepo.CHPriceStore,
	l *applogger.Logger,
	ledger repository.RunLedger,
	c cache.Service,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
) *Trainer {
	return &Trainer{
		UseCase:  uc,
		Config:   tc,
		Yahoo:    yc,
		Archive:  archive,
		Logger:   l,
		ledger:   ledger,
		cache:    c,
		producer: producer,
		ch:       ch,
	}
}

// Close flushes logs and releases everything the trainer opened.
func (t *Trainer) Close() {
	t.Logger.RemoveCollector()
	if err := t.ledger.Close(); err != nil {
		t.Logger.Warn("run ledger close error", applogger.Error(err))
	}
	if t.cache != nil {
		if err := t.cache.Close(); err != nil {
			t.Logger.Warn("history cache close error", applogger.Error(err))
		}
	}
	if t.producer != nil {
		if err := t.producer.Close(); err != nil {
			t.Logger.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if t.ch != nil {
		if err := t.ch.Close(); err != nil {
			t.Logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}
}
