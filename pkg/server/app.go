package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
	applogger "PriceCast/pkg/logger"
)

// Sweeper drops idle per-client state. The request rate limiter is one.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// Closer is any resource released on shutdown: Kafka producer, caches,
// the ClickHouse client.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the forecast service lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	sweeper    Sweeper
	closers    []Closer
}

// New creates a new App serving handler.
func New(cfg *config.Config, l *applogger.Logger, handler xhttp.Handler, sweeper Sweeper, closers ...Closer) *App {
	if l == nil {
		l = applogger.NewNop()
	}
	srv := xhttp.NewServer(handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetricsPath(metricsPath(cfg)),
		xhttp.WithTrustedProxies(cfg.Server.TrustedProxies...),
		xhttp.WithLogger(l),
	)
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: srv,
		sweeper:    sweeper,
		closers:    closers,
	}
}

func metricsPath(cfg *config.Config) string {
	if !cfg.Metrics.Enabled {
		return ""
	}
	return cfg.Metrics.Path
}

// HTTPServer exposes the underlying server, mainly for tests.
func (a *App) HTTPServer() *xhttp.Server { return a.httpServer }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("model_dir", a.cfg.Model.Dir),
		applogger.String("history_provider", a.cfg.History.Provider),
	)

	if a.cfg.Kafka.Enabled {
		a.l.Info("publishing events", applogger.String("topic", a.cfg.Kafka.Topic), applogger.Strings("brokers", a.cfg.Kafka.Brokers))
	}

	if a.sweeper != nil {
		go a.sweepLoop(ctx, time.Minute)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

func (a *App) sweepLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.sweeper.Sweep(10 * every); n > 0 {
				a.l.Debug("rate limiter swept idle clients", applogger.Int("removed", n))
			}
		}
	}
}

// shutdown gracefully stops the HTTP server, then releases resources in
// registration order.
func (a *App) shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	// flush pending log batches while the producer is still open
	a.l.RemoveCollector()

	for _, c := range a.closers {
		if c.Close == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.l.Warn(c.Name+" close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
