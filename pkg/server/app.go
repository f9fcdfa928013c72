package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TradeFlow/internal/usecase"
	pkgch "TradeFlow/pkg/clickhouse"
	"TradeFlow/pkg/config"
	xhttp "TradeFlow/pkg/http"
	pkgkafka "TradeFlow/pkg/kafka"
	applogger "TradeFlow/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Components is everything the App starts and stops. Optional parts are nil when disabled.
type Components struct {
	Collector    *usecase.TickCollector
	Processor    *usecase.TickProcessor
	Candles      *usecase.CandleEngine
	Consumer     *pkgkafka.Consumer
	TicksHandler pkgkafka.MessageHandler
	Poller       *usecase.RegimePoller
	HTTPServer   *xhttp.Server
	ClickHouse   *pkgch.Client
	Redis        *redis.Client
	Cache        io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	log *applogger.Logger
	c   Components
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	return &App{cfg: cfg, log: l, c: c}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		a.shutdown()
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// Start brings up HTTP, the tick consumer, the market streams and the regime poller in that order.
func (a *App) Start(ctx context.Context) error {
	if err := a.c.HTTPServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.c.Consumer != nil && a.c.TicksHandler != nil {
		if err := a.c.Consumer.RegisterHandler(a.c.TicksHandler); err != nil {
			return err
		}
		if err := a.c.Consumer.Start(ctx); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.c.TicksHandler.Topic()))
	}

	if err := a.c.Collector.Start(ctx); err != nil {
		a.log.Error("collector start error", applogger.Error(err))
		return err
	}
	a.log.Info("collector started", applogger.String("backend", a.cfg.Backend.Type))

	if a.c.Poller != nil {
		a.c.Poller.Start(ctx)
		a.log.Info("regime poller started", applogger.Duration("interval", a.cfg.Regime.PollInterval))
	}
	return nil
}

// shutdown stops producers of work before their sinks: the poller, the consumer, then the
// candle engine flush, the market streams, HTTP and finally the infrastructure clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.log.Info("shutting down...")

	if a.c.Poller != nil {
		a.c.Poller.Stop()
	}

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	start := time.Now()
	n := a.c.Candles.FlushAll(ctx)
	a.log.Info("open candles flushed", applogger.Int("count", n), applogger.Duration("took", time.Since(start)))

	if err := a.c.Collector.Shutdown(ctx); err != nil {
		a.log.Warn("collector stop error", applogger.Error(err))
	}

	if err := a.c.HTTPServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.c.Processor != nil {
		if err := a.c.Processor.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.c.ClickHouse != nil {
		if err := a.c.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.c.Cache != nil {
		_ = a.c.Cache.Close()
	}
	if a.c.Redis != nil {
		if err := a.c.Redis.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
