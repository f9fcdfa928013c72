package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"TradeFlow/internal/domain/models"
	"TradeFlow/internal/domain/repository"
	"TradeFlow/internal/domain/service"
	"TradeFlow/internal/handler/api"
	mid "TradeFlow/internal/middleware"
	internalrepo "TradeFlow/internal/repository"
	"TradeFlow/internal/service/exchange"
	"TradeFlow/internal/services/analytics"
	"TradeFlow/internal/usecase"
	"TradeFlow/pkg/cache"
	pkgch "TradeFlow/pkg/clickhouse"
	"TradeFlow/pkg/config"
	xhttp "TradeFlow/pkg/http"
	pkgkafka "TradeFlow/pkg/kafka"
	"TradeFlow/pkg/logger"
	"TradeFlow/pkg/metrics"
	"TradeFlow/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

const (
	orderBookTTL   = 30 * time.Second
	localCacheTTL  = 2 * time.Second
	pollerLockKey  = "regime:poller:leader"
	bootstrapLimit = 10 * time.Second
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient creates a ClickHouse client and applies the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ClickHouseSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func ProvideCHStore(client *pkgch.Client, l *logger.Logger) *internalrepo.CHStore {
	return internalrepo.NewCHStore(client, l)
}

// ProvideKafkaProducer creates the shared producer. It is nil when no broker is configured,
// which is only valid with the direct backend.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.TickPublisher {
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.TicksTopic)
}

// ProvideBroadcaster publishes live updates to the live topic, or drops them without a broker.
func ProvideBroadcaster(producer *pkgkafka.Producer, cfg *config.Config) repository.Broadcaster {
	if producer == nil {
		return internalrepo.NopBroadcaster{}
	}
	return internalrepo.NewKafkaBroadcaster(producer, cfg.Kafka.LiveTopic)
}

// ProvideRedisClient returns nil when redis is disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client, err := cache.NewRedisClient(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return client, nil
}

// ProvideCache layers a short-lived in-process cache over redis when available.
func ProvideCache(client *redis.Client, cfg *config.Config) cache.Service {
	if client == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(cache.NewRedisCache(client, cfg.Redis.Prefix), localCacheTTL)
}

func ProvideOrderBookStore(c cache.Service) repository.OrderBookStore {
	return internalrepo.NewCacheOrderBookStore(c, orderBookTTL)
}

// ProvidePortfolioStore picks the redis or in-memory store. The store also keeps the execution ledger.
func ProvidePortfolioStore(cfg *config.Config, client *redis.Client) (repository.PortfolioStore, error) {
	if cfg.Portfolio.Store == "redis" {
		if client == nil {
			return nil, fmt.Errorf("portfolio store: redis is not enabled")
		}
		return internalrepo.NewRedisPortfolioStore(client, cfg.Redis.Prefix), nil
	}
	return internalrepo.NewMemoryPortfolioStore(), nil
}

func ProvideFeatureEngine(cfg *config.Config, books repository.OrderBookStore, l *logger.Logger) *usecase.FeatureEngine {
	return usecase.NewFeatureEngine(cfg.Features.Window, cfg.Features.MinSize, books, l)
}

func ProvideCandlePipeline(
	store *internalrepo.CHStore,
	features *usecase.FeatureEngine,
	broadcast repository.Broadcaster,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.CandlePipeline {
	return usecase.NewCandlePipeline(store, store, features, broadcast, m, l)
}

func ProvideCandleEngine(cfg *config.Config, pipe *usecase.CandlePipeline, m repository.Metrics, l *logger.Logger) (*usecase.CandleEngine, error) {
	tfs, err := models.ParseTimeframes(cfg.Candles.Timeframes)
	if err != nil {
		return nil, fmt.Errorf("candles.timeframes: %w", err)
	}
	return usecase.NewCandleEngine(tfs, pipe, m, l), nil
}

func ProvideTickIngestor(engine *usecase.CandleEngine, store *internalrepo.CHStore, m repository.Metrics, l *logger.Logger) *usecase.TickIngestor {
	return usecase.NewTickIngestor(engine, store, m, l)
}

// ProvideKafkaTicksHandler consumes the ticks topic into the ingestor.
func ProvideKafkaTicksHandler(cfg *config.Config, ingest *usecase.TickIngestor, m repository.Metrics) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, ingest, m)
}

func ProvideTickProcessor(pub repository.TickPublisher, ingest *usecase.TickIngestor, m repository.Metrics, cfg *config.Config) *usecase.TickProcessor {
	return usecase.NewTickProcessor(pub, ingest, m, cfg.Backend.Type)
}

// ProvideRealtimePipeline buffers connector output ahead of the tick processor.
func ProvideRealtimePipeline(proc *usecase.TickProcessor, m repository.Metrics, l *logger.Logger, cfg *config.Config) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(proc, m, l, mid.WithBufferSize(cfg.Backend.BufferSize))
}

func ProvideExchangeHealth(m repository.Metrics) *exchange.Health {
	return exchange.NewHealth(m)
}

// ProvideMarketStreams builds one connector per enabled exchange.
func ProvideMarketStreams(cfg *config.Config, health *exchange.Health, l *logger.Logger) ([]repository.MarketStream, error) {
	var streams []repository.MarketStream
	add := func(market models.Market, ec config.ExchangeConfig) error {
		if !ec.Enabled {
			return nil
		}
		s, err := exchange.New(market, exchangeConfig(ec), health, l.With(logger.String("market", string(market))))
		if err != nil {
			return fmt.Errorf("exchange %s: %w", market, err)
		}
		streams = append(streams, s)
		return nil
	}
	if err := add(models.MarketCrypto, cfg.Exchanges.Binance); err != nil {
		return nil, err
	}
	if err := add(models.MarketUSStock, cfg.Exchanges.Alpaca); err != nil {
		return nil, err
	}
	return streams, nil
}

func exchangeConfig(ec config.ExchangeConfig) exchange.Config {
	return exchange.Config{
		URL:               ec.WebSocketURL,
		APIKey:            ec.APIKey,
		APISecret:         ec.APISecret,
		Symbols:           ec.Symbols,
		OrderBook:         ec.OrderBook,
		ReconnectDelay:    ec.ReconnectDelay,
		MaxReconnectDelay: ec.MaxReconnectDelay,
		HeartbeatTimeout:  ec.HeartbeatTimeout,
		PingInterval:      ec.PingInterval,
	}
}

func ProvideTickCollector(
	streams []repository.MarketStream,
	pipe *mid.RealtimePipeline,
	books repository.OrderBookStore,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.TickCollector {
	return usecase.NewTickCollector(streams, pipe, books, m, l)
}

func ProvideMarketDataUseCase(store *internalrepo.CHStore) *usecase.MarketDataUseCase {
	return usecase.NewMarketDataUseCase(store)
}

// ProvidePortfolioEngine seeds the risk configuration and summary on first start.
func ProvidePortfolioEngine(cfg *config.Config, store repository.PortfolioStore, m repository.Metrics, l *logger.Logger) (*usecase.PortfolioEngine, error) {
	engine := usecase.NewPortfolioEngine(store, m, l)
	ctx, cancel := context.WithTimeout(context.Background(), bootstrapLimit)
	defer cancel()
	seed := models.RiskConfiguration{
		TotalCapital:        cfg.Risk.TotalCapital,
		RiskPerTrade:        cfg.Risk.RiskPerTrade,
		MaxExposurePerAsset: cfg.Risk.MaxExposurePerAsset,
		MaxTotalExposure:    cfg.Risk.MaxTotalExposure,
		ATRMultiplier:       cfg.Risk.ATRMultiplier,
		KellyEnabled:        cfg.Risk.KellyEnabled,
	}
	if err := engine.Bootstrap(ctx, seed); err != nil {
		return nil, fmt.Errorf("portfolio bootstrap: %w", err)
	}
	return engine, nil
}

func ProvideExecutionService(
	cfg *config.Config,
	portfolio *usecase.PortfolioEngine,
	store repository.PortfolioStore,
	features *usecase.FeatureEngine,
	broadcast repository.Broadcaster,
	l *logger.Logger,
) (*usecase.ExecutionService, error) {
	tf, err := models.ParseTimeframe(cfg.Execution.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("execution.timeframe: %w", err)
	}
	return usecase.NewExecutionService(portfolio, store, features, tf, broadcast, l), nil
}

// ProvideRegimeEngines builds stability, fusion, strategy and decision stages.
func ProvideRegimeEngines(cfg *config.Config) (usecase.RegimeEngines, error) {
	tfs, err := models.ParseTimeframes(cfg.Regime.Timeframes)
	if err != nil {
		return usecase.RegimeEngines{}, fmt.Errorf("regime.timeframes: %w", err)
	}
	weights := make(map[models.Timeframe]float64, len(cfg.Regime.Weights))
	for k, w := range cfg.Regime.Weights {
		tf, err := models.ParseTimeframe(k)
		if err != nil {
			return usecase.RegimeEngines{}, fmt.Errorf("regime.weights: %w", err)
		}
		weights[tf] = w
	}
	return usecase.RegimeEngines{
		Stability: usecase.NewStabilityTracker(cfg.Regime.StabilityWindow, cfg.Regime.MinConfirmations, cfg.Regime.ConfidenceThreshold),
		Fusion:    usecase.NewFusionEngine(tfs, weights),
		Strategy:  usecase.NewStrategySelector(),
		Decisions: usecase.NewDecisionEngine(cfg.Decision.Threshold, cfg.Decision.Cooldown),
	}, nil
}

// ProvideRegimeClassifier returns nil when no classifier endpoint is configured.
func ProvideRegimeClassifier(cfg *config.Config) service.RegimeClassifier {
	if cfg.Regime.ClassifierURL == "" {
		return nil
	}
	return analytics.NewHTTPRegimeClassifier(cfg.Regime.ClassifierURL, cfg.Regime.Timeout)
}

// ProvideRegimePoller returns nil without a classifier. The leader lock is only taken
// against redis, where it is shared between processes.
func ProvideRegimePoller(
	cfg *config.Config,
	classifier service.RegimeClassifier,
	engines usecase.RegimeEngines,
	store *internalrepo.CHStore,
	broadcast repository.Broadcaster,
	m repository.Metrics,
	l *logger.Logger,
	c cache.Service,
	redisClient *redis.Client,
	exec *usecase.ExecutionService,
) (*usecase.RegimePoller, error) {
	if classifier == nil {
		return nil, nil
	}
	tfs, err := models.ParseTimeframes(cfg.Regime.Timeframes)
	if err != nil {
		return nil, fmt.Errorf("regime.timeframes: %w", err)
	}
	instruments := make([]models.Instrument, 0, len(cfg.Regime.Instruments))
	for _, in := range cfg.Regime.Instruments {
		market, err := models.ParseMarket(in.Market)
		if err != nil {
			return nil, fmt.Errorf("regime.instruments: %w", err)
		}
		instruments = append(instruments, models.Instrument{Market: market, Symbol: in.Symbol})
	}

	var opts []usecase.PollerOption
	if redisClient != nil {
		opts = append(opts, usecase.WithLeaderLock(c, pollerLockKey))
	}
	if cfg.Execution.AutoExecute {
		opts = append(opts, usecase.WithAutoExecution(exec))
	}
	return usecase.NewRegimePoller(classifier, engines, store, broadcast, m, l.With(logger.String("component", "regime_poller")),
		instruments, tfs, cfg.Regime.PollInterval, opts...), nil
}

// ProvideKafkaConsumer creates the ticks consumer; nil under the direct backend.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger, m repository.Metrics) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, _ kafka.Message, _ []byte, _ error) {
			m.RecordError("consume_" + topic)
		},
	})
	return consumer, nil
}

// ProvideHTTPServer registers the REST handlers on the shared echo server.
func ProvideHTTPServer(
	cfg *config.Config,
	l *logger.Logger,
	portfolio *usecase.PortfolioEngine,
	exec *usecase.ExecutionService,
	engines usecase.RegimeEngines,
	health *exchange.Health,
	marketData *usecase.MarketDataUseCase,
) *xhttp.Server {
	handlers := []xhttp.Handler{
		api.NewPortfolioHandler(l, portfolio, exec),
		api.NewRegimeHandler(l, engines, health),
		api.NewMarketDataHandler(l, marketData),
	}
	return xhttp.NewServer(l, handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	collector *usecase.TickCollector,
	processor *usecase.TickProcessor,
	candles *usecase.CandleEngine,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	poller *usecase.RegimePoller,
	httpServer *xhttp.Server,
	chClient *pkgch.Client,
	redisClient *redis.Client,
	c cache.Service,
) *server.App {
	comps := server.Components{
		Collector:  collector,
		Processor:  processor,
		Candles:    candles,
		Poller:     poller,
		HTTPServer: httpServer,
		ClickHouse: chClient,
		Redis:      redisClient,
	}
	if consumer != nil {
		comps.Consumer = consumer
		comps.TicksHandler = kh
	}
	if closer, ok := c.(io.Closer); ok {
		comps.Cache = closer
	}
	return server.New(cfg, l, comps)
}
