//go:build wireinject
// +build wireinject

package di

import (
	"TradeFlow/pkg/config"
	"TradeFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisClient,
		ProvideCache,

		// Repositories
		ProvideCHStore,
		ProvideTickPublisher,
		ProvideBroadcaster,
		ProvideOrderBookStore,
		ProvidePortfolioStore,

		// Market data
		ProvideFeatureEngine,
		ProvideCandlePipeline,
		ProvideCandleEngine,
		ProvideTickIngestor,
		ProvideKafkaTicksHandler,
		ProvideTickProcessor,
		ProvideRealtimePipeline,
		ProvideExchangeHealth,
		ProvideMarketStreams,
		ProvideTickCollector,
		ProvideMarketDataUseCase,
		ProvideKafkaConsumer,

		// Portfolio and regimes
		ProvidePortfolioEngine,
		ProvideExecutionService,
		ProvideRegimeEngines,
		ProvideRegimeClassifier,
		ProvideRegimePoller,

		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
