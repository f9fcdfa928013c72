package di

import (
	"testing"

	"TradeFlow/internal/domain/models"
	internalrepo "TradeFlow/internal/repository"
	"TradeFlow/internal/usecase"
	"TradeFlow/pkg/cache"
	"TradeFlow/pkg/config"
	"TradeFlow/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	c, err := config.Parse([]byte("environment: test\nbackend:\n  type: direct\n" + extra))
	require.NoError(t, err)
	return c
}

func TestProvideRegimeEnginesFromDefaults(t *testing.T) {
	engines, err := ProvideRegimeEngines(directConfig(t, ""))
	require.NoError(t, err)
	assert.NotNil(t, engines.Stability)
	assert.NotNil(t, engines.Fusion)
	assert.NotNil(t, engines.Strategy)
	assert.NotNil(t, engines.Decisions)
}

func TestProvideRegimeEnginesRejectsBadWeight(t *testing.T) {
	cfg := directConfig(t, "")
	cfg.Regime.Weights = map[string]float64{"2x": 1}
	_, err := ProvideRegimeEngines(cfg)
	assert.Error(t, err)
}

func TestOptionalInfrastructureIsNilWhenDisabled(t *testing.T) {
	cfg := directConfig(t, "")

	producer, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	assert.Nil(t, producer)
	assert.IsType(t, internalrepo.NopBroadcaster{}, ProvideBroadcaster(producer, cfg))

	client, err := ProvideRedisClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.IsType(t, &cache.MemoryCache{}, ProvideCache(client, cfg))

	consumer, err := ProvideKafkaConsumer(cfg, logger.Nop(), nil)
	require.NoError(t, err)
	assert.Nil(t, consumer)

	assert.Nil(t, ProvideRegimeClassifier(cfg))
	poller, err := ProvideRegimePoller(cfg, nil, mustEngines(t, cfg), nil, nil, nil, logger.Nop(), nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, poller)
}

func TestProvidePortfolioStoreMemory(t *testing.T) {
	store, err := ProvidePortfolioStore(directConfig(t, ""), nil)
	require.NoError(t, err)
	assert.IsType(t, &internalrepo.MemoryPortfolioStore{}, store)
}

func TestProvidePortfolioStoreRedisNeedsClient(t *testing.T) {
	cfg := directConfig(t, "")
	cfg.Portfolio.Store = "redis"
	_, err := ProvidePortfolioStore(cfg, nil)
	assert.Error(t, err)
}

func TestProvideMarketStreamsOnlyEnabled(t *testing.T) {
	cfg := directConfig(t, `
exchanges:
  binance:
    enabled: true
    symbols: ["BTCUSDT"]
`)
	streams, err := ProvideMarketStreams(cfg, ProvideExchangeHealth(nil), logger.Nop())
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, models.MarketCrypto, streams[0].Market())
}

func TestExchangeConfigCopiesURL(t *testing.T) {
	ec := exchangeConfig(config.ExchangeConfig{WebSocketURL: "ws://local", Symbols: []string{"A"}, OrderBook: true})
	assert.Equal(t, "ws://local", ec.URL)
	assert.Equal(t, []string{"A"}, ec.Symbols)
	assert.True(t, ec.OrderBook)
}

func mustEngines(t *testing.T, cfg *config.Config) usecase.RegimeEngines {
	t.Helper()
	e, err := ProvideRegimeEngines(cfg)
	require.NoError(t, err)
	return e
}
