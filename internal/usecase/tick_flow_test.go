package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeFlow/internal/domain/models"
	pkgkafka "TradeFlow/pkg/kafka"
	"TradeFlow/pkg/logger"
	"TradeFlow/pkg/metrics"
)

type recordingHandler struct {
	mu    sync.Mutex
	ticks []*models.Tick
	err   error
}

func (h *recordingHandler) HandleTick(_ context.Context, t *models.Tick) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ticks = append(h.ticks, t)
	return h.err
}

type recordingPublisher struct {
	published []*models.Tick
	closed    bool
}

func (p *recordingPublisher) Publish(_ context.Context, t *models.Tick) error {
	p.published = append(p.published, t)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

type memTicks struct {
	stored []*models.Tick
}

func (m *memTicks) StoreTicks(_ context.Context, ticks []*models.Tick) error {
	m.stored = append(m.stored, ticks...)
	return nil
}

type memCandles struct {
	mu      sync.Mutex
	candles []models.Candle
}

func (m *memCandles) SaveCandles(_ context.Context, cs []models.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles = append(m.candles, cs...)
	return nil
}

type memFeatures struct {
	mu       sync.Mutex
	features []models.FeatureVector
}

func (m *memFeatures) SaveFeature(_ context.Context, fv models.FeatureVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = append(m.features, fv)
	return nil
}

func TestTickProcessorRoutesByBackend(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	direct := &recordingHandler{}

	require.NoError(t, NewTickProcessor(pub, direct, metrics.Nop{}, BackendKafka).Process(ctx, tick(1, 100, 1)))
	assert.Len(t, pub.published, 1)
	assert.Empty(t, direct.ticks)

	require.NoError(t, NewTickProcessor(pub, direct, metrics.Nop{}, BackendDirect).Process(ctx, tick(2, 100, 1)))
	assert.Len(t, pub.published, 1)
	assert.Len(t, direct.ticks, 1)

	assert.Error(t, NewTickProcessor(pub, direct, metrics.Nop{}, "carrier-pigeon").Process(ctx, tick(3, 100, 1)))
	assert.Error(t, NewTickProcessor(pub, direct, metrics.Nop{}, BackendDirect).Process(ctx, nil))

	p := NewTickProcessor(pub, direct, metrics.Nop{}, BackendKafka)
	require.NoError(t, p.Close())
	assert.True(t, pub.closed)
}

func TestKafkaTicksHandlerPermanentFailures(t *testing.T) {
	h := NewKafkaTicksHandler("ticks", &recordingHandler{}, metrics.Nop{})
	assert.Equal(t, "ticks", h.Topic())

	err := h.Handle(context.Background(), []byte("{not json"))
	assert.True(t, pkgkafka.IsPermanent(err))

	bad, _ := json.Marshal(models.Tick{Market: models.MarketCrypto, Symbol: "BTCUSDT", Price: -1, ReceiveTS: 1})
	err = h.Handle(context.Background(), bad)
	assert.True(t, pkgkafka.IsPermanent(err))
}

func TestKafkaTicksHandlerForwardsValidTicks(t *testing.T) {
	ingest := &recordingHandler{}
	h := NewKafkaTicksHandler("ticks", ingest, metrics.Nop{})

	b, err := json.Marshal(tick(1_700_000_000_000, 101.5, 2))
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))
	require.Len(t, ingest.ticks, 1)
	assert.InDelta(t, 101.5, ingest.ticks[0].Price, 1e-9)

	ingest.err = errors.New("engine down")
	err = h.Handle(context.Background(), b)
	require.Error(t, err)
	assert.False(t, pkgkafka.IsPermanent(err))
}

func TestTickIngestorDropsLateTicks(t *testing.T) {
	engine, _ := newTestCandleEngine(models.TF1m)
	store := &memTicks{}
	ing := NewTickIngestor(engine, store, metrics.Nop{}, logger.Nop())
	ctx := context.Background()

	require.NoError(t, ing.HandleTick(ctx, tick(120_000, 100, 1)))
	require.NoError(t, ing.HandleTick(ctx, tick(60_000, 100, 1)))
	assert.Len(t, store.stored, 1)

	engine.FlushAll(ctx)
	assert.ErrorIs(t, ing.HandleTick(ctx, tick(180_000, 100, 1)), ErrEngineClosed)
}

func TestCandlePipelinePersistsAndBroadcasts(t *testing.T) {
	candles := &memCandles{}
	feats := &memFeatures{}
	bc := &recordingBroadcaster{}
	fe := NewFeatureEngine(3, 3, &staticBooks{}, logger.Nop())
	p := NewCandlePipeline(candles, feats, fe, bc, metrics.Nop{}, logger.Nop())

	batch := []models.Candle{candleAt(0, 100, 1), candleAt(1, 101, 1), candleAt(2, 102, 1), candleAt(3, 103, 1)}
	p.OnCandles(context.Background(), batch)

	assert.Len(t, candles.candles, 4)
	assert.Equal(t, 4, bc.count(models.ChannelCandle))
	assert.Len(t, feats.features, 2)
	assert.Equal(t, 2, bc.count(models.ChannelFeatures))
}

func TestCandlePipelineSurvivesCanceledContext(t *testing.T) {
	candles := &memCandles{}
	p := NewCandlePipeline(candles, &memFeatures{}, NewFeatureEngine(20, 20, &staticBooks{}, logger.Nop()), nil, metrics.Nop{}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.OnCandles(ctx, []models.Candle{candleAt(0, 100, 1)})
	assert.Len(t, candles.candles, 1)
}
