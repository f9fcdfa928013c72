package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeFlow/internal/domain/models"
	"TradeFlow/pkg/logger"
	"TradeFlow/pkg/metrics"
)

type captureSink struct {
	mu      sync.Mutex
	candles []models.Candle
}

func (s *captureSink) OnCandles(_ context.Context, cs []models.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles = append(s.candles, cs...)
}

func (s *captureSink) byTimeframe(tf models.Timeframe) []models.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Candle
	for _, c := range s.candles {
		if c.Timeframe == tf {
			out = append(out, c)
		}
	}
	return out
}

func newTestCandleEngine(tfs ...models.Timeframe) (*CandleEngine, *captureSink) {
	sink := &captureSink{}
	return NewCandleEngine(tfs, sink, metrics.Nop{}, logger.Nop()), sink
}

func tick(ts int64, price, qty float64) *models.Tick {
	return &models.Tick{
		Market:     models.MarketCrypto,
		Symbol:     "BTCUSDT",
		Price:      price,
		Quantity:   qty,
		Side:       models.SideBuy,
		ExchangeTS: ts,
		ReceiveTS:  ts,
	}
}

func TestCandleEngineSingleBucket(t *testing.T) {
	e, sink := newTestCandleEngine(models.TF1m)
	ctx := context.Background()

	base := int64(1_700_000_040_000) // 1m aligned
	prices := []float64{100, 105, 95, 101}
	for i, p := range prices {
		require.NoError(t, e.ProcessTick(ctx, tick(base+int64(i)*1000, p, 0.5)))
	}
	assert.Empty(t, sink.candles)

	// next bucket finalizes the first
	require.NoError(t, e.ProcessTick(ctx, tick(base+60_000, 102, 1)))
	got := sink.byTimeframe(models.TF1m)
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, base, c.BucketStart)
	assert.Equal(t, 100.0, c.Open)
	assert.Equal(t, 105.0, c.High)
	assert.Equal(t, 95.0, c.Low)
	assert.Equal(t, 101.0, c.Close)
	assert.InDelta(t, 2.0, c.Volume, 1e-12)
	assert.Equal(t, int64(4), c.Trades)
	assert.False(t, c.Gap)

	active, ok := e.Active(models.MarketCrypto, "BTCUSDT", models.TF1m)
	require.True(t, ok)
	assert.Equal(t, base+60_000, active.BucketStart)
	assert.Equal(t, 102.0, active.Open)
}

func TestCandleEngineGapFill(t *testing.T) {
	e, sink := newTestCandleEngine(models.TF1m)
	ctx := context.Background()

	base := int64(1_700_000_040_000)
	require.NoError(t, e.ProcessTick(ctx, tick(base+500, 100, 1)))
	require.NoError(t, e.ProcessTick(ctx, tick(base+1500, 110, 1)))
	// k = 4 buckets later
	require.NoError(t, e.ProcessTick(ctx, tick(base+4*60_000+10, 120, 1)))

	got := sink.byTimeframe(models.TF1m)
	require.Len(t, got, 4, "one real candle plus k-1 gap candles")
	assert.False(t, got[0].Gap)
	for i := 1; i < 4; i++ {
		g := got[i]
		assert.True(t, g.Gap)
		assert.Equal(t, base+int64(i)*60_000, g.BucketStart)
		assert.Equal(t, 110.0, g.Open)
		assert.Equal(t, 110.0, g.High)
		assert.Equal(t, 110.0, g.Low)
		assert.Equal(t, 110.0, g.Close)
		assert.Zero(t, g.Volume)
	}
}

func TestCandleEngineMultipleTimeframes(t *testing.T) {
	e, sink := newTestCandleEngine(models.TF1m, models.TF5m)
	ctx := context.Background()

	base := int64(1_700_000_100_000) // 5m aligned
	require.NoError(t, e.ProcessTick(ctx, tick(base, 100, 1)))
	require.NoError(t, e.ProcessTick(ctx, tick(base+60_000, 101, 1)))
	require.NoError(t, e.ProcessTick(ctx, tick(base+5*60_000, 102, 1)))

	oneMin := sink.byTimeframe(models.TF1m)
	fiveMin := sink.byTimeframe(models.TF5m)
	require.Len(t, oneMin, 5)
	require.Len(t, fiveMin, 1)
	assert.Equal(t, 100.0, fiveMin[0].Open)
	assert.Equal(t, 101.0, fiveMin[0].Close)
	assert.InDelta(t, 2.0, fiveMin[0].Volume, 1e-12)
	for _, c := range append(oneMin, fiveMin...) {
		assert.Zero(t, c.BucketStart%c.Timeframe.Millis())
	}
}

func TestCandleEngineLateTick(t *testing.T) {
	e, sink := newTestCandleEngine(models.TF1m)
	ctx := context.Background()

	base := int64(1_700_000_040_000)
	require.NoError(t, e.ProcessTick(ctx, tick(base+60_000, 100, 1)))
	err := e.ProcessTick(ctx, tick(base+59_000, 90, 1))
	assert.ErrorIs(t, err, ErrLateTick)

	active, ok := e.Active(models.MarketCrypto, "BTCUSDT", models.TF1m)
	require.True(t, ok)
	assert.Equal(t, 100.0, active.Low)
	assert.Empty(t, sink.candles)
}

func TestCandleEngineFlushAll(t *testing.T) {
	e, sink := newTestCandleEngine(models.TF1m, models.TF1h)
	ctx := context.Background()

	base := int64(1_700_002_800_000)
	require.NoError(t, e.ProcessTick(ctx, tick(base, 100, 1)))
	other := tick(base+10, 3000, 2)
	other.Symbol = "ETHUSDT"
	require.NoError(t, e.ProcessTick(ctx, other))

	n := e.FlushAll(ctx)
	assert.Equal(t, 4, n)
	require.Len(t, sink.candles, 4)
	for _, c := range sink.candles {
		assert.False(t, c.Gap)
	}

	_, ok := e.Active(models.MarketCrypto, "BTCUSDT", models.TF1m)
	assert.False(t, ok)
	assert.ErrorIs(t, e.ProcessTick(ctx, tick(base+3_600_000, 1, 1)), ErrEngineClosed)
	assert.Zero(t, e.FlushAll(ctx))
}

func TestCandleEngineRejectsInvalidTick(t *testing.T) {
	e, _ := newTestCandleEngine(models.TF1m)
	bad := tick(1_700_000_040_000, 0, 1)
	assert.Error(t, e.ProcessTick(context.Background(), bad))
}

func TestCandleEngineConcurrentSymbols(t *testing.T) {
	e, sink := newTestCandleEngine(models.TF1m)
	ctx := context.Background()
	base := int64(1_700_000_040_000)

	var wg sync.WaitGroup
	for _, sym := range []string{"A", "B", "C", "D"} {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tk := tick(base+int64(i)*1000, 10, 1)
				tk.Symbol = sym
				_ = e.ProcessTick(ctx, tk)
			}
		}(sym)
	}
	wg.Wait()
	e.FlushAll(ctx)

	vol := map[string]float64{}
	for _, c := range sink.byTimeframe(models.TF1m) {
		vol[c.Symbol] += c.Volume
	}
	for _, sym := range []string{"A", "B", "C", "D"} {
		assert.InDelta(t, 100.0, vol[sym], 1e-9)
	}
}
