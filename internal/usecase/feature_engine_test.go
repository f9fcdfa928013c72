package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/internal/services/features"
	"TradeFlow/pkg/logger"
)

type staticBooks struct {
	book *models.OrderBook
}

func (s *staticBooks) SaveOrderBook(_ context.Context, ob *models.OrderBook) error {
	s.book = ob
	return nil
}

func (s *staticBooks) LatestOrderBook(context.Context, models.Market, string) (*models.OrderBook, error) {
	if s.book == nil {
		return nil, domrepo.ErrNotFound
	}
	return s.book, nil
}

func candleAt(i int, close, volume float64) models.Candle {
	return models.Candle{
		Market:      models.MarketCrypto,
		Symbol:      "BTCUSDT",
		Timeframe:   models.TF1m,
		BucketStart: int64(i) * 60_000,
		Open:        close,
		High:        close + 1,
		Low:         close - 1,
		Close:       close,
		Volume:      volume,
	}
}

func TestFeatureEngineEmissionThreshold(t *testing.T) {
	const window = 5
	fe := NewFeatureEngine(window, window, nil, logger.Nop())
	ctx := context.Background()

	emitted := 0
	for i := 0; i < window-1; i++ {
		_, ok := fe.OnCandle(ctx, candleAt(i, 100+float64(i), 10))
		if ok {
			emitted++
		}
	}
	assert.Zero(t, emitted, "no vector below minimum size")

	_, ok := fe.OnCandle(ctx, candleAt(window-1, 104, 10))
	assert.True(t, ok)

	closes := []float64{100, 101, 102, 103, 104, 110}
	fv, ok := fe.OnCandle(ctx, candleAt(window, 110, 25))
	require.True(t, ok)

	want := features.RollingVolatility(features.LogReturns(closes[1:]), window)
	assert.InDelta(t, want, fv.RollingVolatility, 1e-12)
	assert.InDelta(t, math.Log(110.0/104.0), fv.LogReturn, 1e-12)
	assert.Equal(t, 15.0, fv.VolumeDelta)
	assert.Equal(t, int64(window+1)*60_000, fv.Timestamp)
	assert.Zero(t, fv.Spread)
}

func TestFeatureEngineATR(t *testing.T) {
	fe := NewFeatureEngine(3, 3, nil, logger.Nop())
	ctx := context.Background()

	fe.OnCandle(ctx, candleAt(0, 100, 1))
	fe.OnCandle(ctx, candleAt(1, 100, 1)) // TR 2
	fv, ok := fe.OnCandle(ctx, candleAt(2, 110, 1))
	require.True(t, ok)
	// second TR: max(2, |111-100|, |109-100|) = 11
	assert.InDelta(t, 6.5, fv.ATR, 1e-12)
}

func TestFeatureEngineSpreadFromOrderBook(t *testing.T) {
	books := &staticBooks{book: &models.OrderBook{
		Bids: []models.PriceLevel{{99.5, 1}, {99, 2}},
		Asks: []models.PriceLevel{{100.25, 1}},
	}}
	fe := NewFeatureEngine(2, 2, books, logger.Nop())
	ctx := context.Background()

	fe.OnCandle(ctx, candleAt(0, 100, 1))
	fv, ok := fe.OnCandle(ctx, candleAt(1, 101, 1))
	require.True(t, ok)
	assert.InDelta(t, 0.75, fv.Spread, 1e-12)

	latest, ok := fe.Latest(models.MarketCrypto, "BTCUSDT", models.TF1m)
	require.True(t, ok)
	assert.Equal(t, fv, latest)
}

func TestFeatureEngineKeysAreIndependent(t *testing.T) {
	fe := NewFeatureEngine(2, 2, nil, logger.Nop())
	ctx := context.Background()

	fe.OnCandle(ctx, candleAt(0, 100, 1))
	other := candleAt(1, 100, 1)
	other.Timeframe = models.TF5m
	_, ok := fe.OnCandle(ctx, other)
	assert.False(t, ok)
}
