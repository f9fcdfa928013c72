package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/pkg/cache"
)

func TestCacheOrderBookStore(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	s := NewCacheOrderBookStore(mem, time.Minute)
	ctx := context.Background()

	_, err := s.LatestOrderBook(ctx, models.MarketCrypto, "BTCUSDT")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	ob := &models.OrderBook{
		Market: models.MarketCrypto, Symbol: "BTCUSDT",
		Bids: []models.PriceLevel{{100, 1}}, Asks: []models.PriceLevel{{100.5, 2}},
	}
	require.NoError(t, s.SaveOrderBook(ctx, ob))

	got, err := s.LatestOrderBook(ctx, models.MarketCrypto, "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.Spread(), 1e-9)

	_, err = s.LatestOrderBook(ctx, models.MarketUSStock, "BTCUSDT")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}
