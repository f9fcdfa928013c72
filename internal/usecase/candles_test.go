package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeFlow/internal/domain/models"
)

type stubReader struct {
	limit int
}

func (s *stubReader) LatestCandles(_ context.Context, _ models.Market, _ string, _ models.Timeframe, limit int) ([]models.Candle, error) {
	s.limit = limit
	return []models.Candle{{Symbol: "BTCUSDT"}}, nil
}

func (s *stubReader) LatestFeatures(_ context.Context, _ models.Market, _ string, _ models.Timeframe, limit int) ([]models.FeatureVector, error) {
	s.limit = limit
	return nil, nil
}

func TestMarketDataUseCaseClampsLimit(t *testing.T) {
	r := &stubReader{}
	uc := NewMarketDataUseCase(r)
	ctx := context.Background()

	_, err := uc.Candles(ctx, SeriesParams{Market: models.MarketCrypto, Symbol: "BTCUSDT", Timeframe: models.TF1m})
	require.NoError(t, err)
	assert.Equal(t, 100, r.limit)

	_, err = uc.Features(ctx, SeriesParams{Market: models.MarketCrypto, Symbol: "BTCUSDT", Timeframe: models.TF1m, Limit: 1e6})
	require.NoError(t, err)
	assert.Equal(t, 5000, r.limit)
}

func TestMarketDataUseCaseValidates(t *testing.T) {
	uc := NewMarketDataUseCase(&stubReader{})
	ctx := context.Background()

	_, err := uc.Candles(ctx, SeriesParams{Market: models.MarketCrypto, Timeframe: models.TF1m})
	assert.Error(t, err)
	_, err = uc.Candles(ctx, SeriesParams{Market: models.MarketCrypto, Symbol: "X", Timeframe: "bogus"})
	assert.Error(t, err)
}
