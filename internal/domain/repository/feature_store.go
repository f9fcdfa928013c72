package repository

import (
	"context"

	"TradeFlow/internal/domain/models"
)

// MarketDataReader provides read-only access to persisted candles and features.
// Results are ordered newest first.
type MarketDataReader interface {
	LatestCandles(ctx context.Context, market models.Market, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error)
	LatestFeatures(ctx context.Context, market models.Market, symbol string, tf models.Timeframe, limit int) ([]models.FeatureVector, error)
}
