package usecase

import (
	"context"
	"fmt"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
)

// MarketDataUseCase serves persisted candles and features.
type MarketDataUseCase struct {
	store domrepo.MarketDataReader
}

func NewMarketDataUseCase(store domrepo.MarketDataReader) *MarketDataUseCase {
	return &MarketDataUseCase{store: store}
}

type SeriesParams struct {
	Market    models.Market
	Symbol    string
	Timeframe models.Timeframe
	Limit     int
}

func (p *SeriesParams) normalize() error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol required")
	}
	if p.Market == "" {
		return fmt.Errorf("market required")
	}
	if p.Timeframe.Duration() <= 0 {
		return fmt.Errorf("invalid timeframe %q", p.Timeframe)
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 5000 {
		p.Limit = 5000
	}
	return nil
}

func (uc *MarketDataUseCase) Candles(ctx context.Context, p SeriesParams) ([]models.Candle, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	candles, err := uc.store.LatestCandles(ctx, p.Market, p.Symbol, p.Timeframe, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	return candles, nil
}

func (uc *MarketDataUseCase) Features(ctx context.Context, p SeriesParams) ([]models.FeatureVector, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	fvs, err := uc.store.LatestFeatures(ctx, p.Market, p.Symbol, p.Timeframe, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get features: %w", err)
	}
	return fvs, nil
}
