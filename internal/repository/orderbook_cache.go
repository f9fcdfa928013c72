package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/pkg/cache"
)

// CacheOrderBookStore keeps the latest snapshot per (market, symbol) under orderbook:<market>:<symbol>.
// Snapshots older than ttl are treated as absent.
type CacheOrderBookStore struct {
	c   cache.Service
	ttl time.Duration
}

func NewCacheOrderBookStore(c cache.Service, ttl time.Duration) *CacheOrderBookStore {
	return &CacheOrderBookStore{c: c, ttl: ttl}
}

var _ domrepo.OrderBookStore = (*CacheOrderBookStore)(nil)

func orderBookKey(market models.Market, symbol string) string {
	return cache.Key("orderbook", string(market), symbol)
}

func (s *CacheOrderBookStore) SaveOrderBook(ctx context.Context, ob *models.OrderBook) error {
	if ob == nil {
		return nil
	}
	if err := s.c.Set(ctx, orderBookKey(ob.Market, ob.Symbol), ob, s.ttl); err != nil {
		return fmt.Errorf("save order book: %w", err)
	}
	return nil
}

func (s *CacheOrderBookStore) LatestOrderBook(ctx context.Context, market models.Market, symbol string) (*models.OrderBook, error) {
	var ob models.OrderBook
	if err := s.c.Get(ctx, orderBookKey(market, symbol), &ob); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, domrepo.ErrNotFound
		}
		return nil, fmt.Errorf("latest order book: %w", err)
	}
	return &ob, nil
}
