package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/internal/services/features"
	"TradeFlow/pkg/logger"
)

type featureSeries struct {
	prices    *features.Ring
	volumes   *features.Ring
	trs       *features.Ring
	prevClose float64
	hasPrev   bool
}

// FeatureEngine keeps fixed-length rolling buffers per (market, symbol, timeframe)
// and derives a FeatureVector from every finalized candle once the buffer is warm.
type FeatureEngine struct {
	mu      sync.Mutex
	window  int
	minSize int
	series  map[candleKey]*featureSeries
	latest  map[candleKey]models.FeatureVector

	books       domrepo.OrderBookStore
	bookTimeout time.Duration
	log         *logger.Logger
}

func NewFeatureEngine(window, minSize int, books domrepo.OrderBookStore, l *logger.Logger) *FeatureEngine {
	if minSize > window {
		minSize = window
	}
	return &FeatureEngine{
		window:      window,
		minSize:     minSize,
		series:      make(map[candleKey]*featureSeries),
		latest:      make(map[candleKey]models.FeatureVector),
		books:       books,
		bookTimeout: 500 * time.Millisecond,
		log:         l,
	}
}

// OnCandle appends c to its rolling buffers. It returns false while the buffer
// holds fewer than minSize samples.
func (f *FeatureEngine) OnCandle(ctx context.Context, c models.Candle) (models.FeatureVector, bool) {
	key := candleKey{c.Market, c.Symbol, c.Timeframe}

	f.mu.Lock()
	s, ok := f.series[key]
	if !ok {
		s = &featureSeries{
			prices:  features.NewRing(f.window),
			volumes: features.NewRing(f.window),
			trs:     features.NewRing(f.window),
		}
		f.series[key] = s
	}
	s.prices.Push(c.Close)
	s.volumes.Push(c.Volume)
	if s.hasPrev {
		s.trs.Push(features.TrueRange(c.High, c.Low, s.prevClose))
	}
	s.prevClose, s.hasPrev = c.Close, true

	if s.prices.Len() < f.minSize {
		f.mu.Unlock()
		return models.FeatureVector{}, false
	}

	returns := features.LogReturns(s.prices.Values())
	fv := models.FeatureVector{
		Market:            c.Market,
		Symbol:            c.Symbol,
		Timeframe:         c.Timeframe,
		Timestamp:         c.CloseTime(),
		Close:             c.Close,
		RollingVolatility: features.RollingVolatility(returns, f.window),
		ATR:               features.Mean(s.trs.Values()),
	}
	if n := len(returns); n > 0 {
		fv.LogReturn = returns[n-1]
	}
	v0, ok0 := s.volumes.Last(0)
	v1, ok1 := s.volumes.Last(1)
	if ok0 && ok1 {
		fv.VolumeDelta = v0 - v1
	}
	f.mu.Unlock()

	fv.Spread = f.spread(ctx, c.Market, c.Symbol)

	f.mu.Lock()
	f.latest[key] = fv
	f.mu.Unlock()
	return fv, true
}

// Latest returns the most recent vector emitted for a key.
func (f *FeatureEngine) Latest(market models.Market, symbol string, tf models.Timeframe) (models.FeatureVector, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fv, ok := f.latest[candleKey{market, symbol, tf}]
	return fv, ok
}

func (f *FeatureEngine) spread(ctx context.Context, market models.Market, symbol string) float64 {
	if f.books == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, f.bookTimeout)
	defer cancel()
	ob, err := f.books.LatestOrderBook(ctx, market, symbol)
	if err != nil {
		if !errors.Is(err, domrepo.ErrNotFound) {
			f.log.Debug("order book lookup failed", logger.String("symbol", symbol), logger.Error(err))
		}
		return 0
	}
	return ob.Spread()
}
