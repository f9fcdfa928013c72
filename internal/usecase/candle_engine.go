package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/pkg/logger"
	"TradeFlow/pkg/util"
)

// CandleSink receives finalized candles in bucket order per key.
type CandleSink interface {
	OnCandles(ctx context.Context, candles []models.Candle)
}

type candleKey struct {
	market models.Market
	symbol string
	tf     models.Timeframe
}

type seriesKey struct {
	market models.Market
	symbol string
}

// CandleEngine aggregates ticks into one active candle per (market, symbol, timeframe).
// All state sits behind a single mutex; finalized candles are handed to the sink after it is released.
type CandleEngine struct {
	mu         sync.Mutex
	timeframes []models.Timeframe
	active     map[candleKey]*models.Candle
	lastTS     map[seriesKey]int64
	closed     bool

	sink    CandleSink
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewCandleEngine(timeframes []models.Timeframe, sink CandleSink, metrics domrepo.Metrics, l *logger.Logger) *CandleEngine {
	return &CandleEngine{
		timeframes: append([]models.Timeframe(nil), timeframes...),
		active:     make(map[candleKey]*models.Candle),
		lastTS:     make(map[seriesKey]int64),
		sink:       sink,
		metrics:    metrics,
		log:        l,
	}
}

// ProcessTick folds t into every configured timeframe. Bucket rollover finalizes the
// active candle and synthesizes gap candles for every skipped bucket.
func (e *CandleEngine) ProcessTick(ctx context.Context, t *models.Tick) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("process tick: %w", err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	sk := seriesKey{t.Market, t.Symbol}
	if last, ok := e.lastTS[sk]; ok && t.ReceiveTS < last {
		e.mu.Unlock()
		e.metrics.RecordDropped("candles", "late_tick")
		return fmt.Errorf("%w: receive_ts %d before %d", ErrLateTick, t.ReceiveTS, last)
	}
	e.lastTS[sk] = t.ReceiveTS

	var finalized []models.Candle
	for _, tf := range e.timeframes {
		finalized = e.apply(candleKey{t.Market, t.Symbol, tf}, t, finalized)
	}
	e.mu.Unlock()

	e.dispatch(ctx, finalized)
	return nil
}

// apply must be called with e.mu held.
func (e *CandleEngine) apply(key candleKey, t *models.Tick, out []models.Candle) []models.Candle {
	step := key.tf.Millis()
	bucket := util.BucketStart(t.ReceiveTS, step)

	c, ok := e.active[key]
	if !ok {
		e.active[key] = newCandle(key, bucket, t)
		return out
	}
	if bucket == c.BucketStart {
		c.High = max(c.High, t.Price)
		c.Low = min(c.Low, t.Price)
		c.Close = t.Price
		c.Volume += t.Quantity
		c.Trades++
		return out
	}

	// bucket > c.BucketStart: receive timestamps are monotonic per series.
	out = append(out, *c)
	prev := c.BucketStart
	for bucket > prev+step {
		prev += step
		out = append(out, models.Candle{
			Market:      key.market,
			Symbol:      key.symbol,
			Timeframe:   key.tf,
			BucketStart: prev,
			Open:        c.Close,
			High:        c.Close,
			Low:         c.Close,
			Close:       c.Close,
			Gap:         true,
		})
	}
	e.active[key] = newCandle(key, bucket, t)
	return out
}

func newCandle(key candleKey, bucket int64, t *models.Tick) *models.Candle {
	return &models.Candle{
		Market:      key.market,
		Symbol:      key.symbol,
		Timeframe:   key.tf,
		BucketStart: bucket,
		Open:        t.Price,
		High:        t.Price,
		Low:         t.Price,
		Close:       t.Price,
		Volume:      t.Quantity,
		Trades:      1,
	}
}

// FlushAll finalizes every active candle without gap-filling and closes the engine.
// Subsequent ProcessTick calls return ErrEngineClosed.
func (e *CandleEngine) FlushAll(ctx context.Context) int {
	e.mu.Lock()
	e.closed = true
	out := make([]models.Candle, 0, len(e.active))
	for _, c := range e.active {
		out = append(out, *c)
	}
	e.active = make(map[candleKey]*models.Candle)
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Market != b.Market {
			return a.Market < b.Market
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Timeframe != b.Timeframe {
			return a.Timeframe.Duration() < b.Timeframe.Duration()
		}
		return a.BucketStart < b.BucketStart
	})
	e.dispatch(ctx, out)
	e.log.Info("candle engine flushed", logger.Int("candles", len(out)))
	return len(out)
}

// Active returns a copy of the active candle for a key.
func (e *CandleEngine) Active(market models.Market, symbol string, tf models.Timeframe) (models.Candle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.active[candleKey{market, symbol, tf}]
	if !ok {
		return models.Candle{}, false
	}
	return *c, true
}

func (e *CandleEngine) dispatch(ctx context.Context, candles []models.Candle) {
	if len(candles) == 0 {
		return
	}
	for i := range candles {
		e.metrics.RecordCandle(string(candles[i].Timeframe), candles[i].Gap)
	}
	if e.sink != nil {
		e.sink.OnCandles(ctx, candles)
	}
}
