package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"TradeFlow/internal/domain/models"
	drepo "TradeFlow/internal/domain/repository"
	mid "TradeFlow/internal/middleware"
	"TradeFlow/pkg/logger"
)

// TickCollector runs every market stream and forwards their output: ticks through the
// realtime pipeline, order-book snapshots into the order-book store.
type TickCollector struct {
	streams []drepo.MarketStream
	pipe    *mid.RealtimePipeline
	books   drepo.OrderBookStore
	metrics drepo.Metrics
	log     *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTickCollector(streams []drepo.MarketStream, pipe *mid.RealtimePipeline, books drepo.OrderBookStore, metrics drepo.Metrics, l *logger.Logger) *TickCollector {
	return &TickCollector{streams: streams, pipe: pipe, books: books, metrics: metrics, log: l}
}

// Start launches one trade and one order-book task per stream and returns immediately.
func (c *TickCollector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.pipe.Start(ctx)

	ticks := make(chan *models.Tick, 1024)
	books := make(chan *models.OrderBook, 64)

	for _, s := range c.streams {
		s := s
		c.wg.Add(2)
		go func() {
			defer c.wg.Done()
			if err := s.StartTradeStream(ctx, ticks); err != nil && !errors.Is(err, context.Canceled) {
				c.log.Error("trade stream stopped", logger.String("market", string(s.Market())), logger.Error(err))
			}
		}()
		go func() {
			defer c.wg.Done()
			err := s.StartOrderBookStream(ctx, books)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
			case errors.Is(err, drepo.ErrOrderBookUnsupported):
				c.log.Info("order book stream not available", logger.String("market", string(s.Market())))
			default:
				c.log.Error("order book stream stopped", logger.String("market", string(s.Market())), logger.Error(err))
			}
		}()
		c.log.Info("market stream started", logger.String("market", string(s.Market())))
	}

	c.wg.Add(1)
	go c.consume(ctx, ticks, books)
	return nil
}

func (c *TickCollector) consume(ctx context.Context, ticks <-chan *models.Tick, books <-chan *models.OrderBook) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticks:
			if t == nil {
				continue
			}
			if err := c.pipe.Process(ctx, t); err != nil {
				c.log.Debug("tick not forwarded", logger.String("symbol", t.Symbol), logger.Error(err))
			}
		case ob := <-books:
			if ob == nil {
				continue
			}
			if err := c.books.SaveOrderBook(ctx, ob); err != nil {
				c.metrics.RecordError("orderbook_store")
				c.log.Debug("save order book failed", logger.String("symbol", ob.Symbol), logger.Error(err))
			}
		}
	}
}

// Shutdown cancels the streams, waits for them up to ctx's deadline and stops the pipeline.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(10 * time.Second):
		err = errors.New("timed out waiting for market streams")
	}
	c.pipe.Stop()
	return err
}
