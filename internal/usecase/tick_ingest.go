package usecase

import (
	"context"
	"errors"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/pkg/logger"
)

// TickHandler is the aggregation entry point shared by the Kafka consumer and the direct backend.
type TickHandler interface {
	HandleTick(ctx context.Context, t *models.Tick) error
}

// TickIngestor appends ticks to the raw store and folds them into candles.
type TickIngestor struct {
	engine  *CandleEngine
	ticks   domrepo.TickStore
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewTickIngestor(engine *CandleEngine, ticks domrepo.TickStore, metrics domrepo.Metrics, l *logger.Logger) *TickIngestor {
	return &TickIngestor{engine: engine, ticks: ticks, metrics: metrics, log: l}
}

// HandleTick drops late ticks silently; any other aggregation error is returned.
func (i *TickIngestor) HandleTick(ctx context.Context, t *models.Tick) error {
	if err := i.engine.ProcessTick(ctx, t); err != nil {
		if errors.Is(err, ErrLateTick) {
			i.log.Debug("late tick dropped", logger.String("symbol", t.Symbol), logger.Int64("receive_ts", t.ReceiveTS))
			return nil
		}
		return err
	}
	if i.ticks != nil {
		if err := i.ticks.StoreTicks(ctx, []*models.Tick{t}); err != nil {
			i.metrics.RecordError("tick_store")
			i.log.Warn("store tick failed", logger.String("symbol", t.Symbol), logger.Error(err))
		}
	}
	return nil
}

var _ TickHandler = (*TickIngestor)(nil)
