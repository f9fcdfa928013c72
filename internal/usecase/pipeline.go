package usecase

import (
	"context"
	"time"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/pkg/logger"
)

// CandlePipeline persists and broadcasts finalized candles and drives the feature engine.
// Persistence is fire-and-forget: failures are logged and counted, never retried here.
type CandlePipeline struct {
	candles      domrepo.CandleStore
	featureStore domrepo.FeatureStore
	features     *FeatureEngine
	broadcast    domrepo.Broadcaster
	metrics      domrepo.Metrics
	log          *logger.Logger
	timeout      time.Duration
}

func NewCandlePipeline(
	candles domrepo.CandleStore,
	featureStore domrepo.FeatureStore,
	features *FeatureEngine,
	broadcast domrepo.Broadcaster,
	metrics domrepo.Metrics,
	l *logger.Logger,
) *CandlePipeline {
	return &CandlePipeline{
		candles:      candles,
		featureStore: featureStore,
		features:     features,
		broadcast:    broadcast,
		metrics:      metrics,
		log:          l,
		timeout:      5 * time.Second,
	}
}

// OnCandles runs detached from cancellation so candles flushed at shutdown are still written.
func (p *CandlePipeline) OnCandles(ctx context.Context, candles []models.Candle) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	start := time.Now()
	if err := p.candles.SaveCandles(ctx, candles); err != nil {
		p.metrics.RecordError("candle_store")
		p.log.Error("save candles failed", logger.Int("count", len(candles)), logger.Error(err))
	}
	p.metrics.RecordLatency("candle_store", time.Since(start).Seconds())

	for i := range candles {
		c := candles[i]
		p.publish(ctx, models.ChannelCandle, c)

		fv, ok := p.features.OnCandle(ctx, c)
		if !ok {
			continue
		}
		if err := p.featureStore.SaveFeature(ctx, fv); err != nil {
			p.metrics.RecordError("feature_store")
			p.log.Error("save feature failed",
				logger.String("symbol", fv.Symbol),
				logger.String("timeframe", string(fv.Timeframe)),
				logger.Error(err))
		}
		p.publish(ctx, models.ChannelFeatures, fv)
	}
}

func (p *CandlePipeline) publish(ctx context.Context, channel string, data any) {
	if p.broadcast == nil {
		return
	}
	if err := p.broadcast.Broadcast(ctx, models.Event{Channel: channel, Data: data}); err != nil {
		p.metrics.RecordError("broadcast")
		p.log.Debug("broadcast failed", logger.String("channel", channel), logger.Error(err))
	}
}

var _ CandleSink = (*CandlePipeline)(nil)
