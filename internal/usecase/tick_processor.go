package usecase

import (
	"context"
	"fmt"
	"time"

	"TradeFlow/internal/domain/models"
	drepo "TradeFlow/internal/domain/repository"
)

const (
	BackendKafka  = "kafka"
	BackendDirect = "direct"
)

// TickProcessor routes validated ticks to the configured backend: the Kafka tick bus,
// or straight into aggregation in the same process.
type TickProcessor struct {
	pub     drepo.TickPublisher
	direct  TickHandler
	metrics drepo.Metrics
	backend string
}

func NewTickProcessor(pub drepo.TickPublisher, direct TickHandler, metrics drepo.Metrics, backend string) *TickProcessor {
	return &TickProcessor{pub: pub, direct: direct, metrics: metrics, backend: backend}
}

// Process processes a single tick and routes it to the configured backend.
func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}
	start := time.Now()
	var err error

	switch p.backend {
	case BackendKafka:
		err = p.pub.Publish(ctx, t)
	case BackendDirect:
		err = p.direct.HandleTick(ctx, t)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process tick: %w", err)
	}

	p.metrics.RecordTick(string(t.Market), t.Symbol)
	p.metrics.RecordLastPrice(t.Symbol, t.Price)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// Close closes the publisher if one is configured.
func (p *TickProcessor) Close() error {
	if p.pub != nil {
		return p.pub.Close()
	}
	return nil
}
