package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	pkgkafka "TradeFlow/pkg/kafka"
)

// KafkaTicksHandler consumes normalized ticks from Kafka and feeds aggregation.
type KafkaTicksHandler struct {
	topic   string
	ingest  TickHandler
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, ingest TickHandler, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, ingest: ingest, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// Handle decodes one tick. Undecodable or invalid payloads are permanent failures and go to the DLQ.
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var t models.Tick
	if err := json.Unmarshal(b, &t); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode tick: %w", err))
	}
	if err := t.Validate(); err != nil {
		h.metrics.RecordDropped("consumer", "invalid")
		return pkgkafka.Permanent(err)
	}

	// receive-to-aggregation lag
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.UnixMilli(t.ReceiveTS)).Seconds())

	start := time.Now()
	err := h.ingest.HandleTick(ctx, &t)
	h.metrics.RecordLatency("aggregate_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_aggregate")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
