package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TradeFlow/pkg/logger"
	"TradeFlow/pkg/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// PermanentError marks a handler failure that retrying cannot fix, such as an undecodable payload.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the consumer skips retries and parks the message in the DLQ.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads registered topics through a consumer group and hands messages to a worker pool.
// A partition is always served by the same worker, so messages sharing a key are handled in
// log order. Offsets are committed only after a message was handled (or parked in the DLQ).
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	workers  []chan *message
	dlq      *kafka.Writer
	hook     ConsumerHook

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type message struct {
	reader *kafka.Reader
	km     kafka.Message
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(l *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  64,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:      cfg,
		log:      l,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		hook:     NoopHook{},
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		}
	}

	consumerMetricsOnce.Do(initConsumerMetrics)
	return c, nil
}

// RegisterHandler registers a message handler for its topic. Must be called before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) error {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		return fmt.Errorf("handler already registered for topic %s", topic)
	}
	c.handlers[topic] = handler
	return nil
}

// WithHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start launches one fetch loop per topic and the worker pool.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	ctx, c.cancel = context.WithCancel(ctx)

	c.workers = make([]chan *message, c.cfg.WorkerCount)
	for i := range c.workers {
		ch := make(chan *message, c.cfg.BufferSize)
		c.workers[i] = ch
		c.wg.Add(1)
		go c.work(ctx, ch)
	}

	for topic := range c.handlers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers[topic] = reader
		c.wg.Add(1)
		go c.fetch(ctx, topic, reader)
	}

	c.log.Info("kafka consumer started",
		logger.String("group", c.cfg.GroupID),
		logger.Int("workers", c.cfg.WorkerCount),
		logger.Int("topics", len(c.readers)),
	)
	return nil
}

// Stop cancels fetching and waits for in-flight handlers. Unhandled messages stay uncommitted.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("close reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("close dlq writer", logger.Error(err))
			}
		}
		c.log.Info("kafka consumer stopped")
	})
	return stopErr
}

func (c *Consumer) fetch(ctx context.Context, topic string, reader *kafka.Reader) {
	defer c.wg.Done()

	attempt := 0
	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			c.log.Warn("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			if !sleepCtx(ctx, util.Backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
				return
			}
			continue
		}
		attempt = 0

		ch := c.workers[km.Partition%len(c.workers)]
		select {
		case ch <- &message{reader: reader, km: km}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(ch)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(ctx context.Context, ch <-chan *message) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-ch:
			c.handle(ctx, m)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m *message) {
	topic := m.km.Topic
	handler, ok := c.handlers[topic]
	if !ok {
		return
	}
	start := time.Now()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		for attempt := 1; ; attempt++ {
			hctx, hmsg, data, berr := c.hook.BeforeHandle(ctx, topic, m.km, m.km.Value)
			if berr != nil {
				err = berr
				return
			}
			err = handler.Handle(hctx, data)
			c.hook.AfterHandle(hctx, topic, hmsg, data, err)
			if err == nil || attempt > c.cfg.RetryMax || IsPermanent(err) {
				return
			}
			if !sleepCtx(ctx, util.Backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
				return
			}
		}
	}()

	if ctx.Err() != nil && err != nil {
		// shutting down: leave the offset uncommitted so the message is redelivered
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
		c.hook.OnError(ctx, topic, m.km, m.km.Value, err)
		c.log.Error("kafka message handling failed",
			logger.String("topic", topic),
			logger.Int("partition", m.km.Partition),
			logger.Int64("offset", m.km.Offset),
			logger.Error(err),
		)
		if c.dlq == nil {
			consumerHandled.WithLabelValues(topic, result).Inc()
			return
		}
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		dlqErr := c.dlq.WriteMessages(dctx, kafka.Message{
			Topic:   c.cfg.DLQTopic,
			Key:     m.km.Key,
			Value:   m.km.Value,
			Time:    time.Now(),
			Headers: []kafka.Header{{Key: "source_topic", Value: []byte(topic)}},
		})
		cancel()
		if dlqErr != nil {
			c.log.Error("dlq write failed", logger.String("topic", c.cfg.DLQTopic), logger.Error(dlqErr))
			return
		}
		result = "dlq"
	}

	c.commit(m)
	consumerHandled.WithLabelValues(topic, result).Inc()
	consumerHandleLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
}

// commit is detached from the worker context so a handled message is still committed during shutdown.
func (c *Consumer) commit(m *message) {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = m.reader.CommitMessages(cctx, m.km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(util.Backoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Warn("kafka commit failed", logger.String("topic", m.km.Topic), logger.Error(err))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerMetricsOnce   sync.Once
)

func initConsumerMetrics() {
	consumerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "tradeflow_kafka_consumer_queue_depth", Help: "Messages waiting in a worker queue"},
		[]string{"topic"},
	)
	consumerHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "tradeflow_kafka_consumer_messages_total", Help: "Handled messages by result"},
		[]string{"topic", "result"},
	)
	consumerHandleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Name: "tradeflow_kafka_consumer_handle_seconds", Help: "Handling time per message"},
		[]string{"topic"},
	)
}
