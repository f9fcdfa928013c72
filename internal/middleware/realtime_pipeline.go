package middleware

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/pkg/logger"
	"TradeFlow/pkg/util"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t *models.Tick) error
}

// RealtimePipeline sits between the exchange connectors and the tick processor.
// It drops invalid ticks, optionally transforms them, and buffers ticks while the
// downstream is failing. While any buffered tick is undelivered, including the one
// the drain is retrying, new ticks queue behind it so per-symbol receive order is kept.
type RealtimePipeline struct {
	proc      Proc
	metrics   domrepo.Metrics
	log       *logger.Logger
	bufSize   int
	bufCh     chan *models.Tick
	transform func(*models.Tick) *models.Tick

	// backlog counts ticks accepted into the buffer and not yet delivered.
	backlog atomic.Int64

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	done    chan struct{}
}

type PipelineOption func(*RealtimePipeline)

// WithBufferSize sets the temporary buffer size used while the downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a hook applied to every valid tick before it is forwarded.
func WithTransform(fn func(*models.Tick) *models.Tick) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

// NormalizeSymbol upper-cases the symbol and strips exchange prefixes such as "NASDAQ:".
func NormalizeSymbol(t *models.Tick) *models.Tick {
	s := strings.ToUpper(strings.TrimSpace(t.Symbol))
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	t.Symbol = s
	return t
}

func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, l *logger.Logger, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:    proc,
		metrics: metrics,
		log:     l,
		bufSize: 1000,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Tick, p.bufSize)
	return p
}

// Start launches the background drain of buffered ticks.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.drain(ctx)
}

func (p *RealtimePipeline) drain(ctx context.Context) {
	defer close(p.done)
	attempt := 0
	var pending *models.Tick
	for {
		if pending == nil {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case pending = <-p.bufCh:
			}
		}
		if err := p.proc.Process(ctx, pending); err != nil {
			attempt++
			p.metrics.RecordError("pipeline_flush")
			select {
			case <-p.stopCh:
				p.dropPending()
				return
			case <-ctx.Done():
				p.dropPending()
				return
			case <-time.After(util.Backoff(50*time.Millisecond, 2*time.Second, attempt)):
			}
			continue
		}
		p.backlog.Add(-1)
		attempt = 0
		pending = nil
	}
}

func (p *RealtimePipeline) dropPending() {
	p.backlog.Add(-1)
	p.metrics.RecordDropped("pipeline", "shutdown")
}

// Stop halts the drain. Ticks still buffered are dropped and counted.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	done := p.done
	p.mu.Unlock()
	<-done

	if n := len(p.bufCh); n > 0 {
		p.log.Warn("pipeline stopped with buffered ticks", logger.Int("dropped", n))
		for i := 0; i < n; i++ {
			<-p.bufCh
			p.backlog.Add(-1)
			p.metrics.RecordDropped("pipeline", "shutdown")
		}
	}
}

// Process validates t and forwards it downstream, buffering on downstream failure.
// Invalid ticks are dropped and reported as an error to the caller only.
func (p *RealtimePipeline) Process(ctx context.Context, t *models.Tick) error {
	start := time.Now()
	if err := t.Validate(); err != nil {
		p.metrics.RecordDropped("pipeline", "invalid")
		return fmt.Errorf("invalid tick: %w", err)
	}
	if p.transform != nil {
		t = p.transform(t)
		if err := t.Validate(); err != nil {
			p.metrics.RecordDropped("pipeline", "transform_invalid")
			return fmt.Errorf("invalid tick after transform: %w", err)
		}
	}

	if p.backlog.Load() > 0 {
		return p.enqueue(t, nil)
	}
	if err := p.proc.Process(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		return p.enqueue(t, err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *RealtimePipeline) enqueue(t *models.Tick, cause error) error {
	p.backlog.Add(1)
	select {
	case p.bufCh <- t:
		if cause != nil {
			return fmt.Errorf("pipeline downstream, tick buffered: %w", cause)
		}
		return nil
	default:
		p.backlog.Add(-1)
		p.metrics.RecordDropped("pipeline", "buffer_full")
		return fmt.Errorf("pipeline buffer full, tick dropped")
	}
}

// Buffered reports the number of ticks waiting for the downstream.
func (p *RealtimePipeline) Buffered() int { return int(p.backlog.Load()) }
