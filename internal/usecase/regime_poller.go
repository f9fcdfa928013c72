package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/internal/domain/service"
	"TradeFlow/pkg/cache"
	"TradeFlow/pkg/logger"
)

// RegimeEngines groups the stateful stages the poller drives.
type RegimeEngines struct {
	Stability *StabilityTracker
	Fusion    *FusionEngine
	Strategy  *StrategySelector
	Decisions *DecisionEngine
}

// RegimePoller polls the classifier on a fixed cadence and runs stability, fusion,
// strategy selection and decision gating for every configured instrument.
type RegimePoller struct {
	classifier  service.RegimeClassifier
	engines     RegimeEngines
	audit       domrepo.AuditLog
	broadcast   domrepo.Broadcaster
	executor    *ExecutionService
	metrics     domrepo.Metrics
	log         *logger.Logger
	instruments []models.Instrument
	timeframes  []models.Timeframe
	interval    time.Duration

	// lock elects one poller when several processes share a Redis.
	lock    cache.Service
	lockKey string
	leader  bool

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

type PollerOption func(*RegimePoller)

// WithLeaderLock makes the poller skip cycles unless it holds key in c.
func WithLeaderLock(c cache.Service, key string) PollerOption {
	return func(p *RegimePoller) {
		p.lock = c
		p.lockKey = key
	}
}

// WithAutoExecution executes BUY and SELL decisions as they are emitted.
func WithAutoExecution(s *ExecutionService) PollerOption {
	return func(p *RegimePoller) { p.executor = s }
}

func NewRegimePoller(
	classifier service.RegimeClassifier,
	engines RegimeEngines,
	audit domrepo.AuditLog,
	broadcast domrepo.Broadcaster,
	metrics domrepo.Metrics,
	l *logger.Logger,
	instruments []models.Instrument,
	timeframes []models.Timeframe,
	interval time.Duration,
	opts ...PollerOption,
) *RegimePoller {
	p := &RegimePoller{
		classifier:  classifier,
		engines:     engines,
		audit:       audit,
		broadcast:   broadcast,
		metrics:     metrics,
		log:         l,
		instruments: instruments,
		timeframes:  models.SortLongestFirst(timeframes),
		interval:    interval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the polling loop in the background until Stop or ctx cancellation.
func (p *RegimePoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx)
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (p *RegimePoller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	if p.lock != nil && p.leader {
		uctx, c := context.WithTimeout(context.Background(), 2*time.Second)
		defer c()
		_ = p.lock.Unlock(uctx, p.lockKey)
	}
}

func (p *RegimePoller) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.log.Info("regime poller started", logger.Duration("interval", p.interval), logger.Int("instruments", len(p.instruments)))
	for {
		p.PollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce runs one cycle over every instrument.
func (p *RegimePoller) PollOnce(ctx context.Context) {
	if !p.acquire(ctx) {
		return
	}
	start := time.Now()
	for _, inst := range p.instruments {
		if ctx.Err() != nil {
			return
		}
		p.pollInstrument(ctx, inst)
	}
	p.metrics.RecordLatency("regime_poll", time.Since(start).Seconds())
}

func (p *RegimePoller) acquire(ctx context.Context) bool {
	if p.lock == nil {
		return true
	}
	ttl := 3 * p.interval
	if p.leader {
		ok, err := p.lock.Expire(ctx, p.lockKey, ttl)
		if err == nil && ok {
			return true
		}
		p.leader = false
	}
	ok, err := p.lock.TryLock(ctx, p.lockKey, ttl)
	if err != nil {
		p.log.Warn("poller lock failed", logger.Error(err))
		return false
	}
	if ok {
		p.log.Info("regime poller acquired leadership", logger.String("key", p.lockKey))
	}
	p.leader = ok
	return ok
}

func (p *RegimePoller) pollInstrument(ctx context.Context, inst models.Instrument) {
	for _, tf := range p.timeframes {
		obs, err := p.classifier.Classify(ctx, inst.Market, inst.Symbol, tf)
		if err != nil {
			if !errors.Is(err, service.ErrNoRegime) {
				p.metrics.RecordError("classifier")
			}
			p.log.Debug("classifier skipped timeframe",
				logger.String("symbol", inst.Symbol), logger.String("timeframe", string(tf)), logger.Error(err))
			continue
		}
		stable, changed := p.engines.Stability.Observe(obs)
		if !changed {
			continue
		}
		p.log.Info("regime confirmed",
			logger.String("symbol", inst.Symbol),
			logger.String("timeframe", string(tf)),
			logger.String("regime", string(stable.Label)))
		if err := p.audit.RecordRegime(ctx, stable, obs.Confidence); err != nil {
			p.metrics.RecordError("audit")
			p.log.Warn("audit regime failed", logger.Error(err))
		}
		p.publish(ctx, models.ChannelRegime, stable)
	}

	components := p.engines.Stability.Stable(inst.Market, inst.Symbol)
	if len(components) == 0 {
		return
	}
	meta, changed := p.engines.Fusion.Evaluate(inst.Market, inst.Symbol, components)
	if changed {
		p.log.Info("meta regime changed",
			logger.String("symbol", inst.Symbol),
			logger.String("meta_regime", string(meta.Label)),
			logger.Float64("confidence", meta.Confidence))
		if err := p.audit.RecordMetaRegime(ctx, meta); err != nil {
			p.metrics.RecordError("audit")
			p.log.Warn("audit meta regime failed", logger.Error(err))
		}
		p.publish(ctx, models.ChannelMetaRegime, meta)
	}

	assignment, switched := p.engines.Strategy.Select(meta)
	if switched {
		p.log.Info("strategy switched", logger.String("symbol", inst.Symbol), logger.String("strategy", assignment.Strategy))
		p.publish(ctx, models.ChannelStrategy, assignment)
	}

	dec, err := p.engines.Decisions.Decide(inst.Market, inst.Symbol, meta.Label, assignment.Strategy, meta.Confidence)
	if err != nil {
		p.log.Debug("decision gated", logger.String("symbol", inst.Symbol), logger.Error(err))
		return
	}
	p.metrics.RecordDecision(string(dec.Action))
	if err := p.audit.RecordDecision(ctx, dec); err != nil {
		p.metrics.RecordError("audit")
		p.log.Warn("audit decision failed", logger.Error(err))
	}
	p.publish(ctx, models.ChannelDecision, dec)

	if p.executor != nil && dec.Action != models.ActionHold {
		if _, err := p.executor.ExecuteDecision(ctx, dec); err != nil {
			p.log.Info("auto execution skipped", logger.String("symbol", dec.Symbol), logger.Error(err))
		}
	}
}

func (p *RegimePoller) publish(ctx context.Context, channel string, data any) {
	if p.broadcast == nil {
		return
	}
	if err := p.broadcast.Broadcast(ctx, models.Event{Channel: channel, Data: data}); err != nil {
		p.metrics.RecordError("broadcast")
		p.log.Debug("broadcast failed", logger.String("channel", channel), logger.Error(err))
	}
}
