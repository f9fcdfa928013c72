package usecase

import (
	"fmt"
	"sync"
	"time"

	"TradeFlow/internal/domain/models"
)

type lastDecision struct {
	strategy string
	at       time.Time
}

// DecisionEngine gates strategy signals into decisions. The per-symbol
// last-decision record is owned by the engine instance.
type DecisionEngine struct {
	mu        sync.Mutex
	threshold float64
	cooldown  time.Duration
	last      map[string]lastDecision
	latest    map[string]models.Decision
	now       func() time.Time
}

func NewDecisionEngine(threshold float64, cooldown time.Duration) *DecisionEngine {
	return &DecisionEngine{
		threshold: threshold,
		cooldown:  cooldown,
		last:      make(map[string]lastDecision),
		latest:    make(map[string]models.Decision),
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (d *DecisionEngine) WithClock(now func() time.Time) *DecisionEngine {
	d.now = now
	return d
}

// Decide returns ErrLowConfidence, ErrDuplicateStrategy or ErrCooldownActive when the signal is gated.
func (d *DecisionEngine) Decide(market models.Market, symbol string, meta models.MetaRegimeLabel, strategy string, confidence float64) (models.Decision, error) {
	if confidence < d.threshold {
		return models.Decision{}, fmt.Errorf("%w: %.2f < %.2f", ErrLowConfidence, confidence, d.threshold)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now().UTC()
	if prev, ok := d.last[symbol]; ok {
		if prev.strategy == strategy {
			return models.Decision{}, fmt.Errorf("%w: %s %s", ErrDuplicateStrategy, symbol, strategy)
		}
		if now.Sub(prev.at) < d.cooldown {
			return models.Decision{}, fmt.Errorf("%w: %s until %s", ErrCooldownActive, symbol, prev.at.Add(d.cooldown).Format(time.RFC3339))
		}
	}

	dec := models.Decision{
		Market:     market,
		Symbol:     symbol,
		MetaRegime: meta,
		Strategy:   strategy,
		Action:     ActionFor(strategy),
		Confidence: confidence,
		Timestamp:  now,
	}
	d.last[symbol] = lastDecision{strategy: strategy, at: now}
	d.latest[symbol] = dec
	return dec, nil
}

// Latest returns the last emitted decision for a symbol.
func (d *DecisionEngine) Latest(symbol string) (models.Decision, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dec, ok := d.latest[symbol]
	return dec, ok
}
