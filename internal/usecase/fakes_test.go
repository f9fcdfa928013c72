package usecase

import (
	"context"
	"sync"

	"TradeFlow/internal/domain/models"
	"TradeFlow/internal/domain/service"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []models.Event
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, ev models.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBroadcaster) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ev := range b.events {
		if ev.Channel == channel {
			n++
		}
	}
	return n
}

type recordingAudit struct {
	mu        sync.Mutex
	regimes   []models.StableRegimeState
	metas     []models.MetaRegime
	decisions []models.Decision
}

func (a *recordingAudit) RecordRegime(_ context.Context, s models.StableRegimeState, _ float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.regimes = append(a.regimes, s)
	return nil
}

func (a *recordingAudit) RecordMetaRegime(_ context.Context, m models.MetaRegime) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metas = append(a.metas, m)
	return nil
}

func (a *recordingAudit) RecordDecision(_ context.Context, d models.Decision) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decisions = append(a.decisions, d)
	return nil
}

// scriptedClassifier answers with a fixed label per timeframe; a missing timeframe yields ErrNoRegime.
type scriptedClassifier struct {
	mu     sync.Mutex
	labels map[models.Timeframe]models.RegimeLabel
	conf   float64
	calls  int
}

var labelState = map[models.RegimeLabel]int{
	models.RegimeBull:     0,
	models.RegimeBear:     1,
	models.RegimeSideways: 2,
	models.RegimeCrisis:   3,
}

func (c *scriptedClassifier) Classify(_ context.Context, market models.Market, symbol string, tf models.Timeframe) (models.RegimeObservation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	l, ok := c.labels[tf]
	if !ok {
		return models.RegimeObservation{}, service.ErrNoRegime
	}
	return models.RegimeObservation{
		Market:     market,
		Symbol:     symbol,
		Timeframe:  tf,
		State:      labelState[l],
		Label:      l,
		Confidence: c.conf,
	}, nil
}

func (c *scriptedClassifier) set(tf models.Timeframe, l models.RegimeLabel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels[tf] = l
}
