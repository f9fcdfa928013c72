package usecase

import (
	"sync"

	"TradeFlow/internal/domain/models"
)

type stabilityKey struct {
	market models.Market
	symbol string
	tf     models.Timeframe
}

type stabilityWindow struct {
	obs    []models.RegimeObservation
	stable *models.StableRegimeState
}

// StabilityTracker smooths raw classifier output by majority vote over a sliding window.
type StabilityTracker struct {
	mu            sync.Mutex
	window        int
	minConfirm    int
	minConfidence float64
	windows       map[stabilityKey]*stabilityWindow
}

func NewStabilityTracker(window, minConfirm int, minConfidence float64) *StabilityTracker {
	return &StabilityTracker{
		window:        window,
		minConfirm:    minConfirm,
		minConfidence: minConfidence,
		windows:       make(map[stabilityKey]*stabilityWindow),
	}
}

// Observe feeds one raw observation. Observations under the confidence floor are
// discarded. It reports the current stable state and whether this observation changed it.
func (s *StabilityTracker) Observe(o models.RegimeObservation) (models.StableRegimeState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stabilityKey{o.Market, o.Symbol, o.Timeframe}
	w, ok := s.windows[key]
	if !ok {
		w = &stabilityWindow{obs: make([]models.RegimeObservation, 0, s.window)}
		s.windows[key] = w
	}
	if o.Confidence < s.minConfidence {
		return current(w), false
	}

	if len(w.obs) == s.window {
		copy(w.obs, w.obs[1:])
		w.obs = w.obs[:s.window-1]
	}
	w.obs = append(w.obs, o)

	winner, ok := s.majority(w.obs)
	if !ok {
		return current(w), false
	}
	if w.stable != nil && w.stable.State == winner.State {
		return *w.stable, false
	}
	w.stable = &models.StableRegimeState{
		Market:      o.Market,
		Symbol:      o.Symbol,
		Timeframe:   o.Timeframe,
		State:       winner.State,
		Label:       winner.Label,
		ConfirmedAt: o.ObservedAt,
	}
	return *w.stable, true
}

// majority returns the newest observation of a state that holds at least minConfirm votes.
// The newest observation's state wins ties.
func (s *StabilityTracker) majority(obs []models.RegimeObservation) (models.RegimeObservation, bool) {
	counts := make(map[int]int, len(obs))
	for _, o := range obs {
		counts[o.State]++
	}
	var (
		best  models.RegimeObservation
		found bool
	)
	for i := len(obs) - 1; i >= 0; i-- {
		o := obs[i]
		if counts[o.State] < s.minConfirm {
			continue
		}
		if !found || counts[o.State] > counts[best.State] {
			best, found = o, true
		}
	}
	return best, found
}

func current(w *stabilityWindow) models.StableRegimeState {
	if w.stable == nil {
		return models.StableRegimeState{}
	}
	return *w.stable
}

// Stable returns the confirmed label per timeframe for an instrument.
func (s *StabilityTracker) Stable(market models.Market, symbol string) map[models.Timeframe]models.RegimeLabel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.Timeframe]models.RegimeLabel)
	for k, w := range s.windows {
		if k.market == market && k.symbol == symbol && w.stable != nil {
			out[k.tf] = w.stable.Label
		}
	}
	return out
}

// States returns the confirmed states of an instrument.
func (s *StabilityTracker) States(market models.Market, symbol string) []models.StableRegimeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StableRegimeState
	for k, w := range s.windows {
		if k.market == market && k.symbol == symbol && w.stable != nil {
			out = append(out, *w.stable)
		}
	}
	return out
}
