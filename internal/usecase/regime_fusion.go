package usecase

import (
	"math"
	"sync"
	"time"

	"TradeFlow/internal/domain/models"
)

// DefaultTimeframeWeights favour longer timeframes.
var DefaultTimeframeWeights = map[models.Timeframe]float64{
	models.TF1h:  0.40,
	models.TF15m: 0.30,
	models.TF5m:  0.20,
	models.TF1m:  0.10,
}

// Fuse applies the priority rules to a stable-state set. order must list timeframes longest first.
func Fuse(r map[models.Timeframe]models.RegimeLabel, order []models.Timeframe, weights map[models.Timeframe]float64) (models.MetaRegimeLabel, float64) {
	return fuseLabel(r, order), fusedConfidence(r, weights)
}

func fuseLabel(r map[models.Timeframe]models.RegimeLabel, order []models.Timeframe) models.MetaRegimeLabel {
	at := func(i int) models.RegimeLabel {
		if i < 0 || i >= len(order) {
			return ""
		}
		return r[order[i]]
	}
	count := func(l models.RegimeLabel) int {
		n := 0
		for _, v := range r {
			if v == l {
				n++
			}
		}
		return n
	}
	shortest := at(len(order) - 1)

	if at(0) == models.RegimeCrisis {
		return models.MetaHighVolRiskOff
	}
	if at(1) == models.RegimeCrisis && at(2) == models.RegimeCrisis {
		return models.MetaHighVolRiskOff
	}
	if at(0) == models.RegimeBull && at(1) == models.RegimeBull {
		if count(models.RegimeBull) >= 3 {
			return models.MetaTrendingBull
		}
		if shortest == models.RegimeBear {
			return models.MetaPullbackInUptrend
		}
	}
	if at(0) == models.RegimeBear && at(1) == models.RegimeBear {
		if count(models.RegimeBear) >= 3 {
			return models.MetaTrendingBear
		}
		if shortest == models.RegimeBull {
			return models.MetaPullbackInDowntrend
		}
	}
	if count(models.RegimeSideways) >= 3 {
		return models.MetaRangeBound
	}
	return models.MetaMixedCondition
}

func fusedConfidence(r map[models.Timeframe]models.RegimeLabel, weights map[models.Timeframe]float64) float64 {
	score := 0.0
	for tf, l := range r {
		if l.Directional() {
			score += weights[tf]
		}
	}
	return math.Round(math.Min(score, 1)*100) / 100
}

// FusionEngine fuses per-instrument stable states and remembers the last label
// of each instrument for change detection.
type FusionEngine struct {
	mu      sync.Mutex
	order   []models.Timeframe
	weights map[models.Timeframe]float64
	last    map[seriesKey]models.MetaRegime
	now     func() time.Time
}

func NewFusionEngine(timeframes []models.Timeframe, weights map[models.Timeframe]float64) *FusionEngine {
	if len(weights) == 0 {
		weights = DefaultTimeframeWeights
	}
	return &FusionEngine{
		order:   models.SortLongestFirst(timeframes),
		weights: weights,
		last:    make(map[seriesKey]models.MetaRegime),
		now:     time.Now,
	}
}

// Evaluate fuses components and reports whether the label differs from the previous evaluation.
func (f *FusionEngine) Evaluate(market models.Market, symbol string, components map[models.Timeframe]models.RegimeLabel) (models.MetaRegime, bool) {
	label, conf := Fuse(components, f.order, f.weights)
	comps := make(map[models.Timeframe]models.RegimeLabel, len(components))
	for k, v := range components {
		comps[k] = v
	}
	m := models.MetaRegime{
		Market:      market,
		Symbol:      symbol,
		Label:       label,
		Confidence:  conf,
		Components:  comps,
		EvaluatedAt: f.now().UTC(),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := seriesKey{market, symbol}
	prev, seen := f.last[key]
	f.last[key] = m
	return m, !seen || prev.Label != m.Label
}

// Latest returns the last fused result for an instrument.
func (f *FusionEngine) Latest(market models.Market, symbol string) (models.MetaRegime, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.last[seriesKey{market, symbol}]
	return m, ok
}
