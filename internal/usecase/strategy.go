package usecase

import (
	"sync"
	"time"

	"TradeFlow/internal/domain/models"
)

const (
	StrategyTrendFollowing      = "TrendFollowing"
	StrategyTrendFollowingLong  = "TrendFollowingLong"
	StrategyTrendFollowingShort = "TrendFollowingShort"
	StrategyDipBuying           = "DipBuying"
	StrategyRallySelling        = "RallySelling"
	StrategyMeanReversion       = "MeanReversion"
	StrategyRiskOff             = "RiskOff"
	StrategyDefensive           = "Defensive"
	StrategyNeutral             = "Neutral"
)

var strategyByRegime = map[models.MetaRegimeLabel]string{
	models.MetaTrendingBull:        StrategyTrendFollowingLong,
	models.MetaTrendingBear:        StrategyTrendFollowingShort,
	models.MetaPullbackInUptrend:   StrategyDipBuying,
	models.MetaPullbackInDowntrend: StrategyRallySelling,
	models.MetaRangeBound:          StrategyMeanReversion,
	models.MetaHighVolRiskOff:      StrategyRiskOff,
	models.MetaMixedCondition:      StrategyNeutral,
}

var actionByStrategy = map[string]models.Action{
	StrategyTrendFollowing:      models.ActionBuy,
	StrategyTrendFollowingLong:  models.ActionBuy,
	StrategyDipBuying:           models.ActionBuy,
	StrategyTrendFollowingShort: models.ActionSell,
	StrategyRallySelling:        models.ActionSell,
	StrategyMeanReversion:       models.ActionSell,
	StrategyNeutral:             models.ActionHold,
	StrategyDefensive:           models.ActionHold,
	StrategyRiskOff:             models.ActionHold,
}

// StrategyFor maps a meta-regime to its strategy; unknown labels map to Neutral.
func StrategyFor(label models.MetaRegimeLabel) string {
	if s, ok := strategyByRegime[label]; ok {
		return s
	}
	return StrategyNeutral
}

// ActionFor maps a strategy to its action; unmapped strategies HOLD.
func ActionFor(strategy string) models.Action {
	if a, ok := actionByStrategy[strategy]; ok {
		return a
	}
	return models.ActionHold
}

// StrategySelector tracks the active strategy per instrument.
type StrategySelector struct {
	mu     sync.Mutex
	active map[seriesKey]models.StrategyAssignment
	now    func() time.Time
}

func NewStrategySelector() *StrategySelector {
	return &StrategySelector{active: make(map[seriesKey]models.StrategyAssignment), now: time.Now}
}

// Select returns the assignment for m and whether the strategy switched.
func (s *StrategySelector) Select(m models.MetaRegime) (models.StrategyAssignment, bool) {
	strategy := StrategyFor(m.Label)

	s.mu.Lock()
	defer s.mu.Unlock()
	key := seriesKey{m.Market, m.Symbol}
	if cur, ok := s.active[key]; ok && cur.Strategy == strategy {
		return cur, false
	}
	a := models.StrategyAssignment{
		Market:     m.Market,
		Symbol:     m.Symbol,
		MetaRegime: m.Label,
		Strategy:   strategy,
		AssignedAt: s.now().UTC(),
	}
	s.active[key] = a
	return a, true
}

func (s *StrategySelector) Active(market models.Market, symbol string) (models.StrategyAssignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.active[seriesKey{market, symbol}]
	return a, ok
}
