package models

import "time"

// RegimeLabel is the per-timeframe label returned by the classifier.
type RegimeLabel string

const (
	RegimeBull     RegimeLabel = "BULL"
	RegimeBear     RegimeLabel = "BEAR"
	RegimeSideways RegimeLabel = "SIDEWAYS"
	RegimeCrisis   RegimeLabel = "CRISIS"
)

// Directional reports whether the label counts toward fused confidence.
func (l RegimeLabel) Directional() bool { return l == RegimeBull || l == RegimeBear }

// MetaRegimeLabel is the fused cross-timeframe condition.
type MetaRegimeLabel string

const (
	MetaHighVolRiskOff      MetaRegimeLabel = "HIGH_VOL_RISK_OFF"
	MetaTrendingBull        MetaRegimeLabel = "TRENDING_BULL"
	MetaTrendingBear        MetaRegimeLabel = "TRENDING_BEAR"
	MetaPullbackInUptrend   MetaRegimeLabel = "PULLBACK_IN_UPTREND"
	MetaPullbackInDowntrend MetaRegimeLabel = "PULLBACK_IN_DOWNTREND"
	MetaRangeBound          MetaRegimeLabel = "RANGE_BOUND"
	MetaMixedCondition      MetaRegimeLabel = "MIXED_CONDITION"
)

// RegimeObservation is one raw classifier answer for a timeframe.
type RegimeObservation struct {
	Market     Market      `json:"market"`
	Symbol     string      `json:"symbol"`
	Timeframe  Timeframe   `json:"timeframe"`
	State      int         `json:"state"`
	Label      RegimeLabel `json:"regime"`
	Confidence float64     `json:"confidence"`
	ObservedAt time.Time   `json:"observed_at"`
}

// StableRegimeState is the majority-confirmed state of one timeframe.
type StableRegimeState struct {
	Market      Market      `json:"market"`
	Symbol      string      `json:"symbol"`
	Timeframe   Timeframe   `json:"timeframe"`
	State       int         `json:"state"`
	Label       RegimeLabel `json:"regime"`
	ConfirmedAt time.Time   `json:"confirmed_at"`
}

// MetaRegime is the fused result for one instrument.
type MetaRegime struct {
	Market      Market                    `json:"market"`
	Symbol      string                    `json:"symbol"`
	Label       MetaRegimeLabel           `json:"meta_regime"`
	Confidence  float64                   `json:"confidence"`
	Components  map[Timeframe]RegimeLabel `json:"components"`
	EvaluatedAt time.Time                 `json:"evaluated_at"`
}

// StrategyAssignment is the strategy implied by a meta-regime.
type StrategyAssignment struct {
	Market     Market          `json:"market"`
	Symbol     string          `json:"symbol"`
	MetaRegime MetaRegimeLabel `json:"meta_regime"`
	Strategy   string          `json:"strategy"`
	AssignedAt time.Time       `json:"assigned_at"`
}
