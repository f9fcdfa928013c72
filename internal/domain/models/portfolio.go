package models

import "time"

// RiskConfiguration is the single risk policy record.
type RiskConfiguration struct {
	TotalCapital        float64   `json:"total_capital" validate:"gt=0"`
	RiskPerTrade        float64   `json:"risk_per_trade" validate:"gt=0,lte=1"`
	MaxExposurePerAsset float64   `json:"max_exposure_per_asset" validate:"gt=0,lte=1"`
	MaxTotalExposure    float64   `json:"max_total_exposure" validate:"gt=0,lte=1"`
	ATRMultiplier       float64   `json:"atr_multiplier" validate:"gt=0"`
	KellyEnabled        bool      `json:"kelly_enabled"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// PortfolioPosition is the open exposure in one symbol.
type PortfolioPosition struct {
	Symbol       string    `json:"symbol"`
	PositionSize float64   `json:"position_size"`
	AveragePrice float64   `json:"average_price"`
	Exposure     float64   `json:"exposure"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PortfolioSummary is the single aggregate capital record.
type PortfolioSummary struct {
	TotalCapital  float64   `json:"total_capital"`
	UsedCapital   float64   `json:"used_capital"`
	FreeCapital   float64   `json:"free_capital"`
	TotalExposure float64   `json:"total_exposure"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PortfolioState is the unit the portfolio engine reads and writes atomically.
type PortfolioState struct {
	Risk      RiskConfiguration
	Summary   PortfolioSummary
	Positions map[string]PortfolioPosition
}

// Clone returns a deep copy.
func (s *PortfolioState) Clone() *PortfolioState {
	out := &PortfolioState{
		Risk:      s.Risk,
		Summary:   s.Summary,
		Positions: make(map[string]PortfolioPosition, len(s.Positions)),
	}
	for k, v := range s.Positions {
		out.Positions[k] = v
	}
	return out
}

// PositionSizing is the result of ATR risk sizing.
type PositionSizing struct {
	RiskAmount       float64 `json:"risk_amount"`
	StopDistance     float64 `json:"stop_distance"`
	PositionSize     float64 `json:"position_size"`
	CapitalAllocated float64 `json:"capital_allocated"`
}

// TradeExecution is an immutable audit record of an executed trade.
type TradeExecution struct {
	ID               string    `json:"id"`
	Symbol           string    `json:"symbol"`
	Action           Action    `json:"action"`
	PositionSize     float64   `json:"position_size"`
	Price            float64   `json:"price"`
	CapitalAllocated float64   `json:"capital_allocated"`
	Strategy         string    `json:"strategy"`
	ExecutedAt       time.Time `json:"executed_at"`
}
