package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrEngineClosed = errors.New("candle engine closed")
	// ErrLateTick is returned for a tick older than the last one processed for its (market, symbol).
	ErrLateTick = errors.New("late tick")

	ErrLowConfidence     = errors.New("confidence below threshold")
	ErrDuplicateStrategy = errors.New("strategy already decided for symbol")
	ErrCooldownActive    = errors.New("symbol in cooldown")

	ErrNonPositiveATR  = errors.New("atr must be positive")
	ErrNonPositiveStop = errors.New("stop distance must be positive")

	ErrAssetCapExceeded     = errors.New("asset exposure limit exceeded")
	ErrPortfolioCapExceeded = errors.New("total portfolio exposure limit exceeded")
	ErrInsufficientCapital  = errors.New("insufficient free capital")

	ErrHoldAction  = errors.New("HOLD is not executable")
	ErrNoFeatures  = errors.New("no feature vector available")
	ErrNoPosition  = errors.New("no open position")
	ErrInvalidSize = errors.New("position size and price must be non-negative")
	ErrNoSymbol    = errors.New("symbol is required")
)

// Risk rule names reported by RiskViolation.
const (
	RuleMaxExposurePerAsset = "max_exposure_per_asset"
	RuleMaxTotalExposure    = "max_total_exposure"
	RuleFreeCapital         = "free_capital"
)

// RiskViolation describes a rejected position update. It unwraps to one of the cap sentinels.
type RiskViolation struct {
	Rule      string
	Limit     float64
	Requested float64
	err       error
}

func (v *RiskViolation) Error() string {
	return fmt.Sprintf("%s: requested %.2f, limit %.2f", v.err, v.Requested, v.Limit)
}

func (v *RiskViolation) Unwrap() error { return v.err }
