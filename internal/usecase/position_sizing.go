package usecase

import (
	"fmt"

	"TradeFlow/internal/domain/models"
)

// SizePosition converts an ATR stop into a position size risking risk_per_trade of capital.
func SizePosition(price, atr float64, risk models.RiskConfiguration) (models.PositionSizing, error) {
	if !(atr > 0) {
		return models.PositionSizing{}, fmt.Errorf("%w: %v", ErrNonPositiveATR, atr)
	}
	riskAmount := risk.TotalCapital * risk.RiskPerTrade
	stop := atr * risk.ATRMultiplier
	if !(stop > 0) {
		return models.PositionSizing{}, fmt.Errorf("%w: %v", ErrNonPositiveStop, stop)
	}
	size := riskAmount / stop
	return models.PositionSizing{
		RiskAmount:       riskAmount,
		StopDistance:     stop,
		PositionSize:     size,
		CapitalAllocated: size * price,
	}, nil
}
