package service

import (
	"context"
	"errors"

	"TradeFlow/internal/domain/models"
)

// ErrNoRegime is returned when the classifier has no answer for a timeframe,
// either because of insufficient data or because the model is unavailable.
var ErrNoRegime = errors.New("regime unavailable")

// RegimeClassifier is the pluggable regime classification boundary.
type RegimeClassifier interface {
	Classify(ctx context.Context, market models.Market, symbol string, tf models.Timeframe) (models.RegimeObservation, error)
}
