package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"TradeFlow/internal/domain/models"
	domsvc "TradeFlow/internal/domain/service"
	xhttp "TradeFlow/pkg/http"
)

// HTTPRegimeClassifier asks the external regime service for one timeframe at a time.
type HTTPRegimeClassifier struct {
	base     *HTTPServiceBase
	path     string
	attempts int
	now      func() time.Time
}

func NewHTTPRegimeClassifier(baseURL string, timeout time.Duration) *HTTPRegimeClassifier {
	return &HTTPRegimeClassifier{
		base:     NewHTTPServiceBase(strings.TrimRight(baseURL, "/"), timeout),
		path:     "/detect_regime",
		attempts: 2,
		now:      time.Now,
	}
}

type regimeRequest struct {
	Market    models.Market    `json:"market"`
	Symbol    string           `json:"symbol"`
	Timeframe models.Timeframe `json:"timeframe"`
	ModelName string           `json:"model_name"`
}

type regimeResponse struct {
	State      *int    `json:"state"`
	Regime     string  `json:"regime"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

// ModelName is the classifier model for a market and timeframe, e.g. "crypto_1m".
func ModelName(market models.Market, tf models.Timeframe) string {
	return strings.ToLower(string(market)) + "_" + string(tf)
}

func (c *HTTPRegimeClassifier) Classify(ctx context.Context, market models.Market, symbol string, tf models.Timeframe) (models.RegimeObservation, error) {
	var rr regimeResponse
	req := regimeRequest{Market: market, Symbol: symbol, Timeframe: tf, ModelName: ModelName(market, tf)}
	if err := c.base.PostJSONWithRetry(ctx, c.path, req, &rr, c.attempts); err != nil {
		if msg, ok := errorMarker(err); ok {
			return models.RegimeObservation{}, fmt.Errorf("%w: %s", domsvc.ErrNoRegime, msg)
		}
		return models.RegimeObservation{}, fmt.Errorf("classify %s %s: %w", symbol, tf, err)
	}
	if rr.Error != "" {
		return models.RegimeObservation{}, fmt.Errorf("%w: %s", domsvc.ErrNoRegime, rr.Error)
	}
	label := models.RegimeLabel(strings.ToUpper(rr.Regime))
	switch label {
	case models.RegimeBull, models.RegimeBear, models.RegimeSideways, models.RegimeCrisis:
	default:
		return models.RegimeObservation{}, fmt.Errorf("%w: unknown regime %q", domsvc.ErrNoRegime, rr.Regime)
	}
	if rr.State == nil {
		return models.RegimeObservation{}, fmt.Errorf("%w: response without state", domsvc.ErrNoRegime)
	}
	if !(rr.Confidence >= 0 && rr.Confidence <= 1) {
		return models.RegimeObservation{}, fmt.Errorf("%w: confidence %v out of range", domsvc.ErrNoRegime, rr.Confidence)
	}
	return models.RegimeObservation{
		Market:     market,
		Symbol:     symbol,
		Timeframe:  tf,
		State:      *rr.State,
		Label:      label,
		Confidence: rr.Confidence,
		ObservedAt: c.now().UTC(),
	}, nil
}

// errorMarker extracts {"error": "..."} from a non-2xx answer.
func errorMarker(err error) (string, bool) {
	var se *xhttp.StatusError
	if !errors.As(err, &se) {
		return "", false
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(se.Body), &body) != nil || body.Error == "" {
		return "", false
	}
	return body.Error, true
}

var _ domsvc.RegimeClassifier = (*HTTPRegimeClassifier)(nil)
