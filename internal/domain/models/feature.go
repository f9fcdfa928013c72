package models

// FeatureVector holds rolling statistics computed when a candle is finalized.
type FeatureVector struct {
	Market            Market    `json:"market"`
	Symbol            string    `json:"symbol"`
	Timeframe         Timeframe `json:"timeframe"`
	Timestamp         int64     `json:"timestamp"`
	Close             float64   `json:"close"`
	RollingVolatility float64   `json:"rolling_volatility"`
	ATR               float64   `json:"atr"`
	VolumeDelta       float64   `json:"volume_delta"`
	Spread            float64   `json:"spread"`
	LogReturn         float64   `json:"log_return"`
}
