package models

// Candle is an OHLCV bar for one (market, symbol, timeframe, bucket).
// BucketStart is in milliseconds and always a multiple of the timeframe length.
type Candle struct {
	Market      Market    `json:"market"`
	Symbol      string    `json:"symbol"`
	Timeframe   Timeframe `json:"timeframe"`
	BucketStart int64     `json:"bucket_start"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	Trades      int64     `json:"trades"`
	// Gap marks a synthetic zero-volume candle covering a bucket without ticks.
	Gap bool `json:"gap"`
}

// CloseTime is the exclusive end of the bucket in milliseconds.
func (c *Candle) CloseTime() int64 { return c.BucketStart + c.Timeframe.Millis() }
