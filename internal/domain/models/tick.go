package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Market identifies the venue family a connector serves.
type Market string

const (
	MarketCrypto  Market = "CRYPTO"
	MarketUSStock Market = "US_STOCK"
	MarketNSE     Market = "NSE"
)

// ParseMarket normalizes a market name.
func ParseMarket(s string) (Market, error) {
	switch m := Market(strings.ToUpper(strings.TrimSpace(s))); m {
	case MarketCrypto, MarketUSStock, MarketNSE:
		return m, nil
	default:
		return "", fmt.Errorf("unknown market %q", s)
	}
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Tick is one normalized trade. Timestamps are milliseconds since epoch; ReceiveTS drives aggregation.
type Tick struct {
	Market     Market  `json:"market"`
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity"`
	Side       Side    `json:"side"`
	ExchangeTS int64   `json:"exchange_ts"`
	ReceiveTS  int64   `json:"receive_ts"`
}

// Key returns the partitioning key "market:symbol".
func (t *Tick) Key() string { return string(t.Market) + ":" + t.Symbol }

// MaxClockSkew bounds how far ReceiveTS may run ahead of the local clock.
const MaxClockSkew = 5 * time.Minute

// Validate rejects ticks that must not reach aggregation.
func (t *Tick) Validate() error {
	switch {
	case t == nil:
		return fmt.Errorf("tick is nil")
	case t.Market == "":
		return fmt.Errorf("market is empty")
	case t.Symbol == "":
		return fmt.Errorf("symbol is empty")
	case !(t.Price > 0) || math.IsInf(t.Price, 0):
		return fmt.Errorf("price must be positive and finite, got %v", t.Price)
	case !(t.Quantity >= 0) || math.IsInf(t.Quantity, 0):
		return fmt.Errorf("quantity must be non-negative and finite, got %v", t.Quantity)
	case t.ReceiveTS <= 0:
		return fmt.Errorf("receive_ts is missing")
	case t.ReceiveTS > time.Now().Add(MaxClockSkew).UnixMilli():
		return fmt.Errorf("receive_ts %d is too far in the future", t.ReceiveTS)
	}
	return nil
}

// PriceLevel is a [price, quantity] pair.
type PriceLevel [2]float64

func (l PriceLevel) Price() float64    { return l[0] }
func (l PriceLevel) Quantity() float64 { return l[1] }

// OrderBook is the latest depth snapshot for a symbol. Bids are sorted descending, asks ascending.
type OrderBook struct {
	Market     Market       `json:"market"`
	Symbol     string       `json:"symbol"`
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
	ExchangeTS int64        `json:"exchange_ts"`
	ReceiveTS  int64        `json:"receive_ts"`
}

// Spread returns best ask minus best bid, or 0 when either side is empty.
func (o *OrderBook) Spread() float64 {
	if o == nil || len(o.Bids) == 0 || len(o.Asks) == 0 {
		return 0
	}
	return o.Asks[0].Price() - o.Bids[0].Price()
}

// MarketHealth is the connectivity record a connector keeps for its market.
type MarketHealth struct {
	Market        Market    `json:"market"`
	Connected     bool      `json:"connected"`
	LastTickTime  time.Time `json:"last_tick_time"`
	LastPrice     float64   `json:"last_price"`
	TicksReceived uint64    `json:"ticks_received"`
	Reconnects    uint64    `json:"reconnects"`
	LastError     string    `json:"last_error,omitempty"`
}

// Instrument identifies one tradable series.
type Instrument struct {
	Market Market `json:"market" yaml:"market"`
	Symbol string `json:"symbol" yaml:"symbol"`
}
