package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"TradeFlow/internal/domain/models"
	drepo "TradeFlow/internal/domain/repository"
	"TradeFlow/pkg/logger"
)

const defaultBinanceURL = "wss://stream.binance.com:9443"

// Binance streams CRYPTO trades and top-20 depth snapshots over combined streams.
type Binance struct {
	ws wsStream
}

var _ drepo.MarketStream = (*Binance)(nil)

func NewBinance(cfg Config, health *Health, l *logger.Logger) *Binance {
	if cfg.URL == "" {
		cfg.URL = defaultBinanceURL
	}
	return &Binance{ws: newWSStream(models.MarketCrypto, cfg, health, l)}
}

func (b *Binance) Market() models.Market { return models.MarketCrypto }

func (b *Binance) streamURL(suffix string) string {
	streams := make([]string, len(b.ws.cfg.Symbols))
	for i, sym := range b.ws.cfg.Symbols {
		streams[i] = strings.ToLower(sym) + suffix
	}
	return strings.TrimRight(b.ws.cfg.URL, "/") + "/stream?streams=" + strings.Join(streams, "/")
}

func (b *Binance) StartTradeStream(ctx context.Context, out chan<- *models.Tick) error {
	if len(b.ws.cfg.Symbols) == 0 {
		return fmt.Errorf("binance: no symbols configured")
	}
	return b.ws.run(ctx, session{
		name:    "trade",
		url:     b.streamURL("@trade"),
		primary: true,
		onMessage: func(ctx context.Context, msg []byte) error {
			ticks, err := b.NormalizeTrade(msg)
			if err != nil {
				b.ws.health.metrics.RecordDropped("normalize", "malformed")
				return err
			}
			return b.ws.emitTicks(ctx, ticks, out)
		},
	})
}

func (b *Binance) StartOrderBookStream(ctx context.Context, out chan<- *models.OrderBook) error {
	if !b.ws.cfg.OrderBook {
		return drepo.ErrOrderBookUnsupported
	}
	if len(b.ws.cfg.Symbols) == 0 {
		return fmt.Errorf("binance: no symbols configured")
	}
	return b.ws.run(ctx, session{
		name: "depth",
		url:  b.streamURL("@depth20@100ms"),
		onMessage: func(ctx context.Context, msg []byte) error {
			ob, err := b.NormalizeOrderBook(msg)
			if err != nil || ob == nil {
				return err
			}
			select {
			case out <- ob:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

type binanceEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type binanceTrade struct {
	Event      string `json:"e"`
	Symbol     string `json:"s"`
	Price      string `json:"p"`
	Quantity   string `json:"q"`
	TradeTime  int64  `json:"T"`
	BuyerMaker bool   `json:"m"`
}

type binanceDepth struct {
	Symbol    string      `json:"s"`
	EventTime int64       `json:"E"`
	B         [][2]string `json:"b"`
	A         [][2]string `json:"a"`
	Bids      [][2]string `json:"bids"`
	Asks      [][2]string `json:"asks"`
}

// unwrap accepts both combined-stream envelopes and raw event payloads.
func unwrap(raw []byte) (stream string, data []byte) {
	var env binanceEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		return env.Stream, env.Data
	}
	return "", raw
}

func symbolFromStream(stream string) string {
	name, _, _ := strings.Cut(stream, "@")
	return strings.ToUpper(name)
}

// NormalizeTrade maps a trade event. Non-trade events yield no ticks and no error.
// The buyer-is-maker flag means the aggressor sold.
func (b *Binance) NormalizeTrade(raw []byte) ([]*models.Tick, error) {
	stream, data := unwrap(raw)
	var t binanceTrade
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if t.Event != "" && t.Event != "trade" {
		return nil, nil
	}
	sym := t.Symbol
	if sym == "" {
		sym = symbolFromStream(stream)
	}
	price, err := strconv.ParseFloat(t.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q", ErrMalformedMessage, t.Price)
	}
	qty, err := strconv.ParseFloat(t.Quantity, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: quantity %q", ErrMalformedMessage, t.Quantity)
	}
	side := models.SideBuy
	if t.BuyerMaker {
		side = models.SideSell
	}
	tick := &models.Tick{
		Market:     models.MarketCrypto,
		Symbol:     strings.ToUpper(sym),
		Price:      price,
		Quantity:   qty,
		Side:       side,
		ExchangeTS: t.TradeTime,
		ReceiveTS:  b.ws.now().UnixMilli(),
	}
	if err := tick.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return []*models.Tick{tick}, nil
}

// NormalizeOrderBook maps partial (bids/asks) and diff (b/a) depth payloads.
func (b *Binance) NormalizeOrderBook(raw []byte) (*models.OrderBook, error) {
	stream, data := unwrap(raw)
	var d binanceDepth
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	bids, asks := d.Bids, d.Asks
	if bids == nil && asks == nil {
		bids, asks = d.B, d.A
	}
	if bids == nil && asks == nil {
		return nil, nil
	}
	sym := d.Symbol
	if sym == "" {
		sym = symbolFromStream(stream)
	}
	if sym == "" {
		return nil, fmt.Errorf("%w: depth without symbol", ErrMalformedMessage)
	}
	ob := &models.OrderBook{
		Market:     models.MarketCrypto,
		Symbol:     strings.ToUpper(sym),
		ExchangeTS: d.EventTime,
		ReceiveTS:  b.ws.now().UnixMilli(),
	}
	var err error
	if ob.Bids, err = parseLevels(bids); err != nil {
		return nil, err
	}
	if ob.Asks, err = parseLevels(asks); err != nil {
		return nil, err
	}
	return ob, nil
}

func parseLevels(in [][2]string) ([]models.PriceLevel, error) {
	out := make([]models.PriceLevel, 0, len(in))
	for _, lvl := range in {
		p, err := strconv.ParseFloat(lvl[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: level price %q", ErrMalformedMessage, lvl[0])
		}
		q, err := strconv.ParseFloat(lvl[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: level quantity %q", ErrMalformedMessage, lvl[1])
		}
		out = append(out, models.PriceLevel{p, q})
	}
	return out, nil
}
