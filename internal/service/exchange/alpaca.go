package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"TradeFlow/internal/domain/models"
	drepo "TradeFlow/internal/domain/repository"
	"TradeFlow/pkg/logger"
)

const defaultAlpacaURL = "wss://stream.data.alpaca.markets/v2/iex"

// Alpaca streams US_STOCK trades. The data feed carries no depth and no aggressor side.
type Alpaca struct {
	ws      wsStream
	tickers []string
}

var _ drepo.MarketStream = (*Alpaca)(nil)

// NewAlpaca accepts symbols with or without an exchange prefix ("NASDAQ:AAPL" or "AAPL").
func NewAlpaca(cfg Config, health *Health, l *logger.Logger) *Alpaca {
	if cfg.URL == "" {
		cfg.URL = defaultAlpacaURL
	}
	tickers := make([]string, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		tickers = append(tickers, Ticker(s))
	}
	return &Alpaca{ws: newWSStream(models.MarketUSStock, cfg, health, l), tickers: tickers}
}

func (a *Alpaca) Market() models.Market { return models.MarketUSStock }

type alpacaControl struct {
	Action string   `json:"action"`
	Key    string   `json:"key,omitempty"`
	Secret string   `json:"secret,omitempty"`
	Trades []string `json:"trades,omitempty"`
}

type alpacaEvent struct {
	Type      string  `json:"T"`
	Symbol    string  `json:"S"`
	Price     float64 `json:"p"`
	Size      float64 `json:"s"`
	Timestamp string  `json:"t"`
	Msg       string  `json:"msg"`
	Code      int     `json:"code"`
}

func (a *Alpaca) StartTradeStream(ctx context.Context, out chan<- *models.Tick) error {
	if len(a.tickers) == 0 {
		return fmt.Errorf("alpaca: no symbols configured")
	}
	return a.ws.run(ctx, session{
		name:      "trade",
		url:       a.ws.cfg.URL,
		primary:   true,
		handshake: a.handshake,
		onMessage: func(ctx context.Context, msg []byte) error {
			ticks, err := a.NormalizeTrade(msg)
			if err != nil {
				a.ws.health.metrics.RecordDropped("normalize", "malformed")
				return err
			}
			return a.ws.emitTicks(ctx, ticks, out)
		},
	})
}

func (a *Alpaca) StartOrderBookStream(context.Context, chan<- *models.OrderBook) error {
	return drepo.ErrOrderBookUnsupported
}

// handshake authenticates and subscribes. The server greets with "connected",
// answers auth with "authenticated" or an error event.
func (a *Alpaca) handshake(_ context.Context, conn *websocket.Conn) error {
	auth := alpacaControl{Action: "auth", Key: a.ws.cfg.APIKey, Secret: a.ws.cfg.APISecret}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("alpaca auth: %w", err)
	}
	deadline := a.ws.now().Add(a.ws.cfg.HeartbeatTimeout)
	for {
		if a.ws.now().After(deadline) {
			return fmt.Errorf("alpaca auth: timed out")
		}
		var events []alpacaEvent
		if err := conn.ReadJSON(&events); err != nil {
			return fmt.Errorf("alpaca auth: %w", err)
		}
		authed, err := authResult(events)
		if err != nil {
			return err
		}
		if authed {
			break
		}
	}
	sub := alpacaControl{Action: "subscribe", Trades: a.tickers}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("alpaca subscribe: %w", err)
	}
	return nil
}

func authResult(events []alpacaEvent) (bool, error) {
	for _, ev := range events {
		switch {
		case ev.Type == "error":
			return false, fmt.Errorf("alpaca auth: %s (code %d)", ev.Msg, ev.Code)
		case ev.Type == "success" && ev.Msg == "authenticated":
			return true, nil
		}
	}
	return false, nil
}

// NormalizeTrade maps every "t" event of a frame. Other event types are skipped.
func (a *Alpaca) NormalizeTrade(raw []byte) ([]*models.Tick, error) {
	var events []alpacaEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	now := a.ws.now().UnixMilli()
	out := make([]*models.Tick, 0, len(events))
	for _, ev := range events {
		if ev.Type != "t" {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, ev.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp %q", ErrMalformedMessage, ev.Timestamp)
		}
		t := &models.Tick{
			Market:     models.MarketUSStock,
			Symbol:     strings.ToUpper(ev.Symbol),
			Price:      ev.Price,
			Quantity:   ev.Size,
			Side:       models.SideBuy,
			ExchangeTS: ts.UnixMilli(),
			ReceiveTS:  now,
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (a *Alpaca) NormalizeOrderBook([]byte) (*models.OrderBook, error) {
	return nil, drepo.ErrOrderBookUnsupported
}
