package exchange

import (
	"sort"
	"sync"
	"time"

	"TradeFlow/internal/domain/models"
	drepo "TradeFlow/internal/domain/repository"
)

// Health tracks connectivity per market and mirrors it into metrics.
type Health struct {
	mu      sync.RWMutex
	markets map[models.Market]*models.MarketHealth
	metrics drepo.Metrics
}

func NewHealth(metrics drepo.Metrics) *Health {
	return &Health{markets: make(map[models.Market]*models.MarketHealth), metrics: metrics}
}

func (h *Health) entry(m models.Market) *models.MarketHealth {
	e, ok := h.markets[m]
	if !ok {
		e = &models.MarketHealth{Market: m}
		h.markets[m] = e
	}
	return e
}

func (h *Health) Connected(m models.Market) {
	h.mu.Lock()
	e := h.entry(m)
	e.Connected = true
	e.LastError = ""
	h.mu.Unlock()
	h.metrics.SetConnected(string(m), true)
}

func (h *Health) Disconnected(m models.Market, err error) {
	h.mu.Lock()
	e := h.entry(m)
	e.Connected = false
	if err != nil {
		e.LastError = err.Error()
	}
	h.mu.Unlock()
	h.metrics.SetConnected(string(m), false)
}

func (h *Health) Reconnecting(m models.Market) {
	h.mu.Lock()
	h.entry(m).Reconnects++
	h.mu.Unlock()
	h.metrics.RecordReconnect(string(m))
}

// Observe records a received tick.
func (h *Health) Observe(t *models.Tick) {
	h.mu.Lock()
	e := h.entry(t.Market)
	e.TicksReceived++
	e.LastPrice = t.Price
	e.LastTickTime = time.UnixMilli(t.ReceiveTS).UTC()
	h.mu.Unlock()
	h.metrics.RecordLastPrice(t.Symbol, t.Price)
}

func (h *Health) Get(m models.Market) (models.MarketHealth, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.markets[m]
	if !ok {
		return models.MarketHealth{}, false
	}
	return *e, true
}

// Snapshot returns a copy of every record ordered by market.
func (h *Health) Snapshot() []models.MarketHealth {
	h.mu.RLock()
	out := make([]models.MarketHealth, 0, len(h.markets))
	for _, e := range h.markets {
		out = append(out, *e)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Market < out[j].Market })
	return out
}
