package exchange

import (
	"fmt"
	"strings"

	"TradeFlow/internal/domain/models"
	drepo "TradeFlow/internal/domain/repository"
	"TradeFlow/pkg/logger"
)

var prefixMarkets = map[string]models.Market{
	"NASDAQ": models.MarketUSStock,
	"NYSE":   models.MarketUSStock,
	"NSE":    models.MarketNSE,
}

// MarketForSymbol infers the market from an exchange prefix; unprefixed symbols are CRYPTO.
func MarketForSymbol(symbol string) models.Market {
	prefix, _, ok := strings.Cut(symbol, ":")
	if !ok {
		return models.MarketCrypto
	}
	if m, ok := prefixMarkets[strings.ToUpper(prefix)]; ok {
		return m
	}
	return models.MarketCrypto
}

// Ticker strips an exchange prefix.
func Ticker(symbol string) string {
	if _, t, ok := strings.Cut(symbol, ":"); ok {
		return strings.ToUpper(t)
	}
	return strings.ToUpper(symbol)
}

// New builds the connector for market.
func New(market models.Market, cfg Config, health *Health, l *logger.Logger) (drepo.MarketStream, error) {
	switch market {
	case models.MarketCrypto:
		return NewBinance(cfg, health, l), nil
	case models.MarketUSStock:
		return NewAlpaca(cfg, health, l), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMarket, market)
	}
}

// ForSymbol builds the connector a single symbol belongs to.
func ForSymbol(symbol string, cfg Config, health *Health, l *logger.Logger) (drepo.MarketStream, error) {
	cfg.Symbols = []string{symbol}
	return New(MarketForSymbol(symbol), cfg, health, l)
}
