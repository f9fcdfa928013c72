package repository

import (
	"context"
	"errors"

	"TradeFlow/internal/domain/models"
)

var (
	// ErrNotInitialized is returned when the risk configuration or portfolio summary has not been created.
	ErrNotInitialized = errors.New("portfolio not initialized")
	// ErrSingletonExists is returned on an attempt to create a second risk configuration or summary.
	ErrSingletonExists = errors.New("singleton record already exists")
	// ErrImmutableRecord is returned on an attempt to overwrite an execution record.
	ErrImmutableRecord = errors.New("record is immutable")
	// ErrNotFound is returned by point lookups with no result.
	ErrNotFound = errors.New("not found")
	// ErrOrderBookUnsupported is returned by market streams without a depth feed.
	ErrOrderBookUnsupported = errors.New("order book stream not supported")
)

// TickPublisher hands normalized ticks to the aggregation stage.
type TickPublisher interface {
	Publish(ctx context.Context, t *models.Tick) error
	Close() error
}

// TickStore is the append-only raw tick store.
type TickStore interface {
	StoreTicks(ctx context.Context, ticks []*models.Tick) error
}

type CandleStore interface {
	SaveCandles(ctx context.Context, candles []models.Candle) error
}

type FeatureStore interface {
	SaveFeature(ctx context.Context, fv models.FeatureVector) error
}

// AuditLog records stable regime changes, meta-regime changes and decisions.
type AuditLog interface {
	RecordRegime(ctx context.Context, s models.StableRegimeState, confidence float64) error
	RecordMetaRegime(ctx context.Context, m models.MetaRegime) error
	RecordDecision(ctx context.Context, d models.Decision) error
}

// Broadcaster pushes live updates. Delivery is best-effort.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev models.Event) error
}

// OrderBookStore keeps the latest snapshot per (market, symbol).
type OrderBookStore interface {
	SaveOrderBook(ctx context.Context, ob *models.OrderBook) error
	// LatestOrderBook returns ErrNotFound when no snapshot exists.
	LatestOrderBook(ctx context.Context, market models.Market, symbol string) (*models.OrderBook, error)
}

// PortfolioStore owns the risk configuration, the summary and the positions.
// Load and Apply return ErrNotInitialized until both singletons exist.
// Apply runs fn against a private copy of the state and persists it only when fn returns nil;
// concurrent Apply calls never interleave their read-check-write sequences.
type PortfolioStore interface {
	InitRiskConfig(ctx context.Context, cfg models.RiskConfiguration) error
	CreateSummary(ctx context.Context, s models.PortfolioSummary) error
	Load(ctx context.Context) (*models.PortfolioState, error)
	Apply(ctx context.Context, fn func(state *models.PortfolioState) error) error
	ExecutionLedger
}

// ExecutionLedger is append-only: no update or delete exists.
type ExecutionLedger interface {
	AppendExecution(ctx context.Context, e models.TradeExecution) error
	// Executions returns the newest records first.
	Executions(ctx context.Context, limit int) ([]models.TradeExecution, error)
}

type Metrics interface {
	RecordTick(market, symbol string)
	RecordDropped(stage, reason string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordCandle(timeframe string, gap bool)
	RecordDecision(action string)
	RecordRiskRejection(rule string)
	SetConnected(market string, connected bool)
	RecordReconnect(market string)
}

// MarketStream is one exchange connector. Stream methods block until ctx is done,
// reconnecting on stream failures; they never give up on their own.
type MarketStream interface {
	Market() models.Market
	StartTradeStream(ctx context.Context, out chan<- *models.Tick) error
	StartOrderBookStream(ctx context.Context, out chan<- *models.OrderBook) error
	NormalizeTrade(raw []byte) ([]*models.Tick, error)
	NormalizeOrderBook(raw []byte) (*models.OrderBook, error)
}
