package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	pkgch "TradeFlow/pkg/clickhouse"
	applogger "TradeFlow/pkg/logger"
)

const (
	regimeKindStable = "stable"
	regimeKindMeta   = "meta"
)

// CHStore is the ClickHouse-backed tick, candle, feature and audit store.
type CHStore struct {
	db *sql.DB
	// database-qualified table names
	ticks, candles, features, regimes, decisions string
	l                                            *applogger.Logger
}

var (
	_ domrepo.TickStore        = (*CHStore)(nil)
	_ domrepo.CandleStore      = (*CHStore)(nil)
	_ domrepo.FeatureStore     = (*CHStore)(nil)
	_ domrepo.AuditLog         = (*CHStore)(nil)
	_ domrepo.MarketDataReader = (*CHStore)(nil)
)

func NewCHStore(ch *pkgch.Client, l *applogger.Logger) *CHStore {
	db := ch.Database()
	return &CHStore{
		db:        ch.DB(),
		ticks:     db + ".ticks",
		candles:   db + ".candles",
		features:  db + ".features",
		regimes:   db + ".regime_audit",
		decisions: db + ".decision_audit",
		l:         l,
	}
}

func (s *CHStore) StoreTicks(ctx context.Context, ticks []*models.Tick) error {
	rows := make([][]any, 0, len(ticks))
	for _, t := range ticks {
		if t == nil {
			continue
		}
		rows = append(rows, tickRow(t))
	}
	q := fmt.Sprintf("INSERT INTO %s (market, symbol, price, quantity, side, exchange_ts, receive_ts)", s.ticks)
	return s.insert(ctx, "ticks", q, rows)
}

func (s *CHStore) SaveCandles(ctx context.Context, candles []models.Candle) error {
	rows := make([][]any, 0, len(candles))
	for i := range candles {
		rows = append(rows, candleRow(&candles[i]))
	}
	q := fmt.Sprintf("INSERT INTO %s (market, symbol, timeframe, bucket_start, open, high, low, close, volume, trades, gap)", s.candles)
	return s.insert(ctx, "candles", q, rows)
}

func (s *CHStore) SaveFeature(ctx context.Context, fv models.FeatureVector) error {
	q := fmt.Sprintf("INSERT INTO %s (market, symbol, timeframe, ts, close, rolling_volatility, atr, volume_delta, spread, log_return)", s.features)
	return s.insert(ctx, "features", q, [][]any{featureRow(&fv)})
}

func (s *CHStore) RecordRegime(ctx context.Context, st models.StableRegimeState, confidence float64) error {
	q := fmt.Sprintf("INSERT INTO %s (kind, market, symbol, timeframe, state, regime, confidence, components, recorded_at)", s.regimes)
	return s.insert(ctx, "regime_audit", q, [][]any{{
		regimeKindStable, string(st.Market), st.Symbol, string(st.Timeframe),
		int32(st.State), string(st.Label), confidence, "", st.ConfirmedAt.UTC(),
	}})
}

func (s *CHStore) RecordMetaRegime(ctx context.Context, m models.MetaRegime) error {
	comps, err := encodeComponents(m.Components)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("INSERT INTO %s (kind, market, symbol, timeframe, state, regime, confidence, components, recorded_at)", s.regimes)
	return s.insert(ctx, "regime_audit", q, [][]any{{
		regimeKindMeta, string(m.Market), m.Symbol, "", int32(0), string(m.Label), m.Confidence, comps, m.EvaluatedAt.UTC(),
	}})
}

func (s *CHStore) RecordDecision(ctx context.Context, d models.Decision) error {
	q := fmt.Sprintf("INSERT INTO %s (market, symbol, meta_regime, strategy, action, confidence, decided_at)", s.decisions)
	return s.insert(ctx, "decision_audit", q, [][]any{{
		string(d.Market), d.Symbol, string(d.MetaRegime), d.Strategy, string(d.Action), d.Confidence, d.Timestamp.UTC(),
	}})
}

func (s *CHStore) insert(ctx context.Context, table, q string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	if err := pkgch.InsertBatch(ctx, s.db, q, rows); err != nil {
		s.l.Error("clickhouse insert error",
			applogger.String("table", table),
			applogger.Int("rows", len(rows)),
			applogger.Error(err),
		)
		return fmt.Errorf("insert %s: %w", table, err)
	}
	s.l.Debug("clickhouse insert ok",
		applogger.String("table", table),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func tickRow(t *models.Tick) []any {
	return []any{
		string(t.Market), t.Symbol, t.Price, t.Quantity, string(t.Side),
		time.UnixMilli(t.ExchangeTS).UTC(), time.UnixMilli(t.ReceiveTS).UTC(),
	}
}

func candleRow(c *models.Candle) []any {
	return []any{
		string(c.Market), c.Symbol, string(c.Timeframe), time.UnixMilli(c.BucketStart).UTC(),
		c.Open, c.High, c.Low, c.Close, c.Volume, c.Trades, c.Gap,
	}
}

func featureRow(fv *models.FeatureVector) []any {
	return []any{
		string(fv.Market), fv.Symbol, string(fv.Timeframe), time.UnixMilli(fv.Timestamp).UTC(),
		fv.Close, fv.RollingVolatility, fv.ATR, fv.VolumeDelta, fv.Spread, fv.LogReturn,
	}
}

// encodeComponents renders the per-timeframe labels longest timeframe first.
func encodeComponents(comps map[models.Timeframe]models.RegimeLabel) (string, error) {
	type component struct {
		Timeframe models.Timeframe   `json:"timeframe"`
		Regime    models.RegimeLabel `json:"regime"`
	}
	tfs := make([]models.Timeframe, 0, len(comps))
	for tf := range comps {
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[i] < tfs[j] })
	tfs = models.SortLongestFirst(tfs)
	out := make([]component, 0, len(tfs))
	for _, tf := range tfs {
		out = append(out, component{Timeframe: tf, Regime: comps[tf]})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode components: %w", err)
	}
	return string(b), nil
}
