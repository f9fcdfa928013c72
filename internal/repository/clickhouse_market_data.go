package repository

import (
	"context"
	"fmt"
	"time"

	"TradeFlow/internal/domain/models"
	applogger "TradeFlow/pkg/logger"
)

func (s *CHStore) LatestCandles(ctx context.Context, market models.Market, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT bucket_start, open, high, low, close, volume, trades, gap
        FROM %s FINAL
        WHERE market = ? AND symbol = ? AND timeframe = ?
        ORDER BY bucket_start DESC
        LIMIT ?
    `, s.candles)
	rows, err := s.db.QueryContext(ctx, q, string(market), symbol, string(tf), limit)
	if err != nil {
		s.logQueryError("latest_candles", symbol, tf, err)
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, limit)
	for rows.Next() {
		c := models.Candle{Market: market, Symbol: symbol, Timeframe: tf}
		var bucket time.Time
		if err := rows.Scan(&bucket, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Trades, &c.Gap); err != nil {
			s.logQueryError("latest_candles", symbol, tf, err)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.BucketStart = bucket.UnixMilli()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.logQueryError("latest_candles", symbol, tf, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse latest_candles ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHStore) LatestFeatures(ctx context.Context, market models.Market, symbol string, tf models.Timeframe, limit int) ([]models.FeatureVector, error) {
	q := fmt.Sprintf(`
        SELECT ts, close, rolling_volatility, atr, volume_delta, spread, log_return
        FROM %s FINAL
        WHERE market = ? AND symbol = ? AND timeframe = ?
        ORDER BY ts DESC
        LIMIT ?
    `, s.features)
	rows, err := s.db.QueryContext(ctx, q, string(market), symbol, string(tf), limit)
	if err != nil {
		s.logQueryError("latest_features", symbol, tf, err)
		return nil, fmt.Errorf("get latest features: %w", err)
	}
	defer rows.Close()

	out := make([]models.FeatureVector, 0, limit)
	for rows.Next() {
		fv := models.FeatureVector{Market: market, Symbol: symbol, Timeframe: tf}
		var ts time.Time
		if err := rows.Scan(&ts, &fv.Close, &fv.RollingVolatility, &fv.ATR, &fv.VolumeDelta, &fv.Spread, &fv.LogReturn); err != nil {
			s.logQueryError("latest_features", symbol, tf, err)
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		fv.Timestamp = ts.UnixMilli()
		out = append(out, fv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHStore) logQueryError(op, symbol string, tf models.Timeframe, err error) {
	s.l.Error("clickhouse "+op+" error",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Error(err),
	)
}
