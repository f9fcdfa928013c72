package repository

import "fmt"

// ClickHouseSchema returns the idempotent DDL for every table the pipeline writes.
// Candles and features use ReplacingMergeTree so redelivered rows collapse on merge.
func ClickHouseSchema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.ticks (
			market      LowCardinality(String),
			symbol      String,
			price       Float64,
			quantity    Float64,
			side        LowCardinality(String),
			exchange_ts DateTime64(3, 'UTC'),
			receive_ts  DateTime64(3, 'UTC')
		) ENGINE = MergeTree
		PARTITION BY toYYYYMMDD(receive_ts)
		ORDER BY (market, symbol, receive_ts)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.candles (
			market       LowCardinality(String),
			symbol       String,
			timeframe    LowCardinality(String),
			bucket_start DateTime64(3, 'UTC'),
			open         Float64,
			high         Float64,
			low          Float64,
			close        Float64,
			volume       Float64,
			trades       Int64,
			gap          Bool
		) ENGINE = ReplacingMergeTree
		ORDER BY (market, symbol, timeframe, bucket_start)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.features (
			market             LowCardinality(String),
			symbol             String,
			timeframe          LowCardinality(String),
			ts                 DateTime64(3, 'UTC'),
			close              Float64,
			rolling_volatility Float64,
			atr                Float64,
			volume_delta       Float64,
			spread             Float64,
			log_return         Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY (market, symbol, timeframe, ts)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.regime_audit (
			kind        LowCardinality(String),
			market      LowCardinality(String),
			symbol      String,
			timeframe   LowCardinality(String),
			state       Int32,
			regime      LowCardinality(String),
			confidence  Float64,
			components  String,
			recorded_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree
		ORDER BY (market, symbol, recorded_at)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.decision_audit (
			market      LowCardinality(String),
			symbol      String,
			meta_regime LowCardinality(String),
			strategy    LowCardinality(String),
			action      LowCardinality(String),
			confidence  Float64,
			decided_at  DateTime64(3, 'UTC')
		) ENGINE = MergeTree
		ORDER BY (market, symbol, decided_at)`, db),
	}
}
