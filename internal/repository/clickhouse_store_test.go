package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeFlow/internal/domain/models"
)

func TestCandleRowConvertsBucketToUTC(t *testing.T) {
	c := models.Candle{
		Market: models.MarketCrypto, Symbol: "BTCUSDT", Timeframe: models.TF1m,
		BucketStart: 1_700_000_040_000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, Trades: 3, Gap: true,
	}
	row := candleRow(&c)
	require.Len(t, row, 11)
	assert.Equal(t, "CRYPTO", row[0])
	assert.Equal(t, "1m", row[2])
	ts, ok := row[3].(time.Time)
	require.True(t, ok)
	assert.Equal(t, int64(1_700_000_040_000), ts.UnixMilli())
	assert.Equal(t, time.UTC, ts.Location())
	assert.Equal(t, true, row[10])
}

func TestTickRowOrder(t *testing.T) {
	tk := &models.Tick{Market: models.MarketUSStock, Symbol: "AAPL", Price: 190, Quantity: 5, Side: models.SideBuy, ExchangeTS: 10, ReceiveTS: 20}
	row := tickRow(tk)
	require.Len(t, row, 7)
	assert.Equal(t, "US_STOCK", row[0])
	assert.Equal(t, "BUY", row[4])
	assert.Equal(t, int64(20), row[6].(time.Time).UnixMilli())
}

func TestEncodeComponentsLongestFirst(t *testing.T) {
	s, err := encodeComponents(map[models.Timeframe]models.RegimeLabel{
		models.TF1m:  models.RegimeBull,
		models.TF1h:  models.RegimeCrisis,
		models.TF15m: models.RegimeBear,
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"timeframe":"1h","regime":"CRISIS"},{"timeframe":"15m","regime":"BEAR"},{"timeframe":"1m","regime":"BULL"}]`, s)
}

func TestClickHouseSchemaQualifiesTables(t *testing.T) {
	stmts := ClickHouseSchema("tf")
	require.Len(t, stmts, 6)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS tf", stmts[0])
	for _, table := range []string{"tf.ticks", "tf.candles", "tf.features", "tf.regime_audit", "tf.decision_audit"} {
		found := false
		for _, s := range stmts[1:] {
			if strings.Contains(s, table+" (") {
				found = true
			}
		}
		assert.True(t, found, table)
	}
}
