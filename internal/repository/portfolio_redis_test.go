package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
)

func TestDecodeStateRequiresBothSingletons(t *testing.T) {
	_, err := decodeState(`{"total_capital":1}`, "", nil)
	assert.ErrorIs(t, err, domrepo.ErrNotInitialized)
	_, err = decodeState("", `{"total_capital":1}`, nil)
	assert.ErrorIs(t, err, domrepo.ErrNotInitialized)
}

func TestPositionsEncodeDecode(t *testing.T) {
	in := map[string]models.PortfolioPosition{
		"BTCUSDT": {Symbol: "BTCUSDT", PositionSize: 0.5, AveragePrice: 30000, Exposure: 15000},
	}
	enc, err := encodePositions(in)
	require.NoError(t, err)

	raw := make(map[string]string, len(enc))
	for k, v := range enc {
		raw[k] = v.(string)
	}
	st, err := decodeState(`{"total_capital":100000,"risk_per_trade":0.02}`, `{"total_capital":100000,"used_capital":15000}`, raw)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, st.Risk.TotalCapital)
	assert.Equal(t, 15000.0, st.Summary.UsedCapital)
	assert.Equal(t, in["BTCUSDT"].Exposure, st.Positions["BTCUSDT"].Exposure)
}

func TestRedisPortfolioStoreKeys(t *testing.T) {
	s := NewRedisPortfolioStore(nil, "tf")
	assert.Equal(t, "tf:portfolio:risk", s.riskKey)
	assert.Equal(t, "tf:portfolio:executions:by_time", s.execIndexKey)
}
