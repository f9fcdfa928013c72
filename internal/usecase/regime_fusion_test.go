package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"TradeFlow/internal/domain/models"
)

var allTimeframes = []models.Timeframe{models.TF1m, models.TF5m, models.TF15m, models.TF1h}

func TestFuseRules(t *testing.T) {
	const (
		bull = models.RegimeBull
		bear = models.RegimeBear
		side = models.RegimeSideways
		cris = models.RegimeCrisis
	)
	order := models.SortLongestFirst(allTimeframes)

	tests := []struct {
		name string
		r    map[models.Timeframe]models.RegimeLabel
		want models.MetaRegimeLabel
		conf float64
	}{
		{
			name: "crisis on longest overrides bull",
			r:    map[models.Timeframe]models.RegimeLabel{"1h": cris, "15m": bull, "5m": bull, "1m": bull},
			want: models.MetaHighVolRiskOff,
			conf: 0.6,
		},
		{
			name: "crisis on both middle timeframes",
			r:    map[models.Timeframe]models.RegimeLabel{"1h": bull, "15m": cris, "5m": cris, "1m": bull},
			want: models.MetaHighVolRiskOff,
			conf: 0.5,
		},
		{
			name: "trending bull",
			r:    map[models.Timeframe]models.RegimeLabel{"1h": bull, "15m": bull, "5m": bull, "1m": side},
			want: models.MetaTrendingBull,
			conf: 0.9,
		},
		{
			name: "pullback in uptrend",
			r:    map[models.Timeframe]models.RegimeLabel{"1h": bull, "15m": bull, "5m": side, "1m": bear},
			want: models.MetaPullbackInUptrend,
			conf: 0.8,
		},
		{
			name: "trending bear",
			r:    map[models.Timeframe]models.RegimeLabel{"1h": bear, "15m": bear, "5m": bear, "1m": bear},
			want: models.MetaTrendingBear,
			conf: 1.0,
		},
		{
			name: "pullback in downtrend",
			r:    map[models.Timeframe]models.RegimeLabel{"1h": bear, "15m": bear, "5m": side, "1m": bull},
			want: models.MetaPullbackInDowntrend,
			conf: 0.8,
		},
		{
			name: "range bound",
			r:    map[models.Timeframe]models.RegimeLabel{"1h": side, "15m": side, "5m": side, "1m": bull},
			want: models.MetaRangeBound,
			conf: 0.1,
		},
		{
			name: "bull pair without confirmation falls through",
			r:    map[models.Timeframe]models.RegimeLabel{"1h": bull, "15m": bull, "5m": side, "1m": side},
			want: models.MetaMixedCondition,
			conf: 0.7,
		},
		{
			name: "missing timeframes",
			r:    map[models.Timeframe]models.RegimeLabel{"1m": bear},
			want: models.MetaMixedCondition,
			conf: 0.1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, conf := Fuse(tt.r, order, DefaultTimeframeWeights)
			assert.Equal(t, tt.want, label)
			assert.InDelta(t, tt.conf, conf, 1e-9)
		})
	}
}

func TestFusionEngineChangeDetectionOnLabel(t *testing.T) {
	f := NewFusionEngine(allTimeframes, nil)
	bull := map[models.Timeframe]models.RegimeLabel{"1h": "BULL", "15m": "BULL", "5m": "BULL", "1m": "BULL"}

	m, changed := f.Evaluate(models.MarketCrypto, "BTCUSDT", bull)
	assert.True(t, changed)
	assert.Equal(t, models.MetaTrendingBull, m.Label)

	// same label, different components and confidence
	bull["1m"] = "SIDEWAYS"
	m, changed = f.Evaluate(models.MarketCrypto, "BTCUSDT", bull)
	assert.False(t, changed)
	assert.InDelta(t, 0.9, m.Confidence, 1e-9)

	bull["1h"] = "CRISIS"
	m, changed = f.Evaluate(models.MarketCrypto, "BTCUSDT", bull)
	assert.True(t, changed)
	assert.Equal(t, models.MetaHighVolRiskOff, m.Label)

	latest, ok := f.Latest(models.MarketCrypto, "BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, m.Label, latest.Label)
	// the engine keeps its own copy of the components
	assert.Equal(t, models.RegimeCrisis, latest.Components["1h"])
}
