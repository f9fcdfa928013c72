package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeFlow/internal/domain/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDecisionEngine() (*DecisionEngine, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewDecisionEngine(0.60, 5*time.Minute).WithClock(clk.Now), clk
}

func TestDecisionBelowThreshold(t *testing.T) {
	d, _ := newTestDecisionEngine()
	_, err := d.Decide(models.MarketCrypto, "BTCUSDT", models.MetaTrendingBull, StrategyTrendFollowing, 0.59)
	assert.ErrorIs(t, err, ErrLowConfidence)
	_, ok := d.Latest("BTCUSDT")
	assert.False(t, ok)
}

func TestDecisionFirstSignalThenDuplicate(t *testing.T) {
	d, clk := newTestDecisionEngine()

	dec, err := d.Decide(models.MarketCrypto, "BTCUSDT", models.MetaTrendingBull, StrategyTrendFollowing, 0.61)
	require.NoError(t, err)
	assert.Equal(t, models.ActionBuy, dec.Action)
	assert.Equal(t, "BTCUSDT", dec.Symbol)
	assert.Equal(t, clk.t, dec.Timestamp)

	clk.Advance(time.Minute)
	_, err = d.Decide(models.MarketCrypto, "BTCUSDT", models.MetaTrendingBull, StrategyTrendFollowing, 0.61)
	assert.ErrorIs(t, err, ErrDuplicateStrategy)
}

func TestDecisionCooldownAppliesAcrossStrategies(t *testing.T) {
	d, clk := newTestDecisionEngine()

	_, err := d.Decide(models.MarketCrypto, "BTCUSDT", models.MetaTrendingBull, StrategyTrendFollowingLong, 0.9)
	require.NoError(t, err)

	clk.Advance(4 * time.Minute)
	_, err = d.Decide(models.MarketCrypto, "BTCUSDT", models.MetaRangeBound, StrategyMeanReversion, 0.9)
	assert.ErrorIs(t, err, ErrCooldownActive)

	// other symbols are unaffected
	_, err = d.Decide(models.MarketCrypto, "ETHUSDT", models.MetaRangeBound, StrategyMeanReversion, 0.9)
	assert.NoError(t, err)

	clk.Advance(time.Minute)
	dec, err := d.Decide(models.MarketCrypto, "BTCUSDT", models.MetaRangeBound, StrategyMeanReversion, 0.9)
	require.NoError(t, err)
	assert.Equal(t, models.ActionSell, dec.Action)

	latest, ok := d.Latest("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, dec, latest)
}

func TestActionAndStrategyTables(t *testing.T) {
	assert.Equal(t, models.ActionHold, ActionFor("Unknown"))
	assert.Equal(t, models.ActionHold, ActionFor(StrategyRiskOff))
	assert.Equal(t, models.ActionSell, ActionFor(StrategyRallySelling))
	assert.Equal(t, models.ActionBuy, ActionFor(StrategyDipBuying))

	assert.Equal(t, StrategyNeutral, StrategyFor("UNKNOWN"))
	assert.Equal(t, StrategyRiskOff, StrategyFor(models.MetaHighVolRiskOff))
}

func TestStrategySelectorSwitchesOnlyOnChange(t *testing.T) {
	s := NewStrategySelector()
	m := models.MetaRegime{Market: models.MarketCrypto, Symbol: "BTCUSDT", Label: models.MetaTrendingBull}

	a, switched := s.Select(m)
	assert.True(t, switched)
	assert.Equal(t, StrategyTrendFollowingLong, a.Strategy)

	_, switched = s.Select(m)
	assert.False(t, switched)

	m.Label = models.MetaMixedCondition
	a, switched = s.Select(m)
	assert.True(t, switched)
	assert.Equal(t, StrategyNeutral, a.Strategy)
}
