package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/internal/repository"
	"TradeFlow/pkg/logger"
	"TradeFlow/pkg/metrics"
)

func defaultRisk() models.RiskConfiguration {
	return models.RiskConfiguration{
		TotalCapital:        100000,
		RiskPerTrade:        0.02,
		MaxExposurePerAsset: 0.20,
		MaxTotalExposure:    0.80,
		ATRMultiplier:       1.5,
	}
}

func newTestPortfolio(t *testing.T, risk models.RiskConfiguration) (*PortfolioEngine, *repository.MemoryPortfolioStore) {
	t.Helper()
	store := repository.NewMemoryPortfolioStore()
	p := NewPortfolioEngine(store, metrics.Nop{}, logger.Nop())
	require.NoError(t, p.Bootstrap(context.Background(), risk))
	return p, store
}

func TestSizePosition(t *testing.T) {
	s, err := SizePosition(200, 50, defaultRisk())
	require.NoError(t, err)
	assert.InDelta(t, 2000, s.RiskAmount, 1e-9)
	assert.InDelta(t, 75, s.StopDistance, 1e-9)
	assert.InDelta(t, 2000.0/75.0, s.PositionSize, 1e-9)
	assert.InDelta(t, 2000.0/75.0*200, s.CapitalAllocated, 1e-9)

	_, err = SizePosition(200, 0, defaultRisk())
	assert.ErrorIs(t, err, ErrNonPositiveATR)

	noStop := defaultRisk()
	noStop.ATRMultiplier = 0
	_, err = SizePosition(200, 10, noStop)
	assert.ErrorIs(t, err, ErrNonPositiveStop)
}

func TestUpdatePositionAssetCap(t *testing.T) {
	p, _ := newTestPortfolio(t, defaultRisk())
	ctx := context.Background()

	_, _, err := p.UpdatePosition(ctx, "BTCUSDT", 250, 100)
	require.ErrorIs(t, err, ErrAssetCapExceeded)
	var rv *RiskViolation
	require.True(t, errors.As(err, &rv))
	assert.Equal(t, RuleMaxExposurePerAsset, rv.Rule)
	assert.Equal(t, 20000.0, rv.Limit)
	assert.Equal(t, 25000.0, rv.Requested)

	sum, err := p.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.UsedCapital)
	assert.Equal(t, 100000.0, sum.FreeCapital)
	positions, err := p.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	pos, sum, err := p.UpdatePosition(ctx, "BTCUSDT", 150, 100)
	require.NoError(t, err)
	assert.Equal(t, 15000.0, pos.Exposure)
	assert.Equal(t, 15000.0, sum.UsedCapital)
	assert.Equal(t, 85000.0, sum.FreeCapital)
	assert.Equal(t, 15000.0, sum.TotalExposure)
}

func TestUpdatePositionReplacesExistingExposure(t *testing.T) {
	p, _ := newTestPortfolio(t, defaultRisk())
	ctx := context.Background()

	_, _, err := p.UpdatePosition(ctx, "ETHUSDT", 10, 1000)
	require.NoError(t, err)
	_, sum, err := p.UpdatePosition(ctx, "ETHUSDT", 5, 2000)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, sum.UsedCapital)

	pos, ok, err := p.Position(ctx, "ETHUSDT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5.0, pos.PositionSize)
	assert.Equal(t, 2000.0, pos.AveragePrice)
}

func TestUpdatePositionTotalCap(t *testing.T) {
	p, _ := newTestPortfolio(t, defaultRisk())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _, err := p.UpdatePosition(ctx, fmt.Sprintf("SYM%d", i), 200, 100)
		require.NoError(t, err)
	}
	_, _, err := p.UpdatePosition(ctx, "SYM4", 1, 100)
	assert.ErrorIs(t, err, ErrPortfolioCapExceeded)

	sum, err := p.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 80000.0, sum.UsedCapital)
}

func TestUpdatePositionFreeCapital(t *testing.T) {
	risk := defaultRisk()
	risk.MaxExposurePerAsset = 0.30
	risk.MaxTotalExposure = 0.90
	p, _ := newTestPortfolio(t, risk)
	ctx := context.Background()

	for sym, exp := range map[string]float64{"A": 30000, "B": 30000, "X": 20000} {
		_, _, err := p.UpdatePosition(ctx, sym, exp/100, 100)
		require.NoError(t, err)
	}
	_, _, err := p.UpdatePosition(ctx, "X", 250, 100)
	require.ErrorIs(t, err, ErrInsufficientCapital)

	pos, _, err := p.Position(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 20000.0, pos.Exposure)
}

func TestUpdatePositionConcurrent(t *testing.T) {
	p, _ := newTestPortfolio(t, defaultRisk())
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := p.UpdatePosition(ctx, fmt.Sprintf("S%02d", i), 100, 100); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, accepted)
	sum, err := p.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 80000.0, sum.UsedCapital)
	assert.Equal(t, 20000.0, sum.FreeCapital)
}

func TestPortfolioNotInitialized(t *testing.T) {
	p := NewPortfolioEngine(repository.NewMemoryPortfolioStore(), metrics.Nop{}, logger.Nop())
	_, _, err := p.UpdatePosition(context.Background(), "BTCUSDT", 1, 1)
	assert.ErrorIs(t, err, domrepo.ErrNotInitialized)
	_, err = p.SizePosition(context.Background(), 1, 1)
	assert.ErrorIs(t, err, domrepo.ErrNotInitialized)
}

func TestUpdatePositionRejectsBadInput(t *testing.T) {
	p, _ := newTestPortfolio(t, defaultRisk())
	ctx := context.Background()

	_, _, err := p.UpdatePosition(ctx, "", 1, 100)
	assert.ErrorIs(t, err, ErrNoSymbol)
	_, _, err = p.UpdatePosition(ctx, "BTCUSDT", -1, 100)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestPortfolioSingletons(t *testing.T) {
	p, store := newTestPortfolio(t, defaultRisk())
	ctx := context.Background()

	assert.ErrorIs(t, store.InitRiskConfig(ctx, defaultRisk()), domrepo.ErrSingletonExists)
	assert.ErrorIs(t, store.CreateSummary(ctx, models.PortfolioSummary{}), domrepo.ErrSingletonExists)

	// bootstrapping again keeps the stored configuration
	other := defaultRisk()
	other.TotalCapital = 5
	require.NoError(t, p.Bootstrap(ctx, other))
	cfg, err := p.RiskConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, cfg.TotalCapital)
}

func TestUpdateRiskConfig(t *testing.T) {
	p, _ := newTestPortfolio(t, defaultRisk())
	ctx := context.Background()

	_, _, err := p.UpdatePosition(ctx, "BTCUSDT", 100, 100)
	require.NoError(t, err)

	cfg := defaultRisk()
	cfg.TotalCapital = 200000
	_, err = p.UpdateRiskConfig(ctx, cfg)
	require.NoError(t, err)

	sum, err := p.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200000.0, sum.TotalCapital)
	assert.Equal(t, 190000.0, sum.FreeCapital)

	bad := cfg
	bad.RiskPerTrade = 0
	_, err = p.UpdateRiskConfig(ctx, bad)
	assert.Error(t, err)
}

func TestExecutionLedgerIsAppendOnly(t *testing.T) {
	store := repository.NewMemoryPortfolioStore()
	ctx := context.Background()

	e := models.TradeExecution{ID: "e1", Symbol: "BTCUSDT", Action: models.ActionBuy, PositionSize: 1, Price: 10}
	require.NoError(t, store.AppendExecution(ctx, e))

	e.Price = 11
	assert.ErrorIs(t, store.AppendExecution(ctx, e), domrepo.ErrImmutableRecord)

	got, err := store.Executions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 10.0, got[0].Price)

	got[0].Price = 99
	again, err := store.Executions(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, again[0].Price)
}
