package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeFlow/internal/domain/models"
	"TradeFlow/internal/repository"
	"TradeFlow/pkg/logger"
	"TradeFlow/pkg/metrics"
)

func newTestExecution(t *testing.T) (*ExecutionService, *PortfolioEngine, *recordingBroadcaster) {
	t.Helper()
	store := repository.NewMemoryPortfolioStore()
	portfolio := NewPortfolioEngine(store, metrics.Nop{}, logger.Nop())
	require.NoError(t, portfolio.Bootstrap(context.Background(), defaultRisk()))
	bc := &recordingBroadcaster{}
	s := NewExecutionService(portfolio, store, NewFeatureEngine(2, 2, nil, logger.Nop()), models.TF1m, bc, logger.Nop())
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s, portfolio, bc
}

func TestExecuteBuyThenSell(t *testing.T) {
	s, portfolio, bc := newTestExecution(t)
	ctx := context.Background()

	buy, err := s.Execute(ctx, ExecuteRequest{Symbol: "ETHUSDT", Action: models.ActionBuy, Price: 2000, ATR: 200, Strategy: StrategyDipBuying})
	require.NoError(t, err)
	assert.NotEmpty(t, buy.ID)
	// 2000 risk / (200 * 1.5)
	assert.InDelta(t, 2000.0/300.0, buy.PositionSize, 1e-9)
	assert.InDelta(t, 2000.0/300.0*2000, buy.CapitalAllocated, 1e-6)

	sell, err := s.Execute(ctx, ExecuteRequest{Symbol: "ETHUSDT", Action: models.ActionSell, Price: 2100, Strategy: StrategyRallySelling})
	require.NoError(t, err)
	assert.NotEqual(t, buy.ID, sell.ID)
	assert.InDelta(t, buy.PositionSize, sell.PositionSize, 1e-9)

	sum, err := portfolio.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.UsedCapital)

	execs, err := s.Executions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, execs, 2)
	assert.Equal(t, 2, bc.count(models.ChannelExecution))
}

func TestExecuteRejections(t *testing.T) {
	s, _, _ := newTestExecution(t)
	ctx := context.Background()

	_, err := s.Execute(ctx, ExecuteRequest{Symbol: "ETHUSDT", Action: models.ActionHold, Price: 1, ATR: 1})
	assert.ErrorIs(t, err, ErrHoldAction)

	_, err = s.Execute(ctx, ExecuteRequest{Symbol: "ETHUSDT", Action: models.ActionSell, Price: 1})
	assert.ErrorIs(t, err, ErrNoPosition)

	_, err = s.Execute(ctx, ExecuteRequest{Symbol: "ETHUSDT", Action: models.ActionBuy, Price: 1, ATR: 0})
	assert.ErrorIs(t, err, ErrNonPositiveATR)

	// tiny ATR sizes a position far over the asset cap
	_, err = s.Execute(ctx, ExecuteRequest{Symbol: "ETHUSDT", Action: models.ActionBuy, Price: 2000, ATR: 0.5})
	assert.ErrorIs(t, err, ErrAssetCapExceeded)

	_, err = s.ExecuteDecision(ctx, models.Decision{Market: models.MarketCrypto, Symbol: "ETHUSDT", Action: models.ActionBuy})
	assert.ErrorIs(t, err, ErrNoFeatures)

	execs, err := s.Executions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, execs)
}
