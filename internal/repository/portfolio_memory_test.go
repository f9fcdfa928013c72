package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
)

func TestMemoryPortfolioStoreSingletons(t *testing.T) {
	s := NewMemoryPortfolioStore()
	ctx := context.Background()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, domrepo.ErrNotInitialized)

	require.NoError(t, s.InitRiskConfig(ctx, models.RiskConfiguration{TotalCapital: 100}))
	assert.ErrorIs(t, s.InitRiskConfig(ctx, models.RiskConfiguration{TotalCapital: 200}), domrepo.ErrSingletonExists)

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, domrepo.ErrNotInitialized)

	require.NoError(t, s.CreateSummary(ctx, models.PortfolioSummary{TotalCapital: 100, FreeCapital: 100}))
	assert.ErrorIs(t, s.CreateSummary(ctx, models.PortfolioSummary{}), domrepo.ErrSingletonExists)

	st, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.0, st.Risk.TotalCapital)
}

func TestMemoryPortfolioStoreApplyDiscardsOnError(t *testing.T) {
	s := NewMemoryPortfolioStore()
	ctx := context.Background()
	require.NoError(t, s.InitRiskConfig(ctx, models.RiskConfiguration{TotalCapital: 100}))
	require.NoError(t, s.CreateSummary(ctx, models.PortfolioSummary{TotalCapital: 100, FreeCapital: 100}))

	boom := errors.New("boom")
	err := s.Apply(ctx, func(st *models.PortfolioState) error {
		st.Summary.UsedCapital = 50
		st.Positions["X"] = models.PortfolioPosition{Symbol: "X"}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	st, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Summary.UsedCapital)
	assert.Empty(t, st.Positions)

	require.NoError(t, s.Apply(ctx, func(st *models.PortfolioState) error {
		st.Summary.UsedCapital = 50
		return nil
	}))
	st, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50.0, st.Summary.UsedCapital)
}

func TestMemoryPortfolioStoreLedgerIsAppendOnly(t *testing.T) {
	s := NewMemoryPortfolioStore()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendExecution(ctx, models.TradeExecution{ID: "a", ExecutedAt: t0}))
	require.NoError(t, s.AppendExecution(ctx, models.TradeExecution{ID: "b", ExecutedAt: t0.Add(time.Second)}))
	assert.ErrorIs(t, s.AppendExecution(ctx, models.TradeExecution{ID: "a", ExecutedAt: t0.Add(time.Hour)}), domrepo.ErrImmutableRecord)
	assert.Error(t, s.AppendExecution(ctx, models.TradeExecution{}))

	got, err := s.Executions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, t0, got[1].ExecutedAt)

	got, err = s.Executions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
