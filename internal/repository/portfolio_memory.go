package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
)

// MemoryPortfolioStore keeps the portfolio in process memory.
type MemoryPortfolioStore struct {
	mu         sync.Mutex
	risk       *models.RiskConfiguration
	summary    *models.PortfolioSummary
	positions  map[string]models.PortfolioPosition
	executions []models.TradeExecution
	execIDs    map[string]struct{}
}

func NewMemoryPortfolioStore() *MemoryPortfolioStore {
	return &MemoryPortfolioStore{
		positions: make(map[string]models.PortfolioPosition),
		execIDs:   make(map[string]struct{}),
	}
}

func (s *MemoryPortfolioStore) InitRiskConfig(_ context.Context, cfg models.RiskConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.risk != nil {
		return domrepo.ErrSingletonExists
	}
	s.risk = &cfg
	return nil
}

func (s *MemoryPortfolioStore) CreateSummary(_ context.Context, sum models.PortfolioSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary != nil {
		return domrepo.ErrSingletonExists
	}
	s.summary = &sum
	return nil
}

func (s *MemoryPortfolioStore) Load(_ context.Context) (*models.PortfolioState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Apply holds the store lock for the whole read-check-write sequence.
func (s *MemoryPortfolioStore) Apply(_ context.Context, fn func(*models.PortfolioState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.snapshot()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	risk, summary := st.Risk, st.Summary
	s.risk, s.summary = &risk, &summary
	s.positions = st.Positions
	return nil
}

func (s *MemoryPortfolioStore) snapshot() (*models.PortfolioState, error) {
	if s.risk == nil || s.summary == nil {
		return nil, domrepo.ErrNotInitialized
	}
	st := &models.PortfolioState{Risk: *s.risk, Summary: *s.summary, Positions: s.positions}
	return st.Clone(), nil
}

func (s *MemoryPortfolioStore) AppendExecution(_ context.Context, e models.TradeExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		return fmt.Errorf("execution id is required")
	}
	if _, ok := s.execIDs[e.ID]; ok {
		return fmt.Errorf("%w: execution %s", domrepo.ErrImmutableRecord, e.ID)
	}
	s.execIDs[e.ID] = struct{}{}
	s.executions = append(s.executions, e)
	return nil
}

func (s *MemoryPortfolioStore) Executions(_ context.Context, limit int) ([]models.TradeExecution, error) {
	s.mu.Lock()
	out := make([]models.TradeExecution, len(s.executions))
	copy(out, s.executions)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ domrepo.PortfolioStore = (*MemoryPortfolioStore)(nil)
