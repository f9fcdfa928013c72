package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/pkg/logger"
)

// PortfolioEngine is the only writer of positions and the portfolio summary.
type PortfolioEngine struct {
	// mu serializes updates inside this process; the store serializes across processes.
	mu       sync.Mutex
	store    domrepo.PortfolioStore
	metrics  domrepo.Metrics
	log      *logger.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewPortfolioEngine(store domrepo.PortfolioStore, metrics domrepo.Metrics, l *logger.Logger) *PortfolioEngine {
	return &PortfolioEngine{
		store:    store,
		metrics:  metrics,
		log:      l,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Bootstrap creates the risk configuration and summary when absent. Existing records are kept
// and the summary's total capital is aligned with the stored configuration.
func (p *PortfolioEngine) Bootstrap(ctx context.Context, seed models.RiskConfiguration) error {
	if err := p.validate.Struct(seed); err != nil {
		return fmt.Errorf("invalid risk configuration: %w", err)
	}
	now := p.now().UTC()
	seed.UpdatedAt = now
	if err := p.store.InitRiskConfig(ctx, seed); err != nil && !errors.Is(err, domrepo.ErrSingletonExists) {
		return fmt.Errorf("init risk config: %w", err)
	}
	summary := models.PortfolioSummary{
		TotalCapital: seed.TotalCapital,
		FreeCapital:  seed.TotalCapital,
		UpdatedAt:    now,
	}
	if err := p.store.CreateSummary(ctx, summary); err != nil && !errors.Is(err, domrepo.ErrSingletonExists) {
		return fmt.Errorf("create portfolio summary: %w", err)
	}
	return p.apply(ctx, func(st *models.PortfolioState) error {
		recompute(st, now)
		return nil
	})
}

func (p *PortfolioEngine) RiskConfig(ctx context.Context) (models.RiskConfiguration, error) {
	st, err := p.store.Load(ctx)
	if err != nil {
		return models.RiskConfiguration{}, err
	}
	return st.Risk, nil
}

// UpdateRiskConfig replaces the risk policy; the summary follows the new total capital.
func (p *PortfolioEngine) UpdateRiskConfig(ctx context.Context, cfg models.RiskConfiguration) (models.RiskConfiguration, error) {
	if err := p.validate.Struct(cfg); err != nil {
		return models.RiskConfiguration{}, fmt.Errorf("invalid risk configuration: %w", err)
	}
	var out models.RiskConfiguration
	err := p.apply(ctx, func(st *models.PortfolioState) error {
		now := p.now().UTC()
		cfg.UpdatedAt = now
		st.Risk = cfg
		recompute(st, now)
		out = cfg
		return nil
	})
	if err != nil {
		return models.RiskConfiguration{}, err
	}
	p.log.Info("risk configuration updated",
		logger.Float64("total_capital", cfg.TotalCapital),
		logger.Float64("risk_per_trade", cfg.RiskPerTrade))
	return out, nil
}

// SizePosition sizes a position against the stored risk configuration.
func (p *PortfolioEngine) SizePosition(ctx context.Context, price, atr float64) (models.PositionSizing, error) {
	risk, err := p.RiskConfig(ctx)
	if err != nil {
		return models.PositionSizing{}, err
	}
	return SizePosition(price, atr, risk)
}

// UpdatePosition sets the position of symbol to size at price. All three caps are checked
// before anything is written; a rejection returns a *RiskViolation and leaves state untouched.
func (p *PortfolioEngine) UpdatePosition(ctx context.Context, symbol string, size, price float64) (models.PortfolioPosition, models.PortfolioSummary, error) {
	if symbol == "" {
		return models.PortfolioPosition{}, models.PortfolioSummary{}, ErrNoSymbol
	}
	if size < 0 || price < 0 {
		return models.PortfolioPosition{}, models.PortfolioSummary{}, ErrInvalidSize
	}

	var (
		pos     models.PortfolioPosition
		summary models.PortfolioSummary
	)
	err := p.apply(ctx, func(st *models.PortfolioState) error {
		exposure := decimal.NewFromFloat(size).Mul(decimal.NewFromFloat(price))
		current := decimal.Zero
		if existing, ok := st.Positions[symbol]; ok {
			current = decimal.NewFromFloat(existing.Exposure)
		}
		total := decimal.NewFromFloat(st.Risk.TotalCapital)
		used := decimal.NewFromFloat(st.Summary.UsedCapital)
		newTotal := used.Sub(current).Add(exposure)

		if limit := total.Mul(decimal.NewFromFloat(st.Risk.MaxExposurePerAsset)); exposure.GreaterThan(limit) {
			return violation(RuleMaxExposurePerAsset, limit, exposure, ErrAssetCapExceeded)
		}
		if limit := total.Mul(decimal.NewFromFloat(st.Risk.MaxTotalExposure)); newTotal.GreaterThan(limit) {
			return violation(RuleMaxTotalExposure, limit, newTotal, ErrPortfolioCapExceeded)
		}
		if free := decimal.NewFromFloat(st.Summary.FreeCapital); exposure.GreaterThan(free) {
			return violation(RuleFreeCapital, free, exposure, ErrInsufficientCapital)
		}

		now := p.now().UTC()
		pos = models.PortfolioPosition{
			Symbol:       symbol,
			PositionSize: size,
			AveragePrice: price,
			Exposure:     exposure.InexactFloat64(),
			UpdatedAt:    now,
		}
		st.Positions[symbol] = pos
		recompute(st, now)
		summary = st.Summary
		return nil
	})
	if err != nil {
		var rv *RiskViolation
		if errors.As(err, &rv) {
			p.metrics.RecordRiskRejection(rv.Rule)
			p.log.Info("position update rejected",
				logger.String("symbol", symbol),
				logger.String("rule", rv.Rule),
				logger.Float64("requested", rv.Requested),
				logger.Float64("limit", rv.Limit))
		}
		return models.PortfolioPosition{}, models.PortfolioSummary{}, err
	}
	return pos, summary, nil
}

func (p *PortfolioEngine) Summary(ctx context.Context) (models.PortfolioSummary, error) {
	st, err := p.store.Load(ctx)
	if err != nil {
		return models.PortfolioSummary{}, err
	}
	return st.Summary, nil
}

// Positions returns all positions ordered by symbol.
func (p *PortfolioEngine) Positions(ctx context.Context) ([]models.PortfolioPosition, error) {
	st, err := p.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.PortfolioPosition, 0, len(st.Positions))
	for _, pos := range st.Positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (p *PortfolioEngine) Position(ctx context.Context, symbol string) (models.PortfolioPosition, bool, error) {
	st, err := p.store.Load(ctx)
	if err != nil {
		return models.PortfolioPosition{}, false, err
	}
	pos, ok := st.Positions[symbol]
	return pos, ok, nil
}

func (p *PortfolioEngine) apply(ctx context.Context, fn func(*models.PortfolioState) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := time.Now()
	err := p.store.Apply(ctx, fn)
	p.metrics.RecordLatency("portfolio_apply", time.Since(start).Seconds())
	return err
}

// recompute derives used, free and total exposure from the positions.
func recompute(st *models.PortfolioState, now time.Time) {
	used := decimal.Zero
	for _, pos := range st.Positions {
		used = used.Add(decimal.NewFromFloat(pos.Exposure))
	}
	total := decimal.NewFromFloat(st.Risk.TotalCapital)
	st.Summary.TotalCapital = st.Risk.TotalCapital
	st.Summary.UsedCapital = used.InexactFloat64()
	st.Summary.FreeCapital = total.Sub(used).InexactFloat64()
	st.Summary.TotalExposure = st.Summary.UsedCapital
	st.Summary.UpdatedAt = now
}

func violation(rule string, limit, requested decimal.Decimal, err error) *RiskViolation {
	return &RiskViolation{
		Rule:      rule,
		Limit:     limit.InexactFloat64(),
		Requested: requested.InexactFloat64(),
		err:       err,
	}
}
