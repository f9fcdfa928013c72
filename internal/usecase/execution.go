package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/pkg/logger"
)

// ExecuteRequest is a manual or decision-driven trade.
type ExecuteRequest struct {
	Market   models.Market
	Symbol   string
	Action   models.Action
	Price    float64
	ATR      float64
	Strategy string
}

// ExecutionService sizes a trade, commits it through the portfolio engine and appends
// the execution record. BUY sets the position to the ATR-sized amount; SELL closes it.
type ExecutionService struct {
	portfolio *PortfolioEngine
	ledger    domrepo.ExecutionLedger
	features  *FeatureEngine
	timeframe models.Timeframe
	broadcast domrepo.Broadcaster
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewExecutionService builds the service; tf selects the feature vector used for decision-driven trades.
func NewExecutionService(
	portfolio *PortfolioEngine,
	ledger domrepo.ExecutionLedger,
	features *FeatureEngine,
	tf models.Timeframe,
	broadcast domrepo.Broadcaster,
	l *logger.Logger,
) *ExecutionService {
	return &ExecutionService{
		portfolio: portfolio,
		ledger:    ledger,
		features:  features,
		timeframe: tf,
		broadcast: broadcast,
		log:       l,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *ExecutionService) Execute(ctx context.Context, req ExecuteRequest) (models.TradeExecution, error) {
	exec := models.TradeExecution{
		Symbol:   req.Symbol,
		Action:   req.Action,
		Price:    req.Price,
		Strategy: req.Strategy,
	}

	switch req.Action {
	case models.ActionBuy:
		sizing, err := s.portfolio.SizePosition(ctx, req.Price, req.ATR)
		if err != nil {
			return models.TradeExecution{}, err
		}
		if _, _, err := s.portfolio.UpdatePosition(ctx, req.Symbol, sizing.PositionSize, req.Price); err != nil {
			return models.TradeExecution{}, err
		}
		exec.PositionSize = sizing.PositionSize
		exec.CapitalAllocated = sizing.CapitalAllocated
	case models.ActionSell:
		pos, ok, err := s.portfolio.Position(ctx, req.Symbol)
		if err != nil {
			return models.TradeExecution{}, err
		}
		if !ok || pos.PositionSize == 0 {
			return models.TradeExecution{}, fmt.Errorf("%w: %s", ErrNoPosition, req.Symbol)
		}
		if _, _, err := s.portfolio.UpdatePosition(ctx, req.Symbol, 0, req.Price); err != nil {
			return models.TradeExecution{}, err
		}
		exec.PositionSize = pos.PositionSize
		exec.CapitalAllocated = pos.PositionSize * req.Price
	default:
		return models.TradeExecution{}, fmt.Errorf("%w: %s", ErrHoldAction, req.Action)
	}

	exec.ID = s.newID()
	exec.ExecutedAt = s.now().UTC()
	if err := s.ledger.AppendExecution(ctx, exec); err != nil {
		// the position is already committed; the record is what is missing
		s.log.Error("append execution failed", logger.String("id", exec.ID), logger.String("symbol", exec.Symbol), logger.Error(err))
		return exec, fmt.Errorf("append execution: %w", err)
	}

	s.log.Info("trade executed",
		logger.String("id", exec.ID),
		logger.String("symbol", exec.Symbol),
		logger.String("action", string(exec.Action)),
		logger.Float64("size", exec.PositionSize),
		logger.Float64("price", exec.Price))
	if s.broadcast != nil {
		if err := s.broadcast.Broadcast(ctx, models.Event{Channel: models.ChannelExecution, Data: exec}); err != nil {
			s.log.Debug("broadcast failed", logger.String("channel", models.ChannelExecution), logger.Error(err))
		}
	}
	return exec, nil
}

// ExecuteDecision executes d at the latest close using the latest ATR of the configured timeframe.
func (s *ExecutionService) ExecuteDecision(ctx context.Context, d models.Decision) (models.TradeExecution, error) {
	fv, ok := s.features.Latest(d.Market, d.Symbol, s.timeframe)
	if !ok {
		return models.TradeExecution{}, fmt.Errorf("%w: %s %s", ErrNoFeatures, d.Symbol, s.timeframe)
	}
	return s.Execute(ctx, ExecuteRequest{
		Market:   d.Market,
		Symbol:   d.Symbol,
		Action:   d.Action,
		Price:    fv.Close,
		ATR:      fv.ATR,
		Strategy: d.Strategy,
	})
}

func (s *ExecutionService) Executions(ctx context.Context, limit int) ([]models.TradeExecution, error) {
	return s.ledger.Executions(ctx, limit)
}
