package api

import (
	"github.com/labstack/echo/v4"

	"TradeFlow/internal/domain/models"
	"TradeFlow/internal/usecase"
	xhttp "TradeFlow/pkg/http"
	xlogger "TradeFlow/pkg/logger"
)

// PortfolioHandler serves the risk configuration, the portfolio read API and the
// position sizing / update / execute entry points.
type PortfolioHandler struct {
	logger    *xlogger.Logger
	portfolio *usecase.PortfolioEngine
	exec      *usecase.ExecutionService
}

func NewPortfolioHandler(logger *xlogger.Logger, portfolio *usecase.PortfolioEngine, exec *usecase.ExecutionService) *PortfolioHandler {
	return &PortfolioHandler{logger: logger, portfolio: portfolio, exec: exec}
}

func (h *PortfolioHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/risk/config", h.GetRiskConfig)
	g.PUT("/risk/config", h.UpdateRiskConfig)
	g.GET("/portfolio/summary", h.Summary)
	g.GET("/portfolio/positions", h.Positions)
	g.GET("/portfolio/executions", h.Executions)
	g.POST("/position/size", h.SizePosition)
	g.POST("/position/update", h.UpdatePosition)
	g.POST("/execute", h.Execute)
}

func (h *PortfolioHandler) GetRiskConfig(c echo.Context) error {
	cfg, err := h.portfolio.RiskConfig(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, cfg)
}

func (h *PortfolioHandler) UpdateRiskConfig(c echo.Context) error {
	req := &models.RiskConfigRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	cfg, err := h.portfolio.UpdateRiskConfig(c.Request().Context(), req.ToModel())
	if err != nil {
		h.logger.Error("update risk config failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, cfg)
}

func (h *PortfolioHandler) Summary(c echo.Context) error {
	s, err := h.portfolio.Summary(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *PortfolioHandler) Positions(c echo.Context) error {
	ps, err := h.portfolio.Positions(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.ListResponse(c, ps, len(ps))
}

func (h *PortfolioHandler) Executions(c echo.Context) error {
	req := &models.ListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.exec.Executions(c.Request().Context(), req.N)
	if err != nil {
		h.logger.Error("list executions failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.ListResponse(c, rows, len(rows))
}

func (h *PortfolioHandler) SizePosition(c echo.Context) error {
	req := &models.PositionSizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sizing, err := h.portfolio.SizePosition(c.Request().Context(), req.Price, req.ATR)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, sizing)
}

type positionUpdateResponse struct {
	Position models.PortfolioPosition `json:"position"`
	Summary  models.PortfolioSummary  `json:"summary"`
}

func (h *PortfolioHandler) UpdatePosition(c echo.Context) error {
	req := &models.PositionUpdateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	pos, sum, err := h.portfolio.UpdatePosition(c.Request().Context(), req.Symbol, req.PositionSize, req.Price)
	if err != nil {
		h.logger.Info("position update rejected", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, positionUpdateResponse{Position: pos, Summary: sum})
}

func (h *PortfolioHandler) Execute(c echo.Context) error {
	req := &models.ExecuteTradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	exec, err := h.exec.Execute(c.Request().Context(), usecase.ExecuteRequest{
		Market:   models.Market(req.Market),
		Symbol:   req.Symbol,
		Action:   models.Action(req.Action),
		Price:    req.Price,
		ATR:      req.ATR,
		Strategy: req.Strategy,
	})
	if err != nil {
		h.logger.Info("execution rejected", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.CreatedResponse(c, exec)
}
