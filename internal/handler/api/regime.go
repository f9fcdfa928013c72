package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"TradeFlow/internal/domain/models"
	"TradeFlow/internal/usecase"
	xhttp "TradeFlow/pkg/http"
	xlogger "TradeFlow/pkg/logger"
)

// HealthReader exposes per-market connectivity.
type HealthReader interface {
	Snapshot() []models.MarketHealth
}

// RegimeHandler exposes the latest regime, meta-regime, strategy and decision per instrument.
type RegimeHandler struct {
	logger  *xlogger.Logger
	engines usecase.RegimeEngines
	health  HealthReader
}

func NewRegimeHandler(logger *xlogger.Logger, engines usecase.RegimeEngines, health HealthReader) *RegimeHandler {
	return &RegimeHandler{logger: logger, engines: engines, health: health}
}

func (h *RegimeHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/regime", h.Regime)
	g.GET("/regime/meta", h.MetaRegime)
	g.GET("/strategy", h.Strategy)
	g.GET("/decision/latest", h.Decision)
	g.GET("/market/status", h.MarketStatus)
}

func (h *RegimeHandler) Regime(c echo.Context) error {
	req := &models.InstrumentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	states := h.engines.Stability.States(models.Market(req.Market), req.Symbol)
	return xhttp.ListResponse(c, states, len(states))
}

func (h *RegimeHandler) MetaRegime(c echo.Context) error {
	req := &models.InstrumentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	m, ok := h.engines.Fusion.Latest(models.Market(req.Market), req.Symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no meta-regime for "+req.Symbol))
	}
	return xhttp.SuccessResponse(c, m)
}

func (h *RegimeHandler) Strategy(c echo.Context) error {
	req := &models.InstrumentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	a, ok := h.engines.Strategy.Active(models.Market(req.Market), req.Symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no strategy for "+req.Symbol))
	}
	return xhttp.SuccessResponse(c, a)
}

func (h *RegimeHandler) Decision(c echo.Context) error {
	req := &models.InstrumentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	d, ok := h.engines.Decisions.Latest(req.Symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no decision for "+req.Symbol))
	}
	return xhttp.SuccessResponse(c, d)
}

func (h *RegimeHandler) MarketStatus(c echo.Context) error {
	snap := h.health.Snapshot()
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.DataResponse(c, http.StatusOK, snap)
}
