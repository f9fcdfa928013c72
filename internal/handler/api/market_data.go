package api

import (
	"github.com/labstack/echo/v4"

	"TradeFlow/internal/domain/models"
	"TradeFlow/internal/usecase"
	xhttp "TradeFlow/pkg/http"
	xlogger "TradeFlow/pkg/logger"
)

// MarketDataHandler serves persisted candles and feature vectors.
type MarketDataHandler struct {
	logger *xlogger.Logger
	uc     *usecase.MarketDataUseCase
}

func NewMarketDataHandler(logger *xlogger.Logger, uc *usecase.MarketDataUseCase) *MarketDataHandler {
	return &MarketDataHandler{logger: logger, uc: uc}
}

func (h *MarketDataHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/candles", h.Candles)
	g.GET("/features", h.Features)
}

func (h *MarketDataHandler) params(c echo.Context) (usecase.SeriesParams, []xhttp.ValidationError) {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return usecase.SeriesParams{}, verr
	}
	tf, err := models.ParseTimeframe(req.TF)
	if err != nil {
		return usecase.SeriesParams{}, []xhttp.ValidationError{{Code: "ERR_TIMEFRAME", Field: "tf", Message: err.Error()}}
	}
	return usecase.SeriesParams{Market: models.Market(req.Market), Symbol: req.Symbol, Timeframe: tf, Limit: req.N}, nil
}

func (h *MarketDataHandler) Candles(c echo.Context) error {
	p, verr := h.params(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.uc.Candles(c.Request().Context(), p)
	if err != nil {
		h.logger.Error("candles usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.ListResponse(c, rows, len(rows))
}

func (h *MarketDataHandler) Features(c echo.Context) error {
	p, verr := h.params(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.uc.Features(c.Request().Context(), p)
	if err != nil {
		h.logger.Error("features usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.ListResponse(c, rows, len(rows))
}
