package api

import (
	"errors"
	"strings"

	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/internal/usecase"
	xhttp "TradeFlow/pkg/http"
)

var policyErrors = []error{
	usecase.ErrNonPositiveATR,
	usecase.ErrNonPositiveStop,
	usecase.ErrAssetCapExceeded,
	usecase.ErrPortfolioCapExceeded,
	usecase.ErrInsufficientCapital,
	usecase.ErrHoldAction,
	usecase.ErrNoFeatures,
	usecase.ErrNoPosition,
	usecase.ErrInvalidSize,
}

// toAppError maps domain failures onto HTTP errors. Unknown errors become 500.
func toAppError(err error) error {
	var rv *usecase.RiskViolation
	switch {
	case errors.As(err, &rv):
		return xhttp.UnprocessableError("ERR_RISK_"+strings.ToUpper(rv.Rule), rv.Error(), err)
	case errors.Is(err, domrepo.ErrNotInitialized):
		return xhttp.NotFoundError(err.Error())
	case errors.Is(err, domrepo.ErrNotFound):
		return xhttp.NotFoundError(err.Error())
	case errors.Is(err, usecase.ErrNoSymbol):
		return xhttp.BadRequestError(err.Error(), err)
	case errors.Is(err, domrepo.ErrSingletonExists), errors.Is(err, domrepo.ErrImmutableRecord):
		return xhttp.ConflictError(err.Error(), err)
	}
	for _, pe := range policyErrors {
		if errors.Is(err, pe) {
			return xhttp.UnprocessableError("ERR_POLICY", err.Error(), err)
		}
	}
	return xhttp.InternalError("internal error", err)
}
