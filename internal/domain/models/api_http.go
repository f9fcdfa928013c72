package models

// Requests for the HTTP API. Query and body tags follow echo's binder.

type InstrumentRequest struct {
	Market string `query:"market" json:"market" default:"CRYPTO" validate:"oneof=CRYPTO US_STOCK NSE"`
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type SeriesRequest struct {
	Market string `query:"market" json:"market" default:"CRYPTO" validate:"oneof=CRYPTO US_STOCK NSE"`
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"required"`
	N      int    `query:"n" json:"n" default:"100" validate:"gte=1,lte=5000"`
}

type ListRequest struct {
	N int `query:"n" json:"n" default:"50" validate:"gte=1,lte=1000"`
}

type PositionSizeRequest struct {
	Price float64 `json:"price" validate:"gt=0"`
	ATR   float64 `json:"atr" validate:"gt=0"`
}

type PositionUpdateRequest struct {
	Symbol       string  `json:"symbol" validate:"required"`
	PositionSize float64 `json:"position_size" validate:"gte=0"`
	Price        float64 `json:"price" validate:"gt=0"`
}

type ExecuteTradeRequest struct {
	Market   string  `json:"market" default:"CRYPTO" validate:"oneof=CRYPTO US_STOCK NSE"`
	Symbol   string  `json:"symbol" validate:"required"`
	Action   string  `json:"action" validate:"oneof=BUY SELL"`
	Price    float64 `json:"price" validate:"gt=0"`
	ATR      float64 `json:"atr" validate:"gte=0"`
	Strategy string  `json:"strategy" default:"Manual"`
}

type RiskConfigRequest struct {
	TotalCapital        float64 `json:"total_capital" validate:"gt=0"`
	RiskPerTrade        float64 `json:"risk_per_trade" validate:"gt=0,lte=1"`
	MaxExposurePerAsset float64 `json:"max_exposure_per_asset" validate:"gt=0,lte=1"`
	MaxTotalExposure    float64 `json:"max_total_exposure" validate:"gt=0,lte=1"`
	ATRMultiplier       float64 `json:"atr_multiplier" validate:"gt=0"`
	KellyEnabled        bool    `json:"kelly_enabled"`
}

func (r *RiskConfigRequest) ToModel() RiskConfiguration {
	return RiskConfiguration{
		TotalCapital:        r.TotalCapital,
		RiskPerTrade:        r.RiskPerTrade,
		MaxExposurePerAsset: r.MaxExposurePerAsset,
		MaxTotalExposure:    r.MaxTotalExposure,
		ATRMultiplier:       r.ATRMultiplier,
		KellyEnabled:        r.KellyEnabled,
	}
}
