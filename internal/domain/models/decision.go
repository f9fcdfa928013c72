package models

import "time"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Decision is a trade intent that passed confidence and cooldown gating.
type Decision struct {
	Market     Market          `json:"market"`
	Symbol     string          `json:"symbol"`
	MetaRegime MetaRegimeLabel `json:"meta_regime"`
	Strategy   string          `json:"strategy"`
	Action     Action          `json:"action"`
	Confidence float64         `json:"confidence"`
	Timestamp  time.Time       `json:"timestamp"`
}
