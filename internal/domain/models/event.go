package models

// Live update channels.
const (
	ChannelCandle     = "candle"
	ChannelFeatures   = "features"
	ChannelRegime     = "regime"
	ChannelMetaRegime = "meta_regime"
	ChannelStrategy   = "strategy"
	ChannelDecision   = "decision"
	ChannelExecution  = "execution"
)

// Event is one outbound live update.
type Event struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}
