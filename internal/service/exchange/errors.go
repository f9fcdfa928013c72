package exchange

import "errors"

var (
	// ErrUnsupportedMarket is returned by the factory for markets without a connector.
	ErrUnsupportedMarket = errors.New("unsupported market")
	// ErrMalformedMessage marks a frame that could not be normalized. The frame is dropped.
	ErrMalformedMessage = errors.New("malformed message")
)
