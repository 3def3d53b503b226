package eventbus

import "errors"

var (
	ErrBusClosed     = errors.New("event bus closed")
	ErrBusRunning    = errors.New("handlers must be added before the bus starts")
	ErrDecodePayload = errors.New("decode event payload")
)
