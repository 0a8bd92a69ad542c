package broker

import (
	marketdata "main/internal/domain/entity/marketdata"
	orderlog "main/internal/domain/entity/orderlog"
)

// BaseMessage is the envelope published on the market data exchanges.
// Exactly one field is expected to be set per message.
type BaseMessage struct {
	Depth         *marketdata.DepthSnapshot `json:"depth,omitempty"`
	Trade         *marketdata.Trade         `json:"trade,omitempty"`
	Level1        *marketdata.Level1Change  `json:"level1,omitempty"`
	OrderRegister *marketdata.OrderRegister `json:"order_register,omitempty"`
	OrderReplace  *marketdata.OrderReplace  `json:"order_replace,omitempty"`
	OrderCancel   *marketdata.OrderCancel   `json:"order_cancel,omitempty"`
}

// EntryMessage is the envelope published on the order log exchange for
// every synthesized entry.
type EntryMessage struct {
	Entry *orderlog.Entry `json:"entry"`
}
