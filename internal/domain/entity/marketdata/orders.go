package marketdata

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/domain/entity/depth"
)

// OrderRegister asks the engine to place a user order.
type OrderRegister struct {
	SecurityID    uuid.UUID       `json:"security_id"`
	TransactionID int64           `json:"transaction_id"`
	Side          depth.Side      `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Volume        decimal.Decimal `json:"volume"`
	PortfolioName string          `json:"portfolio_name"`
	UserOrderID   string          `json:"user_order_id,omitempty"`
	LocalTime     time.Time       `json:"local_time"`
}

// OrderReplace cancels an existing user order and registers a new one
// atomically.
type OrderReplace struct {
	OrderRegister

	OldOrderID       int64 `json:"old_order_id"`
	OldTransactionID int64 `json:"old_transaction_id"`
}

// OrderCancel asks the engine to cancel a user order.
type OrderCancel struct {
	SecurityID         uuid.UUID `json:"security_id"`
	OrderID            int64     `json:"order_id"`
	TransactionID      int64     `json:"transaction_id"`
	OrderTransactionID int64     `json:"order_transaction_id"`
	PortfolioName      string    `json:"portfolio_name"`
	LocalTime          time.Time `json:"local_time"`
}
