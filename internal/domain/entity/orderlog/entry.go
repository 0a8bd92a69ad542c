package orderlog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/domain/entity/depth"
)

// ExecType classifies an order-log entry.
type ExecType string

const (
	// ExecOrderLog marks a synthetic anonymous order event reconstructed
	// from aggregated market data.
	ExecOrderLog ExecType = "ORDER_LOG"
	// ExecTick marks a completed-trade entry accompanying a matched
	// top-of-book removal.
	ExecTick ExecType = "TICK"
	// ExecOrder marks a user order transaction routed through the engine.
	ExecOrder ExecType = "ORDER"
)

// TimeInForce of an entry.
type TimeInForce string

const (
	// TIFPutInQueue rests the order in the book.
	TIFPutInQueue TimeInForce = "PUT_IN_QUEUE"
	// TIFMatchOrCancel requires immediate execution of whatever volume is
	// available; the remainder is cancelled. Used for synthetic aggressors.
	TIFMatchOrCancel TimeInForce = "MATCH_OR_CANCEL"
)

// Entry is one synthesized (or user-originated) order-log event. The
// stream of entries carries enough information to be replayed downstream
// as individual order placements, replacements and cancellations.
type Entry struct {
	ID         uuid.UUID       `json:"id"`
	SecurityID uuid.UUID       `json:"security_id"`
	Side       depth.Side      `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Volume     decimal.Decimal `json:"volume"`
	ExecType   ExecType        `json:"exec_type"`
	// TradePrice is set on ExecTick entries only.
	TradePrice  decimal.Decimal `json:"trade_price,omitempty"`
	IsCancelled bool            `json:"is_cancelled"`
	TimeInForce TimeInForce     `json:"time_in_force"`

	// User order transaction fields; zero for synthetic entries.
	TransactionID         int64  `json:"transaction_id,omitempty"`
	OriginalTransactionID int64  `json:"original_transaction_id,omitempty"`
	OrderID               int64  `json:"order_id,omitempty"`
	PortfolioName         string `json:"portfolio_name,omitempty"`
	UserOrderID           string `json:"user_order_id,omitempty"`

	LocalTime  time.Time `json:"local_time"`
	ServerTime time.Time `json:"server_time,omitempty"`
}

// IsUserOrder reports whether the entry belongs to a user transaction
// rather than the synthetic flow.
func (e *Entry) IsUserOrder() bool {
	return e.PortfolioName != ""
}

// Clone returns a copy of the entry.
func (e *Entry) Clone() *Entry {
	clone := *e
	return &clone
}
