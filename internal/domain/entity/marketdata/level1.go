package marketdata

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Level1Change carries best bid/ask and last-trade field updates for feeds
// that publish no full depth. Zero values mean the field was not present
// in the update.
type Level1Change struct {
	SecurityID uuid.UUID `json:"security_id"`

	BestBidPrice  decimal.Decimal `json:"best_bid_price,omitempty"`
	BestBidVolume decimal.Decimal `json:"best_bid_volume,omitempty"`
	BestAskPrice  decimal.Decimal `json:"best_ask_price,omitempty"`
	BestAskVolume decimal.Decimal `json:"best_ask_volume,omitempty"`

	LastTradePrice  decimal.Decimal `json:"last_trade_price,omitempty"`
	LastTradeVolume decimal.Decimal `json:"last_trade_volume,omitempty"`

	LocalTime  time.Time `json:"local_time"`
	ServerTime time.Time `json:"server_time,omitempty"`
}
