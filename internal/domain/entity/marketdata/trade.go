package marketdata

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/domain/entity/depth"
)

// Trade is an inbound trade print: an executed trade without order-level
// detail. OriginSide, when known, is the declared aggressor side.
type Trade struct {
	SecurityID uuid.UUID       `json:"security_id"`
	Price      decimal.Decimal `json:"price"`
	Volume     decimal.Decimal `json:"volume"`
	OriginSide *depth.Side     `json:"origin_side,omitempty"`
	LocalTime  time.Time       `json:"local_time"`
	ServerTime time.Time       `json:"server_time,omitempty"`
}
