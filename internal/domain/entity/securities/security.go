package securities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Board identifies the trading board a security is listed on. The board
// carries the session time zone used to stamp server time on order events.
type Board struct {
	Code     string
	TimeZone string
}

// Location resolves the board time zone, falling back to the local zone
// for unknown or empty names.
func (b Board) Location() *time.Location {
	if b.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(b.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Security is the reference-data row for a traded instrument.
type Security struct {
	UID        uuid.UUID
	Ticker     string
	Board      Board
	Lot        int32
	PriceStep  decimal.Decimal
	VolumeStep decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

func (s Security) GetUID() uuid.UUID { return s.UID }

func (s Security) GetTicker() string { return s.Ticker }

func (s Security) GetLots() int32 { return s.Lot }

// ShrinkPrice rounds a price down to the security price step grid.
func (s Security) ShrinkPrice(price decimal.Decimal) decimal.Decimal {
	if s.PriceStep.IsZero() {
		return price
	}
	return price.Div(s.PriceStep).Floor().Mul(s.PriceStep)
}

// Validate reports whether the reference data is usable for conversions.
func (s Security) Validate() error {
	if s.UID == uuid.Nil {
		return fmt.Errorf("security %q: uid is required", s.Ticker)
	}
	if s.PriceStep.IsNegative() || s.VolumeStep.IsNegative() {
		return fmt.Errorf("security %q: steps must not be negative", s.Ticker)
	}
	return nil
}
