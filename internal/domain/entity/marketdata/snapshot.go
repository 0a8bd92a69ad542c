package marketdata

import (
	"time"

	"github.com/google/uuid"

	"main/internal/domain/entity/depth"
)

// DepthSnapshot is an inbound order-book snapshot for one security. Bids
// and asks are full per-side level sets; old levels are implicitly removed.
type DepthSnapshot struct {
	SecurityID uuid.UUID     `json:"security_id"`
	Bids       []depth.Quote `json:"bids"`
	Asks       []depth.Quote `json:"asks"`
	// IsSorted tells the consumer the sides already come bids-descending
	// and asks-ascending, sparing a re-sort.
	IsSorted   bool      `json:"is_sorted"`
	LocalTime  time.Time `json:"local_time"`
	ServerTime time.Time `json:"server_time,omitempty"`
}

// BestBid returns the first bid, or nil for an empty side. Meaningful only
// on sorted snapshots.
func (s *DepthSnapshot) BestBid() *depth.Quote {
	if len(s.Bids) == 0 {
		return nil
	}
	return &s.Bids[0]
}

// BestAsk returns the first ask, or nil for an empty side.
func (s *DepthSnapshot) BestAsk() *depth.Quote {
	if len(s.Asks) == 0 {
		return nil
	}
	return &s.Asks[0]
}
