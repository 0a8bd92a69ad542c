package depth

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Pair couples a bid and an ask at the same depth index. Either leg may be
// nil when the corresponding side runs out of levels.
type Pair struct {
	Bid *Quote `json:"bid,omitempty"`
	Ask *Quote `json:"ask,omitempty"`
}

// SpreadPrice is the price gap between the legs. The second return value is
// false when either leg is missing.
func (p Pair) SpreadPrice() (decimal.Decimal, bool) {
	if p.Bid == nil || p.Ask == nil {
		return decimal.Decimal{}, false
	}
	return p.Ask.Price.Sub(p.Bid.Price), true
}

// SpreadVolume is the absolute volume difference between the legs.
func (p Pair) SpreadVolume() (decimal.Decimal, bool) {
	if p.Bid == nil || p.Ask == nil {
		return decimal.Decimal{}, false
	}
	return p.Ask.Volume.Sub(p.Bid.Volume).Abs(), true
}

// IsFull reports whether both legs are present.
func (p Pair) IsFull() bool {
	return p.Bid != nil && p.Ask != nil
}

func (p Pair) String() string {
	return fmt.Sprintf("{%s} {%s}", p.Bid, p.Ask)
}
