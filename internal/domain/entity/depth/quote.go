package depth

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quote is a single price level on one side of the book. A quote may be
// aggregated: its volume is then the sum of an ordered collection of inner
// quotes sharing the same price, side and security.
type Quote struct {
	SecurityID uuid.UUID       `json:"security_id"`
	Side       Side            `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Volume     decimal.Decimal `json:"volume"`
	Ext        map[string]any  `json:"ext,omitempty"`

	strict bool
	inner  []*Quote
}

// NewQuote builds a plain quote.
func NewQuote(securityID uuid.UUID, side Side, price, volume decimal.Decimal) *Quote {
	return &Quote{
		SecurityID: securityID,
		Side:       side,
		Price:      price,
		Volume:     volume,
	}
}

// NewAggregatedQuote builds an empty aggregated quote. When strict is set,
// adding an inner quote with a different price fails; side and security are
// always enforced.
func NewAggregatedQuote(strict bool) *Quote {
	return &Quote{strict: strict, inner: []*Quote{}}
}

// IsAggregated reports whether the quote joins several inner quotes.
func (q *Quote) IsAggregated() bool {
	return q.inner != nil
}

// InnerQuotes returns the constituents of an aggregated quote, oldest first.
func (q *Quote) InnerQuotes() []*Quote {
	return q.inner
}

// AddInner appends a constituent to an aggregated quote. The first inner
// quote defines the aggregate's price, side and security.
func (q *Quote) AddInner(item *Quote) error {
	if item == nil {
		return ErrNilQuote
	}
	if q.inner == nil {
		return fmt.Errorf("add inner quote: %w", ErrNilQuote)
	}
	if len(q.inner) == 0 {
		q.Price = item.Price
		q.Side = item.Side
		q.SecurityID = item.SecurityID
	} else {
		if q.strict && !q.Price.Equal(item.Price) {
			return fmt.Errorf("inner quote price %s differs from %s: %w", item.Price, q.Price, ErrInvalidPrice)
		}
		if q.Side != item.Side {
			return fmt.Errorf("inner quote side %s differs from %s: %w", item.Side, q.Side, ErrInvalidSide)
		}
		if q.SecurityID != item.SecurityID {
			return ErrSecurityMismatch
		}
	}
	q.inner = append(q.inner, item)
	q.Volume = q.Volume.Add(item.Volume)
	return nil
}

// consumeInner subtracts volume from the constituents oldest-first.
// Constituents drained to zero are dropped.
func (q *Quote) consumeInner(volume decimal.Decimal) {
	for volume.IsPositive() && len(q.inner) > 0 {
		first := q.inner[0]
		if first.Volume.GreaterThan(volume) {
			first.Volume = first.Volume.Sub(volume)
			return
		}
		volume = volume.Sub(first.Volume)
		q.inner = q.inner[1:]
	}
}

// Clone returns a deep copy of the quote, inner quotes included.
func (q *Quote) Clone() *Quote {
	clone := &Quote{
		SecurityID: q.SecurityID,
		Side:       q.Side,
		Price:      q.Price,
		Volume:     q.Volume,
		Ext:        q.Ext,
		strict:     q.strict,
	}
	if q.inner != nil {
		clone.inner = make([]*Quote, 0, len(q.inner))
		for _, item := range q.inner {
			clone.inner = append(clone.inner, item.Clone())
		}
	}
	return clone
}

func (q *Quote) String() string {
	label := "ask"
	if q.Side == SideBuy {
		label = "bid"
	}
	return fmt.Sprintf("%s %s %s", label, q.Price, q.Volume)
}
