package orderflow

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/domain/entity/depth"
	"main/internal/domain/entity/orderlog"
)

// priceLevel tracks one price on one side of the converter's book: the
// latest aggregate quote at the price plus the still-open synthetic
// entries the converter generated there. The open entries are needed so a
// later partial cancellation subtracts from the right orders.
type priceLevel struct {
	quote  depth.Quote
	orders []*orderlog.Entry
}

func (l *priceLevel) syntheticVolume() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.orders {
		if !e.IsUserOrder() {
			total = total.Add(e.Volume)
		}
	}
	return total
}

// levelSide is an ordered set of price levels kept best-first: descending
// prices for bids, ascending for asks.
type levelSide struct {
	side   depth.Side
	levels []*priceLevel
}

func newLevelSide(side depth.Side) *levelSide {
	return &levelSide{side: side}
}

func (s *levelSide) len() int {
	return len(s.levels)
}

func (s *levelSide) best() *priceLevel {
	if len(s.levels) == 0 {
		return nil
	}
	return s.levels[0]
}

func (s *levelSide) worst() *priceLevel {
	if len(s.levels) == 0 {
		return nil
	}
	return s.levels[len(s.levels)-1]
}

// find locates the exact price, -1 when absent.
func (s *levelSide) find(price decimal.Decimal) int {
	i := s.searchIndex(price)
	if i < len(s.levels) && s.levels[i].quote.Price.Equal(price) {
		return i
	}
	return -1
}

// searchIndex is the insertion point keeping best-first order.
func (s *levelSide) searchIndex(price decimal.Decimal) int {
	desc := s.side == depth.SideBuy
	return sort.Search(len(s.levels), func(i int) bool {
		if desc {
			return s.levels[i].quote.Price.LessThanOrEqual(price)
		}
		return s.levels[i].quote.Price.GreaterThanOrEqual(price)
	})
}

func (s *levelSide) upsert(securityID uuid.UUID, price decimal.Decimal) *priceLevel {
	i := s.searchIndex(price)
	if i < len(s.levels) && s.levels[i].quote.Price.Equal(price) {
		return s.levels[i]
	}
	lvl := &priceLevel{quote: depth.Quote{SecurityID: securityID, Side: s.side, Price: price}}
	s.levels = append(s.levels, nil)
	copy(s.levels[i+1:], s.levels[i:])
	s.levels[i] = lvl
	return lvl
}

func (s *levelSide) removeAt(i int) {
	s.levels = append(s.levels[:i], s.levels[i+1:]...)
}

// add registers a resting placement: the level volume grows and the entry
// joins the open set.
func (s *levelSide) add(e *orderlog.Entry) {
	lvl := s.upsert(e.SecurityID, e.Price)
	lvl.quote.Volume = lvl.quote.Volume.Add(e.Volume)
	lvl.orders = append(lvl.orders, e.Clone())
}

// subtract removes volume at a price, consuming open entries oldest-first.
// The level disappears once both its volume and open set are drained.
func (s *levelSide) subtract(price, volume decimal.Decimal) {
	i := s.find(price)
	if i == -1 {
		return
	}
	lvl := s.levels[i]

	left := volume
	for left.IsPositive() && len(lvl.orders) > 0 {
		first := lvl.orders[0]
		if first.Volume.GreaterThan(left) {
			first.Volume = first.Volume.Sub(left)
			break
		}
		left = left.Sub(first.Volume)
		lvl.orders = lvl.orders[1:]
	}

	lvl.quote.Volume = lvl.quote.Volume.Sub(volume)
	if !lvl.quote.Volume.IsPositive() && len(lvl.orders) == 0 {
		s.removeAt(i)
	} else if lvl.quote.Volume.IsNegative() {
		lvl.quote.Volume = decimal.Zero
	}
}

// sweep consumes levels crossed by an aggressor at limitPrice, best-first,
// up to the given volume.
func (s *levelSide) sweep(limitPrice, volume decimal.Decimal) {
	for volume.IsPositive() {
		lvl := s.best()
		if lvl == nil {
			return
		}
		crosses := (s.side == depth.SideBuy && lvl.quote.Price.GreaterThanOrEqual(limitPrice)) ||
			(s.side == depth.SideSell && lvl.quote.Price.LessThanOrEqual(limitPrice))
		if !crosses {
			return
		}
		if lvl.quote.Volume.GreaterThan(volume) {
			s.subtract(lvl.quote.Price, volume)
			return
		}
		volume = volume.Sub(lvl.quote.Volume)
		s.subtract(lvl.quote.Price, lvl.quote.Volume)
	}
}

// quotes copies the current side, best first.
func (s *levelSide) quotes() []depth.Quote {
	out := make([]depth.Quote, 0, len(s.levels))
	for _, lvl := range s.levels {
		out = append(out, lvl.quote)
	}
	return out
}
