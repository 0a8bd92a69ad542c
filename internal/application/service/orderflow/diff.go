package orderflow

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/domain/entity/depth"
	"main/internal/domain/entity/orderlog"
)

// diffSide walks the converter's current side and an incoming snapshot side
// together, both best-first, and emits the placements and cancellations
// that turn one into the other. Returns the entries and the new best price
// of the side (zero when the side is empty).
func (c *Converter) diffSide(t time.Time, from *levelSide, to []depth.Quote, side depth.Side) ([]*orderlog.Entry, decimal.Decimal) {
	var diff []*orderlog.Entry
	newBest := decimal.Zero

	// With this multiplier a positive comparison always means "worse":
	// bids compare inverted so both sides read best to worst.
	mult := side.Sign()

	var (
		currFrom, currTo *depth.Quote
		fromIdx, toIdx   int
		fromSeen         int
		isTop            bool
	)

	for {
		if currFrom == nil && fromIdx < from.len() {
			currFrom = &from.levels[fromIdx].quote
			fromIdx++
			fromSeen++
			isTop = fromSeen == 1
		}
		if currTo == nil && toIdx < len(to) {
			currTo = &to[toIdx]
			toIdx++
			if newBest.IsZero() {
				newBest = currTo.Price
			}
		}

		switch {
		case currFrom == nil && currTo == nil:
			return diff, newBest
		case currFrom == nil:
			c.addDiffEntry(&diff, t, currTo, currTo.Volume, false)
			currTo = nil
		case currTo == nil:
			c.addDiffEntry(&diff, t, currFrom, currFrom.Volume.Neg(), isTop)
			currFrom = nil
		case currFrom.Price.Equal(currTo.Price):
			if !currFrom.Volume.Equal(currTo.Volume) {
				c.addDiffEntry(&diff, t, currTo, currTo.Volume.Sub(currFrom.Volume), isTop)
			}
			currFrom, currTo = nil, nil
		case currFrom.Price.Cmp(currTo.Price)*mult > 0:
			// The incoming level is better than anything left in the
			// old side, so it is a fresh placement.
			c.addDiffEntry(&diff, t, currTo, currTo.Volume, isTop)
			currTo = nil
		default:
			// The old level vanished from the snapshot.
			c.addDiffEntry(&diff, t, currFrom, currFrom.Volume.Neg(), isTop)
			currFrom = nil
		}
	}
}

// addDiffEntry turns one volume delta at a price into order-log entries.
// Growth is a placement. Shrinkage is a cancellation, and when it happens
// at the top of the book it may instead be a partial match: a coin toss
// weighted by MatchProbability also prints a tick for half the volume.
func (c *Converter) addDiffEntry(diff *[]*orderlog.Entry, t time.Time, quote *depth.Quote, volume decimal.Decimal, isTop bool) {
	if volume.IsPositive() {
		*diff = append(*diff, c.newEntry(t, quote.Side, quote.Price, volume, false, orderlog.TIFPutInQueue))
		return
	}

	volume = volume.Abs()
	if isTop && volume.GreaterThan(decimal.NewFromInt(1)) && c.rng.Float64() < c.settings.MatchProbability {
		*diff = append(*diff, &orderlog.Entry{
			SecurityID: c.securityID,
			Side:       quote.Side,
			Volume:     decimal.NewFromInt(volume.IntPart() / 2),
			TradePrice: quote.Price,
			ExecType:   orderlog.ExecTick,
			LocalTime:  t,
			ServerTime: t.In(c.boardTZ),
		})
	}
	*diff = append(*diff, c.newEntry(t, quote.Side, quote.Price, volume, true, orderlog.TIFPutInQueue))
}
