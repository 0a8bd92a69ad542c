package orderflow

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/domain/entity/depth"
	"main/internal/domain/entity/marketdata"
	"main/internal/domain/entity/orderlog"
)

// OnTrade reconciles a reported tick with the converter's book and returns
// the synthetic order flow that explains it: aggressors that sweep crossed
// levels, matched pairs inside the spread, or resting orders seeding an
// empty book.
func (c *Converter) OnTrade(msg *marketdata.Trade) ([]*orderlog.Entry, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if msg.SecurityID != c.securityID {
		return nil, fmt.Errorf("trade for %s: %w", msg.SecurityID, ErrSecurityMismatch)
	}
	if !msg.Price.IsPositive() {
		return nil, fmt.Errorf("price %s: %w", msg.Price, ErrInvalidTrade)
	}
	if msg.Volume.IsNegative() {
		return nil, fmt.Errorf("volume %s: %w", msg.Volume, ErrInvalidTrade)
	}

	if !c.stepsUpdated {
		c.priceStep = stepFromExponent(msg.Price)
		c.volumeStep = stepFromExponent(msg.Volume)
		c.stepsUpdated = true
	}
	c.lastTradeDate = dateOf(msg.LocalTime)

	return c.processTrade(msg), nil
}

func (c *Converter) processTrade(msg *marketdata.Trade) []*orderlog.Entry {
	var entries []*orderlog.Entry

	t := msg.LocalTime
	bestBid := c.bids.best()
	bestAsk := c.asks.best()

	switch {
	case bestBid != nil && msg.Price.LessThanOrEqual(bestBid.quote.Price):
		// The print went through the bids: a sell swept them.
		c.processMarketOrder(&entries, c.bids, msg, depth.SideSell)
		c.tryCreateOppositeOrder(&entries, c.asks, t, msg, depth.SideBuy)

	case bestAsk != nil && msg.Price.GreaterThanOrEqual(bestAsk.quote.Price):
		c.processMarketOrder(&entries, c.asks, msg, depth.SideBuy)
		c.tryCreateOppositeOrder(&entries, c.bids, t, msg, depth.SideSell)

	case bestBid != nil && bestAsk != nil:
		// Strictly inside the spread: fabricate both sides of the match.
		side := c.orderSide(msg)
		entries = append(entries, c.newEntry(t, side, msg.Price, msg.Volume.Add(c.volumeStepOrDefault()), false, orderlog.TIFMatchOrCancel))
		c.fillSpreadGaps(&entries, t, msg.Price, bestBid.quote.Price, bestAsk.quote.Price)
		entries = append(entries, c.newEntry(t, side.Invert(), msg.Price, msg.Volume, false, orderlog.TIFMatchOrCancel))

	default:
		// Empty or one-sided book: seed it around the print.
		hasOpposite := true
		var side depth.Side
		switch {
		case bestBid != nil:
			side = depth.SideSell
		case bestAsk != nil:
			side = depth.SideBuy
		default:
			side = c.orderSide(msg)
			hasOpposite = false
		}
		entries = append(entries, c.newEntry(t, side, msg.Price, msg.Volume, false, orderlog.TIFPutInQueue))

		if !hasOpposite {
			opposite := msg.Price.Add(c.spreadOffset(side))
			if opposite.IsPositive() {
				entries = append(entries, c.newEntry(t, side.Invert(), opposite, msg.Volume, false, orderlog.TIFPutInQueue))
			}
		}
	}

	if !c.hasDepth(t) {
		c.cancelWorstQuote(&entries, t, depth.SideBuy, c.bids)
		c.cancelWorstQuote(&entries, t, depth.SideSell, c.asks)
	}

	c.prevTickPrice = msg.Price

	for _, e := range entries {
		c.apply(e)
	}
	return entries
}

// processMarketOrder models a print at or through one side as a single
// aggregated aggressor. Its volume covers every level better than the
// print plus the traded volume at the print itself.
func (c *Converter) processMarketOrder(entries *[]*orderlog.Entry, store *levelSide, msg *marketdata.Trade, orderSide depth.Side) {
	sign := orderSide.Sign()

	big := c.newEntry(msg.LocalTime, orderSide, msg.Price, decimal.Zero, false, orderlog.TIFMatchOrCancel)

	hasAdjacent := false
	for _, lvl := range store.levels {
		switch {
		case lvl.quote.Price.Cmp(msg.Price)*sign > 0:
			big.Volume = big.Volume.Add(lvl.quote.Volume)
		case lvl.quote.Price.Equal(msg.Price):
			big.Volume = big.Volume.Add(msg.Volume)
		default:
			if msg.Price.Sub(lvl.quote.Price).Abs().Equal(c.priceStep) {
				hasAdjacent = true
			}
		}
		if lvl.quote.Price.Cmp(msg.Price)*sign < 0 {
			break
		}
	}

	*entries = append(*entries, big)
	if !hasAdjacent {
		// Replenish the traded level so the book does not gap.
		*entries = append(*entries, c.newEntry(msg.LocalTime, orderSide.Invert(), msg.Price, msg.Volume, false, orderlog.TIFPutInQueue))
	}
}

// tryCreateOppositeOrder keeps the spread populated after a sweep when no
// real depth has been seen that day.
func (c *Converter) tryCreateOppositeOrder(entries *[]*orderlog.Entry, store *levelSide, t time.Time, msg *marketdata.Trade, originSide depth.Side) {
	if c.hasDepth(t) {
		return
	}

	opposite := msg.Price.Add(c.spreadOffset(originSide))
	if !opposite.IsPositive() {
		return
	}

	best := store.best()
	improves := best == nil ||
		(originSide == depth.SideBuy && opposite.LessThan(best.quote.Price)) ||
		(originSide == depth.SideSell && opposite.GreaterThan(best.quote.Price))
	if improves {
		*entries = append(*entries, c.newEntry(t, originSide.Invert(), opposite, msg.Volume, false, orderlog.TIFPutInQueue))
	}
}

// fillSpreadGaps lays synthetic resting orders between an in-spread print
// and the old best prices, stepping away by random multiples of the spread
// step so the seeded book looks uneven.
func (c *Converter) fillSpreadGaps(entries *[]*orderlog.Entry, t time.Time, price, bestBid, bestAsk decimal.Decimal) {
	step := decimal.NewFromInt(int64(c.settings.SpreadSize)).Mul(c.priceStep)

	next := price.Add(step)
	for i := c.settings.MaxDepth; i > 1 && bestAsk.GreaterThan(next); i-- {
		*entries = append(*entries, c.newEntry(t, depth.SideSell, next, decimal.Zero, false, orderlog.TIFPutInQueue))
		next = next.Add(step.Mul(decimal.NewFromInt(int64(c.randSpreadSteps()))))
	}

	next = price.Sub(step)
	for i := c.settings.MaxDepth; i > 1 && next.GreaterThan(bestBid) && next.IsPositive(); i-- {
		*entries = append(*entries, c.newEntry(t, depth.SideBuy, next, decimal.Zero, false, orderlog.TIFPutInQueue))
		next = next.Sub(step.Mul(decimal.NewFromInt(int64(c.randSpreadSteps()))))
	}
}

// cancelWorstQuote trims a side that outgrew MaxDepth by cancelling the
// synthetic volume at its worst price. User orders there stay put.
func (c *Converter) cancelWorstQuote(entries *[]*orderlog.Entry, t time.Time, side depth.Side, store *levelSide) {
	if store.len() <= c.settings.MaxDepth {
		return
	}
	worst := store.worst()
	volume := worst.syntheticVolume()
	if !volume.IsPositive() {
		return
	}
	*entries = append(*entries, c.newEntry(t, side, worst.quote.Price, volume, true, orderlog.TIFPutInQueue))
}

// orderSide infers the aggressor side of a print. Without an origin side it
// compares against the previous tick: a higher price means sellers got
// lifted.
func (c *Converter) orderSide(msg *marketdata.Trade) depth.Side {
	if msg.OriginSide == nil {
		if msg.Price.GreaterThan(c.prevTickPrice) {
			return depth.SideSell
		}
		return depth.SideBuy
	}
	return msg.OriginSide.Invert()
}

func (c *Converter) spreadOffset(side depth.Side) decimal.Decimal {
	offset := decimal.NewFromInt(int64(c.settings.SpreadSize)).Mul(c.priceStep)
	if side == depth.SideSell {
		return offset.Neg()
	}
	return offset
}

func (c *Converter) volumeStepOrDefault() decimal.Decimal {
	if c.volumeStep.IsPositive() {
		return c.volumeStep
	}
	return decimal.NewFromInt(int64(c.settings.VolumeMultiplier))
}

// randSpreadSteps picks how many spread steps the next gap-filling order
// moves away, in [1, SpreadSize).
func (c *Converter) randSpreadSteps() int {
	if c.settings.SpreadSize <= 2 {
		return 1
	}
	return 1 + c.rng.Intn(c.settings.SpreadSize-1)
}
