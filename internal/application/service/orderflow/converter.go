package orderflow

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/domain/entity/depth"
	"main/internal/domain/entity/marketdata"
	"main/internal/domain/entity/orderlog"
	"main/internal/domain/entity/securities"
)

// Converter turns aggregated market data for one security into a stream of
// synthetic order-log entries that replays to the same book state. It keeps
// its own picture of the book between messages, so it must be fed by a
// single goroutine per security.
type Converter struct {
	securityID uuid.UUID
	settings   Settings
	rng        *rand.Rand

	bids *levelSide
	asks *levelSide

	currSpreadPrice decimal.Decimal
	prevTickPrice   decimal.Decimal
	lastDepthDate   time.Time
	lastTradeDate   time.Time

	priceStep    decimal.Decimal
	volumeStep   decimal.Decimal
	stepsUpdated bool

	boardTZ *time.Location
}

// NewConverter builds a converter for one security. A nil rng gets a
// time-seeded source; pass a seeded one for reproducible output.
func NewConverter(securityID uuid.UUID, settings Settings, rng *rand.Rand) *Converter {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Converter{
		securityID: securityID,
		settings:   settings.normalized(),
		rng:        rng,
		bids:       newLevelSide(depth.SideBuy),
		asks:       newLevelSide(depth.SideSell),
		priceStep:  decimal.New(1, -2),
		volumeStep: decimal.NewFromInt(1),
		boardTZ:    time.UTC,
	}
}

func (c *Converter) SecurityID() uuid.UUID {
	return c.securityID
}

func (c *Converter) Settings() Settings {
	return c.settings
}

// UpdateSecurityDefinition picks up price and volume steps and the board
// time zone from the security reference data. Steps from the definition
// win over the ones inferred from quotes.
func (c *Converter) UpdateSecurityDefinition(sec *securities.Security) {
	if sec == nil {
		return
	}
	if sec.PriceStep.IsPositive() {
		c.priceStep = sec.PriceStep
		c.stepsUpdated = true
	}
	if sec.VolumeStep.IsPositive() {
		c.volumeStep = sec.VolumeStep
	}
	c.UpdateBoardDefinition(sec.Board)
}

// UpdateBoardDefinition sets the time zone used to stamp ServerTime.
func (c *Converter) UpdateBoardDefinition(board securities.Board) {
	if loc := board.Location(); loc != nil {
		c.boardTZ = loc
	}
}

// OnDepth diffs a full book snapshot against the converter's current book
// and returns the placements, cancellations and ticks that replay the
// transition. The snapshot becomes the converter's new book.
func (c *Converter) OnDepth(msg *marketdata.DepthSnapshot) ([]*orderlog.Entry, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if msg.SecurityID != c.securityID {
		return nil, fmt.Errorf("depth for %s: %w", msg.SecurityID, ErrSecurityMismatch)
	}

	bids := append([]depth.Quote(nil), msg.Bids...)
	asks := append([]depth.Quote(nil), msg.Asks...)
	if !msg.IsSorted {
		sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
		sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })
	}

	if !c.stepsUpdated {
		c.inferSteps(bids, asks)
	}
	c.lastDepthDate = dateOf(msg.LocalTime)

	return c.processQuoteChange(msg.LocalTime, bids, asks), nil
}

// processQuoteChange diffs both sides, orders the combined batch by price
// toward the new mid-spread, and applies it to the internal book.
func (c *Converter) processQuoteChange(t time.Time, bids, asks []depth.Quote) []*orderlog.Entry {
	diffBids, bestBid := c.diffSide(t, c.bids, bids, depth.SideBuy)
	diffAsks, bestAsk := c.diffSide(t, c.asks, asks, depth.SideSell)

	entries := append(diffBids, diffAsks...)
	if len(entries) == 0 {
		return nil
	}

	spreadPrice := midSpread(bestBid, bestAsk)
	if spreadPrice.LessThan(c.currSpreadPrice) {
		sort.SliceStable(entries, func(i, j int) bool {
			return entryPrice(entries[i]).LessThan(entryPrice(entries[j]))
		})
	} else {
		sort.SliceStable(entries, func(i, j int) bool {
			return entryPrice(entries[i]).GreaterThan(entryPrice(entries[j]))
		})
	}
	c.currSpreadPrice = spreadPrice

	for _, e := range entries {
		c.apply(e)
	}
	return entries
}

// newEntry creates a synthetic order-log placement or cancellation. Zero
// volume is replaced with a random one in [VolumeMin, VolumeMax).
func (c *Converter) newEntry(t time.Time, side depth.Side, price, volume decimal.Decimal, cancelled bool, tif orderlog.TimeInForce) *orderlog.Entry {
	if volume.IsZero() {
		volume = decimal.NewFromInt(int64(c.settings.VolumeMin + c.rng.Intn(c.settings.VolumeMax-c.settings.VolumeMin)))
	}
	return &orderlog.Entry{
		ID:          uuid.New(),
		SecurityID:  c.securityID,
		Side:        side,
		Price:       price,
		Volume:      volume,
		ExecType:    orderlog.ExecOrderLog,
		IsCancelled: cancelled,
		TimeInForce: tif,
		LocalTime:   t,
		ServerTime:  t.In(c.boardTZ),
	}
}

// apply folds a synthetic entry back into the converter's book. Ticks and
// user order messages do not touch it: ticks are trade prints, and user
// orders are matched downstream, not part of the observed market volume.
func (c *Converter) apply(e *orderlog.Entry) {
	if e.ExecType != orderlog.ExecOrderLog || !e.Price.IsPositive() {
		return
	}
	switch {
	case e.TimeInForce == orderlog.TIFMatchOrCancel:
		// Aggressors never rest, they consume the opposite side.
		c.sideStore(e.Side.Invert()).sweep(e.Price, e.Volume)
	case e.IsCancelled:
		c.sideStore(e.Side).subtract(e.Price, e.Volume)
	default:
		c.sideStore(e.Side).add(e)
	}
}

func (c *Converter) sideStore(side depth.Side) *levelSide {
	if side == depth.SideBuy {
		return c.bids
	}
	return c.asks
}

// inferSteps guesses price and volume steps from the decimal exponent of
// the first quote seen, until a security definition arrives.
func (c *Converter) inferSteps(bids, asks []depth.Quote) {
	var q *depth.Quote
	switch {
	case len(bids) > 0:
		q = &bids[0]
	case len(asks) > 0:
		q = &asks[0]
	default:
		return
	}
	c.priceStep = stepFromExponent(q.Price)
	c.volumeStep = stepFromExponent(q.Volume)
	c.stepsUpdated = true
}

func (c *Converter) hasDepth(t time.Time) bool {
	return !c.lastDepthDate.IsZero() && c.lastDepthDate.Equal(dateOf(t))
}

// DepthView snapshots the converter's current internal book.
func (c *Converter) DepthView(t time.Time) *marketdata.DepthSnapshot {
	return &marketdata.DepthSnapshot{
		SecurityID: c.securityID,
		Bids:       c.bids.quotes(),
		Asks:       c.asks.quotes(),
		IsSorted:   true,
		LocalTime:  t,
		ServerTime: t.In(c.boardTZ),
	}
}

// ApplyToBook replays synthetic entries onto an order book: placements add
// volume, cancellations remove it, aggressors sweep the opposite side and
// ticks are ignored.
func ApplyToBook(book *depth.OrderBook, entries []*orderlog.Entry) ([]depth.Event, error) {
	var events []depth.Event
	for _, e := range entries {
		if e == nil || e.ExecType != orderlog.ExecOrderLog || !e.Price.IsPositive() {
			continue
		}
		switch {
		case e.TimeInForce == orderlog.TIFMatchOrCancel:
			side := e.Side.Invert()
			left := e.Volume
			for left.IsPositive() {
				q := book.GetQuote(side, 0)
				if q == nil {
					break
				}
				crosses := (side == depth.SideBuy && q.Price.GreaterThanOrEqual(e.Price)) ||
					(side == depth.SideSell && q.Price.LessThanOrEqual(e.Price))
				if !crosses {
					break
				}
				take := left
				if q.Volume.LessThan(take) {
					take = q.Volume
				}
				evs, err := book.Remove(side, q.Price, take, e.LocalTime)
				if err != nil {
					return events, err
				}
				events = append(events, evs...)
				left = left.Sub(take)
			}
		case e.IsCancelled:
			evs, err := book.Remove(e.Side, e.Price, e.Volume, e.LocalTime)
			if errors.Is(err, depth.ErrVolumeTooBig) {
				// The book trimmed this level on its own, drop what is left.
				evs, err = book.Remove(e.Side, e.Price, decimal.Zero, e.LocalTime)
			}
			if err != nil {
				if errors.Is(err, depth.ErrPriceNotFound) {
					continue
				}
				return events, err
			}
			events = append(events, evs...)
		default:
			q := depth.NewQuote(e.SecurityID, e.Side, e.Price, e.Volume)
			evs, err := book.AddQuote(q)
			if err != nil {
				return events, err
			}
			events = append(events, evs...)
		}
	}
	return events, nil
}

func midSpread(bid, ask decimal.Decimal) decimal.Decimal {
	switch {
	case ask.IsZero():
		return bid
	case bid.IsZero():
		return ask
	default:
		two := decimal.NewFromInt(2)
		return ask.Sub(bid).Div(two).Add(bid)
	}
}

func entryPrice(e *orderlog.Entry) decimal.Decimal {
	if e.ExecType == orderlog.ExecTick {
		return e.TradePrice
	}
	return e.Price
}

func stepFromExponent(d decimal.Decimal) decimal.Decimal {
	exp := d.Exponent()
	if exp >= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.New(1, exp)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
