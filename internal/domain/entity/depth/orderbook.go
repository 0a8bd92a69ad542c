package depth

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/domain/entity/securities"
)

// DefaultMaxDepth bounds each book side unless overridden.
const DefaultMaxDepth = 100

// OrderBook holds the live market depth for one security: bids sorted by
// strictly descending price and asks by strictly ascending price, with at
// most one quote per price on each side.
//
// All operations lock a single per-book mutex and run to completion before
// returning, so distinct books may be driven from different goroutines
// without coordination. Mutating operations return the events they caused
// (evictions, depth changes) instead of invoking callbacks mid-mutation.
type OrderBook struct {
	mu sync.Mutex

	security *securities.Security

	bids []*Quote
	asks []*Quote

	bestBid *Quote
	bestAsk *Quote
	depth   int

	maxDepth      int
	autoVerify    bool
	useAggregated bool

	lastChangeTime time.Time
	localTime      time.Time
}

// NewOrderBook creates an empty book bound to the given security.
func NewOrderBook(security *securities.Security) *OrderBook {
	return &OrderBook{
		security: security,
		maxDepth: DefaultMaxDepth,
	}
}

// Security returns the security the book is bound to.
func (b *OrderBook) Security() *securities.Security {
	return b.security
}

// MaxDepth returns the configured per-side depth bound.
func (b *OrderBook) MaxDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxDepth
}

// SetMaxDepth changes the per-side bound and truncates both sides to it,
// reporting evicted quotes.
func (b *OrderBook) SetMaxDepth(maxDepth int) ([]Event, error) {
	if maxDepth < 1 {
		return nil, fmt.Errorf("max depth %d: %w", maxDepth, ErrInvalidDepth)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.maxDepth = maxDepth

	var events []Event
	b.bids, events = truncateSide(b.bids, maxDepth, events)
	b.asks, events = truncateSide(b.asks, maxDepth, events)
	return b.updateDepthAndTime(time.Time{}, events), nil
}

// SetAutoVerify toggles snapshot verification on bulk updates.
func (b *OrderBook) SetAutoVerify(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoVerify = v
}

// SetUseAggregatedQuotes toggles joining same-price volumes into
// aggregated quotes.
func (b *OrderBook) SetUseAggregatedQuotes(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.useAggregated = v
}

// BestBid returns a copy of the highest bid, or nil for an empty side.
func (b *OrderBook) BestBid() *Quote {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneOrNil(b.bestBid)
}

// BestAsk returns a copy of the lowest ask, or nil for an empty side.
func (b *OrderBook) BestAsk() *Quote {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneOrNil(b.bestAsk)
}

// Bids returns a copy of the bid side, best first.
func (b *OrderBook) Bids() []*Quote {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneSide(b.bids)
}

// Asks returns a copy of the ask side, best first.
func (b *OrderBook) Asks() []*Quote {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneSide(b.asks)
}

// Depth is the number of levels on the longer side.
func (b *OrderBook) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depth
}

// Count is the total number of quotes on both sides.
func (b *OrderBook) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bids) + len(b.asks)
}

// LastChangeTime is the exchange timestamp of the latest mutation.
func (b *OrderBook) LastChangeTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastChangeTime
}

// LocalTime is the local receive timestamp of the book.
func (b *OrderBook) LocalTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.localTime
}

// SetLocalTime stamps the local receive time.
func (b *OrderBook) SetLocalTime(t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.localTime = t
}

// TotalBidsVolume sums the bid side volume.
func (b *OrderBook) TotalBidsVolume() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sumVolume(b.bids)
}

// TotalAsksVolume sums the ask side volume.
func (b *OrderBook) TotalAsksVolume() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sumVolume(b.asks)
}

// TotalVolume sums both sides.
func (b *OrderBook) TotalVolume() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sumVolume(b.bids).Add(sumVolume(b.asks))
}

// GetQuote returns a copy of the quote at the given depth index on a side,
// or nil when the side is shorter.
func (b *OrderBook) GetQuote(side Side, depthIndex int) *Quote {
	if depthIndex < 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	quotes := b.sideQuotes(side)
	if depthIndex >= len(quotes) {
		return nil
	}
	return quotes[depthIndex].Clone()
}

// QuoteAt finds the quote at the exact price, inferring the side from the
// current best quotes. Returns nil when the price is not in the book.
func (b *OrderBook) QuoteAt(price decimal.Decimal) *Quote {
	b.mu.Lock()
	defer b.mu.Unlock()
	side, ok := b.sideForPrice(price)
	if !ok {
		return nil
	}
	quotes := b.sideQuotes(side)
	i := quoteIndex(quotes, price, side == SideBuy)
	if i < 0 {
		return nil
	}
	return quotes[i].Clone()
}

// GetPair returns the bid/ask pair at the given depth index, or nil when
// both legs are missing.
func (b *OrderBook) GetPair(depthIndex int) (*Pair, error) {
	if depthIndex < 0 {
		return nil, fmt.Errorf("pair index %d: %w", depthIndex, ErrInvalidDepth)
	}
	bid := b.GetQuote(SideBuy, depthIndex)
	ask := b.GetQuote(SideSell, depthIndex)
	if bid == nil && ask == nil {
		return nil, nil
	}
	return &Pair{Bid: bid, Ask: ask}, nil
}

// BestPair returns the top-of-book pair, or nil for an empty book.
func (b *OrderBook) BestPair() *Pair {
	pair, _ := b.GetPair(0)
	return pair
}

// AddBid inserts or aggregates a buy quote.
func (b *OrderBook) AddBid(price, volume decimal.Decimal) ([]Event, error) {
	return b.AddQuote(NewQuote(b.securityUID(), SideBuy, price, volume))
}

// AddAsk inserts or aggregates a sell quote.
func (b *OrderBook) AddAsk(price, volume decimal.Decimal) ([]Event, error) {
	return b.AddQuote(NewQuote(b.securityUID(), SideSell, price, volume))
}

func (b *OrderBook) securityUID() uuid.UUID {
	if b.security == nil {
		return uuid.Nil
	}
	return b.security.UID
}

// AddQuote inserts the quote; if a quote at the same price exists the
// volumes are joined (into an aggregated quote when enabled).
func (b *OrderBook) AddQuote(quote *Quote) ([]Event, error) {
	return b.setQuote(quote, true)
}

// UpdateQuote inserts the quote; a quote at the same price is replaced.
func (b *OrderBook) UpdateQuote(quote *Quote) ([]Event, error) {
	return b.setQuote(quote, false)
}

func (b *OrderBook) setQuote(quote *Quote, aggregate bool) ([]Event, error) {
	if err := b.checkQuote(quote); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var events []Event

	quotes := b.sideQuotes(quote.Side)
	desc := quote.Side == SideBuy

	if index := quoteIndex(quotes, quote.Price, desc); index != -1 {
		switch {
		case !aggregate:
			quotes[index] = quote
		case b.useAggregated:
			existing := quotes[index]
			if !existing.IsAggregated() {
				agg := NewAggregatedQuote(false)
				if err := agg.AddInner(existing); err != nil {
					return nil, err
				}
				quotes[index] = agg
				existing = agg
			}
			if err := existing.AddInner(quote); err != nil {
				return nil, err
			}
		default:
			quotes[index].Volume = quotes[index].Volume.Add(quote.Volume)
		}
	} else {
		index = insertIndex(quotes, quote.Price, desc)

		quotes = append(quotes, nil)
		copy(quotes[index+1:], quotes[index:])
		quotes[index] = quote

		if len(quotes) > b.maxDepth {
			out := quotes[len(quotes)-1]
			quotes = quotes[:len(quotes)-1]
			events = append(events, evicted(out))
		}
		b.storeSide(quote.Side, quotes)
	}

	events = b.updateDepthAndTime(time.Time{}, events)

	if len(quotes) > b.maxDepth {
		return events, fmt.Errorf("side %s has %d levels, max %d: %w", quote.Side, len(quotes), b.maxDepth, ErrDepthExceeded)
	}
	return events, nil
}

// Remove deletes volume at the price on the given side. A zero volume, or
// a volume equal to the level's, deletes the whole level; a smaller volume
// decrements it in place, consuming aggregated constituents oldest-first.
func (b *OrderBook) Remove(side Side, price, volume decimal.Decimal, lastChangeTime time.Time) ([]Event, error) {
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("price %s: %w", price, ErrInvalidPrice)
	}
	if volume.Sign() < 0 {
		return nil, fmt.Errorf("volume %s: %w", volume, ErrNegativeVolume)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	quotes := b.sideQuotes(side)
	index := quoteIndex(quotes, price, side == SideBuy)
	if index == -1 {
		return nil, fmt.Errorf("price %s: %w", price, ErrPriceNotFound)
	}

	quote := quotes[index]

	left := decimal.Zero
	if volume.IsPositive() {
		if quote.Volume.LessThan(volume) {
			return nil, fmt.Errorf("volume %s at price %s holds only %s: %w", volume, price, quote.Volume, ErrVolumeTooBig)
		}
		left = quote.Volume.Sub(volume)
		if b.useAggregated && quote.IsAggregated() {
			quote.consumeInner(volume)
		}
	}

	if left.IsZero() {
		quotes = append(quotes[:index], quotes[index+1:]...)
		b.storeSide(side, quotes)
		return b.updateDepthAndTime(lastChangeTime, nil), nil
	}

	quote.Volume = left
	b.updateTime(lastChangeTime)
	return nil, nil
}

// RemoveByPrice is Remove with the side inferred from the best quotes.
func (b *OrderBook) RemoveByPrice(price, volume decimal.Decimal, lastChangeTime time.Time) ([]Event, error) {
	b.mu.Lock()
	side, ok := b.sideForPrice(price)
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("price %s: %w", price, ErrPriceNotFound)
	}
	return b.Remove(side, price, volume, lastChangeTime)
}

// Update replaces both sides with a new snapshot. Unsorted input is sorted
// first (bids descending, asks ascending). With autoVerify set, an
// inconsistent snapshot is rejected and the book is left untouched.
// Levels beyond the depth bound are cut and reported as evictions.
func (b *OrderBook) Update(bids, asks []*Quote, isSorted bool, lastChangeTime time.Time) ([]Event, error) {
	if !isSorted {
		sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
		sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.autoVerify && !b.verifyLocked(bids, asks) {
		return nil, fmt.Errorf("snapshot rejected: %w", ErrBookInconsistent)
	}

	var events []Event
	bids, events = truncateSide(bids, b.maxDepth, events)
	asks, events = truncateSide(asks, b.maxDepth, events)

	b.bids = bids
	b.asks = asks
	return b.updateDepthAndTime(lastChangeTime, events), nil
}

// Decrease cuts the book down to the requested depth.
func (b *OrderBook) Decrease(newDepth int) ([]Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if newDepth < 0 {
		return nil, fmt.Errorf("new depth %d: %w", newDepth, ErrInvalidDepth)
	}
	if newDepth > b.depth {
		return nil, fmt.Errorf("new depth %d exceeds current %d: %w", newDepth, b.depth, ErrDepthTooLarge)
	}

	if newDepth < len(b.bids) {
		b.bids = b.bids[:newDepth]
	}
	if newDepth < len(b.asks) {
		b.asks = b.asks[:newDepth]
	}
	return b.updateDepthAndTime(time.Time{}, nil), nil
}

// Verify reports whether the book is in a correct state: each side sorted
// with unique positive prices and volumes, and no bid at or above any ask.
// Trading systems occasionally send broken books; this is the guard.
func (b *OrderBook) Verify() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.verifyLocked(b.bids, b.asks)
}

// Clone returns an independent deep copy of the book.
func (b *OrderBook) Clone() *OrderBook {
	b.mu.Lock()
	defer b.mu.Unlock()

	clone := NewOrderBook(b.security)
	clone.maxDepth = b.maxDepth
	clone.autoVerify = b.autoVerify
	clone.useAggregated = b.useAggregated
	clone.bids = cloneSide(b.bids)
	clone.asks = cloneSide(b.asks)
	clone.localTime = b.localTime
	clone.updateDepthAndTime(b.lastChangeTime, nil)
	return clone
}

func (b *OrderBook) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := ""
	for i := len(b.bids) - 1; i >= 0; i-- {
		out += b.bids[i].String() + "\n"
	}
	for _, q := range b.asks {
		out += q.String() + "\n"
	}
	return out
}

func (b *OrderBook) checkQuote(quote *Quote) error {
	if quote == nil {
		return ErrNilQuote
	}
	if !quote.Side.IsValid() {
		return fmt.Errorf("side %q: %w", quote.Side, ErrInvalidSide)
	}
	if b.security != nil {
		if quote.SecurityID != b.security.UID && quote.SecurityID != uuid.Nil {
			return fmt.Errorf("quote security %s, book security %s: %w", quote.SecurityID, b.security.UID, ErrSecurityMismatch)
		}
		if quote.SecurityID == uuid.Nil {
			quote.SecurityID = b.security.UID
		}
	}
	if quote.Price.Sign() <= 0 {
		return fmt.Errorf("price %s: %w", quote.Price, ErrInvalidPrice)
	}
	if quote.Volume.Sign() < 0 {
		return fmt.Errorf("volume %s: %w", quote.Volume, ErrNegativeVolume)
	}
	return nil
}

func (b *OrderBook) sideQuotes(side Side) []*Quote {
	if side == SideBuy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) storeSide(side Side, quotes []*Quote) {
	if side == SideBuy {
		b.bids = quotes
	} else {
		b.asks = quotes
	}
}

// sideForPrice infers which side a price belongs to from the best quotes:
// at or below the best bid it is a bid, at or above the best ask an ask.
func (b *OrderBook) sideForPrice(price decimal.Decimal) (Side, bool) {
	if b.bestBid != nil && b.bestBid.Price.GreaterThanOrEqual(price) {
		return SideBuy, true
	}
	if b.bestAsk != nil && b.bestAsk.Price.LessThanOrEqual(price) {
		return SideSell, true
	}
	return "", false
}

func (b *OrderBook) updateDepthAndTime(lastChangeTime time.Time, events []Event) []Event {
	newDepth := len(b.bids)
	if len(b.asks) > newDepth {
		newDepth = len(b.asks)
	}
	if newDepth != b.depth {
		b.depth = newDepth
		events = append(events, depthChanged(newDepth))
	}

	if len(b.bids) > 0 {
		b.bestBid = b.bids[0]
	} else {
		b.bestBid = nil
	}
	if len(b.asks) > 0 {
		b.bestAsk = b.asks[0]
	} else {
		b.bestAsk = nil
	}

	b.updateTime(lastChangeTime)
	return events
}

func (b *OrderBook) updateTime(lastChangeTime time.Time) {
	if !lastChangeTime.IsZero() {
		b.lastChangeTime = lastChangeTime
	}
}

func (b *OrderBook) verifyLocked(bids, asks []*Quote) bool {
	if len(bids) > 0 && len(asks) > 0 {
		bestAsk := asks[0]
		bestBid := bids[0]
		for _, q := range bids {
			if q.Price.GreaterThanOrEqual(bestAsk.Price) {
				return false
			}
		}
		for _, q := range asks {
			if q.Price.LessThanOrEqual(bestBid.Price) {
				return false
			}
		}
	}
	return b.verifySide(bids, SideBuy) && b.verifySide(asks, SideSell)
}

func (b *OrderBook) verifySide(quotes []*Quote, side Side) bool {
	if len(quotes) == 0 {
		return true
	}

	seen := make(map[string]struct{}, len(quotes))
	for _, q := range quotes {
		if !b.verifyQuote(q, side) {
			return false
		}
		// Numerically equal decimals can carry different exponents, so a
		// normalized string is the duplicate key, not the Decimal itself.
		key := q.Price.String()
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}

	prev := quotes[0]
	for _, current := range quotes[1:] {
		if side == SideBuy {
			if current.Price.GreaterThan(prev.Price) {
				return false
			}
		} else {
			if current.Price.LessThan(prev.Price) {
				return false
			}
		}
		prev = current
	}
	return true
}

func (b *OrderBook) verifyQuote(quote *Quote, side Side) bool {
	if quote == nil {
		return false
	}
	if b.security != nil && quote.SecurityID != b.security.UID && quote.SecurityID != uuid.Nil {
		return false
	}
	return quote.Price.Sign() > 0 && quote.Volume.Sign() > 0 && quote.Side == side
}

// quoteIndex locates the exact price in a side sorted best-first,
// returning -1 when absent. A degenerate side (0 or 1 quotes) and the
// boundary quotes are handled before bisection; ties on price cannot occur
// by the book invariant.
func quoteIndex(quotes []*Quote, price decimal.Decimal, desc bool) int {
	stop := len(quotes) - 1
	if stop < 0 {
		return -1
	}

	cmp := price.Cmp(quotes[0].Price)
	if cmp == 0 {
		return 0
	}
	if desc {
		cmp = -cmp
	}
	if cmp < 0 {
		return -1
	}

	cmp = price.Cmp(quotes[stop].Price)
	if cmp == 0 {
		return stop
	}
	if desc {
		cmp = -cmp
	}
	if cmp > 0 {
		return -1
	}

	start := 0
	for stop >= start {
		mid := (start + stop) >> 1
		cmp = price.Cmp(quotes[mid].Price)
		if desc {
			cmp = -cmp
		}
		switch {
		case cmp > 0:
			start = mid + 1
		case cmp < 0:
			stop = mid - 1
		default:
			return mid
		}
	}
	return -1
}

// insertIndex finds the position keeping the side sorted best-first.
func insertIndex(quotes []*Quote, price decimal.Decimal, desc bool) int {
	return sort.Search(len(quotes), func(i int) bool {
		if desc {
			return quotes[i].Price.LessThan(price)
		}
		return quotes[i].Price.GreaterThan(price)
	})
}

func truncateSide(quotes []*Quote, maxDepth int, events []Event) ([]*Quote, []Event) {
	if len(quotes) <= maxDepth {
		return quotes, events
	}
	for _, out := range quotes[maxDepth:] {
		events = append(events, evicted(out))
	}
	return quotes[:maxDepth], events
}

func cloneSide(quotes []*Quote) []*Quote {
	if quotes == nil {
		return nil
	}
	out := make([]*Quote, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, q.Clone())
	}
	return out
}

func cloneOrNil(q *Quote) *Quote {
	if q == nil {
		return nil
	}
	return q.Clone()
}

func sumVolume(quotes []*Quote) decimal.Decimal {
	total := decimal.Zero
	for _, q := range quotes {
		total = total.Add(q.Volume)
	}
	return total
}
