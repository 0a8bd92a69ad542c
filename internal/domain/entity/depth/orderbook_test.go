package depth

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var testSecurityID = uuid.MustParse("6e273aea-0822-4734-8123-678a2f1ffc27")

func securityID() uuid.UUID {
	return testSecurityID
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func mustAddBid(t *testing.T, b *OrderBook, price, volume float64) []Event {
	t.Helper()
	events, err := b.AddBid(dec(price), dec(volume))
	if err != nil {
		t.Fatalf("add bid %v: %v", price, err)
	}
	return events
}

func mustAddAsk(t *testing.T, b *OrderBook, price, volume float64) []Event {
	t.Helper()
	events, err := b.AddAsk(dec(price), dec(volume))
	if err != nil {
		t.Fatalf("add ask %v: %v", price, err)
	}
	return events
}

func TestBestQuotesAndOrdering(t *testing.T) {
	b := NewOrderBook(nil)
	mustAddBid(t, b, 99, 5)
	mustAddBid(t, b, 100, 10)
	mustAddBid(t, b, 98, 1)
	mustAddAsk(t, b, 102, 3)
	mustAddAsk(t, b, 101, 7)

	if got := b.BestBid(); got == nil || !got.Price.Equal(dec(100)) {
		t.Fatalf("best bid got %v want 100", got)
	}
	if got := b.BestAsk(); got == nil || !got.Price.Equal(dec(101)) {
		t.Fatalf("best ask got %v want 101", got)
	}

	bids := b.Bids()
	for i := 1; i < len(bids); i++ {
		if !bids[i].Price.LessThan(bids[i-1].Price) {
			t.Fatalf("bids not strictly descending at %d: %v", i, bids)
		}
	}
	asks := b.Asks()
	for i := 1; i < len(asks); i++ {
		if !asks[i].Price.GreaterThan(asks[i-1].Price) {
			t.Fatalf("asks not strictly ascending at %d: %v", i, asks)
		}
	}
	if !b.Verify() {
		t.Fatal("book failed verification")
	}
}

func TestAddQuoteJoinsSamePrice(t *testing.T) {
	b := NewOrderBook(nil)
	mustAddBid(t, b, 100, 10)
	mustAddBid(t, b, 100, 5)

	if got := b.Depth(); got != 1 {
		t.Fatalf("depth got %d want 1", got)
	}
	if got := b.BestBid(); !got.Volume.Equal(dec(15)) {
		t.Fatalf("joined volume got %v want 15", got.Volume)
	}
}

func TestUpdateQuoteReplacesVolume(t *testing.T) {
	b := NewOrderBook(nil)
	mustAddBid(t, b, 100, 10)
	if _, err := b.UpdateQuote(NewQuote(securityID(), SideBuy, dec(100), dec(3))); err != nil {
		t.Fatalf("update quote: %v", err)
	}
	if got := b.BestBid(); !got.Volume.Equal(dec(3)) {
		t.Fatalf("replaced volume got %v want 3", got.Volume)
	}
}

func TestMaxDepthEvictionReportedOnce(t *testing.T) {
	b := NewOrderBook(nil)
	if _, err := b.SetMaxDepth(1); err != nil {
		t.Fatalf("set max depth: %v", err)
	}

	mustAddBid(t, b, 100, 10)
	events := mustAddBid(t, b, 99, 5)

	evictions := 0
	for _, ev := range events {
		if ev.Kind == EventQuoteOutOfDepth {
			evictions++
			if !ev.Quote.Price.Equal(dec(99)) {
				t.Fatalf("evicted price got %v want 99", ev.Quote.Price)
			}
		}
	}
	if evictions != 1 {
		t.Fatalf("evictions got %d want 1", evictions)
	}
	if got := b.BestBid(); !got.Price.Equal(dec(100)) {
		t.Fatalf("best bid got %v want 100", got.Price)
	}
	if got := b.Depth(); got != 1 {
		t.Fatalf("depth got %d want 1", got)
	}
}

func TestMaxDepthEvictsWorstOnBetterQuote(t *testing.T) {
	b := NewOrderBook(nil)
	if _, err := b.SetMaxDepth(1); err != nil {
		t.Fatalf("set max depth: %v", err)
	}

	mustAddBid(t, b, 100, 10)
	events := mustAddBid(t, b, 101, 5)

	var evicted *Quote
	for _, ev := range events {
		if ev.Kind == EventQuoteOutOfDepth {
			evicted = ev.Quote
		}
	}
	if evicted == nil || !evicted.Price.Equal(dec(100)) {
		t.Fatalf("evicted got %v want 100", evicted)
	}
	if got := b.BestBid(); !got.Price.Equal(dec(101)) {
		t.Fatalf("best bid got %v want 101", got.Price)
	}
}

func TestRemovePartialFullAndErrors(t *testing.T) {
	b := NewOrderBook(nil)
	mustAddBid(t, b, 100, 10)

	if _, err := b.Remove(SideBuy, dec(100), dec(4), time.Time{}); err != nil {
		t.Fatalf("partial remove: %v", err)
	}
	if got := b.BestBid(); !got.Volume.Equal(dec(6)) {
		t.Fatalf("volume after partial remove got %v want 6", got.Volume)
	}

	if _, err := b.Remove(SideBuy, dec(100), dec(7), time.Time{}); err == nil {
		t.Fatal("expected volume-too-big error")
	}
	if _, err := b.Remove(SideBuy, dec(50), dec(1), time.Time{}); err == nil {
		t.Fatal("expected price-not-found error")
	}

	if _, err := b.Remove(SideBuy, dec(100), decimal.Zero, time.Time{}); err != nil {
		t.Fatalf("full remove: %v", err)
	}
	if got := b.BestBid(); got != nil {
		t.Fatalf("bid side should be empty, got %v", got)
	}
}

func TestRemoveByPriceInfersSide(t *testing.T) {
	b := NewOrderBook(nil)
	mustAddBid(t, b, 100, 10)
	mustAddAsk(t, b, 102, 3)

	if _, err := b.RemoveByPrice(dec(102), decimal.Zero, time.Time{}); err != nil {
		t.Fatalf("remove by price: %v", err)
	}
	if got := b.BestAsk(); got != nil {
		t.Fatalf("ask side should be empty, got %v", got)
	}
	if got := b.BestBid(); got == nil || !got.Price.Equal(dec(100)) {
		t.Fatalf("bid side should be intact, got %v", got)
	}
}

func TestUpdateRejectsCrossedSnapshot(t *testing.T) {
	b := NewOrderBook(nil)
	b.SetAutoVerify(true)

	bids := []*Quote{NewQuote(securityID(), SideBuy, dec(103), dec(1))}
	asks := []*Quote{NewQuote(securityID(), SideSell, dec(102), dec(1))}
	if _, err := b.Update(bids, asks, true, time.Time{}); err == nil {
		t.Fatal("expected crossed snapshot to be rejected")
	}
	if b.Count() != 0 {
		t.Fatalf("book should stay empty, count %d", b.Count())
	}
}

func TestUpdateSortsUnsortedSnapshot(t *testing.T) {
	b := NewOrderBook(nil)
	bids := []*Quote{
		NewQuote(securityID(), SideBuy, dec(98), dec(1)),
		NewQuote(securityID(), SideBuy, dec(100), dec(2)),
		NewQuote(securityID(), SideBuy, dec(99), dec(3)),
	}
	asks := []*Quote{
		NewQuote(securityID(), SideSell, dec(103), dec(1)),
		NewQuote(securityID(), SideSell, dec(101), dec(2)),
	}
	if _, err := b.Update(bids, asks, false, time.Time{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := b.BestBid(); !got.Price.Equal(dec(100)) {
		t.Fatalf("best bid got %v want 100", got.Price)
	}
	if got := b.BestAsk(); !got.Price.Equal(dec(101)) {
		t.Fatalf("best ask got %v want 101", got.Price)
	}
	if !b.Verify() {
		t.Fatal("book failed verification after unsorted update")
	}
}

func TestVerifyDetectsCrossedBook(t *testing.T) {
	b := NewOrderBook(nil)
	mustAddAsk(t, b, 102, 1)
	mustAddBid(t, b, 105, 1)

	if b.Verify() {
		t.Fatal("crossed book passed verification")
	}
}

func TestDecrease(t *testing.T) {
	b := NewOrderBook(nil)
	mustAddBid(t, b, 100, 1)
	mustAddBid(t, b, 99, 1)
	mustAddBid(t, b, 98, 1)
	mustAddAsk(t, b, 101, 1)

	if _, err := b.Decrease(5); err == nil {
		t.Fatal("expected depth-too-large error")
	}
	if _, err := b.Decrease(1); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if got := b.Depth(); got != 1 {
		t.Fatalf("depth after decrease got %d want 1", got)
	}
	if got := b.BestBid(); !got.Price.Equal(dec(100)) {
		t.Fatalf("best bid survived wrong: %v", got.Price)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := NewOrderBook(nil)
	mustAddBid(t, b, 100, 10)
	mustAddAsk(t, b, 101, 5)

	clone := b.Clone()
	mustAddBid(t, b, 99, 1)
	if _, err := b.Remove(SideSell, dec(101), decimal.Zero, time.Time{}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if got := clone.Depth(); got != 1 {
		t.Fatalf("clone depth got %d want 1", got)
	}
	if got := clone.BestAsk(); got == nil || !got.Price.Equal(dec(101)) {
		t.Fatalf("clone ask changed: %v", got)
	}
	if !clone.Verify() {
		t.Fatal("clone failed verification")
	}
}

func TestTotals(t *testing.T) {
	b := NewOrderBook(nil)
	mustAddBid(t, b, 100, 10)
	mustAddBid(t, b, 99, 5)
	mustAddAsk(t, b, 101, 7)

	if got := b.TotalBidsVolume(); !got.Equal(dec(15)) {
		t.Fatalf("bids volume got %v want 15", got)
	}
	if got := b.TotalAsksVolume(); !got.Equal(dec(7)) {
		t.Fatalf("asks volume got %v want 7", got)
	}
	if got := b.TotalVolume(); !got.Equal(dec(22)) {
		t.Fatalf("total volume got %v want 22", got)
	}
}

func TestQuoteIndexLookup(t *testing.T) {
	quotes := []*Quote{
		NewQuote(securityID(), SideBuy, dec(105), dec(1)),
		NewQuote(securityID(), SideBuy, dec(103), dec(1)),
		NewQuote(securityID(), SideBuy, dec(101), dec(1)),
		NewQuote(securityID(), SideBuy, dec(99), dec(1)),
	}

	cases := []struct {
		price float64
		want  int
	}{
		{105, 0},
		{103, 1},
		{101, 2},
		{99, 3},
		{104, -1},
		{110, -1},
		{90, -1},
	}
	for _, tc := range cases {
		if got := quoteIndex(quotes, dec(tc.price), true); got != tc.want {
			t.Fatalf("quoteIndex(%v) got %d want %d", tc.price, got, tc.want)
		}
	}

	if got := quoteIndex(nil, dec(100), true); got != -1 {
		t.Fatalf("quoteIndex on empty side got %d want -1", got)
	}
	if got := quoteIndex(quotes[:1], dec(105), true); got != 0 {
		t.Fatalf("quoteIndex single element got %d want 0", got)
	}
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	b := NewOrderBook(nil)
	if _, err := b.SetMaxDepth(10); err != nil {
		t.Fatalf("set max depth: %v", err)
	}

	// Bids stay in (0, 50], asks in [51, 100], so the book never crosses.
	for i := 0; i < 2000; i++ {
		switch rng.Intn(3) {
		case 0:
			mustAddBid(t, b, float64(1+rng.Intn(50)), float64(1+rng.Intn(20)))
		case 1:
			mustAddAsk(t, b, float64(51+rng.Intn(50)), float64(1+rng.Intn(20)))
		default:
			if q := b.GetQuote(SideBuy, rng.Intn(10)); q != nil {
				if _, err := b.Remove(SideBuy, q.Price, decimal.Zero, time.Time{}); err != nil {
					t.Fatalf("remove at step %d: %v", i, err)
				}
			}
		}

		if !b.Verify() {
			t.Fatalf("invariants broken at step %d", i)
		}
		if len(b.Bids()) > 10 || len(b.Asks()) > 10 {
			t.Fatalf("side exceeded max depth at step %d", i)
		}
	}
}
