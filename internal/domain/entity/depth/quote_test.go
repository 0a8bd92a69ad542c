package depth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestAggregatedQuoteJoins(t *testing.T) {
	agg := NewAggregatedQuote(false)
	if err := agg.AddInner(NewQuote(securityID(), SideBuy, dec(100), dec(10))); err != nil {
		t.Fatalf("first inner: %v", err)
	}
	if err := agg.AddInner(NewQuote(securityID(), SideBuy, dec(100), dec(5))); err != nil {
		t.Fatalf("second inner: %v", err)
	}

	if !agg.Volume.Equal(dec(15)) {
		t.Fatalf("aggregate volume got %v want 15", agg.Volume)
	}
	if !agg.Price.Equal(dec(100)) {
		t.Fatalf("aggregate price got %v want 100", agg.Price)
	}
	if got := len(agg.InnerQuotes()); got != 2 {
		t.Fatalf("inner count got %d want 2", got)
	}
}

func TestAggregatedQuoteStrictPrice(t *testing.T) {
	agg := NewAggregatedQuote(true)
	if err := agg.AddInner(NewQuote(securityID(), SideBuy, dec(100), dec(10))); err != nil {
		t.Fatalf("first inner: %v", err)
	}
	if err := agg.AddInner(NewQuote(securityID(), SideBuy, dec(101), dec(5))); err == nil {
		t.Fatal("strict aggregate accepted different price")
	}

	loose := NewAggregatedQuote(false)
	if err := loose.AddInner(NewQuote(securityID(), SideBuy, dec(100), dec(10))); err != nil {
		t.Fatalf("first inner: %v", err)
	}
	if err := loose.AddInner(NewQuote(securityID(), SideBuy, dec(101), dec(5))); err != nil {
		t.Fatalf("loose aggregate rejected different price: %v", err)
	}
}

func TestAggregatedQuoteEnforcesSideAndSecurity(t *testing.T) {
	agg := NewAggregatedQuote(false)
	if err := agg.AddInner(NewQuote(securityID(), SideBuy, dec(100), dec(10))); err != nil {
		t.Fatalf("first inner: %v", err)
	}
	if err := agg.AddInner(NewQuote(securityID(), SideSell, dec(100), dec(5))); err == nil {
		t.Fatal("aggregate accepted different side")
	}
	other := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	if err := agg.AddInner(NewQuote(other, SideBuy, dec(100), dec(5))); !errors.Is(err, ErrSecurityMismatch) {
		t.Fatalf("expected security mismatch, got %v", err)
	}
}

func TestRemoveConsumesInnerOldestFirst(t *testing.T) {
	b := NewOrderBook(nil)
	b.SetUseAggregatedQuotes(true)

	if _, err := b.AddBid(dec(100), dec(10)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := b.AddBid(dec(100), dec(5)); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := b.Remove(SideBuy, dec(100), dec(12), time.Time{}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	best := b.BestBid()
	if !best.Volume.Equal(dec(3)) {
		t.Fatalf("volume got %v want 3", best.Volume)
	}
	inner := best.InnerQuotes()
	if len(inner) != 1 {
		t.Fatalf("inner count got %d want 1", len(inner))
	}
	if !inner[0].Volume.Equal(dec(3)) {
		t.Fatalf("surviving inner volume got %v want 3", inner[0].Volume)
	}
}

func TestCloneDeepCopiesInner(t *testing.T) {
	agg := NewAggregatedQuote(false)
	_ = agg.AddInner(NewQuote(securityID(), SideBuy, dec(100), dec(10)))

	clone := agg.Clone()
	clone.InnerQuotes()[0].Volume = decimal.Zero

	if !agg.InnerQuotes()[0].Volume.Equal(dec(10)) {
		t.Fatalf("clone shares inner quotes with original")
	}
}
