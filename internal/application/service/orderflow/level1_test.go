package orderflow

import (
	"testing"
	"time"

	"main/internal/domain/entity/depth"
	"main/internal/domain/entity/marketdata"
	"main/internal/domain/entity/orderlog"
)

func level1(t time.Time) *marketdata.Level1Change {
	return &marketdata.Level1Change{SecurityID: testUID, LocalTime: t}
}

func TestOnLevel1SeedsBestQuotes(t *testing.T) {
	c := newTestConverter(t, testSettings())

	msg := level1(day1)
	msg.BestBidPrice, msg.BestBidVolume = dec(100), dec(10)
	msg.BestAskPrice, msg.BestAskVolume = dec(102), dec(5)

	entries, err := c.OnLevel1(msg)
	if err != nil {
		t.Fatalf("OnLevel1: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries got %d want 2", len(entries))
	}

	view := c.DepthView(day1)
	if len(view.Bids) != 1 || !view.Bids[0].Price.Equal(dec(100)) {
		t.Fatalf("bids got %+v", view.Bids)
	}
	if len(view.Asks) != 1 || !view.Asks[0].Price.Equal(dec(102)) {
		t.Fatalf("asks got %+v", view.Asks)
	}
}

func TestOnLevel1SkipsQuotesAfterRealDepth(t *testing.T) {
	c := newTestConverter(t, testSettings())
	mustOnDepth(t, c, snap(day1,
		[]depth.Quote{q(depth.SideBuy, 100, 10)},
		[]depth.Quote{q(depth.SideSell, 102, 5)},
	))

	msg := level1(day1)
	msg.BestBidPrice, msg.BestBidVolume = dec(90), dec(1)
	msg.BestAskPrice, msg.BestAskVolume = dec(110), dec(1)

	entries, err := c.OnLevel1(msg)
	if err != nil {
		t.Fatalf("OnLevel1: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("level1 overrode real depth with %d entries", len(entries))
	}

	view := c.DepthView(day1)
	if !view.Bids[0].Price.Equal(dec(100)) || !view.Asks[0].Price.Equal(dec(102)) {
		t.Fatalf("book moved: %v/%v", view.Bids[0].Price, view.Asks[0].Price)
	}
}

func TestOnLevel1SkipsTradeAfterRealTick(t *testing.T) {
	c := newTestConverter(t, testSettings())
	mustOnTrade(t, c, trade(day1, 50, 1))

	msg := level1(day1)
	msg.LastTradePrice, msg.LastTradeVolume = dec(60), dec(1)

	entries, err := c.OnLevel1(msg)
	if err != nil {
		t.Fatalf("OnLevel1: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("level1 re-synthesized a seen trade: %d entries", len(entries))
	}
}

func TestOnLevel1IgnoresQuoteWithoutVolume(t *testing.T) {
	c := newTestConverter(t, testSettings())

	msg := level1(day1)
	msg.BestBidPrice = dec(100)

	entries, err := c.OnLevel1(msg)
	if err != nil {
		t.Fatalf("OnLevel1: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("volume-less best bid produced %d entries", len(entries))
	}
	if view := c.DepthView(day1); len(view.Bids) != 0 {
		t.Fatalf("volume-less best bid seeded the book: %+v", view.Bids)
	}

	// The usable half still seeds alone.
	msg = level1(day1)
	msg.BestBidPrice = dec(100)
	msg.BestAskPrice, msg.BestAskVolume = dec(102), dec(5)

	entries, err = c.OnLevel1(msg)
	if err != nil {
		t.Fatalf("OnLevel1: %v", err)
	}
	if len(entries) != 1 || entries[0].Side != depth.SideSell {
		t.Fatalf("mixed update got %d entries", len(entries))
	}
}

func TestOnLevel1IgnoresTradeWithoutVolume(t *testing.T) {
	c := newTestConverter(t, testSettings())

	msg := level1(day1)
	msg.LastTradePrice = dec(50)

	entries, err := c.OnLevel1(msg)
	if err != nil {
		t.Fatalf("OnLevel1: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("volume-less trade produced %d entries", len(entries))
	}
	view := c.DepthView(day1)
	if len(view.Bids) != 0 || len(view.Asks) != 0 {
		t.Fatalf("volume-less trade seeded the book: %d/%d", len(view.Bids), len(view.Asks))
	}
}

func TestOnLevel1SynthesizesTrade(t *testing.T) {
	c := newTestConverter(t, testSettings())

	msg := level1(day1)
	msg.LastTradePrice, msg.LastTradeVolume = dec(50), dec(2)

	entries, err := c.OnLevel1(msg)
	if err != nil {
		t.Fatalf("OnLevel1: %v", err)
	}
	// An empty book gets seeded around the print, same as a real tick.
	if len(entries) != 2 {
		t.Fatalf("entries got %d want 2", len(entries))
	}
	if entries[0].Side != depth.SideSell || !entries[0].Price.Equal(dec(50)) {
		t.Fatalf("resting order got %s@%v", entries[0].Side, entries[0].Price)
	}
	if entries[0].TimeInForce != orderlog.TIFPutInQueue {
		t.Fatalf("resting order time in force %s", entries[0].TimeInForce)
	}
}

func TestOnLevel1Validation(t *testing.T) {
	c := newTestConverter(t, testSettings())

	if _, err := c.OnLevel1(nil); err == nil {
		t.Fatal("nil message accepted")
	}
	msg := level1(day1)
	msg.SecurityID = otherUID
	if _, err := c.OnLevel1(msg); err == nil {
		t.Fatal("foreign security accepted")
	}
}
