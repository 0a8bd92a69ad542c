package orderflow

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/domain/entity/depth"
	"main/internal/domain/entity/marketdata"
	"main/internal/domain/entity/orderlog"
)

var (
	testUID  = uuid.MustParse("6e273aea-0822-4734-8123-678a2f1ffc27")
	otherUID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

	day1 = time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// testSettings pins VolumeMax to VolumeMin+1 so entries generated with an
// unknown volume always get VolumeMin, keeping assertions deterministic.
func testSettings() Settings {
	return Settings{
		MaxDepth:         100,
		SpreadSize:       2,
		VolumeMultiplier: 2,
		MatchProbability: 0,
		VolumeMin:        10,
		VolumeMax:        11,
	}
}

func newTestConverter(t *testing.T, settings Settings) *Converter {
	t.Helper()
	return NewConverter(testUID, settings, rand.New(rand.NewSource(1)))
}

func q(side depth.Side, price, volume int64) depth.Quote {
	return depth.Quote{SecurityID: testUID, Side: side, Price: dec(price), Volume: dec(volume)}
}

func snap(t time.Time, bids, asks []depth.Quote) *marketdata.DepthSnapshot {
	return &marketdata.DepthSnapshot{
		SecurityID: testUID,
		Bids:       bids,
		Asks:       asks,
		IsSorted:   true,
		LocalTime:  t,
	}
}

func mustOnDepth(t *testing.T, c *Converter, msg *marketdata.DepthSnapshot) []*orderlog.Entry {
	t.Helper()
	entries, err := c.OnDepth(msg)
	if err != nil {
		t.Fatalf("OnDepth: %v", err)
	}
	return entries
}

func TestOnDepthInitialSnapshotEmitsPlacements(t *testing.T) {
	c := newTestConverter(t, testSettings())

	entries := mustOnDepth(t, c, snap(day1,
		[]depth.Quote{q(depth.SideBuy, 100, 10), q(depth.SideBuy, 99, 5)},
		[]depth.Quote{q(depth.SideSell, 101, 7)},
	))

	if len(entries) != 3 {
		t.Fatalf("entries got %d want 3", len(entries))
	}
	wantPrices := []int64{101, 100, 99}
	for i, e := range entries {
		if e.ExecType != orderlog.ExecOrderLog {
			t.Fatalf("entry %d exec type %s", i, e.ExecType)
		}
		if e.IsCancelled {
			t.Fatalf("entry %d is a cancellation", i)
		}
		if !e.Price.Equal(dec(wantPrices[i])) {
			t.Fatalf("entry %d price got %v want %d", i, e.Price, wantPrices[i])
		}
	}

	view := c.DepthView(day1)
	if len(view.Bids) != 2 || len(view.Asks) != 1 {
		t.Fatalf("view sides got %d/%d want 2/1", len(view.Bids), len(view.Asks))
	}
	if !view.Bids[0].Price.Equal(dec(100)) || !view.Bids[0].Volume.Equal(dec(10)) {
		t.Fatalf("best bid got %v@%v", view.Bids[0].Price, view.Bids[0].Volume)
	}
	if !view.Asks[0].Price.Equal(dec(101)) || !view.Asks[0].Volume.Equal(dec(7)) {
		t.Fatalf("best ask got %v@%v", view.Asks[0].Price, view.Asks[0].Volume)
	}
}

func TestOnDepthRepeatSnapshotIsQuiet(t *testing.T) {
	c := newTestConverter(t, testSettings())

	bids := []depth.Quote{q(depth.SideBuy, 100, 10)}
	asks := []depth.Quote{q(depth.SideSell, 101, 7)}
	mustOnDepth(t, c, snap(day1, bids, asks))

	entries := mustOnDepth(t, c, snap(day1, bids, asks))
	if len(entries) != 0 {
		t.Fatalf("identical snapshot produced %d entries", len(entries))
	}
}

func TestOnDepthTopShrinkCancels(t *testing.T) {
	c := newTestConverter(t, testSettings())

	mustOnDepth(t, c, snap(day1, []depth.Quote{q(depth.SideBuy, 100, 10)}, nil))
	entries := mustOnDepth(t, c, snap(day1, []depth.Quote{q(depth.SideBuy, 100, 4)}, nil))

	if len(entries) != 1 {
		t.Fatalf("entries got %d want 1", len(entries))
	}
	e := entries[0]
	if !e.IsCancelled || !e.Volume.Equal(dec(6)) || !e.Price.Equal(dec(100)) {
		t.Fatalf("unexpected cancellation %+v", e)
	}

	view := c.DepthView(day1)
	if !view.Bids[0].Volume.Equal(dec(4)) {
		t.Fatalf("book volume got %v want 4", view.Bids[0].Volume)
	}
}

func TestOnDepthTopShrinkCanMatch(t *testing.T) {
	settings := testSettings()
	settings.MatchProbability = 1
	c := newTestConverter(t, settings)

	mustOnDepth(t, c, snap(day1, []depth.Quote{q(depth.SideBuy, 100, 10)}, nil))
	entries := mustOnDepth(t, c, snap(day1, []depth.Quote{q(depth.SideBuy, 100, 4)}, nil))

	if len(entries) != 2 {
		t.Fatalf("entries got %d want 2", len(entries))
	}
	tick := entries[0]
	if tick.ExecType != orderlog.ExecTick {
		t.Fatalf("first entry exec type %s want tick", tick.ExecType)
	}
	if !tick.Volume.Equal(dec(3)) || !tick.TradePrice.Equal(dec(100)) {
		t.Fatalf("tick got %v@%v want 3@100", tick.Volume, tick.TradePrice)
	}
	if !entries[1].IsCancelled || !entries[1].Volume.Equal(dec(6)) {
		t.Fatalf("unexpected cancellation %+v", entries[1])
	}

	view := c.DepthView(day1)
	if !view.Bids[0].Volume.Equal(dec(4)) {
		t.Fatalf("book volume got %v want 4", view.Bids[0].Volume)
	}
}

func TestOnDepthDroppedLevelNeverMatches(t *testing.T) {
	settings := testSettings()
	settings.MatchProbability = 1
	c := newTestConverter(t, settings)

	mustOnDepth(t, c, snap(day1, []depth.Quote{q(depth.SideBuy, 100, 10), q(depth.SideBuy, 99, 5)}, nil))
	entries := mustOnDepth(t, c, snap(day1, []depth.Quote{q(depth.SideBuy, 100, 10)}, nil))

	if len(entries) != 1 {
		t.Fatalf("entries got %d want 1", len(entries))
	}
	e := entries[0]
	if !e.IsCancelled || !e.Price.Equal(dec(99)) || !e.Volume.Equal(dec(5)) {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestOnDepthSortsUnsortedSnapshot(t *testing.T) {
	c := newTestConverter(t, testSettings())

	msg := snap(day1,
		[]depth.Quote{q(depth.SideBuy, 98, 1), q(depth.SideBuy, 100, 2), q(depth.SideBuy, 99, 3)},
		[]depth.Quote{q(depth.SideSell, 103, 1), q(depth.SideSell, 101, 2)},
	)
	msg.IsSorted = false
	mustOnDepth(t, c, msg)

	view := c.DepthView(day1)
	for i := 1; i < len(view.Bids); i++ {
		if !view.Bids[i].Price.LessThan(view.Bids[i-1].Price) {
			t.Fatalf("bids out of order at %d", i)
		}
	}
	for i := 1; i < len(view.Asks); i++ {
		if !view.Asks[i].Price.GreaterThan(view.Asks[i-1].Price) {
			t.Fatalf("asks out of order at %d", i)
		}
	}
}

func TestOnDepthValidation(t *testing.T) {
	c := newTestConverter(t, testSettings())

	if _, err := c.OnDepth(nil); !errors.Is(err, ErrNilMessage) {
		t.Fatalf("nil message: %v", err)
	}
	msg := snap(day1, nil, nil)
	msg.SecurityID = otherUID
	if _, err := c.OnDepth(msg); !errors.Is(err, ErrSecurityMismatch) {
		t.Fatalf("security mismatch: %v", err)
	}
}

func TestApplyToBookReplaysFlow(t *testing.T) {
	book := depth.NewOrderBook(nil)

	place := func(side depth.Side, price, volume int64) *orderlog.Entry {
		return &orderlog.Entry{
			SecurityID:  testUID,
			Side:        side,
			Price:       dec(price),
			Volume:      dec(volume),
			ExecType:    orderlog.ExecOrderLog,
			TimeInForce: orderlog.TIFPutInQueue,
			LocalTime:   day1,
		}
	}
	aggressor := place(depth.SideBuy, 102, 3)
	aggressor.TimeInForce = orderlog.TIFMatchOrCancel
	cancel := place(depth.SideBuy, 100, 4)
	cancel.IsCancelled = true
	tick := &orderlog.Entry{
		SecurityID: testUID,
		Side:       depth.SideBuy,
		Volume:     dec(1),
		TradePrice: dec(100),
		ExecType:   orderlog.ExecTick,
		LocalTime:  day1,
	}

	_, err := ApplyToBook(book, []*orderlog.Entry{
		place(depth.SideBuy, 100, 10),
		place(depth.SideSell, 102, 5),
		aggressor,
		cancel,
		tick,
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	bid, ask := book.BestBid(), book.BestAsk()
	if bid == nil || !bid.Price.Equal(dec(100)) || !bid.Volume.Equal(dec(6)) {
		t.Fatalf("best bid got %v", bid)
	}
	if ask == nil || !ask.Price.Equal(dec(102)) || !ask.Volume.Equal(dec(2)) {
		t.Fatalf("best ask got %v", ask)
	}
}

func TestApplyToBookSkipsMissingCancellation(t *testing.T) {
	book := depth.NewOrderBook(nil)
	if _, err := book.AddBid(dec(100), dec(10)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cancel := &orderlog.Entry{
		SecurityID:  testUID,
		Side:        depth.SideBuy,
		Price:       dec(95),
		Volume:      dec(5),
		ExecType:    orderlog.ExecOrderLog,
		IsCancelled: true,
		TimeInForce: orderlog.TIFPutInQueue,
		LocalTime:   day1,
	}
	if _, err := ApplyToBook(book, []*orderlog.Entry{cancel}); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if bid := book.BestBid(); bid == nil || !bid.Volume.Equal(dec(10)) {
		t.Fatalf("book changed by missing cancellation: %v", bid)
	}
}
