package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/application/service/orderflow"
	"main/internal/domain/entity/depth"
	"main/internal/domain/entity/marketdata"
)

var engineUID = uuid.MustParse("b71ad3d2-58f2-4f0c-8f45-2d0f0b4d9a11")

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	settings := orderflow.DefaultSettings()
	settings.MatchProbability = 0
	return New(settings, nil, nil, 1)
}

func TestEngineReplaysDepthOntoBook(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

	entries, err := e.OnDepth(ctx, &marketdata.DepthSnapshot{
		SecurityID: engineUID,
		Bids:       []depth.Quote{{SecurityID: engineUID, Side: depth.SideBuy, Price: dec(100), Volume: dec(10)}},
		Asks:       []depth.Quote{{SecurityID: engineUID, Side: depth.SideSell, Price: dec(102), Volume: dec(5)}},
		IsSorted:   true,
		LocalTime:  now,
	})
	if err != nil {
		t.Fatalf("OnDepth: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries got %d want 2", len(entries))
	}

	book := e.Book(engineUID)
	if book == nil {
		t.Fatal("book missing after depth")
	}
	bid, ask := book.BestBid(), book.BestAsk()
	if bid == nil || !bid.Price.Equal(dec(100)) || !bid.Volume.Equal(dec(10)) {
		t.Fatalf("best bid got %v", bid)
	}
	if ask == nil || !ask.Price.Equal(dec(102)) || !ask.Volume.Equal(dec(5)) {
		t.Fatalf("best ask got %v", ask)
	}

	view := e.DepthView(engineUID)
	if view == nil || len(view.Bids) != 1 || len(view.Asks) != 1 {
		t.Fatalf("depth view got %+v", view)
	}
}

func TestEngineBookIsACopy(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

	if _, err := e.OnTrade(ctx, &marketdata.Trade{
		SecurityID: engineUID,
		Price:      dec(50),
		Volume:     dec(1),
		LocalTime:  now,
	}); err != nil {
		t.Fatalf("OnTrade: %v", err)
	}

	book := e.Book(engineUID)
	if _, err := book.AddBid(dec(1), dec(1)); err != nil {
		t.Fatalf("mutate copy: %v", err)
	}

	fresh := e.Book(engineUID)
	if fresh.Count() == book.Count() {
		t.Fatal("mutating the returned book reached the engine")
	}
}

func TestEngineUnknownSecurity(t *testing.T) {
	e := newTestEngine(t)

	if view := e.DepthView(engineUID); view != nil {
		t.Fatalf("view for unseen security: %+v", view)
	}
	if book := e.Book(engineUID); book != nil {
		t.Fatal("book for unseen security")
	}

	_, err := e.OnDepth(context.Background(), &marketdata.DepthSnapshot{LocalTime: time.Now()})
	if !errors.Is(err, ErrUnknownSecurity) {
		t.Fatalf("nil security uid: %v", err)
	}
}

func TestVisibleVolume(t *testing.T) {
	book := depth.NewOrderBook(nil)
	for _, lvl := range []struct{ price, volume int64 }{{101, 3}, {102, 4}, {103, 5}} {
		if _, err := book.AddAsk(dec(lvl.price), dec(lvl.volume)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if got := visibleVolume(book, depth.SideBuy, dec(102)); !got.Equal(dec(7)) {
		t.Fatalf("crossing two levels got %v want 7", got)
	}
	if got := visibleVolume(book, depth.SideBuy, dec(100)); !got.IsZero() {
		t.Fatalf("non-crossing order got %v want 0", got)
	}
	if got := visibleVolume(book, depth.SideSell, dec(100)); !got.IsZero() {
		t.Fatalf("empty bid side got %v want 0", got)
	}
}
