package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"main/internal/application/service/orderflow"
	appsecurities "main/internal/application/service/securities"
	"main/internal/domain/entity/depth"
	"main/internal/domain/entity/marketdata"
	"main/internal/domain/entity/orderlog"
)

var ErrUnknownSecurity = errors.New("unknown security")

// Engine owns one converter and one order book per security and routes
// market data messages to them. All messages for a security are processed
// under that security's lock, so feeds may call in from multiple
// goroutines.
type Engine struct {
	settings   orderflow.Settings
	securities *appsecurities.Service
	logger     *logrus.Logger
	seed       int64

	mu     sync.Mutex
	states map[uuid.UUID]*state
}

type state struct {
	mu        sync.Mutex
	converter *orderflow.Converter
	book      *depth.OrderBook
}

// New builds an engine. securities may be nil when no reference data store
// is available; steps are then inferred from the stream. A non-zero seed
// makes the synthetic flow reproducible.
func New(settings orderflow.Settings, securities *appsecurities.Service, logger *logrus.Logger, seed int64) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if settings.MaxDepth <= 0 {
		settings.MaxDepth = orderflow.DefaultSettings().MaxDepth
	}
	return &Engine{
		settings:   settings,
		securities: securities,
		logger:     logger,
		seed:       seed,
		states:     make(map[uuid.UUID]*state),
	}
}

func (e *Engine) stateFor(ctx context.Context, uid uuid.UUID) (*state, error) {
	if uid == uuid.Nil {
		return nil, ErrUnknownSecurity
	}

	e.mu.Lock()
	st, ok := e.states[uid]
	if !ok {
		var rng *rand.Rand
		if e.seed != 0 {
			rng = rand.New(rand.NewSource(e.seed ^ int64(uid.ID())))
		}
		st = &state{
			converter: orderflow.NewConverter(uid, e.settings, rng),
			book:      depth.NewOrderBook(nil),
		}
		_, _ = st.book.SetMaxDepth(e.settings.MaxDepth)
		e.states[uid] = st
	}
	e.mu.Unlock()

	if !ok && e.securities != nil {
		if sec, err := e.securities.GetSecurity(ctx, uid); err == nil {
			st.mu.Lock()
			st.converter.UpdateSecurityDefinition(sec)
			st.mu.Unlock()
		} else {
			e.logger.WithField("security_uid", uid).WithError(err).
				Debug("no security definition, steps will be inferred")
		}
	}
	return st, nil
}

// OnDepth feeds a depth snapshot through the security's converter and
// replays the resulting entries onto its book.
func (e *Engine) OnDepth(ctx context.Context, msg *marketdata.DepthSnapshot) ([]*orderlog.Entry, error) {
	if msg == nil {
		return nil, orderflow.ErrNilMessage
	}
	st, err := e.stateFor(ctx, msg.SecurityID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	entries, err := st.converter.OnDepth(msg)
	if err != nil {
		return nil, err
	}
	return entries, e.replay(st, entries)
}

func (e *Engine) OnTrade(ctx context.Context, msg *marketdata.Trade) ([]*orderlog.Entry, error) {
	if msg == nil {
		return nil, orderflow.ErrNilMessage
	}
	st, err := e.stateFor(ctx, msg.SecurityID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	entries, err := st.converter.OnTrade(msg)
	if err != nil {
		return nil, err
	}
	return entries, e.replay(st, entries)
}

func (e *Engine) OnLevel1(ctx context.Context, msg *marketdata.Level1Change) ([]*orderlog.Entry, error) {
	if msg == nil {
		return nil, orderflow.ErrNilMessage
	}
	st, err := e.stateFor(ctx, msg.SecurityID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	entries, err := st.converter.OnLevel1(msg)
	if err != nil {
		return nil, err
	}
	return entries, e.replay(st, entries)
}

func (e *Engine) OnOrderRegister(ctx context.Context, msg *marketdata.OrderRegister) ([]*orderlog.Entry, error) {
	if msg == nil {
		return nil, orderflow.ErrNilMessage
	}
	st, err := e.stateFor(ctx, msg.SecurityID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	entries, err := st.converter.OnOrderRegister(msg, visibleVolume(st.book, msg.Side, msg.Price))
	if err != nil {
		return nil, err
	}
	return entries, e.replay(st, entries)
}

func (e *Engine) OnOrderReplace(ctx context.Context, msg *marketdata.OrderReplace) ([]*orderlog.Entry, error) {
	if msg == nil {
		return nil, orderflow.ErrNilMessage
	}
	st, err := e.stateFor(ctx, msg.SecurityID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	entries, err := st.converter.OnOrderReplace(msg, visibleVolume(st.book, msg.Side, msg.Price))
	if err != nil {
		return nil, err
	}
	return entries, e.replay(st, entries)
}

func (e *Engine) OnOrderCancel(ctx context.Context, msg *marketdata.OrderCancel) ([]*orderlog.Entry, error) {
	if msg == nil {
		return nil, orderflow.ErrNilMessage
	}
	st, err := e.stateFor(ctx, msg.SecurityID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	entries, err := st.converter.OnOrderCancel(msg)
	if err != nil {
		return nil, err
	}
	return entries, e.replay(st, entries)
}

func (e *Engine) replay(st *state, entries []*orderlog.Entry) error {
	events, err := orderflow.ApplyToBook(st.book, entries)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Kind == depth.EventQuoteOutOfDepth && ev.Quote != nil {
			e.logger.WithFields(logrus.Fields{
				"security_uid": ev.Quote.SecurityID,
				"price":        ev.Quote.Price.String(),
			}).Debug("quote pushed out of depth")
		}
	}
	return nil
}

// DepthView returns the current book of a security, or nil when the engine
// has not seen it yet.
func (e *Engine) DepthView(uid uuid.UUID) *marketdata.DepthSnapshot {
	e.mu.Lock()
	st, ok := e.states[uid]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	view := st.converter.DepthView(st.book.LastChangeTime())
	return view
}

// Book returns a deep copy of the security's replayed order book, or nil
// when unknown.
func (e *Engine) Book(uid uuid.UUID) *depth.OrderBook {
	e.mu.Lock()
	st, ok := e.states[uid]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.book.Clone()
}

// visibleVolume sums the volume on the opposite side that an order at this
// price could match against.
func visibleVolume(book *depth.OrderBook, side depth.Side, price decimal.Decimal) decimal.Decimal {
	var quotes []*depth.Quote
	if side == depth.SideBuy {
		quotes = book.Asks()
	} else {
		quotes = book.Bids()
	}
	total := decimal.Zero
	for _, q := range quotes {
		crosses := (side == depth.SideBuy && q.Price.LessThanOrEqual(price)) ||
			(side == depth.SideSell && q.Price.GreaterThanOrEqual(price))
		if !crosses {
			break
		}
		total = total.Add(q.Volume)
	}
	return total
}
