package orderflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/domain/entity/depth"
	"main/internal/domain/entity/marketdata"
	"main/internal/domain/entity/orderlog"
)

// OnOrderRegister converts a user registration into order-log form.
// visibleVolume is how much the downstream book currently shows on the
// opposite side at matchable prices; when IncreaseDepthVolume is on and the
// order wants more, synthetic depth is generated first so it can fill.
func (c *Converter) OnOrderRegister(msg *marketdata.OrderRegister, visibleVolume decimal.Decimal) ([]*orderlog.Entry, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if msg.SecurityID != c.securityID {
		return nil, fmt.Errorf("order for %s: %w", msg.SecurityID, ErrSecurityMismatch)
	}
	if !msg.Volume.IsPositive() {
		return nil, fmt.Errorf("volume %s: %w", msg.Volume, ErrInvalidOrder)
	}
	if !msg.Side.IsValid() {
		return nil, fmt.Errorf("side %q: %w", msg.Side, ErrInvalidOrder)
	}

	entries := c.deepenForOrder(msg.LocalTime, msg.Side, msg.Price, msg.Volume, visibleVolume)
	entries = append(entries, c.userEntry(msg))

	for _, e := range entries {
		c.apply(e)
	}
	return entries, nil
}

// OnOrderReplace converts a move: a cancellation of the old order followed
// by a registration of the new one, with the same depth check as a fresh
// registration.
func (c *Converter) OnOrderReplace(msg *marketdata.OrderReplace, visibleVolume decimal.Decimal) ([]*orderlog.Entry, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if msg.SecurityID != c.securityID {
		return nil, fmt.Errorf("order for %s: %w", msg.SecurityID, ErrSecurityMismatch)
	}
	if !msg.Volume.IsPositive() {
		return nil, fmt.Errorf("volume %s: %w", msg.Volume, ErrInvalidOrder)
	}
	if !msg.Side.IsValid() {
		return nil, fmt.Errorf("side %q: %w", msg.Side, ErrInvalidOrder)
	}

	entries := c.deepenForOrder(msg.LocalTime, msg.Side, msg.Price, msg.Volume, visibleVolume)
	entries = append(entries, &orderlog.Entry{
		ID:                    uuid.New(),
		SecurityID:            c.securityID,
		ExecType:              orderlog.ExecOrder,
		IsCancelled:           true,
		OrderID:               msg.OldOrderID,
		OriginalTransactionID: msg.OldTransactionID,
		TransactionID:         msg.TransactionID,
		PortfolioName:         msg.PortfolioName,
		LocalTime:             msg.LocalTime,
		ServerTime:            msg.LocalTime.In(c.boardTZ),
	})
	entries = append(entries, c.userEntry(&msg.OrderRegister))

	for _, e := range entries {
		c.apply(e)
	}
	return entries, nil
}

// OnOrderCancel converts a user cancellation.
func (c *Converter) OnOrderCancel(msg *marketdata.OrderCancel) ([]*orderlog.Entry, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if msg.SecurityID != c.securityID {
		return nil, fmt.Errorf("order for %s: %w", msg.SecurityID, ErrSecurityMismatch)
	}

	return []*orderlog.Entry{{
		ID:                    uuid.New(),
		SecurityID:            c.securityID,
		ExecType:              orderlog.ExecOrder,
		IsCancelled:           true,
		OrderID:               msg.OrderID,
		OriginalTransactionID: msg.OrderTransactionID,
		TransactionID:         msg.TransactionID,
		PortfolioName:         msg.PortfolioName,
		LocalTime:             msg.LocalTime,
		ServerTime:            msg.LocalTime.In(c.boardTZ),
	}}, nil
}

func (c *Converter) userEntry(msg *marketdata.OrderRegister) *orderlog.Entry {
	return &orderlog.Entry{
		ID:            uuid.New(),
		SecurityID:    c.securityID,
		Side:          msg.Side,
		Price:         msg.Price,
		Volume:        msg.Volume,
		ExecType:      orderlog.ExecOrder,
		TimeInForce:   orderlog.TIFPutInQueue,
		TransactionID: msg.TransactionID,
		PortfolioName: msg.PortfolioName,
		UserOrderID:   msg.UserOrderID,
		LocalTime:     msg.LocalTime,
		ServerTime:    msg.LocalTime.In(c.boardTZ),
	}
}

func (c *Converter) deepenForOrder(t time.Time, side depth.Side, price, volume, visibleVolume decimal.Decimal) []*orderlog.Entry {
	if !c.settings.IncreaseDepthVolume {
		return nil
	}
	if !c.needCheckVolume(side, price) {
		return nil
	}
	if visibleVolume.GreaterThanOrEqual(volume) {
		return nil
	}
	return c.increaseDepthVolume(t, side, volume.Sub(visibleVolume))
}

// needCheckVolume reports whether an order at this price would cross the
// opposite side, which is the only case where missing depth matters.
func (c *Converter) needCheckVolume(side depth.Side, price decimal.Decimal) bool {
	best := c.sideStore(side.Invert()).best()
	if best == nil {
		return false
	}
	if side == depth.SideBuy {
		return price.GreaterThanOrEqual(best.quote.Price)
	}
	return price.LessThanOrEqual(best.quote.Price)
}

// increaseDepthVolume extends the opposite side past its worst level with
// doubling volumes, one price step at a time, until the missing volume is
// covered or price would leave the positive range.
func (c *Converter) increaseDepthVolume(t time.Time, orderSide depth.Side, leftVolume decimal.Decimal) []*orderlog.Entry {
	store := c.sideStore(orderSide.Invert())
	worst := store.worst()
	if worst == nil {
		return nil
	}

	side := orderSide.Invert()
	price := worst.quote.Price
	volume := worst.quote.Volume
	two := decimal.NewFromInt(2)

	var entries []*orderlog.Entry
	for leftVolume.IsPositive() {
		volume = volume.Mul(two)
		if side == depth.SideBuy {
			price = price.Sub(c.priceStep)
		} else {
			price = price.Add(c.priceStep)
		}
		if !price.IsPositive() {
			break
		}
		leftVolume = leftVolume.Sub(volume)
		entries = append(entries, c.newEntry(t, side, price, volume, false, orderlog.TIFPutInQueue))
	}
	return entries
}
