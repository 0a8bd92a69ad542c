package orderflow

import (
	"fmt"

	"main/internal/domain/entity/depth"
	"main/internal/domain/entity/marketdata"
	"main/internal/domain/entity/orderlog"
)

// OnLevel1 synthesizes order flow from a best bid/ask and last trade
// update. Either half is skipped on days where the real thing has already
// been seen, so level-1 data never fights real depths or ticks.
func (c *Converter) OnLevel1(msg *marketdata.Level1Change) ([]*orderlog.Entry, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if msg.SecurityID != c.securityID {
		return nil, fmt.Errorf("level1 for %s: %w", msg.SecurityID, ErrSecurityMismatch)
	}

	var entries []*orderlog.Entry

	if !c.hasDepth(msg.LocalTime) {
		// A best quote is only usable when both halves are present: a
		// price with no volume would synthesize flow out of nothing.
		var bids, asks []depth.Quote
		if msg.BestBidPrice.IsPositive() && msg.BestBidVolume.IsPositive() {
			bids = append(bids, depth.Quote{
				SecurityID: c.securityID,
				Side:       depth.SideBuy,
				Price:      msg.BestBidPrice,
				Volume:     msg.BestBidVolume,
			})
		}
		if msg.BestAskPrice.IsPositive() && msg.BestAskVolume.IsPositive() {
			asks = append(asks, depth.Quote{
				SecurityID: c.securityID,
				Side:       depth.SideSell,
				Price:      msg.BestAskPrice,
				Volume:     msg.BestAskVolume,
			})
		}
		if len(bids) > 0 || len(asks) > 0 {
			entries = append(entries, c.processQuoteChange(msg.LocalTime, bids, asks)...)
		}
	}

	sameTradeDay := !c.lastTradeDate.IsZero() && c.lastTradeDate.Equal(dateOf(msg.LocalTime))
	if !sameTradeDay && msg.LastTradePrice.IsPositive() && msg.LastTradeVolume.IsPositive() {
		entries = append(entries, c.processTrade(&marketdata.Trade{
			SecurityID: c.securityID,
			Price:      msg.LastTradePrice,
			Volume:     msg.LastTradeVolume,
			LocalTime:  msg.LocalTime,
			ServerTime: msg.ServerTime,
		})...)
	}

	return entries, nil
}
