// Package domain contains the normalized Level-2 order book and its
// analytics.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/internal/apperror"
)

// Side selects which side of the book an operation works on.
type Side string

const (
	SideBuy  Side = "buy"  // taker buys: walks asks
	SideSell Side = "sell" // taker sells: walks bids
)

// Level is a single price level.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBook is a normalized Level-2 snapshot. Bids are sorted by price
// descending, asks ascending; both sides are non-empty and uncrossed.
type OrderBook struct {
	Symbol    string
	Timestamp time.Time
	Bids      []Level
	Asks      []Level
}

// NewOrderBook validates ordering and crossing and returns the book.
func NewOrderBook(symbol string, ts time.Time, bids, asks []Level) (*OrderBook, error) {
	if len(bids) == 0 || len(asks) == 0 {
		return nil, apperror.New(apperror.CodeInvalidOrderbook,
			apperror.WithContext(fmt.Sprintf("%s: both sides must be non-empty", symbol)))
	}
	for i := 1; i < len(bids); i++ {
		if bids[i].Price.GreaterThan(bids[i-1].Price) {
			return nil, apperror.New(apperror.CodeInvalidOrderbook,
				apperror.WithContext(fmt.Sprintf("%s: bids not descending at level %d", symbol, i)))
		}
	}
	for i := 1; i < len(asks); i++ {
		if asks[i].Price.LessThan(asks[i-1].Price) {
			return nil, apperror.New(apperror.CodeInvalidOrderbook,
				apperror.WithContext(fmt.Sprintf("%s: asks not ascending at level %d", symbol, i)))
		}
	}
	if asks[0].Price.LessThanOrEqual(bids[0].Price) {
		return nil, apperror.New(apperror.CodeInvalidOrderbook,
			apperror.WithContext(fmt.Sprintf("%s: crossed book (%s >= %s)", symbol, bids[0].Price, asks[0].Price)))
	}

	return &OrderBook{Symbol: symbol, Timestamp: ts, Bids: bids, Asks: asks}, nil
}

// BestBid returns the highest bid price.
func (b *OrderBook) BestBid() decimal.Decimal { return b.Bids[0].Price }

// BestAsk returns the lowest ask price.
func (b *OrderBook) BestAsk() decimal.Decimal { return b.Asks[0].Price }

// Mid returns the midpoint of best bid and best ask.
func (b *OrderBook) Mid() decimal.Decimal {
	return b.BestBid().Add(b.BestAsk()).Div(decimal.NewFromInt(2))
}

// SpreadBps returns (ask - bid) / mid in basis points.
func (b *OrderBook) SpreadBps() decimal.Decimal {
	mid := b.Mid()
	if mid.IsZero() {
		return decimal.Zero
	}
	return b.BestAsk().Sub(b.BestBid()).Div(mid).Mul(decimal.NewFromInt(10000))
}

// levels returns the side walked by a taker order of the given side.
func (b *OrderBook) levels(side Side) []Level {
	if side == SideBuy {
		return b.Asks
	}
	return b.Bids
}
