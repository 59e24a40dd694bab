// Package domain contains normalized exchange types shared by every CEX
// adapter.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the taker direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Opposite returns the reverse side, used when unwinding a filled leg.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus is the normalized terminal status of an order.
type OrderStatus string

const (
	StatusFilled          OrderStatus = "filled"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusExpired         OrderStatus = "expired"
	StatusCanceled        OrderStatus = "canceled"
	StatusRejected        OrderStatus = "rejected"
	StatusNew             OrderStatus = "new"
)

// Order is a normalized exchange order.
type Order struct {
	ID           string
	Symbol       string
	Side         OrderSide
	Status       OrderStatus
	Price        decimal.Decimal
	Amount       decimal.Decimal
	FilledAmount decimal.Decimal
	AvgFillPrice decimal.Decimal
	Fee          decimal.Decimal
	FeeAsset     string
	CreatedAt    time.Time
}

// FillRatio returns filled/amount, zero for a zero amount.
func (o *Order) FillRatio() decimal.Decimal {
	if o.Amount.IsZero() {
		return decimal.Zero
	}
	return o.FilledAmount.Div(o.Amount)
}

// IsFilled reports whether the order filled completely.
func (o *Order) IsFilled() bool { return o.Status == StatusFilled }

// AssetBalance is one asset's balance at a venue.
type AssetBalance struct {
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Total returns free + locked.
func (b AssetBalance) Total() decimal.Decimal { return b.Free.Add(b.Locked) }

// TradingFees holds maker/taker rates as fractions (0.001 = 10 bps).
type TradingFees struct {
	Maker decimal.Decimal
	Taker decimal.Decimal
}
