// Package app defines the exchange port consumed by signal generation and
// execution.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	exchangeDomain "github.com/fd1az/arb-engine/business/exchange/domain"
	orderbookDomain "github.com/fd1az/arb-engine/business/orderbook/domain"
)

// Client is the normalized CEX contract. Implementations retry transient
// transport failures internally; callers never retry on their own.
type Client interface {
	// Init verifies connectivity and credentials.
	Init(ctx context.Context) error

	// FetchOrderBook returns a validated Level-2 snapshot of depth levels.
	FetchOrderBook(ctx context.Context, symbol string, depth int) (*orderbookDomain.OrderBook, error)

	// FetchBalance returns every asset's balance at the venue.
	FetchBalance(ctx context.Context) (map[string]exchangeDomain.AssetBalance, error)

	// CreateLimitIOCOrder places an immediate-or-cancel limit order.
	CreateLimitIOCOrder(ctx context.Context, symbol string, side exchangeDomain.OrderSide, amount, price decimal.Decimal) (*exchangeDomain.Order, error)

	// CreateMarketOrder places a market order, used for unwinds.
	CreateMarketOrder(ctx context.Context, symbol string, side exchangeDomain.OrderSide, amount decimal.Decimal) (*exchangeDomain.Order, error)

	// CancelOrder cancels an open order.
	CancelOrder(ctx context.Context, id, symbol string) error

	// FetchOrderStatus returns the current state of an order.
	FetchOrderStatus(ctx context.Context, id, symbol string) (*exchangeDomain.Order, error)

	// GetTradingFees returns maker/taker rates for a symbol.
	GetTradingFees(ctx context.Context, symbol string) (*exchangeDomain.TradingFees, error)
}
