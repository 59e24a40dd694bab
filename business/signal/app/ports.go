package app

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	orderbookDomain "github.com/fd1az/arb-engine/business/orderbook/domain"
	pricingDomain "github.com/fd1az/arb-engine/business/pricing/domain"
	"github.com/fd1az/arb-engine/internal/asset"
)

// BookSource provides L2 snapshots for a CEX symbol.
type BookSource interface {
	FetchOrderBook(ctx context.Context, symbol string, depth int) (*orderbookDomain.OrderBook, error)
}

// Quoter produces simulated DEX quotes for a token swap.
type Quoter interface {
	GetQuote(ctx context.Context, tokenIn, tokenOut *asset.Asset, amountIn *big.Int, gasPriceGwei uint64) (*pricingDomain.Quote, error)
}

// GasSource serves the gas price used to net quotes.
type GasSource interface {
	GasPriceGwei(ctx context.Context) uint64
}

// InventoryView exposes free balances per venue.
type InventoryView interface {
	GetAvailable(venue, symbol string) decimal.Decimal
}

// SkewView reports whether an asset's cross-venue split has drifted past the
// rebalance threshold.
type SkewView interface {
	NeedsRebalance(symbol string) bool
}
