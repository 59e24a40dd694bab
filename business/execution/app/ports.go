package app

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/business/execution/domain"
	exchangeDomain "github.com/fd1az/arb-engine/business/exchange/domain"
	pricingDomain "github.com/fd1az/arb-engine/business/pricing/domain"
	"github.com/fd1az/arb-engine/internal/asset"
)

// CexClient is the slice of the exchange contract the executor needs.
type CexClient interface {
	CreateLimitIOCOrder(ctx context.Context, symbol string, side exchangeDomain.OrderSide, amount, price decimal.Decimal) (*exchangeDomain.Order, error)
	CreateMarketOrder(ctx context.Context, symbol string, side exchangeDomain.OrderSide, amount decimal.Decimal) (*exchangeDomain.Order, error)
}

// Quoter produces simulated DEX quotes; the DEX leg and its unwind are
// synthesized through it.
type Quoter interface {
	GetQuote(ctx context.Context, tokenIn, tokenOut *asset.Asset, amountIn *big.Int, gasPriceGwei uint64) (*pricingDomain.Quote, error)
}

// GasSource serves the gas price used when quoting DEX legs.
type GasSource interface {
	GasPriceGwei(ctx context.Context) uint64
}

// InventoryRecorder applies fill deltas to venue balances.
type InventoryRecorder interface {
	RecordTrade(venue, side, base, quote string, baseAmount, quoteAmount, fee decimal.Decimal, feeAsset string)
}

// PnLSink persists completed round trips.
type PnLSink interface {
	Append(record *domain.ArbRecord) error
}
