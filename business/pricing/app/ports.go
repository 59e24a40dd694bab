// Package app contains the pricing engine and its port definitions.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	ammDomain "github.com/fd1az/arb-engine/business/amm/domain"
	"github.com/fd1az/arb-engine/business/pricing/domain"
)

// PoolFetcher loads constant-product pool state from the chain.
type PoolFetcher interface {
	FetchPool(ctx context.Context, address common.Address) (*ammDomain.Pair, error)
}

// Simulator executes a route against a forked chain.
type Simulator interface {
	// SimulateRoute runs the route's swaps from sender and reports the
	// realized output and gas.
	SimulateRoute(ctx context.Context, route *ammDomain.Route, amountIn *big.Int, sender common.Address) (*domain.SimulationResult, error)

	// EnsureSenderReady funds and approves sender for the route's input.
	EnsureSenderReady(ctx context.Context, route *ammDomain.Route, amountIn *big.Int, sender common.Address) error
}

// GasSource serves the current gas price for quote netting. Implementations
// never fail; a degraded source returns its best estimate.
type GasSource interface {
	GasPriceGwei(ctx context.Context) uint64
}

// SwapStream delivers pending AMM swaps observed in the mempool.
type SwapStream interface {
	// Subscribe starts the stream; parsed swaps arrive on the returned
	// channel until ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan domain.ParsedSwap, error)
	Close() error
}
