// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/arb-engine/business/pricing/app"
	"github.com/fd1az/arb-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	PricingEngine = di.NewToken[*app.Engine]("pricing.Engine")
	GasOracle     = di.NewToken[app.GasSource]("pricing.GasOracle")
)

// Private dependency tokens - internal to pricing module
var (
	PoolFetcher = di.NewToken[app.PoolFetcher]("pricing:poolFetcher")
	Simulator   = di.NewToken[app.Simulator]("pricing:simulator")
	SwapStream  = di.NewToken[app.SwapStream]("pricing:swapStream")
)

// Helper functions for type-safe access
func GetPricingEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, PricingEngine)
}

func GetGasOracle(c di.ServiceRegistry) app.GasSource {
	return di.GetToken(c, GasOracle)
}

func GetPoolFetcher(c di.ServiceRegistry) app.PoolFetcher {
	return di.GetToken(c, PoolFetcher)
}

func GetSimulator(c di.ServiceRegistry) app.Simulator {
	return di.GetToken(c, Simulator)
}

func GetSwapStream(c di.ServiceRegistry) app.SwapStream {
	return di.GetToken(c, SwapStream)
}
