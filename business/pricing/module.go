// Package pricing implements the DEX pricing bounded context: pool tracking,
// multi-hop routing, fork-simulated quotes, and mempool refresh hints.
package pricing

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/arb-engine/business/pricing/app"
	pricingDI "github.com/fd1az/arb-engine/business/pricing/di"
	"github.com/fd1az/arb-engine/business/pricing/infra/ethereum"
	"github.com/fd1az/arb-engine/business/pricing/infra/mempool"
	"github.com/fd1az/arb-engine/business/pricing/infra/simulator"
	"github.com/fd1az/arb-engine/internal/asset"
	"github.com/fd1az/arb-engine/internal/config"
	"github.com/fd1az/arb-engine/internal/di"
	"github.com/fd1az/arb-engine/internal/logger"
	"github.com/fd1az/arb-engine/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register PoolFetcher - private dependency
	di.RegisterToken(c, pricingDI.PoolFetcher, func(sr di.ServiceRegistry) app.PoolFetcher {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		fetcher, err := ethereum.NewPoolFetcher(ethClient, registry, cfg.Ethereum.ChainID, uint64(cfg.Pools.DefaultFee), log)
		if err != nil {
			panic("failed to create pool fetcher: " + err.Error())
		}
		return fetcher
	})

	// Register GasOracle (public - the signal and execution modules quote
	// through it)
	di.RegisterToken(c, pricingDI.GasOracle, func(sr di.ServiceRegistry) app.GasSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		oracle, err := ethereum.NewGasOracle(ethClient, ethereum.GasOracleConfig{
			CacheTTL:        cfg.Ethereum.GasCacheTTL,
			MaxGasPriceGwei: cfg.Ethereum.MaxGasPriceGwei,
			FallbackGwei:    cfg.Ethereum.FallbackGasGwei,
		}, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	// Register Simulator - private dependency
	di.RegisterToken(c, pricingDI.Simulator, func(sr di.ServiceRegistry) app.Simulator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		simClient, err := simulator.NewClient(context.Background(), simulator.Config{
			RPCURL:        cfg.Simulator.RPCURL,
			Router:        cfg.Simulator.RouterAddressHex(),
			FunderJSONEnv: cfg.Simulator.FunderJSONEnv,
		}, log)
		if err != nil {
			panic("failed to create fork simulator client: " + err.Error())
		}
		return simClient
	})

	// Register SwapStream - private dependency
	di.RegisterToken(c, pricingDI.SwapStream, func(sr di.ServiceRegistry) app.SwapStream {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		stream, err := mempool.NewStream(mempool.Config{
			WSURL:  cfg.Ethereum.WebSocketURL,
			Router: cfg.Simulator.RouterAddressHex(),
		}, log)
		if err != nil {
			panic("failed to create mempool stream: " + err.Error())
		}
		return stream
	})

	// Register Engine (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.PricingEngine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		engine, err := app.NewEngine(
			pricingDI.GetPoolFetcher(sr),
			pricingDI.GetSimulator(sr),
			app.EngineConfig{
				WETH:    cfg.Pools.WETHAddressHex(),
				Sender:  cfg.Simulator.SenderAddressHex(),
				MaxHops: cfg.Pools.MaxHops,
			},
			log,
		)
		if err != nil {
			panic("failed to create pricing engine: " + err.Error())
		}
		return engine
	})

	return nil
}

// Startup loads the tracked pools and starts the mempool refresh pipeline.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	engine := pricingDI.GetPricingEngine(mono.Services())
	if err := engine.LoadPools(ctx, cfg.Pools.PoolAddresses()); err != nil {
		return err
	}
	engine.Start(ctx)

	// Mempool hints are best-effort; a node without pending-tx support
	// just means slower pool refreshes.
	stream := pricingDI.GetSwapStream(mono.Services())
	swaps, err := stream.Subscribe(ctx)
	if err != nil {
		log.Warn(ctx, "mempool stream unavailable, quotes refresh on demand only", "error", err)
	} else {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case swap, ok := <-swaps:
					if !ok {
						return
					}
					engine.OnPendingSwap(swap)
				}
			}
		}()
	}

	log.Info(ctx, "pricing module started", "pools", len(cfg.Pools.Addresses))
	return nil
}
