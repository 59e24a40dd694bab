// Package arbitrage implements the orchestration bounded context: the tick
// loop that ties signal generation, risk admission, and execution together.
package arbitrage

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/arb-engine/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/arb-engine/business/arbitrage/di"
	"github.com/fd1az/arb-engine/business/arbitrage/infra"
	"github.com/fd1az/arb-engine/business/arbitrage/infra/telegram"
	"github.com/fd1az/arb-engine/business/arbitrage/infra/wallet"
	exchangeDI "github.com/fd1az/arb-engine/business/exchange/di"
	executionDI "github.com/fd1az/arb-engine/business/execution/di"
	riskDI "github.com/fd1az/arb-engine/business/risk/di"
	signalDI "github.com/fd1az/arb-engine/business/signal/di"
	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
	"github.com/fd1az/arb-engine/internal/asset"
	"github.com/fd1az/arb-engine/internal/config"
	"github.com/fd1az/arb-engine/internal/di"
	"github.com/fd1az/arb-engine/internal/logger"
	"github.com/fd1az/arb-engine/internal/monolith"
)

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers the orchestrator and its reporting deps.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.App.TUIMode {
			return infra.NewTUIReporter()
		}
		return infra.NewConsoleReporter()
	})

	di.RegisterToken(c, arbitrageDI.Alerter, func(sr di.ServiceRegistry) app.Alerter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Alerts.TelegramToken == "" || cfg.Alerts.TelegramChatID == "" {
			return nil
		}
		alerter, err := telegram.NewAlerter(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID)
		if err != nil {
			panic("failed to create telegram alerter: " + err.Error())
		}
		return alerter
	})

	di.RegisterToken(c, arbitrageDI.WalletSource, func(sr di.ServiceRegistry) app.WalletSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		pairs, err := app.PairsFromSymbols(registry, cfg.Ethereum.ChainID, cfg.Exchange.Symbols)
		if err != nil {
			panic("failed to resolve trading pairs: " + err.Error())
		}
		fetcher, err := wallet.NewBalanceFetcher(client, cfg.Ethereum.WalletAddressHex(), pairTokens(pairs), log)
		if err != nil {
			panic("failed to create wallet balance fetcher: " + err.Error())
		}
		return fetcher
	})

	di.RegisterToken(c, arbitrageDI.Orchestrator, func(sr di.ServiceRegistry) *app.Orchestrator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		pairs, err := app.PairsFromSymbols(registry, cfg.Ethereum.ChainID, cfg.Exchange.Symbols)
		if err != nil {
			panic("failed to resolve trading pairs: " + err.Error())
		}

		orchestrator, err := app.NewOrchestrator(
			exchangeDI.GetExchangeClient(sr),
			arbitrageDI.GetWalletSource(sr),
			signalDI.GetGenerator(sr),
			signalDI.GetScorer(sr),
			riskDI.GetGates(sr),
			riskDI.GetInventory(sr),
			executionDI.GetExecutor(sr),
			arbitrageDI.GetReporter(sr),
			arbitrageDI.GetAlerter(sr),
			app.Config{
				Pairs:          pairs,
				TickInterval:   cfg.Engine.TickInterval,
				ErrorBackoff:   cfg.Engine.ErrorBackoff,
				KillSwitchFile: cfg.App.KillSwitchFile,
			},
			log,
		)
		if err != nil {
			panic("failed to create orchestrator: " + err.Error())
		}
		return orchestrator
	})

	return nil
}

// Startup has nothing to connect; main drives the orchestrator loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "arbitrage module started",
		"symbols", mono.Config().Exchange.Symbols,
		"tick_interval", mono.Config().Engine.TickInterval.String())
	return nil
}

// pairTokens returns the distinct on-chain tokens referenced by the pairs.
func pairTokens(pairs []signalDomain.TradingPair) []*asset.Asset {
	seen := make(map[string]bool, len(pairs)*2)
	tokens := make([]*asset.Asset, 0, len(pairs)*2)
	for _, p := range pairs {
		for _, a := range []*asset.Asset{p.Base, p.Quote} {
			if a == nil || seen[a.Symbol()] {
				continue
			}
			seen[a.Symbol()] = true
			tokens = append(tokens, a)
		}
	}
	return tokens
}
