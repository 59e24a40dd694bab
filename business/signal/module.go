// Package signal implements the signal bounded context: opportunity
// detection from joined CEX/DEX prices and composite scoring.
package signal

import (
	"context"

	"github.com/shopspring/decimal"

	exchangeDI "github.com/fd1az/arb-engine/business/exchange/di"
	pricingDI "github.com/fd1az/arb-engine/business/pricing/di"
	riskDI "github.com/fd1az/arb-engine/business/risk/di"
	"github.com/fd1az/arb-engine/business/signal/app"
	signalDI "github.com/fd1az/arb-engine/business/signal/di"
	"github.com/fd1az/arb-engine/internal/config"
	"github.com/fd1az/arb-engine/internal/di"
	"github.com/fd1az/arb-engine/internal/logger"
	"github.com/fd1az/arb-engine/internal/monolith"
)

// Module implements the signal bounded context.
type Module struct{}

// RegisterServices registers the generator and scorer with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, signalDI.Generator, func(sr di.ServiceRegistry) *app.Generator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		gen, err := app.NewGenerator(
			exchangeDI.GetExchangeClient(sr),
			pricingDI.GetPricingEngine(sr),
			riskDI.GetInventory(sr),
			pricingDI.GetGasOracle(sr),
			app.GeneratorConfig{
				TradeSize:    decimal.NewFromFloat(cfg.Engine.TradeSize),
				MinSpreadBps: decimal.NewFromFloat(cfg.Engine.MinSpreadBps),
				MinProfitUSD: decimal.NewFromFloat(cfg.Engine.MinProfitUSD),
				CexTakerBps:  decimal.NewFromFloat(cfg.Exchange.TakerFeeBps),
				DexSwapBps:   decimal.NewFromFloat(cfg.Engine.DexSwapFeeBps),
				GasUSD:       decimal.NewFromFloat(cfg.Engine.GasUSD),
				SignalTTL:    cfg.Engine.SignalTTL,
				Cooldown:     cfg.Engine.Cooldown,
			},
			log,
		)
		if err != nil {
			panic("failed to create signal generator: " + err.Error())
		}
		return gen
	})

	di.RegisterToken(c, signalDI.Scorer, func(sr di.ServiceRegistry) *app.Scorer {
		cfg := sr.Get("config").(*config.Config)

		return app.NewScorer(app.ScorerConfig{
			WeightSpread:       cfg.Engine.WeightSpread,
			WeightLiquidity:    cfg.Engine.WeightLiquidity,
			WeightInventory:    cfg.Engine.WeightInventory,
			WeightHistory:      cfg.Engine.WeightHistory,
			MinSpreadBps:       cfg.Engine.MinSpreadBps,
			ExcellentSpreadBps: cfg.Engine.ExcellentSpreadBps,
		}, riskDI.GetInventory(sr))
	})

	return nil
}

// Startup has no connections to open.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "signal module started")
	return nil
}
