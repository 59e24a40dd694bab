// Package execution implements the execution bounded context: the two-leg
// executor and PnL persistence.
package execution

import (
	"context"

	"github.com/shopspring/decimal"

	exchangeDI "github.com/fd1az/arb-engine/business/exchange/di"
	"github.com/fd1az/arb-engine/business/execution/app"
	executionDI "github.com/fd1az/arb-engine/business/execution/di"
	"github.com/fd1az/arb-engine/business/execution/infra/pnlcsv"
	pricingDI "github.com/fd1az/arb-engine/business/pricing/di"
	riskDI "github.com/fd1az/arb-engine/business/risk/di"
	"github.com/fd1az/arb-engine/internal/config"
	"github.com/fd1az/arb-engine/internal/di"
	"github.com/fd1az/arb-engine/internal/logger"
	"github.com/fd1az/arb-engine/internal/monolith"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers the executor and its PnL sink.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, executionDI.PnLSink, func(sr di.ServiceRegistry) app.PnLSink {
		cfg := sr.Get("config").(*config.Config)
		if cfg.PnL.CSVPath == "" {
			return nil
		}
		w, err := pnlcsv.NewWriter(cfg.PnL.CSVPath)
		if err != nil {
			panic("failed to create pnl writer: " + err.Error())
		}
		return w
	})

	di.RegisterToken(c, executionDI.Executor, func(sr di.ServiceRegistry) *app.Executor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		executor, err := app.NewExecutor(
			exchangeDI.GetExchangeClient(sr),
			pricingDI.GetPricingEngine(sr),
			pricingDI.GetGasOracle(sr),
			riskDI.GetInventory(sr),
			executionDI.GetPnLSink(sr),
			app.Config{
				DexFirst:         cfg.Executor.DexFirst,
				Leg1Timeout:      cfg.Executor.Leg1Timeout,
				Leg2Timeout:      cfg.Executor.Leg2Timeout,
				MinFillRatio:     decimal.NewFromFloat(cfg.Executor.MinFillRatio),
				BreakerThreshold: cfg.Executor.BreakerThreshold,
				BreakerWindow:    cfg.Executor.BreakerWindow,
				BreakerCooldown:  cfg.Executor.BreakerCooldown,
				ReplayTTL:        cfg.Executor.ReplayTTL,
			},
			log,
		)
		if err != nil {
			panic("failed to create executor: " + err.Error())
		}
		return executor
	})

	return nil
}

// Startup has nothing to connect.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "execution module started",
		"dex_first", mono.Config().Executor.DexFirst,
		"pnl_csv", mono.Config().PnL.CSVPath != "")
	return nil
}
