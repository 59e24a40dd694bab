// Package risk implements the risk bounded context: the inventory tracker
// and the layered admission gates.
package risk

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/business/risk/app"
	riskDI "github.com/fd1az/arb-engine/business/risk/di"
	"github.com/fd1az/arb-engine/business/risk/domain"
	"github.com/fd1az/arb-engine/internal/config"
	"github.com/fd1az/arb-engine/internal/di"
	"github.com/fd1az/arb-engine/internal/logger"
	"github.com/fd1az/arb-engine/internal/monolith"
)

// Module implements the risk bounded context.
type Module struct{}

// RegisterServices registers the inventory tracker and admission gates.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, riskDI.Inventory, func(sr di.ServiceRegistry) *domain.Inventory {
		cfg := sr.Get("config").(*config.Config)
		return domain.NewInventory(decimal.NewFromFloat(cfg.Inventory.RebalanceThresholdPct))
	})

	di.RegisterToken(c, riskDI.Gates, func(sr di.ServiceRegistry) *app.Gates {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		manager := domain.NewManager(domain.Limits{
			MaxTradeUSD:        decimal.NewFromFloat(cfg.Risk.MaxTradeUSD),
			MaxTradePctCapital: decimal.NewFromFloat(cfg.Risk.MaxTradePctCapital),
			MaxDailyLossUSD:    decimal.NewFromFloat(cfg.Risk.MaxDailyLossUSD),
			MaxDrawdownPct:     decimal.NewFromFloat(cfg.Risk.MaxDrawdownPct),
			MaxConsecLosses:    cfg.Risk.MaxConsecLosses,
			MaxTradesPerHour:   cfg.Risk.MaxTradesPerHour,
			StartingCapitalUSD: decimal.NewFromFloat(cfg.Risk.StartingCapitalUSD),
		})

		gates, err := app.NewGates(manager, log)
		if err != nil {
			panic("failed to create risk gates: " + err.Error())
		}
		return gates
	})

	return nil
}

// Startup has nothing to connect; gates are pure state.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "risk module started")
	return nil
}
