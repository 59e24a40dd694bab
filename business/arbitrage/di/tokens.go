// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/arb-engine/business/arbitrage/app"
	"github.com/fd1az/arb-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Orchestrator = di.NewToken[*app.Orchestrator]("arbitrage.Orchestrator")
)

// Private dependency tokens - internal to arbitrage module
var (
	Reporter     = di.NewToken[app.Reporter]("arbitrage:reporter")
	Alerter      = di.NewToken[app.Alerter]("arbitrage:alerter")
	WalletSource = di.NewToken[app.WalletSource]("arbitrage:walletSource")
)

// Helper functions for type-safe access
func GetOrchestrator(c di.ServiceRegistry) *app.Orchestrator {
	return di.GetToken(c, Orchestrator)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}

func GetAlerter(c di.ServiceRegistry) app.Alerter {
	return di.GetToken(c, Alerter)
}

func GetWalletSource(c di.ServiceRegistry) app.WalletSource {
	return di.GetToken(c, WalletSource)
}
