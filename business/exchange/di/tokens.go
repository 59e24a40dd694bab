// Package di contains dependency injection tokens for the exchange context.
package di

import (
	"github.com/fd1az/arb-engine/business/exchange/app"
	"github.com/fd1az/arb-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ExchangeClient = di.NewToken[app.Client]("exchange.Client")
)

// Helper functions for type-safe access
func GetExchangeClient(c di.ServiceRegistry) app.Client {
	return di.GetToken(c, ExchangeClient)
}
