// Package di contains dependency injection tokens for the risk context.
package di

import (
	"github.com/fd1az/arb-engine/business/risk/app"
	"github.com/fd1az/arb-engine/business/risk/domain"
	"github.com/fd1az/arb-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gates     = di.NewToken[*app.Gates]("risk.Gates")
	Inventory = di.NewToken[*domain.Inventory]("risk.Inventory")
)

// Helper functions for type-safe access
func GetGates(c di.ServiceRegistry) *app.Gates {
	return di.GetToken(c, Gates)
}

func GetInventory(c di.ServiceRegistry) *domain.Inventory {
	return di.GetToken(c, Inventory)
}
