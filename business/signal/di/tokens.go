// Package di contains dependency injection tokens for the signal context.
package di

import (
	"github.com/fd1az/arb-engine/business/signal/app"
	"github.com/fd1az/arb-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Generator = di.NewToken[*app.Generator]("signal.Generator")
	Scorer    = di.NewToken[*app.Scorer]("signal.Scorer")
)

// Helper functions for type-safe access
func GetGenerator(c di.ServiceRegistry) *app.Generator {
	return di.GetToken(c, Generator)
}

func GetScorer(c di.ServiceRegistry) *app.Scorer {
	return di.GetToken(c, Scorer)
}
