// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/fd1az/arb-engine/business/execution/app"
	"github.com/fd1az/arb-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Executor = di.NewToken[*app.Executor]("execution.Executor")
)

// Private dependency tokens - internal to execution module
var (
	PnLSink = di.NewToken[app.PnLSink]("execution:pnlSink")
)

// Helper functions for type-safe access
func GetExecutor(c di.ServiceRegistry) *app.Executor {
	return di.GetToken(c, Executor)
}

func GetPnLSink(c di.ServiceRegistry) app.PnLSink {
	return di.GetToken(c, PnLSink)
}
