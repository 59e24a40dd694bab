// Package domain contains execution-context domain types: the two-leg state
// machine, replay protection, and realized PnL records.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
)

// State of a two-leg execution.
type State string

const (
	StateIdle        State = "IDLE"
	StateValidating  State = "VALIDATING"
	StateLeg1Pending State = "LEG1_PENDING"
	StateLeg1Filled  State = "LEG1_FILLED"
	StateLeg2Pending State = "LEG2_PENDING"
	StateDone        State = "DONE"
	StateUnwinding   State = "UNWINDING"
	StateFailed      State = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// LegFill is the realized outcome of one leg.
type LegFill struct {
	Venue   string
	Price   decimal.Decimal
	Size    decimal.Decimal
	OrderID string // CEX order id or DEX simulation reference
}

// ExecutionContext is the evolving record of one signal's execution. Only
// the executor mutates it.
type ExecutionContext struct {
	Signal *signalDomain.Signal
	State  State

	Leg1 LegFill
	Leg2 LegFill

	ActualNetPnL decimal.Decimal
	StartedAt    time.Time
	FinishedAt   time.Time
	Err          string
}

// NewExecutionContext starts the record in IDLE.
func NewExecutionContext(sig *signalDomain.Signal) *ExecutionContext {
	return &ExecutionContext{
		Signal:    sig,
		State:     StateIdle,
		StartedAt: time.Now().UTC(),
	}
}

// Transition moves to the next state.
func (c *ExecutionContext) Transition(next State) {
	c.State = next
	if next.Terminal() {
		c.FinishedAt = time.Now().UTC()
	}
}

// Fail records the error and lands in FAILED.
func (c *ExecutionContext) Fail(err error) {
	if err != nil {
		c.Err = err.Error()
	}
	c.Transition(StateFailed)
}

// Duration returns wall time from start to finish, or since start while the
// execution is still running.
func (c *ExecutionContext) Duration() time.Duration {
	if c.FinishedAt.IsZero() {
		return time.Since(c.StartedAt)
	}
	return c.FinishedAt.Sub(c.StartedAt)
}

// RealizedPnL computes the actual net PnL from both fills. Fees approximate
// two taker sides plus the swap as 40 bps of the leg1 notional.
func (c *ExecutionContext) RealizedPnL() decimal.Decimal {
	size := c.Signal.Size
	fees := size.Mul(c.Leg1.Price).Mul(feeApproxRate)

	var edge decimal.Decimal
	switch c.Signal.Direction {
	case signalDomain.DirectionBuyCexSellDex:
		edge = c.dexPrice().Sub(c.cexPrice())
	case signalDomain.DirectionBuyDexSellCex:
		edge = c.cexPrice().Sub(c.dexPrice())
	}
	return edge.Mul(size).Sub(fees)
}

var feeApproxRate = decimal.RequireFromString("0.004")

func (c *ExecutionContext) cexPrice() decimal.Decimal {
	if c.Leg1.Venue == VenueCex {
		return c.Leg1.Price
	}
	return c.Leg2.Price
}

func (c *ExecutionContext) dexPrice() decimal.Decimal {
	if c.Leg1.Venue == VenueDex {
		return c.Leg1.Price
	}
	return c.Leg2.Price
}

// Venue labels for leg fills.
const (
	VenueCex = "binance"
	VenueDex = "uniswap"
)
