// Package domain contains pricing-context domain types.
package domain

import (
	"math/big"
	"time"

	ammDomain "github.com/fd1az/arb-engine/business/amm/domain"
)

// driftDenominator encodes the 0.1% reconciliation tolerance: a quote is
// valid iff |expected - simulated| * 1000 < expected.
const driftDenominator = 1000

// Quote packages a routed AMM price with its fork-simulated counterpart.
// ExpectedOutput is the route's gross output, the same quantity the fork
// reports; NetOutput carries the gas-adjusted figure used to rank routes
// and plays no part in reconciliation.
type Quote struct {
	Route           *ammDomain.Route
	AmountIn        *big.Int
	ExpectedOutput  *big.Int // route's gross output
	NetOutput       *big.Int // gross minus gas, ranking only
	SimulatedOutput *big.Int // output observed on the forked chain
	GasUsed         uint64
	Timestamp       time.Time
}

// Valid reports whether the simulated output stayed within 0.1% of the
// route's gross output.
func (q *Quote) Valid() bool {
	if q.ExpectedOutput == nil || q.SimulatedOutput == nil || q.ExpectedOutput.Sign() <= 0 {
		return false
	}
	drift := new(big.Int).Sub(q.ExpectedOutput, q.SimulatedOutput)
	drift.Abs(drift)
	drift.Mul(drift, big.NewInt(driftDenominator))
	return drift.Cmp(q.ExpectedOutput) < 0
}

// Age returns time elapsed since the quote was produced.
func (q *Quote) Age() time.Duration {
	return time.Since(q.Timestamp)
}

// SimulationResult is the fork simulator's verdict for one route execution.
type SimulationResult struct {
	Success   bool
	AmountOut *big.Int
	GasUsed   uint64
	Error     string
}

// ParsedSwap is a pending AMM swap observed in the mempool.
type ParsedSwap struct {
	TxHash   string
	TokenIn  string
	TokenOut string
	AmountIn *big.Int
	Selector string
}
