// Package app contains the orchestrator and the ports it drives.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	exchangeDomain "github.com/fd1az/arb-engine/business/exchange/domain"
	executionDomain "github.com/fd1az/arb-engine/business/execution/domain"
	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
)

// SignalSource produces at most one candidate signal per pair per call.
type SignalSource interface {
	Generate(ctx context.Context, pair signalDomain.TradingPair) (*signalDomain.Signal, error)
}

// TradeExecutor runs an admitted signal to a terminal state.
type TradeExecutor interface {
	ExecuteSignal(ctx context.Context, sig *signalDomain.Signal) (*executionDomain.ExecutionContext, error)
	BreakerState() string
}

// CexBalances is the balance slice of the exchange contract.
type CexBalances interface {
	FetchBalance(ctx context.Context) (map[string]exchangeDomain.AssetBalance, error)
}

// WalletSource reads on-chain balances for the trading wallet.
type WalletSource interface {
	FetchBalances(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Status is the loop snapshot pushed to reporters once per tick.
type Status struct {
	BreakerState   string
	CapitalUSD     decimal.Decimal
	DailyPnL       decimal.Decimal
	CumulativePnL  decimal.Decimal
	TradesLastHour int
	Ticks          uint64
}

// Reporter displays the loop's activity (console or TUI).
type Reporter interface {
	Start(ctx context.Context) error
	ReportSignal(sig *signalDomain.Signal)
	ReportExecution(ec *executionDomain.ExecutionContext)
	UpdateConnectionStatus(name string, connected bool, latency time.Duration)
	UpdateStatus(st Status)
	Stop() error
}

// AlertLevel distinguishes routine notices from operator-action alerts.
type AlertLevel string

const (
	AlertInfo   AlertLevel = "INFO"
	AlertUrgent AlertLevel = "URGENT"
)

// Alerter pushes out-of-band notifications. May be absent; callers treat a
// nil Alerter as disabled.
type Alerter interface {
	Send(ctx context.Context, level AlertLevel, msg string) error
}
