// Package ui provides the Bubble Tea TUI for the arbitrage engine.
package ui

import (
	"time"

	"github.com/shopspring/decimal"
)

// Message types for TUI updates

// SignalMsg is sent when an admitted signal enters execution.
type SignalMsg struct {
	Time      time.Time
	Symbol    string
	Direction string
	CexPrice  decimal.Decimal
	DexPrice  decimal.Decimal
	SpreadBps decimal.Decimal
	Size      decimal.Decimal
	NetUSD    decimal.Decimal
	Score     float64
}

// ExecutionMsg is sent when an execution reaches a terminal state.
type ExecutionMsg struct {
	Time      time.Time
	Symbol    string
	Direction string
	State     string
	PnLUSD    decimal.Decimal
	Err       string
	Done      bool
}

// StatusMsg carries the per-tick loop snapshot.
type StatusMsg struct {
	BreakerState   string
	CapitalUSD     decimal.Decimal
	DailyPnL       decimal.Decimal
	CumulativePnL  decimal.Decimal
	TradesLastHour int
	Ticks          uint64
}

// ConnectionStatusMsg is sent when a venue connection changes state.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}
