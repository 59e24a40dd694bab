package infra

import (
	"context"
	"time"

	"github.com/fd1az/arb-engine/business/arbitrage/app"
	executionDomain "github.com/fd1az/arb-engine/business/execution/domain"
	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
	"github.com/fd1az/arb-engine/pkg/ui"
)

// TUIReporter forwards engine events to the Bubble Tea dashboard. Messages
// are dropped silently when the program is not running.
type TUIReporter struct{}

// NewTUIReporter creates a reporter that sends to the global TUI program.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{}
}

// Start implements app.Reporter. The TUI program lifecycle is owned by main.
func (r *TUIReporter) Start(ctx context.Context) error {
	return nil
}

// ReportSignal sends an admitted signal to the dashboard.
func (r *TUIReporter) ReportSignal(sig *signalDomain.Signal) {
	ui.Send(ui.SignalMsg{
		Time:      sig.Timestamp,
		Symbol:    sig.Pair.Symbol,
		Direction: string(sig.Direction),
		CexPrice:  sig.CexPrice,
		DexPrice:  sig.DexPrice,
		SpreadBps: sig.SpreadBps,
		Size:      sig.Size,
		NetUSD:    sig.Expected.Net,
		Score:     sig.Score,
	})
}

// ReportExecution sends a terminal execution result to the dashboard.
func (r *TUIReporter) ReportExecution(ec *executionDomain.ExecutionContext) {
	msg := ui.ExecutionMsg{
		Time:      ec.FinishedAt,
		Symbol:    ec.Signal.Pair.Symbol,
		Direction: string(ec.Signal.Direction),
		State:     string(ec.State),
		Err:       ec.Err,
		Done:      ec.State == executionDomain.StateDone,
	}
	if msg.Done {
		msg.PnLUSD = ec.ActualNetPnL
	}
	ui.Send(msg)
}

// UpdateConnectionStatus sends a venue connection change to the dashboard.
func (r *TUIReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	ui.Send(ui.ConnectionStatusMsg{
		Name:      name,
		Connected: connected,
		Latency:   latency,
	})
}

// UpdateStatus sends the per-tick loop snapshot to the dashboard.
func (r *TUIReporter) UpdateStatus(status app.Status) {
	ui.Send(ui.StatusMsg{
		BreakerState:   status.BreakerState,
		CapitalUSD:     status.CapitalUSD,
		DailyPnL:       status.DailyPnL,
		CumulativePnL:  status.CumulativePnL,
		TradesLastHour: status.TradesLastHour,
		Ticks:          status.Ticks,
	})
}

// Stop implements app.Reporter.
func (r *TUIReporter) Stop() error {
	return nil
}
