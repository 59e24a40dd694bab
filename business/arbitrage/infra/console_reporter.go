// Package infra contains reporter adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fd1az/arb-engine/business/arbitrage/app"
	executionDomain "github.com/fd1az/arb-engine/business/execution/domain"
	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a reporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

// Start prints the banner.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "Arbitrage Engine Started")
	fmt.Fprintln(r.out, "========================")
	return nil
}

// ReportSignal prints an admitted signal.
func (r *ConsoleReporter) ReportSignal(sig *signalDomain.Signal) {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	fmt.Fprintf(r.out, "SIGNAL %s\n", sig.ID)
	fmt.Fprintf(r.out, "  Pair:        %s (%s)\n", sig.Pair.Symbol, sig.Pair.String())
	fmt.Fprintf(r.out, "  Direction:   %s\n", sig.Direction)
	fmt.Fprintf(r.out, "  CEX price:   $%s\n", sig.CexPrice.StringFixed(2))
	fmt.Fprintf(r.out, "  DEX price:   $%s\n", sig.DexPrice.StringFixed(2))
	fmt.Fprintf(r.out, "  Spread:      %s bps\n", sig.SpreadBps.StringFixed(1))
	fmt.Fprintf(r.out, "  Size:        %s\n", sig.Size.String())
	fmt.Fprintf(r.out, "  Expected:    gross $%s, fees $%s, net $%s\n",
		sig.Expected.Gross.StringFixed(4), sig.Expected.Fees.StringFixed(4), sig.Expected.Net.StringFixed(4))
	fmt.Fprintf(r.out, "  Score:       %.1f\n", sig.Score)
}

// ReportExecution prints the terminal state of an execution.
func (r *ConsoleReporter) ReportExecution(ec *executionDomain.ExecutionContext) {
	if ec.State == executionDomain.StateDone {
		fmt.Fprintf(r.out, "  RESULT:      SUCCESS  PnL=$%s  (%s)\n",
			ec.ActualNetPnL.StringFixed(4), ec.Duration().Round(time.Millisecond))
		return
	}
	fmt.Fprintf(r.out, "  RESULT:      FAILED  state=%s  error=%s\n", ec.State, ec.Err)
}

// UpdateConnectionStatus prints connection changes.
func (r *ConsoleReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	status := "disconnected"
	if connected {
		status = fmt.Sprintf("connected (%s)", latency.Round(time.Millisecond))
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), name, status)
}

// UpdateStatus prints the per-tick loop snapshot.
func (r *ConsoleReporter) UpdateStatus(st app.Status) {
	fmt.Fprintf(r.out, "[%s] tick %d  breaker=%s  capital=$%s  daily=$%s  total=$%s  trades/h=%d\n",
		time.Now().Format("15:04:05"),
		st.Ticks,
		st.BreakerState,
		st.CapitalUSD.StringFixed(2),
		st.DailyPnL.StringFixed(2),
		st.CumulativePnL.StringFixed(4),
		st.TradesLastHour)
}

// Stop prints the shutdown line.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Arbitrage Engine Stopped")
	return nil
}
