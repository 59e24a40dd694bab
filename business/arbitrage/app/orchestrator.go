package app

import (
	"context"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	executionDomain "github.com/fd1az/arb-engine/business/execution/domain"
	riskApp "github.com/fd1az/arb-engine/business/risk/app"
	riskDomain "github.com/fd1az/arb-engine/business/risk/domain"
	signalApp "github.com/fd1az/arb-engine/business/signal/app"
	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/logger"
)

const meterName = "arbitrage.orchestrator"

// Config holds orchestrator tuning.
type Config struct {
	Pairs          []signalDomain.TradingPair
	TickInterval   time.Duration
	ErrorBackoff   time.Duration
	KillSwitchFile string
}

// Orchestrator drives the tick loop: inventory refresh, signal generation,
// scoring, admission, execution, and result bookkeeping. One tick processes
// every configured pair in order.
type Orchestrator struct {
	cex       CexBalances
	wallet    WalletSource
	generator SignalSource
	scorer    *signalApp.Scorer
	gates     *riskApp.Gates
	inventory *riskDomain.Inventory
	executor  TradeExecutor
	reporter  Reporter
	alerter   Alerter
	config    Config
	logger    logger.LoggerInterface

	cumulativePnL decimal.Decimal
	tickCount     uint64

	ticks      metric.Int64Counter
	tickErrors metric.Int64Counter
}

// NewOrchestrator wires the loop. alerter may be nil to disable alerts.
func NewOrchestrator(
	cex CexBalances,
	wallet WalletSource,
	generator SignalSource,
	scorer *signalApp.Scorer,
	gates *riskApp.Gates,
	inventory *riskDomain.Inventory,
	executor TradeExecutor,
	reporter Reporter,
	alerter Alerter,
	cfg Config,
	log logger.LoggerInterface,
) (*Orchestrator, error) {
	meter := otel.Meter(meterName)
	ticks, err := meter.Int64Counter("orchestrator_ticks_total",
		metric.WithDescription("Completed orchestrator ticks"))
	if err != nil {
		return nil, err
	}
	tickErrors, err := meter.Int64Counter("orchestrator_tick_errors_total",
		metric.WithDescription("Ticks aborted by an error"))
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cex:        cex,
		wallet:     wallet,
		generator:  generator,
		scorer:     scorer,
		gates:      gates,
		inventory:  inventory,
		executor:   executor,
		reporter:   reporter,
		alerter:    alerter,
		config:     cfg,
		logger:     log,
		ticks:      ticks,
		tickErrors: tickErrors,
	}, nil
}

// Run blocks until the context is cancelled, the kill switch file appears,
// or a safety veto fires. Tick errors back off and the loop continues.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info(ctx, "orchestrator starting",
		"pairs", len(o.config.Pairs),
		"tick_interval", o.config.TickInterval.String())

	if err := o.reporter.Start(ctx); err != nil {
		return err
	}
	defer o.reporter.Stop()

	ticker := time.NewTicker(o.config.TickInterval)
	defer ticker.Stop()

	for {
		if o.killSwitchTripped() {
			o.logger.Warn(ctx, "kill switch file present, stopping", "path", o.config.KillSwitchFile)
			o.alert(ctx, AlertUrgent, "Kill switch tripped, engine stopped")
			return nil
		}

		if err := o.tick(ctx); err != nil {
			if apperror.GetCode(err) == apperror.CodeSafetyVeto {
				o.logger.Error(ctx, "safety veto, stopping loop", "error", err)
				o.alert(ctx, AlertUrgent, "Safety veto: "+err.Error())
				return err
			}
			o.logger.Error(ctx, "tick failed, backing off", "error", err)
			o.tickErrors.Add(ctx, 1)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(o.config.ErrorBackoff):
			}
			continue
		}

		select {
		case <-ctx.Done():
			o.logger.Info(ctx, "orchestrator stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

// tick refreshes inventory and processes every pair in order. The first
// error aborts the tick; execution failures do not.
func (o *Orchestrator) tick(ctx context.Context) error {
	if err := o.refreshInventory(ctx); err != nil {
		return err
	}

	for _, pair := range o.config.Pairs {
		if err := o.processPair(ctx, pair); err != nil {
			return err
		}
	}

	o.tickCount++
	o.ticks.Add(ctx, 1)
	o.reporter.UpdateStatus(o.status())
	return nil
}

func (o *Orchestrator) refreshInventory(ctx context.Context) error {
	cexBalances, err := o.cex.FetchBalance(ctx)
	if err != nil {
		return err
	}
	balances := make(map[string]riskDomain.Balance, len(cexBalances))
	for symbol, b := range cexBalances {
		balances[symbol] = riskDomain.Balance{Free: b.Free, Locked: b.Locked}
	}
	o.inventory.UpdateFromCex(signalApp.VenueCex, balances)

	walletBalances, err := o.wallet.FetchBalances(ctx)
	if err != nil {
		return err
	}
	o.inventory.UpdateFromWallet(signalApp.VenueWallet, walletBalances)
	return nil
}

func (o *Orchestrator) processPair(ctx context.Context, pair signalDomain.TradingPair) error {
	sig, err := o.generator.Generate(ctx, pair)
	if err != nil {
		return err
	}
	if sig == nil {
		return nil
	}

	o.scorer.Score(sig)

	if err := o.gates.Admit(ctx, sig); err != nil {
		if apperror.GetCode(err) == apperror.CodeSafetyVeto {
			return err
		}
		o.logger.Info(ctx, "signal vetoed", "signal", sig.ID, "symbol", pair.Symbol, "error", err)
		return nil
	}

	o.scorer.ApplyDecay(sig)
	o.reporter.ReportSignal(sig)

	ec, err := o.executor.ExecuteSignal(ctx, sig)
	if ec == nil {
		// Busy rejection; the signal is simply dropped this tick.
		o.logger.Warn(ctx, "executor busy, signal dropped", "signal", sig.ID, "error", err)
		return nil
	}
	o.settleResult(ctx, pair, ec)
	o.reporter.ReportExecution(ec)
	return nil
}

// settleResult books the terminal state into scorer history and risk
// accounting. Only completed executions carry realized PnL.
func (o *Orchestrator) settleResult(ctx context.Context, pair signalDomain.TradingPair, ec *executionDomain.ExecutionContext) {
	if ec.State == executionDomain.StateDone {
		o.cumulativePnL = o.cumulativePnL.Add(ec.ActualNetPnL)
		o.gates.RecordResult(ec.ActualNetPnL)
		o.scorer.RecordResult(pair.Symbol, ec.ActualNetPnL.IsPositive())
		o.logger.Info(ctx, "SUCCESS: arbitrage completed",
			"signal", ec.Signal.ID,
			"symbol", pair.Symbol,
			"pnl_usd", ec.ActualNetPnL.StringFixed(4),
			"duration", ec.Duration().String())
		o.alert(ctx, AlertInfo, "SUCCESS: PnL=$"+ec.ActualNetPnL.StringFixed(4)+" on "+pair.Symbol)
		return
	}

	o.scorer.RecordResult(pair.Symbol, false)
	o.logger.Warn(ctx, "FAILED: execution did not complete",
		"signal", ec.Signal.ID,
		"symbol", pair.Symbol,
		"state", string(ec.State),
		"error", ec.Err)
}

func (o *Orchestrator) status() Status {
	m := o.gates.Manager()
	return Status{
		BreakerState:   o.executor.BreakerState(),
		CapitalUSD:     m.CapitalUSD(),
		DailyPnL:       m.DailyPnL(),
		CumulativePnL:  o.cumulativePnL,
		TradesLastHour: m.TradesLastHour(),
		Ticks:          o.tickCount,
	}
}

// CumulativePnL returns realized PnL since start.
func (o *Orchestrator) CumulativePnL() decimal.Decimal {
	return o.cumulativePnL
}

func (o *Orchestrator) killSwitchTripped() bool {
	if o.config.KillSwitchFile == "" {
		return false
	}
	_, err := os.Stat(o.config.KillSwitchFile)
	return err == nil
}

func (o *Orchestrator) alert(ctx context.Context, level AlertLevel, msg string) {
	if o.alerter == nil {
		return
	}
	if err := o.alerter.Send(ctx, level, msg); err != nil {
		o.logger.Warn(ctx, "alert delivery failed", "level", string(level), "error", err)
	}
}
