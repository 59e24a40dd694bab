package app_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/business/arbitrage/app"
	exchangeDomain "github.com/fd1az/arb-engine/business/exchange/domain"
	executionDomain "github.com/fd1az/arb-engine/business/execution/domain"
	riskApp "github.com/fd1az/arb-engine/business/risk/app"
	riskDomain "github.com/fd1az/arb-engine/business/risk/domain"
	signalApp "github.com/fd1az/arb-engine/business/signal/app"
	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/asset"
	"github.com/fd1az/arb-engine/internal/logger"
)

var testPair = signalDomain.TradingPair{
	Symbol: "ETHUSDC",
	Base:   asset.MustNewToken(1, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), "WETH", "Wrapped Ether", 18),
	Quote:  asset.MustNewToken(1, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), "USDC", "USD Coin", 6),
}

type fakeCexBalances struct {
	balances map[string]exchangeDomain.AssetBalance
	err      error
}

func (f *fakeCexBalances) FetchBalance(ctx context.Context) (map[string]exchangeDomain.AssetBalance, error) {
	return f.balances, f.err
}

type fakeWallet struct {
	balances map[string]decimal.Decimal
	err      error
}

func (f *fakeWallet) FetchBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	return f.balances, f.err
}

type fakeGenerator struct {
	mu      sync.Mutex
	signals []*signalDomain.Signal
	err     error
	calls   int
	onCall  func(call int)
}

func (f *fakeGenerator) Generate(ctx context.Context, pair signalDomain.TradingPair) (*signalDomain.Signal, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	var sig *signalDomain.Signal
	if len(f.signals) > 0 {
		sig = f.signals[0]
		f.signals = f.signals[1:]
	}
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(call)
	}
	if f.err != nil {
		return nil, f.err
	}
	return sig, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExecutor struct {
	mu      sync.Mutex
	pnl     decimal.Decimal
	fail    bool
	busy    bool
	calls   int
	breaker string
	onExec  func()
}

func (f *fakeExecutor) ExecuteSignal(ctx context.Context, sig *signalDomain.Signal) (*executionDomain.ExecutionContext, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.onExec != nil {
		f.onExec()
	}
	if f.busy {
		return nil, apperror.New(apperror.CodeExecutionBusy)
	}
	ec := executionDomain.NewExecutionContext(sig)
	if f.fail {
		ec.Fail(errors.New("leg1 rejected"))
		return ec, nil
	}
	ec.ActualNetPnL = f.pnl
	ec.Transition(executionDomain.StateDone)
	return ec, nil
}

func (f *fakeExecutor) BreakerState() string {
	if f.breaker == "" {
		return "closed"
	}
	return f.breaker
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingReporter struct {
	mu         sync.Mutex
	signals    []*signalDomain.Signal
	executions []*executionDomain.ExecutionContext
	statuses   []app.Status
	started    bool
	stopped    bool
}

func (r *recordingReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	return nil
}

func (r *recordingReporter) ReportSignal(sig *signalDomain.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, sig)
}

func (r *recordingReporter) ReportExecution(ec *executionDomain.ExecutionContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions = append(r.executions, ec)
}

func (r *recordingReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {}

func (r *recordingReporter) UpdateStatus(status app.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recordingReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return nil
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []string
	levels []app.AlertLevel
}

func (a *recordingAlerter) Send(ctx context.Context, level app.AlertLevel, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.levels = append(a.levels, level)
	a.alerts = append(a.alerts, message)
	return nil
}

func newScorer() *signalApp.Scorer {
	return signalApp.NewScorer(signalApp.ScorerConfig{
		WeightSpread:       0.4,
		WeightLiquidity:    0.2,
		WeightInventory:    0.2,
		WeightHistory:      0.2,
		MinSpreadBps:       10,
		ExcellentSpreadBps: 50,
	}, riskDomain.NewInventory(decimal.NewFromInt(30)))
}

func newGates(t *testing.T, maxTradeUSD int64) *riskApp.Gates {
	t.Helper()
	manager := riskDomain.NewManager(riskDomain.Limits{
		MaxTradeUSD:        decimal.NewFromInt(maxTradeUSD),
		MaxTradePctCapital: decimal.NewFromInt(50),
		MaxDailyLossUSD:    decimal.NewFromInt(10),
		MaxDrawdownPct:     decimal.NewFromInt(20),
		MaxConsecLosses:    5,
		MaxTradesPerHour:   20,
		StartingCapitalUSD: decimal.NewFromInt(1000),
	})
	gates, err := riskApp.NewGates(manager, logger.NewStdLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewGates: %v", err)
	}
	return gates
}

func admittableSignal(size string) *signalDomain.Signal {
	sig := signalDomain.NewSignal(testPair, signalDomain.DirectionBuyCexSellDex,
		decimal.NewFromInt(2000), decimal.NewFromInt(2020),
		decimal.NewFromInt(100), decimal.RequireFromString(size),
		signalDomain.Expected{
			Gross: decimal.RequireFromString("0.2"),
			Fees:  decimal.RequireFromString("0.08"),
			Net:   decimal.RequireFromString("0.12"),
		}, 10*time.Second)
	sig.InventoryOK = true
	return sig
}

type orchestratorFixture struct {
	cex      *fakeCexBalances
	wallet   *fakeWallet
	gen      *fakeGenerator
	executor *fakeExecutor
	reporter *recordingReporter
	alerter  *recordingAlerter
	gates    *riskApp.Gates
}

func newOrchestrator(t *testing.T, fx *orchestratorFixture, cfg app.Config) *app.Orchestrator {
	t.Helper()
	if fx.cex == nil {
		fx.cex = &fakeCexBalances{balances: map[string]exchangeDomain.AssetBalance{
			"USDC": {Free: decimal.NewFromInt(500)},
			"WETH": {Free: decimal.RequireFromString("0.5")},
		}}
	}
	if fx.wallet == nil {
		fx.wallet = &fakeWallet{balances: map[string]decimal.Decimal{
			"USDC": decimal.NewFromInt(500),
			"WETH": decimal.RequireFromString("0.5"),
		}}
	}
	if fx.gates == nil {
		fx.gates = newGates(t, 100)
	}
	if cfg.Pairs == nil {
		cfg.Pairs = []signalDomain.TradingPair{testPair}
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 5 * time.Millisecond
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = 5 * time.Millisecond
	}

	inventory := riskDomain.NewInventory(decimal.NewFromInt(30))
	orchestrator, err := app.NewOrchestrator(
		fx.cex, fx.wallet, fx.gen, newScorer(), fx.gates, inventory,
		fx.executor, fx.reporter, fx.alerter, cfg,
		logger.NewStdLogger(io.Discard),
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return orchestrator
}

func TestOrchestrator_TickPipeline_SettlesSuccessfulExecution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := &orchestratorFixture{
		gen:      &fakeGenerator{signals: []*signalDomain.Signal{admittableSignal("0.01")}},
		executor: &fakeExecutor{pnl: decimal.RequireFromString("0.12"), onExec: cancel},
		reporter: &recordingReporter{},
		alerter:  &recordingAlerter{},
	}
	orchestrator := newOrchestrator(t, fx, app.Config{})

	if err := orchestrator.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !fx.reporter.started || !fx.reporter.stopped {
		t.Error("reporter lifecycle not driven")
	}
	if len(fx.reporter.signals) != 1 {
		t.Fatalf("reported signals = %d, want 1", len(fx.reporter.signals))
	}
	if fx.reporter.signals[0].Score <= 0 {
		t.Error("signal was not scored before reporting")
	}
	if !fx.reporter.signals[0].WithinLimits {
		t.Error("signal was not admitted before reporting")
	}
	if len(fx.reporter.executions) != 1 {
		t.Fatalf("reported executions = %d, want 1", len(fx.reporter.executions))
	}
	if got := orchestrator.CumulativePnL(); !got.Equal(decimal.RequireFromString("0.12")) {
		t.Errorf("CumulativePnL = %s, want 0.12", got)
	}
	if got := fx.gates.Manager().DailyPnL(); !got.Equal(decimal.RequireFromString("0.12")) {
		t.Errorf("manager DailyPnL = %s, want 0.12", got)
	}
	if len(fx.reporter.statuses) == 0 {
		t.Fatal("no status updates reported")
	}
	last := fx.reporter.statuses[len(fx.reporter.statuses)-1]
	if last.BreakerState != "closed" {
		t.Errorf("status breaker = %q, want closed", last.BreakerState)
	}
	if last.Ticks == 0 {
		t.Error("status tick counter not advanced")
	}
}

func TestOrchestrator_KillSwitchStopsLoop(t *testing.T) {
	killFile := filepath.Join(t.TempDir(), "halt")
	if err := os.WriteFile(killFile, nil, 0o644); err != nil {
		t.Fatalf("writing kill switch file: %v", err)
	}

	fx := &orchestratorFixture{
		gen:      &fakeGenerator{},
		executor: &fakeExecutor{},
		reporter: &recordingReporter{},
		alerter:  &recordingAlerter{},
	}
	orchestrator := newOrchestrator(t, fx, app.Config{KillSwitchFile: killFile})

	done := make(chan error, 1)
	go func() { done <- orchestrator.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on kill switch")
	}

	if fx.executor.callCount() != 0 {
		t.Errorf("executor called %d times with kill switch set", fx.executor.callCount())
	}
	if len(fx.alerter.levels) != 1 || fx.alerter.levels[0] != app.AlertUrgent {
		t.Fatalf("alerts = %v, want one URGENT", fx.alerter.levels)
	}
}

func TestOrchestrator_SafetyVetoIsFatal(t *testing.T) {
	// $40 notional passes the configured limit but breaches the hard cap.
	fx := &orchestratorFixture{
		gen:      &fakeGenerator{signals: []*signalDomain.Signal{admittableSignal("0.02")}},
		executor: &fakeExecutor{},
		reporter: &recordingReporter{},
		alerter:  &recordingAlerter{},
		gates:    newGates(t, 1000),
	}
	orchestrator := newOrchestrator(t, fx, app.Config{})

	err := orchestrator.Run(context.Background())
	if apperror.GetCode(err) != apperror.CodeSafetyVeto {
		t.Fatalf("Run error code = %v, want SAFETY_VETO", apperror.GetCode(err))
	}
	if fx.executor.callCount() != 0 {
		t.Error("executor must not run after a safety veto")
	}
	if len(fx.alerter.levels) != 1 || fx.alerter.levels[0] != app.AlertUrgent {
		t.Fatalf("alerts = %v, want one URGENT", fx.alerter.levels)
	}
}

func TestOrchestrator_RiskVetoSkipsExecutionAndContinues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// $40 notional against a $25 per-trade limit draws a plain risk veto.
	gen := &fakeGenerator{signals: []*signalDomain.Signal{admittableSignal("0.02")}}
	gen.onCall = func(call int) {
		if call >= 2 {
			cancel()
		}
	}
	fx := &orchestratorFixture{
		gen:      gen,
		executor: &fakeExecutor{},
		reporter: &recordingReporter{},
		alerter:  &recordingAlerter{},
		gates:    newGates(t, 25),
	}
	orchestrator := newOrchestrator(t, fx, app.Config{})

	if err := orchestrator.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fx.executor.callCount() != 0 {
		t.Errorf("executor called %d times for a vetoed signal", fx.executor.callCount())
	}
	if len(fx.reporter.signals) != 0 {
		t.Error("vetoed signal must not be reported as admitted")
	}
	if gen.callCount() < 2 {
		t.Error("loop stopped instead of continuing after a risk veto")
	}
}

func TestOrchestrator_BusyExecutorDropsSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := &orchestratorFixture{
		gen:      &fakeGenerator{signals: []*signalDomain.Signal{admittableSignal("0.01")}},
		executor: &fakeExecutor{busy: true, onExec: cancel},
		reporter: &recordingReporter{},
		alerter:  &recordingAlerter{},
	}
	orchestrator := newOrchestrator(t, fx, app.Config{})

	if err := orchestrator.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fx.reporter.executions) != 0 {
		t.Error("busy rejection must not be reported as an execution")
	}
	if got := orchestrator.CumulativePnL(); !got.IsZero() {
		t.Errorf("CumulativePnL = %s, want 0", got)
	}
}

func TestOrchestrator_FailedExecutionDoesNotBookPnL(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := &orchestratorFixture{
		gen:      &fakeGenerator{signals: []*signalDomain.Signal{admittableSignal("0.01")}},
		executor: &fakeExecutor{fail: true, onExec: cancel},
		reporter: &recordingReporter{},
		alerter:  &recordingAlerter{},
	}
	orchestrator := newOrchestrator(t, fx, app.Config{})

	if err := orchestrator.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fx.reporter.executions) != 1 {
		t.Fatalf("reported executions = %d, want 1", len(fx.reporter.executions))
	}
	if fx.reporter.executions[0].State != executionDomain.StateFailed {
		t.Errorf("reported state = %s, want FAILED", fx.reporter.executions[0].State)
	}
	if !orchestrator.CumulativePnL().IsZero() {
		t.Error("failed execution must not move cumulative PnL")
	}
	if !fx.gates.Manager().DailyPnL().IsZero() {
		t.Error("failed execution must not move risk accounting")
	}
}

func TestOrchestrator_TickErrorBacksOffAndContinues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := &fakeGenerator{err: errors.New("feed unavailable")}
	gen.onCall = func(call int) {
		if call >= 2 {
			cancel()
		}
	}
	fx := &orchestratorFixture{
		gen:      gen,
		executor: &fakeExecutor{},
		reporter: &recordingReporter{},
		alerter:  &recordingAlerter{},
	}
	orchestrator := newOrchestrator(t, fx, app.Config{})

	if err := orchestrator.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gen.callCount() < 2 {
		t.Errorf("generator called %d times, want the loop to retry after backoff", gen.callCount())
	}
	if len(fx.reporter.statuses) != 0 {
		t.Error("aborted ticks must not publish status updates")
	}
}
