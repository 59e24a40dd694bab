package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-engine/business/execution/domain"
	exchangeDomain "github.com/fd1az/arb-engine/business/exchange/domain"
	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/circuitbreaker"
	"github.com/fd1az/arb-engine/internal/logger"
)

const tracerName = "execution.executor"

// CEX limit IOC prices cross the spread by 10 bps to fill immediately.
var (
	buySlip  = decimal.RequireFromString("1.001")
	sellSlip = decimal.RequireFromString("0.999")
)

// InventoryVenueWallet is the inventory key for on-chain funds.
const InventoryVenueWallet = "wallet"

// Config holds executor tuning.
type Config struct {
	DexFirst     bool
	Leg1Timeout  time.Duration
	Leg2Timeout  time.Duration
	MinFillRatio decimal.Decimal

	BreakerThreshold uint32
	BreakerWindow    time.Duration
	BreakerCooldown  time.Duration

	ReplayTTL time.Duration
}

// Executor drives the two-leg state machine: sequencing, per-leg timeouts,
// unwind on a failed second leg, replay protection, and a circuit breaker
// over consecutive failures.
type Executor struct {
	cex       CexClient
	quoter    Quoter
	gas       GasSource
	inventory InventoryRecorder
	pnl       PnLSink
	config    Config
	logger    logger.LoggerInterface
	tracer    trace.Tracer

	replay  *domain.ReplayGuard
	breaker *circuitbreaker.CircuitBreaker[*domain.ExecutionContext]
	busy    atomic.Bool

	executions metric.Int64Counter
	unwinds    metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewExecutor wires the executor. pnl may be nil to disable persistence.
func NewExecutor(cex CexClient, quoter Quoter, gas GasSource, inventory InventoryRecorder, pnl PnLSink, cfg Config, log logger.LoggerInterface) (*Executor, error) {
	meter := otel.Meter(tracerName)
	executions, err := meter.Int64Counter("executions_total",
		metric.WithDescription("Executions, by terminal state"))
	if err != nil {
		return nil, err
	}
	unwinds, err := meter.Int64Counter("execution_unwinds_total",
		metric.WithDescription("Leg1 unwinds attempted, by outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("execution_duration_seconds",
		metric.WithDescription("Wall time from validation to terminal state"))
	if err != nil {
		return nil, err
	}

	return &Executor{
		cex:       cex,
		quoter:    quoter,
		gas:       gas,
		inventory: inventory,
		pnl:       pnl,
		config:    cfg,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		replay:    domain.NewReplayGuard(cfg.ReplayTTL),
		breaker: circuitbreaker.New[*domain.ExecutionContext](circuitbreaker.Config{
			Name:                "executor",
			MaxFailures:         cfg.BreakerThreshold,
			Interval:            cfg.BreakerWindow,
			Cooldown:            cfg.BreakerCooldown,
			HalfOpenMaxRequests: 1,
		}),
		executions: executions,
		unwinds:    unwinds,
		duration:   duration,
	}, nil
}

// ExecuteSignal runs one signal to a terminal state. The returned context is
// always non-nil once validation starts; the error describes why a terminal
// FAILED state was reached.
func (e *Executor) ExecuteSignal(ctx context.Context, sig *signalDomain.Signal) (*domain.ExecutionContext, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, apperror.New(apperror.CodeExecutionBusy, apperror.WithContext(sig.ID))
	}
	defer e.busy.Store(false)

	ctx, span := e.tracer.Start(ctx, "execution.execute_signal",
		trace.WithAttributes(
			attribute.String("signal", sig.ID),
			attribute.String("direction", string(sig.Direction)),
		))
	defer span.End()

	ec := domain.NewExecutionContext(sig)
	ec.Transition(domain.StateValidating)
	defer func() {
		e.duration.Record(ctx, ec.Duration().Seconds())
		e.executions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(ec.State))))
	}()

	// Validation failures never count against the breaker.
	if err := e.replay.Register(sig.ID); err != nil {
		ec.Fail(err)
		return ec, err
	}
	if !sig.IsValid() {
		err := e.invalidSignalError(sig)
		ec.Fail(err)
		return ec, err
	}

	result, err := e.breaker.Execute(func() (*domain.ExecutionContext, error) {
		return ec, e.run(ctx, ec)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		err = apperror.New(apperror.CodeCircuitOpen, apperror.WithContext("executor"))
		ec.Fail(err)
		return ec, err
	}
	if result == nil {
		result = ec
	}
	return result, err
}

func (e *Executor) invalidSignalError(sig *signalDomain.Signal) error {
	if sig.IsExpired() {
		return apperror.New(apperror.CodeSignalExpired, apperror.WithContext(sig.ID))
	}
	return apperror.New(apperror.CodeValidationError,
		apperror.WithContext("signal failed validity checks: "+sig.ID))
}

// run sequences both legs. Leg2 never starts before leg1 succeeds; unwind
// runs only after leg2 has terminated.
func (e *Executor) run(ctx context.Context, ec *domain.ExecutionContext) error {
	leg1, leg2 := e.legOrder(ec.Signal)

	ec.Transition(domain.StateLeg1Pending)
	fill, err := e.runLeg(ctx, e.config.Leg1Timeout, "leg1", leg1)
	if err != nil {
		ec.Fail(err)
		return err
	}
	ec.Leg1 = fill
	ec.Transition(domain.StateLeg1Filled)

	ec.Transition(domain.StateLeg2Pending)
	fill, err = e.runLeg(ctx, e.config.Leg2Timeout, "leg2", leg2)
	if err != nil {
		ec.Transition(domain.StateUnwinding)
		e.unwindLeg1(ctx, ec)
		ec.Fail(err)
		return err
	}
	ec.Leg2 = fill

	ec.ActualNetPnL = ec.RealizedPnL()
	ec.Transition(domain.StateDone)
	e.settle(ctx, ec)
	return nil
}

type legFunc func(ctx context.Context) (domain.LegFill, error)

// legOrder maps the ordering flag onto the signal's direction. DEX-first
// suits private-mempool submission; CEX-first fills the firm book first.
func (e *Executor) legOrder(sig *signalDomain.Signal) (legFunc, legFunc) {
	cexSide := exchangeDomain.SideSell
	if sig.BuyVenueIsCex() {
		cexSide = exchangeDomain.SideBuy
	}
	cex := func(ctx context.Context) (domain.LegFill, error) {
		return e.cexLeg(ctx, sig, cexSide)
	}
	dex := func(ctx context.Context) (domain.LegFill, error) {
		return e.dexLeg(ctx, sig, !sig.BuyVenueIsCex())
	}
	if e.config.DexFirst {
		return dex, cex
	}
	return cex, dex
}

// runLeg races the leg against its timeout.
func (e *Executor) runLeg(ctx context.Context, timeout time.Duration, name string, fn legFunc) (domain.LegFill, error) {
	legCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		fill domain.LegFill
		err  error
	}
	done := make(chan result, 1)
	go func() {
		fill, err := fn(legCtx)
		done <- result{fill, err}
	}()

	select {
	case <-legCtx.Done():
		return domain.LegFill{}, apperror.New(apperror.CodeLegTimeout,
			apperror.WithContext(name), apperror.WithCause(legCtx.Err()))
	case r := <-done:
		return r.fill, r.err
	}
}

// cexLeg places a marketable limit IOC and enforces the fill-ratio floor.
func (e *Executor) cexLeg(ctx context.Context, sig *signalDomain.Signal, side exchangeDomain.OrderSide) (domain.LegFill, error) {
	price := sig.CexPrice.Mul(buySlip)
	if side == exchangeDomain.SideSell {
		price = sig.CexPrice.Mul(sellSlip)
	}

	order, err := e.cex.CreateLimitIOCOrder(ctx, sig.Pair.Symbol, side, sig.Size, price)
	if err != nil {
		return domain.LegFill{}, err
	}

	ratio := order.FillRatio()
	switch {
	case order.Status == exchangeDomain.StatusFilled:
	case order.Status == exchangeDomain.StatusPartiallyFilled && ratio.GreaterThanOrEqual(e.config.MinFillRatio):
	default:
		return domain.LegFill{}, apperror.New(apperror.CodePartialFillBelowThreshold,
			apperror.WithContext("fill ratio "+ratio.StringFixed(3)))
	}

	fillPrice := order.AvgFillPrice
	if fillPrice.IsZero() {
		fillPrice = price
	}
	return domain.LegFill{
		Venue:   domain.VenueCex,
		Price:   fillPrice,
		Size:    order.FilledAmount,
		OrderID: order.ID,
	}, nil
}

// dexLeg synthesizes the swap through the pricing engine. buyBase spends
// quote for base; otherwise the leg sells the signal size of base.
func (e *Executor) dexLeg(ctx context.Context, sig *signalDomain.Signal, buyBase bool) (domain.LegFill, error) {
	base, quote := sig.Pair.Base, sig.Pair.Quote

	if buyBase {
		spend := sig.Size.Mul(sig.DexPrice)
		q, err := e.quoter.GetQuote(ctx, quote, base, spend.Shift(int32(quote.Decimals())).BigInt(), e.gas.GasPriceGwei(ctx))
		if err != nil {
			return domain.LegFill{}, err
		}
		if !q.Valid() || q.SimulatedOutput.Sign() <= 0 {
			return domain.LegFill{}, apperror.New(apperror.CodeInvalidQuote,
				apperror.WithContext("dex buy leg quote failed reconciliation"))
		}
		baseOut := decimal.NewFromBigInt(q.SimulatedOutput, -int32(base.Decimals()))
		return domain.LegFill{
			Venue:   domain.VenueDex,
			Price:   spend.Div(baseOut),
			Size:    baseOut,
			OrderID: q.Route.String(),
		}, nil
	}

	q, err := e.quoter.GetQuote(ctx, base, quote, sig.Size.Shift(int32(base.Decimals())).BigInt(), e.gas.GasPriceGwei(ctx))
	if err != nil {
		return domain.LegFill{}, err
	}
	if !q.Valid() || q.SimulatedOutput.Sign() <= 0 {
		return domain.LegFill{}, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("dex sell leg quote failed reconciliation"))
	}
	quoteOut := decimal.NewFromBigInt(q.SimulatedOutput, -int32(quote.Decimals()))
	return domain.LegFill{
		Venue:   domain.VenueDex,
		Price:   quoteOut.Div(sig.Size),
		Size:    sig.Size,
		OrderID: q.Route.String(),
	}, nil
}

// unwindLeg1 closes the open leg1 position. Failures are logged; the
// execution still terminates in FAILED and the position may need manual
// reconciliation.
func (e *Executor) unwindLeg1(ctx context.Context, ec *domain.ExecutionContext) {
	sig := ec.Signal
	var err error

	if ec.Leg1.Venue == domain.VenueCex {
		side := exchangeDomain.SideSell
		if !sig.BuyVenueIsCex() {
			side = exchangeDomain.SideBuy
		}
		_, err = e.cex.CreateMarketOrder(ctx, sig.Pair.Symbol, side, ec.Leg1.Size)
	} else {
		// Reverse the DEX swap: a sold base is bought back and vice versa.
		soldBase := sig.BuyVenueIsCex()
		_, err = e.dexLeg(ctx, sig, soldBase)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		e.logger.Error(ctx, "leg1 unwind failed, manual reconciliation required",
			"signal", sig.ID, "venue", ec.Leg1.Venue, "error", err)
	} else {
		e.logger.Warn(ctx, "leg1 unwound after leg2 failure",
			"signal", sig.ID, "venue", ec.Leg1.Venue, "size", ec.Leg1.Size.String())
	}
	e.unwinds.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// settle books both fills into inventory and persists the PnL record.
func (e *Executor) settle(ctx context.Context, ec *domain.ExecutionContext) {
	sig := ec.Signal
	base, quote := sig.Pair.Base.Symbol(), sig.Pair.Quote.Symbol()

	for _, leg := range []domain.LegFill{ec.Leg1, ec.Leg2} {
		venue := InventoryVenueWallet
		if leg.Venue == domain.VenueCex {
			venue = domain.VenueCex
		}
		side := "sell"
		if (leg.Venue == domain.VenueCex) == sig.BuyVenueIsCex() {
			side = "buy"
		}
		e.inventory.RecordTrade(venue, side, base, quote, leg.Size, leg.Size.Mul(leg.Price), decimal.Zero, "")
	}

	if e.pnl == nil {
		return
	}
	if err := e.pnl.Append(domain.NewArbRecord(ec)); err != nil {
		e.logger.Error(ctx, "failed to persist pnl record", "signal", sig.ID, "error", err)
	}
}

// BreakerState exposes the circuit breaker state for reporting.
func (e *Executor) BreakerState() string {
	return e.breaker.State()
}
