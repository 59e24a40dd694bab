package app_test

import (
	"context"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	ammDomain "github.com/fd1az/arb-engine/business/amm/domain"
	exchangeDomain "github.com/fd1az/arb-engine/business/exchange/domain"
	"github.com/fd1az/arb-engine/business/execution/app"
	"github.com/fd1az/arb-engine/business/execution/domain"
	pricingDomain "github.com/fd1az/arb-engine/business/pricing/domain"
	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/asset"
	"github.com/fd1az/arb-engine/internal/logger"
)

var (
	weth = asset.MustNewToken(1, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), "WETH", "Wrapped Ether", 18)
	usdc = asset.MustNewToken(1, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), "USDC", "USD Coin", 6)

	wethUsdcPool = mustPair()

	tradingPair = signalDomain.TradingPair{Symbol: "ETHUSDC", Base: weth, Quote: usdc}
)

func mustPair() *ammDomain.Pair {
	p, err := ammDomain.NewPair(
		common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),
		weth, usdc,
		decimal.NewFromInt(100).Shift(18).BigInt(),
		decimal.NewFromInt(200_000).Shift(6).BigInt(),
		30)
	if err != nil {
		panic(err)
	}
	return p
}

func routeBetween(in, out *asset.Asset) *ammDomain.Route {
	r, err := ammDomain.NewRoute([]*ammDomain.Pair{wethUsdcPool}, []*asset.Asset{in, out})
	if err != nil {
		panic(err)
	}
	return r
}

type placedOrder struct {
	symbol string
	side   exchangeDomain.OrderSide
	amount decimal.Decimal
	price  decimal.Decimal
}

// fakeCex answers IOC orders from fixed status/fill settings and records
// every order it sees.
type fakeCex struct {
	mu        sync.Mutex
	iocErr    error
	status    exchangeDomain.OrderStatus // zero value means filled
	fillRatio decimal.Decimal            // zero value means fully filled
	avgPrice  decimal.Decimal
	delay     time.Duration

	enterOnce sync.Once
	entered   chan struct{}

	ioc    []placedOrder
	market []placedOrder
}

func (c *fakeCex) CreateLimitIOCOrder(_ context.Context, symbol string, side exchangeDomain.OrderSide, amount, price decimal.Decimal) (*exchangeDomain.Order, error) {
	if c.entered != nil {
		c.enterOnce.Do(func() { close(c.entered) })
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ioc = append(c.ioc, placedOrder{symbol, side, amount, price})
	if c.iocErr != nil {
		return nil, c.iocErr
	}

	status := c.status
	if status == "" {
		status = exchangeDomain.StatusFilled
	}
	ratio := c.fillRatio
	if ratio.IsZero() {
		ratio = decimal.NewFromInt(1)
	}
	return &exchangeDomain.Order{
		ID:           "order-1",
		Symbol:       symbol,
		Side:         side,
		Status:       status,
		Price:        price,
		Amount:       amount,
		FilledAmount: amount.Mul(ratio),
		AvgFillPrice: c.avgPrice,
	}, nil
}

func (c *fakeCex) CreateMarketOrder(_ context.Context, symbol string, side exchangeDomain.OrderSide, amount decimal.Decimal) (*exchangeDomain.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.market = append(c.market, placedOrder{symbol: symbol, side: side, amount: amount})
	return &exchangeDomain.Order{
		ID:           "unwind-1",
		Symbol:       symbol,
		Side:         side,
		Status:       exchangeDomain.StatusFilled,
		Amount:       amount,
		FilledAmount: amount,
	}, nil
}

func (c *fakeCex) iocCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ioc)
}

func (c *fakeCex) marketCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.market)
}

// fakeGas serves a fixed gas price.
type fakeGas struct {
	gwei uint64
}

func (g fakeGas) GasPriceGwei(context.Context) uint64 { return g.gwei }

// fakeQuoter answers with a fixed human-unit output keyed by the input token
// symbol, reconciled (expected == simulated) so quotes always validate. The
// gas price of each call is recorded.
type fakeQuoter struct {
	mu      sync.Mutex
	outputs map[string]decimal.Decimal
	err     error
	calls   int
	gasSeen []uint64
}

func (q *fakeQuoter) GetQuote(_ context.Context, tokenIn, tokenOut *asset.Asset, amountIn *big.Int, gasPriceGwei uint64) (*pricingDomain.Quote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	q.gasSeen = append(q.gasSeen, gasPriceGwei)
	if q.err != nil {
		return nil, q.err
	}
	out := q.outputs[tokenIn.Symbol()].Shift(int32(tokenOut.Decimals())).BigInt()
	return &pricingDomain.Quote{
		Route:           routeBetween(tokenIn, tokenOut),
		AmountIn:        amountIn,
		ExpectedOutput:  out,
		SimulatedOutput: out,
		Timestamp:       time.Now().UTC(),
	}, nil
}

func (q *fakeQuoter) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

type recordedTrade struct {
	venue, side, base, quote string
	baseAmount, quoteAmount  decimal.Decimal
}

type fakeInventory struct {
	mu     sync.Mutex
	trades []recordedTrade
}

func (i *fakeInventory) RecordTrade(venue, side, base, quote string, baseAmount, quoteAmount, _ decimal.Decimal, _ string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.trades = append(i.trades, recordedTrade{venue, side, base, quote, baseAmount, quoteAmount})
}

type fakePnL struct {
	mu      sync.Mutex
	records []*domain.ArbRecord
}

func (p *fakePnL) Append(r *domain.ArbRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r)
	return nil
}

func defaultConfig() app.Config {
	return app.Config{
		Leg1Timeout:      500 * time.Millisecond,
		Leg2Timeout:      500 * time.Millisecond,
		MinFillRatio:     decimal.RequireFromString("0.8"),
		BreakerThreshold: 3,
		BreakerWindow:    time.Minute,
		BreakerCooldown:  time.Minute,
		ReplayTTL:        time.Minute,
	}
}

func newExecutor(t *testing.T, cex app.CexClient, quoter app.Quoter, inv app.InventoryRecorder, pnl app.PnLSink, cfg app.Config) *app.Executor {
	t.Helper()
	e, err := app.NewExecutor(cex, quoter, fakeGas{gwei: 25}, inv, pnl, cfg, logger.NewStdLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return e
}

// validSignal builds an admitted, scored signal with a 100 bps edge in the
// given direction on a 0.01 base size.
func validSignal(dir signalDomain.Direction) *signalDomain.Signal {
	cex, dex := decimal.NewFromInt(2000), decimal.NewFromInt(2020)
	if dir == signalDomain.DirectionBuyDexSellCex {
		cex, dex = decimal.NewFromInt(2020), decimal.NewFromInt(2000)
	}
	sig := signalDomain.NewSignal(tradingPair, dir, cex, dex,
		decimal.NewFromInt(100), decimal.RequireFromString("0.01"),
		signalDomain.Expected{
			Gross: decimal.RequireFromString("0.2"),
			Fees:  decimal.RequireFromString("0.08"),
			Net:   decimal.RequireFromString("0.12"),
		}, 10*time.Second)
	sig.InventoryOK = true
	sig.WithinLimits = true
	sig.Score = 70
	return sig
}

func TestExecutor_BuyCexSellDex_CompletesAndSettles(t *testing.T) {
	cex := &fakeCex{avgPrice: decimal.NewFromInt(2000)}
	quoter := &fakeQuoter{outputs: map[string]decimal.Decimal{
		"WETH": decimal.RequireFromString("20.20"), // selling 0.01 WETH realizes 2020/WETH
	}}
	inv := &fakeInventory{}
	pnl := &fakePnL{}
	e := newExecutor(t, cex, quoter, inv, pnl, defaultConfig())

	ec, err := e.ExecuteSignal(context.Background(), validSignal(signalDomain.DirectionBuyCexSellDex))
	if err != nil {
		t.Fatalf("ExecuteSignal: %v", err)
	}
	if ec.State != domain.StateDone {
		t.Fatalf("state = %s, want %s", ec.State, domain.StateDone)
	}

	if ec.Leg1.Venue != domain.VenueCex || ec.Leg2.Venue != domain.VenueDex {
		t.Errorf("leg venues = %s, %s, want cex then dex", ec.Leg1.Venue, ec.Leg2.Venue)
	}
	if got := cex.ioc[0].side; got != exchangeDomain.SideBuy {
		t.Errorf("cex side = %s, want buy", got)
	}
	// Limit price crosses the ask by 10 bps.
	if want := decimal.RequireFromString("2002"); !cex.ioc[0].price.Equal(want) {
		t.Errorf("limit price = %s, want %s", cex.ioc[0].price, want)
	}
	if !ec.Leg2.Price.Equal(decimal.NewFromInt(2020)) {
		t.Errorf("dex fill price = %s, want 2020", ec.Leg2.Price)
	}

	// (2020 - 2000) * 0.01 minus 40 bps of the leg1 notional.
	if want := decimal.RequireFromString("0.12"); !ec.ActualNetPnL.Equal(want) {
		t.Errorf("ActualNetPnL = %s, want %s", ec.ActualNetPnL, want)
	}

	if len(inv.trades) != 2 {
		t.Fatalf("inventory trades = %d, want 2", len(inv.trades))
	}
	leg1 := inv.trades[0]
	if leg1.venue != "binance" || leg1.side != "buy" || !leg1.quoteAmount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("leg1 settle = %+v, want binance buy for 20 USDC", leg1)
	}
	leg2 := inv.trades[1]
	if leg2.venue != "wallet" || leg2.side != "sell" || !leg2.quoteAmount.Equal(decimal.RequireFromString("20.2")) {
		t.Errorf("leg2 settle = %+v, want wallet sell for 20.2 USDC", leg2)
	}

	if len(pnl.records) != 1 {
		t.Fatalf("pnl records = %d, want 1", len(pnl.records))
	}
	rec := pnl.records[0]
	if rec.BuyVenue != domain.VenueCex || rec.SellVenue != domain.VenueDex {
		t.Errorf("record venues = %s/%s, want binance/uniswap", rec.BuyVenue, rec.SellVenue)
	}
	if want := decimal.RequireFromString("0.12"); !rec.NetPnL().Equal(want) {
		t.Errorf("record net = %s, want %s", rec.NetPnL(), want)
	}

	// The DEX leg quotes at the gas source's price, not a hardcoded one.
	if len(quoter.gasSeen) != 1 || quoter.gasSeen[0] != 25 {
		t.Errorf("quoter gas prices = %v, want the source's 25 gwei", quoter.gasSeen)
	}
}

func TestExecutor_BuyDexSellCex_CompletesAndSettles(t *testing.T) {
	cex := &fakeCex{avgPrice: decimal.NewFromInt(2020)}
	quoter := &fakeQuoter{outputs: map[string]decimal.Decimal{
		"USDC": decimal.RequireFromString("0.01"), // spending 20 USDC buys 0.01 WETH at 2000
	}}
	inv := &fakeInventory{}
	e := newExecutor(t, cex, quoter, inv, &fakePnL{}, defaultConfig())

	ec, err := e.ExecuteSignal(context.Background(), validSignal(signalDomain.DirectionBuyDexSellCex))
	if err != nil {
		t.Fatalf("ExecuteSignal: %v", err)
	}
	if ec.State != domain.StateDone {
		t.Fatalf("state = %s, want %s", ec.State, domain.StateDone)
	}

	if got := cex.ioc[0].side; got != exchangeDomain.SideSell {
		t.Errorf("cex side = %s, want sell", got)
	}
	if !ec.Leg2.Price.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("dex fill price = %s, want 2000", ec.Leg2.Price)
	}

	// (2020 - 2000) * 0.01 minus 40 bps of 0.01 * 2020.
	if want := decimal.RequireFromString("0.1192"); !ec.ActualNetPnL.Equal(want) {
		t.Errorf("ActualNetPnL = %s, want %s", ec.ActualNetPnL, want)
	}

	if inv.trades[0].side != "sell" || inv.trades[1].side != "buy" {
		t.Errorf("settle sides = %s, %s, want cex sell then wallet buy",
			inv.trades[0].side, inv.trades[1].side)
	}
}

func TestExecutor_RejectsInvalidSignals(t *testing.T) {
	expired := validSignal(signalDomain.DirectionBuyCexSellDex)
	expired.Expiry = time.Now().Add(-time.Second)

	unscored := validSignal(signalDomain.DirectionBuyCexSellDex)
	unscored.Score = 0

	tests := []struct {
		name string
		sig  *signalDomain.Signal
		code apperror.Code
	}{
		{"expired", expired, apperror.CodeSignalExpired},
		{"zero score", unscored, apperror.CodeValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cex := &fakeCex{}
			e := newExecutor(t, cex, &fakeQuoter{}, &fakeInventory{}, nil, defaultConfig())

			ec, err := e.ExecuteSignal(context.Background(), tt.sig)
			if code := apperror.GetCode(err); code != tt.code {
				t.Errorf("code = %s, want %s", code, tt.code)
			}
			if ec.State != domain.StateFailed {
				t.Errorf("state = %s, want %s", ec.State, domain.StateFailed)
			}
			if cex.iocCount() != 0 {
				t.Errorf("no order should be placed for an invalid signal")
			}
		})
	}
}

func TestExecutor_Leg1Failure_NoUnwind(t *testing.T) {
	cex := &fakeCex{iocErr: apperror.New(apperror.CodeExchangeRateLimited)}
	quoter := &fakeQuoter{}
	e := newExecutor(t, cex, quoter, &fakeInventory{}, nil, defaultConfig())

	ec, err := e.ExecuteSignal(context.Background(), validSignal(signalDomain.DirectionBuyCexSellDex))
	if err == nil {
		t.Fatal("expected leg1 failure")
	}
	if ec.State != domain.StateFailed {
		t.Errorf("state = %s, want %s", ec.State, domain.StateFailed)
	}
	if cex.marketCount() != 0 {
		t.Error("nothing was filled, no unwind order should exist")
	}
	if quoter.callCount() != 0 {
		t.Error("leg2 must not start after a failed leg1")
	}
}

func TestExecutor_PartialFill(t *testing.T) {
	t.Run("below threshold fails without unwind", func(t *testing.T) {
		cex := &fakeCex{
			status:    exchangeDomain.StatusPartiallyFilled,
			fillRatio: decimal.RequireFromString("0.5"),
			avgPrice:  decimal.NewFromInt(2000),
		}
		e := newExecutor(t, cex, &fakeQuoter{}, &fakeInventory{}, nil, defaultConfig())

		ec, err := e.ExecuteSignal(context.Background(), validSignal(signalDomain.DirectionBuyCexSellDex))
		if code := apperror.GetCode(err); code != apperror.CodePartialFillBelowThreshold {
			t.Errorf("code = %s, want %s", code, apperror.CodePartialFillBelowThreshold)
		}
		if ec.State != domain.StateFailed {
			t.Errorf("state = %s, want %s", ec.State, domain.StateFailed)
		}
		if cex.marketCount() != 0 {
			t.Error("a rejected leg1 fill must not be unwound")
		}
	})

	t.Run("at threshold completes with the partial size", func(t *testing.T) {
		cex := &fakeCex{
			status:    exchangeDomain.StatusPartiallyFilled,
			fillRatio: decimal.RequireFromString("0.8"),
			avgPrice:  decimal.NewFromInt(2000),
		}
		quoter := &fakeQuoter{outputs: map[string]decimal.Decimal{
			"WETH": decimal.RequireFromString("20.20"),
		}}
		e := newExecutor(t, cex, quoter, &fakeInventory{}, nil, defaultConfig())

		ec, err := e.ExecuteSignal(context.Background(), validSignal(signalDomain.DirectionBuyCexSellDex))
		if err != nil {
			t.Fatalf("ExecuteSignal: %v", err)
		}
		if ec.State != domain.StateDone {
			t.Fatalf("state = %s, want %s", ec.State, domain.StateDone)
		}
		if want := decimal.RequireFromString("0.008"); !ec.Leg1.Size.Equal(want) {
			t.Errorf("leg1 size = %s, want %s", ec.Leg1.Size, want)
		}
	})
}

func TestExecutor_Leg2Failure_UnwindsCexLeg(t *testing.T) {
	cex := &fakeCex{avgPrice: decimal.NewFromInt(2000)}
	quoter := &fakeQuoter{err: apperror.New(apperror.CodeEthereumRPCError)}
	e := newExecutor(t, cex, quoter, &fakeInventory{}, nil, defaultConfig())

	ec, err := e.ExecuteSignal(context.Background(), validSignal(signalDomain.DirectionBuyCexSellDex))
	if err == nil {
		t.Fatal("expected leg2 failure")
	}
	if ec.State != domain.StateFailed {
		t.Errorf("state = %s, want %s", ec.State, domain.StateFailed)
	}

	if cex.marketCount() != 1 {
		t.Fatalf("market orders = %d, want 1 unwind", cex.marketCount())
	}
	unwind := cex.market[0]
	if unwind.side != exchangeDomain.SideSell {
		t.Errorf("unwind side = %s, want sell (reversing a buy)", unwind.side)
	}
	if !unwind.amount.Equal(ec.Leg1.Size) {
		t.Errorf("unwind amount = %s, want leg1 size %s", unwind.amount, ec.Leg1.Size)
	}
}

func TestExecutor_DexFirst_UnwindsThroughQuoter(t *testing.T) {
	cex := &fakeCex{iocErr: apperror.New(apperror.CodeExchangeRateLimited)}
	quoter := &fakeQuoter{outputs: map[string]decimal.Decimal{
		"WETH": decimal.RequireFromString("20.20"),
		"USDC": decimal.RequireFromString("0.0099"),
	}}
	cfg := defaultConfig()
	cfg.DexFirst = true
	e := newExecutor(t, cex, quoter, &fakeInventory{}, nil, cfg)

	ec, err := e.ExecuteSignal(context.Background(), validSignal(signalDomain.DirectionBuyCexSellDex))
	if err == nil {
		t.Fatal("expected leg2 failure")
	}
	if ec.State != domain.StateFailed {
		t.Errorf("state = %s, want %s", ec.State, domain.StateFailed)
	}
	if ec.Leg1.Venue != domain.VenueDex {
		t.Errorf("leg1 venue = %s, want dex when DexFirst is set", ec.Leg1.Venue)
	}

	// The sold base is bought back on the DEX, not on the exchange.
	if cex.marketCount() != 0 {
		t.Error("DEX leg1 must not be unwound with a CEX market order")
	}
	if quoter.callCount() != 2 {
		t.Errorf("quoter calls = %d, want 2 (leg1 plus unwind)", quoter.callCount())
	}
}

func TestExecutor_LegTimeout(t *testing.T) {
	cex := &fakeCex{avgPrice: decimal.NewFromInt(2000), delay: 200 * time.Millisecond}
	cfg := defaultConfig()
	cfg.Leg1Timeout = 30 * time.Millisecond
	e := newExecutor(t, cex, &fakeQuoter{}, &fakeInventory{}, nil, cfg)

	ec, err := e.ExecuteSignal(context.Background(), validSignal(signalDomain.DirectionBuyCexSellDex))
	if code := apperror.GetCode(err); code != apperror.CodeLegTimeout {
		t.Errorf("code = %s, want %s", code, apperror.CodeLegTimeout)
	}
	if ec.State != domain.StateFailed {
		t.Errorf("state = %s, want %s", ec.State, domain.StateFailed)
	}
}

func TestExecutor_DuplicateSignalRejected(t *testing.T) {
	cex := &fakeCex{avgPrice: decimal.NewFromInt(2000)}
	quoter := &fakeQuoter{outputs: map[string]decimal.Decimal{
		"WETH": decimal.RequireFromString("20.20"),
	}}
	e := newExecutor(t, cex, quoter, &fakeInventory{}, nil, defaultConfig())

	sig := validSignal(signalDomain.DirectionBuyCexSellDex)
	if _, err := e.ExecuteSignal(context.Background(), sig); err != nil {
		t.Fatalf("first execution: %v", err)
	}

	ec, err := e.ExecuteSignal(context.Background(), sig)
	if code := apperror.GetCode(err); code != apperror.CodeDuplicateSignal {
		t.Errorf("code = %s, want %s", code, apperror.CodeDuplicateSignal)
	}
	if ec.State != domain.StateFailed {
		t.Errorf("state = %s, want %s", ec.State, domain.StateFailed)
	}
	if cex.iocCount() != 1 {
		t.Errorf("ioc orders = %d, the replay must not reach the exchange", cex.iocCount())
	}
}

func TestExecutor_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cex := &fakeCex{iocErr: apperror.New(apperror.CodeExchangeRateLimited)}
	cfg := defaultConfig()
	cfg.BreakerThreshold = 2
	e := newExecutor(t, cex, &fakeQuoter{}, &fakeInventory{}, nil, cfg)

	for i := 0; i < 2; i++ {
		if _, err := e.ExecuteSignal(context.Background(), validSignal(signalDomain.DirectionBuyCexSellDex)); err == nil {
			t.Fatalf("execution %d: expected failure", i+1)
		}
	}
	if got := e.BreakerState(); got != "open" {
		t.Fatalf("breaker state = %s, want open", got)
	}

	ec, err := e.ExecuteSignal(context.Background(), validSignal(signalDomain.DirectionBuyCexSellDex))
	if code := apperror.GetCode(err); code != apperror.CodeCircuitOpen {
		t.Errorf("code = %s, want %s", code, apperror.CodeCircuitOpen)
	}
	if ec.State != domain.StateFailed {
		t.Errorf("state = %s, want %s", ec.State, domain.StateFailed)
	}
	if cex.iocCount() != 2 {
		t.Errorf("ioc orders = %d, an open breaker must not reach the exchange", cex.iocCount())
	}
}

func TestExecutor_RejectsConcurrentExecution(t *testing.T) {
	cex := &fakeCex{
		avgPrice: decimal.NewFromInt(2000),
		delay:    150 * time.Millisecond,
		entered:  make(chan struct{}),
	}
	quoter := &fakeQuoter{outputs: map[string]decimal.Decimal{
		"WETH": decimal.RequireFromString("20.20"),
	}}
	e := newExecutor(t, cex, quoter, &fakeInventory{}, nil, defaultConfig())

	done := make(chan error, 1)
	go func() {
		_, err := e.ExecuteSignal(context.Background(), validSignal(signalDomain.DirectionBuyCexSellDex))
		done <- err
	}()

	<-cex.entered
	ec, err := e.ExecuteSignal(context.Background(), validSignal(signalDomain.DirectionBuyCexSellDex))
	if code := apperror.GetCode(err); code != apperror.CodeExecutionBusy {
		t.Errorf("code = %s, want %s", code, apperror.CodeExecutionBusy)
	}
	if ec != nil {
		t.Error("busy rejection must not produce an execution context")
	}

	if err := <-done; err != nil {
		t.Errorf("first execution: %v", err)
	}
}
