package app_test

import (
	"context"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	ammDomain "github.com/fd1az/arb-engine/business/amm/domain"
	"github.com/fd1az/arb-engine/business/pricing/app"
	"github.com/fd1az/arb-engine/business/pricing/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/asset"
	"github.com/fd1az/arb-engine/internal/logger"
)

var (
	tokenA = asset.MustNewToken(1, common.HexToAddress("0xAAA0000000000000000000000000000000000001"), "AAA", "Token A", 18)
	tokenB = asset.MustNewToken(1, common.HexToAddress("0xBBB0000000000000000000000000000000000002"), "BBB", "Token B", 18)
	tokenC = asset.MustNewToken(1, common.HexToAddress("0xCCC0000000000000000000000000000000000003"), "CCC", "Token C", 18)
	tokenW = asset.MustNewToken(1, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), "WETH", "Wrapped Ether", 18)

	poolAB = common.HexToAddress("0xD100000000000000000000000000000000000001")
	poolAW = common.HexToAddress("0xD100000000000000000000000000000000000002")
)

func newTestLogger() logger.LoggerInterface {
	return logger.NewStdLogger(io.Discard)
}

// fetcher serves pairs from a map and counts fetches per address.
type fetcher struct {
	mu      sync.Mutex
	pairs   map[common.Address]*ammDomain.Pair
	fetches map[common.Address]int
	err     error
}

func newFetcher(pairs ...*ammDomain.Pair) *fetcher {
	m := make(map[common.Address]*ammDomain.Pair, len(pairs))
	for _, p := range pairs {
		m[p.Address()] = p
	}
	return &fetcher{pairs: m, fetches: make(map[common.Address]int)}
}

func (f *fetcher) FetchPool(_ context.Context, addr common.Address) (*ammDomain.Pair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.fetches[addr]++
	pair, ok := f.pairs[addr]
	if !ok {
		return nil, apperror.New(apperror.CodePoolNotFound, apperror.WithContext(addr.Hex()))
	}
	return pair, nil
}

func (f *fetcher) fetchCount(addr common.Address) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[addr]
}

// echoSim replays the route's own math, optionally shifted to force drift.
type echoSim struct {
	shiftNum *big.Int // simulated = output * shiftNum / shiftDen when set
	shiftDen *big.Int
	fail     string // non-empty forces a revert result
}

func (s *echoSim) EnsureSenderReady(context.Context, *ammDomain.Route, *big.Int, common.Address) error {
	return nil
}

func (s *echoSim) SimulateRoute(_ context.Context, route *ammDomain.Route, amountIn *big.Int, _ common.Address) (*domain.SimulationResult, error) {
	if s.fail != "" {
		return &domain.SimulationResult{Success: false, Error: s.fail}, nil
	}
	out, err := route.Output(amountIn)
	if err != nil {
		return &domain.SimulationResult{Success: false, Error: err.Error()}, nil
	}
	if s.shiftNum != nil {
		out = new(big.Int).Div(new(big.Int).Mul(out, s.shiftNum), s.shiftDen)
	}
	return &domain.SimulationResult{Success: true, AmountOut: out, GasUsed: 150_000}, nil
}

func mustPair(t *testing.T, addr common.Address, t0, t1 *asset.Asset, r0, r1 int64) *ammDomain.Pair {
	t.Helper()
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	pair, err := ammDomain.NewPair(addr, t0, t1,
		new(big.Int).Mul(big.NewInt(r0), scale),
		new(big.Int).Mul(big.NewInt(r1), scale), 30)
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	return pair
}

func newTestEngine(t *testing.T, f app.PoolFetcher, s app.Simulator) *app.Engine {
	t.Helper()
	engine, err := app.NewEngine(f, s, app.EngineConfig{
		WETH:    common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		Sender:  common.HexToAddress("0x00000000000000000000000000000000DeaDBeef"),
		MaxHops: 3,
	}, newTestLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func TestEngine_GetQuote(t *testing.T) {
	ctx := context.Background()
	pair := mustPair(t, poolAB, tokenA, tokenB, 1_000_000, 2_000_000)
	engine := newTestEngine(t, newFetcher(pair), &echoSim{})

	if err := engine.LoadPools(ctx, []common.Address{poolAB}); err != nil {
		t.Fatalf("LoadPools: %v", err)
	}

	amountIn := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	quote, err := engine.GetQuote(ctx, tokenA, tokenB, amountIn, 0)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}

	if quote.ExpectedOutput.Cmp(quote.SimulatedOutput) != 0 {
		t.Errorf("expected %s != simulated %s with an echo simulator",
			quote.ExpectedOutput, quote.SimulatedOutput)
	}
	if !quote.Valid() {
		t.Error("quote should be valid when simulation matches routing exactly")
	}
	if quote.Route.Hops() != 1 {
		t.Errorf("Hops() = %d, want 1", quote.Route.Hops())
	}
}

func TestEngine_GetQuote_GasChargeDoesNotSkewReconciliation(t *testing.T) {
	ctx := context.Background()
	// Output token is WETH, so gas converts 1:1 and is well above the 0.1%
	// drift tolerance at 50 gwei on this trade size.
	pair := mustPair(t, poolAW, tokenA, tokenW, 2_000_000, 1_000_000)
	engine := newTestEngine(t, newFetcher(pair), &echoSim{})

	if err := engine.LoadPools(ctx, []common.Address{poolAW}); err != nil {
		t.Fatalf("LoadPools: %v", err)
	}

	quote, err := engine.GetQuote(ctx, tokenA, tokenW, big.NewInt(1e18), 50)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}

	if quote.ExpectedOutput.Cmp(quote.SimulatedOutput) != 0 {
		t.Errorf("gross %s != simulated %s with an echo simulator",
			quote.ExpectedOutput, quote.SimulatedOutput)
	}
	if !quote.Valid() {
		t.Error("an exact simulation must stay valid at a non-zero gas price")
	}
	if quote.NetOutput.Cmp(quote.ExpectedOutput) >= 0 {
		t.Errorf("net %s should fall below gross %s once gas is charged",
			quote.NetOutput, quote.ExpectedOutput)
	}
}

func TestEngine_GetQuote_DriftInvalidatesQuote(t *testing.T) {
	ctx := context.Background()
	pair := mustPair(t, poolAB, tokenA, tokenB, 1_000_000, 2_000_000)
	// 1% short of the routed output, ten times the tolerance.
	sim := &echoSim{shiftNum: big.NewInt(99), shiftDen: big.NewInt(100)}
	engine := newTestEngine(t, newFetcher(pair), sim)

	if err := engine.LoadPools(ctx, []common.Address{poolAB}); err != nil {
		t.Fatalf("LoadPools: %v", err)
	}

	quote, err := engine.GetQuote(ctx, tokenA, tokenB, big.NewInt(1e18), 0)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.Valid() {
		t.Error("quote should be invalid when simulation drifts 1% from routing")
	}
}

func TestEngine_GetQuote_NoPoolsLoaded(t *testing.T) {
	engine := newTestEngine(t, newFetcher(), &echoSim{})

	_, err := engine.GetQuote(context.Background(), tokenA, tokenB, big.NewInt(1e18), 0)
	if err == nil {
		t.Fatal("expected error before LoadPools")
	}
	if code := apperror.GetCode(err); code != apperror.CodeInvalidState {
		t.Errorf("code = %s, want %s", code, apperror.CodeInvalidState)
	}
}

func TestEngine_GetQuote_NoRoute(t *testing.T) {
	ctx := context.Background()
	pair := mustPair(t, poolAB, tokenA, tokenB, 1_000_000, 2_000_000)
	engine := newTestEngine(t, newFetcher(pair), &echoSim{})

	if err := engine.LoadPools(ctx, []common.Address{poolAB}); err != nil {
		t.Fatalf("LoadPools: %v", err)
	}

	_, err := engine.GetQuote(ctx, tokenA, tokenC, big.NewInt(1e18), 0)
	if err == nil {
		t.Fatal("expected error for disconnected token")
	}
	if code := apperror.GetCode(err); code != apperror.CodeNoRouteFound {
		t.Errorf("code = %s, want %s", code, apperror.CodeNoRouteFound)
	}
}

func TestEngine_GetQuote_SimulationRevert(t *testing.T) {
	ctx := context.Background()
	pair := mustPair(t, poolAB, tokenA, tokenB, 1_000_000, 2_000_000)
	engine := newTestEngine(t, newFetcher(pair), &echoSim{fail: "execution reverted"})

	if err := engine.LoadPools(ctx, []common.Address{poolAB}); err != nil {
		t.Fatalf("LoadPools: %v", err)
	}

	_, err := engine.GetQuote(ctx, tokenA, tokenB, big.NewInt(1e18), 0)
	if err == nil {
		t.Fatal("expected error when the simulation reverts")
	}
	if code := apperror.GetCode(err); code != apperror.CodeContractCallFailed {
		t.Errorf("code = %s, want %s", code, apperror.CodeContractCallFailed)
	}
}

func TestEngine_LoadPools_PropagatesFetchError(t *testing.T) {
	engine := newTestEngine(t, newFetcher(), &echoSim{})

	err := engine.LoadPools(context.Background(), []common.Address{poolAB})
	if err == nil {
		t.Fatal("expected error for unknown pool")
	}
	if code := apperror.GetCode(err); code != apperror.CodePoolNotFound {
		t.Errorf("code = %s, want %s", code, apperror.CodePoolNotFound)
	}
}

func TestEngine_OnPendingSwap_RefreshesMatchingPool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pair := mustPair(t, poolAB, tokenA, tokenB, 1_000_000, 2_000_000)
	f := newFetcher(pair)
	engine := newTestEngine(t, f, &echoSim{})

	if err := engine.LoadPools(ctx, []common.Address{poolAB}); err != nil {
		t.Fatalf("LoadPools: %v", err)
	}
	engine.Start(ctx)

	base := f.fetchCount(poolAB)
	engine.OnPendingSwap(domain.ParsedSwap{
		TxHash:   "0x01",
		TokenIn:  tokenA.Address().Hex(),
		TokenOut: tokenB.Address().Hex(),
		AmountIn: big.NewInt(1e18),
		Selector: "swapExactTokensForTokens",
	})

	deadline := time.After(2 * time.Second)
	for f.fetchCount(poolAB) == base {
		select {
		case <-deadline:
			t.Fatal("pool was not refreshed after a matching pending swap")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestEngine_OnPendingSwap_IgnoresUnrelatedSwap(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pair := mustPair(t, poolAB, tokenA, tokenB, 1_000_000, 2_000_000)
	f := newFetcher(pair)
	engine := newTestEngine(t, f, &echoSim{})

	if err := engine.LoadPools(ctx, []common.Address{poolAB}); err != nil {
		t.Fatalf("LoadPools: %v", err)
	}
	engine.Start(ctx)

	base := f.fetchCount(poolAB)
	engine.OnPendingSwap(domain.ParsedSwap{
		TxHash:   "0x02",
		TokenIn:  tokenA.Address().Hex(),
		TokenOut: tokenC.Address().Hex(),
	})

	time.Sleep(100 * time.Millisecond)
	if got := f.fetchCount(poolAB); got != base {
		t.Errorf("unrelated swap triggered %d refreshes", got-base)
	}
}
