package domain_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/arb-engine/business/amm/domain"
	"github.com/fd1az/arb-engine/internal/asset"
)

var (
	shib = asset.MustNewToken(1, common.HexToAddress("0x0000000000000000000000000000000000000051"), "SHIB", "Shiba Inu", 18)
	weth = asset.MustNewToken(1, common.HexToAddress("0x0000000000000000000000000000000000000052"), "WETH", "Wrapped Ether", 18)
	usdc = asset.MustNewToken(1, common.HexToAddress("0x0000000000000000000000000000000000000053"), "USDC", "USD Coin", 6)
)

// human converts a human amount into raw units at the given decimals.
func human(amount int64, decimals int64) *big.Int {
	v := big.NewInt(amount)
	return v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil))
}

func mustPair(t *testing.T, addr string, t0, t1 *asset.Asset, r0, r1 *big.Int) *domain.Pair {
	t.Helper()
	p, err := domain.NewPair(common.HexToAddress(addr), t0, t1, r0, r1, 30)
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	return p
}

// testPools builds a thin direct SHIB/USDC pool and a deep two-hop
// SHIB -> WETH -> USDC alternative. WETH is priced at 2000 USDC.
func testPools(t *testing.T) []*domain.Pair {
	t.Helper()
	direct := mustPair(t, "0x00000000000000000000000000000000000000D1",
		shib, usdc, human(6_000_000_000, 18), human(240_000_000, 6))
	shibWeth := mustPair(t, "0x00000000000000000000000000000000000000D2",
		shib, weth, human(1_000_000_000_000, 18), human(20_000_000, 18))
	wethUsdc := mustPair(t, "0x00000000000000000000000000000000000000D3",
		weth, usdc, human(100_000_000, 18), human(200_000_000_000, 6))
	return []*domain.Pair{direct, shibWeth, wethUsdc}
}

func TestRouteFinder_FindAllRoutes(t *testing.T) {
	f := domain.NewRouteFinder(testPools(t), weth.Address(), 3)

	routes := f.FindAllRoutes(shib, usdc, 3)
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	for _, r := range routes {
		if r.TokenIn().Address() != shib.Address() || r.TokenOut().Address() != usdc.Address() {
			t.Errorf("route endpoints wrong: %s", r)
		}
	}

	// One hop only when bounded.
	routes = f.FindAllRoutes(shib, usdc, 1)
	if len(routes) != 1 || routes[0].Hops() != 1 {
		t.Fatalf("expected a single 1-hop route, got %d", len(routes))
	}
}

func TestRoute_Output_ChainsHops(t *testing.T) {
	pools := testPools(t)
	f := domain.NewRouteFinder(pools, weth.Address(), 3)

	amountIn := human(100_000_000, 18)
	for _, r := range f.FindAllRoutes(shib, usdc, 3) {
		out, err := r.Output(amountIn)
		if err != nil {
			t.Fatalf("Output: %v", err)
		}

		// Chaining AmountOut by hand must agree.
		amount := amountIn
		for i, pool := range r.Pools() {
			next, err := pool.AmountOut(amount, r.Path()[i].Address())
			if err != nil {
				t.Fatalf("AmountOut hop %d: %v", i, err)
			}
			amount = next
		}
		if out.Cmp(amount) != 0 {
			t.Errorf("route %s: Output=%s, manual chain=%s", r, out, amount)
		}
	}
}

func TestRouteFinder_GasTipsRouting(t *testing.T) {
	f := domain.NewRouteFinder(testPools(t), weth.Address(), 3)
	amountIn := human(100_000_000, 18)

	// Cheap gas: the deeper two-hop route nets more despite extra gas.
	best := f.FindBestRoute(shib, usdc, amountIn, 1, 3)
	if best == nil {
		t.Fatal("expected a route")
	}
	if best.Route.Hops() != 2 {
		t.Errorf("at 1 gwei expected the 2-hop route, got %s (net %s)", best.Route, best.NetOutput)
	}
	if best.GrossOutput.Cmp(best.NetOutput) <= 0 {
		t.Errorf("gross %s should exceed net %s once gas is charged", best.GrossOutput, best.NetOutput)
	}

	// Extreme gas: the extra hop costs more than its edge; direct wins.
	best = f.FindBestRoute(shib, usdc, amountIn, 500_000, 3)
	if best == nil {
		t.Fatal("expected a route")
	}
	if best.Route.Hops() != 1 {
		t.Errorf("at 500000 gwei expected the direct route, got %s (net %s)", best.Route, best.NetOutput)
	}
	if best.NetOutput.Sign() <= 0 {
		t.Errorf("direct route should still net positive, got %s", best.NetOutput)
	}
}

func TestRouteFinder_NoRoute(t *testing.T) {
	f := domain.NewRouteFinder(testPools(t), weth.Address(), 3)

	other := asset.MustNewToken(1, common.HexToAddress("0x0000000000000000000000000000000000000099"), "XXX", "Unlisted", 18)
	if best := f.FindBestRoute(shib, other, big.NewInt(1000), 1, 3); best != nil {
		t.Errorf("expected no route, got %s", best.Route)
	}
}

func TestRouteFinder_GasFreeWhenNoWETHNeighbor(t *testing.T) {
	// A lone SHIB/USDC pool: no WETH pool neighbors USDC, so gas converts
	// to zero cost and net equals gross.
	direct := mustPair(t, "0x00000000000000000000000000000000000000D1",
		shib, usdc, human(6_000_000_000, 18), human(240_000_000, 6))
	f := domain.NewRouteFinder([]*domain.Pair{direct}, weth.Address(), 3)

	amountIn := human(1_000_000, 18)
	routes := f.FindAllRoutes(shib, usdc, 3)
	quotes := f.CompareRoutes(routes, amountIn, 500_000)
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}
	if quotes[0].NetOutput.Cmp(quotes[0].GrossOutput) != 0 {
		t.Errorf("net %s should equal gross %s without a WETH neighbor", quotes[0].NetOutput, quotes[0].GrossOutput)
	}
}
