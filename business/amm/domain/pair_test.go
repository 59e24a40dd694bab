package domain_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/arb-engine/business/amm/domain"
	"github.com/fd1az/arb-engine/internal/asset"
)

var (
	tokenA = asset.MustNewToken(1, common.HexToAddress("0x00000000000000000000000000000000000000A1"), "AAA", "Token A", 18)
	tokenB = asset.MustNewToken(1, common.HexToAddress("0x00000000000000000000000000000000000000B1"), "BBB", "Token B", 18)
)

func newTestPair(t *testing.T, r0, r1 int64, feeBps uint64) *domain.Pair {
	t.Helper()
	p, err := domain.NewPair(
		common.HexToAddress("0x00000000000000000000000000000000000000F1"),
		tokenA, tokenB,
		big.NewInt(r0), big.NewInt(r1), feeBps,
	)
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	return p
}

func TestPair_AmountOut_ConstantProductParity(t *testing.T) {
	// Canonical case: reserves (1000, 1000), 30 bps fee, 100 in -> 90 out.
	p := newTestPair(t, 1000, 1000, 30)

	out, err := p.AmountOut(big.NewInt(100), tokenA.Address())
	if err != nil {
		t.Fatalf("AmountOut: %v", err)
	}
	if out.Cmp(big.NewInt(90)) != 0 {
		t.Errorf("expected 90, got %s", out)
	}
}

func TestPair_AmountOut_Errors(t *testing.T) {
	tests := []struct {
		name     string
		r0, r1   int64
		amountIn int64
	}{
		{"zero amount", 1000, 1000, 0},
		{"negative amount", 1000, 1000, -5},
		{"empty reserve0", 0, 1000, 100},
		{"empty reserve1", 1000, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPair(t, tt.r0, tt.r1, 30)
			if _, err := p.AmountOut(big.NewInt(tt.amountIn), tokenA.Address()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPair_AmountIn_RoundTrip(t *testing.T) {
	// getAmountIn(getAmountOut(x)) >= x for solvable reserves.
	p := newTestPair(t, 1_000_000, 2_000_000, 30)

	for _, x := range []int64{1, 17, 100, 9999, 123456} {
		out, err := p.AmountOut(big.NewInt(x), tokenA.Address())
		if err != nil {
			t.Fatalf("AmountOut(%d): %v", x, err)
		}
		if out.Sign() == 0 {
			continue
		}
		in, err := p.AmountIn(out, tokenB.Address())
		if err != nil {
			t.Fatalf("AmountIn(%s): %v", out, err)
		}
		if in.Cmp(big.NewInt(x)) < 0 {
			t.Errorf("x=%d: required input %s undershoots original", x, in)
		}
		// Spending the required input must yield at least out.
		out2, err := p.AmountOut(in, tokenA.Address())
		if err != nil {
			t.Fatalf("AmountOut(in): %v", err)
		}
		if out2.Cmp(out) < 0 {
			t.Errorf("x=%d: paying %s yields %s < %s", x, in, out2, out)
		}
	}
}

func TestPair_AmountIn_OutputExceedsReserve(t *testing.T) {
	p := newTestPair(t, 1000, 1000, 30)
	if _, err := p.AmountIn(big.NewInt(1000), tokenB.Address()); err == nil {
		t.Error("expected insufficient liquidity error")
	}
}

func TestPair_SimulateSwap_InvariantNonDecreasing(t *testing.T) {
	p := newTestPair(t, 1000, 1000, 30)
	kBefore := new(big.Int).Mul(p.Reserve0(), p.Reserve1())

	swapped, err := p.SimulateSwap(big.NewInt(100), tokenA.Address())
	if err != nil {
		t.Fatalf("SimulateSwap: %v", err)
	}
	kAfter := new(big.Int).Mul(swapped.Reserve0(), swapped.Reserve1())

	if kAfter.Cmp(kBefore) < 0 {
		t.Errorf("k decreased: %s -> %s", kBefore, kAfter)
	}

	// Original pair is untouched.
	if p.Reserve0().Cmp(big.NewInt(1000)) != 0 || p.Reserve1().Cmp(big.NewInt(1000)) != 0 {
		t.Error("receiver reserves mutated")
	}

	// 100 in at 30 bps -> 90 out: reserves become (1100, 910).
	if swapped.Reserve0().Cmp(big.NewInt(1100)) != 0 {
		t.Errorf("reserve0: expected 1100, got %s", swapped.Reserve0())
	}
	if swapped.Reserve1().Cmp(big.NewInt(910)) != 0 {
		t.Errorf("reserve1: expected 910, got %s", swapped.Reserve1())
	}
}

func TestPair_SpotPrice(t *testing.T) {
	// Same decimals both sides: price is reserveOut/reserveIn in Q18.
	p := newTestPair(t, 1000, 2000, 30)

	spot, err := p.SpotPrice(tokenA.Address())
	if err != nil {
		t.Fatalf("SpotPrice: %v", err)
	}
	expected := new(big.Int).Mul(big.NewInt(2), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	if spot.Cmp(expected) != 0 {
		t.Errorf("expected %s, got %s", expected, spot)
	}
}

func TestPair_SpotPrice_DecimalsAdjusted(t *testing.T) {
	usdc := asset.MustNewToken(1, common.HexToAddress("0x00000000000000000000000000000000000000C1"), "USDC", "USD Coin", 6)

	// 10 tokenA (1e19 raw) vs 20000 USDC (2e10 raw): price 2000 USDC/tokenA.
	r0, _ := new(big.Int).SetString("10000000000000000000", 10)
	r1 := big.NewInt(20000_000000)
	p, err := domain.NewPair(
		common.HexToAddress("0x00000000000000000000000000000000000000F2"),
		tokenA, usdc, r0, r1, 30,
	)
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}

	spot, err := p.SpotPrice(tokenA.Address())
	if err != nil {
		t.Fatalf("SpotPrice: %v", err)
	}
	expected := new(big.Int).Mul(big.NewInt(2000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	if spot.Cmp(expected) != 0 {
		t.Errorf("expected %s, got %s", expected, spot)
	}
}

func TestNewPair_Validation(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000F1")

	if _, err := domain.NewPair(addr, tokenA, tokenA, big.NewInt(1), big.NewInt(1), 30); err == nil {
		t.Error("expected error for identical tokens")
	}
	if _, err := domain.NewPair(addr, tokenA, tokenB, big.NewInt(1), big.NewInt(1), 10000); err == nil {
		t.Error("expected error for fee out of range")
	}
	if _, err := domain.NewPair(addr, tokenA, tokenB, big.NewInt(-1), big.NewInt(1), 30); err == nil {
		t.Error("expected error for negative reserve")
	}
}

func BenchmarkPair_AmountOut(b *testing.B) {
	p, _ := domain.NewPair(
		common.HexToAddress("0x00000000000000000000000000000000000000F1"),
		tokenA, tokenB,
		big.NewInt(1_000_000), big.NewInt(2_000_000), 30,
	)
	in := big.NewInt(12345)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.AmountOut(in, tokenA.Address())
	}
}
