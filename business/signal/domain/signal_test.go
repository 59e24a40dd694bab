package domain_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/business/signal/domain"
	"github.com/fd1az/arb-engine/internal/asset"
)

var testPair = domain.TradingPair{
	Symbol: "ETHUSDC",
	Base:   asset.MustNewToken(1, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), "WETH", "Wrapped Ether", 18),
	Quote:  asset.MustNewToken(1, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), "USDC", "USD Coin", 6),
}

func newSignal(t *testing.T, ttl time.Duration) *domain.Signal {
	t.Helper()
	return domain.NewSignal(testPair, domain.DirectionBuyCexSellDex,
		decimal.NewFromInt(2000), decimal.NewFromInt(2010),
		decimal.NewFromInt(50), decimal.RequireFromString("0.01"),
		domain.Expected{
			Gross: decimal.RequireFromString("0.10"),
			Fees:  decimal.RequireFromString("0.058"),
			Net:   decimal.RequireFromString("0.042"),
		}, ttl)
}

func TestSignal_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Signal)
		want   bool
	}{
		{
			name:   "fully admitted signal",
			mutate: func(s *domain.Signal) {},
			want:   true,
		},
		{
			name:   "expired",
			mutate: func(s *domain.Signal) { s.Expiry = time.Now().Add(-time.Second) },
			want:   false,
		},
		{
			name:   "inventory not ok",
			mutate: func(s *domain.Signal) { s.InventoryOK = false },
			want:   false,
		},
		{
			name:   "outside risk limits",
			mutate: func(s *domain.Signal) { s.WithinLimits = false },
			want:   false,
		},
		{
			name:   "non-positive expected net",
			mutate: func(s *domain.Signal) { s.Expected.Net = decimal.Zero },
			want:   false,
		},
		{
			name:   "zero score",
			mutate: func(s *domain.Signal) { s.Score = 0 },
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSignal(t, 10*time.Second)
			s.InventoryOK = true
			s.WithinLimits = true
			s.Score = 58.0
			tt.mutate(s)

			if got := s.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewSignal_Identity(t *testing.T) {
	a := newSignal(t, 10*time.Second)
	b := newSignal(t, 10*time.Second)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("signal ids must be unique and non-empty, got %q and %q", a.ID, b.ID)
	}
	if !a.Expiry.After(a.Timestamp) {
		t.Error("expiry must be after the creation timestamp")
	}
	if !a.Expected.Net.Equal(a.Expected.Gross.Sub(a.Expected.Fees)) {
		t.Error("expected net must equal gross minus fees")
	}
}

func TestSignal_BuyVenueIsCex(t *testing.T) {
	s := newSignal(t, time.Second)
	if !s.BuyVenueIsCex() {
		t.Error("BUY_CEX_SELL_DEX should buy on the exchange")
	}
	s.Direction = domain.DirectionBuyDexSellCex
	if s.BuyVenueIsCex() {
		t.Error("BUY_DEX_SELL_CEX should not buy on the exchange")
	}
}
