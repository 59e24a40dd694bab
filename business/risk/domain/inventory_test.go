package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/business/risk/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seededInventory() *domain.Inventory {
	inv := domain.NewInventory(decimal.NewFromInt(30))
	inv.UpdateFromCex("binance", map[string]domain.Balance{
		"USDC": {Free: d("1000"), Locked: d("50")},
		"WETH": {Free: d("2")},
	})
	inv.UpdateFromWallet("wallet", map[string]decimal.Decimal{
		"USDC": d("500"),
		"WETH": d("8"),
	})
	return inv
}

func TestInventory_GetAvailable(t *testing.T) {
	inv := seededInventory()

	tests := []struct {
		venue, symbol string
		want          string
	}{
		{"binance", "USDC", "1000"}, // locked funds are not available
		{"binance", "WETH", "2"},
		{"wallet", "WETH", "8"},
		{"wallet", "DAI", "0"},
		{"kraken", "USDC", "0"},
	}
	for _, tt := range tests {
		if got := inv.GetAvailable(tt.venue, tt.symbol); !got.Equal(d(tt.want)) {
			t.Errorf("GetAvailable(%s, %s) = %s, want %s", tt.venue, tt.symbol, got, tt.want)
		}
	}
}

func TestInventory_CanExecute(t *testing.T) {
	inv := seededInventory()

	tests := []struct {
		name       string
		buyVenue   string
		buyAsset   string
		buyAmount  string
		sellVenue  string
		sellAsset  string
		sellAmount string
		wantOK     bool
		wantReason string
	}{
		{
			name:     "both legs funded",
			buyVenue: "binance", buyAsset: "USDC", buyAmount: "100",
			sellVenue: "wallet", sellAsset: "WETH", sellAmount: "0.05",
			wantOK: true,
		},
		{
			name:     "buy side short",
			buyVenue: "binance", buyAsset: "USDC", buyAmount: "1200",
			sellVenue: "wallet", sellAsset: "WETH", sellAmount: "0.05",
			wantReason: domain.ReasonInsufficientBuyBalance,
		},
		{
			name:     "sell side short",
			buyVenue: "binance", buyAsset: "USDC", buyAmount: "100",
			sellVenue: "wallet", sellAsset: "WETH", sellAmount: "9",
			wantReason: domain.ReasonInsufficientSellBalance,
		},
		{
			name:     "locked funds do not count",
			buyVenue: "binance", buyAsset: "USDC", buyAmount: "1025",
			sellVenue: "wallet", sellAsset: "WETH", sellAmount: "0.05",
			wantReason: domain.ReasonInsufficientBuyBalance,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := inv.CanExecute(tt.buyVenue, tt.buyAsset, d(tt.buyAmount), tt.sellVenue, tt.sellAsset, d(tt.sellAmount))
			if v.OK != tt.wantOK {
				t.Errorf("OK = %v, want %v", v.OK, tt.wantOK)
			}
			if v.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", v.Reason, tt.wantReason)
			}
		})
	}
}

func TestInventory_RecordTrade_RoundTripRestores(t *testing.T) {
	inv := seededInventory()
	before := inv.Snapshot()

	// Buy 0.5 WETH for 1000 USDC, then sell it back for the same notional
	// with no fees: every balance must return to its starting value.
	inv.RecordTrade("binance", "buy", "WETH", "USDC", d("0.5"), d("1000"), decimal.Zero, "")
	inv.RecordTrade("binance", "sell", "WETH", "USDC", d("0.5"), d("1000"), decimal.Zero, "")

	after := inv.Snapshot()
	for venue, book := range before {
		for symbol, b := range book {
			got := after[venue][symbol]
			if !got.Free.Equal(b.Free) || !got.Locked.Equal(b.Locked) {
				t.Errorf("%s/%s changed: %+v -> %+v", venue, symbol, b, got)
			}
		}
	}
}

func TestInventory_RecordTrade_AppliesDeltasAndFee(t *testing.T) {
	inv := seededInventory()

	inv.RecordTrade("binance", "buy", "WETH", "USDC", d("0.5"), d("1000"), d("1"), "USDC")

	if got := inv.GetAvailable("binance", "WETH"); !got.Equal(d("2.5")) {
		t.Errorf("WETH = %s, want 2.5", got)
	}
	// 1000 notional plus 1 USDC fee leaves -1 from the 1000 free.
	if got := inv.GetAvailable("binance", "USDC"); !got.Equal(d("-1")) {
		t.Errorf("USDC = %s, want -1", got)
	}
}

func TestInventory_Skew(t *testing.T) {
	inv := seededInventory()

	// WETH: 2 on binance, 8 in the wallet. Shares 20/80, even split 50,
	// deviation 30 which meets the threshold.
	skew := inv.ComputeSkew("WETH")
	if !skew.Venues["binance"].Equal(d("20")) || !skew.Venues["wallet"].Equal(d("80")) {
		t.Errorf("shares = %v, want 20/80", skew.Venues)
	}
	if !skew.MaxDeviationPct.Equal(d("30")) {
		t.Errorf("max deviation = %s, want 30", skew.MaxDeviationPct)
	}
	if !skew.NeedsRebalance {
		t.Error("deviation at the threshold must flag a rebalance")
	}

	// USDC: 1050 total on binance (free+locked) vs 500 in the wallet.
	// Deviation ~17.7 stays under the 30% threshold.
	if inv.NeedsRebalance("USDC") {
		t.Error("USDC split should not need a rebalance")
	}
}

func TestInventory_Skew_ZeroTotal(t *testing.T) {
	inv := seededInventory()
	skew := inv.ComputeSkew("DAI")
	if skew.NeedsRebalance {
		t.Error("an asset held nowhere cannot need a rebalance")
	}
	if !skew.MaxDeviationPct.IsZero() {
		t.Errorf("max deviation = %s, want 0", skew.MaxDeviationPct)
	}
}
