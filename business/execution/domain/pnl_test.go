package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/business/execution/domain"
	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
)

func completedExecution(dir signalDomain.Direction, cexFill, dexFill decimal.Decimal) *domain.ExecutionContext {
	sig := signalDomain.NewSignal(
		signalDomain.TradingPair{Symbol: "ETHUSDC"},
		dir,
		decimal.NewFromInt(2000), decimal.NewFromInt(2020),
		decimal.NewFromInt(100), decimal.RequireFromString("0.01"),
		signalDomain.Expected{}, time.Minute)

	ec := domain.NewExecutionContext(sig)
	ec.Leg1 = domain.LegFill{Venue: domain.VenueCex, Price: cexFill, Size: sig.Size}
	ec.Leg2 = domain.LegFill{Venue: domain.VenueDex, Price: dexFill, Size: sig.Size}
	ec.Transition(domain.StateDone)
	return ec
}

func TestExecutionContext_RealizedPnL(t *testing.T) {
	tests := []struct {
		name             string
		dir              signalDomain.Direction
		cexFill, dexFill string
		want             string
	}{
		{
			// Edge 20 on 0.01, fees 40 bps of 0.01 * 2000.
			name: "buy cex sell dex",
			dir:  signalDomain.DirectionBuyCexSellDex,
			cexFill: "2000", dexFill: "2020",
			want: "0.12",
		},
		{
			name: "buy dex sell cex",
			dir:  signalDomain.DirectionBuyDexSellCex,
			cexFill: "2020", dexFill: "2000",
			want: "0.1192",
		},
		{
			// Fills moved against the signal; the realized number goes negative.
			name: "adverse fills",
			dir:  signalDomain.DirectionBuyCexSellDex,
			cexFill: "2010", dexFill: "2005",
			want: "-0.1304",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := completedExecution(tt.dir,
				decimal.RequireFromString(tt.cexFill),
				decimal.RequireFromString(tt.dexFill))
			if got, want := ec.RealizedPnL(), decimal.RequireFromString(tt.want); !got.Equal(want) {
				t.Errorf("RealizedPnL() = %s, want %s", got, want)
			}
		})
	}
}

func TestNewArbRecord_MapsLegsByDirection(t *testing.T) {
	t.Run("cex buys", func(t *testing.T) {
		ec := completedExecution(signalDomain.DirectionBuyCexSellDex,
			decimal.NewFromInt(2000), decimal.NewFromInt(2020))
		r := domain.NewArbRecord(ec)

		if r.BuyVenue != domain.VenueCex || r.SellVenue != domain.VenueDex {
			t.Errorf("venues = %s/%s, want %s/%s", r.BuyVenue, r.SellVenue, domain.VenueCex, domain.VenueDex)
		}
		if !r.BuyPrice.Equal(decimal.NewFromInt(2000)) || !r.SellPrice.Equal(decimal.NewFromInt(2020)) {
			t.Errorf("prices = %s/%s, want 2000/2020", r.BuyPrice, r.SellPrice)
		}
		if want := decimal.RequireFromString("0.2"); !r.GrossPnL().Equal(want) {
			t.Errorf("GrossPnL() = %s, want %s", r.GrossPnL(), want)
		}
		if want := decimal.RequireFromString("0.08"); !r.TotalFees().Equal(want) {
			t.Errorf("TotalFees() = %s, want %s", r.TotalFees(), want)
		}
		if want := decimal.RequireFromString("0.12"); !r.NetPnL().Equal(want) {
			t.Errorf("NetPnL() = %s, want %s", r.NetPnL(), want)
		}
		// 0.12 over a 20 USDC buy notional is 60 bps.
		if want := decimal.NewFromInt(60); !r.NetPnLBps().Equal(want) {
			t.Errorf("NetPnLBps() = %s, want %s", r.NetPnLBps(), want)
		}
	})

	t.Run("dex buys", func(t *testing.T) {
		ec := completedExecution(signalDomain.DirectionBuyDexSellCex,
			decimal.NewFromInt(2020), decimal.NewFromInt(2000))
		r := domain.NewArbRecord(ec)

		if r.BuyVenue != domain.VenueDex || r.SellVenue != domain.VenueCex {
			t.Errorf("venues = %s/%s, want %s/%s", r.BuyVenue, r.SellVenue, domain.VenueDex, domain.VenueCex)
		}
		if !r.BuyPrice.Equal(decimal.NewFromInt(2000)) || !r.SellPrice.Equal(decimal.NewFromInt(2020)) {
			t.Errorf("prices = %s/%s, want 2000/2020", r.BuyPrice, r.SellPrice)
		}
	})
}

func TestArbRecord_ZeroNotionalBps(t *testing.T) {
	r := &domain.ArbRecord{}
	if !r.NetPnLBps().IsZero() {
		t.Errorf("NetPnLBps() = %s, want 0 on zero notional", r.NetPnLBps())
	}
}
