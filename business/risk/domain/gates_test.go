package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-engine/business/risk/domain"
	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/asset"
)

var gatePair = signalDomain.TradingPair{
	Symbol: "ETHUSDC",
	Base:   asset.MustNewToken(1, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), "WETH", "Wrapped Ether", 18),
	Quote:  asset.MustNewToken(1, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), "USDC", "USD Coin", 6),
}

func freshSignal() *signalDomain.Signal {
	return signalDomain.NewSignal(gatePair, signalDomain.DirectionBuyCexSellDex,
		decimal.NewFromInt(2000), decimal.NewFromInt(2010),
		decimal.NewFromInt(50), d("0.01"),
		signalDomain.Expected{Net: d("0.05")}, 10*time.Second)
}

func TestPretradeValidator(t *testing.T) {
	v := domain.NewPretradeValidator()

	tests := []struct {
		name    string
		mutate  func(*signalDomain.Signal)
		wantOK  bool
		wantMsg string
	}{
		{"clean signal", func(s *signalDomain.Signal) {}, true, ""},
		{"zero cex price", func(s *signalDomain.Signal) { s.CexPrice = decimal.Zero }, false, "price"},
		{"negative dex price", func(s *signalDomain.Signal) { s.DexPrice = d("-1") }, false, "price"},
		{"insane spread", func(s *signalDomain.Signal) { s.SpreadBps = decimal.NewFromInt(501) }, false, "bad data"},
		{"spread at bound passes", func(s *signalDomain.Signal) { s.SpreadBps = decimal.NewFromInt(500) }, true, ""},
		{"stale signal", func(s *signalDomain.Signal) { s.Timestamp = time.Now().Add(-6 * time.Second) }, false, "age"},
		{"zero size", func(s *signalDomain.Signal) { s.Size = decimal.Zero }, false, "size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := freshSignal()
			tt.mutate(s)
			err := v.Validate(s)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected a veto")
			}
			if code := apperror.GetCode(err); code != apperror.CodePretradeVeto {
				t.Errorf("code = %s, want %s", code, apperror.CodePretradeVeto)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func testLimits() domain.Limits {
	return domain.Limits{
		MaxTradeUSD:        decimal.NewFromInt(20),
		MaxTradePctCapital: decimal.NewFromInt(25),
		MaxDailyLossUSD:    decimal.NewFromInt(10),
		MaxDrawdownPct:     decimal.NewFromInt(15),
		MaxConsecLosses:    3,
		MaxTradesPerHour:   10,
		StartingCapitalUSD: decimal.NewFromInt(100),
	}
}

func TestManager_Approve_PerTradeCaps(t *testing.T) {
	m := domain.NewManager(testLimits())

	if err := m.Approve(decimal.NewFromInt(20)); err != nil {
		t.Fatalf("trade at the cap should pass, got %v", err)
	}
	if err := m.Approve(decimal.NewFromInt(21)); err == nil {
		t.Fatal("trade above the USD cap should be vetoed")
	}

	// 25% of 100 capital is 25, but the USD cap of 20 binds first; shrink
	// the percentage so it binds instead.
	limits := testLimits()
	limits.MaxTradePctCapital = decimal.NewFromInt(10)
	m = domain.NewManager(limits)
	if err := m.Approve(decimal.NewFromInt(11)); err == nil {
		t.Fatal("trade above 10% of 100 capital should be vetoed")
	}
	if err := m.Approve(decimal.NewFromInt(10)); err != nil {
		t.Errorf("trade at 10%% of capital should pass, got %v", err)
	}
}

func TestManager_Approve_ConsecutiveLosses(t *testing.T) {
	limits := testLimits()
	limits.MaxDailyLossUSD = decimal.NewFromInt(1000)
	limits.MaxDrawdownPct = decimal.NewFromInt(100)
	m := domain.NewManager(limits)

	for i := 0; i < 3; i++ {
		m.RecordResult(d("-0.5"))
	}
	err := m.Approve(decimal.NewFromInt(5))
	if err == nil {
		t.Fatal("three consecutive losses should veto")
	}
	if code := apperror.GetCode(err); code != apperror.CodeRiskVeto {
		t.Errorf("code = %s, want %s", code, apperror.CodeRiskVeto)
	}

	// A single win resets the streak.
	m.RecordResult(d("0.5"))
	if err := m.Approve(decimal.NewFromInt(5)); err != nil {
		t.Errorf("streak should reset after a win, got %v", err)
	}
}

func TestManager_Approve_DailyLossCap(t *testing.T) {
	m := domain.NewManager(testLimits())

	m.RecordResult(decimal.NewFromInt(-10))
	if err := m.Approve(decimal.NewFromInt(5)); err == nil {
		t.Fatal("daily loss at the cap should veto")
	}
}

func TestManager_Approve_Drawdown(t *testing.T) {
	limits := testLimits()
	limits.MaxDailyLossUSD = decimal.NewFromInt(1000)
	limits.MaxConsecLosses = 100
	m := domain.NewManager(limits)

	// Push the peak up, then fall 16% from it.
	m.RecordResult(decimal.NewFromInt(25)) // capital 125, peak 125
	m.RecordResult(decimal.NewFromInt(-20))
	if err := m.Approve(decimal.NewFromInt(5)); err == nil {
		t.Fatal("16% drawdown from peak should veto at a 15% cap")
	}
}

func TestManager_Approve_TradesPerHour(t *testing.T) {
	limits := testLimits()
	limits.MaxTradesPerHour = 2
	m := domain.NewManager(limits)

	for i := 0; i < 2; i++ {
		if err := m.Approve(decimal.NewFromInt(5)); err != nil {
			t.Fatalf("trade %d should pass: %v", i, err)
		}
		m.RegisterTrade()
	}
	if err := m.Approve(decimal.NewFromInt(5)); err == nil {
		t.Fatal("third trade within the hour should be vetoed")
	}
}

func TestManager_ApproveAloneDoesNotConsumeHourlyBudget(t *testing.T) {
	m := domain.NewManager(testLimits())

	for i := 0; i < 20; i++ {
		if err := m.Approve(decimal.NewFromInt(5)); err != nil {
			t.Fatalf("approval %d should pass without registration: %v", i, err)
		}
	}
	if got := m.TradesLastHour(); got != 0 {
		t.Errorf("TradesLastHour() = %d after unregistered approvals, want 0", got)
	}

	m.RegisterTrade()
	if got := m.TradesLastHour(); got != 1 {
		t.Errorf("TradesLastHour() = %d after one registration, want 1", got)
	}
}

func TestSafetyCheck(t *testing.T) {
	s := domain.NewSafetyCheck()

	tests := []struct {
		name     string
		tradeUSD string
		dailyPnL string
		capital  string
		trades   int
		wantOK   bool
	}{
		{"inside the envelope", "20", "-5", "100", 5, true},
		{"trade above hard cap", "26", "0", "100", 0, false},
		{"daily loss past hard floor", "10", "-20.01", "100", 0, false},
		{"capital below floor", "10", "0", "49", 0, false},
		{"trades per hour above hard cap", "10", "0", "100", 31, false},
		{"exactly at every bound", "25", "-20", "50", 30, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Check(d(tt.tradeUSD), d(tt.dailyPnL), d(tt.capital), tt.trades)
			if tt.wantOK && err != nil {
				t.Errorf("Check() = %v, want nil", err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatal("expected a safety veto")
				}
				if code := apperror.GetCode(err); code != apperror.CodeSafetyVeto {
					t.Errorf("code = %s, want %s", code, apperror.CodeSafetyVeto)
				}
			}
		})
	}
}
