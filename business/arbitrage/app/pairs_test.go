package app_test

import (
	"testing"

	"github.com/fd1az/arb-engine/business/arbitrage/app"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/asset"
)

func TestPairsFromSymbols_ResolvesWrappedAliases(t *testing.T) {
	registry := asset.DefaultRegistry()

	tests := []struct {
		symbol    string
		wantBase  string
		wantQuote string
	}{
		{symbol: "ETHUSDC", wantBase: "WETH", wantQuote: "USDC"},
		{symbol: "BTCUSDT", wantBase: "WBTC", wantQuote: "USDT"},
		{symbol: "SHIBUSDC", wantBase: "SHIB", wantQuote: "USDC"},
		{symbol: "ETHDAI", wantBase: "WETH", wantQuote: "DAI"},
	}

	for _, tc := range tests {
		t.Run(tc.symbol, func(t *testing.T) {
			pairs, err := app.PairsFromSymbols(registry, asset.ChainIDEthereum, []string{tc.symbol})
			if err != nil {
				t.Fatalf("PairsFromSymbols: %v", err)
			}
			if len(pairs) != 1 {
				t.Fatalf("pairs = %d, want 1", len(pairs))
			}
			pair := pairs[0]
			if pair.Symbol != tc.symbol {
				t.Errorf("Symbol = %q, want %q", pair.Symbol, tc.symbol)
			}
			if got := pair.Base.Symbol(); got != tc.wantBase {
				t.Errorf("Base = %q, want %q", got, tc.wantBase)
			}
			if got := pair.Quote.Symbol(); got != tc.wantQuote {
				t.Errorf("Quote = %q, want %q", got, tc.wantQuote)
			}
		})
	}
}

func TestPairsFromSymbols_FailsLoudly(t *testing.T) {
	registry := asset.DefaultRegistry()

	tests := []struct {
		name    string
		symbols []string
	}{
		{name: "unrecognized quote", symbols: []string{"ETHEUR"}},
		{name: "unknown base token", symbols: []string{"PEPEUSDC"}},
		{name: "bare quote symbol", symbols: []string{"USDC"}},
		{name: "one bad symbol fails the batch", symbols: []string{"ETHUSDC", "ETHEUR"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := app.PairsFromSymbols(registry, asset.ChainIDEthereum, tc.symbols)
			if err == nil {
				t.Fatal("expected an error")
			}
			if apperror.GetCode(err) != apperror.CodeValidationError {
				t.Errorf("code = %v, want VALIDATION_ERROR", apperror.GetCode(err))
			}
		})
	}
}

func TestPairsFromSymbols_UnknownChainHasNoTokens(t *testing.T) {
	registry := asset.DefaultRegistry()

	_, err := app.PairsFromSymbols(registry, asset.ChainIDPolygon, []string{"ETHUSDC"})
	if err == nil {
		t.Fatal("expected an error for a chain with no registered tokens")
	}
}
