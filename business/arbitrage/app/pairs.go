package app

import (
	"strings"

	signalDomain "github.com/fd1az/arb-engine/business/signal/domain"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/asset"
)

// quoteSuffixes are tried longest-match-first against exchange symbols.
var quoteSuffixes = []string{"USDC", "USDT", "BUSD", "DAI"}

// onchainAlias maps exchange base tickers to their wrapped on-chain form.
var onchainAlias = map[string]string{
	"ETH": "WETH",
	"BTC": "WBTC",
}

// PairsFromSymbols resolves exchange notation ("ETHUSDC") into trading pairs
// bound to on-chain token assets. Unresolvable symbols fail loudly; a pair
// the engine cannot price must not be silently skipped.
func PairsFromSymbols(registry *asset.Registry, chainID uint64, symbols []string) ([]signalDomain.TradingPair, error) {
	pairs := make([]signalDomain.TradingPair, 0, len(symbols))
	for _, symbol := range symbols {
		pair, err := pairFromSymbol(registry, chainID, symbol)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func pairFromSymbol(registry *asset.Registry, chainID uint64, symbol string) (signalDomain.TradingPair, error) {
	for _, suffix := range quoteSuffixes {
		if !strings.HasSuffix(symbol, suffix) || len(symbol) <= len(suffix) {
			continue
		}
		baseTicker := strings.TrimSuffix(symbol, suffix)
		if alias, ok := onchainAlias[baseTicker]; ok {
			baseTicker = alias
		}

		base, ok := registry.GetBySymbolAndChain(baseTicker, chainID)
		if !ok {
			return signalDomain.TradingPair{}, apperror.New(apperror.CodeValidationError,
				apperror.WithContext("unknown base token "+baseTicker+" for symbol "+symbol))
		}
		quote, ok := registry.GetBySymbolAndChain(suffix, chainID)
		if !ok {
			return signalDomain.TradingPair{}, apperror.New(apperror.CodeValidationError,
				apperror.WithContext("unknown quote token "+suffix+" for symbol "+symbol))
		}
		return signalDomain.TradingPair{Symbol: symbol, Base: base, Quote: quote}, nil
	}
	return signalDomain.TradingPair{}, apperror.New(apperror.CodeValidationError,
		apperror.WithContext("unrecognized exchange symbol "+symbol))
}
