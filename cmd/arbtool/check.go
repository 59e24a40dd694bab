package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	arbitrageApp "github.com/fd1az/arb-engine/business/arbitrage/app"
	"github.com/fd1az/arb-engine/business/exchange/infra/binance"
	"github.com/fd1az/arb-engine/business/pricing/infra/ethereum"
	"github.com/fd1az/arb-engine/internal/asset"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [symbol]",
		Short: "Compare CEX mid against DEX spot and report the spread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			symbol := args[0]
			log := newLogger()

			registry := asset.DefaultRegistry()
			pairs, err := arbitrageApp.PairsFromSymbols(registry, cfg.Ethereum.ChainID, []string{symbol})
			if err != nil {
				return err
			}
			pair := pairs[0]

			client, err := binance.NewClient(binance.ClientConfig{
				BaseURL:      cfg.Exchange.BaseURL,
				APIKey:       cfg.Exchange.APIKey,
				APISecret:    cfg.Exchange.APISecret,
				RecvWindow:   cfg.Exchange.RecvWindow,
				WeightPerSec: cfg.Exchange.WeightPerSec,
			}, log)
			if err != nil {
				return err
			}
			book, err := client.FetchOrderBook(cmd.Context(), symbol, 20)
			if err != nil {
				return err
			}
			cexMid := book.Mid()

			ethClient, err := ethclient.Dial(cfg.Ethereum.HTTPURL)
			if err != nil {
				return fmt.Errorf("connecting to ethereum: %w", err)
			}
			defer ethClient.Close()

			fetcher, err := ethereum.NewPoolFetcher(ethClient, registry,
				cfg.Ethereum.ChainID, uint64(cfg.Pools.DefaultFee), log)
			if err != nil {
				return err
			}

			var dexPrice decimal.Decimal
			for _, addr := range cfg.Pools.PoolAddresses() {
				pool, err := fetcher.FetchPool(cmd.Context(), addr)
				if err != nil {
					return err
				}
				if !pool.Has(pair.Base.Address()) || !pool.Has(pair.Quote.Address()) {
					continue
				}
				spot, err := pool.SpotPrice(pair.Base.Address())
				if err != nil {
					return err
				}
				dexPrice = decimal.NewFromBigInt(spot, -18)
				break
			}
			if dexPrice.IsZero() {
				return fmt.Errorf("no configured pool trades %s", pair.String())
			}

			spreadBps := dexPrice.Sub(cexMid).Div(cexMid).Mul(decimal.NewFromInt(10000))
			direction := "BUY_CEX_SELL_DEX"
			if spreadBps.IsNegative() {
				direction = "BUY_DEX_SELL_CEX"
			}
			minSpread := decimal.NewFromFloat(cfg.Engine.MinSpreadBps)
			actionable := spreadBps.Abs().GreaterThanOrEqual(minSpread)

			fmt.Printf("%s\n", pair.String())
			fmt.Printf("  cex mid:    %s\n", cexMid.StringFixed(4))
			fmt.Printf("  dex spot:   %s\n", dexPrice.StringFixed(4))
			fmt.Printf("  spread:     %s bps (%s)\n", spreadBps.StringFixed(2), direction)
			if actionable {
				fmt.Printf("  actionable: yes (min %s bps)\n", minSpread.StringFixed(1))
			} else {
				fmt.Printf("  actionable: no (min %s bps)\n", minSpread.StringFixed(1))
			}
			return nil
		},
	}
	return cmd
}
