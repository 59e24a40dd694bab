package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	arbitrageApp "github.com/fd1az/arb-engine/business/arbitrage/app"
	"github.com/fd1az/arb-engine/business/arbitrage/infra/wallet"
	"github.com/fd1az/arb-engine/business/exchange/infra/binance"
	riskDomain "github.com/fd1az/arb-engine/business/risk/domain"
	signalApp "github.com/fd1az/arb-engine/business/signal/app"
	"github.com/fd1az/arb-engine/internal/asset"
)

func newRebalanceCmd() *cobra.Command {
	var withdrawalFee float64

	cmd := &cobra.Command{
		Use:   "rebalance [asset]",
		Short: "Plan transfers that restore an even venue split for an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			symbol := args[0]
			log := newLogger()

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
			cexBalances, err := client.FetchBalance(cmd.Context())
			if err != nil {
				return err
			}

			registry := asset.DefaultRegistry()
			pairs, err := arbitrageApp.PairsFromSymbols(registry, cfg.Ethereum.ChainID, cfg.Exchange.Symbols)
			if err != nil {
				return err
			}
			tokens := make([]*asset.Asset, 0, len(pairs)*2)
			seen := make(map[string]bool)
			for _, p := range pairs {
				for _, a := range []*asset.Asset{p.Base, p.Quote} {
					if !seen[a.Symbol()] {
						seen[a.Symbol()] = true
						tokens = append(tokens, a)
					}
				}
			}

			ethClient, err := ethclient.Dial(cfg.Ethereum.HTTPURL)
			if err != nil {
				return fmt.Errorf("connecting to ethereum: %w", err)
			}
			defer ethClient.Close()

			fetcher, err := wallet.NewBalanceFetcher(ethClient, cfg.Ethereum.WalletAddressHex(), tokens, log)
			if err != nil {
				return err
			}
			walletBalances, err := fetcher.FetchBalances(cmd.Context())
			if err != nil {
				return err
			}

			inv := riskDomain.NewInventory(decimal.NewFromFloat(cfg.Inventory.RebalanceThresholdPct))
			balances := make(map[string]riskDomain.Balance, len(cexBalances))
			for sym, b := range cexBalances {
				balances[sym] = riskDomain.Balance{Free: b.Free, Locked: b.Locked}
			}
			inv.UpdateFromCex(signalApp.VenueCex, balances)
			inv.UpdateFromWallet(signalApp.VenueWallet, walletBalances)

			skew := inv.ComputeSkew(symbol)
			fmt.Printf("%s split:\n", symbol)
			for venue, pct := range skew.Venues {
				fmt.Printf("  %-10s %s%%\n", venue, pct.StringFixed(1))
			}
			fmt.Printf("  max deviation: %s%% (threshold %.1f%%)\n",
				skew.MaxDeviationPct.StringFixed(1), cfg.Inventory.RebalanceThresholdPct)

			plan := inv.PlanRebalance(symbol, decimal.NewFromFloat(withdrawalFee))
			if plan.Empty() {
				fmt.Println("balanced, nothing to move")
				return nil
			}
			for _, tr := range plan.Transfers {
				fmt.Printf("move %s %s from %s to %s (net %s after fee %s)\n",
					tr.Amount, tr.Symbol, tr.From, tr.To, tr.NetAmount, tr.WithdrawalFee)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&withdrawalFee, "fee", 0, "Withdrawal fee charged on each transfer")
	return cmd
}
