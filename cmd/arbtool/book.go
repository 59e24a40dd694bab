package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fd1az/arb-engine/business/exchange/infra/binance"
	orderbookDomain "github.com/fd1az/arb-engine/business/orderbook/domain"
)

func newBookCmd() *cobra.Command {
	var (
		depth int
		size  float64
	)

	cmd := &cobra.Command{
		Use:   "book [symbol]",
		Short: "Dump an order-book snapshot with depth and fill analytics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			symbol := args[0]

			client, err := binance.NewClient(binance.ClientConfig{
				BaseURL:      cfg.Exchange.BaseURL,
				APIKey:       cfg.Exchange.APIKey,
				APISecret:    cfg.Exchange.APISecret,
				RecvWindow:   cfg.Exchange.RecvWindow,
				WeightPerSec: cfg.Exchange.WeightPerSec,
			}, newLogger())
			if err != nil {
				return err
			}

			book, err := client.FetchOrderBook(cmd.Context(), symbol, depth)
			if err != nil {
				return err
			}
			analyzer, err := orderbookDomain.NewAnalyzer(book)
			if err != nil {
				return err
			}

			fmt.Printf("%s  (%d bids / %d asks)\n", symbol, len(book.Bids), len(book.Asks))
			fmt.Printf("  best bid:  %s\n", book.BestBid())
			fmt.Printf("  best ask:  %s\n", book.BestAsk())
			fmt.Printf("  mid:       %s\n", book.Mid().StringFixed(4))
			fmt.Printf("  spread:    %s bps\n", book.SpreadBps().StringFixed(2))
			fmt.Printf("  imbalance: %s (top 10)\n", analyzer.Imbalance(10).StringFixed(4))

			tenBps := decimal.NewFromInt(10)
			fmt.Printf("  depth @10bps: bid %s / ask %s\n",
				analyzer.DepthAtBps(orderbookDomain.SideSell, tenBps),
				analyzer.DepthAtBps(orderbookDomain.SideBuy, tenBps))

			qty := decimal.NewFromFloat(size)
			for _, side := range []orderbookDomain.Side{orderbookDomain.SideBuy, orderbookDomain.SideSell} {
				walk, err := analyzer.WalkTheBook(side, qty)
				if err != nil {
					return err
				}
				filled := "full"
				if !walk.FullyFilled {
					filled = "PARTIAL"
				}
				fmt.Printf("  %s %s: avg %s, slippage %s bps, %d levels (%s)\n",
					side, qty, walk.AvgPrice.StringFixed(4),
					walk.SlippageBps.StringFixed(2), walk.LevelsConsumed, filled)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 50, "Depth levels to fetch")
	cmd.Flags().Float64Var(&size, "size", 1.0, "Size to walk against each side")
	return cmd
}
