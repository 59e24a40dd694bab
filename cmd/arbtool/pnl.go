package main

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Column indexes in the PnL CSV written by the execution module.
const (
	colSymbol   = 4
	colGrossPnL = 8
	colNetPnL   = 9
	colFees     = 11
)

func newPnLCmd() *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "pnl",
		Short: "Summarize realized PnL from the engine's CSV export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := csvPath
			if path == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				path = cfg.PnL.CSVPath
			}
			if path == "" {
				return fmt.Errorf("no PnL CSV configured; pass --csv or set pnl.csv_path")
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening pnl csv: %w", err)
			}
			defer f.Close()

			rows, err := csv.NewReader(f).ReadAll()
			if err != nil {
				return fmt.Errorf("reading pnl csv: %w", err)
			}
			if len(rows) <= 1 {
				fmt.Println("no trades recorded")
				return nil
			}

			type bucket struct {
				trades int
				wins   int
				net    decimal.Decimal
			}
			gross, fees, net := decimal.Zero, decimal.Zero, decimal.Zero
			wins := 0
			bySymbol := make(map[string]*bucket)
			var order []string

			for _, row := range rows[1:] {
				if len(row) <= colFees {
					return fmt.Errorf("malformed pnl row with %d columns", len(row))
				}
				g, err := decimal.NewFromString(row[colGrossPnL])
				if err != nil {
					return fmt.Errorf("parsing gross pnl %q: %w", row[colGrossPnL], err)
				}
				n, err := decimal.NewFromString(row[colNetPnL])
				if err != nil {
					return fmt.Errorf("parsing net pnl %q: %w", row[colNetPnL], err)
				}
				fee, err := decimal.NewFromString(row[colFees])
				if err != nil {
					return fmt.Errorf("parsing fees %q: %w", row[colFees], err)
				}

				gross = gross.Add(g)
				fees = fees.Add(fee)
				net = net.Add(n)

				symbol := row[colSymbol]
				b := bySymbol[symbol]
				if b == nil {
					b = &bucket{}
					bySymbol[symbol] = b
					order = append(order, symbol)
				}
				b.trades++
				b.net = b.net.Add(n)
				if n.IsPositive() {
					b.wins++
					wins++
				}
			}

			total := len(rows) - 1
			fmt.Printf("trades: %d  wins: %d (%.1f%%)\n", total, wins, float64(wins)/float64(total)*100)
			fmt.Printf("gross:  $%s\n", gross.StringFixed(4))
			fmt.Printf("fees:   $%s\n", fees.StringFixed(4))
			fmt.Printf("net:    $%s\n", net.StringFixed(4))
			for _, symbol := range order {
				b := bySymbol[symbol]
				fmt.Printf("  %-10s %3d trades  %3d wins  net $%s\n",
					symbol, b.trades, b.wins, b.net.StringFixed(4))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the PnL CSV (defaults to pnl.csv_path from config)")
	return cmd
}
