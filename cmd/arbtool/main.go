// Package main is arbtool, the operator CLI for the arbitrage engine:
// order-book inspection, spread checks, rebalance planning, and PnL summary.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fd1az/arb-engine/internal/config"
	"github.com/fd1az/arb-engine/internal/logger"
)

var configPath string

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "arbtool",
		Short:         "Operator tools for the CEX-DEX arbitrage engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	root.AddCommand(newBookCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newRebalanceCmd())
	root.AddCommand(newPnLCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger() *logger.Logger {
	return logger.New(os.Stderr, logger.LevelWarn, "arbtool", nil)
}
