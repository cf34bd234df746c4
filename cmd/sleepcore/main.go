// Package main provides the CLI entry point for the forecasting core.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hiplawrussia-stack/sleepcore-sub000/cmd/sleepcore/commands"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "sleepcore",
	Short: "Hybrid psychological state forecasting core",
	Long: `sleepcore estimates and forecasts a 5-dimensional psychological state
(valence, arousal, dominance, risk, resources) from noisy observations.

It provides:
  - Multi-horizon hybrid forecasts (PLRNN dynamics + KalmanFormer filter)
  - Causal-network extraction from learned coupling weights
  - Counterfactual intervention simulation
  - Early-warning-signal detection for critical transitions
  - Weight-bundle persistence with SQLite`,
	Version: version,
}

func main() {
	rootCmd.AddCommand(commands.ForecastCmd)
	rootCmd.AddCommand(commands.TrainCmd)
	rootCmd.AddCommand(commands.CausalCmd)
	rootCmd.AddCommand(commands.SimulateCmd)
	rootCmd.AddCommand(commands.WarningsCmd)
	rootCmd.AddCommand(commands.WeightsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
