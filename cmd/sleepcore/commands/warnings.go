package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	warningsInput  string
	warningsWindow int
)

// WarningsCmd scans an observation sequence for early-warning signals.
var WarningsCmd = &cobra.Command{
	Use:   "warnings",
	Short: "Detect early-warning signals in an observation sequence",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore("")
		if err != nil {
			return err
		}
		defer core.Close()

		obs, err := loadObservations(warningsInput)
		if err != nil {
			return err
		}
		history := make([][]float64, len(obs))
		for i, o := range obs {
			history[i] = o.Values
		}

		signals, err := core.DetectEarlyWarnings(history, warningsWindow)
		if err != nil {
			return err
		}
		if len(signals) == 0 {
			fmt.Println("no early-warning signals detected")
			return nil
		}
		return printJSON(signals)
	},
}

func init() {
	WarningsCmd.Flags().StringVarP(&warningsInput, "input", "i", "", "JSON file with observation sequence")
	WarningsCmd.Flags().IntVar(&warningsWindow, "window", 0, "comparison window size (0 = engine default)")
}
