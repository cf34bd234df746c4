package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
)

var (
	simulateInput     string
	simulateTarget    string
	simulateMode      string
	simulateMagnitude float64
)

// SimulateCmd runs a counterfactual intervention simulation.
var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a hypothetical intervention on one dimension",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore("")
		if err != nil {
			return err
		}
		defer core.Close()

		obs, err := loadObservations(simulateInput)
		if err != nil {
			return err
		}
		belief := beliefFromObservations(obs)

		report, err := core.SimulateIntervention(belief, simulateTarget,
			forecast.InterventionMode(simulateMode), simulateMagnitude)
		if err != nil {
			return err
		}
		if report == nil {
			return fmt.Errorf("no dynamics engine configured")
		}
		return printJSON(report)
	},
}

func init() {
	SimulateCmd.Flags().StringVarP(&simulateInput, "input", "i", "", "JSON file with observation sequence")
	SimulateCmd.Flags().StringVar(&simulateTarget, "target", "valence", "dimension to intervene on")
	SimulateCmd.Flags().StringVar(&simulateMode, "mode", "increase", "intervention mode (increase|decrease|stabilize)")
	SimulateCmd.Flags().Float64Var(&simulateMagnitude, "magnitude", 1.0, "intervention magnitude")
}
