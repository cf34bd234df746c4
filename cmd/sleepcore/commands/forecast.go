package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/state"
	"github.com/hiplawrussia-stack/sleepcore-sub000/pkg/sleepcore"
)

var (
	forecastInput   string
	forecastHorizon string
	forecastFormat  string
	forecastDB      string
)

// ForecastCmd produces a hybrid forecast from an observation sequence.
var ForecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Produce a hybrid multi-horizon forecast",
	Long: `Feed an observation sequence through the filter-encoder and produce a
hybrid forecast at the requested horizon ("6h", "24h", "72h" or
"short", "medium", "long").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		horizon, err := sleepcore.ParseHorizon(forecastHorizon)
		if err != nil {
			return err
		}

		core, err := newCore(forecastDB)
		if err != nil {
			return err
		}
		defer core.Close()

		obs, err := loadObservations(forecastInput)
		if err != nil {
			return err
		}

		belief := beliefFromObservations(obs[:1])
		for _, o := range obs {
			belief, err = core.Observe(belief, o)
			if err != nil {
				return err
			}
		}

		fc, err := core.PredictHybrid(belief, horizon)
		if err != nil {
			return err
		}

		if forecastFormat == "json" {
			return printJSON(fc)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "horizon:\t%s (%d steps, engine %s)\n", fc.Horizon, fc.Steps, fc.PrimaryEngine)
		fmt.Fprintln(w, "dimension\tmean\t95% low\t95% high")
		for i, label := range state.DimensionLabels {
			fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%.3f\n", label, fc.Mean[i], fc.Lower[i], fc.Upper[i])
		}
		fmt.Fprintf(w, "confidence:\t%.2f\n", fc.Confidence)
		for _, warning := range fc.Warnings {
			fmt.Fprintf(w, "warning:\t%s on %s (strength %.2f)\n", warning.Kind, warning.Dimension, warning.Strength)
		}
		return w.Flush()
	},
}

func init() {
	ForecastCmd.Flags().StringVarP(&forecastInput, "input", "i", "", "JSON file with observation sequence")
	ForecastCmd.Flags().StringVar(&forecastHorizon, "horizon", "24h", "forecast horizon (6h|24h|72h)")
	ForecastCmd.Flags().StringVar(&forecastFormat, "format", "table", "output format (table|json)")
	ForecastCmd.Flags().StringVar(&forecastDB, "weights-db", "", "SQLite path for weight bundles")
}
