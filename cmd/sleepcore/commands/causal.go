package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
)

var (
	causalInput  string
	causalEpochs int
	causalFormat string
)

// CausalCmd extracts the causal network from (optionally trained) weights.
var CausalCmd = &cobra.Command{
	Use:   "causal",
	Short: "Extract the causal network over the five state dimensions",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore("")
		if err != nil {
			return err
		}
		defer core.Close()

		if causalInput != "" {
			obs, err := loadObservations(causalInput)
			if err != nil {
				return err
			}
			sample := forecast.TrainingSample{Observations: obs}
			for epoch := 0; epoch < causalEpochs; epoch++ {
				if _, err := core.TrainOnline(sample); err != nil {
					return err
				}
			}
		}

		net, err := core.ExtractCausalNetwork()
		if err != nil {
			return err
		}
		if net == nil {
			return fmt.Errorf("no dynamics engine configured")
		}

		if causalFormat == "json" {
			return printJSON(net)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "node\tself-weight\tcentrality")
		for _, n := range net.Nodes {
			fmt.Fprintf(w, "%s\t%.3f\t%.3f\n", n.Dimension, n.SelfWeight, n.Centrality)
		}
		fmt.Fprintf(w, "density:\t%.3f\tmost central: %s\n", net.Density, net.MostCentral)
		for _, edge := range net.Edges {
			fmt.Fprintf(w, "edge:\t%s -> %s\tweight %.3f sig %.2f\n", edge.From, edge.To, edge.Weight, edge.Significance)
		}
		for _, loop := range net.Loops {
			fmt.Fprintf(w, "loop:\t%s <-> %s\tstrength %.3f\n", loop.A, loop.B, loop.Strength)
		}
		return w.Flush()
	},
}

func init() {
	CausalCmd.Flags().StringVarP(&causalInput, "input", "i", "", "JSON file to train on before extraction")
	CausalCmd.Flags().IntVar(&causalEpochs, "epochs", 20, "training passes before extraction")
	CausalCmd.Flags().StringVar(&causalFormat, "format", "table", "output format (table|json)")
}
