package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var weightsDB string

// WeightsCmd lists persisted weight bundles.
var WeightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "List persisted weight bundles",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(weightsDB)
		if err != nil {
			return err
		}
		defer core.Close()

		snaps, err := core.ListWeights()
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("no weight bundles stored")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "id\tengine\ttrained at\tsamples\tvalidation loss")
		for _, snap := range snaps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.6f\n",
				snap.ID, snap.Engine, snap.TrainedAt.Format("2006-01-02 15:04:05"),
				snap.SampleCount, snap.ValidationLoss)
		}
		return w.Flush()
	},
}

func init() {
	WeightsCmd.Flags().StringVar(&weightsDB, "weights-db", "", "SQLite path for weight bundles")
}
