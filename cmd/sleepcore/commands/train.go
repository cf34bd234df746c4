package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hiplawrussia-stack/sleepcore-sub000/internal/domain/forecast"
)

var (
	trainInput  string
	trainEpochs int
	trainSave   bool
	trainDB     string
)

// TrainCmd trains the dynamics engine on an observation sequence.
var TrainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the dynamics engine on an observation sequence",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(trainDB)
		if err != nil {
			return err
		}
		defer core.Close()

		obs, err := loadObservations(trainInput)
		if err != nil {
			return err
		}
		sample := forecast.TrainingSample{Observations: obs}

		var result *forecast.TrainingResult
		for epoch := 0; epoch < trainEpochs; epoch++ {
			result, err = core.TrainOnline(sample)
			if err != nil {
				return err
			}
		}

		fmt.Printf("loss: %.6f converged: %v steps: %d\n", result.Loss, result.Converged, result.Steps)

		if trainSave {
			snaps, err := core.SaveWeights()
			if err != nil {
				return err
			}
			for _, snap := range snaps {
				fmt.Printf("saved %s bundle %s\n", snap.Engine, snap.ID)
			}
		}
		return nil
	},
}

func init() {
	TrainCmd.Flags().StringVarP(&trainInput, "input", "i", "", "JSON file with observation sequence")
	TrainCmd.Flags().IntVar(&trainEpochs, "epochs", 10, "training passes over the sequence")
	TrainCmd.Flags().BoolVar(&trainSave, "save", false, "persist weight bundles after training")
	TrainCmd.Flags().StringVar(&trainDB, "weights-db", "", "SQLite path for weight bundles")
}
