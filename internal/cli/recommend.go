package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/artifact"
	"github.com/rcliao/calmcompass/internal/model"
	"github.com/rcliao/calmcompass/internal/recommender"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend one coping action for a check-in",
		Run:   runRecommend,
	}
	addCheckInFlags(cmd)
	cmd.Flags().Bool("no-ml", false, "Skip the model and use the rules only")

	RootCmd.AddCommand(cmd)
}

type recommendOutput struct {
	model.InferenceResult
	Action action.Action `json:"action"`
}

func runRecommend(cmd *cobra.Command, args []string) {
	noML, _ := cmd.Flags().GetBool("no-ml")
	cfg := loadConfig()
	logger := newLogger(cfg)
	defer logger.Sync()

	rec, err := checkInFromFlags(cmd)
	if err != nil {
		exitErr("recommend", err)
	}

	loader := artifact.FileLoader{Paths: cfg.ArtifactPaths()}
	gate := recommender.NewGate(loader, cfg.Model.Disabled || noML, logger.Named("gate"))
	res := recommender.New(gate, logger).Recommend(rec)

	a, _ := action.Lookup(res.RecommendedAction)
	printJSON(recommendOutput{InferenceResult: res, Action: a})
}
