package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/model"
	"github.com/rcliao/calmcompass/internal/store"
	"github.com/rcliao/calmcompass/internal/trainer"
)

func init() {
	cmd := &cobra.Command{
		Use:   "train [feedback.csv]",
		Short: "Train the recommender from feedback",
		Long: "Train the coping action model from a feedback CSV or, with --from-db, from stored feedback.\n" +
			"The model and metadata files are replaced only when training succeeds.",
		Args: cobra.MaximumNArgs(1),
		Run:  runTrain,
	}
	cmd.Flags().Bool("from-db", false, "Train from the feedback database instead of a CSV")
	cmd.Flags().Float64("c", 0, "Inverse L2 regularization strength (default from config)")
	cmd.Flags().Int("max-iter", 0, "Maximum L-BFGS iterations (default from config)")
	cmd.Flags().Bool("no-record", false, "Do not record the run in the database")

	RootCmd.AddCommand(cmd)
}

type trainOutput struct {
	OK           bool              `json:"ok"`
	ModelVersion string            `json:"model_version"`
	Samples      int               `json:"n_samples"`
	ActionIDs    []action.ID       `json:"action_ids"`
	ClassCounts  map[action.ID]int `json:"class_counts"`
	Features     int               `json:"n_features"`
	ArtifactDir  string            `json:"artifact_dir"`
	Warnings     []string          `json:"warnings,omitempty"`
}

func runTrain(cmd *cobra.Command, args []string) {
	fromDB, _ := cmd.Flags().GetBool("from-db")
	noRecord, _ := cmd.Flags().GetBool("no-record")
	if fromDB == (len(args) == 1) {
		exitErr("train", errors.New("give exactly one of a CSV path or --from-db"))
	}

	cfg := loadConfig()
	if c, _ := cmd.Flags().GetFloat64("c"); c > 0 {
		cfg.Training.C = c
	}
	if n, _ := cmd.Flags().GetInt("max-iter"); n > 0 {
		cfg.Training.MaxIter = n
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	tr := trainer.New(cfg.TrainerOptions(), logger.Named("trainer"))

	var (
		records []model.FeedbackRecord
		source  string
	)
	if fromDB {
		s, err := openStore(cfg)
		if err != nil {
			exitErr("open store", err)
		}
		records, err = s.ExportAll(cmd.Context())
		s.Close()
		if err != nil {
			exitErr("read feedback", err)
		}
		source = "db:" + cfg.Database.Path
	} else {
		batch, err := tr.ReadCSV(args[0])
		if err != nil {
			exitErr("read feedback", err)
		}
		records = batch.Records
		source = args[0]
	}

	paths := cfg.ArtifactPaths()
	res, err := tr.TrainAndSave(cmd.Context(), records, paths)
	if err != nil {
		exitErr("train", err)
	}
	meta := res.Artifact.Meta

	if !noRecord {
		recordRun(cmd, cfg.Database.Path, store.Run{
			ModelVersion: meta.ModelVersion,
			NSamples:     meta.NSamples,
			ActionIDs:    meta.ActionIDs,
			ArtifactDir:  paths.Dir,
			Source:       source,
			Warnings:     res.Warnings,
		}, logger)
	}

	printJSON(trainOutput{
		OK:           true,
		ModelVersion: meta.ModelVersion,
		Samples:      res.Samples,
		ActionIDs:    meta.ActionIDs,
		ClassCounts:  res.ClassCounts,
		Features:     len(meta.FeatureNames),
		ArtifactDir:  paths.Dir,
		Warnings:     res.Warnings,
	})
}

// recordRun is best effort: the artifact is already in place.
func recordRun(cmd *cobra.Command, path string, run store.Run, logger *zap.Logger) {
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		logger.Warn("could not open database to record run", zap.Error(err))
		return
	}
	defer s.Close()
	if _, err := s.RecordRun(cmd.Context(), run); err != nil {
		logger.Warn("could not record run", zap.String("model_version", run.ModelVersion), zap.Error(fmt.Errorf("record run: %w", err)))
	}
}
