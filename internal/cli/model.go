package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/calmcompass/internal/artifact"
	"github.com/rcliao/calmcompass/internal/recommender"
)

func init() {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect the model artifact",
	}

	info := &cobra.Command{
		Use:   "info",
		Short: "Load the artifact and show what would be served",
		Run:   runModelInfo,
	}
	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the metadata file",
		Run: func(cmd *cobra.Command, args []string) {
			printJSON(artifact.MetaSchema())
		},
	}

	cmd.AddCommand(info, schema)
	RootCmd.AddCommand(cmd)
}

func runModelInfo(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	logger := newLogger(cfg)
	defer logger.Sync()

	gate := recommender.NewGate(artifact.FileLoader{Paths: cfg.ArtifactPaths()}, cfg.Model.Disabled, logger)
	printJSON(gate.Status())
}
