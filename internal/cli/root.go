// Package cli implements the calmcompass CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/calmcompass/internal/config"
	"github.com/rcliao/calmcompass/internal/logging"
	"github.com/rcliao/calmcompass/internal/store"
)

var (
	configPath string
	dbPath     string
	modelDir   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "calmcompass",
	Short: "Coping action recommender",
	Long: "Recommends one short coping action from PHQ-2/GAD-2 scores and check-in context.\n" +
		"Learns from helpfulness feedback and falls back to fixed rules when no trusted model is available.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $CALMCOMPASS_CONFIG)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Feedback database path (default: $CALMCOMPASS_DB or ~/.calmcompass/feedback.db)")
	RootCmd.PersistentFlags().StringVar(&modelDir, "model-dir", "", "Model artifact directory (default: $CALMCOMPASS_MODEL_DIR or ./ml)")
}

func loadConfig() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if modelDir != "" {
		cfg.Model.Dir = modelDir
	}
	return cfg
}

func newLogger(cfg config.Config) *zap.Logger {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		exitErr("init logger", err)
	}
	return logger
}

func openStore(cfg config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.Database.Path)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
