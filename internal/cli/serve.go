package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/calmcompass/internal/artifact"
	"github.com/rcliao/calmcompass/internal/recommender"
	"github.com/rcliao/calmcompass/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recommendations and collect feedback over HTTP",
		Run:   runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (default from config, :8080)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if cfg.Model.Disabled {
		logger.Info("ML disabled, serving rule-based suggestions only")
	}
	gate := recommender.NewGate(artifact.FileLoader{Paths: cfg.ArtifactPaths()}, cfg.Model.Disabled, logger.Named("gate"))
	srv := server.New(recommender.New(gate, logger.Named("recommender")), gate, s, logger.Named("http"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
		logger.Error("server stopped", zap.Error(err))
		exitErr("serve", err)
	}
}
