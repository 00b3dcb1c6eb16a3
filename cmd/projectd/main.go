// Package main implements the projectd daemon and its pipeline runner CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/projectd/internal/config"
	"github.com/fyrsmithlabs/projectd/internal/events"
	"github.com/fyrsmithlabs/projectd/internal/flow"
	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/pipeline"
	"github.com/fyrsmithlabs/projectd/internal/poll"
	"github.com/fyrsmithlabs/projectd/pkg/server"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "projectd",
	Short:   "Coordinates approval-gated project scaffolding flows",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
}

// serveCmd runs the HTTP surface over the flow coordinator.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the projectd HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var log events.Log = events.NewMemoryLog()
	if cfg.NATS.Enabled {
		nc, err := events.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer nc.Close()
		log = events.NewPublishingLog(log, nc)
	}

	coordinator := flow.NewCoordinator(log, logger)
	srv := server.NewServer(cfg, log, coordinator)

	logger.Info(ctx, "projectd listening")
	return srv.Start(ctx)
}

var (
	runTarget    string
	runStyle     string
	runFlowID    string
	runFramework string
)

// runCmd executes one scaffolding pipeline against a target directory.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scaffolding pipeline against a target directory",
	RunE:  runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runTarget, "target", ".", "target project directory")
	runCmd.Flags().StringVar(&runStyle, "style", "", "style intent for the design system")
	runCmd.Flags().StringVar(&runFlowID, "flow-id", "", "flow id to correlate events with")
	runCmd.Flags().StringVar(&runFramework, "framework-version", "", "detected framework version")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := events.NewMemoryLog()
	runner := pipeline.NewRunner(log, logger, poll.Options{
		MaxWait:  cfg.Pipeline.PollMaxWait,
		Interval: cfg.Pipeline.PollInterval,
	}, pipeline.DefaultStages(pipeline.Collaborators{
		Writer: &localWriter{},
		Tokens: &staticTokens{},
	}, logger)...)

	result := runner.Run(ctx, pipeline.RunConfig{
		FlowID:           runFlowID,
		TargetDir:        runTarget,
		MarkerPath:       filepath.Join(runTarget, cfg.Pipeline.MarkerName),
		Style:            runStyle,
		FrameworkVersion: runFramework,
	})

	if !result.Success {
		return fmt.Errorf("pipeline failed at %s", result.FailedStage)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pipeline finished in %s (%d diagnostics)\n",
		result.Duration.Round(time.Millisecond), len(result.Diagnostics))
	return nil
}

func bootstrap() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Format = cfg.Logging.Format
	if level, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
		logCfg.Level = level
	}
	logCfg.Fields = map[string]string{"service": cfg.Observability.ServiceName}

	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
