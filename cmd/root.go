package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/example/srt-reserver/internal/config"
	"github.com/example/srt-reserver/internal/logging"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type globalFlags struct {
	logLevel  string
	logFormat string
}

func NewRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "srtreserve",
		Short:         "Polls SRT seat availability and books or waitlists the first open train",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "text or json (overrides LOG_FORMAT)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newStationsCmd())
	root.AddCommand(newReserveCmd(&g))
	root.AddCommand(newServerCmd(&g))
	root.AddCommand(newRunsCmd(&g))
	root.AddCommand(newUserCmd(&g))

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup reads the environment and builds the process logger.
func (g *globalFlags) setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.logFormat != "" {
		cfg.LogFormat = g.logFormat
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(level, cfg.LogFormat), nil
}
