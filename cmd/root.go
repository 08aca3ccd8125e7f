package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/openfeeder/internal/config"
	"github.com/JakeFAU/openfeeder/internal/logging"
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "openfeeder",
		Short: "Serves site content to AI crawlers over the OpenFeeder protocol.",
		Long: `openfeeder exposes a site's content as chunked JSON documents with
differential sync, and answers AI crawlers that hit the site's pages
with a short gateway dialogue pointing them at the right endpoint.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables use the OPENFEEDER_ prefix")

	cmd.AddCommand(newServeCmd(&cfgFile))
	cmd.AddCommand(newChunkCmd())

	return cmd
}

// loadConfig reads configuration and builds the matching logger.
func loadConfig(cfgFile string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
