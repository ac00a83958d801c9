package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hperssn/chefmentor/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger := log.Base()
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "server",
		Short:         "Chef mentor cooking session server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CHEFMENTOR_CONFIG"), "path to YAML config file")

	serve := newServeCmd(&configPath)
	root.AddCommand(serve, newSeedCmd(&configPath))
	root.RunE = serve.RunE

	return root
}
