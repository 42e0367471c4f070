package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autonet/pkg/config"
	"autonet/pkg/logx"
	"autonet/pkg/version"
)

var (
	flagConfig string
	flagDebug  bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "autonet",
		Short:         "BGP peering configuration generation and fleet deployment",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "autonet.yaml", "path to the governing configuration document")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	root.AddCommand(
		newGenerateCmd(),
		newDeployCmd(),
		newPeerConfigCmd(),
		newStateCmd(),
		newConfigCmd(),
	)
	return root
}

// setup loads the governing document and builds the run logger.
func setup() (*config.Config, *zap.Logger, error) {
	log, err := logx.New(flagDebug)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return cfg, log, nil
}
