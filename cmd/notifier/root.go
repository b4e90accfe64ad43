package main

import (
	"fmt"

	"github.com/purposeinplay/notifier/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "notifier",
		Short:         "Leader-gated notification consumer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(
		&opts.configPath,
		"config",
		"c",
		"",
		"path to a YAML configuration file",
	)

	root.AddCommand(
		newServeCommand(opts),
		newEnqueueCommand(opts),
	)

	return root
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}
