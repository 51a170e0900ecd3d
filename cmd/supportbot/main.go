package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "supportbot",
		Short:         "Telegram support bot with a daily email newsletter",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "Config file path (defaults to config.toml).")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newNewsletterCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	return cmd
}
