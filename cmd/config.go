package cmd

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/msalah0e/mindmap/internal/config"
	"github.com/msalah0e/mindmap/internal/ui"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			shown := *cfg
			if shown.Auth.Secret != "" {
				shown.Auth.Secret = "********"
			}
			fmt.Println(ui.Subtle.Sprint("# " + config.ConfigDir()))
			if err := toml.NewEncoder(os.Stdout).Encode(shown); err != nil {
				fail(err)
			}
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Write a default config file if none exists",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				if err := config.EnsureExists(); err != nil {
					fail(err)
				}
				ui.Notify(os.Stdout, ui.Success("config at %s", config.ConfigDir()))
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config directory",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(config.ConfigDir())
			},
		},
	)
	return cmd
}
