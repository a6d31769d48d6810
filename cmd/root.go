package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/msalah0e/mindmap/internal/config"
	"github.com/msalah0e/mindmap/internal/ui"
)

var version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "mindmap",
	Short: "mindmap: edit mind maps from the terminal",
	Long: ui.Brand.Sprint(ui.Mark+" mindmap") + ": named maps of connected ideas\n" +
		ui.Subtle.Sprint("Create maps, add and connect nodes, and sync them to a document store"),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// glog reads its flags from flag.CommandLine; pflag has already
		// written the values, this only marks the set as parsed.
		_ = flag.CommandLine.Parse(nil)

		if !config.Load().UI.Color {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.SetVersionTemplate("mindmap {{ .Version }}\n")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(
		registerCmd(),
		loginCmd(),
		logoutCmd(),
		whoamiCmd(),
		mapCmd(),
		nodeCmd(),
		editCmd(),
		exportCmd(),
		serveCmd(),
		watchCmd(),
		logCmd(),
		configCmd(),
	)
}

// Execute runs the root command. Interrupts cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// fail prints err as a notice and exits.
func fail(err error) {
	ui.Notify(os.Stderr, ui.FromError(err))
	os.Exit(1)
}

func failf(format string, args ...any) {
	ui.Bad.Fprintf(os.Stderr, "  %s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
