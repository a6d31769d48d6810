package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/msalah0e/mindmap/internal/activity"
	"github.com/msalah0e/mindmap/internal/ui"
	"github.com/msalah0e/mindmap/internal/view"
)

func logCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:     "log",
		Aliases: []string{"activity"},
		Short:   "Show what you did recently",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := activity.Read(count)
			if err != nil {
				fail(err)
			}
			ui.Banner(os.Stdout, "activity log")
			if len(entries) == 0 {
				fmt.Println("  No activity recorded yet.")
				return
			}
			ui.Table(os.Stdout, []string{"TIME", "ACTION", "MAP", "DETAILS"}, activityRows(entries, 50))
			fmt.Printf("\n  Showing %d most recent entries\n", len(entries))
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 20, "Number of entries")
	cmd.AddCommand(
		logSearchCmd(),
		logClearCmd(),
		logExportCmd(),
	)
	return cmd
}

func activityRows(entries []activity.Entry, width int) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		mapID := "-"
		if e.MapID != "" {
			mapID = view.ShortID(e.MapID)
		}
		rows = append(rows, []string{e.Timestamp.Format("Jan 02 15:04"), e.Action, mapID, truncate(e.Details, width)})
	}
	return rows
}

func logSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search activity log entries",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			results, err := activity.Search(args[0], 50)
			if err != nil {
				fail(err)
			}
			if len(results) == 0 {
				fmt.Printf("  No entries matching %q\n", args[0])
				return
			}
			ui.Banner(os.Stdout, "search results")
			ui.Table(os.Stdout, []string{"TIME", "ACTION", "MAP", "DETAILS"}, activityRows(results, 40))
			fmt.Printf("\n  %d results\n", len(results))
		},
	}
}

func logClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the activity log",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := activity.Clear(); err != nil {
				fail(err)
			}
			ui.Notify(os.Stdout, ui.Success("activity log cleared"))
		},
	}
}

func logExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the activity log as JSON",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := activity.Read(0)
			if err != nil {
				fail(err)
			}
			if entries == nil {
				entries = []activity.Entry{}
			}
			data, _ := json.MarshalIndent(entries, "", "  ")
			fmt.Println(string(data))
		},
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}
