package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msalah0e/mindmap/internal/apperr"
	"github.com/msalah0e/mindmap/internal/registry"
	"github.com/msalah0e/mindmap/internal/ui"
	"github.com/msalah0e/mindmap/internal/view"
)

func mapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "map",
		Aliases: []string{"maps"},
		Short:   "List and manage your maps",
		Long: `List, create, rename, delete and show maps. Maps can be referred to
by full id, by the last characters of the id, or by name.

  mindmap map                       # list maps
  mindmap map create "Roadmap"      # new empty map
  mindmap map rename Roadmap Plan   # rename
  mindmap map show Plan             # draw it
  mindmap map delete Plan           # delete it with its nodes and edges`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			uid, ok := a.auth.CurrentUserID()
			if !ok {
				fail(apperr.ErrNoSession)
			}
			maps, err := a.maps.List(cmd.Context(), uid)
			if err != nil {
				fail(err)
			}

			ui.Banner(os.Stdout, "maps")
			if len(maps) == 0 {
				fmt.Println("  No maps yet. Create one with `mindmap map create <name>`.")
				return
			}
			ui.Table(os.Stdout, []string{"ID", "NAME", "CREATED"}, mapRows(maps))
			fmt.Printf("\n  %d maps\n", len(maps))
		},
	}

	cmd.AddCommand(
		mapCreateCmd(),
		mapRenameCmd(),
		mapDeleteCmd(),
		mapShowCmd(),
	)
	return cmd
}

// mapRows formats maps for the list table, oldest first.
func mapRows(maps []registry.Map) [][]string {
	sorted := append([]registry.Map(nil), maps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	rows := make([][]string, 0, len(sorted))
	for _, m := range sorted {
		rows = append(rows, []string{view.ShortID(m.ID), m.Name, m.CreatedAt.Format("Jan 02 2006 15:04")})
	}
	return rows
}

func mapCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty map",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			m, err := a.maps.Create(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				fail(err)
			}
			record("map.create", m.ID, m.Name)
			ui.Notify(os.Stdout, ui.Success("created %q %s", m.Name, ui.Subtle.Sprint(m.ID)))
		},
	}
}

func mapRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <map> <new name>",
		Short: "Rename a map",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			m, err := a.maps.Find(cmd.Context(), args[0])
			if err != nil {
				fail(err)
			}
			renamed, err := a.maps.Rename(cmd.Context(), m.ID, strings.Join(args[1:], " "))
			if err != nil {
				fail(err)
			}
			record("map.rename", m.ID, m.Name+" -> "+renamed.Name)
			ui.Notify(os.Stdout, ui.Success("renamed %q to %q", m.Name, renamed.Name))
		},
	}
}

func mapDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <map>",
		Short: "Delete a map with all its nodes and edges",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			m, err := a.maps.Find(cmd.Context(), args[0])
			if err != nil {
				fail(err)
			}
			if !yes && !confirm(fmt.Sprintf("Delete %q and everything in it?", m.Name)) {
				fmt.Println("  Cancelled.")
				return
			}

			report, err := a.maps.Delete(cmd.Context(), m.ID)
			if err != nil {
				fail(err)
			}
			record("map.delete", m.ID, fmt.Sprintf("%s (%d documents, %d orphaned)", m.Name, report.Deleted, len(report.Orphans)))
			ui.Notify(os.Stdout, ui.Success("deleted %q", m.Name))
			if w := report.Warning(); w != "" {
				ui.Notify(os.Stderr, ui.Warning("%s", w))
			}
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func mapShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <map>",
		Short: "Draw a map as a tree",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			m, sess := a.openMap(cmd.Context(), args[0], false)
			ui.Banner(os.Stdout, m.Name)
			fmt.Print(indent(view.Render(sess)))
		},
	}
}

// confirm asks a yes/no question on stdin.
func confirm(question string) bool {
	fmt.Printf("  %s [y/N] ", question)
	var answer string
	fmt.Scanln(&answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func indent(s string) string {
	if s == "" {
		return s
	}
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l != "" {
			b.WriteString("  " + l)
		}
	}
	return b.String()
}
