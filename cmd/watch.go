package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msalah0e/mindmap/internal/docstore"
	"github.com/msalah0e/mindmap/internal/ui"
	"github.com/msalah0e/mindmap/internal/view"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <map>",
		Short: "Print changes to a map as they happen on the remote store",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			rs, ok := a.store.(*docstore.Remote)
			if !ok {
				failf("watch needs the remote backend; set store.backend = \"remote\" or MINDMAP_STORE_URL")
			}
			m, err := a.maps.Find(cmd.Context(), args[0])
			if err != nil {
				fail(err)
			}

			ui.Banner(os.Stdout, "watching "+m.Name+" (Ctrl-C to stop)")
			err = rs.Watch(cmd.Context(), docstore.MapPrefix(m.ID), func(c docstore.Change) {
				fmt.Println("  " + describeChange(c))
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				fail(err)
			}
		},
	}
}

// describeChange formats a change feed event as one line.
func describeChange(c docstore.Change) string {
	kind := "doc"
	switch {
	case strings.HasSuffix(c.Collection, "/nodes"):
		kind = "node"
	case strings.HasSuffix(c.Collection, "/edges"):
		kind = "edge"
	}
	verb := ui.Good.Sprint("set   ")
	if c.Op == docstore.OpDelete {
		verb = ui.Bad.Sprint("delete")
	}
	return fmt.Sprintf("%s %s %s %s", ui.Subtle.Sprint(c.At.Format("15:04:05")), verb, kind, view.ShortID(c.ID))
}
