package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msalah0e/mindmap/internal/graph"
	"github.com/msalah0e/mindmap/internal/ui"
	"github.com/msalah0e/mindmap/internal/view"
)

func nodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Change a map one gesture at a time",
		Long: `One-shot editing commands. Nodes can be referred to by label or by
the short id shown in ` + "`mindmap map show`" + `.

  mindmap node add Roadmap "Launch"
  mindmap node add Roadmap "Beta" --parent Launch
  mindmap node connect Roadmap Beta Launch
  mindmap node edit Roadmap Beta "Public beta"
  mindmap node rm Roadmap "Public beta"`,
	}

	cmd.AddCommand(
		nodeListCmd(),
		nodeAddCmd(),
		nodeEditCmd(),
		nodeRemoveCmd(),
		nodeConnectCmd(),
		nodeDisconnectCmd(),
		nodeMoveCmd(),
	)
	return cmd
}

// gesture opens mapRef, optionally selects a node, applies the command and
// prints its notice. Errors exit non-zero after pending writes finish.
func gesture(cmd *cobra.Command, mapRef, selectRef string, c view.Command) {
	a := mustOpenApp()
	m, sess := a.openMap(cmd.Context(), mapRef, true)

	if selectRef != "" {
		if n := view.Dispatch(sess, view.Select{Ref: selectRef}); n.Level == ui.LevelError {
			a.Close()
			ui.Notify(os.Stderr, n)
			os.Exit(1)
		}
	}

	n := view.Dispatch(sess, c)
	a.Close()
	if n.Level == ui.LevelError {
		ui.Notify(os.Stderr, n)
		os.Exit(1)
	}
	record(actionName(c), m.ID, n.Text)
	ui.Notify(os.Stdout, n)
}

// actionName is the activity log action for a command.
func actionName(c view.Command) string {
	switch c.(type) {
	case view.AddNode:
		return "node.add"
	case view.EditNode:
		return "node.edit"
	case view.RemoveNode:
		return "node.remove"
	case view.Move:
		return "node.move"
	case view.Connect:
		return "edge.add"
	case view.Disconnect:
		return "edge.remove"
	}
	return "map.view"
}

// parseAt reads an "x,y" position flag.
func parseAt(s string) (*graph.Position, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("position must look like x,y")
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errX != nil || errY != nil {
		return nil, fmt.Errorf("invalid position %q", s)
	}
	return &graph.Position{X: x, Y: y}, nil
}

func nodeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls <map>",
		Aliases: []string{"list"},
		Short:   "List the nodes of a map",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			m, sess := a.openMap(cmd.Context(), args[0], false)
			g := sess.Graph()
			ui.Banner(os.Stdout, m.Name)

			var rows [][]string
			for _, n := range g.Nodes() {
				out, in := g.EdgesOf(n.ID)
				rows = append(rows, []string{
					view.ShortID(n.ID),
					n.Label,
					fmt.Sprintf("%g,%g", n.Position.X, n.Position.Y),
					strconv.Itoa(len(in)),
					strconv.Itoa(len(out)),
				})
			}
			if len(rows) == 0 {
				fmt.Println("  No nodes yet.")
				return
			}
			ui.Table(os.Stdout, []string{"ID", "LABEL", "AT", "IN", "OUT"}, rows)
		},
	}
}

func nodeAddCmd() *cobra.Command {
	var parent, at string

	cmd := &cobra.Command{
		Use:   "add <map> <label>",
		Short: "Add a node",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			pos, err := parseAt(at)
			if err != nil {
				failf("%v", err)
			}
			gesture(cmd, args[0], parent, view.AddNode{Label: strings.Join(args[1:], " "), Position: pos})
		},
	}

	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Connect the new node under this node")
	cmd.Flags().StringVar(&at, "at", "", "Position as x,y")
	return cmd
}

func nodeEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <map> <node> <label>",
		Short: "Relabel a node",
		Args:  cobra.MinimumNArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			gesture(cmd, args[0], "", view.EditNode{Ref: args[1], Label: strings.Join(args[2:], " ")})
		},
	}
}

func nodeRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <map> <node>",
		Aliases: []string{"remove"},
		Short:   "Remove a node and its edges",
		Args:    cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			gesture(cmd, args[0], "", view.RemoveNode{Ref: args[1]})
		},
	}
}

func nodeConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <map> <from> <to>",
		Short: "Link two nodes",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			gesture(cmd, args[0], "", view.Connect{Source: args[1], Target: args[2]})
		},
	}
}

func nodeDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <map> <from> <to>",
		Short: "Remove the link between two nodes",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			gesture(cmd, args[0], "", view.Disconnect{Source: args[1], Target: args[2]})
		},
	}
}

func nodeMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <map> <node> <x> <y>",
		Short: "Reposition a node",
		Args:  cobra.ExactArgs(4),
		Run: func(cmd *cobra.Command, args []string) {
			pos, err := parseAt(args[2] + "," + args[3])
			if err != nil {
				failf("%v", err)
			}
			gesture(cmd, args[0], "", view.Move{Ref: args[1], Position: *pos})
		},
	}
}
