package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/msalah0e/mindmap/internal/graph"
	"github.com/msalah0e/mindmap/internal/ui"
)

func exportCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export <map>",
		Short: "Export a map as JSON, YAML or Graphviz DOT",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			m, sess := a.openMap(cmd.Context(), args[0], false)
			data, err := exportData(sess.Graph(), m.Name, format)
			if err != nil {
				fail(err)
			}

			if output == "" || output == "-" {
				os.Stdout.Write(data)
				return
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				fail(err)
			}
			record("map.export", m.ID, format+" -> "+output)
			ui.Notify(os.Stderr, ui.Success("wrote %s", output))
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, yaml or dot")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

// exportData renders g in the named format.
func exportData(g *graph.Store, name, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := g.ExportJSON(name)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		return g.ExportYAML(name)
	case "dot":
		return []byte(g.ExportDOT(name)), nil
	}
	return nil, fmt.Errorf("unknown format %q (want json, yaml or dot)", format)
}
