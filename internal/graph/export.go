package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snapshot is the serialized form of a map's graph.
type Snapshot struct {
	MapID string `json:"map_id" yaml:"map_id"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Snapshot captures the current contents in creation order.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{MapID: s.mapID, Nodes: s.Nodes(), Edges: s.Edges()}
}

// ─── Export ───

// ExportJSON returns the graph as pretty-printed JSON.
func (s *Store) ExportJSON(name string) ([]byte, error) {
	snap := s.Snapshot()
	snap.Name = name
	return json.MarshalIndent(snap, "", "  ")
}

// ExportYAML returns the graph as YAML.
func (s *Store) ExportYAML(name string) ([]byte, error) {
	snap := s.Snapshot()
	snap.Name = name
	return yaml.Marshal(snap)
}

// ExportDOT returns the graph in Graphviz DOT format.
func (s *Store) ExportDOT(name string) string {
	if name == "" {
		name = s.mapID
	}
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", name)
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded];\n\n")

	for _, n := range s.Nodes() {
		fmt.Fprintf(&b, "  %q [label=%q, pos=\"%g,%g\"];\n", n.ID, n.Label, n.Position.X, n.Position.Y)
	}

	b.WriteString("\n")
	for _, e := range s.Edges() {
		fmt.Fprintf(&b, "  %q -> %q;\n", e.Source, e.Target)
	}

	b.WriteString("}\n")
	return b.String()
}

// ─── Terminal rendering ───

// RenderTree draws the map as an indented tree. Nodes without incoming
// edges are roots; a node reached twice is printed once and referenced
// afterwards. mark decorates a node's line (for example to flag the
// selection) and may be nil.
func (s *Store) RenderTree(mark func(Node) string) string {
	nodes := s.Nodes()
	if len(nodes) == 0 {
		return ""
	}

	children := make(map[string][]string)
	hasParent := make(map[string]bool)
	for _, e := range s.Edges() {
		children[e.Source] = append(children[e.Source], e.Target)
		hasParent[e.Target] = true
	}

	var b strings.Builder
	seen := make(map[string]bool)

	var walk func(id, prefix string, last, root bool)
	walk = func(id, prefix string, last, root bool) {
		n := s.nodes[id]
		branch, childPrefix := "", prefix
		if !root {
			if last {
				branch = "└── "
				childPrefix = prefix + "    "
			} else {
				branch = "├── "
				childPrefix = prefix + "│   "
			}
		}
		suffix := ""
		if mark != nil {
			suffix = mark(*n)
		}
		if seen[id] {
			fmt.Fprintf(&b, "%s%s↻ %s%s\n", prefix, branch, n.Label, suffix)
			return
		}
		seen[id] = true
		fmt.Fprintf(&b, "%s%s%s%s\n", prefix, branch, n.Label, suffix)

		kids := children[id]
		for i, kid := range kids {
			walk(kid, childPrefix, i == len(kids)-1, false)
		}
	}

	for _, n := range nodes {
		if !hasParent[n.ID] {
			walk(n.ID, "", true, true)
		}
	}
	// Nodes only reachable through a cycle have no root; start from them.
	for _, n := range nodes {
		if !seen[n.ID] {
			walk(n.ID, "", true, true)
		}
	}
	return b.String()
}
