package graph

import (
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/msalah0e/mindmap/internal/apperr"
	"gopkg.in/yaml.v3"
)

func TestAddNode(t *testing.T) {
	s := New("map1")

	n := s.AddNode("Idea A", nil)
	if n.ID == "" {
		t.Fatal("expected node id to be allocated")
	}
	if n.MapID != "map1" {
		t.Errorf("expected map id 'map1', got %q", n.MapID)
	}
	if n.Label != "Idea A" {
		t.Errorf("expected label 'Idea A', got %q", n.Label)
	}

	got, ok := s.Node(n.ID)
	if !ok {
		t.Fatal("node should be readable after add")
	}
	if got.Label != "Idea A" {
		t.Errorf("expected label 'Idea A', got %q", got.Label)
	}
}

func TestAddNodeUniqueIDs(t *testing.T) {
	s := New("m")
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		n := s.AddNode("x", nil)
		if seen[n.ID] {
			t.Fatalf("duplicate id %s", n.ID)
		}
		seen[n.ID] = true
	}
}

func TestAddNodePosition(t *testing.T) {
	s := New("m")
	n := s.AddNode("placed", &Position{X: 10, Y: -4})
	if n.Position != (Position{X: 10, Y: -4}) {
		t.Errorf("expected provided position, got %+v", n.Position)
	}

	a := s.AddNode("auto1", nil)
	b := s.AddNode("auto2", nil)
	if a.Position == b.Position {
		t.Errorf("default positions should differ, both %+v", a.Position)
	}
}

func TestDefaultPositionAfterRemoval(t *testing.T) {
	s := New("m")
	a := s.AddNode("a", nil)
	b := s.AddNode("b", nil)
	c := s.AddNode("c", nil)
	s.RemoveNode(a.ID)

	d := s.AddNode("d", nil)
	for _, other := range []Node{b, c} {
		if d.Position == other.Position {
			t.Errorf("new node landed on %q at %+v", other.Label, d.Position)
		}
	}

	// A hydrated map with a hand-placed node on the origin.
	h := New("m")
	h.Hydrate([]Node{{ID: "x", Position: Position{}}, {ID: "y", Position: Position{X: gridStepX}}}, nil)
	e := h.AddNode("e", nil)
	if e.Position == (Position{}) || e.Position == (Position{X: gridStepX}) {
		t.Errorf("new node landed on an occupied slot %+v", e.Position)
	}
}

func TestEditNode(t *testing.T) {
	s := New("m")
	n := s.AddNode("old", nil)

	if _, ok := s.EditNode(n.ID, "X"); !ok {
		t.Fatal("EditNode should succeed for existing node")
	}
	got, _ := s.Node(n.ID)
	if got.Label != "X" {
		t.Errorf("expected label 'X', got %q", got.Label)
	}
}

func TestEditNodeNotFound(t *testing.T) {
	s := New("m")
	s.AddNode("keep", nil)
	before := s.Snapshot()

	if _, ok := s.EditNode("missing", "X"); ok {
		t.Fatal("EditNode on unknown id should report false")
	}
	after := s.Snapshot()
	if len(after.Nodes) != len(before.Nodes) || after.Nodes[0].Label != "keep" {
		t.Error("store should be unchanged after editing unknown id")
	}
}

func TestMoveNode(t *testing.T) {
	s := New("m")
	n := s.AddNode("a", nil)
	if _, ok := s.MoveNode(n.ID, Position{X: 3, Y: 4}); !ok {
		t.Fatal("MoveNode should succeed")
	}
	got, _ := s.Node(n.ID)
	if got.Position.X != 3 || got.Position.Y != 4 {
		t.Errorf("unexpected position %+v", got.Position)
	}
	if _, ok := s.MoveNode("nope", Position{}); ok {
		t.Error("MoveNode on unknown id should report false")
	}
}

func TestConnect(t *testing.T) {
	s := New("m")
	a := s.AddNode("a", nil)
	b := s.AddNode("b", nil)

	e, err := s.Connect(a.ID, b.ID)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if e.Source != a.ID || e.Target != b.ID {
		t.Errorf("unexpected edge %+v", e)
	}
	if len(s.Edges()) != 1 {
		t.Errorf("expected 1 edge, got %d", len(s.Edges()))
	}
}

func TestConnectSelfLoop(t *testing.T) {
	s := New("m")
	a := s.AddNode("a", nil)

	_, err := s.Connect(a.ID, a.ID)
	if !errors.Is(err, apperr.ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(s.Edges()) != 0 {
		t.Error("self-loop must not be inserted")
	}
}

func TestConnectMissingNode(t *testing.T) {
	s := New("m")
	a := s.AddNode("a", nil)

	if _, err := s.Connect(a.ID, "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for missing target, got %v", err)
	}
	if _, err := s.Connect("ghost", a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for missing source, got %v", err)
	}
}

func TestConnectDuplicate(t *testing.T) {
	s := New("m")
	a := s.AddNode("a", nil)
	b := s.AddNode("b", nil)
	s.Connect(a.ID, b.ID)

	if _, err := s.Connect(a.ID, b.ID); !errors.Is(err, apperr.ErrValidationFailed) {
		t.Fatalf("expected validation error for duplicate, got %v", err)
	}
	// The reverse direction is a distinct edge.
	if _, err := s.Connect(b.ID, a.ID); err != nil {
		t.Fatalf("reverse connect failed: %v", err)
	}
}

func TestRemoveEdge(t *testing.T) {
	s := New("m")
	a := s.AddNode("a", nil)
	b := s.AddNode("b", nil)
	e, _ := s.Connect(a.ID, b.ID)

	if _, ok := s.RemoveEdge(e.ID); !ok {
		t.Fatal("RemoveEdge should succeed")
	}
	if _, ok := s.RemoveEdge(e.ID); ok {
		t.Error("second RemoveEdge should be a no-op")
	}
	if len(s.Nodes()) != 2 {
		t.Error("removing an edge must not remove nodes")
	}
}

func TestRemoveNodeCascade(t *testing.T) {
	s := New("m")
	a := s.AddNode("Idea A", nil)
	b := s.AddNode("Idea B", nil)
	s.Connect(a.ID, b.ID)

	removed, ok := s.RemoveNode(a.ID)
	if !ok {
		t.Fatal("RemoveNode should succeed")
	}
	if len(removed) != 1 {
		t.Errorf("expected 1 cascaded edge, got %d", len(removed))
	}
	if len(s.Edges()) != 0 {
		t.Errorf("expected no edges, got %d", len(s.Edges()))
	}
	nodes := s.Nodes()
	if len(nodes) != 1 || nodes[0].ID != b.ID {
		t.Errorf("expected only B to remain, got %+v", nodes)
	}
}

func TestRemoveNodeNotFound(t *testing.T) {
	s := New("m")
	s.AddNode("a", nil)
	if _, ok := s.RemoveNode("ghost"); ok {
		t.Error("RemoveNode on unknown id should report false")
	}
	if len(s.Nodes()) != 1 {
		t.Error("store should be unchanged")
	}
}

func TestRemoveNodeRandomizedKeepsEdgesValid(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := New("m")
	var live []string

	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(4); {
		case op == 0 || len(live) < 2:
			live = append(live, s.AddNode("n", nil).ID)
		case op == 1:
			i := rng.Intn(len(live))
			s.RemoveNode(live[i])
			live = append(live[:i], live[i+1:]...)
		default:
			s.Connect(live[rng.Intn(len(live))], live[rng.Intn(len(live))])
		}

		for _, e := range s.Edges() {
			if _, ok := s.Node(e.Source); !ok {
				t.Fatalf("step %d: edge %s has dangling source", step, e.ID)
			}
			if _, ok := s.Node(e.Target); !ok {
				t.Fatalf("step %d: edge %s has dangling target", step, e.ID)
			}
		}
	}
}

func TestHydrateDropsDanglingEdges(t *testing.T) {
	s := New("m")
	nodes := []Node{{ID: "n1", Label: "a"}, {ID: "n2", Label: "b"}}
	edges := []Edge{
		{ID: "e1", Source: "n1", Target: "n2"},
		{ID: "e2", Source: "n1", Target: "gone"},
		{ID: "e3", Source: "n2", Target: "n2"},
	}

	dangling := s.Hydrate(nodes, edges)
	if len(dangling) != 2 {
		t.Errorf("expected 2 dangling edges, got %d", len(dangling))
	}
	if len(s.Edges()) != 1 {
		t.Errorf("expected 1 edge after hydrate, got %d", len(s.Edges()))
	}
	for _, n := range s.Nodes() {
		if n.MapID != "m" {
			t.Errorf("hydrated node should take store map id, got %q", n.MapID)
		}
	}
}

func TestEdgesOf(t *testing.T) {
	s := New("m")
	a := s.AddNode("a", nil)
	b := s.AddNode("b", nil)
	c := s.AddNode("c", nil)
	s.Connect(a.ID, b.ID)
	s.Connect(c.ID, a.ID)

	out, in := s.EdgesOf(a.ID)
	if len(out) != 1 || out[0].Target != b.ID {
		t.Errorf("unexpected outgoing %+v", out)
	}
	if len(in) != 1 || in[0].Source != c.ID {
		t.Errorf("unexpected incoming %+v", in)
	}
	if _, ok := s.FindEdge(a.ID, b.ID); !ok {
		t.Error("FindEdge should locate a->b")
	}
}

func TestStats(t *testing.T) {
	s := New("m")
	a := s.AddNode("a", nil)
	b := s.AddNode("b", nil)
	s.AddNode("lonely", nil)
	s.Connect(a.ID, b.ID)

	st := s.Stats()
	if st.Nodes != 3 || st.Edges != 1 {
		t.Errorf("unexpected counts %+v", st)
	}
	if st.Roots != 2 {
		t.Errorf("expected 2 roots, got %d", st.Roots)
	}
	if st.Isolated != 1 {
		t.Errorf("expected 1 isolated node, got %d", st.Isolated)
	}
}

func TestExportJSON(t *testing.T) {
	s := New("m")
	a := s.AddNode("a", nil)
	b := s.AddNode("b", nil)
	s.Connect(a.ID, b.ID)

	data, err := s.ExportJSON("Plans")
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("exported JSON is invalid: %v", err)
	}
	if snap.Name != "Plans" || len(snap.Nodes) != 2 || len(snap.Edges) != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestExportYAML(t *testing.T) {
	s := New("m")
	s.AddNode("alpha", nil)

	data, err := s.ExportYAML("Plans")
	if err != nil {
		t.Fatalf("ExportYAML failed: %v", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		t.Fatalf("exported YAML is invalid: %v", err)
	}
	if len(snap.Nodes) != 1 || snap.Nodes[0].Label != "alpha" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestExportDOT(t *testing.T) {
	s := New("m")
	a := s.AddNode("Alpha", nil)
	b := s.AddNode("Beta", nil)
	s.Connect(a.ID, b.ID)

	dot := s.ExportDOT("plans")
	if !strings.HasPrefix(dot, `digraph "plans" {`) {
		t.Errorf("unexpected header: %q", dot)
	}
	if !strings.Contains(dot, `label="Alpha"`) {
		t.Error("expected Alpha label in DOT output")
	}
	if !strings.Contains(dot, a.ID+`" -> "`+b.ID) {
		t.Error("expected edge in DOT output")
	}
}

func TestRenderTree(t *testing.T) {
	s := New("m")
	root := s.AddNode("Root", nil)
	c1 := s.AddNode("Child 1", nil)
	c2 := s.AddNode("Child 2", nil)
	s.Connect(root.ID, c1.ID)
	s.Connect(root.ID, c2.ID)

	out := s.RenderTree(func(n Node) string {
		if n.ID == c2.ID {
			return " *"
		}
		return ""
	})
	for _, want := range []string{"Root\n", "├── Child 1\n", "└── Child 2 *\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in tree:\n%s", want, out)
		}
	}
}

func TestRenderTreeCycle(t *testing.T) {
	s := New("m")
	a := s.AddNode("A", nil)
	b := s.AddNode("B", nil)
	s.Connect(a.ID, b.ID)
	s.Connect(b.ID, a.ID)

	out := s.RenderTree(nil)
	if !strings.Contains(out, "A") || !strings.Contains(out, "B") {
		t.Errorf("cycle members missing from tree:\n%s", out)
	}
	if !strings.Contains(out, "↻") {
		t.Errorf("expected revisit marker in tree:\n%s", out)
	}
}

func TestRenderTreeEmpty(t *testing.T) {
	if New("m").RenderTree(nil) != "" {
		t.Error("empty store should render nothing")
	}
}
