package view

import (
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/msalah0e/mindmap/internal/apperr"
	"github.com/msalah0e/mindmap/internal/graph"
	"github.com/msalah0e/mindmap/internal/session"
	"github.com/msalah0e/mindmap/internal/ui"
)

// shortIDLen is how many trailing id characters Render shows; shorter
// suffixes are too likely to collide.
const (
	shortIDLen   = 6
	minSuffixLen = 4
)

// ShortID returns the suffix of id shown next to node labels.
func ShortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[len(id)-shortIDLen:]
}

// Dispatch applies cmd to sess. It never panics; every failure becomes a
// notice and the session stays usable.
func Dispatch(sess *session.Session, cmd Command) (n ui.Notice) {
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("[view]command %T panicked: %v\n", cmd, r)
			n = ui.FromError(fmt.Errorf("internal error: %v", r))
		}
	}()

	switch c := cmd.(type) {
	case AddNode:
		node, err := sess.AddNode(c.Label, c.Position)
		if err != nil {
			return ui.FromError(err)
		}
		if parent, ok := sess.Selected(); ok {
			return ui.Success("added %q under %q", node.Label, parent.Label)
		}
		return ui.Success("added %q", node.Label)

	case RemoveNode:
		node, err := resolveOrSelected(sess, c.Ref)
		if err != nil {
			return ui.FromError(err)
		}
		if _, err := sess.RemoveNode(node.ID); err != nil {
			return ui.FromError(err)
		}
		return ui.Success("removed %q", node.Label)

	case EditNode:
		node, err := resolveOrSelected(sess, c.Ref)
		if err != nil {
			return ui.FromError(err)
		}
		if _, err := sess.EditNode(node.ID, c.Label); err != nil {
			return ui.FromError(err)
		}
		return ui.Success("renamed %q to %q", node.Label, strings.TrimSpace(c.Label))

	case Connect:
		src, tgt, err := resolvePair(sess, c.Source, c.Target)
		if err != nil {
			return ui.FromError(err)
		}
		if _, err := sess.Connect(src.ID, tgt.ID); err != nil {
			return ui.FromError(err)
		}
		return ui.Success("connected %q → %q", src.Label, tgt.Label)

	case Disconnect:
		src, tgt, err := resolvePair(sess, c.Source, c.Target)
		if err != nil {
			return ui.FromError(err)
		}
		ok, err := sess.Disconnect(src.ID, tgt.ID)
		if err != nil {
			return ui.FromError(err)
		}
		if !ok {
			return ui.Infof("%q is not connected to %q", src.Label, tgt.Label)
		}
		return ui.Success("disconnected %q → %q", src.Label, tgt.Label)

	case Select:
		if c.Ref == "" {
			sess.ClearSelection()
			return ui.Infof("selection cleared")
		}
		node, err := Resolve(sess.Graph(), c.Ref)
		if err != nil {
			return ui.FromError(err)
		}
		if err := sess.Select(node.ID); err != nil {
			return ui.FromError(err)
		}
		return ui.Infof("selected %q", node.Label)

	case Move:
		node, err := resolveOrSelected(sess, c.Ref)
		if err != nil {
			return ui.FromError(err)
		}
		if _, err := sess.MoveNode(node.ID, c.Position); err != nil {
			return ui.FromError(err)
		}
		return ui.Success("moved %q to (%g, %g)", node.Label, c.Position.X, c.Position.Y)

	case Show:
		return ui.Infof("%s", strings.TrimRight(Render(sess), "\n"))

	case Help:
		return ui.Infof("commands:\n%s", Usage)
	}
	return ui.FromError(apperr.Validation("unsupported command %T", cmd))
}

// Render draws the session's map as a tree. Each node shows its short id;
// the selected node is starred.
func Render(sess *session.Session) string {
	g := sess.Graph()
	if len(g.Nodes()) == 0 {
		return "(empty map)\n"
	}
	selected, _ := sess.Selected()
	tree := g.RenderTree(func(n graph.Node) string {
		mark := "  [" + ShortID(n.ID) + "]"
		if n.ID == selected.ID {
			mark += " *"
		}
		return mark
	})
	st := g.Stats()
	return tree + fmt.Sprintf("%d nodes, %d edges\n", st.Nodes, st.Edges)
}

// Resolve finds the node ref points to: an exact id, a unique label or a
// unique id suffix of at least minSuffixLen characters. Comparisons
// ignore case.
func Resolve(g *graph.Store, ref string) (graph.Node, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return graph.Node{}, apperr.Validation("no node given")
	}
	if n, ok := g.Node(ref); ok {
		return n, nil
	}

	lower := strings.ToLower(ref)
	var byLabel, byID []graph.Node
	for _, n := range g.Nodes() {
		if strings.EqualFold(n.Label, ref) {
			byLabel = append(byLabel, n)
		}
		if len(ref) >= minSuffixLen && strings.HasSuffix(strings.ToLower(n.ID), lower) {
			byID = append(byID, n)
		}
	}
	switch {
	case len(byLabel) == 1:
		return byLabel[0], nil
	case len(byLabel) > 1:
		return graph.Node{}, apperr.Validation("%q matches more than one node; use its id", ref)
	case len(byID) == 1:
		return byID[0], nil
	case len(byID) > 1:
		return graph.Node{}, apperr.Validation("%q matches more than one node id", ref)
	}
	return graph.Node{}, apperr.NotFound("node %q", ref)
}

func resolveOrSelected(sess *session.Session, ref string) (graph.Node, error) {
	if ref != "" {
		return Resolve(sess.Graph(), ref)
	}
	n, ok := sess.Selected()
	if !ok {
		return graph.Node{}, apperr.Validation("no selection")
	}
	return n, nil
}

func resolvePair(sess *session.Session, a, b string) (graph.Node, graph.Node, error) {
	src, err := Resolve(sess.Graph(), a)
	if err != nil {
		return graph.Node{}, graph.Node{}, err
	}
	tgt, err := Resolve(sess.Graph(), b)
	if err != nil {
		return graph.Node{}, graph.Node{}, err
	}
	return src, tgt, nil
}
