// Package session is one open map: its graph, its selection and the
// mirror that persists every change. Sessions share nothing, so two maps
// can be open side by side without cross-talk.
package session

import (
	"context"
	"errors"
	"strings"

	"github.com/golang/glog"

	"github.com/msalah0e/mindmap/internal/apperr"
	"github.com/msalah0e/mindmap/internal/auth"
	"github.com/msalah0e/mindmap/internal/graph"
	"github.com/msalah0e/mindmap/internal/selection"
)

// Mirror persists graph changes. *remote.Sync implements it.
type Mirror interface {
	Load(ctx context.Context, mapID string) ([]graph.Node, []graph.Edge, error)
	PersistNode(mapID string, n graph.Node)
	PersistEdge(mapID string, e graph.Edge)
	DeleteNode(mapID, nodeID string)
	DeleteEdge(mapID, edgeID string)
	Wait()
}

// Session edits a single map.
type Session struct {
	identity auth.Identity
	mirror   Mirror
	graph    *graph.Store
	sel      selection.Tracker
}

// Open loads mapID and returns a session over it. When the store is
// unreachable the session is still returned, empty, together with the
// error so the caller can tell the user.
func Open(ctx context.Context, identity auth.Identity, mirror Mirror, mapID string) (*Session, error) {
	if _, ok := identity.CurrentUserID(); !ok {
		return nil, apperr.ErrNoSession
	}
	s := &Session{identity: identity, mirror: mirror, graph: graph.New(mapID)}

	nodes, edges, err := mirror.Load(ctx, mapID)
	if err != nil {
		if errors.Is(err, apperr.ErrRemoteUnavailable) {
			glog.Warningf("[session]map %s opened empty: %v\n", mapID, err)
			return s, err
		}
		return nil, err
	}
	for _, e := range s.graph.Hydrate(nodes, edges) {
		glog.Warningf("[session]dropping dangling edge %s (%s -> %s)\n", e.ID, e.Source, e.Target)
		mirror.DeleteEdge(mapID, e.ID)
	}
	glog.V(1).Infof("[session]opened map %s: %d nodes, %d edges\n", mapID, len(nodes), len(edges))
	return s, nil
}

// MapID returns the id of the open map.
func (s *Session) MapID() string { return s.graph.MapID() }

// Graph exposes the graph for reading. Mutate through the session so
// changes reach the store.
func (s *Session) Graph() *graph.Store { return s.graph }

// Flush waits for pending writes.
func (s *Session) Flush() { s.mirror.Wait() }

func (s *Session) authorize() error {
	if _, ok := s.identity.CurrentUserID(); !ok {
		return apperr.ErrNoSession
	}
	return nil
}

func checkLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return apperr.Validation("label must not be empty")
	}
	return nil
}

// ─── Selection ───

// Select marks id as the selected node.
func (s *Session) Select(id string) error {
	if _, ok := s.graph.Node(id); !ok {
		return apperr.NotFound("node %s", id)
	}
	s.sel.Select(id)
	return nil
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() { s.sel.Clear() }

// Selected returns the selected node.
func (s *Session) Selected() (graph.Node, bool) {
	id, ok := s.sel.Selected()
	if !ok {
		return graph.Node{}, false
	}
	return s.graph.Node(id)
}

func (s *Session) selectedID() (string, error) {
	id, ok := s.sel.Selected()
	if !ok {
		return "", apperr.Validation("no selection")
	}
	return id, nil
}

// ─── Nodes ───

// AddNode creates a node. With a node selected, the new node is connected
// as its child.
func (s *Session) AddNode(label string, pos *graph.Position) (graph.Node, error) {
	if err := s.authorize(); err != nil {
		return graph.Node{}, err
	}
	if err := checkLabel(label); err != nil {
		return graph.Node{}, err
	}
	mapID := s.MapID()
	n := s.graph.AddNode(label, pos)
	s.mirror.PersistNode(mapID, n)

	if parent, ok := s.sel.Selected(); ok {
		e, err := s.graph.Connect(parent, n.ID)
		if err != nil {
			return n, err
		}
		s.mirror.PersistEdge(mapID, e)
	}
	return n, nil
}

// RemoveNode deletes a node and its edges. Unknown ids are a no-op
// reported as false.
func (s *Session) RemoveNode(id string) (bool, error) {
	if err := s.authorize(); err != nil {
		return false, err
	}
	edges, ok := s.graph.RemoveNode(id)
	if !ok {
		return false, nil
	}
	s.sel.ClearIf(id)

	mapID := s.MapID()
	for _, e := range edges {
		s.mirror.DeleteEdge(mapID, e.ID)
	}
	s.mirror.DeleteNode(mapID, id)
	return true, nil
}

// RemoveSelected deletes the selected node.
func (s *Session) RemoveSelected() (bool, error) {
	if err := s.authorize(); err != nil {
		return false, err
	}
	id, err := s.selectedID()
	if err != nil {
		return false, err
	}
	return s.RemoveNode(id)
}

// EditNode relabels a node. Unknown ids are a no-op reported as false.
func (s *Session) EditNode(id, label string) (bool, error) {
	if err := s.authorize(); err != nil {
		return false, err
	}
	if err := checkLabel(label); err != nil {
		return false, err
	}
	n, ok := s.graph.EditNode(id, label)
	if !ok {
		return false, nil
	}
	s.mirror.PersistNode(s.MapID(), n)
	return true, nil
}

// EditSelected relabels the selected node.
func (s *Session) EditSelected(label string) (bool, error) {
	if err := s.authorize(); err != nil {
		return false, err
	}
	id, err := s.selectedID()
	if err != nil {
		return false, err
	}
	return s.EditNode(id, label)
}

// MoveNode repositions a node. Unknown ids are a no-op reported as false.
func (s *Session) MoveNode(id string, pos graph.Position) (bool, error) {
	if err := s.authorize(); err != nil {
		return false, err
	}
	n, ok := s.graph.MoveNode(id, pos)
	if !ok {
		return false, nil
	}
	s.mirror.PersistNode(s.MapID(), n)
	return true, nil
}

// ─── Edges ───

// Connect links source to target.
func (s *Session) Connect(source, target string) (graph.Edge, error) {
	if err := s.authorize(); err != nil {
		return graph.Edge{}, err
	}
	e, err := s.graph.Connect(source, target)
	if err != nil {
		return graph.Edge{}, err
	}
	s.mirror.PersistEdge(s.MapID(), e)
	return e, nil
}

// RemoveEdge deletes an edge. Unknown ids are a no-op reported as false.
func (s *Session) RemoveEdge(id string) (bool, error) {
	if err := s.authorize(); err != nil {
		return false, err
	}
	if _, ok := s.graph.RemoveEdge(id); !ok {
		return false, nil
	}
	s.mirror.DeleteEdge(s.MapID(), id)
	return true, nil
}

// Disconnect removes the edge from source to target, if any.
func (s *Session) Disconnect(source, target string) (bool, error) {
	if err := s.authorize(); err != nil {
		return false, err
	}
	e, ok := s.graph.FindEdge(source, target)
	if !ok {
		return false, nil
	}
	return s.RemoveEdge(e.ID)
}
