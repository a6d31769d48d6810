// Package graph holds the in-memory node and edge collections of one open
// map. It knows nothing about persistence; callers mirror mutations to the
// document store themselves.
package graph

import (
	"sort"
	"strings"
	"time"

	"github.com/msalah0e/mindmap/internal/apperr"
	"github.com/msalah0e/mindmap/internal/ids"
)

// Grid spacing used when a node is added without an explicit position.
const (
	gridColumns = 5
	gridStepX   = 200
	gridStepY   = 120
)

// Position is a 2D coordinate on the diagram canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a labeled point in a map.
type Node struct {
	ID        string    `json:"id" yaml:"id"`
	MapID     string    `json:"map_id" yaml:"map_id"`
	Label     string    `json:"label" yaml:"label"`
	Position  Position  `json:"position" yaml:"position"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Edge is a directed connection between two nodes of the same map.
type Edge struct {
	ID        string    `json:"id" yaml:"id"`
	MapID     string    `json:"map_id" yaml:"map_id"`
	Source    string    `json:"source" yaml:"source"`
	Target    string    `json:"target" yaml:"target"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Stats holds summary counts.
type Stats struct {
	Nodes    int
	Edges    int
	Roots    int
	Isolated int
}

// Store owns the nodes and edges of a single map. It is not safe for
// concurrent use; an editing session applies one gesture at a time.
type Store struct {
	mapID string
	nodes map[string]*Node
	edges map[string]*Edge
	now   func() time.Time
}

// New creates an empty store for mapID.
func New(mapID string) *Store {
	return &Store{
		mapID: mapID,
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
		now:   time.Now,
	}
}

// MapID returns the map this store belongs to.
func (s *Store) MapID() string {
	return s.mapID
}

// Hydrate replaces the store contents with previously persisted entities.
// Edges whose endpoints are missing are dropped and returned so the caller
// can clean them up remotely.
func (s *Store) Hydrate(nodes []Node, edges []Edge) (dangling []Edge) {
	s.nodes = make(map[string]*Node, len(nodes))
	s.edges = make(map[string]*Edge, len(edges))

	for i := range nodes {
		n := nodes[i]
		if n.ID == "" {
			continue
		}
		n.MapID = s.mapID
		s.nodes[n.ID] = &n
	}
	for i := range edges {
		e := edges[i]
		if e.ID == "" {
			continue
		}
		_, srcOK := s.nodes[e.Source]
		_, tgtOK := s.nodes[e.Target]
		if !srcOK || !tgtOK || e.Source == e.Target {
			dangling = append(dangling, e)
			continue
		}
		e.MapID = s.mapID
		s.edges[e.ID] = &e
	}
	return dangling
}

// ─── Nodes ───

// AddNode inserts a node with a fresh identifier. A nil position places the
// node on the next free slot of a simple grid.
func (s *Store) AddNode(label string, pos *Position) Node {
	now := s.now()
	n := &Node{
		ID:        ids.New(),
		MapID:     s.mapID,
		Label:     strings.TrimSpace(label),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pos != nil {
		n.Position = *pos
	} else {
		n.Position = s.defaultPosition()
	}
	s.nodes[n.ID] = n
	return *n
}

// defaultPosition returns the first grid slot no node sits on.
func (s *Store) defaultPosition() Position {
	taken := make(map[Position]bool, len(s.nodes))
	for _, n := range s.nodes {
		taken[n.Position] = true
	}
	for i := 0; ; i++ {
		p := Position{
			X: float64((i % gridColumns) * gridStepX),
			Y: float64((i / gridColumns) * gridStepY),
		}
		if !taken[p] {
			return p
		}
	}
}

// Node returns the node with the given id.
func (s *Store) Node(id string) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// RemoveNode deletes a node and every edge touching it. It returns the
// removed edges and false when the node did not exist.
func (s *Store) RemoveNode(id string) ([]Edge, bool) {
	if _, ok := s.nodes[id]; !ok {
		return nil, false
	}
	delete(s.nodes, id)

	var removed []Edge
	for eid, e := range s.edges {
		if e.Source == id || e.Target == id {
			removed = append(removed, *e)
			delete(s.edges, eid)
		}
	}
	sortEdges(removed)
	return removed, true
}

// EditNode replaces a node's label. Unknown ids are ignored.
func (s *Store) EditNode(id, label string) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	n.Label = strings.TrimSpace(label)
	n.UpdatedAt = s.now()
	return *n, true
}

// MoveNode sets a node's position. Unknown ids are ignored.
func (s *Store) MoveNode(id string, pos Position) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	n.Position = pos
	n.UpdatedAt = s.now()
	return *n, true
}

// Nodes returns all nodes in creation order.
func (s *Store) Nodes() []Node {
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ─── Edges ───

// Connect links source to target. Self-loops and duplicate connections are
// rejected with a validation error; unknown endpoints with not found.
func (s *Store) Connect(source, target string) (Edge, error) {
	if source == target {
		return Edge{}, apperr.Validation("cannot connect a node to itself")
	}
	if _, ok := s.nodes[source]; !ok {
		return Edge{}, apperr.NotFound("node %s", source)
	}
	if _, ok := s.nodes[target]; !ok {
		return Edge{}, apperr.NotFound("node %s", target)
	}
	for _, e := range s.edges {
		if e.Source == source && e.Target == target {
			return Edge{}, apperr.Validation("nodes are already connected")
		}
	}

	e := &Edge{
		ID:        ids.New(),
		MapID:     s.mapID,
		Source:    source,
		Target:    target,
		CreatedAt: s.now(),
	}
	s.edges[e.ID] = e
	return *e, nil
}

// RemoveEdge deletes an edge. It returns false when the edge did not exist.
func (s *Store) RemoveEdge(id string) (Edge, bool) {
	e, ok := s.edges[id]
	if !ok {
		return Edge{}, false
	}
	delete(s.edges, id)
	return *e, true
}

// Edges returns all edges in creation order.
func (s *Store) Edges() []Edge {
	out := make([]Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, *e)
	}
	sortEdges(out)
	return out
}

// EdgesOf returns outgoing and incoming edges of a node.
func (s *Store) EdgesOf(id string) (outgoing, incoming []Edge) {
	for _, e := range s.Edges() {
		if e.Source == id {
			outgoing = append(outgoing, e)
		}
		if e.Target == id {
			incoming = append(incoming, e)
		}
	}
	return outgoing, incoming
}

// FindEdge returns the edge from source to target, if any.
func (s *Store) FindEdge(source, target string) (Edge, bool) {
	for _, e := range s.edges {
		if e.Source == source && e.Target == target {
			return *e, true
		}
	}
	return Edge{}, false
}

// Stats returns summary counts.
func (s *Store) Stats() Stats {
	hasIn := make(map[string]bool)
	hasAny := make(map[string]bool)
	for _, e := range s.edges {
		hasIn[e.Target] = true
		hasAny[e.Source] = true
		hasAny[e.Target] = true
	}
	st := Stats{Nodes: len(s.nodes), Edges: len(s.edges)}
	for id := range s.nodes {
		if !hasIn[id] {
			st.Roots++
		}
		if !hasAny[id] {
			st.Isolated++
		}
	}
	return st
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
}
