package remote

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/msalah0e/mindmap/internal/apperr"
	"github.com/msalah0e/mindmap/internal/docstore"
	"github.com/msalah0e/mindmap/internal/graph"
)

// flakyStore fails every call while down is set and can stall writes.
type flakyStore struct {
	*docstore.Memory
	mu    sync.Mutex
	down  bool
	stall time.Duration
}

func (f *flakyStore) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return apperr.Unavailable("flaky", errors.New("connection refused"))
	}
	return nil
}

func (f *flakyStore) List(ctx context.Context, c string) ([]docstore.Document, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Memory.List(ctx, c)
}

func (f *flakyStore) Set(ctx context.Context, c, id string, data []byte) error {
	if err := f.fail(); err != nil {
		return err
	}
	if f.stall > 0 {
		select {
		case <-time.After(f.stall):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.Memory.Set(ctx, c, id, data)
}

func (f *flakyStore) Delete(ctx context.Context, c, id string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Memory.Delete(ctx, c, id)
}

func TestLoadRoundTrip(t *testing.T) {
	store := docstore.NewMemory()
	s := New(store, time.Second)

	g := graph.New("m1")
	a := g.AddNode("Idea A", nil)
	b := g.AddNode("Idea B", &graph.Position{X: 5, Y: 6})
	c := g.AddNode("Idea C", nil)
	e1, _ := g.Connect(a.ID, b.ID)
	e2, _ := g.Connect(b.ID, c.ID)

	for _, n := range g.Nodes() {
		s.PersistNode("m1", n)
	}
	s.PersistEdge("m1", e1)
	s.PersistEdge("m1", e2)
	s.Wait()

	nodes, edges, err := s.Load(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	want := g.Nodes()
	if len(nodes) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(nodes))
	}
	for i := range want {
		if nodes[i].ID != want[i].ID || nodes[i].Label != want[i].Label || nodes[i].Position != want[i].Position {
			t.Errorf("node %d mismatch: got %+v want %+v", i, nodes[i], want[i])
		}
	}
	if len(edges) != 2 || edges[0].ID != e1.ID || edges[1].Source != b.ID || edges[1].Target != c.ID {
		t.Errorf("unexpected edges %+v", edges)
	}
}

func TestLoadIsScopedByMap(t *testing.T) {
	store := docstore.NewMemory()
	s := New(store, time.Second)

	s.PersistNode("m1", graph.Node{ID: "n1", Label: "mine"})
	s.PersistNode("m2", graph.Node{ID: "n2", Label: "other"})
	s.Wait()

	nodes, _, err := s.Load(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "n1" {
		t.Errorf("expected only m1's node, got %+v", nodes)
	}
}

func TestDeletes(t *testing.T) {
	store := docstore.NewMemory()
	s := New(store, time.Second)

	s.PersistNode("m", graph.Node{ID: "n1"})
	s.PersistEdge("m", graph.Edge{ID: "e1", Source: "n1", Target: "n1"})
	s.DeleteEdge("m", "e1")
	s.DeleteNode("m", "n1")
	s.Wait()

	nodes, edges, err := s.Load(context.Background(), "m")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(nodes) != 0 || len(edges) != 0 {
		t.Errorf("expected empty map, got %d nodes %d edges", len(nodes), len(edges))
	}
}

func TestOrderingPreserved(t *testing.T) {
	store := &flakyStore{Memory: docstore.NewMemory(), stall: 20 * time.Millisecond}
	s := New(store, time.Second)

	// A slow write followed by a fast delete must not resurrect the node.
	s.PersistNode("m", graph.Node{ID: "n1"})
	s.DeleteNode("m", "n1")
	if s.Pending() == 0 {
		t.Error("expected pending calls right after dispatch")
	}
	s.Wait()

	if _, err := store.Get(context.Background(), docstore.NodesOf("m"), "n1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected node deleted, got %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("expected no pending calls, got %d", s.Pending())
	}
}

func TestLoadUnavailable(t *testing.T) {
	store := &flakyStore{Memory: docstore.NewMemory(), down: true}
	s := New(store, time.Second)

	_, _, err := s.Load(context.Background(), "m")
	if !errors.Is(err, apperr.ErrRemoteUnavailable) {
		t.Fatalf("expected remote unavailable, got %v", err)
	}
}

func TestFailuresAreReportedNotRetried(t *testing.T) {
	store := &flakyStore{Memory: docstore.NewMemory(), down: true}
	s := New(store, time.Second)

	var mu sync.Mutex
	var ops []string
	s.OnError(func(op string, err error) {
		if !errors.Is(err, apperr.ErrRemoteUnavailable) {
			t.Errorf("expected unavailable error, got %v", err)
		}
		mu.Lock()
		ops = append(ops, op)
		mu.Unlock()
	})

	s.PersistNode("m", graph.Node{ID: "n1"})
	s.DeleteEdge("m", "e1")
	s.Wait()

	if len(ops) != 2 {
		t.Fatalf("expected 2 reported failures, got %v", ops)
	}
	if s.Failed() != 2 {
		t.Errorf("expected failed count 2, got %d", s.Failed())
	}

	// Coming back online does not replay the lost write.
	store.mu.Lock()
	store.down = false
	store.mu.Unlock()
	nodes, _, err := s.Load(context.Background(), "m")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("failed write should not have been retried, got %d nodes", len(nodes))
	}
}

func TestTimeoutIsUnavailable(t *testing.T) {
	store := &flakyStore{Memory: docstore.NewMemory(), stall: time.Second}
	s := New(store, 20*time.Millisecond)

	errs := make(chan error, 1)
	s.OnError(func(op string, err error) { errs <- err })
	s.PersistNode("m", graph.Node{ID: "slow"})
	s.Wait()

	select {
	case err := <-errs:
		if !errors.Is(err, apperr.ErrRemoteUnavailable) {
			t.Errorf("expected unavailable after timeout, got %v", err)
		}
	default:
		t.Fatal("expected timeout to be reported")
	}
}

func TestLoadSkipsCorruptDocuments(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()
	store.Set(ctx, docstore.NodesOf("m"), "good", []byte(`{"label":"ok"}`))
	store.Set(ctx, docstore.NodesOf("m"), "bad", []byte(`{"label":42}`))

	nodes, _, err := New(store, time.Second).Load(ctx, "m")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "good" {
		t.Errorf("expected only the decodable node, got %+v", nodes)
	}
}
