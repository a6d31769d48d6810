// Package remote mirrors an editing session's graph to the document store.
//
// Writes are optimistic: the caller applies a mutation locally first and
// hands it to Sync, which persists it in the background. Failures are
// logged and reported to an optional handler but never retried or rolled
// back. Calls are applied in dispatch order so a delete cannot overtake
// the write it follows.
package remote

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/msalah0e/mindmap/internal/apperr"
	"github.com/msalah0e/mindmap/internal/docstore"
	"github.com/msalah0e/mindmap/internal/graph"
)

// DefaultTimeout bounds each remote call when none is configured.
const DefaultTimeout = 10 * time.Second

// ErrorHandler receives failed background operations.
type ErrorHandler func(op string, err error)

type call struct {
	op string
	fn func(ctx context.Context) error
}

// Sync is the bridge between a session's graph and a docstore.Store.
type Sync struct {
	store   docstore.Store
	timeout time.Duration

	mu      sync.Mutex
	queue   []call
	running bool
	onError ErrorHandler

	wg      sync.WaitGroup
	pending atomic.Int64
	failed  atomic.Int64
}

// New returns a Sync writing to store, bounding each call by timeout.
func New(store docstore.Store, timeout time.Duration) *Sync {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sync{store: store, timeout: timeout}
}

// OnError installs a handler for background failures. It runs on the
// sync goroutine.
func (s *Sync) OnError(fn ErrorHandler) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// Load fetches every persisted node and edge of mapID. Undecodable
// documents are skipped with a warning.
func (s *Sync) Load(ctx context.Context, mapID string) ([]graph.Node, []graph.Edge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	nodeDocs, err := s.store.List(ctx, docstore.NodesOf(mapID))
	if err != nil {
		return nil, nil, unavailable("load nodes", err)
	}
	edgeDocs, err := s.store.List(ctx, docstore.EdgesOf(mapID))
	if err != nil {
		return nil, nil, unavailable("load edges", err)
	}

	nodes := make([]graph.Node, 0, len(nodeDocs))
	for _, d := range nodeDocs {
		var n graph.Node
		if err := d.Decode(&n); err != nil {
			glog.Warningf("[sync]skip node %s in map %s: %v\n", d.ID, mapID, err)
			continue
		}
		n.ID = d.ID
		nodes = append(nodes, n)
	}
	edges := make([]graph.Edge, 0, len(edgeDocs))
	for _, d := range edgeDocs {
		var e graph.Edge
		if err := d.Decode(&e); err != nil {
			glog.Warningf("[sync]skip edge %s in map %s: %v\n", d.ID, mapID, err)
			continue
		}
		e.ID = d.ID
		edges = append(edges, e)
	}
	return nodes, edges, nil
}

// PersistNode upserts n in the background.
func (s *Sync) PersistNode(mapID string, n graph.Node) {
	s.dispatch("persist node "+n.ID, func(ctx context.Context) error {
		return docstore.SetJSON(ctx, s.store, docstore.NodesOf(mapID), n.ID, n)
	})
}

// PersistEdge upserts e in the background.
func (s *Sync) PersistEdge(mapID string, e graph.Edge) {
	s.dispatch("persist edge "+e.ID, func(ctx context.Context) error {
		return docstore.SetJSON(ctx, s.store, docstore.EdgesOf(mapID), e.ID, e)
	})
}

// DeleteNode removes a node document in the background.
func (s *Sync) DeleteNode(mapID, nodeID string) {
	s.dispatch("delete node "+nodeID, func(ctx context.Context) error {
		return s.store.Delete(ctx, docstore.NodesOf(mapID), nodeID)
	})
}

// DeleteEdge removes an edge document in the background.
func (s *Sync) DeleteEdge(mapID, edgeID string) {
	s.dispatch("delete edge "+edgeID, func(ctx context.Context) error {
		return s.store.Delete(ctx, docstore.EdgesOf(mapID), edgeID)
	})
}

// Wait blocks until every dispatched call has finished.
func (s *Sync) Wait() {
	s.wg.Wait()
}

// Pending returns the number of calls not yet finished.
func (s *Sync) Pending() int {
	return int(s.pending.Load())
}

// Failed returns how many background calls have failed so far.
func (s *Sync) Failed() int {
	return int(s.failed.Load())
}

func (s *Sync) dispatch(op string, fn func(ctx context.Context) error) {
	s.pending.Add(1)
	s.wg.Add(1)

	s.mu.Lock()
	s.queue = append(s.queue, call{op: op, fn: fn})
	if !s.running {
		s.running = true
		go s.drain()
	}
	s.mu.Unlock()
}

func (s *Sync) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.run(c)
		s.pending.Add(-1)
		s.wg.Done()
	}
}

func (s *Sync) run(c call) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := c.fn(ctx)
	if err == nil {
		glog.V(2).Infof("[sync]%s ok\n", c.op)
		return
	}
	err = unavailable(c.op, err)
	s.failed.Add(1)
	glog.Warningf("[sync]%s failed: %v\n", c.op, err)

	s.mu.Lock()
	handler := s.onError
	s.mu.Unlock()
	if handler != nil {
		handler(c.op, err)
	}
}

// unavailable maps timeouts to ErrRemoteUnavailable and leaves other
// error kinds alone.
func unavailable(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Unavailable(op, err)
	}
	return err
}
