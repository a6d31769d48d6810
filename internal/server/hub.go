package server

import (
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/msalah0e/mindmap/internal/docstore"
)

const subscriberBuffer = 64

type subscriber struct {
	prefix string
	ch     chan docstore.Change
}

// Hub fans document changes out to websocket watchers.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// NewHub returns a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers interest in collections starting with prefix. The
// returned cancel func must be called to release the subscription.
func (h *Hub) Subscribe(prefix string) (<-chan docstore.Change, func()) {
	sub := &subscriber{prefix: prefix, ch: make(chan docstore.Change, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Publish delivers c to every matching subscriber. Slow subscribers lose
// events rather than block writers.
func (h *Hub) Publish(c docstore.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !strings.HasPrefix(c.Collection, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			glog.Warningf("[hub]drop %s %s/%s for slow watcher\n", c.Op, c.Collection, c.ID)
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
