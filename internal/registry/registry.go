// Package registry lists, creates, renames and deletes the maps a user
// owns. Map records live in the owner's user document; a map's nodes and
// edges live in their own collections and are only touched on delete.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang/glog"

	"github.com/msalah0e/mindmap/internal/apperr"
	"github.com/msalah0e/mindmap/internal/auth"
	"github.com/msalah0e/mindmap/internal/docstore"
	"github.com/msalah0e/mindmap/internal/ids"
	"github.com/msalah0e/mindmap/internal/parallel"
)

// Map is a named, owned graph.
type Map struct {
	ID        string    `json:"map_id"`
	Name      string    `json:"map_name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Orphan is a node or edge document left behind by a failed cascade.
type Orphan struct {
	Collection string
	ID         string
	Err        error
}

// DeleteReport describes what a map deletion left behind.
type DeleteReport struct {
	Map     Map
	Deleted int
	Orphans []Orphan
}

// Options tunes a Registry.
type Options struct {
	MinNameLength int
	Concurrency   int
}

// Registry manages the current user's maps.
type Registry struct {
	store    docstore.Store
	identity auth.Identity
	opts     Options
	now      func() time.Time
}

type userMaps struct {
	Maps []Map `json:"maps"`
}

// New returns a registry over store acting as identity's user.
func New(store docstore.Store, identity auth.Identity, opts Options) *Registry {
	if opts.MinNameLength < 1 {
		opts.MinNameLength = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	return &Registry{store: store, identity: identity, opts: opts, now: time.Now}
}

// ValidateName checks a map name against the minimum length rule.
func (r *Registry) ValidateName(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < r.opts.MinNameLength {
		return apperr.Validation("map name must be at least %d characters", r.opts.MinNameLength)
	}
	return nil
}

func (r *Registry) owner() (string, error) {
	uid, ok := r.identity.CurrentUserID()
	if !ok {
		return "", apperr.ErrNoSession
	}
	return uid, nil
}

// List returns the maps owned by ownerID in stored order, which callers
// must not rely on.
func (r *Registry) List(ctx context.Context, ownerID string) ([]Map, error) {
	if ownerID == "" {
		return nil, apperr.ErrNoSession
	}
	var u userMaps
	if err := docstore.GetJSON(ctx, r.store, docstore.Users, ownerID, &u); err != nil {
		return nil, err
	}
	return u.Maps, nil
}

// Owns reports whether uid's user document lists mapID.
func Owns(ctx context.Context, store docstore.Store, uid, mapID string) (bool, error) {
	var u userMaps
	if err := docstore.GetJSON(ctx, store, docstore.Users, uid, &u); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return indexOf(u.Maps, mapID) >= 0, nil
}

// Get returns one of the current user's maps.
func (r *Registry) Get(ctx context.Context, mapID string) (Map, error) {
	uid, err := r.owner()
	if err != nil {
		return Map{}, err
	}
	maps, err := r.List(ctx, uid)
	if err != nil {
		return Map{}, err
	}
	for _, m := range maps {
		if m.ID == mapID {
			return m, nil
		}
	}
	return Map{}, apperr.NotFound("map %s", mapID)
}

// Find resolves ref among the current user's maps: an exact id, a unique
// name ignoring case, or a unique id suffix. A ref shaped like a full id
// only matches by id.
func (r *Registry) Find(ctx context.Context, ref string) (Map, error) {
	uid, err := r.owner()
	if err != nil {
		return Map{}, err
	}
	maps, err := r.List(ctx, uid)
	if err != nil {
		return Map{}, err
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Map{}, apperr.Validation("no map given")
	}

	if ids.Valid(ref) {
		if idx := indexOf(maps, strings.ToLower(ref)); idx >= 0 {
			return maps[idx], nil
		}
		return Map{}, apperr.NotFound("map %s", ref)
	}

	var byName, byID []Map
	for _, m := range maps {
		if m.ID == ref {
			return m, nil
		}
		if strings.EqualFold(m.Name, ref) {
			byName = append(byName, m)
		}
		if len(ref) >= 4 && strings.HasSuffix(m.ID, strings.ToLower(ref)) {
			byID = append(byID, m)
		}
	}
	switch {
	case len(byName) == 1:
		return byName[0], nil
	case len(byName) > 1:
		return Map{}, apperr.Validation("more than one map is named %q; use its id", ref)
	case len(byID) == 1:
		return byID[0], nil
	case len(byID) > 1:
		return Map{}, apperr.Validation("%q matches more than one map id", ref)
	}
	return Map{}, apperr.NotFound("map %q", ref)
}

// Create adds a new empty map for the current user.
func (r *Registry) Create(ctx context.Context, name string) (Map, error) {
	uid, err := r.owner()
	if err != nil {
		return Map{}, err
	}
	if err := r.ValidateName(name); err != nil {
		return Map{}, err
	}
	maps, err := r.List(ctx, uid)
	if err != nil {
		return Map{}, err
	}

	m := Map{ID: ids.New(), Name: strings.TrimSpace(name), OwnerID: uid, CreatedAt: r.now()}
	maps = append(maps, m)
	if err := docstore.Update(ctx, r.store, docstore.Users, uid, map[string]any{"maps": maps}); err != nil {
		return Map{}, err
	}
	return m, nil
}

// Rename changes a map's display name. Node and edge data is untouched.
func (r *Registry) Rename(ctx context.Context, mapID, newName string) (Map, error) {
	uid, err := r.owner()
	if err != nil {
		return Map{}, err
	}
	if err := r.ValidateName(newName); err != nil {
		return Map{}, err
	}
	maps, err := r.List(ctx, uid)
	if err != nil {
		return Map{}, err
	}

	idx := indexOf(maps, mapID)
	if idx < 0 {
		return Map{}, apperr.NotFound("map %s", mapID)
	}
	maps[idx].Name = strings.TrimSpace(newName)
	if err := docstore.Update(ctx, r.store, docstore.Users, uid, map[string]any{"maps": maps}); err != nil {
		return Map{}, err
	}
	return maps[idx], nil
}

// Delete deletes a map's nodes and edges one by one, then removes the map
// record. Cascade failures are reported as orphans rather than failing the
// delete. The record is removed last: a hosted store only lets the
// map's owner touch its collections.
func (r *Registry) Delete(ctx context.Context, mapID string) (DeleteReport, error) {
	uid, err := r.owner()
	if err != nil {
		return DeleteReport{}, err
	}
	maps, err := r.List(ctx, uid)
	if err != nil {
		return DeleteReport{}, err
	}
	idx := indexOf(maps, mapID)
	if idx < 0 {
		return DeleteReport{}, apperr.NotFound("map %s", mapID)
	}
	report := DeleteReport{Map: maps[idx]}

	var tasks []parallel.Task
	for _, coll := range []string{docstore.EdgesOf(mapID), docstore.NodesOf(mapID)} {
		docs, err := r.store.List(ctx, coll)
		if err != nil {
			glog.Warningf("[registry]cannot list %s for cascade: %v\n", coll, err)
			report.Orphans = append(report.Orphans, Orphan{Collection: coll, Err: err})
			continue
		}
		for _, d := range docs {
			tasks = append(tasks, parallel.Task{
				Name: coll + "/" + d.ID,
				Fn: func(ctx context.Context) error {
					return r.store.Delete(ctx, coll, d.ID)
				},
			})
		}
	}

	results := parallel.Run(ctx, tasks, r.opts.Concurrency)
	failed := parallel.Failures(results)
	report.Deleted = len(results) - len(failed)
	for _, res := range failed {
		coll, id := splitTaskName(res.Name)
		glog.Warningf("[registry]orphaned %s/%s: %v\n", coll, id, res.Err)
		report.Orphans = append(report.Orphans, Orphan{Collection: coll, ID: id, Err: res.Err})
	}

	remaining := append(maps[:idx:idx], maps[idx+1:]...)
	if err := docstore.Update(ctx, r.store, docstore.Users, uid, map[string]any{"maps": remaining}); err != nil {
		return DeleteReport{}, err
	}
	return report, nil
}

// Warning summarizes orphans for display; empty when the cascade was clean.
func (d DeleteReport) Warning() string {
	if len(d.Orphans) == 0 {
		return ""
	}
	return fmt.Sprintf("%d node/edge documents of %q could not be deleted", len(d.Orphans), d.Map.Name)
}

func indexOf(maps []Map, id string) int {
	for i, m := range maps {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func splitTaskName(name string) (collection, id string) {
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}
