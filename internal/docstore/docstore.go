// Package docstore is the document database contract the editor persists
// to. Documents are JSON blobs addressed by a collection path and an id,
// in the style of hosted document stores:
//
//	users/<uid>
//	accounts/<uid>
//	maps/<mapId>/nodes/<nodeId>
//	maps/<mapId>/edges/<edgeId>
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/msalah0e/mindmap/internal/apperr"
)

// Users is the collection holding one document per account.
const Users = "users"

// Accounts holds login credentials, one document per user. A hosted
// store never serves it to clients.
const Accounts = "accounts"

// Document is a stored JSON value.
type Document struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Change describes a write observed by a watcher.
type Change struct {
	Op         string    `json:"op"` // "set" or "delete"
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
}

// Change operations.
const (
	OpSet    = "set"
	OpDelete = "delete"
)

// Store is a collection-scoped document database.
//
// Get returns an error wrapping apperr.ErrNotFound for a missing document.
// Delete of a missing document succeeds. List returns documents in no
// particular order. Backend failures wrap apperr.ErrRemoteUnavailable.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	Set(ctx context.Context, collection, id string, data []byte) error
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// NodesOf returns the collection path of a map's nodes.
func NodesOf(mapID string) string {
	return "maps/" + mapID + "/nodes"
}

// EdgesOf returns the collection path of a map's edges.
func EdgesOf(mapID string) string {
	return "maps/" + mapID + "/edges"
}

// MapPrefix returns the prefix shared by every collection of a map.
func MapPrefix(mapID string) string {
	return "maps/" + mapID + "/"
}

// MapOf returns the map id of a node or edge collection path.
func MapOf(collection string) (string, bool) {
	parts := strings.Split(collection, "/")
	if len(parts) != 3 || parts[0] != "maps" || parts[1] == "" {
		return "", false
	}
	if parts[2] != "nodes" && parts[2] != "edges" {
		return "", false
	}
	return parts[1], true
}

// ValidCollection reports whether a collection path is well formed.
func ValidCollection(c string) bool {
	if c == "" || strings.HasPrefix(c, "/") || strings.HasSuffix(c, "/") {
		return false
	}
	for _, part := range strings.Split(c, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

// GetJSON fetches a document and decodes it into v.
func GetJSON(ctx context.Context, s Store, collection, id string, v any) error {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	return doc.Decode(v)
}

// SetJSON encodes v and stores it.
func SetJSON(ctx context.Context, s Store, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return s.Set(ctx, collection, id, data)
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

func checkKey(collection, id string) error {
	if !ValidCollection(collection) {
		return apperr.Validation("invalid collection %q", collection)
	}
	if id == "" || strings.Contains(id, "/") {
		return apperr.Validation("invalid document id %q", id)
	}
	return nil
}

// Update merges fields into the top level of an existing document, leaving
// other fields untouched. It fails with apperr.ErrNotFound when the
// document does not exist.
func Update(ctx context.Context, s Store, collection, id string, fields map[string]any) error {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	merged := make(map[string]json.RawMessage)
	if err := json.Unmarshal(doc.Data, &merged); err != nil {
		return fmt.Errorf("update %s/%s: document is not an object: %w", collection, id, err)
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("update %s/%s: encode %s: %w", collection, id, k, err)
		}
		merged[k] = raw
	}
	return SetJSON(ctx, s, collection, id, merged)
}
