// Package ids allocates identifiers for maps, nodes, edges and users.
package ids

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// New returns a fresh lexically sortable identifier. Identifiers created
// later in the same process sort after earlier ones.
func New() string {
	return strings.ToLower(ulid.Make().String())
}

// Valid reports whether s looks like an identifier produced by New.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(strings.ToUpper(s))
	return err == nil
}
