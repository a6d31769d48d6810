// Package selection tracks the single selected node of an editing session.
package selection

// Tracker holds at most one selected node id. The zero value has no
// selection. Each session owns its own Tracker.
type Tracker struct {
	id string
}

// Select makes id the selected node, replacing any prior selection.
func (t *Tracker) Select(id string) {
	t.id = id
}

// Clear empties the selection.
func (t *Tracker) Clear() {
	t.id = ""
}

// Selected returns the selected node id.
func (t *Tracker) Selected() (string, bool) {
	return t.id, t.id != ""
}

// Is reports whether id is the selected node.
func (t *Tracker) Is(id string) bool {
	return id != "" && t.id == id
}

// ClearIf clears the selection when id is selected and reports whether it did.
func (t *Tracker) ClearIf(id string) bool {
	if !t.Is(id) {
		return false
	}
	t.id = ""
	return true
}
