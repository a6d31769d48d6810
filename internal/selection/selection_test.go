package selection

import "testing"

func TestZeroValueEmpty(t *testing.T) {
	var tr Tracker
	if _, ok := tr.Selected(); ok {
		t.Error("zero tracker should have no selection")
	}
}

func TestSelectOverwrites(t *testing.T) {
	var tr Tracker
	tr.Select("a")
	tr.Select("b")
	id, ok := tr.Selected()
	if !ok || id != "b" {
		t.Errorf("expected 'b' selected, got %q (%v)", id, ok)
	}
	if tr.Is("a") {
		t.Error("previous selection should be replaced")
	}
}

func TestClear(t *testing.T) {
	var tr Tracker
	tr.Select("a")
	tr.Clear()
	if _, ok := tr.Selected(); ok {
		t.Error("expected selection cleared")
	}
}

func TestClearIf(t *testing.T) {
	var tr Tracker
	tr.Select("a")

	if tr.ClearIf("b") {
		t.Error("ClearIf on a different id should not clear")
	}
	if !tr.Is("a") {
		t.Error("selection should be intact")
	}
	if !tr.ClearIf("a") {
		t.Error("ClearIf on the selected id should clear")
	}
	if tr.Is("a") {
		t.Error("selection should be empty")
	}
	if tr.Is("") {
		t.Error("empty id is never selected")
	}
}

func TestIndependentTrackers(t *testing.T) {
	var one, two Tracker
	one.Select("x")
	if _, ok := two.Selected(); ok {
		t.Error("trackers must not share state")
	}
}
