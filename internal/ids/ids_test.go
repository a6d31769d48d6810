package ids

import "testing"

func TestNewIsSortable(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("expected %q > %q", next, prev)
		}
		prev = next
	}
}

func TestValid(t *testing.T) {
	if !Valid(New()) {
		t.Error("fresh id should be valid")
	}
	for _, s := range []string{"", "abc", "not-a-ulid-at-all-0000000000"} {
		if Valid(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}
