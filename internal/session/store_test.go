package session

import (
	"slices"
	"testing"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore()

	if _, ok := store.Lookup("s-1"); ok {
		t.Fatal("Lookup on empty store returned a session")
	}

	store.Create(&Session{ID: "s-1", Status: StatusActive})
	store.Create(&Session{ID: "s-2", Status: StatusActive})
	store.Create(&Session{ID: "s-3", Status: StatusCompleted})

	if s, ok := store.Lookup("s-1"); !ok || s.ID != "s-1" {
		t.Fatalf("Lookup(s-1) = %v, %v", s, ok)
	}
	if n := store.ActiveCount(); n != 2 {
		t.Errorf("ActiveCount() = %d, want 2", n)
	}

	ids := store.ActiveIDs()
	slices.Sort(ids)
	if !slices.Equal(ids, []string{"s-1", "s-2"}) {
		t.Errorf("ActiveIDs() = %v, want [s-1 s-2]", ids)
	}

	store.Remove("s-1")
	if _, ok := store.Lookup("s-1"); ok {
		t.Error("Lookup after Remove returned the session")
	}
	if n := store.ActiveCount(); n != 1 {
		t.Errorf("ActiveCount() after Remove = %d, want 1", n)
	}

	// Removing an unknown id is a no-op.
	store.Remove("ghost")
}
