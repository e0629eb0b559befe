package object

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveGroupsHardLinkedDentriesTogether(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "x")
	second := filepath.Join(dir, "y")
	third := filepath.Join(dir, "z")

	if err := os.WriteFile(first, []byte("TEST"), 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}
	if err := os.Link(first, second); err != nil {
		t.Fatalf("setup: %s", err)
	}
	if err := os.WriteFile(third, []byte("TEST"), 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}

	set, err := Resolve([]string{first, second, third})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if set.Len() != 2 {
		t.Fatalf("expected 2 distinct objects (x==y hard-linked, z separate), got %d", set.Len())
	}

	for _, o := range set.Objects() {
		if len(o.Dentries) == 2 {
			if o.LinkCount != 2 {
				t.Errorf("expected link count 2 for the hard-linked object, got %d", o.LinkCount)
			}
		} else if len(o.Dentries) == 1 {
			if o.LinkCount != 1 {
				t.Errorf("expected link count 1 for the singleton object, got %d", o.LinkCount)
			}
		} else {
			t.Errorf("unexpected dentry count %d", len(o.Dentries))
		}
	}
}

func TestResolveSkipsMissingAndEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	empty := filepath.Join(dir, "empty")
	missing := filepath.Join(dir, "missing")

	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}

	set, err := Resolve([]string{present, empty, missing})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if set.Len() != 1 {
		t.Fatalf("expected only the present, non-empty file to resolve, got %d objects", set.Len())
	}
	if set.Objects()[0].Dentries[0] != present {
		t.Fatalf("unexpected surviving dentry: %v", set.Objects()[0].Dentries)
	}
}

func TestMissingReferences(t *testing.T) {
	o := &Object{LinkCount: 3, Dentries: []string{"a", "b"}}
	if got := o.MissingReferences(); got != 1 {
		t.Fatalf("expected 1 missing reference, got %d", got)
	}
}

func TestResetVisitedClearsAllObjects(t *testing.T) {
	s := NewSetFromObjects([]*Object{
		{Key: Key{Ino: 1}, Visited: true},
		{Key: Key{Ino: 2}, Visited: true},
	})
	s.ResetVisited()
	for _, o := range s.Objects() {
		if o.Visited {
			t.Fatalf("expected Visited to be cleared for %v", o.Key)
		}
	}
}
