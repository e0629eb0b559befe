package merge

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func linkCount(t *testing.T, path string) uint64 {
	t.Helper()
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		t.Fatalf("setup: %s", err)
	}
	return uint64(st.Nlink)
}

func sameObject(t *testing.T, a, b string) bool {
	t.Helper()
	var sa, sb unix.Stat_t
	if err := unix.Stat(a, &sa); err != nil {
		t.Fatalf("setup: %s", err)
	}
	if err := unix.Stat(b, &sb); err != nil {
		t.Fatalf("setup: %s", err)
	}
	return sa.Dev == sb.Dev && sa.Ino == sb.Ino
}

// Scenario 1 from spec.md §8: three identical 4-byte files, three distinct
// objects, coalesced via --link.
func TestGroupLinksThreeIdenticalFiles(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "x"),
		filepath.Join(dir, "y"),
		filepath.Join(dir, "z"),
	}
	for _, p := range paths {
		if err := os.WriteFile(p, []byte("TEST"), 0o644); err != nil {
			t.Fatalf("setup: %s", err)
		}
	}

	events, err := Group(paths, Options{Link: true})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(events) == 0 {
		t.Fatal("expected at least one linking event")
	}

	for i := 1; i < len(paths); i++ {
		if !sameObject(t, paths[0], paths[i]) {
			t.Errorf("expected %s and %s to resolve to the same object after linking", paths[0], paths[i])
		}
	}
	if got := linkCount(t, paths[0]); got != 3 {
		t.Errorf("expected link count 3 after coalescing, got %d", got)
	}
}

// Scenario 2 from spec.md §8: mixed uid defeats equivalence, so --link must
// not touch either file. uid cannot be changed without privilege in a test
// environment, so this is exercised by constructing objects directly
// against the linker policy instead (see internal/linker's tests) —
// here we confirm a singleton-equivalent group (no other dentry resolves
// to a distinct, equivalent object) performs no work and reports no error.
func TestGroupSkipsGroupsSmallerThanTwoResolvedObjects(t *testing.T) {
	dir := t.TempDir()
	only := filepath.Join(dir, "only")
	if err := os.WriteFile(only, []byte("TEST"), 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}

	events, err := Group([]string{only}, Options{Link: true, Dedup: true})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for a group resolving to a single object, got %v", events)
	}
}

func TestGroupMissingDentryIsSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	if err := os.WriteFile(present, []byte("TEST"), 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}
	missing := filepath.Join(dir, "gone")

	events, err := Group([]string{present, missing}, Options{Link: true})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events once the missing dentry is excluded, got %v", events)
	}
}
