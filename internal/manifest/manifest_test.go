package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestIngestLinePromotesOnSecondOccurrence(t *testing.T) {
	r := NewReader()
	digest := "aa11"

	if err := r.ingestLine(digest + "  a/x"); err != nil {
		t.Fatalf("unexpected error on first occurrence: %s", err)
	}
	if r.Len() != 0 {
		t.Fatalf("singleton digest should not be promoted yet, Len() = %d", r.Len())
	}

	if err := r.ingestLine(digest + "  a/y"); err != nil {
		t.Fatalf("unexpected error on second occurrence: %s", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected promotion after second occurrence, Len() = %d", r.Len())
	}

	g := r.Groups()[digest]
	if g == nil {
		t.Fatalf("expected group for digest %s", digest)
	}
	if len(g.Dentries) != 2 || g.Dentries[0] != "a/x" || g.Dentries[1] != "a/y" {
		t.Fatalf("unexpected dentries: %v", g.Dentries)
	}

	if err := r.ingestLine(digest + "  a/z"); err != nil {
		t.Fatalf("unexpected error on third occurrence: %s", err)
	}
	if len(g.Dentries) != 3 || g.Dentries[2] != "a/z" {
		t.Fatalf("third occurrence should append in order, got: %v", g.Dentries)
	}
}

func TestIngestLineRejectsMalformed(t *testing.T) {
	r := NewReader()
	cases := []string{
		"",
		"nospaceshere",
		"zz  path", // not valid hex -> still even length but non-hex chars
	}
	for _, line := range cases {
		if err := r.ingestLine(line); err == nil {
			t.Errorf("expected error for malformed line %q", line)
		}
	}
}

func TestIngestLineRejectsInconsistentDigestLength(t *testing.T) {
	r := NewReader()
	if err := r.ingestLine("aa11  a/x"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := r.ingestLine("aa1122  a/y"); err == nil {
		t.Fatal("expected error for inconsistent digest length")
	}
}

func TestDigestsReturnsFirstPromotionOrder(t *testing.T) {
	r := NewReader()
	for _, line := range []string{
		"cc33  a/p", // seen once, not yet promoted
		"aa11  a/x",
		"bb22  a/m",
		"aa11  a/y", // promotes aa11 first
		"bb22  a/n", // promotes bb22 second
		"cc33  a/q", // promotes cc33 third
	} {
		if err := r.ingestLine(line); err != nil {
			t.Fatalf("unexpected error ingesting %q: %s", line, err)
		}
	}

	want := []string{"aa11", "bb22", "cc33"}
	got := r.Digests()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected promotion order %v, got %v", want, got)
		}
	}
}

func TestReadFileAggregatesDiagnosticsAndGroups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.txt")
	content := "aa11  a/x\naa11  a/y\nbb22  a/z\nmalformed line\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}

	r := NewReader()
	if err := r.ReadFile(path); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected exactly one promoted group (bb22 is a singleton), got %d", r.Len())
	}
	if len(r.Diagnostics) != 1 {
		t.Fatalf("expected exactly one diagnostic for the malformed line, got %d: %v", len(r.Diagnostics), r.Diagnostics)
	}
}

func TestWriterRoundTripsThroughReader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteLine([]byte{0xaa, 0x11}, "a/x"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := w.WriteLine([]byte{0xaa, 0x11}, "a/y"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	r := NewReader()
	for _, line := range bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n")) {
		if err := r.ingestLine(string(line)); err != nil {
			t.Fatalf("unexpected error re-ingesting written line: %s", err)
		}
	}
	if r.Len() != 1 {
		t.Fatalf("expected one promoted group, got %d", r.Len())
	}
}
