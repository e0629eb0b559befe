package digest

import (
	"bytes"
	"testing"
)

func TestByNameResolvesRegisteredAlgorithms(t *testing.T) {
	for _, name := range []string{"sha-512", "sha3-512", "blake2b-512"} {
		a, err := ByName(name)
		if err != nil {
			t.Fatalf("unexpected error resolving %q: %s", name, err)
		}
		if a.Name() != name {
			t.Errorf("ByName(%q).Name() = %q", name, a.Name())
		}
	}
}

func TestByNameRejectsUnknown(t *testing.T) {
	if _, err := ByName("md5"); err == nil {
		t.Fatal("expected an error resolving an unregistered algorithm")
	}
}

func TestByNameIsCaseInsensitive(t *testing.T) {
	a, err := ByName("SHA-512")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if a.Name() != "sha-512" {
		t.Fatalf("expected canonical name sha-512, got %s", a.Name())
	}
}

func TestSumIsDeterministicAndSizeMatches(t *testing.T) {
	a := Default()
	data := []byte("TEST")

	d1 := Sum(a, data)
	d2 := Sum(a, data)
	if !bytes.Equal(d1, d2) {
		t.Fatal("expected Sum to be deterministic for identical input")
	}
	if len(d1) != a.Size() {
		t.Fatalf("expected digest length %d, got %d", a.Size(), len(d1))
	}

	other := Sum(a, []byte("different"))
	if bytes.Equal(d1, other) {
		t.Fatal("expected different inputs to produce different digests")
	}
}

func TestDefaultIsSHA512(t *testing.T) {
	if Default().Name() != "sha-512" {
		t.Fatalf("expected default algorithm sha-512, got %s", Default().Name())
	}
}
