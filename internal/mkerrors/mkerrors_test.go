package mkerrors

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestIoErrorUnwrapsToUnderlyingError(t *testing.T) {
	base := os.ErrNotExist
	err := &IoError{Op: "open", Path: "/no/such/file", Err: base}

	if !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected errors.Is to see through IoError to the wrapped error")
	}
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestPermissionErrorUnwraps(t *testing.T) {
	base := os.ErrPermission
	err := &PermissionError{Path: "/etc/shadow", Err: base}
	if !errors.Is(err, os.ErrPermission) {
		t.Fatal("expected errors.Is to see through PermissionError")
	}
}

func TestCorruptionMessageNamesBothPaths(t *testing.T) {
	err := &Corruption{LeaderPath: "a/x", OtherPath: "a/y", Reason: "ranges differ"}
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected a non-empty message")
	}
	if !strings.Contains(msg, "a/x") || !strings.Contains(msg, "a/y") {
		t.Fatalf("expected message to name both paths, got %q", msg)
	}
}

func TestParseErrorIsDistinguishableByType(t *testing.T) {
	var err error = &ParseError{Line: 3, Reason: "missing separator"}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatal("expected errors.As to match ParseError")
	}
	if pe.Line != 3 {
		t.Fatalf("expected Line 3, got %d", pe.Line)
	}
}
