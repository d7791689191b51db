package main

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpcpool/caskade/ids"
)

func TestParseHashArg(t *testing.T) {
	blob := []byte("hello caskctl")
	want := ids.Of(blob)

	got, err := parseHashArg(hex.EncodeToString(want.Bytes()))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}

	if _, err := parseHashArg(""); err == nil {
		t.Fatal("expected error for missing argument")
	}
	if _, err := parseHashArg("not-hex"); err == nil {
		t.Fatal("expected error for non-hex argument")
	}
	if _, err := parseHashArg("aabb"); err == nil {
		t.Fatal("expected error for short hash")
	}
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	want := []byte("some bytes on disk")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}

	got, err := readInput(path)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}

	if _, err := readInput(filepath.Join(dir, "missing.bin")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
