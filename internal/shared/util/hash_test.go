package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashFileMatchesHashBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "media.bin")
	content := []byte("call recording bytes")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	fromFile, err := HashFile(path)
	if err != nil {
		t.Fatalf("hash file: %v", err)
	}
	if fromFile != HashBytes(content) {
		t.Fatalf("file hash %s != bytes hash %s", fromFile, HashBytes(content))
	}
}

func TestHashFileSensitiveToSingleByte(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	if err := os.WriteFile(a, []byte("screenshot-1"), 0o644); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("screenshot-2"), 0o644); err != nil {
		t.Fatalf("write b: %v", err)
	}

	ha, err := HashFile(a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	hb, err := HashFile(b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if ha == hb {
		t.Fatal("expected different hashes for different contents")
	}
}

func TestSanitizeFileName(t *testing.T) {
	if _, err := SanitizeFileName("../../etc/passwd"); err == nil {
		t.Fatal("expected traversal rejection")
	}
	got, err := SanitizeFileName("call/audio.wav")
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if got != "call_audio.wav" {
		t.Fatalf("unexpected sanitized name: %s", got)
	}
}
