package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateClean(t *testing.T) {
	s := newTestStore(t)
	for _, content := range []string{"one", "two", "three"} {
		if _, err := s.PutBytes([]byte(content)); err != nil {
			t.Fatalf("PutBytes: %v", err)
		}
	}

	report, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.Valid() {
		t.Errorf("report = %+v, want valid", report)
	}
	if report.Entries != 3 {
		t.Errorf("Entries = %d, want 3", report.Entries)
	}
}

func TestValidateHashMismatch(t *testing.T) {
	s := newTestStore(t)
	obj, err := s.PutBytes([]byte("original"))
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}

	path := s.Path(obj.Hash)
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	if err := os.WriteFile(path, []byte("tampered"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	report, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Valid() {
		t.Fatal("tampered store reported valid")
	}
	if len(report.HashMismatches) != 1 {
		t.Fatalf("HashMismatches = %v, want 1", report.HashMismatches)
	}
	mismatch := report.HashMismatches[0]
	if mismatch.Expected != obj.Hash || mismatch.Actual == obj.Hash {
		t.Errorf("mismatch = %+v", mismatch)
	}
}

func TestValidateUnexpected(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(filepath.Join(s.Root(), "data", "not-a-hash"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Mkdir(filepath.Join(s.Root(), "data", "subdir"), 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.Root(), "stray"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	report, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := []string{
		filepath.Join("data", "not-a-hash"),
		filepath.Join("data", "subdir"),
		"stray",
	}
	if len(report.Unexpected) != len(want) {
		t.Fatalf("Unexpected = %v, want %v", report.Unexpected, want)
	}
	for i := range want {
		if report.Unexpected[i] != want[i] {
			t.Errorf("Unexpected[%d] = %q, want %q", i, report.Unexpected[i], want[i])
		}
	}
}

func TestValidateStaleStaging(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(filepath.Join(s.Root(), "staging", "put-123"), []byte("partial"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	report, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.Valid() {
		t.Errorf("stale staging file should not invalidate the store: %+v", report)
	}
	if len(report.Stale) != 1 {
		t.Errorf("Stale = %v, want 1 entry", report.Stale)
	}
}

func TestValidateLegacyLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "x-assets")
	for _, dir := range []string{"data", "staging", "ref"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
	}
	s, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.PutBytes([]byte("hello world")); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}

	report, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.Valid() {
		t.Errorf("report = %+v, want valid", report)
	}
	if report.Entries != 1 {
		t.Errorf("Entries = %d, want 1", report.Entries)
	}
}

func TestValidateRefNotDirectory(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(filepath.Join(s.Root(), "ref"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	report, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.Unexpected) != 1 || report.Unexpected[0] != "ref" {
		t.Errorf("Unexpected = %v, want [ref]", report.Unexpected)
	}
}
