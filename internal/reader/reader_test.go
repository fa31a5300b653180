package reader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestScannerSingleFile(t *testing.T) {
	path := writeTemp(t, "a.log", "one\ntwo\nthree\n")

	s, err := NewScanner(path)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer s.Close()

	var lines []string
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scan error: %v", err)
	}

	want := []string{"one", "two", "three"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestScannerConcatenatesInArgumentOrder(t *testing.T) {
	b := writeTemp(t, "b.log", "b1\nb2\n")
	a := writeTemp(t, "a.log", "a1\n")

	// b before a: argument order wins, not name order.
	s, err := NewScanner(b, a)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer s.Close()

	var lines []string
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scan error: %v", err)
	}

	want := []string{"b1", "b2", "a1"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %v", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestScannerLineNumbersResetPerFile(t *testing.T) {
	a := writeTemp(t, "a.log", "a1\na2\n")
	b := writeTemp(t, "b.log", "b1\n")

	s, err := NewScanner(a, b)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer s.Close()

	type pos struct {
		file string
		line int
	}
	var got []pos
	for s.Scan() {
		got = append(got, pos{s.File(), s.Line()})
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scan error: %v", err)
	}

	want := []pos{{a, 1}, {a, 2}, {b, 1}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestScannerMissingFile(t *testing.T) {
	a := writeTemp(t, "a.log", "a1\n")
	missing := filepath.Join(t.TempDir(), "nope.log")

	s, err := NewScanner(a, missing)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer s.Close()

	count := 0
	for s.Scan() {
		count++
	}
	if count != 1 {
		t.Errorf("expected 1 line before failure, got %d", count)
	}

	var fae *FileAccessError
	if !errors.As(s.Err(), &fae) {
		t.Fatalf("expected FileAccessError, got %v", s.Err())
	}
	if fae.Path != missing {
		t.Errorf("expected failing path %s, got %s", missing, fae.Path)
	}
}

func TestScannerRequiresPaths(t *testing.T) {
	if _, err := NewScanner(); err == nil {
		t.Fatal("expected error for empty path list")
	}
}
