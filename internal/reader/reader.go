// Package reader streams text lines from an ordered list of log files.
package reader

import (
	"bufio"
	"fmt"
	"os"
)

// maxLineSize bounds a single log line; camera-tester lines are short but
// truncated binary garbage has shown up in crash logs.
const maxLineSize = 1024 * 1024

// FileAccessError reports a log path that could not be opened for reading.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("cannot open log file %s: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// Scanner produces the lines of one or more files, concatenated in the
// order given, preserving in-file order. Files are opened lazily, one at a
// time, and closed as soon as they are exhausted. The API follows
// bufio.Scanner: Scan, then Text.
type Scanner struct {
	paths   []string
	idx     int
	file    *os.File
	scanner *bufio.Scanner
	lineNum int
	err     error
	done    bool
}

// NewScanner creates a Scanner over the given paths.
func NewScanner(paths ...string) (*Scanner, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no log files given")
	}
	return &Scanner{paths: paths}, nil
}

// Scan advances to the next line, crossing file boundaries transparently.
// It returns false at the end of the last file or on error; Err tells which.
func (s *Scanner) Scan() bool {
	if s.err != nil || s.done {
		return false
	}

	for {
		if s.scanner == nil {
			if s.idx >= len(s.paths) {
				s.done = true
				return false
			}
			f, err := os.Open(s.paths[s.idx])
			if err != nil {
				s.err = &FileAccessError{Path: s.paths[s.idx], Err: err}
				return false
			}
			s.file = f
			s.scanner = bufio.NewScanner(f)
			s.scanner.Buffer(make([]byte, 64*1024), maxLineSize)
			s.lineNum = 0
		}

		if s.scanner.Scan() {
			s.lineNum++
			return true
		}

		if err := s.scanner.Err(); err != nil {
			s.err = fmt.Errorf("reading %s: %w", s.paths[s.idx], err)
			s.file.Close()
			s.file = nil
			s.scanner = nil
			return false
		}

		// Current file exhausted, move to the next one.
		s.file.Close()
		s.file = nil
		s.scanner = nil
		s.idx++
	}
}

// Text returns the current line without its trailing newline.
func (s *Scanner) Text() string {
	if s.scanner == nil {
		return ""
	}
	return s.scanner.Text()
}

// File returns the path of the file the current line came from.
func (s *Scanner) File() string {
	if s.idx < len(s.paths) {
		return s.paths[s.idx]
	}
	return ""
}

// Line returns the 1-based line number within the current file.
func (s *Scanner) Line() int { return s.lineNum }

// Err returns the first error encountered, if any.
func (s *Scanner) Err() error { return s.err }

// Close releases the currently open file, if any. Safe to call after the
// scanner is exhausted.
func (s *Scanner) Close() error {
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		s.scanner = nil
		return err
	}
	return nil
}
