// ccsprep: filtering and statistics for long-read consensus sequencing data.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elprep/blob/master/LICENSE.txt>.

// Package fasta reads and writes FASTA files of sequencing reads.
package fasta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode"
)

// Record is a single FASTA entry.
type Record struct {
	ID  string
	Seq string
}

// Scanner reads FASTA records one at a time. Sequences may span
// multiple lines, blank lines are ignored, and all whitespace inside
// sequence lines is removed. Entries without sequence data are
// skipped.
type Scanner struct {
	reader  *bufio.Reader
	name    string
	line    int
	id      string
	header  bool
	seq     []byte
	current Record
	err     error
	eof     bool
}

// NewScanner returns a Scanner that reads from r. The name is only
// used in error messages.
func NewScanner(r io.Reader, name string) *Scanner {
	return &Scanner{reader: bufio.NewReaderSize(r, 1<<16), name: name}
}

// headerID returns the first whitespace-delimited token after '>'.
func headerID(line []byte) string {
	if fields := bytes.Fields(line[1:]); len(fields) > 0 {
		return string(fields[0])
	}
	return ""
}

func stripSpace(dst, line []byte) []byte {
	for _, b := range line {
		if !unicode.IsSpace(rune(b)) {
			dst = append(dst, b)
		}
	}
	return dst
}

// complete reports whether the buffer holds an id and a non-empty
// sequence, and moves it into s.current if so.
func (s *Scanner) complete() bool {
	if !s.header || len(s.seq) == 0 {
		return false
	}
	s.current = Record{ID: s.id, Seq: string(s.seq)}
	return true
}

// Scan advances to the next record, which is then available through
// Record. It returns false at the end of the input or on an error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for !s.eof {
		raw, err := s.reader.ReadBytes('\n')
		if err == io.EOF {
			s.eof = true
		} else if err != nil {
			s.err = fmt.Errorf("%v, while reading %v", err, s.name)
			return false
		}
		if len(raw) > 0 {
			s.line++
		}
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			found := s.complete()
			s.id = headerID(line)
			s.header = true
			s.seq = s.seq[:0]
			if found {
				return true
			}
			continue
		}
		if !s.header {
			s.err = fmt.Errorf("sequence data before the first header in FASTA file %v, line %v", s.name, s.line)
			return false
		}
		s.seq = stripSpace(s.seq, line)
	}
	if s.complete() {
		s.header = false
		return true
	}
	return false
}

// Record returns the record produced by the most recent call to Scan.
func (s *Scanner) Record() Record {
	return s.current
}

// Err returns the first error encountered by the Scanner.
func (s *Scanner) Err() error {
	return s.err
}

// Writer writes FASTA records with the sequence on a single line.
type Writer struct {
	w *bufio.Writer
}

// NewWriter returns a Writer for w. Flush must be called when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes a single record.
func (w *Writer) Write(id, seq string) error {
	w.w.WriteByte('>')
	w.w.WriteString(id)
	w.w.WriteByte('\n')
	w.w.WriteString(seq)
	return w.w.WriteByte('\n')
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
