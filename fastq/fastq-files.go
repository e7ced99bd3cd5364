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

// Package fastq reads and writes FASTQ files of sequencing reads.
package fastq

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Record is a single FASTQ entry.
type Record struct {
	ID   string
	Seq  string
	Qual string
}

/*
Scanner reads FASTQ records of exactly four lines each. Blank lines
are ignored.

A line starting with '@' only starts a new record when no lines are
pending, or when a complete record of four lines is pending, which is
then emitted first. With one to three lines pending, such a line is
data, which happens for quality strings that start with '@'.
*/
type Scanner struct {
	reader    *bufio.Reader
	name      string
	line      int
	pending   [4]string
	n         int
	current   Record
	truncated int
	err       error
	eof       bool
}

// NewScanner returns a Scanner that reads from r. The name is only
// used in error messages.
func NewScanner(r io.Reader, name string) *Scanner {
	return &Scanner{reader: bufio.NewReaderSize(r, 1<<16), name: name}
}

func (s *Scanner) emit() bool {
	var id string
	if fields := strings.Fields(s.pending[0][1:]); len(fields) > 0 {
		id = fields[0]
	}
	seq, sep, qual := s.pending[1], s.pending[2], s.pending[3]
	s.n = 0
	if len(sep) == 0 || sep[0] != '+' {
		s.err = fmt.Errorf("missing '+' separator for read %v in FASTQ file %v, line %v", id, s.name, s.line)
		return false
	}
	if len(seq) != len(qual) {
		s.err = fmt.Errorf("sequence and quality lengths differ for read %v in FASTQ file %v, line %v", id, s.name, s.line)
		return false
	}
	s.current = Record{ID: id, Seq: seq, Qual: qual}
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
		if line[0] == '@' && (s.n == 0 || s.n == 4) {
			if s.n == 4 {
				ok := s.emit()
				s.pending[0] = string(line)
				s.n = 1
				return ok
			}
			s.pending[0] = string(line)
			s.n = 1
			continue
		}
		switch s.n {
		case 0:
			s.err = fmt.Errorf("expected a read header in FASTQ file %v, line %v", s.name, s.line)
			return false
		case 4:
			s.err = fmt.Errorf("more than four lines in a record of FASTQ file %v, line %v", s.name, s.line)
			return false
		}
		s.pending[s.n] = string(line)
		s.n++
	}
	switch s.n {
	case 0:
		return false
	case 4:
		return s.emit()
	default:
		s.truncated = s.n
		s.n = 0
		return false
	}
}

// Record returns the record produced by the most recent call to Scan.
func (s *Scanner) Record() Record {
	return s.current
}

// Err returns the first error encountered by the Scanner.
func (s *Scanner) Err() error {
	return s.err
}

// Truncated returns the number of lines of an incomplete record at
// the end of the input, which are dropped, or 0 if the input ended
// with a complete record.
func (s *Scanner) Truncated() int {
	return s.truncated
}

// Writer writes four-line FASTQ records.
type Writer struct {
	w *bufio.Writer
}

// NewWriter returns a Writer for w. Flush must be called when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes a single record.
func (w *Writer) Write(id, seq, qual string) error {
	w.w.WriteByte('@')
	w.w.WriteString(id)
	w.w.WriteByte('\n')
	w.w.WriteString(seq)
	w.w.WriteString("\n+\n")
	w.w.WriteString(qual)
	return w.w.WriteByte('\n')
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
