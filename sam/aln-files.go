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

package sam

import (
	"bufio"
	"compress/flate"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/exascience/pargo/pipeline"

	"github.com/exascience/ccsprep/utils/bgzf"
)

type (
	// alignmentReader is a common interface for reading both SAM and BAM files.
	alignmentReader interface {
		ParseHeader() (*Header, error)
		ParseAlignment([]byte) (*Alignment, error)
		pipeline.Source
		io.Closer
	}

	// InputFile represents a SAM or BAM file for input.
	InputFile struct {
		reader alignmentReader
	}
)

// Close closes the SAM/BAM input file.
func (f *InputFile) Close() error {
	return f.reader.Close()
}

// ParseHeader fetches a header from a SAM or BAM file.
func (f *InputFile) ParseHeader() (*Header, error) {
	return f.reader.ParseHeader()
}

// ParseAlignment parses a block of bytes into an alignment.
// For example in a SAM file, each block of bytes must be
// one line from the alignment section.
func (f *InputFile) ParseAlignment(block []byte) (*Alignment, error) {
	return f.reader.ParseAlignment(block)
}

// Err implements the method of the pipeline.Source interface.
func (f *InputFile) Err() error {
	return f.reader.Err()
}

// Prepare implements the method of the pipeline.Source interface.
func (f *InputFile) Prepare(ctx context.Context) int {
	return f.reader.Prepare(ctx)
}

// Fetch implements the method of the pipeline.Source interface.
func (f *InputFile) Fetch(size int) int {
	return f.reader.Fetch(size)
}

// Data implements the method of the pipeline.Source interface.
func (f *InputFile) Data() interface{} {
	return f.reader.Data()
}

type (
	// alignmentWriter is a common interface for writing both SAM and BAM files.
	alignmentWriter interface {
		FormatHeader(hdr *Header) error
		FormatAlignment(aln *Alignment, out []byte) ([]byte, error)
		io.WriteCloser
	}

	// OutputFile represents a SAM or BAM file for output.
	OutputFile struct {
		writer alignmentWriter
		buf    []byte
	}
)

// Close closes a SAM or BAM output file.
func (f *OutputFile) Close() error {
	return f.writer.Close()
}

// FormatHeader writes the header to a SAM or BAM file.
func (f *OutputFile) FormatHeader(hdr *Header) error {
	return f.writer.FormatHeader(hdr)
}

// FormatAlignment formats an alignment into a block of bytes for a SAM or BAM file.
func (f *OutputFile) FormatAlignment(aln *Alignment, out []byte) ([]byte, error) {
	return f.writer.FormatAlignment(aln, out)
}

// Write can be used to write the blocks of bytes from FormatAlignment
// to the underlying SAM or BAM file.
func (f *OutputFile) Write(p []byte) (int, error) {
	return f.writer.Write(p)
}

// WriteAlignment formats and writes a single alignment.
func (f *OutputFile) WriteAlignment(aln *Alignment) (err error) {
	if f.buf, err = f.writer.FormatAlignment(aln, f.buf[:0]); err != nil {
		return err
	}
	_, err = f.writer.Write(f.buf)
	return err
}

// SAM file extensions.
const (
	SamExt = ".sam"
	BamExt = ".bam"
)

// Open a SAM or BAM file for input.
//
// If the filename extension is not .bam, then .sam is always
// assumed.
//
// If the name is "/dev/stdin", then the input is read from os.Stdin
func Open(name string) (*InputFile, error) {
	switch filepath.Ext(name) {
	case BamExt:
		file, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		blocks, err := bgzf.NewReader(bufio.NewReader(file))
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("%v, while opening %v", err, name)
		}
		return &InputFile{
			reader: &bamReader{
				rc:   file,
				bgzf: blocks,
			},
		}, nil
	default:
		if name == "/dev/stdin" {
			return &InputFile{
				reader: &samReader{
					rc:  os.Stdin,
					buf: bufio.NewReader(os.Stdin),
				},
			}, nil
		}
		file, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		return &InputFile{
			reader: &samReader{
				rc:  file,
				buf: bufio.NewReader(file),
			},
		}, nil
	}
}

// Create a SAM or BAM file for output.
//
// If the filename extension is not .bam, then .sam is always
// assumed.
//
// If the name is "/dev/stdout", then the output is written to
// os.Stdout.
func Create(name string) (*OutputFile, error) {
	switch filepath.Ext(name) {
	case BamExt:
		file, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		buf := bufio.NewWriter(file)
		return &OutputFile{
			writer: &bamWriter{
				wc:   file,
				buf:  buf,
				bgzf: bgzf.NewWriter(buf, flate.DefaultCompression),
			},
		}, nil
	default:
		if name == "/dev/stdout" {
			return &OutputFile{writer: &samWriter{wc: os.Stdout, buf: bufio.NewWriter(os.Stdout)}}, nil
		}
		file, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		return &OutputFile{writer: &samWriter{wc: file, buf: bufio.NewWriter(file)}}, nil
	}
}

const scannerBatchSize = 1024

// Scanner reads the alignments of an InputFile one at a time, in
// file order. The header must have been parsed before the first
// call to Scan.
type Scanner struct {
	input *InputFile
	batch [][]byte
	index int
	aln   *Alignment
	err   error
	done  bool
}

// NewScanner returns a Scanner for the given input file.
func NewScanner(input *InputFile) *Scanner {
	return &Scanner{input: input}
}

// Scan advances to the next alignment, which is then available
// through Alignment. It returns false at the end of the input or when
// an error occurred.
func (sc *Scanner) Scan() bool {
	if sc.err != nil {
		return false
	}
	for sc.index >= len(sc.batch) {
		if sc.done {
			return false
		}
		n := sc.input.Fetch(scannerBatchSize)
		if err := sc.input.Err(); err != nil {
			sc.err = err
			return false
		}
		if n == 0 {
			sc.done = true
			return false
		}
		sc.batch = sc.input.Data().([][]byte)
		sc.index = 0
	}
	sc.aln, sc.err = sc.input.ParseAlignment(sc.batch[sc.index])
	sc.batch[sc.index] = nil
	sc.index++
	return sc.err == nil
}

// Alignment returns the alignment produced by the most recent call to Scan.
func (sc *Scanner) Alignment() *Alignment {
	return sc.aln
}

// Err returns the first error encountered by the Scanner.
func (sc *Scanner) Err() error {
	return sc.err
}
