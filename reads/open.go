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

package reads

import (
	"fmt"
	"log"
	"strings"

	"github.com/exascience/ccsprep/fasta"
	"github.com/exascience/ccsprep/fastq"
	"github.com/exascience/ccsprep/internal"
	"github.com/exascience/ccsprep/sam"
	"github.com/exascience/ccsprep/utils"
)

// Format identifies one of the supported read file formats.
type Format int

// Supported formats.
const (
	FASTA Format = iota
	FASTQ
	BAM
	SAM
)

func (f Format) String() string {
	switch f {
	case FASTA:
		return "FASTA"
	case FASTQ:
		return "FASTQ"
	case BAM:
		return "BAM"
	case SAM:
		return "SAM"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

var formatSuffixes = []struct {
	suffix string
	format Format
}{
	{".fa", FASTA},
	{".fasta", FASTA},
	{".fa.gz", FASTA},
	{".fasta.gz", FASTA},
	{".fq", FASTQ},
	{".fastq", FASTQ},
	{".fq.gz", FASTQ},
	{".fastq.gz", FASTQ},
	{".bam", BAM},
	{".sam", SAM},
}

func suffixes() []string {
	result := make([]string, len(formatSuffixes))
	for i, entry := range formatSuffixes {
		result[i] = entry.suffix
	}
	return result
}

// FormatOf determines the format of a file from its name.
func FormatOf(name string) (Format, error) {
	for _, entry := range formatSuffixes {
		if strings.HasSuffix(name, entry.suffix) {
			return entry.format, nil
		}
	}
	return 0, &UnsupportedFormatError{Path: name}
}

// Reader produces the records of a read file one at a time, in the
// manner of bufio.Scanner.
type Reader interface {
	// Scan advances to the next record. It returns false at the end
	// of the input or when an error occurred.
	Scan() bool
	// Record returns the record produced by the most recent Scan.
	Record() *Record
	// Err returns the first error that occurred, if any.
	Err() error
	// Close releases the underlying file.
	Close() error
}

/*
Open opens a read file for reading. The format is chosen by FormatOf.
FASTA and FASTQ files may be gzip-compressed, which is detected from
the content, not from the name.

The logger, which may be nil, receives warnings about recoverable
problems in the input.
*/
func Open(name string, logger *log.Logger) (Reader, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	switch format {
	case FASTA:
		input, err := utils.OpenInput(name)
		if err != nil {
			return nil, err
		}
		return &fastaReader{input: input, sc: fasta.NewScanner(input, name)}, nil
	case FASTQ:
		input, err := utils.OpenInput(name)
		if err != nil {
			return nil, err
		}
		return &fastqReader{input: input, sc: fastq.NewScanner(input, name), name: name, logger: logger}, nil
	default:
		reader, err := openAlignments(name)
		if err != nil {
			return nil, err
		}
		return reader, nil
	}
}

type fastaReader struct {
	input  *utils.Input
	sc     *fasta.Scanner
	record Record
}

func (r *fastaReader) Scan() bool {
	if !r.sc.Scan() {
		return false
	}
	rec := r.sc.Record()
	r.record = Record{ID: rec.ID, Seq: rec.Seq}
	return true
}

func (r *fastaReader) Record() *Record { return &r.record }
func (r *fastaReader) Err() error      { return r.sc.Err() }
func (r *fastaReader) Close() error    { return r.input.Close() }

type fastqReader struct {
	input  *utils.Input
	sc     *fastq.Scanner
	name   string
	logger *log.Logger
	record Record
}

func (r *fastqReader) Scan() bool {
	if !r.sc.Scan() {
		if n := r.sc.Truncated(); n > 0 && r.logger != nil {
			r.logger.Printf("Dropped an incomplete record of %v lines at the end of %v", n, r.name)
		}
		return false
	}
	rec := r.sc.Record()
	r.record = Record{ID: rec.ID, Seq: rec.Seq, Qual: rec.Qual}
	return true
}

func (r *fastqReader) Record() *Record { return &r.record }
func (r *fastqReader) Err() error      { return r.sc.Err() }
func (r *fastqReader) Close() error    { return r.input.Close() }

type alignmentReader struct {
	file   *sam.InputFile
	sc     *sam.Scanner
	record Record
}

func openAlignments(name string) (reader *alignmentReader, err error) {
	file, err := sam.Open(name)
	if err != nil {
		return nil, err
	}
	if _, err = file.ParseHeader(); err != nil {
		internal.Close(file, &err)
		return nil, fmt.Errorf("%v, while reading the header of %v", err, name)
	}
	return &alignmentReader{file: file, sc: sam.NewScanner(file)}, nil
}

func (r *alignmentReader) Scan() bool {
	if !r.sc.Scan() {
		return false
	}
	aln := r.sc.Alignment()
	r.record = Record{ID: aln.QNAME}
	if aln.SEQ != "*" {
		r.record.Seq = aln.SEQ
		if aln.QUAL != "*" {
			r.record.Qual = aln.QUAL
		}
	}
	r.record.Accuracy, r.record.HasAccuracy = aln.Accuracy()
	return true
}

func (r *alignmentReader) Record() *Record { return &r.record }
func (r *alignmentReader) Err() error      { return r.sc.Err() }
func (r *alignmentReader) Close() error    { return r.file.Close() }
