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

package stats

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/exascience/ccsprep/fasta"
	"github.com/exascience/ccsprep/fastq"
	"github.com/exascience/ccsprep/internal"
	"github.com/exascience/ccsprep/reads"
)

// OutputFormat selects the format of the filtered reads written per
// sample.
type OutputFormat int

// The supported output formats.
const (
	FASTQOutput OutputFormat = iota
	FASTAOutput
)

func (f OutputFormat) extension() string {
	if f == FASTAOutput {
		return ".clean.fasta"
	}
	return ".clean.fastq"
}

// Accuracy thresholds of the second and third quality tiers.
const (
	Tier2Accuracy = 0.999
	Tier3Accuracy = 0.9999
)

// Sample holds the statistics of one input file.
type Sample struct {
	Name            string
	Total           int
	Tier1           int
	Tier2           int
	Tier3           int
	Lengths         []int
	ReferenceLength float64
	MeanLength      float64
}

// Rate returns the percentage of records that passed the filter, or
// 0 if there were no records.
func (s *Sample) Rate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Tier1) * 100 / float64(s.Total)
}

// Engine computes per-sample statistics and writes the records of
// each sample that pass its length window and accuracy threshold.
type Engine struct {
	// About is the allowed distance of a read length from the
	// reference length.
	About int
	// QValue is the minimum accuracy of a kept record.
	QValue    float64
	Estimator Estimator
	Format    OutputFormat
	// DefaultAccuracy is used for records without an accuracy. If
	// nil, such records are an error.
	DefaultAccuracy *float64
	// OutputDir is the directory for the filtered reads, the current
	// directory if empty.
	OutputDir string
	Logger    *log.Logger
}

func (e *Engine) logf(format string, v ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(format, v...)
	}
}

// A recordKey identifies a record within a sample. Records with the
// same id but different accuracies are kept apart.
type recordKey struct {
	ID       string
	Accuracy float64
}

type entry struct {
	key       recordKey
	seq, qual string
}

// collection holds the records of a sample in first-insertion order.
// A later record with an existing key replaces the sequence of the
// earlier one, but keeps its position.
type collection struct {
	positions map[recordKey]int
	entries   []entry
}

func newCollection() *collection {
	return &collection{positions: make(map[recordKey]int)}
}

func (c *collection) add(key recordKey, seq, qual string) {
	if i, ok := c.positions[key]; ok {
		c.entries[i].seq, c.entries[i].qual = seq, qual
		return
	}
	c.positions[key] = len(c.entries)
	c.entries = append(c.entries, entry{key: key, seq: seq, qual: qual})
}

// keep returns the set of entries whose length lies within about of
// reference, and whose accuracy is at least qvalue.
func keep(entries []entry, reference float64, about int, qvalue float64) *bitset.BitSet {
	kept := bitset.New(uint(len(entries)))
	low, high := reference-float64(about), reference+float64(about)
	for i, rec := range entries {
		length := float64(len(rec.seq))
		if length < low || length > high {
			continue
		}
		if rec.key.Accuracy < qvalue {
			continue
		}
		kept.Set(uint(i))
	}
	return kept
}

// tally fills in the tier counts and mean length of the kept entries.
func (s *Sample) tally(entries []entry, kept *bitset.BitSet) {
	var sum int
	for i, ok := kept.NextSet(0); ok; i, ok = kept.NextSet(i + 1) {
		rec := entries[i]
		sum += len(rec.seq)
		s.Tier1++
		if rec.key.Accuracy >= Tier2Accuracy {
			s.Tier2++
		}
		if rec.key.Accuracy >= Tier3Accuracy {
			s.Tier3++
		}
	}
	if s.Tier1 > 0 {
		s.MeanLength = float64(sum) / float64(s.Tier1)
	}
}

// FormatID returns the id under which a record is written to the
// filtered output.
func FormatID(id string, accuracy float64) string {
	return id + " [rq=" + strconv.FormatFloat(accuracy, 'g', -1, 32) + "]"
}

func (e *Engine) accuracy(record *reads.Record) (float64, error) {
	if e.DefaultAccuracy != nil {
		return record.AccuracyOr(*e.DefaultAccuracy), nil
	}
	return record.RequireAccuracy()
}

func (e *Engine) collect(input string, sample *Sample) (c *collection, err error) {
	reader, err := reads.Open(input, e.Logger)
	if err != nil {
		return nil, err
	}
	defer internal.Close(reader, &err)
	c = newCollection()
	for reader.Scan() {
		record := reader.Record()
		accuracy, err := e.accuracy(record)
		if err != nil {
			return nil, fmt.Errorf("%w, in %v", err, input)
		}
		sample.Total++
		sample.Lengths = append(sample.Lengths, len(record.Seq))
		c.add(recordKey{ID: record.ID, Accuracy: accuracy}, record.Seq, record.Qual)
	}
	if err = reader.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Engine) write(name string, entries []entry, kept *bitset.BitSet) (err error) {
	tmp := internal.TempSibling(name)
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer internal.ReplaceFile(tmp, name, &err)
	defer internal.Close(file, &err)

	switch e.Format {
	case FASTAOutput:
		w := fasta.NewWriter(file)
		for i, ok := kept.NextSet(0); ok; i, ok = kept.NextSet(i + 1) {
			rec := entries[i]
			if err = w.Write(FormatID(rec.key.ID, rec.key.Accuracy), rec.seq); err != nil {
				return err
			}
		}
		return w.Flush()
	default:
		w := fastq.NewWriter(file)
		for i, ok := kept.NextSet(0); ok; i, ok = kept.NextSet(i + 1) {
			rec := entries[i]
			if err = w.Write(FormatID(rec.key.ID, rec.key.Accuracy), rec.seq, rec.qual); err != nil {
				return err
			}
		}
		return w.Flush()
	}
}

// Process computes the statistics of a single input file and writes
// its filtered records to <OutputDir>/<sample>.clean.fastq, or
// .clean.fasta for FASTAOutput.
func (e *Engine) Process(input string) (*Sample, error) {
	sample := &Sample{Name: SampleName(input)}
	c, err := e.collect(input, sample)
	if err != nil {
		return nil, err
	}
	sample.ReferenceLength = e.Estimator.ReferenceLength(sample.Lengths)
	kept := keep(c.entries, sample.ReferenceLength, e.About, e.QValue)
	sample.tally(c.entries, kept)

	output := filepath.Join(e.OutputDir, sample.Name+e.Format.extension())
	if err := e.write(output, c.entries, kept); err != nil {
		return nil, err
	}
	e.logf("Sample %v: %v reads, %v estimated reference length %v, N50 %v, %v reads kept in %v",
		sample.Name, sample.Total, e.Estimator, sample.ReferenceLength, N50(sample.Lengths), sample.Tier1, output)
	return sample, nil
}

// Run processes each input in turn, writes one row per sample to
// table, and finally writes the summary blocks for all samples to
// blocks.
//
// An input that fails is logged and skipped. The returned error then
// lists all inputs that failed, while the returned samples and the
// output still cover all inputs that succeeded.
func (e *Engine) Run(inputs []string, table io.Writer, blocks io.Writer) ([]*Sample, error) {
	if err := WriteTableHeader(table); err != nil {
		return nil, err
	}
	var samples []*Sample
	var failed []string
	for _, input := range inputs {
		sample, err := e.Process(input)
		if err != nil {
			e.logf("Skipping %v: %v", input, err)
			failed = append(failed, input)
			continue
		}
		if err := WriteTableRow(table, sample); err != nil {
			return samples, err
		}
		samples = append(samples, sample)
	}
	if err := WriteBlocks(blocks, samples); err != nil {
		return samples, err
	}
	if len(failed) > 0 {
		return samples, fmt.Errorf("failed to process %v of %v inputs: %v", len(failed), len(inputs), strings.Join(failed, ", "))
	}
	return samples, nil
}
