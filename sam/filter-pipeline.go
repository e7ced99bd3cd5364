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
	"fmt"

	"github.com/exascience/pargo/pipeline"
)

type (
	// An AlignmentFilter receives an Alignment which it can modify. It
	// returns true if the alignment should be kept, and false if the
	// alignment should be removed.
	AlignmentFilter func(*Alignment) bool

	// A Filter receives a Header and returns an AlignmentFilter or nil.
	// A Filter may modify the header before it is written to the
	// output.
	Filter func(*Header) AlignmentFilter

	// A PipelineOutput can add nodes to the given pargo
	// pipeline. AddNodes also receives a header that should be added to
	// the output. The alignments it receives must be written in the
	// order of the input. Any error should be reported to the pipeline
	// by calling p.SetErr(err) with a non-nil error value.
	PipelineOutput interface {
		AddNodes(p *pipeline.Pipeline, header *Header)
	}
)

// AlignmentToBytes returns a pargo pipeline.Filter that formats
// slices of Alignment pointers into slices of bytes representing
// these alignments according to the SAM/BAM file format.
func AlignmentToBytes(writer *OutputFile) pipeline.Filter {
	return func(p *pipeline.Pipeline, _ pipeline.NodeKind, _ *int) (receiver pipeline.Receiver, _ pipeline.Finalizer) {
		receiver = func(_ int, data interface{}) interface{} {
			alns := data.([]*Alignment)
			records := make([][]byte, 0, len(alns))
			var buf []byte
			var err error
			for _, aln := range alns {
				buf, err = writer.FormatAlignment(aln, buf)
				if err != nil {
					p.SetErr(fmt.Errorf("%v, while formatting alignment %v", err, aln.QNAME))
					return records
				}
				records = append(records, append([]byte(nil), buf...))
				buf = buf[:0]
			}
			return records
		}
		return
	}
}

const (
	minBatchSize = 1024
	maxBatchSize = 65536
)

// BytesToAlignment returns a pargo pipeline.Filter that parses
// slices of bytes representing alignments according to the SAM/BAM file
// format into slices of pointers to freshly allocated Alignment
// values.
func BytesToAlignment(reader *InputFile) pipeline.Filter {
	return func(p *pipeline.Pipeline, _ pipeline.NodeKind, _ *int) (receiver pipeline.Receiver, _ pipeline.Finalizer) {
		receiver = func(_ int, data interface{}) interface{} {
			records := data.([][]byte)
			alns := make([]*Alignment, 0, len(records))
			for _, record := range records {
				aln, err := reader.ParseAlignment(record)
				if err != nil {
					p.SetErr(err)
					return alns
				}
				alns = append(alns, aln)
			}
			return alns
		}
		return
	}
}

// AddNodes implements the PipelineOutput interface for SAM/BAM OutputFile values.
func (f *OutputFile) AddNodes(p *pipeline.Pipeline, header *Header) {
	if err := f.FormatHeader(header); err != nil {
		p.SetErr(fmt.Errorf("%v, while writing a SAM header to output", err))
		return
	}
	p.Add(
		pipeline.LimitedPar(0, AlignmentToBytes(f)),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			for _, aln := range data.([][]byte) {
				if _, err := f.Write(aln); err != nil {
					p.SetErr(fmt.Errorf("%v, while writing alignments to output", err))
					break
				}
			}
			return data
		})),
	)
}

// ComposeFilters takes a Header and a slice of Filter functions, and
// successively calls these functions to generate the corresponding
// AlignmentFilter predicates. It then returns a pargo
// pipeline.Receiver that applies these AlignmentFilter predicates on
// the slices of Alignment pointers it receives. ComposeFilters may
// return nil if all AlignmentFilters are nil.
func ComposeFilters(header *Header, hdrFilters []Filter) (receiver pipeline.Receiver) {
	var alnFilters []AlignmentFilter
	for _, f := range hdrFilters {
		if f != nil {
			if alnFilter := f(header); alnFilter != nil {
				alnFilters = append(alnFilters, alnFilter)
			}
		}
	}
	if len(alnFilters) > 0 {
		receiver = func(_ int, data interface{}) interface{} {
			alns := data.([]*Alignment)
			kept := alns[:0]
		alnLoop:
			for _, aln := range alns {
				for _, alnFilter := range alnFilters {
					if !alnFilter(aln) {
						continue alnLoop
					}
				}
				kept = append(kept, aln)
			}
			return kept
		}
	}
	return
}

// RunPipeline parses the header of the input file, applies the
// filters to the header and to every alignment, and passes the
// surviving alignments on to the output, preserving their order.
func (f *InputFile) RunPipeline(output PipelineOutput, hdrFilters []Filter) error {
	header, err := f.ParseHeader()
	if err != nil {
		return err
	}
	alnFilter := ComposeFilters(header, hdrFilters)
	var p pipeline.Pipeline
	p.Source(f)
	p.SetVariableBatchSize(minBatchSize, maxBatchSize)
	p.Add(pipeline.LimitedPar(0, BytesToAlignment(f)))
	if alnFilter != nil {
		p.Add(pipeline.LimitedPar(0, pipeline.Receive(alnFilter)))
	}
	output.AddNodes(&p, header)
	p.Run()
	return p.Err()
}
