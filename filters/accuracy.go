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

package filters

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/exascience/ccsprep/internal"
	"github.com/exascience/ccsprep/reads"
	"github.com/exascience/ccsprep/sam"
	"github.com/exascience/ccsprep/utils"
)

// Failure records the first error reported by alignment filters,
// which run concurrently and cannot return errors themselves.
type Failure struct {
	mutex sync.Mutex
	err   error
}

// Set records err unless an earlier error was recorded already.
func (f *Failure) Set(err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.err == nil {
		f.err = err
	}
}

// Err returns the first recorded error, if any.
func (f *Failure) Err() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.err
}

// FilterAccuracy returns a filter that keeps alignments whose rq tag
// is at least qvalue. Alignments without an rq tag are removed, and
// the first of them is recorded in failure as a *reads.MissingTagError.
func FilterAccuracy(qvalue float64, failure *Failure) sam.Filter {
	return func(_ *sam.Header) sam.AlignmentFilter {
		return func(aln *sam.Alignment) bool {
			acc, ok := aln.Accuracy()
			if !ok {
				failure.Set(&reads.MissingTagError{Tag: "rq", ID: aln.QNAME})
				return false
			}
			return acc >= qvalue
		}
	}
}

// countAlignments returns a filter that counts the alignments it sees
// without removing any.
func countAlignments(counter *int64) sam.Filter {
	return func(_ *sam.Header) sam.AlignmentFilter {
		return func(_ *sam.Alignment) bool {
			atomic.AddInt64(counter, 1)
			return true
		}
	}
}

// PGLine returns a @PG header line describing this program, invoked
// with the given command line.
func PGLine(commandLine string) utils.StringMap {
	var pg utils.StringMap
	pg.Set("ID", utils.ProgramName)
	pg.Set("PN", utils.ProgramName)
	pg.Set("VN", utils.ProgramVersion)
	pg.Set("CL", commandLine)
	return pg
}

/*
FilterBam copies the alignments of the SAM/BAM file input that have
an rq tag of at least qvalue to output, in input order, with the
header of input extended by a @PG line for commandLine.

The alignments are processed by a parallel pipeline. As with
MatchSubreads, output is only replaced when everything succeeded.
*/
func FilterBam(input, output string, qvalue float64, commandLine string, logger *log.Logger) (result MatchResult, err error) {
	in, err := sam.Open(input)
	if err != nil {
		return result, err
	}
	defer internal.Close(in, &err)

	tmp := internal.TempSibling(output)
	out, err := sam.Create(tmp)
	if err != nil {
		return result, err
	}
	defer internal.ReplaceFile(tmp, output, &err)
	defer internal.Close(out, &err)

	var total, kept int64
	var failure Failure
	if err = in.RunPipeline(out, []sam.Filter{
		sam.AddPGLine(PGLine(commandLine)),
		countAlignments(&total),
		FilterAccuracy(qvalue, &failure),
		countAlignments(&kept),
	}); err != nil {
		return result, err
	}
	if err = failure.Err(); err != nil {
		return result, err
	}

	result = MatchResult{Total: int(total), Kept: int(kept)}
	if logger != nil {
		logger.Printf("Kept %v of %v alignments with rq >= %v from %v", result.Kept, result.Total, qvalue, input)
	}
	return result, nil
}
