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
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/exascience/ccsprep/fastq"
	"github.com/exascience/ccsprep/internal"
	"github.com/exascience/ccsprep/reads"
)

// Window selects reads by accuracy and length. A zero MaxLength
// means there is no upper bound.
type Window struct {
	QValue               float64
	MinLength, MaxLength int
}

func (w *Window) contains(accuracy float64, length int) bool {
	if accuracy < w.QValue || length < w.MinLength {
		return false
	}
	return w.MaxLength == 0 || length <= w.MaxLength
}

/*
AlignmentsToFastq writes the reads of a SAM/BAM file to w in FASTQ
format, in input order.

If window is nil, all reads are written with their original names.
Otherwise only the reads within the window are written, and their
names are annotated with " rq=<accuracy>". Reads without an rq tag are
an error in that case.
*/
func AlignmentsToFastq(input string, w io.Writer, window *Window, logger *log.Logger) (result MatchResult, err error) {
	format, err := reads.FormatOf(input)
	if err != nil {
		return result, err
	}
	if format != reads.BAM && format != reads.SAM {
		return result, fmt.Errorf("%v is not a SAM or BAM file", input)
	}
	reader, err := reads.Open(input, logger)
	if err != nil {
		return result, err
	}
	defer internal.Close(reader, &err)

	out := fastq.NewWriter(w)
	for reader.Scan() {
		record := reader.Record()
		result.Total++
		id := record.ID
		if window != nil {
			accuracy, err := record.RequireAccuracy()
			if err != nil {
				return result, err
			}
			if !window.contains(accuracy, len(record.Seq)) {
				continue
			}
			id += " rq=" + strconv.FormatFloat(accuracy, 'g', -1, 32)
		}
		if err := out.Write(id, record.Seq, record.Qual); err != nil {
			return result, err
		}
		result.Kept++
	}
	if err = reader.Err(); err != nil {
		return result, err
	}
	if err = out.Flush(); err != nil {
		return result, err
	}
	if logger != nil {
		logger.Printf("Converted %v of %v reads from %v", result.Kept, result.Total, input)
	}
	return result, nil
}
