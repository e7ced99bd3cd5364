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

	"github.com/exascience/ccsprep/internal"
	"github.com/exascience/ccsprep/reads"
	"github.com/exascience/ccsprep/sam"
)

// MatchResult reports how many alignments a matching pass has seen
// and how many it has written.
type MatchResult struct {
	Total, Kept int
}

/*
MatchSubreads copies the alignments of the SAM/BAM file input whose
SubreadID is in the index to output, in input order and with the
header of input. The format of output is chosen by its extension.
Alignments are copied field by field; a BAM output may store an
integer optional field with a smaller integer type than the input.

An existing file at output is replaced. The alignments are first
written to a temporary file in the same directory, which is renamed
to output only when everything succeeded.
*/
func MatchSubreads(input, output string, index *reads.Index, logger *log.Logger) (result MatchResult, err error) {
	in, err := sam.Open(input)
	if err != nil {
		return result, err
	}
	defer internal.Close(in, &err)

	header, err := in.ParseHeader()
	if err != nil {
		return result, err
	}

	tmp := internal.TempSibling(output)
	out, err := sam.Create(tmp)
	if err != nil {
		return result, err
	}
	defer internal.ReplaceFile(tmp, output, &err)
	defer internal.Close(out, &err)

	if err = out.FormatHeader(header); err != nil {
		return result, err
	}

	sc := sam.NewScanner(in)
	for sc.Scan() {
		aln := sc.Alignment()
		result.Total++
		id, err := reads.SubreadID(aln.QNAME)
		if err != nil {
			return result, err
		}
		if !index.Contains(id) {
			continue
		}
		if err := out.WriteAlignment(aln); err != nil {
			return result, err
		}
		result.Kept++
	}
	if err = sc.Err(); err != nil {
		return result, err
	}

	if logger != nil {
		logger.Printf("Kept %v of %v subreads from %v", result.Kept, result.Total, input)
	}
	return result, nil
}
