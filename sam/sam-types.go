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
	"errors"
	"fmt"
	"strconv"

	"github.com/exascience/ccsprep/utils"
)

// FileFormatVersion is the SAM format version written into new @HD lines.
const FileFormatVersion = "1.6"

// IsHeaderUserTag returns true if the given header record code
// contains a lower-case letter.
func IsHeaderUserTag(code string) bool {
	for _, c := range code {
		if ('a' <= c) && (c <= 'z') {
			return true
		}
	}
	return false
}

type (
	// UserRecord is a header line with a user-defined record code.
	UserRecord struct {
		Code   string
		Record utils.StringMap
	}

	// Header represents the header section of a SAM or BAM file.
	// All records are kept in the order in which they were read.
	Header struct {
		HD          utils.StringMap
		SQ, RG, PG  []utils.StringMap
		CO          []string
		UserRecords []UserRecord
	}
)

// NewHeader allocates and initializes an empty header.
func NewHeader() *Header { return &Header{} }

// SQLN returns the LN field of an @SQ header line.
func SQLN(record utils.StringMap) (int32, error) {
	ln, found := record.Get("LN")
	if !found {
		return 0, errors.New("LN entry in a SQ header line missing")
	}
	val, err := strconv.ParseInt(ln, 10, 32)
	return int32(val), err
}

// A CigarOperation is one run of a CIGAR string.
type CigarOperation struct {
	Length    int32
	Operation byte
}

// ByteArray is the value type of optional fields of type H.
type ByteArray []byte

// Alignment represents a single read alignment of a SAM or BAM file.
//
// SEQ is "*" if the sequence is not stored, and QUAL is the phred+33
// quality string, or "*" if qualities are not stored.
type Alignment struct {
	QNAME string
	FLAG  uint16
	RNAME string
	POS   int32
	MAPQ  byte
	CIGAR []CigarOperation
	RNEXT string
	PNEXT int32
	TLEN  int32
	SEQ   string
	QUAL  string
	TAGS  utils.SmallMap
}

// RQ is the optional field that PacBio uses for the predicted
// accuracy of a read, a value between 0 and 1.
var RQ = utils.Intern("rq")

// Accuracy returns the value of the rq optional field, and true, or
// 0 and false if the alignment has no numeric rq field.
func (aln *Alignment) Accuracy() (float64, bool) {
	value, ok := aln.TAGS.Get(RQ)
	if !ok {
		return 0, false
	}
	switch val := value.(type) {
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}

// SeqLen returns the number of bases in SEQ.
func (aln *Alignment) SeqLen() int {
	if aln.SEQ == "*" {
		return 0
	}
	return len(aln.SEQ)
}

// Bits of the FLAG field.
const (
	Multiple      = 0x1
	Proper        = 0x2
	Unmapped      = 0x4
	NextUnmapped  = 0x8
	Reversed      = 0x10
	NextReversed  = 0x20
	First         = 0x40
	Last          = 0x80
	Secondary     = 0x100
	QCFailed      = 0x200
	Duplicate     = 0x400
	Supplementary = 0x800
)

// IsUnmapped checks the Unmapped bit of FLAG.
func (aln *Alignment) IsUnmapped() bool { return (aln.FLAG & Unmapped) != 0 }

// IsSecondary checks the Secondary bit of FLAG.
func (aln *Alignment) IsSecondary() bool { return (aln.FLAG & Secondary) != 0 }

// IsSupplementary checks the Supplementary bit of FLAG.
func (aln *Alignment) IsSupplementary() bool { return (aln.FLAG & Supplementary) != 0 }

const cigarOperations = "MIDNSHP=X"

func isDigit(char byte) bool { return ('0' <= char) && (char <= '9') }

// ScanCigarString parses a CIGAR string. "*" yields an empty slice.
func ScanCigarString(cigar string) ([]CigarOperation, error) {
	if cigar == "*" {
		return nil, nil
	}
	var result []CigarOperation
	for i := 0; i < len(cigar); {
		j := i
		for j < len(cigar) && isDigit(cigar[j]) {
			j++
		}
		if j == i || j == len(cigar) {
			return nil, fmt.Errorf("invalid CIGAR string %v", cigar)
		}
		length, err := strconv.ParseInt(cigar[i:j], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%v, while scanning CIGAR string %v", err, cigar)
		}
		op := cigar[j]
		if op == 'm' || op == 'i' || op == 'd' || op == 'n' || op == 's' || op == 'h' || op == 'p' || op == 'x' {
			op -= 'a' - 'A'
		}
		if bytesIndex(cigarOperations, op) < 0 {
			return nil, fmt.Errorf("invalid CIGAR operation %c in %v", cigar[j], cigar)
		}
		result = append(result, CigarOperation{int32(length), op})
		i = j + 1
	}
	return result, nil
}

func bytesIndex(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// AppendCigar appends the textual representation of a CIGAR to out.
func AppendCigar(out []byte, cigar []CigarOperation) []byte {
	if len(cigar) == 0 {
		return append(out, '*')
	}
	for _, op := range cigar {
		out = append(strconv.AppendInt(out, int64(op.Length), 10), op.Operation)
	}
	return out
}

func cigarConsumesReference(op byte) bool {
	switch op {
	case 'M', 'D', 'N', '=', 'X':
		return true
	default:
		return false
	}
}
