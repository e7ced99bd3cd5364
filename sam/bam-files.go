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
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/exascience/ccsprep/utils"
	"github.com/exascience/ccsprep/utils/bgzf"
)

// BAMReference is an entry in a slice of BAM-encoded sequence dictionary entries.
// See http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.
type BAMReference struct {
	Name   string
	Length int32
}

var errTruncatedRecord = errors.New("truncated BAM alignment record")

func readInt32(reader io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(reader, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func parseBamHeaderReferences(reader io.Reader) (references []BAMReference, err error) {
	nRef, err := readInt32(reader)
	if err != nil {
		return nil, fmt.Errorf("%v, while reading BAM sequence dictionary", err)
	}
	for i := int32(0); i < nRef; i++ {
		lName, err := readInt32(reader)
		if err != nil {
			return nil, fmt.Errorf("%v, while reading BAM sequence dictionary", err)
		}
		if lName < 1 {
			return nil, fmt.Errorf("invalid reference name length %v in BAM sequence dictionary", lName)
		}
		name := make([]byte, int(lName))
		if _, err = io.ReadFull(reader, name); err != nil {
			return nil, fmt.Errorf("%v, while reading BAM sequence dictionary", err)
		}
		lRef, err := readInt32(reader)
		if err != nil {
			return nil, fmt.Errorf("%v, while reading BAM sequence dictionary", err)
		}
		references = append(references, BAMReference{
			Name:   string(name[:len(name)-1]),
			Length: lRef,
		})
	}
	return references, nil
}

// bamMagic is the magic string for the BAM format. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.
const bamMagic = "BAM\x01"

// ParseBamHeader parses a complete header in a BAM file. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.
//
// Returns a freshly allocated header and the BAM-encoded sequence
// dictionary.
func ParseBamHeader(reader io.Reader) (*Header, []BAMReference, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(reader, magic); err != nil {
		return nil, nil, fmt.Errorf("%v, while reading BAM magic string", err)
	}
	if string(magic) != bamMagic {
		return nil, nil, errors.New("invalid BAM file header")
	}
	lText, err := readInt32(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%v, while reading BAM header", err)
	}
	if lText < 0 {
		return nil, nil, fmt.Errorf("invalid header text length %v in BAM file", lText)
	}
	text := make([]byte, int(lText))
	if _, err = io.ReadFull(reader, text); err != nil {
		return nil, nil, fmt.Errorf("%v, while reading BAM header", err)
	}
	if i := bytes.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}
	hdr, err := ParseSamHeader(bufio.NewReader(bytes.NewReader(text)))
	if err != nil {
		return nil, nil, err
	}
	references, err := parseBamHeaderReferences(reader)
	return hdr, references, err
}

// bamFieldParser is the signature for all parsers for optional fields in
// read alignment records in BAM files.
type bamFieldParser func(record []byte, index int) (value interface{}, newIndex int, err error)

func parseBamChar(record []byte, index int) (interface{}, int, error) {
	if index+1 > len(record) {
		return nil, -1, errTruncatedRecord
	}
	return record[index], index + 1, nil
}

func parseBamI8(record []byte, index int) (interface{}, int, error) {
	if index+1 > len(record) {
		return nil, -1, errTruncatedRecord
	}
	return int64(int8(record[index])), index + 1, nil
}

func parseBamU8(record []byte, index int) (interface{}, int, error) {
	if index+1 > len(record) {
		return nil, -1, errTruncatedRecord
	}
	return int64(record[index]), index + 1, nil
}

func parseBamI16(record []byte, index int) (interface{}, int, error) {
	if index+2 > len(record) {
		return nil, -1, errTruncatedRecord
	}
	return int64(int16(binary.LittleEndian.Uint16(record[index : index+2]))), index + 2, nil
}

func parseBamU16(record []byte, index int) (interface{}, int, error) {
	if index+2 > len(record) {
		return nil, -1, errTruncatedRecord
	}
	return int64(binary.LittleEndian.Uint16(record[index : index+2])), index + 2, nil
}

func parseBamI32(record []byte, index int) (interface{}, int, error) {
	if index+4 > len(record) {
		return nil, -1, errTruncatedRecord
	}
	return int64(int32(binary.LittleEndian.Uint32(record[index : index+4]))), index + 4, nil
}

func parseBamU32(record []byte, index int) (interface{}, int, error) {
	if index+4 > len(record) {
		return nil, -1, errTruncatedRecord
	}
	return int64(binary.LittleEndian.Uint32(record[index : index+4])), index + 4, nil
}

func parseBamFloat(record []byte, index int) (interface{}, int, error) {
	if index+4 > len(record) {
		return nil, -1, errTruncatedRecord
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(record[index : index+4])), index + 4, nil
}

func parseBamString(record []byte, index int) (interface{}, int, error) {
	if end := bytes.IndexByte(record[index:], 0); end >= 0 {
		return string(record[index : index+end]), index + end + 1, nil
	}
	return nil, -1, errors.New("missing NUL byte in an optional string field in a BAM alignment record")
}

func parseBamByteArray(record []byte, index int) (interface{}, int, error) {
	end := bytes.IndexByte(record[index:], 0)
	if end < 0 {
		return nil, -1, errors.New("missing NUL byte in an optional hex-formatted string field in a BAM alignment record")
	}
	var sc StringScanner
	sc.Reset(string(record[index : index+end]))
	value := sc.parseByteArray()
	return value, index + end + 1, sc.Err()
}

func parseBamNumericArray(record []byte, index int) (interface{}, int, error) {
	if index+5 > len(record) {
		return nil, -1, errTruncatedRecord
	}
	ntype := record[index]
	index++
	count := int(int32(binary.LittleEndian.Uint32(record[index : index+4])))
	index += 4
	width := map[byte]int{'c': 1, 'C': 1, 's': 2, 'S': 2, 'i': 4, 'I': 4, 'f': 4}[ntype]
	if width == 0 {
		return nil, -1, fmt.Errorf("invalid subtype %c in a numeric array in a BAM alignment record", ntype)
	}
	if count < 0 || index+count*width > len(record) {
		return nil, -1, errTruncatedRecord
	}
	switch ntype {
	case 'c':
		result := make([]int8, count)
		for i := 0; i < count; i++ {
			result[i] = int8(record[index+i])
		}
		return result, index + count, nil
	case 'C':
		result := make([]uint8, count)
		copy(result, record[index:index+count])
		return result, index + count, nil
	case 's':
		result := make([]int16, count)
		for i, j := 0, index; i < count; i, j = i+1, j+2 {
			result[i] = int16(binary.LittleEndian.Uint16(record[j : j+2]))
		}
		return result, index + (count << 1), nil
	case 'S':
		result := make([]uint16, count)
		for i, j := 0, index; i < count; i, j = i+1, j+2 {
			result[i] = binary.LittleEndian.Uint16(record[j : j+2])
		}
		return result, index + (count << 1), nil
	case 'i':
		result := make([]int32, count)
		for i, j := 0, index; i < count; i, j = i+1, j+4 {
			result[i] = int32(binary.LittleEndian.Uint32(record[j : j+4]))
		}
		return result, index + (count << 2), nil
	case 'I':
		result := make([]uint32, count)
		for i, j := 0, index; i < count; i, j = i+1, j+4 {
			result[i] = binary.LittleEndian.Uint32(record[j : j+4])
		}
		return result, index + (count << 2), nil
	default:
		result := make([]float32, count)
		for i, j := 0, index; i < count; i, j = i+1, j+4 {
			result[i] = math.Float32frombits(binary.LittleEndian.Uint32(record[j : j+4]))
		}
		return result, index + (count << 2), nil
	}
}

var optionalBAMFieldParseTable = map[byte]bamFieldParser{
	'A': parseBamChar,
	'c': parseBamI8,
	'C': parseBamU8,
	's': parseBamI16,
	'S': parseBamU16,
	'i': parseBamI32,
	'I': parseBamU32,
	'f': parseBamFloat,
	'Z': parseBamString,
	'H': parseBamByteArray,
	'B': parseBamNumericArray,
}

// seqNibbles maps 4-bit BAM base codes to IUPAC characters.
const seqNibbles = "=ACMGRSVTWYHKDBN"

var (
	nibbleCodes [256]byte
	cigarMap    = make(map[byte]uint32)
)

func init() {
	for i := range nibbleCodes {
		nibbleCodes[i] = 15
	}
	for i := 0; i < len(seqNibbles); i++ {
		nibbleCodes[seqNibbles[i]] = byte(i)
		if c := seqNibbles[i]; 'A' <= c && c <= 'Z' {
			nibbleCodes[c+'a'-'A'] = byte(i)
		}
	}
	for i := 0; i < len(cigarOperations); i++ {
		cigarMap[cigarOperations[i]] = uint32(i)
	}
}

const (
	refIDIndex     = 0
	posIndex       = 4
	lReadNameIndex = posIndex + 4
	mapqIndex      = lReadNameIndex + 1
	binIndex       = mapqIndex + 1
	nCigarOpIndex  = binIndex + 2
	flagIndex      = nCigarOpIndex + 2
	lSeqIndex      = flagIndex + 2
	nextRefIDIndex = lSeqIndex + 4
	nextPosIndex   = nextRefIDIndex + 4
	tlenIndex      = nextPosIndex + 4
	readNameIndex  = tlenIndex + 4
)

func referenceName(references []BAMReference, refID int32) (string, error) {
	if refID < 0 {
		return "*", nil
	}
	if int(refID) >= len(references) {
		return "", fmt.Errorf("reference id %v out of range in BAM alignment record", refID)
	}
	return references[refID].Name, nil
}

// parseBamAlignment parses a read alignment record in a BAM file and
// returns a freshly allocated alignment. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Sections 4.2.
func parseBamAlignment(record []byte, references []BAMReference) (*Alignment, error) {
	if len(record) < readNameIndex {
		return nil, errTruncatedRecord
	}

	aln := new(Alignment)
	var err error

	refID := int32(binary.LittleEndian.Uint32(record[refIDIndex : refIDIndex+4]))
	if aln.RNAME, err = referenceName(references, refID); err != nil {
		return nil, err
	}

	aln.POS = int32(binary.LittleEndian.Uint32(record[posIndex:posIndex+4])) + 1
	lReadName := int(record[lReadNameIndex])
	aln.MAPQ = record[mapqIndex]
	nCigarOp := int(binary.LittleEndian.Uint16(record[nCigarOpIndex : nCigarOpIndex+2]))
	aln.FLAG = binary.LittleEndian.Uint16(record[flagIndex : flagIndex+2])
	lSeq := int(int32(binary.LittleEndian.Uint32(record[lSeqIndex : lSeqIndex+4])))

	nextRefID := int32(binary.LittleEndian.Uint32(record[nextRefIDIndex : nextRefIDIndex+4]))
	if aln.RNEXT, err = referenceName(references, nextRefID); err != nil {
		return nil, err
	}
	if nextRefID >= 0 && nextRefID == refID {
		aln.RNEXT = "="
	}

	aln.PNEXT = int32(binary.LittleEndian.Uint32(record[nextPosIndex:nextPosIndex+4])) + 1
	aln.TLEN = int32(binary.LittleEndian.Uint32(record[tlenIndex : tlenIndex+4]))

	if lReadName < 1 || lSeq < 0 || readNameIndex+lReadName+4*nCigarOp+((lSeq+1)>>1)+lSeq > len(record) {
		return nil, errTruncatedRecord
	}

	aln.QNAME = string(record[readNameIndex : readNameIndex+lReadName-1])
	index := readNameIndex + lReadName

	if nCigarOp > 0 {
		aln.CIGAR = make([]CigarOperation, nCigarOp)
		for i := 0; i < nCigarOp; i, index = i+1, index+4 {
			cigar := binary.LittleEndian.Uint32(record[index : index+4])
			op := int(0xF & cigar)
			if op >= len(cigarOperations) {
				return nil, fmt.Errorf("invalid CIGAR operation code %v in BAM alignment record", op)
			}
			aln.CIGAR[i] = CigarOperation{
				Length:    int32(cigar >> 4),
				Operation: cigarOperations[op],
			}
		}
	}

	if lSeq == 0 {
		aln.SEQ = "*"
		aln.QUAL = "*"
	} else {
		seq := make([]byte, lSeq)
		for i := 0; i < lSeq; i++ {
			b := record[index+(i>>1)]
			if i&1 == 0 {
				b >>= 4
			}
			seq[i] = seqNibbles[b&0xF]
		}
		aln.SEQ = string(seq)
		index += (lSeq + 1) >> 1

		if record[index] == 0xFF {
			aln.QUAL = "*"
		} else {
			qual := make([]byte, lSeq)
			for i, q := range record[index : index+lSeq] {
				qual[i] = q + 33
			}
			aln.QUAL = string(qual)
		}
	}
	index += lSeq

	for index < len(record) {
		if index+3 > len(record) {
			return nil, errTruncatedRecord
		}
		tag := utils.Intern(string(record[index : index+2]))
		typebyte := record[index+2]
		index += 3
		parse, ok := optionalBAMFieldParseTable[typebyte]
		if !ok {
			return nil, fmt.Errorf("unknown field type %c for tag %v in BAM alignment record", typebyte, *tag)
		}
		value, newIndex, err := parse(record, index)
		if err != nil {
			return nil, err
		}
		aln.TAGS = append(aln.TAGS, utils.SmallMapEntry{Key: tag, Value: value})
		index = newIndex
	}

	return aln, nil
}

func enlarge(out []byte, by int) (int, []byte) {
	index := len(out)
	length := index + by
	for cap(out) < length {
		out = append(out[:cap(out)], 0)
	}
	out = out[:length]
	return index, out
}

// FormatBam writes the header section of a BAM file. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.
func (hdr *Header) FormatBam(out []byte) ([]byte, error) {
	out = append(out, bamMagic...)
	lTextIndex := len(out)
	out = append(out, "0000"...)

	out = hdr.FormatSam(out)

	binary.LittleEndian.PutUint32(out[lTextIndex:lTextIndex+4], uint32(len(out)-lTextIndex-4))

	var index int
	index, out = enlarge(out, 4)
	binary.LittleEndian.PutUint32(out[index:], uint32(len(hdr.SQ)))

	for _, sq := range hdr.SQ {
		sn, _ := sq.Get("SN")
		ln, err := SQLN(sq)
		if err != nil {
			return nil, err
		}
		index, out = enlarge(out, 4+len(sn)+1+4)
		binary.LittleEndian.PutUint32(out[index:index+4], uint32(len(sn)+1))
		index += 4
		copy(out[index:], sn)
		out[index+len(sn)] = 0
		index += len(sn) + 1
		binary.LittleEndian.PutUint32(out[index:index+4], uint32(ln))
	}

	return out, nil
}

func (aln *Alignment) bin() uint16 {
	beg := aln.POS - 1
	if beg < 0 {
		return 4680
	}
	end := beg
	if !aln.IsUnmapped() {
		for _, op := range aln.CIGAR {
			if cigarConsumesReference(op.Operation) {
				end += op.Length
			}
		}
		if end > beg {
			end--
		}
	}
	if beg>>14 == end>>14 {
		return uint16(((1<<15)-1)/7 + (beg >> 14))
	}
	if beg>>17 == end>>17 {
		return uint16(((1<<12)-1)/7 + (beg >> 17))
	}
	if beg>>20 == end>>20 {
		return uint16(((1<<9)-1)/7 + (beg >> 20))
	}
	if beg>>23 == end>>23 {
		return uint16(((1<<6)-1)/7 + (beg >> 23))
	}
	if beg>>26 == end>>26 {
		return uint16(((1<<3)-1)/7 + (beg >> 26))
	}
	return 0
}

const minus1 = 0xFFFFFFFF

// formatBamTag writes a BAM file TAG by appending its binary
// representation to out and returning the result, dispatching on the
// actual type of the given value. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.4.
//
// Integers are written with the smallest BAM type that can hold them.
func formatBamTag(out []byte, tag utils.Symbol, value interface{}) ([]byte, error) {
	var index int

	index, out = enlarge(out, 2)
	copy(out[index:], *tag)

	switch val := value.(type) {
	case byte:
		index, out = enlarge(out, 2)
		out[index] = 'A'
		out[index+1] = val
	case int64:
		switch {
		case val < math.MinInt32, val > math.MaxUint32:
			return nil, fmt.Errorf("integer value %v out of range in BAM alignment tag %v", val, *tag)
		case val < math.MinInt16:
			index, out = enlarge(out, 5)
			out[index] = 'i'
			binary.LittleEndian.PutUint32(out[index+1:index+5], uint32(int32(val)))
		case val < math.MinInt8:
			index, out = enlarge(out, 3)
			out[index] = 's'
			binary.LittleEndian.PutUint16(out[index+1:index+3], uint16(int16(val)))
		case val < 0:
			index, out = enlarge(out, 2)
			out[index] = 'c'
			out[index+1] = byte(int8(val))
		case val <= math.MaxUint8:
			index, out = enlarge(out, 2)
			out[index] = 'C'
			out[index+1] = uint8(val)
		case val <= math.MaxUint16:
			index, out = enlarge(out, 3)
			out[index] = 'S'
			binary.LittleEndian.PutUint16(out[index+1:index+3], uint16(val))
		default:
			index, out = enlarge(out, 5)
			out[index] = 'I'
			binary.LittleEndian.PutUint32(out[index+1:index+5], uint32(val))
		}
	case float32:
		index, out = enlarge(out, 5)
		out[index] = 'f'
		binary.LittleEndian.PutUint32(out[index+1:index+5], math.Float32bits(val))
	case string:
		index, out = enlarge(out, 1+len(val)+1)
		out[index] = 'Z'
		index++
		copy(out[index:], val)
		out[index+len(val)] = 0
	case ByteArray:
		index, out = enlarge(out, 1+2*len(val)+1)
		out[index] = 'H'
		index++
		for _, b := range val {
			if hi := b >> 4; hi < 10 {
				out[index] = '0' + hi
			} else {
				out[index] = 'A' - 10 + hi
			}
			if lo := b & 0xF; lo < 10 {
				out[index+1] = '0' + lo
			} else {
				out[index+1] = 'A' - 10 + lo
			}
			index += 2
		}
		out[index] = 0
	case []int8:
		index, out = enlarge(out, 2+4+len(val))
		out[index] = 'B'
		out[index+1] = 'c'
		index += 2
		binary.LittleEndian.PutUint32(out[index:index+4], uint32(len(val)))
		index += 4
		for _, v := range val {
			out[index] = byte(v)
			index++
		}
	case []uint8:
		index, out = enlarge(out, 2+4+len(val))
		out[index] = 'B'
		out[index+1] = 'C'
		index += 2
		binary.LittleEndian.PutUint32(out[index:index+4], uint32(len(val)))
		index += 4
		copy(out[index:], val)
	case []int16:
		index, out = enlarge(out, 2+4+2*len(val))
		out[index] = 'B'
		out[index+1] = 's'
		index += 2
		binary.LittleEndian.PutUint32(out[index:index+4], uint32(len(val)))
		index += 4
		for _, v := range val {
			binary.LittleEndian.PutUint16(out[index:index+2], uint16(v))
			index += 2
		}
	case []uint16:
		index, out = enlarge(out, 2+4+2*len(val))
		out[index] = 'B'
		out[index+1] = 'S'
		index += 2
		binary.LittleEndian.PutUint32(out[index:index+4], uint32(len(val)))
		index += 4
		for _, v := range val {
			binary.LittleEndian.PutUint16(out[index:index+2], v)
			index += 2
		}
	case []int32:
		index, out = enlarge(out, 2+4+4*len(val))
		out[index] = 'B'
		out[index+1] = 'i'
		index += 2
		binary.LittleEndian.PutUint32(out[index:index+4], uint32(len(val)))
		index += 4
		for _, v := range val {
			binary.LittleEndian.PutUint32(out[index:index+4], uint32(v))
			index += 4
		}
	case []uint32:
		index, out = enlarge(out, 2+4+4*len(val))
		out[index] = 'B'
		out[index+1] = 'I'
		index += 2
		binary.LittleEndian.PutUint32(out[index:index+4], uint32(len(val)))
		index += 4
		for _, v := range val {
			binary.LittleEndian.PutUint32(out[index:index+4], v)
			index += 4
		}
	case []float32:
		index, out = enlarge(out, 2+4+4*len(val))
		out[index] = 'B'
		out[index+1] = 'f'
		index += 2
		binary.LittleEndian.PutUint32(out[index:index+4], uint32(len(val)))
		index += 4
		for _, v := range val {
			binary.LittleEndian.PutUint32(out[index:index+4], math.Float32bits(v))
			index += 4
		}
	default:
		return nil, fmt.Errorf("unknown BAM alignment TAG type %T for tag %v", value, *tag)
	}

	return out, nil
}

// formatBamAlignment writes a BAM file read alignment record by appending its
// binary representation to out and returning the result. See
// http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.2.
func formatBamAlignment(aln *Alignment, out []byte, dictTable map[string]uint32) ([]byte, error) {
	if len(aln.QNAME) > 254 {
		return nil, fmt.Errorf("read name %v too long for BAM format", aln.QNAME)
	}
	if len(aln.CIGAR) > math.MaxUint16 {
		return nil, fmt.Errorf("too many CIGAR operations for read %v", aln.QNAME)
	}
	seqLength := aln.SeqLen()
	if aln.QUAL != "*" && len(aln.QUAL) != seqLength {
		return nil, fmt.Errorf("lengths of SEQ and QUAL differ for read %v", aln.QNAME)
	}

	var index int

	index, out = enlarge(out, 4)
	blockSizeIndex := index

	index, out = enlarge(out, 4)
	refid, ok := dictTable[aln.RNAME]
	if ok {
		binary.LittleEndian.PutUint32(out[index:], refid)
	} else {
		binary.LittleEndian.PutUint32(out[index:], minus1)
	}

	index, out = enlarge(out, 4)
	binary.LittleEndian.PutUint32(out[index:], uint32(aln.POS-1))

	out = append(out, uint8(len(aln.QNAME)+1))
	out = append(out, aln.MAPQ)

	index, out = enlarge(out, 2)
	binary.LittleEndian.PutUint16(out[index:], aln.bin())

	index, out = enlarge(out, 2)
	binary.LittleEndian.PutUint16(out[index:], uint16(len(aln.CIGAR)))

	index, out = enlarge(out, 2)
	binary.LittleEndian.PutUint16(out[index:], aln.FLAG)

	index, out = enlarge(out, 4)
	binary.LittleEndian.PutUint32(out[index:], uint32(seqLength))

	index, out = enlarge(out, 4)
	if aln.RNEXT != "=" {
		refid, ok = dictTable[aln.RNEXT]
	}
	if ok {
		binary.LittleEndian.PutUint32(out[index:index+4], refid)
	} else {
		binary.LittleEndian.PutUint32(out[index:index+4], minus1)
	}

	index, out = enlarge(out, 4)
	binary.LittleEndian.PutUint32(out[index:], uint32(aln.PNEXT-1))

	index, out = enlarge(out, 4)
	binary.LittleEndian.PutUint32(out[index:], uint32(aln.TLEN))

	index, out = enlarge(out, len(aln.QNAME)+1)
	copy(out[index:], aln.QNAME)
	out[index+len(aln.QNAME)] = 0

	index, out = enlarge(out, len(aln.CIGAR)*4)
	for _, op := range aln.CIGAR {
		binary.LittleEndian.PutUint32(out[index:index+4], (uint32(op.Length)<<4)|cigarMap[op.Operation])
		index += 4
	}

	index, out = enlarge(out, (seqLength+1)>>1)
	for i := 0; i < seqLength; i++ {
		code := nibbleCodes[aln.SEQ[i]]
		if i&1 == 0 {
			out[index+(i>>1)] = code << 4
		} else {
			out[index+(i>>1)] |= code
		}
	}

	index, out = enlarge(out, seqLength)
	if aln.QUAL == "*" {
		for i := 0; i < seqLength; i++ {
			out[index+i] = 0xFF
		}
	} else {
		for i := 0; i < seqLength; i++ {
			out[index+i] = aln.QUAL[i] - 33
		}
	}

	var err error
	for _, entry := range aln.TAGS {
		if out, err = formatBamTag(out, entry.Key, entry.Value); err != nil {
			return nil, err
		}
	}

	binary.LittleEndian.PutUint32(out[blockSizeIndex:blockSizeIndex+4], uint32(len(out)-blockSizeIndex-4))

	return out, nil
}

// bamReader is an alignmentReader for a BAM InputFile.
type bamReader struct {
	rc         io.Closer
	bgzf       *bgzf.Reader
	references []BAMReference
	buf        []byte
	err        error
	data       interface{}
}

// Close implements the method of io.Closer.
func (reader *bamReader) Close() error {
	err := reader.bgzf.Close()
	if reader.rc != os.Stdin {
		if nerr := reader.rc.Close(); err == nil {
			err = nerr
		}
	}
	return err
}

// ParseHeader implements the method of the alignmentReader interface.
func (reader *bamReader) ParseHeader() (hdr *Header, err error) {
	hdr, reader.references, err = ParseBamHeader(reader.bgzf)
	reader.buf = make([]byte, 4)
	return hdr, err
}

// Err implements the method of the pipeline.Source interface.
func (reader *bamReader) Err() error {
	return reader.err
}

// Prepare implements the method of the pipeline.Source interface.
func (*bamReader) Prepare(_ context.Context) (size int) {
	return -1
}

// Fetch implements the method of the pipeline.Source interface.
func (reader *bamReader) Fetch(size int) (fetched int) {
	var records [][]byte
	for fetched = 0; fetched < size; fetched++ {
		if _, err := io.ReadFull(reader.bgzf, reader.buf[:4]); err != nil {
			if err != io.EOF {
				reader.err = fmt.Errorf("%v, while reading BAM alignment block size", err)
			}
			break
		}
		blockSize := int(int32(binary.LittleEndian.Uint32(reader.buf)))
		if blockSize < readNameIndex {
			reader.err = fmt.Errorf("invalid BAM alignment block size %v", blockSize)
			break
		}
		record := make([]byte, blockSize)
		if _, err := io.ReadFull(reader.bgzf, record); err != nil {
			reader.err = fmt.Errorf("%v, while reading BAM alignment record", err)
			break
		}
		records = append(records, record)
	}
	reader.data = records
	return fetched
}

// Data implements the method of the pipeline.Source interface.
func (reader *bamReader) Data() interface{} {
	return reader.data
}

// ParseAlignment implements the method of the alignmentReader interface.
func (reader *bamReader) ParseAlignment(record []byte) (*Alignment, error) {
	return parseBamAlignment(record, reader.references)
}

// bamWriter is an alignmentWriter for a BAM OutputFile.
type bamWriter struct {
	dictTable map[string]uint32
	bgzf      *bgzf.Writer
	buf       *bufio.Writer
	wc        io.Closer
}

// Close implements the method of io.Closer.
func (writer *bamWriter) Close() error {
	err := writer.bgzf.Close()
	if nerr := writer.buf.Flush(); err == nil {
		err = nerr
	}
	if writer.wc != os.Stdout {
		if nerr := writer.wc.Close(); err == nil {
			err = nerr
		}
	}
	return err
}

// FormatHeader implements the method of the alignmentWriter interface.
func (writer *bamWriter) FormatHeader(hdr *Header) error {
	dictTable := make(map[string]uint32)
	dictTable["*"] = minus1
	for index, entry := range hdr.SQ {
		sn, _ := entry.Get("SN")
		dictTable[sn] = uint32(index)
	}
	writer.dictTable = dictTable
	out, err := hdr.FormatBam(nil)
	if err != nil {
		return err
	}
	_, err = writer.Write(out)
	return err
}

// FormatAlignment implements the method of the alignmentWriter interface.
func (writer *bamWriter) FormatAlignment(aln *Alignment, out []byte) ([]byte, error) {
	return formatBamAlignment(aln, out, writer.dictTable)
}

// Write implements the method of io.Writer.
func (writer *bamWriter) Write(p []byte) (int, error) {
	return writer.bgzf.Write(p)
}
