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
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/exascience/ccsprep/utils"
)

// ParseHeaderField parses a tag:value pair of a SAM header line.
func (sc *StringScanner) ParseHeaderField() (tag, value string) {
	if sc.err != nil {
		return
	}
	tag, ok := sc.readUntil(':')
	if !ok || (len(tag) != 2) {
		sc.setErr(fmt.Errorf("invalid field tag %v in SAM header line", tag))
		return "", ""
	}
	value, _ = sc.readUntil('\t')
	return tag, value
}

// ParseHeaderLine parses the fields of a SAM header line that follow
// the record type code.
func (sc *StringScanner) ParseHeaderLine() utils.StringMap {
	if sc.err != nil {
		return nil
	}
	var record utils.StringMap
	for sc.Len() > 0 {
		tag, value := sc.ParseHeaderField()
		if !record.SetUniqueEntry(tag, value) {
			sc.setErr(fmt.Errorf("duplicate field tag %v in SAM header line", tag))
			break
		}
	}
	return record
}

func trimLine(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}

// ParseSamHeader parses the header section of a SAM file, and leaves
// the reader positioned at the first alignment line.
func ParseSamHeader(reader *bufio.Reader) (*Header, error) {
	hdr := NewHeader()
	var sc StringScanner
	for first := true; ; first = false {
		switch data, err := reader.Peek(1); {
		case err == io.EOF:
			return hdr, nil
		case err != nil:
			return hdr, err
		case data[0] != '@':
			return hdr, nil
		}
		raw, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return hdr, err
		}
		line := trimLine(raw)
		if len(line) < 3 {
			return hdr, fmt.Errorf("invalid SAM header line %q", line)
		}
		code := string(line[0:3])
		var rest string
		if len(line) > 3 {
			if line[3] != '\t' {
				return hdr, fmt.Errorf("header code %v not followed by a tab in SAM header", code)
			}
			rest = string(line[4:])
		}
		sc.Reset(rest)
		switch code {
		case "@HD":
			if !first {
				return hdr, errors.New("@HD line not in first line of SAM header")
			}
			hdr.HD = sc.ParseHeaderLine()
		case "@SQ":
			hdr.SQ = append(hdr.SQ, sc.ParseHeaderLine())
		case "@RG":
			hdr.RG = append(hdr.RG, sc.ParseHeaderLine())
		case "@PG":
			hdr.PG = append(hdr.PG, sc.ParseHeaderLine())
		case "@CO":
			hdr.CO = append(hdr.CO, rest)
		default:
			if !IsHeaderUserTag(code) {
				return hdr, fmt.Errorf("unknown SAM record type code %v", code)
			}
			hdr.UserRecords = append(hdr.UserRecords, UserRecord{Code: code, Record: sc.ParseHeaderLine()})
		}
		if err := sc.Err(); err != nil {
			return hdr, err
		}
	}
}

func formatHeaderLine(out []byte, code string, record utils.StringMap) []byte {
	out = append(out, code...)
	for _, entry := range record {
		out = append(out, '\t')
		out = append(out, entry.Key...)
		out = append(out, ':')
		out = append(out, entry.Value...)
	}
	return append(out, '\n')
}

// FormatSam appends the SAM text representation of the header to out.
func (hdr *Header) FormatSam(out []byte) []byte {
	if hdr.HD != nil {
		out = formatHeaderLine(out, "@HD", hdr.HD)
	}
	for _, record := range hdr.SQ {
		out = formatHeaderLine(out, "@SQ", record)
	}
	for _, record := range hdr.RG {
		out = formatHeaderLine(out, "@RG", record)
	}
	for _, record := range hdr.PG {
		out = formatHeaderLine(out, "@PG", record)
	}
	for _, comment := range hdr.CO {
		out = append(append(append(out, "@CO\t"...), comment...), '\n')
	}
	for _, user := range hdr.UserRecords {
		out = formatHeaderLine(out, user.Code, user.Record)
	}
	return out
}

type fieldParser func(*StringScanner) interface{}

func (sc *StringScanner) parseChar() interface{} {
	value, _ := sc.readByteUntil('\t')
	return value
}

func (sc *StringScanner) parseInteger() interface{} {
	value, _ := sc.readUntil('\t')
	val, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		sc.setErr(err)
	}
	return val
}

func (sc *StringScanner) parseFloat() interface{} {
	value, _ := sc.readUntil('\t')
	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		sc.setErr(err)
	}
	return float32(val)
}

func (sc *StringScanner) parseString() interface{} {
	value, _ := sc.readUntil('\t')
	return value
}

func (sc *StringScanner) parseByteArray() interface{} {
	value, _ := sc.readUntil('\t')
	if len(value)%2 != 0 {
		sc.setErr(fmt.Errorf("odd number of hex digits in byte array %v", value))
		return nil
	}
	result := ByteArray(make([]byte, 0, len(value)>>1))
	for i := 0; i < len(value); i += 2 {
		val, err := strconv.ParseUint(value[i:i+2], 16, 8)
		if err != nil {
			sc.setErr(err)
			return nil
		}
		result = append(result, byte(val))
	}
	return result
}

func (sc *StringScanner) parseNumericEntries(bitSize int, signed bool, float bool, add func(int64, uint64, float64)) {
	for {
		entry, sep := sc.readUntil2(',', '\t')
		switch {
		case float:
			val, err := strconv.ParseFloat(entry, bitSize)
			if err != nil {
				sc.setErr(err)
				return
			}
			add(0, 0, val)
		case signed:
			val, err := strconv.ParseInt(entry, 10, bitSize)
			if err != nil {
				sc.setErr(err)
				return
			}
			add(val, 0, 0)
		default:
			val, err := strconv.ParseUint(entry, 10, bitSize)
			if err != nil {
				sc.setErr(err)
				return
			}
			add(0, val, 0)
		}
		if sep != ',' {
			return
		}
	}
}

func (sc *StringScanner) parseNumericArray() interface{} {
	ntype, ok := sc.readByteUntil(',')
	if !ok {
		sc.setErr(errors.New("missing entry in numeric array"))
		return nil
	}
	switch ntype {
	case 'c':
		var result []int8
		sc.parseNumericEntries(8, true, false, func(i int64, _ uint64, _ float64) { result = append(result, int8(i)) })
		return result
	case 'C':
		var result []uint8
		sc.parseNumericEntries(8, false, false, func(_ int64, u uint64, _ float64) { result = append(result, uint8(u)) })
		return result
	case 's':
		var result []int16
		sc.parseNumericEntries(16, true, false, func(i int64, _ uint64, _ float64) { result = append(result, int16(i)) })
		return result
	case 'S':
		var result []uint16
		sc.parseNumericEntries(16, false, false, func(_ int64, u uint64, _ float64) { result = append(result, uint16(u)) })
		return result
	case 'i':
		var result []int32
		sc.parseNumericEntries(32, true, false, func(i int64, _ uint64, _ float64) { result = append(result, int32(i)) })
		return result
	case 'I':
		var result []uint32
		sc.parseNumericEntries(32, false, false, func(_ int64, u uint64, _ float64) { result = append(result, uint32(u)) })
		return result
	case 'f':
		var result []float32
		sc.parseNumericEntries(32, true, true, func(_ int64, _ uint64, f float64) { result = append(result, float32(f)) })
		return result
	default:
		sc.setErr(fmt.Errorf("invalid numeric array type %c", ntype))
		return nil
	}
}

var optionalFieldParseTable = map[byte]fieldParser{
	'A': (*StringScanner).parseChar,
	'i': (*StringScanner).parseInteger,
	'f': (*StringScanner).parseFloat,
	'Z': (*StringScanner).parseString,
	'H': (*StringScanner).parseByteArray,
	'B': (*StringScanner).parseNumericArray,
}

// ParseOptionalField parses one TAG:TYPE:VALUE field of an alignment
// line. Integers are returned as int64, whatever their size.
func (sc *StringScanner) ParseOptionalField() (tag utils.Symbol, value interface{}) {
	if sc.err != nil {
		return nil, nil
	}
	tagname, ok := sc.readUntil(':')
	if !ok || (len(tagname) != 2) {
		sc.setErr(fmt.Errorf("invalid field tag %v in SAM alignment line", tagname))
		return nil, nil
	}
	tag = utils.Intern(tagname)
	typebyte, ok := sc.readByteUntil(':')
	if !ok {
		sc.setErr(fmt.Errorf("invalid field type for tag %v in SAM alignment line", tagname))
		return nil, nil
	}
	parse, ok := optionalFieldParseTable[typebyte]
	if !ok {
		sc.setErr(fmt.Errorf("unknown field type %c for tag %v in SAM alignment line", typebyte, tagname))
		return nil, nil
	}
	return tag, parse(sc)
}

func (sc *StringScanner) doString() string {
	if sc.err != nil {
		return ""
	}
	value, ok := sc.readUntil('\t')
	if !ok {
		sc.setErr(errors.New("missing tabulator in SAM alignment line"))
		return ""
	}
	return value
}

func (sc *StringScanner) doInt32() int32 {
	if sc.err != nil {
		return 0
	}
	value, err := strconv.ParseInt(sc.doString(), 10, 32)
	if err != nil {
		sc.setErr(err)
	}
	return int32(value)
}

func (sc *StringScanner) doUint(bitSize int) uint64 {
	if sc.err != nil {
		return 0
	}
	value, err := strconv.ParseUint(sc.doString(), 10, bitSize)
	if err != nil {
		sc.setErr(err)
	}
	return value
}

// ParseAlignment parses a complete SAM alignment line, without the
// terminating newline.
func (sc *StringScanner) ParseAlignment() (*Alignment, error) {
	aln := new(Alignment)

	aln.QNAME = sc.doString()
	aln.FLAG = uint16(sc.doUint(16))
	aln.RNAME = sc.doString()
	aln.POS = sc.doInt32()
	aln.MAPQ = byte(sc.doUint(8))
	if cigar := sc.doString(); sc.err == nil {
		var err error
		if aln.CIGAR, err = ScanCigarString(cigar); err != nil {
			sc.setErr(err)
		}
	}
	aln.RNEXT = sc.doString()
	aln.PNEXT = sc.doInt32()
	aln.TLEN = sc.doInt32()
	aln.SEQ = sc.doString()
	aln.QUAL, _ = sc.readUntil('\t')

	for sc.Len() > 0 {
		aln.TAGS = append(aln.TAGS, utils.SmallMapEntry{})
		entry := &aln.TAGS[len(aln.TAGS)-1]
		entry.Key, entry.Value = sc.ParseOptionalField()
	}

	if sc.err != nil {
		return nil, fmt.Errorf("%v, while parsing SAM alignment line %q", sc.err, sc.data)
	}
	return aln, nil
}

// FormatTag appends the SAM text representation of an optional field
// to out.
func FormatTag(out []byte, tag utils.Symbol, value interface{}) ([]byte, error) {
	out = append(out, '\t')
	out = append(out, *tag...)

	switch val := value.(type) {
	case byte:
		out = append(append(out, ":A:"...), val)
	case int64:
		out = strconv.AppendInt(append(out, ":i:"...), val, 10)
	case float32:
		out = strconv.AppendFloat(append(out, ":f:"...), float64(val), 'g', -1, 32)
	case string:
		out = append(append(out, ":Z:"...), val...)
	case ByteArray:
		out = append(out, ":H:"...)
		for _, b := range val {
			if b < 16 {
				out = append(out, '0')
			}
			out = strconv.AppendUint(out, uint64(b), 16)
		}
	case []int8:
		out = append(out, ":B:c"...)
		for _, v := range val {
			out = strconv.AppendInt(append(out, ','), int64(v), 10)
		}
	case []uint8:
		out = append(out, ":B:C"...)
		for _, v := range val {
			out = strconv.AppendUint(append(out, ','), uint64(v), 10)
		}
	case []int16:
		out = append(out, ":B:s"...)
		for _, v := range val {
			out = strconv.AppendInt(append(out, ','), int64(v), 10)
		}
	case []uint16:
		out = append(out, ":B:S"...)
		for _, v := range val {
			out = strconv.AppendUint(append(out, ','), uint64(v), 10)
		}
	case []int32:
		out = append(out, ":B:i"...)
		for _, v := range val {
			out = strconv.AppendInt(append(out, ','), int64(v), 10)
		}
	case []uint32:
		out = append(out, ":B:I"...)
		for _, v := range val {
			out = strconv.AppendUint(append(out, ','), uint64(v), 10)
		}
	case []float32:
		out = append(out, ":B:f"...)
		for _, v := range val {
			out = strconv.AppendFloat(append(out, ','), float64(v), 'g', -1, 32)
		}
	default:
		return nil, fmt.Errorf("unknown SAM alignment TAG type %T for tag %v", value, *tag)
	}

	return out, nil
}

// FormatSam appends the SAM text representation of the alignment,
// including the terminating newline, to out.
func (aln *Alignment) FormatSam(out []byte) ([]byte, error) {
	out = append(append(out, aln.QNAME...), '\t')
	out = append(strconv.AppendUint(out, uint64(aln.FLAG), 10), '\t')
	out = append(append(out, aln.RNAME...), '\t')
	out = append(strconv.AppendInt(out, int64(aln.POS), 10), '\t')
	out = append(strconv.AppendUint(out, uint64(aln.MAPQ), 10), '\t')
	out = append(AppendCigar(out, aln.CIGAR), '\t')
	out = append(append(out, aln.RNEXT...), '\t')
	out = append(strconv.AppendInt(out, int64(aln.PNEXT), 10), '\t')
	out = append(strconv.AppendInt(out, int64(aln.TLEN), 10), '\t')
	out = append(append(out, aln.SEQ...), '\t')
	out = append(out, aln.QUAL...)

	var err error
	for _, entry := range aln.TAGS {
		if out, err = FormatTag(out, entry.Key, entry.Value); err != nil {
			return nil, err
		}
	}

	return append(out, '\n'), nil
}

// samReader is an alignmentReader for a SAM InputFile.
type samReader struct {
	rc   io.Closer
	buf  *bufio.Reader
	err  error
	data interface{}
}

// Close implements the method of io.Closer.
func (reader *samReader) Close() error {
	if reader.rc != os.Stdin {
		return reader.rc.Close()
	}
	return nil
}

// ParseHeader implements the method of the alignmentReader interface.
func (reader *samReader) ParseHeader() (*Header, error) {
	return ParseSamHeader(reader.buf)
}

// Err implements the method of the pipeline.Source interface.
func (reader *samReader) Err() error {
	return reader.err
}

// Prepare implements the method of the pipeline.Source interface.
func (*samReader) Prepare(_ context.Context) (size int) {
	return -1
}

// Fetch implements the method of the pipeline.Source interface.
func (reader *samReader) Fetch(size int) (fetched int) {
	var lines [][]byte
	for fetched < size {
		raw, err := reader.buf.ReadBytes('\n')
		if err != nil && err != io.EOF {
			reader.err = err
			break
		}
		if line := trimLine(raw); len(line) > 0 {
			lines = append(lines, line)
			fetched++
		}
		if err == io.EOF {
			break
		}
	}
	reader.data = lines
	return fetched
}

// Data implements the method of the pipeline.Source interface.
func (reader *samReader) Data() interface{} {
	return reader.data
}

// ParseAlignment implements the method of the alignmentReader interface.
func (*samReader) ParseAlignment(line []byte) (*Alignment, error) {
	var sc StringScanner
	sc.Reset(string(line))
	return sc.ParseAlignment()
}

// samWriter is an alignmentWriter for a SAM OutputFile.
type samWriter struct {
	wc  io.Closer
	buf *bufio.Writer
}

// Close implements the method of io.Closer.
func (writer *samWriter) Close() error {
	err := writer.buf.Flush()
	if writer.wc != os.Stdout {
		if nerr := writer.wc.Close(); err == nil {
			err = nerr
		}
	}
	return err
}

// FormatHeader implements the method of the alignmentWriter interface.
func (writer *samWriter) FormatHeader(hdr *Header) error {
	_, err := writer.buf.Write(hdr.FormatSam(nil))
	return err
}

// FormatAlignment implements the method of the alignmentWriter interface.
func (*samWriter) FormatAlignment(aln *Alignment, out []byte) ([]byte, error) {
	return aln.FormatSam(out)
}

// Write implements the method of io.Writer.
func (writer *samWriter) Write(p []byte) (int, error) {
	return writer.buf.Write(p)
}

// ParseSam parses a complete SAM file held in memory. It is mostly
// useful for tests and small inputs.
func ParseSam(data []byte) (*Header, []*Alignment, error) {
	reader := bufio.NewReader(bytes.NewReader(data))
	hdr, err := ParseSamHeader(reader)
	if err != nil {
		return nil, nil, err
	}
	var alns []*Alignment
	var sc StringScanner
	for {
		raw, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, nil, err
		}
		if line := trimLine(raw); len(line) > 0 {
			sc.Reset(string(line))
			aln, perr := sc.ParseAlignment()
			if perr != nil {
				return nil, nil, perr
			}
			alns = append(alns, aln)
		}
		if err == io.EOF {
			return hdr, alns, nil
		}
	}
}
