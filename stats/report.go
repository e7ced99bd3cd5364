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
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// grouped formats numbers with a comma between groups of three digits.
var grouped = message.NewPrinter(language.English)

// Fields lists the columns of the summary table.
var Fields = []string{"Sample", "Total_CCS", "Q20_CCS", "Q30_CCS", "Q40_CCS", "Average_length(bp)", "Effective_Rate(%)"}

// WriteTableHeader writes the tab-separated header line of the
// summary table.
func WriteTableHeader(w io.Writer) error {
	_, err := io.WriteString(w, strings.Join(Fields, "\t")+"\n")
	return err
}

// WriteTableRow writes the summary table row of a sample. Counts and
// the mean length use thousands separators.
func WriteTableRow(w io.Writer, s *Sample) error {
	var row []byte
	row = append(row, s.Name...)
	for _, count := range []int{s.Total, s.Tier1, s.Tier2, s.Tier3} {
		row = append(row, '\t')
		row = append(row, grouped.Sprintf("%d", count)...)
	}
	row = append(row, '\t')
	row = append(row, grouped.Sprintf("%.2f", s.MeanLength)...)
	row = append(row, '\t')
	row = strconv.AppendFloat(row, s.Rate(), 'f', 2, 64)
	row = append(row, '\n')
	_, err := w.Write(row)
	return err
}

// round2 rounds to two decimals, and formats the result the way a
// floating point number is written in the summary blocks, which
// always have a decimal point.
func round2(value float64) string {
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(value, 'f', 2, 64), 64)
	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

func appendString(out []byte, s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return append(out, bytes.TrimSuffix(buf.Bytes(), []byte("\n"))...)
}

func appendStrings(out []byte, strs []string) []byte {
	out = append(out, '[')
	for i, s := range strs {
		if i > 0 {
			out = append(out, ", "...)
		}
		out = appendString(out, s)
	}
	return append(out, ']')
}

/*
WriteBlocks writes three labeled lines describing all samples:

	field = [...]
	summary = {...}
	sample_lib_lane = {...}

The values are JSON with ", " and ": " separators. Samples with the
same name are reported once, at the position of the first one, with
the values of the last one.
*/
func WriteBlocks(w io.Writer, samples []*Sample) error {
	var names []string
	byName := make(map[string]*Sample)
	for _, s := range samples {
		if _, ok := byName[s.Name]; !ok {
			names = append(names, s.Name)
		}
		byName[s.Name] = s
	}

	out := bufio.NewWriter(w)

	line := append([]byte("field = "), appendStrings(nil, Fields)...)
	out.Write(append(line, '\n'))

	line = append(line[:0], "summary = {"...)
	for i, name := range names {
		s := byName[name]
		if i > 0 {
			line = append(line, ", "...)
		}
		line = appendString(line, name)
		line = append(line, ": {"...)
		values := []string{
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Tier1),
			strconv.Itoa(s.Tier2),
			strconv.Itoa(s.Tier3),
			round2(s.MeanLength),
			round2(s.Rate()),
		}
		for j, value := range values {
			if j > 0 {
				line = append(line, ", "...)
			}
			line = appendString(line, Fields[j+1])
			line = append(line, ": "...)
			line = append(line, value...)
		}
		line = append(line, '}')
	}
	out.Write(append(line, "}\n"...))

	line = append(line[:0], "sample_lib_lane = {"...)
	for i, name := range names {
		if i > 0 {
			line = append(line, ", "...)
		}
		line = appendString(line, name)
		line = append(line, ": "...)
		line = appendStrings(line, []string{name, "", ""})
	}
	out.Write(append(line, "}\n"...))

	return out.Flush()
}
