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

package fastq

import (
	"bytes"
	"strings"
	"testing"
)

func scanAll(t *testing.T, input string) ([]Record, *Scanner) {
	sc := NewScanner(strings.NewReader(input), "test.fq")
	var records []Record
	for sc.Scan() {
		records = append(records, sc.Record())
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return records, sc
}

func TestQualityLineStartingWithAt(t *testing.T) {
	input := "@r1 desc\nACGT\n+\n@@II\n@r2\nGG\n+\n@I\n"
	records, _ := scanAll(t, input)
	want := []Record{{"r1", "ACGT", "@@II"}, {"r2", "GG", "@I"}}
	if len(records) != len(want) {
		t.Fatalf("expected %v records, got %v", len(want), records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record %v: got %v, want %v", i, records[i], want[i])
		}
	}
}

func TestSeparatorLineStartingWithAt(t *testing.T) {
	records, _ := scanAll(t, "@r1\n@CGT\n+\nIIII\n")
	if len(records) != 1 || records[0].Seq != "@CGT" {
		t.Errorf("pending lines starting with @ failed, got %v", records)
	}
}

func TestTruncatedRecord(t *testing.T) {
	records, sc := scanAll(t, "@r1\nACGT\n+\nIIII\n\n@r2\nAC\n")
	if len(records) != 1 || records[0].ID != "r1" {
		t.Errorf("truncated input failed, got %v", records)
	}
	if sc.Truncated() != 2 {
		t.Errorf("Truncated failed, got %v", sc.Truncated())
	}
}

func TestScannerErrors(t *testing.T) {
	for _, input := range []string{
		"ACGT\n",
		"@r1\nACGT\n+\nIII\n",
		"@r1\nACGT\n-\nIIII\n",
		"@r1\nACGT\n+\nIIII\nextra\n",
	} {
		sc := NewScanner(strings.NewReader(input), "bad.fq")
		for sc.Scan() {
		}
		if sc.Err() == nil {
			t.Errorf("expected an error for %q", input)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	records := []Record{{"a", "ACGT", "IIII"}, {"b/1/ccs", "G", "@"}}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, r := range records {
		if err := w.Write(r.ID, r.Seq, r.Qual); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "@a\nACGT\n+\nIIII\n@b/1/ccs\nG\n+\n@\n" {
		t.Errorf("Writer failed, got %q", buf.String())
	}
	got, _ := scanAll(t, buf.String())
	if len(got) != len(records) {
		t.Fatalf("round trip failed, got %v", got)
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("round trip record %v: got %v", i, got[i])
		}
	}
}
