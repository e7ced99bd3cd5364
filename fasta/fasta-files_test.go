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

package fasta

import (
	"bytes"
	"strings"
	"testing"
)

func scanAll(t *testing.T, input string) []Record {
	sc := NewScanner(strings.NewReader(input), "test.fa")
	var records []Record
	for sc.Scan() {
		records = append(records, sc.Record())
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return records
}

func TestScanner(t *testing.T) {
	input := "\n>m1/10/ccs extra words\nACGT\nAC GT\n\n>m1/20/ccs\r\nTTTT\r\n>empty\n>m1/30/ccs\nG\tG\n"
	want := []Record{
		{"m1/10/ccs", "ACGTACGT"},
		{"m1/20/ccs", "TTTT"},
		{"m1/30/ccs", "GG"},
	}
	got := scanAll(t, input)
	if len(got) != len(want) {
		t.Fatalf("expected %v records, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %v: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScannerEdgeCases(t *testing.T) {
	if records := scanAll(t, ""); len(records) != 0 {
		t.Error("empty input failed")
	}
	if records := scanAll(t, ">only-header\n"); len(records) != 0 {
		t.Error("header without sequence failed")
	}
	if records := scanAll(t, ">r1\nACGT"); len(records) != 1 || records[0].Seq != "ACGT" {
		t.Error("missing final newline failed")
	}
	sc := NewScanner(strings.NewReader("ACGT\n>r1\nACGT\n"), "bad.fa")
	if sc.Scan() || sc.Err() == nil {
		t.Error("sequence before header should fail")
	}
}

func TestRoundTrip(t *testing.T) {
	records := []Record{{"a", "ACGT"}, {"b", "GGCCA"}, {"c/1/ccs", "N"}}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, r := range records {
		if err := w.Write(r.ID, r.Seq); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != ">a\nACGT\n>b\nGGCCA\n>c/1/ccs\nN\n" {
		t.Errorf("Writer failed, got %q", buf.String())
	}
	got := scanAll(t, buf.String())
	if len(got) != len(records) {
		t.Fatalf("round trip failed, got %v", got)
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("round trip record %v: got %v", i, got[i])
		}
	}
}
