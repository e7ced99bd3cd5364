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
	"os"
	"path/filepath"
	"testing"

	"github.com/exascience/ccsprep/utils"
)

const testHeader = "@HD\tVN:1.6\tSO:unknown\tpb:5.0.0\n" +
	"@SQ\tSN:chr1\tLN:1000\n" +
	"@RG\tID:ab12\tPL:PACBIO\tDS:READTYPE=SUBREAD\n" +
	"@PG\tID:baz2bam\tPN:baz2bam\tVN:9.0.0\n" +
	"@CO\tfree text comment\n" +
	"@xy\tAB:user record\n"

const testAlignments = "m64011/10/0_500\t4\t*\t0\t255\t*\t*\t0\t0\tACGTN\tIIII#\tRG:Z:ab12\tnp:i:5\trq:f:0.99\n" +
	"m64011/10/ccs\t0\tchr1\t10\t60\t3M1I1M\t=\t20\t15\tACGTA\t*\tzm:i:70000\tdq:B:C,1,2,3\n"

func TestParseAndFormatSam(t *testing.T) {
	hdr, alns, err := ParseSam([]byte(testHeader + testAlignments))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(hdr.FormatSam(nil)); got != testHeader {
		t.Errorf("header round trip failed, got\n%v", got)
	}
	if len(alns) != 2 {
		t.Fatalf("expected 2 alignments, got %v", len(alns))
	}
	var out []byte
	for _, aln := range alns {
		if out, err = aln.FormatSam(out); err != nil {
			t.Fatal(err)
		}
	}
	if string(out) != testAlignments {
		t.Errorf("alignment round trip failed, got\n%v", string(out))
	}
	if acc, ok := alns[0].Accuracy(); !ok || acc != float64(float32(0.99)) {
		t.Errorf("Accuracy failed, got %v %v", acc, ok)
	}
	if _, ok := alns[1].Accuracy(); ok {
		t.Error("Accuracy on alignment without rq failed")
	}
	if value, _ := alns[0].TAGS.Get(utils.Intern("np")); value != int64(5) {
		t.Errorf("integer tag parsed as %T %v", value, value)
	}
}

func TestParseSamErrors(t *testing.T) {
	for _, input := range []string{
		"@SQ\tSN:chr1\tLN:10\n@HD\tVN:1.6\n",
		"@ZZ\tAB:x\n",
		"r1\t0\t*\t0\t255\t*\t*\t0\t0\tACGT\n",
		"r1\tx\t*\t0\t255\t*\t*\t0\t0\tACGT\tIIII\n",
		"r1\t0\t*\t0\t255\t*\t*\t0\t0\tACGT\tIIII\trq:q:1\n",
	} {
		if _, _, err := ParseSam([]byte(input)); err == nil {
			t.Errorf("expected an error for %q", input)
		}
	}
}

func TestScanCigarString(t *testing.T) {
	cigar, err := ScanCigarString("10M2I3d")
	if err != nil {
		t.Fatal(err)
	}
	want := []CigarOperation{{10, 'M'}, {2, 'I'}, {3, 'D'}}
	if len(cigar) != len(want) {
		t.Fatalf("ScanCigarString failed, got %v", cigar)
	}
	for i := range want {
		if cigar[i] != want[i] {
			t.Errorf("ScanCigarString failed at %v, got %v", i, cigar[i])
		}
	}
	if cigar, err := ScanCigarString("*"); err != nil || len(cigar) != 0 {
		t.Error("ScanCigarString of * failed")
	}
	for _, invalid := range []string{"M", "10", "10Q"} {
		if _, err := ScanCigarString(invalid); err == nil {
			t.Errorf("ScanCigarString(%q) should fail", invalid)
		}
	}
}

func TestAddPGLine(t *testing.T) {
	hdr, _, err := ParseSam([]byte(testHeader))
	if err != nil {
		t.Fatal(err)
	}
	var pg utils.StringMap
	pg.Set("ID", "ccsprep")
	pg.Set("PN", "ccsprep")
	AddPGLine(pg)(hdr)
	AddPGLine(pg)(hdr)
	if len(hdr.PG) != 3 {
		t.Fatalf("AddPGLine failed, got %v @PG lines", len(hdr.PG))
	}
	if pp, _ := hdr.PG[1].Get("PP"); pp != "baz2bam" {
		t.Errorf("AddPGLine PP failed, got %v", pp)
	}
	id1, _ := hdr.PG[1].Get("ID")
	id2, _ := hdr.PG[2].Get("ID")
	if id1 == id2 {
		t.Error("AddPGLine did not make IDs unique")
	}
	if pp, _ := hdr.PG[2].Get("PP"); pp != id1 {
		t.Errorf("AddPGLine chain failed, got %v", pp)
	}
	if _, found := pg.Get("PP"); found {
		t.Error("AddPGLine modified its argument")
	}
}

func TestRunPipeline(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.sam")
	if err := os.WriteFile(input, []byte(testHeader+testAlignments), 0o644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "out.sam")
	in, err := Open(input)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Create(output)
	if err != nil {
		t.Fatal(err)
	}
	var pg utils.StringMap
	pg.Set("ID", "test")
	mappedOnly := func(_ *Header) AlignmentFilter {
		return func(aln *Alignment) bool { return !aln.IsUnmapped() }
	}
	if err := in.RunPipeline(out, []Filter{AddPGLine(pg), mappedOnly}); err != nil {
		t.Fatal(err)
	}
	if err := in.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	hdr, alns, err := ParseSam(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(hdr.PG) != 2 {
		t.Errorf("RunPipeline header failed, got %v @PG lines", len(hdr.PG))
	}
	if len(alns) != 1 || alns[0].QNAME != "m64011/10/ccs" {
		t.Errorf("RunPipeline filter failed, got %v alignments", len(alns))
	}
}
