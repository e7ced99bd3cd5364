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
	"path/filepath"
	"reflect"
	"testing"
)

func TestBamRoundTrip(t *testing.T) {
	hdr, alns, err := ParseSam([]byte(testHeader + testAlignments))
	if err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(t.TempDir(), "round-trip.bam")
	out, err := Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if err := out.FormatHeader(hdr); err != nil {
		t.Fatal(err)
	}
	for _, aln := range alns {
		if err := out.WriteAlignment(aln); err != nil {
			t.Fatal(err)
		}
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	in, err := Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()
	readHdr, err := in.ParseHeader()
	if err != nil {
		t.Fatal(err)
	}
	if got := string(readHdr.FormatSam(nil)); got != testHeader {
		t.Errorf("BAM header round trip failed, got\n%v", got)
	}
	sc := NewScanner(in)
	var readAlns []*Alignment
	for sc.Scan() {
		readAlns = append(readAlns, sc.Alignment())
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	if len(readAlns) != len(alns) {
		t.Fatalf("expected %v alignments, got %v", len(alns), len(readAlns))
	}
	for i, aln := range alns {
		got := readAlns[i]
		if got.QNAME != aln.QNAME || got.FLAG != aln.FLAG || got.RNAME != aln.RNAME || got.POS != aln.POS ||
			got.MAPQ != aln.MAPQ || got.RNEXT != aln.RNEXT || got.PNEXT != aln.PNEXT || got.TLEN != aln.TLEN ||
			got.SEQ != aln.SEQ || got.QUAL != aln.QUAL {
			t.Errorf("BAM alignment %v round trip failed, got %+v", i, got)
		}
		if !reflect.DeepEqual(got.CIGAR, aln.CIGAR) {
			t.Errorf("BAM CIGAR %v round trip failed, got %v", i, got.CIGAR)
		}
		if !reflect.DeepEqual(got.TAGS, aln.TAGS) {
			t.Errorf("BAM tags %v round trip failed, got %v", i, got.TAGS)
		}
	}
	if acc, ok := readAlns[0].Accuracy(); !ok || acc != float64(float32(0.99)) {
		t.Errorf("BAM Accuracy failed, got %v %v", acc, ok)
	}
}

func TestBin(t *testing.T) {
	unmapped := &Alignment{FLAG: Unmapped}
	if bin := unmapped.bin(); bin != 4680 {
		t.Errorf("bin of unplaced read failed, got %v", bin)
	}
	aln := &Alignment{POS: 1, CIGAR: []CigarOperation{{100, 'M'}}}
	if bin := aln.bin(); bin != 4681 {
		t.Errorf("bin of mapped read failed, got %v", bin)
	}
}

func TestParseBamAlignmentTruncated(t *testing.T) {
	if _, err := parseBamAlignment(make([]byte, 10), nil); err == nil {
		t.Error("truncated BAM record accepted")
	}
}
