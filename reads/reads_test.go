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

package reads

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeGzipFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := pgzip.NewWriter(f)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func readAll(t *testing.T, path string) []Record {
	t.Helper()
	reader, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	var records []Record
	for reader.Scan() {
		records = append(records, *reader.Record())
	}
	if err := reader.Err(); err != nil {
		t.Fatal(err)
	}
	return records
}

func TestFormatOf(t *testing.T) {
	for name, want := range map[string]Format{
		"a.fa": FASTA, "a.fasta.gz": FASTA, "dir/a.fq": FASTQ, "a.fastq.gz": FASTQ,
		"a.subreads.bam": BAM, "a.sam": SAM,
	} {
		if got, err := FormatOf(name); err != nil || got != want {
			t.Errorf("FormatOf(%v) = %v, %v", name, got, err)
		}
	}
	_, err := FormatOf("reads.txt")
	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) || unsupported.Path != "reads.txt" {
		t.Errorf("FormatOf of unsupported file failed, got %v", err)
	}
	if _, err := Open("reads.vcf", nil); !errors.As(err, &unsupported) {
		t.Errorf("Open of unsupported file failed, got %v", err)
	}
}

func TestOpenFasta(t *testing.T) {
	path := writeFile(t, "ccs.fa", ">m1/10/ccs\nACG\nT\n>m1/20/ccs\nGG\n")
	records := readAll(t, path)
	if len(records) != 2 || records[0].ID != "m1/10/ccs" || records[0].Seq != "ACGT" || records[1].Seq != "GG" {
		t.Errorf("FASTA records failed, got %v", records)
	}
	if records[0].Qual != "" || records[0].HasAccuracy {
		t.Error("FASTA records should have no quality and no accuracy")
	}
	if _, err := records[0].RequireAccuracy(); err == nil {
		t.Error("RequireAccuracy should fail for FASTA records")
	} else {
		var missing *MissingTagError
		if !errors.As(err, &missing) || missing.Tag != "rq" || missing.ID != "m1/10/ccs" {
			t.Errorf("RequireAccuracy returned %v", err)
		}
	}
	if acc := records[0].AccuracyOr(1.0); acc != 1.0 {
		t.Errorf("AccuracyOr failed, got %v", acc)
	}
}

func TestOpenGzipFastq(t *testing.T) {
	path := writeGzipFile(t, "ccs.fq.gz", "@m1/10/ccs\nACGT\n+\n@III\n@m1/20/ccs\nA\n+\nI\n")
	records := readAll(t, path)
	if len(records) != 2 || records[0].Qual != "@III" || records[1].ID != "m1/20/ccs" {
		t.Errorf("gzip FASTQ records failed, got %v", records)
	}
}

func TestOpenPlainContentWithGzName(t *testing.T) {
	path := writeFile(t, "ccs.fa.gz", ">r1\nAC\n")
	if records := readAll(t, path); len(records) != 1 || records[0].Seq != "AC" {
		t.Errorf("plain content with .gz name failed, got %v", records)
	}
}

func TestOpenSam(t *testing.T) {
	path := writeFile(t, "ccs.sam", "@HD\tVN:1.6\n"+
		"m1/10/ccs\t4\t*\t0\t255\t*\t*\t0\t0\tACGT\tIIII\trq:f:0.995\n"+
		"m1/20/ccs\t4\t*\t0\t255\t*\t*\t0\t0\tAC\t*\n")
	records := readAll(t, path)
	if len(records) != 2 {
		t.Fatalf("SAM records failed, got %v", records)
	}
	if !records[0].HasAccuracy || records[0].Accuracy != float64(float32(0.995)) || records[0].Qual != "IIII" {
		t.Errorf("SAM record 0 failed, got %+v", records[0])
	}
	if records[1].HasAccuracy || records[1].Qual != "" || records[1].Seq != "AC" {
		t.Errorf("SAM record 1 failed, got %+v", records[1])
	}
}

func TestCanonicalIDs(t *testing.T) {
	for _, id := range []string{"m1/10/ccs", "m1/10/ccs/fwd", "m1/10", "plain"} {
		once := ConsensusID(id)
		if ConsensusID(once) != once {
			t.Errorf("ConsensusID not idempotent for %v", id)
		}
	}
	if ConsensusID("m1/10/ccs") != "m1/10" || ConsensusID("plain") != "plain" {
		t.Error("ConsensusID failed")
	}
	for subread, ccs := range map[string]string{
		"m64011_190830_220126/10/0_5012":   "m64011_190830_220126/10/ccs",
		"m64011_190830_220126/12/600_1200": "m64011_190830_220126/12/ccs",
	} {
		id, err := SubreadID(subread)
		if err != nil {
			t.Fatal(err)
		}
		if id != ConsensusID(ccs) {
			t.Errorf("SubreadID(%v) = %v, want %v", subread, id, ConsensusID(ccs))
		}
		if again, _ := SubreadID(id); again != id {
			t.Errorf("SubreadID not idempotent for %v", subread)
		}
	}
	for _, bad := range []string{"", "nosegments", "/10/0_5", "m1//0_5", "m1/"} {
		_, err := SubreadID(bad)
		var malformed *MalformedIDError
		if !errors.As(err, &malformed) {
			t.Errorf("SubreadID(%q) should fail, got %v", bad, err)
		}
	}
}

func TestBuildIndex(t *testing.T) {
	path := writeFile(t, "ccs.fa", ">m1/10/ccs\nA\n>m1/20/ccs\nC\n>m1/10/ccs\nG\n")
	index, err := BuildIndex(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if index.Len() != 2 || !index.Contains("m1/10") || !index.Contains("m1/20") || index.Contains("m1/30") {
		t.Errorf("BuildIndex failed, got %v ids", index.Len())
	}
	if _, err := BuildIndex(filepath.Join(t.TempDir(), "missing.fa"), nil); err == nil {
		t.Error("BuildIndex of missing file should fail")
	}
}
