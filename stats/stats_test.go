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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReferenceLength(t *testing.T) {
	tests := []struct {
		estimator Estimator
		lengths   []int
		expected  float64
	}{
		{Mode, []int{100, 100, 100, 101, 101, 99}, 100},
		{Mode, []int{100, 100, 101, 101}, 100},
		{Mode, []int{7}, 7},
		{Median, []int{4, 1, 3}, 3},
		{Median, []int{4, 1, 3, 2}, 2.5},
		{Mean, []int{1, 2, 3, 6}, 3},
		{Mode, nil, 0},
		{Median, nil, 0},
		{Mean, nil, 0},
	}
	for _, test := range tests {
		if got := test.estimator.ReferenceLength(test.lengths); got != test.expected {
			t.Errorf("%v of %v: got %v, expected %v", test.estimator, test.lengths, got, test.expected)
		}
	}
}

func TestParseEstimator(t *testing.T) {
	for name, expected := range map[string]Estimator{"mode": Mode, "model": Mode, "median": Median, "mean": Mean} {
		got, err := ParseEstimator(name)
		if err != nil {
			t.Errorf("ParseEstimator(%v): %v", name, err)
		} else if got != expected {
			t.Errorf("ParseEstimator(%v): got %v, expected %v", name, got, expected)
		}
	}
	if _, err := ParseEstimator("max"); err == nil {
		t.Error("ParseEstimator(max): missing error")
	}
}

func TestSampleName(t *testing.T) {
	tests := map[string]string{
		"m64011_190830_220126--sampleA.bam": "sampleA",
		"/data/run1/lib--s1--bc1001.bam":    "s1",
		"run--s2.bam.ccs.bam":               "s2",
		"sample.ccs.bam":                    "sample",
		"dir.d/sample.fq.gz":                "sample",
		"noext":                             "noext",
	}
	for path, expected := range tests {
		if got := SampleName(path); got != expected {
			t.Errorf("SampleName(%v): got %v, expected %v", path, got, expected)
		}
	}
}

func TestN50(t *testing.T) {
	if got := N50([]int{2, 3, 4, 5, 6}); got != 5 {
		t.Errorf("got %v, expected 5", got)
	}
	if got := N50([]int{10}); got != 10 {
		t.Errorf("got %v, expected 10", got)
	}
	if got := N50(nil); got != 0 {
		t.Errorf("got %v, expected 0", got)
	}
}

func entriesOf(lengths []int, accuracies []float64) []entry {
	var entries []entry
	for i, l := range lengths {
		entries = append(entries, entry{
			key: recordKey{ID: string(rune('a' + i)), Accuracy: accuracies[i]},
			seq: strings.Repeat("A", l),
		})
	}
	return entries
}

func TestKeep(t *testing.T) {
	entries := entriesOf([]int{998, 1000, 1050}, []float64{0.95, 0.99, 0.999})
	kept := keep(entries, 1000, 3, 0.9)
	if kept.Count() != 2 || !kept.Test(0) || !kept.Test(1) || kept.Test(2) {
		t.Fatalf("unexpected kept set %v", kept)
	}
	var sample Sample
	sample.tally(entries, kept)
	if sample.Tier1 != 2 || sample.Tier2 != 0 || sample.Tier3 != 0 {
		t.Errorf("unexpected tiers %v %v %v", sample.Tier1, sample.Tier2, sample.Tier3)
	}
	if sample.MeanLength != 999 {
		t.Errorf("got mean length %v, expected 999", sample.MeanLength)
	}

	entries = entriesOf([]int{10, 10, 10, 10}, []float64{0.5, 0.999, 0.9999, 1})
	kept = keep(entries, 10, 0, 0.99)
	sample = Sample{}
	sample.tally(entries, kept)
	if sample.Tier1 != 3 || sample.Tier2 != 3 || sample.Tier3 != 2 {
		t.Errorf("unexpected tiers %v %v %v", sample.Tier1, sample.Tier2, sample.Tier3)
	}
}

func TestCollection(t *testing.T) {
	c := newCollection()
	c.add(recordKey{"r1", 0.9}, "AC", "II")
	c.add(recordKey{"r2", 0.9}, "ACG", "III")
	c.add(recordKey{"r1", 0.95}, "A", "I")
	c.add(recordKey{"r1", 0.9}, "ACGT", "IIII")
	if len(c.entries) != 3 {
		t.Fatalf("got %v entries, expected 3", len(c.entries))
	}
	if c.entries[0].key.ID != "r1" || c.entries[0].seq != "ACGT" {
		t.Errorf("duplicate key did not replace the first entry in place: %+v", c.entries[0])
	}
	if c.entries[1].key.ID != "r2" || c.entries[2].key.Accuracy != 0.95 {
		t.Errorf("unexpected order %+v", c.entries)
	}
}

func TestFormatID(t *testing.T) {
	if got := FormatID("m1/10/ccs", float64(float32(0.99))); got != "m1/10/ccs [rq=0.99]" {
		t.Errorf("got %v", got)
	}
	if got := FormatID("r", 1); got != "r [rq=1]" {
		t.Errorf("got %v", got)
	}
}

func TestWriteTableRow(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTableHeader(&buf); err != nil {
		t.Fatal(err)
	}
	samples := []*Sample{
		{Name: "s", Total: 1234, Tier1: 1000, Tier2: 10, Tier3: 1, MeanLength: 1234.5},
		{Name: "empty"},
		{Name: "big", Total: 1234567, Tier1: 1234567, MeanLength: 15000},
	}
	for _, s := range samples {
		if err := WriteTableRow(&buf, s); err != nil {
			t.Fatal(err)
		}
	}
	expected := "Sample\tTotal_CCS\tQ20_CCS\tQ30_CCS\tQ40_CCS\tAverage_length(bp)\tEffective_Rate(%)\n" +
		"s\t1,234\t1,000\t10\t1\t1,234.50\t81.04\n" +
		"empty\t0\t0\t0\t0\t0.00\t0.00\n" +
		"big\t1,234,567\t1,234,567\t0\t0\t15,000.00\t100.00\n"
	if got := buf.String(); got != expected {
		t.Errorf("got\n%q\nexpected\n%q", got, expected)
	}
}

func TestWriteBlocks(t *testing.T) {
	samples := []*Sample{
		{Name: "a", Total: 4, Tier1: 2, Tier2: 1, MeanLength: 1000},
		{Name: "b", Total: 3, Tier1: 1, Tier2: 1, Tier3: 1, MeanLength: 10.5},
	}
	var buf bytes.Buffer
	if err := WriteBlocks(&buf, samples); err != nil {
		t.Fatal(err)
	}
	expected := `field = ["Sample", "Total_CCS", "Q20_CCS", "Q30_CCS", "Q40_CCS", "Average_length(bp)", "Effective_Rate(%)"]
summary = {"a": {"Total_CCS": 4, "Q20_CCS": 2, "Q30_CCS": 1, "Q40_CCS": 0, "Average_length(bp)": 1000.0, "Effective_Rate(%)": 50.0}, "b": {"Total_CCS": 3, "Q20_CCS": 1, "Q30_CCS": 1, "Q40_CCS": 1, "Average_length(bp)": 10.5, "Effective_Rate(%)": 33.33}}
sample_lib_lane = {"a": ["a", "", ""], "b": ["b", "", ""]}
`
	if got := buf.String(); got != expected {
		t.Errorf("got\n%v\nexpected\n%v", got, expected)
	}

	buf.Reset()
	if err := WriteBlocks(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "summary = {}\nsample_lib_lane = {}\n") {
		t.Errorf("unexpected empty blocks %q", buf.String())
	}
}

func samLine(id, seq, rq string) string {
	line := id + "\t4\t*\t0\t255\t*\t*\t0\t0\t" + seq + "\t" + strings.Repeat("I", len(seq))
	if rq != "" {
		line += "\trq:f:" + rq
	}
	return line + "\n"
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(name, []byte(content), 0666); err != nil {
		t.Fatal(err)
	}
}

func TestEngineRun(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "s1.sam")
	writeFile(t, good, "@HD\tVN:1.6\n"+
		samLine("r1", "AAAAAAAAAA", "0.99")+
		samLine("r2", "CCCCCCCCCC", "1")+
		samLine("r3", "GGGGGGGGGG", "0.5")+
		samLine("r4", "TTTTTTTTTTTTTTTTTTTT", "0.99"))
	missing := filepath.Join(dir, "s2.sam")
	writeFile(t, missing, samLine("r1", "ACGT", ""))
	unsupported := filepath.Join(dir, "s3.txt")
	writeFile(t, unsupported, "ACGT\n")

	engine := &Engine{About: 3, QValue: 0.9, Estimator: Mode, OutputDir: dir}
	var table, blocks bytes.Buffer
	samples, err := engine.Run([]string{missing, good, unsupported}, &table, &blocks)
	if err == nil {
		t.Fatal("missing error for failed inputs")
	}
	if !strings.Contains(err.Error(), missing) || !strings.Contains(err.Error(), unsupported) || strings.Contains(err.Error(), good) {
		t.Errorf("unexpected error %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %v samples, expected 1", len(samples))
	}
	s := samples[0]
	if s.Name != "s1" || s.Total != 4 || s.Tier1 != 2 || s.Tier2 != 1 || s.Tier3 != 1 || s.ReferenceLength != 10 {
		t.Errorf("unexpected sample %+v", s)
	}
	if len(s.Lengths) != 4 {
		t.Errorf("got %v lengths, expected 4", len(s.Lengths))
	}
	if !strings.HasSuffix(table.String(), "\ns1\t4\t2\t1\t1\t10.00\t50.00\n") {
		t.Errorf("unexpected table %q", table.String())
	}
	if !strings.Contains(blocks.String(), `sample_lib_lane = {"s1": ["s1", "", ""]}`) {
		t.Errorf("unexpected blocks %q", blocks.String())
	}

	output, err := os.ReadFile(filepath.Join(dir, "s1.clean.fastq"))
	if err != nil {
		t.Fatal(err)
	}
	expected := "@r1 [rq=0.99]\nAAAAAAAAAA\n+\nIIIIIIIIII\n@r2 [rq=1]\nCCCCCCCCCC\n+\nIIIIIIIIII\n"
	if string(output) != expected {
		t.Errorf("got output\n%q\nexpected\n%q", output, expected)
	}
	if _, err := os.Stat(filepath.Join(dir, "s2.clean.fastq")); !os.IsNotExist(err) {
		t.Errorf("output written for a failed input")
	}
}

func TestEngineFastaVariant(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bc1.fa")
	writeFile(t, input, ">r1 desc\nACGT\n>r2\nACG\nT\n>r3\nAC\n")
	accuracy := 1.0
	engine := &Engine{About: 0, QValue: 0.99, Estimator: Mode, Format: FASTAOutput, DefaultAccuracy: &accuracy, OutputDir: dir}
	var table, blocks bytes.Buffer
	samples, err := engine.Run([]string{input}, &table, &blocks)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 1 || samples[0].Tier1 != 2 || samples[0].Tier3 != 2 {
		t.Fatalf("unexpected samples %+v", samples)
	}
	output, err := os.ReadFile(filepath.Join(dir, "bc1.clean.fasta"))
	if err != nil {
		t.Fatal(err)
	}
	if expected := ">r1 [rq=1]\nACGT\n>r2 [rq=1]\nACGT\n"; string(output) != expected {
		t.Errorf("got output %q, expected %q", output, expected)
	}
}

func TestEngineEmptyInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "none.sam")
	writeFile(t, input, "@HD\tVN:1.6\n")
	engine := &Engine{About: 3, QValue: 0.99, OutputDir: dir}
	var table, blocks bytes.Buffer
	samples, err := engine.Run([]string{input}, &table, &blocks)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 1 || samples[0].ReferenceLength != 0 {
		t.Fatalf("unexpected samples %+v", samples)
	}
	if !strings.HasSuffix(table.String(), "\nnone\t0\t0\t0\t0\t0.00\t0.00\n") {
		t.Errorf("unexpected table %q", table.String())
	}
	if !strings.Contains(blocks.String(), `"Average_length(bp)": 0.0, "Effective_Rate(%)": 0.0}`) {
		t.Errorf("unexpected blocks %q", blocks.String())
	}
}

func TestEngineNothingKept(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "x.sam")
	writeFile(t, input, samLine("r1", "ACGT", "0.5")+samLine("r2", "ACGT", "0.6"))
	engine := &Engine{About: 3, QValue: 0.99, OutputDir: dir}
	var table, blocks bytes.Buffer
	samples, err := engine.Run([]string{input}, &table, &blocks)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 1 || samples[0].Total != 2 || samples[0].Tier1 != 0 || samples[0].MeanLength != 0 {
		t.Fatalf("unexpected samples %+v", samples)
	}
	if !strings.HasSuffix(table.String(), "\nx\t2\t0\t0\t0\t0.00\t0.00\n") {
		t.Errorf("unexpected table %q", table.String())
	}
	if !strings.Contains(blocks.String(), `"x": {"Total_CCS": 2, "Q20_CCS": 0, "Q30_CCS": 0, "Q40_CCS": 0, "Average_length(bp)": 0.0, "Effective_Rate(%)": 0.0}`) {
		t.Errorf("unexpected blocks %q", blocks.String())
	}
	output, err := os.ReadFile(filepath.Join(dir, "x.clean.fastq"))
	if err != nil {
		t.Fatal(err)
	}
	if len(output) != 0 {
		t.Errorf("got output %q, expected an empty file", output)
	}
}
