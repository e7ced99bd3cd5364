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

package cmd

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/exascience/ccsprep/filters"
	"github.com/exascience/ccsprep/reads"
	"github.com/exascience/ccsprep/sam"
	"github.com/exascience/ccsprep/stats"
)

// FilterBamHelp is the help string for this command.
const FilterBamHelp = "\nfilter-bam parameters:\n" +
	"ccsprep filter-bam ccs.bam [ccs.bam ...]\n" +
	"[--qvalue nr]\n" +
	"[--output-dir path]\n" +
	"[--log-path path]\n"

// FilterBam implements the ccsprep filter-bam command.
func FilterBam() error {
	var (
		outputDir, logPath string
		qvalue             float64
	)

	inputs := getFilenames(FilterBamHelp)

	var flags flag.FlagSet

	flags.Float64Var(&qvalue, "qvalue", 0.9, "minimum read accuracy")
	flags.StringVar(&outputDir, "output-dir", "", "directory for the filtered files")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 2+len(inputs), FilterBamHelp)

	// sanity checks

	var sanityChecksFailed bool

	for _, input := range inputs {
		if !checkExist("", input) {
			sanityChecksFailed = true
		} else if format, err := reads.FormatOf(input); err != nil || (format != reads.BAM && format != reads.SAM) {
			log.Printf("Error: Input file %v is not a SAM or BAM file.\n", input)
			sanityChecksFailed = true
		}
	}

	if !checkQValue(qvalue) {
		sanityChecksFailed = true
	}

	if !checkDir("--output-dir", outputDir) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, FilterBamHelp)
		os.Exit(1)
	}

	logger, err := setLogOutput(logPath)
	if err != nil {
		return err
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " filter-bam")
	for _, input := range inputs {
		fmt.Fprint(&command, " ", input)
	}
	fmt.Fprint(&command, " --qvalue ", qvalue)
	if outputDir != "" {
		fmt.Fprint(&command, " --output-dir ", outputDir)
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	logger.Println("Executing command:\n", command.String())

	var failed []string
	for _, input := range inputs {
		output := filepath.Join(outputDir, stats.SampleName(input)+".clean"+sam.BamExt)
		if _, err := filters.FilterBam(input, output, qvalue, command.String(), logger); err != nil {
			logger.Printf("Skipping %v: %v", input, err)
			failed = append(failed, input)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to filter %v of %v inputs: %v", len(failed), len(inputs), strings.Join(failed, ", "))
	}
	return nil
}
