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

	"github.com/exascience/ccsprep/filters"
	"github.com/exascience/ccsprep/internal"
	"github.com/exascience/ccsprep/reads"
)

// Ccs2SubHelp is the help string for this command.
const Ccs2SubHelp = "\nccs2sub parameters:\n" +
	"ccsprep ccs2sub subreads.bam --ccs ccs-file\n" +
	"[--out out.subreads.bam]\n" +
	"[--log-path path]\n"

// Ccs2Sub implements the ccsprep ccs2sub command.
func Ccs2Sub() error {
	var ccs, output, logPath string

	var flags flag.FlagSet

	flags.StringVar(&ccs, "ccs", "", "consensus reads in fasta, fastq, sam, or bam format")
	flags.StringVar(&output, "out", "out.subreads.bam", "output file for the matching subreads")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 3, Ccs2SubHelp)

	subreads := getFilename(os.Args[2], Ccs2SubHelp)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", subreads) {
		sanityChecksFailed = true
	} else if format, err := reads.FormatOf(subreads); err != nil {
		log.Println("Error:", err)
		sanityChecksFailed = true
	} else if format != reads.BAM && format != reads.SAM {
		log.Printf("Error: Subreads file %v is not a SAM or BAM file.\n", subreads)
		sanityChecksFailed = true
	}

	if !checkExist("--ccs", ccs) {
		sanityChecksFailed = true
	} else if _, err := reads.FormatOf(ccs); err != nil {
		log.Println("Error:", err)
		sanityChecksFailed = true
	}

	if !checkCreate("--out", output) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, Ccs2SubHelp)
		os.Exit(1)
	}

	logger, err := setLogOutput(logPath)
	if err != nil {
		return err
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " ccs2sub ", subreads, " --ccs ", ccs, " --out ", output)
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	logger.Println("Executing command:\n", command.String())

	fullOutput, err := internal.FullPathname(output)
	if err != nil {
		return err
	}

	index, err := reads.BuildIndex(ccs, logger)
	if err != nil {
		return err
	}
	_, err = filters.MatchSubreads(subreads, fullOutput, index, logger)
	return err
}
