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
	"github.com/exascience/ccsprep/reads"
)

// Bam2FqHelp is the help string for this command.
const Bam2FqHelp = "\nbam2fq parameters:\n" +
	"ccsprep bam2fq ccs.bam > ccs.fastq\n" +
	"[--qvalue nr]\n" +
	"[--min-length nr]\n" +
	"[--max-length nr]\n" +
	"[--log-path path]\n"

// Bam2Fq implements the ccsprep bam2fq command.
func Bam2Fq() error {
	var (
		logPath              string
		qvalue               float64
		minLength, maxLength int
	)

	var flags flag.FlagSet

	flags.Float64Var(&qvalue, "qvalue", 0, "minimum read accuracy")
	flags.IntVar(&minLength, "min-length", 0, "minimum read length")
	flags.IntVar(&maxLength, "max-length", 0, "maximum read length, 0 for no maximum")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 3, Bam2FqHelp)

	input := getFilename(os.Args[2], Bam2FqHelp)

	var filtered bool
	flags.Visit(func(f *flag.Flag) {
		if f.Name != "log-path" {
			filtered = true
		}
	})

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	} else if format, err := reads.FormatOf(input); err != nil || (format != reads.BAM && format != reads.SAM) {
		log.Printf("Error: Input file %v is not a SAM or BAM file.\n", input)
		sanityChecksFailed = true
	}

	if !checkQValue(qvalue) {
		sanityChecksFailed = true
	}

	if minLength < 0 || maxLength < 0 || (maxLength > 0 && maxLength < minLength) {
		log.Printf("Error: Invalid length range %v-%v.\n", minLength, maxLength)
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, Bam2FqHelp)
		os.Exit(1)
	}

	logger, err := setLogOutput(logPath)
	if err != nil {
		return err
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " bam2fq ", input)
	var window *filters.Window
	if filtered {
		window = &filters.Window{QValue: qvalue, MinLength: minLength, MaxLength: maxLength}
		fmt.Fprint(&command, " --qvalue ", qvalue, " --min-length ", minLength, " --max-length ", maxLength)
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	logger.Println("Executing command:\n", command.String())

	_, err = filters.AlignmentsToFastq(input, os.Stdout, window, logger)
	return err
}
