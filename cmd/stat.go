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

	"github.com/exascience/ccsprep/internal"
	"github.com/exascience/ccsprep/stats"
)

// StatHelp is the help string for the stat command.
const StatHelp = "\nstat parameters:\n" +
	"ccsprep stat ccs.bam [ccs.bam ...]\n" +
	"[--about nr]\n" +
	"[--qvalue nr]\n" +
	"[--model [mode | median | mean]]\n" +
	"[--out file]\n" +
	"[--output-dir path]\n" +
	"[--log-path path]\n"

// StatBarcodeHelp is the help string for the stat-barcode command.
const StatBarcodeHelp = "\nstat-barcode parameters:\n" +
	"ccsprep stat-barcode reads-file [reads-file ...]\n" +
	"[--about nr]\n" +
	"[--qvalue nr]\n" +
	"[--model [mode | median | mean]]\n" +
	"[--out file]\n" +
	"[--output-dir path]\n" +
	"[--log-path path]\n"

// Stat implements the ccsprep stat command. It reads SAM/BAM files
// with rq tags and writes the filtered reads in FASTQ format.
func Stat() error {
	return runStat("stat", StatHelp, stats.FASTQOutput, nil)
}

// StatBarcode implements the ccsprep stat-barcode command. It reads
// files in any supported format, assumes an accuracy of 1 for reads
// without an rq tag, and writes the filtered reads in FASTA format.
func StatBarcode() error {
	defaultAccuracy := 1.0
	return runStat("stat-barcode", StatBarcodeHelp, stats.FASTAOutput, &defaultAccuracy)
}

func runStat(command, help string, format stats.OutputFormat, defaultAccuracy *float64) (err error) {
	var (
		model, output, outputDir, logPath string
		about                             int
		qvalue                            float64
	)

	inputs := getFilenames(help)

	var flags flag.FlagSet

	flags.IntVar(&about, "about", 3, "allowed distance of read lengths from the reference length")
	flags.Float64Var(&qvalue, "qvalue", 0.99, "minimum read accuracy")
	flags.StringVar(&model, "model", "mode", "reference length estimator: mode, median, or mean")
	flags.StringVar(&output, "out", "out.tsv", "output file for the summary table")
	flags.StringVar(&outputDir, "output-dir", "", "directory for the filtered reads")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 2+len(inputs), help)

	// sanity checks

	var sanityChecksFailed bool

	if about < 0 {
		log.Println("Error: Invalid about, must not be negative: ", about)
		sanityChecksFailed = true
	}

	if !checkQValue(qvalue) {
		sanityChecksFailed = true
	}

	estimator, perr := stats.ParseEstimator(model)
	if perr != nil {
		log.Println("Error:", perr)
		sanityChecksFailed = true
	}

	if !checkCreate("--out", output) {
		sanityChecksFailed = true
	}

	if !checkDir("--output-dir", outputDir) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}

	logger, err := setLogOutput(logPath)
	if err != nil {
		return err
	}

	// building output command line

	var commandLine bytes.Buffer
	fmt.Fprint(&commandLine, os.Args[0], " ", command)
	for _, input := range inputs {
		fmt.Fprint(&commandLine, " ", input)
	}
	fmt.Fprint(&commandLine, " --about ", about, " --qvalue ", qvalue, " --model ", estimator, " --out ", output)
	if outputDir != "" {
		fmt.Fprint(&commandLine, " --output-dir ", outputDir)
	}
	if logPath != "" {
		fmt.Fprint(&commandLine, " --log-path ", logPath)
	}

	// executing command

	logger.Println("Executing command:\n", commandLine.String())

	table, err := os.Create(output)
	if err != nil {
		return err
	}
	defer internal.Close(table, &err)

	engine := &stats.Engine{
		About:           about,
		QValue:          qvalue,
		Estimator:       estimator,
		Format:          format,
		DefaultAccuracy: defaultAccuracy,
		OutputDir:       outputDir,
		Logger:          logger,
	}
	_, err = engine.Run(inputs, table, os.Stdout)
	return err
}
