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

// ccsprep filters and summarizes PacBio circular consensus reads, and
// recovers the subreads that belong to a set of consensus reads.
//
// Please see https://github.com/exascience/ccsprep for a documentation
// of the tool.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/ccsprep/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: ccs2sub, stat, stat-barcode, filter-bam, bam2fq")
	fmt.Fprint(os.Stderr, "\n", cmd.Ccs2SubHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.StatHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.StatBarcodeHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.FilterBamHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.Bam2FqHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage)
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "ccs2sub":
		err = cmd.Ccs2Sub()
	case "stat":
		err = cmd.Stat()
	case "stat-barcode":
		err = cmd.StatBarcode()
	case "filter-bam":
		err = cmd.FilterBam()
	case "bam2fq":
		err = cmd.Bam2Fq()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
