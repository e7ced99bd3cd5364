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
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/exascience/ccsprep/utils"
)

// ProgramMessage is the first line printed when the ccsprep binary is
// called.
var ProgramMessage string

func init() {
	ProgramMessage = fmt.Sprint(
		"\n", utils.ProgramName, " version ", utils.ProgramVersion,
		" compiled with ", runtime.Version(), " - see ", utils.ProgramURL, " for more information.\n",
	)
}

// HelpMessage is printed to show the --help flag
const HelpMessage = "Print command details:\n" +
	"[--help]\n"

func isHelp(s string) bool {
	switch s {
	case "-h", "--h", "-help", "--help":
		return true
	default:
		return false
	}
}

func getFilename(s, help string) string {
	if isHelp(s) {
		fmt.Fprint(os.Stderr, help)
		os.Exit(0)
	}
	if strings.HasPrefix(s, "-") {
		log.Println("Filename(s) in command line missing.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	return s
}

// getFilenames returns the filenames that follow the command name on
// the command line, up to the first flag.
func getFilenames(help string) []string {
	var filenames []string
	for _, arg := range os.Args[2:] {
		if strings.HasPrefix(arg, "-") {
			if isHelp(arg) {
				fmt.Fprint(os.Stderr, help)
				os.Exit(0)
			}
			break
		}
		filenames = append(filenames, arg)
	}
	if len(filenames) == 0 {
		log.Println("Filename(s) in command line missing.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	return filenames
}

func parseFlags(flags *flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(ioutil.Discard)
	if err := flags.Parse(os.Args[requiredArgs:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			x = 1
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func logCheckFile(parameter, format string, v ...interface{}) {
	if parameter != "" {
		log.Printf(format+" for command line parameter %v.\n", append(v, parameter)...)
	} else {
		log.Printf(format+".\n", v...)
	}
}

func checkExist(parameter, filename string) bool {
	if len(filename) == 0 {
		logCheckFile(parameter, "Error: Missing filename")
		return false
	}
	if filename[0] == '-' {
		logCheckFile(parameter, "Error: Missing filename before %v", filename)
		return false
	}
	if _, err := os.Stat(filename); err == nil {
		return true
	} else if os.IsNotExist(err) {
		logCheckFile(parameter, "Error: File %v does not exist", filename)
		return false
	} else if os.IsPermission(err) {
		logCheckFile(parameter, "Error: No permission to read file %v", filename)
		return false
	} else {
		logCheckFile(parameter, "Error %v when trying to access file %v", err, filename)
		return false
	}
}

func checkCreate(parameter, filename string) bool {
	if len(filename) == 0 {
		logCheckFile(parameter, "Error: Missing filename")
		return false
	}
	if filename[0] == '-' {
		logCheckFile(parameter, "Error: Missing filename before %v", filename)
		return false
	}
	if _, err := os.Stat(filename); err == nil {
		// Assume that the file has been written by previous ccsprep runs, and can be overwritten.
		return true
	}
	err := os.MkdirAll(filepath.Dir(filename), 0700)
	if err == nil {
		err = ioutil.WriteFile(filename, nil, 0666)
	}
	if err != nil {
		if os.IsPermission(err) {
			logCheckFile(parameter, "Error: No permission to create file %v", filename)
		} else {
			logCheckFile(parameter, "Error %v when trying to create file %v", err, filename)
		}
		return false
	}
	_ = os.Remove(filename)
	return true
}

func checkDir(parameter, dir string) bool {
	if dir == "" {
		return true
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		logCheckFile(parameter, "Error %v when trying to create directory %v", err, dir)
		return false
	}
	return true
}

func checkQValue(qvalue float64) bool {
	if qvalue < 0 || qvalue > 1 {
		log.Println("Error: Invalid qvalue, must be between 0 and 1: ", qvalue)
		return false
	}
	return true
}

func createLogFilename() string {
	t := time.Now()
	zone, _ := t.Zone()
	return fmt.Sprintf("logs/ccsprep/ccsprep-%d-%02d-%02d-%02d-%02d-%02d-%09d-%v.log", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), zone)
}

// setLogOutput returns the logger for the core packages. If path is
// not empty, a log file is created in path, stderr is duplicated into
// it, and both the standard logger and the returned logger write to
// the log file and the original stderr.
func setLogOutput(path string) (*log.Logger, error) {
	if path == "" {
		return log.New(os.Stderr, "", log.LstdFlags), nil
	}
	fullPath := filepath.Join(path, createLogFilename())
	if err := os.MkdirAll(filepath.Dir(fullPath), 0700); err != nil {
		return nil, err
	}
	f, err := os.Create(fullPath)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(f, ProgramMessage)

	orgStderr, err := unix.Dup(2)
	if err != nil {
		return nil, err
	}
	ferr := os.NewFile(uintptr(orgStderr), "/dev/stderr")
	if err := unix.Dup2(int(f.Fd()), 2); err != nil {
		return nil, err
	}

	multi := io.MultiWriter(f, ferr)

	log.SetOutput(multi)
	logger := log.New(multi, "", log.LstdFlags)
	logger.Println("Created log file at", fullPath)
	logger.Println("Command line:", os.Args)
	return logger, nil
}
