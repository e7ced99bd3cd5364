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

package utils

import (
	"bufio"
	"io"
	"os"

	"github.com/klauspost/pgzip"

	"github.com/exascience/ccsprep/utils/bgzf"
)

// Input is a file opened for reading that is transparently
// decompressed if it holds gzip (or BGZF) data.
type Input struct {
	io.Reader
	file *os.File
	gz   *pgzip.Reader
}

// OpenInput opens the named file for reading. Compression is detected
// by looking at the initial byte of the file, not by its extension.
//
// If the name is "/dev/stdin", then the input is read from os.Stdin.
func OpenInput(name string) (*Input, error) {
	var file *os.File
	if name == "/dev/stdin" {
		file = os.Stdin
	} else {
		var err error
		if file, err = os.Open(name); err != nil {
			return nil, err
		}
	}
	buf := bufio.NewReader(file)
	ok, err := bgzf.IsGzip(buf)
	if err == io.EOF {
		return &Input{Reader: buf, file: file}, nil
	} else if err != nil {
		_ = file.Close()
		return nil, err
	}
	if !ok {
		return &Input{Reader: buf, file: file}, nil
	}
	gz, err := pgzip.NewReader(buf)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &Input{Reader: gz, file: file, gz: gz}, nil
}

// Close closes the decompressor, if any, and the underlying file.
func (input *Input) Close() (err error) {
	if input.gz != nil {
		err = input.gz.Close()
	}
	if input.file != os.Stdin {
		if nerr := input.file.Close(); err == nil {
			err = nerr
		}
	}
	return err
}
