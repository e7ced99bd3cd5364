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

package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FullPathname returns an absolute version of filename.
func FullPathname(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		return filename, nil
	}
	wd, err := os.Getwd()
	return filepath.Join(wd, filename), err
}

// TempSibling returns a fresh, hidden file name in the same directory
// as name. The extension of name is preserved, so that format
// detection by extension still works on the temporary file.
func TempSibling(name string) string {
	dir, base := filepath.Split(name)
	ext := filepath.Ext(base)
	return filepath.Join(dir, fmt.Sprintf(".%v.%v%v", strings.TrimSuffix(base, ext), uuid.New(), ext))
}

// Close closes c, and stores the resulting error in *err unless
// *err already holds an earlier error.
func Close(c io.Closer, err *error) {
	if nerr := c.Close(); *err == nil {
		*err = nerr
	}
}

// ReplaceFile renames tmp to name, replacing any existing file at
// name. If err is non-nil, tmp is removed instead and name is left
// untouched.
func ReplaceFile(tmp, name string, err *error) {
	if *err != nil {
		_ = os.Remove(tmp)
		return
	}
	if *err = os.Rename(tmp, name); *err != nil {
		_ = os.Remove(tmp)
	}
}
