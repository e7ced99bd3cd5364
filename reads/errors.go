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
	"fmt"
	"strings"
)

// UnsupportedFormatError is returned when a file name ends in none of
// the recognized suffixes.
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%v: unsupported file format, expected one of %v", e.Path, strings.Join(suffixes(), ", "))
}

// MissingTagError is returned when a record lacks an optional field
// that the caller requires.
type MissingTagError struct {
	Tag string
	ID  string
}

func (e *MissingTagError) Error() string {
	return fmt.Sprintf("read %v has no %v tag", e.ID, e.Tag)
}

// MalformedIDError is returned for read ids that do not have the
// movie/zmw/... structure of PacBio read names.
type MalformedIDError struct {
	ID string
}

func (e *MalformedIDError) Error() string {
	return fmt.Sprintf("malformed read id %q, expected at least two '/'-separated segments", e.ID)
}
