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
	"path/filepath"
	"sort"
	"strings"
)

const sampleMarker = "--"

// SampleName derives the name of a sample from the path of its input
// file.
//
// For a base name of the form "<prefix>--<sample>.bam", the part
// between the first "--" and the next "--" is taken, cut at the first
// ".bam". Otherwise the base name is cut at its first ".".
func SampleName(path string) string {
	name := filepath.Base(path)
	if strings.Contains(name, sampleMarker) {
		name = strings.Split(name, sampleMarker)[1]
		if i := strings.Index(name, ".bam"); i >= 0 {
			name = name[:i]
		}
		return name
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

// N50 returns the largest length L such that the lengths >= L cover
// at least half of the total length. It returns 0 for an empty slice.
func N50(lengths []int) int {
	sorted := append([]int(nil), lengths...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	var sum int
	for _, l := range sorted {
		sum += l
	}
	var acc int
	for _, l := range sorted {
		acc += l
		if 2*acc >= sum {
			return l
		}
	}
	return 0
}
