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

import "strings"

// ccsMarker starts the suffix of consensus read names, as in
// "m64011_190830_220126/10/ccs".
const ccsMarker = "/ccs"

// ConsensusID returns the name of a consensus read without its
// consensus suffix, that is everything before the first "/ccs". Names
// without the suffix are returned unchanged.
func ConsensusID(id string) string {
	if i := strings.Index(id, ccsMarker); i >= 0 {
		return id[:i]
	}
	return id
}

// SubreadID returns the movie/zmw prefix of a subread name, such as
// "m64011_190830_220126/10" for "m64011_190830_220126/10/0_5012".
// For a subread of a consensus read c, SubreadID returns
// ConsensusID(c).
func SubreadID(id string) (string, error) {
	first := strings.IndexByte(id, '/')
	if first <= 0 {
		return "", &MalformedIDError{ID: id}
	}
	end := len(id)
	if second := strings.IndexByte(id[first+1:], '/'); second >= 0 {
		end = first + 1 + second
	}
	if end == first+1 {
		return "", &MalformedIDError{ID: id}
	}
	return id[:end], nil
}
