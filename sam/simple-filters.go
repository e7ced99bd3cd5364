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

package sam

import (
	"math/rand"
	"strconv"

	"github.com/exascience/ccsprep/utils"
)

func findPG(pgs []utils.StringMap, key, value string) bool {
	for _, pg := range pgs {
		if v, ok := pg.Get(key); ok && v == value {
			return true
		}
	}
	return false
}

/*
AddPGLine returns a filter for adding a @PG tag to a Header, and
ensuring that it is the first one in the chain. The ID is made unique
by appending a random suffix when necessary, and PP refers to the
last program in the existing chain, if any.
*/
func AddPGLine(newPG utils.StringMap) Filter {
	return func(header *Header) AlignmentFilter {
		pg := append(utils.StringMap(nil), newPG...)
		id, _ := pg.Get("ID")
		for findPG(header.PG, "ID", id) {
			id += " "
			id += strconv.FormatInt(rand.Int63n(0x10000), 16)
		}
		pg.Set("ID", id)
		for _, previous := range header.PG {
			previousID, _ := previous.Get("ID")
			if !findPG(header.PG, "PP", previousID) {
				pg.Set("PP", previousID)
				break
			}
		}
		header.PG = append(header.PG, pg)
		return nil
	}
}
