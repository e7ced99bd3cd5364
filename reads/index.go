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
	"log"

	"github.com/exascience/ccsprep/internal"
)

// Index is a set of consensus read names in ConsensusID form.
type Index struct {
	ids map[string]struct{}
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{ids: make(map[string]struct{})}
}

// Add inserts the ConsensusID of the given read name.
func (index *Index) Add(id string) {
	index.ids[ConsensusID(id)] = struct{}{}
}

// Contains reports whether id, which must already be in canonical
// form, is in the index.
func (index *Index) Contains(id string) bool {
	_, ok := index.ids[id]
	return ok
}

// Len returns the number of distinct ids in the index.
func (index *Index) Len() int {
	return len(index.ids)
}

// BuildIndex reads all records of a file in any supported format and
// returns the set of their consensus ids.
func BuildIndex(name string, logger *log.Logger) (index *Index, err error) {
	reader, err := Open(name, logger)
	if err != nil {
		return nil, err
	}
	defer internal.Close(reader, &err)
	index = NewIndex()
	for reader.Scan() {
		index.Add(reader.Record().ID)
	}
	if err = reader.Err(); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Printf("Indexed %v consensus reads from %v", index.Len(), name)
	}
	return index, nil
}
