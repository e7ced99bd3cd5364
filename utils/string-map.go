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

// StringMapEntry is a tag/value pair in a SAM header line.
type StringMapEntry struct {
	Key, Value string
}

// A StringMap holds the tag/value pairs of a SAM header line, such as
// an @SQ or @PG line, in the order in which they were read.
type StringMap []StringMapEntry

// Get returns the value for the given key, and true, or "" and false
// if the key is not present.
func (record StringMap) Get(key string) (string, bool) {
	for _, entry := range record {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return "", false
}

// Set replaces the value for the given key, or appends a new entry
// if the key is not present.
func (record *StringMap) Set(key, value string) {
	for index := range *record {
		if (*record)[index].Key == key {
			(*record)[index].Value = value
			return
		}
	}
	*record = append(*record, StringMapEntry{key, value})
}

// SetUniqueEntry appends the given key/value pair and returns true if
// there is no entry for key yet. Otherwise it returns false and the
// StringMap is not modified.
func (record *StringMap) SetUniqueEntry(key, value string) bool {
	if _, found := record.Get(key); found {
		return false
	}
	*record = append(*record, StringMapEntry{key, value})
	return true
}
