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

// Package reads provides a uniform view of sequencing reads stored in
// FASTA, FASTQ, SAM, or BAM files, together with the read-name
// conventions used to relate PacBio subreads to their consensus reads.
package reads

// Record is a single sequencing read.
//
// Qual is empty when the source has no base qualities, and has the
// same length as Seq otherwise. Accuracy holds the predicted read
// accuracy (the rq tag) when HasAccuracy is true, which only happens
// for SAM and BAM sources.
type Record struct {
	ID          string
	Seq         string
	Qual        string
	Accuracy    float64
	HasAccuracy bool
}

// RequireAccuracy returns the accuracy of the record, or a
// *MissingTagError if it has none.
func (r *Record) RequireAccuracy() (float64, error) {
	if !r.HasAccuracy {
		return 0, &MissingTagError{Tag: "rq", ID: r.ID}
	}
	return r.Accuracy, nil
}

// AccuracyOr returns the accuracy of the record, or def if it has none.
func (r *Record) AccuracyOr(def float64) float64 {
	if !r.HasAccuracy {
		return def
	}
	return r.Accuracy
}
