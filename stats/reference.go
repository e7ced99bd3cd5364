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
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Estimator selects how the reference length of a sample is derived
// from its read lengths.
type Estimator int

// The supported estimators.
const (
	Mode Estimator = iota
	Median
	Mean
)

func (e Estimator) String() string {
	switch e {
	case Mode:
		return "mode"
	case Median:
		return "median"
	case Mean:
		return "mean"
	default:
		return fmt.Sprintf("Estimator(%d)", int(e))
	}
}

// ParseEstimator returns the estimator with the given name. The name
// "model" is accepted as an alias of "mode".
func ParseEstimator(name string) (Estimator, error) {
	switch name {
	case "mode", "model":
		return Mode, nil
	case "median":
		return Median, nil
	case "mean":
		return Mean, nil
	default:
		return 0, fmt.Errorf("unknown reference length estimator %v, must be one of mode, median, or mean", name)
	}
}

// ReferenceLength estimates the reference length of the given read
// lengths. It returns 0 for an empty slice.
func (e Estimator) ReferenceLength(lengths []int) float64 {
	if len(lengths) == 0 {
		return 0
	}
	switch e {
	case Median:
		return median(lengths)
	case Mean:
		return mean(lengths)
	default:
		return mode(lengths)
	}
}

// mode returns the most frequent length, the smallest one on ties.
func mode(lengths []int) float64 {
	max := 0
	for _, l := range lengths {
		if l > max {
			max = l
		}
	}
	histogram := make([]float64, max+1)
	for _, l := range lengths {
		histogram[l]++
	}
	return float64(floats.MaxIdx(histogram))
}

func median(lengths []int) float64 {
	sorted := append([]int(nil), lengths...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

func mean(lengths []int) float64 {
	values := make([]float64, len(lengths))
	for i, l := range lengths {
		values[i] = float64(l)
	}
	return stat.Mean(values, nil)
}
