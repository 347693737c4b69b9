// Package quantile computes interpolated cutoff values over sorted
// distributions. It is the single numeric authority for quantile-based filter
// rules so that remove- and include-class rules agree bit-for-bit.
package quantile

import (
	"fmt"
	"math"

	"github.com/cognicore/winnow/pkg/winnow/internalerr"
)

// Cutoff returns the value at the given fraction of a sorted distribution.
// The rank position is (len-1) × fraction; a fractional position linearly
// interpolates between the two bracketing values using the fractional part as
// the interpolation weight. The input must already be sorted (ascending for a
// lower-tail cutoff, descending for an upper-tail cutoff); Cutoff itself is
// direction-agnostic.
func Cutoff(sorted []float64, fraction float64) (float64, error) {
	if len(sorted) == 0 {
		return 0, fmt.Errorf("quantile cutoff: %w", internalerr.ErrEmptyCorpus)
	}
	if fraction < 0 || fraction > 1 || math.IsNaN(fraction) {
		return 0, fmt.Errorf("quantile cutoff: fraction %v outside [0,1]: %w", fraction, internalerr.ErrInvalidRule)
	}

	pos := float64(len(sorted)-1) * fraction
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo]), nil
}
