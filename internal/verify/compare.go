package verify

import (
	"fmt"
	"math"
)

// Default tolerances for comparing kernel output against the
// double-precision reference.
const (
	DefaultAbsTol = 2e-4
	DefaultRelTol = 1e-4
)

// NearAbsRel accepts a and b when |a-b| <= max(absTol, relTol*max(|a|,|b|)).
// Both values must be finite; a NaN or Inf on either side fails outright so
// a poisoned kernel output can never slip through as "close enough".
func NearAbsRel(a, b, absTol, relTol float64) error {
	if math.IsNaN(a) || math.IsInf(a, 0) || math.IsNaN(b) || math.IsInf(b, 0) {
		return fmt.Errorf("non-finite value(s): got=%v want=%v", a, b)
	}
	diff := math.Abs(a - b)
	rel := relTol * math.Max(math.Abs(a), math.Abs(b))
	thr := math.Max(absTol, rel)
	if diff <= thr {
		return nil
	}
	return fmt.Errorf("values differ by %v > max(abs_tol=%v, rel_tol*max=%v): got=%v want=%v",
		diff, absTol, rel, a, b)
}
