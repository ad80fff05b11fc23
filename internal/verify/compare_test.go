package verify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNearAbsRel_Accepts(t *testing.T) {
	// Exact match.
	require.NoError(t, NearAbsRel(1.5, 1.5, DefaultAbsTol, DefaultRelTol))
	// Small values inside the absolute band.
	require.NoError(t, NearAbsRel(1e-5, -1e-5, DefaultAbsTol, DefaultRelTol))
	// Large values inside the relative band: 1e-4 relative on 1000 allows 0.1.
	require.NoError(t, NearAbsRel(1000.0, 1000.05, DefaultAbsTol, DefaultRelTol))
	// Boundary: difference exactly at the absolute threshold passes.
	require.NoError(t, NearAbsRel(0.0, DefaultAbsTol, DefaultAbsTol, DefaultRelTol))
}

func TestNearAbsRel_Rejects(t *testing.T) {
	err := NearAbsRel(0.0, 3e-4, DefaultAbsTol, DefaultRelTol)
	require.Error(t, err)
	require.Contains(t, err.Error(), "differ")

	// Relative band does not rescue a large absolute gap on small values.
	require.Error(t, NearAbsRel(0.001, 0.002, DefaultAbsTol, DefaultRelTol))

	// Outside the relative band on large values.
	require.Error(t, NearAbsRel(1000.0, 1000.5, DefaultAbsTol, DefaultRelTol))
}

func TestNearAbsRel_NonFinite(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	require.Error(t, NearAbsRel(nan, 1.0, DefaultAbsTol, DefaultRelTol))
	require.Error(t, NearAbsRel(1.0, nan, DefaultAbsTol, DefaultRelTol))
	// NaN on both sides still fails: there is no "equally poisoned" pass.
	require.Error(t, NearAbsRel(nan, nan, DefaultAbsTol, DefaultRelTol))
	require.Error(t, NearAbsRel(inf, inf, DefaultAbsTol, DefaultRelTol))
	require.Error(t, NearAbsRel(math.Inf(-1), 1.0, DefaultAbsTol, DefaultRelTol))
}

func TestNearAbsRel_Symmetric(t *testing.T) {
	a, b := 123.456, 123.4561
	require.Equal(t,
		NearAbsRel(a, b, DefaultAbsTol, DefaultRelTol) == nil,
		NearAbsRel(b, a, DefaultAbsTol, DefaultRelTol) == nil)
}
