package verify

import (
	"math"

	"github.com/23skdu/longbow-bodkin/internal/device"
)

// MatmulOracle computes the ground-truth output value for one (token, row)
// coordinate: bias plus the input·weight dot product, accumulated in double
// precision with fused multiply-adds in strictly increasing column order.
// All four kernel variants share the same arithmetic contract, so this one
// sequential accumulation validates each of them; optimized kernels are
// never compared against other optimized kernels.
func MatmulOracle(input []float32, weight, bias []device.BFloat16, token, row, numCols int) float64 {
	acc := bias[row].Float64()
	for c := 0; c < numCols; c++ {
		acc = math.FMA(float64(input[token*numCols+c]), weight[row*numCols+c].Float64(), acc)
	}
	return acc
}
