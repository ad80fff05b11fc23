package simd

import "math"

// Inner-loop helpers for the matmul kernels. Loops are unrolled by 4 to
// match the kernels' vector width.

// DotF32 computes the dot product of two float32 vectors.
func DotF32(a, b []float32) float32 {
	var sum float32
	i := 0
	for ; i <= len(a)-4; i += 4 {
		sum += a[i] * b[i]
		sum += a[i+1] * b[i+1]
		sum += a[i+2] * b[i+2]
		sum += a[i+3] * b[i+3]
	}
	for ; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// DotF32BF16 computes a dot product against raw bfloat16 bits, upcasting
// each weight lane inline. The upcast is a pure bit shift: bfloat16 shares
// float32's exponent range.
func DotF32BF16(a []float32, w []uint16) float32 {
	var sum float32
	i := 0
	for ; i <= len(a)-4; i += 4 {
		sum += a[i] * math.Float32frombits(uint32(w[i])<<16)
		sum += a[i+1] * math.Float32frombits(uint32(w[i+1])<<16)
		sum += a[i+2] * math.Float32frombits(uint32(w[i+2])<<16)
		sum += a[i+3] * math.Float32frombits(uint32(w[i+3])<<16)
	}
	for ; i < len(a); i++ {
		sum += a[i] * math.Float32frombits(uint32(w[i])<<16)
	}
	return sum
}

// UpcastBF16 expands raw bfloat16 bits into dst. dst and w must be the same
// length.
func UpcastBF16(dst []float32, w []uint16) {
	for i, v := range w {
		dst[i] = math.Float32frombits(uint32(v) << 16)
	}
}
