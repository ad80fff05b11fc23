package device

import "math"

// BFloat16 is a 16-bit brain float: 1 sign bit, 8 exponent bits, 7 mantissa
// bits. The exponent range matches float32, so upcasting is a pure bit shift
// and never changes the value.
type BFloat16 uint16

// ToBFloat16 converts a float32 using round-to-nearest-even on the truncated
// mantissa bits. NaN payloads are quieted so rounding cannot turn a NaN into
// an infinity.
func ToBFloat16(f float32) BFloat16 {
	bits := math.Float32bits(f)
	if bits&0x7FFFFFFF > 0x7F800000 {
		return BFloat16(bits>>16 | 0x0040)
	}
	lsb := (bits >> 16) & 1
	bits += 0x7FFF + lsb
	return BFloat16(bits >> 16)
}

// Float32 upcasts by shifting back into float32 position.
func (b BFloat16) Float32() float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// Float64 upcasts for double-precision reference accumulation.
func (b BFloat16) Float64() float64 {
	return float64(b.Float32())
}

// fp4e2m1Table holds the 16 representable values of the FP4 E2M1 format,
// indexed by the raw nibble. The top bit is the sign.
var fp4e2m1Table = [16]float32{
	+0.0, +0.5, +1.0, +1.5, +2.0, +3.0, +4.0, +6.0,
	-0.0, -0.5, -1.0, -1.5, -2.0, -3.0, -4.0, -6.0,
}

// FP4E2M1ToFloat32 decodes one FP4 E2M1 nibble. Only the low 4 bits of v
// are significant.
func FP4E2M1ToFloat32(v uint8) float32 {
	return fp4e2m1Table[v&0xF]
}
