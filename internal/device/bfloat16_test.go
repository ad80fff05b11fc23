package device

import (
	"math"
	"testing"
)

func TestBFloat16_KnownBitPatterns(t *testing.T) {
	cases := []struct {
		in   float32
		want BFloat16
	}{
		{0.0, 0x0000},
		{1.0, 0x3F80},
		{-1.0, 0xBF80},
		{-2.0, 0xC000},
		{0.5, 0x3F00},
		{2.0, 0x4000},
	}
	for _, c := range cases {
		got := ToBFloat16(c.in)
		if got != c.want {
			t.Errorf("ToBFloat16(%v) = 0x%04X, want 0x%04X", c.in, uint16(got), uint16(c.want))
		}
		back := got.Float32()
		if back != c.in {
			t.Errorf("round trip of %v gave %v", c.in, back)
		}
	}
}

func TestBFloat16_RoundToNearestEven(t *testing.T) {
	// 1.0 + 2^-8 sits exactly between 0x3F80 and 0x3F81; ties round to the
	// even mantissa.
	mid := math.Float32frombits(0x3F808000)
	if got := ToBFloat16(mid); got != 0x3F80 {
		t.Errorf("midpoint tie rounded to 0x%04X, want even 0x3F80", uint16(got))
	}
	// One ULP above the midpoint must round up.
	above := math.Float32frombits(0x3F808001)
	if got := ToBFloat16(above); got != 0x3F81 {
		t.Errorf("above midpoint rounded to 0x%04X, want 0x3F81", uint16(got))
	}
	// The next tie (between 0x3F81 and 0x3F82) rounds up to even.
	mid2 := math.Float32frombits(0x3F818000)
	if got := ToBFloat16(mid2); got != 0x3F82 {
		t.Errorf("odd midpoint rounded to 0x%04X, want even 0x3F82", uint16(got))
	}
}

func TestBFloat16_NonFinite(t *testing.T) {
	if got := ToBFloat16(float32(math.Inf(1))); got != 0x7F80 {
		t.Errorf("+Inf = 0x%04X, want 0x7F80", uint16(got))
	}
	if got := ToBFloat16(float32(math.Inf(-1))); got != 0xFF80 {
		t.Errorf("-Inf = 0x%04X, want 0xFF80", uint16(got))
	}
	nan := ToBFloat16(float32(math.NaN()))
	if !math.IsNaN(float64(nan.Float32())) {
		t.Errorf("NaN did not survive conversion: 0x%04X", uint16(nan))
	}
}

func TestBFloat16_RoundTripError(t *testing.T) {
	// Any float32 in [-1, 1] must land within one bf16 ULP, i.e. a relative
	// error below 2^-8.
	for i := 0; i < 1000; i++ {
		v := randomFloat(42, uint64(i), -1, 1)
		got := ToBFloat16(v).Float32()
		diff := math.Abs(float64(got - v))
		if diff > math.Abs(float64(v))/256+1e-30 {
			t.Fatalf("ToBFloat16(%v).Float32() = %v, error %v too large", v, got, diff)
		}
	}
}

func TestFP4E2M1Table(t *testing.T) {
	want := []float32{0, 0.5, 1, 1.5, 2, 3, 4, 6, -0, -0.5, -1, -1.5, -2, -3, -4, -6}
	for i, w := range want {
		if got := FP4E2M1ToFloat32(uint8(i)); got != w {
			t.Errorf("FP4E2M1ToFloat32(%d) = %v, want %v", i, got, w)
		}
	}
	// High nibble bits are masked off.
	if got := FP4E2M1ToFloat32(0xF7); got != 6 {
		t.Errorf("FP4E2M1ToFloat32(0xF7) = %v, want 6 (low nibble 0x7)", got)
	}
}

func BenchmarkToBFloat16(b *testing.B) {
	src := make([]float32, 4096)
	for i := range src {
		src[i] = randomFloat(7, uint64(i), -1, 1)
	}
	dst := make([]BFloat16, len(src))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j, v := range src {
			dst[j] = ToBFloat16(v)
		}
	}
}
