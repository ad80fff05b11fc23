package device

// Counter-based pseudorandom fill. Each element's value is a pure function
// of (seed, globalIndex), so the result is identical no matter how the grid
// is partitioned across workers — the same contract the GPU fill kernels
// give regardless of threadgroup count.

func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return x
}

func randomFloat(seed, idx uint64, min, max float32) float32 {
	// Derive a per-stream key first so adjacent seeds produce uncorrelated
	// streams, then mix the element counter through it.
	key := splitmix64(seed)
	h := splitmix64(key ^ (idx * 0x9E3779B97F4A7C15))
	u := float64(h>>11) / (1 << 53)
	return min + (max-min)*float32(u)
}

// FillRandomF32 fills buf with values in [min, max] derived from seed.
// offset shifts the element counter, letting one logical stream span
// several buffers.
func (c *Context) FillRandomF32(buf *F32Buffer, seed, offset uint64, min, max float32) error {
	data := buf.Float32()
	return c.Dispatch("f32_fill_random", Grid{X: buf.Len(), Y: 1}, func(x, _ int) {
		data[x] = randomFloat(seed, offset+uint64(x), min, max)
	})
}

// FillRandomBF16 is FillRandomF32 with a bfloat16 destination; the value is
// generated in float32 and rounded once.
func (c *Context) FillRandomBF16(buf *BF16Buffer, seed, offset uint64, min, max float32) error {
	data := buf.BF16()
	return c.Dispatch("bf16_fill_random", Grid{X: buf.Len(), Y: 1}, func(x, _ int) {
		data[x] = ToBFloat16(randomFloat(seed, offset+uint64(x), min, max))
	})
}
