package device

import (
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Operand buffers are allocated once per dispatch cycle, filled, consumed by
// exactly one kernel invocation, read back, then released. Backing storage
// comes from an arrow allocator so views are 64-byte aligned, matching the
// alignment contract of the GPU buffers this package stands in for.

// F32Buffer is a dense buffer of 32-bit floats.
type F32Buffer struct {
	buf *memory.Buffer
	n   int
}

func NewF32Buffer(alloc memory.Allocator, n int) *F32Buffer {
	if n <= 0 {
		panic("NewF32Buffer: non-positive element count")
	}
	buf := memory.NewResizableBuffer(alloc)
	buf.Resize(n * 4)
	bufferBytes.Add(float64(n * 4))
	return &F32Buffer{buf: buf, n: n}
}

func (b *F32Buffer) Len() int {
	return b.n
}

// Float32 returns the live element view. The caller must not hold it across
// Release.
func (b *F32Buffer) Float32() []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(&b.buf.Bytes()[0])), b.n)
}

// Snapshot copies the current contents out. Used to capture pre-dispatch
// state for kernels that accumulate into existing output.
func (b *F32Buffer) Snapshot() []float32 {
	out := make([]float32, b.n)
	copy(out, b.Float32())
	return out
}

func (b *F32Buffer) Release() {
	if b.buf != nil {
		bufferBytes.Sub(float64(b.n * 4))
		b.buf.Release()
		b.buf = nil
	}
}

// BF16Buffer is a dense buffer of bfloat16 values.
type BF16Buffer struct {
	buf *memory.Buffer
	n   int
}

func NewBF16Buffer(alloc memory.Allocator, n int) *BF16Buffer {
	if n <= 0 {
		panic("NewBF16Buffer: non-positive element count")
	}
	buf := memory.NewResizableBuffer(alloc)
	buf.Resize(n * 2)
	bufferBytes.Add(float64(n * 2))
	return &BF16Buffer{buf: buf, n: n}
}

func (b *BF16Buffer) Len() int {
	return b.n
}

func (b *BF16Buffer) BF16() []BFloat16 {
	return unsafe.Slice((*BFloat16)(unsafe.Pointer(&b.buf.Bytes()[0])), b.n)
}

// Bits exposes the raw 16-bit payloads for inner loops that upcast inline.
func (b *BF16Buffer) Bits() []uint16 {
	return unsafe.Slice((*uint16)(unsafe.Pointer(&b.buf.Bytes()[0])), b.n)
}

func (b *BF16Buffer) Release() {
	if b.buf != nil {
		bufferBytes.Sub(float64(b.n * 2))
		b.buf.Release()
		b.buf = nil
	}
}
