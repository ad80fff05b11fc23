package device

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/23skdu/longbow-bodkin/internal/simd"
)

// MatmulVecWidth is the kernels' vector width; column counts must be a
// multiple of it.
const MatmulVecWidth = 4

// MatmulKind selects one of the four matmul-with-bias kernel variants. The
// variants differ only in memory-access and tiling strategy, never in the
// arithmetic contract: output[t,r] = bias[r] + input[t,:]·weight[r,:], with
// the attention-output variant accumulating into the existing output value
// instead of overwriting it.
type MatmulKind int

const (
	// MatmulDecode is the single-token-latency variant: one unit per
	// (row, token), inline bfloat16 upcast in the inner loop.
	MatmulDecode MatmulKind = iota
	// MatmulPrefillQKV is weight-stationary: one unit per row upcasts its
	// weight row once and sweeps the token panel.
	MatmulPrefillQKV
	// MatmulPrefillAttnOutput uses the QKV access pattern but adds into the
	// pre-existing output.
	MatmulPrefillAttnOutput
	// MatmulPrefillMLPGate runs panel GEMM over token tiles.
	MatmulPrefillMLPGate
)

func (k MatmulKind) String() string {
	switch k {
	case MatmulDecode:
		return "f32_bf16w_matmul"
	case MatmulPrefillQKV:
		return "f32_bf16w_dense_matmul_qkv"
	case MatmulPrefillAttnOutput:
		return "f32_bf16w_dense_matmul_attn_output"
	case MatmulPrefillMLPGate:
		return "f32_bf16w_dense_matmul_mlp_gate"
	default:
		return fmt.Sprintf("matmul_kind_%d", int(k))
	}
}

// Accumulates reports whether the variant adds into existing output rather
// than overwriting it.
func (k MatmulKind) Accumulates() bool {
	return k == MatmulPrefillAttnOutput
}

// MatmulArgs is the launch parameter block shared by all four variants.
// Offsets are in elements.
type MatmulArgs struct {
	Input        *F32Buffer
	InputOffset  int
	Weight       *BF16Buffer
	WeightOffset int
	Bias         *BF16Buffer
	BiasOffset   int
	Output       *F32Buffer
	OutputOffset int
	Control      *Control
	NumTokens    int
	NumCols      int
	NumRows      int
	GroupSize    int
}

// Validate rejects configuration violations before anything is dispatched.
func (a *MatmulArgs) Validate(op string) error {
	if a.NumRows <= 0 || a.NumCols <= 0 || a.NumTokens <= 0 {
		return fmt.Errorf("%s: invalid shape tokens=%d cols=%d rows=%d", op, a.NumTokens, a.NumCols, a.NumRows)
	}
	if a.GroupSize <= 0 {
		return fmt.Errorf("%s: invalid group size %d", op, a.GroupSize)
	}
	if a.NumCols%MatmulVecWidth != 0 {
		return fmt.Errorf("%s: cols=%d not divisible by vector width %d", op, a.NumCols, MatmulVecWidth)
	}
	if a.Input == nil || a.Weight == nil || a.Bias == nil || a.Output == nil {
		return fmt.Errorf("%s: nil operand buffer", op)
	}
	if need := a.InputOffset + a.NumTokens*a.NumCols; a.Input.Len() < need {
		return fmt.Errorf("%s: input buffer holds %d elements, need %d", op, a.Input.Len(), need)
	}
	if need := a.WeightOffset + a.NumRows*a.NumCols; a.Weight.Len() < need {
		return fmt.Errorf("%s: weight buffer holds %d elements, need %d", op, a.Weight.Len(), need)
	}
	if need := a.BiasOffset + a.NumRows; a.Bias.Len() < need {
		return fmt.Errorf("%s: bias buffer holds %d elements, need %d", op, a.Bias.Len(), need)
	}
	if need := a.OutputOffset + a.NumTokens*a.NumRows; a.Output.Len() < need {
		return fmt.Errorf("%s: output buffer holds %d elements, need %d", op, a.Output.Len(), need)
	}
	return nil
}

// Matmul dispatches one matmul-with-bias kernel variant over the full
// operand set and joins before returning.
func (c *Context) Matmul(kind MatmulKind, a MatmulArgs) error {
	op := kind.String()
	if err := a.Validate(op); err != nil {
		return err
	}
	if a.Control.Aborted() {
		abortedDispatches.Inc()
	}

	input := a.Input.Float32()[a.InputOffset:]
	weight := a.Weight.Bits()[a.WeightOffset:]
	bias := a.Bias.BF16()[a.BiasOffset:]
	output := a.Output.Float32()[a.OutputOffset:]

	switch kind {
	case MatmulDecode:
		return c.Dispatch(op, Grid{X: a.NumRows, Y: a.NumTokens}, func(r, t int) {
			if a.Control.Aborted() {
				return
			}
			in := input[t*a.NumCols : (t+1)*a.NumCols]
			w := weight[r*a.NumCols : (r+1)*a.NumCols]
			output[t*a.NumRows+r] = bias[r].Float32() + simd.DotF32BF16(in, w)
		})

	case MatmulPrefillQKV, MatmulPrefillAttnOutput:
		return c.Dispatch(op, Grid{X: a.NumRows, Y: 1}, func(r, _ int) {
			if a.Control.Aborted() {
				return
			}
			wRow := make([]float32, a.NumCols)
			simd.UpcastBF16(wRow, weight[r*a.NumCols:(r+1)*a.NumCols])
			b := bias[r].Float32()
			for t := 0; t < a.NumTokens; t++ {
				in := input[t*a.NumCols : (t+1)*a.NumCols]
				acc := b + simd.DotF32(in, wRow)
				if kind == MatmulPrefillAttnOutput {
					output[t*a.NumRows+r] += acc
				} else {
					output[t*a.NumRows+r] = acc
				}
			}
		})

	case MatmulPrefillMLPGate:
		// Upcast the weight panel once, then GEMM token tiles against it.
		wf := make([]float32, a.NumRows*a.NumCols)
		if err := c.Dispatch("bf16_upcast_panel", Grid{X: a.NumRows, Y: 1}, func(r, _ int) {
			if a.Control.Aborted() {
				return
			}
			simd.UpcastBF16(wf[r*a.NumCols:(r+1)*a.NumCols], weight[r*a.NumCols:(r+1)*a.NumCols])
		}); err != nil {
			return err
		}

		tile := a.GroupSize
		if tile > a.NumTokens {
			tile = a.NumTokens
		}
		numTiles := (a.NumTokens + tile - 1) / tile
		w := blas32.General{Rows: a.NumRows, Cols: a.NumCols, Stride: a.NumCols, Data: wf}
		return c.Dispatch(op, Grid{X: numTiles, Y: 1}, func(x, _ int) {
			if a.Control.Aborted() {
				return
			}
			t0 := x * tile
			t1 := t0 + tile
			if t1 > a.NumTokens {
				t1 = a.NumTokens
			}
			m := t1 - t0
			in := blas32.General{Rows: m, Cols: a.NumCols, Stride: a.NumCols, Data: input[t0*a.NumCols : t1*a.NumCols]}
			out := blas32.General{Rows: m, Cols: a.NumRows, Stride: a.NumRows, Data: output[t0*a.NumRows : t1*a.NumRows]}
			blas32.Gemm(blas.NoTrans, blas.Trans, 1, in, w, 0, out)
			for t := 0; t < m; t++ {
				row := out.Data[t*a.NumRows : (t+1)*a.NumRows]
				for r := range row {
					row[r] += bias[r].Float32()
				}
			}
		})

	default:
		return fmt.Errorf("%s: unknown matmul kernel", op)
	}
}
