package verify

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-bodkin/internal/device"
)

// Seed is the fixed fill seed for verification runs; given the seed every
// run is deterministic, so any size doubles as a golden regression case.
const Seed uint64 = 1019827666124465388

// MatmulTester drives one complete verification cycle for a matmul kernel
// variant: seeded operand fill, dispatch, then element-by-element comparison
// against the double-precision oracle.
type MatmulTester struct {
	ctx         *device.Context
	alloc       memory.Allocator
	numRows     uint32
	numCols     uint32
	numTokens   uint32
	groupSize   int
	absTol      float64
	relTol      float64
	artifactDir string
}

func NewMatmulTester(ctx *device.Context) *MatmulTester {
	return &MatmulTester{
		ctx:       ctx,
		alloc:     memory.NewGoAllocator(),
		numRows:   1,
		numCols:   32,
		numTokens: 1,
		groupSize: 32,
		absTol:    DefaultAbsTol,
		relTol:    DefaultRelTol,
	}
}

func (t *MatmulTester) NumRows(n uint32) *MatmulTester {
	t.numRows = n
	return t
}

func (t *MatmulTester) NumCols(n uint32) *MatmulTester {
	t.numCols = n
	return t
}

func (t *MatmulTester) NumTokens(n uint32) *MatmulTester {
	t.numTokens = n
	return t
}

func (t *MatmulTester) GroupSize(n int) *MatmulTester {
	t.groupSize = n
	return t
}

func (t *MatmulTester) Tolerances(absTol, relTol float64) *MatmulTester {
	t.absTol = absTol
	t.relTol = relTol
	return t
}

// ArtifactDir enables CBOR failure dumps for offline triage.
func (t *MatmulTester) ArtifactDir(dir string) *MatmulTester {
	t.artifactDir = dir
	return t
}

func (t *MatmulTester) Allocator(alloc memory.Allocator) *MatmulTester {
	t.alloc = alloc
	return t
}

// Validate rejects configuration violations before any buffer is allocated.
func (t *MatmulTester) Validate() error {
	if t.numRows == 0 || t.numCols == 0 || t.numTokens == 0 {
		return fmt.Errorf("matmul tester: zero-sized dimension tokens=%d cols=%d rows=%d",
			t.numTokens, t.numCols, t.numRows)
	}
	if t.groupSize <= 0 {
		return fmt.Errorf("matmul tester: invalid group size %d", t.groupSize)
	}
	if t.numCols%device.MatmulVecWidth != 0 {
		return fmt.Errorf("matmul tester: cols=%d not divisible by vector width %d",
			t.numCols, device.MatmulVecWidth)
	}
	return nil
}

// Run executes one verification cycle for the given kernel variant. The
// first failing (token, row) aborts the run with both values; a launch
// failure aborts with the failing operation's name.
func (t *MatmulTester) Run(kind device.MatmulKind) error {
	if err := t.Validate(); err != nil {
		return err
	}

	tokens := int(t.numTokens)
	cols := int(t.numCols)
	rows := int(t.numRows)

	input := device.NewF32Buffer(t.alloc, tokens*cols)
	defer input.Release()
	weight := device.NewBF16Buffer(t.alloc, rows*cols)
	defer weight.Release()
	bias := device.NewBF16Buffer(t.alloc, rows)
	defer bias.Release()
	output := device.NewF32Buffer(t.alloc, tokens*rows)
	defer output.Release()
	ctrl := device.NewControl()

	if err := t.ctx.FillRandomF32(input, Seed, 0, -1, 1); err != nil {
		return err
	}
	if err := t.ctx.FillRandomBF16(weight, Seed+1, 0, -1, 1); err != nil {
		return err
	}
	if err := t.ctx.FillRandomBF16(bias, Seed+2, 0, -1, 1); err != nil {
		return err
	}
	// Output starts nonzero so the accumulating variant has a nontrivial
	// pre-existing value to add into.
	if err := t.ctx.FillRandomF32(output, Seed+3, 0, -1, 1); err != nil {
		return err
	}

	var prior []float32
	if kind.Accumulates() {
		prior = output.Snapshot()
	}

	err := t.ctx.Matmul(kind, device.MatmulArgs{
		Input:     input,
		Weight:    weight,
		Bias:      bias,
		Output:    output,
		Control:   ctrl,
		NumTokens: tokens,
		NumCols:   cols,
		NumRows:   rows,
		GroupSize: t.groupSize,
	})
	if err != nil {
		return err
	}

	in := input.Float32()
	w := weight.BF16()
	b := bias.BF16()
	out := output.Float32()
	for tok := 0; tok < tokens; tok++ {
		for r := 0; r < rows; r++ {
			want := MatmulOracle(in, w, b, tok, r, cols)
			if prior != nil {
				want += float64(prior[tok*rows+r])
			}
			got := float64(out[tok*rows+r])
			if cmpErr := NearAbsRel(got, want, t.absTol, t.relTol); cmpErr != nil {
				t.reportFailure(kind, tok, r, got, want)
				return fmt.Errorf("%s: token %d row %d: %w", kind, tok, r, cmpErr)
			}
		}
	}
	return nil
}

func (t *MatmulTester) reportFailure(kind device.MatmulKind, token, row int, got, want float64) {
	if t.artifactDir == "" {
		return
	}
	path, err := writeArtifact(t.artifactDir, FailureArtifact{
		Kernel:    kind.String(),
		Token:     token,
		Row:       row,
		Got:       got,
		Want:      want,
		NumTokens: t.numTokens,
		NumCols:   t.numCols,
		NumRows:   t.numRows,
		GroupSize: t.groupSize,
		Seed:      Seed,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to write failure artifact")
		return
	}
	log.Warn().Str("path", path).Msg("Wrote failure artifact")
}
