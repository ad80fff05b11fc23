package main

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-bodkin/internal/device"
	"github.com/23skdu/longbow-bodkin/internal/verify"
)

// runRopeCheck rotates a seeded activation panel with YaRN context extension
// enabled and verifies the one property a pure rotation guarantees: every
// (re, im) pair's magnitude is scaled by exactly the attention multiplier.
func runRopeCheck(ctx *device.Context) error {
	cfg := device.RopeConfig{
		Theta:                150000,
		ScalingFactor:        32,
		InitialContextLength: 4096,
		TokenStride:          device.RopeHeadDim / 2,
	}
	p, err := device.NewRopeParams(cfg)
	if err != nil {
		return err
	}

	numTokens := 256
	alloc := memory.NewGoAllocator()
	buf := device.NewF32Buffer(alloc, numTokens*device.RopeHeadDim)
	defer buf.Release()
	if err := ctx.FillRandomF32(buf, verify.Seed, 0, -1, 1); err != nil {
		return err
	}
	before := buf.Snapshot()

	if err := ctx.Rope(buf, p, numTokens, nil); err != nil {
		return err
	}

	mult := float64(p.YarnMultiplier)
	after := buf.Float32()
	for i := 0; i < len(before); i += 2 {
		want := math.Hypot(float64(before[i]), float64(before[i+1])) * mult
		got := math.Hypot(float64(after[i]), float64(after[i+1]))
		if cmpErr := verify.NearAbsRel(got, want, verify.DefaultAbsTol, verify.DefaultRelTol); cmpErr != nil {
			return fmt.Errorf("pair %d: %w", i/2, cmpErr)
		}
	}
	return nil
}
