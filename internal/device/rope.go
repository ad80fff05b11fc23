package device

import (
	"fmt"
	"math"
)

// RopeHeadDim is the attention head width the rotary kernel is specialized
// for: 64 elements, i.e. 32 complex pairs per head.
const RopeHeadDim = 64

// RopeParams are the scalars fixed for one rotary dispatch. FreqScale drives
// the native ("extrapolation") inverse-frequency formula, InterpolationScale
// rescales it for extended contexts, and the three yarn fields implement the
// YaRN blend ramp plus magnitude correction.
type RopeParams struct {
	TokenOffset        uint32
	TokenStride        uint32
	FreqScale          float32
	InterpolationScale float32
	YarnScale          float32
	YarnOffset         float32
	YarnMultiplier     float32
}

// RopeConfig derives dispatch scalars from model-level rotary settings.
type RopeConfig struct {
	Theta                float64 // rope frequency base, e.g. 150000
	ScalingFactor        float64 // context extension factor; <= 1 disables YaRN
	InitialContextLength int     // context length the base frequencies were trained for
	BetaFast             float64 // high-frequency correction boundary, default 32
	BetaSlow             float64 // low-frequency correction boundary, default 1
	TokenStride          int     // pairs per token in the activation buffer
}

// NewRopeParams lowers a RopeConfig to the per-dispatch scalar form.
//
// The extrapolation frequency exp(d*FreqScale) reproduces theta^(-2d/headDim).
// The YaRN ramp is the linear correction range between the dimensions whose
// wavelengths complete BetaFast and BetaSlow rotations over the initial
// context; outside that range the blend weight clamps to pure extrapolation
// or pure interpolation.
func NewRopeParams(cfg RopeConfig) (RopeParams, error) {
	if cfg.Theta <= 1 {
		return RopeParams{}, fmt.Errorf("rope: invalid theta %v", cfg.Theta)
	}
	if cfg.TokenStride < RopeHeadDim/2 {
		return RopeParams{}, fmt.Errorf("rope: token stride %d below %d pairs", cfg.TokenStride, RopeHeadDim/2)
	}

	p := RopeParams{
		TokenStride:        uint32(cfg.TokenStride),
		FreqScale:          float32(-2 * math.Log(cfg.Theta) / RopeHeadDim),
		InterpolationScale: 1,
		YarnMultiplier:     1,
	}
	if cfg.ScalingFactor <= 1 {
		return p, nil
	}
	if cfg.InitialContextLength <= 0 {
		return RopeParams{}, fmt.Errorf("rope: scaling factor %v requires an initial context length", cfg.ScalingFactor)
	}

	betaFast, betaSlow := cfg.BetaFast, cfg.BetaSlow
	if betaFast <= 0 {
		betaFast = 32
	}
	if betaSlow <= 0 {
		betaSlow = 1
	}

	// Dimension whose wavelength completes numRotations turns over the
	// initial context.
	correctionDim := func(numRotations float64) float64 {
		return RopeHeadDim * math.Log(float64(cfg.InitialContextLength)/(numRotations*2*math.Pi)) /
			(2 * math.Log(cfg.Theta))
	}

	low := math.Floor(correctionDim(betaFast))
	high := math.Ceil(correctionDim(betaSlow))
	if low < 0 {
		low = 0
	}
	if high > RopeHeadDim/2-1 {
		high = RopeHeadDim/2 - 1
	}
	if high <= low {
		high = low + 0.001
	}

	p.InterpolationScale = float32(1 / cfg.ScalingFactor)
	p.YarnScale = float32(1 / (high - low))
	p.YarnOffset = float32(-low / (high - low))
	p.YarnMultiplier = float32(0.1*math.Log(cfg.ScalingFactor) + 1)
	return p, nil
}

// Rope rotates the first RopeHeadDim/2 (re, im) pairs of each token in
// place. One unit handles one (dimension pair, token) coordinate: a single
// read-modify-write, no allocation, no cross-unit communication. If ctrl
// signals abort the unit returns before reading the buffer.
//
// Trig and exp run through the float64 math package; this kernel is
// correctness-sensitive because angle errors compound across layers, so no
// fast-math approximations are allowed here.
func (c *Context) Rope(activations *F32Buffer, p RopeParams, numTokens int, ctrl *Control) error {
	const op = "f32_rope"
	if numTokens <= 0 {
		return fmt.Errorf("%s: invalid token count %d", op, numTokens)
	}
	if p.TokenStride < RopeHeadDim/2 {
		return fmt.Errorf("%s: token stride %d below %d pairs", op, p.TokenStride, RopeHeadDim/2)
	}
	if need := numTokens * int(p.TokenStride) * 2; activations.Len() < need {
		return fmt.Errorf("%s: activation buffer holds %d floats, need %d", op, activations.Len(), need)
	}

	if ctrl.Aborted() {
		abortedDispatches.Inc()
	}

	data := activations.Float32()
	stride := int(p.TokenStride)
	return c.Dispatch(op, Grid{X: RopeHeadDim / 2, Y: numTokens}, func(d, t int) {
		if ctrl.Aborted() {
			return
		}

		tokenIdx := float64(p.TokenOffset + uint32(t))
		invExtrap := float32(math.Exp(float64(d) * float64(p.FreqScale)))
		invInterp := invExtrap * p.InterpolationScale

		alpha := float32(math.FMA(float64(p.YarnScale), float64(d), float64(p.YarnOffset)))
		if alpha < 0 {
			alpha = 0
		} else if alpha > 1 {
			alpha = 1
		}
		invFreq := invExtrap + alpha*(invInterp-invExtrap)

		phi := tokenIdx * float64(invFreq)
		cosPhi := float32(math.Cos(phi)) * p.YarnMultiplier
		sinPhi := float32(math.Sin(phi)) * p.YarnMultiplier

		base := (t*stride + d) * 2
		re := data[base]
		im := data[base+1]
		data[base] = re*cosPhi - im*sinPhi
		data[base+1] = re*sinPhi + im*cosPhi
	})
}
