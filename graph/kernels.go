package graph

import "math"

// Shared per-kind sample kernels. Both evaluator modes call evalFrame, so
// they agree numerically by construction: the only thing that differs
// between modes is how input values are gathered.

const (
	twoPi = 2 * math.Pi

	// coefficient recompute threshold for parameter-modulated filters
	coeffEps = 1e-6

	minCutoff = 10.0
)

// frameCtx carries the per-frame values the kernel cannot compute itself:
// pattern holds, voice mixes and tap reads are resolved by the evaluator
// before the kernel runs.
type frameCtx struct {
	rate     float64
	patVal   float64
	voiceVal float64
	tapVal   float64
}

// scrub zeroes non-finite values at node boundaries so a degenerate
// parameter can never poison downstream state.
func scrub(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampCutoff(freq, rate float64) float64 {
	return clamp(freq, minCutoff, 0.49*rate)
}

// evalFrame advances the node one sample on one channel and returns its
// output. in holds the already-resolved input values in declaration order.
func evalFrame(n *Node, st *nodeState, in []float64, ctx *frameCtx) float64 {
	var out float64
	switch n.Kind {
	case KindConst:
		out = n.value

	case KindSine:
		out = math.Sin(twoPi * st.phase)
		st.advancePhase(in[0], ctx.rate)
	case KindSaw:
		out = 2*st.phase - 1
		st.advancePhase(in[0], ctx.rate)
	case KindSquare:
		if st.phase < 0.5 {
			out = 1
		} else {
			out = -1
		}
		st.advancePhase(in[0], ctx.rate)
	case KindTriangle:
		if st.phase < 0.5 {
			out = 4*st.phase - 1
		} else {
			out = 3 - 4*st.phase
		}
		st.advancePhase(in[0], ctx.rate)
	case KindPulse:
		width := clamp(in[1], 0.01, 0.99)
		if st.phase < width {
			out = 1
		} else {
			out = -1
		}
		st.advancePhase(in[0], ctx.rate)
	case KindPhasor:
		out = st.phase
		st.advancePhase(in[0], ctx.rate)
	case KindFM:
		mod := math.Sin(twoPi * st.modPhase)
		out = math.Sin(twoPi*st.phase + in[2]*mod)
		st.advancePhase(in[0], ctx.rate)
		st.modPhase += in[1] / ctx.rate
		st.modPhase -= math.Floor(st.modPhase)
	case KindImpulse:
		if st.gate == 0 {
			st.gate = 1
			out = 1
		}
		st.phase += in[0] / ctx.rate
		if st.phase >= 1 {
			st.phase -= math.Floor(st.phase)
			out = 1
		}

	case KindWhiteNoise:
		out = st.rand()
	case KindPinkNoise:
		out = st.pink.process(st.rand())
	case KindBrownNoise:
		st.prev = clamp(st.prev+st.rand()*0.02, -1, 1)
		out = st.prev

	case KindPattern:
		out = ctx.patVal
	case KindSample:
		out = ctx.voiceVal
	case KindTap:
		out = ctx.tapVal

	case KindLowPass, KindHighPass, KindBandPass, KindNotch:
		out = st.bq.process(n.Kind, in[0], clampCutoff(in[1], ctx.rate), clamp(in[2], 0.1, 20), ctx.rate)
	case KindMoogLadder:
		out = st.lad.process(in[0], clampCutoff(in[1], ctx.rate), clamp(in[2], 0, 1), ctx.rate)
	case KindComb:
		rd := st.line.read(clamp(in[1], 0, n.maxDur) * ctx.rate)
		st.line.write(in[0] + rd*clamp(in[2], -0.999, 0.999))
		out = in[0] + rd
	case KindAllpass:
		g := clamp(in[2], -0.999, 0.999)
		v := st.line.read(clamp(in[1], 0, n.maxDur) * ctx.rate)
		out = -g*in[0] + v
		st.line.write(in[0] + g*out)
	case KindLag:
		out = st.lag(in[0], in[1], ctx.rate)
	case KindDCBlock:
		out = in[0] - st.x1 + 0.995*st.y1
		st.x1, st.y1 = in[0], out

	case KindEnvADSR:
		out = st.env.adsr(in[0], in[1], in[2], in[3], in[4], ctx.rate)
	case KindEnvAR:
		out = st.env.ar(in[0], in[1], in[2], ctx.rate)
	case KindEnvFollow:
		out = st.followEnv(in[0], in[1], in[2], ctx.rate)

	case KindDelay:
		rd := st.line.read(clamp(in[1], 0, n.maxDur) * ctx.rate)
		st.line.write(in[0] + rd*clamp(in[2], -0.999, 0.999))
		mix := clamp(in[3], 0, 1)
		out = in[0]*(1-mix) + rd*mix
	case KindReverb:
		out = st.reverb(in[0], clamp(in[1], 0, 1), clamp(in[2], 0, 1), clamp(in[3], 0, 1))
	case KindChorus:
		out = st.chorus(in[0], in[1], clamp(in[2], 0, 1), clamp(in[3], 0, 1), ctx.rate)
	case KindFlanger:
		out = st.flanger(in[0], in[1], clamp(in[2], 0, 1), clamp(in[3], -0.95, 0.95), clamp(in[4], 0, 1), ctx.rate)
	case KindCompressor:
		out = st.compress(in[0], in[1], in[2], in[3], in[4], ctx.rate)
	case KindDistortion:
		drive := clamp(in[1], 1, 100)
		out = math.Tanh(in[0] * drive)
	case KindBitCrush:
		out = st.bitcrush(in[0], in[1], in[2])
	case KindLimiter:
		ceil := math.Max(math.Abs(in[1]), 1e-4)
		out = clamp(in[0], -ceil, ceil)
	case KindRingMod:
		out = in[0] * math.Sin(twoPi*st.phase)
		st.advancePhase(in[1], ctx.rate)
	case KindFold:
		out = fold(in[0] * math.Max(in[1], 1e-6))

	case KindAdd:
		out = in[0] + in[1]
	case KindMul:
		out = in[0] * in[1]
	case KindSub:
		out = in[0] - in[1]
	case KindDiv:
		if math.Abs(in[1]) < 1e-9 {
			out = 0
		} else {
			out = in[0] / in[1]
		}
	case KindMin:
		out = math.Min(in[0], in[1])
	case KindMax:
		out = math.Max(in[0], in[1])
	case KindMix:
		t := clamp(in[2], 0, 1)
		out = in[0]*(1-t) + in[1]*t
	case KindWhen:
		if in[0] > 0 {
			out = in[1]
		} else {
			out = in[2]
		}
	case KindRange:
		out = in[1] + (in[0]*0.5+0.5)*(in[2]-in[1])

	case KindOut:
		for _, v := range in {
			out += v
		}
	}
	return scrub(out)
}

func (st *nodeState) advancePhase(freq, rate float64) {
	st.phase += freq / rate
	st.phase -= math.Floor(st.phase)
}

// process runs one biquad step, recomputing coefficients only when the
// parameters have moved more than coeffEps since they were last derived.
func (b *biquad) process(kind Kind, x, freq, q, rate float64) float64 {
	if !b.primed || math.Abs(freq-b.freq) > coeffEps || math.Abs(q-b.q) > coeffEps {
		b.calculateCoefficients(kind, freq, q, rate)
	}
	y := b.b0*x + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	b.x2, b.x1 = b.x1, x
	b.y2, b.y1 = b.y1, y
	return y
}

// RBJ audio EQ cookbook coefficients, normalized by a0.
func (b *biquad) calculateCoefficients(kind Kind, freq, q, rate float64) {
	b.freq, b.q, b.primed = freq, q, true

	omega := twoPi * freq / rate
	sin, cos := math.Sin(omega), math.Cos(omega)
	alpha := sin / (2 * q)

	var b0, b1, b2, a0, a1, a2 float64
	switch kind {
	case KindLowPass:
		b0 = (1 - cos) / 2
		b1 = 1 - cos
		b2 = (1 - cos) / 2
	case KindHighPass:
		b0 = (1 + cos) / 2
		b1 = -(1 + cos)
		b2 = (1 + cos) / 2
	case KindBandPass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	case KindNotch:
		b0 = 1
		b1 = -2 * cos
		b2 = 1
	}
	a0 = 1 + alpha
	a1 = -2 * cos
	a2 = 1 - alpha

	b.b0, b.b1, b.b2 = b0/a0, b1/a0, b2/a0
	b.a1, b.a2 = a1/a0, a2/a0
}

// process is a four-stage ladder lowpass with resonance feedback from the
// last stage.
func (l *ladder) process(x, cutoff, res, rate float64) float64 {
	g := 1 - math.Exp(-twoPi*cutoff/rate)
	fb := 4 * res
	in := x - fb*l.stage[3]
	l.stage[0] += g * (math.Tanh(in) - l.stage[0])
	l.stage[1] += g * (l.stage[0] - l.stage[1])
	l.stage[2] += g * (l.stage[1] - l.stage[2])
	l.stage[3] += g * (l.stage[2] - l.stage[3])
	return l.stage[3]
}

func (st *nodeState) lag(x, dur, rate float64) float64 {
	if dur <= 0 {
		st.prev = x
		return x
	}
	coef := math.Exp(-1 / (dur * rate))
	st.prev = x + (st.prev-x)*coef
	return st.prev
}

func (st *nodeState) followEnv(x, attack, release, rate float64) float64 {
	target := math.Abs(x)
	var coef float64
	if target > st.follow {
		coef = timeCoef(attack, rate)
	} else {
		coef = timeCoef(release, rate)
	}
	st.follow = target + (st.follow-target)*coef
	return st.follow
}

func timeCoef(seconds, rate float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return math.Exp(-1 / (seconds * rate))
}

// fold reflects v into [-1, 1]. The reflection is periodic with period 4,
// so it reduces in closed form rather than iterating.
func fold(v float64) float64 {
	t := math.Mod(v+1, 4)
	if t < 0 {
		t += 4
	}
	if t > 2 {
		t = 4 - t
	}
	return t - 1
}
