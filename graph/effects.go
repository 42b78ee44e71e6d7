package graph

import "math"

func (st *nodeState) reverb(in, room, damp, mix float64) float64 {
	rv := st.rev
	feedback := room*0.28 + 0.7
	damping := damp * 0.4

	var wet float64
	for i := range rv.combs {
		wet += rv.combs[i].process(in, feedback, damping)
	}
	for i := range rv.allpass {
		wet = rv.allpass[i].process(wet)
	}
	wet *= 0.015
	return in*(1-mix) + wet*mix
}

// chorus modulates a 20 ms tap by up to 10 ms either way.
func (st *nodeState) chorus(in, rate, depth, mix, sampleRate float64) float64 {
	lfo := math.Sin(twoPi * st.phase)
	st.advancePhase(rate, sampleRate)

	delay := (0.020 + 0.010*depth*lfo) * sampleRate
	wet := st.line.read(delay)
	st.line.write(in)
	return in*(1-mix) + wet*mix
}

// flanger sweeps a short tap (1 to 6 ms) and feeds the wet signal back into
// the line.
func (st *nodeState) flanger(in, rate, depth, feedback, mix, sampleRate float64) float64 {
	lfo := 0.5 + 0.5*math.Sin(twoPi*st.phase)
	st.advancePhase(rate, sampleRate)

	delay := (0.001 + 0.005*depth*lfo) * sampleRate
	wet := st.line.read(delay)
	st.line.write(in + wet*feedback)
	return in*(1-mix) + wet*mix
}

// compress runs a dual-time-constant envelope detector and applies
// ratio-derived gain reduction above the (linear) threshold.
func (st *nodeState) compress(in, threshold, ratio, attack, release, rate float64) float64 {
	threshold = clamp(threshold, 1e-4, 1)
	ratio = math.Max(ratio, 1)

	target := math.Abs(in)
	var coef float64
	if target > st.follow {
		coef = timeCoef(attack, rate)
	} else {
		coef = timeCoef(release, rate)
	}
	st.follow = target + (st.follow-target)*coef

	gain := 1.0
	if st.follow > threshold {
		gain = math.Pow(st.follow/threshold, 1/ratio-1)
	}
	return in * gain
}

// bitcrush quantizes to the given bit depth and holds samples for the
// downsample factor.
func (st *nodeState) bitcrush(in, bits, downsample float64) float64 {
	bits = clamp(bits, 1, 16)
	factor := math.Max(downsample, 1)

	st.holdCount++
	if st.holdCount >= factor {
		st.holdCount -= factor
		levels := math.Pow(2, bits)
		st.holdVal = math.Round(in*levels) / levels
	}
	return st.holdVal
}
