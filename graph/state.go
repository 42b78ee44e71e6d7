package graph

import "math"

// nodeState is the per-channel mutable DSP state of a node. One instance per
// channel; only the evaluator touches it.
type nodeState struct {
	phase    float64 // oscillators, ring mod
	modPhase float64 // FM modulator
	prev     float64 // lag output, brown noise level
	x1, y1   float64 // dc blocker

	bq   biquad
	lad  ladder
	rng  uint64
	pink pinkState

	line *delayLine // delay, comb, allpass, chorus, flanger
	rev  *reverbState

	env    envState
	follow float64 // envelope follower / compressor detector
	gate   float64 // previous gate/trigger value for edge detection

	holdCount float64 // bitcrush downsample counter
	holdVal   float64 // bitcrush held sample
}

type biquad struct {
	// cached parameters; coefficients recompute only when these move by
	// more than coeffEps
	freq, q            float64
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
	primed             bool
}

type ladder struct {
	stage [4]float64
}

type pinkState struct {
	b [7]float64
}

func newNodeState(id NodeID, n *Node, rate float64) *nodeState {
	st := &nodeState{
		rng: 0x9E3779B97F4A7C15 ^ (uint64(id+1) * 0xBF58476D1CE4E5B9),
	}
	switch n.Kind {
	case KindDelay, KindComb, KindAllpass:
		st.line = newDelayLine(int(n.maxDur*rate) + 2)
	case KindChorus, KindFlanger:
		// 50 ms covers the deepest modulated delay either effect uses.
		st.line = newDelayLine(int(0.05*rate) + 2)
	case KindReverb:
		st.rev = newReverbState(rate)
	}
	return st
}

// delayLine is a circular buffer with linear-interpolated fractional reads.
type delayLine struct {
	buf []float64
	idx int
}

func newDelayLine(n int) *delayLine {
	if n < 2 {
		n = 2
	}
	return &delayLine{buf: make([]float64, n)}
}

func (d *delayLine) write(v float64) {
	d.buf[d.idx] = v
	d.idx++
	if d.idx == len(d.buf) {
		d.idx = 0
	}
}

// read returns the sample delay frames behind the write head. Fractional
// delays interpolate linearly between neighbours.
func (d *delayLine) read(delay float64) float64 {
	n := len(d.buf)
	max := float64(n - 2)
	if delay < 0 {
		delay = 0
	} else if delay > max {
		delay = max
	}
	whole, frac := math.Modf(delay)
	i0 := d.idx - 1 - int(whole)
	for i0 < 0 {
		i0 += n
	}
	i1 := i0 - 1
	if i1 < 0 {
		i1 += n
	}
	return d.buf[i0]*(1-frac) + d.buf[i1]*frac
}

// Freeverb topology: eight damped combs in parallel into four allpasses in
// series. Tunings are the classic 44.1 kHz values, scaled to the running
// rate.
var (
	combTunings    = [8]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	allpassTunings = [4]int{556, 441, 341, 225}
)

type reverbState struct {
	combs   [8]dampedComb
	allpass [4]allpassFilter
}

type dampedComb struct {
	buf   []float64
	idx   int
	store float64
}

type allpassFilter struct {
	buf []float64
	idx int
}

func newReverbState(rate float64) *reverbState {
	rv := &reverbState{}
	scale := rate / 44100.0
	for i, n := range combTunings {
		rv.combs[i].buf = make([]float64, int(float64(n)*scale)+1)
	}
	for i, n := range allpassTunings {
		rv.allpass[i].buf = make([]float64, int(float64(n)*scale)+1)
	}
	return rv
}

func (c *dampedComb) process(in, feedback, damp float64) float64 {
	out := c.buf[c.idx]
	c.store = out*(1-damp) + c.store*damp
	c.buf[c.idx] = in + c.store*feedback
	c.idx++
	if c.idx == len(c.buf) {
		c.idx = 0
	}
	return out
}

func (a *allpassFilter) process(in float64) float64 {
	bufOut := a.buf[a.idx]
	out := -in + bufOut
	a.buf[a.idx] = in + bufOut*0.5
	a.idx++
	if a.idx == len(a.buf) {
		a.idx = 0
	}
	return out
}

// xorshift64star; deterministic per node, identical across channels.
func (st *nodeState) rand() float64 {
	st.rng ^= st.rng >> 12
	st.rng ^= st.rng << 25
	st.rng ^= st.rng >> 27
	return float64((st.rng*0x2545F4914F6CDD1D)>>11)/float64(1<<53)*2 - 1
}

// Paul Kellet's pink noise approximation over a white source.
func (p *pinkState) process(white float64) float64 {
	p.b[0] = 0.99886*p.b[0] + white*0.0555179
	p.b[1] = 0.99332*p.b[1] + white*0.0750759
	p.b[2] = 0.96900*p.b[2] + white*0.1538520
	p.b[3] = 0.86650*p.b[3] + white*0.3104856
	p.b[4] = 0.55000*p.b[4] + white*0.5329522
	p.b[5] = -0.7616*p.b[5] - white*0.0168980
	out := p.b[0] + p.b[1] + p.b[2] + p.b[3] + p.b[4] + p.b[5] + p.b[6] + white*0.5362
	p.b[6] = white * 0.115926
	return out * 0.11
}
