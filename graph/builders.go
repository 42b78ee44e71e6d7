package graph

import "github.com/tideway/tideway/pattern"

// Typed constructors. These are the public way to assemble a graph; they fix
// the input order the kernels expect.

func (g *Graph) Constant(v float64) NodeID {
	return g.AddNode(&Node{Kind: KindConst, value: v})
}

func (g *Graph) Sine(freq Signal) NodeID {
	return g.AddNode(&Node{Kind: KindSine, in: []Signal{freq}})
}

func (g *Graph) Saw(freq Signal) NodeID {
	return g.AddNode(&Node{Kind: KindSaw, in: []Signal{freq}})
}

func (g *Graph) Square(freq Signal) NodeID {
	return g.AddNode(&Node{Kind: KindSquare, in: []Signal{freq}})
}

func (g *Graph) Triangle(freq Signal) NodeID {
	return g.AddNode(&Node{Kind: KindTriangle, in: []Signal{freq}})
}

func (g *Graph) Pulse(freq, width Signal) NodeID {
	return g.AddNode(&Node{Kind: KindPulse, in: []Signal{freq, width}})
}

func (g *Graph) Phasor(freq Signal) NodeID {
	return g.AddNode(&Node{Kind: KindPhasor, in: []Signal{freq}})
}

// FM is a two-operator sine FM pair: carrier frequency, modulator frequency
// and modulation index.
func (g *Graph) FM(carrier, modulator, index Signal) NodeID {
	return g.AddNode(&Node{Kind: KindFM, in: []Signal{carrier, modulator, index}})
}

func (g *Graph) WhiteNoise() NodeID { return g.AddNode(&Node{Kind: KindWhiteNoise}) }
func (g *Graph) PinkNoise() NodeID  { return g.AddNode(&Node{Kind: KindPinkNoise}) }
func (g *Graph) BrownNoise() NodeID { return g.AddNode(&Node{Kind: KindBrownNoise}) }

func (g *Graph) Impulse(freq Signal) NodeID {
	return g.AddNode(&Node{Kind: KindImpulse, in: []Signal{freq}})
}

// Pattern adds a sample-and-hold parameter node: the node outputs the value
// of the pattern event active at the current cycle position and holds it
// between events.
func (g *Graph) Pattern(p pattern.Pattern[float64]) NodeID {
	return g.AddNode(&Node{Kind: KindPattern, pat: p})
}

// PatternSig is Pattern returning a routable Signal.
func (g *Graph) PatternSig(p pattern.Pattern[float64]) Signal {
	return From(g.Pattern(p))
}

// Sample adds a sample-trigger node. Each onset of the event pattern becomes
// a voice trigger; the node's own output is the mix of its voices, so it can
// be routed through downstream effects.
func (g *Graph) Sample(events pattern.Pattern[pattern.Value], params SampleParams) NodeID {
	return g.AddNode(&Node{Kind: KindSample, events: events, params: params})
}

func (g *Graph) LowPass(in, cutoff, q Signal) NodeID {
	return g.AddNode(&Node{Kind: KindLowPass, in: []Signal{in, cutoff, q}})
}

func (g *Graph) HighPass(in, cutoff, q Signal) NodeID {
	return g.AddNode(&Node{Kind: KindHighPass, in: []Signal{in, cutoff, q}})
}

func (g *Graph) BandPass(in, center, q Signal) NodeID {
	return g.AddNode(&Node{Kind: KindBandPass, in: []Signal{in, center, q}})
}

func (g *Graph) Notch(in, center, q Signal) NodeID {
	return g.AddNode(&Node{Kind: KindNotch, in: []Signal{in, center, q}})
}

func (g *Graph) MoogLadder(in, cutoff, resonance Signal) NodeID {
	return g.AddNode(&Node{Kind: KindMoogLadder, in: []Signal{in, cutoff, resonance}})
}

// Comb is a feedback comb with a line of maxSeconds.
func (g *Graph) Comb(in, delay, feedback Signal, maxSeconds float64) NodeID {
	return g.AddNode(&Node{Kind: KindComb, in: []Signal{in, delay, feedback}, maxDur: maxSeconds})
}

func (g *Graph) Allpass(in, delay, feedback Signal, maxSeconds float64) NodeID {
	return g.AddNode(&Node{Kind: KindAllpass, in: []Signal{in, delay, feedback}, maxDur: maxSeconds})
}

func (g *Graph) Lag(in, seconds Signal) NodeID {
	return g.AddNode(&Node{Kind: KindLag, in: []Signal{in, seconds}})
}

func (g *Graph) DCBlock(in Signal) NodeID {
	return g.AddNode(&Node{Kind: KindDCBlock, in: []Signal{in}})
}

func (g *Graph) EnvADSR(gate, attack, decay, sustain, release Signal) NodeID {
	return g.AddNode(&Node{Kind: KindEnvADSR, in: []Signal{gate, attack, decay, sustain, release}})
}

func (g *Graph) EnvAR(trigger, attack, release Signal) NodeID {
	return g.AddNode(&Node{Kind: KindEnvAR, in: []Signal{trigger, attack, release}})
}

func (g *Graph) EnvFollow(in, attack, release Signal) NodeID {
	return g.AddNode(&Node{Kind: KindEnvFollow, in: []Signal{in, attack, release}})
}

func (g *Graph) Delay(in, seconds, feedback, mix Signal, maxSeconds float64) NodeID {
	return g.AddNode(&Node{Kind: KindDelay, in: []Signal{in, seconds, feedback, mix}, maxDur: maxSeconds})
}

func (g *Graph) Reverb(in, room, damp, mix Signal) NodeID {
	return g.AddNode(&Node{Kind: KindReverb, in: []Signal{in, room, damp, mix}})
}

func (g *Graph) Chorus(in, rate, depth, mix Signal) NodeID {
	return g.AddNode(&Node{Kind: KindChorus, in: []Signal{in, rate, depth, mix}})
}

func (g *Graph) Flanger(in, rate, depth, feedback, mix Signal) NodeID {
	return g.AddNode(&Node{Kind: KindFlanger, in: []Signal{in, rate, depth, feedback, mix}})
}

func (g *Graph) Compressor(in, threshold, ratio, attack, release Signal) NodeID {
	return g.AddNode(&Node{Kind: KindCompressor, in: []Signal{in, threshold, ratio, attack, release}})
}

func (g *Graph) Distortion(in, drive Signal) NodeID {
	return g.AddNode(&Node{Kind: KindDistortion, in: []Signal{in, drive}})
}

func (g *Graph) BitCrush(in, bits, downsample Signal) NodeID {
	return g.AddNode(&Node{Kind: KindBitCrush, in: []Signal{in, bits, downsample}})
}

func (g *Graph) Limiter(in, ceiling Signal) NodeID {
	return g.AddNode(&Node{Kind: KindLimiter, in: []Signal{in, ceiling}})
}

func (g *Graph) RingMod(in, freq Signal) NodeID {
	return g.AddNode(&Node{Kind: KindRingMod, in: []Signal{in, freq}})
}

func (g *Graph) Fold(in, gain Signal) NodeID {
	return g.AddNode(&Node{Kind: KindFold, in: []Signal{in, gain}})
}

func (g *Graph) Add(a, b Signal) NodeID {
	return g.AddNode(&Node{Kind: KindAdd, in: []Signal{a, b}})
}

func (g *Graph) Mul(a, b Signal) NodeID {
	return g.AddNode(&Node{Kind: KindMul, in: []Signal{a, b}})
}

func (g *Graph) Sub(a, b Signal) NodeID {
	return g.AddNode(&Node{Kind: KindSub, in: []Signal{a, b}})
}

func (g *Graph) Div(a, b Signal) NodeID {
	return g.AddNode(&Node{Kind: KindDiv, in: []Signal{a, b}})
}

func (g *Graph) Min(a, b Signal) NodeID {
	return g.AddNode(&Node{Kind: KindMin, in: []Signal{a, b}})
}

func (g *Graph) Max(a, b Signal) NodeID {
	return g.AddNode(&Node{Kind: KindMax, in: []Signal{a, b}})
}

// Mix crossfades a to b as t goes 0 to 1.
func (g *Graph) Mix(a, b, t Signal) NodeID {
	return g.AddNode(&Node{Kind: KindMix, in: []Signal{a, b, t}})
}

// When selects a while cond is positive, else b.
func (g *Graph) When(cond, a, b Signal) NodeID {
	return g.AddNode(&Node{Kind: KindWhen, in: []Signal{cond, a, b}})
}

// MapRange rescales a bipolar [-1,1] input to [lo, hi].
func (g *Graph) MapRange(in, lo, hi Signal) NodeID {
	return g.AddNode(&Node{Kind: KindRange, in: []Signal{in, lo, hi}})
}

// Tap reads the named bus's output from the previous block, making feedback
// loops legal at the cost of one block of latency.
func (g *Graph) Tap(bus string) NodeID {
	return g.AddNode(&Node{Kind: KindTap, tapBus: bus})
}
