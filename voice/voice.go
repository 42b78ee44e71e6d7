// Package voice implements the polyphonic sample playback pool: a fixed set
// of voices with deterministic stealing, cut groups and a batched, parallel
// block renderer. Output is accumulated per source (the graph node that
// triggered the voice) so the signal graph can route each sample stream
// through its own effects.
package voice

import (
	"math"

	"github.com/tideway/tideway/sample"
)

// Params describes one trigger: which sample to start and how to play it.
type Params struct {
	Sample *sample.Sample
	Source int // graph node that owns the resulting audio
	Frame  int // block-relative start offset; silence before it

	Gain    float64
	Pan     float64 // -1..1, equal power
	Speed   float64 // negative plays in reverse; fractional pitch-shifts
	Offset  float64 // start position as a fraction of the sample [0,1)
	Note    float64 // semitones; folds into speed as 2^(note/12)
	Attack  float64 // seconds; 0 selects the 1 ms percussion default
	Release float64 // seconds; 0 selects the 100 ms percussion default
	Loop    bool

	CutGroup int
}

const (
	defaultAttack  = 0.001
	defaultRelease = 0.1

	// fast-release time applied when another trigger in the same cut
	// group arrives; short enough to read as a cut, long enough to avoid
	// a click
	cutRelease = 0.005
)

type voiceState int

const (
	stateFree voiceState = iota
	stateActive
)

type envStage int

const (
	envAttack envStage = iota
	envSustain
	envDecay
)

// Voice is one playing sample instance. All fields are owned by the pool;
// batches render disjoint voice slices so no voice is ever shared between
// workers.
type Voice struct {
	state voiceState

	smp        *sample.Sample
	pos        float64 // fractional frame position; negative speed walks down
	speed      float64 // effective rate including note and rate conversion
	gain       float64
	panL, panR float64
	loop       bool
	cutGroup   int
	source     int
	startFrame int // block-relative; consumed on the first rendered block

	envStage   envStage
	envLevel   float64
	attackStep float64
	decayStep  float64

	traveled float64 // frames consumed, for the stealing policy
}

func (v *Voice) start(p Params, outRate float64) {
	v.state = stateActive
	v.smp = p.Sample
	v.gain = p.Gain
	v.loop = p.Loop
	v.cutGroup = p.CutGroup
	v.source = p.Source
	v.startFrame = p.Frame
	v.traveled = 0

	// equal-power pan
	a := (p.Pan + 1) * math.Pi / 4
	v.panL = math.Cos(a)
	v.panR = math.Sin(a)

	speed := p.Speed * math.Pow(2, p.Note/12)
	if p.Sample.Rate > 0 && outRate > 0 {
		speed *= float64(p.Sample.Rate) / outRate
	}
	v.speed = speed

	n := float64(p.Sample.Len())
	v.pos = p.Offset * n
	if speed < 0 && p.Offset == 0 {
		// reverse playback from the top means starting at the tail
		v.pos = n - 1
	}

	attack := p.Attack
	if attack <= 0 {
		attack = defaultAttack
	}
	release := p.Release
	if release <= 0 {
		release = defaultRelease
	}
	v.envStage = envAttack
	v.envLevel = 0
	v.attackStep = 1 / (attack * outRate)
	v.decayStep = 1 / (release * outRate)
}

// fastRelease puts the voice into a short decay, used for cut groups and
// panic.
func (v *Voice) fastRelease(outRate float64) {
	if v.state != stateActive {
		return
	}
	v.envStage = envDecay
	v.decayStep = 1 / (cutRelease * outRate)
}

// progress reports how close the voice is to completion, for stealing.
// Looping voices report 0 so they are never preferred over one-shots.
func (v *Voice) progress() float64 {
	if v.loop || v.smp == nil || v.smp.Len() == 0 {
		return 0
	}
	p := v.traveled / float64(v.smp.Len())
	if p > 1 {
		p = 1
	}
	return p
}

// renderInto accumulates the voice into stereo buffers, honoring the
// block-relative start offset, and returns whether the voice is still
// alive.
func (v *Voice) renderInto(left, right []float32) bool {
	n := len(left)
	i := 0
	if v.startFrame > 0 {
		if v.startFrame >= n {
			v.startFrame -= n
			return true
		}
		i = v.startFrame
		v.startFrame = 0
	}

	data := v.smp.Data
	length := len(data)
	for ; i < n; i++ {
		if !v.advanceEnvelope() {
			return false
		}
		if v.loop {
			v.pos = wrap(v.pos, float64(length))
		} else if v.pos < 0 || v.pos >= float64(length) {
			return false
		}
		s := float64(interp(data, v.pos)) * v.gain * v.envLevel
		left[i] += float32(s * v.panL)
		right[i] += float32(s * v.panR)

		v.pos += v.speed
		v.traveled += math.Abs(v.speed)
	}
	return true
}

// advanceEnvelope steps the percussion envelope: linear attack, sustain
// while looping, linear decay. Reports false once the envelope is done.
func (v *Voice) advanceEnvelope() bool {
	switch v.envStage {
	case envAttack:
		v.envLevel += v.attackStep
		if v.envLevel >= 1 {
			v.envLevel = 1
			if v.loop {
				v.envStage = envSustain
			} else {
				v.envStage = envDecay
			}
		}
	case envSustain:
		// hold until a cut or steal releases the voice
	case envDecay:
		v.envLevel -= v.decayStep
		if v.envLevel <= 0 {
			v.envLevel = 0
			return false
		}
	}
	return true
}

// interp reads the buffer at a fractional position with linear
// interpolation.
func interp(data []float32, pos float64) float32 {
	i := int(pos)
	frac := float32(pos - float64(i))
	if i >= len(data)-1 {
		return data[len(data)-1]
	}
	return data[i]*(1-frac) + data[i+1]*frac
}

func wrap(pos, length float64) float64 {
	pos = math.Mod(pos, length)
	if pos < 0 {
		pos += length
	}
	return pos
}
