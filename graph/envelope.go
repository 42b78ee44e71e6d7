package graph

// Envelope state machines for the ADSR and AR node kinds. Segment rates are
// derived from the current parameter values each sample, so modulated
// envelope times take effect immediately.

type envStage int

const (
	stageIdle envStage = iota
	stageAttack
	stageDecay
	stageSustain
	stageRelease
)

type envState struct {
	stage envStage
	level float64
	gate  float64
}

// adsr is a gate-driven linear ADSR. A rising gate starts the attack from
// the current level; a falling gate releases from wherever the envelope is.
func (e *envState) adsr(gate, attack, decay, sustain, release, rate float64) float64 {
	sustain = clamp(sustain, 0, 1)
	if gate > 0 && e.gate <= 0 {
		e.stage = stageAttack
	}
	if gate <= 0 && e.gate > 0 {
		e.stage = stageRelease
	}
	e.gate = gate

	switch e.stage {
	case stageAttack:
		e.level += segmentStep(1, attack, rate)
		if e.level >= 1 {
			e.level = 1
			e.stage = stageDecay
		}
	case stageDecay:
		e.level -= segmentStep(1-sustain, decay, rate)
		if e.level <= sustain {
			e.level = sustain
			e.stage = stageSustain
		}
	case stageSustain:
		e.level = sustain
	case stageRelease:
		e.level -= segmentStep(1, release, rate)
		if e.level <= 0 {
			e.level = 0
			e.stage = stageIdle
		}
	}
	return e.level
}

// ar is a trigger-driven attack-release envelope. Each rising edge restarts
// the attack.
func (e *envState) ar(trigger, attack, release, rate float64) float64 {
	if trigger > 0 && e.gate <= 0 {
		e.stage = stageAttack
	}
	e.gate = trigger

	switch e.stage {
	case stageAttack:
		e.level += segmentStep(1, attack, rate)
		if e.level >= 1 {
			e.level = 1
			e.stage = stageRelease
		}
	case stageRelease:
		e.level -= segmentStep(1, release, rate)
		if e.level <= 0 {
			e.level = 0
			e.stage = stageIdle
		}
	}
	return e.level
}

// segmentStep returns the per-sample increment that crosses span in the
// given number of seconds; zero-length segments jump in one sample.
func segmentStep(span, seconds, rate float64) float64 {
	if seconds <= 0 {
		return span
	}
	return span / (seconds * rate)
}
