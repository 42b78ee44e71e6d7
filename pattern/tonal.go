package pattern

import (
	"math"
	"strconv"
	"strings"
)

// Note-name handling. Names are letter + optional accidental + optional
// octave: "c4", "cs4", "eb3", "a" (octave defaults to 4, so "a" is A4).
// Middle C ("c4") is MIDI 60.

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// NoteMidi resolves a note name to a MIDI number. ok is false when the
// string is not a note name.
func NoteMidi(name string) (float64, bool) {
	s := strings.ToLower(name)
	if s == "" {
		return 0, false
	}
	off, found := noteOffsets[s[0]]
	if !found {
		return 0, false
	}
	rest := s[1:]
	semi := off
	for len(rest) > 0 {
		switch rest[0] {
		case 's', '#':
			semi++
		case 'f':
			semi--
		default:
			goto octave
		}
		rest = rest[1:]
	}
octave:
	oct := 4
	if rest != "" {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return 0, false
		}
		oct = n
	}
	return float64((oct+1)*12 + semi), true
}

// MidiFreq converts a MIDI note number to frequency in Hz (A4 = 440).
func MidiFreq(midi float64) float64 {
	return 440 * math.Pow(2, (midi-69)/12)
}

// Value is one mini-notation atom: a name with an optional sample index
// ("bd:3"). Numeric atoms keep their parsed number.
type Value struct {
	Name  string
	Index int
	num   float64
	isNum bool
}

// NewValue builds a Value from a raw token, parsing a numeric form if the
// token is one.
func NewValue(name string, index int) Value {
	v := Value{Name: name, Index: index}
	if f, err := strconv.ParseFloat(name, 64); err == nil {
		v.num, v.isNum = f, true
	}
	return v
}

// Num resolves the value numerically: a parsed number, else a note name as
// its MIDI number, else the default 1.
func (v Value) Num() float64 {
	if v.isNum {
		return v.num
	}
	if m, ok := NoteMidi(v.Name); ok {
		return m
	}
	return 1
}

// IsNum reports whether the value was written as a number.
func (v Value) IsNum() bool { return v.isNum }

// Nums converts a value pattern to its numeric resolution.
func Nums(p Pattern[Value]) Pattern[float64] {
	return Map(p, Value.Num)
}

// Freqs converts a value pattern of note names or MIDI numbers to
// frequencies in Hz.
func Freqs(p Pattern[Value]) Pattern[float64] {
	return Map(p, func(v Value) float64 { return MidiFreq(v.Num()) })
}
