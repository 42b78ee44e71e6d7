package pattern

import (
	"fmt"
	"strconv"
)

// Frac is an exact rational number used for all pattern time arithmetic.
// Span boundaries must stay exact: accumulating floats drifts across cycle
// boundaries over long sessions, which is audible as timing slop.
type Frac struct {
	Num int64
	Den int64 // always > 0 after normalization
}

func NewFrac(num, den int64) Frac {
	if den == 0 {
		panic("pattern: fraction with zero denominator")
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs64(num), den)
	if g > 1 {
		num /= g
		den /= g
	}
	return Frac{Num: num, Den: den}
}

func FromInt(n int64) Frac { return Frac{Num: n, Den: 1} }

// FromFloat converts a float to an approximate fraction. It exists for
// interop at the edges (parsing numeric factors); internal time arithmetic
// never round-trips through floats.
func FromFloat(f float64) Frac {
	const den = 1_000_000
	return NewFrac(int64(f*den+copysignHalf(f)), den)
}

func copysignHalf(f float64) float64 {
	if f < 0 {
		return -0.5
	}
	return 0.5
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func (f Frac) Add(o Frac) Frac { return NewFrac(f.Num*o.Den+o.Num*f.Den, f.Den*o.Den) }
func (f Frac) Sub(o Frac) Frac { return NewFrac(f.Num*o.Den-o.Num*f.Den, f.Den*o.Den) }
func (f Frac) Mul(o Frac) Frac { return NewFrac(f.Num*o.Num, f.Den*o.Den) }

func (f Frac) Div(o Frac) Frac {
	if o.Num == 0 {
		panic("pattern: division by zero fraction")
	}
	return NewFrac(f.Num*o.Den, f.Den*o.Num)
}

func (f Frac) Neg() Frac { return Frac{Num: -f.Num, Den: f.Den} }

// Cmp returns -1, 0 or 1.
func (f Frac) Cmp(o Frac) int {
	lhs := f.Num * o.Den
	rhs := o.Num * f.Den
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	default:
		return 0
	}
}

func (f Frac) Less(o Frac) bool    { return f.Cmp(o) < 0 }
func (f Frac) LessEq(o Frac) bool  { return f.Cmp(o) <= 0 }
func (f Frac) Greater(o Frac) bool { return f.Cmp(o) > 0 }
func (f Frac) Equal(o Frac) bool   { return f.Num == o.Num && f.Den == o.Den }

func (f Frac) Min(o Frac) Frac {
	if f.Less(o) {
		return f
	}
	return o
}

func (f Frac) Max(o Frac) Frac {
	if f.Greater(o) {
		return f
	}
	return o
}

// Cycle returns the cycle number containing f (floor division).
func (f Frac) Cycle() int64 {
	q := f.Num / f.Den
	if f.Num%f.Den != 0 && f.Num < 0 {
		q--
	}
	return q
}

// CycleStart returns the start of the cycle containing f.
func (f Frac) CycleStart() Frac { return FromInt(f.Cycle()) }

// CyclePos returns the position within the cycle, in [0, 1).
func (f Frac) CyclePos() Frac { return f.Sub(f.CycleStart()) }

func (f Frac) Float() float64 { return float64(f.Num) / float64(f.Den) }

func (f Frac) String() string {
	if f.Den == 1 {
		return strconv.FormatInt(f.Num, 10)
	}
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// Span is a half-open time interval [Begin, End) measured in cycles.
type Span struct {
	Begin Frac
	End   Frac
}

func NewSpan(begin, end Frac) Span { return Span{Begin: begin, End: end} }

func (s Span) Duration() Frac { return s.End.Sub(s.Begin) }

func (s Span) Empty() bool { return !s.Begin.Less(s.End) }

// Sect clips s to o. The result may be empty.
func (s Span) Sect(o Span) Span {
	return Span{Begin: s.Begin.Max(o.Begin), End: s.End.Min(o.End)}
}

func (s Span) Contains(t Frac) bool {
	return s.Begin.LessEq(t) && t.Less(s.End)
}

// cycles splits s at integer boundaries. Combinators that make per-cycle
// decisions (alternation, every, rev) rely on each query span lying within
// a single cycle.
func (s Span) cycles() []Span {
	if s.Empty() {
		return nil
	}
	var out []Span
	begin := s.Begin
	for begin.Less(s.End) {
		end := begin.CycleStart().Add(FromInt(1)).Min(s.End)
		out = append(out, Span{Begin: begin, End: end})
		begin = end
	}
	return out
}

func (s Span) String() string {
	return fmt.Sprintf("%v → %v", s.Begin, s.End)
}
