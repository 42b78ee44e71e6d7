package pattern

// Time-bending and structural combinators. All of them are pure wrappers
// around the query function; none hold mutable state.

// Fast speeds the pattern up by factor, packing factor repetitions into one
// cycle. A factor <= 0 yields silence.
func (p Pattern[T]) Fast(factor Frac) Pattern[T] {
	if factor.Num <= 0 {
		return Silence[T]()
	}
	return p.
		withQueryTime(func(t Frac) Frac { return t.Mul(factor) }).
		withHapTime(func(t Frac) Frac { return t.Div(factor) })
}

// Slow stretches the pattern by factor.
func (p Pattern[T]) Slow(factor Frac) Pattern[T] {
	if factor.Num <= 0 {
		return Silence[T]()
	}
	return p.Fast(FromInt(1).Div(factor))
}

// FastPat is Fast with a pattern-valued factor: each factor event governs
// the part of the cycle it covers.
func FastPat[T any](p Pattern[T], factor Pattern[Frac]) Pattern[T] {
	return New(func(span Span) []Hap[T] {
		var out []Hap[T]
		for _, fh := range factor.Query(span) {
			for _, h := range p.Fast(fh.Value).Query(fh.Part) {
				h.Part = h.Part.Sect(fh.Part)
				if !h.Part.Empty() {
					out = append(out, h)
				}
			}
		}
		return out
	})
}

// SlowPat is Slow with a pattern-valued factor.
func SlowPat[T any](p Pattern[T], factor Pattern[Frac]) Pattern[T] {
	return FastPat(p, Map(factor, func(f Frac) Frac {
		if f.Num == 0 {
			return FromInt(0)
		}
		return FromInt(1).Div(f)
	}))
}

// Early shifts the pattern earlier in time by t cycles.
func (p Pattern[T]) Early(t Frac) Pattern[T] {
	return p.
		withQueryTime(func(q Frac) Frac { return q.Add(t) }).
		withHapTime(func(q Frac) Frac { return q.Sub(t) })
}

// Late shifts the pattern later in time by t cycles.
func (p Pattern[T]) Late(t Frac) Pattern[T] {
	return p.Early(t.Neg())
}

// Rev reverses each cycle in place. Event order flips within the cycle but
// cycles themselves stay in order.
func (p Pattern[T]) Rev() Pattern[T] {
	return New(func(span Span) []Hap[T] {
		// span lies within one cycle after splitQueries; reflect about the
		// cycle midpoint: t -> 2c+1 - t.
		pivot := span.Begin.CycleStart().Mul(FromInt(2)).Add(FromInt(1))
		reflect := func(t Frac) Frac { return pivot.Sub(t) }
		q := Span{Begin: reflect(span.End), End: reflect(span.Begin)}
		src := p.Query(q)
		out := make([]Hap[T], 0, len(src))
		for _, h := range src {
			nh := Hap[T]{Part: Span{Begin: reflect(h.Part.End), End: reflect(h.Part.Begin)}, Value: h.Value}
			if h.Whole != nil {
				w := Span{Begin: reflect(h.Whole.End), End: reflect(h.Whole.Begin)}
				nh.Whole = &w
			}
			out = append(out, nh)
		}
		return out
	}).splitQueries()
}

// whenCycle applies f on cycles where pred holds.
func (p Pattern[T]) whenCycle(pred func(int64) bool, f func(Pattern[T]) Pattern[T]) Pattern[T] {
	fp := f(p)
	return New(func(span Span) []Hap[T] {
		if pred(span.Begin.Cycle()) {
			return fp.Query(span)
		}
		return p.Query(span)
	}).splitQueries()
}

// Every applies f once every n cycles (on cycles where cycle mod n == 0).
// n <= 0 leaves the pattern untouched.
func (p Pattern[T]) Every(n int64, f func(Pattern[T]) Pattern[T]) Pattern[T] {
	if n <= 0 {
		return p
	}
	return p.whenCycle(func(c int64) bool { return mod64(c, n) == 0 }, f)
}

// WhenMod applies f on cycles where cycle mod a >= b.
func (p Pattern[T]) WhenMod(a, b int64, f func(Pattern[T]) Pattern[T]) Pattern[T] {
	if a <= 0 {
		return p
	}
	return p.whenCycle(func(c int64) bool { return mod64(c, a) >= b }, f)
}

// Iter shifts the pattern by an extra 1/n cycle each cycle, returning to the
// start after n cycles.
func (p Pattern[T]) Iter(n int64) Pattern[T] {
	if n <= 1 {
		return p
	}
	return New(func(span Span) []Hap[T] {
		k := mod64(span.Begin.Cycle(), n)
		return p.Early(NewFrac(k, n)).Query(span)
	}).splitQueries()
}

// Palindrome plays the pattern forwards on even cycles and reversed on odd
// ones.
func (p Pattern[T]) Palindrome() Pattern[T] {
	return p.whenCycle(func(c int64) bool { return mod64(c, 2) == 1 },
		func(q Pattern[T]) Pattern[T] { return q.Rev() })
}

func mod64(a, n int64) int64 {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// Euclid distributes the pattern over pulses onsets in steps slots using the
// Bjorklund algorithm, rotated left by rot. (3,8) yields x..x..x. .
func Euclid[T any](p Pattern[T], pulses, steps, rot int) Pattern[T] {
	if pulses <= 0 || steps <= 0 || pulses > steps {
		return Silence[T]()
	}
	onsets := bjorklund(pulses, steps)
	if rot != 0 {
		r := ((rot % steps) + steps) % steps
		onsets = append(onsets[r:], onsets[:r]...)
	}
	slots := make([]Pattern[T], steps)
	for i, on := range onsets {
		if on {
			slots[i] = p
		} else {
			slots[i] = Silence[T]()
		}
	}
	return Sequence(slots...)
}

// bjorklund computes the euclidean rhythm by repeatedly folding the remainder
// sequence into the pulse sequence until the remainder is trivial.
func bjorklund(pulses, steps int) []bool {
	a := make([][]bool, pulses)
	for i := range a {
		a[i] = []bool{true}
	}
	b := make([][]bool, steps-pulses)
	for i := range b {
		b[i] = []bool{false}
	}
	for len(b) > 1 {
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		var na, nb [][]bool
		for i := 0; i < n; i++ {
			na = append(na, append(append([]bool{}, a[i]...), b[i]...))
		}
		if len(a) > n {
			nb = a[n:]
		} else {
			nb = b[n:]
		}
		a, b = na, nb
	}
	var out []bool
	for _, g := range a {
		out = append(out, g...)
	}
	for _, g := range b {
		out = append(out, g...)
	}
	return out
}

// timeRand is the deterministic per-event random source: a splitmix64-style
// hash of the event's normalized start time. Identical queries see identical
// values, which keeps degrade and friends reproducible.
func timeRand(t Frac) float64 {
	x := uint64(t.Num)*0x9e3779b97f4a7c15 ^ uint64(t.Den)*0xbf58476d1ce4e5b9
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return float64(x>>11) / float64(1<<53)
}

// DegradeBy drops roughly the given fraction of events, decided per event by
// the time hash. prob 0 keeps everything, prob 1 drops everything.
func (p Pattern[T]) DegradeBy(prob float64) Pattern[T] {
	return p.Filter(func(h Hap[T]) bool {
		return timeRand(h.WholeOrPart().Begin) >= prob
	})
}

// UndegradeBy keeps exactly the events DegradeBy with the same prob drops.
func (p Pattern[T]) UndegradeBy(prob float64) Pattern[T] {
	return p.Filter(func(h Hap[T]) bool {
		return timeRand(h.WholeOrPart().Begin) < prob
	})
}

// Degrade drops about half the events.
func (p Pattern[T]) Degrade() Pattern[T] { return p.DegradeBy(0.5) }

// SometimesBy applies f to roughly the given fraction of events and leaves
// the rest alone. DegradeBy and UndegradeBy partition on the same hash, so
// every event appears exactly once.
func (p Pattern[T]) SometimesBy(prob float64, f func(Pattern[T]) Pattern[T]) Pattern[T] {
	return p.DegradeBy(prob).Overlay(f(p.UndegradeBy(prob)))
}

// Sometimes is SometimesBy(0.5, f).
func (p Pattern[T]) Sometimes(f func(Pattern[T]) Pattern[T]) Pattern[T] {
	return p.SometimesBy(0.5, f)
}

// Chop splits each event into n consecutive equal slices. The slice callback
// derives each slice's value from the original (e.g. setting sub-sample
// begin/end points); it receives the slice index and count.
func Chop[T any](p Pattern[T], n int, slice func(v T, i, n int) T) Pattern[T] {
	if n <= 1 {
		return p
	}
	return New(func(span Span) []Hap[T] {
		var out []Hap[T]
		for _, h := range p.Query(span) {
			whole := h.WholeOrPart()
			dur := whole.Duration().Div(FromInt(int64(n)))
			for i := 0; i < n; i++ {
				b := whole.Begin.Add(dur.Mul(FromInt(int64(i))))
				w := Span{Begin: b, End: b.Add(dur)}
				part := w.Sect(h.Part)
				if part.Empty() {
					continue
				}
				ww := w
				out = append(out, Hap[T]{Whole: &ww, Part: part, Value: slice(h.Value, i, n)})
			}
		}
		return out
	})
}

// Segment samples the pattern n times per cycle, turning a continuous signal
// into n discrete events per cycle. Each event takes the value active at its
// start.
func Segment[T any](p Pattern[T], n int64) Pattern[T] {
	if n <= 0 {
		return Silence[T]()
	}
	return New(func(span Span) []Hap[T] {
		var out []Hap[T]
		for _, cyc := range span.cycles() {
			start := cyc.Begin.CycleStart()
			for i := int64(0); i < n; i++ {
				w := Span{
					Begin: start.Add(NewFrac(i, n)),
					End:   start.Add(NewFrac(i+1, n)),
				}
				part := w.Sect(cyc)
				if part.Empty() {
					continue
				}
				src := p.Query(w)
				if len(src) == 0 {
					continue
				}
				v := src[0].Value
				for _, h := range src {
					if h.Part.Contains(w.Begin) {
						v = h.Value
						break
					}
				}
				ww := w
				out = append(out, Hap[T]{Whole: &ww, Part: part, Value: v})
			}
		}
		return out
	})
}

// Range rescales a unipolar [0,1] pattern to [lo, hi].
func Range(p Pattern[float64], lo, hi float64) Pattern[float64] {
	return Map(p, func(v float64) float64 { return lo + v*(hi-lo) })
}
