// Package pattern implements the cyclic pattern engine: a pure, deterministic
// query model in the TidalCycles style. A Pattern is a function from a time
// span (measured in cycles, with exact rational boundaries) to the events
// active during that span. Patterns are immutable; combinators wrap the query
// function of their argument and never mutate it, so querying the same span
// twice always yields identical events.
package pattern

import "sort"

// Hap is one event: a value active over a span of time. Whole is the event's
// full logical extent; Part is the fragment covered by the query that
// produced it. Part ⊆ Whole, and Part ⊆ the queried span. Whole is nil for
// continuous signals that have no discrete extent.
type Hap[T any] struct {
	Whole *Span
	Part  Span
	Value T
}

// HasOnset reports whether this hap includes the start of its event, i.e.
// the query span did not cut off the beginning.
func (h Hap[T]) HasOnset() bool {
	return h.Whole != nil && h.Whole.Begin.Equal(h.Part.Begin)
}

// WholeOrPart returns the whole span when present, else the part.
func (h Hap[T]) WholeOrPart() Span {
	if h.Whole != nil {
		return *h.Whole
	}
	return h.Part
}

// Pattern is a pure function from a query span to the events active within
// it, sorted by part start. All pseudo-randomness inside a pattern derives
// from event time, never from external state.
type Pattern[T any] struct {
	query func(Span) []Hap[T]
}

// New builds a pattern from a raw query function. The function must be pure.
func New[T any](query func(Span) []Hap[T]) Pattern[T] {
	return Pattern[T]{query: query}
}

// Query returns the events overlapping span, sorted by part start.
func (p Pattern[T]) Query(span Span) []Hap[T] {
	if p.query == nil || span.Empty() {
		return nil
	}
	haps := p.query(span)
	sort.SliceStable(haps, func(i, j int) bool {
		return haps[i].Part.Begin.Less(haps[j].Part.Begin)
	})
	return haps
}

// QueryCycle returns the events of cycle n.
func (p Pattern[T]) QueryCycle(n int64) []Hap[T] {
	return p.Query(NewSpan(FromInt(n), FromInt(n+1)))
}

// Pure repeats value once per cycle, each event spanning its whole cycle.
func Pure[T any](value T) Pattern[T] {
	return New(func(span Span) []Hap[T] {
		var haps []Hap[T]
		for _, cyc := range span.cycles() {
			whole := Span{Begin: cyc.Begin.CycleStart(), End: cyc.Begin.CycleStart().Add(FromInt(1))}
			haps = append(haps, Hap[T]{Whole: &whole, Part: cyc.Sect(whole), Value: value})
		}
		return haps
	})
}

// Silence matches nothing.
func Silence[T any]() Pattern[T] {
	return New(func(Span) []Hap[T] { return nil })
}

// Steady is a continuous signal holding value; its haps carry no whole.
func Steady[T any](value T) Pattern[T] {
	return New(func(span Span) []Hap[T] {
		return []Hap[T]{{Part: span, Value: value}}
	})
}

// Map transforms every event value.
func Map[T, U any](p Pattern[T], f func(T) U) Pattern[U] {
	return New(func(span Span) []Hap[U] {
		src := p.Query(span)
		out := make([]Hap[U], len(src))
		for i, h := range src {
			out[i] = Hap[U]{Whole: h.Whole, Part: h.Part, Value: f(h.Value)}
		}
		return out
	})
}

// Filter keeps events whose value satisfies keep.
func (p Pattern[T]) Filter(keep func(Hap[T]) bool) Pattern[T] {
	return New(func(span Span) []Hap[T] {
		var out []Hap[T]
		for _, h := range p.Query(span) {
			if keep(h) {
				out = append(out, h)
			}
		}
		return out
	})
}

// withQueryTime warps the query span, withHapTime warps event times back.
// Every time-bending combinator is a pair of these.
func (p Pattern[T]) withQueryTime(f func(Frac) Frac) Pattern[T] {
	return New(func(span Span) []Hap[T] {
		return p.Query(Span{Begin: f(span.Begin), End: f(span.End)})
	})
}

func (p Pattern[T]) withHapTime(f func(Frac) Frac) Pattern[T] {
	return New(func(span Span) []Hap[T] {
		src := p.Query(span)
		out := make([]Hap[T], len(src))
		for i, h := range src {
			nh := Hap[T]{Part: Span{Begin: f(h.Part.Begin), End: f(h.Part.End)}, Value: h.Value}
			if h.Whole != nil {
				w := Span{Begin: f(h.Whole.Begin), End: f(h.Whole.End)}
				nh.Whole = &w
			}
			out[i] = nh
		}
		return out
	})
}

// splitQueries ensures the inner pattern only ever sees spans confined to a
// single cycle.
func (p Pattern[T]) splitQueries() Pattern[T] {
	return New(func(span Span) []Hap[T] {
		var out []Hap[T]
		for _, cyc := range span.cycles() {
			out = append(out, p.Query(cyc)...)
		}
		return out
	})
}

// Stack layers patterns; all play simultaneously.
func Stack[T any](pats ...Pattern[T]) Pattern[T] {
	return New(func(span Span) []Hap[T] {
		var out []Hap[T]
		for _, p := range pats {
			out = append(out, p.Query(span)...)
		}
		return out
	})
}

// Overlay is Stack for two patterns.
func (p Pattern[T]) Overlay(other Pattern[T]) Pattern[T] {
	return Stack(p, other)
}

// Cat plays one pattern per cycle, in rotation. Constituent patterns keep
// their own cycle counts, so alternations nested inside them still advance
// once per outer repetition.
func Cat[T any](pats ...Pattern[T]) Pattern[T] {
	if len(pats) == 0 {
		return Silence[T]()
	}
	n := int64(len(pats))
	return New(func(span Span) []Hap[T] {
		cyc := span.Begin.Cycle()
		i := cyc % n
		if i < 0 {
			i += n
		}
		// Shift so the chosen pattern sees consecutive cycles rather than
		// every n-th one.
		offset := FromInt(cyc - floorDiv(cyc, n))
		shifted := pats[i].
			withQueryTime(func(t Frac) Frac { return t.Sub(offset) }).
			withHapTime(func(t Frac) Frac { return t.Add(offset) })
		return shifted.Query(span)
	}).splitQueries()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Sequence subdivides each cycle equally among the given patterns.
func Sequence[T any](pats ...Pattern[T]) Pattern[T] {
	if len(pats) == 0 {
		return Silence[T]()
	}
	return Cat(pats...).Fast(FromInt(int64(len(pats))))
}

// Append plays p for one cycle, then other, alternating.
func (p Pattern[T]) Append(other Pattern[T]) Pattern[T] {
	return Cat(p, other)
}

// TimeCat concatenates patterns with relative weights within one cycle.
// Used by mini-notation elongation (`@`).
func TimeCat[T any](weights []Frac, pats []Pattern[T]) Pattern[T] {
	total := FromInt(0)
	for _, w := range weights {
		total = total.Add(w)
	}
	if total.Num == 0 {
		return Silence[T]()
	}
	var parts []Pattern[T]
	begin := FromInt(0)
	for i, w := range weights {
		end := begin.Add(w.Div(total))
		parts = append(parts, pats[i].compress(begin, end))
		begin = end
	}
	return Stack(parts...)
}

// compress squeezes a pattern into [begin, end) of each cycle.
func (p Pattern[T]) compress(begin, end Frac) Pattern[T] {
	if end.LessEq(begin) {
		return Silence[T]()
	}
	dur := end.Sub(begin)
	return p.fastGap(FromInt(1).Div(dur)).Late(begin)
}

// fastGap speeds the pattern up but leaves the rest of the cycle silent
// instead of repeating.
func (p Pattern[T]) fastGap(factor Frac) Pattern[T] {
	if factor.Num <= 0 {
		return Silence[T]()
	}
	return New(func(span Span) []Hap[T] {
		// span lies within one cycle after splitQueries; warp relative to
		// that cycle's start so event ends on the boundary map back exactly.
		base := span.Begin.CycleStart()
		munge := func(t Frac) Frac {
			return base.Add(t.Sub(base).Mul(factor).Min(FromInt(1)))
		}
		unmunge := func(t Frac) Frac {
			return base.Add(t.Sub(base).Div(factor))
		}
		q := Span{Begin: munge(span.Begin), End: munge(span.End)}
		if q.Empty() {
			return nil
		}
		src := p.Query(q)
		out := make([]Hap[T], 0, len(src))
		for _, h := range src {
			nh := Hap[T]{Part: Span{Begin: unmunge(h.Part.Begin), End: unmunge(h.Part.End)}, Value: h.Value}
			if h.Whole != nil {
				w := Span{Begin: unmunge(h.Whole.Begin), End: unmunge(h.Whole.End)}
				nh.Whole = &w
			}
			out = append(out, nh)
		}
		return out
	}).splitQueries()
}
