package graph

import (
	"fmt"
	"math"

	"github.com/tideway/tideway/pattern"
)

// Trigger is one sample onset resolved to concrete playback parameters,
// ready to hand to a voice pool. Frame is block-relative: the voice stays
// silent until that offset.
type Trigger struct {
	Node  NodeID
	Frame int

	Name  string
	Index int

	Gain    float64
	Pan     float64
	Speed   float64
	Offset  float64 // start position as a fraction of the sample
	Attack  float64
	Release float64
	Note    float64 // semitones, folded into playback speed by the voice
	Loop    bool

	CutGroup int
}

// renderState is the buffer plumbing shared by both evaluator modes: one
// current and one previous block per node and channel (taps read previous),
// plus per-block pattern-hold buffers.
type renderState struct {
	g    *Graph
	size int

	cur, prev [][2][]float64
	patBuf    [][]float64
	tapSrc    []NodeID

	voice map[NodeID][2][]float32

	// pattern phase memo so CollectTriggers and Process run it once per block
	patStart uint64
	patCps   float64
	patDone  bool

	ins []float64
}

func newRenderState(g *Graph, blockSize int) (*renderState, error) {
	if !g.built {
		return nil, fmt.Errorf("graph: render before Build")
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("graph: block size %d", blockSize)
	}
	r := &renderState{
		g:      g,
		size:   blockSize,
		cur:    make([][2][]float64, len(g.nodes)),
		prev:   make([][2][]float64, len(g.nodes)),
		patBuf: make([][]float64, len(g.nodes)),
		tapSrc: make([]NodeID, len(g.nodes)),
		ins:    make([]float64, 0, 8),
	}
	for id, n := range g.nodes {
		for ch := 0; ch < 2; ch++ {
			r.cur[id][ch] = make([]float64, blockSize)
			r.prev[id][ch] = make([]float64, blockSize)
		}
		r.tapSrc[id] = NoNode
		switch n.Kind {
		case KindPattern:
			r.patBuf[id] = make([]float64, blockSize)
		case KindTap:
			src, err := g.ResolveBus(n.tapBus)
			if err != nil {
				return nil, err
			}
			r.tapSrc[id] = src
		}
	}
	return r, nil
}

// cycleAt converts an absolute sample counter to cycle time. Deriving from
// the counter (instead of accumulating per-block deltas) keeps live tempo
// changes drift-free.
func cycleAt(sample uint64, rate, cps float64) float64 {
	return float64(sample) / rate * cps
}

func (r *renderState) blockSpan(start uint64, cps float64) (t0, t1 float64, span pattern.Span) {
	rate := r.g.sampleRate
	t0 = cycleAt(start, rate, cps)
	t1 = cycleAt(start+uint64(r.size), rate, cps)
	return t0, t1, pattern.NewSpan(pattern.FromFloat(t0), pattern.FromFloat(t1))
}

// frameOf maps a cycle position to a block-relative frame index.
func (r *renderState) frameOf(c pattern.Frac, t0, cps float64) int {
	return int(math.Round((c.Float() - t0) * r.g.sampleRate / cps))
}

// patternPhase resolves every Pattern node across the block: events are
// walked in time order and each node's buffer is filled sample-and-hold
// style. The held value survives across blocks; it is 0 until the first
// event fires.
func (r *renderState) patternPhase(start uint64, cps float64) {
	if r.patDone && r.patStart == start && r.patCps == cps {
		return
	}
	r.patStart, r.patCps, r.patDone = start, cps, true

	t0, _, span := r.blockSpan(start, cps)
	for id, n := range r.g.nodes {
		if n.Kind != KindPattern {
			continue
		}
		buf := r.patBuf[id]
		held := n.st[0].holdVal
		haps := n.pat.Query(span)
		k := 0
		for i := 0; i < r.size; i++ {
			for k < len(haps) && r.frameOf(haps[k].Part.Begin, t0, cps) <= i {
				held = haps[k].Value
				k++
			}
			buf[i] = held
		}
		for k < len(haps) {
			held = haps[k].Value
			k++
		}
		n.st[0].holdVal = held
	}
}

// collectTriggers queries every sample node over the block span and resolves
// each onset's parameters at its trigger time. Block spans abut exactly and
// straddled tails carry no onset, so every onset lands in exactly one block;
// stacked events sharing an onset time each fire their own trigger.
func (r *renderState) collectTriggers(start uint64, cps float64) []Trigger {
	r.patternPhase(start, cps)

	t0, _, span := r.blockSpan(start, cps)
	var out []Trigger
	for _, sid := range r.g.samples {
		n := r.g.node(sid)
		for _, h := range n.events.Query(span) {
			if !h.HasOnset() {
				continue
			}
			frame := r.frameOf(h.Part.Begin, t0, cps)
			if frame < 0 || frame >= r.size {
				continue
			}

			p := n.params
			tr := Trigger{
				Node:     sid,
				Frame:    frame,
				Name:     h.Value.Name,
				Index:    h.Value.Index + int(r.paramAt(p.N, frame)),
				Gain:     r.paramAt(p.Gain, frame),
				Pan:      clamp(r.paramAt(p.Pan, frame), -1, 1),
				Speed:    r.paramAt(p.Speed, frame),
				Offset:   clamp(r.paramAt(p.Offset, frame), 0, 1),
				Attack:   math.Max(r.paramAt(p.Attack, frame), 0),
				Release:  math.Max(r.paramAt(p.Release, frame), 0),
				Note:     r.paramAt(p.Note, frame),
				Loop:     r.paramAt(p.Loop, frame) > 0,
				CutGroup: int(r.paramAt(p.CutGroup, frame)),
			}
			out = append(out, tr)
		}
	}
	return out
}

// paramAt resolves a trigger parameter at a block frame. Constants and
// pattern nodes resolve exactly; audio-rate sources resolve to their last
// rendered value, since the render phase has not run yet for this block.
func (r *renderState) paramAt(s Signal, frame int) float64 {
	switch s.kind {
	case sigConst:
		return s.value
	case sigNode:
		if r.g.node(s.node).Kind == KindPattern {
			return r.patBuf[s.node][frame]
		}
		return r.prev[s.node][0][r.size-1]
	}
	return 0
}

// inputVal reads one resolved input at a frame during the render phase.
func (r *renderState) inputVal(s Signal, ch, i int) float64 {
	if s.kind == sigConst {
		return s.value
	}
	return r.cur[s.node][ch][i]
}

func (r *renderState) frameCtxFor(id int, n *Node, ch, i int) frameCtx {
	ctx := frameCtx{rate: r.g.sampleRate}
	switch n.Kind {
	case KindPattern:
		ctx.patVal = r.patBuf[id][i]
	case KindSample:
		if vb, ok := r.voice[NodeID(id)]; ok {
			ctx.voiceVal = float64(vb[ch][i])
		}
	case KindTap:
		ctx.tapVal = r.prev[r.tapSrc[id]][ch][i]
	}
	return ctx
}

// flip makes the just-rendered block readable as the previous one.
func (r *renderState) flip() {
	r.cur, r.prev = r.prev, r.cur
	r.patDone = false
}

// LastValue returns the most recently rendered value of a node (channel 0),
// a cheap probe for diagnostics and trigger-time parameter reads.
func (r *renderState) LastValue(id NodeID) float64 {
	return r.prev[id][0][r.size-1]
}
