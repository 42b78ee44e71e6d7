package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tideway/tideway/pattern"
)

const testRate = 44100

func TestBuildRequiresOutput(t *testing.T) {
	g := New(testRate)
	g.Sine(Const(440))
	require.ErrorIs(t, g.Build(), ErrNoOutput)
}

func TestBuildUnknownBus(t *testing.T) {
	g := New(testRate)
	osc := g.Sine(Const(440))
	lp := g.LowPass(FromBus("nope"), Const(1000), Const(1))
	_ = osc
	g.SetOutput(From(lp))
	require.ErrorIs(t, g.Build(), ErrUnknownBus)
}

func TestBuildBadInputCount(t *testing.T) {
	g := New(testRate)
	id := g.AddNode(&Node{Kind: KindSine, in: []Signal{Const(1), Const(2)}})
	g.SetOutput(From(id))
	require.ErrorIs(t, g.Build(), ErrBadInputs)
}

func TestBuildRejectsCycle(t *testing.T) {
	g := New(testRate)
	a := g.AddNode(&Node{Kind: KindAdd, in: []Signal{Const(0), Const(0)}})
	b := g.Add(From(a), Const(1))
	// close the loop
	g.node(a).in[0] = From(b)
	g.SetOutput(From(b))
	require.ErrorIs(t, g.Build(), ErrCycle)
}

func TestTapBreaksCycle(t *testing.T) {
	g := New(testRate)
	tap := g.Tap("fb")
	sum := g.Add(From(tap), Const(1))
	g.AddBus("fb", sum)
	g.SetOutput(From(sum))
	require.NoError(t, g.Build())
}

func TestBuildTwice(t *testing.T) {
	g := New(testRate)
	g.SetOutput(From(g.Sine(Const(440))))
	require.NoError(t, g.Build())
	require.ErrorIs(t, g.Build(), ErrBuilt)
}

func TestTopoOrderRespectsInputs(t *testing.T) {
	g := New(testRate)
	osc := g.Saw(Const(110))
	cutoff := g.Pattern(pattern.Range(pattern.Segment(pattern.Steady(0.5), 4), 200, 2000))
	lp := g.LowPass(From(osc), From(cutoff), Const(2))
	dist := g.Distortion(From(lp), Const(3))
	g.SetOutput(From(dist))
	require.NoError(t, g.Build())

	pos := make(map[NodeID]int)
	for i, id := range g.Order() {
		pos[id] = i
	}
	for id, n := range g.nodes {
		for _, in := range n.in {
			if in.kind == sigNode {
				require.Less(t, pos[in.node], pos[NodeID(id)],
					"input %d must render before node %d", in.node, id)
			}
		}
	}
}

// buildTestGraph assembles a graph exercising oscillators, filters,
// pattern-driven parameters, effects and a tap feedback loop.
func buildTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := New(testRate)

	cutoff := g.PatternSig(pattern.Nums(pattern.MustParse("400 900 1600 700")))
	osc := g.Saw(Const(110))
	lp := g.LowPass(From(osc), cutoff, Const(2))

	noise := g.WhiteNoise()
	nz := g.Mul(From(noise), Const(0.1))

	fb := g.Tap("loop")
	wet := g.Delay(g.sum(From(lp), From(nz)), Const(0.05), Const(0.4), Const(0.3), 0.25)
	g.AddBus("loop", wet)

	comp := g.Compressor(g.sum(From(wet), g.scale(From(fb), 0.2)), Const(0.5), Const(4), Const(0.005), Const(0.1))
	g.SetOutput(From(comp))
	require.NoError(t, g.Build())
	return g
}

// small test-only helpers
func (g *Graph) sum(a, b Signal) Signal { return From(g.Add(a, b)) }

func (g *Graph) scale(a Signal, k float64) Signal { return From(g.Mul(a, Const(k))) }

func TestEvaluatorEquivalence(t *testing.T) {
	const block = 256

	gb := buildTestGraph(t)
	gs := buildTestGraph(t)

	br, err := NewBlockRenderer(gb, block)
	require.NoError(t, err)
	sr, err := NewSampleRenderer(gs, block)
	require.NoError(t, err)

	var start uint64
	for b := 0; b < 8; b++ {
		bl, brr := br.Process(start, 0.5, nil)
		sl, srr := sr.Process(start, 0.5, nil)
		for i := 0; i < block; i++ {
			require.InDelta(t, sl[i], bl[i], 1e-5, "block %d frame %d left", b, i)
			require.InDelta(t, srr[i], brr[i], 1e-5, "block %d frame %d right", b, i)
		}
		start += block
	}
}

func TestLowPassAttenuates(t *testing.T) {
	build := func(filtered bool) *Graph {
		g := New(testRate)
		noise := g.WhiteNoise()
		if filtered {
			g.SetOutput(From(g.LowPass(From(noise), Const(500), Const(0.707))))
		} else {
			g.SetOutput(From(noise))
		}
		if err := g.Build(); err != nil {
			t.Fatal(err)
		}
		return g
	}

	rms := func(g *Graph) float64 {
		r, err := NewBlockRenderer(g, 4096)
		require.NoError(t, err)
		l, _ := r.Process(0, 1, nil)
		var sum float64
		for _, v := range l[1024:] { // skip the filter settling
			sum += v * v
		}
		return math.Sqrt(sum / float64(len(l)-1024))
	}

	require.Less(t, rms(build(true)), rms(build(false))*0.7,
		"500 Hz lowpass must attenuate broadband noise")
}

func TestLowPassSineResponse(t *testing.T) {
	rms := func(freq float64, filtered bool) float64 {
		g := New(testRate)
		osc := g.Sine(Const(freq))
		if filtered {
			g.SetOutput(From(g.LowPass(From(osc), Const(1000), Const(0.707))))
		} else {
			g.SetOutput(From(osc))
		}
		require.NoError(t, g.Build())

		r, err := NewBlockRenderer(g, 4096)
		require.NoError(t, err)
		l, _ := r.Process(0, 1, nil)
		var sum float64
		for _, v := range l[1024:] { // skip the filter settling
			sum += v * v
		}
		return math.Sqrt(sum / float64(len(l)-1024))
	}

	require.Less(t, rms(8000, true), rms(8000, false)*0.1,
		"8 kHz sine through a 1 kHz lowpass drops below 10% RMS")
	require.Greater(t, rms(440, true), rms(440, false)*0.9,
		"440 Hz sine passes with over 90% RMS")
}

func TestDegenerateParamsStayFinite(t *testing.T) {
	g := New(testRate)
	osc := g.Sine(Const(440))
	// cutoff far beyond Nyquist and absurd Q: clamps keep the filter stable
	lp := g.LowPass(From(osc), Const(1e9), Const(1e9))
	div := g.Div(Const(1), Const(0))
	out := g.Add(From(lp), From(div))
	g.SetOutput(From(out))
	require.NoError(t, g.Build())

	r, err := NewBlockRenderer(g, 1024)
	require.NoError(t, err)
	var start uint64
	for b := 0; b < 4; b++ {
		l, rr := r.Process(start, 1, nil)
		for i := range l {
			require.False(t, math.IsNaN(l[i]) || math.IsInf(l[i], 0), "left frame %d", i)
			require.False(t, math.IsNaN(rr[i]) || math.IsInf(rr[i], 0), "right frame %d", i)
		}
		start += 1024
	}
}

func TestScrub(t *testing.T) {
	require.Equal(t, 0.0, scrub(math.NaN()))
	require.Equal(t, 0.0, scrub(math.Inf(1)))
	require.Equal(t, 0.5, scrub(0.5))
}

func TestPatternSampleAndHold(t *testing.T) {
	g := New(testRate)
	pat := g.Pattern(pattern.Nums(pattern.MustParse("100 200")))
	g.SetOutput(From(pat))
	require.NoError(t, g.Build())

	r, err := NewBlockRenderer(g, testRate)
	require.NoError(t, err)
	l, _ := r.Process(0, 1, nil)

	require.Equal(t, 100.0, l[0])
	require.Equal(t, 100.0, l[testRate/2-1])
	require.Equal(t, 200.0, l[testRate/2])
	require.Equal(t, 200.0, l[testRate-1], "value holds until the next event")
}

func TestTapOneBlockLatency(t *testing.T) {
	g := New(testRate)
	one := g.Constant(1)
	g.AddBus("src", one)
	tap := g.Tap("src")
	g.SetOutput(From(tap))
	require.NoError(t, g.Build())

	r, err := NewBlockRenderer(g, 64)
	require.NoError(t, err)

	l, _ := r.Process(0, 1, nil)
	require.Equal(t, 0.0, l[0], "first block reads the zeroed previous block")
	l, _ = r.Process(64, 1, nil)
	require.Equal(t, 1.0, l[0], "second block sees the first block's value")
}

func TestTriggerOffsets(t *testing.T) {
	g := New(testRate)
	s := g.Sample(pattern.MustParse("bd*4"), DefaultSampleParams())
	g.SetOutput(From(s))
	require.NoError(t, g.Build())

	r, err := NewBlockRenderer(g, testRate)
	require.NoError(t, err)

	trs := r.CollectTriggers(0, 1)
	require.Len(t, trs, 4)
	want := []int{0, 11025, 22050, 33075}
	for i, tr := range trs {
		require.Equal(t, want[i], tr.Frame)
		require.Equal(t, "bd", tr.Name)
		require.Equal(t, 1.0, tr.Gain)
		require.Equal(t, 1.0, tr.Speed)
	}
}

func TestStackedOnsetsEachFire(t *testing.T) {
	g := New(testRate)
	s := g.Sample(pattern.MustParse("bd,sn"), DefaultSampleParams())
	g.SetOutput(From(s))
	require.NoError(t, g.Build())

	r, err := NewBlockRenderer(g, 512)
	require.NoError(t, err)

	trs := r.CollectTriggers(0, 1)
	require.Len(t, trs, 2, "both layers of a stack fire at the shared onset")
	names := make(map[string]bool)
	for _, tr := range trs {
		require.Equal(t, 0, tr.Frame)
		names[tr.Name] = true
	}
	require.True(t, names["bd"] && names["sn"])
}

func TestTriggerOncePerOnsetAcrossBlocks(t *testing.T) {
	g := New(testRate)
	s := g.Sample(pattern.MustParse("bd*4"), DefaultSampleParams())
	g.SetOutput(From(s))
	require.NoError(t, g.Build())

	const block = 512
	r, err := NewBlockRenderer(g, block)
	require.NoError(t, err)

	var total int
	var start uint64
	for start+block <= testRate {
		total += len(r.CollectTriggers(start, 1))
		r.Process(start, 1, nil)
		start += block
	}
	require.Equal(t, 4, total, "one cycle of bd*4 fires exactly four voices")
}

func TestTriggerParamsFromPattern(t *testing.T) {
	g := New(testRate)
	params := DefaultSampleParams()
	params.Pan = g.PatternSig(pattern.Nums(pattern.MustParse("-1 1")))
	params.Speed = Const(2)
	params.CutGroup = Const(3)
	params.Loop = Const(1)
	s := g.Sample(pattern.MustParse("hh hh"), params)
	g.SetOutput(From(s))
	require.NoError(t, g.Build())

	r, err := NewBlockRenderer(g, testRate)
	require.NoError(t, err)

	trs := r.CollectTriggers(0, 1)
	require.Len(t, trs, 2)
	require.Equal(t, -1.0, trs[0].Pan)
	require.Equal(t, 1.0, trs[1].Pan)
	for _, tr := range trs {
		require.Equal(t, 2.0, tr.Speed)
		require.Equal(t, 3, tr.CutGroup)
		require.True(t, tr.Loop)
	}
}

func TestSampleIndexOffset(t *testing.T) {
	g := New(testRate)
	params := DefaultSampleParams()
	params.N = Const(2)
	s := g.Sample(pattern.MustParse("bd:1"), params)
	g.SetOutput(From(s))
	require.NoError(t, g.Build())

	r, err := NewBlockRenderer(g, testRate)
	require.NoError(t, err)
	trs := r.CollectTriggers(0, 1)
	require.Len(t, trs, 1)
	require.Equal(t, 3, trs[0].Index, "pattern index and n parameter add")
}

func TestADSREnvelope(t *testing.T) {
	var e envState
	// 10-sample attack, 10-sample decay to 0.5 sustain at rate 1000
	attack, decay := 0.01, 0.01

	var v float64
	for i := 0; i < 10; i++ {
		v = e.adsr(1, attack, decay, 0.5, 0.01, 1000)
	}
	require.InDelta(t, 1.0, v, 1e-9, "attack peaks at 1")
	for i := 0; i < 20; i++ {
		v = e.adsr(1, attack, decay, 0.5, 0.01, 1000)
	}
	require.InDelta(t, 0.5, v, 1e-9, "holds sustain while gated")
	for i := 0; i < 100; i++ {
		v = e.adsr(0, attack, decay, 0.5, 0.01, 1000)
	}
	require.Equal(t, 0.0, v, "release returns to silence")
}

func TestVoiceBufferFeedsSampleNode(t *testing.T) {
	g := New(testRate)
	s := g.Sample(pattern.Silence[pattern.Value](), DefaultSampleParams())
	gain := g.Mul(From(s), Const(0.5))
	g.SetOutput(From(gain))
	require.NoError(t, g.Build())

	const block = 4
	r, err := NewBlockRenderer(g, block)
	require.NoError(t, err)

	voice := map[NodeID][2][]float32{
		s: {{1, 1, 1, 1}, {0, 0, 0, 0}},
	}
	l, rr := r.Process(0, 1, voice)
	require.Equal(t, 0.5, l[0], "voice audio flows through downstream nodes")
	require.Equal(t, 0.0, rr[0])
}
