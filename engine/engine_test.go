package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tideway/tideway/graph"
	"github.com/tideway/tideway/pattern"
	"github.com/tideway/tideway/sample"
)

const testRate = 44100

func testBank() *sample.Bank {
	b := sample.NewBank()
	data := make([]float32, 2000)
	for i := range data {
		data[i] = 0.5
	}
	b.Add("bd", &sample.Sample{Name: "bd", Rate: testRate, Data: data})
	return b
}

func newTestEngine(block int) *Engine {
	return New(Config{SampleRate: testRate, BlockSize: block, CPS: 1}, testBank())
}

// drumGraph routes a kick pattern straight to the output.
func drumGraph(p string) *graph.Graph {
	g := graph.New(testRate)
	s := g.Sample(pattern.MustParse(p), graph.DefaultSampleParams())
	g.SetOutput(graph.From(s))
	return g
}

func TestRendersSilenceWithoutGraph(t *testing.T) {
	e := newTestEngine(256)
	defer e.Close()

	l, r := e.RenderBlock()
	require.Len(t, l, 256)
	for i := range l {
		require.Zero(t, l[i])
		require.Zero(t, r[i])
	}
	require.Equal(t, uint64(256), e.Stats().SampleCounter, "the clock advances even in silence")
}

func TestSetGraphRejectsBrokenGraph(t *testing.T) {
	e := newTestEngine(256)
	defer e.Close()

	require.NoError(t, e.SetGraph(drumGraph("bd*4")))

	bad := graph.New(testRate)
	bad.Sine(graph.Const(440)) // no output set
	require.Error(t, e.SetGraph(bad))

	// the previous graph keeps running
	e.RenderBlock()
	require.NotZero(t, e.Stats().Triggers)
}

func TestTriggersReachVoices(t *testing.T) {
	e := newTestEngine(testRate)
	defer e.Close()
	require.NoError(t, e.SetGraph(drumGraph("bd*4")))

	l, _ := e.RenderBlock()

	st := e.Stats()
	require.Equal(t, uint64(4), st.Triggers)
	require.Zero(t, st.DroppedTriggers)
	require.NotZero(t, l[0], "kick audio reaches the output")
	require.NotZero(t, l[11025], "second beat lands a quarter cycle in")
}

func TestUnknownSampleIsDroppedNotFatal(t *testing.T) {
	e := newTestEngine(testRate)
	defer e.Close()
	require.NoError(t, e.SetGraph(drumGraph("nosuch*2")))

	e.RenderBlock()

	st := e.Stats()
	require.Equal(t, uint64(2), st.DroppedTriggers)
	require.Zero(t, st.ActiveVoices)
}

func TestCPSScalesTheGrid(t *testing.T) {
	e := newTestEngine(testRate)
	defer e.Close()
	require.NoError(t, e.SetGraph(drumGraph("bd")))

	e.SetCPS(2) // two cycles per second: the one-second block holds two hits
	e.RenderBlock()
	require.Equal(t, uint64(2), e.Stats().Triggers)
}

func TestSetCPSIgnoresInvalid(t *testing.T) {
	e := newTestEngine(256)
	defer e.Close()
	e.SetCPS(0)
	e.SetCPS(-1)
	require.Equal(t, 1.0, e.CPS())
}

func TestHushSilencesWithoutTeardown(t *testing.T) {
	e := newTestEngine(testRate)
	defer e.Close()
	require.NoError(t, e.SetGraph(drumGraph("bd*4")))

	e.Hush()
	l, _ := e.RenderBlock()
	for i := range l {
		require.Zero(t, l[i])
	}
	require.Zero(t, e.Stats().Triggers, "hushed blocks do not fire voices")

	e.Unhush()
	l, _ = e.RenderBlock()
	require.NotZero(t, l[0])
}

func TestPanicKillsVoicesAndHushes(t *testing.T) {
	e := newTestEngine(1024)
	defer e.Close()
	require.NoError(t, e.SetGraph(drumGraph("bd*4")))

	e.RenderBlock()
	require.NotZero(t, e.Stats().ActiveVoices)

	e.Panic()
	require.Zero(t, e.Stats().ActiveVoices)
	require.True(t, e.Hushed())
}

func TestVoicesSurviveGraphSwap(t *testing.T) {
	e := newTestEngine(1024)
	defer e.Close()
	require.NoError(t, e.SetGraph(drumGraph("bd*4")))

	e.RenderBlock()
	active := e.Stats().ActiveVoices
	require.NotZero(t, active)

	require.NoError(t, e.SetGraph(drumGraph("~")))
	require.Equal(t, active, e.Stats().ActiveVoices, "playing voices outlive the swap")
}

func TestProbe(t *testing.T) {
	e := newTestEngine(256)
	defer e.Close()

	_, ok := e.Probe(0)
	require.False(t, ok, "no graph installed")

	g := graph.New(testRate)
	c := g.Constant(0.25)
	g.SetOutput(graph.From(c))
	require.NoError(t, e.SetGraph(g))

	e.RenderBlock()
	v, ok := e.Probe(c)
	require.True(t, ok)
	require.Equal(t, 0.25, v)
}

func TestOverrunCounter(t *testing.T) {
	// an absurd sample rate gives each block a near-zero wall budget, so any
	// real render overruns
	e := New(Config{SampleRate: 1e9, BlockSize: 64, CPS: 1}, testBank())
	defer e.Close()
	require.NoError(t, e.SetGraph(drumGraph("bd")))

	e.RenderBlock()
	require.NotZero(t, e.Stats().Overruns)
}
