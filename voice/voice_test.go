package voice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tideway/tideway/sample"
)

const testRate = 44100

// rampSample returns a sample whose data is 1, 2, 3, ... so positions are
// easy to assert.
func rampSample(n int) *sample.Sample {
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i + 1)
	}
	return &sample.Sample{Name: "ramp", Rate: testRate, Data: data}
}

// flatParams plays a sample centered, full gain, with an effectively
// instant attack and a very slow decay so envelope shape stays out of the
// assertions.
func flatParams(s *sample.Sample, source int) Params {
	return Params{
		Sample:  s,
		Source:  source,
		Gain:    1,
		Speed:   1,
		Attack:  1e-9,
		Release: 1000,
	}
}

func newTestPool(size int) *Pool {
	return NewPool(size, testRate, 0)
}

func TestTriggerPlaysSample(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	p.Trigger(flatParams(rampSample(4), 7))
	out := p.RenderBlock(4)

	bufs, ok := out[7]
	require.True(t, ok, "output keyed by source node")
	const center = 0.7071 // equal-power center pan
	for i := 0; i < 4; i++ {
		require.InDelta(t, float64(i+1)*center, float64(bufs[0][i]), 1e-3, "left frame %d", i)
		require.InDelta(t, float64(i+1)*center, float64(bufs[1][i]), 1e-3, "right frame %d", i)
	}
}

func TestPanHardLeft(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	pr := flatParams(rampSample(4), 1)
	pr.Pan = -1
	p.Trigger(pr)
	out := p.RenderBlock(4)

	bufs := out[1]
	require.InDelta(t, 1.0, float64(bufs[0][0]), 1e-3)
	require.InDelta(t, 0.0, float64(bufs[1][0]), 1e-6)
}

func TestStartOffsetWithinBlock(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	pr := flatParams(rampSample(8), 1)
	pr.Frame = 2
	p.Trigger(pr)
	out := p.RenderBlock(4)

	bufs := out[1]
	require.Equal(t, float32(0), bufs[0][0])
	require.Equal(t, float32(0), bufs[0][1])
	require.NotZero(t, bufs[0][2], "playback begins at the start offset")
}

func TestStartOffsetAcrossBlocks(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	pr := flatParams(rampSample(64), 1)
	pr.Frame = 600
	p.Trigger(pr)

	out := p.RenderBlock(256)
	if bufs, ok := out[1]; ok {
		for i := range bufs[0] {
			require.Equal(t, float32(0), bufs[0][i])
		}
	}
	p.RenderBlock(256) // still before the offset
	out = p.RenderBlock(256)
	bufs := out[1]
	require.Zero(t, bufs[0][87])
	require.NotZero(t, bufs[0][88], "offset 600 lands at frame 88 of the third 256-frame block")
}

func TestReversePlayback(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	pr := flatParams(rampSample(4), 1)
	pr.Speed = -1
	p.Trigger(pr)
	out := p.RenderBlock(4)

	bufs := out[1]
	const center = 0.7071
	require.InDelta(t, 4*center, float64(bufs[0][0]), 1e-2, "reverse starts from the tail")
	require.InDelta(t, 3*center, float64(bufs[0][1]), 1e-2)
}

func TestNoteScalesSpeed(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	pr := flatParams(rampSample(4), 1)
	pr.Note = 12 // one octave up doubles the playback rate
	p.Trigger(pr)
	out := p.RenderBlock(4)

	bufs := out[1]
	const center = 0.7071
	require.InDelta(t, 1*center, float64(bufs[0][0]), 1e-2)
	require.InDelta(t, 3*center, float64(bufs[0][1]), 1e-2)
}

func TestOneShotFreesAtEnd(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	p.Trigger(flatParams(rampSample(4), 1))
	require.Equal(t, 1, p.Active())
	p.RenderBlock(16)
	require.Equal(t, 0, p.Active(), "one-shot ends when the buffer runs out")
}

func TestLoopKeepsPlaying(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	pr := flatParams(rampSample(4), 1)
	pr.Loop = true
	p.Trigger(pr)
	p.RenderBlock(64)
	require.Equal(t, 1, p.Active(), "looping voices survive the sample end")

	out := p.RenderBlock(8)
	bufs := out[1]
	const center = 0.7071
	// loop wraps: positions 0..3 repeat
	require.InDelta(t, float64(bufs[0][0]), float64(bufs[0][4]), 1e-2)
	_ = center
}

func TestCutGroupFastReleases(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	first := flatParams(rampSample(testRate), 1)
	first.CutGroup = 5
	first.Loop = true
	p.Trigger(first)
	p.RenderBlock(64)
	require.Equal(t, 1, p.Active())

	second := flatParams(rampSample(testRate), 2)
	second.CutGroup = 5
	second.Loop = true
	p.Trigger(second)
	require.Equal(t, 2, p.Active(), "fast release is a decay, not a hard cut")

	// 5 ms at 44.1 kHz is ~221 frames; after 512 the first voice is gone
	p.RenderBlock(512)
	require.Equal(t, 1, p.Active())
}

func TestStealNearestCompletion(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	// Fill the pool: slot 0 far along, the rest fresh.
	p.Trigger(flatParams(rampSample(1000), 0))
	p.RenderBlock(512)
	for i := 1; i < 8; i++ {
		p.Trigger(flatParams(rampSample(1000), i))
	}
	require.Equal(t, 8, p.Active())

	p.Trigger(flatParams(rampSample(1000), 99))
	require.Equal(t, uint64(1), p.Steals())
	require.Equal(t, 99, p.voices[0].source, "the most-played voice is stolen")
}

func TestStealNeverPrefersLoops(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	looper := flatParams(rampSample(100), 0)
	looper.Loop = true
	p.Trigger(looper)
	for i := 1; i < 8; i++ {
		p.Trigger(flatParams(rampSample(100000), i))
	}
	p.RenderBlock(64) // one-shots gain progress, the loop reports none

	p.Trigger(flatParams(rampSample(1000), 99))
	require.Equal(t, 0, p.voices[0].source, "looping voice survives the steal")
	require.True(t, p.voices[0].loop)
}

func TestStealTieBreaksLowestSlot(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	for i := 0; i < 8; i++ {
		p.Trigger(flatParams(rampSample(1000), i))
	}
	// all voices have identical progress
	p.RenderBlock(64)

	p.Trigger(flatParams(rampSample(1000), 99))
	require.Equal(t, 99, p.voices[0].source)
}

func TestKillAll(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	for i := 0; i < 4; i++ {
		p.Trigger(flatParams(rampSample(1000), i))
	}
	require.Equal(t, 4, p.Active())
	p.KillAll()
	require.Equal(t, 0, p.Active())
	out := p.RenderBlock(16)
	for _, bufs := range out {
		for _, v := range bufs[0] {
			require.Equal(t, float32(0), v)
		}
	}
}

func TestPerSourceAccumulation(t *testing.T) {
	p := newTestPool(16)
	defer p.Close()

	p.Trigger(flatParams(rampSample(8), 1))
	p.Trigger(flatParams(rampSample(8), 2))
	// two voices on the same source must sum
	p.Trigger(flatParams(rampSample(8), 2))
	out := p.RenderBlock(4)

	require.Len(t, out, 2)
	const center = 0.7071
	require.InDelta(t, 1*center, float64(out[1][0][0]), 1e-2)
	require.InDelta(t, 2*center, float64(out[2][0][0]), 1e-2, "same-source voices accumulate")
}

func TestTriggerCounters(t *testing.T) {
	p := newTestPool(8)
	defer p.Close()

	for i := 0; i < 10; i++ {
		p.Trigger(flatParams(rampSample(1000), i))
	}
	require.Equal(t, uint64(10), p.Triggers())
	require.Equal(t, uint64(2), p.Steals())
	require.Equal(t, 8, p.Active())
}

func TestParallelRenderIsDeterministic(t *testing.T) {
	render := func() [2][]float32 {
		p := newTestPool(64)
		defer p.Close()
		for i := 0; i < 64; i++ {
			pr := flatParams(rampSample(500), i%4)
			pr.Pan = float64(i%3-1) * 0.5
			p.Trigger(pr)
		}
		out := p.RenderBlock(256)
		l := append([]float32(nil), out[1][0]...)
		r := append([]float32(nil), out[1][1]...)
		return [2][]float32{l, r}
	}

	a, b := render(), render()
	require.Equal(t, a, b, "worker scheduling must not affect the mix")
}
