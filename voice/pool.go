package voice

import (
	"sync"
	"sync/atomic"
)

const (
	// DefaultSize is the voice count when the caller does not choose one.
	DefaultSize = 64

	// batchSize is the vector width: voices render in groups of eight, one
	// batch per worker dispatch, matching the wide-register lane count the
	// layout is tuned for.
	batchSize = 8
)

// Pool is a fixed-size voice allocator and block renderer. Trigger and
// RenderBlock must be called from the same goroutine (the render thread);
// the diagnostics counters may be read from anywhere.
type Pool struct {
	rate    float64
	voices  []Voice
	batches []*batch

	jobs chan renderJob
	wg   sync.WaitGroup

	out map[int][2][]float32 // per-source accumulation, reused per block

	triggers atomic.Uint64
	steals   atomic.Uint64
	active   atomic.Int64
}

// batch owns a disjoint slice of the pool's voices plus its private
// accumulation buffers, so workers never share mutable state.
type batch struct {
	voices []Voice
	out    map[int][2][]float32
	size   int
}

type renderJob struct {
	b      *batch
	frames int
}

// NewPool creates a pool with the given voice count and starts workers
// persistent worker goroutines. size is rounded up to a whole number of
// batches; workers <= 0 means one worker per batch.
func NewPool(size int, rate float64, workers int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	nBatches := (size + batchSize - 1) / batchSize
	size = nBatches * batchSize
	if workers <= 0 || workers > nBatches {
		workers = nBatches
	}

	p := &Pool{
		rate:   rate,
		voices: make([]Voice, size),
		jobs:   make(chan renderJob, nBatches),
		out:    make(map[int][2][]float32),
	}
	for i := 0; i < nBatches; i++ {
		p.batches = append(p.batches, &batch{
			voices: p.voices[i*batchSize : (i+1)*batchSize],
			out:    make(map[int][2][]float32),
		})
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for job := range p.jobs {
		job.b.render(job.frames)
		p.wg.Done()
	}
}

// Close stops the workers. The pool is unusable afterwards.
func (p *Pool) Close() { close(p.jobs) }

// Size returns the voice capacity.
func (p *Pool) Size() int { return len(p.voices) }

// Trigger starts a voice for the given parameters, stealing when the pool
// is saturated. The stealing policy is deterministic: the voice nearest
// completion (greatest fraction of its sample already played) is taken,
// looping voices are never preferred over one-shots, and ties break to the
// lowest slot index. Pool exhaustion is an expected condition, counted, not
// an error.
func (p *Pool) Trigger(pr Params) {
	if pr.Sample == nil || pr.Sample.Len() == 0 {
		return
	}
	p.triggers.Add(1)

	if pr.CutGroup != 0 {
		for i := range p.voices {
			v := &p.voices[i]
			if v.state == stateActive && v.cutGroup == pr.CutGroup {
				v.fastRelease(p.rate)
			}
		}
	}

	slot := -1
	for i := range p.voices {
		if p.voices[i].state == stateFree {
			slot = i
			break
		}
	}
	if slot < 0 {
		slot = p.stealSlot()
		p.steals.Add(1)
	}
	p.voices[slot].start(pr, p.rate)
	p.refreshActive()
}

func (p *Pool) stealSlot() int {
	best := 0
	bestProgress := -1.0
	for i := range p.voices {
		if pr := p.voices[i].progress(); pr > bestProgress {
			best = i
			bestProgress = pr
		}
	}
	return best
}

// RenderBlock renders all active voices for one block and returns the
// stereo accumulation per source node. The returned buffers are reused on
// the next call.
func (p *Pool) RenderBlock(frames int) map[int][2][]float32 {
	dispatched := 0
	for _, b := range p.batches {
		if !b.hasActive() {
			continue
		}
		b.prepare(frames)
		p.wg.Add(1)
		dispatched++
		p.jobs <- renderJob{b: b, frames: frames}
	}
	if dispatched > 0 {
		p.wg.Wait()
	}

	// merge phase: per-batch buffers sum into the shared output
	for src, bufs := range p.out {
		if len(bufs[0]) != frames {
			delete(p.out, src)
			continue
		}
		for ch := 0; ch < 2; ch++ {
			for i := range bufs[ch] {
				bufs[ch][i] = 0
			}
		}
	}
	for _, b := range p.batches {
		if b.size != frames {
			continue
		}
		for src, bufs := range b.out {
			dst, ok := p.out[src]
			if !ok {
				dst = [2][]float32{make([]float32, frames), make([]float32, frames)}
				p.out[src] = dst
			}
			for ch := 0; ch < 2; ch++ {
				for i := 0; i < frames; i++ {
					dst[ch][i] += bufs[ch][i]
				}
			}
		}
		b.size = 0
	}

	p.refreshActive()
	return p.out
}

func (b *batch) hasActive() bool {
	for i := range b.voices {
		if b.voices[i].state == stateActive {
			return true
		}
	}
	return false
}

func (b *batch) prepare(frames int) {
	b.size = frames
	for src, bufs := range b.out {
		if len(bufs[0]) != frames {
			delete(b.out, src)
			continue
		}
		for ch := 0; ch < 2; ch++ {
			for i := range bufs[ch] {
				bufs[ch][i] = 0
			}
		}
	}
}

// render runs on a worker goroutine. It touches only this batch's voices
// and buffers.
func (b *batch) render(frames int) {
	for i := range b.voices {
		v := &b.voices[i]
		if v.state != stateActive {
			continue
		}
		bufs, ok := b.out[v.source]
		if !ok {
			bufs = [2][]float32{make([]float32, frames), make([]float32, frames)}
			b.out[v.source] = bufs
		}
		if !v.renderInto(bufs[0], bufs[1]) {
			v.state = stateFree
			v.smp = nil
		}
	}
}

// KillAll frees every voice immediately.
func (p *Pool) KillAll() {
	for i := range p.voices {
		p.voices[i].state = stateFree
		p.voices[i].smp = nil
	}
	p.refreshActive()
}

// ReleaseAll fast-releases every active voice, a softer panic.
func (p *Pool) ReleaseAll() {
	for i := range p.voices {
		p.voices[i].fastRelease(p.rate)
	}
}

func (p *Pool) refreshActive() {
	var n int64
	for i := range p.voices {
		if p.voices[i].state == stateActive {
			n++
		}
	}
	p.active.Store(n)
}

// Active returns the number of playing voices.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Triggers returns the total trigger count.
func (p *Pool) Triggers() uint64 { return p.triggers.Load() }

// Steals returns how many triggers had to steal a voice.
func (p *Pool) Steals() uint64 { return p.steals.Load() }
