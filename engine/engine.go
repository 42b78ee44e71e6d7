// Package engine ties the pieces together: it owns the transport (cycle
// clock), the voice pool and the current graph snapshot, and renders audio
// block by block. Graph swaps are atomic and happen strictly between
// blocks; voices live in the engine, outside the snapshot, so playing
// samples survive a live reload.
package engine

import (
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/tideway/tideway/graph"
	"github.com/tideway/tideway/sample"
	"github.com/tideway/tideway/voice"
)

// Config sizes the engine. Zero fields take the defaults.
type Config struct {
	SampleRate float64
	BlockSize  int
	Voices     int
	Workers    int
	CPS        float64
}

func (c *Config) fill() {
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.BlockSize <= 0 {
		c.BlockSize = 512
	}
	if c.Voices <= 0 {
		c.Voices = voice.DefaultSize
	}
	if c.CPS <= 0 {
		c.CPS = 0.5625 // Tidal's traditional default tempo
	}
}

// snapshot is the swappable part of the engine: a built graph and its
// renderer. Everything inside is owned by the render goroutine once the
// snapshot is installed.
type snapshot struct {
	graph    *graph.Graph
	renderer *graph.BlockRenderer
}

// Engine renders fixed-size blocks. RenderBlock must be called from a
// single goroutine (the audio callback); every other method is safe to call
// concurrently from control threads.
type Engine struct {
	cfg  Config
	bank *sample.Bank
	pool *voice.Pool

	snap    atomic.Pointer[snapshot]
	counter atomic.Uint64
	cpsBits atomic.Uint64
	hushed  atomic.Bool

	overruns atomic.Uint64
	dropped  atomic.Uint64

	outL, outR []float32
	voiceBufs  map[graph.NodeID][2][]float32
	badNames   map[string]bool
}

// New creates an engine with an empty graph; it renders silence until
// SetGraph installs one.
func New(cfg Config, bank *sample.Bank) *Engine {
	cfg.fill()
	e := &Engine{
		cfg:       cfg,
		bank:      bank,
		pool:      voice.NewPool(cfg.Voices, cfg.SampleRate, cfg.Workers),
		outL:      make([]float32, cfg.BlockSize),
		outR:      make([]float32, cfg.BlockSize),
		voiceBufs: make(map[graph.NodeID][2][]float32),
		badNames:  make(map[string]bool),
	}
	e.cpsBits.Store(math.Float64bits(cfg.CPS))
	return e
}

// Close stops the voice workers.
func (e *Engine) Close() { e.pool.Close() }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// SetGraph builds g and swaps it in between blocks. On build failure the
// running graph is left untouched and the error reports why. In-flight
// voices keep sounding across the swap; stateful nodes in the new graph
// start from cleared state, so delay and reverb tails reset audibly.
func (e *Engine) SetGraph(g *graph.Graph) error {
	if err := g.Build(); err != nil {
		return fmt.Errorf("engine: rejecting graph: %w", err)
	}
	r, err := graph.NewBlockRenderer(g, e.cfg.BlockSize)
	if err != nil {
		return fmt.Errorf("engine: rejecting graph: %w", err)
	}
	e.snap.Store(&snapshot{graph: g, renderer: r})
	return nil
}

// ClearGraph removes the current graph; the engine renders silence.
func (e *Engine) ClearGraph() { e.snap.Store(nil) }

// SetCPS changes the tempo in cycles per second. Cycle position is derived
// from the absolute sample counter, so tempo changes take effect at the
// next block without drifting the grid.
func (e *Engine) SetCPS(cps float64) {
	if cps <= 0 || math.IsNaN(cps) || math.IsInf(cps, 0) {
		return
	}
	e.cpsBits.Store(math.Float64bits(cps))
}

// CPS returns the current tempo.
func (e *Engine) CPS() float64 { return math.Float64frombits(e.cpsBits.Load()) }

// Hush silences the output without tearing anything down.
func (e *Engine) Hush() { e.hushed.Store(true) }

// Unhush resumes output.
func (e *Engine) Unhush() { e.hushed.Store(false) }

// Hushed reports whether output is muted.
func (e *Engine) Hushed() bool { return e.hushed.Load() }

// Panic kills every voice and hushes. The graph stays installed.
func (e *Engine) Panic() {
	e.pool.KillAll()
	e.Hush()
}

// RenderBlock produces the next block of stereo audio. The returned slices
// are reused on the next call. The block is always delivered in full; if
// rendering took longer than the block's real-time budget the overrun is
// counted, never truncated.
func (e *Engine) RenderBlock() (left, right []float32) {
	begin := time.Now()
	n := e.cfg.BlockSize
	start := e.counter.Load()
	cps := e.CPS()

	for i := 0; i < n; i++ {
		e.outL[i] = 0
		e.outR[i] = 0
	}

	snap := e.snap.Load()
	if snap != nil && !e.hushed.Load() {
		for _, tr := range snap.renderer.CollectTriggers(start, cps) {
			e.fire(tr)
		}

		vout := e.pool.RenderBlock(n)
		for id := range e.voiceBufs {
			delete(e.voiceBufs, id)
		}
		for src, bufs := range vout {
			e.voiceBufs[graph.NodeID(src)] = bufs
		}

		l, r := snap.renderer.Process(start, cps, e.voiceBufs)
		for i := 0; i < n; i++ {
			e.outL[i] = float32(l[i])
			e.outR[i] = float32(r[i])
		}
	}

	e.counter.Add(uint64(n))

	budget := time.Duration(float64(n) / e.cfg.SampleRate * float64(time.Second))
	if time.Since(begin) > budget {
		e.overruns.Add(1)
	}
	return e.outL, e.outR
}

// fire resolves a trigger against the sample bank and starts a voice.
// Unknown sample names are counted and logged once, not fatal: a live
// pattern may reference a sample that is not loaded yet.
func (e *Engine) fire(tr graph.Trigger) {
	smp, err := e.bank.Resolve(tr.Name, tr.Index)
	if err != nil {
		e.dropped.Add(1)
		if !e.badNames[tr.Name] {
			e.badNames[tr.Name] = true
			log.Printf("engine: %v", err)
		}
		return
	}
	e.pool.Trigger(voice.Params{
		Sample:   smp,
		Source:   int(tr.Node),
		Frame:    tr.Frame,
		Gain:     tr.Gain,
		Pan:      tr.Pan,
		Speed:    tr.Speed,
		Offset:   tr.Offset,
		Note:     tr.Note,
		Attack:   tr.Attack,
		Release:  tr.Release,
		Loop:     tr.Loop,
		CutGroup: tr.CutGroup,
	})
}

// Stats is a point-in-time diagnostics snapshot.
type Stats struct {
	SampleCounter   uint64
	CPS             float64
	ActiveVoices    int
	Triggers        uint64
	Steals          uint64
	Overruns        uint64
	DroppedTriggers uint64
}

func (e *Engine) Stats() Stats {
	return Stats{
		SampleCounter:   e.counter.Load(),
		CPS:             e.CPS(),
		ActiveVoices:    e.pool.Active(),
		Triggers:        e.pool.Triggers(),
		Steals:          e.pool.Steals(),
		Overruns:        e.overruns.Load(),
		DroppedTriggers: e.dropped.Load(),
	}
}

// Probe returns the last rendered value of a node in the current graph, for
// debugging patches live.
func (e *Engine) Probe(id graph.NodeID) (float64, bool) {
	snap := e.snap.Load()
	if snap == nil || int(id) < 0 || int(id) >= snap.graph.NumNodes() {
		return 0, false
	}
	return snap.renderer.LastValue(id), true
}
