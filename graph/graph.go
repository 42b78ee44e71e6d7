// Package graph implements the signal graph: an arena of typed DSP nodes
// wired by Signals, validated and ordered at build time, and rendered by a
// dual-mode evaluator (per-sample reference and block-wise production path).
//
// Nodes are addressed by stable integer NodeIDs. Each node owns its mutable
// DSP state exclusively; the evaluator is the only code that touches it, so
// rendering needs no locks. The graph is stereo throughout: every node
// renders two channels with independent state, and stereo divergence
// originates at sample-trigger nodes, whose voices carry equal-power pan.
package graph

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"

	"github.com/tideway/tideway/pattern"
)

// NodeID identifies a node in the graph arena.
type NodeID int

const NoNode NodeID = -1

// Construction-time failure classes. Build wraps them with node context.
var (
	ErrCycle      = errors.New("graph: signal cycle (feedback requires a tap)")
	ErrUnknownBus = errors.New("graph: unknown bus")
	ErrBadInputs  = errors.New("graph: wrong input count")
	ErrNoOutput   = errors.New("graph: no output set")
	ErrBuilt      = errors.New("graph: already built")
)

type sigKind int

const (
	sigConst sigKind = iota
	sigNode
	sigBus
)

// Signal is one input to a node: a constant, another node's output, or a
// named bus. Pattern-driven inputs are Pattern nodes referenced by NodeID
// (see Graph.Pattern).
type Signal struct {
	kind  sigKind
	value float64
	node  NodeID
	bus   string
}

// Const is a fixed-value signal.
func Const(v float64) Signal { return Signal{kind: sigConst, value: v} }

// From routes another node's output.
func From(id NodeID) Signal { return Signal{kind: sigNode, node: id} }

// FromBus routes a named bus, resolved once at build time.
func FromBus(name string) Signal { return Signal{kind: sigBus, bus: name} }

// Kind is the closed set of node types.
type Kind int

const (
	KindConst Kind = iota
	KindSine
	KindSaw
	KindSquare
	KindTriangle
	KindPulse
	KindPhasor
	KindFM
	KindWhiteNoise
	KindPinkNoise
	KindBrownNoise
	KindImpulse
	KindPattern
	KindSample
	KindLowPass
	KindHighPass
	KindBandPass
	KindNotch
	KindMoogLadder
	KindComb
	KindAllpass
	KindLag
	KindDCBlock
	KindEnvADSR
	KindEnvAR
	KindEnvFollow
	KindDelay
	KindReverb
	KindChorus
	KindFlanger
	KindCompressor
	KindDistortion
	KindBitCrush
	KindLimiter
	KindRingMod
	KindFold
	KindAdd
	KindMul
	KindSub
	KindDiv
	KindMin
	KindMax
	KindMix
	KindWhen
	KindRange
	KindTap
	KindOut
)

// kindSpec drives build-time validation and evaluator dispatch.
type kindSpec struct {
	name   string
	inputs int // expected input count; -1 means variadic
}

var kindSpecs = map[Kind]kindSpec{
	KindConst:      {"const", 0},
	KindSine:       {"sine", 1},
	KindSaw:        {"saw", 1},
	KindSquare:     {"square", 1},
	KindTriangle:   {"triangle", 1},
	KindPulse:      {"pulse", 2},
	KindPhasor:     {"phasor", 1},
	KindFM:         {"fm", 3},
	KindWhiteNoise: {"whitenoise", 0},
	KindPinkNoise:  {"pinknoise", 0},
	KindBrownNoise: {"brownnoise", 0},
	KindImpulse:    {"impulse", 1},
	KindPattern:    {"pattern", 0},
	KindSample:     {"sample", 0},
	KindLowPass:    {"lowpass", 3},
	KindHighPass:   {"highpass", 3},
	KindBandPass:   {"bandpass", 3},
	KindNotch:      {"notch", 3},
	KindMoogLadder: {"mooglpf", 3},
	KindComb:       {"comb", 3},
	KindAllpass:    {"allpass", 3},
	KindLag:        {"lag", 2},
	KindDCBlock:    {"dcblock", 1},
	KindEnvADSR:    {"adsr", 5},
	KindEnvAR:      {"ar", 3},
	KindEnvFollow:  {"envfollow", 3},
	KindDelay:      {"delay", 4},
	KindReverb:     {"reverb", 4},
	KindChorus:     {"chorus", 4},
	KindFlanger:    {"flanger", 5},
	KindCompressor: {"compressor", 5},
	KindDistortion: {"distortion", 2},
	KindBitCrush:   {"bitcrush", 3},
	KindLimiter:    {"limiter", 2},
	KindRingMod:    {"ringmod", 2},
	KindFold:       {"fold", 2},
	KindAdd:        {"add", 2},
	KindMul:        {"mul", 2},
	KindSub:        {"sub", 2},
	KindDiv:        {"div", 2},
	KindMin:        {"min", 2},
	KindMax:        {"max", 2},
	KindMix:        {"mix", 3},
	KindWhen:       {"when", 3},
	KindRange:      {"range", 3},
	KindTap:        {"tap", 0},
	KindOut:        {"out", -1},
}

// KindName returns the kind's DSL name.
func KindName(k Kind) string { return kindSpecs[k].name }

// SampleParams are the trigger-time parameters of a sample node. Each is a
// Signal so any of them can be modulated; they are resolved per trigger at
// the event's onset.
type SampleParams struct {
	Gain     Signal
	Pan      Signal // -1 hard left .. +1 hard right, equal power
	Speed    Signal // playback rate; negative plays in reverse
	Offset   Signal // start offset as a fraction of the sample [0,1)
	Attack   Signal // seconds; 0 selects the percussion envelope default
	Release  Signal // seconds
	N        Signal // variant index offset added to the pattern's name:index
	Note     Signal // semitones; scales speed by 2^(note/12)
	CutGroup Signal // nonzero voices in the same group fast-release each other
	Loop     Signal // nonzero loops the sample until stolen or cut
}

// DefaultSampleParams returns the neutral parameter set.
func DefaultSampleParams() SampleParams {
	return SampleParams{
		Gain:     Const(1),
		Pan:      Const(0),
		Speed:    Const(1),
		Offset:   Const(0),
		Attack:   Const(0),
		Release:  Const(0),
		N:        Const(0),
		Note:     Const(0),
		CutGroup: Const(0),
		Loop:     Const(0),
	}
}

// Node is one arena entry. The evaluator owns st exclusively during
// rendering.
type Node struct {
	Kind Kind
	in   []Signal

	value  float64                        // Const
	pat    pattern.Pattern[float64]       // Pattern
	events pattern.Pattern[pattern.Value] // Sample
	params SampleParams                   // Sample
	tapBus string                         // Tap
	maxDur float64                        // Delay/Comb/Allpass line length, seconds

	st [2]*nodeState
}

// Graph is the node arena plus bus table. Construction mutates it; Build
// freezes it. A built graph must not be modified; swap in a new one instead.
type Graph struct {
	sampleRate float64
	nodes      []*Node
	buses      map[string]NodeID
	out        NodeID
	order      []NodeID
	samples    []NodeID // Sample nodes, for the trigger phase
	built      bool
}

// New creates an empty graph at the given sample rate.
func New(sampleRate float64) *Graph {
	return &Graph{
		sampleRate: sampleRate,
		buses:      make(map[string]NodeID),
		out:        NoNode,
	}
}

// SampleRate returns the rate the graph renders at.
func (g *Graph) SampleRate() float64 { return g.sampleRate }

// NumNodes returns the arena size.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// AddNode appends a raw node and returns its ID. The typed constructors
// below are the usual way in.
func (g *Graph) AddNode(n *Node) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	if n.Kind == KindSample {
		g.samples = append(g.samples, id)
	}
	return id
}

// AddBus names a node's output so later nodes (and taps) can reference it.
func (g *Graph) AddBus(name string, id NodeID) {
	g.buses[name] = id
}

// ResolveBus returns the node a bus name is bound to.
func (g *Graph) ResolveBus(name string) (NodeID, error) {
	id, ok := g.buses[name]
	if !ok {
		return NoNode, fmt.Errorf("%w: %q", ErrUnknownBus, name)
	}
	return id, nil
}

// SetOutput routes the given signals into the graph output, summed.
func (g *Graph) SetOutput(sigs ...Signal) NodeID {
	id := g.AddNode(&Node{Kind: KindOut, in: sigs})
	g.out = id
	return id
}

// Build validates the graph and computes the render order: every input
// count is checked, bus references are bound, and the signal flow must be
// acyclic once Tap edges (which read the previous block) are excluded.
// Build failures leave the graph unusable but never panic mid-render; a
// running engine keeps its old graph when a new one fails to build.
func (g *Graph) Build() error {
	if g.built {
		return ErrBuilt
	}
	if g.out == NoNode {
		return ErrNoOutput
	}

	for id, n := range g.nodes {
		spec, ok := kindSpecs[n.Kind]
		if !ok {
			return fmt.Errorf("graph: node %d has unknown kind %d", id, n.Kind)
		}
		if spec.inputs >= 0 && len(n.in) != spec.inputs {
			return fmt.Errorf("%w: %s node %d has %d inputs, want %d",
				ErrBadInputs, spec.name, id, len(n.in), spec.inputs)
		}
		for i := range n.in {
			if err := g.resolveSignal(&n.in[i]); err != nil {
				return fmt.Errorf("%s node %d input %d: %w", spec.name, id, i, err)
			}
		}
		if n.Kind == KindTap {
			if _, err := g.ResolveBus(n.tapBus); err != nil {
				return fmt.Errorf("tap node %d: %w", id, err)
			}
		}
	}

	order, err := g.topoOrder()
	if err != nil {
		return err
	}
	g.order = order

	for id, n := range g.nodes {
		for ch := 0; ch < 2; ch++ {
			n.st[ch] = newNodeState(NodeID(id), n, g.sampleRate)
		}
	}
	g.built = true
	return nil
}

func (g *Graph) resolveSignal(s *Signal) error {
	switch s.kind {
	case sigNode:
		if s.node < 0 || int(s.node) >= len(g.nodes) {
			return fmt.Errorf("graph: signal references node %d out of range", s.node)
		}
	case sigBus:
		id, err := g.ResolveBus(s.bus)
		if err != nil {
			return err
		}
		// Bind now so rendering never consults the bus table.
		s.kind = sigNode
		s.node = id
	}
	return nil
}

// topoOrder builds a directed lvlath graph over the arena and topologically
// sorts it. Tap nodes contribute no edge from their source: they read the
// previous block, so the declared one-block latency breaks the cycle.
func (g *Graph) topoOrder() ([]NodeID, error) {
	lg, err := core.NewGraph(core.WithDirected(true))
	if err != nil {
		return nil, fmt.Errorf("graph: ordering: %w", err)
	}
	for id := range g.nodes {
		if err := lg.AddVertex(vertexName(NodeID(id))); err != nil {
			return nil, fmt.Errorf("graph: ordering: %w", err)
		}
	}
	for id, n := range g.nodes {
		for _, in := range n.in {
			if in.kind != sigNode {
				continue
			}
			if _, err := lg.AddEdge(vertexName(in.node), vertexName(NodeID(id)), 0); err != nil {
				return nil, fmt.Errorf("graph: ordering: %w", err)
			}
		}
	}

	sorted, err := dfs.TopologicalSort(lg)
	if err != nil {
		if errors.Is(err, dfs.ErrCycleDetected) {
			return nil, ErrCycle
		}
		return nil, fmt.Errorf("graph: ordering: %w", err)
	}

	order := make([]NodeID, 0, len(sorted))
	for _, v := range sorted {
		id, err := strconv.Atoi(v[1:])
		if err != nil {
			return nil, fmt.Errorf("graph: ordering: bad vertex %q", v)
		}
		order = append(order, NodeID(id))
	}
	return order, nil
}

func vertexName(id NodeID) string { return "n" + strconv.Itoa(int(id)) }

// Order returns the topological render order computed by Build.
func (g *Graph) Order() []NodeID {
	out := make([]NodeID, len(g.order))
	copy(out, g.order)
	return out
}

// SampleNodes returns the IDs of all sample-trigger nodes.
func (g *Graph) SampleNodes() []NodeID {
	out := make([]NodeID, len(g.samples))
	copy(out, g.samples)
	return out
}

// node panics on a bad ID; IDs only come from AddNode so this is internal
// corruption, not user error.
func (g *Graph) node(id NodeID) *Node { return g.nodes[id] }
