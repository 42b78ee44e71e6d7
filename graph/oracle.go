package graph

// SampleRenderer is the reference evaluator: it walks the block frame by
// frame and evaluates each node on demand, memoizing per sample so every
// node advances exactly once per frame. It shares the kernels with the
// block renderer, so the two agree numerically; it exists as the
// correctness oracle for equivalence tests and is too slow for the audio
// path.
type SampleRenderer struct {
	*renderState
	memo [][2]float64
	done [][2]bool
}

// NewSampleRenderer attaches a sample-wise evaluator to a built graph. As
// with BlockRenderer, the renderer owns the graph's node state.
func NewSampleRenderer(g *Graph, blockSize int) (*SampleRenderer, error) {
	rs, err := newRenderState(g, blockSize)
	if err != nil {
		return nil, err
	}
	return &SampleRenderer{
		renderState: rs,
		memo:        make([][2]float64, g.NumNodes()),
		done:        make([][2]bool, g.NumNodes()),
	}, nil
}

// CollectTriggers mirrors BlockRenderer.CollectTriggers.
func (r *SampleRenderer) CollectTriggers(start uint64, cps float64) []Trigger {
	return r.collectTriggers(start, cps)
}

// Process renders one block sample-wise. Semantics match
// BlockRenderer.Process exactly, including tap latency.
func (r *SampleRenderer) Process(start uint64, cps float64, voice map[NodeID][2][]float32) (left, right []float64) {
	r.patternPhase(start, cps)
	r.voice = voice

	for i := 0; i < r.size; i++ {
		for id := range r.done {
			r.done[id][0] = false
			r.done[id][1] = false
		}
		// Force every node, not just those reachable from the output:
		// taps read arbitrary buses next block, and the block renderer
		// advances all nodes too.
		for id := range r.g.nodes {
			for ch := 0; ch < 2; ch++ {
				r.eval(NodeID(id), ch, i)
			}
		}
	}

	left = r.cur[r.g.out][0]
	right = r.cur[r.g.out][1]
	r.flip()
	return left, right
}

func (r *SampleRenderer) eval(id NodeID, ch, i int) float64 {
	if r.done[id][ch] {
		return r.memo[id][ch]
	}
	// Mark before recursing; Build guarantees acyclicity so this is only a
	// guard against double state advances.
	r.done[id][ch] = true

	n := r.g.node(id)
	ins := make([]float64, len(n.in))
	for k, sig := range n.in {
		if sig.kind == sigConst {
			ins[k] = sig.value
		} else {
			ins[k] = r.eval(sig.node, ch, i)
		}
	}
	ctx := r.frameCtxFor(int(id), n, ch, i)
	v := evalFrame(n, n.st[ch], ins, &ctx)
	r.memo[id][ch] = v
	r.cur[id][ch][i] = v
	return v
}
