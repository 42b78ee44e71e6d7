package graph

// BlockRenderer is the production evaluator: nodes render whole blocks in
// topological order, so each node's buffer is complete before anything
// downstream reads it. Feedback taps read the previous block.
type BlockRenderer struct {
	*renderState
}

// NewBlockRenderer attaches a block evaluator to a built graph. The
// renderer owns the graph's node state; do not attach two renderers to the
// same graph.
func NewBlockRenderer(g *Graph, blockSize int) (*BlockRenderer, error) {
	rs, err := newRenderState(g, blockSize)
	if err != nil {
		return nil, err
	}
	return &BlockRenderer{renderState: rs}, nil
}

// BlockSize returns the fixed render quantum.
func (r *BlockRenderer) BlockSize() int { return r.size }

// CollectTriggers resolves this block's sample onsets. Call it before
// Process with the same start and cps, render the returned triggers through
// the voice pool, and pass the voice buffers to Process.
func (r *BlockRenderer) CollectTriggers(start uint64, cps float64) []Trigger {
	return r.collectTriggers(start, cps)
}

// Process renders one block and returns the output channels. voice maps
// sample-node IDs to their rendered voice buffers for this block. The
// returned slices are valid until the next Process call.
func (r *BlockRenderer) Process(start uint64, cps float64, voice map[NodeID][2][]float32) (left, right []float64) {
	r.patternPhase(start, cps)
	r.voice = voice

	for _, id := range r.g.order {
		n := r.g.node(id)
		if cap(r.ins) < len(n.in) {
			r.ins = make([]float64, 0, len(n.in))
		}
		for ch := 0; ch < 2; ch++ {
			st := n.st[ch]
			buf := r.cur[id][ch]
			for i := 0; i < r.size; i++ {
				ins := r.ins[:0]
				for _, sig := range n.in {
					ins = append(ins, r.inputVal(sig, ch, i))
				}
				ctx := r.frameCtxFor(int(id), n, ch, i)
				buf[i] = evalFrame(n, st, ins, &ctx)
			}
		}
	}

	left = r.cur[r.g.out][0]
	right = r.cur[r.g.out][1]
	r.flip()
	return left, right
}
