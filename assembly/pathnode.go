package assembly

import "github.com/biogo/store/llrb"

// pathNodeSource is the one deliberate interface boundary in the pipeline
// (see doc.go): it lets ContigAssembler pull from either a PathNodeStage
// directly or a SimplifyStage sitting on top of CollapseStage, without
// knowing which. NewPipeline always wires in CollapseStage and
// SimplifyStage; no setting turns them off.
type pathNodeSource interface {
	Next() (PathNode, bool, error)
}

// PathNode is a maximal non-branching chain of KmerNodes (§3, §4.3): an
// ordered run of kmers sharing one reference flag, each one base ahead of the
// last. Predecessor/successor edges are not embedded here; they live in the
// shared Adjacency map and keep being filled in by later layers after a
// PathNode has already been returned from Next (§4.3's "edges resolved
// lazily as nodes materialise").
type PathNode struct {
	ID            NodeID
	Kmers         []Kmer
	Weights       []float64
	StartInterval Interval
	ReferenceFlag bool
}

// Length is the number of kmers chained into this node.
func (p PathNode) Length() int { return len(p.Kmers) }

func (p PathNode) totalWeight() float64 {
	var sum float64
	for _, w := range p.Weights {
		sum += w
	}
	return sum
}

// pathChain is a PathNode still being grown (or a one-layer "stub" kept
// around purely so the next layer can still record an edge into it after it
// has stopped growing, e.g. on reaching maxPathLength or losing a branch).
type pathChain struct {
	PathNode
	lastInterval Interval
	growable     bool
}

func (c *pathChain) lastKmer() Kmer { return c.Kmers[len(c.Kmers)-1] }

// readyKey orders finalized PathNodes for emission by (start, first kmer),
// the same convention AggregateStage uses for KmerNodes.
type readyKey struct {
	start RefPos
	kmer  Kmer
	id    NodeID
	node  PathNode
}

func (k readyKey) Compare(c llrb.Comparable) int {
	o := c.(readyKey)
	if k.start != o.start {
		return int(k.start - o.start)
	}
	if k.kmer != o.kmer {
		if k.kmer < o.kmer {
			return -1
		}
		return 1
	}
	return int(k.id) - int(o.id)
}

// PathNodeStage greedily chains finalized KmerNodes into PathNodes (§4.3).
type PathNodeStage struct {
	upstream *AggregateStage
	cfg      Config
	tracker  *EvidenceTracker
	arena    *idArena
	adj      *Adjacency

	open         []*pathChain
	ready        llrb.Tree
	upstreamDone bool
	peeked       *KmerNode
	havePeek     bool

	pulled, produced int
}

// NewPathNodeStage builds a PathNodeStage pulling from upstream. adj is
// shared with downstream stages (CollapseStage, ContigAssembler) so edges
// registered here remain queryable after this stage's PathNodes are merged
// or consumed.
func NewPathNodeStage(upstream *AggregateStage, tracker *EvidenceTracker, arena *idArena, adj *Adjacency, cfg Config) *PathNodeStage {
	return &PathNodeStage{upstream: upstream, tracker: tracker, arena: arena, adj: adj, cfg: cfg}
}

func (p *PathNodeStage) peekUpstream() (KmerNode, bool, error) {
	if !p.havePeek {
		kn, ok, err := p.upstream.Next()
		p.peeked, p.havePeek = &kn, true
		if err != nil {
			return KmerNode{}, false, err
		}
		if !ok {
			p.upstreamDone = true
		}
	}
	return *p.peeked, !p.upstreamDone, nil
}

func (p *PathNodeStage) consumePeek() { p.havePeek = false }

// pullLayer gathers every buffered upstream KmerNode sharing the smallest
// Interval.Start seen so far into one layer, so branch/merge decisions can be
// made with full knowledge of every candidate at that position.
func (p *PathNodeStage) pullLayer() ([]KmerNode, error) {
	first, ok, err := p.peekUpstream()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	p.consumePeek()
	p.pulled++
	layer := []KmerNode{first}
	for {
		next, ok, err := p.peekUpstream()
		if err != nil {
			return nil, err
		}
		if !ok || next.Interval.Start != first.Interval.Start {
			return layer, nil
		}
		p.consumePeek()
		p.pulled++
		layer = append(layer, next)
	}
}

// Next returns the next finalized PathNode in (start, first kmer) order, or
// ok=false at end of stream.
func (p *PathNodeStage) Next() (PathNode, bool, error) {
	for {
		if min := p.ready.Min(); min != nil {
			rk := min.(readyKey)
			p.ready.DeleteMin()
			p.produced++
			return rk.node, true, nil
		}
		if p.upstreamDone && len(p.open) == 0 {
			return PathNode{}, false, nil
		}

		layer, err := p.pullLayer()
		if err != nil {
			return PathNode{}, false, err
		}
		if len(layer) == 0 {
			// Nothing left upstream: every remaining open chain is a leaf.
			for _, c := range p.open {
				p.finalize(c)
			}
			p.open = nil
			continue
		}
		p.processLayer(layer)
	}
}

// processLayer resolves one position-layer's worth of extension candidates
// against the currently open chains, per the greedy rule and tie-breaks of
// §4.3.
func (p *PathNodeStage) processLayer(layer []KmerNode) {
	requiredStart := layer[0].Interval.Start

	var matchCandidates []*pathChain
	var stillOpen []*pathChain
	for _, c := range p.open {
		needed := c.lastInterval.Start + 1
		switch {
		case needed == requiredStart:
			matchCandidates = append(matchCandidates, c)
		case needed < requiredStart:
			// A layer existed at 'needed' and had nothing compatible, or no
			// layer ever will at that exact position: either way this chain
			// can never be extended again.
			if c.growable {
				p.finalize(c)
			}
		default:
			stillOpen = append(stillOpen, c)
		}
	}

	// Index this layer by kmer so each chain can look up its (up to 4)
	// possible successors directly, the way fusion's central kmer index
	// avoids a full rescan per query (kmerindex.go).
	layerIdx := newKmerNodeIndex()
	posByID := make(map[NodeID]int, len(layer))
	for ni, node := range layer {
		layerIdx.add(node.Kmer, node.ID)
		posByID[node.ID] = ni
	}

	nodeCandidates := make([][]*pathChain, len(layer))
	chainNodes := map[NodeID][]int{}
	for ci, c := range matchCandidates {
		for _, succKm := range successors(c.lastKmer(), p.cfg.KmerLength) {
			for _, id := range layerIdx.get(succKm) {
				ni := posByID[id]
				node := layer[ni]
				// Reference flag is not checked here: a flag change between a
				// chain and its successor still gets an edge below, it just
				// can't be folded into the same chain (see the extend step).
				if c.lastInterval.Shift(1) != node.Interval {
					continue
				}
				nodeCandidates[ni] = append(nodeCandidates[ni], matchCandidates[ci])
				chainNodes[c.ID] = append(chainNodes[c.ID], ni)
			}
		}
	}

	// Pass 1: each node picks its preferred predecessor chain.
	nodeWinner := make([]*pathChain, len(layer))
	for ni, cands := range nodeCandidates {
		if len(cands) == 0 {
			continue
		}
		best := cands[0]
		for _, c := range cands[1:] {
			if preferChainAsPredecessor(c, best) {
				best = c
			}
		}
		nodeWinner[ni] = best
	}

	// Pass 2: each chain picks, among the nodes that chose it, its preferred
	// successor (§4.3's literal tie-break: larger weight, then smaller kmer).
	claimed := make([]bool, len(layer))
	extended := map[NodeID]bool{}
	for _, c := range matchCandidates {
		favIdx := -1
		for _, ni := range chainNodes[c.ID] {
			if nodeWinner[ni] != c {
				continue
			}
			if favIdx == -1 || preferNodeAsSuccessor(layer[ni], layer[favIdx]) {
				favIdx = ni
			}
		}
		if favIdx < 0 {
			p.finalize(c) // Wanted a successor this round but won none: a leaf or a lost branch.
			continue
		}
		claimed[favIdx] = true
		extended[c.ID] = true
		node := layer[favIdx]
		if c.growable && node.ReferenceFlag == c.ReferenceFlag {
			p.extend(c, node)
			if len(c.Kmers) >= p.cfg.MaxPathLength {
				p.finalize(c)
				c.growable = false // Kept one more round purely so a real successor can still link to it.
			}
			stillOpen = append(stillOpen, c)
		} else {
			// Either c already stopped growing, or node's reference flag
			// differs from c's: a reference/non-reference boundary is a
			// chain split, not a fold, so c finalizes here and node starts a
			// fresh chain linked as its successor.
			if c.growable {
				p.finalize(c)
			}
			nc := p.startChain(node)
			p.adj.Link(c.ID, nc.ID)
			stillOpen = append(stillOpen, nc)
		}
	}

	for ni, node := range layer {
		if claimed[ni] {
			continue
		}
		nc := p.startChain(node)
		for _, c := range nodeCandidates[ni] {
			if !extended[c.ID] {
				p.adj.Link(c.ID, nc.ID)
			}
		}
		stillOpen = append(stillOpen, nc)
	}

	p.open = stillOpen
}

func (p *PathNodeStage) startChain(node KmerNode) *pathChain {
	id := p.arena.alloc()
	p.tracker.RewriteNode(node.ID, id)
	return &pathChain{
		PathNode: PathNode{
			ID:            id,
			Kmers:         []Kmer{node.Kmer},
			Weights:       []float64{node.Weight},
			StartInterval: node.Interval,
			ReferenceFlag: node.ReferenceFlag,
		},
		lastInterval: node.Interval,
		growable:     true,
	}
}

func (p *PathNodeStage) extend(c *pathChain, node KmerNode) {
	c.Kmers = append(c.Kmers, node.Kmer)
	c.Weights = append(c.Weights, node.Weight)
	c.lastInterval = node.Interval
	p.tracker.RewriteNode(node.ID, c.ID)
}

func (p *PathNodeStage) finalize(c *pathChain) {
	p.ready.Insert(readyKey{c.StartInterval.Start, c.Kmers[0], c.ID, c.PathNode})
}

// traceCounts reports KmerNodes pulled, PathNodes produced, and the number
// of chains still open for extension.
func (p *PathNodeStage) traceCounts() (in, out, open int) {
	return p.pulled, p.produced, len(p.open)
}

// preferChainAsPredecessor breaks ties when more than one open chain could
// extend into the same node: prefer the chain with more accumulated weight,
// then the smaller starting kmer. Not spec-mandated directly (§4.3 only
// states the successor-side tie-break, preferNodeAsSuccessor); this is its
// symmetric counterpart, kept deterministic the same way.
func preferChainAsPredecessor(a, b *pathChain) bool {
	aw, bw := a.totalWeight(), b.totalWeight()
	if aw != bw {
		return aw > bw
	}
	return a.Kmers[0] < b.Kmers[0]
}

// preferNodeAsSuccessor is §4.3's tie-break: larger weight, then smaller
// kmer integer.
func preferNodeAsSuccessor(a, b KmerNode) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	return a.Kmer < b.Kmer
}
