package assembly

import (
	"sort"

	"github.com/grailbio/svassembly/util"
)

// CollapseStage folds sibling branches of the path-node graph back together
// when they reconverge within a short distance and differ by only a few
// bases (§4.4): sequencing errors and small somatic events both show up as a
// branch that rejoins the main path a few kmers later, and should not be
// reported as distinct contigs.
//
// Unlike the upstream stages, CollapseStage is not purely incremental:
// detecting reconvergence needs a view of the whole local graph, not just a
// position-ordered prefix. It therefore drains its upstream PathNodeStage
// into memory on the first call to Next and performs collapse once, which is
// safe because one CollapseStage instance is scoped to a single (reference
// index, direction) contig's graph (see driver.go) and is bounded in size by
// that contig's evidence.
type CollapseStage struct {
	upstream pathNodeSource
	tracker  *EvidenceTracker
	adj      *Adjacency
	cfg      Config

	drained bool
	nodes   map[NodeID]PathNode
	order   []NodeID // emission order, fixed once collapse has run
	pos     int

	pulled, produced int
}

// NewCollapseStage builds a CollapseStage pulling from upstream.
func NewCollapseStage(upstream pathNodeSource, tracker *EvidenceTracker, adj *Adjacency, cfg Config) *CollapseStage {
	return &CollapseStage{upstream: upstream, tracker: tracker, adj: adj, cfg: cfg}
}

// Next returns the next surviving PathNode in (start, first kmer) order, or
// ok=false once every node has been returned.
func (c *CollapseStage) Next() (PathNode, bool, error) {
	if !c.drained {
		if err := c.drain(); err != nil {
			return PathNode{}, false, err
		}
	}
	if c.pos >= len(c.order) {
		return PathNode{}, false, nil
	}
	id := c.order[c.pos]
	c.pos++
	c.produced++
	return c.nodes[id], true, nil
}

// traceCounts reports PathNodes pulled from upstream (the drained window
// size before collapse), PathNodes produced so far, and how many survivors
// are still waiting to be emitted.
func (c *CollapseStage) traceCounts() (in, out, open int) {
	return c.pulled, c.produced, len(c.order) - c.pos
}

func (c *CollapseStage) drain() error {
	c.nodes = map[NodeID]PathNode{}
	for {
		pn, ok, err := c.upstream.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		c.nodes[pn.ID] = pn
		c.pulled++
	}
	c.collapse()

	c.order = make([]NodeID, 0, len(c.nodes))
	for id := range c.nodes {
		c.order = append(c.order, id)
	}
	sort.Slice(c.order, func(i, j int) bool {
		a, b := c.nodes[c.order[i]], c.nodes[c.order[j]]
		if a.StartInterval.Start != b.StartInterval.Start {
			return a.StartInterval.Start < b.StartInterval.Start
		}
		return a.Kmers[0] < b.Kmers[0]
	})
	c.drained = true
	return nil
}

// maxBubbleHops bounds how many nodes per sibling branch collapseBranch
// looks at, counting the sibling itself: 2 in CollapseBubblesOnly mode (a
// "bubble" is exactly one divergent node per side plus the node both sides
// reconverge on), MaxPathCollapseLength otherwise.
func (c *CollapseStage) maxBubbleHops() int {
	if c.cfg.CollapseBubblesOnly {
		return 2
	}
	return c.cfg.MaxPathCollapseLength
}

func (c *CollapseStage) collapse() {
	maxHops := c.maxBubbleHops()
	// A handful of passes is enough for any cascade of collapses exposed by a
	// previous pass to itself become collapsible; bounded well below the
	// graph size so a pathological contig can't loop unboundedly.
	for pass := 0; pass < 4; pass++ {
		changed := false
		for _, branchID := range c.branchPointsSorted() {
			if c.collapseBranch(branchID, maxHops) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// branchPointsSorted returns every live node with more than one live
// successor, in a deterministic order, so collapse() is reproducible.
func (c *CollapseStage) branchPointsSorted() []NodeID {
	var out []NodeID
	for id := range c.nodes {
		if len(c.liveSuccessors(id)) > 1 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *CollapseStage) liveSuccessors(id NodeID) []NodeID {
	var out []NodeID
	for _, s := range c.adj.Successors(id) {
		if _, ok := c.nodes[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// chase follows id's chain of live, non-branching successors up to maxHops
// steps, stopping early at a leaf or a further branch point. It returns the
// visited node ids in order (not including id itself) and each one's hop
// index.
func (c *CollapseStage) chase(id NodeID, maxHops int) ([]NodeID, map[NodeID]int) {
	visited := map[NodeID]int{}
	var order []NodeID
	cur := id
	for hop := 1; hop <= maxHops; hop++ {
		succs := c.liveSuccessors(cur)
		if len(succs) != 1 {
			return order, visited
		}
		cur = succs[0]
		order = append(order, cur)
		visited[cur] = hop
		if len(c.liveSuccessors(cur)) != 1 {
			return order, visited
		}
	}
	return order, visited
}

// collapseBranch attempts to collapse every pair of branchID's sibling
// branches that reconverge within maxHops. It returns whether anything was
// collapsed.
func (c *CollapseStage) collapseBranch(branchID NodeID, maxHops int) bool {
	sibs := c.liveSuccessors(branchID)
	if len(sibs) < 2 {
		return false
	}
	sort.Slice(sibs, func(i, j int) bool { return sibs[i] < sibs[j] })

	chases := make([]chaseResult, len(sibs))
	for i, s := range sibs {
		order, at := c.chase(s, maxHops-1)
		chases[i] = chaseResult{s, append([]NodeID{s}, order...), at}
		chases[i].at[s] = 0
	}

	collapsedAny := false
	for i := 0; i < len(chases); i++ {
		for j := i + 1; j < len(chases); j++ {
			a, b := chases[i], chases[j]
			if _, ok := c.nodes[a.start]; !ok {
				continue
			}
			if _, ok := c.nodes[b.start]; !ok {
				continue
			}
			conv, aPre, bPre := firstConvergence(a, b)
			if conv == invalidNodeID {
				continue
			}
			if c.tryCollapsePair(aPre, bPre) {
				collapsedAny = true
			}
		}
	}
	return collapsedAny
}

const invalidNodeID NodeID = 0

// chaseResult is one sibling branch's chase() outcome: the node-id chain
// from (but not including) the branch point, in order, and a hop-index
// lookup for reconvergence detection.
type chaseResult struct {
	start NodeID
	order []NodeID
	at    map[NodeID]int
}

// firstConvergence finds the earliest node (by total hop count) visited by
// both chases, and the prefix of each chase strictly before it.
func firstConvergence(a, b chaseResult) (NodeID, []NodeID, []NodeID) {
	best := invalidNodeID
	bestHops := 1 << 30
	for id, ah := range a.at {
		if bh, ok := b.at[id]; ok {
			if ah+bh < bestHops {
				bestHops = ah + bh
				best = id
			}
		}
	}
	if best == invalidNodeID {
		return invalidNodeID, nil, nil
	}
	var aPre, bPre []NodeID
	for _, id := range a.order {
		if id == best {
			break
		}
		aPre = append(aPre, id)
	}
	for _, id := range b.order {
		if id == best {
			break
		}
		bPre = append(bPre, id)
	}
	return best, aPre, bPre
}

// tryCollapsePair merges the branch pickWinner rejects (aChain, bChain: the
// node-id sequences strictly between a shared branch point and their shared
// reconvergence point) into the other, if the bases they newly contribute
// differ by at most MaxBaseMismatchForCollapse (§4.4). It returns whether a
// merge happened.
func (c *CollapseStage) tryCollapsePair(aChain, bChain []NodeID) bool {
	if len(aChain) == 0 || len(bChain) == 0 {
		return false
	}
	aBases := c.chainBases(aChain)
	bBases := c.chainBases(bChain)

	var dist int
	if len(aBases) == len(bBases) {
		dist = util.Hamming(aBases, bBases)
	} else {
		dist = util.Levenshtein(aBases, bBases)
	}
	if dist > c.cfg.MaxBaseMismatchForCollapse {
		return false
	}

	winner, loser := c.pickWinner(aChain, bChain)
	winnerFirst := winner[0]
	for _, id := range loser {
		if _, ok := c.nodes[id]; !ok {
			continue
		}
		c.tracker.MergeNode(id, winnerFirst)
		c.adj.Rewire(id, winnerFirst)
		delete(c.nodes, id)
	}
	return true
}

// chainBases renders the bases newly contributed by a chain of PathNodes, in
// order: for each node, the base each of its kmers appended beyond its
// predecessor (nextBaseOf), which for the first kmer in the first node is
// exactly the base that diverged at the branch point.
func (c *CollapseStage) chainBases(chain []NodeID) []byte {
	var out []byte
	for _, id := range chain {
		node, ok := c.nodes[id]
		if !ok {
			continue
		}
		for _, km := range node.Kmers {
			out = append(out, bitsToBase[nextBaseOf(km)])
		}
	}
	return out
}

// pickWinner decides which of two reconverging chains survives (§4.4's
// tie-break): the chain whose branch-point successor carries the reference
// flag wins outright; otherwise the chain with the larger total weight
// wins; ties break toward the smaller starting kmer, for determinism.
func (c *CollapseStage) pickWinner(a, b []NodeID) (winner, loser []NodeID) {
	af, bf := c.nodes[a[0]].ReferenceFlag, c.nodes[b[0]].ReferenceFlag
	if af != bf {
		if af {
			return a, b
		}
		return b, a
	}
	aw, bw := c.chainWeight(a), c.chainWeight(b)
	if aw != bw {
		if aw > bw {
			return a, b
		}
		return b, a
	}
	if c.nodes[a[0]].Kmers[0] <= c.nodes[b[0]].Kmers[0] {
		return a, b
	}
	return b, a
}

func (c *CollapseStage) chainWeight(chain []NodeID) float64 {
	var sum float64
	for _, id := range chain {
		if node, ok := c.nodes[id]; ok {
			sum += node.totalWeight()
		}
	}
	return sum
}
