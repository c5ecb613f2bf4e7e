package assembly

import (
	"sort"

	"github.com/grailbio/svassembly/circular"
)

// Contig is one assembled candidate breakend sequence (§6's output record).
// AnchorPosition is nil when the path does not start (Forward) or end
// (Backward) with a reference-flagged kmer (an "unanchored" contig, reported
// only because some caller may still want to inspect it).
type Contig struct {
	ReferenceIdx          int32
	AnchorPosition        *RefPos
	Direction             Direction
	BaseCalls             []byte
	BaseQualities         []byte // derived per-base confidence, see qualityByte.
	AnchoredBaseCount     int
	SupportingEvidenceIDs []EvidenceID
}

// ContigAssembler implements §4.6's sliding-window contig loop: a window of
// live KmerPathNodes (a.nodes) is grown one upstream node at a time, just far
// enough to let the oldest still-open root's path stabilise, rather than
// draining the whole upstream stream into memory up front. Each call to Next
// performs exactly one pass of the five-step loop: pull until stable, pick
// the best contig the stable region can anchor, emit it, release its
// evidence, and evict whatever has fallen behind the window.
type ContigAssembler struct {
	upstream     pathNodeSource
	tracker      *EvidenceTracker
	adj          *Adjacency
	cfg          Config
	referenceIdx int32
	direction    Direction

	nodes        map[NodeID]PathNode
	frontier     RefPos
	upstreamDone bool

	pulled, produced int
}

// NewContigAssembler builds a ContigAssembler pulling from upstream, for the
// given (referenceIndex, direction) pipeline.
func NewContigAssembler(upstream pathNodeSource, tracker *EvidenceTracker, adj *Adjacency, cfg Config, referenceIdx int32, direction Direction) *ContigAssembler {
	// Pre-size the window's node map to the next power of 2 above the
	// interval width one (referenceIndex, direction) window can ever hold
	// live, the way pileup/snp sizes its circular buffers: avoids repeated
	// rehashing as the window fills without guessing at its final size.
	nodes := make(map[NodeID]PathNode, circular.NextExp2(cfg.MaxEvidenceSupportIntervalWidth()))
	return &ContigAssembler{
		upstream: upstream, tracker: tracker, adj: adj, cfg: cfg,
		referenceIdx: referenceIdx, direction: direction, nodes: nodes,
	}
}

// Next runs one pass of §4.6's loop and returns the resulting contig, or
// ok=false once the upstream is exhausted and the window holds nothing left
// to anchor.
func (a *ContigAssembler) Next() (Contig, bool, error) {
	for {
		if path, ok := a.bestReadyPath(); ok {
			c := a.render(path)
			a.release(path)
			a.evict()
			a.produced++
			return c, true, nil
		}
		if a.upstreamDone {
			return Contig{}, false, nil
		}
		pn, ok, err := a.upstream.Next()
		if err != nil {
			return Contig{}, false, err
		}
		if !ok {
			a.upstreamDone = true
			continue
		}
		a.addNode(pn)
	}
}

func (a *ContigAssembler) traceCounts() (in, out, open int) {
	return a.pulled, a.produced, len(a.nodes)
}

// addNode admits an upstream PathNode into the window and advances the input
// frontier, the position §4.6's pull condition and eviction threshold are
// measured against.
func (a *ContigAssembler) addNode(pn PathNode) {
	a.nodes[pn.ID] = pn
	a.pulled++
	if end := pn.StartInterval.End; end > a.frontier {
		a.frontier = end
	}
}

func (a *ContigAssembler) livePredecessors(id NodeID) []NodeID {
	var out []NodeID
	for _, n := range a.adj.Predecessors(id) {
		if _, ok := a.nodes[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (a *ContigAssembler) liveSuccessors(id NodeID) []NodeID {
	var out []NodeID
	for _, n := range a.adj.Successors(id) {
		if _, ok := a.nodes[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// liveRoots returns every window node with no live predecessor, in
// (start, first kmer) order, the same deterministic ordering the old
// whole-graph assemble() pass used.
func (a *ContigAssembler) liveRoots() []NodeID {
	var roots []NodeID
	for id := range a.nodes {
		if len(a.livePredecessors(id)) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		ni, nj := a.nodes[roots[i]], a.nodes[roots[j]]
		if ni.StartInterval.Start != nj.StartInterval.Start {
			return ni.StartInterval.Start < nj.StartInterval.Start
		}
		return ni.Kmers[0] < nj.Kmers[0]
	})
	return roots
}

// bestReadyPath implements §4.6 steps 1-2: a root is "ready" once the window
// has been pulled far enough past it (maxEvidenceSupportIntervalWidth +
// anchorAssemblyLength) that no future upstream node could still extend its
// path, or once upstream is exhausted and nothing can extend anything ever
// again. Among ready roots, it picks the maximal path with the greatest
// summed non-reference weight, breaking ties toward the earliest root.
func (a *ContigAssembler) bestReadyPath() ([]NodeID, bool) {
	required := RefPos(a.cfg.MaxEvidenceSupportIntervalWidth() + a.cfg.AnchorLength)

	var best []NodeID
	var bestWeight float64
	found := false
	for _, root := range a.liveRoots() {
		rn := a.nodes[root]
		if !a.upstreamDone && a.frontier-rn.StartInterval.Start < required {
			continue
		}
		path := a.greedyWalk(root, map[NodeID]bool{})
		w := nonReferenceWeight(path, a.nodes)
		if !found || w > bestWeight {
			found, bestWeight, best = true, w, path
		}
	}
	return best, found
}

func nonReferenceWeight(path []NodeID, nodes map[NodeID]PathNode) float64 {
	var sum float64
	for _, id := range path {
		if n := nodes[id]; !n.ReferenceFlag {
			sum += n.totalWeight()
		}
	}
	return sum
}

// release implements §4.6 step 4: every Evidence attached to any node on the
// emitted path is removed from the tracker; any other window node that loses
// all its evidence this way is deleted outright, along with the emitted
// path's own nodes (already fully consumed and never eligible to be walked
// again). A KmerPathNode's weight is tracked only in aggregate (§4.2's
// AggregateStage sums SupportNode weight per kmer without per-evidence
// attribution), so "shrink weight" is realised as "drop to zero and delete"
// for any node whose last remaining evidence was just released, rather than
// a partial weight subtraction.
func (a *ContigAssembler) release(path []NodeID) {
	evidenceSet := map[EvidenceID]struct{}{}
	for _, id := range path {
		for _, ev := range a.tracker.EvidenceOf(id) {
			evidenceSet[ev] = struct{}{}
		}
	}
	for ev := range evidenceSet {
		for _, nid := range a.tracker.Remove(ev) {
			if len(a.tracker.EvidenceOf(nid)) == 0 {
				a.removeFromWindow(nid)
			}
		}
	}
	for _, id := range path {
		a.removeFromWindow(id)
	}
}

// evict implements §4.6 step 5: any window node whose start-interval has
// fallen strictly behind the input frontier by more than
// maxEvidenceSupportIntervalWidth can never again gain a successor (every
// future upstream node starts at or after the frontier), so it is dropped.
// Unlike release, its evidence is not removed from the tracker: it may still
// be live on some other node the window hasn't reached yet.
func (a *ContigAssembler) evict() {
	threshold := a.frontier - RefPos(a.cfg.MaxEvidenceSupportIntervalWidth())
	for id, pn := range a.nodes {
		if pn.StartInterval.Start < threshold {
			delete(a.nodes, id)
			a.tracker.ForgetNode(id)
			a.adj.Delete(id)
		}
	}
}

func (a *ContigAssembler) removeFromWindow(id NodeID) {
	delete(a.nodes, id)
	a.tracker.ForgetNode(id)
	a.adj.Delete(id)
}

// greedyWalk follows root's chain of live successors, at each branch
// preferring the one with the larger total weight (tie: smaller starting
// kmer), the same deterministic rule PathNodeStage and CollapseStage use.
func (a *ContigAssembler) greedyWalk(root NodeID, visited map[NodeID]bool) []NodeID {
	var path []NodeID
	cur := root
	for {
		if visited[cur] {
			break
		}
		visited[cur] = true
		path = append(path, cur)

		succs := a.liveSuccessors(cur)
		var unvisited []NodeID
		for _, s := range succs {
			if !visited[s] {
				unvisited = append(unvisited, s)
			}
		}
		if len(unvisited) == 0 {
			break
		}
		best := unvisited[0]
		for _, s := range unvisited[1:] {
			if preferNodeAsPathContinuation(a.nodes[s], a.nodes[best]) {
				best = s
			}
		}
		cur = best
	}
	return path
}

func preferNodeAsPathContinuation(a, b PathNode) bool {
	aw, bw := a.totalWeight(), b.totalWeight()
	if aw != bw {
		return aw > bw
	}
	return a.Kmers[0] < b.Kmers[0]
}

// render decodes a walked node chain into a Contig: the first node's first
// kmer is spelled out in full, and every kmer after that (within the first
// node and every subsequent one) contributes exactly the one base it
// appended.
func (a *ContigAssembler) render(path []NodeID) Contig {
	k := a.cfg.KmerLength
	var bases []byte
	var quals []byte
	var evidenceSet = map[EvidenceID]struct{}{}

	leadRun, tailRun := 0, 0 // kmer counts of the leading/trailing reference-flagged run
	inLeadRun := true

	var totalKmers int
	for _, id := range path {
		node := a.nodes[id]
		for _, ev := range a.tracker.EvidenceOf(id) {
			evidenceSet[ev] = struct{}{}
		}
		for ki, km := range node.Kmers {
			if totalKmers == 0 {
				bases = append(bases, decodeKmer(km, k)...)
				for i := 0; i < k; i++ {
					quals = append(quals, qualityByte(node.Weights[ki]))
				}
			} else {
				bases = append(bases, bitsToBase[nextBaseOf(km)])
				quals = append(quals, qualityByte(node.Weights[ki]))
			}
			totalKmers++

			if inLeadRun {
				if node.ReferenceFlag {
					leadRun++
				} else {
					inLeadRun = false
				}
			}
		}
	}

	// Trailing run: walk path nodes from the end while ReferenceFlag is true.
	for i := len(path) - 1; i >= 0; i-- {
		node := a.nodes[path[i]]
		if !node.ReferenceFlag {
			break
		}
		tailRun += len(node.Kmers)
	}
	if tailRun > totalKmers-leadRun {
		tailRun = totalKmers - leadRun // fully-reference path: don't double count.
	}

	var anchoredBases int
	var anchorPos *RefPos
	switch {
	case a.direction == Forward && leadRun > 0:
		anchoredBases = k + leadRun - 1
		pos := lastInterval(a.nodes[leadNodeBoundary(path, leadRun, a.nodes)]).End
		anchorPos = &pos
	case a.direction == Backward && tailRun > 0:
		anchoredBases = k + tailRun - 1
		pos := a.nodes[tailNodeBoundary(path, tailRun, a.nodes)].StartInterval.Start
		anchorPos = &pos
	}

	evidenceIDs := make([]EvidenceID, 0, len(evidenceSet))
	for ev := range evidenceSet {
		evidenceIDs = append(evidenceIDs, ev)
	}
	sort.Slice(evidenceIDs, func(i, j int) bool { return evidenceIDs[i] < evidenceIDs[j] })

	// Both directions chain kmers in the same left-to-right order (the order
	// ReadBases was kmerized in, per evidence.go's orientation convention);
	// only a backward contig's reported sequence is reversed, so the novel
	// tail always reads outward from the anchor regardless of breakend
	// direction (E6), rather than maintaining a second reverse-complement
	// graph.
	if a.direction == Backward {
		reverseBytes(bases)
		reverseBytes(quals)
	}

	return Contig{
		ReferenceIdx:          a.referenceIdx,
		AnchorPosition:        anchorPos,
		Direction:             a.direction,
		BaseCalls:             bases,
		BaseQualities:         quals,
		AnchoredBaseCount:     anchoredBases,
		SupportingEvidenceIDs: evidenceIDs,
	}
}

// leadNodeBoundary returns the id of the path node containing the leadRun-th
// (1-indexed) kmer, i.e. the last node of the leading reference-flagged run.
func leadNodeBoundary(path []NodeID, leadRun int, nodes map[NodeID]PathNode) NodeID {
	seen := 0
	for _, id := range path {
		seen += len(nodes[id].Kmers)
		if seen >= leadRun {
			return id
		}
	}
	return path[len(path)-1]
}

// tailNodeBoundary returns the id of the path node containing the first
// kmer of the trailing reference-flagged run.
func tailNodeBoundary(path []NodeID, tailRun int, nodes map[NodeID]PathNode) NodeID {
	seen := 0
	for i := len(path) - 1; i >= 0; i-- {
		seen += len(nodes[path[i]].Kmers)
		if seen >= tailRun {
			return path[i]
		}
	}
	return path[0]
}

// reverseBytes reverses b in place.
func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// qualityByte derives a byte-scaled confidence from a kmer's support weight,
// capped to the conventional Phred printable range; PathNodes carry
// aggregated, quality-weighted support rather than a literal re-sequenced
// base quality; this is the reported proxy for "how well-supported is this
// base", not a reconstructed Illumina quality score.
func qualityByte(weight float64) byte {
	const maxQ = 93
	if weight > maxQ {
		return maxQ
	}
	if weight < 0 {
		return 0
	}
	return byte(weight)
}
