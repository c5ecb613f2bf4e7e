package assembly

import "github.com/biogo/store/llrb"

// KmerNode is the (kmer, [firstStart, lastStart], weight, referenceFlag)
// aggregate record of §3, produced by summing coincident SupportNodes that
// share a kmer and an overlapping-or-touching position interval.
type KmerNode struct {
	ID            NodeID
	Kmer          Kmer
	Interval      Interval
	Weight        float64
	ReferenceFlag bool
}

type aggKey struct {
	kmer Kmer
	ref  bool
}

// openAggregate is a KmerNode still eligible to absorb more SupportNodes.
type openAggregate struct {
	node      KmerNode
	finalized bool
}

// byStartKey orders aggregates for emission: by interval start, then kmer,
// per §4.2 "Output ordering: by interval start, then kmer." id breaks ties
// between distinct aggregates that happen to share (start, kmer) (possible
// when referenceFlag differs).
type byStartKey struct {
	start RefPos
	kmer  Kmer
	id    NodeID
	agg   *openAggregate
}

func (k byStartKey) Compare(c llrb.Comparable) int {
	o := c.(byStartKey)
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

// byEndKey orders still-open aggregates by interval end, so AggregateStage
// can cheaply find every aggregate whose end has fallen behind the input
// frontier and is therefore safe to finalize.
type byEndKey struct {
	end RefPos
	id  NodeID
	agg *openAggregate
}

func (k byEndKey) Compare(c llrb.Comparable) int {
	o := c.(byEndKey)
	if k.end != o.end {
		return int(k.end - o.end)
	}
	return int(k.id) - int(o.id)
}

// AggregateStage merges a position-sorted SupportNode stream into maximal
// KmerNode records (§4.2).
type AggregateStage struct {
	upstream *SupportNodeStage
	tracker  *EvidenceTracker
	arena    *idArena

	extendable map[aggKey]*openAggregate
	byStart    llrb.Tree
	openByEnd  llrb.Tree

	currentInputPos RefPos
	havePos         bool
	upstreamDone    bool

	pulled, produced int
}

// NewAggregateStage builds an AggregateStage pulling from upstream. tracker
// and arena are shared across the whole pipeline.
func NewAggregateStage(upstream *SupportNodeStage, tracker *EvidenceTracker, arena *idArena) *AggregateStage {
	return &AggregateStage{
		upstream:   upstream,
		tracker:    tracker,
		arena:      arena,
		extendable: map[aggKey]*openAggregate{},
	}
}

// Next returns the next finalized, maximal KmerNode, or ok=false at end of
// stream.
func (a *AggregateStage) Next() (KmerNode, bool, error) {
	for {
		min := a.byStart.Min()
		if min != nil {
			mk := min.(byStartKey)
			ready := mk.agg.finalized
			positionSettled := a.upstreamDone || mk.start < a.currentInputPos
			if ready && positionSettled {
				a.byStart.DeleteMin()
				a.produced++
				return mk.agg.node, true, nil
			}
		}
		if a.upstreamDone {
			if min == nil {
				return KmerNode{}, false, nil
			}
			// Every remaining open aggregate is now eligible: nothing more
			// can ever extend it.
			a.finalizeThrough(RefPos(1<<31 - 1))
			continue
		}

		sn, ok, err := a.upstream.Next()
		if err != nil {
			return KmerNode{}, false, err
		}
		if !ok {
			a.upstreamDone = true
			a.finalizeThrough(RefPos(1<<31 - 1))
			continue
		}
		a.pulled++
		a.currentInputPos = sn.Interval.Start
		a.havePos = true
		a.absorb(sn)
		a.finalizeThrough(a.currentInputPos)
	}
}

// absorb extends a matching open aggregate with sn, or starts a new one.
func (a *AggregateStage) absorb(sn SupportNode) {
	key := aggKey{sn.Kmer, sn.ReferenceFlag}
	if cur, ok := a.extendable[key]; ok && !cur.finalized && cur.node.Interval.Touches(sn.Interval) {
		a.openByEnd.Delete(byEndKey{cur.node.Interval.End, cur.node.ID, nil})
		cur.node.Interval = cur.node.Interval.Union(sn.Interval)
		cur.node.Weight += sn.Weight
		a.openByEnd.Insert(byEndKey{cur.node.Interval.End, cur.node.ID, cur})
		a.tracker.Register(sn.EvidenceID, cur.node.ID)
		return
	}

	id := a.arena.alloc()
	agg := &openAggregate{node: KmerNode{
		ID:            id,
		Kmer:          sn.Kmer,
		Interval:      sn.Interval,
		Weight:        sn.Weight,
		ReferenceFlag: sn.ReferenceFlag,
	}}
	a.extendable[key] = agg
	a.byStart.Insert(byStartKey{agg.node.Interval.Start, agg.node.Kmer, id, agg})
	a.openByEnd.Insert(byEndKey{agg.node.Interval.End, id, agg})
	a.tracker.Register(sn.EvidenceID, id)
}

// traceCounts reports SupportNodes pulled, KmerNodes produced, and the
// number of aggregates still open for extension.
func (a *AggregateStage) traceCounts() (in, out, open int) {
	return a.pulled, a.produced, a.openByEnd.Len()
}

// finalizeThrough marks finalized every open aggregate whose interval ends
// strictly before pos-1, i.e. whose end+1 < pos (§4.2).
func (a *AggregateStage) finalizeThrough(pos RefPos) {
	for {
		min := a.openByEnd.Min()
		if min == nil {
			return
		}
		mk := min.(byEndKey)
		if mk.end+1 >= pos {
			return
		}
		a.openByEnd.DeleteMin()
		mk.agg.finalized = true
	}
}
