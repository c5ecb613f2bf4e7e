package assembly

import "sort"

// SimplifyStage re-links adjacent PathNodes that CollapseStage left as
// separate chains purely because a branch used to sit between them: once
// that branch has been collapsed away, the upstream and downstream chains
// may now have an unambiguous 1:1 edge between them and can be re-merged
// into one longer PathNode (§4.5), bounded by MaxPathLength and
// MaxKmerSupportIntervalWidth the same way PathNodeStage and AggregateStage
// are.
//
// Like CollapseStage, SimplifyStage needs a whole-graph view (an edge only
// qualifies once both of its endpoints' final degree, after every other
// collapse, is known), so it also drains its upstream into memory once.
type SimplifyStage struct {
	upstream pathNodeSource
	tracker  *EvidenceTracker
	adj      *Adjacency
	cfg      Config

	drained bool
	nodes   map[NodeID]PathNode
	order   []NodeID
	pos     int

	pulled, produced int
}

// NewSimplifyStage builds a SimplifyStage pulling from upstream.
func NewSimplifyStage(upstream pathNodeSource, tracker *EvidenceTracker, adj *Adjacency, cfg Config) *SimplifyStage {
	return &SimplifyStage{upstream: upstream, tracker: tracker, adj: adj, cfg: cfg}
}

// Next returns the next PathNode in (start, first kmer) order, or ok=false
// once every node has been returned.
func (s *SimplifyStage) Next() (PathNode, bool, error) {
	if !s.drained {
		if err := s.drain(); err != nil {
			return PathNode{}, false, err
		}
	}
	if s.pos >= len(s.order) {
		return PathNode{}, false, nil
	}
	id := s.order[s.pos]
	s.pos++
	s.produced++
	return s.nodes[id], true, nil
}

// traceCounts reports PathNodes pulled from upstream, PathNodes produced so
// far, and how many survivors are still waiting to be emitted.
func (s *SimplifyStage) traceCounts() (in, out, open int) {
	return s.pulled, s.produced, len(s.order) - s.pos
}

func (s *SimplifyStage) drain() error {
	s.nodes = map[NodeID]PathNode{}
	for {
		pn, ok, err := s.upstream.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		s.nodes[pn.ID] = pn
		s.pulled++
	}
	s.simplify()

	s.order = make([]NodeID, 0, len(s.nodes))
	for id := range s.nodes {
		s.order = append(s.order, id)
	}
	sort.Slice(s.order, func(i, j int) bool {
		a, b := s.nodes[s.order[i]], s.nodes[s.order[j]]
		if a.StartInterval.Start != b.StartInterval.Start {
			return a.StartInterval.Start < b.StartInterval.Start
		}
		return a.Kmers[0] < b.Kmers[0]
	})
	s.drained = true
	return nil
}

func (s *SimplifyStage) liveSuccessors(id NodeID) []NodeID {
	var out []NodeID
	for _, n := range s.adj.Successors(id) {
		if _, ok := s.nodes[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (s *SimplifyStage) livePredecessors(id NodeID) []NodeID {
	var out []NodeID
	for _, n := range s.adj.Predecessors(id) {
		if _, ok := s.nodes[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

func lastInterval(p PathNode) Interval {
	return p.StartInterval.Shift(RefPos(len(p.Kmers) - 1))
}

func (s *SimplifyStage) simplify() {
	maxWidth := s.cfg.MaxKmerSupportIntervalWidth()
	for {
		merged := false
		ids := make([]NodeID, 0, len(s.nodes))
		for id := range s.nodes {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			a, ok := s.nodes[id]
			if !ok {
				continue
			}
			succs := s.liveSuccessors(id)
			if len(succs) != 1 {
				continue
			}
			bID := succs[0]
			b, ok := s.nodes[bID]
			if !ok {
				continue
			}
			if len(s.livePredecessors(bID)) != 1 {
				continue
			}
			if a.ReferenceFlag != b.ReferenceFlag {
				continue
			}
			if lastInterval(a).Shift(1) != b.StartInterval {
				continue
			}
			if len(a.Kmers)+len(b.Kmers) > s.cfg.MaxPathLength {
				continue
			}
			mergedInterval := Interval{a.StartInterval.Start, lastInterval(b).End}
			if mergedInterval.Width() > maxWidth {
				continue
			}

			a.Kmers = append(a.Kmers, b.Kmers...)
			a.Weights = append(a.Weights, b.Weights...)
			s.nodes[id] = a
			s.tracker.MergeNode(bID, id)
			s.adj.Rewire(bID, id)
			delete(s.nodes, bID)
			merged = true
		}
		if !merged {
			return
		}
	}
}
