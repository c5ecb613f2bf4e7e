package assembly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePathNodeSource replays a fixed slice of PathNodes, for exercising
// CollapseStage/SimplifyStage without running the full upstream pipeline.
type fakePathNodeSource struct {
	nodes []PathNode
	i     int
}

func (f *fakePathNodeSource) Next() (PathNode, bool, error) {
	if f.i >= len(f.nodes) {
		return PathNode{}, false, nil
	}
	n := f.nodes[f.i]
	f.i++
	return n, true, nil
}

func collectPathNodes(t *testing.T, src pathNodeSource) []PathNode {
	t.Helper()
	var out []PathNode
	for {
		n, ok, err := src.Next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, n)
	}
}

// A one-kmer bubble - a branch point with two single-kmer sibling successors
// that reconverge one hop later, differing by one base - collapses into the
// reference-flagged sibling when MaxBaseMismatchForCollapse allows it.
func TestCollapseStageFoldsBubbleIntoReferenceBranch(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBaseMismatchForCollapse = 1
	cfg.CollapseBubblesOnly = false
	cfg.MaxPathCollapseLength = 2

	branch := PathNode{ID: 1, Kmers: []Kmer{encodeKmer([]byte("AAA"))}, Weights: []float64{10}, ReferenceFlag: true}
	refSib := PathNode{ID: 2, Kmers: []Kmer{Kmer(0)}, Weights: []float64{10}, ReferenceFlag: true}
	altSib := PathNode{ID: 3, Kmers: []Kmer{Kmer(1)}, Weights: []float64{5}, ReferenceFlag: false}
	conv := PathNode{ID: 4, Kmers: []Kmer{encodeKmer([]byte("TTT"))}, Weights: []float64{10}, ReferenceFlag: true}

	adj := NewAdjacency()
	adj.Link(1, 2)
	adj.Link(1, 3)
	adj.Link(2, 4)
	adj.Link(3, 4)

	tracker := NewEvidenceTracker(false)
	tracker.Register(100, 3) // altSib's evidence, to verify it gets reattributed

	src := &fakePathNodeSource{nodes: []PathNode{branch, refSib, altSib, conv}}
	cs := NewCollapseStage(src, tracker, adj, cfg)

	out := collectPathNodes(t, cs)

	var ids []NodeID
	for _, n := range out {
		ids = append(ids, n.ID)
	}
	assert.NotContains(t, ids, NodeID(3)) // altSib folded away
	assert.Contains(t, ids, NodeID(2))
	assert.Contains(t, ids, NodeID(1))
	assert.Contains(t, ids, NodeID(4))

	// altSib's evidence moved onto refSib.
	assert.ElementsMatch(t, tracker.EvidenceOf(2), []EvidenceID{100})
	assert.Empty(t, tracker.EvidenceOf(3))
}

// When the two branches differ by more bases than MaxBaseMismatchForCollapse
// allows, nothing collapses.
func TestCollapseStageLeavesBubbleWhenMismatchTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBaseMismatchForCollapse = 0
	cfg.CollapseBubblesOnly = false
	cfg.MaxPathCollapseLength = 2

	branch := PathNode{ID: 1, Kmers: []Kmer{encodeKmer([]byte("AAA"))}, Weights: []float64{10}, ReferenceFlag: true}
	refSib := PathNode{ID: 2, Kmers: []Kmer{Kmer(0)}, Weights: []float64{10}, ReferenceFlag: true}
	altSib := PathNode{ID: 3, Kmers: []Kmer{Kmer(1)}, Weights: []float64{5}, ReferenceFlag: false}
	conv := PathNode{ID: 4, Kmers: []Kmer{encodeKmer([]byte("TTT"))}, Weights: []float64{10}, ReferenceFlag: true}

	adj := NewAdjacency()
	adj.Link(1, 2)
	adj.Link(1, 3)
	adj.Link(2, 4)
	adj.Link(3, 4)

	tracker := NewEvidenceTracker(false)
	src := &fakePathNodeSource{nodes: []PathNode{branch, refSib, altSib, conv}}
	cs := NewCollapseStage(src, tracker, adj, cfg)

	out := collectPathNodes(t, cs)
	require.Len(t, out, 4)
}
