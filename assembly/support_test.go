package assembly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func supportCfg() Config {
	cfg := testConfig()
	cfg.KmerLength = 3
	return cfg
}

// A forward soft-clip's reference-matched prefix kmers (those that end at or
// before AnchorLength) get ReferenceFlag true; the rest, crossing into the
// novel tail, get false. Weight is the sum of (quality - QualityEpsilon),
// floored at 1 per base.
func TestSupportNodeStageBuildsFlaggedNodes(t *testing.T) {
	cfg := supportCfg()
	ev := Evidence{
		ReferenceIdx:  0,
		Start:         100,
		End:           100,
		Direction:     Forward,
		Kind:          SoftClip,
		ReadBases:     []byte("AACGT"), // k=3, AnchorLength=4
		BaseQualities: uniformQuals(5, 10),
		AnchorLength:  4,
	}
	gate := NewPerContigGate(NewSliceEvidenceSource([]Evidence{ev}), 0, nil)
	s := NewSupportNodeStage(gate, cfg)

	var nodes []SupportNode
	for {
		n, ok, err := s.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		nodes = append(nodes, n)
	}
	require.Len(t, nodes, 3) // offsets 0,1,2

	// offset 0: [0,3) ends at 3 <= AnchorLength(4) -> reference.
	assert.True(t, nodes[0].ReferenceFlag)
	assert.EqualValues(t, encodeKmer([]byte("AAC")), nodes[0].Kmer)
	assert.EqualValues(t, 30, nodes[0].Weight) // 3 bases * 10

	// offset 1: [1,4) ends at 4 <= AnchorLength(4) -> still reference.
	assert.True(t, nodes[1].ReferenceFlag)

	// offset 2: [2,5) ends at 5 > AnchorLength(4) -> crosses into novel tail.
	assert.False(t, nodes[2].ReferenceFlag)
}

// PairAnchor evidence is dropped entirely unless Config.IncludePairAnchors
// is set, and when admitted, is always non-reference-flagged.
func TestSupportNodeStageDropsPairAnchorsWhenNotIncluded(t *testing.T) {
	cfg := supportCfg()
	ev := Evidence{
		ReferenceIdx:  0,
		Start:         100,
		End:           105,
		Direction:     Forward,
		Kind:          PairAnchor,
		ReadBases:     []byte("AACGT"),
		BaseQualities: uniformQuals(5, 10),
	}
	gate := NewPerContigGate(NewSliceEvidenceSource([]Evidence{ev}), 0, nil)
	s := NewSupportNodeStage(gate, cfg)
	_, ok, err := s.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSupportNodeStageIncludesPairAnchorsWhenConfigured(t *testing.T) {
	cfg := supportCfg()
	cfg.IncludePairAnchors = true
	ev := Evidence{
		ReferenceIdx:  0,
		Start:         100,
		End:           105,
		Direction:     Forward,
		Kind:          PairAnchor,
		ReadBases:     []byte("AACGT"),
		BaseQualities: uniformQuals(5, 10),
	}
	gate := NewPerContigGate(NewSliceEvidenceSource([]Evidence{ev}), 0, nil)
	s := NewSupportNodeStage(gate, cfg)
	n, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, n.ReferenceFlag)
}

// Two overlapping evidences interleave in Interval.Start order regardless of
// which one was admitted first.
func TestSupportNodeStageMergesConcurrentCandidatesInOrder(t *testing.T) {
	cfg := supportCfg()
	evs := []Evidence{
		{ReferenceIdx: 0, Start: 100, End: 100, Direction: Forward, Kind: SoftClip,
			ReadBases: []byte("AACGT"), BaseQualities: uniformQuals(5, 10), AnchorLength: 0},
		{ReferenceIdx: 0, Start: 101, End: 101, Direction: Forward, Kind: SoftClip,
			ReadBases: []byte("CCGGA"), BaseQualities: uniformQuals(5, 10), AnchorLength: 0},
	}
	gate := NewPerContigGate(NewSliceEvidenceSource(evs), 0, nil)
	s := NewSupportNodeStage(gate, cfg)

	var starts []RefPos
	for {
		n, ok, err := s.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		starts = append(starts, n.Interval.Start)
	}
	for i := 1; i < len(starts); i++ {
		assert.LessOrEqual(t, starts[i-1], starts[i])
	}
}
