package assembly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		KmerLength:                 5,
		AnchorLength:               6,
		MaxPathLength:              256,
		MaxPathCollapseLength:      2,
		MaxBaseMismatchForCollapse: 0,
		CollapseBubblesOnly:        true,
		IncludePairAnchors:         false,
		MinConcordantFragmentSize:  1,
		MaxConcordantFragmentSize:  50,
		MaxReadLength:              20,
		DebugAssertions:            true,
	}
}

func uniformQuals(n int, q byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = q
	}
	return out
}

func drainPipeline(t *testing.T, p *Pipeline) []Contig {
	t.Helper()
	var out []Contig
	for {
		c, ok, err := p.Next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

// A single clean read spanning a reference/novel-sequence boundary should
// chain into one contig whose anchored prefix stops exactly at that
// boundary, even though SupportNodeStage, AggregateStage and PathNodeStage
// all keep reference- and non-reference-flagged kmers in separate nodes
// (§3): PathNodeStage must still link the two halves with an adjacency edge
// so ContigAssembler can walk across it.
func TestPipelineForwardAnchoredContig(t *testing.T) {
	cfg := testConfig()
	ev := Evidence{
		ReferenceIdx:  0,
		Start:         100,
		End:           100,
		Direction:     Forward,
		Kind:          SoftClip,
		ReadBases:     []byte("AAAAACCCCC"),
		BaseQualities: uniformQuals(10, 10),
		AnchorLength:  6,
	}

	p, err := NewPipeline(NewSliceEvidenceSource([]Evidence{ev}), 0, Forward, cfg)
	require.NoError(t, err)

	contigs := drainPipeline(t, p)
	require.Len(t, contigs, 1)

	c := contigs[0]
	assert.Equal(t, "AAAAACCCCC", string(c.BaseCalls))
	assert.Equal(t, Forward, c.Direction)
	assert.Equal(t, 6, c.AnchoredBaseCount)
	require.NotNil(t, c.AnchorPosition)
	assert.EqualValues(t, 101, *c.AnchorPosition)
	for _, q := range c.BaseQualities {
		assert.EqualValues(t, 50, q) // 5 bases * quality 10 each, per kmer.
	}
}

// Same boundary-crossing scenario in the Backward direction: the anchor is
// the read's suffix, and only the final rendered BaseCalls/BaseQualities are
// reversed (§12's reverse-complement handling for backward breakends) -
// everything upstream of render() chains kmers in the same left-to-right
// order regardless of direction.
func TestPipelineBackwardAnchoredContigIsReversed(t *testing.T) {
	cfg := testConfig()
	ev := Evidence{
		ReferenceIdx:  0,
		Start:         100,
		End:           100,
		Direction:     Backward,
		Kind:          SoftClip,
		ReadBases:     []byte("CCCCCAAAAA"),
		BaseQualities: uniformQuals(10, 10),
		AnchorLength:  6,
	}

	p, err := NewPipeline(NewSliceEvidenceSource([]Evidence{ev}), 0, Backward, cfg)
	require.NoError(t, err)

	contigs := drainPipeline(t, p)
	require.Len(t, contigs, 1)

	c := contigs[0]
	assert.Equal(t, "AAAAACCCCC", string(c.BaseCalls)) // reversed from the read's CCCCCAAAAA
	assert.Equal(t, Backward, c.Direction)
	assert.Equal(t, 6, c.AnchoredBaseCount)
	require.NotNil(t, c.AnchorPosition)
	assert.EqualValues(t, 104, *c.AnchorPosition)
}

// A soft-clip with no reference-flagged kmers at all (AnchorLength=0) still
// assembles, just unanchored.
func TestPipelineUnanchoredContig(t *testing.T) {
	cfg := testConfig()
	ev := Evidence{
		ReferenceIdx:  0,
		Start:         0,
		End:           0,
		Direction:     Forward,
		Kind:          SoftClip,
		ReadBases:     []byte("GGGGG"),
		BaseQualities: uniformQuals(5, 20),
		AnchorLength:  0,
	}

	p, err := NewPipeline(NewSliceEvidenceSource([]Evidence{ev}), 0, Forward, cfg)
	require.NoError(t, err)

	contigs := drainPipeline(t, p)
	require.Len(t, contigs, 1)
	assert.Nil(t, contigs[0].AnchorPosition)
	assert.Equal(t, 0, contigs[0].AnchoredBaseCount)
}

func TestNewPipelineRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.KmerLength = 4 // even: violates validate()

	_, err := NewPipeline(NewSliceEvidenceSource(nil), 0, Forward, cfg)
	require.Error(t, err)
}
