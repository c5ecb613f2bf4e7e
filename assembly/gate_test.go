package assembly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateEv(refIdx int32, start RefPos, dir Direction) Evidence {
	return Evidence{
		ReferenceIdx: refIdx,
		Start:        start,
		End:          start,
		Direction:    dir,
		Kind:         SoftClip,
		ReadBases:    []byte("AAAAA"),
	}
}

func TestPerContigGateFiltersOtherReferenceIndex(t *testing.T) {
	src := NewSliceEvidenceSource([]Evidence{
		gateEv(0, 10, Forward),
		gateEv(0, 20, Forward),
		gateEv(1, 5, Forward),
	})
	g := NewPerContigGate(src, 0, nil)

	ev, ok, err := g.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 10, ev.Start)

	ev, ok, err = g.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 20, ev.Start)

	_, ok, err = g.Next()
	require.NoError(t, err)
	assert.False(t, ok)

	pending, have := g.Pending()
	require.True(t, have)
	assert.EqualValues(t, 1, pending.ReferenceIdx)
}

func TestPerContigGateFiltersDirection(t *testing.T) {
	src := NewSliceEvidenceSource([]Evidence{
		gateEv(0, 10, Forward),
		gateEv(0, 20, Backward),
		gateEv(0, 30, Forward),
	})
	fwd := Forward
	g := NewPerContigGate(src, 0, &fwd)

	ev, ok, err := g.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 10, ev.Start)

	ev, ok, err = g.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 30, ev.Start)

	_, ok, err = g.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPerContigGateRejectsEarlierReferenceIndex(t *testing.T) {
	src := NewSliceEvidenceSource([]Evidence{
		gateEv(0, 10, Forward),
	})
	g := NewPerContigGate(src, 1, nil)
	_, _, err := g.Next()
	require.Error(t, err)
}

func TestPerContigGateRejectsUnsortedPositions(t *testing.T) {
	src := NewSliceEvidenceSource([]Evidence{
		gateEv(0, 30, Forward),
		gateEv(0, 10, Forward),
	})
	g := NewPerContigGate(src, 0, nil)
	_, ok, err := g.Next()
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = g.Next()
	require.Error(t, err)
}

func TestPerContigGateDropsEvidenceWithoutBreakendSummary(t *testing.T) {
	noSummary := gateEv(0, 10, Forward)
	noSummary.ReadBases = nil
	src := NewSliceEvidenceSource([]Evidence{
		noSummary,
		gateEv(0, 20, Forward),
	})
	fwd := Forward
	g := NewPerContigGate(src, 0, &fwd)

	ev, ok, err := g.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 20, ev.Start)
}
