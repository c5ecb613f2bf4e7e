package assembly

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleSoftClip(refIdx int32, start RefPos, dir Direction, bases string) Evidence {
	return Evidence{
		ReferenceIdx:  refIdx,
		Start:         start,
		End:           start,
		Direction:     dir,
		Kind:          SoftClip,
		ReadBases:     []byte(bases),
		BaseQualities: uniformQuals(len(bases), 20),
		AnchorLength:  0,
	}
}

// Each reference index's evidence is buffered and assembled independently
// (§5, §7): RunEach must invoke fn once per index, in index order, and a
// direction with no matching evidence simply yields an empty batch slice
// rather than an error.
func TestDriverRunEachMultipleReferenceIndices(t *testing.T) {
	cfg := testConfig()
	evs := []Evidence{
		simpleSoftClip(0, 10, Forward, "AAAAA"),
		simpleSoftClip(1, 20, Forward, "CCCCC"),
		simpleSoftClip(1, 30, Forward, "GGGGG"),
	}

	d := NewDriver(cfg)
	batches, err := d.Run(context.Background(), NewSliceEvidenceSource(evs))
	require.NoError(t, err)
	require.Len(t, batches, 2)

	assert.EqualValues(t, 0, batches[0].ReferenceIdx)
	require.Len(t, batches[0].Forward, 1)
	assert.Equal(t, "AAAAA", string(batches[0].Forward[0].BaseCalls))
	assert.Empty(t, batches[0].Backward)

	assert.EqualValues(t, 1, batches[1].ReferenceIdx)
	require.Len(t, batches[1].Forward, 2)
	assert.Equal(t, "CCCCC", string(batches[1].Forward[0].BaseCalls))
	assert.Equal(t, "GGGGG", string(batches[1].Forward[1].BaseCalls))
}

// A position-sort violation is a MalformedInput failure, which is never
// recoverable (Kind.recoverable()): it must abort RunEach even with
// Config.Recovery enabled, unlike AssemblyFailure/InvariantViolation.
func TestDriverAbortsOnUnsortedEvidenceRegardlessOfRecovery(t *testing.T) {
	cfg := testConfig()
	cfg.Recovery = true
	evs := []Evidence{
		simpleSoftClip(0, 30, Forward, "AAAAA"),
		simpleSoftClip(0, 10, Forward, "CCCCC"),
	}

	d := NewDriver(cfg)
	_, err := d.Run(context.Background(), NewSliceEvidenceSource(evs))
	require.Error(t, err)
}

func TestDriverRunEachEmptyInput(t *testing.T) {
	d := NewDriver(testConfig())
	batches, err := d.Run(context.Background(), NewSliceEvidenceSource(nil))
	require.NoError(t, err)
	assert.Empty(t, batches)
}
