package assembly

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestKmerNodeIndexAddGetRemove(t *testing.T) {
	idx := newKmerNodeIndex()
	km := encodeKmer([]byte("ACGT"))

	expect.EQ(t, len(idx.get(km)), 0)

	idx.add(km, 1)
	idx.add(km, 2)
	expect.EQ(t, len(idx.get(km)), 2)

	idx.remove(km, 1)
	got := idx.get(km)
	expect.EQ(t, len(got), 1)
	expect.EQ(t, got[0], NodeID(2))

	idx.remove(km, 2)
	expect.EQ(t, len(idx.get(km)), 0)
}

func TestKmerNodeIndexDistinctKmersDontCollide(t *testing.T) {
	idx := newKmerNodeIndex()
	a := encodeKmer([]byte("AAAA"))
	b := encodeKmer([]byte("TTTT"))

	idx.add(a, 10)
	idx.add(b, 20)

	expect.EQ(t, len(idx.get(a)), 1)
	expect.EQ(t, idx.get(a)[0], NodeID(10))
	expect.EQ(t, len(idx.get(b)), 1)
	expect.EQ(t, idx.get(b)[0], NodeID(20))
}

func TestKmerNodeIndexRemoveMissingIDIsNoop(t *testing.T) {
	idx := newKmerNodeIndex()
	km := encodeKmer([]byte("GGGG"))
	idx.add(km, 1)

	idx.remove(km, 99) // not present
	expect.EQ(t, len(idx.get(km)), 1)
}
