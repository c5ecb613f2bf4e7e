package assembly

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestEncodeDecodeKmerRoundTrip(t *testing.T) {
	seq := []byte("ACGTACG")
	km := encodeKmer(seq)
	expect.EQ(t, decodeKmer(km, len(seq)), string(seq))
}

func TestEncodeKmerAmbiguousBase(t *testing.T) {
	expect.EQ(t, encodeKmer([]byte("ACNT")), invalidKmer)
}

func TestSuccessorsAndPredecessors(t *testing.T) {
	km := encodeKmer([]byte("ACGT"))
	succ := successors(km, 4)
	for i, want := range []string{"CGTA", "CGTC", "CGTG", "CGTT"} {
		expect.EQ(t, decodeKmer(succ[i], 4), want)
	}

	pred := predecessors(km, 4)
	for i, want := range []string{"AACG", "CACG", "GACG", "TACG"} {
		expect.EQ(t, decodeKmer(pred[i], 4), want)
	}
}

func TestKmerizerScansOverlappingWindows(t *testing.T) {
	z := newKmerizer(3)
	z.reset([]byte("AACGT"))

	var got []string
	var offs []int
	for z.scan() {
		got = append(got, decodeKmer(z.kmer(), 3))
		offs = append(offs, z.offset())
	}
	expect.EQ(t, got, []string{"AAC", "ACG", "CGT"})
	expect.EQ(t, offs, []int{0, 1, 2})
}

func TestKmerizerSkipsAmbiguousBase(t *testing.T) {
	z := newKmerizer(3)
	z.reset([]byte("AACNGTACG"))

	var got []string
	var offs []int
	for z.scan() {
		got = append(got, decodeKmer(z.kmer(), 3))
		offs = append(offs, z.offset())
	}
	expect.EQ(t, got, []string{"AAC", "GTA", "TAC", "ACG"})
	expect.EQ(t, offs, []int{0, 4, 5, 6})
}
