package assembly

import farm "github.com/dgryski/go-farm"

// nKmerIndexShards shards the windowed kmer index 64 ways on farmhash(kmer),
// the way fusion's central kmer->genelist map shards 256 ways on the same
// hash: it keeps any one shard's Go map small while the active window is
// open, instead of repeatedly growing and rehashing one giant map as kmers
// stream through.
const nKmerIndexShards = 64

func shardOf(km Kmer) uint64 {
	h := farm.Hash64WithSeed(kmerHashBytes(km), 0)
	return h % nKmerIndexShards
}

// kmerHashBytes renders km's bits for farm.Hash64WithSeed without an
// allocation on the common path.
func kmerHashBytes(km Kmer) []byte {
	var b [8]byte
	b[0] = byte(km)
	b[1] = byte(km >> 8)
	b[2] = byte(km >> 16)
	b[3] = byte(km >> 24)
	b[4] = byte(km >> 32)
	b[5] = byte(km >> 40)
	b[6] = byte(km >> 48)
	b[7] = byte(km >> 56)
	return b[:]
}

// kmerNodeIndex maps a Kmer to the set of NodeIDs under that kmer in one
// PathNodeStage position layer (see processLayer). It is logically
// map[Kmer][]NodeID, sharded the way kmerIndex is in fusion/kmer_index.go.
type kmerNodeIndex struct {
	shards [nKmerIndexShards]map[Kmer][]NodeID
}

func newKmerNodeIndex() *kmerNodeIndex {
	idx := &kmerNodeIndex{}
	for i := range idx.shards {
		idx.shards[i] = map[Kmer][]NodeID{}
	}
	return idx
}

func (idx *kmerNodeIndex) add(km Kmer, id NodeID) {
	s := idx.shards[shardOf(km)]
	s[km] = append(s[km], id)
}

func (idx *kmerNodeIndex) remove(km Kmer, id NodeID) {
	s := idx.shards[shardOf(km)]
	ids := s[km]
	for i, existing := range ids {
		if existing == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s, km)
	} else {
		s[km] = ids
	}
}

func (idx *kmerNodeIndex) get(km Kmer) []NodeID {
	return idx.shards[shardOf(km)][km]
}
