package assembly

// NodeID is a stable 32-bit identifier for a KmerNode or KmerPathNode,
// minted from a single shared arena counter. Per the Design Notes, the
// cyclic evidence<->node and node<->node graph is represented as id sets
// rather than object references, so destruction is plain id invalidation
// with no reference counting.
type NodeID uint32

// idArena mints monotonically increasing NodeIDs for one pipeline.
type idArena struct {
	next NodeID
}

func (a *idArena) alloc() NodeID {
	a.next++
	return a.next
}

// EvidenceTracker maintains the bidirectional Evidence<->Node relation
// described in §3 (EvidenceSupportMap), lifted transparently across the
// SupportNode -> KmerNode -> KmerPathNode rewrites that happen as evidence
// flows down the pipeline.
type EvidenceTracker struct {
	evidenceToNodes map[EvidenceID]map[NodeID]struct{}
	nodeToEvidence  map[NodeID]map[EvidenceID]struct{}
	assertEnabled   bool
}

// NewEvidenceTracker creates an empty tracker. assertEnabled records
// Config.DebugAssertions; the tracker itself runs no checks with it (the
// debug interceptor is assertingPathNodeSource in pipeline.go).
func NewEvidenceTracker(assertEnabled bool) *EvidenceTracker {
	return &EvidenceTracker{
		evidenceToNodes: map[EvidenceID]map[NodeID]struct{}{},
		nodeToEvidence:  map[NodeID]map[EvidenceID]struct{}{},
		assertEnabled:   assertEnabled,
	}
}

// Register records that node includes one of evidence's kmer-occurrences.
func (t *EvidenceTracker) Register(evidence EvidenceID, node NodeID) {
	nodes, ok := t.evidenceToNodes[evidence]
	if !ok {
		nodes = map[NodeID]struct{}{}
		t.evidenceToNodes[evidence] = nodes
	}
	nodes[node] = struct{}{}

	evs, ok := t.nodeToEvidence[node]
	if !ok {
		evs = map[EvidenceID]struct{}{}
		t.nodeToEvidence[node] = evs
	}
	evs[evidence] = struct{}{}
}

// RewriteNode moves all of oldID's evidence associations to newID and
// forgets oldID. Used when a node's identity changes but its membership
// doesn't (e.g. a KmerNode becoming part of a KmerPathNode).
func (t *EvidenceTracker) RewriteNode(oldID, newID NodeID) {
	evs, ok := t.nodeToEvidence[oldID]
	if !ok {
		return
	}
	delete(t.nodeToEvidence, oldID)
	for ev := range evs {
		delete(t.evidenceToNodes[ev], oldID)
		t.Register(ev, newID)
	}
}

// MergeNode folds srcID's evidence associations into dstID and forgets
// srcID, used by CollapseStage when the lower-weight sibling path is folded
// into the higher-weight one.
func (t *EvidenceTracker) MergeNode(srcID, dstID NodeID) {
	t.RewriteNode(srcID, dstID)
}

// EvidenceOf returns the set of EvidenceIDs currently attributed to node.
// The returned slice is a fresh copy safe for the caller to mutate.
func (t *EvidenceTracker) EvidenceOf(node NodeID) []EvidenceID {
	evs := t.nodeToEvidence[node]
	out := make([]EvidenceID, 0, len(evs))
	for ev := range evs {
		out = append(out, ev)
	}
	return out
}

// NodesOf returns the set of NodeIDs currently holding evidence.
func (t *EvidenceTracker) NodesOf(evidence EvidenceID) []NodeID {
	nodes := t.evidenceToNodes[evidence]
	out := make([]NodeID, 0, len(nodes))
	for n := range nodes {
		out = append(out, n)
	}
	return out
}

// Remove deletes evidence from the tracker entirely and returns the set of
// nodes that lost it, so the caller (ContigAssembler, step 4) can shrink or
// delete those nodes in turn.
func (t *EvidenceTracker) Remove(evidence EvidenceID) []NodeID {
	nodes := t.evidenceToNodes[evidence]
	out := make([]NodeID, 0, len(nodes))
	for n := range nodes {
		out = append(out, n)
		delete(t.nodeToEvidence[n], evidence)
		if len(t.nodeToEvidence[n]) == 0 {
			delete(t.nodeToEvidence, n)
		}
	}
	delete(t.evidenceToNodes, evidence)
	return out
}

// ForgetNode discards node's membership without touching the evidence that
// supported it; used when a node is deleted outright (e.g. window eviction)
// and its evidence is still live elsewhere.
func (t *EvidenceTracker) ForgetNode(node NodeID) {
	evs := t.nodeToEvidence[node]
	for ev := range evs {
		delete(t.evidenceToNodes[ev], node)
		if len(t.evidenceToNodes[ev]) == 0 {
			delete(t.evidenceToNodes, ev)
		}
	}
	delete(t.nodeToEvidence, node)
}
