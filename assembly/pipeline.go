package assembly

// assertingPathNodeSource wraps a pathNodeSource with the tracker-consistency
// interceptor Config.DebugAssertions enables (§4.7): every PathNode it
// returns must have at least one evidence ID attributed in the shared
// EvidenceTracker, and no successor edge Adjacency records for it may point
// back at the node itself. It costs an extra map lookup per node, which is
// why it is opt-in rather than always-on.
type assertingPathNodeSource struct {
	upstream pathNodeSource
	tracker  *EvidenceTracker
	adj      *Adjacency
	stage    string
	seen     map[NodeID]bool
}

func newAssertingPathNodeSource(upstream pathNodeSource, tracker *EvidenceTracker, adj *Adjacency, stage string) pathNodeSource {
	return &assertingPathNodeSource{upstream: upstream, tracker: tracker, adj: adj, stage: stage, seen: map[NodeID]bool{}}
}

func (a *assertingPathNodeSource) Next() (PathNode, bool, error) {
	pn, ok, err := a.upstream.Next()
	if err != nil || !ok {
		return pn, ok, err
	}
	if len(a.tracker.EvidenceOf(pn.ID)) == 0 {
		return PathNode{}, false, newPipelineError(InvariantViolation, a.stage,
			errMalformed("node %d emitted with no attributed evidence", pn.ID))
	}
	a.seen[pn.ID] = true
	for _, succ := range a.adj.Successors(pn.ID) {
		if succ == pn.ID {
			return PathNode{}, false, newPipelineError(InvariantViolation, a.stage,
				errMalformed("node %d has a self-successor edge", pn.ID))
		}
	}
	return pn, true, nil
}

// Pipeline is one fully-wired (reference index, direction) assembly run: the
// concrete stage chain from doc.go's ASCII diagram, sharing one idArena and
// EvidenceTracker end to end.
type Pipeline struct {
	cfg       Config
	gate      *PerContigGate
	tracker   *EvidenceTracker
	adj       *Adjacency
	assembler *ContigAssembler

	support  *SupportNodeStage
	agg      *AggregateStage
	pn       *PathNodeStage
	collapse *CollapseStage
	simplify *SimplifyStage
	trace    *StageTracer
}

// NewPipeline wires EvidenceSource through PerContigGate, SupportNodeStage,
// AggregateStage, PathNodeStage, CollapseStage, SimplifyStage, and
// ContigAssembler, all scoped to referenceIdx and direction. Collapse and
// Simplify always run (§4.4, §4.5 are not independently switchable); what
// pathNodeSource buys is the ability to point ContigAssembler at any of
// PathNodeStage, CollapseStage, or SimplifyStage without it knowing which.
func NewPipeline(upstream EvidenceSource, referenceIdx int32, direction Direction, cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dir := direction
	gate := NewPerContigGate(upstream, referenceIdx, &dir)
	support := NewSupportNodeStage(gate, cfg)

	tracker := NewEvidenceTracker(cfg.DebugAssertions)
	arena := &idArena{}
	agg := NewAggregateStage(support, tracker, arena)

	adj := NewAdjacency()
	pn := NewPathNodeStage(agg, tracker, arena, adj, cfg)

	var src pathNodeSource = pn
	if cfg.DebugAssertions {
		src = newAssertingPathNodeSource(src, tracker, adj, "PathNodeStage")
	}

	collapse := NewCollapseStage(src, tracker, adj, cfg)
	src = pathNodeSource(collapse)
	if cfg.DebugAssertions {
		src = newAssertingPathNodeSource(src, tracker, adj, "CollapseStage")
	}

	simplify := NewSimplifyStage(src, tracker, adj, cfg)
	src = pathNodeSource(simplify)
	if cfg.DebugAssertions {
		src = newAssertingPathNodeSource(src, tracker, adj, "SimplifyStage")
	}

	assembler := NewContigAssembler(src, tracker, adj, cfg, referenceIdx, direction)
	return &Pipeline{
		cfg: cfg, gate: gate, tracker: tracker, adj: adj, assembler: assembler,
		support: support, agg: agg, pn: pn, collapse: collapse, simplify: simplify,
		trace: NewStageTracer(),
	}, nil
}

// Next returns the next assembled contig, or ok=false once this
// (referenceIdx, direction) pipeline is exhausted. Every call records one
// trace row per stage (§6's "Optional side output"), regardless of whether a
// contig was actually produced this call, so the trace reflects every pass
// of ContigAssembler's window loop.
func (p *Pipeline) Next() (Contig, bool, error) {
	c, ok, err := p.assembler.Next()
	p.recordTrace()
	return c, ok, err
}

// recordTrace appends each stage's current throughput snapshot to the
// pipeline's trace, keyed to the assembler's current window frontier.
func (p *Pipeline) recordTrace() {
	pos := p.assembler.frontier
	stages := []struct {
		name string
		s    interface{ traceCounts() (int, int, int) }
	}{
		{"SupportNodeStage", p.support},
		{"AggregateStage", p.agg},
		{"PathNodeStage", p.pn},
		{"CollapseStage", p.collapse},
		{"SimplifyStage", p.simplify},
		{"ContigAssembler", p.assembler},
	}
	for _, st := range stages {
		in, out, open := st.s.traceCounts()
		p.trace.Record(st.name, in, out, open, pos)
	}
}

// Pending reports any evidence PerContigGate buffered for the next reference
// index, so the driver can seed the next Pipeline without losing it. Only
// meaningful after Next has returned ok=false.
func (p *Pipeline) Pending() (Evidence, bool) {
	return p.gate.Pending()
}
