package assembly

// SupportNode is a single (evidence, kmerOffset) -> (kmer, weight,
// positionInterval, referenceFlag) tuple, per §3.
type SupportNode struct {
	Kmer          Kmer
	Weight        float64
	Interval      Interval
	ReferenceFlag bool
	EvidenceID    EvidenceID
	Offset        int
}

// supportCandidate is one evidence's live kmerizing state: the bookkeeping
// SupportNodeStage needs to peek its next emittable SupportNode without
// consuming it, so the stage can merge several evidences' streams in
// position order.
type supportCandidate struct {
	ev         Evidence
	evidenceID EvidenceID
	kz         *kmerizer
	ignoreLo   int // first valid offset (inclusive), for pair-anchor end-trimming
	ignoreHi   int // last valid offset (inclusive)
	exhausted  bool
	cur        SupportNode
}

// SupportNodeStage converts one reference index and direction's gated
// evidence stream into a position-sorted SupportNode stream (§4.1).
type SupportNodeStage struct {
	upstream *PerContigGate
	cfg      Config
	evArena  EvidenceID

	peeked    *Evidence
	peekedOk  bool
	peekedErr error
	havePeek  bool

	active []*supportCandidate

	pulled, produced int
}

// NewSupportNodeStage builds a SupportNodeStage pulling from upstream.
func NewSupportNodeStage(upstream *PerContigGate, cfg Config) *SupportNodeStage {
	return &SupportNodeStage{upstream: upstream, cfg: cfg}
}

func (s *SupportNodeStage) peekUpstream() (Evidence, bool, error) {
	if !s.havePeek {
		ev, ok, err := s.upstream.Next()
		s.peeked, s.peekedOk, s.peekedErr = &ev, ok, err
		s.havePeek = true
	}
	return *s.peeked, s.peekedOk, s.peekedErr
}

func (s *SupportNodeStage) consumePeek() {
	s.havePeek = false
	s.peeked = nil
}

// admitCandidate pulls evidence into a new candidate with its first
// emittable SupportNode precomputed, or returns ok=false if the evidence
// yields no kmers at all (too short, e.g.).
func (s *SupportNodeStage) admitCandidate(ev Evidence) (*supportCandidate, bool) {
	s.evArena++
	ev.ID = s.evArena

	if ev.Kind == PairAnchor && !s.cfg.IncludePairAnchors {
		return nil, false
	}

	k := s.cfg.KmerLength
	L := len(ev.ReadBases)
	c := &supportCandidate{
		ev:         ev,
		evidenceID: ev.ID,
		kz:         newKmerizer(k),
		ignoreLo:   0,
		ignoreHi:   L - k,
	}
	if ev.Kind == PairAnchor {
		ignore := s.cfg.PairAnchorMismatchIgnoreEndBases
		c.ignoreLo = ignore
		c.ignoreHi = L - k - ignore
	}
	c.kz.reset(ev.ReadBases)
	if !s.advanceCandidate(c) {
		return nil, false
	}
	return c, true
}

// advanceCandidate scans forward to the next valid, non-skipped offset and
// fills c.cur. Returns false if the candidate is exhausted.
func (s *SupportNodeStage) advanceCandidate(c *supportCandidate) bool {
	for c.kz.scan() {
		off := c.kz.offset()
		if off < c.ignoreLo || off > c.ignoreHi {
			continue
		}
		c.cur = s.buildSupportNode(c, off)
		return true
	}
	c.exhausted = true
	return false
}

func (s *SupportNodeStage) buildSupportNode(c *supportCandidate, off int) SupportNode {
	ev := c.ev
	k := s.cfg.KmerLength
	iv := ev.SupportInterval().Shift(RefPos(off))

	var refFlag bool
	switch ev.Kind {
	case SoftClip:
		switch ev.Direction {
		case Forward:
			refFlag = off+k <= ev.AnchorLength
		case Backward:
			refFlag = off >= len(ev.ReadBases)-ev.AnchorLength
		}
	case PairAnchor:
		refFlag = false
	}

	var weight float64
	quals := ev.BaseQualities[off : off+k]
	for _, q := range quals {
		w := int(q) - s.cfg.QualityEpsilon
		if w < 1 {
			w = 1
		}
		weight += float64(w)
	}

	return SupportNode{
		Kmer:          c.kz.kmer(),
		Weight:        weight,
		Interval:      iv,
		ReferenceFlag: refFlag,
		EvidenceID:    c.evidenceID,
		Offset:        off,
	}
}

// Next returns the next SupportNode in (interval.Start, kmer) order, or
// ok=false at end of stream.
func (s *SupportNodeStage) Next() (SupportNode, bool, error) {
	for {
		// Admit new candidates while doing so could still change the
		// minimum: a not-yet-pulled evidence's earliest possible kmer starts
		// at its own Start, so once that exceeds our current minimum, no
		// future evidence can beat it either.
		for {
			peeked, ok, err := s.peekUpstream()
			if err != nil {
				return SupportNode{}, false, err
			}
			if !ok {
				break
			}
			if len(s.active) > 0 && peeked.Start > s.minIntervalStart() {
				break
			}
			s.consumePeek()
			s.pulled++
			if c, admitted := s.admitCandidate(peeked); admitted {
				s.active = append(s.active, c)
			}
		}

		if len(s.active) == 0 {
			return SupportNode{}, false, nil
		}

		idx := s.minCandidateIdx()
		c := s.active[idx]
		out := c.cur
		if !s.advanceCandidate(c) {
			s.active = append(s.active[:idx], s.active[idx+1:]...)
		}
		s.produced++
		return out, true, nil
	}
}

// traceCounts reports evidence pulled from upstream, SupportNodes produced,
// and the number of evidence candidates still being kmerized.
func (s *SupportNodeStage) traceCounts() (in, out, open int) {
	return s.pulled, s.produced, len(s.active)
}

func (s *SupportNodeStage) minIntervalStart() RefPos {
	return s.active[s.minCandidateIdx()].cur.Interval.Start
}

func (s *SupportNodeStage) minCandidateIdx() int {
	best := 0
	for i := 1; i < len(s.active); i++ {
		a, b := s.active[i].cur, s.active[best].cur
		if a.Interval.Start < b.Interval.Start ||
			(a.Interval.Start == b.Interval.Start && a.Kmer < b.Kmer) {
			best = i
		}
	}
	return best
}
