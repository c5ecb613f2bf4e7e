package assembly

// PerContigGate restricts an EvidenceSource to a single reference index and,
// when a direction is configured, silently drops evidence with the other
// direction or with no usable breakend summary (§6 "Filters"). It also
// enforces the position-sort precondition (§4.1 "Fails if the input stream
// is not position-sorted within a reference index").
//
// On exhausting its reference index (seeing evidence for a different, larger
// index, or end of stream), Next returns ok=false and leaves the first
// evidence of the next index buffered so the outer driver can hand it to a
// fresh PerContigGate.
type PerContigGate struct {
	upstream     EvidenceSource
	referenceIdx int32
	direction    *Direction // nil means "no direction filter"

	lastStart RefPos
	haveLast  bool

	pending  *Evidence // buffered evidence for the *next* reference index
	upstreamDone bool
}

// NewPerContigGate creates a gate fixed to referenceIdx. If direction is
// non-nil, only evidence matching that direction is emitted.
func NewPerContigGate(upstream EvidenceSource, referenceIdx int32, direction *Direction) *PerContigGate {
	return &PerContigGate{upstream: upstream, referenceIdx: referenceIdx, direction: direction}
}

// Next returns the next evidence for this gate's reference index and
// direction, or ok=false once that index is exhausted.
func (g *PerContigGate) Next() (Evidence, bool, error) {
	for {
		var ev Evidence
		var ok bool
		var err error
		if g.pending != nil {
			ev, ok = *g.pending, true
		} else {
			if g.upstreamDone {
				return Evidence{}, false, nil
			}
			ev, ok, err = g.upstream.Next()
			if err != nil {
				return Evidence{}, false, err
			}
			if !ok {
				g.upstreamDone = true
				return Evidence{}, false, nil
			}
		}

		if ev.ReferenceIdx != g.referenceIdx {
			if ev.ReferenceIdx < g.referenceIdx {
				return Evidence{}, false, errMalformed(
					"evidence reference index %d precedes gate's %d: input not sorted",
					ev.ReferenceIdx, g.referenceIdx)
			}
			// Evidence belongs to a later reference index: buffer it for
			// whichever gate the driver opens next, and end this pipeline.
			g.pending = &ev
			return Evidence{}, false, nil
		}
		g.pending = nil

		if g.haveLast && ev.Start < g.lastStart {
			return Evidence{}, false, errMalformed(
				"evidence out of order within reference index %d: %d after %d",
				g.referenceIdx, ev.Start, g.lastStart)
		}
		g.lastStart = ev.Start
		g.haveLast = true

		if g.direction != nil && (!ev.hasBreakendSummary() || ev.Direction != *g.direction) {
			continue
		}
		return ev, true, nil
	}
}

// Pending reports the buffered next-reference-index evidence, if any, so the
// driver can seed the next gate without losing it.
func (g *PerContigGate) Pending() (Evidence, bool) {
	if g.pending == nil {
		return Evidence{}, false
	}
	return *g.pending, true
}
