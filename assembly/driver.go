package assembly

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/pkg/errors"
)

// ContigBatch is one reference index's assembled output, grouped by
// direction. Forward and Backward pipelines over the same reference index
// share no mutable state (§5) and are assembled independently; either may be
// empty if recovery mode discarded a failing pipeline.
type ContigBatch struct {
	ReferenceIdx int32
	Forward      []Contig
	Backward     []Contig
}

// Driver runs the outer per-(referenceIndex, direction) loop of §5/§7: each
// reference index gets one refIndexBuffer fanning its evidence out to an
// independent Forward and Backward Pipeline, run concurrently via
// traverse.Each, mirroring pileup/snp/pileup.go's parallel-shard main loop.
type Driver struct {
	cfg Config
}

// NewDriver creates a Driver that applies cfg to every pipeline it builds.
func NewDriver(cfg Config) *Driver { return &Driver{cfg: cfg} }

// Run drives upstream to exhaustion and returns every reference index's
// batch, in index order.
func (d *Driver) Run(ctx context.Context, upstream EvidenceSource) ([]ContigBatch, error) {
	var batches []ContigBatch
	err := d.RunEach(ctx, upstream, func(b ContigBatch) error {
		batches = append(batches, b)
		return nil
	})
	return batches, err
}

// RunEach drives upstream to exhaustion, invoking fn once per reference
// index, in index order, with that index's assembled batch. In strict mode
// (Config.Recovery == false) the first AssemblyFailure or InvariantViolation
// from either direction's pipeline aborts RunEach entirely; in recovery mode
// that direction's contigs are simply omitted from its batch and RunEach
// continues at the next reference index (§7).
func (d *Driver) RunEach(ctx context.Context, upstream EvidenceSource, fn func(ContigBatch) error) error {
	var pending *Evidence
	for {
		var first Evidence
		if pending != nil {
			first = *pending
			pending = nil
		} else {
			ev, ok, err := upstream.Next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			first = ev
		}
		refIdx := first.ReferenceIdx
		buf := newRefIndexBuffer(upstream, refIdx, first)

		batch, err := d.assembleIndex(ctx, refIdx, buf)
		if err != nil {
			return err
		}
		// A pipeline discarded in recovery mode may have stopped reading
		// before the reference index boundary: skip the rest of this index.
		for {
			_, ok, err := buf.next(0)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
		}
		if p, ok := buf.Pending(); ok {
			pending = &p
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
}

// assembleIndex runs the Forward and Backward pipelines for one reference
// index concurrently, each reading through its own tap on buf.
func (d *Driver) assembleIndex(ctx context.Context, refIdx int32, buf *refIndexBuffer) (ContigBatch, error) {
	directions := [2]Direction{Forward, Backward}
	results := [2][]Contig{}

	runErr := traverse.Each(len(directions), func(i int) (err error) {
		dir := directions[i]
		defer func() {
			if r := recover(); r != nil {
				pe := newPipelineError(AssemblyFailure, fmt.Sprintf("ref %d/%s", refIdx, dir), errMalformed("panic: %v", r))
				if d.cfg.Recovery {
					log.Error.Printf("assembly: %v; resuming at reference index %d", pe, refIdx+1)
					err = nil
					return
				}
				err = errors.Wrapf(pe, "assembling ref %d/%s", refIdx, dir)
			}
		}()

		tap := buf.tap(i)
		contigs, runErr := d.runOnePipeline(ctx, refIdx, dir, tap)
		if runErr == nil {
			results[i] = contigs
			return nil
		}

		if pe, ok := errors.Cause(runErr).(*PipelineError); ok && d.cfg.Recovery && pe.Kind.recoverable() {
			resumeAt := "end of input"
			if end, ok := buf.MaxObservedEnd(); ok {
				resumeAt = fmt.Sprintf("position %d", end+1)
			}
			log.Error.Printf("assembly: %v; resuming at reference index %d, %s", pe, refIdx+1, resumeAt)
			return nil
		}
		return runErr
	})
	if runErr != nil {
		return ContigBatch{}, runErr
	}
	return ContigBatch{ReferenceIdx: refIdx, Forward: results[0], Backward: results[1]}, nil
}

// runOnePipeline assembles one (referenceIdx, direction) pipeline to
// exhaustion and, if Config.ExportDir is set, writes its accumulated
// per-stage positional trace.
func (d *Driver) runOnePipeline(ctx context.Context, refIdx int32, dir Direction, src EvidenceSource) ([]Contig, error) {
	pl, err := NewPipeline(src, refIdx, dir, d.cfg)
	if err != nil {
		return nil, err
	}

	var contigs []Contig
	for {
		c, ok, nerr := pl.Next()
		if nerr != nil {
			return contigs, nerr
		}
		if !ok {
			break
		}
		contigs = append(contigs, c)
	}

	if d.cfg.ExportDir != "" {
		path := exportPath(d.cfg.ExportDir, fmt.Sprintf("ref%d", refIdx), dir, d.cfg.ExportGzip)
		if werr := pl.trace.WriteCSV(ctx, path, d.cfg.ExportGzip); werr != nil {
			log.Debug.Printf("assembly: export write to %s failed (continuing without export): %v", path, werr)
		}
	}
	return contigs, nil
}

// refIndexBuffer fans one reference index's evidence stream out to the
// independent Forward and Backward readers a Driver runs over it (§5's "share
// no mutable state" read concurrently from one forward-only iterator). Each
// reader pulls at its own pace through a refIndexTap; raw evidence is kept
// only until both readers have passed it, so memory is bounded by the gap
// between the two readers' progress rather than by the size of the
// reference index.
type refIndexBuffer struct {
	mu           sync.Mutex
	upstream     EvidenceSource
	referenceIdx int32

	buf     []Evidence // buf[i] corresponds to global position base+i
	base    int
	readPos [2]int // next global position each reader (0=Forward, 1=Backward) will read

	done    bool // true once the reference index boundary (or end of stream) has been seen
	pending *Evidence

	haveMax bool
	maxEnd  RefPos

	err error
}

// newRefIndexBuffer creates a buffer for referenceIdx, seeded with first (the
// evidence already pulled off upstream to learn referenceIdx in the first
// place).
func newRefIndexBuffer(upstream EvidenceSource, referenceIdx int32, first Evidence) *refIndexBuffer {
	b := &refIndexBuffer{upstream: upstream, referenceIdx: referenceIdx}
	b.append(first)
	return b
}

func (b *refIndexBuffer) append(ev Evidence) {
	b.buf = append(b.buf, ev)
	if !b.haveMax || ev.End > b.maxEnd {
		b.haveMax, b.maxEnd = true, ev.End
	}
}

// tap returns an EvidenceSource reading b as reader i (0=Forward, 1=Backward).
func (b *refIndexBuffer) tap(i int) EvidenceSource { return &refIndexTap{buf: b, reader: i} }

// next serves the next item of this reference index to reader, pulling from
// upstream and detecting the index boundary at most once regardless of which
// reader triggers it, then trims the head of buf once both readers have
// passed it.
func (b *refIndexBuffer) next(reader int) (Evidence, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		idx := b.readPos[reader] - b.base
		if idx < len(b.buf) {
			ev := b.buf[idx]
			b.readPos[reader]++
			b.trimLocked()
			return ev, true, nil
		}
		if b.done {
			if b.err != nil {
				return Evidence{}, false, b.err
			}
			return Evidence{}, false, nil
		}

		ev, ok, err := b.upstream.Next()
		if err != nil {
			b.done, b.err = true, err
			return Evidence{}, false, err
		}
		if !ok {
			b.done = true
			continue
		}
		if ev.ReferenceIdx != b.referenceIdx {
			if ev.ReferenceIdx < b.referenceIdx {
				b.done, b.err = true, errMalformed(
					"evidence reference index %d precedes gate's %d: input not sorted",
					ev.ReferenceIdx, b.referenceIdx)
				return Evidence{}, false, b.err
			}
			b.done = true
			b.pending = &ev
			continue
		}
		b.append(ev)
	}
}

// trimLocked drops buffered items both readers have already consumed. Called
// with mu held.
func (b *refIndexBuffer) trimLocked() {
	low := b.readPos[0]
	if b.readPos[1] < low {
		low = b.readPos[1]
	}
	for low-b.base > 0 && len(b.buf) > 0 {
		b.buf = b.buf[1:]
		b.base++
	}
}

// Pending reports the first evidence of the next reference index, if the
// boundary has already been observed, so the driver can seed the next
// buffer without losing it.
func (b *refIndexBuffer) Pending() (Evidence, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return Evidence{}, false
	}
	return *b.pending, true
}

// MaxObservedEnd returns the greatest End seen across all evidence pulled
// through this buffer so far, for diagnostic "resuming at" messages.
func (b *refIndexBuffer) MaxObservedEnd() (RefPos, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxEnd, b.haveMax
}

// refIndexTap is one reader's view onto a refIndexBuffer.
type refIndexTap struct {
	buf    *refIndexBuffer
	reader int
}

func (t *refIndexTap) Next() (Evidence, bool, error) { return t.buf.next(t.reader) }
