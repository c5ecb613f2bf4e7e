package assembly

import "github.com/grailbio/base/log"

// largeCollapseLengthWarning is the MaxPathCollapseLength above which
// FullPathCollapse is logged as a potential performance hazard. Full-path
// collapse is worst-case exponential on repetitive sequence (see
// CollapseStage doc); we log a warning rather than invent a hard bound.
const largeCollapseLengthWarning = 12

// Direction is the breakend orientation an assembly pipeline was built for.
type Direction int

const (
	// Forward means the putative novel sequence continues to the right of
	// the reference anchor.
	Forward Direction = iota
	// Backward means the putative novel sequence continues to the left of
	// the reference anchor.
	Backward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Config carries every tunable of the assembly pipeline. Fields mirror the
// external-interface list in the specification; derived quantities are
// methods, not fields, so there is exactly one place that can disagree with
// itself. Compare fusion.Opts/fusion.DefaultOpts for the style this follows.
type Config struct {
	// KmerLength is k, the DNA word length used throughout the pipeline.
	// Must be odd and in [4, 31].
	KmerLength int

	// AnchorLength is added to MaxEvidenceSupportIntervalWidth to give the
	// distance ContigAssembler's input frontier must pass a root before that
	// root is assembled. It is not a minimum anchor size: a contig counts as
	// anchored with a single leading (Forward) or trailing (Backward)
	// reference-flagged kmer.
	AnchorLength int

	// MaxPathLength bounds the number of kmers folded into a single
	// KmerPathNode.
	MaxPathLength int

	// MaxPathCollapseLength bounds how far FullPathCollapse searches for a
	// convergent pair of divergent paths.
	MaxPathCollapseLength int

	// MaxBaseMismatchForCollapse is the maximum number of mismatching bases
	// tolerated between two paths before CollapseStage refuses to merge them.
	MaxBaseMismatchForCollapse int

	// CollapseBubblesOnly selects CollapseStage's mode: true restricts it to
	// bubble collapse (one divergent node per side; linear in graph size);
	// false enables FullPathCollapse (may be exponential on repetitive
	// input). Neither mode collapses leaves: only branches that reconverge
	// are merged.
	CollapseBubblesOnly bool

	// IncludePairAnchors enables discordant read-pair evidence in
	// SupportNodeStage. When false, only soft-clip evidence is used.
	IncludePairAnchors bool

	// PairAnchorMismatchIgnoreEndBases is the number of kmer start-offsets
	// skipped at each end of a pair-anchor read, taken literally per the
	// specification's open question (b): exactly "skip this many bases at
	// each end", no further semantics.
	PairAnchorMismatchIgnoreEndBases int

	// MinConcordantFragmentSize and MaxConcordantFragmentSize bound the
	// library's expected fragment size; their difference drives
	// MaxKmerSupportIntervalWidth.
	MinConcordantFragmentSize int
	MaxConcordantFragmentSize int

	// MaxReadLength bounds the longest read the pipeline must accept; it
	// drives MaxEvidenceSupportIntervalWidth and buffer pre-sizing.
	MaxReadLength int

	// QualityEpsilon is subtracted from each base quality before it is
	// floored at 1 and summed into a SupportNode's weight (Sigma
	// max(1, q_b - QualityEpsilon)). Zero reproduces the formula literally.
	QualityEpsilon int

	// DebugAssertions enables the consistency interceptor on the output of
	// PathNodeStage, CollapseStage and SimplifyStage (see pipeline.go). Off
	// by default; tests turn it on because the extra checking is pure
	// overhead in production.
	DebugAssertions bool

	// Recovery selects the outer driver's failure policy: false is strict
	// mode (re-raise and stop), true is recovery mode (skip to the next
	// reference index). See §7 of the design: recovery is opt-in.
	Recovery bool

	// ExportDir, if non-empty, makes the driver write one
	// positional-<contig>-<direction>.tsv per pipeline (optionally gzipped if
	// the computed path ends in ".gz").
	ExportDir string

	// ExportGzip gzips the export TSV when true.
	ExportGzip bool
}

// DefaultConfig holds the parameter values this pipeline ships with absent
// any caller override.
var DefaultConfig = Config{
	KmerLength:                        25,
	AnchorLength:                      50,
	MaxPathLength:                     256,
	MaxPathCollapseLength:             6,
	MaxBaseMismatchForCollapse:        1,
	CollapseBubblesOnly:               true,
	IncludePairAnchors:                true,
	PairAnchorMismatchIgnoreEndBases:  4,
	MinConcordantFragmentSize:         50,
	MaxConcordantFragmentSize:         500,
	MaxReadLength:                     300,
	QualityEpsilon:                    0,
	DebugAssertions:                   false,
	Recovery:                          false,
}

// MaxKmerSupportIntervalWidth is maxConcordantFragmentSize -
// minConcordantFragmentSize + 1: the number of distinct start positions a
// pair-anchor kmer occurrence may plausibly fall within.
func (c Config) MaxKmerSupportIntervalWidth() int {
	return c.MaxConcordantFragmentSize - c.MinConcordantFragmentSize + 1
}

// MaxEvidenceSupportIntervalWidth is
// MaxKmerSupportIntervalWidth + MaxReadLength - KmerLength + 2: the window
// ContigAssembler keeps open behind the input frontier to guarantee no
// future evidence can still extend a live node.
func (c Config) MaxEvidenceSupportIntervalWidth() int {
	return c.MaxKmerSupportIntervalWidth() + c.MaxReadLength - c.KmerLength + 2
}

// validate checks the invariants the external interface places on Config and
// logs a non-fatal warning for parameters known to be hazardous rather than
// incorrect.
func (c Config) validate() error {
	if c.KmerLength < 4 || c.KmerLength > maxKmerLength {
		return errInvalidConfig("KmerLength out of [4, %d]: %d", maxKmerLength, c.KmerLength)
	}
	if c.KmerLength%2 == 0 {
		return errInvalidConfig("KmerLength must be odd: %d", c.KmerLength)
	}
	if c.MaxPathLength <= 0 {
		return errInvalidConfig("MaxPathLength must be positive: %d", c.MaxPathLength)
	}
	if c.MaxConcordantFragmentSize < c.MinConcordantFragmentSize {
		return errInvalidConfig("MaxConcordantFragmentSize(%d) < MinConcordantFragmentSize(%d)",
			c.MaxConcordantFragmentSize, c.MinConcordantFragmentSize)
	}
	if !c.CollapseBubblesOnly && c.MaxPathCollapseLength > largeCollapseLengthWarning {
		log.Error.Printf("assembly: MaxPathCollapseLength=%d with FullPathCollapse enabled; "+
			"collapse time is worst-case exponential on repetitive sequence", c.MaxPathCollapseLength)
	}
	return nil
}
