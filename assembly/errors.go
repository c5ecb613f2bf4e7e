package assembly

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Kind classifies a pipeline failure per the error-handling design: each
// kind determines how the outer driver (driver.go) reacts.
type Kind int

const (
	// MalformedInput: evidence missing required fields, or out of
	// (referenceIndex, start) sort order. Fatal to the current pipeline.
	MalformedInput Kind = iota
	// InvariantViolation: a tracker/stage consistency check failed under
	// Config.DebugAssertions. Fatal.
	InvariantViolation
	// ResourceFailure: the export tracker failed to write. Logged at debug;
	// the pipeline continues without export.
	ResourceFailure
	// AssemblyFailure: any other failure while assembling a given contig.
	AssemblyFailure
)

func (k Kind) String() string {
	switch k {
	case MalformedInput:
		return "malformed input"
	case InvariantViolation:
		return "invariant violation"
	case ResourceFailure:
		return "resource failure"
	case AssemblyFailure:
		return "assembly failure"
	default:
		return "unknown"
	}
}

// PipelineError wraps an underlying error with the Kind the driver needs to
// decide strict-vs-recovery handling, and the reference index the pipeline
// was processing when it failed.
type PipelineError struct {
	Kind          Kind
	ReferenceName string
	Err           error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("assembly: %s: %s: %v", e.ReferenceName, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func newPipelineError(kind Kind, refName string, err error) *PipelineError {
	return &PipelineError{Kind: kind, ReferenceName: refName, Err: err}
}

// recoverable reports whether a failure of this kind may be skipped in
// recovery mode; failures of the other kinds always terminate processing.
// driver.go applies recovery to each recoverable failure on its own: a
// pipeline that fails after an earlier pipeline was recovered is recovered
// the same way, with no limit on how many times that happens.
func (k Kind) recoverable() bool {
	return k == AssemblyFailure || k == InvariantViolation
}

func errInvalidConfig(format string, args ...interface{}) error {
	return errors.E(fmt.Sprintf("invalid assembly config: "+format, args...))
}

func errMalformed(format string, args ...interface{}) error {
	return errors.E(fmt.Sprintf(format, args...))
}
