package assembly

import (
	"errors"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestKindStringAndRecoverable(t *testing.T) {
	cases := []struct {
		kind        Kind
		str         string
		recoverable bool
	}{
		{MalformedInput, "malformed input", false},
		{InvariantViolation, "invariant violation", true},
		{ResourceFailure, "resource failure", false},
		{AssemblyFailure, "assembly failure", true},
	}
	for _, c := range cases {
		expect.EQ(t, c.kind.String(), c.str)
		expect.EQ(t, c.kind.recoverable(), c.recoverable)
	}
}

func TestPipelineErrorFormatsAndUnwraps(t *testing.T) {
	inner := errMalformed("bad offset %d", 7)
	pe := newPipelineError(AssemblyFailure, "chr1", inner)

	got := pe.Error()
	expect.True(t, strings.HasPrefix(got, "assembly: chr1: assembly failure: "))
	expect.True(t, strings.Contains(got, "bad offset 7"))
	expect.EQ(t, errors.Unwrap(pe), inner)
}
