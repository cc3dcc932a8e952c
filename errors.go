package medley

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, matching spec §7 one-for-one. Wrap with fmt.Errorf
// and "%w" to attach context; callers use errors.Is to classify.
var (
	// ErrDirectiveSyntax is returned for any malformed directive string:
	// empty group, empty field name, "%" not followed by digits, or "&"
	// appearing anywhere but the first character of a group.
	ErrDirectiveSyntax = errors.New("medley: directive syntax error")

	// ErrDirectiveEmpty is returned when a directive parses to zero
	// alternatives.
	ErrDirectiveEmpty = errors.New("medley: directive has zero alternatives")

	// ErrClusterOutOfMemory names the condition where ClusterBuilder
	// cannot keep its edge table in memory. BuildClusters does not detect
	// allocation failure and never returns it; its error result is always
	// nil.
	ErrClusterOutOfMemory = errors.New("medley: cluster builder out of memory")

	// ErrIndexIO is returned when the underlying SortedStore fails to
	// open, write, or publish (rename) an index.
	ErrIndexIO = errors.New("medley: index I/O error")

	// ErrMissingIndex is returned when a query references an index path
	// that does not exist.
	ErrMissingIndex = errors.New("medley: referenced index does not exist")
)

// DirectiveError decorates ErrDirectiveSyntax/ErrDirectiveEmpty with the
// offending input and a human-readable reason.
type DirectiveError struct {
	Input  string
	Reason string
	kind   error
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("%s: %s (input %q)", e.kind, e.Reason, e.Input)
}

func (e *DirectiveError) Unwrap() error { return e.kind }

func newDirectiveSyntaxError(input, reason string) *DirectiveError {
	return &DirectiveError{Input: input, Reason: reason, kind: ErrDirectiveSyntax}
}

func newDirectiveEmptyError(input string) *DirectiveError {
	return &DirectiveError{Input: input, Reason: "zero alternatives", kind: ErrDirectiveEmpty}
}

// IndexLookupOverflow is a non-fatal warning: a single-key fanout exceeded
// a configured soft ceiling. It is attached to a QueryReport, never
// returned as a hard error from the core engine.
type IndexLookupOverflow struct {
	Key    string
	Index  string
	Fanout int
	Limit  int
}

func (w IndexLookupOverflow) String() string {
	return fmt.Sprintf("lookup overflow on %s[%s]: fanout %d exceeds limit %d", w.Index, w.Key, w.Fanout, w.Limit)
}

// clampEditDistance applies spec §4.4's "maxEditDistance is clamped to
// max(0, requested)" rule. Negative input is not an error (spec §7,
// InvalidEditDistance: "negative input is clamped to zero, not an error").
func clampEditDistance(requested int) int {
	if requested < 0 {
		return 0
	}
	return requested
}
