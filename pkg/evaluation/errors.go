package evaluation

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure within the compliance pipeline.
// Each layer either handles the known kinds or converts unknown failures
// into KindInternal with a provenance trail.
type ErrorKind string

const (
	// KindValidation: the contract violates construction invariants.
	KindValidation ErrorKind = "validation"
	// KindDependencyUnavailable: an evaluator's external capability is
	// missing and mock fallback is disabled.
	KindDependencyUnavailable ErrorKind = "dependency_unavailable"
	// KindInternal: an unexpected failure inside an evaluator.
	KindInternal ErrorKind = "internal"
	// KindPolicyEngine: unreachable engine, timeout, or malformed output.
	KindPolicyEngine ErrorKind = "policy_engine"
	// KindNoMatchingPolicy: the policy selector matched no folders.
	KindNoMatchingPolicy ErrorKind = "no_matching_policy"
	// KindReport: report projection failed.
	KindReport ErrorKind = "report"
)

// Error is the tagged error used across layer boundaries.
type Error struct {
	Kind ErrorKind
	Op   string // originating operation, e.g. "pipeline.Evaluate"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind and operation tag.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a tagged error from a format string.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from err, or KindInternal when untagged.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
