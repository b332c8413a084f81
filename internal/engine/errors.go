package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/splitwrite/internal/runner"
)

// ConsistencyError represents a failure detected by the engine.
//
// Consistency errors include:
//   - Insufficient isolation: the ambient transaction is too weak (before any write)
//   - Optimistic lock failure: a versioned statement matched no row
//   - Row-count mismatch: base and extension statements touched different row counts
//   - Read-side violations: missing identities, orphaned or unmatched rows
//   - Execution faults: the runner failed (connectivity, constraint, timeout)
//
// ConsistencyError includes structured fields for diagnostics: tests and
// operators can pinpoint the divergence without re-running the operation.
type ConsistencyError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description with concrete numbers.
	Message string

	// OpID correlates the error with the operation's log lines.
	OpID string

	// Operation is the engine entry point (split, batch, merge).
	Operation string

	// Carrier is the short fingerprint of the carrier involved, if any.
	Carrier string

	// Side is "base" or "extension" when one half is implicated.
	Side string

	// Index is the first offending batch element or row, or -1.
	Index int

	// Indices lists every offending batch element or row.
	Indices []int

	// Identity is the logical identity of the offending row, when known.
	Identity any

	// Parent and Child are the base-table and extension-table counts.
	Parent int64
	Child  int64

	// Cause is the underlying error (e.g. *runner.ExecutionFault).
	Cause error

	// RollbackErr is set when marking the transaction rollback-only failed.
	// It never replaces the original error.
	RollbackErr error
}

// ErrorCode categorizes consistency errors.
type ErrorCode string

const (
	// ErrCodeInsufficientIsolation indicates no transaction, or one weaker than read committed.
	ErrCodeInsufficientIsolation ErrorCode = "INSUFFICIENT_ISOLATION"

	// ErrCodeOptimisticLock indicates a versioned statement affected zero rows.
	ErrCodeOptimisticLock ErrorCode = "OPTIMISTIC_LOCK_FAILURE"

	// ErrCodeSplitRowCountMismatch indicates base and extension row counts differ.
	ErrCodeSplitRowCountMismatch ErrorCode = "SPLIT_ROW_COUNT_MISMATCH"

	// ErrCodeBatchLengthMismatch indicates the two batches returned different element counts.
	ErrCodeBatchLengthMismatch ErrorCode = "BATCH_LENGTH_MISMATCH"

	// ErrCodeBatchElementMismatch indicates per-element counts differ at some index.
	ErrCodeBatchElementMismatch ErrorCode = "BATCH_ELEMENT_MISMATCH"

	// ErrCodeMissingIdentity indicates a projected row without an identity value.
	ErrCodeMissingIdentity ErrorCode = "MISSING_IDENTITY"

	// ErrCodeOrphanedExtensionRow indicates an extension row with no base row.
	ErrCodeOrphanedExtensionRow ErrorCode = "ORPHANED_EXTENSION_ROW"

	// ErrCodeProjectionCountMismatch indicates base rows that never got an extension row.
	ErrCodeProjectionCountMismatch ErrorCode = "PROJECTION_COUNT_MISMATCH"

	// ErrCodeDuplicateIdentity indicates the same identity twice on one side of a merge.
	ErrCodeDuplicateIdentity ErrorCode = "DUPLICATE_IDENTITY"

	// ErrCodeDecodeFailure indicates a projected row could not be decoded.
	ErrCodeDecodeFailure ErrorCode = "DECODE_FAILURE"

	// ErrCodeMixedVersionPredicate indicates exactly one side is versioned under strict versioning.
	ErrCodeMixedVersionPredicate ErrorCode = "MIXED_VERSION_PREDICATE"

	// ErrCodeExecutionFault indicates the runner failed to execute a statement.
	ErrCodeExecutionFault ErrorCode = "EXECUTION_FAULT"
)

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)

	var ctx []string
	if e.Operation != "" {
		ctx = append(ctx, "op="+e.Operation)
	}
	if e.OpID != "" {
		ctx = append(ctx, "op_id="+e.OpID)
	}
	if e.Carrier != "" {
		ctx = append(ctx, "carrier="+e.Carrier)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if e.RollbackErr != nil {
		fmt.Fprintf(&b, "; mark rollback-only failed: %v", e.RollbackErr)
	}
	return b.String()
}

// Unwrap returns the underlying cause so errors.As reaches runner faults.
func (e *ConsistencyError) Unwrap() error {
	return e.Cause
}

// CodeOf returns the code of the first *ConsistencyError in err's chain,
// or "" when there is none.
func CodeOf(err error) ErrorCode {
	var ce *ConsistencyError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsInsufficientIsolation returns true if the error is an isolation precondition failure.
func IsInsufficientIsolation(err error) bool {
	return CodeOf(err) == ErrCodeInsufficientIsolation
}

// IsOptimisticLock returns true if the error is a lost-update failure.
// Callers typically re-read and retry at a higher level.
func IsOptimisticLock(err error) bool {
	return CodeOf(err) == ErrCodeOptimisticLock
}

// IsMismatch returns true if base and extension tables diverged during a write.
func IsMismatch(err error) bool {
	switch CodeOf(err) {
	case ErrCodeSplitRowCountMismatch, ErrCodeBatchLengthMismatch, ErrCodeBatchElementMismatch:
		return true
	}
	return false
}

// IsReadConsistency returns true if a returning read found inconsistent projections.
func IsReadConsistency(err error) bool {
	switch CodeOf(err) {
	case ErrCodeMissingIdentity, ErrCodeOrphanedExtensionRow, ErrCodeProjectionCountMismatch,
		ErrCodeDuplicateIdentity, ErrCodeDecodeFailure:
		return true
	}
	return false
}

// IsExecutionFault returns true if the error wraps a runner failure.
// Uses errors.As to handle wrapped errors.
func IsExecutionFault(err error) bool {
	if CodeOf(err) == ErrCodeExecutionFault {
		return true
	}
	return runner.IsFault(err)
}

// newError builds a ConsistencyError with no index.
func newError(code ErrorCode, format string, args ...any) *ConsistencyError {
	return &ConsistencyError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Index:   -1,
	}
}
