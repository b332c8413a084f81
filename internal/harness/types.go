package harness

import (
	"errors"

	"github.com/roach88/splitwrite/internal/engine"
	"github.com/roach88/splitwrite/internal/ir"
)

// TraceEvent records the observable outcome of one step.
type TraceEvent struct {
	Step int    `json:"step"` // 1-based
	Name string `json:"name,omitempty"`
	Kind string `json:"kind"`

	Rows    *int64      `json:"rows,omitempty"`
	Counts  []int64     `json:"counts,omitempty"`
	Records []ir.Record `json:"records,omitempty"`

	Error *TraceError `json:"error,omitempty"`

	// RollbackOnly and Committed describe the step's transaction after the
	// engine call returned.
	RollbackOnly bool `json:"rollback_only"`
	Committed    bool `json:"committed"`
}

// TraceError is the structured part of a consistency error. The message is
// left out: it embeds carrier fingerprints and driver text.
type TraceError struct {
	Code     string `json:"code"`
	OpID     string `json:"op_id"`
	Side     string `json:"side,omitempty"`
	Index    int    `json:"index"`
	Indices  []int  `json:"indices,omitempty"`
	Identity any    `json:"identity,omitempty"`
	Parent   int64  `json:"parent"`
	Child    int64  `json:"child"`
}

// newTraceError extracts the structured fields of err. Errors that are not
// consistency errors are reported with an empty code.
func newTraceError(err error) *TraceError {
	if err == nil {
		return nil
	}
	var ce *engine.ConsistencyError
	if !errors.As(err, &ce) {
		return &TraceError{Index: -1}
	}
	return &TraceError{
		Code:     string(ce.Code),
		OpID:     ce.OpID,
		Side:     ce.Side,
		Index:    ce.Index,
		Indices:  ce.Indices,
		Identity: ce.Identity,
		Parent:   ce.Parent,
		Child:    ce.Child,
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step outcome to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
