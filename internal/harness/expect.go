package harness

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/splitwrite/internal/engine"
	"github.com/roach88/splitwrite/internal/ir"
)

// checkExpect compares a step outcome with its expect clause and returns one
// message per mismatch. A step without an expect clause must succeed.
func checkExpect(step Step, out stepOutcome, rollbackOnly bool) []string {
	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}

	var msgs []string
	if exp.RollbackOnly != nil && *exp.RollbackOnly != rollbackOnly {
		msgs = append(msgs, fmt.Sprintf("rollback_only: expected %t, got %t", *exp.RollbackOnly, rollbackOnly))
	}

	if exp.Error == "" {
		if out.err != nil {
			return append(msgs, fmt.Sprintf("unexpected error: %v", out.err))
		}
		return append(msgs, checkSuccess(exp, out)...)
	}

	if out.err == nil {
		return append(msgs, fmt.Sprintf("expected error %s, got success", exp.Error))
	}
	var ce *engine.ConsistencyError
	if !errors.As(out.err, &ce) {
		return append(msgs, fmt.Sprintf("expected error %s, got %v", exp.Error, out.err))
	}
	return append(msgs, checkError(exp, ce)...)
}

func checkSuccess(exp *Expect, out stepOutcome) []string {
	var msgs []string
	if exp.Rows != nil && *exp.Rows != out.rows {
		msgs = append(msgs, fmt.Sprintf("rows: expected %d, got %d", *exp.Rows, out.rows))
	}
	if exp.Counts != nil && !slices.Equal(exp.Counts, out.counts) {
		msgs = append(msgs, fmt.Sprintf("counts: expected %v, got %v", exp.Counts, out.counts))
	}
	if exp.Records != nil {
		if len(exp.Records) != len(out.records) {
			msgs = append(msgs, fmt.Sprintf("records: expected %d, got %d", len(exp.Records), len(out.records)))
		} else {
			for i := range exp.Records {
				if !recordMatches(exp.Records[i], out.records[i]) {
					msgs = append(msgs, fmt.Sprintf("records[%d]: expected %v, got %v", i, exp.Records[i], out.records[i]))
				}
			}
		}
	}
	return msgs
}

func checkError(exp *Expect, ce *engine.ConsistencyError) []string {
	var msgs []string
	if string(ce.Code) != exp.Error {
		return []string{fmt.Sprintf("expected error %s, got %v", exp.Error, ce)}
	}
	if exp.Index != nil && *exp.Index != ce.Index {
		msgs = append(msgs, fmt.Sprintf("index: expected %d, got %d", *exp.Index, ce.Index))
	}
	if exp.Indices != nil && !slices.Equal(exp.Indices, ce.Indices) {
		msgs = append(msgs, fmt.Sprintf("indices: expected %v, got %v", exp.Indices, ce.Indices))
	}
	if exp.Identity != nil && !sameIdentity(exp.Identity, ce.Identity) {
		msgs = append(msgs, fmt.Sprintf("identity: expected %v, got %v", exp.Identity, ce.Identity))
	}
	if exp.Parent != nil && *exp.Parent != ce.Parent {
		msgs = append(msgs, fmt.Sprintf("parent: expected %d, got %d", *exp.Parent, ce.Parent))
	}
	if exp.Child != nil && *exp.Child != ce.Child {
		msgs = append(msgs, fmt.Sprintf("child: expected %d, got %d", *exp.Child, ce.Child))
	}
	if exp.Side != "" && exp.Side != ce.Side {
		msgs = append(msgs, fmt.Sprintf("side: expected %q, got %q", exp.Side, ce.Side))
	}
	return msgs
}

// sameIdentity compares identities by key, so 7 and int64(7) match.
func sameIdentity(expected, actual any) bool {
	if actual == nil {
		return false
	}
	ek, err := ir.IdentityKey(expected)
	if err != nil {
		return false
	}
	ak, err := ir.IdentityKey(actual)
	if err != nil {
		return false
	}
	return ek == ak
}

// recordMatches compares a decoded record with an expected map by canonical
// encoding. Both must have exactly the same fields.
func recordMatches(expected map[string]any, actual ir.Record) bool {
	eb, err := ir.MarshalCanonical(expected)
	if err != nil {
		return false
	}
	ab, err := ir.MarshalCanonical(actual)
	if err != nil {
		return false
	}
	return string(eb) == string(ab)
}
