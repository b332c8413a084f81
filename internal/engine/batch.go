package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/splitwrite/internal/ir"
	"github.com/roach88/splitwrite/internal/runner"
)

// errStopBatch halts a fail-fast batch from inside the element hook.
var errStopBatch = errors.New("batch stopped at optimistic lock failure")

// ExecuteBatchSplit runs a split write over many logical rows and returns
// one affected-row count per row.
//
// The first carrier's batch runs and every element is verified against its
// version predicate; lock failures stop the operation before the second
// carrier runs (BatchFailFast stops at the first failing element,
// BatchCollect reports all of them). The second batch is verified the same
// way, then the two count sequences are reconciled: a length difference is
// reported before any element comparison, and the first diverging element
// is reported by index and identity.
//
// Any failure after a statement took effect marks the ambient transaction
// rollback-only exactly once, however many elements diverged.
func (e *Engine) ExecuteBatchSplit(ctx context.Context, p ir.BatchPair) ([]int64, error) {
	op := e.begin(ctx, OpBatch)
	if err := op.guard(p.Mixed()); err != nil {
		return nil, err
	}

	first, second, firstSide, secondSide := p.Sequence()

	firstCounts, err := e.runBatch(ctx, op, p, first, firstSide)
	if err != nil {
		return nil, err
	}
	op.firstDone()

	secondCounts, err := e.runBatch(ctx, op, p, second, secondSide)
	if err != nil {
		return nil, err
	}

	baseCounts, extCounts := firstCounts, secondCounts
	if firstSide == ir.SideExtension {
		baseCounts, extCounts = secondCounts, firstCounts
	}

	if len(firstCounts) != len(secondCounts) {
		ce := newError(ErrCodeBatchLengthMismatch,
			"base batch returned %d result(s) but extension batch returned %d result(s)",
			len(baseCounts), len(extCounts))
		ce.Parent = int64(len(baseCounts))
		ce.Child = int64(len(extCounts))
		return nil, op.fail(ce)
	}

	var diverged []int
	for i := range firstCounts {
		if firstCounts[i] != secondCounts[i] {
			diverged = append(diverged, i)
		}
	}
	if len(diverged) > 0 {
		k := diverged[0]
		ce := newError(ErrCodeBatchElementMismatch,
			"element %d%s: base table affected %d row(s) but extension table affected %d row(s) (%d of %d element(s) diverged: %v)",
			k, identitySuffix(p.IdentityAt(k)), baseCounts[k], extCounts[k], len(diverged), len(firstCounts), diverged)
		ce.Index = k
		ce.Indices = diverged
		ce.Identity = p.IdentityAt(k)
		ce.Parent = baseCounts[k]
		ce.Child = extCounts[k]
		return nil, op.fail(ce)
	}

	out := make([]int64, len(firstCounts))
	copy(out, firstCounts)
	op.succeed("elements", len(out))
	return out, nil
}

// runBatch executes one side of a batch pair with per-element verification.
func (e *Engine) runBatch(ctx context.Context, op *operation, p ir.BatchPair, c ir.Carrier, side ir.Side) ([]int64, error) {
	var failed []int
	var each runner.ElementFunc
	if c.Versioned {
		each = func(i int, rows int64) error {
			if verifyRows(c, rows, i) == nil {
				return nil
			}
			failed = append(failed, i)
			if e.batchMode == BatchFailFast {
				return errStopBatch
			}
			return nil
		}
	}

	counts, err := e.runner.ExecuteBatch(ctx, c, each)
	if err != nil && !errors.Is(err, errStopBatch) {
		if anyApplied(counts) {
			op.applied = true
		}
		return nil, op.fail(op.fault(err, c, side))
	}
	op.executed(c, side, counts)

	if len(failed) > 0 {
		if anyApplied(counts) {
			op.applied = true
		}
		k := failed[0]
		ce := newError(ErrCodeOptimisticLock,
			"%s%s affected 0 rows under a version predicate; %d element(s) lost a concurrent update: %v",
			describe(c, k), identitySuffix(p.IdentityAt(k)), len(failed), failed)
		ce.Carrier = ir.CarrierID(c)
		ce.Side = side.String()
		ce.Index = k
		ce.Indices = failed
		ce.Identity = p.IdentityAt(k)
		return nil, op.fail(ce)
	}
	return counts, nil
}

func anyApplied(counts []int64) bool {
	for _, n := range counts {
		if n > 0 {
			return true
		}
	}
	return false
}

func identitySuffix(id any) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf(" (identity %v)", id)
}
