package engine

import (
	"context"

	"github.com/roach88/splitwrite/internal/ir"
)

// ExecuteSplit runs a split write for one logical row.
//
// The guard runs first. The two carriers then execute in p.Order, each
// verified against its version predicate, and their affected-row counts
// must match: one base row and one extension row, or zero of each.
// It returns the logical affected-row count.
//
// A lock failure or fault of the first statement returns without touching
// the transaction. Any failure after the first statement took effect marks
// the ambient transaction rollback-only exactly once.
func (e *Engine) ExecuteSplit(ctx context.Context, p ir.Pair) (int64, error) {
	op := e.begin(ctx, OpSplit)
	if err := op.guard(p.Mixed()); err != nil {
		return 0, err
	}

	first, second, firstSide, secondSide := p.Sequence()

	firstRows, err := e.runner.Execute(ctx, first)
	if err != nil {
		return 0, op.fail(op.fault(err, first, firstSide))
	}
	op.executed(first, firstSide, firstRows)
	if ce := verifyRows(first, firstRows, -1); ce != nil {
		ce.Side = firstSide.String()
		return 0, op.fail(ce)
	}
	op.firstDone()

	secondRows, err := e.runner.Execute(ctx, second)
	if err != nil {
		return 0, op.fail(op.fault(err, second, secondSide))
	}
	op.executed(second, secondSide, secondRows)
	if ce := verifyRows(second, secondRows, -1); ce != nil {
		ce.Side = secondSide.String()
		return 0, op.fail(ce)
	}

	if firstRows != secondRows {
		base, ext := firstRows, secondRows
		if firstSide == ir.SideExtension {
			base, ext = secondRows, firstRows
		}
		ce := newError(ErrCodeSplitRowCountMismatch,
			"base table affected %d row(s) but extension table affected %d row(s)", base, ext)
		ce.Parent = base
		ce.Child = ext
		return 0, op.fail(ce)
	}

	op.succeed("rows", firstRows)
	return firstRows, nil
}
