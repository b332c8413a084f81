package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/splitwrite/internal/ir"
	"github.com/roach88/splitwrite/internal/runner"
)

// state is the position of one operation in the two-statement protocol.
type state int

const (
	stateNotStarted state = iota
	stateFirstDone
	stateBothDone
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateNotStarted:
		return "not_started"
	case stateFirstDone:
		return "first_done"
	case stateBothDone:
		return "both_done"
	default:
		return "failed"
	}
}

// operation is the per-call state of one coordinator invocation.
// It is never shared between calls.
type operation struct {
	e       *Engine
	name    string
	id      string
	tx      Transaction
	log     *slog.Logger
	started time.Time
	state   state

	// applied is set once a physical statement has taken effect; only then
	// does a failure mark the transaction rollback-only.
	applied bool
	marked  bool
}

func (e *Engine) begin(ctx context.Context, name string) *operation {
	id := e.opIDs.Generate()
	return &operation{
		e:       e,
		name:    name,
		id:      id,
		tx:      TransactionFrom(ctx),
		log:     e.logger.With("op", name, "op_id", id),
		started: time.Now(),
	}
}

// guard runs the isolation precondition and, under strict versioning, the
// mixed-predicate check. Neither has a side effect.
func (op *operation) guard(mixed bool) error {
	snap := SnapshotIsolation(op.tx)
	if ce := checkIsolation(snap); ce != nil {
		return op.fail(ce)
	}
	if op.e.strictVersioning && mixed {
		return op.fail(newError(ErrCodeMixedVersionPredicate,
			"exactly one side of the pair carries a version predicate"))
	}
	op.log.Debug("isolation guard passed", "level", snap.Level.String())
	return nil
}

// firstDone records that the first statement took effect and was verified.
func (op *operation) firstDone() {
	op.state = stateFirstDone
	op.applied = true
}

// succeed closes the operation.
func (op *operation) succeed(attrs ...any) {
	op.state = stateBothDone
	elapsed := time.Since(op.started)
	op.e.metrics.ObserveOperation(op.name, OutcomeOK, elapsed)
	op.log.Debug("operation completed", append(attrs, "elapsed", elapsed)...)
}

// fail closes the operation with ce. When a statement already took effect
// the transaction is marked rollback-only, at most once; a failure to do so
// is attached to ce and never replaces it.
func (op *operation) fail(ce *ConsistencyError) error {
	from := op.state
	op.state = stateFailed
	ce.OpID = op.id
	ce.Operation = op.name

	if op.applied && !op.marked {
		op.marked = true
		op.markRollbackOnly(ce)
	}

	if ce.Code == ErrCodeOptimisticLock {
		op.e.metrics.ObserveLockFailure(op.name)
	}
	op.e.metrics.ObserveOperation(op.name, string(ce.Code), time.Since(op.started))

	attrs := []any{
		"code", string(ce.Code),
		"state", from.String(),
		"rollback_only", op.marked,
	}
	if ce.Carrier != "" {
		attrs = append(attrs, "carrier", ce.Carrier)
	}
	if ce.Index >= 0 {
		attrs = append(attrs, "index", ce.Index)
	}
	switch ce.Code {
	case ErrCodeOptimisticLock, ErrCodeInsufficientIsolation, ErrCodeMixedVersionPredicate:
		op.log.Warn(ce.Message, attrs...)
	default:
		op.log.Error(ce.Message, attrs...)
	}
	return ce
}

func (op *operation) markRollbackOnly(ce *ConsistencyError) {
	op.e.metrics.ObserveRollbackOnly(op.name)
	if op.tx == nil {
		ce.RollbackErr = errors.New("no ambient transaction to mark rollback-only")
		op.log.Error("mark rollback-only failed", "error", ce.RollbackErr)
		return
	}
	if err := op.tx.MarkRollbackOnly(); err != nil {
		ce.RollbackErr = err
		op.log.Error("mark rollback-only failed",
			"code", string(ce.Code),
			"error", err,
		)
		return
	}
	op.log.Debug("transaction marked rollback-only", "code", string(ce.Code))
}

// fault wraps a runner error as EXECUTION_FAULT.
func (op *operation) fault(err error, c ir.Carrier, side ir.Side) *ConsistencyError {
	ce := newError(ErrCodeExecutionFault, "%s on the %s side could not be executed", describe(c, -1), side)
	ce.Carrier = ir.CarrierID(c)
	ce.Side = side.String()
	ce.Cause = err
	var f *runner.ExecutionFault
	if errors.As(err, &f) && f.Index >= 0 {
		ce.Index = f.Index
		ce.Indices = []int{f.Index}
	}
	return ce
}

func (op *operation) executed(c ir.Carrier, side ir.Side, rows any) {
	op.log.Debug("statement executed",
		"carrier", ir.CarrierID(c),
		"side", side.String(),
		"rows", rows,
	)
}
