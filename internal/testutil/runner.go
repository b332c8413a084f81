// Package testutil provides scripted collaborators for engine tests: a
// runner that replays canned results and records every call, and a
// transaction that records rollback-only marks.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/splitwrite/internal/ir"
	"github.com/roach88/splitwrite/internal/runner"
)

// Result is one scripted runner response.
type Result struct {
	// Affected is returned by Execute.
	Affected int64

	// Counts are the per-element counts returned by ExecuteBatch. With Err
	// set they are the elements that completed before the failure.
	Counts []int64

	// Rows are returned by Query.
	Rows []ir.RawRow

	// Err is wrapped in a *runner.ExecutionFault like a driver error.
	Err error
}

// Affected scripts a single-statement result.
func Affected(n int64) Result {
	return Result{Affected: n}
}

// Counts scripts a batch result.
func Counts(n ...int64) Result {
	return Result{Counts: n}
}

// Rows scripts a query result.
func Rows(rows ...ir.RawRow) Result {
	return Result{Rows: rows}
}

// Fail scripts a driver failure.
func Fail(err error) Result {
	return Result{Err: err}
}

// Row builds a raw row from alternating column names and values.
func Row(pairs ...any) ir.RawRow {
	var row ir.RawRow
	for i := 0; i+1 < len(pairs); i += 2 {
		row.Columns = append(row.Columns, pairs[i].(string))
		row.Values = append(row.Values, pairs[i+1])
	}
	return row
}

// Call records one runner invocation.
type Call struct {
	Kind  string
	Label string
}

// FakeRunner replays scripted results keyed by carrier label.
//
// Thread-safety: FakeRunner is safe for concurrent use via internal mutex.
type FakeRunner struct {
	mu      sync.Mutex
	results map[string][]Result
	calls   []Call
}

var _ runner.Runner = (*FakeRunner)(nil)

// NewFakeRunner creates a runner with no scripted results.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{results: make(map[string][]Result)}
}

// On queues results for carriers labelled label, consumed in order.
func (r *FakeRunner) On(label string, results ...Result) *FakeRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[label] = append(r.results[label], results...)
	return r
}

// Calls returns every recorded call in order.
func (r *FakeRunner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Labels returns the labels of every recorded call in order.
func (r *FakeRunner) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Label
	}
	return out
}

// CallCount returns how many calls were made for label.
func (r *FakeRunner) CallCount(label string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Label == label {
			n++
		}
	}
	return n
}

func (r *FakeRunner) next(kind string, c ir.Carrier) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: kind, Label: c.Label})
	queue := r.results[c.Label]
	if len(queue) == 0 {
		return Result{}, fault(runner.OpExecute, c, -1, fmt.Errorf("no scripted result for %q", c.Label))
	}
	r.results[c.Label] = queue[1:]
	return queue[0], nil
}

// Execute implements runner.Runner.
func (r *FakeRunner) Execute(_ context.Context, c ir.Carrier) (int64, error) {
	res, err := r.next(runner.KindExecute, c)
	if err != nil {
		return 0, err
	}
	if res.Err != nil {
		return 0, fault(runner.OpExecute, c, -1, res.Err)
	}
	return res.Affected, nil
}

// ExecuteBatch implements runner.Runner. The element hook sees every
// scripted count in order and may stop the batch.
func (r *FakeRunner) ExecuteBatch(_ context.Context, c ir.Carrier, each runner.ElementFunc) ([]int64, error) {
	res, err := r.next(runner.KindBatch, c)
	if err != nil {
		return []int64{}, err
	}
	counts := make([]int64, 0, len(res.Counts))
	for i, n := range res.Counts {
		counts = append(counts, n)
		if each != nil {
			if err := each(i, n); err != nil {
				return counts, err
			}
		}
	}
	if res.Err != nil {
		return counts, fault(runner.OpExecute, c, len(counts), res.Err)
	}
	return counts, nil
}

// Query implements runner.Runner.
func (r *FakeRunner) Query(_ context.Context, c ir.Carrier) ([]ir.RawRow, error) {
	res, err := r.next(runner.KindQuery, c)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, fault(runner.OpQuery, c, -1, res.Err)
	}
	return res.Rows, nil
}

func fault(op string, c ir.Carrier, index int, err error) *runner.ExecutionFault {
	return &runner.ExecutionFault{
		Op:      op,
		Carrier: ir.CarrierID(c),
		Label:   c.Label,
		Index:   index,
		Err:     err,
	}
}
