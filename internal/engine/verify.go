package engine

import (
	"strconv"

	"github.com/roach88/splitwrite/internal/ir"
)

// Verify is the optimistic-lock predicate: a versioned carrier that affected
// fewer than one row lost a concurrent update. Nothing is retried.
func Verify(c ir.Carrier, rows int64) error {
	if ce := verifyRows(c, rows, -1); ce != nil {
		return ce
	}
	return nil
}

// VerifyElement applies Verify to one batch element.
func VerifyElement(c ir.Carrier, index int, rows int64) error {
	if ce := verifyRows(c, rows, index); ce != nil {
		return ce
	}
	return nil
}

func verifyRows(c ir.Carrier, rows int64, index int) *ConsistencyError {
	if !c.Versioned || rows >= 1 {
		return nil
	}
	ce := newError(ErrCodeOptimisticLock,
		"%s affected %d row(s) under a version predicate; the row was changed or removed concurrently",
		describe(c, index), rows)
	ce.Carrier = ir.CarrierID(c)
	ce.Index = index
	if index >= 0 {
		ce.Indices = []int{index}
	}
	return ce
}

// describe names a carrier (and batch element) for messages.
func describe(c ir.Carrier, index int) string {
	name := "statement " + c.Name()
	if c.Label != "" {
		name = c.Label + " statement"
	}
	if index >= 0 {
		return name + " element " + strconv.Itoa(index)
	}
	return name
}
