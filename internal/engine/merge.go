package engine

import (
	"context"

	"github.com/roach88/splitwrite/internal/ir"
)

// MergeReturning reads one projection from each table and merges the rows by
// identity into complete records, in base-query order.
//
// Every base row must carry identityField and every extension row must match
// exactly one base row; base rows that never get an extension row fail the
// read as a whole. No partial result is returned on failure. The read never
// writes and never marks the transaction rollback-only.
//
// A field present on both sides takes the extension value.
func (e *Engine) MergeReturning(ctx context.Context, base, extension ir.Carrier, identityField string) ([]ir.Record, error) {
	op := e.begin(ctx, OpMerge)

	baseRows, err := e.runner.Query(ctx, base)
	if err != nil {
		return nil, op.fail(op.fault(err, base, ir.SideBase))
	}
	op.executed(base, ir.SideBase, len(baseRows))

	records := make(map[string]ir.Record, len(baseRows))
	identities := make(map[string]any, len(baseRows))
	order := make([]string, 0, len(baseRows))

	for i, row := range baseRows {
		rec, id, key, ce := e.decodeRow(row, base, ir.SideBase, i, identityField)
		if ce != nil {
			return nil, op.fail(ce)
		}
		if _, dup := records[key]; dup {
			return nil, op.fail(duplicateIdentity(base, ir.SideBase, i, id))
		}
		records[key] = rec
		identities[key] = id
		order = append(order, key)
	}

	extRows, err := e.runner.Query(ctx, extension)
	if err != nil {
		return nil, op.fail(op.fault(err, extension, ir.SideExtension))
	}
	op.executed(extension, ir.SideExtension, len(extRows))

	matched := make(map[string]bool, len(extRows))
	for j, row := range extRows {
		rec, id, key, ce := e.decodeRow(row, extension, ir.SideExtension, j, identityField)
		if ce != nil {
			return nil, op.fail(ce)
		}
		target, ok := records[key]
		if !ok {
			ce := newError(ErrCodeOrphanedExtensionRow,
				"extension row %d has identity %v with no matching base row", j, id)
			ce.Carrier = ir.CarrierID(extension)
			ce.Side = ir.SideExtension.String()
			ce.Index = j
			ce.Indices = []int{j}
			ce.Identity = id
			return nil, op.fail(ce)
		}
		if matched[key] {
			return nil, op.fail(duplicateIdentity(extension, ir.SideExtension, j, id))
		}
		matched[key] = true
		// Extension columns overwrite base columns of the same field.
		for field, v := range rec {
			if field == identityField {
				continue
			}
			target[field] = v
		}
	}

	if len(matched) != len(records) {
		var missing []int
		for i, key := range order {
			if !matched[key] {
				missing = append(missing, i)
			}
		}
		k := missing[0]
		ce := newError(ErrCodeProjectionCountMismatch,
			"%d base row(s) but only %d matched an extension row; first unmatched is row %d with identity %v",
			len(records), len(matched), k, identities[order[k]])
		ce.Carrier = ir.CarrierID(base)
		ce.Side = ir.SideBase.String()
		ce.Index = k
		ce.Indices = missing
		ce.Identity = identities[order[k]]
		ce.Parent = int64(len(records))
		ce.Child = int64(len(matched))
		return nil, op.fail(ce)
	}

	out := make([]ir.Record, 0, len(order))
	for _, key := range order {
		out = append(out, records[key])
	}
	op.succeed("records", len(out))
	return out, nil
}

// decodeRow decodes one projected row and extracts its identity. The decoded
// record field wins; the raw column is used when no descriptor names it.
func (e *Engine) decodeRow(row ir.RawRow, c ir.Carrier, side ir.Side, index int, identityField string) (ir.Record, any, string, *ConsistencyError) {
	rec, err := e.decoder.Decode(row, c.Columns)
	if err != nil {
		ce := newError(ErrCodeDecodeFailure, "%s row %d could not be decoded", side, index)
		ce.Carrier = ir.CarrierID(c)
		ce.Side = side.String()
		ce.Index = index
		ce.Indices = []int{index}
		ce.Cause = err
		return nil, nil, "", ce
	}

	id, ok := rec[identityField]
	if !ok {
		id, ok = row.Lookup(identityField)
	}
	if !ok || id == nil {
		ce := newError(ErrCodeMissingIdentity, "%s row %d has no value for identity %q", side, index, identityField)
		ce.Carrier = ir.CarrierID(c)
		ce.Side = side.String()
		ce.Index = index
		ce.Indices = []int{index}
		return nil, nil, "", ce
	}

	key, err := ir.IdentityKey(id)
	if err != nil {
		ce := newError(ErrCodeDecodeFailure, "%s row %d has an unusable identity %v", side, index, id)
		ce.Carrier = ir.CarrierID(c)
		ce.Side = side.String()
		ce.Index = index
		ce.Indices = []int{index}
		ce.Identity = id
		ce.Cause = err
		return nil, nil, "", ce
	}
	return rec, id, key, nil
}

func duplicateIdentity(c ir.Carrier, side ir.Side, index int, id any) *ConsistencyError {
	ce := newError(ErrCodeDuplicateIdentity, "%s row %d repeats identity %v", side, index, id)
	ce.Carrier = ir.CarrierID(c)
	ce.Side = side.String()
	ce.Index = index
	ce.Indices = []int{index}
	ce.Identity = id
	return ce
}
