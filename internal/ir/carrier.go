package ir

import (
	"fmt"
	"strings"
)

// Order declares which half of a split write executes first.
type Order int

const (
	// BaseFirst runs the base-table statement before the extension-table one.
	// Inserts always use it: the extension row may need the base row's identity.
	BaseFirst Order = iota

	// ExtensionFirst runs the extension-table statement first (e.g. deletes
	// where the extension row holds the foreign key).
	ExtensionFirst
)

// String returns the scenario-file spelling of the order.
func (o Order) String() string {
	switch o {
	case BaseFirst:
		return "base_first"
	case ExtensionFirst:
		return "extension_first"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// ParseOrder parses "base_first" or "extension_first". Empty means BaseFirst.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "base_first":
		return BaseFirst, nil
	case "extension_first":
		return ExtensionFirst, nil
	default:
		return BaseFirst, fmt.Errorf("unknown order %q: must be base_first or extension_first", s)
	}
}

// Side names one half of a split entity.
type Side int

const (
	SideBase Side = iota
	SideExtension
)

func (s Side) String() string {
	if s == SideExtension {
		return "extension"
	}
	return "base"
}

// DecodeFunc converts one driver value into the record's field value.
// It receives nil for SQL NULL.
type DecodeFunc func(v any) (any, error)

// Column describes one result column of a returning query.
type Column struct {
	// Name is the column name as reported by the driver.
	Name string

	// Field is the record field the decoded value is stored under.
	// Empty means the column name is used.
	Field string

	// Decode converts the raw value. Nil keeps the driver value unchanged.
	Decode DecodeFunc
}

// FieldName returns the record field for this column.
func (c Column) FieldName() string {
	if c.Field != "" {
		return c.Field
	}
	return c.Name
}

// Carrier is an already-rendered statement ready for execution.
//
// For single execution Params holds the bound values. For batch execution
// Groups holds one parameter group per logical row and Params is ignored.
type Carrier struct {
	// Label is a short diagnostic tag (usually the table name).
	Label string

	SQL    string
	Params []any
	Groups [][]any

	// Versioned marks statements whose predicate includes an optimistic
	// version column; zero affected rows is then a lost update.
	Versioned bool

	// Columns describes result columns for returning queries.
	Columns []Column
}

// GroupCount returns the number of batch parameter groups.
func (c Carrier) GroupCount() int {
	return len(c.Groups)
}

// Name returns Label when set, otherwise the carrier ID.
func (c Carrier) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return CarrierID(c)
}

// Pair is a split write for one logical row.
// Both carriers address the same logical identity.
type Pair struct {
	Base      Carrier
	Extension Carrier
	Order     Order
}

// Sequence returns the carriers in execution order with their sides.
func (p Pair) Sequence() (first, second Carrier, firstSide, secondSide Side) {
	return sequence(p.Base, p.Extension, p.Order)
}

// Mixed reports whether exactly one side carries a version predicate.
func (p Pair) Mixed() bool {
	return p.Base.Versioned != p.Extension.Versioned
}

// BatchPair is a split write over many logical rows. Base and Extension each
// carry one parameter group per row; callers guarantee equal group counts.
type BatchPair struct {
	Base      Carrier
	Extension Carrier
	Order     Order

	// Identities optionally lists the logical identity of each group so that
	// a diverging element can be reported by identity, not just by index.
	Identities []any
}

// GroupCount returns the number of logical rows in the batch.
func (p BatchPair) GroupCount() int {
	return p.Base.GroupCount()
}

// Sequence returns the carriers in execution order with their sides.
func (p BatchPair) Sequence() (first, second Carrier, firstSide, secondSide Side) {
	return sequence(p.Base, p.Extension, p.Order)
}

// Mixed reports whether exactly one side carries a version predicate.
func (p BatchPair) Mixed() bool {
	return p.Base.Versioned != p.Extension.Versioned
}

// IdentityAt returns the identity of group i, or nil when unknown.
func (p BatchPair) IdentityAt(i int) any {
	if i < 0 || i >= len(p.Identities) {
		return nil
	}
	return p.Identities[i]
}

func sequence(base, ext Carrier, order Order) (Carrier, Carrier, Side, Side) {
	if order == ExtensionFirst {
		return ext, base, SideExtension, SideBase
	}
	return base, ext, SideBase, SideExtension
}
