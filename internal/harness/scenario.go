package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of split writes and reads run against a
// fresh database, with expectations on every step and on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario (and its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Driver selects the database driver (sqlite3, sqlite, pgx).
	// Empty means sqlite3.
	Driver string `yaml:"driver,omitempty"`

	// Isolation is the default isolation level requested for each step.
	Isolation string `yaml:"isolation,omitempty"`

	// BatchMode is collect or fail_fast. Empty means collect.
	BatchMode string `yaml:"batch_mode,omitempty"`

	// StrictVersioning rejects pairs where exactly one side is versioned.
	StrictVersioning bool `yaml:"strict_versioning,omitempty"`

	// Setup is a SQL script run before the first step, outside any
	// transaction (schema and fixtures).
	Setup string `yaml:"setup,omitempty"`

	// Steps run in order, each in its own transaction.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final database state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one engine call (split, batch or merge) or a raw exec.
// Exactly one of Split, Batch, Merge and Exec is set.
type Step struct {
	// Name labels the step in traces and error messages.
	Name string `yaml:"name,omitempty"`

	// Isolation overrides the scenario isolation for this step.
	Isolation string `yaml:"isolation,omitempty"`

	// NoTransaction runs the step without an ambient transaction.
	NoTransaction bool `yaml:"no_transaction,omitempty"`

	Split *PairSpec  `yaml:"split,omitempty"`
	Batch *BatchSpec `yaml:"batch,omitempty"`
	Merge *MergeSpec `yaml:"merge,omitempty"`

	// Exec is a SQL script run in autocommit mode, e.g. to simulate a
	// concurrent writer between steps.
	Exec string `yaml:"exec,omitempty"`

	// Expect describes the expected outcome. Without it the step must
	// succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Step kinds.
const (
	KindSplit = "split"
	KindBatch = "batch"
	KindMerge = "merge"
	KindExec  = "exec"
)

// Kind returns which operation the step performs, or "" when none or
// several are set.
func (s Step) Kind() string {
	var kinds []string
	if s.Split != nil {
		kinds = append(kinds, KindSplit)
	}
	if s.Batch != nil {
		kinds = append(kinds, KindBatch)
	}
	if s.Merge != nil {
		kinds = append(kinds, KindMerge)
	}
	if s.Exec != "" {
		kinds = append(kinds, KindExec)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// CarrierSpec is a statement as written in a scenario file.
type CarrierSpec struct {
	Label     string       `yaml:"label,omitempty"`
	SQL       string       `yaml:"sql"`
	Params    []any        `yaml:"params,omitempty"`
	Groups    [][]any      `yaml:"groups,omitempty"`
	Versioned bool         `yaml:"versioned,omitempty"`
	Columns   []ColumnSpec `yaml:"columns,omitempty"`
}

// ColumnSpec describes one result column of a returning query.
type ColumnSpec struct {
	Name  string `yaml:"name"`
	Field string `yaml:"field,omitempty"`
	Type  string `yaml:"type,omitempty"`
}

// PairSpec is a single-row split write.
type PairSpec struct {
	Order     string      `yaml:"order,omitempty"`
	Base      CarrierSpec `yaml:"base"`
	Extension CarrierSpec `yaml:"extension"`
}

// BatchSpec is a multi-row split write.
type BatchSpec struct {
	Order      string      `yaml:"order,omitempty"`
	Base       CarrierSpec `yaml:"base"`
	Extension  CarrierSpec `yaml:"extension"`
	Identities []any       `yaml:"identities,omitempty"`
}

// MergeSpec is a returning read over both tables.
type MergeSpec struct {
	Base      CarrierSpec `yaml:"base"`
	Extension CarrierSpec `yaml:"extension"`
	Identity  string      `yaml:"identity"`
}

// Expect is the expected outcome of a step. Unset fields are not checked.
type Expect struct {
	// Error is the expected error code; empty means the step succeeds.
	Error string `yaml:"error,omitempty"`

	Rows    *int64           `yaml:"rows,omitempty"`
	Counts  []int64          `yaml:"counts,omitempty"`
	Records []map[string]any `yaml:"records,omitempty"`

	Index    *int   `yaml:"index,omitempty"`
	Indices  []int  `yaml:"indices,omitempty"`
	Identity any    `yaml:"identity,omitempty"`
	Parent   *int64 `yaml:"parent,omitempty"`
	Child    *int64 `yaml:"child,omitempty"`
	Side     string `yaml:"side,omitempty"`

	// RollbackOnly checks whether the step's transaction was marked.
	RollbackOnly *bool `yaml:"rollback_only,omitempty"`
}

// Assertion validates final database state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": Query one row and verify expected values
	// - "row_count": Count rows matching where
	Type string `yaml:"type"`

	// Table is the table to query.
	Table string `yaml:"table"`

	// Where specifies query filters. All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of rows (used by row_count).
	Count int64 `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertRowCount   = "row_count"
)

// LoadScenario reads, schema-checks and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, violates the
// scenario schema, contains unknown fields (typos), or is missing required
// fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(path, data)
}

// ParseScenario parses scenario YAML. name is used in error positions.
func ParseScenario(name string, data []byte) (*Scenario, error) {
	if err := ValidateSchema(name, data); err != nil {
		return nil, err
	}

	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks cross-field rules the schema cannot express.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Kind() == "" {
			return fmt.Errorf("steps[%d]: exactly one of split, batch, merge or exec is required", i)
		}
		if step.Merge != nil && step.Merge.Identity == "" {
			return fmt.Errorf("steps[%d].merge: identity is required", i)
		}
		if step.Exec != "" && step.Expect != nil {
			return fmt.Errorf("steps[%d]: exec steps take no expect clause", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Table == "" {
		return fmt.Errorf("assertions[%d]: table is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
