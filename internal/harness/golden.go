package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/splitwrite/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Pass         bool         `json:"pass"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles maps, slices and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step": event.Step,
			"kind": event.Kind,
		}
		if event.Name != "" {
			eventMap["name"] = event.Name
		}
		if event.Kind != KindExec {
			eventMap["rollback_only"] = event.RollbackOnly
			eventMap["committed"] = event.Committed
		}
		if event.Rows != nil {
			eventMap["rows"] = *event.Rows
		}
		if event.Counts != nil {
			eventMap["counts"] = int64List(event.Counts)
		}
		if event.Records != nil {
			records := make([]any, len(event.Records))
			for j, rec := range event.Records {
				records[j] = rec
			}
			eventMap["records"] = records
		}
		if event.Error != nil {
			eventMap["error"] = event.Error.toCanonicalMap()
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"pass":          s.Pass,
		"trace":         traceList,
	}
}

func (e *TraceError) toCanonicalMap() map[string]any {
	m := map[string]any{
		"code":   e.Code,
		"op_id":  e.OpID,
		"index":  e.Index,
		"parent": e.Parent,
		"child":  e.Child,
	}
	if e.Side != "" {
		m["side"] = e.Side
	}
	if e.Indices != nil {
		indices := make([]any, len(e.Indices))
		for i, n := range e.Indices {
			indices[i] = n
		}
		m["indices"] = indices
	}
	if e.Identity != nil {
		m["identity"] = e.Identity
	}
	return m
}

func int64List(ns []int64) []any {
	out := make([]any, len(ns))
	for i, n := range ns {
		out[i] = n
	}
	return out
}

// Snapshot renders a result as canonical JSON.
func Snapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Pass:         result.Pass,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
