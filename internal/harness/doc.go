// Package harness runs scripted split-write scenarios against a real
// database and checks every engine outcome.
//
// # Scenario Format
//
// Scenarios are YAML files checked against an embedded CUE schema
// (schema.cue) and then decoded strictly:
//
//	name: dog_lifecycle
//	description: "What this scenario validates"
//	isolation: read_committed
//	batch_mode: collect
//	setup: |
//	  CREATE TABLE animal (id INTEGER PRIMARY KEY, name TEXT, version INTEGER);
//	  CREATE TABLE dog (id INTEGER PRIMARY KEY, breed TEXT, version INTEGER);
//	steps:
//	  - name: insert rex
//	    split:
//	      base: { label: animal, sql: "INSERT INTO animal ...", params: [1, Rex] }
//	      extension: { label: dog, sql: "INSERT INTO dog ...", params: [1, beagle] }
//	    expect: { rows: 1 }
//	  - name: concurrent rename
//	    exec: "UPDATE animal SET version = version + 1 WHERE id = 1"
//	assertions:
//	  - type: final_state
//	    table: animal
//	    where: { id: 1 }
//	    expect: { name: Rex }
//
// Each step is exactly one of split, batch, merge or exec. Engine steps run
// in their own transaction: it is committed when the step succeeded and the
// transaction was not marked rollback-only, and rolled back otherwise. Exec
// steps run in autocommit mode between engine steps, which is how a
// scenario simulates a concurrent writer.
//
// # Assertion Types
//
//   - final_state: Queries one row and verifies expected values
//   - row_count: Counts rows matching a where clause
//
// # Deterministic Testing
//
// Operation IDs are "<scenario>/<step>", so a trace is identical across runs
// and can be compared with a golden file (RunWithGolden). Golden traces
// leave out error messages, which embed carrier fingerprints and driver text.
package harness
