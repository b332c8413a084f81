// Package engine implements the split-entity write-consistency engine.
//
// A logical entity is stored as two physical rows: one in a base table
// (fields common to the entity family) and one in an extension table (fields
// of one subtype). Every mutation must touch both rows in lock-step, which no
// single SQL statement can guarantee. The engine executes the two statements
// by hand and detects any divergence.
//
// ARCHITECTURE:
//
// Two-Statement Protocol:
// Each split operation is a small state machine:
//
//	NotStarted -> FirstDone -> BothDone
//	                  \-> Failed
//
// with one compensating action: marking the ambient transaction
// rollback-only. The engine never retries and never undoes; the caller's
// rollback is the only undo mechanism.
//
// Operation Flow:
//  1. Isolation guard: the ambient transaction must be at least read committed
//  2. Execute the first carrier in declared order (BaseFirst/ExtensionFirst)
//  3. Verify the optimistic-version predicate (zero rows = lost update)
//  4. Execute the second carrier and verify it
//  5. Reconcile affected-row counts (single) or per-element counts (batch)
//  6. On failure after a statement took effect, mark rollback-only once
//
// Returning reads pull columns from both tables with two queries and merge
// the rows by identity (MergeReturning). Reads never mark rollback-only.
//
// CRITICAL PATTERNS:
//
// Ordering: statement 2 is issued only after statement 1 returned. The two
// halves never run concurrently and are never reordered.
//
// No shared state: every call is self-contained. An *Engine holds only
// configuration and concurrency-safe collaborators; the transaction travels
// in the context (WithTransaction) and is borrowed, never committed.
//
// Error surfacing: every failure is a *ConsistencyError carrying concrete
// counts, indices and identities. A failure to mark rollback-only is attached
// to, never substituted for, the original error.
package engine
