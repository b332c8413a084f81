// Package ir holds the statement representation consumed by the split-write
// engine: carriers (rendered SQL plus bound parameters), carrier pairs for
// base/extension tables, raw result rows and decoded records.
//
// This package contains value types and their canonical encoding only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Carriers are immutable once built and consumed exactly once
//   - SQL text is opaque; nothing here parses or rewrites it
//   - Carrier fingerprints and identity keys use one canonical encoding so
//     equal values always produce equal keys
package ir
