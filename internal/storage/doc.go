// Package storage is publibot's local persistence layer.
//
// Two concerns live here:
//   - statefile: atomic JSON documents (published log, config cache). These
//     survive restarts and are the restart-resilience mechanism, so writes go
//     through write-to-temp-then-rename.
//   - run history: an append-only record of pipeline executions, with a
//     dependency-free file driver (jsonl) and an optional sqlite driver.
package storage
