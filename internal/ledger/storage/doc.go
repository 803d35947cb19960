// Package storage defines the persistence interfaces for the QuestBridge
// ledger.
//
// It abstracts quest definitions, user progress records, the completed-quest
// set, and the append-only event journal. The SQLite implementation lives in
// the sqlite subpackage; tests use the in-memory fakes under
// internal/testkit/ledgerfakes.
//
// # Error Types
//
//   - ErrNotFound: a requested record is missing.
//   - ErrAlreadyExists: an insert conflicts with an existing record.
package storage
