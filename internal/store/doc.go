// Package store provides SQLite-backed durable storage for the workflow
// routing engine.
//
// Tables:
//   - feed_events: the append-only domain event log
//   - workflow_rules: declarative routing rules, read fresh on every evaluation
//   - workflow_executions: the append-only execution ledger
//   - contacts, users: the CRM projection the actions read and update
//
// # Ordering
//
// Candidate rules are ordered by position, ties broken by insertion order
// (SQLite rowid). Listings that sort on a timestamp also break ties on
// rowid so results are identical across runs.
//
// # Schema
//
// The schema is managed with golang-migrate using SQL files embedded from
// migrations/. Open brings a database to the latest version; MigrateTo
// moves it to any version, which is how tests simulate a deployment that
// predates the rules tables.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as UTC text in domain.TimeLayout.
package store
