// Package store persists accepted catalog entries in SQLite.
//
// Rows are keyed by catalog id. Upsert reports whether a row is new so the
// run summary can separate new finds from refreshed ones; PruneReleased and
// VacuumIfDue keep the database small between runs.
package store
