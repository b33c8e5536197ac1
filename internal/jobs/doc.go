// Package jobs keeps a local SQLite ledger of split runs.
//
// Each run is inserted as running when it starts and moved to completed or
// failed when it ends, with the per-run counts and the failing stage. The
// ledger is informational; manifests remain the record of what has been
// produced. Schema changes bump schemaVersion; users delete the database to
// adopt a new schema.
package jobs
