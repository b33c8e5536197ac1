// Package services defines shared utilities consumed by the split pipeline and
// its external adapters.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, split indexes, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (validation vs external tool vs transient) with errors.Is.
package services
