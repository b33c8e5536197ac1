// Package preflight provides readiness checks for the filesystem paths,
// binaries, and object store a split run depends on.
//
// These checks run in two contexts:
//   - The split command calls RunAll before starting and refuses to run when
//     a required check fails.
//   - The CLI "vsplit status" command renders every result.
package preflight
