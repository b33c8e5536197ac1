// Command vsplit cuts time ranges out of a remote video, publishes each
// segment to the configured object store, and keeps a JSON manifest next to
// the source so repeated requests are served from earlier work.
//
// Subcommands cover the split run itself, manifest and ledger inspection,
// configuration bootstrap, preflight status, and staging cleanup.
package main
