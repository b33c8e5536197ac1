// Package split runs a split job end to end.
//
// Splitter.Run resolves and locks the source manifest, obtains the input
// file, probes its duration, plans the requested ranges, and hands each
// pending segment to the Processor, which encodes, uploads, and records it
// in the manifest before moving on. The manifest is republished after every
// segment so a failed run leaves all earlier segments durable.
//
// The package talks to the outside world only through the SourceFetch,
// ObjectStore, and MediaTool interfaces in ports.go. Concrete adapters live
// in internal/fetch, internal/objectstore, and internal/media.
package split
