// Package manifest owns the cumulative split manifest published next to a
// source video.
//
// A manifest records the resolved local input path and every split produced
// so far, keyed by a name derived from the source URL (extension replaced by
// .json). It is loaded once per run, extended after each encoded split, and
// re-published after every split so remote state always reflects durable
// progress. Loading never fails: any anomaly degrades to an empty manifest.
package manifest
