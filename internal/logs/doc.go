// Package logs reads the daily vsplit log files: the last N lines of a file,
// optionally filtered to one job, and a polling follower for new lines.
package logs
