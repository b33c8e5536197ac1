package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type checkState string

const (
	stateInfo  checkState = "INFO"
	stateOK    checkState = "OK"
	stateWarn  checkState = "WARN"
	stateError checkState = "ERROR"
)

var stateColors = map[checkState]string{
	stateInfo:  "\x1b[34m",
	stateOK:    "\x1b[32m",
	stateWarn:  "\x1b[33m",
	stateError: "\x1b[31m",
}

const ansiReset = "\x1b[0m"

var titleCaser = cases.Title(language.English)

// statusReport accumulates the sectioned text output of `vsplit status`.
type statusReport struct {
	color bool
	lines []string
}

func newStatusReport(w io.Writer) *statusReport {
	return &statusReport{color: isTerminal(w)}
}

func (r *statusReport) paint(state checkState, text string) string {
	if !r.color {
		return text
	}
	return stateColors[state] + text + ansiReset
}

// section starts a title-cased, underlined block separated from the last one.
func (r *statusReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	heading := "== " + titleCaser.String(strings.TrimSpace(title)) + " =="
	r.lines = append(r.lines,
		r.paint(stateInfo, heading),
		r.paint(stateInfo, strings.Repeat("-", len(heading))),
	)
}

func (r *statusReport) line(label string, state checkState, detail string) {
	text := fmt.Sprintf("  %-20s [%s]", label+":", state)
	if detail != "" {
		text += " " + detail
	}
	r.lines = append(r.lines, r.paint(state, text))
}

func (r *statusReport) check(label string, passed bool, detail string) {
	state := stateError
	if passed {
		state = stateOK
	}
	r.line(label, state, detail)
}

func (r *statusReport) blank() { r.lines = append(r.lines, "") }

func (r *statusReport) writeTo(w io.Writer) error {
	_, err := io.WriteString(w, strings.Join(r.lines, "\n")+"\n")
	return err
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
