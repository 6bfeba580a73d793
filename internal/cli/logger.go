// Package cli wires the pipeline Driver to a terminal: flag parsing, a
// Logger implementation, run correlation ids, and result reporting. It is
// the external-collaborator layer spec.md §1 and §6 name but do not
// specify — command-line parsing, spinners, and terminal colors.
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/johnwards/orgseed/internal/pipeline"
)

// ConsoleLogger implements pipeline.Logger with plain sequential,
// color-coded prints. No interactive terminal control library is part of
// this pipeline's scope, so a spinner is rendered as a single "in
// progress" line followed by a "done"/"failed" line rather than an
// animated frame.
type ConsoleLogger struct {
	out func(string)
}

// NewConsoleLogger returns a ConsoleLogger writing to stdout.
func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{out: func(s string) { fmt.Fprintln(os.Stdout, s) }}
}

var _ pipeline.Logger = (*ConsoleLogger)(nil)

func (l *ConsoleLogger) Log(msg string) {
	l.out(msg)
}

func (l *ConsoleLogger) Warn(msg string) {
	l.out(color.YellowString("warn: ") + msg)
}

func (l *ConsoleLogger) StartSpinner(msg string) {
	l.out(color.CyanString("... ") + msg)
}

func (l *ConsoleLogger) UpdateSpinner(msg string) {
	l.out(color.CyanString("... ") + msg)
}

func (l *ConsoleLogger) StopSpinner(msg string) {
	l.out(color.GreenString(" ok  ") + msg)
}

func (l *ConsoleLogger) StopSpinnerFail(msg string) {
	l.out(color.RedString("fail ") + msg)
}
