// Package rlog is the pluggable diagnostics log spec §4.4/§7 requires:
// leveled output for the compiler's syntax diagnostics and the
// GC/scheduler/interpreter's crash and lifecycle logging, wrapping
// github.com/chzyer/logex the way the teacher corpus leans on it for
// leveled module logging.
package rlog

import (
	"fmt"
	"strings"

	"github.com/chzyer/logex"
)

// Log is a named leveled logger. The name prefixes every line, the way
// logex's own module-scoped loggers do, so diagnostics from the
// compiler, GC, and scheduler are distinguishable in a shared log
// stream.
type Log struct {
	name string
}

// New creates a Log tagged with name (e.g. "compiler", "gc", "scheduler").
func New(name string) *Log {
	return &Log{name: name}
}

func (l *Log) line(msg string) string {
	return fmt.Sprintf("[%s] %s", l.name, msg)
}

func (l *Log) Debug(format string, args ...interface{}) {
	logex.Debug(l.line(fmt.Sprintf(format, args...)))
}

func (l *Log) Info(format string, args ...interface{}) {
	logex.Info(l.line(fmt.Sprintf(format, args...)))
}

func (l *Log) Warn(format string, args ...interface{}) {
	logex.Warn(l.line(fmt.Sprintf(format, args...)))
}

func (l *Log) Error(format string, args ...interface{}) {
	logex.Error(l.line(fmt.Sprintf(format, args...)))
}

func (l *Log) Fatal(format string, args ...interface{}) {
	logex.Fatal(l.line(fmt.Sprintf(format, args...)))
}

// Printf satisfies the minimal Logger interface internal/builtin and
// internal/vfs accept (write()'s fallback sink, fs_recompile_with_log's
// diagnostic target) without either package depending on rlog directly.
func (l *Log) Printf(format string, args ...interface{}) {
	l.Info(format, args...)
}

// Diagnostic renders the file/line/caret excerpt format spec §4.4 and §7
// require for syntax errors and crash backtraces: the offending source
// line, a caret under the named column, and the message below it.
func Diagnostic(virtPath string, line, col int, sourceLine, message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d: %s\n", virtPath, line, col, message)
	b.WriteString(sourceLine)
	b.WriteByte('\n')
	if col > 0 {
		b.WriteString(strings.Repeat(" ", col-1))
	}
	b.WriteString("^")
	return b.String()
}

// Backtrace renders a runtime crash backtrace as top-first
// `function@<virt_path>` frames (spec §7 "runtime backtraces enumerate
// function@<virt_path> frames top-first").
func Backtrace(frames []Frame) string {
	var b strings.Builder
	for _, fr := range frames {
		fmt.Fprintf(&b, "%s@%s\n", fr.Function, fr.VirtPath)
	}
	return b.String()
}

// Frame is one backtrace entry.
type Frame struct {
	Function string
	VirtPath string
}
