package rlog

import (
	"strings"
	"testing"
)

func TestDiagnosticRendersCaretUnderColumn(t *testing.T) {
	out := Diagnostic("/secure/master.rv", 12, 5, "    let x = ;", "unexpected ';'")
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "/secure/master.rv:12:5:") {
		t.Errorf("expected a file:line:col prefix, got %q", lines[0])
	}
	if lines[2] != "    ^" {
		t.Errorf("expected the caret at column 5, got %q", lines[2])
	}
}

func TestBacktraceListsFramesTopFirst(t *testing.T) {
	out := Backtrace([]Frame{
		{Function: "move", VirtPath: "/obj/player"},
		{Function: "cmd_go", VirtPath: "/cmds/go"},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if lines[0] != "move@/obj/player" {
		t.Errorf("expected move@/obj/player first, got %q", lines[0])
	}
	if lines[1] != "cmd_go@/cmds/go" {
		t.Errorf("expected cmd_go@/cmds/go second, got %q", lines[1])
	}
}

func TestLogMethodsDoNotPanic(t *testing.T) {
	l := New("test")
	l.Debug("x=%d", 1)
	l.Info("starting %s", "up")
	l.Warn("retry %d", 3)
	l.Error("failed: %v", "boom")
	l.Printf("printf shim %s", "ok")
}
