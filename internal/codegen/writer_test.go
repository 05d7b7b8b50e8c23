package codegen

import (
	"encoding/binary"
	"testing"

	"github.com/ravenlang/raven/internal/objtable"
)

func TestLabelBackpatch(t *testing.T) {
	w := NewWriter(objtable.New().Find("f"), 0, false)

	lend := w.OpenLabel()
	w.EmitJumpTo(JUMP_IF_NOT, lend)
	w.Emit(PUSH_SELF)
	w.PlaceLabel(lend)
	w.CloseLabel(lend)
	w.Emit(RETURN)

	fn := w.Finish()

	if fn.Bytecode[0] != byte(JUMP_IF_NOT) {
		t.Fatalf("expected JUMP_IF_NOT first, got %v", Op(fn.Bytecode[0]))
	}
	target := binary.BigEndian.Uint32(fn.Bytecode[1:5])
	// lend was placed right after PUSH_SELF (1 byte), at offset 6.
	if target != 6 {
		t.Fatalf("expected back-patched target 6, got %d", target)
	}
	if fn.Bytecode[5] != byte(PUSH_SELF) {
		t.Fatalf("expected PUSH_SELF at offset 5")
	}
	if fn.Bytecode[6] != byte(RETURN) {
		t.Fatalf("expected RETURN at offset 6")
	}
}

func TestWhileTemplate(t *testing.T) {
	// while (c) B  =>  Lhead: c; JUMP_IF_NOT Lend; B; JUMP Lhead; Lend:
	w := NewWriter(objtable.New().Find("loop"), 0, false)
	lhead := w.OpenLabel()
	lend := w.OpenLabel()

	w.PlaceLabel(lhead)
	w.Emit(PUSH_SELF) // stand-in for condition c
	w.EmitJumpTo(JUMP_IF_NOT, lend)
	w.Emit(POP) // stand-in for body B
	w.EmitJumpTo(JUMP, lhead)
	w.PlaceLabel(lend)
	w.CloseLabel(lhead)
	w.CloseLabel(lend)

	fn := w.Finish()
	if Op(fn.Bytecode[0]) != PUSH_SELF {
		t.Fatalf("expected condition first")
	}
	loopJumpTarget := binary.BigEndian.Uint32(fn.Bytecode[len(fn.Bytecode)-4:])
	if loopJumpTarget != 0 {
		t.Fatalf("expected JUMP back to head (offset 0), got %d", loopJumpTarget)
	}
}

func TestFinishPanicsOnUnplacedLabel(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on unplaced label")
		}
	}()
	w := NewWriter(objtable.New().Find("f"), 0, false)
	w.OpenLabel()
	w.Finish()
}

func TestCloseLabelForbidsLateReference(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic referencing a closed label")
		}
	}()
	w := NewWriter(objtable.New().Find("f"), 0, false)
	l := w.OpenLabel()
	w.PlaceLabel(l)
	w.CloseLabel(l)
	w.EmitJumpTo(JUMP, l)
}

func TestFinishReservesSelfSlot(t *testing.T) {
	w := NewWriter(objtable.New().Find("f"), 2, false)
	w.NoteLocal(3)
	fn := w.Finish()
	if fn.LocalCount != 5 { // locals 0..3 used (4 slots) + 1 reserved self
		t.Fatalf("expected LocalCount 5, got %d", fn.LocalCount)
	}
}
