package codegen

import (
	"encoding/binary"
	"fmt"

	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/value"
)

// LabelID is an opaque handle into a Writer's label table (spec §4.3
// "Labels are opaque handles"). Zero value is never valid; OpenLabel
// always returns an id >= 1.
type LabelID int

type labelState struct {
	placed  bool
	offset  int
	pending []int // byte positions in buf awaiting back-patch
	closed  bool
}

// Writer is the Code Writer (spec §4.3, component C5): a linear bytecode
// stream plus an inline constant pool and type-ref pool, with a label
// facility supporting forward references via back-patching.
type Writer struct {
	buf       []byte
	consts    []value.Any
	types     []value.TypeTag
	labels    []labelState
	maxLocals int // locals referenced, not counting self (Finish adds that slot)
	argCount  int
	varargs   bool
	name      *objtable.Symbol
	modifier  Modifier
	retType   value.TypeTag
	argTypes  []value.TypeTag
}

// NewWriter starts a fresh function body. argCount/varargs are fixed at
// construction because Finish needs them to compute the reserved self
// slot (spec §4.3 "finish produces an immutable Function with one extra
// local reserved for the receiver").
func NewWriter(name *objtable.Symbol, argCount int, varargs bool) *Writer {
	return &Writer{name: name, argCount: argCount, varargs: varargs, maxLocals: argCount}
}

func (w *Writer) SetModifier(m Modifier)              { w.modifier = m }
func (w *Writer) SetReturnType(t value.TypeTag)        { w.retType = t }
func (w *Writer) SetArgTypes(t []value.TypeTag)        { w.argTypes = t }

// Offset is the current write position, usable as a jump target computed
// by the caller (e.g. the loop-head label in a `while`).
func (w *Writer) Offset() int { return len(w.buf) }

// NoteLocal records that local slot i (0-based, excluding self) is used,
// growing the function's declared local count accordingly (spec §4.5
// "func.locals" sizing).
func (w *Writer) NoteLocal(i int) {
	if i+1 > w.maxLocals {
		w.maxLocals = i + 1
	}
}

func (w *Writer) writeByte(b byte) { w.buf = append(w.buf, b) }

func (w *Writer) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) writeUint32At(pos int, v uint32) {
	binary.BigEndian.PutUint32(w.buf[pos:pos+4], v)
}

func (w *Writer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// Emit writes a bare opcode with no operand (NOOP, LOAD_SELF, PUSH_SELF,
// PUSH, POP, RETURN, ARGS).
func (w *Writer) Emit(op Op) { w.writeByte(byte(op)) }

// EmitIndexed writes an opcode followed by a uint16 operand (LOAD_CONST,
// LOAD_LOCAL, LOAD_MEMBER, STORE_LOCAL, STORE_MEMBER, PUSH_CONST,
// LOAD_ARRAY n, LOAD_MAPPING n, TYPECHECK/TYPECAST/TYPEIS type-ref
// index).
func (w *Writer) EmitIndexed(op Op, idx int) {
	w.writeByte(byte(op))
	w.writeUint16(uint16(idx))
}

// EmitOperator writes OPR followed by the Operator sub-opcode.
func (w *Writer) EmitOperator(operator Operator) {
	w.writeByte(byte(OPR))
	w.writeByte(byte(operator))
}

// EmitSend writes SEND/SUPER_SEND/CALL_BUILTIN with a message-symbol
// constant index and an argument count.
func (w *Writer) EmitSend(op Op, msgConst int, nargs int) {
	w.writeByte(byte(op))
	w.writeUint16(uint16(msgConst))
	w.writeUint16(uint16(nargs))
}

// EmitFuncref writes LOAD_FUNCREF with a symbol constant index.
func (w *Writer) EmitFuncref(symConst int) {
	w.writeByte(byte(LOAD_FUNCREF))
	w.writeUint16(uint16(symConst))
}

// EmitUpdateCatch writes UPDATE_CATCH with a raw absolute address (0
// clears the catch, spec §4.3).
func (w *Writer) EmitUpdateCatch(addr int) {
	w.writeByte(byte(UPDATE_CATCH))
	w.writeUint32(uint32(addr))
}

// EmitUpdateCatchTo writes UPDATE_CATCH targeting label id, using the same
// forward-reference back-patching EmitJumpTo uses (the operand is a plain
// uint32 absolute address either way). The compiler's try/catch lowering
// doesn't know the catch block's address until after the try body and any
// nested constructs are emitted, so this is how UPDATE_CATCH's target gets
// filled in once PlaceLabel reaches it.
func (w *Writer) EmitUpdateCatchTo(id LabelID) {
	l := w.label(id)
	if l.closed {
		panic(fmt.Sprintf("codegen: UPDATE_CATCH reference to closed label %d", id))
	}
	w.writeByte(byte(UPDATE_CATCH))
	pos := len(w.buf)
	w.writeUint32(0)
	if l.placed {
		w.writeUint32At(pos, uint32(l.offset))
	} else {
		l.pending = append(l.pending, pos)
	}
}

// AddConst appends v to the constant pool and returns its index.
func (w *Writer) AddConst(v value.Any) int {
	w.consts = append(w.consts, v)
	return len(w.consts) - 1
}

// AddType appends t to the inline type-ref pool and returns its index.
func (w *Writer) AddType(t value.TypeTag) int {
	w.types = append(w.types, t)
	return len(w.types) - 1
}

// OpenLabel reserves a new label slot (spec §4.3 "open_label reserves a
// slot").
func (w *Writer) OpenLabel() LabelID {
	w.labels = append(w.labels, labelState{})
	return LabelID(len(w.labels))
}

// PlaceLabel fixes id's target to the current write offset and
// back-patches every pending reference recorded for it (spec §4.3
// "place_label fixes its target to the current offset and back-patches
// every pending reference to that slot").
func (w *Writer) PlaceLabel(id LabelID) {
	l := w.label(id)
	if l.closed {
		panic(fmt.Sprintf("codegen: PlaceLabel after CloseLabel (label %d)", id))
	}
	if l.placed {
		panic(fmt.Sprintf("codegen: label %d placed twice", id))
	}
	l.placed = true
	l.offset = len(w.buf)
	for _, pos := range l.pending {
		w.writeUint32At(pos, uint32(l.offset))
	}
	l.pending = nil
}

// CloseLabel releases id. Emitting a reference or placing the label
// after this point is a compiler bug and panics (DESIGN.md decision 9).
func (w *Writer) CloseLabel(id LabelID) {
	l := w.label(id)
	if !l.placed {
		panic(fmt.Sprintf("codegen: CloseLabel on unplaced label %d", id))
	}
	l.closed = true
}

func (w *Writer) label(id LabelID) *labelState {
	if id < 1 || int(id) > len(w.labels) {
		panic(fmt.Sprintf("codegen: invalid label id %d", id))
	}
	return &w.labels[id-1]
}

// EmitJumpTo writes a JUMP/JUMP_IF/JUMP_IF_NOT targeting label id. If the
// label is already placed the offset is written directly; otherwise a
// back-reference is reserved at the current position (spec §4.3
// "Emitting a jump to an unplaced label reserves a back-reference at the
// current write position").
func (w *Writer) EmitJumpTo(op Op, id LabelID) {
	l := w.label(id)
	if l.closed {
		panic(fmt.Sprintf("codegen: jump reference to closed label %d", id))
	}
	w.writeByte(byte(op))
	pos := len(w.buf)
	w.writeUint32(0)
	if l.placed {
		w.writeUint32At(pos, uint32(l.offset))
	} else {
		l.pending = append(l.pending, pos)
	}
}

// Finish produces an immutable Function. maxLocals reflects every local
// slot referenced during emission, plus one reserved slot for self
// (spec §4.3: "finish produces an immutable Function with one extra
// local reserved for the receiver (self)").
func (w *Writer) Finish() *Function {
	for _, l := range w.labels {
		if !l.placed {
			panic("codegen: Finish with an unplaced label")
		}
	}
	return &Function{
		Header:     value.NewHeader(value.KindFunction),
		Name:       w.name,
		Modifier:   w.modifier,
		LocalCount: w.maxLocals + 1, // +1 reserved self slot
		ArgCount:   w.argCount,
		Varargs:    w.varargs,
		ArgTypes:   w.argTypes,
		ReturnType: w.retType,
		Bytecode:   w.buf,
		Constants:  w.consts,
		Types:      w.types,
	}
}
