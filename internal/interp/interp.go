// Package interp implements the bytecode interpreter (spec §4.6,
// component C8): the dispatch loop, operator semantics, and SEND/
// SUPER_SEND/CALL_BUILTIN method resolution.
package interp

import (
	"encoding/binary"
	"fmt"

	"github.com/ravenlang/raven/internal/blueprint"
	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/fiber"
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/value"
)

// BlueprintResolver locates a compiled blueprint by virtual path, used by
// NEW's string-path form (spec §4.8: "NEW accepts a string path and
// instantiates the blueprint at that path"). *vfs.FS satisfies this.
// Declared structurally here, rather than imported, for the same reason
// internal/builtin and internal/compiler each keep their own narrow copy
// of this interface: importing internal/vfs directly would cycle, since
// vfs.FS.FindBlueprint calls back into the compiler, which calls back
// into the interpreter's own package graph.
type BlueprintResolver interface {
	FindBlueprint(path string) (*blueprint.Blueprint, bool)
}

// Interp dispatches bytecode for one engine. It is stateless across
// fibers — all mutable state lives on the Fiber the caller passes to Run.
type Interp struct {
	Table    *objtable.Table
	Resolver BlueprintResolver
}

// New creates an Interp bound to table (used to resolve CALL_BUILTIN
// symbols and to instantiate objects for the NEW operator). Resolver is
// left nil; set it once the engine's *vfs.FS exists (internal/raven
// rebinds it right after construction, the same two-phase wiring
// internal/compiler's Resolver field needs) so NEW's string-path form has
// somewhere to look blueprints up.
func New(table *objtable.Table) *Interp {
	return &Interp{Table: table}
}

// Run executes up to maxInstructions bytecode instructions on f,
// returning early the moment f leaves the Running state (spec §5: a
// fiber never monopolises the interpreter past one scheduler burst).
// This is scheduler.Runner's sole method.
func (in *Interp) Run(f *fiber.Fiber, maxInstructions int) {
	for i := 0; i < maxInstructions; i++ {
		if f.State() != fiber.Running {
			return
		}
		in.step(f)
	}
}

// step executes exactly one instruction at the current frame's ip.
func (in *Interp) step(f *fiber.Fiber) {
	fr := f.Top()
	if fr == nil {
		f.SetState(fiber.Stopped)
		return
	}
	code := fr.Func.Bytecode
	if fr.IP >= len(code) {
		f.PopFrame()
		return
	}
	op := codegen.Op(code[fr.IP])
	fr.IP++

	switch op {
	case codegen.NOOP:
		// nothing.

	case codegen.LOAD_SELF:
		f.SetAccumulator(fr.Local(f.StackSlice(), 0))

	case codegen.LOAD_CONST:
		idx := in.readU16(fr)
		f.SetAccumulator(fr.Func.Constants[idx])

	case codegen.LOAD_ARRAY:
		n := int(in.readU16(fr))
		elems := make([]value.Any, n)
		for i := n - 1; i >= 0; i-- {
			elems[i] = f.Pop()
		}
		f.SetAccumulator(value.Ptr(value.NewArray(elems)))

	case codegen.LOAD_MAPPING:
		n := int(in.readU16(fr))
		m := value.NewMapping()
		pairs := make([][2]value.Any, n)
		for i := n - 1; i >= 0; i-- {
			v := f.Pop()
			k := f.Pop()
			pairs[i] = [2]value.Any{k, v}
		}
		for _, p := range pairs {
			m.Set(p[0], p[1])
		}
		f.SetAccumulator(value.Ptr(m))

	case codegen.LOAD_FUNCREF:
		idx := in.readU16(fr)
		sym := fr.Func.Constants[idx].Ptr()
		self := fr.Local(f.StackSlice(), 0)
		f.SetAccumulator(value.Ptr(value.NewFunctionRef(sym, self)))

	case codegen.LOAD_LOCAL:
		idx := int(in.readU16(fr))
		f.SetAccumulator(fr.Local(f.StackSlice(), idx))

	case codegen.LOAD_MEMBER:
		idx := int(in.readU16(fr))
		self := fr.Local(f.StackSlice(), 0)
		obj, ok := asObject(self)
		if !ok {
			f.Throw(errString(fmt.Sprintf("LOAD_MEMBER on non-object self (kind %v)", kindOf(self))))
			return
		}
		v, _ := obj.GetSlot(idx)
		f.SetAccumulator(v)

	case codegen.STORE_LOCAL:
		idx := int(in.readU16(fr))
		fr.SetLocal(f.StackSlice(), idx, f.Accumulator())

	case codegen.STORE_MEMBER:
		idx := int(in.readU16(fr))
		self := fr.Local(f.StackSlice(), 0)
		obj, ok := asObject(self)
		if !ok {
			f.Throw(errString(fmt.Sprintf("STORE_MEMBER on non-object self (kind %v)", kindOf(self))))
			return
		}
		obj.SetSlot(idx, f.Accumulator())

	case codegen.PUSH_SELF:
		f.Push(fr.Local(f.StackSlice(), 0))

	case codegen.PUSH_CONST:
		idx := in.readU16(fr)
		f.Push(fr.Func.Constants[idx])

	case codegen.PUSH:
		f.Push(f.Accumulator())

	case codegen.POP:
		f.Pop()

	case codegen.OPR:
		operator := codegen.Operator(code[fr.IP])
		fr.IP++
		in.evalOperator(f, operator)

	case codegen.SEND:
		in.send(f, fr, false)

	case codegen.SUPER_SEND:
		in.send(f, fr, true)

	case codegen.CALL_BUILTIN:
		in.callBuiltin(f, fr)

	case codegen.JUMP:
		addr := in.readU32(fr)
		fr.IP = addr

	case codegen.JUMP_IF:
		addr := in.readU32(fr)
		if f.Accumulator().IsTruthy() {
			fr.IP = addr
		}

	case codegen.JUMP_IF_NOT:
		addr := in.readU32(fr)
		if !f.Accumulator().IsTruthy() {
			fr.IP = addr
		}

	case codegen.RETURN:
		f.PopFrame()

	case codegen.TYPECHECK:
		idx := int(in.readU16(fr))
		t := fr.Func.Types[idx]
		f.SetAccumulator(boolValue(t.Accepts(f.Accumulator())))

	case codegen.TYPECAST:
		idx := int(in.readU16(fr))
		t := fr.Func.Types[idx]
		cast, ok := t.Cast(f.Accumulator())
		if !ok {
			f.Throw(errString(fmt.Sprintf("cannot cast value to %v", t)))
			return
		}
		f.SetAccumulator(cast)

	case codegen.TYPEIS:
		// The `is` operator's runtime check. TypeTag is coarse enough
		// (spec §3: no structural depth beyond one array level, no
		// blueprint-identity tag) that this coincides with TYPECHECK's
		// Accepts test; kept as a distinct opcode because the compiler
		// emits it from a different grammar production (`expr is Type`
		// vs a declared-type assignment guard).
		idx := int(in.readU16(fr))
		t := fr.Func.Types[idx]
		f.SetAccumulator(boolValue(t.Accepts(f.Accumulator())))

	case codegen.UPDATE_CATCH:
		addr := in.readU32(fr)
		fr.CatchAddr = addr

	case codegen.ARGS:
		if fr.Varargs != nil {
			f.SetAccumulator(value.Ptr(fr.Varargs))
		} else {
			f.SetAccumulator(value.Nil)
		}

	default:
		f.Throw(errString(fmt.Sprintf("unknown opcode %d", op)))
	}
}

func (in *Interp) readU16(fr *fiber.Frame) uint16 {
	v := binary.BigEndian.Uint16(fr.Func.Bytecode[fr.IP:])
	fr.IP += 2
	return v
}

func (in *Interp) readU32(fr *fiber.Frame) int {
	v := binary.BigEndian.Uint32(fr.Func.Bytecode[fr.IP:])
	fr.IP += 4
	return int(v)
}

func boolValue(b bool) value.Any {
	if b {
		return value.Int(1)
	}
	return value.Int(0)
}

func asObject(v value.Any) (*blueprint.Object, bool) {
	if !v.IsPtr() {
		return nil, false
	}
	obj, ok := v.Ptr().(*blueprint.Object)
	return obj, ok
}

func kindOf(v value.Any) value.Kind {
	k, _ := v.Kind()
	return k
}

// errString is a placeholder uncaught-throw payload until internal/builtin
// wires a proper error-value kind (spec §7 error reporting uses a plain
// string payload for driver-raised errors, same as a catch block sees for
// a throw(str) call).
func errString(s string) value.Any {
	return value.Ptr(value.NewString(s))
}
