package interp

import (
	"fmt"

	"github.com/ravenlang/raven/internal/blueprint"
	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/fiber"
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/value"
)

// send executes SEND or SUPER_SEND. The instruction's self+args already
// sit on top of the data stack (the calling convention fiber.PushFrame
// expects); send only reads the receiver to resolve the target function,
// then hands the frame push to the fiber.
func (in *Interp) send(f *fiber.Fiber, fr *fiber.Frame, super bool) {
	msgIdx := in.readU16(fr)
	nargs := int(in.readU16(fr))
	sym := fr.Func.Constants[msgIdx].Ptr().(*objtable.Symbol)

	self := f.StackPeek(nargs)
	if _, ok := asObject(self); !ok {
		if in.sendPrimitive(f, sym, nargs) {
			return
		}
		f.Throw(errString(fmt.Sprintf("%v: message %q not understood", kindOf(self), sym.Name)))
		return
	}

	fn, ok := in.resolve(self, sym, nargs, super, fr)
	if !ok {
		f.Throw(errString(fmt.Sprintf("%v: message %q not understood", kindOf(self), sym.Name)))
		return
	}
	f.PushFrame(fn, nargs, nil)
}

// resolve finds the target function for a SEND/SUPER_SEND against an
// object receiver, walking the blueprint chain most-derived-first
// (SUPER_SEND starts one layer above the sending function's own
// blueprint). A non-object receiver has no chain to walk and always
// reports not-found here; send's own primitive-proxy fallback
// (sendPrimitive) handles that case before this is ever called.
func (in *Interp) resolve(self value.Any, sym *objtable.Symbol, nargs int, super bool, fr *fiber.Frame) (*codegen.Function, bool) {
	obj, ok := asObject(self)
	if !ok {
		return nil, false
	}

	chain := obj.Blueprint.Chain() // root-first
	start := len(chain) - 1
	if super {
		owner, ok := fr.Func.Owner.(*blueprint.Blueprint)
		if !ok {
			return nil, false
		}
		start = -1
		for i, bp := range chain {
			if bp == owner {
				start = i - 1
				break
			}
		}
		if start < 0 {
			return nil, false
		}
	}

	// private/protected members are visible to code defined anywhere in
	// this object's own blueprint chain, and hidden from everyone else;
	// Blueprint.Lookup only distinguishes the two buckets with one flag,
	// so visibility collapses to "sender belongs to this hierarchy".
	senderInChain := fr != nil && inChain(fr.Func.Owner, chain)

	for i := start; i >= 0; i-- {
		if fn, ok := chain[i].Lookup(sym, nargs, senderInChain); ok {
			return fn, true
		}
	}
	return nil, false
}

func inChain(owner value.HeapObject, chain []*blueprint.Blueprint) bool {
	for _, bp := range chain {
		if owner == value.HeapObject(bp) {
			return true
		}
	}
	return false
}

// sendPrimitive is the non-object proxy substitution path (spec §4.6): a
// receiver with no blueprint of its own (string, array, mapping, int...)
// is, "if still unresolved, dispatched to the built-in bound to the
// symbol, if any, else throws". self and its nargs arguments already sit
// on the data stack in SEND's calling convention (self below the args);
// absent a registration there is no frame to push, so the caller reports
// "message not understood" same as an unresolved object SEND would.
func (in *Interp) sendPrimitive(f *fiber.Fiber, sym *objtable.Symbol, nargs int) bool {
	if sym.Builtin == nil {
		return false
	}
	args := make([]value.Any, nargs+1)
	for i := nargs; i >= 1; i-- {
		args[i] = f.Pop()
	}
	args[0] = f.Pop() // self, the proxy receiver
	f.SetAccumulator(sym.Builtin(f, args))
	return true
}

// callBuiltin executes CALL_BUILTIN: pop nargs arguments (no implicit
// receiver — built-ins are free functions over the fiber, spec §6) and
// invoke the bound handler directly, with no frame push.
func (in *Interp) callBuiltin(f *fiber.Fiber, fr *fiber.Frame) {
	msgIdx := in.readU16(fr)
	nargs := int(in.readU16(fr))
	sym := fr.Func.Constants[msgIdx].Ptr().(*objtable.Symbol)

	args := make([]value.Any, nargs)
	for i := nargs - 1; i >= 0; i-- {
		args[i] = f.Pop()
	}
	if sym.Builtin == nil {
		f.Throw(errString(fmt.Sprintf("call_builtin: %q is not bound", sym.Name)))
		return
	}
	f.SetAccumulator(sym.Builtin(f, args))
}

// invokeRef calls a bound FunctionRef as SEND would, with an explicit
// argument list rather than an already-prepared stack window (used by
// DEREF, including the DEREF in call_out's synthesized wake frame).
func (in *Interp) invokeRef(f *fiber.Fiber, ref *value.FunctionRef, args []value.Any) {
	sym, ok := ref.Message.(*objtable.Symbol)
	if !ok {
		f.Throw(errString("function reference has no resolvable message"))
		return
	}
	fn, ok := in.resolve(ref.Receiver, sym, len(args), false, nil)
	if !ok {
		f.Throw(errString(fmt.Sprintf("%v: message %q not understood", kindOf(ref.Receiver), sym.Name)))
		return
	}
	f.Push(ref.Receiver)
	for _, a := range args {
		f.Push(a)
	}
	f.PushFrame(fn, len(args), nil)
}
