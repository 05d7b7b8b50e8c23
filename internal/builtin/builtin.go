// Package builtin implements the seed set of built-in functions bound via
// CALL_BUILTIN (spec §4.9, §6 "Built-in ABI"): clone_object, this_object,
// call_out, sleep, write/write_to, input_line, typeof, gensym. Each
// satisfies objtable.BuiltinFunc and is registered into the symbol table
// the compiler recognises for CALL_BUILTIN emission.
package builtin

import (
	"fmt"
	"time"

	"github.com/ravenlang/raven/internal/blueprint"
	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/fiber"
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/value"
)

// BlueprintResolver locates a compiled blueprint by virtual path.
// internal/vfs satisfies this; declared here (rather than imported)
// so internal/builtin does not have to depend on the compiler toolchain
// just to clone an already-loaded blueprint.
type BlueprintResolver interface {
	FindBlueprint(path string) (*blueprint.Blueprint, bool)
}

// FiberSpawner creates a fresh Running fiber already admitted to the
// scheduler's ready list. *scheduler.Scheduler satisfies this.
type FiberSpawner interface {
	Spawn() *fiber.Fiber
}

// Logger is the fallback sink for write()/write_to() when no connection
// is bound (or the target connection is unknown) — internal/rlog's
// pluggable diagnostics log satisfies this.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Register binds the seed set into table. spawner and resolver may be
// nil in contexts that never need them (e.g. a REPL without call_out or
// clone_object); calling the corresponding built-in then returns an
// "error: ..." string value instead of panicking.
func Register(table *objtable.Table, spawner FiberSpawner, resolver BlueprintResolver, logger Logger) {
	table.RegisterBuiltin("clone_object", cloneObject(table, resolver))
	table.RegisterBuiltin("this_object", thisObject)
	table.RegisterBuiltin("call_out", callOut(spawner))
	table.RegisterBuiltin("sleep", sleep)
	table.RegisterBuiltin("write", write(logger))
	table.RegisterBuiltin("write_to", writeTo(logger))
	table.RegisterBuiltin("input_line", inputLine)
	table.RegisterBuiltin("typeof", typeOf(table))
	table.RegisterBuiltin("gensym", gensym(table))
}

func throwString(f objtable.Fiber, msg string) value.Any {
	// objtable.Fiber has no Throw; built-ins report failure by returning
	// an error-string value in the accumulator slot CALL_BUILTIN already
	// writes to, matching errString's placeholder error-payload shape in
	// internal/interp until a dedicated error kind exists.
	return value.Ptr(value.NewString("error: " + msg))
}

func argString(v value.Any) (string, bool) {
	k, ok := v.Kind()
	if !ok || k != value.KindString {
		return "", false
	}
	return v.Ptr().(*value.String).Value, true
}

// cloneObject implements clone_object(path): resolves path via resolver
// and instantiates a fresh Object from it, tracked in the same table
// every other built-in and the interpreter share (spec §4.9).
func cloneObject(table *objtable.Table, resolver BlueprintResolver) objtable.BuiltinFunc {
	return func(f objtable.Fiber, args []value.Any) value.Any {
		if resolver == nil {
			return throwString(f, "clone_object: no filesystem collaborator configured")
		}
		if len(args) != 1 {
			return throwString(f, "clone_object: expected 1 argument")
		}
		path, ok := argString(args[0])
		if !ok {
			return throwString(f, "clone_object: path must be a string")
		}
		bp, ok := resolver.FindBlueprint(path)
		if !ok {
			return throwString(f, fmt.Sprintf("clone_object: no blueprint at %q", path))
		}
		obj := blueprint.Instantiate(bp, table)
		return value.Ptr(obj)
	}
}

func thisObject(f objtable.Fiber, args []value.Any) value.Any {
	return f.ThisObject()
}

// callOut implements call_out(funcref, delay_seconds) (spec §4.9): spawns
// a new fiber, parks it asleep until now+delay, and gives it a single
// synthesized frame that dereferences funcref on wake — built from the
// same LOAD_CONST+OPR DEREF+RETURN sequence a compiled `*ref` expression
// would produce, so the call runs through the ordinary interpreter loop
// rather than a special-cased fiber hook.
func callOut(spawner FiberSpawner) objtable.BuiltinFunc {
	return func(f objtable.Fiber, args []value.Any) value.Any {
		if spawner == nil {
			return throwString(f, "call_out: no scheduler configured")
		}
		if len(args) != 2 {
			return throwString(f, "call_out: expected 2 arguments")
		}
		refAny := args[0]
		k, ok := refAny.Kind()
		if !ok || k != value.KindFunctionRef {
			return throwString(f, "call_out: first argument must be a function reference")
		}
		if !args[1].IsInt() {
			return throwString(f, "call_out: delay must be an int")
		}
		delay := time.Duration(args[1].IntValue()) * time.Second

		ref := refAny.Ptr().(*value.FunctionRef)
		w := codegen.NewWriter(nil, 0, false)
		c := w.AddConst(refAny)
		w.EmitIndexed(codegen.LOAD_CONST, c)
		w.EmitOperator(codegen.OpDeref)
		w.Emit(codegen.RETURN)
		fn := w.Finish()

		newFiber := spawner.Spawn()
		newFiber.Push(ref.Receiver)
		newFiber.PushFrame(fn, 0, nil)
		newFiber.SleepUntil(time.Now().Add(delay))
		return value.Int(int64(newFiber.ID))
	}
}

func sleep(f objtable.Fiber, args []value.Any) value.Any {
	if len(args) != 1 || !args[0].IsInt() {
		return throwString(f, "sleep: expected 1 int argument")
	}
	f.SleepUntil(time.Now().Add(time.Duration(args[0].IntValue()) * time.Second))
	return value.Nil
}

// write implements write(string): writes through the fiber's bound
// connection if one exists, otherwise falls back to the engine log
// (spec §4.9 "writes through the fiber's bound Connection (or the engine
// log, if none bound)").
func write(logger Logger) objtable.BuiltinFunc {
	return func(f objtable.Fiber, args []value.Any) value.Any {
		if len(args) != 1 {
			return throwString(f, "write: expected 1 argument")
		}
		s, ok := argString(args[0])
		if !ok {
			return throwString(f, "write: argument must be a string")
		}
		conn := f.BoundConnection()
		if k, ok := conn.Kind(); ok && k == value.KindConnection {
			c := conn.Ptr().(*value.Connection)
			if err := c.Send(s); err != nil {
				return throwString(f, "write: "+err.Error())
			}
			return value.Nil
		}
		if logger != nil {
			logger.Printf("%s", s)
		}
		return value.Nil
	}
}

// writeTo implements write_to(connection, string): the explicit-target
// counterpart to write() used by background fibers with no connection
// bound of their own (e.g. a call_out callback broadcasting to a player).
func writeTo(logger Logger) objtable.BuiltinFunc {
	return func(f objtable.Fiber, args []value.Any) value.Any {
		if len(args) != 2 {
			return throwString(f, "write_to: expected 2 arguments")
		}
		k, ok := args[0].Kind()
		if !ok || k != value.KindConnection {
			return throwString(f, "write_to: first argument must be a connection")
		}
		s, ok := argString(args[1])
		if !ok {
			return throwString(f, "write_to: second argument must be a string")
		}
		c := args[0].Ptr().(*value.Connection)
		if err := c.Send(s); err != nil {
			return throwString(f, "write_to: "+err.Error())
		}
		return value.Nil
	}
}

func inputLine(f objtable.Fiber, args []value.Any) value.Any {
	f.WaitForInput()
	return value.Nil
}

// typeOf implements typeof(any): a Symbol naming the runtime kind, per
// spec §4.9. nil and int/char values (which carry no Kind) are named by
// their tag directly rather than reported as errors.
func typeOf(table *objtable.Table) objtable.BuiltinFunc {
	return func(f objtable.Fiber, args []value.Any) value.Any {
		if len(args) != 1 {
			return throwString(f, "typeof: expected 1 argument")
		}
		v := args[0]
		if k, ok := v.Kind(); ok {
			return value.Ptr(table.Find(k.String()))
		}
		switch v.Tag() {
		case value.TagNil:
			return value.Ptr(table.Find("nil"))
		case value.TagInt:
			return value.Ptr(table.Find("int"))
		case value.TagChar:
			return value.Ptr(table.Find("char"))
		default:
			return value.Ptr(table.Find("unknown"))
		}
	}
}

// gensym implements gensym(prefix?) (spec §4.9/§4.1): an unnamed,
// never-interned symbol individuated for logging.
func gensym(table *objtable.Table) objtable.BuiltinFunc {
	return func(f objtable.Fiber, args []value.Any) value.Any {
		prefix := "g"
		if len(args) == 1 {
			if s, ok := argString(args[0]); ok {
				prefix = s
			}
		}
		return value.Ptr(table.Gensym(prefix))
	}
}
