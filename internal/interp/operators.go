package interp

import (
	"fmt"

	"github.com/ravenlang/raven/internal/blueprint"
	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/fiber"
	"github.com/ravenlang/raven/internal/value"
)

// evalOperator executes one OPR sub-instruction (spec §4.8 operator set).
// Binary operators take their right operand off the data stack and their
// left operand from the accumulator, leaving the result in the
// accumulator; unary operators act on the accumulator alone.
func (in *Interp) evalOperator(f *fiber.Fiber, op codegen.Operator) {
	switch op {
	case codegen.OpAdd:
		in.binary(f, op, addValues)
	case codegen.OpSub:
		in.arith(f, func(a, b int64) int64 { return a - b })
	case codegen.OpMul:
		in.arith(f, func(a, b int64) int64 { return a * b })
	case codegen.OpDiv:
		rhs := f.Pop()
		lhs := f.Accumulator()
		if rhs.IntValue() == 0 {
			f.Throw(errString("division by zero"))
			return
		}
		f.SetAccumulator(value.Int(lhs.IntValue() / rhs.IntValue()))
	case codegen.OpMod:
		rhs := f.Pop()
		lhs := f.Accumulator()
		if rhs.IntValue() == 0 {
			f.Throw(errString("modulo by zero"))
			return
		}
		f.SetAccumulator(value.Int(lhs.IntValue() % rhs.IntValue()))
	case codegen.OpShl:
		in.arith(f, func(a, b int64) int64 { return a << uint(b) })
	case codegen.OpShr:
		in.arith(f, func(a, b int64) int64 { return a >> uint(b) })
	case codegen.OpLess:
		in.compare(f, func(a, b int64) bool { return a < b })
	case codegen.OpLessEq:
		in.compare(f, func(a, b int64) bool { return a <= b })
	case codegen.OpGreater:
		in.compare(f, func(a, b int64) bool { return a > b })
	case codegen.OpGreaterEq:
		in.compare(f, func(a, b int64) bool { return a >= b })
	case codegen.OpEq:
		rhs := f.Pop()
		f.SetAccumulator(boolValue(value.Eq(f.Accumulator(), rhs)))
	case codegen.OpIneq:
		rhs := f.Pop()
		f.SetAccumulator(boolValue(!value.Eq(f.Accumulator(), rhs)))
	case codegen.OpBitAnd:
		in.arith(f, func(a, b int64) int64 { return a & b })
	case codegen.OpBitOr:
		in.arith(f, func(a, b int64) int64 { return a | b })
	case codegen.OpNegate:
		f.SetAccumulator(value.Int(-f.Accumulator().IntValue()))
	case codegen.OpNot:
		f.SetAccumulator(boolValue(!f.Accumulator().IsTruthy()))
	case codegen.OpSizeof:
		n, ok := value.Sizeof(f.Accumulator())
		if !ok {
			f.Throw(errString("sizeof: unsupported operand"))
			return
		}
		f.SetAccumulator(value.Int(n))
	case codegen.OpIndex:
		idx := f.Pop()
		f.SetAccumulator(in.index(f, f.Accumulator(), idx))
	case codegen.OpIndexAssign:
		newVal := f.Pop()
		idx := f.Pop()
		in.indexAssign(f, f.Accumulator(), idx, newVal)
	case codegen.OpNew:
		in.newObject(f)
	case codegen.OpDeref:
		in.derefCall(f)
	default:
		f.Throw(errString(fmt.Sprintf("unknown operator %v", op)))
	}
}

func (in *Interp) arith(f *fiber.Fiber, fn func(a, b int64) int64) {
	rhs := f.Pop()
	lhs := f.Accumulator()
	f.SetAccumulator(value.Int(fn(lhs.IntValue(), rhs.IntValue())))
}

func (in *Interp) compare(f *fiber.Fiber, fn func(a, b int64) bool) {
	rhs := f.Pop()
	lhs := f.Accumulator()
	f.SetAccumulator(boolValue(fn(lhs.IntValue(), rhs.IntValue())))
}

// addValues implements `+`'s overload for strings and arrays (spec §4.8:
// "+ on two strings concatenates; on two arrays, joins"; nil plus a
// string yields the string unchanged).
func addValues(lhs, rhs value.Any) (value.Any, error) {
	lk, lok := lhs.Kind()
	rk, rok := rhs.Kind()
	switch {
	case lok && rok && lk == value.KindString && rk == value.KindString:
		ls := lhs.Ptr().(*value.String)
		rs := rhs.Ptr().(*value.String)
		return value.Ptr(value.NewString(ls.Value + rs.Value)), nil
	case lok && rok && lk == value.KindArray && rk == value.KindArray:
		la := lhs.Ptr().(*value.Array)
		ra := rhs.Ptr().(*value.Array)
		return value.Ptr(value.Concat(la, ra)), nil
	case lhs.IsNil() && rok && rk == value.KindString:
		return rhs, nil
	case rhs.IsNil() && lok && lk == value.KindString:
		return lhs, nil
	case lhs.IsInt() || lhs.IsChar():
		return value.Int(lhs.IntValue() + rhs.IntValue()), nil
	default:
		return value.Nil, fmt.Errorf("+ : unsupported operand kinds")
	}
}

func (in *Interp) binary(f *fiber.Fiber, op codegen.Operator, fn func(lhs, rhs value.Any) (value.Any, error)) {
	rhs := f.Pop()
	lhs := f.Accumulator()
	result, err := fn(lhs, rhs)
	if err != nil {
		f.Throw(errString(err.Error()))
		return
	}
	f.SetAccumulator(result)
}

// index implements INDEX (spec §4.8): string -> char, array -> element,
// mapping -> value (nil if absent, matching the driver's lenient lookup).
func (in *Interp) index(f *fiber.Fiber, coll, idx value.Any) value.Any {
	k, ok := coll.Kind()
	if !ok {
		f.Throw(errString("index: not a container"))
		return value.Nil
	}
	switch k {
	case value.KindString:
		s := coll.Ptr().(*value.String)
		r, ok := s.Index(idx.IntValue())
		if !ok {
			f.Throw(errString("string index out of range"))
			return value.Nil
		}
		return value.Char(r)
	case value.KindArray:
		a := coll.Ptr().(*value.Array)
		v, ok := a.Index(idx.IntValue())
		if !ok {
			f.Throw(errString("array index out of range"))
			return value.Nil
		}
		return v
	case value.KindMapping:
		m := coll.Ptr().(*value.Mapping)
		v, _ := m.Get(idx)
		return v
	default:
		f.Throw(errString("index: unsupported container kind"))
		return value.Nil
	}
}

// indexAssign implements INDEX_ASSIGN, mutating the container in place and
// leaving the assigned value in the accumulator (spec §4.8).
func (in *Interp) indexAssign(f *fiber.Fiber, coll, idx, newVal value.Any) {
	k, ok := coll.Kind()
	if !ok {
		f.Throw(errString("index-assign: not a container"))
		return
	}
	switch k {
	case value.KindArray:
		a := coll.Ptr().(*value.Array)
		if !a.IndexAssign(idx.IntValue(), newVal) {
			f.Throw(errString("array index out of range"))
			return
		}
	case value.KindMapping:
		m := coll.Ptr().(*value.Mapping)
		m.Set(idx, newVal)
	default:
		f.Throw(errString("index-assign: unsupported container kind"))
		return
	}
	f.SetAccumulator(newVal)
}

// newObject implements NEW (spec §4.8: "accepts a string path and
// instantiates the blueprint at that path"). The accumulator holds either
// a *blueprint.Blueprint directly — the form the compiler's class-
// statement lowering emits, which already has the blueprint in hand — or
// a string path, resolved through in.Resolver the same way the
// clone_object built-in resolves its argument. Either way the result is
// a freshly instantiated Object tracked in the object table.
func (in *Interp) newObject(f *fiber.Fiber) {
	acc := f.Accumulator()
	k, ok := acc.Kind()
	if !ok {
		f.Throw(errString("new: operand is not a blueprint or path"))
		return
	}
	switch k {
	case value.KindBlueprint:
		bp := acc.Ptr().(*blueprint.Blueprint)
		f.SetAccumulator(value.Ptr(blueprint.Instantiate(bp, in.Table)))
	case value.KindString:
		if in.Resolver == nil {
			f.Throw(errString("new: no blueprint resolver configured"))
			return
		}
		path := acc.Ptr().(*value.String).Value
		bp, ok := in.Resolver.FindBlueprint(path)
		if !ok {
			f.Throw(errString(fmt.Sprintf("new: blueprint not found: %s", path)))
			return
		}
		f.SetAccumulator(value.Ptr(blueprint.Instantiate(bp, in.Table)))
	default:
		f.Throw(errString("new: operand is not a blueprint or path"))
	}
}

// derefCall implements DEREF: invoking a bound FunctionRef with no
// arguments (spec GLOSSARY "dereferencing a function reference calls
// it"). Call sites needing arguments push them and use SEND/CALL_BUILTIN
// directly instead; DEREF covers the bare `*ref` form.
func (in *Interp) derefCall(f *fiber.Fiber) {
	acc := f.Accumulator()
	k, ok := acc.Kind()
	if !ok || k != value.KindFunctionRef {
		f.Throw(errString("deref: operand is not a function reference"))
		return
	}
	ref := acc.Ptr().(*value.FunctionRef)
	in.invokeRef(f, ref, nil)
}
