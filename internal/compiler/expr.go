package compiler

import (
	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/value"
)

// targetKind distinguishes an already-materialised value from a
// still-assignable lvalue. Every compile*() level below returns a
// target; as long as no binary/unary operator touched it, an lvalue
// target threads all the way up to compileAssignment unmaterialised,
// which is what lets `a = ...`, `a[i] = ...`, `a += ...` and `a++`
// work without a separate "parse an lvalue" grammar production.
type targetKind int

const (
	tgValue targetKind = iota // already in the accumulator
	tgLocal
	tgMember
	tgMappingVar // ambient per-object script variable, keyed by name
	tgIndex      // container[idx], container/idx already evaluated into hidden locals
)

type target struct {
	kind           targetKind
	idx            int // local frame index, or member flat index
	name           string
	containerLocal int
	indexLocal     int
}

func valueTarget() target { return target{kind: tgValue} }

// load emits code that leaves t's value in the accumulator. For
// tgValue it's a no-op: every target-returning function already leaves
// the accumulator holding a tgValue result by the time it returns one.
func (p *parser) load(t target) {
	w := p.fs.w
	switch t.kind {
	case tgValue:
	case tgLocal:
		w.EmitIndexed(codegen.LOAD_LOCAL, t.idx)
	case tgMember:
		w.EmitIndexed(codegen.LOAD_MEMBER, t.idx)
	case tgMappingVar:
		p.loadScriptVar(t.name)
	case tgIndex:
		// idx := f.Pop(); index(f, f.Accumulator(), idx) — idx must be
		// pushed, container must be the accumulator, at OPR time.
		w.EmitIndexed(codegen.LOAD_LOCAL, t.indexLocal)
		w.Emit(codegen.PUSH)
		w.EmitIndexed(codegen.LOAD_LOCAL, t.containerLocal)
		w.EmitOperator(codegen.OpIndex)
	}
}

// store emits code that assigns the accumulator's current value into
// t, leaving that value in the accumulator afterward (assignment is an
// expression whose value is the assigned value — true for free since
// STORE_LOCAL/STORE_MEMBER/OPR don't touch the accumulator besides
// computing into it).
func (p *parser) store(t target) {
	w := p.fs.w
	switch t.kind {
	case tgValue:
		panic("compiler: store to a non-assignable target (parser bug, should have been rejected earlier)")
	case tgLocal:
		w.EmitIndexed(codegen.STORE_LOCAL, t.idx)
	case tgMember:
		w.EmitIndexed(codegen.STORE_MEMBER, t.idx)
	case tgMappingVar:
		p.storeScriptVar(t.name)
	case tgIndex:
		// newVal := f.Pop(); idx := f.Pop(); indexAssign(f, acc, idx, newVal)
		// — newVal on top, idx beneath it, container in the accumulator.
		newVal := p.fs.hidden()
		w.EmitIndexed(codegen.STORE_LOCAL, newVal)
		w.EmitIndexed(codegen.LOAD_LOCAL, t.indexLocal)
		w.Emit(codegen.PUSH)
		w.EmitIndexed(codegen.LOAD_LOCAL, newVal)
		w.Emit(codegen.PUSH)
		w.EmitIndexed(codegen.LOAD_LOCAL, t.containerLocal)
		w.EmitOperator(codegen.OpIndexAssign)
	}
}

// ensureScriptVars lazily adds a hidden mapping member to hold
// identifiers that resolve to neither a local nor a declared blueprint
// member — the third, most-dynamic name-resolution tier (spec §4.4's
// "ambient mapping vars"). LOAD_MAPPING 0 in _init gives every instance
// its own fresh mapping rather than a shared one from the constant pool.
func (p *parser) ensureScriptVars() int {
	if p.scriptVarsIdx >= 0 {
		return p.scriptVarsIdx
	}
	sym := p.c.Table.Gensym("_scriptvars")
	idx := p.bp.AddVar(value.Simple(value.TMapping), sym, 0)
	p.scriptVarsIdx = idx

	w := p.initFS.w
	w.EmitIndexed(codegen.LOAD_MAPPING, 0)
	w.EmitIndexed(codegen.STORE_MEMBER, idx)
	return idx
}

func (p *parser) loadScriptVar(name string) {
	w := p.fs.w
	idx := p.ensureScriptVars()
	keyIdx := w.AddConst(value.Ptr(value.NewString(name)))
	w.EmitIndexed(codegen.LOAD_CONST, keyIdx)
	w.Emit(codegen.PUSH)
	w.EmitIndexed(codegen.LOAD_MEMBER, idx)
	w.EmitOperator(codegen.OpIndex)
}

func (p *parser) storeScriptVar(name string) {
	w := p.fs.w
	idx := p.ensureScriptVars()
	val := p.fs.hidden()
	w.EmitIndexed(codegen.STORE_LOCAL, val)
	keyIdx := w.AddConst(value.Ptr(value.NewString(name)))
	w.EmitIndexed(codegen.LOAD_CONST, keyIdx)
	w.Emit(codegen.PUSH)
	w.EmitIndexed(codegen.LOAD_LOCAL, val)
	w.Emit(codegen.PUSH)
	w.EmitIndexed(codegen.LOAD_MEMBER, idx)
	w.EmitOperator(codegen.OpIndexAssign)
}

// compileValue parses one assignment-level expression and guarantees
// its result sits in the accumulator when it returns.
func (p *parser) compileValue() {
	p.compileAssignment()
}

// compileAssignment is the entry point into the expression grammar
// (lowest precedence). Everything below it returns an unmaterialised
// target whenever no operator was applied, which is exactly when it's
// legal to assign to.
func (p *parser) compileAssignment() target {
	t := p.compileTernary()
	switch p.cur.Kind {
	case tAssign:
		p.advance()
		p.compileValue()
		p.store(t)
		return valueTarget()
	case tPlusEq, tMinusEq, tStarEq, tSlashEq, tPercentEq:
		op := p.cur.Kind
		p.advance()
		p.compileOpAssign(t, op)
		return valueTarget()
	default:
		p.load(t)
		return valueTarget()
	}
}

func (p *parser) compileOpAssign(t target, opTok tokenKind) {
	var op codegen.Operator
	switch opTok {
	case tPlusEq:
		op = codegen.OpAdd
	case tMinusEq:
		op = codegen.OpSub
	case tStarEq:
		op = codegen.OpMul
	case tSlashEq:
		op = codegen.OpDiv
	case tPercentEq:
		op = codegen.OpMod
	}
	w := p.fs.w
	p.load(t)
	tmp := p.fs.hidden()
	w.EmitIndexed(codegen.STORE_LOCAL, tmp)
	p.compileValue()
	w.Emit(codegen.PUSH)
	w.EmitIndexed(codegen.LOAD_LOCAL, tmp)
	w.EmitOperator(op)
	p.store(t)
}

func (p *parser) compileTernary() target {
	t := p.compileNullish()
	if p.cur.Kind != tQuestion {
		return t
	}
	p.load(t)
	p.advance()
	w := p.fs.w
	lelse := w.OpenLabel()
	lend := w.OpenLabel()
	w.EmitJumpTo(codegen.JUMP_IF_NOT, lelse)
	p.compileValue()
	w.EmitJumpTo(codegen.JUMP, lend)
	p.expect(tColon)
	w.PlaceLabel(lelse)
	w.CloseLabel(lelse)
	p.compileValue()
	w.PlaceLabel(lend)
	w.CloseLabel(lend)
	return valueTarget()
}

// compileNullish approximates `a ?? b` as "fall back to b unless a is
// truthy" (the ISA has no dedicated is-nil test), so an int 0 triggers
// the fallback the same as nil does — a deliberate approximation given
// a fixed instruction set, not a new opcode.
func (p *parser) compileNullish() target {
	t := p.compileLogicalOr()
	if p.cur.Kind != tQQ {
		return t
	}
	p.load(t)
	p.advance()
	w := p.fs.w
	lkeep := w.OpenLabel()
	lend := w.OpenLabel()
	w.EmitJumpTo(codegen.JUMP_IF, lkeep)
	p.load(p.compileLogicalOr())
	w.EmitJumpTo(codegen.JUMP, lend)
	w.PlaceLabel(lkeep)
	w.CloseLabel(lkeep)
	w.PlaceLabel(lend)
	w.CloseLabel(lend)
	return valueTarget()
}

func (p *parser) compileLogicalOr() target {
	t := p.compileLogicalAnd()
	for p.cur.Kind == tPipePipe {
		p.load(t)
		p.advance()
		w := p.fs.w
		ltrue := w.OpenLabel()
		lend := w.OpenLabel()
		w.EmitJumpTo(codegen.JUMP_IF, ltrue)
		rhs := p.compileLogicalAnd()
		p.load(rhs)
		w.EmitJumpTo(codegen.JUMP, lend)
		w.PlaceLabel(ltrue)
		w.CloseLabel(ltrue)
		oneIdx := w.AddConst(value.Int(1))
		w.EmitIndexed(codegen.LOAD_CONST, oneIdx)
		w.PlaceLabel(lend)
		w.CloseLabel(lend)
		t = valueTarget()
	}
	return t
}

func (p *parser) compileLogicalAnd() target {
	t := p.compileBitOr()
	for p.cur.Kind == tAmpAmp {
		p.load(t)
		p.advance()
		w := p.fs.w
		lfalse := w.OpenLabel()
		lend := w.OpenLabel()
		w.EmitJumpTo(codegen.JUMP_IF_NOT, lfalse)
		rhs := p.compileBitOr()
		p.load(rhs)
		w.EmitJumpTo(codegen.JUMP, lend)
		w.PlaceLabel(lfalse)
		w.CloseLabel(lfalse)
		zeroIdx := w.AddConst(value.Int(0))
		w.EmitIndexed(codegen.LOAD_CONST, zeroIdx)
		w.PlaceLabel(lend)
		w.CloseLabel(lend)
		t = valueTarget()
	}
	return t
}

// binaryLevel implements one left-associative precedence tier. The
// emitted sequence (evalLeft, stash in a hidden local, evalRight, push,
// reload the stash, OPR) evaluates both operands in natural left-to-
// right source order while still landing them in the positions OPR
// actually reads them from (rhs := Pop(), lhs := Accumulator()) —
// needed for every non-commutative operator (sub, div, comparisons),
// since whichever operand is evaluated last ends up in the accumulator
// regardless of its source position.
func (p *parser) binaryLevel(next func() target, ops map[tokenKind]codegen.Operator) target {
	t := next()
	for {
		op, ok := ops[p.cur.Kind]
		if !ok {
			return t
		}
		p.advance()
		w := p.fs.w
		p.load(t)
		tmp := p.fs.hidden()
		w.EmitIndexed(codegen.STORE_LOCAL, tmp)
		rhs := next()
		p.load(rhs)
		w.Emit(codegen.PUSH)
		w.EmitIndexed(codegen.LOAD_LOCAL, tmp)
		w.EmitOperator(op)
		t = valueTarget()
	}
}

func (p *parser) compileBitOr() target {
	return p.binaryLevel(p.compileBitAnd, map[tokenKind]codegen.Operator{tPipe: codegen.OpBitOr})
}

func (p *parser) compileBitAnd() target {
	return p.binaryLevel(p.compileEquality, map[tokenKind]codegen.Operator{tAmp: codegen.OpBitAnd})
}

func (p *parser) compileEquality() target {
	return p.binaryLevel(p.compileRelational, map[tokenKind]codegen.Operator{tEqEq: codegen.OpEq, tNe: codegen.OpIneq})
}

func (p *parser) compileRelational() target {
	t := p.binaryLevel(p.compileShift, map[tokenKind]codegen.Operator{
		tLt: codegen.OpLess, tLe: codegen.OpLessEq, tGt: codegen.OpGreater, tGe: codegen.OpGreaterEq,
	})
	for p.curIsKeyword("is") {
		p.load(t)
		p.advance()
		typ := p.parseType()
		typeIdx := p.fs.w.AddType(typ)
		p.fs.w.EmitIndexed(codegen.TYPEIS, typeIdx)
		t = valueTarget()
	}
	return t
}

func (p *parser) compileShift() target {
	return p.binaryLevel(p.compileAdditive, map[tokenKind]codegen.Operator{tShl: codegen.OpShl, tShr: codegen.OpShr})
}

func (p *parser) compileAdditive() target {
	return p.binaryLevel(p.compileMultiplicative, map[tokenKind]codegen.Operator{tPlus: codegen.OpAdd, tMinus: codegen.OpSub})
}

func (p *parser) compileMultiplicative() target {
	return p.binaryLevel(p.compileUnary, map[tokenKind]codegen.Operator{
		tStar: codegen.OpMul, tSlash: codegen.OpDiv, tPercent: codegen.OpMod,
	})
}

func (p *parser) compileUnary() target {
	w := p.fs.w
	switch p.cur.Kind {
	case tPlus:
		p.advance()
		t := p.compileUnary()
		p.load(t)
		return valueTarget()
	case tMinus:
		p.advance()
		t := p.compileUnary()
		p.load(t)
		w.EmitOperator(codegen.OpNegate)
		return valueTarget()
	case tBang:
		p.advance()
		t := p.compileUnary()
		p.load(t)
		w.EmitOperator(codegen.OpNot)
		return valueTarget()
	case tStar:
		p.advance()
		t := p.compileUnary()
		p.load(t)
		w.EmitOperator(codegen.OpDeref)
		return valueTarget()
	case tAmp:
		p.advance()
		if p.cur.Kind != tIdent {
			p.errorf(p.cur, "expected a function name after '&'")
		}
		name := p.cur.Lit
		p.advance()
		sym := p.c.Table.Find(name)
		symIdx := w.AddConst(value.Ptr(sym))
		w.EmitFuncref(symIdx)
		return valueTarget()
	}
	if p.curIsKeyword("sizeof") {
		p.advance()
		t := p.compileUnary()
		p.load(t)
		w.EmitOperator(codegen.OpSizeof)
		return valueTarget()
	}
	return p.compilePostfix()
}

func (p *parser) compilePostfix() target {
	t := p.compilePrimary()
	for {
		switch p.cur.Kind {
		case tLBrack:
			p.advance()
			w := p.fs.w
			p.load(t)
			containerLocal := p.fs.hidden()
			w.EmitIndexed(codegen.STORE_LOCAL, containerLocal)
			p.compileValue()
			p.expect(tRBrack)
			indexLocal := p.fs.hidden()
			w.EmitIndexed(codegen.STORE_LOCAL, indexLocal)
			t = target{kind: tgIndex, containerLocal: containerLocal, indexLocal: indexLocal}

		case tArrow, tDot:
			p.advance()
			if p.cur.Kind != tIdent {
				p.errorf(p.cur, "expected a method name")
			}
			name := p.cur.Lit
			p.advance()
			p.expect(tLParen)
			w := p.fs.w
			p.load(t)
			w.Emit(codegen.PUSH)
			nargs := p.compileCallArgs()
			p.expect(tRParen)
			sym := p.c.Table.Find(name)
			msgIdx := w.AddConst(value.Ptr(sym))
			w.EmitSend(codegen.SEND, msgIdx, nargs)
			t = valueTarget()

		case tPlusPlus, tMinusMinus:
			op := codegen.OpAdd
			if p.cur.Kind == tMinusMinus {
				op = codegen.OpSub
			}
			p.advance()
			t = p.compileIncDec(t, op)

		default:
			return t
		}
	}
}

// compileIncDec lowers postfix ++/-- as: stash the current value, add
// or subtract one against the stash, store the result back, then
// reload the stash so the whole expression evaluates to the
// pre-increment value.
func (p *parser) compileIncDec(t target, op codegen.Operator) target {
	w := p.fs.w
	p.load(t)
	old := p.fs.hidden()
	w.EmitIndexed(codegen.STORE_LOCAL, old)
	oneIdx := w.AddConst(value.Int(1))
	w.EmitIndexed(codegen.LOAD_CONST, oneIdx)
	w.Emit(codegen.PUSH)
	w.EmitIndexed(codegen.LOAD_LOCAL, old)
	w.EmitOperator(op)
	p.store(t)
	w.EmitIndexed(codegen.LOAD_LOCAL, old)
	return valueTarget()
}

func (p *parser) compileCallArgs() int {
	n := 0
	if p.cur.Kind == tRParen {
		return 0
	}
	for {
		p.compileValue()
		p.fs.w.Emit(codegen.PUSH)
		n++
		if p.cur.Kind != tComma {
			break
		}
		p.advance()
	}
	return n
}

func (p *parser) compilePrimary() target {
	w := p.fs.w
	tok := p.cur

	switch {
	case tok.Kind == tInt:
		p.advance()
		idx := w.AddConst(value.Int(tok.Int))
		w.EmitIndexed(codegen.LOAD_CONST, idx)
		return valueTarget()

	case tok.Kind == tChar:
		p.advance()
		idx := w.AddConst(value.Char(tok.Ch))
		w.EmitIndexed(codegen.LOAD_CONST, idx)
		return valueTarget()

	case tok.Kind == tString:
		p.advance()
		idx := w.AddConst(value.Ptr(value.NewString(tok.Lit)))
		w.EmitIndexed(codegen.LOAD_CONST, idx)
		return valueTarget()

	case tok.Kind == tSymbol:
		p.advance()
		sym := p.c.Table.Find(tok.Lit)
		idx := w.AddConst(value.Ptr(sym))
		w.EmitIndexed(codegen.LOAD_CONST, idx)
		return valueTarget()

	case tok.Kind == tLParen:
		p.advance()
		t := p.compileAssignment()
		p.expect(tRParen)
		return t

	case tok.Kind == tLBrack:
		return p.compileArrayLiteral()

	case tok.Kind == tLBrace:
		return p.compileMappingLiteral()

	case tok.Kind == tDColon:
		return p.compileSuperSend()

	case tok.Kind == tIdent:
		switch tok.Lit {
		case "true":
			p.advance()
			idx := w.AddConst(value.Int(1))
			w.EmitIndexed(codegen.LOAD_CONST, idx)
			return valueTarget()
		case "false":
			p.advance()
			idx := w.AddConst(value.Int(0))
			w.EmitIndexed(codegen.LOAD_CONST, idx)
			return valueTarget()
		case "nil":
			p.advance()
			idx := w.AddConst(value.Nil)
			w.EmitIndexed(codegen.LOAD_CONST, idx)
			return valueTarget()
		case "self":
			p.advance()
			w.Emit(codegen.LOAD_SELF)
			return valueTarget()
		}
		return p.compileIdentifier()
	}

	p.errorf(tok, "unexpected token in expression")
	return target{}
}

// compileIdentifier resolves a bare name in the order the grammar
// promises: a call (builtin if the symbol already carries a Builtin
// handler, otherwise a self-send); a local; a declared blueprint
// member; finally the ambient script-variable mapping.
func (p *parser) compileIdentifier() target {
	name := p.cur.Lit
	p.advance()
	w := p.fs.w

	if p.cur.Kind == tLParen {
		p.advance()
		if sym, ok := p.c.Table.Lookup(name); ok && sym.Builtin != nil {
			nargs := p.compileCallArgs()
			p.expect(tRParen)
			msgIdx := w.AddConst(value.Ptr(sym))
			w.EmitSend(codegen.CALL_BUILTIN, msgIdx, nargs)
			return valueTarget()
		}
		w.Emit(codegen.PUSH_SELF)
		nargs := p.compileCallArgs()
		p.expect(tRParen)
		sym := p.c.Table.Find(name)
		msgIdx := w.AddConst(value.Ptr(sym))
		w.EmitSend(codegen.SEND, msgIdx, nargs)
		return valueTarget()
	}

	if lv, ok := p.fs.lookup(name); ok {
		return target{kind: tgLocal, idx: lv.idx}
	}
	sym := p.c.Table.Find(name)
	if _, idx, ok := p.bp.FindVar(sym); ok {
		return target{kind: tgMember, idx: idx}
	}
	return target{kind: tgMappingVar, name: name}
}

func (p *parser) compileSuperSend() target {
	p.advance() // ::
	if p.cur.Kind != tIdent {
		p.errorf(p.cur, "expected a method name after '::'")
	}
	name := p.cur.Lit
	p.advance()
	p.expect(tLParen)
	w := p.fs.w
	w.Emit(codegen.PUSH_SELF)
	nargs := p.compileCallArgs()
	p.expect(tRParen)
	sym := p.c.Table.Find(name)
	msgIdx := w.AddConst(value.Ptr(sym))
	w.EmitSend(codegen.SUPER_SEND, msgIdx, nargs)
	return valueTarget()
}

func (p *parser) compileArrayLiteral() target {
	p.advance() // [
	w := p.fs.w
	n := 0
	if p.cur.Kind != tRBrack {
		for {
			p.compileValue()
			w.Emit(codegen.PUSH)
			n++
			if p.cur.Kind != tComma {
				break
			}
			p.advance()
		}
	}
	p.expect(tRBrack)
	w.EmitIndexed(codegen.LOAD_ARRAY, n)
	return valueTarget()
}

func (p *parser) compileMappingLiteral() target {
	p.advance() // {
	w := p.fs.w
	n := 0
	if p.cur.Kind != tRBrace {
		for {
			p.compileValue()
			w.Emit(codegen.PUSH)
			p.expect(tParrow)
			p.compileValue()
			w.Emit(codegen.PUSH)
			n++
			if p.cur.Kind != tComma {
				break
			}
			p.advance()
		}
	}
	p.expect(tRBrace)
	w.EmitIndexed(codegen.LOAD_MAPPING, n)
	return valueTarget()
}
