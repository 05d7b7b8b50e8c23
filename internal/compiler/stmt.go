package compiler

import (
	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/value"
)

func (p *parser) compileBlock() {
	p.expect(tLBrace)
	p.fs.pushBlock()
	for p.cur.Kind != tRBrace {
		if p.cur.Kind == tEOF {
			p.errorf(p.cur, "unexpected end of input in block")
		}
		p.compileInstruction()
	}
	p.fs.popBlock()
	p.expect(tRBrace)
}

func (p *parser) compileInstruction() {
	switch {
	case p.cur.Kind == tLBrace:
		p.compileBlock()
	case p.cur.Kind == tSemi:
		p.advance()
	case p.curIsKeyword("if"):
		p.compileIf()
	case p.curIsKeyword("while"):
		p.compileWhile()
	case p.curIsKeyword("do"):
		p.compileDoWhile()
	case p.curIsKeyword("for"):
		p.compileFor()
	case p.curIsKeyword("foreach"):
		p.compileForeach()
	case p.curIsKeyword("switch"):
		p.compileSwitch()
	case p.curIsKeyword("break"):
		p.compileBreak()
	case p.curIsKeyword("continue"):
		p.compileContinue()
	case p.curIsKeyword("return"):
		p.compileReturn()
	case p.curIsKeyword("try"):
		p.compileTryCatch()
	case p.curIsKeyword("let") || (p.cur.Kind == tIdent && typeKeywords[p.cur.Lit]):
		p.compileVarDecl()
	default:
		p.compileExprStmt()
	}
}

func (p *parser) compileVarDecl() {
	var typ value.TypeTag
	var name string
	if p.curIsKeyword("let") {
		p.advance()
		if p.cur.Kind != tIdent {
			p.errorf(p.cur, "expected an identifier after let")
		}
		name = p.cur.Lit
		p.advance()
		typ = value.Mixed()
		if p.cur.Kind == tColon {
			p.advance()
			typ = p.parseType()
		}
	} else {
		typ = p.parseType()
		if p.cur.Kind != tIdent {
			p.errorf(p.cur, "expected an identifier")
		}
		name = p.cur.Lit
		p.advance()
	}

	idx := p.fs.declare(name, typ)
	w := p.fs.w
	if p.cur.Kind == tAssign {
		p.advance()
		p.compileValue()
	} else {
		nilIdx := w.AddConst(value.Nil)
		w.EmitIndexed(codegen.LOAD_CONST, nilIdx)
	}
	w.EmitIndexed(codegen.STORE_LOCAL, idx)
	p.expect(tSemi)
}

func (p *parser) compileIf() {
	p.advance() // if
	p.expect(tLParen)
	p.compileValue()
	p.expect(tRParen)

	w := p.fs.w
	lmid := w.OpenLabel()
	w.EmitJumpTo(codegen.JUMP_IF_NOT, lmid)
	p.compileInstruction()

	if p.curIsKeyword("else") {
		lend := w.OpenLabel()
		w.EmitJumpTo(codegen.JUMP, lend)
		w.PlaceLabel(lmid)
		w.CloseLabel(lmid)
		p.advance()
		p.compileInstruction()
		w.PlaceLabel(lend)
		w.CloseLabel(lend)
	} else {
		w.PlaceLabel(lmid)
		w.CloseLabel(lmid)
	}
}

func (p *parser) compileWhile() {
	p.advance() // while
	w := p.fs.w
	lhead := w.OpenLabel()
	w.PlaceLabel(lhead)

	p.expect(tLParen)
	p.compileValue()
	p.expect(tRParen)

	lend := w.OpenLabel()
	w.EmitJumpTo(codegen.JUMP_IF_NOT, lend)

	p.fs.pushLoop(lend, lhead)
	p.compileInstruction()
	p.fs.popLoop()

	w.EmitJumpTo(codegen.JUMP, lhead)
	w.CloseLabel(lhead)
	w.PlaceLabel(lend)
	w.CloseLabel(lend)
}

// compileDoWhile binds continue to the condition re-check (lcond), not
// the body's start (lhead): jumping straight back to the body's start
// would skip the condition test entirely and loop forever.
func (p *parser) compileDoWhile() {
	p.advance() // do
	w := p.fs.w
	lhead := w.OpenLabel()
	lcond := w.OpenLabel()
	lend := w.OpenLabel()

	w.PlaceLabel(lhead)
	p.fs.pushLoop(lend, lcond)
	p.compileInstruction()
	p.fs.popLoop()

	w.PlaceLabel(lcond)
	w.CloseLabel(lcond)
	p.expectKeyword("while")
	p.expect(tLParen)
	p.compileValue()
	p.expect(tRParen)
	p.expect(tSemi)

	w.EmitJumpTo(codegen.JUMP_IF, lhead)
	w.CloseLabel(lhead)
	w.PlaceLabel(lend)
	w.CloseLabel(lend)
}

func (p *parser) compileForClause() {
	if p.curIsKeyword("let") || (p.cur.Kind == tIdent && typeKeywords[p.cur.Lit]) {
		p.compileVarDecl()
		return
	}
	p.compileValue()
	p.expect(tSemi)
}

// compileFor lowers the three-clause for loop as: init; test; jump
// past the step to the body; step lives between the head and the
// body so continue can reach it without re-running the body.
func (p *parser) compileFor() {
	p.advance() // for
	p.expect(tLParen)

	if p.cur.Kind == tSemi {
		p.advance()
	} else {
		p.compileForClause()
	}

	w := p.fs.w
	lhead := w.OpenLabel()
	lend := w.OpenLabel()
	lmid := w.OpenLabel()
	lcont := w.OpenLabel()

	w.PlaceLabel(lhead)
	if p.cur.Kind != tSemi {
		p.compileValue()
		w.EmitJumpTo(codegen.JUMP_IF_NOT, lend)
	}
	p.expect(tSemi)
	w.EmitJumpTo(codegen.JUMP, lmid)

	// lcont is placed here (it's the step's address) but stays open
	// through the body below, since a continue inside it must still be
	// able to reference it.
	w.PlaceLabel(lcont)
	if p.cur.Kind != tRParen {
		p.compileValue()
	}
	p.expect(tRParen)
	w.EmitJumpTo(codegen.JUMP, lhead)
	w.CloseLabel(lhead)

	w.PlaceLabel(lmid)
	w.CloseLabel(lmid)
	p.fs.pushLoop(lend, lcont)
	p.compileInstruction()
	p.fs.popLoop()
	w.EmitJumpTo(codegen.JUMP, lcont)
	w.CloseLabel(lcont)

	w.PlaceLabel(lend)
	w.CloseLabel(lend)
}

// compileForeach lowers `foreach (type v : list) body` with two hidden
// locals (the evaluated list, and an integer cursor) rather than the
// exact opcode sequence the design-level template sketches — that
// sketch doesn't account for OPR's fixed accumulator/pop operand
// order (see binaryLevel in expr.go), so this emits the logically equivalent,
// operand-order-correct form instead.
func (p *parser) compileForeach() {
	p.advance() // foreach
	p.expect(tLParen)
	typ := p.parseType()
	if p.cur.Kind != tIdent {
		p.errorf(p.cur, "expected a loop variable name")
	}
	varName := p.cur.Lit
	p.advance()
	p.expect(tColon)
	w := p.fs.w

	p.compileValue()
	p.expect(tRParen)
	listIdx := p.fs.hidden()
	w.EmitIndexed(codegen.STORE_LOCAL, listIdx)

	zeroIdx := w.AddConst(value.Int(0))
	w.EmitIndexed(codegen.LOAD_CONST, zeroIdx)
	counterIdx := p.fs.hidden()
	w.EmitIndexed(codegen.STORE_LOCAL, counterIdx)

	lhead := w.OpenLabel()
	lend := w.OpenLabel()
	lcont := w.OpenLabel()
	w.PlaceLabel(lhead)

	// counter < sizeof(list)
	w.EmitIndexed(codegen.LOAD_LOCAL, listIdx)
	w.EmitOperator(codegen.OpSizeof)
	w.Emit(codegen.PUSH)
	w.EmitIndexed(codegen.LOAD_LOCAL, counterIdx)
	w.EmitOperator(codegen.OpLess)
	w.EmitJumpTo(codegen.JUMP_IF_NOT, lend)

	// v = list[counter]
	w.EmitIndexed(codegen.LOAD_LOCAL, counterIdx)
	w.Emit(codegen.PUSH)
	w.EmitIndexed(codegen.LOAD_LOCAL, listIdx)
	w.EmitOperator(codegen.OpIndex)

	p.fs.pushBlock()
	vIdx := p.fs.declare(varName, typ)
	w.EmitIndexed(codegen.STORE_LOCAL, vIdx)

	p.fs.pushLoop(lend, lcont)
	p.compileInstruction()
	p.fs.popLoop()
	p.fs.popBlock()

	w.PlaceLabel(lcont)
	w.CloseLabel(lcont)
	oneIdx := w.AddConst(value.Int(1))
	w.EmitIndexed(codegen.LOAD_CONST, oneIdx)
	w.Emit(codegen.PUSH)
	w.EmitIndexed(codegen.LOAD_LOCAL, counterIdx)
	w.EmitOperator(codegen.OpAdd)
	w.EmitIndexed(codegen.STORE_LOCAL, counterIdx)

	w.EmitJumpTo(codegen.JUMP, lhead)
	w.CloseLabel(lhead)
	w.PlaceLabel(lend)
	w.CloseLabel(lend)
}

// compileSwitch lowers to a chain of test-then-fall-through bodies: a
// failing case test jumps to the next case's test (set up as a pending
// label placed when that next "case"/"default" token is reached), and
// every case after the first clause opens with a jump over its own
// test, so a body with no break runs into the next case's body, which
// is what fallthrough means; only `break` inserts a jump out.
func (p *parser) compileSwitch() {
	p.advance() // switch
	p.expect(tLParen)
	p.compileValue()
	w := p.fs.w
	xIdx := p.fs.hidden()
	w.EmitIndexed(codegen.STORE_LOCAL, xIdx)
	p.expect(tRParen)
	p.expect(tLBrace)

	lend := w.OpenLabel()
	p.fs.pushBreakOnly(lend)

	var pending codegen.LabelID
	havePending := false
	seenClause := false

	for p.cur.Kind != tRBrace {
		switch {
		case p.curIsKeyword("case"):
			// Falling in from the previous body skips this case's test.
			var lbody codegen.LabelID
			skipTest := seenClause
			if skipTest {
				lbody = w.OpenLabel()
				w.EmitJumpTo(codegen.JUMP, lbody)
			}
			if havePending {
				w.PlaceLabel(pending)
				w.CloseLabel(pending)
			}
			p.advance()
			p.compileValue()
			w.Emit(codegen.PUSH)
			w.EmitIndexed(codegen.LOAD_LOCAL, xIdx)
			w.EmitOperator(codegen.OpEq)
			p.expect(tColon)
			pending = w.OpenLabel()
			w.EmitJumpTo(codegen.JUMP_IF_NOT, pending)
			havePending = true
			if skipTest {
				w.PlaceLabel(lbody)
				w.CloseLabel(lbody)
			}
			seenClause = true
		case p.curIsKeyword("default"):
			if havePending {
				w.PlaceLabel(pending)
				w.CloseLabel(pending)
				havePending = false
			}
			seenClause = true
			p.advance()
			p.expect(tColon)
		default:
			if p.cur.Kind == tEOF {
				p.errorf(p.cur, "unexpected end of input in switch")
			}
			p.compileInstruction()
		}
	}
	if havePending {
		w.PlaceLabel(pending)
		w.CloseLabel(pending)
	}
	p.expect(tRBrace)

	p.fs.popLoop()
	w.PlaceLabel(lend)
	w.CloseLabel(lend)
}

func (p *parser) compileBreak() {
	tok := p.cur
	p.advance()
	p.expect(tSemi)
	l, ok := p.fs.currentBreak()
	if !ok {
		p.errorf(tok, "break outside of a loop or switch")
	}
	p.fs.w.EmitJumpTo(codegen.JUMP, l)
}

func (p *parser) compileContinue() {
	tok := p.cur
	p.advance()
	p.expect(tSemi)
	l, ok := p.fs.currentContinue()
	if !ok {
		p.errorf(tok, "continue outside of a loop")
	}
	p.fs.w.EmitJumpTo(codegen.JUMP, l)
}

func (p *parser) compileReturn() {
	p.advance() // return
	w := p.fs.w
	if p.cur.Kind == tSemi {
		nilIdx := w.AddConst(value.Nil)
		w.EmitIndexed(codegen.LOAD_CONST, nilIdx)
	} else {
		p.compileValue()
	}
	p.expect(tSemi)

	if p.fs.retType.Base != value.TAny && p.fs.retType.Base != value.TVoid {
		typeIdx := w.AddType(p.fs.retType)
		w.EmitIndexed(codegen.TYPECAST, typeIdx)
	}
	w.Emit(codegen.RETURN)
}

// compileTryCatch wires UPDATE_CATCH around the try body so a Throw
// unwinds straight into the handler with the thrown value already in
// the accumulator (fiber.Throw sets the accumulator before jumping),
// restoring whatever catch address was active before the try block
// once the protected region ends (normally or via the handler).
func (p *parser) compileTryCatch() {
	p.advance() // try
	w := p.fs.w

	lhandler := w.OpenLabel()
	outer, hasOuter := p.fs.currentCatch()
	w.EmitUpdateCatchTo(lhandler)
	p.fs.pushCatch(lhandler)

	p.compileInstruction() // try body

	if hasOuter {
		w.EmitUpdateCatchTo(outer)
	} else {
		w.EmitUpdateCatch(0)
	}
	p.fs.popCatch()

	lend := w.OpenLabel()
	w.EmitJumpTo(codegen.JUMP, lend)

	w.PlaceLabel(lhandler)
	w.CloseLabel(lhandler)
	if hasOuter {
		w.EmitUpdateCatchTo(outer)
	} else {
		w.EmitUpdateCatch(0)
	}

	p.expectKeyword("catch")
	p.expect(tLParen)
	typ := p.parseType()
	if p.cur.Kind != tIdent {
		p.errorf(p.cur, "expected a catch variable name")
	}
	name := p.cur.Lit
	p.advance()
	p.expect(tRParen)

	p.fs.pushBlock()
	idx := p.fs.declare(name, typ)
	w.EmitIndexed(codegen.STORE_LOCAL, idx) // thrown value is already in the accumulator
	p.compileInstruction()
	p.fs.popBlock()

	w.PlaceLabel(lend)
	w.CloseLabel(lend)
}

func (p *parser) compileExprStmt() {
	p.compileValue()
	p.expect(tSemi)
}
