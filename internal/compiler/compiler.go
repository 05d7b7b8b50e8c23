// Package compiler implements the single-pass parser-compiler (spec
// §4.4, component C6): it walks mudlib source exactly once, emitting
// codegen.Writer bytecode directly as it recognises each grammar
// production — there is no intermediate AST to build or walk twice.
package compiler

import (
	"fmt"
	"path"
	"strings"

	"github.com/ravenlang/raven/internal/blueprint"
	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/rlog"
	"github.com/ravenlang/raven/internal/value"
	"github.com/ravenlang/raven/internal/vfs"
)

// defaultParentPath is the implicit ultimate ancestor every blueprint
// gets absent an explicit `inherit` statement — mirrors raven.basePath,
// kept as its own constant here so this package has no dependency on
// the engine-context package.
const defaultParentPath = "/secure/base"

// Resolver is the subset of *vfs.FS the compiler needs to follow
// `inherit`/`#include` paths and load already-compiled parents. *vfs.FS
// satisfies this structurally.
type Resolver interface {
	Read(virtPath string) (string, bool)
	FindBlueprint(virtPath string) (*blueprint.Blueprint, bool)
}

// Compiler is the engine's vfs.Compiler implementation.
type Compiler struct {
	Table    *objtable.Table
	Resolver Resolver
	Log      *rlog.Log
}

func New(table *objtable.Table, resolver Resolver, log *rlog.Log) *Compiler {
	return &Compiler{Table: table, Resolver: resolver, Log: log}
}

// parseError is recovered by CompileBlueprint and turned into a regular
// error return; panicking at the point of failure lets every parse
// helper report a syntax error without threading an error return
// through the entire recursive-descent call tree.
type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }

// CompileBlueprint satisfies vfs.Compiler: it parses source once and
// returns a fully-formed Blueprint, or a syntax error.
func (c *Compiler) CompileBlueprint(virtPath, source string) (bp *blueprint.Blueprint, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(*parseError); ok {
				err = pe
				return
			}
			panic(r)
		}
	}()

	p := &parser{c: c, src: source, virtPath: virtPath, scriptVarsIdx: -1}
	p.bp = blueprint.New(virtPath)
	p.lex = newLexer(source)
	initW := codegen.NewWriter(c.Table.Find("_init"), 0, false)
	p.initFS = newFuncScope(initW, 0)
	p.advance()

	inherited := p.parseTopStatements(tEOF)
	if !inherited {
		p.implicitInherit()
	}
	p.finishInitFunc()
	return p.bp, nil
}

// parser holds all per-compile state. A single parser value is reused
// (with bp/initFS/virtPath swapped in and out) for nested class bodies,
// since those are full blueprints of their own compiled inline.
type parser struct {
	c   *Compiler
	lex *lexer
	cur Token
	src string

	virtPath    string
	bp          *blueprint.Blueprint
	bareInherit bool

	initFS *funcScope
	fs     *funcScope // the function currently being compiled, if any

	scriptVarsIdx int
}

func (p *parser) advance() { p.cur = p.lex.next() }

func (p *parser) curIsKeyword(name string) bool {
	return p.cur.Kind == tIdent && p.cur.Lit == name
}

func (p *parser) expect(k tokenKind) {
	if p.cur.Kind != k {
		p.errorf(p.cur, "unexpected token %q", p.cur.Lit)
	}
	p.advance()
}

func (p *parser) expectKeyword(name string) {
	if !p.curIsKeyword(name) {
		p.errorf(p.cur, "expected %q", name)
	}
	p.advance()
}

func (p *parser) errorf(tok Token, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	line := sourceLineAt(p.src, tok.Line)
	diag := rlog.Diagnostic(p.virtPath, tok.Line, tok.Col, line, msg)
	if p.c.Log != nil {
		p.c.Log.Error("%s", diag)
	}
	panic(&parseError{msg: diag})
}

func sourceLineAt(src string, line int) string {
	lines := strings.Split(src, "\n")
	if line-1 >= 0 && line-1 < len(lines) {
		return lines[line-1]
	}
	return ""
}

func (p *parser) resolvePath(target string) string {
	return vfs.Resolve(path.Dir(p.virtPath), target)
}

// parseTopStatements parses a run of file-level statements (inherit,
// #include, class, memberDecl/funcDecl) until term is reached: tEOF for
// a whole file or an #include's target, tRBrace for a nested class
// body. Reports whether an inherit statement was seen so the caller
// can fall back to the implicit parent.
func (p *parser) parseTopStatements(term tokenKind) (sawInherit bool) {
	for p.cur.Kind != term {
		if p.cur.Kind == tEOF {
			p.errorf(p.cur, "unexpected end of input")
		}
		switch {
		case p.curIsKeyword("inherit"):
			p.parseInherit()
			sawInherit = true
		case p.cur.Kind == tInclude:
			p.parseInclude()
		case p.curIsKeyword("class"):
			p.parseClassStmt()
		default:
			p.parseMemberOrFunc()
		}
	}
	return sawInherit
}

// parseInherit handles `inherit;` (explicit no-parent) and
// `inherit "path";` (attach parent, then call its _init via super-send
// at this point of this blueprint's own _init, which is its top when the
// inherit precedes every member initialiser).
func (p *parser) parseInherit() {
	p.advance() // inherit
	if p.cur.Kind == tSemi {
		p.advance()
		p.bareInherit = true
		return
	}
	if p.cur.Kind != tString {
		p.errorf(p.cur, "expected a path or ';' after inherit")
	}
	target := p.cur.Lit
	tok := p.cur
	p.advance()
	p.expect(tSemi)

	virt := p.resolvePath(target)
	parent, ok := p.c.Resolver.FindBlueprint(virt)
	if !ok {
		p.errorf(tok, "inherit: cannot resolve %s", virt)
	}
	if err := p.bp.Inherit(parent); err != nil {
		p.errorf(tok, "inherit: %v", err)
	}
	p.emitSuperInit()
}

func (p *parser) implicitInherit() {
	parent, ok := p.c.Resolver.FindBlueprint(defaultParentPath)
	if !ok || p.virtPath == defaultParentPath {
		return
	}
	if err := p.bp.Inherit(parent); err != nil {
		return
	}
	p.emitSuperInit()
}

// emitSuperInit appends a super-send of _init at the current end of this
// blueprint's own _init. parseInherit calls it as soon as the inherit
// statement is read, so an inherit written before the members runs the
// parent's initialisers first; implicitInherit calls it after every
// top-level statement, so for the implicit parent the call follows this
// blueprint's own member initialisers.
func (p *parser) emitSuperInit() {
	w := p.initFS.w
	w.Emit(codegen.PUSH_SELF)
	msgIdx := w.AddConst(value.Ptr(p.c.Table.Find("_init")))
	w.EmitSend(codegen.SUPER_SEND, msgIdx, 0)
}

func (p *parser) finishInitFunc() {
	p.initFS.w.Emit(codegen.RETURN)
	fn := p.initFS.w.Finish()
	p.bp.AddFunc(p.c.Table.Find("_init"), fn)
}

// parseInclude textually splices another file's statements into the
// current blueprint: it swaps in a fresh lexer over the included
// source, runs the same statement loop to that source's EOF, then
// restores the including file's lexer position.
func (p *parser) parseInclude() {
	p.advance() // #include
	if p.cur.Kind != tString {
		p.errorf(p.cur, "expected a string path after #include")
	}
	target := p.cur.Lit
	tok := p.cur
	p.advance()

	virt := p.resolvePath(target)
	source, ok := p.c.Resolver.Read(virt)
	if !ok {
		p.errorf(tok, "#include: cannot read %s", virt)
	}

	savedLex, savedCur, savedSrc, savedVirt := p.lex, p.cur, p.src, p.virtPath
	p.lex = newLexer(source)
	p.src = source
	p.virtPath = virt
	p.advance()

	p.parseTopStatements(tEOF)

	p.lex, p.cur, p.src, p.virtPath = savedLex, savedCur, savedSrc, savedVirt
}

// parseClassStmt handles `class Name "path";` (bind Name to an existing
// blueprint) and `class Name { ... };` (define Name as a freshly
// compiled nested blueprint). Either way Name becomes an object member,
// instantiated into it the moment this object's _init runs.
func (p *parser) parseClassStmt() {
	p.advance() // class
	if p.cur.Kind != tIdent {
		p.errorf(p.cur, "expected an identifier after class")
	}
	name := p.cur.Lit
	p.advance()

	var bp *blueprint.Blueprint
	switch {
	case p.cur.Kind == tString:
		target := p.cur.Lit
		tok := p.cur
		p.advance()
		virt := p.resolvePath(target)
		var ok bool
		bp, ok = p.c.Resolver.FindBlueprint(virt)
		if !ok {
			p.errorf(tok, "class %s: cannot resolve %s", name, virt)
		}
	case p.cur.Kind == tLBrace:
		bp = p.parseNestedBlueprint(name)
	default:
		p.errorf(p.cur, "expected '{' or a string after class %s", name)
	}
	p.expect(tSemi)

	sym := p.c.Table.Find(name)
	idx := p.bp.AddVar(value.Simple(value.TObject), sym, 0)

	w := p.initFS.w
	constIdx := w.AddConst(value.Ptr(bp))
	w.EmitIndexed(codegen.LOAD_CONST, constIdx)
	w.EmitOperator(codegen.OpNew)
	w.EmitIndexed(codegen.STORE_MEMBER, idx)
}

// parseNestedBlueprint compiles a `{ ... }` class body as its own
// Blueprint, by swapping the parser's bp/initFS/virtPath/bareInherit
// onto a fresh set for the duration, then restoring them.
func (p *parser) parseNestedBlueprint(name string) *blueprint.Blueprint {
	savedBp, savedInitFS, savedVirt, savedBare := p.bp, p.initFS, p.virtPath, p.bareInherit

	nestedVirt := fmt.Sprintf("%s#%s", p.virtPath, name)
	p.bp = blueprint.New(nestedVirt)
	p.virtPath = nestedVirt
	p.bareInherit = false
	initW := codegen.NewWriter(p.c.Table.Find("_init"), 0, false)
	p.initFS = newFuncScope(initW, 0)

	p.expect(tLBrace)
	inherited := p.parseTopStatements(tRBrace)
	p.expect(tRBrace)
	if !inherited {
		p.implicitInherit()
	}
	p.finishInitFunc()
	nested := p.bp

	p.bp, p.initFS, p.virtPath, p.bareInherit = savedBp, savedInitFS, savedVirt, savedBare
	return nested
}

// parseMemberOrFunc handles the shared `modifier* type IDENT (...)`
// production: a funcDecl if '(' follows the name, a memberDecl
// otherwise.
func (p *parser) parseMemberOrFunc() {
	mod := p.parseModifiers()
	typ := p.parseType()
	if p.cur.Kind != tIdent {
		p.errorf(p.cur, "expected an identifier")
	}
	name := p.cur.Lit
	p.advance()

	if p.cur.Kind == tLParen {
		p.parseFuncDecl(mod, typ, name)
		return
	}

	sym := p.c.Table.Find(name)
	idx := p.bp.AddVar(typ, sym, mod)

	if p.cur.Kind == tAssign {
		p.advance()
		p.compileMemberInit(idx)
	}
	p.expect(tSemi)
}

func (p *parser) compileMemberInit(idx int) {
	saved := p.fs
	p.fs = p.initFS
	p.compileValue()
	p.fs = saved
	p.initFS.w.EmitIndexed(codegen.STORE_MEMBER, idx)
}

func (p *parser) parseModifiers() codegen.Modifier {
	var m codegen.Modifier
	for p.cur.Kind == tIdent && modifierKeywords[p.cur.Lit] {
		switch p.cur.Lit {
		case "private":
			m |= codegen.ModPrivate
		case "protected":
			m |= codegen.ModProtected
		case "override":
			m |= codegen.ModOverride
		case "deprecated":
			m |= codegen.ModDeprecated
		case "nosave":
			m |= codegen.ModNosave
		}
		p.advance()
	}
	return m
}

func (p *parser) parseType() value.TypeTag {
	if p.cur.Kind != tIdent || !typeKeywords[p.cur.Lit] {
		p.errorf(p.cur, "expected a type")
	}
	var base value.BaseType
	switch p.cur.Lit {
	case "mixed":
		base = value.TAny
	case "void":
		base = value.TVoid
	case "int":
		base = value.TInt
	case "char":
		base = value.TChar
	case "string":
		base = value.TString
	case "object":
		base = value.TObject
	case "array":
		base = value.TArray
	case "mapping":
		base = value.TMapping
	case "function":
		base = value.TFunction
	case "funcref":
		base = value.TFuncRef
	case "symbol":
		base = value.TSymbol
	}
	p.advance()

	t := value.Simple(base)
	for p.cur.Kind == tLBrack {
		open := p.cur
		p.advance()
		if p.cur.Kind != tRBrack {
			p.errorf(open, "expected ']'")
		}
		p.advance()
		t = value.ArrayOf(t)
	}
	return t
}

// parseArgList parses `(type IDENT (',' type IDENT)* (',' '...')?) |
// '...'`. The caller has already consumed the opening '('.
func (p *parser) parseArgList() (types []value.TypeTag, names []string, varargs bool) {
	if p.cur.Kind == tEllipsis {
		p.advance()
		return nil, nil, true
	}
	if p.cur.Kind == tRParen {
		return nil, nil, false
	}
	for {
		if p.cur.Kind == tEllipsis {
			p.advance()
			varargs = true
			break
		}
		t := p.parseType()
		if p.cur.Kind != tIdent {
			p.errorf(p.cur, "expected a parameter name")
		}
		types = append(types, t)
		names = append(names, p.cur.Lit)
		p.advance()
		if p.cur.Kind != tComma {
			break
		}
		p.advance()
	}
	return types, names, varargs
}

func (p *parser) parseFuncDecl(mod codegen.Modifier, retType value.TypeTag, name string) {
	p.expect(tLParen)
	argTypes, argNames, varargs := p.parseArgList()
	p.expect(tRParen)

	sym := p.c.Table.Find(name)
	w := codegen.NewWriter(sym, len(argTypes), varargs)
	w.SetModifier(mod)
	w.SetReturnType(retType)
	w.SetArgTypes(argTypes)

	fs := newFuncScope(w, len(argTypes))
	for i, n := range argNames {
		fs.blocks[0][n] = localVar{idx: i + 1, typ: argTypes[i]}
	}
	fs.retType = retType

	saved := p.fs
	p.fs = fs
	p.compileBlock()
	p.fs = saved

	nilIdx := w.AddConst(value.Nil)
	w.EmitIndexed(codegen.LOAD_CONST, nilIdx)
	w.Emit(codegen.RETURN)

	fn := w.Finish()
	p.bp.AddFunc(sym, fn)
}
