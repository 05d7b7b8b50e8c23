package compiler

// tokenKind enumerates every lexical category the lexer produces (spec
// §4.4's grammar). Keywords are not their own token kind: they arrive as
// a plain tIdent and the parser recognises reserved words by text, the
// way a single-pass compiler with no separate keyword table keeps the
// lexer small — every reserved word doubles as a valid identifier
// lexeme, and only the parser's position in the grammar decides which
// reading applies.
type tokenKind int

const (
	tEOF tokenKind = iota
	tIdent
	tInt
	tChar
	tString
	tSymbol  // #'name' or #:name
	tInclude // the `#include` directive

	tLParen
	tRParen
	tLBrace
	tRBrace
	tLBrack
	tRBrack
	tComma
	tSemi
	tColon
	tQuestion
	tQQ     // ??
	tDColon // ::
	tArrow  // ->
	tDot
	tEllipsis // ...

	tAmp
	tAmpAmp
	tPipe
	tPipePipe
	tBang

	tPlus
	tMinus
	tStar
	tSlash
	tPercent
	tShl
	tShr
	tLt
	tLe
	tGt
	tGe
	tEqEq
	tNe

	tAssign
	tPlusEq
	tMinusEq
	tStarEq
	tSlashEq
	tPercentEq
	tPlusPlus
	tMinusMinus
	tParrow // =>
)

// Token is one lexeme plus its source position, carried through to
// rlog.Diagnostic for syntax-error rendering.
type Token struct {
	Kind tokenKind
	Lit  string
	Int  int64
	Ch   rune
	Line int
	Col  int
}

// typeKeywords names the base-type tokens memberDecl/funcDecl/vardecl
// accept (spec §3's coarse type tags).
var typeKeywords = map[string]bool{
	"mixed": true, "void": true, "int": true, "char": true,
	"string": true, "object": true, "array": true, "mapping": true,
	"function": true, "funcref": true, "symbol": true,
}

// modifierKeywords names the modifier tokens a memberDecl/funcDecl can
// carry (spec §4.4 grammar `modifier`).
var modifierKeywords = map[string]bool{
	"private": true, "protected": true, "public": true,
	"override": true, "deprecated": true, "nosave": true,
}
