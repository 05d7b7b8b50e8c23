package codegen

import (
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/value"
)

// Modifier bits a funcDecl/memberDecl can carry (spec §4.4 grammar
// `modifier`).
type Modifier uint8

const (
	ModPublic Modifier = 0
	ModPrivate Modifier = 1 << iota
	ModProtected
	ModOverride
	ModDeprecated
	ModNosave
)

func (m Modifier) Is(bit Modifier) bool { return m&bit != 0 }

// Function is an immutable payload produced by the Code Writer's Finish
// (spec §3 "Function"). It belongs to at most one Blueprint's method list
// at a time; membership is tracked via Owner/Index rather than an
// intrusive doubly-linked list (DESIGN.md decision 4: safe-ownership
// target for the re-architecture spec §9 calls out).
type Function struct {
	value.Header

	Name     *objtable.Symbol
	Modifier Modifier

	LocalCount int // includes the reserved self slot (locals[0])
	ArgCount   int
	Varargs    bool

	ArgTypes   []value.TypeTag
	ReturnType value.TypeTag

	Bytecode  []byte
	Constants []value.Any
	Types     []value.TypeTag // inline type-ref pool (TYPECHECK/TYPECAST/TYPEIS operands)

	// Owner/Index back-reference replacing the intrusive method list the
	// original driver used: Blueprint.RemoveFunc does an O(1) swap-remove
	// using Index, then fixes up the swapped function's Index.
	Owner value.HeapObject // the owning *blueprint.Blueprint, opaque here to avoid an import cycle
	Index int
}

func (f *Function) Mark(visit func(value.Any)) {
	if f.Name != nil {
		visit(value.Ptr(f.Name))
	}
	for _, c := range f.Constants {
		visit(c)
	}
	if f.Owner != nil {
		visit(value.Ptr(f.Owner))
	}
}

// Accepts reports whether nargs is a legal call arity for this function
// (spec §4.2 blueprint_lookup: "exact match, or fewer than declared when
// varargs is set").
func (f *Function) Accepts(nargs int) bool {
	if nargs == f.ArgCount {
		return true
	}
	return f.Varargs && nargs < f.ArgCount
}
