// Package blueprint implements the class/instance model (spec §3/§4.2,
// components C3 and C4): Blueprint, Vars, and Object.
package blueprint

import (
	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/value"
)

// VarFlags reuses the modifier bits funcDecl/memberDecl share (spec §4.4
// grammar `modifier`); a member variable can carry `nosave`/`private`
// just as a method can.
type VarFlags = codegen.Modifier

type varEntry struct {
	Type value.TypeTag
	Name *objtable.Symbol
	Flags VarFlags
}

// Vars is a dynamically sized ordered sequence of (type-tag, name-symbol,
// flags) with an optional parent chain (spec §3 "Vars").
type Vars struct {
	parent  *Vars
	entries []varEntry
}

func NewVars(parent *Vars) *Vars {
	return &Vars{parent: parent}
}

// Fill is the number of entries declared directly on this Vars (not
// counting the parent chain).
func (v *Vars) Fill() int { return len(v.entries) }

// Count is the sum of fills up the parent chain (spec §3 "count = sum of
// fills up the chain").
func (v *Vars) Count() int {
	n := v.Fill()
	if v.parent != nil {
		n += v.parent.Count()
	}
	return n
}

// Add appends a new variable, returning its flat index. Existing indices
// never change (spec §8 invariant: "add never decreases indices of
// previously added names").
func (v *Vars) Add(t value.TypeTag, name *objtable.Symbol, flags VarFlags) int {
	base := 0
	if v.parent != nil {
		base = v.parent.Count()
	}
	idx := base + len(v.entries)
	v.entries = append(v.entries, varEntry{Type: t, Name: name, Flags: flags})
	return idx
}

// Find searches inner-to-outer (this Vars first, then its parent chain)
// and returns the type and a flat index count(parent)+position (spec §3
// "find(name) searches inner-to-outer ... returns the type and a flat
// index").
func (v *Vars) Find(name *objtable.Symbol) (value.TypeTag, int, bool) {
	for i := len(v.entries) - 1; i >= 0; i-- {
		if v.entries[i].Name == name {
			base := 0
			if v.parent != nil {
				base = v.parent.Count()
			}
			return v.entries[i].Type, base + i, true
		}
	}
	if v.parent != nil {
		return v.parent.Find(name)
	}
	return value.TypeTag{}, 0, false
}

// At returns the i'th entry declared directly on this Vars (0-based,
// local to this layer only — callers walking a page chain use this
// together with Fill to read one page's slots in declaration order).
func (v *Vars) At(i int) (value.TypeTag, *objtable.Symbol, VarFlags) {
	e := v.entries[i]
	return e.Type, e.Name, e.Flags
}
