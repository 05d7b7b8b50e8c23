package blueprint

import (
	"fmt"

	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/value"
)

// Blueprint is a class: code + member-variable schema + parent pointer
// (spec §3 "Blueprint", component C3).
//
// Methods are kept in an indexed slice rather than an intrusive
// doubly-linked list (DESIGN.md decision 4, following spec §9's
// re-architecture note): Function.Index lets RemoveFunc swap-remove in
// O(1). Declaration order is preserved for as long as no function is
// removed; a removal may reorder the tail the way any swap-remove does —
// the spec's own note endorses this tradeoff for the safe-ownership
// target.
type Blueprint struct {
	value.Header

	VirtPath string
	Parent   *Blueprint
	Functions []*codegen.Function
	OwnVars  *Vars
}

// New creates a blueprint with empty vars and no parent (spec §4.2
// "blueprint_new").
func New(virtPath string) *Blueprint {
	return &Blueprint{
		Header:   value.NewHeader(value.KindBlueprint),
		VirtPath: virtPath,
		OwnVars:  NewVars(nil),
	}
}

func (b *Blueprint) Mark(visit func(value.Any)) {
	if b.Parent != nil {
		visit(value.Ptr(b.Parent))
	}
	for _, fn := range b.Functions {
		visit(value.Ptr(fn))
	}
}

// Inherit attaches parent. Fails if this blueprint already has a parent
// (spec §4.2 "fails if child.parent != nil"). Child's Vars is left
// untouched — instance layout is computed by walking the Blueprint chain
// on demand (Base/InstanceSize below), never by reparenting OwnVars.
func (b *Blueprint) Inherit(parent *Blueprint) error {
	if b.Parent != nil {
		return fmt.Errorf("blueprint %s: already inherits from %s", b.VirtPath, b.Parent.VirtPath)
	}
	b.Parent = parent
	return nil
}

// AddVar appends a variable to this blueprint's own Vars and returns its
// page-local index (0-based within this blueprint's own page).
func (b *Blueprint) AddVar(t value.TypeTag, name *objtable.Symbol, flags VarFlags) int {
	return b.OwnVars.Add(t, name, flags)
}

// AddFunc appends fn to the method list, sets fn's name and owner/index
// back-reference (spec §4.2 "blueprint_add_func ... also links the
// function into the blueprint's method list and sets its name").
func (b *Blueprint) AddFunc(name *objtable.Symbol, fn *codegen.Function) {
	fn.Name = name
	fn.Owner = b
	fn.Index = len(b.Functions)
	b.Functions = append(b.Functions, fn)
}

// RemoveFunc unlinks fn from its owner's method list in O(1) via
// swap-remove.
func (b *Blueprint) RemoveFunc(fn *codegen.Function) {
	if fn.Owner != b {
		return
	}
	last := len(b.Functions) - 1
	idx := fn.Index
	b.Functions[idx] = b.Functions[last]
	b.Functions[idx].Index = idx
	b.Functions = b.Functions[:last]
	fn.Owner = nil
	fn.Index = -1
}

// Lookup returns the first function on this blueprint (not its parents)
// whose name equals message, whose modifier permits the call, and which
// accepts argCount (spec §4.2 "blueprint_lookup"). Does NOT walk
// parents — callers honouring inheritance loop over the Blueprint chain
// themselves (internal/interp's SEND/SUPER_SEND do this).
func (b *Blueprint) Lookup(message *objtable.Symbol, argCount int, allowPrivate bool) (*codegen.Function, bool) {
	for _, fn := range b.Functions {
		if fn.Name != message {
			continue
		}
		if !allowPrivate && (fn.Modifier.Is(codegen.ModPrivate) || fn.Modifier.Is(codegen.ModProtected)) {
			continue
		}
		if !fn.Accepts(argCount) {
			continue
		}
		return fn, true
	}
	return nil, false
}

// Base is the flat instance-slot offset at which this blueprint's own
// page begins: the sum of every ancestor's own Vars.Fill() (spec §3
// "instance size of a blueprint equals the sum of fill counts up its
// parent chain").
func (b *Blueprint) Base() int {
	if b.Parent == nil {
		return 0
	}
	return b.Parent.InstanceSize()
}

// InstanceSize is the total flat slot count across the whole chain.
func (b *Blueprint) InstanceSize() int {
	return b.Base() + b.OwnVars.Fill()
}

// FindVar searches this blueprint's own vars, then its parent's, and so
// on up the chain (spec §4.6 identifier resolution: "blueprint member
// vars"), returning a flat index valid against the owning Object's page
// chain as a whole.
func (b *Blueprint) FindVar(name *objtable.Symbol) (value.TypeTag, int, bool) {
	for cur := b; cur != nil; cur = cur.Parent {
		if t, i, ok := cur.OwnVars.Find(name); ok {
			return t, cur.Base() + i, true
		}
	}
	return value.TypeTag{}, 0, false
}

// Chain returns the ancestor chain root-first (used to build an Object's
// page list in Instantiate).
func (b *Blueprint) Chain() []*Blueprint {
	var rev []*Blueprint
	for cur := b; cur != nil; cur = cur.Parent {
		rev = append(rev, cur)
	}
	chain := make([]*Blueprint, len(rev))
	for i, bp := range rev {
		chain[len(rev)-1-i] = bp
	}
	return chain
}
