package blueprint

import (
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/value"
)

// Page is the slot block associated with one blueprint layer of an
// instance (spec GLOSSARY "Page").
type Page struct {
	Blueprint *Blueprint
	Slots     []value.Any
}

// Object is an instance of a Blueprint: a page chain (one page per
// blueprint in the inheritance chain), plus containment links, a
// heartbeat list link, an initialisation flag, and an engine "stash"
// slot (spec §3 "Object").
type Object struct {
	value.Header

	Blueprint *Blueprint // the most-derived (leaf) blueprint
	Pages     []*Page    // root-first, matches Blueprint.Chain()

	Parent      value.Any
	FirstChild  value.Any
	NextSibling value.Any

	HeartbeatNext *Object

	Initialized bool
	Stash       value.Any
}

// Instantiate creates a fresh Object with one page per blueprint in
// bp's chain (root-first), each page's slots nil-filled, marks the
// object uninitialised, and links it into table's global object list
// (spec §4.2 "blueprint_instantiate").
func Instantiate(bp *Blueprint, table *objtable.Table) *Object {
	chain := bp.Chain()
	pages := make([]*Page, len(chain))
	for i, layer := range chain {
		pages[i] = &Page{Blueprint: layer, Slots: make([]value.Any, layer.OwnVars.Fill())}
	}
	obj := &Object{
		Header:    value.NewHeader(value.KindObject),
		Blueprint: bp,
		Pages:     pages,
		Parent:    value.Nil,
		FirstChild: value.Nil,
		NextSibling: value.Nil,
		Stash:      value.Nil,
	}
	table.Track(obj)
	return obj
}

func (o *Object) Mark(visit func(value.Any)) {
	visit(value.Ptr(o.Blueprint))
	for _, p := range o.Pages {
		for _, s := range p.Slots {
			visit(s)
		}
	}
	visit(o.Parent)
	visit(o.FirstChild)
	visit(o.NextSibling)
	visit(o.Stash)
}

// pageFor locates the page (and page-local index) that owns flat index i.
func (o *Object) pageFor(i int) (*Page, int, bool) {
	for _, p := range o.Pages {
		base := p.Blueprint.Base()
		fill := p.Blueprint.OwnVars.Fill()
		if i >= base && i < base+fill {
			return p, i - base, true
		}
	}
	return nil, 0, false
}

// GetSlot reads the member variable at flat index i (spec §4.6
// LOAD_MEMBER: "resolved slot i on self's object page chain").
func (o *Object) GetSlot(i int) (value.Any, bool) {
	p, local, ok := o.pageFor(i)
	if !ok {
		return value.Nil, false
	}
	return p.Slots[local], true
}

// SetSlot writes the member variable at flat index i.
func (o *Object) SetSlot(i int, v value.Any) bool {
	p, local, ok := o.pageFor(i)
	if !ok {
		return false
	}
	p.Slots[local] = v
	return true
}
