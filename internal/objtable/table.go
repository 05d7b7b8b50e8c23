package objtable

import (
	"sync"

	"github.com/ravenlang/raven/internal/value"
)

// Table is the Object Table: the root set for the heap (spec §3/§4.1
// component C2). It owns:
//   - the global object list every allocator links new objects into, so
//     the GC's sweep phase (internal/gc) has one list to walk;
//   - the name-keyed symbol intern table, `find`/`gensym`.
//
// A linear scan over the interned list is what spec §4.1 calls "adequate"
// for mudlib-scale symbol tables; a map is used here anyway since nothing
// in the spec forbids a faster implementation and Go maps are the
// idiomatic choice once a hash is allowed — the linear-adequate language
// describes the baseline the spec tolerates, not a mandated shape.
type Table struct {
	mu sync.Mutex

	head    value.HeapObject // global object list head (nil at empty)
	count   int
	symbols map[string]*Symbol
	gensyms []*Symbol
}

func New() *Table {
	return &Table{symbols: make(map[string]*Symbol)}
}

// Track links a freshly allocated heap object into the global object
// list as white (spec §4.1: "every allocated object is initially white;
// ... linked into the global object list").
func (t *Table) Track(obj value.HeapObject) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj.GetHeader().SetNext(t.head)
	t.head = obj
	t.count++
}

// Head returns the global object list head for the GC's sweep walk.
func (t *Table) Head() value.HeapObject { return t.head }

// SetHead is used by the GC to splice the list after a sweep.
func (t *Table) SetHead(h value.HeapObject) { t.head = h }

// Count is the current length of the global object list (used by tests
// asserting GC reclaims unreachable objects, spec §8 scenario 6).
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *Table) SetCount(n int) { t.count = n }

// Find returns the existing symbol for name, or creates and interns one
// (spec §4.1 "find(name) returns the existing symbol or creates one").
// gensym'd symbols are never returned here, matching the resolution of
// the open question in spec §9 (DESIGN.md decision 3).
func (t *Table) Find(name string) *Symbol {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sym, ok := t.symbols[name]; ok {
		return sym
	}
	sym := newSymbol(name, false)
	t.symbols[name] = sym
	sym.GetHeader().SetNext(t.head)
	t.head = sym
	t.count++
	return sym
}

// Lookup reports whether name is already interned, without creating it.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sym, ok := t.symbols[name]
	return sym, ok
}

// Gensym creates an unnamed unique symbol that is a GC root (kept in
// t.gensyms) but is never returned by Find (spec §4.1/§9).
func (t *Table) Gensym(prefix string) *Symbol {
	t.mu.Lock()
	defer t.mu.Unlock()
	sym := newSymbol(prefix, true)
	t.gensyms = append(t.gensyms, sym)
	sym.GetHeader().SetNext(t.head)
	t.head = sym
	t.count++
	return sym
}

// RegisterBuiltin binds name's (interned) symbol to a built-in handler.
// The compiler recognises this binding and compiles calls to CALL_BUILTIN
// instead of SEND (spec §6 "Built-in ABI").
func (t *Table) RegisterBuiltin(name string, fn BuiltinFunc) *Symbol {
	sym := t.Find(name)
	sym.Builtin = fn
	return sym
}

// Roots returns every symbol (interned and gensym'd) as GC roots (spec
// §4.7: "Roots: the Object Table's symbol list").
func (t *Table) Roots(visit func(value.Any)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sym := range t.symbols {
		visit(value.Ptr(sym))
	}
	for _, sym := range t.gensyms {
		visit(value.Ptr(sym))
	}
}
