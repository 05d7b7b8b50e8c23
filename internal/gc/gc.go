// Package gc implements the tri-colour mark-and-sweep collector (spec
// §4.7, component C10) over the heap the Object Table (internal/objtable)
// tracks.
package gc

import (
	"github.com/ravenlang/raven/internal/fiber"
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/value"
)

// RootSource supplies one additional set of GC roots beyond the Object
// Table's own interned/gensym symbols — every live Fiber's accumulator,
// data stack and call-frame functions (spec §4.7 "roots are: the object
// table's symbol roots, plus every live fiber's reachable state").
type RootSource interface {
	Mark(visit func(value.Any))
}

// Collector runs stop-the-world mark-and-sweep passes over a Table.
type Collector struct {
	table *objtable.Table

	// gray is the intrusive worklist head, threaded through each
	// value.Header's grayNext field (spec §9 decision 5: a packed header
	// field rather than tagged pointer bits, since Go pointers can't
	// carry tag bits).
	gray value.HeapObject
}

// New creates a Collector over table.
func New(table *objtable.Table) *Collector {
	return &Collector{table: table}
}

// Stats reports the outcome of one Collect call.
type Stats struct {
	Marked int
	Swept  int
}

// Collect runs one full mark-and-sweep cycle. roots is every live fiber
// (or other RootSource) whose reachable state must survive the sweep in
// addition to the object table's own symbol roots.
func (c *Collector) Collect(roots []RootSource) Stats {
	c.markRoots(roots)
	marked := c.drainGray()
	swept := c.sweep()
	return Stats{Marked: marked, Swept: swept}
}

func (c *Collector) markRoots(roots []RootSource) {
	c.table.Roots(func(v value.Any) { c.shade(v) })
	for _, r := range roots {
		r.Mark(func(v value.Any) { c.shade(v) })
	}
}

// shade moves a reachable value's heap object from White to Gray and
// pushes it onto the intrusive gray worklist, deduplicating via color
// (an object already Gray or Black is never pushed twice).
func (c *Collector) shade(v value.Any) {
	obj, ok := ptrOf(v)
	if !ok {
		return
	}
	h := obj.GetHeader()
	if h.Color() != value.White {
		return
	}
	h.SetColor(value.Gray)
	h.SetGrayNext(c.gray)
	c.gray = obj
}

func ptrOf(v value.Any) (value.HeapObject, bool) {
	if !v.IsPtr() {
		return nil, false
	}
	return v.Ptr(), true
}

// drainGray repeatedly pops the gray worklist, visits each object's
// children (via its own Mark method) shading them, and blackens the
// popped object, until the worklist is empty (spec §4.7 "mark phase
// drains the gray set to completion before sweeping").
func (c *Collector) drainGray() int {
	marked := 0
	for c.gray != nil {
		obj := c.gray
		h := obj.GetHeader()
		c.gray = h.GrayNext()
		h.SetGrayNext(nil)

		obj.Mark(func(v value.Any) { c.shade(v) })
		h.SetColor(value.Black)
		marked++
	}
	return marked
}

// sweep walks the object table's global heap-object list, freeing
// (unlinking) every White object and resetting every surviving Black
// object back to White for the next cycle (spec §4.7 "tri-colour
// mark-and-sweep").
func (c *Collector) sweep() int {
	var head value.HeapObject
	var prev value.HeapObject
	swept := 0
	count := 0

	cur := c.table.Head()
	for cur != nil {
		next := cur.GetHeader().Next()
		if cur.GetHeader().Color() == value.White {
			swept++
		} else {
			cur.GetHeader().SetColor(value.White)
			cur.GetHeader().SetNext(nil)
			if head == nil {
				head = cur
			} else {
				prev.GetHeader().SetNext(cur)
			}
			prev = cur
			count++
		}
		cur = next
	}
	c.table.SetHead(head)
	c.table.SetCount(count)
	return swept
}

// LiveRoots is a convenience helper building a []RootSource from the
// scheduler's fiber-ID-keyed map; a map already has unique keys, so this
// is just a type conversion to the interface slice Mark wants.
func LiveRoots(fibers map[int]*fiber.Fiber) []RootSource {
	roots := make([]RootSource, 0, len(fibers))
	for _, f := range fibers {
		roots = append(roots, f)
	}
	return roots
}
