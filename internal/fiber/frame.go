// Package fiber implements Frame and Fiber (spec §3/§4.5, component C7):
// activation records and the per-fiber stack/state machine the
// interpreter (internal/interp) and scheduler (internal/scheduler) drive.
package fiber

import (
	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/value"
)

// Frame is one call record (spec §3 "Frame"). Rather than embedding
// Frame records physically inside the byte-addressable value stack (the
// approach spec §9 describes for the original's unsafe stack layout),
// frames are kept in their own slice on Fiber: the value stack (an
// []value.Any the GC already understands entry-by-entry, see
// internal/gc) only ever holds data, and LocalsBase is the index into it
// where locals[0] (self) begins. This is the safe-ownership
// re-architecture spec §9 calls for applied directly to the stack
// itself, not just to the method list.
type Frame struct {
	Func       *codegen.Function
	IP         int
	CatchAddr  int // 0 = none (spec §4.3 UPDATE_CATCH)
	LocalsBase int // index into Fiber.stack where locals[0] lives
	Varargs    *value.Array
}

// Local returns the value of locals[i] (0 = self) by dereferencing into
// the owning Fiber's stack.
func (fr *Frame) Local(stack []value.Any, i int) value.Any {
	return stack[fr.LocalsBase+i]
}

func (fr *Frame) SetLocal(stack []value.Any, i int, v value.Any) {
	stack[fr.LocalsBase+i] = v
}
