// Package objtable implements the Object Table: the heap's root set (the
// global object list swept by the GC) and the Symbol intern table (spec
// §3/§4.1, component C2).
package objtable

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ravenlang/raven/internal/value"
)

// Fiber is the minimal view of a running fiber a built-in handler needs.
// It is declared here, rather than importing internal/fiber directly, so
// that Symbol (a C2 type referenced by C3's Function and C4's Vars) does
// not have to depend on C7's concrete Fiber type; internal/fiber.Fiber
// satisfies this interface structurally. SleepUntil/WaitForInput are
// included alongside the accumulator/self/connection accessors because
// internal/builtin's sleep and input_line seed built-ins are suspension
// points (spec §4.9), not pure value computations.
type Fiber interface {
	Accumulator() value.Any
	SetAccumulator(value.Any)
	ThisObject() value.Any
	BoundConnection() value.Any
	SleepUntil(until time.Time)
	WaitForInput()
}

// BuiltinFunc is the ABI every built-in satisfies (spec §6 "Built-in
// ABI"): it receives the calling fiber and the already-popped argument
// list, and either sets the fiber's accumulator directly or transitions
// fiber state (sleep, wait-for-input) through methods on Fiber/the
// concrete *fiber.Fiber the caller actually passed.
type BuiltinFunc func(f Fiber, args []value.Any) value.Any

// Symbol is a content-interned identifier (spec §3 "Symbol"). It is a
// heap object kind, but it is owned and produced exclusively by Table
// below (find/gensym), never allocated directly.
type Symbol struct {
	value.Header
	Name    string
	Builtin BuiltinFunc // nil unless the symbol table bound a handler
	gensym  bool
	tag     string // uuid suffix for gensym'd symbols, for log disambiguation
}

func (s *Symbol) Mark(visit func(value.Any)) {}

// String renders the symbol the way backtraces/diagnostics want it (spec
// §7 "function@<virt_path>" frames reference symbol names this way).
func (s *Symbol) String() string {
	if s.gensym {
		return fmt.Sprintf("%s#%s", s.Name, s.tag)
	}
	return s.Name
}

func (s *Symbol) IsGensym() bool { return s.gensym }

func newSymbol(name string, gensym bool) *Symbol {
	sym := &Symbol{Header: value.NewHeader(value.KindSymbol), Name: name, gensym: gensym}
	if gensym {
		sym.tag = uuid.NewString()[:8]
	}
	return sym
}
