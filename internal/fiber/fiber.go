package fiber

import (
	"time"

	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/value"
)

// State is the fiber life-cycle state (spec §3 "Fiber states").
type State uint8

const (
	Running State = iota
	Paused
	Sleeping
	WaitingForInput
	Stopped
	Crashed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Sleeping:
		return "sleeping"
	case WaitingForInput:
		return "waiting_for_input"
	case Stopped:
		return "stopped"
	case Crashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// minStackCells keeps the value stack arena at or above the 64KiB floor
// spec §4.5 names, sized in value.Any cells rather than raw bytes (see
// the package doc in frame.go for why we don't model a byte-addressable
// arena directly).
const minStackCells = 64 * 1024 / 24

// Fiber is one cooperative thread of bytecode execution (spec §3
// "Fiber", component C7). There is exactly one Fiber per logical call
// stack; the scheduler (internal/scheduler) ticks one instruction batch
// per Running fiber per turn and there is never more than one fiber
// executing bytecode at a time (spec §5 "no parallelism").
type Fiber struct {
	ID int

	state    State
	wakeAt   time.Time
	accum    value.Any
	stack    []value.Any
	sp       int
	frames   []*Frame

	ThisPlayer value.Any
	EffectiveUser value.Any
	Locals     *value.Mapping // ambient script-mode "locals" mapping (spec §4.9 eval scope)
	Connection value.Any

	crashReason string
}

// New creates a fresh, Running fiber with an empty stack.
func New(id int) *Fiber {
	return &Fiber{
		ID:    id,
		state: Running,
		accum: value.Nil,
		stack: make([]value.Any, 0, minStackCells),
		ThisPlayer: value.Nil,
		EffectiveUser: value.Nil,
		Connection: value.Nil,
	}
}

func (f *Fiber) State() State     { return f.state }
func (f *Fiber) SetState(s State) { f.state = s }
func (f *Fiber) WakeAt() time.Time { return f.wakeAt }
func (f *Fiber) CrashReason() string { return f.crashReason }

// Accumulator/SetAccumulator/ThisObject/BoundConnection satisfy
// objtable.Fiber, the minimal structural interface internal/objtable's
// BuiltinFunc is typed against (avoids objtable importing this package).
func (f *Fiber) Accumulator() value.Any           { return f.accum }
func (f *Fiber) SetAccumulator(v value.Any)       { f.accum = v }
func (f *Fiber) ThisObject() value.Any {
	if fr := f.Top(); fr != nil {
		return fr.Local(f.stack, 0)
	}
	return value.Nil
}
func (f *Fiber) BoundConnection() value.Any       { return f.Connection }

var _ objtable.Fiber = (*Fiber)(nil)

// Top returns the current (innermost) frame, or nil if the fiber has no
// active call.
func (f *Fiber) Top() *Frame {
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

// Depth is the current call-stack depth.
func (f *Fiber) Depth() int { return len(f.frames) }

// SP is the current stack pointer (next free data slot).
func (f *Fiber) SP() int { return f.sp }

// ensure grows the stack slice so indices up to n-1 are valid, nil-filling
// any newly revealed slots.
func (f *Fiber) ensure(n int) {
	for len(f.stack) < n {
		f.stack = append(f.stack, value.Nil)
	}
}

// Push pushes v onto the data stack.
func (f *Fiber) Push(v value.Any) {
	f.ensure(f.sp + 1)
	f.stack[f.sp] = v
	f.sp++
}

// Pop pops and returns the top data value.
func (f *Fiber) Pop() value.Any {
	f.sp--
	v := f.stack[f.sp]
	f.stack[f.sp] = value.Nil
	return v
}

// StackPeek returns the n'th value from the top without popping (n=0 is
// the top value).
func (f *Fiber) StackPeek(n int) value.Any {
	return f.stack[f.sp-1-n]
}

// StackSlice exposes the live portion of the data stack so a Frame's
// Local/SetLocal helpers can index into it (internal/interp reads/writes
// locals every LOAD_LOCAL/STORE_LOCAL/LOAD_SELF).
func (f *Fiber) StackSlice() []value.Any {
	return f.stack
}

// PushFrame enters fn: self and its nargs arguments are expected to
// already occupy the top nargs+1 slots of the data stack (the SEND
// calling convention — spec §4.6). Locals beyond the pushed arguments
// are nil-filled up to fn's declared local count, and a new Frame is
// pushed recording where this activation's locals begin.
func (f *Fiber) PushFrame(fn *codegen.Function, nargs int, varargs *value.Array) {
	locals := f.sp - (nargs + 1)
	want := locals + fn.LocalCount
	f.ensure(want)
	for i := locals + nargs + 1; i < want; i++ {
		f.stack[i] = value.Nil
	}
	f.sp = want
	f.frames = append(f.frames, &Frame{
		Func:       fn,
		LocalsBase: locals,
		Varargs:    varargs,
	})
}

// PopFrame leaves the current frame, restoring sp to the locals base the
// matching PushFrame recorded (spec §8 invariant: push_frame followed
// immediately by pop_frame is a stack-pointer no-op). If no frame
// remains afterwards the fiber has returned from its outermost call and
// is marked Stopped.
func (f *Fiber) PopFrame() {
	fr := f.Top()
	if fr == nil {
		return
	}
	f.sp = fr.LocalsBase
	f.frames = f.frames[:len(f.frames)-1]
	if len(f.frames) == 0 {
		f.state = Stopped
	}
}

// Pause marks the fiber Paused (spec §4.9 heartbeat/call_out suspension
// point — resumed by the scheduler, not by input or a timer).
func (f *Fiber) Pause() { f.state = Paused }

// WaitForInput suspends until PushInput delivers a line.
func (f *Fiber) WaitForInput() { f.state = WaitingForInput }

// SleepUntil suspends until the scheduler observes time.Now() >= until.
func (f *Fiber) SleepUntil(until time.Time) {
	f.state = Sleeping
	f.wakeAt = until
}

// Reactivate resumes a Paused or Sleeping fiber without altering the
// accumulator.
func (f *Fiber) Reactivate() { f.state = Running }

// ReactivateWithValue resumes the fiber and sets the accumulator to v
// (used for call_out completions and input delivery results).
func (f *Fiber) ReactivateWithValue(v value.Any) {
	f.accum = v
	f.state = Running
}

// PushInput delivers a line of input to a fiber that is WaitingForInput,
// reactivating it with the input packed as a string value in the
// accumulator; a no-op otherwise (spec §4.9 "input_line").
func (f *Fiber) PushInput(line string) {
	if f.state != WaitingForInput {
		return
	}
	f.ReactivateWithValue(value.Ptr(value.NewString(line)))
}

// Throw sets the accumulator to v and begins unwinding for the nearest
// enclosing catch (spec §4.4 try/catch, §4.3 UPDATE_CATCH).
func (f *Fiber) Throw(v value.Any) {
	f.accum = v
	f.Unwind()
}

// Unwind pops frames until one with a registered catch address is found
// (jumping execution there) or the stack is exhausted, in which case the
// fiber crashes (spec §4.6 "an uncaught throw crashes the fiber").
func (f *Fiber) Unwind() {
	for {
		fr := f.Top()
		if fr == nil {
			f.state = Crashed
			f.crashReason = "uncaught throw"
			return
		}
		if fr.CatchAddr != 0 {
			fr.IP = fr.CatchAddr
			f.state = Running
			return
		}
		f.sp = fr.LocalsBase
		f.frames = f.frames[:len(f.frames)-1]
	}
}

// Mark visits every GC root reachable directly from this fiber: the
// accumulator, every live data-stack slot, this_player/effective_user/
// locals/connection, and (indirectly, via Mark on the functions they
// reference) the owning blueprints of every frame on the call stack.
func (f *Fiber) Mark(visit func(value.Any)) {
	visit(f.accum)
	for i := 0; i < f.sp; i++ {
		visit(f.stack[i])
	}
	visit(f.ThisPlayer)
	visit(f.EffectiveUser)
	visit(f.Connection)
	if f.Locals != nil {
		visit(value.Ptr(f.Locals))
	}
	for _, fr := range f.frames {
		if fr.Func != nil {
			visit(value.Ptr(fr.Func))
		}
		if fr.Varargs != nil {
			visit(value.Ptr(fr.Varargs))
		}
	}
}
