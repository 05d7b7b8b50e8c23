package fiber

import (
	"testing"
	"time"

	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/value"
)

func makeFunc(tbl *objtable.Table, name string, argc, locals int) *codegen.Function {
	w := codegen.NewWriter(tbl.Find(name), argc, false)
	for i := 0; i < locals; i++ {
		w.NoteLocal(i)
	}
	w.Emit(codegen.RETURN)
	return w.Finish()
}

func TestPushFramePopFrameIsStackPointerNoop(t *testing.T) {
	tbl := objtable.New()
	fn := makeFunc(tbl, "f", 2, 4)

	fb := New(1)
	// caller pushes self + 2 args, as SEND's calling convention does.
	fb.Push(value.Int(100)) // self
	fb.Push(value.Int(1))
	fb.Push(value.Int(2))
	spBefore := fb.SP()

	fb.PushFrame(fn, 2, nil)
	if fb.Depth() != 1 {
		t.Fatalf("expected depth 1, got %d", fb.Depth())
	}
	fb.PopFrame()

	if fb.SP() != spBefore-3 {
		// the self+args the caller pushed are consumed by the call/return
		// round-trip; sp returns to what it was before they went on.
		t.Fatalf("sp did not return to pre-call value: got %d want %d", fb.SP(), spBefore-3)
	}
	if fb.Depth() != 0 {
		t.Fatalf("expected depth 0 after pop, got %d", fb.Depth())
	}
	if fb.State() != Stopped {
		t.Fatalf("expected Stopped after popping outermost frame, got %v", fb.State())
	}
}

func TestLocalsNilFilledBeyondArgs(t *testing.T) {
	tbl := objtable.New()
	fn := makeFunc(tbl, "g", 1, 3)

	fb := New(1)
	fb.Push(value.Int(1)) // self
	fb.Push(value.Int(9)) // arg0
	fb.PushFrame(fn, 1, nil)

	fr := fb.Top()
	if got := fr.Local(fb.stack, 0); got.IntValue() != 1 {
		t.Fatalf("self mismatch: %v", got)
	}
	if got := fr.Local(fb.stack, 1); got.IntValue() != 9 {
		t.Fatalf("arg0 mismatch: %v", got)
	}
	if got := fr.Local(fb.stack, 2); !got.IsNil() {
		t.Fatalf("expected nil-filled extra local, got %v", got)
	}
}

func TestThrowUnwindsToNearestCatch(t *testing.T) {
	tbl := objtable.New()
	outer := makeFunc(tbl, "outer", 0, 1)
	inner := makeFunc(tbl, "inner", 0, 1)

	fb := New(1)
	fb.Push(value.Int(0)) // self for outer
	fb.PushFrame(outer, 0, nil)
	fb.Top().CatchAddr = 42

	fb.Push(value.Int(0)) // self for inner
	fb.PushFrame(inner, 0, nil)
	// inner has no catch registered.

	fb.Throw(value.Int(-1))

	if fb.State() != Running {
		t.Fatalf("expected Running after catch, got %v", fb.State())
	}
	if fb.Depth() != 1 {
		t.Fatalf("expected unwind to leave exactly the outer frame, got depth %d", fb.Depth())
	}
	if fb.Top().IP != 42 {
		t.Fatalf("expected ip set to catch address, got %d", fb.Top().IP)
	}
	if fb.Accumulator().IntValue() != -1 {
		t.Fatalf("expected thrown value in accumulator, got %v", fb.Accumulator())
	}
}

func TestThrowWithNoCatchCrashes(t *testing.T) {
	tbl := objtable.New()
	fn := makeFunc(tbl, "nocatch", 0, 1)

	fb := New(1)
	fb.Push(value.Int(0))
	fb.PushFrame(fn, 0, nil)

	fb.Throw(value.Int(7))

	if fb.State() != Crashed {
		t.Fatalf("expected Crashed, got %v", fb.State())
	}
	if fb.CrashReason() == "" {
		t.Fatalf("expected a crash reason to be recorded")
	}
}

func TestWaitForInputAndPushInput(t *testing.T) {
	fb := New(1)
	fb.WaitForInput()
	if fb.State() != WaitingForInput {
		t.Fatalf("expected WaitingForInput")
	}
	fb.PushInput("look")
	if fb.State() != Running {
		t.Fatalf("expected Running after PushInput, got %v", fb.State())
	}
	s, ok := fb.Accumulator().Kind()
	if !ok || s != value.KindString {
		t.Fatalf("expected accumulator to hold a string, got %v", fb.Accumulator())
	}
}

func TestSleepUntilRecordsWakeTime(t *testing.T) {
	fb := New(1)
	when := time.Now().Add(time.Second)
	fb.SleepUntil(when)
	if fb.State() != Sleeping {
		t.Fatalf("expected Sleeping")
	}
	if !fb.WakeAt().Equal(when) {
		t.Fatalf("wake time not recorded")
	}
	fb.Reactivate()
	if fb.State() != Running {
		t.Fatalf("expected Running after Reactivate")
	}
}

func TestFiberSatisfiesObjtableFiberInterface(t *testing.T) {
	var _ objtable.Fiber = New(1)
}
