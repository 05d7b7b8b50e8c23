package builtin

import (
	"testing"
	"time"

	"github.com/ravenlang/raven/internal/blueprint"
	"github.com/ravenlang/raven/internal/fiber"
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/scheduler"
	"github.com/ravenlang/raven/internal/value"
)

type stubResolver struct {
	bps map[string]*blueprint.Blueprint
}

func (r *stubResolver) FindBlueprint(path string) (*blueprint.Blueprint, bool) {
	bp, ok := r.bps[path]
	return bp, ok
}

type noopRunner struct{}

func (noopRunner) Run(f *fiber.Fiber, maxInstructions int) {}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, args ...interface{}) {
	l.lines = append(l.lines, format)
}

func TestCloneObjectInstantiatesFromResolver(t *testing.T) {
	table := objtable.New()
	bp := blueprint.New("/thing")
	resolver := &stubResolver{bps: map[string]*blueprint.Blueprint{"/thing": bp}}
	Register(table, nil, resolver, nil)

	sym, _ := table.Lookup("clone_object")
	fb := fiber.New(1)
	result := sym.Builtin(fb, []value.Any{value.Ptr(value.NewString("/thing"))})

	k, ok := result.Kind()
	if !ok || k != value.KindObject {
		t.Fatalf("expected an object, got %v", result)
	}
	if result.Ptr().(*blueprint.Object).Blueprint != bp {
		t.Fatalf("expected cloned object's blueprint to be /thing")
	}
}

func TestCloneObjectUnknownPathReportsError(t *testing.T) {
	table := objtable.New()
	resolver := &stubResolver{bps: map[string]*blueprint.Blueprint{}}
	Register(table, nil, resolver, nil)

	sym, _ := table.Lookup("clone_object")
	fb := fiber.New(1)
	result := sym.Builtin(fb, []value.Any{value.Ptr(value.NewString("/missing"))})

	s, ok := result.Kind()
	if !ok || s != value.KindString {
		t.Fatalf("expected an error string, got %v", result)
	}
}

func TestCallOutReturnsIDOfFiberTrackedByScheduler(t *testing.T) {
	table := objtable.New()
	sched := scheduler.New(noopRunner{}, 1000)
	Register(table, sched, nil, nil)

	targetSym := table.Find("ping")
	ref := value.NewFunctionRef(targetSym, value.Int(7))

	sym, _ := table.Lookup("call_out")
	fb := fiber.New(1)
	result := sym.Builtin(fb, []value.Any{value.Ptr(ref), value.Int(5)})

	if !result.IsInt() {
		t.Fatalf("expected call_out to return a fiber id, got %v", result)
	}
	if sched.Len() == 0 {
		t.Fatalf("expected the scheduler to be tracking the spawned fiber")
	}
}

func TestSleepParksFiber(t *testing.T) {
	table := objtable.New()
	Register(table, nil, nil, nil)
	sym, _ := table.Lookup("sleep")
	fb := fiber.New(1)

	before := time.Now()
	sym.Builtin(fb, []value.Any{value.Int(1)})

	if fb.State() != fiber.Sleeping {
		t.Fatalf("expected Sleeping, got %v", fb.State())
	}
	if !fb.WakeAt().After(before) {
		t.Fatalf("expected a future wake time")
	}
}

func TestWriteFallsBackToLoggerWithNoConnection(t *testing.T) {
	table := objtable.New()
	logger := &recordingLogger{}
	Register(table, nil, nil, logger)
	sym, _ := table.Lookup("write")
	fb := fiber.New(1)

	sym.Builtin(fb, []value.Any{value.Ptr(value.NewString("hello"))})

	if len(logger.lines) != 1 {
		t.Fatalf("expected the logger to receive one line, got %d", len(logger.lines))
	}
}

func TestInputLineSuspendsFiber(t *testing.T) {
	table := objtable.New()
	Register(table, nil, nil, nil)
	sym, _ := table.Lookup("input_line")
	fb := fiber.New(1)

	sym.Builtin(fb, nil)

	if fb.State() != fiber.WaitingForInput {
		t.Fatalf("expected WaitingForInput, got %v", fb.State())
	}
}

func TestTypeOfNamesEveryKind(t *testing.T) {
	table := objtable.New()
	Register(table, nil, nil, nil)
	sym, _ := table.Lookup("typeof")
	fb := fiber.New(1)

	cases := []struct {
		v    value.Any
		name string
	}{
		{value.Nil, "nil"},
		{value.Int(1), "int"},
		{value.Char('a'), "char"},
		{value.Ptr(value.NewString("s")), "string"},
	}
	for _, c := range cases {
		result := sym.Builtin(fb, []value.Any{c.v})
		k, ok := result.Kind()
		if !ok || k != value.KindSymbol {
			t.Fatalf("typeof(%v): expected a symbol result", c.v)
		}
		if result.Ptr().(*objtable.Symbol).Name != c.name {
			t.Fatalf("typeof(%v): expected %q, got %q", c.v, c.name, result.Ptr().(*objtable.Symbol).Name)
		}
	}
}

func TestGensymNeverInternedUnderPrefix(t *testing.T) {
	table := objtable.New()
	Register(table, nil, nil, nil)
	sym, _ := table.Lookup("gensym")
	fb := fiber.New(1)

	result := sym.Builtin(fb, []value.Any{value.Ptr(value.NewString("tmp"))})
	g, ok := result.Kind()
	if !ok || g != value.KindSymbol {
		t.Fatalf("expected a symbol result")
	}
	if _, found := table.Lookup("tmp"); found {
		t.Fatalf("gensym must not intern under its prefix")
	}
}
