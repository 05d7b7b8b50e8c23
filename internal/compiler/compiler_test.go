package compiler

import (
	"testing"

	"github.com/ravenlang/raven/internal/blueprint"
	"github.com/ravenlang/raven/internal/objtable"
)

// stubResolver serves a fixed set of virtual paths, standing in for a
// *vfs.FS the way raven_test.go's stubCompiler stands in for a full
// compiler in that package's tests.
type stubResolver struct {
	sources    map[string]string
	blueprints map[string]*blueprint.Blueprint
}

func newStubResolver() *stubResolver {
	return &stubResolver{sources: map[string]string{}, blueprints: map[string]*blueprint.Blueprint{}}
}

func (r *stubResolver) Read(virtPath string) (string, bool) {
	s, ok := r.sources[virtPath]
	return s, ok
}

func (r *stubResolver) FindBlueprint(virtPath string) (*blueprint.Blueprint, bool) {
	bp, ok := r.blueprints[virtPath]
	return bp, ok
}

func newTestCompiler() (*Compiler, *stubResolver) {
	table := objtable.New()
	r := newStubResolver()
	r.blueprints["/secure/base"] = blueprint.New("/secure/base")
	return New(table, r, nil), r
}

func compileOK(t *testing.T, c *Compiler, virtPath, source string) *blueprint.Blueprint {
	t.Helper()
	bp, err := c.CompileBlueprint(virtPath, source)
	if err != nil {
		t.Fatalf("CompileBlueprint(%s): %v", virtPath, err)
	}
	return bp
}

func TestCompileEmptyBlueprintGetsImplicitBase(t *testing.T) {
	c, r := newTestCompiler()
	bp := compileOK(t, c, "/std/thing", "")
	if bp.Parent == nil {
		t.Fatal("expected an implicit parent from /secure/base")
	}
	if bp.Parent != r.blueprints["/secure/base"] {
		t.Error("expected the implicit parent to be the registered /secure/base blueprint")
	}
}

func TestCompileBareInheritSkipsImplicitParent(t *testing.T) {
	c, _ := newTestCompiler()
	bp := compileOK(t, c, "/secure/base", "inherit;")
	if bp.Parent != nil {
		t.Error("expected a bare `inherit;` to leave the blueprint parentless")
	}
}

func TestCompileExplicitInherit(t *testing.T) {
	c, r := newTestCompiler()
	r.blueprints["/std/object"] = blueprint.New("/std/object")
	bp := compileOK(t, c, "/std/thing", `inherit "/std/object";`)
	if bp.Parent != r.blueprints["/std/object"] {
		t.Error("expected the named parent to be attached")
	}
}

func TestCompileSimpleFunction(t *testing.T) {
	c, _ := newTestCompiler()
	bp := compileOK(t, c, "/std/calc", `
		int add(int a, int b) {
			return a + b;
		}
	`)
	found := false
	for _, fn := range bp.Functions {
		if fn.Name != nil && fn.Name.Name == "add" {
			found = true
			if fn.ArgCount != 2 {
				t.Errorf("expected ArgCount 2, got %d", fn.ArgCount)
			}
			if len(fn.Bytecode) == 0 {
				t.Error("expected non-empty bytecode")
			}
		}
	}
	if !found {
		t.Fatal("expected a compiled 'add' function")
	}
}

func TestCompileMemberWithInitializer(t *testing.T) {
	c, _ := newTestCompiler()
	bp := compileOK(t, c, "/std/counter", `
		int count = 0;

		void bump() {
			count += 1;
		}
	`)
	if bp.OwnVars.Count() == 0 {
		t.Error("expected the declared member to register on OwnVars")
	}
	found := false
	for _, fn := range bp.Functions {
		if fn.Name != nil && fn.Name.Name == "bump" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a compiled 'bump' function")
	}
}

func TestCompileControlFlowConstructs(t *testing.T) {
	c, _ := newTestCompiler()
	compileOK(t, c, "/std/kitchen_sink", `
		int total = 0;

		int sum(array ints) {
			foreach (int v : ints) {
				total += v;
			}
			return total;
		}

		void classify(int n) {
			switch (n) {
			case 0:
				total = 0;
				break;
			case 1:
			case 2:
				total = total + n;
				break;
			default:
				total = -1;
			}
		}

		int count_down(int n) {
			int i = n;
			while (i > 0) {
				if (i == 13) {
					i--;
					continue;
				}
				i--;
			}
			return i;
		}

		int guarded_divide(int a, int b) {
			int result = 0;
			try {
				result = a / b;
			} catch (mixed err) {
				result = -1;
			}
			return result;
		}
	`)
}

func TestCompileClassStatementNestsABlueprint(t *testing.T) {
	c, _ := newTestCompiler()
	compileOK(t, c, "/std/container", `
		class payload {
			int value = 42;
		};
	`)
}

func TestCompileSyntaxErrorIsReturnedNotPanicked(t *testing.T) {
	c, _ := newTestCompiler()
	_, err := c.CompileBlueprint("/std/broken", `int x = ;`)
	if err == nil {
		t.Fatal("expected a syntax error")
	}
}
