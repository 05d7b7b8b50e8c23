package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ravenlang/raven/internal/blueprint"
	"github.com/ravenlang/raven/internal/objtable"
)

type stubCompiler struct {
	calls int
}

func (c *stubCompiler) CompileBlueprint(virtPath, source string) (*blueprint.Blueprint, error) {
	c.calls++
	return blueprint.New(virtPath), nil
}

type recordingLog struct {
	lines []string
}

func (l *recordingLog) Printf(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestResolveHandlesRelativeAbsoluteAndDotDot(t *testing.T) {
	cases := []struct {
		base, direction, want string
	}{
		{"/room/kitchen", "..", "/room"},
		{"/room/kitchen", ".", "/room/kitchen"},
		{"/room/kitchen", "", "/room/kitchen"},
		{"/room/kitchen", "/secure/master", "/secure/master"},
		{"/room/kitchen", "../hallway", "/room/hallway"},
		{"/", "..", "/"},
	}
	for _, c := range cases {
		got := Resolve(c.base, c.direction)
		if got != c.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", c.base, c.direction, got, c.want)
		}
	}
}

func TestFindBlueprintCompilesAndCachesOnFirstLookup(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "room"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "room", "kitchen.rv"), []byte("// source"), 0o644); err != nil {
		t.Fatal(err)
	}

	table := objtable.New()
	compiler := &stubCompiler{}
	fsys := New(dir, table, compiler)

	bp1, ok := fsys.FindBlueprint("/room/kitchen.rv")
	if !ok {
		t.Fatal("expected blueprint to be found")
	}
	bp2, ok := fsys.FindBlueprint("/room/kitchen.rv")
	if !ok {
		t.Fatal("expected blueprint to be found on second lookup")
	}
	if bp1 != bp2 {
		t.Fatalf("expected the same soulmate blueprint pointer across lookups")
	}
	if compiler.calls != 1 {
		t.Fatalf("expected exactly one compile, got %d", compiler.calls)
	}
}

func TestFindBlueprintMissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	table := objtable.New()
	fsys := New(dir, table, &stubCompiler{})

	if _, ok := fsys.FindBlueprint("/nope.rv"); ok {
		t.Fatal("expected lookup of a nonexistent source file to fail")
	}
}

func TestRecompileWithLogSplicesInPlace(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "thing.rv"), []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	table := objtable.New()
	compiler := &stubCompiler{}
	fsys := New(dir, table, compiler)

	original, ok := fsys.FindBlueprint("/thing.rv")
	if !ok {
		t.Fatal("expected initial load to succeed")
	}

	if err := os.WriteFile(filepath.Join(dir, "thing.rv"), []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	log := &recordingLog{}
	if !fsys.RecompileWithLog("/thing.rv", log) {
		t.Fatalf("expected recompile to succeed, log: %v", log.lines)
	}

	after, ok := fsys.Loaded("/thing.rv")
	if !ok {
		t.Fatal("expected blueprint to remain cached after recompile")
	}
	if after != original {
		t.Fatalf("expected recompile to preserve the original blueprint's identity (soulmate)")
	}
}

func TestFindObjectCachesSingletonByPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "master.rv"), []byte("src"), 0o644); err != nil {
		t.Fatal(err)
	}
	table := objtable.New()
	fsys := New(dir, table, &stubCompiler{})

	obj1, ok := fsys.FindObject("/master.rv", true)
	if !ok {
		t.Fatal("expected object creation to succeed")
	}
	obj2, ok := fsys.FindObject("/master.rv", false)
	if !ok {
		t.Fatal("expected the cached object to be found without create")
	}
	if obj1 != obj2 {
		t.Fatal("expected fs_find_object to return the same singleton instance")
	}
}
