// Package vfs implements the virtual filesystem collaborator (spec §6,
// SPEC_FULL.md §4.10): resolving virtual blueprint paths against a real
// anchor directory, compiling blueprints on demand, and the cd()-based
// path-builder used to normalise inherit/#include targets.
package vfs

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ravenlang/raven/internal/blueprint"
	"github.com/ravenlang/raven/internal/objtable"
)

// Compiler produces a Blueprint from source text. internal/compiler
// satisfies this; declared as a structural interface here (rather than
// imported concretely) because the compiler's `inherit`/`#include`
// handling calls back into FS.FindBlueprint to resolve other virtual
// paths — importing internal/compiler directly would cycle.
type Compiler interface {
	CompileBlueprint(virtPath, source string) (*blueprint.Blueprint, error)
}

// Logger receives diagnostics from RecompileWithLog (spec §6
// `fs_recompile_with_log(path, log)`).
type Logger interface {
	Printf(format string, args ...interface{})
}

// FS is the filesystem collaborator: an anchor directory plus the
// loaded-blueprint cache that gives blueprints their "soulmate" identity
// (spec GLOSSARY) — a given virtual path always resolves to the same
// *blueprint.Blueprint pointer for as long as the engine runs, even
// across a hot recompile.
type FS struct {
	anchor   string
	table    *objtable.Table
	compiler Compiler

	mu         sync.Mutex
	blueprints map[string]*blueprint.Blueprint
	objects    map[string]*blueprint.Object
}

// New creates a filesystem collaborator rooted at anchor (an absolute
// real-filesystem directory). compiler may be nil in contexts that only
// ever serve already-loaded blueprints (e.g. a pure REPL over a
// pre-populated table).
func New(anchor string, table *objtable.Table, compiler Compiler) *FS {
	return &FS{
		anchor:     anchor,
		table:      table,
		compiler:   compiler,
		blueprints: make(map[string]*blueprint.Blueprint),
		objects:    make(map[string]*blueprint.Object),
	}
}

// Resolve implements the §6 path-builder: cd(".."), cd("."/""), and
// cd(absolute) against base, always returning a cleaned absolute virtual
// path. Grounded on stdlib `path.Clean`'s forward-slash semantics (a
// virtual path is always `/`-separated regardless of host OS); no pack
// library implements LPC-style virtual path resolution, so this is
// deliberately the one corner of internal/vfs built on the standard
// library.
func Resolve(base, direction string) string {
	switch {
	case direction == "" || direction == ".":
		return path.Clean(base)
	case strings.HasPrefix(direction, "/"):
		return path.Clean(direction)
	default:
		return path.Clean(path.Join(base, direction))
	}
}

// realPath maps a cleaned virtual path onto a real filesystem path under
// the anchor directory (spec §6 "a virtual path ... maps to a real file
// by catenation under the anchor").
func (fs *FS) realPath(virtPath string) string {
	clean := path.Clean("/" + virtPath)
	return filepath.Join(fs.anchor, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
}

// Read implements `fs_read(path, out-buffer)`: returns the blueprint
// source at virtPath, or false if it doesn't exist / isn't readable.
func (fs *FS) Read(virtPath string) (string, bool) {
	data, err := os.ReadFile(fs.realPath(virtPath))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// List implements `fs_ls(path, mapper)`'s directory-walking half; the
// per-entry mapper FunctionRef invocation belongs to whichever built-in
// wires this into the interpreter (internal/builtin), since calling a
// FunctionRef requires a fiber — vfs itself only knows real directories.
func (fs *FS) List(virtPath string) ([]string, bool) {
	entries, err := os.ReadDir(fs.realPath(virtPath))
	if err != nil {
		return nil, false
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, true
}

// FindBlueprint implements `fs_find_blueprint(path, create=true)` and
// satisfies internal/builtin.BlueprintResolver: returns the cached
// blueprint for virtPath if one is already loaded, otherwise reads and
// compiles the source at that path and caches the result under its
// virtual path (establishing its soulmate identity for any later
// recompile).
func (fs *FS) FindBlueprint(virtPath string) (*blueprint.Blueprint, bool) {
	clean := path.Clean("/" + virtPath)

	fs.mu.Lock()
	if bp, ok := fs.blueprints[clean]; ok {
		fs.mu.Unlock()
		return bp, true
	}
	fs.mu.Unlock()

	if fs.compiler == nil {
		return nil, false
	}
	source, ok := fs.Read(clean)
	if !ok {
		return nil, false
	}
	bp, err := fs.compiler.CompileBlueprint(clean, source)
	if err != nil {
		return nil, false
	}

	fs.mu.Lock()
	fs.blueprints[clean] = bp
	fs.mu.Unlock()
	return bp, true
}

// Loaded reports whether virtPath already has a cached blueprint,
// without attempting to compile one (the `create=false` form of
// `fs_find_blueprint`).
func (fs *FS) Loaded(virtPath string) (*blueprint.Blueprint, bool) {
	clean := path.Clean("/" + virtPath)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	bp, ok := fs.blueprints[clean]
	return bp, ok
}

// RecompileWithLog implements `fs_recompile_with_log(path, log)`:
// recompiles the source at virtPath and, on success, splices the fresh
// method list and vars into the EXISTING Blueprint value in place
// (fixing up each function's Owner back-reference) so every Object
// whose page chain already points at this blueprint sees the update
// without reallocation — the soulmate semantics SPEC_FULL.md §4.10
// calls for. Returns false (and logs) on a compile error, leaving the
// existing blueprint untouched.
func (fs *FS) RecompileWithLog(virtPath string, log Logger) bool {
	if fs.compiler == nil {
		if log != nil {
			log.Printf("recompile %s: no compiler configured", virtPath)
		}
		return false
	}
	clean := path.Clean("/" + virtPath)
	source, ok := fs.Read(clean)
	if !ok {
		if log != nil {
			log.Printf("recompile %s: source not found", clean)
		}
		return false
	}
	fresh, err := fs.compiler.CompileBlueprint(clean, source)
	if err != nil {
		if log != nil {
			log.Printf("recompile %s: %v", clean, err)
		}
		return false
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	existing, ok := fs.blueprints[clean]
	if !ok {
		fs.blueprints[clean] = fresh
		return true
	}
	existing.Functions = fresh.Functions
	for _, fn := range existing.Functions {
		fn.Owner = existing
	}
	existing.OwnVars = fresh.OwnVars
	existing.Parent = fresh.Parent
	return true
}

// FindObject implements `fs_find_object(path, create?)`: a named,
// singleton object cached by virtual path (distinct from clone_object's
// one-off instances). When create is true and no object is cached yet,
// one is instantiated from FindBlueprint(virtPath) and cached.
func (fs *FS) FindObject(virtPath string, create bool) (*blueprint.Object, bool) {
	clean := path.Clean("/" + virtPath)

	fs.mu.Lock()
	if obj, ok := fs.objects[clean]; ok {
		fs.mu.Unlock()
		return obj, true
	}
	fs.mu.Unlock()

	if !create {
		return nil, false
	}
	bp, ok := fs.FindBlueprint(clean)
	if !ok {
		return nil, false
	}
	obj := blueprint.Instantiate(bp, fs.table)

	fs.mu.Lock()
	fs.objects[clean] = obj
	fs.mu.Unlock()
	return obj, true
}
