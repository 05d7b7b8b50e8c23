package compiler

import (
	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/value"
)

// localVar records where a declared name lives in the current
// function's frame and what type it was declared with.
type localVar struct {
	idx int
	typ value.TypeTag
}

// loopLabels binds break/continue to a specific construct's exit and
// re-test points. A switch pushes one of these too, but with
// canContinue false: break binds to the switch's end regardless, while
// continue skips past it to the nearest real loop (matching what a
// `continue` inside a `switch` inside a `while` means in every
// C-family language this grammar borrows from).
type loopLabels struct {
	breakLabel    codegen.LabelID
	continueLabel codegen.LabelID
	canContinue   bool
}

// funcScope tracks one function body's writer, block-scoped locals,
// loop/catch nesting, and return type while it's being compiled.
type funcScope struct {
	w            *codegen.Writer
	blocks       []map[string]localVar
	nextFrameIdx int
	loops        []loopLabels
	catches      []codegen.LabelID
	retType      value.TypeTag
}

// newFuncScope starts a scope for a function taking argCount arguments.
// Frame index 0 is the reserved self slot, 1..argCount are the
// arguments, so the first declared local lands at argCount+1.
func newFuncScope(w *codegen.Writer, argCount int) *funcScope {
	return &funcScope{w: w, nextFrameIdx: argCount + 1, blocks: []map[string]localVar{{}}}
}

func (fs *funcScope) pushBlock() { fs.blocks = append(fs.blocks, map[string]localVar{}) }
func (fs *funcScope) popBlock()  { fs.blocks = fs.blocks[:len(fs.blocks)-1] }

// declare allocates a new named local in the innermost block.
func (fs *funcScope) declare(name string, typ value.TypeTag) int {
	idx := fs.allocSlot()
	fs.blocks[len(fs.blocks)-1][name] = localVar{idx: idx, typ: typ}
	return idx
}

// hidden allocates a frame slot with no name, for compiler-internal
// temporaries (operand-order shuffles, foreach's list/counter pair).
func (fs *funcScope) hidden() int {
	return fs.allocSlot()
}

func (fs *funcScope) allocSlot() int {
	idx := fs.nextFrameIdx
	fs.nextFrameIdx++
	fs.w.NoteLocal(idx - 1) // Writer's own numbering excludes self
	return idx
}

// lookup searches blocks innermost-to-outermost.
func (fs *funcScope) lookup(name string) (localVar, bool) {
	for i := len(fs.blocks) - 1; i >= 0; i-- {
		if lv, ok := fs.blocks[i][name]; ok {
			return lv, true
		}
	}
	return localVar{}, false
}

func (fs *funcScope) pushLoop(brk, cont codegen.LabelID) {
	fs.loops = append(fs.loops, loopLabels{breakLabel: brk, continueLabel: cont, canContinue: true})
}

func (fs *funcScope) pushBreakOnly(brk codegen.LabelID) {
	fs.loops = append(fs.loops, loopLabels{breakLabel: brk})
}

func (fs *funcScope) popLoop() { fs.loops = fs.loops[:len(fs.loops)-1] }

func (fs *funcScope) currentBreak() (codegen.LabelID, bool) {
	if len(fs.loops) == 0 {
		return 0, false
	}
	return fs.loops[len(fs.loops)-1].breakLabel, true
}

func (fs *funcScope) currentContinue() (codegen.LabelID, bool) {
	for i := len(fs.loops) - 1; i >= 0; i-- {
		if fs.loops[i].canContinue {
			return fs.loops[i].continueLabel, true
		}
	}
	return 0, false
}

func (fs *funcScope) pushCatch(l codegen.LabelID) { fs.catches = append(fs.catches, l) }
func (fs *funcScope) popCatch()                   { fs.catches = fs.catches[:len(fs.catches)-1] }

func (fs *funcScope) currentCatch() (codegen.LabelID, bool) {
	if len(fs.catches) == 0 {
		return 0, false
	}
	return fs.catches[len(fs.catches)-1], true
}
