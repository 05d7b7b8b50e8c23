package blueprint

import (
	"testing"

	"github.com/ravenlang/raven/internal/codegen"
	"github.com/ravenlang/raven/internal/objtable"
	"github.com/ravenlang/raven/internal/value"
)

func TestInstanceSizeSumsChain(t *testing.T) {
	tbl := objtable.New()
	root := New("/secure/base")
	root.AddVar(value.Simple(value.TInt), tbl.Find("a"), 0)

	mid := New("/t/mid")
	if err := mid.Inherit(root); err != nil {
		t.Fatal(err)
	}
	mid.AddVar(value.Simple(value.TInt), tbl.Find("b"), 0)
	mid.AddVar(value.Simple(value.TInt), tbl.Find("c"), 0)

	leaf := New("/t/leaf")
	if err := leaf.Inherit(mid); err != nil {
		t.Fatal(err)
	}
	leaf.AddVar(value.Simple(value.TInt), tbl.Find("d"), 0)

	if got := leaf.InstanceSize(); got != 4 {
		t.Fatalf("expected instance size 4, got %d", got)
	}
	if got := mid.InstanceSize(); got != 3 {
		t.Fatalf("expected mid instance size 3, got %d", got)
	}
}

func TestInheritFailsIfAlreadySet(t *testing.T) {
	a := New("/t/a")
	b := New("/t/b")
	c := New("/t/c")
	if err := a.Inherit(b); err != nil {
		t.Fatal(err)
	}
	if err := a.Inherit(c); err == nil {
		t.Fatalf("expected error re-inheriting")
	}
}

func TestVarsFindFlatIndexStable(t *testing.T) {
	tbl := objtable.New()
	v := NewVars(nil)
	i0 := v.Add(value.Simple(value.TInt), tbl.Find("x"), 0)
	i1 := v.Add(value.Simple(value.TString), tbl.Find("y"), 0)

	if i0 != 0 || i1 != 1 {
		t.Fatalf("unexpected indices %d %d", i0, i1)
	}
	ty, idx, ok := v.Find(tbl.Find("x"))
	if !ok || idx != 0 || ty.Base != value.TInt {
		t.Fatalf("find(x) mismatch: %v %d %v", ty, idx, ok)
	}
	// adding more entries must not move x's index.
	v.Add(value.Simple(value.TInt), tbl.Find("z"), 0)
	_, idx2, _ := v.Find(tbl.Find("x"))
	if idx2 != 0 {
		t.Fatalf("index of x moved after later Add: %d", idx2)
	}
}

func TestObjectSlotRoundTrip(t *testing.T) {
	tbl := objtable.New()
	root := New("/secure/base")
	root.AddVar(value.Simple(value.TInt), tbl.Find("a"), 0)
	leaf := New("/t/leaf")
	leaf.Inherit(root)
	leaf.AddVar(value.Simple(value.TInt), tbl.Find("b"), 0)

	obj := Instantiate(leaf, tbl)
	if len(obj.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(obj.Pages))
	}
	if !obj.SetSlot(0, value.Int(7)) {
		t.Fatalf("SetSlot(0) failed")
	}
	if !obj.SetSlot(1, value.Int(9)) {
		t.Fatalf("SetSlot(1) failed")
	}
	v0, _ := obj.GetSlot(0)
	v1, _ := obj.GetSlot(1)
	if v0.IntValue() != 7 || v1.IntValue() != 9 {
		t.Fatalf("unexpected slot values %v %v", v0, v1)
	}
}

func TestLookupRespectsVisibilityAndArity(t *testing.T) {
	tbl := objtable.New()
	bp := New("/t/a")
	msg := tbl.Find("f")

	w := codegen.NewWriter(msg, 1, false)
	w.Emit(codegen.RETURN)
	priv := w.Finish()
	priv.Modifier = codegen.ModPrivate
	bp.AddFunc(msg, priv)

	w2 := codegen.NewWriter(msg, 2, false)
	w2.Emit(codegen.RETURN)
	pub := w2.Finish()
	bp.AddFunc(msg, pub)

	if _, ok := bp.Lookup(msg, 1, false); ok {
		t.Fatalf("expected private 1-arg function to be hidden")
	}
	fn, ok := bp.Lookup(msg, 2, false)
	if !ok || fn != pub {
		t.Fatalf("expected public 2-arg function to resolve")
	}
	fn, ok = bp.Lookup(msg, 1, true)
	if !ok || fn != priv {
		t.Fatalf("expected private function visible with allowPrivate")
	}
}
