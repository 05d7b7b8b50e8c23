package value

// BaseType is the coarse static type tag a declaration or function
// signature can carry (spec §3 Vars "(type-tag, name-symbol, flags)";
// Non-goals: "array or function static types beyond the coarse tags
// listed in §3" — so this set is deliberately small and never grows
// structural depth beyond one level of array-of-T).
type BaseType uint8

const (
	TAny BaseType = iota // declared with 'mixed' or 'let' with no annotation
	TVoid
	TInt
	TChar
	TString
	TObject
	TArray
	TMapping
	TFunction
	TFuncRef
	TSymbol
)

func (b BaseType) String() string {
	names := [...]string{"mixed", "void", "int", "char", "string", "object", "array", "mapping", "function", "funcref", "symbol"}
	if int(b) < len(names) {
		return names[b]
	}
	return "?"
}

// TypeTag is the full type annotation: a base type plus, for TArray, the
// element type one level down (spec §3's "coarse tags").
type TypeTag struct {
	Base BaseType
	Elem *TypeTag // non-nil only when Base == TArray
}

func Mixed() TypeTag           { return TypeTag{Base: TAny} }
func Simple(b BaseType) TypeTag { return TypeTag{Base: b} }
func ArrayOf(elem TypeTag) TypeTag {
	e := elem
	return TypeTag{Base: TArray, Elem: &e}
}

func (t TypeTag) String() string {
	if t.Base == TArray && t.Elem != nil {
		return t.Elem.String() + "[]"
	}
	return t.Base.String()
}

// kindOfBase reports which heap Kind (if any) a base type denotes.
func kindOfBase(b BaseType) (Kind, bool) {
	switch b {
	case TObject:
		return KindObject, true
	case TString:
		return KindString, true
	case TArray:
		return KindArray, true
	case TMapping:
		return KindMapping, true
	case TFunction:
		return KindFunction, true
	case TFuncRef:
		return KindFunctionRef, true
	case TSymbol:
		return KindSymbol, true
	}
	return 0, false
}

// Accepts reports whether v satisfies t, used by TYPECHECK (spec §4.3/
// §4.6: "emit warning + throw on mismatch"). TAny accepts everything.
func (t TypeTag) Accepts(v Any) bool {
	switch t.Base {
	case TAny:
		return true
	case TVoid:
		return v.IsNil()
	case TInt:
		return v.IsInt()
	case TChar:
		return v.IsChar()
	default:
		k, ok := kindOfBase(t.Base)
		if !ok {
			return true
		}
		vk, vok := v.Kind()
		return vok && vk == k
	}
}

// Cast implements TYPECAST: convert v to t if a defined coercion exists,
// otherwise report failure so the caller can throw (spec §4.6).
// Int/char cross-coerce (spec §3 equality already treats them as
// numerically interchangeable); everything else must already satisfy
// Accepts.
func (t TypeTag) Cast(v Any) (Any, bool) {
	if t.Accepts(v) {
		return v, true
	}
	switch t.Base {
	case TInt:
		if v.IsChar() {
			return Int(v.IntValue()), true
		}
	case TChar:
		if v.IsInt() {
			return Char(rune(v.IntValue())), true
		}
	}
	return Nil, false
}
