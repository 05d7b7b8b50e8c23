package value

// mapEntry is a single (key, value) pair of a Mapping.
type mapEntry struct {
	key Any
	val Any
}

// Mapping is an unordered collection of (Any key -> Any value) entries
// using the Value-rules notion of equality (spec §3: "identity-or-value
// equality per the Value rules"), which rules out a native Go map keyed
// on Any directly — two distinct *String heap objects with the same
// content must hash to the same entry, but would compare unequal as Go
// interface values. Entries are therefore kept in a flat slice and
// looked up via value.Eq, mirroring the Object Table's symbol list
// (linear is adequate at mudlib scale; spec §4.1 makes the same call for
// symbols).
type Mapping struct {
	Header
	entries []mapEntry
}

func NewMapping() *Mapping {
	return &Mapping{Header: NewHeader(KindMapping)}
}

func (m *Mapping) Mark(visit func(Any)) {
	for _, e := range m.entries {
		visit(e.key)
		visit(e.val)
	}
}

func (m *Mapping) Len() int { return len(m.entries) }

func (m *Mapping) Get(key Any) (Any, bool) {
	for _, e := range m.entries {
		if Eq(e.key, key) {
			return e.val, true
		}
	}
	return Nil, false
}

// Set mutates the mapping in place, replacing any existing entry for an
// Eq-equal key (spec §4.8 "INDEX_ASSIGN mutates the container and yields
// it" applies to mappings the same way it does arrays).
func (m *Mapping) Set(key, val Any) {
	for i, e := range m.entries {
		if Eq(e.key, key) {
			m.entries[i].val = val
			return
		}
	}
	m.entries = append(m.entries, mapEntry{key: key, val: val})
}

// Keys returns the entries in insertion order, used by foreach-style
// built-ins and by the GC's mark pass (via Mark above).
func (m *Mapping) Keys() []Any {
	out := make([]Any, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.key
	}
	return out
}
