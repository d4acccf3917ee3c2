package heap

// ValueKind discriminates the tagged union spec.md section 3 describes:
// Int and Float are unboxed; String, Array, and Dict are heap references
// subject to GC; Func is a heap reference this spec never manages.
type ValueKind uint8

const (
	KindInt ValueKind = iota
	KindFloat
	KindString
	KindArray
	KindDict
	KindFunc

	// kindDictEmpty and kindDictRemoved are the two dict-key tombstone
	// discriminants of spec.md section 3: "an empty key has a specific
	// non-string tag; a removed key has a different non-string tag."
	// They are only ever observed in a dict's key table, never returned
	// from a public operation.
	kindDictEmpty
	kindDictRemoved
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindFunc:
		return "func"
	case kindDictEmpty:
		return "<empty>"
	case kindDictRemoved:
		return "<removed>"
	default:
		return "<unknown>"
	}
}

// Value is the interpreter's tagged value: a small struct copied by
// value, never itself heap-allocated. Heap-referencing kinds carry an
// *Object; Int/Float carry their payload inline; Func carries an opaque
// payload this package never inspects (Func objects are out of scope,
// per spec.md section 3).
type Value struct {
	kind ValueKind
	i    int64
	f    float32
	obj  *Object
	fn   any
}

// IntValue wraps an integer.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue wraps a float.
func FloatValue(f float32) Value { return Value{kind: KindFloat, f: f} }

// FuncValue wraps an opaque function payload. Func values are never
// visited by any collector.
func FuncValue(fn any) Value { return Value{kind: KindFunc, fn: fn} }

func stringValue(o *Object) Value { return Value{kind: KindString, obj: o} }
func arrayValue(o *Object) Value  { return Value{kind: KindArray, obj: o} }
func dictValue(o *Object) Value   { return Value{kind: KindDict, obj: o} }

func emptyKeySlot() Value   { return Value{kind: kindDictEmpty} }
func removedKeySlot() Value { return Value{kind: kindDictRemoved} }

// Kind reports the value's discriminant.
func (v Value) Kind() ValueKind { return v.kind }

// Int returns the wrapped integer. The zero value is returned for a
// non-Int value.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		return 0
	}

	return v.i
}

// Float returns the wrapped float. The zero value is returned for a
// non-Float value.
func (v Value) Float() float32 {
	if v.kind != KindFloat {
		return 0
	}

	return v.f
}

// Func returns the wrapped opaque function payload, or nil.
func (v Value) Func() any {
	if v.kind != KindFunc {
		return nil
	}

	return v.fn
}

// IsHeapRef reports whether v is one of the three GC-managed kinds.
func (v Value) IsHeapRef() bool {
	switch v.kind {
	case KindString, KindArray, KindDict:
		return true
	default:
		return false
	}
}

// object returns the referenced Object, or nil for a non-heap value.
func (v Value) object() *Object {
	return v.obj
}

// IsNil reports whether v is the zero Value (an Int of 0). Callers that
// need a tri-state "absent" value should use a pointer-to-Value instead;
// this spec's operations never require one.
func (v Value) IsNil() bool {
	return v == Value{}
}
