package heap

import "sync/atomic"

// ObjectType is the `type` field of spec.md section 3's object header.
type ObjectType uint8

const (
	TypeString ObjectType = iota
	TypeArray
	TypeDict
)

func (t ObjectType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeDict:
		return "dict"
	default:
		return "unknown"
	}
}

// RegionKind is the `region` field of spec.md section 3's object header.
// Per invariant 2, an object's region only ever increases in this
// ordering: NURSERY < GRADUATE < TENURE.
type RegionKind uint8

const (
	RegionNursery RegionKind = iota
	RegionGraduate
	RegionTenure
)

func (r RegionKind) String() string {
	switch r {
	case RegionNursery:
		return "nursery"
	case RegionGraduate:
		return "graduate"
	case RegionTenure:
		return "tenure"
	default:
		return "unknown"
	}
}

// Object is the common header spec.md section 3 describes, embedded "at
// the start of every managed object" in the source. Here it is the whole
// managed object: per SPEC_FULL.md section 9 (OQ-1), noctrt represents
// every managed value as an ordinary Go struct reached through a stable
// *Object pointer rather than as an inline byte-layout record, which is
// the license spec.md section 9's Design Notes grants explicitly
// ("indices into a stable side array... preserves the O(1) insert/unlink
// properties without raw pointer arithmetic" — a *Object is exactly such
// a stable handle, since the Go runtime never relocates it).
//
// The three payload sections below are mutually exclusive, selected by
// typ; this wastes a little memory per object in exchange for a single
// concrete type the rest of the package can hold a stable pointer to.
type Object struct {
	typ    ObjectType
	region RegionKind
	size   uintptr // byte size incl. header; used by the tenure compactor

	// Intrusive doubly-linked list for the object's region live list.
	prev, next *Object

	// Intrusive doubly-linked list for the remembered set (barrier.go).
	remPrev, remNext *Object
	remFlag          bool

	marked         bool
	promotionCount int
	forward        *Object

	checksum uint64 // xxhash of stable header fields; see checksum.go

	// blockIndex is the tenure FreeListAllocator ledger index backing
	// this object once region == TENURE; -1 otherwise. Compaction
	// updates this field instead of relocating the object itself.
	blockIndex int

	// newer is the forwarding pointer for array/dict resize-publication
	// (spec.md section 4.8). It is an atomic.Pointer so a reader in
	// multi-threaded mode observes a concurrent writer's release store.
	newer atomic.Pointer[Object]

	// counter is the reader-acquire count used by the multi-threaded
	// safepoint protocol (spec.md section 5). Unused in single-threaded
	// mode.
	counter atomic.Int32

	// String payload.
	strBytes []byte
	strHash  uint32 // 0 sentinel = not yet computed

	// Array payload. len(arrItems) is alloc_size; arrSize is the used
	// length.
	arrItems []Value
	arrSize  uint32

	// Dict payload. len(dictKeys) (== len(dictVals)) is alloc_size, a
	// power of two >= 2; dictSize is the occupied-entry count. A slot's
	// state is the kind of dictKeys[i]: kindDictEmpty, kindDictRemoved,
	// or KindString for an occupied slot.
	dictKeys []Value
	dictVals []Value
	dictSize uint32
}

// Type reports the object's kind.
func (o *Object) Type() ObjectType { return o.typ }

// Region reports the object's current region.
func (o *Object) Region() RegionKind { return o.region }

// Size reports the object's header-inclusive byte size.
func (o *Object) Size() uintptr { return o.size }

// newerObject returns the forwarding pointer, or nil if none is set.
func (o *Object) newerObject() *Object { return o.newer.Load() }

// resolve walks the `newer` chain to the newest forwarder, per spec.md
// section 4.8's publication contract: "any in-flight read on the old
// container must chase newer to find the current version."
func resolve(o *Object) *Object {
	for {
		n := o.newer.Load()
		if n == nil {
			return o
		}

		o = n
	}
}

// listInsertHead links o at the head of the list pointed to by *head.
func listInsertHead(head **Object, o *Object) {
	o.prev = nil
	o.next = *head

	if *head != nil {
		(*head).prev = o
	}

	*head = o
}

// listUnlink removes o from the list pointed to by *head. o must
// currently be a member of that list.
func listUnlink(head **Object, o *Object) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		*head = o.next
	}

	if o.next != nil {
		o.next.prev = o.prev
	}

	o.prev = nil
	o.next = nil
}
