package obstack

import (
	"reflect"
	"sync"
	"unsafe"
)

// Destructor is implemented by types that hold resources which must be
// released exactly once when their arena-backed storage is deallocated
// (file handles, registered callbacks, anything beyond the raw bytes
// themselves). Types that don't implement it are treated as trivially
// destructible: releasing their chunk does nothing beyond reclaiming bytes.
type Destructor interface {
	Destruct()
}

// thunk invokes the destructor for whatever concrete type a chunk's payload
// holds, given only the payload's address.
type thunk func(unsafe.Pointer)

// dtorTag is the masked value stored in a chunk header in place of a raw
// function pointer. Rather than encoding and XOR-masking an actual code
// address (which Go gives no safe way to reconstruct a callable from), each
// distinct T is assigned a small integer tag the first time it is used with
// an arena; the tag indexes a process-wide table of thunks. This is the
// "type tag plus compile-time dispatch table" alternative the design notes
// call out explicitly, implemented with the same reflect.Type-keyed cache
// encoding/gob and encoding/json use for their own per-type codecs.
type dtorTag = uint64

const (
	// freeMarkerTag replaces a chunk's real tag once it has been
	// destructed but not yet reclaimed.
	freeMarkerTag dtorTag = ^dtorTag(0)
	// trivialArrayTag marks chunks created by AllocArray: no per-element
	// destructor is ever invoked for them.
	trivialArrayTag dtorTag = ^dtorTag(0) - 1
)

var (
	thunkMu       sync.Mutex
	thunkTable    []thunk
	thunkTagCache = map[reflect.Type]dtorTag{}
)

// thunkFor returns the (unmasked) tag identifying T's destructor thunk,
// registering one on first use. Registration is the only place reflection
// is used; allocation and deallocation only ever touch the tag.
func thunkFor[T any]() dtorTag {
	rt := reflect.TypeFor[T]()

	thunkMu.Lock()
	defer thunkMu.Unlock()
	if tag, ok := thunkTagCache[rt]; ok {
		return tag
	}
	thunkTable = append(thunkTable, destructThunk[T])
	tag := dtorTag(len(thunkTable) - 1)
	thunkTagCache[rt] = tag
	return tag
}

// destructThunk is the monomorphic bridge for T: it calls Destruct if T
// implements Destructor, and is a no-op otherwise.
func destructThunk[T any](p unsafe.Pointer) {
	if d, ok := any((*T)(p)).(Destructor); ok {
		d.Destruct()
	}
}

// resolveThunk looks up a previously registered thunk by tag. Tags are only
// ever handed out by thunkFor, so an out-of-range tag here means the header
// that produced it was corrupted or never valid in the first place.
func resolveThunk(tag dtorTag) (thunk, bool) {
	thunkMu.Lock()
	defer thunkMu.Unlock()
	if tag >= dtorTag(len(thunkTable)) {
		return nil, false
	}
	return thunkTable[tag], true
}

// isTriviallyDestructible reports whether T can be safely used as the
// element type of AllocArray: it must not transitively contain any
// reference-like field (pointer, interface, slice, map, channel, function,
// or string), since array allocations never run a constructor or destructor
// for their elements and raw zero bytes must always be a legal value.
func isTriviallyDestructible[T any]() bool {
	return isTypeTrivial(reflect.TypeFor[T](), make(map[reflect.Type]bool))
}

func isTypeTrivial(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return true
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map,
		reflect.Chan, reflect.Func, reflect.String, reflect.UnsafePointer:
		return false
	case reflect.Array:
		return isTypeTrivial(t.Elem(), seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !isTypeTrivial(t.Field(i).Type, seen) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
