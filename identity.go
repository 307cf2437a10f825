package stain

import (
	"unsafe"
)

// Tracking is keyed by value identity, never content: the engine must treat
// two equal strings built at different times as unrelated values. Identity
// of a Go string or byte slice is the address of its backing bytes plus its
// length. The address alone is not enough because a value and its prefix
// slice share a base pointer; the length disambiguates them.

// text covers the two host shapes the engine tracks.
type text interface {
	~string | ~[]byte
}

// valueKey identifies one live text value. The data field is a raw address
// and must never be dereferenced; it exists only for map lookups. Lifetime
// safety comes from the cleanup wiring in the store, not from this key.
type valueKey struct {
	data uintptr
	len  int
}

// bytePointerOf returns the address of v's first byte as a live pointer,
// suitable for runtime.AddCleanup. Returns nil for empty values.
//
// String and slice headers both lead with the data pointer, so a single
// reinterpretation covers both shapes, including named types that generics
// type switches would miss.
func bytePointerOf[T text](v T) *byte {
	if len(v) == 0 {
		return nil
	}
	return *(**byte)(unsafe.Pointer(&v))
}

// keyOf derives the identity key for v. Empty values have no identity and
// are never tracked; callers short-circuit on ok == false.
func keyOf[T text](v T) (valueKey, bool) {
	if len(v) == 0 {
		return valueKey{}, false
	}
	return valueKey{
		data: uintptr(unsafe.Pointer(bytePointerOf(v))),
		len:  len(v),
	}, true
}

// offsetWithin reports where sub begins inside outer when sub aliases
// outer's backing array, as the results of strings.TrimSpace, strings.Split
// and regexp splitting do. ok is false when sub is empty or does not alias
// outer; callers treat that as "no provenance to carry".
func offsetWithin(outer, sub string) (int, bool) {
	if len(sub) == 0 || len(outer) == 0 {
		return 0, false
	}
	ob := uintptr(unsafe.Pointer(bytePointerOf(outer)))
	sb := uintptr(unsafe.Pointer(bytePointerOf(sub)))
	if sb < ob || sb+uintptr(len(sub)) > ob+uintptr(len(outer)) {
		return 0, false
	}
	return int(sb - ob), true
}
