package dlmalloc

import "unsafe"

// addrOf returns the address of a byte slice's backing array, letting
// tests build chunks over plain Go memory without touching a real
// PageSource.
func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

// newTestArena builds an Arena over a fakePageSource with capacity
// bytes of emulated heap, tunables at their defaults.
func newTestArena(capacity int) *Arena {
	return NewArena(newFakePageSource(capacity))
}
