package dlmalloc

// PageSource is the external contract §4.1 describes: abstract access to
// the OS for growing the contiguous data segment and for mapping and
// unmapping anonymous pages. The engine never talks to the OS directly;
// every syscall-adjacent detail lives behind this interface so the core
// stays portable and testable (tests substitute a fake PageSource backed
// by a plain Go byte slice, see pagesource_test.go).
type PageSource interface {
	// ExtendHeap grows (delta > 0) or shrinks (delta < 0) the contiguous
	// data segment by delta bytes and returns the old break: the address
	// at which the newly added bytes begin (or, when shrinking, the new
	// end of the segment after the shrink). This address moves on every
	// call, exactly like sbrk(2)'s return value — callers use it to
	// detect whether successive growth stays contiguous with whatever
	// they last saw. A discontinuity — this implementation not being able
	// to honor the contiguity contract, for instance because the
	// underlying reservation was exhausted — must be reported as an
	// error so the core falls back to MapPages, never silently return a
	// non-contiguous region.
	ExtendHeap(delta int) (base uintptr, err error)

	// MapPages returns a page-aligned anonymous read/write mapping of
	// exactly len bytes. Distinct calls need not be contiguous with each
	// other or with the heap segment.
	MapPages(length int) (base uintptr, err error)

	// UnmapPages releases a mapping previously returned by MapPages with
	// the same base and length. Must not fail for a region it in fact
	// owns.
	UnmapPages(base uintptr, length int) error

	// PageSize returns the OS page size, constant for the process.
	PageSize() int
}

// defaultHeapReserve is how much virtual address space a systemPageSource
// reserves up front to emulate sbrk-style contiguous growth (Go exposes
// no brk(2)). Reservation is address-space only — PROT_NONE / MEM_RESERVE
// — and costs no physical memory until ExtendHeap commits it.
const defaultHeapReserve = 1 << 30 // 1 GiB
