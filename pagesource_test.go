package dlmalloc

import (
	"testing"
	"unsafe"
)

// fakePageSource is a PageSource backed entirely by Go-managed memory, so
// core tests never touch a real mapping or mprotect call. It mirrors the
// contiguity contract systemPageSource honors: ExtendHeap returns the
// address where newly added bytes begin (or, on shrink, the new end of
// the segment), moving on every call.
type fakePageSource struct {
	buf    []byte
	brk    int
	mapped map[uintptr][]byte
	page   int
}

func newFakePageSource(capacity int) *fakePageSource {
	if capacity <= 0 {
		capacity = 1 << 20
	}
	return &fakePageSource{
		buf:    make([]byte, capacity),
		mapped: make(map[uintptr][]byte),
		page:   4096,
	}
}

func (f *fakePageSource) PageSize() int { return f.page }

func (f *fakePageSource) origin() uintptr { return uintptr(unsafe.Pointer(&f.buf[0])) }

func (f *fakePageSource) ExtendHeap(delta int) (uintptr, error) {
	switch {
	case delta > 0:
		newBrk := f.brk + delta
		if newBrk > len(f.buf) {
			return 0, ErrHostFailure
		}
		addr := f.origin() + uintptr(f.brk)
		f.brk = newBrk
		return addr, nil
	case delta < 0:
		newBrk := f.brk + delta
		if newBrk < 0 {
			return 0, ErrHostFailure
		}
		f.brk = newBrk
		return f.origin() + uintptr(f.brk), nil
	default:
		return f.origin() + uintptr(f.brk), nil
	}
}

func (f *fakePageSource) MapPages(length int) (uintptr, error) {
	b := make([]byte, length)
	addr := uintptr(unsafe.Pointer(&b[0]))
	f.mapped[addr] = b
	return addr, nil
}

func (f *fakePageSource) UnmapPages(base uintptr, length int) error {
	if _, ok := f.mapped[base]; !ok {
		return ErrHostFailure
	}
	delete(f.mapped, base)
	return nil
}

func TestFakePageSourceExtendHeapIsContiguous(t *testing.T) {
	ps := newFakePageSource(1 << 16)
	b1, err := ps.ExtendHeap(4096)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := ps.ExtendHeap(4096)
	if err != nil {
		t.Fatal(err)
	}
	if b2 != b1+4096 {
		t.Fatalf("second ExtendHeap not contiguous with first: %#x vs %#x", b2, b1+4096)
	}
}

func TestFakePageSourceExtendHeapRejectsOverCapacity(t *testing.T) {
	ps := newFakePageSource(4096)
	if _, err := ps.ExtendHeap(8192); err == nil {
		t.Fatal("expected error growing past capacity")
	}
}

func TestFakePageSourceShrinkMovesBreakBack(t *testing.T) {
	ps := newFakePageSource(1 << 16)
	base, _ := ps.ExtendHeap(8192)
	shrunk, err := ps.ExtendHeap(-4096)
	if err != nil {
		t.Fatal(err)
	}
	if shrunk != base+4096 {
		t.Fatalf("shrink returned %#x, want %#x", shrunk, base+4096)
	}
}

func TestFakePageSourceMapUnmap(t *testing.T) {
	ps := newFakePageSource(1 << 16)
	base, err := ps.MapPages(4096)
	if err != nil {
		t.Fatal(err)
	}
	if base == 0 {
		t.Fatal("zero base from MapPages")
	}
	if err := ps.UnmapPages(base, 4096); err != nil {
		t.Fatal(err)
	}
	if err := ps.UnmapPages(base, 4096); err == nil {
		t.Fatal("expected error on double unmap")
	}
}
