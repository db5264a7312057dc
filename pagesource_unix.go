//go:build unix

package dlmalloc

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// systemPageSource is the unix PageSource: a reservation-then-commit
// emulation of sbrk layered on golang.org/x/sys/unix's Mmap/Mprotect,
// the same raw-syscall family the rest of the retrieval pack
// (joshuapare-hivekit, yaninyzwitty-hyperpb-go) reaches for instead of
// the bare syscall package the teacher used when it predated x/sys.
type systemPageSource struct {
	pageSize int

	reserveBase uintptr // 0 until the reservation is made
	reserveLen  int
	brk         int // bytes committed from reserveBase, i.e. current break offset
}

// NewSystemPageSource constructs the OS-backed PageSource used by
// SingletonArena and by any caller that wants a real arena. reserveSize
// is the virtual address span reserved for heap growth; 0 selects
// defaultHeapReserve.
func NewSystemPageSource(reserveSize int) PageSource {
	if reserveSize <= 0 {
		reserveSize = defaultHeapReserve
	}
	return &systemPageSource{pageSize: os.Getpagesize(), reserveLen: reserveSize}
}

func (s *systemPageSource) PageSize() int { return s.pageSize }

func (s *systemPageSource) reserve() error {
	if s.reserveBase != 0 {
		return nil
	}
	b, err := unix.Mmap(-1, 0, s.reserveLen, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return fmt.Errorf("dlmalloc: reserve heap: %w", err)
	}
	s.reserveBase = uintptr(unsafe.Pointer(&b[0]))
	return nil
}

func (s *systemPageSource) ExtendHeap(delta int) (uintptr, error) {
	if err := s.reserve(); err != nil {
		return 0, err
	}
	switch {
	case delta > 0:
		newBrk := s.brk + delta
		if newBrk > s.reserveLen {
			return 0, fmt.Errorf("%w: heap reservation exhausted", ErrHostFailure)
		}
		committedEnd := roundUpInt(s.brk, s.pageSize)
		wantEnd := roundUpInt(newBrk, s.pageSize)
		if wantEnd > committedEnd {
			region := byteSliceAt(s.reserveBase+uintptr(committedEnd), wantEnd-committedEnd)
			if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_WRITE); err != nil {
				return 0, fmt.Errorf("dlmalloc: commit heap pages: %w", err)
			}
		}
		base := s.reserveBase + uintptr(s.brk)
		s.brk = newBrk
		return base, nil
	case delta < 0:
		newBrk := s.brk + delta
		if newBrk < 0 {
			return 0, fmt.Errorf("%w: heap shrink below origin", ErrHostFailure)
		}
		oldCommittedEnd := roundUpInt(s.brk, s.pageSize)
		newCommittedEnd := roundUpInt(newBrk, s.pageSize)
		if newCommittedEnd < oldCommittedEnd {
			region := byteSliceAt(s.reserveBase+uintptr(newCommittedEnd), oldCommittedEnd-newCommittedEnd)
			_ = unix.Mprotect(region, unix.PROT_NONE)
		}
		s.brk = newBrk
		return s.reserveBase + uintptr(newBrk), nil
	default:
		return s.reserveBase + uintptr(s.brk), nil
	}
}

func (s *systemPageSource) MapPages(length int) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, fmt.Errorf("dlmalloc: map pages: %w", err)
	}
	return uintptr(unsafe.Pointer(&b[0])), nil
}

func (s *systemPageSource) UnmapPages(base uintptr, length int) error {
	region := byteSliceAt(base, length)
	if err := unix.Munmap(region); err != nil {
		return fmt.Errorf("dlmalloc: unmap pages: %w", err)
	}
	return nil
}

func roundUpInt(n, m int) int { return (n + m - 1) &^ (m - 1) }
