//go:build windows

package dlmalloc

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// systemPageSource is the Windows PageSource, built on
// golang.org/x/sys/windows's VirtualAlloc/VirtualFree pair — the
// reserve-then-commit two-step the teacher's own mmap_windows.go
// documents for its CreateFileMapping/MapViewOfFile pair ("mmap on
// Windows is a two-step process"), generalized here from file mappings
// to plain virtual memory since this engine has no backing file.
type systemPageSource struct {
	pageSize int

	reserveBase uintptr
	reserveLen  int
	brk         int
}

// NewSystemPageSource constructs the OS-backed PageSource used by
// SingletonArena and by any caller that wants a real arena.
func NewSystemPageSource(reserveSize int) PageSource {
	if reserveSize <= 0 {
		reserveSize = defaultHeapReserve
	}
	var si windows.SystemInfo
	windows.GetSystemInfo(&si)
	pageSize := int(si.PageSize)
	if pageSize == 0 {
		pageSize = 4096
	}
	return &systemPageSource{pageSize: pageSize, reserveLen: reserveSize}
}

func (s *systemPageSource) PageSize() int { return s.pageSize }

func (s *systemPageSource) reserve() error {
	if s.reserveBase != 0 {
		return nil
	}
	addr, err := windows.VirtualAlloc(0, uintptr(s.reserveLen), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return fmt.Errorf("dlmalloc: reserve heap: %w", err)
	}
	s.reserveBase = addr
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
			_, err := windows.VirtualAlloc(s.reserveBase+uintptr(committedEnd), uintptr(wantEnd-committedEnd), windows.MEM_COMMIT, windows.PAGE_READWRITE)
			if err != nil {
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
			_ = windows.VirtualFree(s.reserveBase+uintptr(newCommittedEnd), uintptr(oldCommittedEnd-newCommittedEnd), windows.MEM_DECOMMIT)
		}
		s.brk = newBrk
		return s.reserveBase + uintptr(newBrk), nil
	default:
		return s.reserveBase + uintptr(s.brk), nil
	}
}

func (s *systemPageSource) MapPages(length int) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(length), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return 0, fmt.Errorf("dlmalloc: map pages: %w", err)
	}
	return addr, nil
}

func (s *systemPageSource) UnmapPages(base uintptr, length int) error {
	if err := windows.VirtualFree(base, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("dlmalloc: unmap pages: %w", err)
	}
	return nil
}

func roundUpInt(n, m int) int { return (n + m - 1) &^ (m - 1) }
