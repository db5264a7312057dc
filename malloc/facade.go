// Copyright 2024 The Dlmalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package malloc is the C-ABI-shaped facade over the process wide
// singleton arena: free functions named after their libc counterparts,
// dispatching onto dlmalloc.SingletonArena with an opt-in lock for
// callers that share the singleton across goroutines.
package malloc

import (
	"sync"
	"unsafe"

	"github.com/gomalloc/dlmalloc"
)

var (
	mu      sync.Mutex
	locking bool
)

// EnableLocking turns on the opt-in mutual exclusion every exported
// function in this package acquires before touching the singleton
// arena. Off by default, matching §5: a single-threaded embedder pays
// nothing for a lock it never needed.
func EnableLocking() { locking = true }

func lock() {
	if locking {
		mu.Lock()
	}
}

func unlock() {
	if locking {
		mu.Unlock()
	}
}

// Malloc allocates size bytes from the singleton arena.
func Malloc(size int) unsafe.Pointer {
	lock()
	defer unlock()
	return dlmalloc.SingletonArena().Allocate(size)
}

// Calloc allocates n*size bytes, zero filled.
func Calloc(n, size int) unsafe.Pointer {
	lock()
	defer unlock()
	return dlmalloc.SingletonArena().AllocateZeroed(n, size)
}

// Realloc resizes a block previously obtained from this package.
func Realloc(p unsafe.Pointer, newSize int) unsafe.Pointer {
	lock()
	defer unlock()
	return dlmalloc.SingletonArena().Reallocate(p, newSize)
}

// Free releases a block previously obtained from this package.
func Free(p unsafe.Pointer) {
	lock()
	defer unlock()
	dlmalloc.SingletonArena().Free(p)
}

// Memalign allocates size bytes aligned to alignment, a power of two.
func Memalign(alignment, size int) unsafe.Pointer {
	lock()
	defer unlock()
	return dlmalloc.SingletonArena().AllocateAligned(alignment, size)
}

// Valloc allocates size bytes aligned to the system page size.
func Valloc(size int) unsafe.Pointer {
	lock()
	defer unlock()
	return dlmalloc.SingletonArena().AllocatePageAligned(size)
}

// Pvalloc allocates, page aligned, enough bytes to cover size rounded up
// to a whole number of pages.
func Pvalloc(size int) unsafe.Pointer {
	lock()
	defer unlock()
	a := dlmalloc.SingletonArena()
	page := a.PageSize()
	rounded := (size + page - 1) &^ (page - 1)
	return a.AllocatePageAligned(rounded)
}

// UsableSize reports how many bytes the caller may safely use at p.
func UsableSize(p unsafe.Pointer) int {
	lock()
	defer unlock()
	return dlmalloc.SingletonArena().UsableSize(p)
}

// Tune adjusts a tunable parameter of the singleton arena; see
// dlmalloc's Tune* constants. Returns 1 on acceptance, 0 on rejection.
func Tune(param, value int) int {
	lock()
	defer unlock()
	return dlmalloc.SingletonArena().Tune(param, value)
}

// Stats returns a snapshot of the singleton arena's counters.
func Stats() dlmalloc.Stats {
	lock()
	defer unlock()
	return dlmalloc.SingletonArena().Stats()
}
