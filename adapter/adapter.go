// Copyright 2024 The Dlmalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package adapter binds a *dlmalloc.Arena onto the HostAllocator
// interface, the shape an embedder wants when it treats this engine as
// one interchangeable allocation strategy among several (compare
// hivekit's hive/alloc package, which binds its own Allocator interface
// onto FastAllocator, BumpAllocator and NoFreeAllocator).
package adapter

import (
	"errors"
	"unsafe"

	"github.com/gomalloc/dlmalloc"
)

// ErrNilPointer is returned by Resize and Free when asked to act on
// a nil pointer, a case the raw *dlmalloc.Arena API treats as a no-op
// but that a HostAllocator-consuming caller usually wants surfaced.
var ErrNilPointer = errors.New("adapter: nil pointer")

// HostAllocator is the interface an embedder codes against instead of
// importing *dlmalloc.Arena directly, so a different allocation
// strategy can be substituted without touching call sites.
type HostAllocator interface {
	// Allocate returns size bytes, or an error if none are available.
	Allocate(size int) (unsafe.Pointer, error)

	// Resize grows or shrinks a previously allocated block, possibly
	// moving it; the returned pointer replaces p.
	Resize(p unsafe.Pointer, newSize int) (unsafe.Pointer, error)

	// Free releases a block obtained from Allocate or Resize.
	Free(p unsafe.Pointer) error

	// Realign returns a block of size bytes aligned to alignment, a
	// power of two.
	Realign(alignment, size int) (unsafe.Pointer, error)
}

// Adapter binds a *dlmalloc.Arena onto HostAllocator.
type Adapter struct {
	arena *dlmalloc.Arena
}

// New wraps arena as a HostAllocator.
func New(arena *dlmalloc.Arena) *Adapter {
	return &Adapter{arena: arena}
}

func (a *Adapter) Allocate(size int) (unsafe.Pointer, error) {
	p := a.arena.Allocate(size)
	if p == nil {
		return nil, dlmalloc.ErrOutOfMemory
	}
	return p, nil
}

func (a *Adapter) Resize(p unsafe.Pointer, newSize int) (unsafe.Pointer, error) {
	if p == nil {
		return nil, ErrNilPointer
	}
	np := a.arena.Reallocate(p, newSize)
	if np == nil && newSize != 0 {
		return nil, dlmalloc.ErrOutOfMemory
	}
	return np, nil
}

func (a *Adapter) Free(p unsafe.Pointer) error {
	if p == nil {
		return ErrNilPointer
	}
	a.arena.Free(p)
	return nil
}

func (a *Adapter) Realign(alignment, size int) (unsafe.Pointer, error) {
	p := a.arena.AllocateAligned(alignment, size)
	if p == nil {
		return nil, dlmalloc.ErrOutOfMemory
	}
	return p, nil
}

// Compile-time interface check.
var _ HostAllocator = (*Adapter)(nil)
