// Copyright 2024 The Dlmalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dlmalloc implements a general purpose memory allocator in the
// lineage of Doug Lea's dlmalloc.
//
// It satisfies requests for variably sized, aligned byte blocks from a
// contiguous data segment emulated on top of anonymous OS page mappings,
// recycles freed blocks through size indexed free lists (fast bins, small
// bins, large bins and an unsorted bin), and returns surplus memory to the
// operating system when the top chunk grows past a configurable threshold.
//
// The engine is single threaded by contract: every exported method on
// *Arena mutates bins, the top chunk and counters without internal
// synchronization. Callers that share an *Arena across goroutines must
// provide their own mutual exclusion, or use the malloc subpackage, which
// wraps a process wide singleton in an opt-in mutex.
//
// Changelog
//
// 2024-01-01 Initial boundary-tag engine, replacing the size-class slab
// design of the package this one traces its lineage to.
package dlmalloc
