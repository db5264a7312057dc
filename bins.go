package dlmalloc

import (
	"unsafe"

	"github.com/cznic/mathutil"
)

// Free-list pointer accessors. Free chunks reuse the first words of the
// user region as fd/bk (and, in large bins, fd_nextsize/bk_nextsize) per
// §3.1: "free links ... occupying the first two words of the user
// region". These are raw pointer slots, not owning references — the
// owning reference is the bin itself (Design Notes §9).
func (c *chunk) fdSlot() **chunk {
	return (**chunk)(unsafe.Pointer(c.userData()))
}
func (c *chunk) bkSlot() **chunk {
	return (**chunk)(unsafe.Pointer(c.userData() + wordSize))
}
func (c *chunk) fdNextSizeSlot() **chunk {
	return (**chunk)(unsafe.Pointer(c.userData() + 2*wordSize))
}
func (c *chunk) bkNextSizeSlot() **chunk {
	return (**chunk)(unsafe.Pointer(c.userData() + 3*wordSize))
}

func (c *chunk) fd() *chunk             { return *c.fdSlot() }
func (c *chunk) setFd(n *chunk)         { *c.fdSlot() = n }
func (c *chunk) bk() *chunk             { return *c.bkSlot() }
func (c *chunk) setBk(n *chunk)         { *c.bkSlot() = n }
func (c *chunk) fdNextSize() *chunk     { return *c.fdNextSizeSlot() }
func (c *chunk) setFdNextSize(n *chunk) { *c.fdNextSizeSlot() = n }
func (c *chunk) bkNextSize() *chunk     { return *c.bkNextSizeSlot() }
func (c *chunk) setBkNextSize(n *chunk) { *c.bkNextSizeSlot() = n }

// List membership tags, kept in a fifth free-only word right after
// bk_nextsize. The boundary-tag protocol in §3.1 never needs to ask "which
// list am I in" — only this engine's unbin (coalescing's partner
// operation) does, when a freed chunk's address neighbor turns out to
// already be free and must be pulled out of whatever list currently
// holds it. Recomputing that list from size alone is ambiguous (a chunk
// of small-bin size can be sitting in the unsorted bin transiently), so
// a tag is cheaper and less error-prone than re-deriving membership.
// This is bookkeeping internal to this package, not part of the
// boundary-tag layout the spec fixes.
const (
	listUnsorted = uintptr(iota)
	listSmall
	listLarge
)

func (c *chunk) listTagSlot() *uintptr {
	return (*uintptr)(unsafe.Pointer(c.userData() + 4*wordSize))
}
func (c *chunk) listTag() uintptr     { return *c.listTagSlot() }
func (c *chunk) setListTag(v uintptr) { *c.listTagSlot() = v }

// binSentinel is the embedded, always-resident head of a circular
// doubly linked bin. It occupies the header-and-link words of a
// would-be chunk at a fixed offset inside the Arena, per Design Notes
// §9: "the sentinel is embedded in the arena state ... Sentinels avoid
// null checks and make unlink branchless." header's size/prevSize
// fields are never read; only the link slots starting at what would be
// the header's userData() offset are meaningful, which is exactly
// where fd/bk/fdNextSize/bkNextSize live below, by construction of
// chunk's layout in chunk.go.
type binSentinel struct {
	header                 chunk
	fd, bk                 *chunk
	fdNextSize, bkNextSize *chunk
}

func (s *binSentinel) asChunk() *chunk { return &s.header }

func (s *binSentinel) init() {
	c := s.asChunk()
	c.setFd(c)
	c.setBk(c)
	c.setFdNextSize(c)
	c.setBkNextSize(c)
}

func (s *binSentinel) empty() bool { return s.asChunk().fd() == s.asChunk() }

// unlinkDL removes c from whichever circular doubly linked list (small
// bin, large bin or unsorted bin) currently holds it, using only its
// own fd/bk — branchless because every list, including the empty case,
// has a sentinel to link back to.
func unlinkDL(c *chunk) {
	fd := c.fd()
	bk := c.bk()
	fd.setBk(bk)
	bk.setFd(fd)
}

// insertDLAfter inserts c immediately after head (at the head of the
// list when head is the sentinel), matching "insert at head" for small
// bins and the unsorted bin.
func insertDLAfter(head, c *chunk) {
	next := head.fd()
	c.setFd(next)
	c.setBk(head)
	next.setBk(c)
	head.setFd(c)
}

// unlinkNextSize removes c from its bin's fd_nextsize/bk_nextsize skip
// chain. Only large-bin chunks that are the unique representative of
// their exact size participate in this chain; duplicates (chunks
// chained only via fd/bk to a same-size predecessor) are never linked
// into it and this is a no-op for them (self-referential).
func unlinkNextSize(c *chunk) {
	if c.fdNextSize() == c {
		return
	}
	fd := c.fdNextSize()
	bk := c.bkNextSize()
	fd.setBkNextSize(bk)
	bk.setFdNextSize(fd)
}

// --- Bin index functions, §4.3 ---

const (
	fastBinCount  = 10
	smallBinCount = 64
	largeBinCount = 64

	smallBinCutoff = 512 // nb < smallBinCutoff maps to a small bin
)

// fastBinValid reports whether nb is small enough to ever live in a
// fast bin, relative to the arena's current maxFast threshold (which
// Tune(MAX_FAST, ...) can set anywhere in [0, 80], and 0 disables fast
// bins entirely per Design Notes §9).
func fastBinValid(nb, maxFast uintptr) bool {
	return maxFast > 0 && nb <= maxFast
}

// fastBinIndex implements §4.3's literal formula, (nb>>3)-2. Because
// every chunk size is a multiple of mallocAlignment (16 on 64 bit
// platforms), only the even-numbered slots of the resulting 10-slot
// array are ever populated — the same gap real dlmalloc has on 64 bit
// builds where MALLOC_ALIGNMENT exceeds SIZE_SZ. This is intentional
// fidelity to the spec's formula, not a bug.
func fastBinIndex(nb uintptr) int { return int(nb>>3) - 2 }

// smallBinIndex implements §4.3's nb>>3, valid while nb < smallBinCutoff.
func smallBinIndex(nb uintptr) int { return int(nb >> 3) }

func isSmallBinSize(nb uintptr) bool { return nb < smallBinCutoff }

// largeBinIndex buckets nb into one of largeBinCount bins using a
// piecewise-geometric scheme: each power-of-two octave of chunk sizes is
// further split into four sub-buckets, giving finer granularity near the
// small end of the large-bin range and coarser granularity near the
// large end, the same shape dlmalloc/glibc's largebin_index has. The
// octave itself comes from mathutil.BitLen, the same bit-length primitive
// the teacher uses for its own size-class computation in Malloc (see
// memory.go's "log := uint(mathutil.BitLen(...))"), rather than a
// hand-rolled shift cascade (Open Question #3 in SPEC_FULL.md).
func largeBinIndex(nb uintptr) int {
	bl := mathutil.BitLen(int(nb))
	sub := int((nb >> uint(bl-3)) & 0x3)
	idx := (bl-largeBinBitBase)*4 + sub
	if idx < 0 {
		idx = 0
	}
	if idx >= largeBinCount {
		idx = largeBinCount - 1
	}
	return idx
}

// largeBinBitBase is the bit length of smallBinCutoff (512 == 1<<9, so
// BitLen reports 10), the smallest size that ever reaches largeBinIndex.
const largeBinBitBase = 10

// binmap is a bitmap over (fast bins excluded) small + large + unsorted
// bin occupancy, giving O(1) "next non-empty bin at or above index"
// scans for the large-bin search step (§4.2.2 step 4). Index 0 is the
// unsorted bin, 1..smallBinCount are small bins, the remainder are
// large bins.
type binmap [5]uint32 // 160 bits, enough for 1 (unsorted) + 64 (small) + 64 (large) = 129 positions

const binmapTotal = 1 + smallBinCount + largeBinCount

func (b *binmap) set(i int)    { b[i/32] |= 1 << uint(i%32) }
func (b *binmap) clear(i int)  { b[i/32] &^= 1 << uint(i%32) }
func (b *binmap) get(i int) bool { return b[i/32]&(1<<uint(i%32)) != 0 }

// nextSet returns the smallest set bit at index >= from, or -1 if none.
func (b *binmap) nextSet(from int) int {
	for i := from; i < binmapTotal; i++ {
		if b.get(i) {
			return i
		}
	}
	return -1
}
