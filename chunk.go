package dlmalloc

import "unsafe"

// Malloc alignment. A = 2*word_size, at least 8. On every platform this
// engine targets (32 and 64 bit), word_size is the pointer size, giving
// A = 16 on 64 bit and A = 8 on 32 bit.
const wordSize = unsafe.Sizeof(uintptr(0))

var mallocAlignment = 2 * wordSize

// Flag bits packed into the low bits of a chunk's size word. Masked out
// on every read of the size.
const (
	flagPrevInUse    = uintptr(1) << 0
	flagIsMmapped    = uintptr(1) << 1
	flagNonMainArena = uintptr(1) << 2
	sizeBits         = flagPrevInUse | flagIsMmapped | flagNonMainArena
)

// chunk is the in-band metadata prefix of every chunk, in-use or free. It
// overlays the first two words of a chunk exactly as dlmalloc's C struct
// does: prevSize is only meaningful when the previous chunk in address
// order is free (the overlap optimization of §3.1 / Design Notes §9) —
// when the previous chunk is in-use, those bytes belong to its payload
// and this engine must never write them. sizeAndFlags's low three bits
// are the flag bits, masked out on every read via size().
//
// Free chunks additionally use the user region immediately following
// this header for fd/bk and, in large bins, fd_nextsize/bk_nextsize,
// plus a trailing footer word mirroring size. The link overlays are
// defined in bins.go and the footer accessors below; chunk itself only
// ever describes the fixed two-word prefix
// every chunk carries, and is never exposed outside this package.
type chunk struct {
	prevSize     uintptr
	sizeAndFlags uintptr
}

// chunkHeaderSize is the number of header bytes every chunk pays,
// counted against the user's request in normalizeSize.
const chunkHeaderSize = unsafe.Sizeof(chunk{})

// minChunkSize is the smallest legal chunk: room for the header plus the
// five free-list words a free chunk must be able to hold (fd, bk,
// fd_nextsize, bk_nextsize, and an internal list-membership tag used by
// unbin to tell the unsorted/small/large bins apart in O(1) — see
// bins.go), rounded up to the malloc alignment.
var minChunkSize = roundUp(chunkHeaderSize+5*wordSize, mallocAlignment)

func chunkAt(p uintptr) *chunk { return (*chunk)(unsafe.Pointer(p)) }

func (c *chunk) addr() uintptr { return uintptr(unsafe.Pointer(c)) }

// size returns the chunk's total byte length with flag bits masked out.
func (c *chunk) size() uintptr { return c.sizeAndFlags &^ sizeBits }

// setSize overwrites the size field, preserving the current flag bits.
func (c *chunk) setSize(n uintptr) { c.sizeAndFlags = n | (c.sizeAndFlags & sizeBits) }

// setSizeAndFlags overwrites both the size and every flag bit at once.
func (c *chunk) setSizeAndFlags(n uintptr, prevInUse, mmapped bool) {
	v := n
	if prevInUse {
		v |= flagPrevInUse
	}
	if mmapped {
		v |= flagIsMmapped
	}
	c.sizeAndFlags = v
}

func (c *chunk) prevInUse() bool { return c.sizeAndFlags&flagPrevInUse != 0 }
func (c *chunk) isMmapped() bool { return c.sizeAndFlags&flagIsMmapped != 0 }

func (c *chunk) setPrevInUse()   { c.sizeAndFlags |= flagPrevInUse }
func (c *chunk) clearPrevInUse() { c.sizeAndFlags &^= flagPrevInUse }

func (c *chunk) setMmapped() { c.sizeAndFlags |= flagIsMmapped }

// userData returns the address of the first byte of the user region,
// i.e. the address every allocate variant hands back to the caller.
func (c *chunk) userData() uintptr { return c.addr() + chunkHeaderSize }

// chunkFromUserData is the inverse of userData: given a pointer
// previously returned to a caller, recovers the owning chunk.
func chunkFromUserData(p uintptr) *chunk { return chunkAt(p - chunkHeaderSize) }

// next returns the chunk immediately following c in address order. It is
// only meaningful while c is not the top chunk.
func (c *chunk) next() *chunk { return chunkAt(c.addr() + c.size()) }

// prevChunk locates the chunk immediately preceding c in address order.
// Only valid to call when !c.prevInUse(): the predecessor's size is
// recovered from c.prevSize, the overlap slot the predecessor's header
// reserved for exactly this purpose while free.
func (c *chunk) prevChunk() *chunk { return chunkAt(c.addr() - c.prevSize) }

// footer returns a pointer to the trailing size word of a free chunk,
// the word at the chunk's last wordSize bytes, which must mirror size()
// per invariant 8.
func (c *chunk) footer() *uintptr {
	return (*uintptr)(unsafe.Pointer(c.addr() + c.size() - wordSize))
}

func (c *chunk) writeFooter() { *c.footer() = c.size() }

// setPrevSize records the size of the (free) predecessor of c in c's
// overlap slot. Must never be called when the predecessor is in-use —
// that slot belongs to the predecessor's payload in that case.
func (c *chunk) setPrevSize(n uintptr) { c.prevSize = n }

// roundUp rounds n up to the next multiple of m, m a power of two.
func roundUp(n, m uintptr) uintptr { return (n + m - 1) &^ (m - 1) }

// roundDown rounds n down to the previous multiple of m, m a power of two.
func roundDown(n, m uintptr) uintptr { return n &^ (m - 1) }

func isPowerOfTwo(n uintptr) bool { return n != 0 && n&(n-1) == 0 }

// byteSliceAt views length bytes starting at addr as a []byte, the
// common bridge between raw chunk addresses and the copy/zeroing
// helpers in alloc.go and the unix PageSource implementation. Kept free
// of any build tag since alloc.go's use of it is platform independent.
func byteSliceAt(addr uintptr, length int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
}
