package dlmalloc

import "unsafe"

// unsortedDrainLimit bounds the worst-case latency of the unsorted-bin
// scan in step 3 of §4.2.2.
const unsortedDrainLimit = 10000

// normalizeSize implements §4.2.1: align the request up to a canonical
// chunk size, enforce the minimum, and detect address-space overflow.
func normalizeSize(r int) (nb uintptr, ok bool) {
	if r <= 0 {
		return 0, false
	}
	rs := uintptr(r)
	if rs+chunkHeaderSize < rs {
		return 0, false // overflow
	}
	nb = roundUp(rs+chunkHeaderSize, mallocAlignment)
	if nb < rs {
		return 0, false // overflow in roundUp
	}
	if nb < minChunkSize {
		nb = minChunkSize
	}
	return nb, true
}

// Allocate implements the §6.1 allocate operation.
func (a *Arena) Allocate(size int) unsafe.Pointer {
	if a.Trace {
		trace("Allocate(%d)", size)
	}
	if size == 0 {
		return nil
	}
	nb, ok := normalizeSize(size)
	if !ok {
		return nil
	}
	c := a.allocChunk(nb)
	if c == nil {
		return nil
	}
	return unsafe.Pointer(c.userData())
}

// allocChunk implements the priority order of §4.2.2 and returns the
// served chunk (already marked in-use with respect to its address
// neighbors), or nil on out-of-memory.
func (a *Arena) allocChunk(nb uintptr) *chunk {
	if fastBinValid(nb, a.maxFast) {
		if idx := fastBinIndex(nb); idx >= 0 && idx < fastBinCount {
			if c := a.fastBins[idx]; c != nil {
				a.fastBins[idx] = c.fd()
				return c
			}
		}
	}

	if isSmallBinSize(nb) {
		if idx := smallBinIndex(nb); idx < smallBinCount {
			bin := &a.smallBins[idx]
			if !bin.empty() {
				c := bin.asChunk().bk()
				unlinkDL(c)
				if bin.empty() {
					a.bmap.clear(1 + idx)
				}
				a.markInUse(c)
				return c
			}
		}
	}

	if c := a.drainUnsortedAndServe(nb); c != nil {
		return c
	}
	if c := a.largeBinServe(nb); c != nil {
		return c
	}
	if c := a.topServe(nb); c != nil {
		return c
	}

	a.consolidateFastBins()
	if c := a.drainUnsortedAndServe(nb); c != nil {
		return c
	}
	if c := a.largeBinServe(nb); c != nil {
		return c
	}
	if c := a.topServe(nb); c != nil {
		return c
	}

	if nb >= a.mmapThreshold {
		if c := a.mmapServe(nb); c != nil {
			return c
		}
	}
	if c := a.growHeapAndServe(nb); c != nil {
		return c
	}
	// Last resort, per §4.2.2 step 8: once heap growth itself fails,
	// fall back to mmap regardless of mmapThreshold before declaring
	// out-of-memory. mmapServe already guards on mmapMax so this is
	// safe to call unconditionally.
	if c := a.mmapServe(nb); c != nil {
		return c
	}
	return nil
}

// markInUse flips c's successor's PREV_INUSE bit on, the bookkeeping
// every allocation path except the fast-bin hit must perform after
// removing a free chunk from a bin (§4.2.2 step 2's "clear its free-list
// status in the successor's PREV_INUSE").
func (a *Arena) markInUse(c *chunk) {
	if c == a.top {
		return
	}
	c.next().setPrevInUse()
}

// markFree is the inverse of markInUse, used whenever a chunk becomes
// free at a fixed address: it writes the trailing footer (invariant 8)
// and tells the real successor (which may be the top chunk — reading
// and writing its header works the same way as any other chunk) that
// its predecessor is now free, via PREV_INUSE and prevSize.
func (a *Arena) markFree(c *chunk) {
	c.writeFooter()
	succ := c.next()
	succ.clearPrevInUse()
	succ.setPrevSize(c.size())
}

// insertUnsorted places c at the head of the unsorted bin, per §4.2.3
// step 4 ("insert at the head of the unsorted bin") and §4.2.2 step 4
// ("the remainder ... goes to the unsorted bin").
func (a *Arena) insertUnsorted(c *chunk) {
	wasEmpty := a.unsorted.empty()
	insertDLAfter(a.unsorted.asChunk(), c)
	c.setListTag(listUnsorted)
	if wasEmpty {
		a.bmap.set(0)
	}
}

// binChunk sorts c into its permanent small or large bin, per §3.2's
// description of the unsorted bin's consumers: "sorting each drained
// chunk into its permanent bin."
func (a *Arena) binChunk(c *chunk) {
	sz := c.size()
	if isSmallBinSize(sz) {
		idx := smallBinIndex(sz)
		bin := &a.smallBins[idx]
		wasEmpty := bin.empty()
		insertDLAfter(bin.asChunk(), c)
		c.setListTag(listSmall)
		if wasEmpty {
			a.bmap.set(1 + idx)
		}
		return
	}

	idx := largeBinIndex(sz)
	bin := &a.largeBins[idx]
	c.setListTag(listLarge)
	if bin.empty() {
		insertDLAfter(bin.asChunk(), c)
		c.setFdNextSize(c)
		c.setBkNextSize(c)
		a.bmap.set(1 + smallBinCount + idx)
		return
	}

	head := bin.asChunk()
	largest := head.fd()
	if sz > largest.size() {
		insertDLAfter(head, c)
		c.setFdNextSize(largest)
		c.setBkNextSize(largest.bkNextSize())
		largest.bkNextSize().setFdNextSize(c)
		largest.setBkNextSize(c)
		return
	}

	// Walk the nextsize skip chain from largest to smallest looking for
	// either an exact-size representative (duplicate insert) or the
	// representative just above c's size (ordered insert).
	rep := largest
	for rep.fdNextSize() != largest && rep.fdNextSize().size() >= sz {
		rep = rep.fdNextSize()
	}
	if rep.size() == sz {
		// Duplicate of an existing size class: insert right after the
		// representative in the main list; it does not join the
		// nextsize chain itself (fdNextSize/bkNextSize point to itself,
		// marking it as a non-representative per unlinkNextSize's
		// self-loop check).
		insertDLAfter(rep, c)
		c.setFdNextSize(c)
		c.setBkNextSize(c)
		return
	}
	// rep.size() > sz and (rep is the smallest representative, or
	// rep.fdNextSize().size() < sz); insert c as a new representative
	// between rep and rep.fdNextSize(). In the main list c goes after
	// rep's last duplicate, i.e. right before next, or at the tail when
	// rep is the smallest representative.
	next := rep.fdNextSize()
	after := next.bk()
	if next == largest {
		after = head.bk()
	}
	insertDLAfter(after, c)
	c.setFdNextSize(next)
	c.setBkNextSize(rep)
	next.setBkNextSize(c)
	rep.setFdNextSize(c)
}

// unbin removes c, a known-free chunk, from whichever list currently
// holds it — used by regularFree when an address neighbor of the chunk
// being freed turns out to already be free and must be folded in.
func (a *Arena) unbin(c *chunk) {
	switch c.listTag() {
	case listUnsorted:
		unlinkDL(c)
		if a.unsorted.empty() {
			a.bmap.clear(0)
		}
	case listSmall:
		idx := smallBinIndex(c.size())
		unlinkDL(c)
		if a.smallBins[idx].empty() {
			a.bmap.clear(1 + idx)
		}
	case listLarge:
		idx := largeBinIndex(c.size())
		bin := &a.largeBins[idx]
		if c.fdNextSize() != c {
			// c is a nextsize representative. If a duplicate of its
			// exact size sits right after it in the main list, promote
			// that duplicate into the nextsize chain; otherwise c was
			// the sole chunk of its size and the chain loses a link.
			if dup := c.fd(); dup != bin.asChunk() && dup.size() == c.size() {
				dup.setFdNextSize(c.fdNextSize())
				dup.setBkNextSize(c.bkNextSize())
				c.fdNextSize().setBkNextSize(dup)
				c.bkNextSize().setFdNextSize(dup)
			} else {
				unlinkNextSize(c)
			}
		}
		unlinkDL(c)
		if bin.empty() {
			a.bmap.clear(1 + smallBinCount + idx)
		}
	}
}

// drainUnsortedAndServe implements §4.2.2 step 3: repeatedly take a
// chunk from the unsorted bin; an exact match is served immediately,
// everything else is sorted into its permanent bin. Bounded by
// unsortedDrainLimit to cap worst-case latency.
func (a *Arena) drainUnsortedAndServe(nb uintptr) *chunk {
	for i := 0; i < unsortedDrainLimit; i++ {
		head := a.unsorted.asChunk()
		if head.fd() == head {
			return nil
		}
		u := head.fd()
		unlinkDL(u)
		if a.unsorted.empty() {
			a.bmap.clear(0)
		}
		if u.size() == nb {
			a.markInUse(u)
			return u
		}
		a.binChunk(u)
	}
	return nil
}

// largeBinServe implements §4.2.2 step 4: locate the smallest large bin
// whose class could cover nb, walk its fd_nextsize chain for the
// smallest chunk >= nb, and split or serve it whole.
func (a *Arena) largeBinServe(nb uintptr) *chunk {
	pos := 1 + smallBinCount + largeBinIndex(nb)
	for {
		pos = a.bmap.nextSet(pos)
		if pos < 0 {
			return nil
		}
		binIdx := pos - 1 - smallBinCount
		bin := &a.largeBins[binIdx]
		rep := a.smallestAtLeast(bin, nb)
		if rep != nil {
			victim := a.takeFromLargeBin(bin, binIdx, rep)
			return a.serveSplitOrWhole(victim, nb)
		}
		pos++
	}
}

// smallestAtLeast walks bin's fd_nextsize chain (ordered largest to
// smallest) and returns the smallest representative whose size is still
// >= nb, or nil if even the largest chunk in the bin falls short.
func (a *Arena) smallestAtLeast(bin *binSentinel, nb uintptr) *chunk {
	largest := bin.asChunk().fd()
	rep := largest
	if rep.size() < nb {
		return nil
	}
	for {
		next := rep.fdNextSize()
		if next == largest || next.size() < nb {
			return rep
		}
		rep = next
	}
}

// takeFromLargeBin removes the chosen representative from bin, honoring
// §4.2.2's tie-break: "if multiple chunks of that exact size exist, the
// second from the head is preferred" — i.e. when a duplicate sits
// immediately after rep, the duplicate is taken and rep stays the
// nextsize-chain representative.
func (a *Arena) takeFromLargeBin(bin *binSentinel, binIdx int, rep *chunk) *chunk {
	victim := rep
	if dup := rep.fd(); dup != bin.asChunk() && dup.size() == rep.size() {
		victim = dup
	} else {
		unlinkNextSize(rep)
	}
	unlinkDL(victim)
	if bin.empty() {
		a.bmap.clear(1 + smallBinCount + binIdx)
	}
	return victim
}

// serveSplitOrWhole implements the split-or-serve-whole rule of the
// large-bin search (§4.2.2 step 4): if the remainder would be at least
// MIN_CHUNK_SIZE, carve it off and park it in the unsorted bin;
// otherwise serve the whole chunk. topServe applies the same size rule
// to the top chunk itself, keeping the remainder as the new top.
func (a *Arena) serveSplitOrWhole(victim *chunk, nb uintptr) *chunk {
	vsz := victim.size()
	if vsz-nb >= minChunkSize {
		remainder := chunkAt(victim.addr() + nb)
		remSize := vsz - nb
		prevInUse := victim.prevInUse()
		victim.setSizeAndFlags(nb, prevInUse, false)
		remainder.setSizeAndFlags(remSize, true, false)
		a.markFree(remainder)
		a.insertUnsorted(remainder)
		return victim
	}
	a.markInUse(victim)
	return victim
}

// topServe implements §4.2.2 step 5.
func (a *Arena) topServe(nb uintptr) *chunk {
	if a.top == nil || a.topSize < nb {
		return nil
	}
	if a.topSize >= nb+minChunkSize {
		c := a.top
		remSize := a.topSize - nb
		prevInUse := c.prevInUse()
		c.setSizeAndFlags(nb, prevInUse, false)
		newTop := chunkAt(c.addr() + nb)
		newTop.setSizeAndFlags(remSize, true, false)
		a.top = newTop
		a.topSize = remSize
		return c
	}
	c := a.top
	a.top = nil
	a.topSize = 0
	return c
}

// consolidateFastBins implements §4.2.2 step 6: walk every fast bin,
// fully coalescing each chunk with its address neighbors, and park the
// results in the unsorted bin. Fast-bin chunks are logically in-use to
// their neighbors (their successor's PREV_INUSE was never cleared), so
// this is the only place that work happens for them.
func (a *Arena) consolidateFastBins() {
	for i := range a.fastBins {
		c := a.fastBins[i]
		a.fastBins[i] = nil
		for c != nil {
			next := c.fd()
			a.coalesceAndPark(c)
			c = next
		}
	}
}

// coalesceAndPark merges c with any free address neighbors and inserts
// the result into the unsorted bin, unless c merges into the top chunk.
// Shared by fast-bin consolidation and regular free (§4.2.3).
func (a *Arena) coalesceAndPark(c *chunk) {
	start := c
	size := c.size()

	if !c.prevInUse() {
		prev := c.prevChunk()
		a.unbin(prev)
		size += prev.size()
		start = prev
	}

	succ := chunkAt(start.addr() + size)
	if succ == a.top {
		prevInUse := start.prevInUse()
		a.top.setSizeAndFlags(0, false, false) // stale top object abandoned
		newTop := start
		newTop.setSizeAndFlags(size+a.topSize, prevInUse, false)
		a.top = newTop
		a.topSize = size + a.topSize
		return
	}

	succSucc := succ.next()
	if !succSucc.prevInUse() {
		a.unbin(succ)
		size += succ.size()
	}

	prevInUse := start.prevInUse()
	start.setSizeAndFlags(size, prevInUse, false)
	a.markFree(start)
	a.insertUnsorted(start)
}

// mmapServe implements §4.2.2 step 7.
func (a *Arena) mmapServe(nb uintptr) *chunk {
	if a.nMmaps >= a.mmapMax {
		return nil
	}
	mapLen := roundUp(nb+chunkHeaderSize, a.pageSize)
	base, err := a.ps.MapPages(int(mapLen))
	if err != nil {
		return nil
	}
	c := chunkAt(base)
	c.setSizeAndFlags(mapLen, true, true)
	a.mmapRegions[base] = mapLen
	a.nMmaps++
	a.bytesMapped += mapLen
	if a.bytesMapped > a.bytesMappedHWM {
		a.bytesMappedHWM = a.bytesMapped
	}
	if a.nMmaps > a.mmapHWM {
		a.mmapHWM = a.nMmaps
	}
	return c
}

// growHeapAndServe implements §4.2.2 step 8.
func (a *Arena) growHeapAndServe(nb uintptr) *chunk {
	growBy := roundUp(nb+a.topPad, a.pageSize)
	base, err := a.ps.ExtendHeap(int(growBy))
	if err != nil {
		return nil
	}

	switch {
	case a.heapBrk == 0:
		// The very first growth ever: establish the segment origin.
		a.heapBase = base
		a.top = chunkAt(base)
		a.top.setSizeAndFlags(growBy, true, false)
		a.topSize = growBy
	case base == a.heapBrk && a.top != nil:
		// Contiguous, and the old top is still live: merge.
		a.topSize += growBy
		a.top.setSize(a.topSize)
	case base == a.heapBrk:
		// Contiguous, but the previous top was fully carved away by
		// allocation (a.top == nil): the bytes just below base are all
		// in-use, so the new top simply starts where they end.
		a.top = chunkAt(base)
		a.top.setSizeAndFlags(growBy, true, false)
		a.topSize = growBy
	default:
		// Discontinuity: if the old top is still live, park it as a
		// permanent, never-freed sentinel chunk; then start a fresh
		// segment at base, per §4.2.2 step 8.
		if a.top != nil {
			a.top.setSizeAndFlags(a.topSize, a.top.prevInUse(), false)
		}
		a.heapBase = base
		a.top = chunkAt(base)
		a.top.setSizeAndFlags(growBy, true, false)
		a.topSize = growBy
	}
	a.heapBrk = base + growBy
	a.bytesHeap += growBy
	if a.bytesHeap > a.bytesHeapHWM {
		a.bytesHeapHWM = a.bytesHeap
	}
	return a.topServe(nb)
}

// Free implements §4.2.3.
func (a *Arena) Free(p unsafe.Pointer) {
	if a.Trace {
		trace("Free(%p)", p)
	}
	if p == nil {
		return
	}
	c := chunkFromUserData(uintptr(p))

	if c.isMmapped() {
		length := c.size()
		base := c.addr()
		delete(a.mmapRegions, base)
		_ = a.ps.UnmapPages(base, int(length))
		a.nMmaps--
		a.bytesMapped -= length
		return
	}

	sz := c.size()
	if fastBinValid(sz, a.maxFast) {
		if idx := fastBinIndex(sz); idx >= 0 && idx < fastBinCount {
			c.setFd(a.fastBins[idx])
			a.fastBins[idx] = c
			return
		}
	}

	a.regularFree(c)
}

// regularFree implements §4.2.3's five numbered steps for chunks too
// large for a fast bin.
func (a *Arena) regularFree(c *chunk) {
	if c == a.top {
		a.recordCorruption(corruptf("free of the top chunk"))
		return
	}
	succ := c.next()
	if !succ.prevInUse() {
		a.recordCorruption(corruptf("successor PREV_INUSE clear at free: double free or corruption"))
		return
	}

	a.coalesceAndPark(c)
	a.maybeTrim()
}

// maybeTrim implements §4.2.3 step 5: shrink the heap via a negative
// ExtendHeap call once the top chunk exceeds trimThreshold past the
// reserve implied by topPad.
func (a *Arena) maybeTrim() {
	a.trim()
}

// AllocateZeroed implements the calloc-style operation: n*size bytes,
// guaranteed zero-filled, with overflow of the multiplication reported
// as a nil return rather than a truncated allocation.
func (a *Arena) AllocateZeroed(n, size int) unsafe.Pointer {
	if n == 0 || size == 0 {
		return nil
	}
	if n < 0 || size < 0 {
		return nil
	}
	total := n * size
	if total/n != size {
		return nil // overflow
	}
	p := a.Allocate(total)
	if p == nil {
		return nil
	}
	b := byteSliceAt(uintptr(p), total)
	for len(b) > 0 {
		n := copy(b, zeroFill)
		b = b[n:]
	}
	return p
}

// zeroFill is a scratch buffer of zero bytes used to clear newly served
// memory in bulk via copy, the idiom the teacher's own Calloc favors
// over a byte-at-a-time loop.
var zeroFill = make([]byte, 4096)

// Reallocate implements §4.2.4.
func (a *Arena) Reallocate(p unsafe.Pointer, newSize int) unsafe.Pointer {
	if a.Trace {
		trace("Reallocate(%p, %d)", p, newSize)
	}
	if p == nil {
		return a.Allocate(newSize)
	}
	if newSize == 0 {
		a.Free(p)
		return nil
	}
	nb, ok := normalizeSize(newSize)
	if !ok {
		return nil
	}

	c := chunkFromUserData(uintptr(p))
	if c.isMmapped() {
		return a.reallocateMmapped(c, nb)
	}

	oldSize := c.size()
	switch {
	case oldSize >= nb:
		a.shrinkInPlace(c, nb)
		return p
	default:
		if np := a.extendInPlace(c, nb); np != nil {
			return unsafe.Pointer(np.userData())
		}
	}

	newC := a.allocChunk(nb)
	if newC == nil {
		return nil
	}
	copyLen := oldSize - chunkHeaderSize
	if want := nb - chunkHeaderSize; want < copyLen {
		copyLen = want
	}
	copy(byteSliceAt(newC.userData(), int(copyLen)), byteSliceAt(c.userData(), int(copyLen)))
	a.Free(p)
	return unsafe.Pointer(newC.userData())
}

// shrinkInPlace implements §4.2.4's shrink case: split off the
// remainder and free it through the normal coalesce-and-park path when
// it is large enough to stand on its own; otherwise the chunk is left
// exactly as it is.
func (a *Arena) shrinkInPlace(c *chunk, nb uintptr) {
	oldSize := c.size()
	if oldSize-nb < minChunkSize {
		return
	}
	prevInUse := c.prevInUse()
	c.setSizeAndFlags(nb, prevInUse, false)
	remainder := chunkAt(c.addr() + nb)
	remainder.setSizeAndFlags(oldSize-nb, true, false)
	a.coalesceAndPark(remainder)
	a.maybeTrim()
}

// extendInPlace implements §4.2.4's in-place extend case: absorb a free
// successor (or the top chunk itself) when doing so covers nb, without
// moving the user's data. Returns nil if no in-place extension is
// possible.
func (a *Arena) extendInPlace(c *chunk, nb uintptr) *chunk {
	oldSize := c.size()
	succ := c.next()

	if succ == a.top {
		combined := oldSize + a.topSize
		if combined < nb {
			return nil
		}
		prevInUse := c.prevInUse()
		if combined-nb >= minChunkSize {
			c.setSizeAndFlags(nb, prevInUse, false)
			newTop := chunkAt(c.addr() + nb)
			newTop.setSizeAndFlags(combined-nb, true, false)
			a.top = newTop
			a.topSize = combined - nb
			return c
		}
		// Too little would be left to still serve as a top chunk:
		// consume it entirely, same as topServe's whole-chunk branch.
		c.setSizeAndFlags(combined, prevInUse, false)
		a.top = nil
		a.topSize = 0
		return c
	}

	if !succ.next().prevInUse() {
		combined := oldSize + succ.size()
		if combined < nb {
			return nil
		}
		a.unbin(succ)
		return a.finishExtend(c, combined, nb)
	}
	return nil
}

// finishExtend carves c (already known to span combined bytes starting
// at its own address) down to nb bytes, parking any leftover remainder
// exactly as serveSplitOrWhole does for a freshly found free chunk.
func (a *Arena) finishExtend(c *chunk, combined, nb uintptr) *chunk {
	prevInUse := c.prevInUse()
	if combined-nb >= minChunkSize {
		c.setSizeAndFlags(nb, prevInUse, false)
		remainder := chunkAt(c.addr() + nb)
		remainder.setSizeAndFlags(combined-nb, true, false)
		a.markFree(remainder)
		a.insertUnsorted(remainder)
		return c
	}
	c.setSizeAndFlags(combined, prevInUse, false)
	a.markInUse(c)
	return c
}

// reallocateMmapped handles Reallocate for a standalone mmap region: Go
// exposes no mremap, so this always falls back to allocate-copy-free,
// shrinking or growing the mapping length would otherwise require.
func (a *Arena) reallocateMmapped(c *chunk, nb uintptr) unsafe.Pointer {
	oldUsable := c.size() - chunkHeaderSize
	newC := a.allocChunk(nb)
	if newC == nil {
		return nil
	}
	copyLen := oldUsable
	if want := nb - chunkHeaderSize; want < copyLen {
		copyLen = want
	}
	copy(byteSliceAt(newC.userData(), int(copyLen)), byteSliceAt(c.userData(), int(copyLen)))
	a.Free(unsafe.Pointer(c.userData()))
	return unsafe.Pointer(newC.userData())
}

// AllocateAligned implements §4.2.5's memalign: over-allocate enough to
// guarantee a properly aligned region exists inside the served block,
// align forward, then carve and free the leading pad (and any trailing
// pad large enough to stand alone) back into the arena.
func (a *Arena) AllocateAligned(alignment, size int) unsafe.Pointer {
	if size <= 0 || alignment <= 0 || !isPowerOfTwo(uintptr(alignment)) {
		return nil
	}
	align := uintptr(alignment)
	if align <= mallocAlignment {
		return a.Allocate(size)
	}

	nb, ok := normalizeSize(size)
	if !ok {
		return nil
	}
	overSize := nb + align + minChunkSize
	c := a.allocChunk(overSize)
	if c == nil {
		return nil
	}

	userAddr := c.userData()
	alignedUser := roundUp(userAddr, align)
	if alignedUser == userAddr {
		a.shrinkInPlace(c, nb)
		return unsafe.Pointer(userAddr)
	}

	alignedChunkAddr := alignedUser - chunkHeaderSize
	leadPad := alignedChunkAddr - c.addr()

	// The lead pad must itself be a legal freeable chunk; if rounding
	// left a sliver smaller than minChunkSize, push the split point
	// forward one alignment step at a time until it is.
	for leadPad < minChunkSize {
		alignedUser += align
		alignedChunkAddr = alignedUser - chunkHeaderSize
		leadPad = alignedChunkAddr - c.addr()
	}

	total := c.size()
	prevInUse := c.prevInUse()
	lead := c
	lead.setSizeAndFlags(leadPad, prevInUse, false)

	aligned := chunkAt(alignedChunkAddr)
	aligned.setSizeAndFlags(total-leadPad, true, false)

	// Route the lead pad through the regular-free path (§4.2.5: "inserted
	// via regular free") rather than parking it directly, so a free
	// predecessor of the over-allocated victim gets coalesced instead of
	// leaving two address-adjacent free chunks.
	a.coalesceAndPark(lead)

	a.shrinkInPlace(aligned, nb)
	return unsafe.Pointer(aligned.userData())
}

// AllocatePageAligned implements the valloc/pvalloc-style convenience
// operation: a block aligned to the PageSource's page size.
func (a *Arena) AllocatePageAligned(size int) unsafe.Pointer {
	return a.AllocateAligned(int(a.pageSize), size)
}

// UsableSize implements §6.4: the number of bytes the caller may safely
// use at p, which can exceed the originally requested size because of
// rounding.
func (a *Arena) UsableSize(p unsafe.Pointer) int {
	if p == nil {
		return 0
	}
	c := chunkFromUserData(uintptr(p))
	return int(c.size() - chunkHeaderSize)
}
