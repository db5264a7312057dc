package dlmalloc

// trim implements the opportunistic give-back pass referenced by
// §4.2.3 step 5 and exposed explicitly via TrimHeap: once the top chunk
// holds more than trimThreshold bytes beyond the topPad reserve, give the
// excess back to the PageSource with a negative ExtendHeap call.
//
// Trimming only ever shrinks the live top chunk of the current segment;
// a segment that was parked as a sentinel by growHeapAndServe's
// discontinuity branch is never touched, since a.top no longer points
// into it.
func (a *Arena) trim() bool {
	if a.top == nil || a.topSize <= a.trimThreshold+a.topPad {
		return false
	}

	extra := a.topSize - a.topPad
	give := roundDown(extra, a.pageSize)
	if give < a.pageSize {
		return false
	}

	if _, err := a.ps.ExtendHeap(-int(give)); err != nil {
		return false
	}

	a.topSize -= give
	a.top.setSize(a.topSize)
	a.heapBrk -= give
	a.bytesHeap -= give
	return true
}

// TrimHeap implements the §6.2 explicit trim operation: callers that
// want to force the give-back pass outside of a free can invoke it
// directly, passing the pad (bytes of top headroom to retain) they want
// honored for this call only, without altering the Tune(TOP_PAD, ...)
// setting.
func (a *Arena) TrimHeap(pad int) bool {
	if pad < 0 {
		return false
	}
	saved := a.topPad
	a.topPad = uintptr(pad)
	ok := a.trim()
	a.topPad = saved
	return ok
}
