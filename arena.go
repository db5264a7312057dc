package dlmalloc

import "sync"

// Default tunables, chosen to match the values real dlmalloc/glibc ship
// with, scaled to this engine's bin layout. MaxFast tops out at 80, the
// upper bound Tune accepts; fastBinIndex(80) is 8, inside the 10-slot
// fast-bin array.
const (
	defaultMaxFast       = 80
	defaultTrimThreshold = 128 * 1024
	defaultTopPad        = 0
	defaultMmapThreshold = 128 * 1024
	defaultMmapMax       = 65536
)

// Tune parameter ids, §6.1.
const (
	TuneMaxFast = iota
	TuneTrimThreshold
	TuneTopPad
	TuneMmapThreshold
	TuneMmapMax
)

// Stats is the read-only snapshot §6.3 describes.
type Stats struct {
	BytesViaHeapExtend    uintptr
	BytesViaHeapExtendHWM uintptr
	BytesViaMapping       uintptr
	BytesViaMappingHWM    uintptr
	LiveMappings          int
	MaxMappings           int
	MaxFast               uintptr
	TrimThreshold         uintptr
	TopPad                uintptr
	MmapThreshold         uintptr
	MmapMax               int
}

// Arena owns the top chunk, every bin array and the runtime-tunable
// thresholds described in §3.3. Its zero value is not ready for use;
// construct one with NewArena. An Arena is single threaded by contract
// (§5): every method mutates bins, the top chunk and counters without
// internal synchronization. Concurrent embedders must either serialize
// calls themselves or go through the malloc subpackage's opt-in lock.
type Arena struct {
	ps       PageSource
	pageSize uintptr

	heapBase uintptr // 0 until the first successful ExtendHeap
	heapBrk  uintptr // current break; top ends here
	top      *chunk  // nil until the arena has ever grown
	topSize  uintptr

	fastBins  [fastBinCount]*chunk
	smallBins [smallBinCount]binSentinel
	largeBins [largeBinCount]binSentinel
	unsorted  binSentinel
	bmap      binmap

	maxFast       uintptr
	trimThreshold uintptr
	topPad        uintptr
	mmapThreshold uintptr
	mmapMax       int

	nMmaps         int
	mmapHWM        int
	bytesHeap      uintptr
	bytesHeapHWM   uintptr
	bytesMapped    uintptr
	bytesMappedHWM uintptr

	// mmapRegions tracks standalone IS_MMAPPED chunks by their mapped
	// base address so Free can recover the exact length passed to
	// UnmapPages without trusting arithmetic on a possibly-corrupt
	// header alone.
	mmapRegions map[uintptr]uintptr

	// AbortOnCorruption, when true, makes the process terminate (via
	// panic, which in this library never recovers internally) the
	// instant a Corruption error is detected, per §7. When false the
	// offending operation becomes a silent no-op and LastError records
	// the diagnostic.
	AbortOnCorruption bool
	lastError         error

	// Trace, when true, writes a line to os.Stderr on entry to Allocate,
	// Free and Reallocate, mirroring the teacher's build-tag-gated debug
	// hook. No other operation traces, and nothing is written on exit.
	Trace bool
}

// NewArena constructs an Arena backed by ps, with every tunable at its
// default value.
func NewArena(ps PageSource) *Arena {
	a := &Arena{
		ps:            ps,
		pageSize:      uintptr(ps.PageSize()),
		maxFast:       defaultMaxFast,
		trimThreshold: defaultTrimThreshold,
		topPad:        defaultTopPad,
		mmapThreshold: defaultMmapThreshold,
		mmapMax:       defaultMmapMax,
		mmapRegions:   make(map[uintptr]uintptr),
	}
	a.unsorted.init()
	for i := range a.smallBins {
		a.smallBins[i].init()
	}
	for i := range a.largeBins {
		a.largeBins[i].init()
	}
	return a
}

// PageSize returns the OS page size this arena's PageSource reports.
func (a *Arena) PageSize() int { return int(a.pageSize) }

// LastError returns the most recently detected Corruption error, or nil.
// It is cleared on no other condition; callers that care about freshness
// should check it immediately after the operation of interest.
func (a *Arena) LastError() error { return a.lastError }

// Stats returns a snapshot of §6.3's read-only statistics surface.
func (a *Arena) Stats() Stats {
	return Stats{
		BytesViaHeapExtend:    a.bytesHeap,
		BytesViaHeapExtendHWM: a.bytesHeapHWM,
		BytesViaMapping:       a.bytesMapped,
		BytesViaMappingHWM:    a.bytesMappedHWM,
		LiveMappings:          a.nMmaps,
		MaxMappings:           a.mmapHWM,
		MaxFast:               a.maxFast,
		TrimThreshold:         a.trimThreshold,
		TopPad:                a.topPad,
		MmapThreshold:         a.mmapThreshold,
		MmapMax:               a.mmapMax,
	}
}

// Tune implements the §6.1 tune operation: 1 on accept, 0 on reject.
func (a *Arena) Tune(param int, value int) int {
	switch param {
	case TuneMaxFast:
		if value < 0 || value > 80 {
			return 0
		}
		a.maxFast = uintptr(value)
		return 1
	case TuneTrimThreshold:
		if value < 0 {
			return 0
		}
		a.trimThreshold = uintptr(value)
		return 1
	case TuneTopPad:
		if value < 0 {
			return 0
		}
		a.topPad = uintptr(value)
		return 1
	case TuneMmapThreshold:
		if value < 0 {
			return 0
		}
		a.mmapThreshold = uintptr(value)
		return 1
	case TuneMmapMax:
		if value < 0 {
			return 0
		}
		a.mmapMax = value
		return 1
	default:
		return 0
	}
}

func (a *Arena) recordCorruption(err error) {
	a.lastError = err
	if a.AbortOnCorruption {
		panic(err)
	}
}

// --- process-wide singleton, Design Notes §9 ---
//
// "Global arena state — the facade expects a process-wide singleton.
// Implement as an explicit state object obtained through a lazily
// initialized holder with a one-shot initialization guard; do not rely
// on constructor ordering." Apart from TestSingletonArenaIsStable, this
// holder is consumed only by the malloc subpackage; the rest of the
// core's tests build an explicit *Arena.

var (
	singletonOnce  sync.Once
	singletonArena *Arena
)

// SingletonArena returns the process-wide Arena, constructing it on the
// first call with the default system PageSource.
func SingletonArena() *Arena {
	singletonOnce.Do(func() {
		singletonArena = NewArena(NewSystemPageSource(0))
	})
	return singletonArena
}
