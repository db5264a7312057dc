package malloc_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/gomalloc/dlmalloc"
	"github.com/gomalloc/dlmalloc/malloc"
)

func TestMallocFreeRoundTrip(t *testing.T) {
	p := malloc.Malloc(128)
	require.NotNil(t, p)
	require.GreaterOrEqual(t, malloc.UsableSize(p), 128)

	b := unsafe.Slice((*byte)(p), 128)
	for i := range b {
		b[i] = byte(i)
	}
	malloc.Free(p)
}

func TestCallocZeroesMemory(t *testing.T) {
	p := malloc.Calloc(16, 8)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), 16*8)
	for _, v := range b {
		require.Zero(t, v)
	}
	malloc.Free(p)
}

func TestReallocGrowsPreservingPrefix(t *testing.T) {
	p := malloc.Malloc(32)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), 32)
	for i := range b {
		b[i] = 0xAB
	}

	p2 := malloc.Realloc(p, 256)
	require.NotNil(t, p2)
	b2 := unsafe.Slice((*byte)(p2), 32)
	for i := range b2 {
		require.Equal(t, byte(0xAB), b2[i])
	}
	malloc.Free(p2)
}

func TestMemalignHonorsAlignment(t *testing.T) {
	p := malloc.Memalign(256, 64)
	require.NotNil(t, p)
	require.Zero(t, uintptr(p)%256)
	malloc.Free(p)
}

func TestTuneRejectsOutOfRangeMaxFast(t *testing.T) {
	require.Equal(t, 0, malloc.Tune(dlmalloc.TuneMaxFast, -1))
}
