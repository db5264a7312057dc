package adapter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomalloc/dlmalloc"
	"github.com/gomalloc/dlmalloc/adapter"
)

func newAdapter(t *testing.T) *adapter.Adapter {
	t.Helper()
	arena := dlmalloc.NewArena(dlmalloc.NewSystemPageSource(4 << 20))
	return adapter.New(arena)
}

func TestAdapterAllocateFree(t *testing.T) {
	a := newAdapter(t)
	p, err := a.Allocate(64)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NoError(t, a.Free(p))
}

func TestAdapterResizeNilIsError(t *testing.T) {
	a := newAdapter(t)
	_, err := a.Resize(nil, 64)
	require.ErrorIs(t, err, adapter.ErrNilPointer)
}

func TestAdapterResizeGrows(t *testing.T) {
	a := newAdapter(t)
	p, err := a.Allocate(32)
	require.NoError(t, err)

	p2, err := a.Resize(p, 512)
	require.NoError(t, err)
	require.NotNil(t, p2)
	require.NoError(t, a.Free(p2))
}

func TestAdapterRealignHonorsAlignment(t *testing.T) {
	a := newAdapter(t)
	p, err := a.Realign(128, 40)
	require.NoError(t, err)
	require.Zero(t, uintptr(p)%128)
	require.NoError(t, a.Free(p))
}

func TestAdapterSatisfiesHostAllocator(t *testing.T) {
	var _ adapter.HostAllocator = newAdapter(t)
}
