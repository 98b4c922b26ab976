package zone_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/zone"
)

func TestAllocateNeverCrossesSegment(t *testing.T) {
	z := zone.New()

	// Force several segments by allocating more than one minimum
	// segment's worth of memory in small pieces.
	const chunk = 4096
	var ptrs [][]byte
	for i := 0; i < 64; i++ {
		b := z.Allocate(chunk)
		require.Len(t, b, chunk)
		ptrs = append(ptrs, b)
	}

	// Every allocation must be writable without aliasing another.
	for i, b := range ptrs {
		for j := range b {
			b[j] = byte(i)
		}
	}
	for i, b := range ptrs {
		for _, v := range b {
			require.Equal(t, byte(i), v)
		}
	}
}

func TestAllocateAlignment(t *testing.T) {
	z := zone.New()
	a := z.Allocate(1)
	require.Equal(t, int(unsafe.Sizeof(uintptr(0))), cap(a), "a 1-byte allocation is padded to pointer alignment")
	b := z.Allocate(8)
	require.Len(t, b, 8)
}

func TestLargeAllocationGetsItsOwnSegment(t *testing.T) {
	z := zone.New()
	before := z.SegmentCount()
	big := z.Allocate(2 * 1024 * 1024)
	require.Len(t, big, 2*1024*1024)
	require.Greater(t, z.SegmentCount(), before)
}

func TestDropInvalidatesZone(t *testing.T) {
	z := zone.New()
	z.Allocate(16)
	require.False(t, z.Dropped())
	z.Drop()
	require.True(t, z.Dropped())
	require.Panics(t, func() { z.Allocate(1) })
}

func TestArenaNewIsStable(t *testing.T) {
	type node struct {
		A, B  int64
		Child *node
	}
	a := zone.NewArena[node]()
	p := a.New()
	require.Equal(t, int64(0), p.A)
	p.A, p.B = 1, 2

	q := a.New()
	require.Equal(t, int64(0), q.A, "allocations must not alias")
	require.Equal(t, int64(1), p.A)
	q.Child = p
	require.Same(t, p, q.Child)
}

func TestArenaGrowsAcrossChunks(t *testing.T) {
	type node struct{ V int }
	a := zone.NewArena[node]()
	ptrs := make([]*node, 0, 1000)
	for i := 0; i < 1000; i++ {
		p := a.New()
		p.V = i
		ptrs = append(ptrs, p)
	}
	require.Equal(t, 1000, a.Len())
	for i, p := range ptrs {
		require.Equal(t, i, p.V, "pointer must stay valid across chunk growth")
	}
}
