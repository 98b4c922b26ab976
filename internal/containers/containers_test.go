package containers_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/containers"
)

func TestListPushAndAt(t *testing.T) {
	l := containers.NewList[int]()
	for i := 0; i < 100; i++ {
		idx := l.Push(i * 2)
		require.Equal(t, i, idx)
	}
	require.Equal(t, 100, l.Len())
	for i := 0; i < 100; i++ {
		require.Equal(t, i*2, l.At(i))
	}
	s := l.ToSlice()
	require.Len(t, s, 100)
	require.Equal(t, 198, s[99])
}

func TestListSet(t *testing.T) {
	l := containers.NewList[string]()
	l.Push("a")
	l.Push("b")
	l.Set(1, "c")
	require.Equal(t, "c", l.At(1))
}

func TestIDMapSetGet(t *testing.T) {
	m := containers.NewIDMap[string]()
	for i := 0; i < 500; i++ {
		m.Set(i, fmt.Sprintf("v%d", i))
	}
	require.Equal(t, 500, m.Len())
	for i := 0; i < 500; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("v%d", i), v)
	}
	_, ok := m.Get(999999)
	require.False(t, ok)
}

func TestIDMapGetOrInsert(t *testing.T) {
	m := containers.NewIDMap[int]()
	calls := 0
	compute := func() int { calls++; return 42 }
	require.Equal(t, 42, m.GetOrInsert(7, compute))
	require.Equal(t, 42, m.GetOrInsert(7, compute))
	require.Equal(t, 1, calls)
}

func TestStringMapSetGet(t *testing.T) {
	m := containers.NewStringMap[int]()
	names := []string{"foo", "bar", "baz", "quux", "a", "b", "veryLongIdentifierName"}
	for i, n := range names {
		m.Set(n, i)
	}
	for i, n := range names {
		v, ok := m.Get(n)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := m.Get("missing")
	require.False(t, ok)
}

func TestTrieInternIsStable(t *testing.T) {
	tr := containers.NewTrie[int32]()
	next := int32(0)
	gen := func() int32 {
		v := next
		next++
		return v
	}
	id1 := tr.Intern([]byte("hello"), gen)
	id2 := tr.Intern([]byte("world"), gen)
	id3 := tr.Intern([]byte("hello"), gen)

	require.Equal(t, id1, id3, "equal byte sequences must yield equal ids")
	require.NotEqual(t, id1, id2)
	require.Equal(t, 2, tr.Len())
}

func TestTrieInsertSeedsKeywords(t *testing.T) {
	tr := containers.NewTrie[bool]()
	tr.Insert([]byte("class"), true)
	v, ok := tr.Lookup([]byte("class"))
	require.True(t, ok)
	require.True(t, v)
	_, ok = tr.Lookup([]byte("classy"))
	require.False(t, ok)
}

func TestSeqTrieDedup(t *testing.T) {
	tr := containers.NewSeqTrie[int]()
	next := 0
	gen := func() int { v := next; next++; return v }

	a := tr.Intern([]int32{1, 2, 3}, gen)
	b := tr.Intern([]int32{1, 2, 4}, gen)
	c := tr.Intern([]int32{1, 2, 3}, gen)

	require.Equal(t, a, c)
	require.NotEqual(t, a, b)
}
