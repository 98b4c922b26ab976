package source_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/source"
)

func TestLoadBytesAndResolve(t *testing.T) {
	table := source.NewTable()
	text := "class Foo {\n  bar() => 1;\n}\n"
	loc := table.LoadBytes("foo.lang", []byte(text))

	require.True(t, loc.IsValid())
	require.Equal(t, "foo.lang", table.GetFilePath(loc))

	lineNo, line := table.GetLine(loc)
	require.Equal(t, 1, lineNo)
	require.Equal(t, "class Foo {", line)
}

func TestLocationAtSecondLine(t *testing.T) {
	table := source.NewTable()
	text := "one\ntwo\nthree\n"
	base := table.LoadBytes("f", []byte(text))

	pos := strings.Index(text, "two")
	loc := table.LocationAt(base, pos)

	lineNo, line := table.GetLine(loc)
	require.Equal(t, 2, lineNo)
	require.Equal(t, "two", line)
	require.Equal(t, 1, table.Column(loc))
}

func TestMultiFileChunkAddressing(t *testing.T) {
	table := source.NewTable()
	big := strings.Repeat("x", source.ChunkSize*3+17)
	locA := table.LoadBytes("a", []byte(big))
	locB := table.LoadBytes("b", []byte("short"))

	require.Equal(t, "a", table.GetFilePath(locA))
	require.Equal(t, "b", table.GetFilePath(locB))

	mid := table.LocationAt(locA, source.ChunkSize*2+5)
	require.Equal(t, "a", table.GetFilePath(mid))
	require.Equal(t, byte('x'), table.GetSource(mid)[0])
}

func TestInvalidSentinel(t *testing.T) {
	require.False(t, source.Invalid.IsValid())
}
