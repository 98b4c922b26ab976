// Package source implements opaque, 32-bit source locations (spec
// §4.3) and the Table that resolves them back to a file path, line,
// column and raw text.
//
// A Location packs a chunk index and an offset within that 4 KiB
// chunk. Chunks exist purely so that locations stay a single machine
// word; the Table still keeps each loaded file's bytes contiguous so
// scanning reads a plain []byte.
package source

import (
	"bytes"
	"fmt"
	"os"
)

// ChunkSize is the addressing granularity for Location, per spec §3.
const ChunkSize = 4096

// Location is an opaque 32-bit value valid only for the Table that
// produced it (spec §3 "Lifetime equals that of the enclosing Source
// table").
type Location uint32

// Invalid is the reserved sentinel Location.
const Invalid Location = 0xFFFFFFFF

func newLocation(chunkIndex, chunkOffset int) Location {
	if chunkOffset < 0 || chunkOffset >= ChunkSize {
		panic("source: chunk offset out of range")
	}
	return Location(uint32(chunkIndex)<<12 | uint32(chunkOffset))
}

func (l Location) chunkIndex() int  { return int(uint32(l) >> 12) }
func (l Location) chunkOffset() int { return int(uint32(l) & (ChunkSize - 1)) }

// IsValid reports whether l differs from the reserved sentinel.
func (l Location) IsValid() bool { return l != Invalid }

// Add returns the location n bytes after l, which must stay within
// the same file as l.
func (l Location) Add(t *Table, n int) Location {
	fileIdx, bytePos := t.decode(l)
	return t.encode(fileIdx, bytePos+n)
}

type fileRecord struct {
	path       string
	data       []byte
	chunkStart int // index of this file's first chunk in Table.chunks
}

type chunkRecord struct {
	fileIndex int
}

// Table owns every file loaded for one compile and assigns Locations
// into them.
type Table struct {
	files  []fileRecord
	chunks []chunkRecord
}

// NewTable creates an empty location table.
func NewTable() *Table {
	return &Table{}
}

// LoadBytes registers in-memory content under a synthetic path,
// returning the Location of its first byte. Used by tests and by
// callers that already have source text in hand.
func (t *Table) LoadBytes(path string, data []byte) Location {
	fileIdx := len(t.files)
	chunkStart := len(t.chunks)
	t.files = append(t.files, fileRecord{path: path, data: data, chunkStart: chunkStart})

	nChunks := (len(data) + ChunkSize - 1) / ChunkSize
	if nChunks == 0 {
		nChunks = 1
	}
	for i := 0; i < nChunks; i++ {
		t.chunks = append(t.chunks, chunkRecord{fileIndex: fileIdx})
	}
	return newLocation(chunkStart, 0)
}

// LoadFile reads path from disk and registers its content.
func (t *Table) LoadFile(path string) (Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Invalid, fmt.Errorf("source: %w", err)
	}
	return t.LoadBytes(path, data), nil
}

// Bytes returns the full content of the file that loc belongs to.
func (t *Table) Bytes(loc Location) []byte {
	fileIdx, _ := t.decode(loc)
	return t.files[fileIdx].data
}

func (t *Table) encode(fileIdx, bytePos int) Location {
	f := &t.files[fileIdx]
	localChunk := bytePos / ChunkSize
	offset := bytePos % ChunkSize
	return newLocation(f.chunkStart+localChunk, offset)
}

func (t *Table) decode(loc Location) (fileIndex, bytePos int) {
	chunkIdx := loc.chunkIndex()
	fileIdx := t.chunks[chunkIdx].fileIndex
	localChunk := chunkIdx - t.files[fileIdx].chunkStart
	return fileIdx, localChunk*ChunkSize + loc.chunkOffset()
}

// LocationAt returns the Location for byte offset pos within the file
// that base (any location previously returned for that file) belongs
// to.
func (t *Table) LocationAt(base Location, pos int) Location {
	fileIdx, _ := t.decode(base)
	return t.encode(fileIdx, pos)
}

// GetFilePath returns the path of the file loc resolves into.
func (t *Table) GetFilePath(loc Location) string {
	fileIdx, _ := t.decode(loc)
	return t.files[fileIdx].path
}

// GetSource returns the raw byte at loc and the remaining bytes of
// its file starting there.
func (t *Table) GetSource(loc Location) []byte {
	fileIdx, pos := t.decode(loc)
	return t.files[fileIdx].data[pos:]
}

// GetLine returns the 1-based line number of loc and the raw text of
// that line, exclusive of the trailing newline.
func (t *Table) GetLine(loc Location) (lineNo int, text string) {
	fileIdx, pos := t.decode(loc)
	data := t.files[fileIdx].data
	if pos > len(data) {
		pos = len(data)
	}

	lineStart := bytes.LastIndexByte(data[:pos], '\n') + 1
	lineEndRel := bytes.IndexByte(data[pos:], '\n')
	lineEnd := len(data)
	if lineEndRel >= 0 {
		lineEnd = pos + lineEndRel
	}

	lineNo = 1 + bytes.Count(data[:lineStart], []byte{'\n'})
	return lineNo, string(data[lineStart:lineEnd])
}

// Column returns the 1-based column (rune count since line start + 1)
// for loc.
func (t *Table) Column(loc Location) int {
	fileIdx, pos := t.decode(loc)
	data := t.files[fileIdx].data
	lineStart := bytes.LastIndexByte(data[:pos], '\n') + 1
	return len([]rune(string(data[lineStart:pos]))) + 1
}

// Excerpt renders a one-line "<path>:<line>:<col>: <text>" style
// diagnostic anchor used by every error kind in §7.
func (t *Table) Excerpt(loc Location) string {
	line, text := t.GetLine(loc)
	return fmt.Sprintf("%s:%d:%d: %s", t.GetFilePath(loc), line, t.Column(loc), text)
}
