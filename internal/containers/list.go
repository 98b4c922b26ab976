// Package containers implements the zone-friendly data structures the
// rest of the compiler is built on: a chunked growable list, an
// open-addressed int-keyed map, a string-keyed map, and a byte/int
// trie used for canonicalization and constant-pool deduplication
// (spec §4.2).
package containers

const defaultChunkSize = 32

// chunk is one fixed-size backing array in a List's chain.
type chunk[T any] struct {
	items [defaultChunkSize]T
	len   int
	next  *chunk[T]
}

// List is a chunked linked list of fixed-size arrays. Push is O(1)
// amortized; random access is O(chunk count), not O(1), which is the
// trade-off the spec accepts in exchange for stable backing storage
// that never needs to be copied on growth (spec §4.2).
type List[T any] struct {
	first *chunk[T]
	last  *chunk[T]
	count int
}

// NewList creates an empty List.
func NewList[T any]() *List[T] {
	return &List[T]{}
}

// Len returns the number of elements pushed so far.
func (l *List[T]) Len() int { return l.count }

// Push appends v, allocating a new chunk if the last one is full.
func (l *List[T]) Push(v T) int {
	if l.last == nil || l.last.len == defaultChunkSize {
		c := &chunk[T]{}
		if l.last == nil {
			l.first = c
		} else {
			l.last.next = c
		}
		l.last = c
	}
	idx := l.count
	l.last.items[l.last.len] = v
	l.last.len++
	l.count++
	return idx
}

// At returns the element at position idx, walking the chunk chain.
func (l *List[T]) At(idx int) T {
	if idx < 0 || idx >= l.count {
		panic("containers: list index out of range")
	}
	c := l.first
	for idx >= defaultChunkSize {
		c = c.next
		idx -= defaultChunkSize
	}
	return c.items[idx]
}

// Set overwrites the element at position idx.
func (l *List[T]) Set(idx int, v T) {
	if idx < 0 || idx >= l.count {
		panic("containers: list index out of range")
	}
	c := l.first
	for idx >= defaultChunkSize {
		c = c.next
		idx -= defaultChunkSize
	}
	c.items[idx] = v
}

// ToSlice materializes the list into a single contiguous slice.
func (l *List[T]) ToSlice() []T {
	out := make([]T, 0, l.count)
	for c := l.first; c != nil; c = c.next {
		out = append(out, c.items[:c.len]...)
	}
	return out
}

// Each calls fn for every element in insertion order.
func (l *List[T]) Each(fn func(idx int, v T)) {
	idx := 0
	for c := l.first; c != nil; c = c.next {
		for i := 0; i < c.len; i++ {
			fn(idx, c.items[i])
			idx++
		}
	}
}
