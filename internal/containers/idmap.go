package containers

// idMapSentinel marks an empty slot; callers never use negative keys
// (identifier ids, class ids, method ids are all non-negative, spec
// §3 "Global invariants").
const idMapSentinel = -1

type idEntry[V any] struct {
	key   int
	value V
	used  bool
}

// IDMap is an open-addressed hash table keyed by a non-negative int,
// using quadratic probing and growing at load factor 0.5 (spec §4.2).
type IDMap[V any] struct {
	slots []idEntry[V]
	count int
}

// NewIDMap creates an empty IDMap.
func NewIDMap[V any]() *IDMap[V] {
	m := &IDMap[V]{}
	m.slots = make([]idEntry[V], 8)
	return m
}

// Len returns the number of keys currently stored.
func (m *IDMap[V]) Len() int { return m.count }

func (m *IDMap[V]) hash(key int) int { return key }

// Get returns the value stored for key and whether it was present.
func (m *IDMap[V]) Get(key int) (V, bool) {
	idx, found := m.probe(key)
	if !found {
		var zero V
		return zero, false
	}
	return m.slots[idx].value, true
}

// Set stores value under key, overwriting any prior value.
func (m *IDMap[V]) Set(key int, value V) {
	if key == idMapSentinel {
		panic("containers: reserved sentinel key")
	}
	if float64(m.count+1) >= 0.5*float64(len(m.slots)) {
		m.grow()
	}
	idx, found := m.probe(key)
	if !found {
		m.count++
	}
	m.slots[idx] = idEntry[V]{key: key, value: value, used: true}
}

// GetOrInsert returns the existing value for key, or inserts and
// returns init() if absent. It mirrors the interning pattern used
// throughout the compiler (identifiers, constants, selectors).
func (m *IDMap[V]) GetOrInsert(key int, init func() V) V {
	if v, ok := m.Get(key); ok {
		return v
	}
	v := init()
	m.Set(key, v)
	return v
}

// probe returns the slot index for key and whether it is occupied by
// key already, using quadratic probing i -> i + step*(step+1)/2.
func (m *IDMap[V]) probe(key int) (int, bool) {
	mask := len(m.slots) - 1
	h := m.hash(key) & mask
	if h < 0 {
		h += len(m.slots)
	}
	for step := 0; step < len(m.slots); step++ {
		idx := (h + step*(step+1)/2) & mask
		e := &m.slots[idx]
		if !e.used {
			return idx, false
		}
		if e.key == key {
			return idx, true
		}
	}
	panic("containers: idmap probe exhausted table")
}

func (m *IDMap[V]) grow() {
	old := m.slots
	m.slots = make([]idEntry[V], len(old)*2)
	m.count = 0
	for _, e := range old {
		if e.used {
			m.Set(e.key, e.value)
		}
	}
}

// Keys returns every key currently stored, in an unspecified order.
func (m *IDMap[V]) Keys() []int {
	keys := make([]int, 0, m.count)
	for _, e := range m.slots {
		if e.used {
			keys = append(keys, e.key)
		}
	}
	return keys
}
