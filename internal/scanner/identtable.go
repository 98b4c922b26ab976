package scanner

import "github.com/corelang/corec/internal/containers"

// IdentifierTable canonicalizes identifier byte sequences to dense,
// non-negative ids by walking a character trie (spec §3 "Identifier
// id"). It is seeded once per compile with the language's keyword
// table, so a keyword and a user identifier of the same spelling
// share one id (spec §4.4 "Keywords are fixed strings driven by the
// identifier trie").
type IdentifierTable struct {
	trie     *containers.Trie[int32]
	nextID   int32
	names    []string
	keywords map[int32]Kind
}

// NewIdentifierTable creates a table pre-seeded with every keyword.
func NewIdentifierTable() *IdentifierTable {
	t := &IdentifierTable{
		trie:     containers.NewTrie[int32](),
		keywords: map[int32]Kind{},
	}
	for kw, kind := range keywordKinds {
		id := t.Intern([]byte(kw))
		t.keywords[id] = kind
	}
	return t
}

// Intern returns the canonical id for s, minting a new dense id on
// first sight.
func (t *IdentifierTable) Intern(s []byte) int32 {
	return t.trie.Intern(s, func() int32 {
		id := t.nextID
		t.nextID++
		t.names = append(t.names, string(s))
		return id
	})
}

// Name returns the spelling originally interned under id.
func (t *IdentifierTable) Name(id int32) string {
	return t.names[id]
}

// Len returns how many distinct identifiers (including keywords) have
// been interned.
func (t *IdentifierTable) Len() int { return int(t.nextID) }

// KeywordKind reports whether id names a keyword, and if so which.
func (t *IdentifierTable) KeywordKind(id int32) (Kind, bool) {
	k, ok := t.keywords[id]
	return k, ok
}
