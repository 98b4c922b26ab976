// Package scope implements the chained name-scope map shared by the
// library loader (C7) and the resolver (C8): spec §3 "Scope: a chained
// map id → scope entry."
package scope

import (
	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/containers"
)

// EntryKind discriminates the closed set of scope-entry variants
// (spec §3 "Scope").
type EntryKind uint8

const (
	EntryLibraryReference EntryKind = iota
	EntryMember
	EntryFormalParameter
	EntryLocalDeclaration
)

// Entry is one binding in a Scope. Only the fields relevant to Kind
// are populated, mirroring ast.Node's tagged-union shape.
type Entry struct {
	Kind EntryKind

	// EntryLibraryReference
	Library *Scope

	// EntryMember: carries the declaration and, for a field, its
	// paired setter entry (spec §3 "carries member and optional
	// setter").
	Member *ast.Node
	Setter *Entry

	// EntryFormalParameter / EntryLocalDeclaration
	Index       int
	CaptureKind ast.CaptureKind
	Decl        *ast.Node
}

// Scope is a chained map from canonical identifier id to Entry. A
// lookup that misses locally recurses to Parent (spec §3, §4.6 "Scope
// population").
type Scope struct {
	Parent  *Scope
	entries *containers.IDMap[*Entry]
}

// New creates an empty scope chained to parent (nil for a root scope).
func New(parent *Scope) *Scope {
	return &Scope{Parent: parent, entries: containers.NewIDMap[*Entry]()}
}

// Declare installs entry under id in this scope only (no parent
// search), returning false if id is already bound here.
func (s *Scope) Declare(id int32, entry *Entry) bool {
	if _, ok := s.entries.Get(int(id)); ok {
		return false
	}
	s.entries.Set(int(id), entry)
	return true
}

// DeclareLocal is Declare, panicking on a name collision; used where
// the caller has already checked for a duplicate and wants a
// programming-error backstop rather than a second silent overwrite.
func (s *Scope) DeclareLocal(id int32, entry *Entry) {
	if !s.Declare(id, entry) {
		panic("scope: duplicate declaration in DeclareLocal")
	}
}

// LookupLocal returns the entry bound to id in this scope only.
func (s *Scope) LookupLocal(id int32) (*Entry, bool) {
	return s.entries.Get(int(id))
}

// EntryIDs returns every identifier id declared directly in this
// scope (not its parents), in an unspecified order; used by the
// loader to copy an imported library's exported names into another
// scope.
func (s *Scope) EntryIDs() []int32 {
	ids := s.entries.Keys()
	out := make([]int32, len(ids))
	for i, id := range ids {
		out[i] = int32(id)
	}
	return out
}

// Lookup resolves id, walking outward through Parent scopes (spec §4.7
// "Resolver: given a node and a scope, returns the bound entity").
func (s *Scope) Lookup(id int32) (*Entry, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if e, ok := cur.entries.Get(int(id)); ok {
			return e, true
		}
	}
	return nil, false
}
