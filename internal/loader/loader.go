// Package loader resolves a library's import/part/export graph and
// builds the per-library and per-class name scopes the resolver and
// constant interpreter consume (spec §4.6 "Library loader").
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/scope"
	"github.com/corelang/corec/internal/source"
)

// LoadError is raised for a missing file, malformed URI, or duplicate
// declaration (spec §7, kLoadError). A heritage clause naming an
// unknown class does not raise it: compiler.LinkSuperClasses clears
// such a super reference and the class compiles as a root class.
type LoadError struct {
	Message  string
	URI      string
	Location source.Location
	Table    *source.Table
}

func (e *LoadError) Error() string {
	if e.Table == nil || !e.Location.IsValid() {
		return fmt.Sprintf("%s: %s", e.URI, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table.Excerpt(e.Location), e.Message)
}

// Parser is the interface the loader needs from the scan/parse
// pipeline (C4/C5), accepted rather than imported directly so the
// loader does not have to depend on the parser package's internals —
// only its externally observable contract (spec §4.5's "Tokens → AST").
type Parser interface {
	ParseUnit(loc source.Location) (*ast.Node, error)
}

// ContentLoader resolves a URI to file bytes, mirroring the teacher's
// RelativeImportLoader/InMemoryImportLoader split (grounded on
// grammar_import_loaders.go) so tests can substitute an in-memory
// filesystem without touching disk.
type ContentLoader interface {
	Resolve(importPath, fromURI string) (string, error)
	ReadFile(uri string) ([]byte, error)
}

// RelativeContentLoader resolves import URIs relative to the
// importing file's directory and reads from the real filesystem.
type RelativeContentLoader struct{}

func (RelativeContentLoader) Resolve(importPath, fromURI string) (string, error) {
	if strings.HasPrefix(importPath, "dart:") || strings.HasPrefix(importPath, "package:") {
		return importPath, nil
	}
	return filepath.Join(filepath.Dir(fromURI), importPath), nil
}

func (RelativeContentLoader) ReadFile(uri string) ([]byte, error) {
	return os.ReadFile(uri)
}

// Library is one loaded compilation unit's resolved state: its own
// scope plus the class-id-free class declarations it contributes
// (class numbering happens later, in the worklist compiler, C11).
type Library struct {
	URI      string
	Unit     *ast.Node
	Scope    *scope.Scope
	Classes  []*ast.Node
	Prefixed map[int32]*scope.Scope // prefix-id -> imported library scope
}

// Loader resolves the import/part/export graph for a root library and
// all its transitive dependencies (spec §4.6).
type Loader struct {
	parser  Parser
	content ContentLoader
	table   *source.Table
	idents  identifierTable

	cache          map[string]*Library
	coreLibraryURI string
	systemLibURI   string
}

// identifierTable is the minimal surface the loader needs to turn
// member/class names into canonical ids; satisfied by
// scanner.IdentifierTable.
type identifierTable interface {
	Intern(s []byte) int32
}

// New creates a Loader. coreLibraryURI is implicitly imported into
// every library (spec §4.6 "Implicit import of the core library");
// systemLibURI is additionally imported into every `dart:`-prefixed
// library, mirroring the distinction `original_source` draws between
// user and platform libraries.
func New(parser Parser, content ContentLoader, table *source.Table, idents identifierTable, coreLibraryURI, systemLibURI string) *Loader {
	return &Loader{
		parser:         parser,
		content:        content,
		table:          table,
		idents:         idents,
		cache:          map[string]*Library{},
		coreLibraryURI: coreLibraryURI,
		systemLibURI:   systemLibURI,
	}
}

// Load resolves uri and its transitive import/part/export graph,
// returning the cached Library if uri was already loaded (spec §4.6
// step 1).
func (l *Loader) Load(uri string) (*Library, error) {
	return l.loadWithParent(uri, uri)
}

// Table returns the source.Table the loader reads files into, letting
// callers outside the package (diagnostics, codegen error paths) render
// excerpts without threading a second *source.Table through.
func (l *Loader) Table() *source.Table { return l.table }

// Libraries returns every Library resolved so far, including
// transitively-imported ones, in no particular order. The worklist
// compiler's super-link and class-scope fixups (internal/compiler's
// LinkSuperClasses/LinkClassScopes) run once over the whole graph
// before any class is enqueued, which needs every loaded library, not
// just the root one Load returns.
func (l *Loader) Libraries() []*Library {
	libs := make([]*Library, 0, len(l.cache))
	for _, lib := range l.cache {
		libs = append(libs, lib)
	}
	return libs
}

func (l *Loader) loadWithParent(importPath, parentURI string) (*Library, error) {
	uri, err := l.content.Resolve(importPath, parentURI)
	if err != nil {
		return nil, &LoadError{Message: err.Error(), URI: importPath}
	}
	if lib, ok := l.cache[uri]; ok {
		return lib, nil
	}

	data, err := l.content.ReadFile(uri)
	if err != nil {
		return nil, &LoadError{Message: err.Error(), URI: uri}
	}
	base := l.table.LoadBytes(uri, data)

	unit, err := l.parser.ParseUnit(base)
	if err != nil {
		return nil, err
	}

	lib := &Library{URI: uri, Unit: unit, Scope: scope.New(nil), Prefixed: map[int32]*scope.Scope{}}
	l.cache[uri] = lib // insert before recursing so cycles resolve to the same Library

	if err := l.mergeParts(lib, unit); err != nil {
		return nil, err
	}
	if err := l.populateScope(lib, unit); err != nil {
		return nil, err
	}

	if !strings.HasSuffix(uri, l.coreLibraryURI) {
		if err := l.installImport(lib, l.coreLibraryURI, uri, 0, nil); err != nil {
			return nil, err
		}
	}
	if strings.HasPrefix(uri, "dart:") && l.systemLibURI != "" {
		if err := l.installImport(lib, l.systemLibURI, uri, 0, nil); err != nil {
			return nil, err
		}
	}

	for _, decl := range unit.Children {
		switch decl.Kind {
		case ast.KindImport:
			prefix := decl.NameID // 0 means unprefixed
			if err := l.installImport(lib, decl.StringValue, uri, prefix, decl.Binding.([]int32)); err != nil {
				return nil, err
			}
		case ast.KindExport:
			imported, err := l.loadWithParent(decl.StringValue, uri)
			if err != nil {
				return nil, err
			}
			for _, id := range imported.Scope.EntryIDs() {
				e, _ := imported.Scope.LookupLocal(id)
				lib.Scope.Declare(id, e)
			}
		}
	}

	return lib, nil
}

// installImport loads importPath relative to fromURI and installs its
// scope into lib, either flat (prefix == 0) or under a prefix entry
// (spec §4.6 step 5 "optionally under a prefix"). show/hide filter
// which names are visible, named exactly as in the import clause.
func (l *Loader) installImport(lib *Library, importPath, fromURI string, prefix int32, combinators []int32) error {
	imported, err := l.loadWithParent(importPath, fromURI)
	if err != nil {
		return err
	}
	if prefix != 0 {
		lib.Prefixed[prefix] = imported.Scope
		return nil
	}
	for _, id := range imported.Scope.EntryIDs() {
		if len(combinators) > 0 && !containsID(combinators, id) {
			continue
		}
		e, _ := imported.Scope.LookupLocal(id)
		// A later explicit import is allowed to shadow the implicit
		// core-library import; only a genuine user-declaration clash
		// in populateScope is a hard error.
		lib.Scope.Declare(id, e)
	}
	return nil
}

func containsID(ids []int32, id int32) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// mergeParts recursively loads every `part` unit named by unit and
// appends its top-level declarations into unit's own declaration list,
// so populateScope sees one flattened declaration set per library
// (spec §4.6 step 3).
func (l *Loader) mergeParts(lib *Library, unit *ast.Node) error {
	var merged []*ast.Node
	for _, decl := range unit.Children {
		if decl.Kind == ast.KindPartOf {
			continue
		}
		if decl.Kind != ast.KindPart {
			merged = append(merged, decl)
			continue
		}
		partURI, err := l.content.Resolve(decl.StringValue, lib.URI)
		if err != nil {
			return &LoadError{Message: err.Error(), URI: decl.StringValue, Location: decl.Location, Table: l.table}
		}
		data, err := l.content.ReadFile(partURI)
		if err != nil {
			return &LoadError{Message: err.Error(), URI: partURI, Location: decl.Location, Table: l.table}
		}
		base := l.table.LoadBytes(partURI, data)
		partUnit, err := l.parser.ParseUnit(base)
		if err != nil {
			return err
		}
		if err := l.mergeParts(lib, partUnit); err != nil {
			return err
		}
		merged = append(merged, partUnit.Children...)
	}
	unit.Children = merged
	return nil
}

// populateScope installs every top-level class/method/field
// declaration into lib.Scope (spec §4.6 "Scope population"). Classes,
// top-level methods, and top-level fields each become a member entry;
// a field's setter (for a non-final field) gets its own Entry chained
// off the getter's.
func (l *Loader) populateScope(lib *Library, unit *ast.Node) error {
	// Stashing the library scope on the unit itself (Binding is
	// otherwise unused on a CompilationUnit node) lets code generation
	// recover a top-level member's enclosing scope from the bare
	// OwnerLib back-edge set below, without threading a Library through
	// every call site.
	unit.Binding = lib.Scope

	for _, decl := range unit.Children {
		switch decl.Kind {
		case ast.KindClass:
			decl.OwnerLib = unit
			if err := l.declareMember(lib.Scope, decl.NameID, decl, decl.Location); err != nil {
				return err
			}
			lib.Classes = append(lib.Classes, decl)
			if err := l.populateClassScope(decl); err != nil {
				return err
			}
		case ast.KindMethod:
			decl.OwnerLib = unit
			if err := l.declareMember(lib.Scope, decl.NameID, decl, decl.Location); err != nil {
				return err
			}
		case ast.KindVariableDeclarationStatement:
			for _, field := range decl.Children {
				field.OwnerLib = unit
				if err := l.declareField(lib.Scope, field); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// populateClassScope builds a class's own member scope (spec §4.6
// "For a class: declarations add entries to the class's own scope;
// constructors are stored separately"). Constructors are recognized by
// sharing the class's own name id; everything else is a regular
// member or field.
func (l *Loader) populateClassScope(class *ast.Node) error {
	classScope := scope.New(nil)
	constructors := map[int32]*ast.Node{}
	sawConstructor := false

	for _, member := range class.Children {
		switch member.Kind {
		case ast.KindMethod:
			member.OwnerClass = class
			if member.NameID == class.NameID || member.IsFactory {
				key := member.NameID
				if member.Binding != nil {
					if sub, ok := member.Binding.(int32); ok {
						key = sub
					}
				}
				constructors[key] = member
				sawConstructor = true
				continue
			}
			if err := l.declareMember(classScope, member.NameID, member, member.Location); err != nil {
				return err
			}
		case ast.KindVariableDeclarationStatement:
			for _, field := range member.Children {
				field.OwnerClass = class
				if err := l.declareField(classScope, field); err != nil {
					return err
				}
			}
		}
	}

	if !sawConstructor {
		// Implicit zero-arg constructor (spec §4.6 "an implicit
		// zero-arg constructor is materialized if the class declares
		// none").
		implicit := &ast.Node{Kind: ast.KindMethod, NameID: class.NameID, Location: class.Location}
		constructors[class.NameID] = implicit
	}

	class.Binding = classBinding{scope: classScope, constructors: constructors}
	return nil
}

type classBinding struct {
	scope        *scope.Scope
	constructors map[int32]*ast.Node
}

// ClassScope returns the member scope populateClassScope attached to
// a Class node.
func ClassScope(class *ast.Node) *scope.Scope {
	if b, ok := class.Binding.(classBinding); ok {
		return b.scope
	}
	return nil
}

// ClassConstructors returns the name-id -> constructor map attached to
// a Class node.
func ClassConstructors(class *ast.Node) map[int32]*ast.Node {
	if b, ok := class.Binding.(classBinding); ok {
		return b.constructors
	}
	return nil
}

func (l *Loader) declareMember(s *scope.Scope, id int32, decl *ast.Node, loc source.Location) error {
	entry := &scope.Entry{Kind: scope.EntryMember, Member: decl}
	if !s.Declare(id, entry) {
		return &LoadError{Message: "duplicate declaration", Location: loc, Table: l.table}
	}
	return nil
}

func (l *Loader) declareField(s *scope.Scope, field *ast.Node) error {
	getter := &scope.Entry{Kind: scope.EntryMember, Member: field}
	if !s.Declare(field.NameID, getter) {
		return &LoadError{Message: "duplicate declaration", Location: field.Location, Table: l.table}
	}
	if !field.IsFinal {
		getter.Setter = &scope.Entry{Kind: scope.EntryMember, Member: field}
	}
	return nil
}
