package compiler

import (
	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/loader"
)

// LinkSuperClasses resolves every class's heritage identifier (parsed
// as a bare KindIdentifier placeholder, since the grammar production
// that builds a type reference runs before any scope exists to resolve
// it against) into the actual *ast.Node of its superclass, walking
// every library in libs. Class enqueueing and the constant
// interpreter's instance folding both require class.A already resolved
// this way (constpool's evalCtorFields chains to class.A
// directly as a *ast.Node, never re-resolving it).
//
// Run once, after the whole import graph is loaded and before any
// class is enqueued: a subclass declared earlier in source order than
// its superclass (or one reached only via a later import) must still
// resolve correctly, which a single per-library left-to-right pass
// would not guarantee.
func LinkSuperClasses(libs []*loader.Library) {
	for _, lib := range libs {
		for _, class := range lib.Classes {
			linkOneSuper(class, lib)
		}
	}
}

// LinkClassScopes parents every class's member scope to its owning
// library scope. populateClassScope builds each class scope bare
// (scope.New(nil)) since it runs before the library's own scope is
// complete; a method body resolved against a class scope must still
// see the library's top-level declarations (other classes, top-level
// functions, imports), so every class scope needs its Parent wired in
// before any method is scope-resolved.
func LinkClassScopes(libs []*loader.Library) {
	for _, lib := range libs {
		for _, class := range lib.Classes {
			if s := loader.ClassScope(class); s != nil && s.Parent == nil {
				s.Parent = lib.Scope
			}
		}
	}
}

func linkOneSuper(class *ast.Node, lib *loader.Library) {
	if class.A == nil || class.A.Kind == ast.KindClass {
		return
	}
	ref := class.A
	if entry, ok := lib.Scope.Lookup(ref.NameID); ok {
		if member := entry.Member; member != nil && member.Kind == ast.KindClass {
			class.A = member
			return
		}
	}
	// An unresolved heritage clause (a built-in superclass with no AST
	// node of its own, e.g. extending a core-library native type) is
	// cleared to nil, so EnqueueClass treats the class as having no
	// compiled super, which is the correct behavior for a root native
	// class.
	class.A = nil
}
