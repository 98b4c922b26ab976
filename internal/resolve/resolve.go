// Package resolve implements the two resolver passes over a method
// body (spec §4.7): ScopeResolver introduces locals/labels/nested
// function bindings and classifies captures; Resolver performs the
// static name → scope-entry lookup the emitter and constant
// interpreter both rely on.
package resolve

import (
	"fmt"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/scope"
	"github.com/corelang/corec/internal/source"
)

// ConstUnresolvedError is fatal: an identifier with no binding was
// referenced from a const-evaluation context (spec §4.7 "in const
// context they are fatal (kConstUnresolved)").
type ConstUnresolvedError struct {
	NameID   int32
	Location source.Location
	Table    *source.Table
}

func (e *ConstUnresolvedError) Error() string {
	return fmt.Sprintf("%s: unresolved identifier in const context", e.Table.Excerpt(e.Location))
}

// frame tracks one function body's locals while ScopeResolver walks
// it; frames nest for function expressions, so a capture is detected
// by walking outward from the innermost frame to the one that
// actually declares the variable (spec §4.7 "marked captured on every
// intermediate function frame").
type frame struct {
	scope  *scope.Scope
	decls  []*ast.Node // local declarations introduced directly in this frame
	labels map[int32]bool
	parent *frame
}

// ScopeResolver walks one method body, binding every identifier use
// and computing capture kinds.
type ScopeResolver struct {
	methodScope *scope.Scope // the owning class/library scope, chained as parent
	top         *frame
	nextLocal   int
}

// NewScopeResolver creates a resolver for a method whose body will be
// walked with Resolve; methodScope is the class or library scope the
// method's own top-level frame chains to.
func NewScopeResolver(methodScope *scope.Scope) *ScopeResolver {
	r := &ScopeResolver{methodScope: methodScope}
	r.top = &frame{scope: scope.New(methodScope), labels: map[int32]bool{}}
	return r
}

// Resolve walks body (normally a method's parameter list then its
// Block), introducing locals/labels and classifying every identifier
// reference it finds.
func (r *ScopeResolver) Resolve(params []*ast.Node, body *ast.Node) {
	for i, p := range params {
		r.declareLocal(p, i)
	}
	if body != nil {
		r.walkStatement(body, r.top)
	}
}

// LocalCount returns the number of true (non-parameter) local slots
// Resolve declared, letting the code generator place its own frame
// slots (the implicit `this` receiver, compound-assignment scratch
// space) immediately past every slot a declared variable could use.
func (r *ScopeResolver) LocalCount() int { return r.nextLocal }

func (r *ScopeResolver) declareLocal(decl *ast.Node, index int) {
	entry := &scope.Entry{Kind: scope.EntryFormalParameter, Index: index, Decl: decl}
	r.top.scope.Declare(decl.NameID, entry)
	decl.Binding = entry
}

func (r *ScopeResolver) declareVariable(decl *ast.Node, fr *frame) {
	index := r.nextLocal
	r.nextLocal++
	entry := &scope.Entry{Kind: scope.EntryLocalDeclaration, Index: index, CaptureKind: ast.NotCaptured, Decl: decl}
	fr.scope.Declare(decl.NameID, entry)
	fr.decls = append(fr.decls, decl)
	decl.Binding = entry
	decl.CaptureKind = ast.NotCaptured
}

// walkStatement dispatches on every statement Kind, introducing block-
// scoped locals and recursing into nested function expressions with a
// child frame.
func (r *ScopeResolver) walkStatement(n *ast.Node, fr *frame) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.KindBlock:
		inner := &frame{scope: scope.New(fr.scope), labels: fr.labels, parent: fr.parent}
		for _, stmt := range n.Children {
			r.walkStatement(stmt, inner)
		}
	case ast.KindVariableDeclarationStatement:
		for _, decl := range n.Children {
			if decl.A != nil {
				r.walkExpression(decl.A, fr)
			}
			r.declareVariable(decl, fr)
		}
	case ast.KindIf:
		r.walkExpression(n.A, fr)
		r.walkStatement(n.B, fr)
		r.walkStatement(n.C, fr)
	case ast.KindWhile, ast.KindDoWhile:
		r.walkExpression(n.A, fr)
		r.walkStatement(n.B, fr)
	case ast.KindFor:
		inner := &frame{scope: scope.New(fr.scope), labels: fr.labels, parent: fr.parent}
		r.walkStatement(n.A, inner) // init
		r.walkExpression(n.B, inner)
		r.walkExpression(n.C, inner)
		r.walkStatement(n.D, inner)
	case ast.KindForIn:
		inner := &frame{scope: scope.New(fr.scope), labels: fr.labels, parent: fr.parent}
		r.declareVariable(n.A, inner)
		r.walkExpression(n.B, inner)
		r.walkStatement(n.C, inner)
	case ast.KindReturn:
		r.walkExpression(n.A, fr)
	case ast.KindExpressionStatement:
		r.walkExpression(n.A, fr)
	case ast.KindThrow:
		r.walkExpression(n.A, fr)
	case ast.KindAssert:
		r.walkExpression(n.A, fr)
	case ast.KindLabelled:
		fr.labels[n.LabelNameID] = true
		r.walkStatement(n.A, fr)
	case ast.KindSwitch:
		r.walkExpression(n.A, fr)
		for _, c := range n.Children {
			for _, stmt := range c.Children {
				r.walkStatement(stmt, fr)
			}
		}
	case ast.KindTry:
		r.walkStatement(n.A, fr) // body
		for _, c := range n.Children {
			if c.A != nil {
				inner := &frame{scope: scope.New(fr.scope), labels: fr.labels, parent: fr.parent}
				r.declareVariable(c.A, inner)
				r.walkStatement(c.B, inner)
			} else {
				r.walkStatement(c.B, fr) // catch block, no bound exception variable
			}
		}
		r.walkStatement(n.B, fr) // finally
	default:
		// break/continue/empty/rethrow carry no sub-expressions to
		// resolve.
	}
}

// walkExpression dispatches on every expression Kind that can contain
// an identifier reference or a nested function expression.
func (r *ScopeResolver) walkExpression(n *ast.Node, fr *frame) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.KindIdentifier:
		r.resolveIdentifier(n, fr)
	case ast.KindFunctionExpression:
		inner := &frame{scope: scope.New(fr.scope), labels: map[int32]bool{}, parent: fr}
		for i, p := range n.Children {
			entry := &scope.Entry{Kind: scope.EntryFormalParameter, Index: i, Decl: p}
			inner.scope.Declare(p.NameID, entry)
			p.Binding = entry
		}
		r.walkStatement(n.A, inner)
	case ast.KindAssign:
		r.walkExpression(n.A, fr)
		r.walkExpression(n.B, fr)
	case ast.KindBinary:
		r.walkExpression(n.A, fr)
		r.walkExpression(n.B, fr)
	case ast.KindUnary:
		r.walkExpression(n.A, fr)
	case ast.KindDot:
		r.walkExpression(n.A, fr)
	case ast.KindInvoke:
		r.walkExpression(n.A, fr)
		for _, arg := range n.Children {
			r.walkExpression(arg, fr)
		}
	case ast.KindIndex:
		r.walkExpression(n.A, fr)
		r.walkExpression(n.B, fr)
	case ast.KindConditional:
		r.walkExpression(n.A, fr)
		r.walkExpression(n.B, fr)
		r.walkExpression(n.C, fr)
	case ast.KindIs, ast.KindAs:
		r.walkExpression(n.A, fr)
	case ast.KindParenthesized:
		r.walkExpression(n.A, fr)
	case ast.KindNew:
		for _, arg := range n.Children {
			r.walkExpression(arg, fr)
		}
	case ast.KindCascade:
		r.walkExpression(n.A, fr)
		for _, c := range n.Children {
			r.walkExpression(c, fr)
		}
	case ast.KindStringInterpolation:
		for _, part := range n.Children {
			r.walkExpression(part, fr)
		}
	case ast.KindLiteralList:
		for _, e := range n.Children {
			r.walkExpression(e, fr)
		}
	case ast.KindLiteralMap:
		for _, e := range n.Children {
			r.walkExpression(e, fr)
		}
	}
}

// resolveIdentifier looks n.NameID up starting at fr, walking outward
// through enclosing function frames. A hit in an outer frame's own
// declarations (not the class/library scope beyond it) means n is a
// captured variable, and the declaration's entry gets its capture
// kind (by value if final, by reference otherwise). The frames crossed
// on the way are only counted; no frame records which variables it
// closes over.
func (r *ScopeResolver) resolveIdentifier(n *ast.Node, fr *frame) {
	var crossed []*frame
	for cur := fr; cur != nil; cur = cur.parent {
		if entry, ok := cur.scope.LookupLocal(n.NameID); ok {
			n.Binding = entry
			if entry.Kind == scope.EntryLocalDeclaration && len(crossed) > 0 && entry.CaptureKind == ast.NotCaptured {
				kind := ast.ByReference
				if entry.Decl.IsFinal {
					kind = ast.ByValue
				}
				entry.CaptureKind = kind
				entry.Decl.CaptureKind = kind
			}
			return
		}
		crossed = append(crossed, cur)
	}
	// Falls through to the class/library scope chained under the
	// outermost frame; Resolver.Bind performs that lookup statically
	// since it doesn't need capture tracking.
	if entry, ok := fr.scope.Lookup(n.NameID); ok {
		n.Binding = entry
	}
}

// Resolver performs the static binding lookup used by the emitter and
// constant interpreter outside of ScopeResolver's live walk (spec
// §4.7 "Resolver (static)").
type Resolver struct{}

// Bind resolves n against s, returning the bound Entry or nil if n is
// genuinely undefined (spec §4.7 "returns the bound entity (member,
// local declaration, or null)").
func (Resolver) Bind(n *ast.Node, s *scope.Scope) *scope.Entry {
	if n.Binding != nil {
		if e, ok := n.Binding.(*scope.Entry); ok {
			return e
		}
	}
	if e, ok := s.Lookup(n.NameID); ok {
		return e
	}
	return nil
}
