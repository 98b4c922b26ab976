// Package ast defines the closed set of node variants produced by the
// parser (spec §3 "AST nodes"). Nodes are tagged structs rather than an
// interface hierarchy with `AsX()` downcasts (spec §9 "Deep inheritance
// of TreeNode... convert to a single tagged enum with payload structs"):
// every node is a *Node with a Kind discriminant and the fields for
// every variant it can take; callers switch on Kind rather than type-
// asserting.
package ast

import "github.com/corelang/corec/internal/source"

// Kind discriminates the tagged union of node variants.
type Kind int16

const (
	KindInvalid Kind = iota

	// Top level.
	KindCompilationUnit
	KindImport
	KindExport
	KindPart
	KindPartOf
	KindClass
	KindTypedef
	KindMethod
	KindVariableDeclaration // also used as a statement/param/field node

	// Statements.
	KindBlock
	KindIf
	KindFor
	KindForIn
	KindWhile
	KindDoWhile
	KindBreak
	KindContinue
	KindReturn
	KindAssert
	KindCase
	KindSwitch
	KindCatch
	KindTry
	KindLabelled
	KindRethrow
	KindExpressionStatement
	KindVariableDeclarationStatement
	KindEmptyStatement

	// Expressions.
	KindParenthesized
	KindAssign
	KindUnary
	KindBinary
	KindDot
	KindCascadeReceiver
	KindCascade
	KindInvoke
	KindIndex
	KindConditional
	KindIs
	KindAs
	KindNew
	KindIdentifier
	KindThis
	KindSuper
	KindNull
	KindStringInterpolation
	KindFunctionExpression
	KindThrow
	KindLiteralInteger
	KindLiteralDouble
	KindLiteralString
	KindLiteralBoolean
	KindLiteralList
	KindLiteralMap
)

// ParamModifier flags the role a VariableDeclaration plays when used
// as a method parameter (spec §4.5 "Optional parameters").
type ParamModifier uint8

const (
	ParamRequired ParamModifier = iota
	ParamPositionalOptional
	ParamNamedOptional
)

// CaptureKind classifies a local declaration once ScopeResolver has
// run (spec §3 "Capture kind").
type CaptureKind uint8

const (
	NotCaptured CaptureKind = iota
	ByValue
	ByReference
)

// Node is the single tagged-union node type for the whole AST. Only
// the fields relevant to Kind are meaningful; the rest are zero. Nodes
// are allocated from a zone.Arena[Node] and never freed individually
// (spec §3 "Ownership: exclusive to its zone").
type Node struct {
	Kind     Kind
	Location source.Location

	// Owner back-edges (spec §9: "Option<NodeIdx> or weak non-owning
	// references" rather than raw pointers with manual lifetime).
	OwnerClass *Node
	OwnerLib   *Node

	// Identifiers / names.
	NameID int32 // canonical id from scanner.IdentifierTable

	// Literals.
	IntValue    int64
	DoubleValue float64
	StringValue string
	BoolValue   bool

	// KindClass heritage clauses. Kept as dedicated fields rather than
	// folded into Binding, since Binding is overwritten post-parse (by
	// internal/loader, to attach the class's member scope and
	// constructor map).
	ClassMixins     []*Node
	ClassImplements []*Node


	// Generic children lists, reused across variants: for CompilationUnit
	// this is top-level declarations; for Block, statements; for
	// Class, member declarations; for Invoke, arguments; for
	// LiteralList, elements; for Switch, cases; etc. Keep node identity
	// stable by storing *Node, never copying structs around.
	Children []*Node

	// Binary/role-specific single children. Using named slots (rather
	// than positional indices into Children) keeps call sites
	// self-documenting; unused slots for a given Kind are simply nil.
	A, B, C, D *Node

	// Method/class specific.
	Modifiers    ParamModifier
	IsStatic     bool
	IsFinal      bool
	IsConst      bool
	IsFactory    bool
	IsGetter     bool // KindMethod only: declared with `get`
	IsSetter     bool // KindMethod only: declared with `set`
	ThisBind     bool // `this.field` constructor parameter shorthand
	Operator     int16
	CaptureKind  CaptureKind
	LabelNameID  int32

	// Resolver output: filled in by internal/resolve, consumed by
	// internal/constpool and internal/compiler. Left nil until resolved.
	Binding any

	// KindMethod constructors only: the explicit `: x = v, ... ,
	// super(...)` initializer clauses (spec glossary "Initializer
	// list"), captured structurally rather than discarded by the parser
	// so the compiler's constructor codegen can run them in hierarchy
	// order ahead of the constructor body.
	Initializers []*FieldInit
	Super        *SuperCall
}

// FieldInit is one `: x = expr` constructor initializer-list
// assignment.
type FieldInit struct {
	FieldNameID int32
	Value       *Node
}

// SuperCall is a constructor's chained call to its superclass
// constructor, explicit (named or unnamed) or — when the constructor's
// initializer list omits one — implied.
type SuperCall struct {
	NamedCtorID int32 // 0 for the unnamed super constructor
	Args        []*Node
	NamedLabels []int32
}

// Postfix increment/decrement share scanner.KPlusPlus/KMinusMinus with
// their prefix form; these sentinels (well outside the scanner's Kind
// range) let a Unary node's Operator field distinguish `x++` from
// `++x` without adding a dedicated bool field.
const (
	OpPostfixIncrement int16 = 1000 + iota
	OpPostfixDecrement
)

// NewNode is a convenience constructor; callers normally prefer
// Builder.Push, which allocates through a zone.Arena[Node].
func NewNode(kind Kind, loc source.Location) *Node {
	return &Node{Kind: kind, Location: loc}
}

// IsExpression reports whether k is one of the expression variants.
func (k Kind) IsExpression() bool {
	return k >= KindParenthesized && k <= KindLiteralMap
}

// IsStatement reports whether k is one of the statement variants.
func (k Kind) IsStatement() bool {
	return k >= KindBlock && k <= KindEmptyStatement
}

// Mixins returns n's KindClass mixin heritage clause.
func Mixins(n *Node) []*Node {
	return n.ClassMixins
}

// Implements returns n's KindClass implements heritage clause.
func Implements(n *Node) []*Node {
	return n.ClassImplements
}
