// Package constpool folds `const` expressions into a deduplicated,
// tagged constant pool (spec §4.8, §3 "Constant pool").
package constpool

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/containers"
	"github.com/corelang/corec/internal/loader"
	"github.com/corelang/corec/internal/scope"
	"github.com/corelang/corec/internal/source"
)

// Tag discriminates the closed set of constant-pool entry kinds.
type Tag uint8

const (
	TagNull Tag = iota
	TagTrue
	TagFalse
	TagInteger
	TagDouble
	TagString
	TagList
	TagMap
	TagInstance
)

// Const is one deduplicated entry in the pool; id is its stable index,
// assigned on first intern (spec §3 "Constant pool: a deduplicated
// vector of tagged constants").
type Const struct {
	ID      int32
	Tag     Tag
	Int     int64
	Double  float64
	Str     string
	Class   *ast.Node // TagInstance
	Fields  []int32   // element/field constant ids, in canonical order
}

// ConstError is fatal: a const-context evaluation failed structurally
// (spec §7, kConstError / kConstCtorInvalid).
type ConstError struct {
	Message  string
	Location source.Location
	Table    *source.Table
}

func (e *ConstError) Error() string {
	return fmt.Sprintf("%s: %s", e.Table.Excerpt(e.Location), e.Message)
}

// Pool owns every interned constant plus the dedup indices spec §4.8
// requires: hash maps for ints/doubles/strings, and a SeqTrie per
// aggregate kind keyed by the sequence of element constant ids.
type Pool struct {
	table *source.Table

	consts []*Const

	nullID, trueID, falseID int32

	intVals map[int64]int32
	dblVals map[uint64]int32
	strVals *containers.StringMap[int32]

	lists     *containers.SeqTrie[int32]
	maps      *containers.SeqTrie[int32]
	instances map[int32]*containers.SeqTrie[int32] // keyed by class's dedup-key name id
}

// New creates an empty Pool. table is used only for rendering
// diagnostics.
func New(table *source.Table) *Pool {
	return &Pool{
		table:     table,
		nullID:    -1,
		trueID:    -1,
		falseID:   -1,
		intVals:   map[int64]int32{},
		dblVals:   map[uint64]int32{},
		strVals:   containers.NewStringMap[int32](),
		lists:     containers.NewSeqTrie[int32](),
		maps:      containers.NewSeqTrie[int32](),
		instances: map[int32]*containers.SeqTrie[int32]{},
	}
}

func (p *Pool) push(c *Const) int32 {
	c.ID = int32(len(p.consts))
	p.consts = append(p.consts, c)
	return c.ID
}

// Get returns the constant stored at id.
func (p *Pool) Get(id int32) *Const { return p.consts[id] }

// Len returns the number of distinct constants interned so far.
func (p *Pool) Len() int { return len(p.consts) }

// Null interns (by identity — spec §4.8 "identity for the 3
// singletons") the null constant.
func (p *Pool) Null() int32 {
	if p.nullID == -1 {
		p.nullID = p.push(&Const{Tag: TagNull})
	}
	return p.nullID
}

// Bool interns true/false by identity.
func (p *Pool) Bool(v bool) int32 {
	if v {
		if p.trueID == -1 {
			p.trueID = p.push(&Const{Tag: TagTrue})
		}
		return p.trueID
	}
	if p.falseID == -1 {
		p.falseID = p.push(&Const{Tag: TagFalse})
	}
	return p.falseID
}

// Integer interns v, deduplicated by value (spec §4.8 "integers: hash
// map by value").
func (p *Pool) Integer(v int64) int32 {
	if id, ok := p.intVals[v]; ok {
		return id
	}
	id := p.push(&Const{Tag: TagInteger, Int: v})
	p.intVals[v] = id
	return id
}

// Double interns v, deduplicated by IEEE-754 bit pattern (spec §4.8
// "doubles: hash map by bit pattern").
func (p *Pool) Double(v float64) int32 {
	bits := math.Float64bits(v)
	if id, ok := p.dblVals[bits]; ok {
		return id
	}
	id := p.push(&Const{Tag: TagDouble, Double: v})
	p.dblVals[bits] = id
	return id
}

// String interns v, deduplicated by byte content.
func (p *Pool) String(v string) int32 {
	return p.strVals.GetOrInsert(v, func() int32 {
		return p.push(&Const{Tag: TagString, Str: v})
	})
}

// List interns a literal list given its already-interned element ids,
// deduplicated by the trie keyed on the element sequence (spec §4.8
// "lists: trie keyed by the sequence of element constant ids").
func (p *Pool) List(elementIDs []int32) int32 {
	return p.lists.Intern(elementIDs, func() int32 {
		return p.push(&Const{Tag: TagList, Fields: append([]int32(nil), elementIDs...)})
	})
}

// Map interns a literal map given its already-interned key/value ids,
// deduplicated by a trie keyed on the interleaved (key,value) sequence
// (spec §4.8 "maps: trie keyed by interleaved (key_id, value_id)
// sequence").
func (p *Pool) Map(keyIDs, valueIDs []int32) int32 {
	interleaved := lo.Interleave(keyIDs, valueIDs)
	return p.maps.Intern(interleaved, func() int32 {
		return p.push(&Const{Tag: TagMap, Fields: append([]int32(nil), interleaved...)})
	})
}

// Instance interns a const-constructed object given its class and the
// per-field constant ids, enumerated in class-hierarchy order with the
// subclass first (spec §4.8 "instances: per-class trie keyed by the
// sequence of field constant ids"). classDedupKey distinguishes tries
// per class without requiring Class to be hashable itself.
func (p *Pool) Instance(class *ast.Node, classDedupKey int32, fieldIDs []int32) int32 {
	trie, ok := p.instances[classDedupKey]
	if !ok {
		trie = containers.NewSeqTrie[int32]()
		p.instances[classDedupKey] = trie
	}
	return trie.Intern(fieldIDs, func() int32 {
		return p.push(&Const{Tag: TagInstance, Class: class, Fields: append([]int32(nil), fieldIDs...)})
	})
}

// ClassDedupKeyOf derives the stable dedup key Instance needs from a
// class's own name id; classes never share a name id within one
// compile (spec §3 "Every identifier_id is stable within one
// compile"), so it is sufficient on its own.
func ClassDedupKeyOf(class *ast.Node) int32 { return class.NameID }

// Interpreter folds an AST expression into a constant pool entry,
// returning (id, true) on success or (0, false) when the expression
// cannot be folded at all (spec §4.8 "returns either a ConstObject* or
// null (meaning 'cannot be folded yet')").
type Interpreter struct {
	Pool     *Pool
	Resolver interface {
		Bind(n *ast.Node, s *scope.Scope) *scope.Entry
	}

	// Constructor-parameter environment active while a const
	// constructor's initializer expressions fold: parameter name id to
	// already-folded argument constant id. Consulted ahead of the
	// scope Resolver so `: x = a + 1` sees the call site's `a`.
	params map[int32]int32
}

// Eval folds n in s, or returns an error for a const-context failure
// (spec §4.7 "in const context they are fatal (kConstUnresolved)").
func (ip *Interpreter) Eval(n *ast.Node, s *scope.Scope) (int32, bool, error) {
	if n == nil {
		return 0, false, nil
	}
	switch n.Kind {
	case ast.KindNull:
		return ip.Pool.Null(), true, nil
	case ast.KindLiteralBoolean:
		return ip.Pool.Bool(n.BoolValue), true, nil
	case ast.KindLiteralInteger:
		return ip.Pool.Integer(n.IntValue), true, nil
	case ast.KindLiteralDouble:
		return ip.Pool.Double(n.DoubleValue), true, nil
	case ast.KindLiteralString:
		return ip.Pool.String(n.StringValue), true, nil
	case ast.KindParenthesized:
		return ip.Eval(n.A, s)
	case ast.KindConditional:
		return ip.evalConditional(n, s)
	case ast.KindBinary:
		return ip.evalBinary(n, s)
	case ast.KindLiteralList:
		return ip.evalList(n, s)
	case ast.KindLiteralMap:
		return ip.evalMap(n, s)
	case ast.KindIdentifier:
		return ip.evalIdentifier(n, s)
	case ast.KindDot:
		return ip.evalDot(n, s)
	case ast.KindNew:
		if n.IsConst {
			return ip.evalConstConstructor(n, s)
		}
		return 0, false, nil
	default:
		return 0, false, nil
	}
}

func (ip *Interpreter) evalConditional(n *ast.Node, s *scope.Scope) (int32, bool, error) {
	condID, ok, err := ip.Eval(n.A, s)
	if err != nil || !ok {
		return 0, false, err
	}
	if condID == ip.Pool.Bool(true) {
		return ip.Eval(n.B, s)
	}
	return ip.Eval(n.C, s)
}

func (ip *Interpreter) evalBinary(n *ast.Node, s *scope.Scope) (int32, bool, error) {
	leftID, ok, err := ip.Eval(n.A, s)
	if err != nil || !ok {
		return 0, false, err
	}
	rightID, ok, err := ip.Eval(n.B, s)
	if err != nil || !ok {
		return 0, false, err
	}
	left, right := ip.Pool.Get(leftID), ip.Pool.Get(rightID)

	switch n.Operator {
	case opAdd, opSub, opMul, opDiv:
	default:
		return 0, false, nil // not folded; see applyArith
	}

	// String concatenation.
	if n.Operator == opAdd && left.Tag == TagString && right.Tag == TagString {
		return ip.Pool.String(left.Str + right.Str), true, nil
	}
	if left.Tag == TagDouble || right.Tag == TagDouble {
		lv, rv := numericOf(left), numericOf(right)
		return ip.Pool.Double(applyArith(n.Operator, lv, rv)), true, nil
	}
	if left.Tag == TagInteger && right.Tag == TagInteger {
		return ip.Pool.Integer(int64(applyArith(n.Operator, float64(left.Int), float64(right.Int)))), true, nil
	}
	return 0, false, nil
}

func numericOf(c *Const) float64 {
	if c.Tag == TagInteger {
		return float64(c.Int)
	}
	return c.Double
}

// applyArith covers the arithmetic operator tokens the constant
// interpreter is required to fold (spec §4.8 "integer/double
// arithmetic"); the emitter's fuller operator set (comparisons,
// bitwise) is handled at code-generation time instead, since those
// never need const folding for dispatch purposes.
func applyArith(op int16, l, r float64) float64 {
	switch op {
	case opAdd:
		return l + r
	case opSub:
		return l - r
	case opMul:
		return l * r
	case opDiv:
		return l / r
	default:
		return 0
	}
}

// Operator tokens, mirrored from scanner.Kind's arithmetic subset so
// this package does not need to import scanner just for four
// constants. Values must track scanner.KPlus/KMinus/KStar/KSlash
// exactly; internal/parser is the only other package that sets
// ast.Node.Operator for a KindBinary arithmetic node, and it always
// stores the raw scanner.Kind value.
const (
	opAdd int16 = 24 // scanner.KPlus
	opSub int16 = 25 // scanner.KMinus
	opMul int16 = 26 // scanner.KStar
	opDiv int16 = 27 // scanner.KSlash
)

func (ip *Interpreter) evalList(n *ast.Node, s *scope.Scope) (int32, bool, error) {
	ids := make([]int32, 0, len(n.Children))
	for _, elem := range n.Children {
		id, ok, err := ip.Eval(elem, s)
		if err != nil || !ok {
			return 0, false, err
		}
		ids = append(ids, id)
	}
	return ip.Pool.List(ids), true, nil
}

func (ip *Interpreter) evalMap(n *ast.Node, s *scope.Scope) (int32, bool, error) {
	keys := make([]int32, 0, len(n.Children)/2)
	vals := make([]int32, 0, len(n.Children)/2)
	for i := 0; i+1 < len(n.Children); i += 2 {
		kID, ok, err := ip.Eval(n.Children[i], s)
		if err != nil || !ok {
			return 0, false, err
		}
		vID, ok, err := ip.Eval(n.Children[i+1], s)
		if err != nil || !ok {
			return 0, false, err
		}
		keys = append(keys, kID)
		vals = append(vals, vID)
	}
	return ip.Pool.Map(keys, vals), true, nil
}

func (ip *Interpreter) evalIdentifier(n *ast.Node, s *scope.Scope) (int32, bool, error) {
	if ip.params != nil {
		if id, ok := ip.params[n.NameID]; ok {
			return id, true, nil
		}
	}
	entry := ip.Resolver.Bind(n, s)
	if entry == nil {
		return 0, false, &ConstUnresolvedError{NameID: n.NameID, Location: n.Location, Table: ip.Pool.table}
	}
	if entry.Kind != scope.EntryMember || entry.Member == nil {
		return 0, false, nil
	}
	decl := entry.Member
	if decl.Kind == ast.KindVariableDeclaration && decl.IsConst {
		return ip.Eval(decl.A, s)
	}
	return 0, false, nil
}

func (ip *Interpreter) evalDot(n *ast.Node, s *scope.Scope) (int32, bool, error) {
	// A const dotted reference only ever targets a const static field
	// reached through a resolved member entry; non-const receivers
	// (instance field access) are never foldable.
	return ip.evalIdentifier(&ast.Node{Kind: ast.KindIdentifier, NameID: n.NameID, Location: n.Location}, s)
}

// evalConstConstructor evaluates a const constructor invocation (spec
// §4.8 "Const constructor evaluation recursively evaluates
// initializer-list assignments (explicit and this.field parameter
// forms) and chains to super; each field must be final and get
// exactly one initializer"): the call site's arguments fold into a
// parameter environment, every field draws its value from that
// environment (this.field form), the initializer list, or the field's
// own default, and the super chain repeats the process with the
// super-call's arguments.
func (ip *Interpreter) evalConstConstructor(n *ast.Node, s *scope.Scope) (int32, bool, error) {
	class := ip.resolveClassRef(n.A, s)
	if class == nil {
		return 0, false, &ConstError{Message: "const new requires a resolved class target", Location: n.Location, Table: ip.Pool.table}
	}
	key := n.NameID
	if key == 0 {
		key = class.NameID
	}
	ctor := loader.ClassConstructors(class)[key]
	if ctor == nil {
		return 0, false, &ConstError{Message: "const new names no such constructor", Location: n.Location, Table: ip.Pool.table}
	}
	if !constEligibleCtor(ctor) {
		return 0, false, &ConstError{Message: "constructor is not const", Location: n.Location, Table: ip.Pool.table}
	}
	labels, _ := n.Binding.([]int32)
	env, ok, err := ip.bindCtorArgs(ctor, n.Children, labels, s)
	if err != nil || !ok {
		return 0, false, err
	}
	fields, ok, err := ip.evalCtorFields(class, ctor, env, s)
	if err != nil || !ok {
		return 0, false, err
	}
	return ip.Pool.Instance(class, ClassDedupKeyOf(class), fields), true, nil
}

// resolveClassRef resolves a const new's class reference (a bare
// identifier, a prefixed lib.Name dot, or an already-linked class
// node) to its class declaration, or nil.
func (ip *Interpreter) resolveClassRef(ref *ast.Node, s *scope.Scope) *ast.Node {
	if ref == nil {
		return nil
	}
	switch ref.Kind {
	case ast.KindClass:
		return ref
	case ast.KindIdentifier:
		if entry := ip.Resolver.Bind(ref, s); entry != nil && entry.Kind == scope.EntryMember {
			if m := entry.Member; m != nil && m.Kind == ast.KindClass {
				return m
			}
		}
	case ast.KindDot:
		inner := ref.A
		if inner == nil || inner.Kind != ast.KindIdentifier {
			return nil
		}
		if entry := ip.Resolver.Bind(inner, s); entry != nil && entry.Kind == scope.EntryLibraryReference && entry.Library != nil {
			if e2, ok := entry.Library.LookupLocal(ref.NameID); ok && e2.Member != nil && e2.Member.Kind == ast.KindClass {
				return e2.Member
			}
		}
	}
	return nil
}

// constEligibleCtor reports whether ctor may be invoked from const
// context: a declared const constructor, or the implicit zero-arg
// constructor the loader materializes for classes that declare none.
func constEligibleCtor(ctor *ast.Node) bool {
	if ctor.IsConst {
		return true
	}
	return ctor.A == nil && len(ctor.Children) == 0 && len(ctor.Initializers) == 0 && ctor.Super == nil
}

// bindCtorArgs folds a call site's positional and named arguments
// (and the defaults of omitted optionals) into a parameter-name to
// constant-id environment. A non-foldable argument makes the whole
// invocation non-foldable rather than fatal.
func (ip *Interpreter) bindCtorArgs(ctor *ast.Node, args []*ast.Node, labels []int32, s *scope.Scope) (map[int32]int32, bool, error) {
	env := map[int32]int32{}
	positional := len(args) - len(labels)
	posIdx := 0
	for _, p := range ctor.Children {
		expr := p.A
		if p.Modifiers == ast.ParamNamedOptional {
			for j, l := range labels {
				if l == p.NameID {
					expr = args[positional+j]
					break
				}
			}
		} else {
			if posIdx < positional {
				expr = args[posIdx]
			}
			posIdx++
		}
		if expr == nil {
			env[p.NameID] = ip.Pool.Null()
			continue
		}
		id, ok, err := ip.Eval(expr, s)
		if err != nil || !ok {
			return nil, false, err
		}
		env[p.NameID] = id
	}
	return env, true, nil
}

// evalCtorFields assigns exactly one constant per declared field,
// subclass first (spec §4.8 "fields enumerated in class-hierarchy
// order, subclass first").
func (ip *Interpreter) evalCtorFields(class, ctor *ast.Node, env map[int32]int32, s *scope.Scope) ([]int32, bool, error) {
	var fields []int32
	for _, member := range class.Children {
		if member.Kind != ast.KindVariableDeclarationStatement {
			continue
		}
		for _, decl := range member.Children {
			if decl.IsStatic {
				continue
			}
			if !decl.IsFinal {
				return nil, false, &ConstError{Message: "non-final field in const class", Location: decl.Location, Table: ip.Pool.table}
			}
			id, ok, err := ip.evalCtorField(decl, ctor, env, s)
			if err != nil || !ok {
				return nil, false, err
			}
			fields = append(fields, id)
		}
	}
	if super := class.A; super != nil && super.Kind == ast.KindClass {
		superFields, ok, err := ip.evalSuperFields(super, ctor, env, s)
		if err != nil || !ok {
			return nil, false, err
		}
		fields = append(fields, superFields...)
	}
	return fields, true, nil
}

// evalCtorField draws one field's constant from the constructor's
// this.field parameter, its initializer-list entry, or the field's
// own default — and rejects a field bound by more than one of them
// (spec §4.8 "each field must be final and get exactly one
// initializer", kConstCtorInvalid).
func (ip *Interpreter) evalCtorField(decl, ctor *ast.Node, env map[int32]int32, s *scope.Scope) (int32, bool, error) {
	var thisParam *ast.Node
	var initEntry *ast.FieldInit
	if ctor != nil {
		for _, p := range ctor.Children {
			if p.ThisBind && p.NameID == decl.NameID {
				thisParam = p
				break
			}
		}
		for _, init := range ctor.Initializers {
			if init.FieldNameID == decl.NameID {
				initEntry = init
				break
			}
		}
	}
	if thisParam != nil && initEntry != nil {
		return 0, false, &ConstError{Message: "duplicate initializer in const constructor", Location: decl.Location, Table: ip.Pool.table}
	}
	switch {
	case thisParam != nil:
		return env[thisParam.NameID], true, nil
	case initEntry != nil:
		return ip.evalWithParams(initEntry.Value, env, s)
	case decl.A != nil:
		return ip.Eval(decl.A, s)
	}
	return 0, false, &ConstError{Message: "field has no initializer in const constructor", Location: decl.Location, Table: ip.Pool.table}
}

// evalSuperFields chains const evaluation into the superclass
// constructor named (or implied) by ctor's initializer list (spec
// §4.8 "chains to super"; spec §7 kConstError "non-const super-call
// from const constructor").
func (ip *Interpreter) evalSuperFields(super, ctor *ast.Node, env map[int32]int32, s *scope.Scope) ([]int32, bool, error) {
	key := super.NameID
	var superArgs []*ast.Node
	var superLabels []int32
	if ctor != nil && ctor.Super != nil {
		if ctor.Super.NamedCtorID != 0 {
			key = ctor.Super.NamedCtorID
		}
		superArgs = ctor.Super.Args
		superLabels = ctor.Super.NamedLabels
	}
	superCtor := loader.ClassConstructors(super)[key]
	if superCtor == nil {
		return nil, true, nil // an unregistered root class contributes no fields
	}
	if !constEligibleCtor(superCtor) {
		loc := super.Location
		if ctor != nil {
			loc = ctor.Location
		}
		return nil, false, &ConstError{Message: "non-const super-call from const constructor", Location: loc, Table: ip.Pool.table}
	}
	// The super-call's argument expressions fold under the invoked
	// constructor's own parameter environment.
	superEnv, ok, err := func() (map[int32]int32, bool, error) {
		saved := ip.params
		ip.params = env
		defer func() { ip.params = saved }()
		return ip.bindCtorArgs(superCtor, superArgs, superLabels, s)
	}()
	if err != nil || !ok {
		return nil, false, err
	}
	return ip.evalCtorFields(super, superCtor, superEnv, s)
}

func (ip *Interpreter) evalWithParams(n *ast.Node, env map[int32]int32, s *scope.Scope) (int32, bool, error) {
	saved := ip.params
	ip.params = env
	id, ok, err := ip.Eval(n, s)
	ip.params = saved
	return id, ok, err
}

// ConstUnresolvedError is fatal: a const-context identifier has no
// scope binding at all (spec §4.7, kConstUnresolved).
type ConstUnresolvedError struct {
	NameID   int32
	Location source.Location
	Table    *source.Table
}

func (e *ConstUnresolvedError) Error() string {
	return fmt.Sprintf("%s: unresolved identifier in const context", e.Table.Excerpt(e.Location))
}
