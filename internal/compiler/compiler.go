// Package compiler drives the whole-program worklist that turns a
// loaded library graph into compiled classes and methods (spec §4.10
// "Compiler (worklist)"). It lazily enqueues reachable methods and
// classes as call sites and class declarations are discovered; Finalize
// drains the worklist and synthesizes trampolines and is@T selector
// stubs. Writing classes, constants and links to the session stream is
// left to internal/session.
package compiler

import (
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/constpool"
	"github.com/corelang/corec/internal/emit"
	"github.com/corelang/corec/internal/loader"
	"github.com/corelang/corec/internal/resolve"
	"github.com/corelang/corec/internal/scope"
)

// CompileOptions is the explicit, threaded replacement for the
// source's process-wide `Flags::IsOn` global (spec §9 "Singleton
// process-wide flags / global state... Replace with an explicit
// CompileOptions struct threaded through the Compiler").
type CompileOptions struct {
	Optimize         bool
	EmitSession      bool
	StrictConst      bool
	CoreLibraryURI   string
	SystemLibraryURI string
}

// MethodInfo is one enqueued method's compiler-side bookkeeping;
// index into Compiler.methods is the method's stable method_id (spec
// §3 "Every reachable method has a unique method_id, assigned on
// enqueue").
type MethodInfo struct {
	Node     *ast.Node
	ClassID  int32 // -1 for a top-level/static method
	Code     emit.Code
	Compiled bool
}

// ClassInfo is one enqueued class's compiler-side bookkeeping (spec
// §3 "Compiled class").
type ClassInfo struct {
	Node           *ast.Node
	SuperID        int32 // -1 for the root class
	FieldOffset    int   // running field-index counter, continuing from super
	FieldCount     int
	MethodTable    []MethodTableEntry // (selector, method_id), sorted at emit time
	ConstructorMap map[int32]int32 // name id -> method id
	IsSelectors    map[int32]bool  // sparse `is@T` presence (spec §9 "sparse... flatten at emit time")
}

// fieldAccessorStub marks a synthesized getter/setter method's Binding
// (a method node with no parsed body of its own), letting emitMethodBody
// special-case it into a single invoke-native of the shared field
// accessor instead of walking a nil body (spec §4.10 scanClassDeclarations
// "instance fields share generated getter/setter stubs keyed by field
// index").
type fieldAccessorStub struct {
	fieldIndex int
	isSetter   bool
}

// isSelectorStub marks a synthesized is@T method's Binding; its body is
// always "return true" (spec §4.10 "An is T check compiles to a
// dispatch-table entry at a synthetic is@T selector that, if present on
// a class, always returns true").
type isSelectorStub struct{}

// MethodTableEntry is one (selector, method_id) dispatch row.
type MethodTableEntry struct {
	Selector Selector
	MethodID int32
}

// Selector is the bit-packed (name, kind, arity) call-site key (spec
// §3 "Selector").
type Selector struct {
	NameID int32
	Kind   SelectorKind
	Arity  int
}

// SelectorKind discriminates method/getter/setter selectors.
type SelectorKind uint8

const (
	SelectorMethod SelectorKind = iota
	SelectorGetter
	SelectorSetter
	SelectorIs // synthetic `is@T` presence selector, materialized by materializeIsSelectors
)

// InvokeSelector tracks every (arity, named-set) shape seen at a call
// site or declaration for one name (spec §4.10 "invoke_selectors").
type InvokeSelector struct {
	NameID   int32
	Shapes   map[string]bool // canonical "arity:label0,label1,..." shape key
	Pending  map[string][]func(methodID int32)
}

// IsSelector tracks `o is T` usage for one name (spec §4.10
// "is_selectors").
type IsSelector struct {
	NameID int32
}

// StaticInfo is one global or static field's compiler-side slot (spec
// §4.10 "statics: Vec<Field>").
type StaticInfo struct {
	Node        *ast.Node
	Initializer *ast.Node
}

// NameTable is the slice of the scanner's identifier table the
// compiler needs: interning synthetic selector names (operator
// methods, `base:l0:l1` named-call shapes) and recovering a name's
// spelling for the runtime _unresolved path. Declared here so the
// compiler does not depend on internal/scanner directly.
type NameTable interface {
	Intern(s []byte) int32
	Name(id int32) string
}

// Compiler owns every piece of worklist state named in spec §4.10 and
// drives the finalization order in spec §4.10 step list.
type Compiler struct {
	Options CompileOptions
	Pool    *constpool.Pool
	Loader  *loader.Loader
	Resolve resolve.Resolver
	Names   NameTable

	// Iterator-protocol selector names for for-in desugaring (spec §4.5
	// "for (x in iterable)"), interned from the scanner's identifier
	// table by the driver that constructs the Compiler, since codegen
	// itself never sees raw identifier text.
	IteratorNameID int32
	MoveNextNameID int32
	CurrentNameID  int32

	// The `call` selector name, used for closure invocation and
	// tear-off dispatch (spec §4.11 "synthesizes a class with one
	// field per captured variable plus a call method").
	CallNameID int32

	methods []*MethodInfo
	classes []*ClassInfo
	statics []*StaticInfo

	invokeSelectors map[int32]*InvokeSelector
	isSelectors     map[int32]*IsSelector
	constructors    map[*ast.Node]int32
	namedStaticStubs map[int32]map[int32]int32
	methodTearoffs   map[int32]int32

	classIDByNode     map[*ast.Node]int32
	methodIDByNode    map[*ast.Node]int32
	staticSlotByNode  map[*ast.Node]int32
	staticInitMethods map[*ast.Node]int32
	operatorNameIDs   map[string]int32

	worklist []func()

	// First fatal diagnostic raised during code generation (spec §7
	// "all errors are fatal"). Codegen runs inside worklist closures
	// with no error return of their own, so the error is latched here
	// and surfaced by the driver once the worklist drains.
	err error
}

// Err returns the first fatal error recorded during worklist
// processing, if any.
func (c *Compiler) Err() error { return c.err }

func (c *Compiler) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// New creates a Compiler ready to have its entry library enqueued.
func New(opts CompileOptions, pool *constpool.Pool, ld *loader.Loader) *Compiler {
	return &Compiler{
		Options:          opts,
		Pool:             pool,
		Loader:           ld,
		invokeSelectors:  map[int32]*InvokeSelector{},
		isSelectors:      map[int32]*IsSelector{},
		constructors:     map[*ast.Node]int32{},
		namedStaticStubs: map[int32]map[int32]int32{},
		methodTearoffs:   map[int32]int32{},
		classIDByNode:     map[*ast.Node]int32{},
		methodIDByNode:    map[*ast.Node]int32{},
		staticSlotByNode:  map[*ast.Node]int32{},
		staticInitMethods: map[*ast.Node]int32{},
		operatorNameIDs:   map[string]int32{},
	}
}

// internName canonicalizes a synthetic selector spelling (operator
// method names, named-call shapes) through the same identifier table
// the scanner uses, so a user-written `operator +` declaration and a
// codegen-synthesized `+` call site land on one id (spec §3 "Named-
// argument calls use a synthetic name... canonicalized through the
// same identifier table").
func (c *Compiler) internName(s string) int32 {
	if id, ok := c.operatorNameIDs[s]; ok {
		return id
	}
	id := c.Names.Intern([]byte(s))
	c.operatorNameIDs[s] = id
	return id
}

// syntheticShapeName canonicalizes a call shape's synthetic selector
// name, `base:arity:label0:label1:...`, through the identifier table
// (spec §3 "Named-argument calls use a synthetic name of the form
// base:label0:label1:... canonicalized through the same identifier
// table"; the arity component keeps distinct positional counts from
// colliding in the per-method stub memo).
func (c *Compiler) syntheticShapeName(baseID int32, arity int, labels []int32) int32 {
	name := c.Names.Name(baseID) + ":" + strconv.Itoa(arity)
	for _, l := range labels {
		name += ":" + c.Names.Name(l)
	}
	return c.internName(name)
}

// Methods returns every enqueued method, in enqueue (= method_id)
// order.
func (c *Compiler) Methods() []*MethodInfo { return c.methods }

// Classes returns every enqueued class, in enqueue (= class_id) order.
func (c *Compiler) Classes() []*ClassInfo { return c.classes }

// ClassID returns the class_id already assigned to class, if any. Used
// by internal/session to resolve a constant pool TagInstance entry's
// Const.Class node back to the identity the class was pushed under
// (spec §4.8 "instances: per-class trie keyed by the sequence of
// field constant ids" — Instance stores the *ast.Node, not an id,
// since constpool has no dependency on compiler).
func (c *Compiler) ClassID(class *ast.Node) (int32, bool) {
	id, ok := c.classIDByNode[class]
	return id, ok
}

// EnqueueClass lazily enqueues class, resolving its super and
// recording field offsets continuing from the super's last field
// (spec §4.10 "Enqueuing a class lazily"). Re-enqueuing an
// already-known class is a no-op and returns its existing class_id.
func (c *Compiler) EnqueueClass(class *ast.Node) int32 {
	if id, ok := c.classIDByNode[class]; ok {
		return id
	}
	id := int32(len(c.classes))
	c.classIDByNode[class] = id

	info := &ClassInfo{
		Node:           class,
		SuperID:        -1,
		ConstructorMap: map[int32]int32{},
		IsSelectors:    map[int32]bool{},
	}
	c.classes = append(c.classes, info) // append before recursing into super: fields rely on the array slot existing, and cycles are impossible by language rule

	if class.A != nil && class.A.Kind == ast.KindClass {
		superID := c.EnqueueClass(class.A)
		info.SuperID = superID
		info.FieldOffset = c.classes[superID].FieldOffset + c.classes[superID].FieldCount
	}

	// Constructor enqueue order must be a pure function of source
	// (spec §8 "Deterministic ids"), so the name-keyed map is walked
	// in sorted-id order.
	ctors := loader.ClassConstructors(class)
	ctorNames := make([]int32, 0, len(ctors))
	for name := range ctors {
		ctorNames = append(ctorNames, name)
	}
	sort.Slice(ctorNames, func(i, j int) bool { return ctorNames[i] < ctorNames[j] })
	for _, name := range ctorNames {
		methodID := c.EnqueueMethod(ctors[name], id, loader.ClassScope(class))
		info.ConstructorMap[name] = methodID
	}

	c.scanClassDeclarations(id, info)
	return id
}

// scanClassDeclarations marks the invoke-selector or plain selector
// for every declaration, per spec §4.10's enqueue contract bullets:
// non-static methods mark an invoke selector and register a
// getter-shaped tear-off; getters/setters/fields mark the matching
// selector; instance fields share generated getter/setter stubs keyed
// by field index. Every non-static method/getter/setter is enqueued
// immediately and recorded in the class's dispatch table: this is a
// whole-program compiler, so nothing is gained by deferring a
// declaration's own compilation the way a call-site-driven trampoline
// is deferred.
func (c *Compiler) scanClassDeclarations(classID int32, info *ClassInfo) {
	classScope := loader.ClassScope(info.Node)
	fieldIndex := info.FieldOffset
	for _, member := range info.Node.Children {
		switch member.Kind {
		case ast.KindMethod:
			if member.NameID == info.Node.NameID || member.IsFactory {
				continue // constructors, handled separately
			}
			if member.IsStatic {
				continue
			}
			var kind SelectorKind
			switch {
			case member.IsGetter:
				kind = SelectorGetter
				c.markSelector(member.NameID, kind)
			case member.IsSetter:
				kind = SelectorSetter
				c.markSelector(member.NameID, kind)
			default:
				kind = SelectorMethod
				c.markInvokeSelector(member.NameID, len(member.Children), namedLabelsOf(member))
				c.registerTearoffShape(member.NameID, SelectorMethod)
			}
			methodID := c.EnqueueMethod(member, classID, classScope)
			info.MethodTable = append(info.MethodTable, MethodTableEntry{
				Selector: Selector{NameID: member.NameID, Kind: kind, Arity: len(member.Children)},
				MethodID: methodID,
			})
		case ast.KindVariableDeclarationStatement:
			for _, field := range member.Children {
				if field.IsStatic {
					continue
				}
				info.FieldCount++
				idx := fieldIndex
				c.markSelector(field.NameID, SelectorGetter)
				getter := &ast.Node{Kind: ast.KindMethod, NameID: field.NameID, Location: field.Location, Binding: fieldAccessorStub{fieldIndex: idx}}
				getterID := c.EnqueueMethod(getter, classID, classScope)
				info.MethodTable = append(info.MethodTable, MethodTableEntry{
					Selector: Selector{NameID: field.NameID, Kind: SelectorGetter, Arity: 0},
					MethodID: getterID,
				})
				if !field.IsFinal {
					c.markSelector(field.NameID, SelectorSetter)
					valueParam := &ast.Node{Kind: ast.KindVariableDeclaration, NameID: field.NameID, Location: field.Location, Modifiers: ast.ParamRequired}
					setter := &ast.Node{Kind: ast.KindMethod, NameID: field.NameID, Location: field.Location, Children: []*ast.Node{valueParam}, Binding: fieldAccessorStub{fieldIndex: idx, isSetter: true}}
					setterID := c.EnqueueMethod(setter, classID, classScope)
					info.MethodTable = append(info.MethodTable, MethodTableEntry{
						Selector: Selector{NameID: field.NameID, Kind: SelectorSetter, Arity: 1},
						MethodID: setterID,
					})
				}
				fieldIndex++
			}
		}
	}
}

func namedLabelsOf(method *ast.Node) []int32 {
	var labels []int32
	for _, p := range method.Children {
		if p.Modifiers == ast.ParamNamedOptional {
			labels = append(labels, p.NameID)
		}
	}
	return labels
}

func (c *Compiler) registerTearoffShape(nameID int32, kind SelectorKind) {
	// A method also implicitly supports a zero-arg getter-shaped
	// lookup (its tear-off), so a bare `obj.foo` without a call always
	// has somewhere to resolve to (spec glossary "Tear-off").
	c.markSelector(nameID, SelectorGetter)
}

// shapeKey canonicalizes an (arity, named-label-set) call shape into
// the map key invokeSelectors tracks shapes under.
func shapeKey(arity int, namedLabels []int32) string {
	sorted := append([]int32(nil), namedLabels...)
	key := make([]byte, 0, 8+4*len(sorted))
	key = appendInt(key, arity)
	for _, l := range sorted {
		key = append(key, ':')
		key = appendInt(key, int(l))
	}
	return string(key)
}

func appendInt(b []byte, v int) []byte {
	if v == 0 {
		return append(b, '0')
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var tmp [12]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		tmp[i] = '-'
	}
	return append(b, tmp[i:]...)
}

// markInvokeSelector records a call-site or declaration shape for
// nameID in the selector's Shapes set. It only records the shape: it
// enqueues no method and adds nothing to the selector's Pending list.
func (c *Compiler) markInvokeSelector(nameID int32, arity int, namedLabels []int32) {
	sel, ok := c.invokeSelectors[nameID]
	if !ok {
		sel = &InvokeSelector{NameID: nameID, Shapes: map[string]bool{}, Pending: map[string][]func(int32){}}
		c.invokeSelectors[nameID] = sel
	}
	sel.Shapes[shapeKey(arity, namedLabels)] = true
}

// markSelector records a non-invoke (getter/setter) selector.
func (c *Compiler) markSelector(nameID int32, kind SelectorKind) {
	if _, ok := c.invokeSelectors[nameID]; !ok {
		c.invokeSelectors[nameID] = &InvokeSelector{NameID: nameID, Shapes: map[string]bool{}, Pending: map[string][]func(int32){}}
	}
	c.invokeSelectors[nameID].Shapes[shapeKey(-int(kind)-1, nil)] = true
}

// MarkIsSelector records `o is T` usage for className (spec §4.10
// "is_selectors") and installs the synthetic `is@T` selector on the
// target class itself, per spec §4.10 "An is T check compiles to a
// dispatch-table entry at a synthetic is@T selector that, if present
// on a class, always returns true."
func (c *Compiler) MarkIsSelector(classNode *ast.Node) {
	id := classNode.NameID
	if _, ok := c.isSelectors[id]; !ok {
		c.isSelectors[id] = &IsSelector{NameID: id}
	}
	classID := c.EnqueueClass(classNode)
	c.classes[classID].IsSelectors[id] = true
}

// EnqueueMethod lazily enqueues method (spec §3 "Every reachable
// method has a unique method_id, assigned on enqueue"). Scope
// resolution and code generation are deferred to Drain, which is what
// spec §4.10's enqueue contract calls "Every method enqueued triggers
// code generation: scope-resolve -> emit."
func (c *Compiler) EnqueueMethod(method *ast.Node, classID int32, enclosing *scope.Scope) int32 {
	if id, ok := c.methodIDByNode[method]; ok {
		return id
	}
	id := int32(len(c.methods))
	c.methodIDByNode[method] = id
	c.methods = append(c.methods, &MethodInfo{Node: method, ClassID: classID})

	c.worklist = append(c.worklist, func() {
		c.compileMethod(int(id), method, enclosing)
	})
	return id
}

// compileMethod runs ScopeResolver then the code-generation visitor
// for one method (spec §4.10 "scope-resolve -> emit").
func (c *Compiler) compileMethod(id int, method *ast.Node, enclosing *scope.Scope) {
	sr := resolve.NewScopeResolver(enclosing)
	sr.Resolve(method.Children, method.A)

	info := c.methods[id]
	paramCount := len(method.Children)

	var classNode *ast.Node
	if info.ClassID != -1 {
		classNode = c.classes[info.ClassID].Node
	}
	// A constructor shares its class's name id; it receives no
	// receiver (invoke-factory pushes only the arguments) and
	// allocates `this` itself. Factory constructors likewise compile
	// as receiverless methods, but with an ordinary body.
	isCtor := classNode != nil && method.NameID == classNode.NameID && !method.IsFactory
	isInstance := info.ClassID != -1 && !method.IsStatic && !method.IsFactory && !isCtor

	gen := &codegen{
		compiler:   c,
		scope:      enclosing,
		classID:    info.ClassID,
		classNode:  classNode,
		isInstance: isInstance,
		isCtor:     isCtor,
		paramCount: paramCount,
		localCount: sr.LocalCount(),
	}

	arity := paramCount
	if isInstance {
		arity++ // the implicit receiver occupies frame slot 0, ahead of every declared parameter
	}
	e := emit.New(arity)
	gen.emitMethodBody(e, method)
	c.methods[id].Code = e.Finish()
	c.methods[id].Compiled = true
}

// StaticSlot returns (allocating if needed) the static-pool slot index
// for a top-level or static field declaration (spec §4.10 "statics:
// Vec<Field>").
func (c *Compiler) StaticSlot(field *ast.Node) int32 {
	if id, ok := c.staticSlotByNode[field]; ok {
		return id
	}
	id := int32(len(c.statics))
	c.statics = append(c.statics, &StaticInfo{Node: field, Initializer: field.A})
	c.staticSlotByNode[field] = id
	return id
}

// PackSelector bit-packs a (name, kind, arity) call-site shape into the
// literal-pool selector id the emitter interns (spec §4.9 "invoke-
// method variants"; spec §3 "Selector"). The packing only needs to be
// injective across one compile, not stable across compiles.
func PackSelector(nameID int32, kind SelectorKind, arity int) int32 {
	return (nameID << 10) | (int32(kind) << 8) | int32(arity&0xff)
}

// Drain runs every pending worklist entry until empty (spec §4.10
// finalization step 1 and step 3: trampolines re-populate the
// worklist, so Drain is called twice).
func (c *Compiler) Drain() {
	for len(c.worklist) > 0 {
		next := c.worklist[0]
		c.worklist = c.worklist[1:]
		next()
	}
}

// Finalize runs the full finalization order from spec §4.10: drain,
// synthesize trampolines, drain again, then returns the compiled
// classes/methods/statics ready for C12 (session) emission. The
// session writer itself performs steps 4-10 (emit classes, constants,
// links, patches, statics, commit, push entry).
func (c *Compiler) Finalize(entryMethodID int32) ([]*ClassInfo, []*MethodInfo, []*StaticInfo, int32) {
	c.Drain()
	c.synthesizeTrampolines()
	c.materializeIsSelectors()
	c.Drain()
	return c.classes, c.methods, c.statics, entryMethodID
}

// materializeIsSelectors turns every class's IsSelectors bookkeeping
// (spec §4.10 "is_selectors") into a real is@T dispatch row, since
// EmitProgram never reads IsSelectors itself — without this step
// MarkIsSelector's bookkeeping never has any runtime effect.
func (c *Compiler) materializeIsSelectors() {
	for classID, info := range c.classes {
		nameIDs := make([]int32, 0, len(info.IsSelectors))
		for nameID := range info.IsSelectors {
			nameIDs = append(nameIDs, nameID)
		}
		sort.Slice(nameIDs, func(i, j int) bool { return nameIDs[i] < nameIDs[j] })
		for _, nameID := range nameIDs {
			stub := &ast.Node{Kind: ast.KindMethod, NameID: nameID, Binding: isSelectorStub{}}
			methodID := c.EnqueueMethod(stub, int32(classID), loader.ClassScope(info.Node))
			info.MethodTable = append(info.MethodTable, MethodTableEntry{
				Selector: Selector{NameID: nameID, Kind: SelectorIs, Arity: 0},
				MethodID: methodID,
			})
		}
	}
}

// synthesizeTrampolines creates, for every (selector, shape) still
// marked but with no directly-enqueued method at that arity, a
// forwarding method that reshuffles arguments to the canonical order
// (spec §4.10 step 2 "synthesize per-class trampolines for every
// (selector, arity, named-set) shape still seen but not directly
// supported"). Classes without any unmatched shape are untouched,
// matching the spec's sparse-by-default dispatch-table philosophy.
func (c *Compiler) synthesizeTrampolines() {
	for _, info := range c.classes {
		classScope := loader.ClassScope(info.Node)

		canonical := map[int32]*MethodTableEntry{} // nameID -> one declared method to reshuffle from
		haveArity := map[int32]map[int]bool{}
		for i := range info.MethodTable {
			sm := &info.MethodTable[i]
			if sm.Selector.Kind != SelectorMethod {
				continue
			}
			if _, ok := canonical[sm.Selector.NameID]; !ok {
				canonical[sm.Selector.NameID] = sm
			}
			if haveArity[sm.Selector.NameID] == nil {
				haveArity[sm.Selector.NameID] = map[int]bool{}
			}
			haveArity[sm.Selector.NameID][sm.Selector.Arity] = true
		}

		names := make([]int32, 0, len(canonical))
		for nameID := range canonical {
			names = append(names, nameID)
		}
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
		for _, nameID := range names {
			entry := canonical[nameID]
			sel, ok := c.invokeSelectors[nameID]
			if !ok {
				continue
			}
			shapes := make([]string, 0, len(sel.Shapes))
			for shape := range sel.Shapes {
				shapes = append(shapes, shape)
			}
			sort.Strings(shapes)
			for _, shape := range shapes {
				arity, namedLabels := decodeShapeKey(shape)
				if arity < 0 || haveArity[nameID][arity] {
					continue // negative arity marks a getter/setter presence, not a call shape
				}
				methodNode := c.methods[entry.MethodID].Node
				syntheticID := c.syntheticShapeName(nameID, arity, namedLabels)
				stubID := c.GetNamedStaticMethodStub(methodNode, syntheticID, arity, namedLabels, classScope)
				if stubID == -1 {
					continue
				}
				info.MethodTable = append(info.MethodTable, MethodTableEntry{
					Selector: Selector{NameID: nameID, Kind: SelectorMethod, Arity: arity},
					MethodID: stubID,
				})
				haveArity[nameID][arity] = true
			}
		}
	}
}

// decodeShapeKey reverses shapeKey, recovering the (arity, named-label-
// set) a call shape was marked under.
func decodeShapeKey(key string) (arity int, namedLabels []int32) {
	parts := strings.Split(key, ":")
	arity, _ = strconv.Atoi(parts[0])
	for _, p := range parts[1:] {
		v, _ := strconv.Atoi(p)
		namedLabels = append(namedLabels, int32(v))
	}
	return arity, namedLabels
}

// NewClosureClass materializes the synthetic class backing a function
// expression or an instance tear-off: fieldCount captured slots plus
// a single `call` method in its dispatch table (spec §4.11 "Function
// expression / local function: synthesizes a class with one field per
// captured variable plus a call method; the class is allocated and
// used as a value").
func (c *Compiler) NewClosureClass(call *ast.Node, fieldCount int, enclosing *scope.Scope) int32 {
	id := int32(len(c.classes))
	node := &ast.Node{Kind: ast.KindClass, NameID: -1}
	info := &ClassInfo{
		Node:           node,
		SuperID:        -1,
		FieldCount:     fieldCount,
		ConstructorMap: map[int32]int32{},
		IsSelectors:    map[int32]bool{},
	}
	c.classes = append(c.classes, info)
	c.classIDByNode[node] = id

	arity := len(call.Children)
	c.markInvokeSelector(c.CallNameID, arity, nil)
	methodID := c.EnqueueMethod(call, id, enclosing)
	info.MethodTable = append(info.MethodTable, MethodTableEntry{
		Selector: Selector{NameID: c.CallNameID, Kind: SelectorMethod, Arity: arity},
		MethodID: methodID,
	})
	return id
}

// tearoffStub marks a tear-off closure class's synthesized `call`
// method: load the bound receiver out of field 0, forward every
// parameter, and invoke the underlying method directly (spec glossary
// "Tear-off: a first-class closure object that, when called, invokes
// the underlying method with a bound receiver").
type tearoffStub struct {
	targetMethodID int32
	arity          int
}

// GetMethodTearOff returns the tear-off object id for method (spec
// §4.10 "method_tearoffs: Map<method_id, class_id_or_const_id>"): a
// synthetic one-field closure class id for an instance method, or a
// constant id wrapping the method reference for a static one.
func (c *Compiler) GetMethodTearOff(methodID int32, isStatic bool) int32 {
	if id, ok := c.methodTearoffs[methodID]; ok {
		return id
	}
	var id int32
	if isStatic {
		id = c.Pool.Integer(int64(methodID))
	} else {
		target := c.methods[methodID]
		arity := len(target.Node.Children)
		call := &ast.Node{
			Kind:    ast.KindMethod,
			NameID:  c.CallNameID,
			Binding: tearoffStub{targetMethodID: methodID, arity: arity},
		}
		for i := 0; i < arity; i++ {
			call.Children = append(call.Children, &ast.Node{
				Kind:   ast.KindVariableDeclaration,
				NameID: c.internName("$" + strconv.Itoa(i)),
			})
		}
		id = c.NewClosureClass(call, 1, nil)
	}
	c.methodTearoffs[methodID] = id
	return id
}

// staticInitMethod returns (synthesizing once per field) the zero-arg
// method the load-static-init bytecode runs the first time an
// uninitialized static slot is read: it evaluates the field's
// initializer expression and returns the value for the VM to store.
func (c *Compiler) staticInitMethod(field *ast.Node, enclosing *scope.Scope) int32 {
	if id, ok := c.staticInitMethods[field]; ok {
		return id
	}
	m := &ast.Node{
		Kind:     ast.KindMethod,
		NameID:   field.NameID,
		Location: field.Location,
		Binding:  staticInitStub{field: field},
	}
	id := c.EnqueueMethod(m, -1, enclosing)
	c.staticInitMethods[field] = id
	return id
}

// staticInitStub marks a synthesized lazy static initializer method.
type staticInitStub struct {
	field *ast.Node
}

// namedForwardStub marks a synthesized argument-reshuffling forwarder:
// its frame holds the caller's actual argument layout, and its body
// loads each of the target's canonical parameters from the matching
// caller slot or from the parameter's default value, then invokes the
// target directly (spec §4.10 "The stub reshuffles the actual stack
// layout to match the callee's canonical parameter order, loading
// defaults for omitted optionals").
type namedForwardStub struct {
	target           *ast.Node
	targetID         int32
	callerPositional int
	callerLabels     []int32 // caller-supplied named labels, in push order
}

// GetNamedStaticMethodStub returns (creating if needed) the method id
// of a forwarding stub that reshuffles a caller's actual argument
// layout into method's canonical parameter order. Returns -1 for a
// shape that cannot be satisfied (too many positional args, a label
// the target does not declare, or too few required arguments), which
// the caller is required to compile as an unresolved-call path
// instead (spec §7 kCompileError).
func (c *Compiler) GetNamedStaticMethodStub(method *ast.Node, syntheticNameID int32, totalArity int, namedNames []int32, s *scope.Scope) int32 {
	targetID, enqueued := c.methodIDByNode[method]
	if !enqueued {
		targetID = c.EnqueueMethod(method, -1, s)
	}
	perMethod, ok := c.namedStaticStubs[targetID]
	if !ok {
		perMethod = map[int32]int32{}
		c.namedStaticStubs[targetID] = perMethod
	}
	if id, ok := perMethod[syntheticNameID]; ok {
		return id
	}

	positional, named := splitParams(method.Children)
	callerPositional := totalArity - len(namedNames)
	if callerPositional > len(positional) {
		return -1
	}
	required := lo.CountBy(positional, func(p *ast.Node) bool { return p.Modifiers == ast.ParamRequired })
	if callerPositional < required {
		return -1
	}
	for _, label := range namedNames {
		if !lo.Contains(namedLabelIDs(named), label) {
			return -1
		}
	}

	stub := &ast.Node{
		Kind:   ast.KindMethod,
		NameID: syntheticNameID,
		Binding: namedForwardStub{
			target:           method,
			targetID:         targetID,
			callerPositional: callerPositional,
			callerLabels:     namedNames,
		},
	}
	for i := 0; i < totalArity; i++ {
		stub.Children = append(stub.Children, &ast.Node{
			Kind:   ast.KindVariableDeclaration,
			NameID: c.internName("$" + strconv.Itoa(i)),
		})
	}
	// The stub must match its target's calling convention: instance-
	// method trampolines receive a pushed receiver, while static
	// methods, factories and constructors are receiverless.
	stubClassID := c.methods[targetID].ClassID
	if stubClassID != -1 {
		owner := c.classes[stubClassID].Node
		if method.IsStatic || method.IsFactory || method.NameID == owner.NameID {
			stubClassID = -1
		}
	}
	id := c.EnqueueMethod(stub, stubClassID, s)
	perMethod[syntheticNameID] = id
	return id
}

func splitParams(params []*ast.Node) (positional, named []*ast.Node) {
	for _, p := range params {
		if p.Modifiers == ast.ParamNamedOptional {
			named = append(named, p)
		} else {
			positional = append(positional, p)
		}
	}
	return
}

func namedLabelIDs(params []*ast.Node) []int32 {
	return lo.Map(params, func(p *ast.Node, _ int) int32 { return p.NameID })
}
