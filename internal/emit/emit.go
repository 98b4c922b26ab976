// Package emit produces per-method bytecode: a virtual-stack-tracked
// instruction stream, a label mechanism with patch-back, and a
// deduplicated literal pool (spec §4.9 "Emitter"). Bytecodes are
// encoded with encoding/binary, following the teacher's vm_encoder.go
// idiom of a LittleEndian-framed instruction stream.
package emit

import (
	"encoding/binary"
)

// Opcode is the one-byte tag every instruction starts with (spec §6.3
// "the VM can iterate by decoding the first byte").
type Opcode byte

const (
	OpLoadLocal0 Opcode = iota
	OpLoadLocal
	OpLoadLocalWide
	OpStoreLocal
	OpStoreLocalWide
	OpLoadLiteral0
	OpLoadLiteral1
	OpLoadLiteral
	OpLoadLiteralWide
	OpLoadStatic
	OpStoreStatic
	OpLoadStaticInit
	OpLoadBoxed
	OpStoreBoxed
	OpAllocateBoxed
	OpAllocate
	OpInvokeMethod
	OpInvokeAdd
	OpInvokeSub
	OpInvokeLt
	OpInvokeLe
	OpInvokeGt
	OpInvokeGe
	OpInvokeEq
	OpInvokeStatic
	OpInvokeFactory
	OpInvokeNative
	OpInvokeNativeYield
	OpBranch
	OpBranchIfTrue
	OpBranchIfFalse
	OpBranchWide
	OpBranchIfTrueWide
	OpBranchIfFalseWide
	OpSubroutineCall
	OpSubroutineReturn
	OpPop
	OpDup
	OpReturn
	OpProcessYield
	OpCoroutineChange
	OpIdentical
	OpIdenticalNonNumeric
	OpEnterNoSuchMethod
	OpExitNoSuchMethod
	OpNegate
	OpThrow
	OpMethodEnd
)

// LiteralKind discriminates the three things a literal-pool slot can
// reference (spec §4.9 "literal ids are packed (id << 2) | kind").
type LiteralKind uint8

const (
	LiteralMethod LiteralKind = iota
	LiteralClass
	LiteralConstant
)

// PackLiteral packs id and kind the way the bytecode stream stores
// literal-pool references.
func PackLiteral(id int32, kind LiteralKind) int32 { return (id << 2) | int32(kind) }

// UnpackLiteral reverses PackLiteral.
func UnpackLiteral(packed int32) (id int32, kind LiteralKind) {
	return packed >> 2, LiteralKind(packed & 0x3)
}

// Label is a forward or backward branch target (spec §4.9 "Labels:
// {position}; when bound, every outstanding short branch referencing
// the label is patched; unbound uses are tracked in a small array
// inline in the label").
type Label struct {
	position int
	bound    bool
	uses     []labelUse
}

type labelUse struct {
	patchAt int // byte offset of the 4-byte operand to patch
	opAt    int // byte offset of the opcode itself (for wide/short choice diagnostics)
}

// TryRange records one try block's byte extent for the VM's exception
// dispatch table (spec §4.9 "Frame ranges").
type TryRange struct {
	Start, End int
	HandlerPC  int
}

// Code is the finished per-method record the worklist compiler hands
// to the session writer (spec §4.9 "Produces a Code{arity, bytes,
// literal_ids} record per method").
type Code struct {
	Arity      int
	FrameSize  int
	Bytes      []byte
	LiteralIDs []int32 // in literal-pool index order
	TryRanges  []TryRange
}

// Emitter assembles one method's Code, tracking the virtual stack's
// high-water mark as it goes (spec §4.9 "Stack-size tracking").
type Emitter struct {
	buf   []byte
	arity int

	stackDepth int
	highWater  int
	reserved   int

	literalIDs  []int32
	literalByID map[int32]int32 // packed(id,kind) -> literal-pool index, deduplicates (spec §4.9)

	tryRanges  []TryRange
	openTries  []int // stack of byte offsets where an open try block started
}

// New creates an Emitter for a method taking arity positional
// parameters.
func New(arity int) *Emitter {
	return &Emitter{arity: arity, literalByID: map[int32]int32{}}
}

// StackDepth returns the emitter's current virtual stack depth.
func (e *Emitter) StackDepth() int { return e.stackDepth }

// ReserveLocals sets how many frame slots past the arguments the
// method's declared locals (and the code generator's scratch slots)
// occupy. The slots are addressed by LoadLocal/StoreLocal but never
// counted by the virtual operand stack, so the return-balance
// invariant stays intact; Finish folds the reservation into
// Code.FrameSize. Callable at any point before
// Finish; the largest reservation wins.
func (e *Emitter) ReserveLocals(n int) {
	if n > e.reserved {
		e.reserved = n
	}
}

// SetStackDepth overrides the tracked depth, used by the code
// generator when it starts emitting an alternate control-flow arm
// (e.g. a conditional expression's else-branch) whose real runtime
// depth differs from the linear running count the emitter otherwise
// maintains by simply replaying instructions in textual order.
func (e *Emitter) SetStackDepth(d int) { e.stackDepth = d }

// adjust applies delta to the virtual stack depth and updates the
// high-water mark, panicking on underflow — a genuine emitter bug,
// never a user-facing condition (spec §8 "Emitter stack discipline").
func (e *Emitter) adjust(delta int) {
	e.stackDepth += delta
	if e.stackDepth < 0 {
		panic("emit: virtual stack underflow")
	}
	if e.stackDepth > e.highWater {
		e.highWater = e.stackDepth
	}
}

func (e *Emitter) emitByte(op Opcode) int {
	pos := len(e.buf)
	e.buf = append(e.buf, byte(op))
	return pos
}

func (e *Emitter) emitUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// internLiteral deduplicates (id, kind) against the per-method literal
// pool, returning its compact pool index (spec §4.9 "a per-emitter
// id-map deduplicates").
func (e *Emitter) internLiteral(id int32, kind LiteralKind) int32 {
	packed := PackLiteral(id, kind)
	if idx, ok := e.literalByID[packed]; ok {
		return idx
	}
	idx := int32(len(e.literalIDs))
	e.literalIDs = append(e.literalIDs, packed)
	e.literalByID[packed] = idx
	return idx
}

// NewLabel creates an unbound label.
func (e *Emitter) NewLabel() *Label { return &Label{} }

// BindLabel fixes label at the emitter's current position, patching
// every outstanding branch that referenced it (spec §4.9).
func (e *Emitter) BindLabel(l *Label) {
	l.position = len(e.buf)
	l.bound = true
	for _, use := range l.uses {
		binary.LittleEndian.PutUint32(e.buf[use.patchAt:], uint32(int32(l.position-use.opAt)))
	}
	l.uses = nil
}

// branchTo emits op followed by a 4-byte relative offset to l,
// patched immediately if l is already bound or queued on l otherwise.
func (e *Emitter) branchTo(op Opcode, l *Label) {
	opAt := e.emitByte(op)
	patchAt := len(e.buf)
	if l.bound {
		e.emitUint32(uint32(int32(l.position - opAt)))
		return
	}
	e.emitUint32(0)
	l.uses = append(l.uses, labelUse{patchAt: patchAt, opAt: opAt})
}

// Branch emits an unconditional jump to l.
func (e *Emitter) Branch(l *Label) { e.branchTo(OpBranch, l) }

// BranchIfTrue pops a boolean and jumps to l if it was true.
func (e *Emitter) BranchIfTrue(l *Label) {
	e.adjust(-1)
	e.branchTo(OpBranchIfTrue, l)
}

// BranchIfFalse pops a boolean and jumps to l if it was false.
func (e *Emitter) BranchIfFalse(l *Label) {
	e.adjust(-1)
	e.branchTo(OpBranchIfFalse, l)
}

// LoadLocal pushes local slot index.
func (e *Emitter) LoadLocal(index int) {
	if index < 16 {
		e.emitByte(OpLoadLocal0)
		e.buf = append(e.buf, byte(index))
	} else {
		e.emitByte(OpLoadLocalWide)
		e.emitUint32(uint32(index))
	}
	e.adjust(1)
}

// StoreLocal pops a value and writes it into local-frame slot index.
// Not named explicitly in spec §4.9's bytecode family enumeration
// (which lists only the load-local family), but required for plain
// (non-captured) local assignment; added symmetric to StoreStatic and
// StoreBoxed.
func (e *Emitter) StoreLocal(index int) {
	if index < 1<<8 {
		e.emitByte(OpStoreLocal)
		e.buf = append(e.buf, byte(index))
	} else {
		e.emitByte(OpStoreLocalWide)
		e.emitUint32(uint32(index))
	}
	e.adjust(-1)
}

// LoadBoxed pushes the value currently held by a boxed (captured)
// local cell at index (spec §9 "allocate-boxed + load-boxed/store-
// boxed vs. plain locals").
func (e *Emitter) LoadBoxed(index int) {
	e.emitByte(OpLoadBoxed)
	e.emitUint32(uint32(index))
	e.adjust(1)
}

// StoreBoxed pops a value and stores it into the boxed cell at index.
func (e *Emitter) StoreBoxed(index int) {
	e.emitByte(OpStoreBoxed)
	e.emitUint32(uint32(index))
	e.adjust(-1)
}

// AllocateBoxed pops an initial value and pushes a new boxed cell
// wrapping it.
func (e *Emitter) AllocateBoxed() {
	e.emitByte(OpAllocateBoxed)
}

// LoadLiteralNull pushes the null singleton; the interpreter's own
// load-literal-0 slot is reserved for it by convention (spec §4.9
// bytecode family list: "load-literal-0/1").
func (e *Emitter) LoadLiteralNull() {
	e.emitByte(OpLoadLiteral0)
	e.adjust(1)
}

// LoadLiteralBool pushes true (load-literal-1) or false.
func (e *Emitter) LoadLiteralBool(v bool) {
	if v {
		e.emitByte(OpLoadLiteral1)
	} else {
		e.emitByte(OpLoadLiteral0)
	}
	e.adjust(1)
}

// LoadConstant pushes constant-pool entry id (spec §4.9 "load-literal
// / load-literal-wide").
func (e *Emitter) LoadConstant(id int32) {
	idx := e.internLiteral(id, LiteralConstant)
	e.emitLiteralLoad(idx)
	e.adjust(1)
}

func (e *Emitter) emitLiteralLoad(idx int32) {
	if idx < 1<<8 {
		e.emitByte(OpLoadLiteral)
		e.buf = append(e.buf, byte(idx))
	} else {
		e.emitByte(OpLoadLiteralWide)
		e.emitUint32(uint32(idx))
	}
}

// LoadStatic pushes the value of static-pool slot id.
func (e *Emitter) LoadStatic(id int32) {
	e.emitByte(OpLoadStatic)
	e.emitUint32(uint32(id))
	e.adjust(1)
}

// LoadStaticInit pushes the value of static-pool slot id, running
// initMethodID (a zero-arg method evaluating the field's initializer)
// the first time the slot is read if it is still unset (spec §4.9
// "load-static-init"). Every static slot starts null (session's
// installStatics); a field with a non-trivial initializer is only
// ever read through this instruction rather than plain LoadStatic.
func (e *Emitter) LoadStaticInit(id int32, initMethodID int32) {
	e.emitByte(OpLoadStaticInit)
	e.emitUint32(uint32(id))
	idx := e.internLiteral(initMethodID, LiteralMethod)
	e.emitUint32(uint32(idx))
	e.adjust(1)
}

// StoreStatic pops a value and stores it into static-pool slot id.
func (e *Emitter) StoreStatic(id int32) {
	e.emitByte(OpStoreStatic)
	e.emitUint32(uint32(id))
	e.adjust(-1)
}

// Pop discards the top of stack.
func (e *Emitter) Pop() {
	e.emitByte(OpPop)
	e.adjust(-1)
}

// Dup duplicates the top of stack.
func (e *Emitter) Dup() {
	e.emitByte(OpDup)
	e.adjust(1)
}

// Negate replaces the boolean on top of the stack with its negation,
// in place.
func (e *Emitter) Negate() { e.emitByte(OpNegate) }

// Identical pops two values and pushes the boolean result of
// reference/numeric identity (spec §4.11 "== with a null literal
// compiles to identical").
func (e *Emitter) Identical(nonNumeric bool) {
	if nonNumeric {
		e.emitByte(OpIdenticalNonNumeric)
	} else {
		e.emitByte(OpIdentical)
	}
	e.adjust(-1)
}

// specializedInvoke maps the emitter's fast-path arithmetic/comparison
// selectors (spec §4.9 "invoke-method variants (including specialized
// + − < ≤ > ≥ ==)") to their opcode.
var specializedInvoke = map[string]Opcode{
	"+": OpInvokeAdd, "-": OpInvokeSub, "<": OpInvokeLt, "<=": OpInvokeLe,
	">": OpInvokeGt, ">=": OpInvokeGe, "==": OpInvokeEq,
}

// InvokeMethod pops a receiver and argCount arguments and pushes the
// call's result. If selector names a specialized binary operator, the
// fast opcode is used instead of the generic dispatch opcode. The
// packed (name, kind, arity) selector rides inline as the operand
// rather than through the literal pool: the VM resolves it against
// the receiver's method table at the call site (spec §3 "Dispatch
// table... each cell is a {offset, code, target} triple so the VM can
// verify selector match at the call site"), so it is a dispatch key,
// not a reference to a pushed object.
func (e *Emitter) InvokeMethod(selector string, argCount int, packedSelector int32) {
	if op, ok := specializedInvoke[selector]; ok && argCount == 1 {
		e.emitByte(op)
	} else {
		e.emitByte(OpInvokeMethod)
		e.emitUint32(uint32(packedSelector))
	}
	e.adjust(-(argCount + 1) + 1) // pop receiver+args, push result
}

// InvokeStatic pops argCount arguments and invokes the literal-pool
// method directly (no receiver, spec §4.9 "invoke-static").
func (e *Emitter) InvokeStatic(methodID int32, argCount int) {
	e.emitByte(OpInvokeStatic)
	idx := e.internLiteral(methodID, LiteralMethod)
	e.emitUint32(uint32(idx))
	e.adjust(-argCount + 1)
}

// InvokeNative pops a receiver and argCount arguments and pushes the
// result of a VM-native operation identified by nativeID (spec §6.3's
// opcode family includes invoke-native for operations with no AST
// body of their own, e.g. the shared field accessor stubs the
// compiler synthesizes per field index).
func (e *Emitter) InvokeNative(nativeID int32, argCount int) {
	e.emitByte(OpInvokeNative)
	e.buf = append(e.buf, byte(argCount))
	e.emitUint32(uint32(nativeID))
	e.adjust(-(argCount + 1) + 1)
}

// InvokeFactory pops argCount arguments and allocates+constructs via
// the factory method; the class is a literal-pool operand, not a stack
// value (spec §4.11 "the non-
// const form enqueues the constructor and emits an invoke-factory").
func (e *Emitter) InvokeFactory(classID int32, methodID int32, argCount int) {
	e.emitByte(OpInvokeFactory)
	cidx := e.internLiteral(classID, LiteralClass)
	midx := e.internLiteral(methodID, LiteralMethod)
	e.emitUint32(uint32(cidx))
	e.emitUint32(uint32(midx))
	e.adjust(-argCount + 1)
}

// Allocate pops fieldCount field values and pushes a new instance of
// the class named by its literal-pool operand.
func (e *Emitter) Allocate(classID int32, fieldCount int) {
	e.emitByte(OpAllocate)
	idx := e.internLiteral(classID, LiteralClass)
	e.emitUint32(uint32(idx))
	e.adjust(-fieldCount + 1)
}

// SubroutineCall and SubroutineReturn implement try/finally unwinding
// via a nested call into the finally block's byte range (spec §4.9
// "subroutine-call / subroutine-return for try-finally unwinding").
func (e *Emitter) SubroutineCall(l *Label) { e.branchTo(OpSubroutineCall, l) }
func (e *Emitter) SubroutineReturn()       { e.emitByte(OpSubroutineReturn) }

// Pos returns the current byte offset, used by the code generator to
// record a catch handler's entry point for ExitTry.
func (e *Emitter) Pos() int { return len(e.buf) }

// EnterTry records the start of a try block's byte range.
func (e *Emitter) EnterTry() {
	e.openTries = append(e.openTries, len(e.buf))
}

// ExitTry closes the most recently opened try block, recording its
// byte extent and catch-handler entry point (spec §4.9 "Frame
// ranges").
func (e *Emitter) ExitTry(handlerPC int) {
	start := e.openTries[len(e.openTries)-1]
	e.openTries = e.openTries[:len(e.openTries)-1]
	e.tryRanges = append(e.tryRanges, TryRange{Start: start, End: len(e.buf), HandlerPC: handlerPC})
}

// Throw pops the exception value and raises it.
func (e *Emitter) Throw() {
	e.emitByte(OpThrow)
	e.adjust(-1)
}

// Return emits the method's terminal return: the virtual stack must
// hold exactly one value (spec §8 "the simulated stack depth at
// return equals 1").
func (e *Emitter) Return() {
	if e.stackDepth != 1 {
		panic("emit: return requires exactly one value on the virtual stack")
	}
	e.emitByte(OpReturn)
	e.emitUint32(uint32(e.reserved + e.highWater))
	e.emitUint32(uint32(e.arity))
}

// Finish appends the MethodEnd trailer and returns the finished Code
// (spec §4.9 "method-end as terminator carrying frame byte-offset and
// try-range table"; spec §8 "at method_end, the recorded frame size
// equals the observed high-water mark").
func (e *Emitter) Finish() Code {
	e.emitByte(OpMethodEnd)
	e.emitUint32(uint32(len(e.buf)))
	e.emitUint32(uint32(len(e.tryRanges)))
	for _, tr := range e.tryRanges {
		e.emitUint32(uint32(tr.Start))
		e.emitUint32(uint32(tr.End))
		e.emitUint32(uint32(tr.HandlerPC))
	}
	return Code{
		Arity:      e.arity,
		FrameSize:  e.reserved + e.highWater,
		Bytes:      e.buf,
		LiteralIDs: e.literalIDs,
		TryRanges:  e.tryRanges,
	}
}
