// Package session implements the session protocol (spec §6.2, §4.10's
// C12): an ordered, length-prefixed binary stream of opcodes that
// reconstructs a compiled program inside a separate VM process. The
// core never observes a response from the other end of this stream
// (spec §5 "from the core's perspective this is an opaque, ordered
// byte stream"), so Writer is a pure encoder: every op appends bytes,
// nothing blocks or reads back.
//
// Framing follows the teacher's vm_encoder.go Encode idiom directly:
// accumulate into a growing []byte with encoding/binary's
// Append-style helpers rather than writing through a buffered
// io.Writer per field, and flush the whole buffer at the end.
package session

import (
	"encoding/binary"
	"io"
	"math"
)

// Opcode is the one-byte tag that starts every frame (spec §6.2 table).
type Opcode byte

const (
	OpNewMap Opcode = iota
	OpPushFromMap
	OpPopToMap
	OpDup
	OpPushNull
	OpPushBoolean
	OpPushNewInteger
	OpPushNewDouble
	OpPushNewString
	OpPushNewInstance
	OpPushNewArray
	OpPushNewFunction
	OpPushNewInitializer
	OpPushNewClass
	OpPushBuiltinClass
	OpPushConstantList
	OpPushConstantMap
	OpChangeSuperClass
	OpChangeMethodTable
	OpChangeMethodLiteral
	OpChangeStatics
	OpCommitChanges
	OpPushEntryPoint
)

// MapID names one of the three identity maps the session keeps on the
// VM side (spec §6.2 "Three identity maps are used: kClassId,
// kMethodId, kConstantId. The core emits entities into maps in enqueue
// order and references them later by id").
type MapID uint32

const (
	ClassMap MapID = iota
	MethodMap
	ConstantMap
)

// Writer accumulates an opcode stream. The zero value is ready to use.
type Writer struct {
	buf []byte
}

// New creates an empty Writer.
func New() *Writer { return &Writer{} }

// Bytes returns the accumulated stream so far.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteTo flushes the accumulated stream to out, matching io.WriterTo
// so a Writer can be handed straight to the socket the VM listens on
// (spec §5 "the protocol writer streams to a socket").
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	n, err := out.Write(w.buf)
	return int64(n), err
}

func (w *Writer) tag(op Opcode)        { w.buf = append(w.buf, byte(op)) }
func (w *Writer) u32(v uint32)         { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *Writer) u64(v uint64)         { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *Writer) bytesField(b []byte)  { w.u32(uint32(len(b))); w.buf = append(w.buf, b...) }

// NewMap allocates identity map index (spec "NewMap(index) | 4B |
// Allocate id-indexed map #index").
func (w *Writer) NewMap(index MapID) {
	w.tag(OpNewMap)
	w.u32(uint32(index))
}

// PushFromMap pushes the object stored under id in map index.
func (w *Writer) PushFromMap(index MapID, id int64) {
	w.tag(OpPushFromMap)
	w.u32(uint32(index))
	w.u64(uint64(id))
}

// PopToMap pops the top of stack and stores it under id in map index.
func (w *Writer) PopToMap(index MapID, id int64) {
	w.tag(OpPopToMap)
	w.u32(uint32(index))
	w.u64(uint64(id))
}

// Dup duplicates the top of stack.
func (w *Writer) Dup() { w.tag(OpDup) }

// PushNull pushes the null singleton.
func (w *Writer) PushNull() { w.tag(OpPushNull) }

// PushBoolean pushes the true or false singleton.
func (w *Writer) PushBoolean(b bool) {
	w.tag(OpPushBoolean)
	if b {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// PushNewInteger allocates and pushes a fresh integer object.
func (w *Writer) PushNewInteger(v int64) {
	w.tag(OpPushNewInteger)
	w.u64(uint64(v))
}

// PushNewDouble allocates and pushes a fresh double object.
func (w *Writer) PushNewDouble(v float64) {
	w.tag(OpPushNewDouble)
	w.u64(math.Float64bits(v))
}

// PushNewString allocates and pushes a fresh string object.
func (w *Writer) PushNewString(s string) {
	w.tag(OpPushNewString)
	w.bytesField([]byte(s))
}

// PushNewInstance pops the instance's field values (pushed in
// declaration order immediately before this call) then the class
// (pushed before the fields), allocates the instance, and pushes it
// (spec "Pop N field values then class, allocate instance, push"). N
// is not carried in the payload: the VM already knows it from the
// class object popped last, the same way PushNewClass(n_fields) fixed
// the class's field count when it was created.
func (w *Writer) PushNewInstance() { w.tag(OpPushNewInstance) }

// PushNewArray pops length entries (pushed in order) and pushes the
// resulting array.
func (w *Writer) PushNewArray(length int32) {
	w.tag(OpPushNewArray)
	w.u32(uint32(length))
}

// PushNewFunction pops nLiterals placeholder entries (pushed
// immediately before this call, one per literal-pool slot; patched
// later via ChangeMethodLiteral once every target object exists) then
// allocates and pushes a function object running code.
func (w *Writer) PushNewFunction(arity, nLiterals int32, code []byte) {
	w.tag(OpPushNewFunction)
	w.u32(uint32(arity))
	w.u32(uint32(nLiterals))
	w.bytesField(code)
}

// PushNewInitializer pops a function and wraps it as a lazy static
// initializer.
func (w *Writer) PushNewInitializer() { w.tag(OpPushNewInitializer) }

// PushNewClass allocates a class with nFields instance field slots
// and pushes it. Its super link, method table and tear-off wiring
// follow later as Change* ops once every class/method object exists.
func (w *Writer) PushNewClass(nFields int32) {
	w.tag(OpPushNewClass)
	w.u32(uint32(nFields))
}

// PushBuiltinClass allocates a VM-native class identified by nameID
// (a canonical identifier id, not a string, so the core never guesses
// at VM-side layout) with nFields fields and pushes it. This repo's
// class model has no notion of a VM-native class distinct from a
// regular core-library class (spec §4.6's implicit core-library
// import covers Object/bool/int/List/... as ordinary library classes,
// per DESIGN.md), so EmitProgram never calls this — it exists because
// the wire protocol names it and a hand-written session consumer may
// still need to emit it directly.
func (w *Writer) PushBuiltinClass(nameID, nFields int32) {
	w.tag(OpPushBuiltinClass)
	w.u32(uint32(nameID))
	w.u32(uint32(nFields))
}

// PushConstantList pops n entries (pushed in order) and builds a
// const list.
func (w *Writer) PushConstantList(n int32) {
	w.tag(OpPushConstantList)
	w.u32(uint32(n))
}

// PushConstantMap pops n interleaved (key, value) pairs and builds a
// const map.
func (w *Writer) PushConstantMap(n int32) {
	w.tag(OpPushConstantMap)
	w.u32(uint32(n))
}

// PushEntryPoint pushes the compiled program's entry arity and method
// id. Not named in spec §6.2's opcode table (which only specifies the
// Change*/Commit transaction machinery), but required by spec §6.1
// ("terminated by a CommitChanges(N) followed by a push of main's
// arity and entry id") to give that closing push a concrete frame.
func (w *Writer) PushEntryPoint(arity int32, methodID int64) {
	w.tag(OpPushEntryPoint)
	w.u32(uint32(arity))
	w.u64(uint64(methodID))
}

// ChangeBatch accumulates the queued Change* ops of one atomic
// transaction and counts them, so Commit always flushes the accurate
// count spec §9 "Session protocol as an atomic transaction" demands
// ("implementations must buffer the count accurately and must not
// emit CommitChanges(N) until all referenced objects have been pushed
// and popped to their map slots"). Every Change* method must be
// preceded by the stack pushes its doc comment describes; the batch
// itself does not validate stack shape, only counts ops.
type ChangeBatch struct {
	w     *Writer
	count int32
}

// BeginChanges starts a new transaction against w.
func (w *Writer) BeginChanges() *ChangeBatch { return &ChangeBatch{w: w} }

// ChangeSuperClass pops super then class (pushed class-first,
// super-second so super ends on top) and links them.
func (b *ChangeBatch) ChangeSuperClass() {
	b.w.tag(OpChangeSuperClass)
	b.count++
}

// ChangeMethodTable pops 2n entries (alternating selector int, method
// object, pushed in that order for each of the n rows) and installs
// them as the class's method table. The class itself must already be
// the implicit receiver the VM tracks from the most recent matching
// PushFromMap(ClassMap, ...) — callers push the class, then the 2n
// entries, in the same order this method expects to pop them.
func (b *ChangeBatch) ChangeMethodTable(n int32) {
	b.w.tag(OpChangeMethodTable)
	b.w.u32(uint32(n))
	b.count++
}

// ChangeMethodLiteral pops target then method (pushed method-first)
// and patches method's literal slot index to point at target.
func (b *ChangeBatch) ChangeMethodLiteral(index int32) {
	b.w.tag(OpChangeMethodLiteral)
	b.w.u32(uint32(index))
	b.count++
}

// ChangeStatics pops n entries (pushed in slot order) and installs
// them as the statics table.
func (b *ChangeBatch) ChangeStatics(n int32) {
	b.w.tag(OpChangeStatics)
	b.w.u32(uint32(n))
	b.count++
}

// Commit emits CommitChanges(N) with N equal to every Change* op
// issued against this batch, atomically applying them.
func (b *ChangeBatch) Commit() {
	b.w.tag(OpCommitChanges)
	b.w.u32(uint32(b.count))
}
