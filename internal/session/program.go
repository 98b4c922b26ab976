package session

import (
	"sort"

	"github.com/corelang/corec/internal/compiler"
	"github.com/corelang/corec/internal/constpool"
	"github.com/corelang/corec/internal/emit"
)

// EmitProgram drives spec §4.10's finalization steps 4-10 against a
// Compiler that has already finished steps 1-3 (Compiler.Finalize
// drains the worklist, synthesizes trampolines, and drains again,
// returning exactly the four slices this function consumes). It
// writes every entity and every queued Change* op into w, in the
// enqueue order spec §3's "Global invariants" require for
// deterministic class/method/constant ids, and closes the transaction
// with a single CommitChanges before pushing the entry point.
func EmitProgram(
	w *Writer,
	comp *compiler.Compiler,
	classes []*compiler.ClassInfo,
	methods []*compiler.MethodInfo,
	statics []*compiler.StaticInfo,
	pool *constpool.Pool,
	entryMethodID int32,
) {
	w.NewMap(ClassMap)
	w.NewMap(MethodMap)
	w.NewMap(ConstantMap)

	emitMethods(w, methods)
	emitClasses(w, classes)
	emitConstants(w, comp, pool)

	batch := w.BeginChanges()
	linkSupers(w, batch, classes)
	installMethodTables(w, batch, classes)
	patchMethodLiterals(w, batch, methods)
	installStatics(w, batch, statics)
	batch.Commit()

	entryArity := int32(0)
	if int(entryMethodID) < len(methods) {
		entryArity = int32(methods[entryMethodID].Code.Arity)
	}
	w.PushEntryPoint(entryArity, int64(entryMethodID))
}

// emitMethods pushes every method as a function object keyed by its
// method_id. Literal-pool slots are pushed as null placeholders and
// patched in patchMethodLiterals once every class/method/constant
// object exists (spec §4.9 "patched up to absolute references during
// finalization"): a method's own literal pool may reference another
// method not yet pushed (mutual recursion, forward calls), so there
// is no safe order that lets literals be resolved directly here.
func emitMethods(w *Writer, methods []*compiler.MethodInfo) {
	for id, info := range methods {
		code := info.Code
		for range code.LiteralIDs {
			w.PushNull()
		}
		w.PushNewFunction(int32(code.Arity), int32(len(code.LiteralIDs)), code.Bytes)
		w.PopToMap(MethodMap, int64(id))
	}
}

// emitClasses pushes every class with its total instance field count
// (own fields plus every inherited field: spec §3 "a class's
// descendants occupy [class_id, child_id)", and field offsets
// continue from the super's last field, so FieldOffset+FieldCount is
// the slot count the VM must allocate per instance). Method tables and
// super links are installed later as Change ops, once every class
// object exists and can be referenced regardless of enqueue order.
func emitClasses(w *Writer, classes []*compiler.ClassInfo) {
	for id, info := range classes {
		total := int32(info.FieldOffset + info.FieldCount)
		w.PushNewClass(total)
		w.PopToMap(ClassMap, int64(id))
	}
}

// emitConstants pushes every pool entry in ascending id order. This
// order is safe because the pool's own interning always assigns a
// compound constant (list/map/instance) a higher id than every
// constant it references (spec §4.8 dedup tries are keyed by already-
// interned element ids), so by the time entry id N is emitted every
// id it can reference is already in ConstantMap.
func emitConstants(w *Writer, comp *compiler.Compiler, pool *constpool.Pool) {
	for id := 0; id < pool.Len(); id++ {
		c := pool.Get(int32(id))
		switch c.Tag {
		case constpool.TagNull:
			w.PushNull()
		case constpool.TagTrue:
			w.PushBoolean(true)
		case constpool.TagFalse:
			w.PushBoolean(false)
		case constpool.TagInteger:
			w.PushNewInteger(c.Int)
		case constpool.TagDouble:
			w.PushNewDouble(c.Double)
		case constpool.TagString:
			w.PushNewString(c.Str)
		case constpool.TagList:
			for _, elemID := range c.Fields {
				w.PushFromMap(ConstantMap, int64(elemID))
			}
			w.PushConstantList(int32(len(c.Fields)))
		case constpool.TagMap:
			for _, fieldID := range c.Fields {
				w.PushFromMap(ConstantMap, int64(fieldID))
			}
			w.PushConstantMap(int32(len(c.Fields) / 2))
		case constpool.TagInstance:
			classID, _ := comp.ClassID(c.Class) // enqueued by constpool.Interpreter before folding, per spec §4.8 "const constructor invocation"
			w.PushFromMap(ClassMap, int64(classID))
			for _, fieldID := range c.Fields {
				w.PushFromMap(ConstantMap, int64(fieldID))
			}
			w.PushNewInstance()
		}
		w.PopToMap(ConstantMap, int64(id))
	}
}

// linkSupers queues one ChangeSuperClass per class with a super (spec
// §4.10 finalization step 6).
func linkSupers(w *Writer, batch *ChangeBatch, classes []*compiler.ClassInfo) {
	for id, info := range classes {
		if info.SuperID < 0 {
			continue
		}
		w.PushFromMap(ClassMap, int64(id))
		w.PushFromMap(ClassMap, int64(info.SuperID))
		batch.ChangeSuperClass()
	}
}

// installMethodTables queues one ChangeMethodTable per class that has
// at least one dispatch row, matching the sparse-during-construction
// philosophy of spec §9 ("flatten to a dense matrix at session-emit
// time" happens on the VM side, after this op).
func installMethodTables(w *Writer, batch *ChangeBatch, classes []*compiler.ClassInfo) {
	for id, info := range classes {
		if len(info.MethodTable) == 0 {
			continue
		}
		// Sorted by packed selector so the VM can binary-search rows
		// (spec §3 "Method table is sorted by selector at emit time").
		sort.SliceStable(info.MethodTable, func(i, j int) bool {
			a, b := info.MethodTable[i].Selector, info.MethodTable[j].Selector
			return compiler.PackSelector(a.NameID, a.Kind, a.Arity) < compiler.PackSelector(b.NameID, b.Kind, b.Arity)
		})
		w.PushFromMap(ClassMap, int64(id))
		for _, sm := range info.MethodTable {
			selector := compiler.PackSelector(sm.Selector.NameID, sm.Selector.Kind, sm.Selector.Arity)
			w.PushNewInteger(int64(selector))
			w.PushFromMap(MethodMap, int64(sm.MethodID))
		}
		batch.ChangeMethodTable(int32(len(info.MethodTable)))
	}
}

// patchMethodLiterals queues one ChangeMethodLiteral per literal-pool
// slot, resolving each packed (id, kind) literal to the map it belongs
// in (spec §4.9 "literal ids are packed (id << 2) | kind").
func patchMethodLiterals(w *Writer, batch *ChangeBatch, methods []*compiler.MethodInfo) {
	for methodID, info := range methods {
		for slot, packed := range info.Code.LiteralIDs {
			id, kind := emit.UnpackLiteral(packed)
			var target MapID
			switch kind {
			case emit.LiteralMethod:
				target = MethodMap
			case emit.LiteralClass:
				target = ClassMap
			case emit.LiteralConstant:
				target = ConstantMap
			}
			w.PushFromMap(MethodMap, int64(methodID))
			w.PushFromMap(target, int64(id))
			batch.ChangeMethodLiteral(int32(slot))
		}
	}
}

// installStatics queues a single ChangeStatics installing the whole
// statics table. Every slot starts null: a static with a non-trivial
// initializer is lazily run via the load-static-init bytecode family
// (spec §4.9) the first time it is read, not eagerly folded here — the
// initializer expression is arbitrary code, not necessarily const.
func installStatics(w *Writer, batch *ChangeBatch, statics []*compiler.StaticInfo) {
	for range statics {
		w.PushNull()
	}
	batch.ChangeStatics(int32(len(statics)))
}
