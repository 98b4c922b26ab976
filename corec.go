// Package corec wires the four subsystems spec §1 calls THE CORE
// (zone/intern tables, scanner/parser, scope resolution and constant
// folding, bytecode emission and the worklist linker) into the single
// entry point an external driver calls: source in, session opcode
// stream out (spec §6.1).
package corec

import (
	"fmt"
	"io"
	"os"

	"github.com/corelang/corec/internal/ast"
	"github.com/corelang/corec/internal/compiler"
	"github.com/corelang/corec/internal/constpool"
	"github.com/corelang/corec/internal/loader"
	"github.com/corelang/corec/internal/parser"
	"github.com/corelang/corec/internal/scanner"
	"github.com/corelang/corec/internal/session"
	"github.com/corelang/corec/internal/source"
	"github.com/corelang/corec/internal/zone"
)

// Compile loads rootURI and its whole import/part/export graph from
// the real filesystem (relative imports resolved the way
// loader.RelativeContentLoader does) and writes the resulting session
// opcode stream to out. It is CompileWithContent fixed to disk I/O,
// the way the teacher's GrammarFromFile is GrammarFromBytes fixed to
// NewRelativeImportLoader. A failed compile is rendered to stderr as
// "<path>: <message>" before the error is returned, so a driver that
// exits on error needs no printing of its own.
func Compile(rootURI string, cfg *Config, out io.Writer) error {
	err := CompileWithContent(rootURI, cfg, loader.RelativeContentLoader{}, out)
	if err != nil {
		compiler.Diagnostics{Out: os.Stderr}.Report(err)
	}
	return err
}

// CompileWithContent is Compile with the file-resolution strategy
// injected, so callers (and tests) can substitute an in-memory
// ContentLoader without touching disk — mirroring the teacher's
// GrammarFromBytes/NewImportResolver split between a fixed disk-backed
// entry point and a content-agnostic one underneath it.
//
// It loads rootURI and its whole import/part/export graph (spec §6.1
// "Input: a root URI plus a library-root directory"), drives the
// worklist compiler to a fixed point, and writes the resulting session
// opcode stream to out (spec §6.1 "Output: a stream of session
// opcodes... terminated by a CommitChanges(N) followed by a push of
// main's arity and entry id").
//
// Every transient allocation for this call lives in one zone.Arena
// and one scanner.IdentifierTable; both are discarded when
// CompileWithContent returns (spec §5 "Memory discipline: all
// transient allocations are in the zone... On compile completion the
// zone is dropped").
func CompileWithContent(rootURI string, cfg *Config, content loader.ContentLoader, out io.Writer) error {
	opts := CompileOptionsFromConfig(cfg)

	table := source.NewTable()
	idents := scanner.NewIdentifierTable()
	arena := zone.NewArena[ast.Node]()
	p := parser.New(table, idents, arena)
	ld := loader.New(p, content, table, idents, opts.CoreLibraryURI, opts.SystemLibraryURI)

	rootLib, err := ld.Load(rootURI)
	if err != nil {
		return err
	}

	libs := ld.Libraries()
	compiler.LinkSuperClasses(libs)
	compiler.LinkClassScopes(libs)

	pool := constpool.New(table)
	comp := compiler.New(opts, pool, ld)
	comp.Names = idents
	comp.IteratorNameID = idents.Intern([]byte("iterator"))
	comp.MoveNextNameID = idents.Intern([]byte("moveNext"))
	comp.CurrentNameID = idents.Intern([]byte("current"))
	comp.CallNameID = idents.Intern([]byte("call"))

	mainID := idents.Intern([]byte("main"))
	entry, ok := rootLib.Scope.Lookup(mainID)
	if !ok {
		return &compiler.CompileError{Message: fmt.Sprintf("%s: no top-level `main` method", rootURI), Location: source.Invalid, Table: table}
	}

	entryMethodID := comp.EnqueueMethod(entry.Member, -1, rootLib.Scope)
	classes, methods, statics, finalEntryID := comp.Finalize(entryMethodID)
	if err := comp.Err(); err != nil {
		return err
	}

	w := session.New()
	session.EmitProgram(w, comp, classes, methods, statics, pool, finalEntryID)
	if !opts.EmitSession {
		return nil // compiled in memory only; caller asked the session stream be suppressed
	}
	_, err = w.WriteTo(out)
	return err
}
