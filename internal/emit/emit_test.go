package emit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/emit"
)

func TestSimpleReturnBalancesStack(t *testing.T) {
	e := emit.New(0)
	e.LoadLiteralNull()
	e.Return()
	code := e.Finish()
	require.Equal(t, 1, code.FrameSize)
	require.NotEmpty(t, code.Bytes)
}

func TestLiteralPoolDeduplicates(t *testing.T) {
	e := emit.New(0)
	e.LoadConstant(7)
	e.Pop()
	e.LoadConstant(7)
	e.Pop()
	e.LoadLiteralNull()
	e.Return()
	code := e.Finish()
	require.Len(t, code.LiteralIDs, 1, "the same constant id must reuse one literal-pool slot")
}

func TestReservedLocalsFoldIntoFrameSize(t *testing.T) {
	e := emit.New(1)
	e.ReserveLocals(3)
	e.LoadLiteralNull()
	e.Return()
	code := e.Finish()
	require.Equal(t, 4, code.FrameSize, "reserved local slots count toward the frame past the operand high-water mark")
}

func TestBranchPatchesForwardLabel(t *testing.T) {
	e := emit.New(0)
	l := e.NewLabel()
	e.LoadLiteralBool(true)
	e.BranchIfFalse(l)
	e.LoadLiteralNull()
	e.Pop()
	e.BindLabel(l)
	e.LoadLiteralNull()
	e.Return()
	code := e.Finish()
	require.Equal(t, 1, code.FrameSize)
	require.NotEmpty(t, code.Bytes)
}

func TestReturnPanicsOnStackImbalance(t *testing.T) {
	e := emit.New(0)
	require.Panics(t, func() { e.Return() })
}

func TestPackUnpackLiteralRoundTrips(t *testing.T) {
	packed := emit.PackLiteral(123, emit.LiteralClass)
	id, kind := emit.UnpackLiteral(packed)
	require.EqualValues(t, 123, id)
	require.Equal(t, emit.LiteralClass, kind)
}

func TestTryRangeRecorded(t *testing.T) {
	e := emit.New(0)
	handler := e.NewLabel()
	e.EnterTry()
	e.LoadLiteralNull()
	e.Pop()
	e.ExitTry(0)
	e.BindLabel(handler)
	e.LoadLiteralNull()
	e.Return()
	code := e.Finish()
	require.Len(t, code.TryRanges, 1)
}
