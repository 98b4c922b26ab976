package session_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec/internal/session"
)

func TestNewMapFraming(t *testing.T) {
	w := session.New()
	w.NewMap(session.ClassMap)
	require.Equal(t, append([]byte{byte(session.OpNewMap)}, 0, 0, 0, 0), w.Bytes())
}

func TestPushFromMapFraming(t *testing.T) {
	w := session.New()
	w.PushFromMap(session.MethodMap, 7)
	want := []byte{byte(session.OpPushFromMap)}
	want = binary.LittleEndian.AppendUint32(want, uint32(session.MethodMap))
	want = binary.LittleEndian.AppendUint64(want, 7)
	require.Equal(t, want, w.Bytes())
}

func TestPushNewStringLengthPrefixed(t *testing.T) {
	w := session.New()
	w.PushNewString("hi")
	want := []byte{byte(session.OpPushNewString), 2, 0, 0, 0, 'h', 'i'}
	require.Equal(t, want, w.Bytes())
}

func TestCommitChangesCountsOnlyQueuedOps(t *testing.T) {
	w := session.New()
	batch := w.BeginChanges()
	batch.ChangeSuperClass()
	batch.ChangeMethodTable(3)
	batch.ChangeStatics(0)
	batch.Commit()

	// 3 Change* ops precede the commit frame; Commit must report
	// exactly that many regardless of their individual payload sizes.
	buf := w.Bytes()
	commitTag := buf[len(buf)-5]
	require.Equal(t, byte(session.OpCommitChanges), commitTag)
	n := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	require.Equal(t, uint32(3), n)
}

func TestWriteToFlushesWholeStream(t *testing.T) {
	w := session.New()
	w.PushNull()
	w.PushBoolean(true)
	var out bytes.Buffer
	n, err := w.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(len(w.Bytes())), n)
	require.Equal(t, w.Bytes(), out.Bytes())
}

func TestPushEntryPointFraming(t *testing.T) {
	w := session.New()
	w.PushEntryPoint(2, 5)
	want := []byte{byte(session.OpPushEntryPoint)}
	want = binary.LittleEndian.AppendUint32(want, 2)
	want = binary.LittleEndian.AppendUint64(want, 5)
	require.Equal(t, want, w.Bytes())
}
