package corec_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corelang/corec"
	"github.com/corelang/corec/internal/loader"
	"github.com/corelang/corec/internal/session"
)

// inMemoryContent mirrors internal/loader's own test double so this
// end-to-end test never touches disk.
type inMemoryContent struct {
	files map[string][]byte
}

func (c *inMemoryContent) Resolve(importPath, fromURI string) (string, error) {
	return importPath, nil
}

func (c *inMemoryContent) ReadFile(uri string) ([]byte, error) {
	b, ok := c.files[uri]
	if !ok {
		return nil, fmt.Errorf("not found: %s", uri)
	}
	return b, nil
}

func emptyCoreConfig() *corec.Config {
	cfg := corec.NewConfig()
	// No core/system library fixture in this test's in-memory content
	// map; an empty URI makes loader.Loader's implicit-import suffix
	// check vacuously true, so it installs no implicit import at all.
	cfg.SetString("loader.core_library_uri", "")
	cfg.SetString("loader.system_library_uri", "")
	return cfg
}

func TestCompileWithContentEmitsNewMapsAndEntryPoint(t *testing.T) {
	content := &inMemoryContent{files: map[string][]byte{
		"main.dart": []byte("main() { return 1 + 1; }"),
	}}

	var out bytes.Buffer
	err := corec.CompileWithContent("main.dart", emptyCoreConfig(), content, &out)
	require.NoError(t, err)

	buf := out.Bytes()
	require.NotEmpty(t, buf)
	require.Equal(t, byte(session.OpNewMap), buf[0], "stream must open with the three identity maps")

	entryStart := len(buf) - 13
	require.GreaterOrEqual(t, entryStart, 0)
	require.Equal(t, byte(session.OpPushEntryPoint), buf[entryStart], "stream must close with the entry-point push")
}

func TestCompileWithContentFailsWithoutMain(t *testing.T) {
	content := &inMemoryContent{files: map[string][]byte{
		"lib.dart": []byte("foo() { return 1; }"),
	}}

	var out bytes.Buffer
	err := corec.CompileWithContent("lib.dart", emptyCoreConfig(), content, &out)
	require.Error(t, err)
}

func TestCompileSuppressesOutputWhenEmitSessionDisabled(t *testing.T) {
	content := &inMemoryContent{files: map[string][]byte{
		"main.dart": []byte("main() { return 1; }"),
	}}

	cfg := emptyCoreConfig()
	cfg.SetBool("compiler.emit_session", false)

	var out bytes.Buffer
	err := corec.CompileWithContent("main.dart", cfg, content, &out)
	require.NoError(t, err)
	require.Empty(t, out.Bytes())
}

var _ loader.ContentLoader = (*inMemoryContent)(nil)
