package sink

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
)

var testPreamble = Preamble{
	BuiltAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	BuildID: "b-1",
}

const bootstrap = "__module_exports_cache = {};\n" +
	"function require(path) {return __module_exports_cache[path].exports;};\n\n"

func TestPreambleRender(t *testing.T) {
	assert.Equal(t, "/* require-concat build 2026-03-01T10:00:00Z id=b-1 */\n"+bootstrap, testPreamble.Render())

	withRev := testPreamble
	withRev.Revision = "main@0123456789ab"
	withRev.BuiltAt = withRev.BuiltAt.In(time.FixedZone("CET", 3600))
	assert.Equal(t, "/* require-concat build 2026-03-01T10:00:00Z id=b-1 rev=main@0123456789ab */\n"+bootstrap, withRev.Render())
}

func writeBundle(t *testing.T, s Sink, chunks ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.WritePreamble(ctx, testPreamble))
	for _, c := range chunks {
		require.NoError(t, s.WriteChunk(ctx, c, c))
	}
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf)
	writeBundle(t, s, "one", "two")
	require.NoError(t, s.Commit())

	assert.Equal(t, testPreamble.Render()+"one\ntwo\n", buf.String())
	assert.Equal(t, "console", s.Target())
	assert.Equal(t, "stdout", NewConsoleSink(nil).Target())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestConsoleSink_WriteError(t *testing.T) {
	s := NewConsoleSink(failingWriter{})
	err := s.WriteChunk(context.Background(), "a", "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWriteFailed))
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryWrite))
}

func TestFileSink_CommitReplacesTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "bundle.js")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

	s, err := NewFileSink(target)
	require.NoError(t, err)
	writeBundle(t, s, "one", "two")

	// Nothing is visible before commit
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	require.NoError(t, s.Commit())
	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, testPreamble.Render()+"one\ntwo\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging workspace must be removed")

	assert.NoError(t, s.Abort(), "abort after commit is a no-op")
	assert.Error(t, s.WriteChunk(context.Background(), "late", "late"))
}

func TestFileSink_AbortKeepsPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "bundle.js")
	require.NoError(t, os.WriteFile(target, []byte("previous"), 0o644))

	s, err := NewFileSink(target)
	require.NoError(t, err)
	writeBundle(t, s, "partial")
	require.NoError(t, s.Abort())

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	err = s.Commit()
	assert.True(t, errors.Is(err, ErrCommitFailed))
}

func TestFileSink_CreatesOutputDirectory(t *testing.T) {
	target := filepath.Join(t.TempDir(), "dist", "js", "bundle.js")
	s, err := NewFileSink(target)
	require.NoError(t, err)
	writeBundle(t, s)
	require.NoError(t, s.Commit())

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, testPreamble.Render(), string(data))
	assert.Equal(t, target, s.Target())
}

func TestFileSink_StageFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewFileSink(filepath.Join(blocker, "bundle.js"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStageFailed))
}
