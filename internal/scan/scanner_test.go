package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
}

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestScan_ModuleRegistry(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"is/aa.js":              "require('is/aaa') require('is/a/bb')",
		"is/aaa.js":             "require('is/a/module')",
		"is/a/bb.js":            "",
		"is/a/bbb.js":           "require('is/a/bb')",
		"is/a/test/cc.js":       "require('is/a/module')",
		"is/a/module/index.js":  "",
		"index.js":              "require('is/aa')",
	})

	records, err := NewScanner().Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "is/a/bb", "is/a/bbb", "is/a/module", "is/a/test/cc", "is/aa", "is/aaa"}, ids(records))

	byID := map[string]Record{}
	for _, r := range records {
		byID[r.ID] = r
		assert.True(t, filepath.IsAbs(r.Path), "path must be absolute: %s", r.Path)
		assert.False(t, r.ModTime.IsZero())
	}
	assert.Equal(t, filepath.Join(root, "is", "a", "module", "index.js"), byID["is/a/module"].Path)
	assert.Equal(t, filepath.Join(root, "index.js"), byID[""].Path)
}

func TestScan_NoIgnoreRules(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"notes.txt":         "plain",
		"node_modules/x.js": "",
		".hidden/y.js":      "",
	})

	records, err := NewScanner().Scan(context.Background(), root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"notes", "node_modules/x", ".hidden/y"}, ids(records))
}

func TestScan_ModTimeTracksFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.js": "x"})
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(root, "a.js"), stamp, stamp))

	records, err := NewScanner().Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].ModTime.Equal(stamp))
}

func TestScan_AmbiguousID(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a/index.js": "",
		"a.js":       "",
	})

	_, err := NewScanner().Scan(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousModuleID))

	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	id, _ := classified.Context().GetString("id")
	assert.Equal(t, "a", id)
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := NewScanner().Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRootUnreadable))
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryScan))
}

func TestScan_RootIsFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"f.js": ""})
	_, err := NewScanner().Scan(context.Background(), filepath.Join(root, "f.js"))
	assert.True(t, errors.Is(err, ErrRootUnreadable))
}

func TestScan_UnreadableSubdirFailsWholeScan(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"ok.js":        "",
		"locked/in.js": "",
	})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	records, err := NewScanner().Scan(context.Background(), root)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.True(t, errors.Is(err, ErrReadDirFailed))
}

func TestScan_DeepTreeWithLowConcurrency(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for _, d := range []string{"a", "a/b", "a/b/c", "d", "d/e"} {
		for _, f := range []string{"x.js", "y.js", "z.js"} {
			files[d+"/"+f] = ""
		}
	}
	writeTree(t, root, files)

	records, err := (&Scanner{Concurrency: 1}).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, records, 15)
}
