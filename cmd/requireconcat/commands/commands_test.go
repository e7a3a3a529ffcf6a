package commands

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/requireconcat/internal/build"
	"git.home.luguber.info/inful/requireconcat/internal/config"
	"git.home.luguber.info/inful/requireconcat/internal/eventstore"
	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
)

func writeSources(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.js"), []byte("require('b');\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.js"), []byte("var b = 1;\n"), 0o644))
	return src
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requireconcat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func requireCategory(t *testing.T, err error, want ferrors.ErrorCategory) {
	t.Helper()
	require.Error(t, err)
	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok, "expected classified error, got %v", err)
	assert.Equal(t, want, classified.Category())
}

// assertDependencyFirst checks that b's block precedes a's.
func assertDependencyFirst(t *testing.T, bundle string) {
	t.Helper()
	assert.True(t, strings.HasPrefix(bundle, "/* require-concat build "))
	posA := strings.Index(bundle, "__module_exports_cache['a'] = ")
	posB := strings.Index(bundle, "__module_exports_cache['b'] = ")
	require.NotEqual(t, -1, posA)
	require.NotEqual(t, -1, posB)
	assert.Less(t, posB, posA)
}

func TestBuildCmd_OneShotWritesFile(t *testing.T) {
	src := writeSources(t)
	out := filepath.Join(t.TempDir(), "dist", "bundle.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))

	root := &CLI{Config: writeConfig(t, "logging:\n  level: warn\n")}
	cmd := &BuildCmd{Root: src, Output: out}
	require.NoError(t, cmd.Run(&Global{Stdout: io.Discard}, root))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assertDependencyFirst(t, string(data))

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directory must be removed after commit")
}

func TestBuildCmd_StreamsToStdoutWithoutOutput(t *testing.T) {
	src := writeSources(t)
	var stdout bytes.Buffer

	root := &CLI{Config: writeConfig(t, "source:\n  root: "+src+"\n")}
	require.NoError(t, (&BuildCmd{}).Run(&Global{Stdout: &stdout}, root))

	assertDependencyFirst(t, stdout.String())
}

func TestBuildCmd_ConfigErrors(t *testing.T) {
	t.Run("explicit config must exist", func(t *testing.T) {
		root := &CLI{Config: filepath.Join(t.TempDir(), "missing.yaml")}
		err := (&BuildCmd{}).Run(&Global{Stdout: io.Discard}, root)
		requireCategory(t, err, ferrors.CategoryConfig)
	})

	t.Run("invalid call token flag", func(t *testing.T) {
		root := &CLI{Config: writeConfig(t, "")}
		err := (&BuildCmd{Root: writeSources(t), CallToken: "not a token"}).Run(&Global{Stdout: io.Discard}, root)
		requireCategory(t, err, ferrors.CategoryConfig)
	})

	t.Run("output inside root", func(t *testing.T) {
		src := writeSources(t)
		root := &CLI{Config: writeConfig(t, "")}
		err := (&BuildCmd{Root: src, Output: filepath.Join(src, "bundle.js")}).Run(&Global{Stdout: io.Discard}, root)
		requireCategory(t, err, ferrors.CategoryValidation)
	})

	t.Run("missing root surfaces scan error", func(t *testing.T) {
		root := &CLI{Config: writeConfig(t, "")}
		err := (&BuildCmd{Root: filepath.Join(t.TempDir(), "nope")}).Run(&Global{Stdout: io.Discard}, root)
		requireCategory(t, err, ferrors.CategoryScan)
	})
}

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{
		Source:  config.SourceConfig{Root: "cfg-src"},
		Output:  config.OutputConfig{Path: "cfg-out.js"},
		Extract: config.ExtractConfig{CallToken: "load"},
	}
	config.ApplyDefaults(cfg)

	cmd := &BuildCmd{Root: "flag-src", Watch: true, Interval: 250 * time.Millisecond}
	require.NoError(t, cmd.applyOverrides(cfg))

	assert.Equal(t, "flag-src", cfg.Source.Root)
	assert.Equal(t, "cfg-out.js", cfg.Output.Path, "unset flags keep config values")
	assert.Equal(t, "load", cfg.Extract.CallToken)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.PollInterval())
}

func TestCheckOutputOutsideRoot(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")

	cases := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{"console", "", false},
		{"sibling", filepath.Join(base, "bundle.js"), false},
		{"similar prefix", filepath.Join(base, "src-dist", "bundle.js"), false},
		{"inside", filepath.Join(src, "bundle.js"), true},
		{"nested", filepath.Join(src, "out", "bundle.js"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkOutputOutsideRoot(src, tc.output)
			if tc.wantErr {
				requireCategory(t, err, ferrors.CategoryValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckOutputOutsideRoot_Symlinks(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "dist"), 0o755))
	require.NoError(t, os.Symlink(src, filepath.Join(base, "src-link")))
	require.NoError(t, os.Symlink(filepath.Join(src, "dist"), filepath.Join(base, "dist-link")))

	t.Run("output through link to root", func(t *testing.T) {
		err := checkOutputOutsideRoot(src, filepath.Join(base, "src-link", "bundle.js"))
		requireCategory(t, err, ferrors.CategoryValidation)
	})

	t.Run("output through link into subdirectory", func(t *testing.T) {
		err := checkOutputOutsideRoot(src, filepath.Join(base, "dist-link", "new", "bundle.js"))
		requireCategory(t, err, ferrors.CategoryValidation)
	})

	t.Run("root given through link", func(t *testing.T) {
		err := checkOutputOutsideRoot(filepath.Join(base, "src-link"), filepath.Join(src, "bundle.js"))
		requireCategory(t, err, ferrors.CategoryValidation)
	})

	t.Run("sibling outside root", func(t *testing.T) {
		assert.NoError(t, checkOutputOutsideRoot(src, filepath.Join(base, "bundle.js")))
	})

	t.Run("unresolvable output", func(t *testing.T) {
		file := filepath.Join(base, "plain")
		require.NoError(t, os.WriteFile(file, nil, 0o644))
		err := checkOutputOutsideRoot(src, filepath.Join(file, "bundle.js"))
		requireCategory(t, err, ferrors.CategoryValidation)
		classified, _ := ferrors.AsClassified(err)
		assert.Equal(t, "failed to resolve path", classified.Message())
	})
}

func TestRunWatch_BuildsUntilCancelled(t *testing.T) {
	src := writeSources(t)
	out := filepath.Join(t.TempDir(), "bundle.js")

	cfg := &config.Config{
		Source: config.SourceConfig{Root: src},
		Output: config.OutputConfig{Path: out},
		Watch:  config.WatchConfig{Enabled: true, Interval: "20ms"},
	}
	config.ApplyDefaults(cfg)
	require.NoError(t, config.Validate(cfg))

	rt, err := newBuildRuntime(cfg, io.Discard)
	require.NoError(t, err)
	defer rt.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, cfg, rt) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(out)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop")
	}

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assertDependencyFirst(t, string(data))
}

func TestBuildRuntime_ServesMetrics(t *testing.T) {
	cfg := &config.Config{
		Source:  config.SourceConfig{Root: writeSources(t)},
		Metrics: config.MetricsConfig{ListenAddr: "127.0.0.1:0"},
	}
	config.ApplyDefaults(cfg)

	rt, err := newBuildRuntime(cfg, io.Discard)
	require.NoError(t, err)
	defer rt.Close(context.Background())
	require.NotEmpty(t, rt.addr)

	_, err = rt.service.Run(context.Background(), build.BuildRequest{Root: cfg.Source.Root, Mode: build.ModeOneShot})
	require.NoError(t, err)

	resp, err := http.Get("http://" + rt.addr + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "requireconcat_build_outcomes_total")
}

func TestBuildRuntime_UnreachableNATSDisablesNotifications(t *testing.T) {
	cfg := &config.Config{
		Source: config.SourceConfig{Root: writeSources(t)},
		Notify: config.NotifyConfig{NATSURL: "nats://127.0.0.1:1"},
	}
	config.ApplyDefaults(cfg)

	rt, err := newBuildRuntime(cfg, io.Discard)
	require.NoError(t, err)
	defer rt.Close(context.Background())

	_, err = rt.service.Run(context.Background(), build.BuildRequest{Root: cfg.Source.Root})
	require.NoError(t, err)
}

func TestHistoryCmd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	src := writeSources(t)
	cfgPath := writeConfig(t, "history:\n  path: "+dbPath+"\n")

	require.NoError(t, (&BuildCmd{Root: src}).Run(&Global{Stdout: io.Discard}, &CLI{Config: cfgPath}))
	err := (&BuildCmd{Root: filepath.Join(t.TempDir(), "gone")}).Run(&Global{Stdout: io.Discard}, &CLI{Config: cfgPath})
	require.Error(t, err)

	t.Run("lists builds", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, (&HistoryCmd{Since: time.Hour, Limit: 10}).Run(&Global{Stdout: &out}, &CLI{Config: cfgPath}))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "BUILD"))
		assert.Contains(t, out.String(), "completed")
		assert.Contains(t, out.String(), "failed")
		assert.Contains(t, out.String(), build.StageScan+": ")
	})

	t.Run("single build", func(t *testing.T) {
		store, err := eventstore.NewSQLiteStore(dbPath)
		require.NoError(t, err)
		projection := eventstore.NewBuildHistoryProjection(10)
		require.NoError(t, projection.Load(context.Background(), store, time.Now().Add(-time.Hour)))
		require.NoError(t, store.Close())

		var completed string
		for _, b := range projection.History() {
			if b.Status == eventstore.BuildStatusCompleted {
				completed = b.BuildID
			}
		}
		require.NotEmpty(t, completed)

		var out bytes.Buffer
		require.NoError(t, (&HistoryCmd{Build: completed}).Run(&Global{Stdout: &out}, &CLI{Config: cfgPath}))

		text := out.String()
		assert.True(t, strings.HasPrefix(text, "BUILD"))
		assert.Contains(t, text, completed)
		assert.Contains(t, text, eventstore.TypeBuildStarted)
		assert.Contains(t, text, eventstore.TypeBuildCompleted)
		assert.NotContains(t, text, eventstore.TypeBuildFailed)
	})

	t.Run("unknown build id", func(t *testing.T) {
		err := (&HistoryCmd{Since: time.Hour, Build: "does-not-exist"}).Run(&Global{Stdout: io.Discard}, &CLI{Config: cfgPath})
		requireCategory(t, err, ferrors.CategoryNotFound)
	})

	t.Run("history disabled", func(t *testing.T) {
		err := (&HistoryCmd{Since: time.Hour}).Run(&Global{Stdout: io.Discard}, &CLI{Config: writeConfig(t, "")})
		requireCategory(t, err, ferrors.CategoryConfig)
	})
}

func TestPrintHistory_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printHistory(&out, nil))
	assert.Equal(t, "No builds recorded.\n", out.String())
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, (&VersionCmd{}).Run(&Global{Stdout: &out}, &CLI{}))
	assert.True(t, strings.HasPrefix(out.String(), "requireconcat "))
}
