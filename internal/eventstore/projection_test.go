package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(e Event, ts time.Time) Event {
	switch v := e.(type) {
	case *BuildStarted:
		v.EventTimestamp = ts
	case *BuildCompleted:
		v.EventTimestamp = ts
	case *BuildFailed:
		v.EventTimestamp = ts
	}
	return e
}

func TestProjectionApply(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p := NewBuildHistoryProjection(10)

	started, err := NewBuildStarted("ok", BuildStartedMeta{Root: "/src", Output: "/out/b.js", Mode: "watch", Revision: "main@abc"})
	require.NoError(t, err)
	completed, err := NewBuildCompleted("ok", BuildCompletedMeta{Modules: 6, Emitted: 6, DurationMS: 42})
	require.NoError(t, err)
	failStart, err := NewBuildStarted("bad", BuildStartedMeta{Mode: "oneshot"})
	require.NoError(t, err)
	failed, err := NewBuildFailed("bad", BuildFailedMeta{Stage: "assemble", Category: "cycle", Error: "cycle between"})
	require.NoError(t, err)

	p.Apply(at(started, t0))
	p.Apply(at(completed, t0.Add(time.Second)))
	p.Apply(at(failStart, t0.Add(time.Minute)))
	p.Apply(at(failed, t0.Add(time.Minute+time.Second)))

	history := p.History()
	require.Len(t, history, 2)
	assert.Equal(t, "bad", history[0].BuildID, "newest first")
	assert.Equal(t, BuildStatusFailed, history[0].Status)
	assert.Equal(t, "assemble", history[0].ErrorStage)

	ok, found := p.Build("ok")
	require.True(t, found)
	assert.Equal(t, BuildStatusCompleted, ok.Status)
	assert.Equal(t, "watch", ok.Mode)
	assert.Equal(t, "main@abc", ok.Revision)
	assert.Equal(t, 6, ok.Emitted)
	assert.Equal(t, 42*time.Millisecond, ok.Duration)
	require.NotNil(t, ok.CompletedAt)

	_, found = p.Build("missing")
	assert.False(t, found)
}

func TestProjectionRunningBuild(t *testing.T) {
	p := NewBuildHistoryProjection(0)
	started, err := NewBuildStarted("run", BuildStartedMeta{})
	require.NoError(t, err)
	p.Apply(started)

	s, ok := p.Build("run")
	require.True(t, ok)
	assert.Equal(t, BuildStatusRunning, s.Status)
	assert.Nil(t, s.CompletedAt)
}

func TestProjectionBounded(t *testing.T) {
	p := NewBuildHistoryProjection(2)
	t0 := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		e, err := NewBuildStarted(id, BuildStartedMeta{})
		require.NoError(t, err)
		p.Apply(at(e, t0.Add(time.Duration(i)*time.Second)))
	}
	history := p.History()
	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].BuildID)
	assert.Equal(t, "b", history[1].BuildID)
}

func TestProjectionLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	started, err := NewBuildStarted(testBuildID, BuildStartedMeta{Mode: "oneshot"})
	require.NoError(t, err)
	require.NoError(t, AppendEvent(ctx, store, started))
	completed, err := NewBuildCompleted(testBuildID, BuildCompletedMeta{Emitted: 3})
	require.NoError(t, err)
	require.NoError(t, AppendEvent(ctx, store, completed))

	p := NewBuildHistoryProjection(10)
	require.NoError(t, p.Load(ctx, store, time.Now().Add(-time.Hour)))

	s, ok := p.Build(testBuildID)
	require.True(t, ok)
	assert.Equal(t, BuildStatusCompleted, s.Status)
	assert.Equal(t, 3, s.Emitted)
}
