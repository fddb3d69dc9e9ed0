package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/storyforge/internal/generate"
	"github.com/kingrea/storyforge/internal/hierarchy"
	"github.com/kingrea/storyforge/internal/stage"
)

func TestObserveCountsOutcomes(t *testing.T) {
	m := New()
	id := hierarchy.New(1)
	m.Observe(stage.Event{Stage: "paragraph", Kind: stage.EventStarted, Total: 3})
	m.Observe(stage.Event{Stage: "paragraph", Kind: stage.EventProcessed, ID: id})
	m.Observe(stage.Event{Stage: "paragraph", Kind: stage.EventProcessed, ID: id})
	m.Observe(stage.Event{Stage: "paragraph", Kind: stage.EventSkipped, ID: id})

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	report := &stage.Report{Stage: "paragraph", Mode: stage.ModeExpand, StartedAt: start, FinishedAt: start.Add(time.Second)}
	m.Observe(stage.Event{Stage: "paragraph", Kind: stage.EventFinished, Report: report})
	report.Failed = []stage.Failure{{ID: id}}
	m.Observe(stage.Event{Stage: "paragraph", Kind: stage.EventFinished, Report: report})
	m.Observe(stage.Event{Stage: "paragraph", Kind: stage.EventFinished, Report: report, Err: errors.New("overflow")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.artifacts.WithLabelValues("paragraph", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.artifacts.WithLabelValues("paragraph", "skipped")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.artifacts.WithLabelValues("paragraph", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageRuns.WithLabelValues("paragraph", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageRuns.WithLabelValues("paragraph", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageRuns.WithLabelValues("paragraph", "aborted")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
}

func TestInstrumentClassifiesBackendCalls(t *testing.T) {
	m := New()
	calls := 0
	gen := generate.Wrap(generate.GeneratorFunc(func(ctx context.Context, content string, req generate.Request) (string, error) {
		calls++
		switch content {
		case "busy":
			return "", generate.NewTransientError(errors.New("429"))
		case "bad":
			return "", generate.NewPermanentError(errors.New("401"))
		}
		return content, nil
	}), m.Instrument("workspace"))

	ctx := context.Background()
	_, err := gen.Generate(ctx, "fine", generate.Request{})
	require.NoError(t, err)
	_, err = gen.Generate(ctx, "busy", generate.Request{})
	require.Error(t, err)
	_, err = gen.Generate(ctx, "bad", generate.Request{})
	require.Error(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("workspace", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("workspace", "transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("workspace", "permanent")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Observe(stage.Event{Stage: "draft", Kind: stage.EventProcessed})
	path := filepath.Join(t.TempDir(), "storyforge.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `storyforge_artifacts_total{outcome="processed",stage="draft"} 1`))
}
