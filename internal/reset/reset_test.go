package reset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testTracker(t *testing.T) *RedisTracker {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewRedisTracker(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func noopStage(name string) Stage {
	return Stage{Name: name, Run: func(context.Context) error { return nil }}
}

func testRunner(t *testing.T, stages []Stage, tracker Tracker) *Runner {
	t.Helper()
	r := NewRunnerWithStages(stages, tracker, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.newID = func() string { return "op-test" }
	return r
}

func TestRunPublishesStageProgression(t *testing.T) {
	tracker := testTracker(t)
	var order []string
	stages := []Stage{
		{Name: "first", Run: func(context.Context) error { order = append(order, "first"); return nil }},
		{Name: "second", Run: func(context.Context) error { order = append(order, "second"); return nil }},
		{Name: "third", Run: func(context.Context) error { order = append(order, "third"); return nil }},
	}
	runner := testRunner(t, stages, tracker)

	id, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "op-test", id)
	require.Equal(t, []string{"first", "second", "third"}, order)

	p, ok := tracker.Load(context.Background(), id)
	require.True(t, ok)
	require.Equal(t, StatusDone, p.Status)
	require.Equal(t, 3, p.CurrentStep)
	require.Equal(t, 3, p.TotalSteps)
	require.Equal(t, 100, p.Percentage)
	require.Empty(t, p.Error)
	// started + 3 completions + done.
	require.Len(t, p.Log, 5)
	require.Contains(t, p.Log[1], "completed: first")
}

func TestRunStopsOnFailureAndRecordsIt(t *testing.T) {
	tracker := testTracker(t)
	boom := errors.New("permission denied")
	var thirdRan bool
	stages := []Stage{
		noopStage("clear transactional data"),
		{Name: "apply schema", Run: func(context.Context) error { return boom }},
		{Name: "seed chart of accounts", Run: func(context.Context) error { thirdRan = true; return nil }},
	}
	runner := testRunner(t, stages, tracker)

	id, err := runner.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.False(t, thirdRan, "stages after a failure must not run")

	p, ok := tracker.Load(context.Background(), id)
	require.True(t, ok)
	require.Equal(t, StatusFailed, p.Status)
	require.Equal(t, 2, p.CurrentStep)
	require.Equal(t, "apply schema", p.StepName)
	require.Contains(t, p.Error, "apply schema")
	require.Contains(t, p.Error, "permission denied")
	// Failure keeps the percentage at the last completed stage.
	require.Equal(t, 33, p.Percentage)
}

func TestProgressSurvivesReload(t *testing.T) {
	tracker := testTracker(t)
	runner := testRunner(t, []Stage{noopStage("only")}, tracker)

	id, err := runner.Run(context.Background())
	require.NoError(t, err)

	p, ok := tracker.Load(context.Background(), id)
	require.True(t, ok)
	require.Equal(t, id, p.OperationID)
	require.False(t, p.StartedAt.IsZero())
	require.False(t, p.UpdatedAt.Before(p.StartedAt))

	_, ok = tracker.Load(context.Background(), "missing")
	require.False(t, ok)
}

func TestDefaultStagesCoverTheSequence(t *testing.T) {
	stages := defaultStages(nil)
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	require.Equal(t, []string{
		"clear transactional data",
		"apply schema",
		"create baseline users",
		"seed chart of accounts",
		"open current-year period",
		"verify seed data",
	}, names)
}

func TestRunnerToleratesNilTracker(t *testing.T) {
	runner := NewRunnerWithStages([]Stage{noopStage("only")}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	runner.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	_, err := runner.Run(context.Background())
	require.NoError(t, err)
}
