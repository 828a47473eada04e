package progress

import (
	"context"
	"sync"
	"testing"

	"projectron-api/internal/models"
	"projectron-api/internal/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []map[string]any
	users  []string
}

func (r *recordingPublisher) Publish(userID string, event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	r.events = append(r.events, event.(map[string]any))
}

func newTracker(t *testing.T) (*Tracker, *recordingPublisher) {
	t.Helper()
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	pub := &recordingPublisher{}
	return NewTracker(db, pub, zap.NewNop()), pub
}

func TestTracker_Lifecycle(t *testing.T) {
	tr, pub := newTracker(t)
	ctx := context.Background()

	p, err := tr.Create(ctx, "task-1", "user-1", TotalSteps)
	require.NoError(t, err)
	require.Equal(t, models.ProgressPending, p.Status)
	require.Equal(t, 0, p.StepNumber)

	require.NoError(t, tr.Sink("task-1").Step(ctx, "Generating architecture", 3))
	got, err := tr.Get(ctx, "task-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, models.ProgressProcessing, got.Status)
	require.Equal(t, "Generating architecture", got.CurrentStep)
	require.Equal(t, 3, got.StepNumber)

	require.NoError(t, tr.Complete(ctx, "task-1", map[string]string{"name": "demo"}, "project-9"))
	got, err = tr.Get(ctx, "task-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, models.ProgressCompleted, got.Status)
	require.Equal(t, TotalSteps, got.StepNumber)
	require.Equal(t, "completed", got.CurrentStep)
	require.Equal(t, "project-9", got.ProjectID)
	require.JSONEq(t, `{"name":"demo"}`, string(got.Result))

	require.Len(t, pub.events, 2)
	require.Equal(t, []string{"user-1", "user-1"}, pub.users)
	require.Equal(t, models.ProgressCompleted, pub.events[1]["status"])
}

func TestTracker_FailKeepsStep(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	_, err := tr.Create(ctx, "task-2", "user-1", TotalSteps)
	require.NoError(t, err)
	require.NoError(t, tr.UpdateProgress(ctx, "task-2", "Generating API endpoints", 4, ""))
	require.NoError(t, tr.Fail(ctx, "task-2", "all generators failed"))

	got, err := tr.Get(ctx, "task-2", "user-1")
	require.NoError(t, err)
	require.Equal(t, models.ProgressFailed, got.Status)
	require.Equal(t, 4, got.StepNumber)
	require.Equal(t, "all generators failed", got.ErrorMessage)
}

func TestTracker_TerminalStatesAreFinal(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	_, err := tr.Create(ctx, "task-3", "user-1", TotalSteps)
	require.NoError(t, err)
	require.NoError(t, tr.Fail(ctx, "task-3", "boom"))

	require.ErrorIs(t, tr.UpdateProgress(ctx, "task-3", "late", 5, ""), ErrTerminal)
	require.ErrorIs(t, tr.Complete(ctx, "task-3", nil, "p"), ErrTerminal)
	require.ErrorIs(t, tr.Fail(ctx, "missing", "x"), ErrNotFound)
}

func TestTracker_GetHidesOtherUsersJobs(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	_, err := tr.Create(ctx, "task-4", "owner", TotalSteps)
	require.NoError(t, err)

	_, err = tr.Get(ctx, "task-4", "intruder")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = tr.Get(ctx, "nope", "owner")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNopSink(t *testing.T) {
	require.NoError(t, NopSink{}.Step(context.Background(), "anything", 2))
}
