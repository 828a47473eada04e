package progress

import "context"

// Sink receives step announcements from a running pipeline.
type Sink interface {
	Step(ctx context.Context, label string, number int) error
}

// NopSink discards every step; used by synchronous generations.
type NopSink struct{}

func (NopSink) Step(context.Context, string, int) error { return nil }

// TaskSink reports steps of one tracked job.
type TaskSink struct {
	tracker *Tracker
	taskID  string
}

func (t *Tracker) Sink(taskID string) *TaskSink {
	return &TaskSink{tracker: t, taskID: taskID}
}

func (s *TaskSink) Step(ctx context.Context, label string, number int) error {
	return s.tracker.UpdateProgress(ctx, s.taskID, label, number, "")
}
