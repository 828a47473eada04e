package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"projectron-api/internal/logger"
	"projectron-api/internal/metrics"
	"projectron-api/internal/models"
	"projectron-api/internal/progress"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reserver admits a plan generation for a user or explains why not.
type Reserver interface {
	Reserve(ctx context.Context, userID string) error
}

// Jobs starts plan generations in the background and tracks them.
type Jobs struct {
	pipeline     *Pipeline
	materializer *Materializer
	tracker      *progress.Tracker
	limiter      Reserver
	timeout      time.Duration
	logger       *zap.Logger

	wg sync.WaitGroup
}

func NewJobs(pipeline *Pipeline, materializer *Materializer, tracker *progress.Tracker, limiter Reserver, timeout time.Duration, l *zap.Logger) *Jobs {
	return &Jobs{
		pipeline:     pipeline,
		materializer: materializer,
		tracker:      tracker,
		limiter:      limiter,
		timeout:      timeout,
		logger:       logger.Or(l),
	}
}

// Start checks the quota, registers a tracker and returns its task id
// while the generation continues on its own goroutine. Errors returned
// here happen before any generator call.
func (j *Jobs) Start(ctx context.Context, userID string, in Input, qa map[string]string) (string, error) {
	if err := j.limiter.Reserve(ctx, userID); err != nil {
		return "", err
	}

	taskID := uuid.NewString()
	if _, err := j.tracker.Create(ctx, taskID, userID, progress.TotalSteps); err != nil {
		return "", err
	}

	// the job outlives the request that started it
	jobCtx := context.WithoutCancel(ctx)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.run(jobCtx, taskID, userID, in, qa)
	}()
	return taskID, nil
}

// Wait blocks until every started job has finished.
func (j *Jobs) Wait() {
	j.wg.Wait()
}

func (j *Jobs) run(ctx context.Context, taskID, userID string, in Input, qa map[string]string) {
	log := j.logger.With(zap.String("task_id", taskID), zap.String("user_id", userID))
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("plan generation panicked", zap.Any("panic", r))
			j.fail(ctx, log, taskID, fmt.Errorf("internal error: %v", r))
		}
	}()

	start := time.Now()
	project, plan, err := j.generate(ctx, taskID, userID, in, qa)
	if err != nil {
		log.Warn("plan generation failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		j.fail(ctx, log, taskID, err)
		return
	}

	if err := j.tracker.Complete(ctx, taskID, plan, project.ID); err != nil {
		log.Error("complete progress", zap.Error(err))
		return
	}
	metrics.RecordPlanGeneration(string(models.ProgressCompleted))
	log.Info("plan generated", zap.String("project_id", project.ID), zap.Duration("took", time.Since(start)))
}

func (j *Jobs) generate(ctx context.Context, taskID, userID string, in Input, qa map[string]string) (*models.Project, *Plan, error) {
	if err := j.tracker.UpdateProgress(ctx, taskID, "Initializing plan generation", 1, models.ProgressProcessing); err != nil {
		return nil, nil, err
	}

	plan, err := j.pipeline.Run(ctx, in, qa, j.tracker.Sink(taskID))
	if err != nil {
		return nil, nil, err
	}

	project, err := j.materializer.Materialize(ctx, userID, plan)
	if err != nil {
		return nil, nil, fmt.Errorf("save project: %w", err)
	}
	return project, plan, nil
}

func (j *Jobs) fail(ctx context.Context, log *zap.Logger, taskID string, cause error) {
	metrics.RecordPlanGeneration(string(models.ProgressFailed))
	// a timed out job still needs its failure recorded
	if err := j.tracker.Fail(context.WithoutCancel(ctx), taskID, cause.Error()); err != nil {
		log.Error("record failure", zap.Error(err))
	}
}

// Generate runs the whole pipeline synchronously and saves the project.
// It backs the legacy endpoints that predate background jobs.
func (j *Jobs) Generate(ctx context.Context, userID string, in Input, qa map[string]string) (*models.Project, *Plan, error) {
	if err := j.limiter.Reserve(ctx, userID); err != nil {
		return nil, nil, err
	}
	plan, err := j.pipeline.Run(ctx, in, qa, progress.NopSink{})
	if err != nil {
		return nil, nil, err
	}
	project, err := j.materializer.Materialize(ctx, userID, plan)
	if err != nil {
		return nil, nil, fmt.Errorf("save project: %w", err)
	}
	return project, plan, nil
}

// Pipeline exposes the stage runner for clarification requests.
func (j *Jobs) Pipeline() *Pipeline {
	return j.pipeline
}
