package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"projectron-api/internal/logger"
	"projectron-api/internal/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TotalSteps is the number of steps a plan generation reports.
const TotalSteps = 7

var (
	ErrNotFound = errors.New("task not found")
	ErrTerminal = errors.New("task already finished")
)

// Publisher receives progress snapshots for live delivery to the owner.
type Publisher interface {
	Publish(userID string, event any)
}

// Tracker persists the state machine of background plan generations.
// Each transition is its own durable write so pollers see it immediately.
type Tracker struct {
	db     *gorm.DB
	pub    Publisher
	logger *zap.Logger
}

func NewTracker(db *gorm.DB, pub Publisher, l *zap.Logger) *Tracker {
	return &Tracker{db: db, pub: pub, logger: logger.Or(l)}
}

// Create registers a pending job for userID.
func (t *Tracker) Create(ctx context.Context, taskID, userID string, totalSteps int) (*models.PlanProgress, error) {
	p := &models.PlanProgress{
		TaskID:      taskID,
		UserID:      userID,
		Status:      models.ProgressPending,
		CurrentStep: "starting",
		StepNumber:  0,
		TotalSteps:  totalSteps,
	}
	if err := t.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("create progress: %w", err)
	}
	return p, nil
}

// Get returns the job only when it belongs to userID. A job owned by
// somebody else is reported as not found.
func (t *Tracker) Get(ctx context.Context, taskID, userID string) (*models.PlanProgress, error) {
	var p models.PlanProgress
	err := t.db.WithContext(ctx).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProgress overwrites the current step. An empty status means processing.
func (t *Tracker) UpdateProgress(ctx context.Context, taskID, step string, stepNumber int, status models.ProgressStatus) error {
	if status == "" {
		status = models.ProgressProcessing
	}
	return t.transition(ctx, taskID, map[string]any{
		"current_step": step,
		"step_number":  stepNumber,
		"status":       status,
	})
}

// Complete stores the result and the materialized project id.
func (t *Tracker) Complete(ctx context.Context, taskID string, result any, projectID string) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return t.transition(ctx, taskID, map[string]any{
		"status":       models.ProgressCompleted,
		"current_step": "completed",
		"step_number":  gorm.Expr("total_steps"),
		"result":       datatypes.JSON(raw),
		"project_id":   projectID,
	})
}

// Fail records message and leaves step_number where the job stopped.
func (t *Tracker) Fail(ctx context.Context, taskID, message string) error {
	return t.transition(ctx, taskID, map[string]any{
		"status":        models.ProgressFailed,
		"error_message": message,
	})
}

func (t *Tracker) transition(ctx context.Context, taskID string, fields map[string]any) error {
	res := t.db.WithContext(ctx).
		Model(&models.PlanProgress{}).
		Where("task_id = ? AND status NOT IN ?", taskID, []models.ProgressStatus{models.ProgressCompleted, models.ProgressFailed}).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update progress %s: %w", taskID, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		t.db.WithContext(ctx).Model(&models.PlanProgress{}).Where("task_id = ?", taskID).Count(&count)
		if count == 0 {
			return ErrNotFound
		}
		return ErrTerminal
	}
	t.publish(ctx, taskID)
	return nil
}

func (t *Tracker) publish(ctx context.Context, taskID string) {
	if t.pub == nil {
		return
	}
	var p models.PlanProgress
	if err := t.db.WithContext(ctx).Omit("result").First(&p, "task_id = ?", taskID).Error; err != nil {
		t.logger.Warn("load progress for publish", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	t.pub.Publish(p.UserID, map[string]any{
		"type":          "plan.progress",
		"version":       1,
		"task_id":       p.TaskID,
		"status":        p.Status,
		"current_step":  p.CurrentStep,
		"step_number":   p.StepNumber,
		"total_steps":   p.TotalSteps,
		"error_message": p.ErrorMessage,
		"project_id":    p.ProjectID,
	})
}
