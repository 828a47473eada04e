package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProgressStatus of a background plan generation
type ProgressStatus string

const (
	ProgressPending    ProgressStatus = "pending"
	ProgressProcessing ProgressStatus = "processing"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressFailed     ProgressStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s ProgressStatus) Terminal() bool {
	return s == ProgressCompleted || s == ProgressFailed
}

// PlanProgress tracks one background plan generation job
type PlanProgress struct {
	TaskID       string         `json:"task_id" gorm:"primaryKey"`
	UserID       string         `json:"user_id" gorm:"not null;index"`
	Status       ProgressStatus `json:"status" gorm:"not null;default:'pending'"`
	CurrentStep  string         `json:"current_step" gorm:"not null;default:'starting'"`
	StepNumber   int            `json:"step_number" gorm:"not null;default:0"`
	TotalSteps   int            `json:"total_steps" gorm:"not null;default:7"`
	ErrorMessage string         `json:"error_message"`
	Result       datatypes.JSON `json:"result"`
	ProjectID    string         `json:"project_id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName specifies the table name for PlanProgress Model
func (PlanProgress) TableName() string {
	return "plan_progress"
}
