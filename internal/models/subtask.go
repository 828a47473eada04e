package models

import "time"

// Subtask is a leaf checklist item of a task
type Subtask struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	TaskID      string     `json:"task_id" gorm:"not null;uniqueIndex:idx_subtask_task_order"`
	Name        string     `json:"name" gorm:"not null"`
	Description string     `json:"description"`
	AssigneeID  *string    `json:"assignee_id"`
	Status      WorkStatus `json:"status" gorm:"default:'not_started'"`
	Order       int        `json:"order" gorm:"column:sort_order;not null;uniqueIndex:idx_subtask_task_order"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Subtask Model
func (Subtask) TableName() string {
	return "subtasks"
}
