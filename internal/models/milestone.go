package models

import "time"

// WorkStatus is shared by milestones, tasks and subtasks.
type WorkStatus string

const (
	StatusNotStarted WorkStatus = "not_started"
	StatusInProgress WorkStatus = "in_progress"
	StatusCompleted  WorkStatus = "completed"
)

// Valid reports whether s is a known status.
func (s WorkStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Milestone groups tasks inside a project. Order is dense within the project.
type Milestone struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	ProjectID   string     `json:"project_id" gorm:"not null;uniqueIndex:idx_milestone_project_order"`
	Name        string     `json:"name" gorm:"not null"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Status      WorkStatus `json:"status" gorm:"default:'not_started'"`
	Order       int        `json:"order" gorm:"column:sort_order;not null;uniqueIndex:idx_milestone_project_order"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Milestone Model
func (Milestone) TableName() string {
	return "milestones"
}
