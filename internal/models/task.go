package models

import "time"

// TaskPriority represents the priority of a task
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Task represents a unit of work inside a milestone
type Task struct {
	ID                 string       `json:"id" gorm:"primaryKey"`
	MilestoneID        string       `json:"milestone_id" gorm:"not null;uniqueIndex:idx_task_milestone_order"`
	ProjectID          string       `json:"project_id" gorm:"not null;index"`
	Name               string       `json:"name" gorm:"not null"`
	Description        string       `json:"description"`
	AssigneeID         *string      `json:"assignee_id"`
	DueDate            *time.Time   `json:"due_date"`
	Status             WorkStatus   `json:"status" gorm:"default:'not_started'"`
	Priority           TaskPriority `json:"priority" gorm:"default:'medium'"`
	EstimatedHours     float64      `json:"estimated_hours" gorm:"default:0"`
	DependencyIDs      []string     `json:"dependencies" gorm:"column:dependency_ids;serializer:json"`
	ComponentsAffected []string     `json:"components_affected" gorm:"serializer:json"`
	APIsAffected       []string     `json:"apis_affected" gorm:"column:apis_affected;serializer:json"`
	Order              int          `json:"order" gorm:"column:sort_order;not null;uniqueIndex:idx_task_milestone_order"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// TableName specifies the table name for Task Model
func (Task) TableName() string {
	return "tasks"
}
