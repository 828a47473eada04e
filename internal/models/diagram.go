package models

import (
	"time"

	"gorm.io/datatypes"
)

// DiagramKind identifies the diagram language of an artifact.
type DiagramKind string

const (
	DiagramSequence DiagramKind = "sequence"
	DiagramClass    DiagramKind = "class"
	DiagramActivity DiagramKind = "activity"
)

// Valid reports whether k is a supported diagram kind.
func (k DiagramKind) Valid() bool {
	return k == DiagramSequence || k == DiagramClass || k == DiagramActivity
}

// Diagram stores the generated artifacts of one diagram kind for a project.
type Diagram struct {
	ID        string         `json:"id" gorm:"primaryKey"`
	ProjectID string         `json:"project_id" gorm:"not null;uniqueIndex:idx_diagram_project_kind"`
	Kind      DiagramKind    `json:"kind" gorm:"not null;uniqueIndex:idx_diagram_project_kind"`
	JSON      datatypes.JSON `json:"json" gorm:"column:json_source"`
	Source    string         `json:"source"`
	SVG       string         `json:"svg"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName specifies the table name for Diagram Model
func (Diagram) TableName() string {
	return "diagrams"
}
