package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// ExperienceLevel of the team building the project
type ExperienceLevel string

const (
	ExperienceJunior ExperienceLevel = "junior"
	ExperienceMid    ExperienceLevel = "mid"
	ExperienceSenior ExperienceLevel = "senior"
)

// ProjectStatus represents the lifecycle of a project
type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
)

// Project is the top-level container for a generated or hand-written plan.
type Project struct {
	ID              string          `json:"id" gorm:"primaryKey"`
	Name            string          `json:"name" gorm:"not null;uniqueIndex:idx_project_owner_name"`
	Description     string          `json:"description"`
	TechStack       []string        `json:"tech_stack" gorm:"serializer:json"`
	ExperienceLevel ExperienceLevel `json:"experience_level" gorm:"default:'junior'"`
	TeamSize        int             `json:"team_size" gorm:"default:1"`
	Status          ProjectStatus   `json:"status" gorm:"default:'draft'"`
	OwnerID         string          `json:"owner_id" gorm:"not null;uniqueIndex:idx_project_owner_name"`
	Collaborators   []string        `json:"collaborator_ids" gorm:"serializer:json"`

	HighLevelPlan         datatypes.JSON `json:"high_level_plan"`
	TechnicalArchitecture datatypes.JSON `json:"technical_architecture"`
	APIEndpoints          datatypes.JSON `json:"api_endpoints" gorm:"column:api_endpoints"`
	DataModels            datatypes.JSON `json:"data_models"`
	UIComponents          datatypes.JSON `json:"ui_components" gorm:"column:ui_components"`
	ImplementationPlan    datatypes.JSON `json:"implementation_plan"`

	ContextNotes       string `json:"context_notes"`
	LastContextMessage string `json:"last_context_message"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Project Model
func (Project) TableName() string {
	return "projects"
}

// IsOwner reports whether userID created the project.
func (p *Project) IsOwner(userID string) bool {
	return p.OwnerID == userID
}

// CanRead reports whether userID is the owner or a collaborator.
func (p *Project) CanRead(userID string) bool {
	return p.IsOwner(userID) || slices.Contains(p.Collaborators, userID)
}
