package planner

import "projectron-api/internal/models"

// TimeScale presets of the project budget.
type TimeScale string

const (
	ScaleSmall  TimeScale = "small"
	ScaleMedium TimeScale = "medium"
	ScaleLarge  TimeScale = "large"
	ScaleCustom TimeScale = "custom"
)

// Input describes the project idea submitted by the user.
type Input struct {
	Name            string                 `json:"name" binding:"required,min=1,max=100"`
	Description     string                 `json:"description" binding:"required,min=10"`
	TechStack       []string               `json:"tech_stack"`
	ExperienceLevel models.ExperienceLevel `json:"experience_level" binding:"omitempty,oneof=junior mid senior"`
	TeamSize        int                    `json:"team_size" binding:"omitempty,min=1,max=100"`
	TimeScale       TimeScale              `json:"time_scale" binding:"omitempty,oneof=small medium large custom"`
	CustomHours     int                    `json:"custom_hours" binding:"omitempty,min=1,max=1000"`
}

// TotalHours is the declared time budget of the project.
func (in Input) TotalHours() int {
	switch in.TimeScale {
	case ScaleSmall:
		return 40
	case ScaleLarge:
		return 300
	case ScaleCustom:
		if in.CustomHours > 0 {
			return in.CustomHours
		}
	}
	return 100
}

// ExtendedHours is the planning budget used to bias ambition.
func (in Input) ExtendedHours() int {
	return int(float64(in.TotalHours()) * 1.5)
}

// ClarificationQuestions is the output of the clarify stage.
type ClarificationQuestions struct {
	Questions []string `json:"questions" validate:"required,min=1,max=8,dive,required"`
}

type TargetUser struct {
	Type       string   `json:"type" validate:"required"`
	Needs      []string `json:"needs"`
	PainPoints []string `json:"pain_points"`
}

type Scope struct {
	InScope    []string `json:"in_scope"`
	OutOfScope []string `json:"out_of_scope"`
}

type Risk struct {
	Description string `json:"description" validate:"required"`
	Impact      string `json:"impact"`
	Mitigation  string `json:"mitigation"`
}

// HighLevelPlan is the output of the high_level stage.
type HighLevelPlan struct {
	Vision             string       `json:"vision" validate:"required"`
	BusinessObjectives []string     `json:"business_objectives"`
	TargetUsers        []TargetUser `json:"target_users" validate:"required,min=1,dive"`
	CoreFeatures       []string     `json:"core_features" validate:"required,min=1"`
	Scope              Scope        `json:"scope"`
	SuccessCriteria    []string     `json:"success_criteria"`
	Constraints        []string     `json:"constraints"`
	Assumptions        []string     `json:"assumptions"`
	Risks              []Risk       `json:"risks" validate:"dive"`
}

type SystemComponent struct {
	Name             string   `json:"name" validate:"required"`
	Type             string   `json:"type"`
	Description      string   `json:"description"`
	Technologies     []string `json:"technologies"`
	Responsibilities []string `json:"responsibilities"`
}

type CommunicationPattern struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Protocol    string `json:"protocol"`
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
}

type ArchitecturePattern struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type Infrastructure struct {
	Hosting  string   `json:"hosting"`
	Services []string `json:"services"`
	CICD     string   `json:"ci_cd"`
}

// TechnicalArchitecture is the output of the architecture stage.
type TechnicalArchitecture struct {
	Overview              string                 `json:"overview" validate:"required"`
	DiagramDescription    string                 `json:"diagram_description"`
	SystemComponents      []SystemComponent      `json:"system_components" validate:"required,min=1,dive"`
	CommunicationPatterns []CommunicationPattern `json:"communication_patterns"`
	ArchitecturePatterns  []ArchitecturePattern  `json:"architecture_patterns" validate:"dive"`
	Infrastructure        Infrastructure         `json:"infrastructure"`
}

type Endpoint struct {
	Name          string `json:"name"`
	Method        string `json:"method" validate:"required"`
	Path          string `json:"path" validate:"required"`
	Description   string `json:"description"`
	Authenticated bool   `json:"authentication_required"`
	RequestBody   string `json:"request_body"`
	Response      string `json:"response"`
}

type Resource struct {
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description"`
	Endpoints   []Endpoint `json:"endpoints" validate:"required,min=1,dive"`
}

type Authentication struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// APIEndpoints is the output of the api_endpoints stage.
type APIEndpoints struct {
	Principles     []string       `json:"principles"`
	BaseURL        string         `json:"base_url"`
	Authentication Authentication `json:"authentication"`
	Resources      []Resource     `json:"resources" validate:"required,min=1,dive"`
}

type EntityProperty struct {
	Name        string `json:"name" validate:"required"`
	Type        string `json:"type" validate:"required"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

type Entity struct {
	Name        string           `json:"name" validate:"required"`
	Description string           `json:"description"`
	Properties  []EntityProperty `json:"properties" validate:"required,min=1,dive"`
}

type Relationship struct {
	Type        string   `json:"type"`
	Entities    []string `json:"entities"`
	Description string   `json:"description"`
}

// DataModels is the output of the data_models stage.
type DataModels struct {
	Entities      []Entity       `json:"entities" validate:"required,min=1,dive"`
	Relationships []Relationship `json:"relationships"`
}

type UIComponent struct {
	Name          string `json:"name" validate:"required"`
	Type          string `json:"type"`
	Description   string `json:"description"`
	Functionality string `json:"functionality"`
}

type Screen struct {
	Name        string        `json:"name" validate:"required"`
	Description string        `json:"description"`
	Route       string        `json:"route"`
	UserTypes   []string      `json:"user_types"`
	Components  []UIComponent `json:"components" validate:"dive"`
}

// UIComponents is the output of the ui_components stage.
type UIComponents struct {
	Screens []Screen `json:"screens" validate:"required,min=1,dive"`
}

type PlannedSubtask struct {
	Name        string            `json:"name" validate:"required"`
	Description string            `json:"description"`
	Status      models.WorkStatus `json:"status"`
}

type PlannedTask struct {
	Name               string              `json:"name" validate:"required"`
	Description        string              `json:"description"`
	Status             models.WorkStatus   `json:"status"`
	Priority           models.TaskPriority `json:"priority"`
	EstimatedHours     float64             `json:"estimated_hours" validate:"gte=0,lte=300"`
	Dependencies       []string            `json:"dependencies"`
	ComponentsAffected []string            `json:"components_affected"`
	APIsAffected       []string            `json:"apis_affected"`
	Subtasks           []PlannedSubtask    `json:"subtasks" validate:"dive"`
}

type PlannedMilestone struct {
	Name          string            `json:"name" validate:"required"`
	Description   string            `json:"description"`
	Status        models.WorkStatus `json:"status"`
	DueDateOffset int               `json:"due_date_offset" validate:"gte=0"`
	Tasks         []PlannedTask     `json:"tasks" validate:"required,min=1,dive"`
}

// ImplementationPlan is the output of the implementation_plan stage.
type ImplementationPlan struct {
	Milestones []PlannedMilestone `json:"milestones" validate:"required,min=1,dive"`
}

// TotalHours sums the estimates of every task.
func (p *ImplementationPlan) TotalHours() float64 {
	var sum float64
	for _, m := range p.Milestones {
		for _, t := range m.Tasks {
			sum += t.EstimatedHours
		}
	}
	return sum
}

// Plan accumulates the output of every stage.
type Plan struct {
	Input                 Input                  `json:"input"`
	Clarifications        map[string]string      `json:"clarifications,omitempty"`
	HighLevelPlan         *HighLevelPlan         `json:"high_level_plan"`
	TechnicalArchitecture *TechnicalArchitecture `json:"technical_architecture"`
	APIEndpoints          *APIEndpoints          `json:"api_endpoints"`
	DataModels            *DataModels            `json:"data_models"`
	UIComponents          *UIComponents          `json:"ui_components"`
	ImplementationPlan    *ImplementationPlan    `json:"implementation_plan"`
}
