package planner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

const systemPrompt = "You are a senior software architect and delivery lead. " +
	"You produce concrete, buildable software plans and always answer in the requested format."

const projectHeader = `# Project
Name: {{.Input.Name}}
Description: {{.Input.Description}}
Experience level: {{.Experience}}
Team size: {{.TeamSize}}
Tech stack: {{.TechStack}}
Time budget: {{.TotalHours}} hours
`

var prompts = template.Must(template.New("plan").Parse(`
{{define "clarify"}}` + projectHeader + `
# Instructions
Write 4-6 short clarification questions that would most improve a plan for this project.
Each question must be answerable in one or two sentences. About three quarters should be
technical (data, integrations, authentication, platforms) and the rest about product priorities.
Return {"questions": [...]}.
{{end}}

{{define "high_level"}}` + projectHeader + `
# Clarifications
{{.Clarifications}}

# Instructions
Create the high-level plan: vision, measurable business objectives, target users with their
needs and pain points, core features, scope (in and out), success criteria, constraints,
assumptions and risks with impact and mitigation.
Keep the tech stack provided by the user and only add what is missing.
Assume a capable team: for a {{.TotalHours}} hour budget plan what an efficient team could
deliver in about {{.ExtendedHours}} hours. Be ambitious but achievable.
{{end}}

{{define "architecture"}}` + projectHeader + `
# High-level plan
Vision: {{.Vision}}
Core features: {{.CoreFeatures}}
Scope: {{.Scope}}
Constraints: {{.Constraints}}

# Instructions
Design the technical architecture: overview, a textual diagram description, system components
(name, type such as frontend/backend/database/service, technologies, responsibilities),
communication patterns between components, architecture patterns and infrastructure
(hosting, services, CI/CD). Size it for about {{.ExtendedHours}} hours of work.
{{end}}

{{define "api_endpoints"}}` + projectHeader + `
# Context
Core features: {{.CoreFeatures}}
Target users: {{.TargetUsers}}
System components: {{.Components}}
Architecture patterns: {{.Patterns}}

# Instructions
Design the REST API. Group endpoints into {{.ResourceGuidance}} resources. For each endpoint give
method, path, description, whether authentication is required, request body and response.
Also give API principles, the base URL and the authentication scheme.
{{end}}

{{define "data_models"}}` + projectHeader + `
# Context
API resources: {{.Resources}}
Authentication: {{.AuthType}}

# Instructions
Define about {{.EntityTarget}} data entities (never fewer than 5 or more than 12) that back the
API resources. For each entity list its properties with type, description and whether it is
required. Then list the relationships between entities (type, entities involved, description).
{{end}}

{{define "ui_components"}}` + projectHeader + `
# Context
Core features: {{.CoreFeatures}}
Target users: {{.TargetUsers}}
Frontend components: {{.FrontendComponents}}
API resources: {{.Resources}}
Data entities: {{.Entities}}

# Instructions
Describe the screens of the application. For each screen give name, description, route, the
user types that see it and its UI components (name, type, description, functionality).
{{end}}

{{define "implementation_plan"}}` + projectHeader + `
# Context
Core features: {{.CoreFeatures}}
System components: {{.Components}}
API resources: {{.Resources}}
Data entities: {{.Entities}}
Screens: {{.Screens}}

# Instructions
Write the implementation plan as ordered milestones. Each milestone has a name, description,
status "not_started", due_date_offset in days from the project start and ordered tasks.
Each task has name, description, status "not_started", priority (low, medium, high),
estimated_hours (1-300), dependencies (exact names of earlier tasks), components_affected,
apis_affected and 2-5 subtasks (name, description, status "not_started").
HARD CONSTRAINT: the estimated_hours of all tasks must add up to {{.TotalHours}} hours,
within 5 percent ({{.MinHours}}-{{.MaxHours}} hours).
{{end}}
`))

// promptData is the view every template renders from.
type promptData struct {
	Input          Input
	Clarifications string

	Vision             string
	CoreFeatures       string
	Scope              string
	Constraints        string
	TargetUsers        string
	Components         string
	FrontendComponents string
	Patterns           string
	Resources          string
	AuthType           string
	Entities           string
	Screens            string

	ResourceGuidance string
	EntityTarget     int
}

func (d promptData) Experience() string {
	if d.Input.ExperienceLevel == "" {
		return "junior"
	}
	return string(d.Input.ExperienceLevel)
}

func (d promptData) TeamSize() int {
	if d.Input.TeamSize < 1 {
		return 1
	}
	return d.Input.TeamSize
}

func (d promptData) TechStack() string {
	if len(d.Input.TechStack) == 0 {
		return "no preference"
	}
	return strings.Join(d.Input.TechStack, ", ")
}

func (d promptData) TotalHours() int    { return d.Input.TotalHours() }
func (d promptData) ExtendedHours() int { return d.Input.ExtendedHours() }
func (d promptData) MinHours() int      { return int(float64(d.Input.TotalHours()) * 0.95) }
func (d promptData) MaxHours() int      { return int(float64(d.Input.TotalHours()) * 1.05) }

func render(name string, data promptData) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// ResourceGuidance scales the number of API resources with the budget.
func ResourceGuidance(totalHours int) string {
	switch {
	case totalHours < 50:
		return "3-4"
	case totalHours <= 150:
		return "5-6"
	default:
		return "6-8"
	}
}

// EntityTarget suggests how many entities to model for n API resources.
func EntityTarget(resources int) int {
	n := resources * 2
	if n < 5 {
		return 5
	}
	if n > 12 {
		return 12
	}
	return n
}

func formatQA(qa map[string]string) string {
	if len(qa) == 0 {
		return "None provided."
	}
	questions := make([]string, 0, len(qa))
	for q := range qa {
		questions = append(questions, q)
	}
	sort.Strings(questions)

	var b strings.Builder
	for _, q := range questions {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", q, qa[q])
	}
	return strings.TrimSpace(b.String())
}

func list(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, "; ")
}

func compact(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// isFrontend reports whether a component belongs to the client side.
func isFrontend(c SystemComponent) bool {
	text := strings.ToLower(c.Type + " " + c.Name)
	for _, kw := range []string{"frontend", "ui", "client"} {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
