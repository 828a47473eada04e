package planner

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"projectron-api/internal/llm"
	"projectron-api/internal/models"
)

var contextPrompt = template.Must(template.New("context").Parse(`You are preparing a briefing for an AI coding assistant that is about to work on this project.

# Project
Name: {{.Name}}
Description: {{.Description}}
Experience level: {{.ExperienceLevel}}
Team size: {{.TeamSize}}
Tech stack: {{.Stack}}

# Plan documents
High-level plan: {{printf "%s" .HighLevelPlan}}
Technical architecture: {{printf "%s" .TechnicalArchitecture}}
API endpoints: {{printf "%s" .APIEndpoints}}
Data models: {{printf "%s" .DataModels}}
UI components: {{printf "%s" .UIComponents}}
Implementation plan: {{printf "%s" .ImplementationPlan}}

# Developer notes
{{if .ContextNotes}}{{.ContextNotes}}{{else}}None.{{end}}

# Instructions
Write a complete development context in markdown: purpose, architecture, key entities and
endpoints, conventions to follow, current progress and the next concrete steps. Give the
developer notes priority over the plan documents when they disagree. Output only the markdown.
`))

type contextView struct {
	*models.Project
}

func (v contextView) Stack() string {
	if len(v.TechStack) == 0 {
		return "not specified"
	}
	return strings.Join(v.TechStack, ", ")
}

// Contextualize writes a development context summary for project from its
// plan documents and context notes.
func (p *Pipeline) Contextualize(ctx context.Context, project *models.Project) (string, error) {
	var b strings.Builder
	if err := contextPrompt.Execute(&b, contextView{project}); err != nil {
		return "", fmt.Errorf("render context prompt: %w", err)
	}

	var out string
	req := llm.Request{System: systemPrompt, Prompt: b.String(), Temperature: llm.Temp(0.3)}
	if err := p.exec.Execute(ctx, p.chains.For(llm.TaskContext), req, &out); err != nil {
		return "", err
	}
	return out, nil
}
