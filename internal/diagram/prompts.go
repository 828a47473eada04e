package diagram

import (
	"fmt"
	"strings"
	"text/template"
)

const systemPrompt = "You are a software architect who draws precise, readable technical diagrams. " +
	"Answer only in the requested format."

var prompts = template.Must(template.New("diagram").Parse(`
{{define "context"}}# Project plan
{{.ProjectPlan}}
{{if .Existing}}
# Current diagram
{{.Existing}}
{{end}}{{if .ChangeRequest}}
# Change request
{{.ChangeRequest}}
{{end}}{{end}}

{{define "sequence"}}{{template "context" .}}
# Instructions
Describe the main sequence diagram of this system as JSON: participants (name, type one of
participant/actor/boundary/control/entity/database, optional short alias), the messages of the
main flow in order (from, to, text, type solid or dashed for replies, activate/deactivate),
groups for alternatives (alt with alternatives, opt, loop, par) and notes (position start or end,
side over/left/right). Messages must reference participants by alias when one is given.
Keep it focused: at most 10 participants and 30 messages.
{{if .Existing}}Apply the change request to the current diagram and keep everything else.{{end}}
{{end}}

{{define "class"}}{{template "context" .}}
# Instructions
Describe a UML class diagram of the core architecture as JSON: classes with attributes
(visibility, name, type) and methods (visibility, name, parameters, return_type), and
relationships (source, target, type one of inheritance/composition/aggregation/association/
bidirectional, optional cardinality). Use at most 15 classes and only the primary domain
entities, services and repositories. Relationships may only reference declared classes.
{{if .Existing}}Apply the change request to the current diagram and keep everything else.{{end}}
{{end}}

{{define "activity"}}{{template "context" .}}
# Instructions
Describe a UML activity diagram of the main user workflow as JSON: nodes (id, type one of
start/end/activity/decision/merge/fork/join, label) and flows (source, target, condition).
Use exactly one start node and at least one end node. Every flow leaving a decision node needs
a condition. Flows may only reference declared node ids.
{{if .Existing}}Apply the change request to the current diagram and keep everything else.{{end}}
{{end}}

{{define "sequence_source"}}Convert this sequence diagram JSON into sequencediagram.org syntax.

{{.JSON}}

Use "participant"/"actor"/... declarations with "as" aliases, "A->B: text" for calls,
"A-->B: text" for replies, "+B"/"-B" for activation and alt/else/opt/loop/par ... end blocks.
Output only the diagram source without markdown fences.
{{end}}
`))

type promptData struct {
	ProjectPlan   string
	Existing      string
	ChangeRequest string
	JSON          string
}

func render(name string, data promptData) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

func withFeedback(prompt, feedback string) string {
	if feedback == "" {
		return prompt
	}
	return prompt + "\n\nFeedback from previous attempt:\n" + feedback + "\n\nPlease correct the issues and try again."
}

// extractSource strips markdown fences from a generated diagram source.
func extractSource(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
