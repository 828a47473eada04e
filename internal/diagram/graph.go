package diagram

import (
	"fmt"
	"strings"
)

// ClassDiagram is the JSON intermediate of a UML class diagram.
type ClassDiagram struct {
	Classes       []Class        `json:"classes" validate:"required,min=1,dive"`
	Relationships []Relationship `json:"relationships" validate:"dive"`
}

type Class struct {
	Name       string      `json:"name" validate:"required"`
	Attributes []Attribute `json:"attributes" validate:"dive"`
	Methods    []Method    `json:"methods" validate:"dive"`
}

type Attribute struct {
	Visibility string `json:"visibility" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Type       string `json:"type" validate:"required"`
}

type Method struct {
	Visibility string      `json:"visibility" validate:"required"`
	Name       string      `json:"name" validate:"required"`
	Parameters []Parameter `json:"parameters"`
	ReturnType string      `json:"return_type" validate:"required"`
}

type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type RelationshipKind string

const (
	Inheritance   RelationshipKind = "inheritance"
	Composition   RelationshipKind = "composition"
	Aggregation   RelationshipKind = "aggregation"
	Association   RelationshipKind = "association"
	Bidirectional RelationshipKind = "bidirectional"
)

type Relationship struct {
	Source      string           `json:"source" validate:"required"`
	Target      string           `json:"target" validate:"required"`
	Type        RelationshipKind `json:"type" validate:"required" jsonschema:"enum=inheritance,enum=composition,enum=aggregation,enum=association,enum=bidirectional"`
	Cardinality *Cardinality     `json:"cardinality,omitempty"`
}

type Cardinality struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// edge attributes per relationship kind
var relationshipEdges = map[RelationshipKind]string{
	Inheritance:   `arrowhead="empty", style="solid"`,
	Composition:   `arrowhead="diamond", style="solid"`,
	Aggregation:   `arrowhead="odiamond", style="solid"`,
	Association:   `arrowhead="vee", style="solid"`,
	Bidirectional: `dir="both", arrowhead="vee", arrowtail="vee"`,
}

// Validate reports the first structural problem of d in a form that can
// be handed back to a generator as feedback.
func (d *ClassDiagram) Validate() error {
	if len(d.Classes) == 0 {
		return fmt.Errorf("class diagram needs at least one class")
	}
	names := make(map[string]bool, len(d.Classes))
	for i, c := range d.Classes {
		if c.Name == "" {
			return fmt.Errorf("class at index %d is missing a name", i)
		}
		if names[c.Name] {
			return fmt.Errorf("class %q is declared twice", c.Name)
		}
		names[c.Name] = true
	}
	for i, r := range d.Relationships {
		if _, ok := relationshipEdges[r.Type]; !ok {
			return fmt.Errorf("relationship at index %d has invalid type %q", i, r.Type)
		}
		if !names[r.Source] {
			return fmt.Errorf("relationship at index %d has source %q that is not a declared class", i, r.Source)
		}
		if !names[r.Target] {
			return fmt.Errorf("relationship at index %d has target %q that is not a declared class", i, r.Target)
		}
	}
	return nil
}

// DOT renders d as a graphviz digraph of record nodes.
func (d *ClassDiagram) DOT() string {
	var b strings.Builder
	b.WriteString("digraph ClassDiagram {\n")
	b.WriteString("  graph [rankdir=TB, splines=polyline, nodesep=0.8, ranksep=1.0];\n")
	b.WriteString("  node [shape=record, fontname=\"Arial\", fontsize=10];\n")
	b.WriteString("  edge [fontname=\"Arial\", fontsize=9];\n")

	for _, c := range d.Classes {
		parts := []string{recordEscape(c.Name)}
		if len(c.Attributes) > 0 {
			lines := make([]string, 0, len(c.Attributes))
			for _, a := range c.Attributes {
				lines = append(lines, recordEscape(fmt.Sprintf("%s %s: %s", a.Visibility, a.Name, a.Type)))
			}
			parts = append(parts, strings.Join(lines, `\l`)+`\l`)
		}
		if len(c.Methods) > 0 {
			lines := make([]string, 0, len(c.Methods))
			for _, m := range c.Methods {
				params := make([]string, 0, len(m.Parameters))
				for _, p := range m.Parameters {
					params = append(params, p.Name+": "+p.Type)
				}
				sig := fmt.Sprintf("%s %s(%s): %s", m.Visibility, m.Name, strings.Join(params, ", "), m.ReturnType)
				lines = append(lines, recordEscape(sig))
			}
			parts = append(parts, strings.Join(lines, `\l`)+`\l`)
		}
		fmt.Fprintf(&b, "  %s [label=\"{%s}\"];\n", dotID(c.Name), strings.Join(parts, "|"))
	}

	for _, r := range d.Relationships {
		attrs := relationshipEdges[r.Type]
		if r.Cardinality != nil && (r.Cardinality.Source != "" || r.Cardinality.Target != "") {
			attrs += fmt.Sprintf(`, taillabel=%s, headlabel=%s`, dotID(r.Cardinality.Source), dotID(r.Cardinality.Target))
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(r.Source), dotID(r.Target), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}

// ActivityDiagram is the JSON intermediate of a UML activity diagram.
type ActivityDiagram struct {
	Nodes []Node `json:"nodes" validate:"required,min=2,dive"`
	Flows []Flow `json:"flows" validate:"dive"`
}

type NodeKind string

const (
	NodeStart    NodeKind = "start"
	NodeEnd      NodeKind = "end"
	NodeActivity NodeKind = "activity"
	NodeDecision NodeKind = "decision"
	NodeMerge    NodeKind = "merge"
	NodeFork     NodeKind = "fork"
	NodeJoin     NodeKind = "join"
)

var nodeShapes = map[NodeKind]string{
	NodeStart:    `shape=circle, style=filled, fillcolor=black, width=0.3, label=""`,
	NodeEnd:      `shape=doublecircle, style=filled, fillcolor=black, width=0.25, label=""`,
	NodeActivity: `shape=box, style=rounded`,
	NodeDecision: `shape=diamond`,
	NodeMerge:    `shape=diamond, label=""`,
	NodeFork:     `shape=box, style=filled, fillcolor=black, height=0.05, width=1.5, label=""`,
	NodeJoin:     `shape=box, style=filled, fillcolor=black, height=0.05, width=1.5, label=""`,
}

type Node struct {
	ID    string   `json:"id" validate:"required"`
	Type  NodeKind `json:"type" validate:"required" jsonschema:"enum=start,enum=end,enum=activity,enum=decision,enum=merge,enum=fork,enum=join"`
	Label string   `json:"label"`
}

type Flow struct {
	Source    string `json:"source" validate:"required"`
	Target    string `json:"target" validate:"required"`
	Condition string `json:"condition,omitempty"`
}

// Validate checks node kinds, that there is exactly one start and at least
// one end node, that flows connect declared nodes and that every flow
// leaving a decision is labelled with a condition.
func (d *ActivityDiagram) Validate() error {
	kinds := make(map[string]NodeKind, len(d.Nodes))
	var starts, ends int
	for i, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node at index %d is missing an id", i)
		}
		if _, ok := nodeShapes[n.Type]; !ok {
			return fmt.Errorf("node %q has invalid type %q", n.ID, n.Type)
		}
		if _, dup := kinds[n.ID]; dup {
			return fmt.Errorf("node id %q is used twice", n.ID)
		}
		kinds[n.ID] = n.Type
		switch n.Type {
		case NodeStart:
			starts++
		case NodeEnd:
			ends++
		}
	}
	if starts != 1 {
		return fmt.Errorf("activity diagram must have exactly one start node, found %d", starts)
	}
	if ends == 0 {
		return fmt.Errorf("activity diagram must have at least one end node")
	}

	for i, f := range d.Flows {
		src, ok := kinds[f.Source]
		if !ok {
			return fmt.Errorf("flow at index %d has source %q that is not a defined node", i, f.Source)
		}
		if _, ok := kinds[f.Target]; !ok {
			return fmt.Errorf("flow at index %d has target %q that is not a defined node", i, f.Target)
		}
		if src == NodeDecision && strings.TrimSpace(f.Condition) == "" {
			return fmt.Errorf("flow at index %d from decision node %q is missing a condition", i, f.Source)
		}
	}
	return nil
}

// DOT renders d as a top-down graphviz digraph.
func (d *ActivityDiagram) DOT() string {
	var b strings.Builder
	b.WriteString("digraph ActivityDiagram {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [fontname=\"Arial\", fontsize=10];\n")
	b.WriteString("  edge [fontname=\"Arial\", fontsize=9];\n")

	for _, n := range d.Nodes {
		shape := nodeShapes[n.Type]
		if strings.Contains(shape, `label=""`) {
			fmt.Fprintf(&b, "  %s [%s];\n", dotID(n.ID), shape)
			continue
		}
		fmt.Fprintf(&b, "  %s [label=%s, %s];\n", dotID(n.ID), dotID(n.Label), shape)
	}
	for _, f := range d.Flows {
		if f.Condition != "" {
			fmt.Fprintf(&b, "  %s -> %s [label=%s];\n", dotID(f.Source), dotID(f.Target), dotID(f.Condition))
			continue
		}
		fmt.Fprintf(&b, "  %s -> %s;\n", dotID(f.Source), dotID(f.Target))
	}

	b.WriteString("}\n")
	return b.String()
}

// dotID quotes s as a DOT string literal.
func dotID(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
}

var recordReplacer = strings.NewReplacer(
	`\`, `\\`, `"`, `\"`, `<`, `\<`, `>`, `\>`,
	`{`, `\{`, `}`, `\}`, `|`, `\|`, "\n", " ",
)

// recordEscape escapes the characters that structure record labels.
func recordEscape(s string) string {
	return recordReplacer.Replace(s)
}
