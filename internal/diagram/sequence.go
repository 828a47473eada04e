// Package diagram generates sequence, class and activity diagrams for a
// project plan and renders them to SVG.
package diagram

import (
	"errors"
	"fmt"
	"strings"
)

// SequenceDiagram is the JSON intermediate for sequencediagram.org sources.
type SequenceDiagram struct {
	Title        string        `json:"title,omitempty"`
	Participants []Participant `json:"participants" validate:"required,min=1,dive"`
	Messages     []Message     `json:"messages" validate:"dive"`
	Groups       []Group       `json:"groups,omitempty" validate:"dive"`
	Notes        []Note        `json:"notes,omitempty" validate:"dive"`
}

type Participant struct {
	Name  string `json:"name" validate:"required"`
	Type  string `json:"type,omitempty" jsonschema:"enum=participant,enum=actor,enum=boundary,enum=control,enum=entity,enum=database"`
	Alias string `json:"alias,omitempty"`
}

type Message struct {
	From       string `json:"from" validate:"required"`
	To         string `json:"to" validate:"required"`
	Text       string `json:"text"`
	Type       string `json:"type,omitempty" jsonschema:"enum=solid,enum=dashed"`
	Activate   bool   `json:"activate,omitempty"`
	Deactivate bool   `json:"deactivate,omitempty"`
}

// Group is a combined fragment. Only alt groups carry alternatives.
type Group struct {
	Type         string        `json:"type" jsonschema:"enum=alt,enum=opt,enum=loop,enum=par,enum=group"`
	Label        string        `json:"label,omitempty"`
	Messages     []Message     `json:"messages" validate:"dive"`
	Alternatives []Alternative `json:"alternatives,omitempty" validate:"dive"`
}

type Alternative struct {
	Label    string    `json:"label,omitempty"`
	Messages []Message `json:"messages" validate:"dive"`
}

// Note is placed before the messages (position "start") or after the
// groups (position "end").
type Note struct {
	Participant string `json:"participant" validate:"required"`
	Text        string `json:"text"`
	Position    string `json:"position,omitempty" jsonschema:"enum=start,enum=end"`
	Side        string `json:"side,omitempty" jsonschema:"enum=over,enum=left,enum=right"`
}

var participantTypes = map[string]bool{
	"participant": true, "actor": true, "boundary": true,
	"control": true, "entity": true, "database": true,
}

var groupTypes = map[string]bool{
	"alt": true, "opt": true, "loop": true, "par": true, "group": true,
}

// ErrConversion marks sources that cannot be built from the JSON form.
var ErrConversion = errors.New("cannot convert diagram JSON")

// Source converts d into sequencediagram.org syntax. The output only
// depends on d.
func (d *SequenceDiagram) Source() (string, error) {
	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, strings.TrimRight(fmt.Sprintf(format, args...), " "))
	}
	blank := func() {
		if len(lines) > 0 && lines[len(lines)-1] != "" {
			lines = append(lines, "")
		}
	}

	if d.Title != "" {
		add("title %s", d.Title)
	}

	if len(d.Participants) == 0 {
		return "", fmt.Errorf("%w: no participants", ErrConversion)
	}
	blank()
	for i, p := range d.Participants {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return "", fmt.Errorf("%w: participant %d has no name", ErrConversion, i)
		}
		kind := p.Type
		if kind == "" {
			kind = "participant"
		}
		if !participantTypes[kind] {
			return "", fmt.Errorf("%w: participant %q has unknown type %q", ErrConversion, name, kind)
		}
		if p.Alias != "" {
			add("%s %s as %s", kind, quote(name), p.Alias)
		} else {
			add("%s %s", kind, quote(name))
		}
	}

	notes := func(position string) error {
		for _, n := range d.Notes {
			if n.Position != position {
				continue
			}
			line, err := noteLine(n)
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}
		return nil
	}

	blank()
	if err := notes("start"); err != nil {
		return "", err
	}

	if len(d.Messages) > 0 {
		blank()
		var err error
		if lines, err = appendMessages(lines, d.Messages); err != nil {
			return "", err
		}
	}

	for _, g := range d.Groups {
		kind := g.Type
		if kind == "" {
			kind = "group"
		}
		if !groupTypes[kind] {
			return "", fmt.Errorf("%w: unknown group type %q", ErrConversion, kind)
		}
		if len(g.Alternatives) > 0 && kind != "alt" {
			return "", fmt.Errorf("%w: %s group %q cannot have alternatives", ErrConversion, kind, g.Label)
		}

		blank()
		add("%s %s", kind, g.Label)
		var err error
		if lines, err = appendMessages(lines, g.Messages); err != nil {
			return "", err
		}
		for _, alt := range g.Alternatives {
			add("else %s", alt.Label)
			if lines, err = appendMessages(lines, alt.Messages); err != nil {
				return "", err
			}
		}
		lines = append(lines, "end")
	}

	blank()
	if err := notes("end"); err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.Join(lines, "\n")) + "\n", nil
}

func appendMessages(lines []string, msgs []Message) ([]string, error) {
	for _, m := range msgs {
		if m.From == "" || m.To == "" {
			return nil, fmt.Errorf("%w: message %q needs both from and to", ErrConversion, m.Text)
		}
		arrow := "->"
		if m.Type == "dashed" {
			arrow = "-->"
		}
		if m.Activate {
			lines = append(lines, "+"+m.To)
		}
		lines = append(lines, fmt.Sprintf("%s %s %s: %s", m.From, arrow, m.To, m.Text))
		if m.Deactivate {
			lines = append(lines, "-"+m.To)
		}
	}
	return lines, nil
}

func noteLine(n Note) (string, error) {
	switch n.Side {
	case "", "over":
		return fmt.Sprintf("note over %s: %s", n.Participant, n.Text), nil
	case "left", "right":
		return fmt.Sprintf("note %s of %s: %s", n.Side, n.Participant, n.Text), nil
	}
	return "", fmt.Errorf("%w: note on %s has unknown side %q", ErrConversion, n.Participant, n.Side)
}

// quote wraps names containing whitespace; the renderer reads bare words otherwise.
func quote(name string) string {
	if strings.ContainsAny(name, " \t") {
		return `"` + name + `"`
	}
	return name
}
