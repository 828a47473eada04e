package diagram

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func loginDiagram() SequenceDiagram {
	return SequenceDiagram{
		Title: "Login",
		Participants: []Participant{
			{Name: "User", Type: "actor"},
			{Name: "Web App", Alias: "web"},
			{Name: "DB", Type: "database"},
		},
		Messages: []Message{
			{From: "User", To: "web", Text: "submit credentials", Activate: true},
			{From: "web", To: "DB", Text: "find user"},
			{From: "DB", To: "web", Text: "user row", Type: "dashed"},
		},
		Groups: []Group{{
			Type:     "alt",
			Label:    "valid password",
			Messages: []Message{{From: "web", To: "User", Text: "session cookie", Type: "dashed", Deactivate: true}},
			Alternatives: []Alternative{{
				Label:    "otherwise",
				Messages: []Message{{From: "web", To: "User", Text: "401", Type: "dashed"}},
			}},
		}},
		Notes: []Note{
			{Participant: "web", Text: "rate limited", Position: "start"},
			{Participant: "DB", Text: "read replica", Position: "end", Side: "right"},
		},
	}
}

const loginSource = `title Login

actor User
participant "Web App" as web
database DB

note over web: rate limited

+web
User -> web: submit credentials
web -> DB: find user
DB --> web: user row

alt valid password
web --> User: session cookie
-User
else otherwise
web --> User: 401
end

note right of DB: read replica
`

func TestSequenceSource(t *testing.T) {
	d := loginDiagram()
	src, err := d.Source()
	require.NoError(t, err)
	require.Equal(t, loginSource, src)

	again, err := d.Source()
	require.NoError(t, err)
	require.Equal(t, src, again)
}

func TestSequenceSourceSkipsEmptySections(t *testing.T) {
	d := SequenceDiagram{
		Participants: []Participant{{Name: "A"}, {Name: "B"}},
		Groups:       []Group{{Type: "loop", Messages: []Message{{From: "A", To: "B", Text: "poll"}}}},
	}
	src, err := d.Source()
	require.NoError(t, err)
	require.Equal(t, "participant A\nparticipant B\n\nloop\nA -> B: poll\nend\n", src)
}

func TestSequenceSourceRejectsBadJSON(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *SequenceDiagram)
	}{
		{"no participants", func(d *SequenceDiagram) { d.Participants = nil }},
		{"blank participant", func(d *SequenceDiagram) { d.Participants[0].Name = "  " }},
		{"unknown participant type", func(d *SequenceDiagram) { d.Participants[0].Type = "robot" }},
		{"message without sender", func(d *SequenceDiagram) { d.Messages[1].From = "" }},
		{"unknown group type", func(d *SequenceDiagram) { d.Groups[0].Type = "critical" }},
		{"alternatives outside alt", func(d *SequenceDiagram) { d.Groups[0].Type = "opt" }},
		{"bad note side", func(d *SequenceDiagram) { d.Notes[1].Side = "under" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := loginDiagram()
			tt.mutate(&d)
			_, err := d.Source()
			require.ErrorIs(t, err, ErrConversion)
		})
	}
}
