package diagram

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func shopClasses() ClassDiagram {
	return ClassDiagram{
		Classes: []Class{
			{
				Name:       "User",
				Attributes: []Attribute{{Visibility: "+", Name: "id", Type: "string"}},
				Methods: []Method{{
					Visibility: "+", Name: "Save",
					Parameters: []Parameter{{Name: "ctx", Type: "Context"}},
					ReturnType: "error",
				}},
			},
			{Name: "Admin"},
			{
				Name:       "Order",
				Attributes: []Attribute{{Visibility: "-", Name: "lines", Type: "List<Line>"}},
			},
		},
		Relationships: []Relationship{
			{Source: "Admin", Target: "User", Type: Inheritance},
			{Source: "User", Target: "Order", Type: Association, Cardinality: &Cardinality{Source: "1", Target: "many"}},
		},
	}
}

func TestClassDiagramValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *ClassDiagram)
		wantErr string
	}{
		{"valid", func(*ClassDiagram) {}, ""},
		{"no classes", func(d *ClassDiagram) { d.Classes = nil }, "at least one class"},
		{"duplicate class", func(d *ClassDiagram) { d.Classes[1].Name = "User" }, "declared twice"},
		{"bad relationship kind", func(d *ClassDiagram) { d.Relationships[0].Type = "friendship" }, "invalid type"},
		{"unknown target", func(d *ClassDiagram) { d.Relationships[1].Target = "Invoice" }, `target "Invoice"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := shopClasses()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestClassDiagramDOT(t *testing.T) {
	d := shopClasses()
	dot := d.DOT()

	require.Contains(t, dot, "digraph ClassDiagram {")
	require.Contains(t, dot, `"User" [label="{User|+ id: string\l|+ Save(ctx: Context): error\l}"];`)
	require.Contains(t, dot, `"Admin" [label="{Admin}"];`)
	require.Contains(t, dot, `- lines: List\<Line\>\l`)
	require.Contains(t, dot, `"Admin" -> "User" [arrowhead="empty", style="solid"];`)
	require.Contains(t, dot, `"User" -> "Order" [arrowhead="vee", style="solid", taillabel="1", headlabel="many"];`)
}

func checkoutFlow() ActivityDiagram {
	return ActivityDiagram{
		Nodes: []Node{
			{ID: "start", Type: NodeStart},
			{ID: "pay", Type: NodeActivity, Label: "Pay"},
			{ID: "ok", Type: NodeDecision, Label: "Paid?"},
			{ID: "done", Type: NodeEnd},
		},
		Flows: []Flow{
			{Source: "start", Target: "pay"},
			{Source: "pay", Target: "ok"},
			{Source: "ok", Target: "done", Condition: "yes"},
			{Source: "ok", Target: "pay", Condition: "no"},
		},
	}
}

func TestActivityDiagramValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *ActivityDiagram)
		wantErr string
	}{
		{"valid", func(*ActivityDiagram) {}, ""},
		{"bad kind", func(d *ActivityDiagram) { d.Nodes[1].Type = "swimlane" }, "invalid type"},
		{"duplicate id", func(d *ActivityDiagram) { d.Nodes[2].ID = "pay" }, "used twice"},
		{"second start", func(d *ActivityDiagram) { d.Nodes[1].Type = NodeStart }, "exactly one start node, found 2"},
		{"no start", func(d *ActivityDiagram) { d.Nodes[0].Type = NodeActivity }, "exactly one start node, found 0"},
		{"no end", func(d *ActivityDiagram) { d.Nodes[3].Type = NodeActivity }, "at least one end node"},
		{"unknown source", func(d *ActivityDiagram) { d.Flows[0].Source = "ghost" }, `source "ghost"`},
		{"unknown target", func(d *ActivityDiagram) { d.Flows[1].Target = "ghost" }, `target "ghost"`},
		{"decision without condition", func(d *ActivityDiagram) { d.Flows[3].Condition = " " }, "missing a condition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := checkoutFlow()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestActivityDiagramDOT(t *testing.T) {
	d := checkoutFlow()
	d.Nodes[1].Label = `Pay "now"`
	dot := d.DOT()

	require.Contains(t, dot, "digraph ActivityDiagram {")
	require.Contains(t, dot, `"start" [shape=circle`)
	require.Contains(t, dot, `"pay" [label="Pay \"now\"", shape=box, style=rounded];`)
	require.Contains(t, dot, `"ok" [label="Paid?", shape=diamond];`)
	require.Contains(t, dot, `"ok" -> "done" [label="yes"];`)
	require.Contains(t, dot, `"start" -> "pay";`)
}
