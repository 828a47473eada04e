package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema is a named JSON schema document describing a structured output.
type Schema struct {
	Name     string
	Document map[string]any
}

var reflector = &jsonschema.Reflector{
	DoNotReference: true,
	ExpandedStruct: true,
}

// SchemaFor derives the schema of T from its json tags.
func SchemaFor[T any](name string) *Schema {
	var zero T
	s := reflector.Reflect(&zero)
	s.Version = ""

	raw, err := json.Marshal(s)
	if err != nil {
		// reflection output always marshals; a failure is a programming error
		panic(fmt.Sprintf("llm: marshal schema %s: %v", name, err))
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		panic(fmt.Sprintf("llm: decode schema %s: %v", name, err))
	}
	return &Schema{Name: name, Document: doc}
}

// Reminder is appended to prompts for generators without native
// structured output.
func (s *Schema) Reminder() string {
	raw, _ := json.MarshalIndent(s.Document, "", "  ")
	return "\n\nIMPORTANT: Respond ONLY with a single valid JSON object that matches this JSON schema exactly. " +
		"Do not wrap it in markdown and do not add commentary.\n" + string(raw)
}
