// Package llm wraps the language model providers behind a single
// Generator interface and runs requests through fallback chains.
package llm

import "context"

// Capability describes how a generator honours a response schema.
// It is fixed when the generator is constructed.
type Capability int

const (
	// NativeStructured generators enforce the schema server side.
	NativeStructured Capability = iota
	// PromptJSON generators only see the schema inside the prompt.
	PromptJSON
)

func (c Capability) String() string {
	switch c {
	case NativeStructured:
		return "native_structured"
	case PromptJSON:
		return "prompt_json"
	}
	return "unknown"
}

// Request is one generation call.
type Request struct {
	System      string
	Prompt      string
	Schema      *Schema
	Temperature *float64
}

// Generator produces text for a request. When Request.Schema is set the
// text must be a JSON document.
type Generator interface {
	Model() string
	Capability() Capability
	Generate(ctx context.Context, req Request) (string, error)
}

// Temp is a helper for Request.Temperature.
func Temp(v float64) *float64 { return &v }
