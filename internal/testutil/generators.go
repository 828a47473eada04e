package testutil

import (
	"context"
	"sync"

	"projectron-api/internal/llm"
)

// FakeGenerator is a scripted llm.Generator that records every request.
type FakeGenerator struct {
	Name    string
	Cap     llm.Capability
	Respond func(req llm.Request) (string, error)

	mu       sync.Mutex
	requests []llm.Request
}

func (f *FakeGenerator) Model() string              { return f.Name }
func (f *FakeGenerator) Capability() llm.Capability { return f.Cap }

func (f *FakeGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.Respond(req)
}

// Calls returns how many times Generate ran.
func (f *FakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns a copy of the recorded requests.
func (f *FakeGenerator) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}

// Reply builds a generator that always answers text.
func Reply(name, text string) *FakeGenerator {
	return &FakeGenerator{
		Name:    name,
		Respond: func(llm.Request) (string, error) { return text, nil },
	}
}

// Failing builds a generator that always returns err.
func Failing(name string, err error) *FakeGenerator {
	return &FakeGenerator{
		Name:    name,
		Respond: func(llm.Request) (string, error) { return "", err },
	}
}

// BySchema answers with the entry matching the request schema name;
// requests without a schema get the "" entry.
func BySchema(name string, answers map[string]string) *FakeGenerator {
	return &FakeGenerator{
		Name: name,
		Respond: func(req llm.Request) (string, error) {
			key := ""
			if req.Schema != nil {
				key = req.Schema.Name
			}
			return answers[key], nil
		},
	}
}

