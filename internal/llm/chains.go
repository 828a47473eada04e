package llm

import (
	"context"

	"projectron-api/internal/config"

	"go.uber.org/zap"
)

// Task names a family of requests that share a fallback chain.
type Task string

const (
	TaskClarify        Task = "clarify"
	TaskHighLevel      Task = "high_level"
	TaskArchitecture   Task = "architecture"
	TaskAPIEndpoints   Task = "api_endpoints"
	TaskDataModels     Task = "data_models"
	TaskUIComponents   Task = "ui_components"
	TaskImplementation Task = "implementation_plan"
	TaskDiagram        Task = "diagram"
	TaskContext        Task = "context"
)

const (
	model4oMini   = "gpt-4o-mini"
	model41Nano   = "gpt-4.1-nano"
	model41Mini   = "gpt-4.1-mini"
	modelFallback = "gemini"
)

// chainOrder lists model keys per task, primary first.
var chainOrder = map[Task][]string{
	TaskClarify:        {model41Nano, model4oMini, modelFallback},
	TaskHighLevel:      {model4oMini, modelFallback, model41Nano, model41Mini},
	TaskArchitecture:   {model4oMini, modelFallback, model41Nano, model41Mini},
	TaskAPIEndpoints:   {model4oMini, model41Nano, model41Mini, modelFallback},
	TaskDataModels:     {model41Mini, model4oMini, model41Nano, modelFallback},
	TaskUIComponents:   {model41Mini, model4oMini, model41Nano, modelFallback},
	TaskImplementation: {model41Mini, model4oMini, model41Nano, modelFallback},
	TaskDiagram:        {model41Mini, model4oMini, modelFallback},
	TaskContext:        {model41Mini, model4oMini, modelFallback},
}

// Chains resolves the configured chain of each task.
type Chains interface {
	For(task Task) Chain
}

// Registry builds chains from the generators available at startup.
// Providers without an API key are left out of every chain.
type Registry struct {
	byKey map[string]Generator
}

// NewRegistry wires the OpenAI and Gemini generators from cfg.
func NewRegistry(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) *Registry {
	r := &Registry{byKey: map[string]Generator{}}
	if cfg.OpenAIKey != "" {
		for _, m := range []string{model4oMini, model41Nano, model41Mini} {
			r.byKey[m] = NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, m)
		}
	}
	if cfg.GeminiKey != "" {
		g, err := NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("gemini generator disabled", zap.Error(err))
		} else {
			r.byKey[modelFallback] = g
		}
	}
	if len(r.byKey) == 0 {
		logger.Warn("no LLM provider configured; generation endpoints will fail")
	}
	return r
}

func (r *Registry) For(task Task) Chain {
	var gens []Generator
	for _, key := range chainOrder[task] {
		if g, ok := r.byKey[key]; ok {
			gens = append(gens, g)
		}
	}
	return NewChain(gens...)
}

// StaticChains returns the same chain for every task. Handy for tests and
// single-model deployments.
type StaticChains struct {
	Chain Chain
}

func (s StaticChains) For(Task) Chain { return s.Chain }
