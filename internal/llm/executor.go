package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"projectron-api/internal/logger"
	"projectron-api/internal/metrics"
	"projectron-api/internal/telemetry"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	ErrExhausted    = errors.New("all generators failed")
	ErrEmptyOutput  = errors.New("generator returned empty output")
	ErrNoGenerators = errors.New("no generators configured")
)

// ExhaustedError is returned when every generator of a chain failed.
type ExhaustedError struct {
	Models []string
	Last   error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d generators failed (%s): %v", len(e.Models), strings.Join(e.Models, ", "), e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Last}
}

// Chain is a primary generator followed by ordered fallbacks.
type Chain struct {
	Primary   Generator
	Fallbacks []Generator
}

// NewChain drops nil entries; the first remaining generator becomes primary.
func NewChain(gens ...Generator) Chain {
	var live []Generator
	for _, g := range gens {
		if g != nil {
			live = append(live, g)
		}
	}
	if len(live) == 0 {
		return Chain{}
	}
	return Chain{Primary: live[0], Fallbacks: live[1:]}
}

func (c Chain) generators() []Generator {
	if c.Primary == nil {
		return nil
	}
	return append([]Generator{c.Primary}, c.Fallbacks...)
}

// Len is the number of generators in the chain.
func (c Chain) Len() int { return len(c.generators()) }

// Executor runs a request through a chain, one pass, no backoff.
type Executor struct {
	timeout  time.Duration
	validate *validator.Validate
	logger   *zap.Logger
}

func NewExecutor(timeout time.Duration, l *zap.Logger) *Executor {
	return &Executor{
		timeout:  timeout,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Or(l),
	}
}

// Execute tries every generator of chain in order and decodes the first
// usable answer into out. out must be a non-nil pointer; a *string receives
// the raw text when req.Schema is nil.
func (e *Executor) Execute(ctx context.Context, chain Chain, req Request, out any) error {
	gens := chain.generators()
	if len(gens) == 0 {
		return ErrNoGenerators
	}

	models := make([]string, 0, len(gens))
	var last error
	for i, g := range gens {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("generation cancelled after %d attempts: %w", i, err)
		}
		models = append(models, g.Model())

		err := e.attempt(ctx, g, i, req, out)
		if err == nil {
			if i > 0 {
				e.logger.Info("fallback generator succeeded",
					zap.String("model", g.Model()), zap.Int("attempt", i+1))
			}
			return nil
		}
		last = err
		e.logger.Warn("generator failed",
			zap.String("model", g.Model()),
			zap.Int("attempt", i+1),
			zap.Int("chain_len", len(gens)),
			zap.Error(err))
	}
	return &ExhaustedError{Models: models, Last: last}
}

func (e *Executor) attempt(ctx context.Context, g Generator, i int, req Request, out any) (err error) {
	ctx, span := telemetry.StartGenerationSpan(ctx, g.Model(), i+1)
	defer func() { telemetry.End(span, err) }()

	if req.Schema != nil && g.Capability() == PromptJSON {
		req.Prompt += req.Schema.Reminder()
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.Generate(ctx, req)
	if err == nil {
		err = e.decode(text, req.Schema != nil, out)
	}
	metrics.RecordLLMRequest(g.Model(), err == nil, time.Since(start))
	return err
}

func (e *Executor) decode(text string, structured bool, out any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == "null" {
		return ErrEmptyOutput
	}

	if s, ok := out.(*string); ok && !structured {
		*s = trimmed
		return nil
	}

	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", out)
	}

	// decode into a fresh value so a rejected answer never leaks into out
	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal([]byte(ExtractJSON(trimmed)), fresh.Interface()); err != nil {
		return fmt.Errorf("decode structured output: %w", err)
	}
	if fresh.Elem().Kind() == reflect.Struct {
		if err := e.validate.Struct(fresh.Interface()); err != nil {
			return fmt.Errorf("validate structured output: %w", err)
		}
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// ExtractJSON strips markdown fences and surrounding prose from a model
// answer, returning the outermost JSON object or array.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return text[start:]
	}
	return text[start : end+1]
}
