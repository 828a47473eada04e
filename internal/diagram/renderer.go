package diagram

import (
	"context"
	"errors"

	"projectron-api/internal/metrics"
	"projectron-api/internal/resilience"
	"projectron-api/internal/telemetry"
)

// SequenceRenderer checks and draws sequencediagram.org sources.
type SequenceRenderer interface {
	// Validate returns a *SyntaxError when the renderer rejects source.
	// Any other error means the renderer itself failed.
	Validate(ctx context.Context, source string) error
	Render(ctx context.Context, source string) (string, error)
}

// GraphRenderer draws DOT sources.
type GraphRenderer interface {
	Render(ctx context.Context, dot string) (string, error)
}

// SyntaxError is a rejection of the diagram source, not a renderer fault.
type SyntaxError struct {
	Detail string
}

func (e *SyntaxError) Error() string {
	return "invalid diagram syntax: " + e.Detail
}

// GuardedRenderer routes calls through a circuit breaker. Syntax errors
// are answers from a healthy renderer and never count as failures.
type GuardedRenderer struct {
	next    SequenceRenderer
	breaker *resilience.Breaker
}

func Guard(next SequenceRenderer, breaker *resilience.Breaker) *GuardedRenderer {
	return &GuardedRenderer{next: next, breaker: breaker}
}

func (g *GuardedRenderer) Validate(ctx context.Context, source string) (err error) {
	ctx, span := telemetry.StartRendererSpan(ctx, "validate")
	defer func() { telemetry.End(span, err) }()

	var syntax error
	err = g.breaker.Execute(ctx, func(ctx context.Context) error {
		verr := g.next.Validate(ctx, source)
		var se *SyntaxError
		if errors.As(verr, &se) {
			syntax = verr
			return nil
		}
		return verr
	})
	metrics.RecordRendererCall("validate", err == nil)
	if err != nil {
		return err
	}
	return syntax
}

func (g *GuardedRenderer) Render(ctx context.Context, source string) (svg string, err error) {
	ctx, span := telemetry.StartRendererSpan(ctx, "render")
	defer func() { telemetry.End(span, err) }()

	err = g.breaker.Execute(ctx, func(ctx context.Context) error {
		var rerr error
		svg, rerr = g.next.Render(ctx, source)
		return rerr
	})
	metrics.RecordRendererCall("render", err == nil)
	return svg, err
}
