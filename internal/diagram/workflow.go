package diagram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"projectron-api/internal/llm"
	"projectron-api/internal/logger"
	"projectron-api/internal/metrics"
	"projectron-api/internal/models"
	"projectron-api/internal/resilience"

	"go.uber.org/zap"
)

var (
	ErrUnsupportedKind     = errors.New("unsupported diagram type")
	ErrRendererUnavailable = errors.New("diagram renderer unavailable")
)

var (
	sequenceSchema = llm.SchemaFor[SequenceDiagram]("sequence_diagram")
	classSchema    = llm.SchemaFor[ClassDiagram]("class_diagram")
	activitySchema = llm.SchemaFor[ActivityDiagram]("activity_diagram")
)

// Options tune a Workflow. Zero values fall back to the defaults.
type Options struct {
	MaxIterations int
	Temperature   float64
	Timeout       time.Duration
}

// Request asks for a new diagram or a change to an existing one.
type Request struct {
	Kind          models.DiagramKind
	ProjectPlan   string
	ExistingJSON  []byte
	ChangeRequest string
}

// Result of a workflow run. An unsuccessful result carries the feedback of
// the last iteration.
type Result struct {
	Success    bool            `json:"success"`
	SVG        string          `json:"svg,omitempty"`
	Source     string          `json:"source,omitempty"`
	JSON       json.RawMessage `json:"json,omitempty"`
	Iterations int             `json:"iterations"`
	Feedback   string          `json:"feedback,omitempty"`
}

type graphDiagram interface {
	Validate() error
	DOT() string
}

// Workflow generates a diagram JSON, converts it to the diagram language,
// checks it with the renderer and feeds any problem back into the next
// generation until the source renders or the iterations run out.
type Workflow struct {
	exec      *llm.Executor
	chains    llm.Chains
	sequences SequenceRenderer
	graphs    GraphRenderer
	cache     *SVGCache
	opts      Options
	logger    *zap.Logger
}

// NewWorkflow wires the workflow. sequences, graphs and cache may be nil;
// the matching diagram kinds then report ErrRendererUnavailable.
func NewWorkflow(exec *llm.Executor, chains llm.Chains, sequences SequenceRenderer, graphs GraphRenderer, cache *SVGCache, opts Options, l *zap.Logger) *Workflow {
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 3
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.2
	}
	return &Workflow{
		exec:      exec,
		chains:    chains,
		sequences: sequences,
		graphs:    graphs,
		cache:     cache,
		opts:      opts,
		logger:    logger.Or(l),
	}
}

// Generate runs the validation loop. Running out of iterations is reported
// in the Result; an error means the request was invalid or the renderer is
// unavailable.
func (w *Workflow) Generate(ctx context.Context, req Request) (*Result, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, req.Kind)
	}
	if w.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.Timeout)
		defer cancel()
	}

	base, err := render(string(req.Kind), promptData{
		ProjectPlan:   req.ProjectPlan,
		Existing:      prettyJSON(req.ExistingJSON),
		ChangeRequest: req.ChangeRequest,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var feedback string
	for i := 1; i <= w.opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			feedback = fmt.Sprintf("Diagram generation stopped: %v.", err)
			break
		}
		res.Iterations = i

		prompt := withFeedback(base, feedback)
		var art *artifact
		if req.Kind == models.DiagramSequence {
			art, feedback, err = w.sequenceAttempt(ctx, prompt)
		} else {
			art, feedback, err = w.graphAttempt(ctx, req.Kind, prompt)
		}
		if err != nil {
			metrics.RecordDiagramRun(string(req.Kind), false)
			return nil, err
		}
		if art != nil {
			res.Success = true
			res.SVG = art.svg
			res.Source = art.source
			res.JSON = art.json
			metrics.RecordDiagramRun(string(req.Kind), true)
			w.logger.Info("diagram generated",
				zap.String("type", string(req.Kind)), zap.Int("iterations", i))
			return res, nil
		}
		w.logger.Warn("diagram iteration rejected",
			zap.String("type", string(req.Kind)),
			zap.Int("iteration", i),
			zap.String("feedback", feedback))
	}

	res.Feedback = feedback
	metrics.RecordDiagramRun(string(req.Kind), false)
	return res, nil
}

type artifact struct {
	json   json.RawMessage
	source string
	svg    string
}

// sequenceAttempt returns either an artifact or the feedback for the next
// iteration. The error is reserved for an unavailable renderer.
func (w *Workflow) sequenceAttempt(ctx context.Context, prompt string) (*artifact, string, error) {
	if w.sequences == nil {
		return nil, "", fmt.Errorf("%w: no sequence renderer configured", ErrRendererUnavailable)
	}

	var d SequenceDiagram
	if err := w.generateJSON(ctx, prompt, sequenceSchema, &d); err != nil {
		return nil, fmt.Sprintf("An error occurred: %v. Please try again with a simpler diagram structure.", err), nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Sprintf("Invalid JSON format: %v. Please provide valid JSON.", err), nil
	}

	source, err := d.Source()
	if err != nil {
		w.logger.Info("asking the generator to convert the sequence diagram", zap.Error(err))
		source, err = w.convertSequence(ctx, raw)
		if err != nil {
			return nil, fmt.Sprintf("Error converting JSON to diagram code: %v. Please simplify the JSON structure.", err), nil
		}
	}

	if err := w.sequences.Validate(ctx, source); err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, "", fmt.Errorf("%w: %w", ErrRendererUnavailable, err)
		}
		var se *SyntaxError
		if errors.As(err, &se) {
			return nil, fmt.Sprintf("The JSON was converted to diagram code, but there are syntax errors: %s. "+
				"Please update the JSON to be compatible with sequencediagram.org syntax.", se.Detail), nil
		}
		return nil, fmt.Sprintf("The diagram could not be validated: %v.", err), nil
	}

	svg, err := w.renderCached(ctx, models.DiagramSequence, source, w.sequences.Render)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, "", fmt.Errorf("%w: %w", ErrRendererUnavailable, err)
		}
		return nil, "The diagram syntax was valid, but SVG generation failed. Please simplify the diagram.", nil
	}
	return &artifact{json: raw, source: source, svg: svg}, "", nil
}

func (w *Workflow) graphAttempt(ctx context.Context, kind models.DiagramKind, prompt string) (*artifact, string, error) {
	if w.graphs == nil {
		return nil, "", fmt.Errorf("%w: no graph renderer configured", ErrRendererUnavailable)
	}

	var (
		d      graphDiagram
		schema *llm.Schema
	)
	switch kind {
	case models.DiagramClass:
		d, schema = &ClassDiagram{}, classSchema
	case models.DiagramActivity:
		d, schema = &ActivityDiagram{}, activitySchema
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}

	if err := w.generateJSON(ctx, prompt, schema, d); err != nil {
		return nil, fmt.Sprintf("An error occurred: %v. Please try again with a simpler diagram structure.", err), nil
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Sprintf("The diagram JSON is invalid: %v.", err), nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Sprintf("Invalid JSON format: %v. Please provide valid JSON.", err), nil
	}

	dot := d.DOT()
	svg, err := w.renderCached(ctx, kind, dot, w.graphs.Render)
	if err != nil {
		return nil, fmt.Sprintf("The diagram could not be rendered: %v. Please simplify the diagram.", err), nil
	}
	return &artifact{json: raw, source: dot, svg: svg}, "", nil
}

func (w *Workflow) generateJSON(ctx context.Context, prompt string, schema *llm.Schema, out any) error {
	req := llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Schema:      schema,
		Temperature: llm.Temp(w.opts.Temperature),
	}
	return w.exec.Execute(ctx, w.chains.For(llm.TaskDiagram), req, out)
}

// convertSequence asks the diagram chain for the source text directly.
func (w *Workflow) convertSequence(ctx context.Context, raw []byte) (string, error) {
	prompt, err := render("sequence_source", promptData{JSON: prettyJSON(raw)})
	if err != nil {
		return "", err
	}
	var text string
	req := llm.Request{System: systemPrompt, Prompt: prompt, Temperature: llm.Temp(w.opts.Temperature)}
	if err := w.exec.Execute(ctx, w.chains.For(llm.TaskDiagram), req, &text); err != nil {
		return "", err
	}
	return extractSource(text), nil
}

func (w *Workflow) renderCached(ctx context.Context, kind models.DiagramKind, source string, draw func(context.Context, string) (string, error)) (string, error) {
	if svg, ok := w.cache.Get(string(kind), source); ok {
		return svg, nil
	}
	svg, err := draw(ctx, source)
	if err != nil {
		return "", err
	}
	w.cache.Set(string(kind), source, svg)
	return svg, nil
}

func prettyJSON(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
