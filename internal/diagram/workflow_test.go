package diagram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"projectron-api/internal/llm"
	"projectron-api/internal/models"
	"projectron-api/internal/resilience"
	"projectron-api/internal/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	pingJSON = `{"title":"Ping","participants":[{"name":"Client"},{"name":"Server"}],
		"messages":[{"from":"Client","to":"Server","text":"ping"},{"from":"Server","to":"Client","text":"pong","type":"dashed"}]}`

	pingSource = "title Ping\n\nparticipant Client\nparticipant Server\n\nClient -> Server: ping\nServer --> Client: pong\n"

	classJSON = `{"classes":[{"name":"User","attributes":[],"methods":[]},{"name":"Order","attributes":[],"methods":[]}],
		"relationships":[{"source":"User","target":"Order","type":"association"}]}`

	brokenClassJSON = `{"classes":[{"name":"User","attributes":[],"methods":[]}],
		"relationships":[{"source":"User","target":"Invoice","type":"association"}]}`
)

type fakeGraphRenderer struct {
	mu    sync.Mutex
	dots  []string
	fails int
}

func (f *fakeGraphRenderer) Render(_ context.Context, dot string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dots = append(f.dots, dot)
	if f.fails > 0 {
		f.fails--
		return "", errors.New("layout failed")
	}
	return "<svg>graph</svg>", nil
}

func newWorkflow(gen llm.Generator, seq SequenceRenderer, graphs GraphRenderer, cache *SVGCache) *Workflow {
	exec := llm.NewExecutor(0, zap.NewNop())
	chains := llm.StaticChains{Chain: llm.NewChain(gen)}
	return NewWorkflow(exec, chains, seq, graphs, cache, Options{}, zap.NewNop())
}

func sequenceRequest() Request {
	return Request{Kind: models.DiagramSequence, ProjectPlan: "A ping service"}
}

func TestWorkflowSequenceFirstIteration(t *testing.T) {
	gen := testutil.BySchema("fake", map[string]string{sequenceSchema.Name: pingJSON})
	seq := &fakeSequenceRenderer{}
	w := newWorkflow(gen, seq, nil, nil)

	res, err := w.Generate(context.Background(), sequenceRequest())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 1, res.Iterations)
	require.Equal(t, pingSource, res.Source)
	require.Equal(t, "<svg>"+pingSource+"</svg>", res.SVG)
	require.Contains(t, string(res.JSON), `"title":"Ping"`)
	require.Empty(t, res.Feedback)

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	require.InDelta(t, 0.2, *reqs[0].Temperature, 1e-9)
	require.Contains(t, reqs[0].Prompt, "A ping service")
}

func TestWorkflowFeedsSyntaxErrorsBack(t *testing.T) {
	gen := testutil.BySchema("fake", map[string]string{sequenceSchema.Name: pingJSON})
	seq := &fakeSequenceRenderer{validate: []error{&SyntaxError{Detail: "unexpected token at line 3"}, nil}}
	w := newWorkflow(gen, seq, nil, nil)

	res, err := w.Generate(context.Background(), sequenceRequest())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 2, res.Iterations)

	reqs := gen.Requests()
	require.Len(t, reqs, 2)
	require.NotContains(t, reqs[0].Prompt, "Feedback from previous attempt")
	require.Contains(t, reqs[1].Prompt, "Feedback from previous attempt")
	require.Contains(t, reqs[1].Prompt, "unexpected token at line 3")
}

func TestWorkflowExhaustionIsAResult(t *testing.T) {
	gen := testutil.BySchema("fake", map[string]string{sequenceSchema.Name: pingJSON})
	seq := &fakeSequenceRenderer{validate: []error{&SyntaxError{Detail: "bad arrow"}}}
	w := newWorkflow(gen, seq, nil, nil)

	res, err := w.Generate(context.Background(), sequenceRequest())
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, 3, res.Iterations)
	require.Contains(t, res.Feedback, "bad arrow")
	require.Empty(t, res.SVG)
	require.Equal(t, 3, gen.Calls())
	require.Zero(t, seq.renders)
}

func TestWorkflowGenerationFailuresBecomeFeedback(t *testing.T) {
	gen := testutil.Failing("fake", errors.New("quota exceeded"))
	w := newWorkflow(gen, &fakeSequenceRenderer{}, nil, nil)

	res, err := w.Generate(context.Background(), sequenceRequest())
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Feedback, "quota exceeded")
	require.Equal(t, 3, gen.Calls())
}

func TestWorkflowOpenCircuitIsAnError(t *testing.T) {
	gen := testutil.BySchema("fake", map[string]string{sequenceSchema.Name: pingJSON})
	seq := &fakeSequenceRenderer{validate: []error{resilience.ErrCircuitOpen}}
	w := newWorkflow(gen, seq, nil, nil)

	_, err := w.Generate(context.Background(), sequenceRequest())
	require.ErrorIs(t, err, ErrRendererUnavailable)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	require.Equal(t, 1, gen.Calls())
}

func TestWorkflowConvertsWithGeneratorWhenJSONCannotBeConverted(t *testing.T) {
	robotJSON := strings.Replace(pingJSON, `{"name":"Client"}`, `{"name":"Client","type":"robot"}`, 1)
	gen := testutil.BySchema("fake", map[string]string{
		sequenceSchema.Name: robotJSON,
		"":                  "```\nClient -> Server: ping\n```",
	})
	seq := &fakeSequenceRenderer{}
	w := newWorkflow(gen, seq, nil, nil)

	res, err := w.Generate(context.Background(), sequenceRequest())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "Client -> Server: ping", res.Source)
	require.Equal(t, []string{"Client -> Server: ping"}, seq.validations())

	reqs := gen.Requests()
	require.Len(t, reqs, 2)
	require.Nil(t, reqs[1].Schema)
	require.Contains(t, reqs[1].Prompt, `"robot"`)
}

func TestWorkflowReusesCachedSVG(t *testing.T) {
	cache, err := NewSVGCache(1<<20, time.Hour)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	gen := testutil.BySchema("fake", map[string]string{sequenceSchema.Name: pingJSON})
	seq := &fakeSequenceRenderer{}
	w := newWorkflow(gen, seq, nil, cache)

	first, err := w.Generate(context.Background(), sequenceRequest())
	require.NoError(t, err)
	second, err := w.Generate(context.Background(), sequenceRequest())
	require.NoError(t, err)

	require.Equal(t, first.SVG, second.SVG)
	require.Equal(t, 1, seq.renders)
}

func TestWorkflowClassDiagramRetriesInvalidJSON(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	gen := &testutil.FakeGenerator{
		Name: "fake",
		Respond: func(llm.Request) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				return brokenClassJSON, nil
			}
			return classJSON, nil
		},
	}
	graphs := &fakeGraphRenderer{}
	w := newWorkflow(gen, nil, graphs, nil)

	res, err := w.Generate(context.Background(), Request{
		Kind:          models.DiagramClass,
		ProjectPlan:   "A shop",
		ExistingJSON:  []byte(`{"classes":[]}`),
		ChangeRequest: "add orders",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 2, res.Iterations)
	require.True(t, strings.HasPrefix(res.Source, "digraph ClassDiagram {"))
	require.Equal(t, "<svg>graph</svg>", res.SVG)
	require.Len(t, graphs.dots, 1)

	reqs := gen.Requests()
	require.Equal(t, classSchema.Name, reqs[0].Schema.Name)
	require.Contains(t, reqs[0].Prompt, "add orders")
	require.Contains(t, reqs[0].Prompt, `"classes": []`)
	require.Contains(t, reqs[1].Prompt, `target "Invoice"`)
}

func TestWorkflowActivityRenderFailureIsRetried(t *testing.T) {
	activityJSON := `{"nodes":[{"id":"s","type":"start","label":""},{"id":"a","type":"activity","label":"Work"},{"id":"e","type":"end","label":""}],
		"flows":[{"source":"s","target":"a"},{"source":"a","target":"e"}]}`
	gen := testutil.BySchema("fake", map[string]string{activitySchema.Name: activityJSON})
	graphs := &fakeGraphRenderer{fails: 1}
	w := newWorkflow(gen, nil, graphs, nil)

	res, err := w.Generate(context.Background(), Request{Kind: models.DiagramActivity, ProjectPlan: "A job runner"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 2, res.Iterations)
	require.Len(t, graphs.dots, 2)
}

func TestWorkflowRejectsUnknownKind(t *testing.T) {
	w := newWorkflow(testutil.Reply("fake", "{}"), &fakeSequenceRenderer{}, &fakeGraphRenderer{}, nil)

	_, err := w.Generate(context.Background(), Request{Kind: "gantt"})
	require.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestWorkflowWithoutRenderer(t *testing.T) {
	w := newWorkflow(testutil.Reply("fake", classJSON), nil, nil, nil)

	_, err := w.Generate(context.Background(), Request{Kind: models.DiagramClass})
	require.ErrorIs(t, err, ErrRendererUnavailable)
}

func TestNewWorkflow_NilLoggerFallsBack(t *testing.T) {
	w := NewWorkflow(nil, nil, nil, nil, nil, Options{}, nil)
	require.NotNil(t, w.logger)
	require.Equal(t, 3, w.opts.MaxIterations)
}
