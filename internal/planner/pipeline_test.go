package planner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"projectron-api/internal/llm"
	"projectron-api/internal/testutil"

	"github.com/stretchr/testify/require"
)

type step struct {
	label  string
	number int
}

type recordingSink struct {
	mu    sync.Mutex
	steps []step
}

func (r *recordingSink) Step(_ context.Context, label string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step{label, n})
	return nil
}

func TestTotalHours(t *testing.T) {
	cases := []struct {
		in   Input
		want int
	}{
		{Input{TimeScale: ScaleSmall}, 40},
		{Input{TimeScale: ScaleMedium}, 100},
		{Input{TimeScale: ScaleLarge}, 300},
		{Input{TimeScale: ScaleCustom, CustomHours: 222}, 222},
		{Input{TimeScale: ScaleCustom}, 100},
		{Input{}, 100},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.in.TotalHours(), c.in.TimeScale)
	}
	require.Equal(t, 60, Input{TimeScale: ScaleSmall}.ExtendedHours())
	require.Equal(t, 1498, Input{TimeScale: ScaleCustom, CustomHours: 999}.ExtendedHours())
}

func TestResourceGuidanceAndEntityTarget(t *testing.T) {
	require.Equal(t, "3-4", ResourceGuidance(40))
	require.Equal(t, "5-6", ResourceGuidance(50))
	require.Equal(t, "5-6", ResourceGuidance(150))
	require.Equal(t, "6-8", ResourceGuidance(151))

	require.Equal(t, 5, EntityTarget(0))
	require.Equal(t, 8, EntityTarget(4))
	require.Equal(t, 12, EntityTarget(20))
}

func TestClarifyTrimsToSixQuestions(t *testing.T) {
	gen := planGenerator()
	q, err := newPipeline(gen).Clarify(context.Background(), sampleInput())
	require.NoError(t, err)
	require.Len(t, q.Questions, 6)
	require.Equal(t, "Who logs in?", q.Questions[0])
	require.Contains(t, gen.Requests()[0].Prompt, "ChoreChamp")
}

func TestRunReportsEveryStageInOrder(t *testing.T) {
	gen := planGenerator()
	sink := &recordingSink{}

	plan, err := newPipeline(gen).Run(context.Background(), sampleInput(),
		map[string]string{"Who logs in?": "Parents and kids"}, sink)
	require.NoError(t, err)

	require.Equal(t, []step{
		{"Generating high-level plan", 2},
		{"Designing technical architecture", 3},
		{"Designing API endpoints", 4},
		{"Designing data models", 5},
		{"Designing UI components", 6},
		{"Creating implementation plan", 7},
	}, sink.steps)

	require.Equal(t, "Make chores fair", plan.HighLevelPlan.Vision)
	require.Len(t, plan.TechnicalArchitecture.SystemComponents, 2)
	require.Len(t, plan.APIEndpoints.Resources, 2)
	require.Len(t, plan.DataModels.Entities, 2)
	require.Len(t, plan.UIComponents.Screens, 1)
	require.Len(t, plan.ImplementationPlan.Milestones, 2)
	require.InDelta(t, 100, plan.ImplementationPlan.TotalHours(), 0.001)

	reqs := gen.Requests()
	require.Len(t, reqs, 6)
	require.Contains(t, reqs[0].Prompt, "Q: Who logs in?\nA: Parents and kids")
	require.Contains(t, reqs[0].Prompt, "about 150 hours")
	// later stages see what earlier stages produced
	require.Contains(t, reqs[1].Prompt, "Make chores fair")
	require.Contains(t, reqs[2].Prompt, "5-6")
	require.Contains(t, reqs[3].Prompt, "Chores; Rewards")
	require.Contains(t, reqs[3].Prompt, "JWT")
	require.Contains(t, reqs[4].Prompt, "Web Client")
	require.NotContains(t, reqs[4].Prompt, `"name":"API Server"`)
	require.Contains(t, reqs[5].Prompt, "95-105 hours")
}

func TestRunStopsAtFailingStage(t *testing.T) {
	gen := planGenerator()
	broken := &testutil.FakeGenerator{Name: "broken", Respond: func(req llm.Request) (string, error) {
		if req.Schema != nil && req.Schema.Name == apiEndpointsSchema.Name {
			return "", errors.New("provider down")
		}
		return gen.Respond(req)
	}}
	sink := &recordingSink{}

	_, err := newPipeline(broken).Run(context.Background(), sampleInput(), nil, sink)
	require.ErrorIs(t, err, llm.ErrExhausted)
	require.True(t, strings.HasPrefix(err.Error(), "api_endpoints stage"))
	require.Len(t, sink.steps, 3)
	require.Equal(t, 3, broken.Calls())
}

func TestContextualize(t *testing.T) {
	gen := planGenerator()
	p := newPipeline(gen)
	project := sampleProject()
	project.ContextNotes = "We switched to Postgres."

	out, err := p.Contextualize(context.Background(), project)
	require.NoError(t, err)
	require.Equal(t, "# Context\nUse Go.", out)
	require.Contains(t, gen.Requests()[0].Prompt, "We switched to Postgres.")
	require.Contains(t, gen.Requests()[0].Prompt, "Go, React")
}
