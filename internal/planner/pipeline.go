package planner

import (
	"context"
	"fmt"
	"math"
	"time"

	"projectron-api/internal/llm"
	"projectron-api/internal/logger"
	"projectron-api/internal/metrics"
	"projectron-api/internal/progress"
	"projectron-api/internal/telemetry"

	"go.uber.org/zap"
)

var (
	clarifySchema        = llm.SchemaFor[ClarificationQuestions]("clarification_questions")
	highLevelSchema      = llm.SchemaFor[HighLevelPlan]("high_level_plan")
	architectureSchema   = llm.SchemaFor[TechnicalArchitecture]("technical_architecture")
	apiEndpointsSchema   = llm.SchemaFor[APIEndpoints]("api_endpoints")
	dataModelsSchema     = llm.SchemaFor[DataModels]("data_models")
	uiComponentsSchema   = llm.SchemaFor[UIComponents]("ui_components")
	implementationSchema = llm.SchemaFor[ImplementationPlan]("implementation_plan")
)

const planTemperature = 0.7

// hoursTolerance is the drift from the declared budget that is only logged.
const hoursTolerance = 0.05

// Pipeline runs the plan generation stages in order.
type Pipeline struct {
	exec   *llm.Executor
	chains llm.Chains
	logger *zap.Logger
}

func NewPipeline(exec *llm.Executor, chains llm.Chains, l *zap.Logger) *Pipeline {
	return &Pipeline{exec: exec, chains: chains, logger: logger.Or(l)}
}

// stage reads a snapshot of the plan and returns only the section it produced.
type stage struct {
	name  string
	step  int
	label string
	run   func(p *Pipeline, ctx context.Context, plan Plan) (Plan, error)
}

var stages = []stage{
	{name: "high_level", step: 2, label: "Generating high-level plan", run: (*Pipeline).highLevel},
	{name: "architecture", step: 3, label: "Designing technical architecture", run: (*Pipeline).architecture},
	{name: "api_endpoints", step: 4, label: "Designing API endpoints", run: (*Pipeline).apiEndpoints},
	{name: "data_models", step: 5, label: "Designing data models", run: (*Pipeline).dataModels},
	{name: "ui_components", step: 6, label: "Designing UI components", run: (*Pipeline).uiComponents},
	{name: "implementation_plan", step: 7, label: "Creating implementation plan", run: (*Pipeline).implementation},
}

// Clarify asks for the questions shown to the user before generation.
func (p *Pipeline) Clarify(ctx context.Context, in Input) (*ClarificationQuestions, error) {
	var out ClarificationQuestions
	if err := p.generate(ctx, llm.TaskClarify, "clarify", promptData{Input: in}, clarifySchema, &out); err != nil {
		return nil, err
	}
	if len(out.Questions) > 6 {
		out.Questions = out.Questions[:6]
	}
	return &out, nil
}

// Run executes every stage after clarification. Each stage announces
// itself to sink before its generator call.
func (p *Pipeline) Run(ctx context.Context, in Input, qa map[string]string, sink progress.Sink) (*Plan, error) {
	plan := Plan{Input: in, Clarifications: qa}

	for _, st := range stages {
		if err := sink.Step(ctx, st.label, st.step); err != nil {
			return nil, fmt.Errorf("report %s: %w", st.name, err)
		}

		stageCtx, span := telemetry.StartStageSpan(ctx, st.name, st.step)
		start := time.Now()
		delta, err := st.run(p, stageCtx, plan)
		telemetry.End(span, err)
		metrics.RecordStage(st.name, time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", st.name, err)
		}

		plan.merge(delta)
		p.logger.Debug("plan stage finished",
			zap.String("stage", st.name), zap.Duration("took", time.Since(start)))
	}

	p.checkHours(&plan)
	return &plan, nil
}

func (p *Plan) merge(d Plan) {
	if d.HighLevelPlan != nil {
		p.HighLevelPlan = d.HighLevelPlan
	}
	if d.TechnicalArchitecture != nil {
		p.TechnicalArchitecture = d.TechnicalArchitecture
	}
	if d.APIEndpoints != nil {
		p.APIEndpoints = d.APIEndpoints
	}
	if d.DataModels != nil {
		p.DataModels = d.DataModels
	}
	if d.UIComponents != nil {
		p.UIComponents = d.UIComponents
	}
	if d.ImplementationPlan != nil {
		p.ImplementationPlan = d.ImplementationPlan
	}
}

func (p *Pipeline) generate(ctx context.Context, task llm.Task, tmpl string, data promptData, schema *llm.Schema, out any) error {
	prompt, err := render(tmpl, data)
	if err != nil {
		return err
	}
	req := llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Schema:      schema,
		Temperature: llm.Temp(planTemperature),
	}
	return p.exec.Execute(ctx, p.chains.For(task), req, out)
}

func (p *Pipeline) highLevel(ctx context.Context, plan Plan) (Plan, error) {
	var out HighLevelPlan
	data := view(plan)
	data.Clarifications = formatQA(plan.Clarifications)
	err := p.generate(ctx, llm.TaskHighLevel, "high_level", data, highLevelSchema, &out)
	return Plan{HighLevelPlan: &out}, err
}

func (p *Pipeline) architecture(ctx context.Context, plan Plan) (Plan, error) {
	var out TechnicalArchitecture
	err := p.generate(ctx, llm.TaskArchitecture, "architecture", view(plan), architectureSchema, &out)
	return Plan{TechnicalArchitecture: &out}, err
}

func (p *Pipeline) apiEndpoints(ctx context.Context, plan Plan) (Plan, error) {
	var out APIEndpoints
	data := view(plan)
	data.ResourceGuidance = ResourceGuidance(plan.Input.TotalHours())
	err := p.generate(ctx, llm.TaskAPIEndpoints, "api_endpoints", data, apiEndpointsSchema, &out)
	return Plan{APIEndpoints: &out}, err
}

func (p *Pipeline) dataModels(ctx context.Context, plan Plan) (Plan, error) {
	var out DataModels
	data := view(plan)
	resources := 0
	if plan.APIEndpoints != nil {
		resources = len(plan.APIEndpoints.Resources)
	}
	data.EntityTarget = EntityTarget(resources)
	err := p.generate(ctx, llm.TaskDataModels, "data_models", data, dataModelsSchema, &out)
	return Plan{DataModels: &out}, err
}

func (p *Pipeline) uiComponents(ctx context.Context, plan Plan) (Plan, error) {
	var out UIComponents
	err := p.generate(ctx, llm.TaskUIComponents, "ui_components", view(plan), uiComponentsSchema, &out)
	return Plan{UIComponents: &out}, err
}

func (p *Pipeline) implementation(ctx context.Context, plan Plan) (Plan, error) {
	var out ImplementationPlan
	err := p.generate(ctx, llm.TaskImplementation, "implementation_plan", view(plan), implementationSchema, &out)
	return Plan{ImplementationPlan: &out}, err
}

// checkHours logs when the generated estimates miss the budget. The
// estimates are kept as generated.
func (p *Pipeline) checkHours(plan *Plan) {
	if plan.ImplementationPlan == nil {
		return
	}
	want := float64(plan.Input.TotalHours())
	got := plan.ImplementationPlan.TotalHours()
	if want > 0 && math.Abs(got-want)/want > hoursTolerance {
		p.logger.Warn("implementation plan hours outside budget",
			zap.Float64("estimated_hours", got),
			zap.Float64("budget_hours", want))
	}
}

// view flattens the sections produced so far into prompt fields.
func view(plan Plan) promptData {
	d := promptData{Input: plan.Input}

	if hl := plan.HighLevelPlan; hl != nil {
		d.Vision = hl.Vision
		d.CoreFeatures = list(hl.CoreFeatures)
		d.Scope = compact(hl.Scope)
		d.Constraints = list(hl.Constraints)
		users := make([]string, 0, len(hl.TargetUsers))
		for _, u := range hl.TargetUsers {
			users = append(users, u.Type)
		}
		d.TargetUsers = list(users)
	}

	if arch := plan.TechnicalArchitecture; arch != nil {
		var all, frontend, patterns []string
		for _, c := range arch.SystemComponents {
			all = append(all, c.Name)
			if isFrontend(c) {
				frontend = append(frontend, compact(c))
			}
		}
		for _, pt := range arch.ArchitecturePatterns {
			patterns = append(patterns, pt.Name)
		}
		d.Components = list(all)
		d.FrontendComponents = list(frontend)
		d.Patterns = list(patterns)
	}

	if api := plan.APIEndpoints; api != nil {
		names := make([]string, 0, len(api.Resources))
		for _, r := range api.Resources {
			names = append(names, r.Name)
		}
		d.Resources = list(names)
		d.AuthType = api.Authentication.Type
		if d.AuthType == "" {
			d.AuthType = "none"
		}
	}

	if dm := plan.DataModels; dm != nil {
		names := make([]string, 0, len(dm.Entities))
		for _, e := range dm.Entities {
			names = append(names, e.Name)
		}
		d.Entities = list(names)
	}

	if ui := plan.UIComponents; ui != nil {
		names := make([]string, 0, len(ui.Screens))
		for _, s := range ui.Screens {
			names = append(names, s.Name)
		}
		d.Screens = list(names)
	}
	return d
}
