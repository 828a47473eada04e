package planner

import (
	"time"

	"projectron-api/internal/llm"
	"projectron-api/internal/testutil"

	"go.uber.org/zap"
)

const (
	highLevelJSON = `{"vision":"Make chores fair","business_objectives":["retain families"],
		"target_users":[{"type":"parent","needs":["assign chores"],"pain_points":["nagging"]}],
		"core_features":["chore board","rewards"],"scope":{"in_scope":["web"],"out_of_scope":["native apps"]},
		"success_criteria":["weekly use"],"constraints":["small team"],"assumptions":["families have phones"],
		"risks":[{"description":"low adoption","impact":"high","mitigation":"gamify"}]}`

	architectureJSON = `{"overview":"SPA plus REST API","diagram_description":"browser talks to api",
		"system_components":[
			{"name":"Web Client","type":"frontend","description":"React SPA","technologies":["React"],"responsibilities":["render board"]},
			{"name":"API Server","type":"backend","description":"REST","technologies":["Go"],"responsibilities":["business rules"]}],
		"communication_patterns":[{"source":"Web Client","target":"API Server","protocol":"HTTPS","pattern":"request-response","description":"JSON"}],
		"architecture_patterns":[{"name":"Layered","description":"handlers, services, storage"}],
		"infrastructure":{"hosting":"fly.io","services":["sqlite"],"ci_cd":"GitHub Actions"}}`

	apiJSON = `{"principles":["REST"],"base_url":"/api/v1","authentication":{"type":"JWT","description":"bearer"},
		"resources":[
			{"name":"Chores","description":"chore CRUD","endpoints":[{"method":"GET","path":"/chores","description":"list"}]},
			{"name":"Rewards","description":"reward CRUD","endpoints":[{"method":"POST","path":"/rewards","description":"create"}]}]}`

	dataModelsJSON = `{"entities":[
			{"name":"Chore","description":"a job","properties":[{"name":"id","type":"uuid","description":"pk","required":true}]},
			{"name":"Reward","description":"a prize","properties":[{"name":"id","type":"uuid","description":"pk","required":true}]}],
		"relationships":[{"type":"one-to-many","entities":["Chore","Reward"],"description":"earns"}]}`

	uiJSON = `{"screens":[{"name":"Board","description":"all chores","route":"/","user_types":["parent"],
		"components":[{"name":"ChoreCard","type":"card","description":"one chore","functionality":"complete"}]}]}`

	implementationJSON = `{"milestones":[
		{"name":"Foundation","description":"setup","status":"not_started","due_date_offset":7,"tasks":[
			{"name":"Set up repo","description":"init","status":"not_started","priority":"high","estimated_hours":10,
			 "dependencies":["Build chore API"],"components_affected":["API Server"],"apis_affected":[],
			 "subtasks":[{"name":"Create module","description":"go mod init","status":"not_started"},
			             {"name":"Add CI","description":"workflow","status":"not_started"}]},
			{"name":"Build chore API","description":"CRUD","status":"not_started","priority":"urgent","estimated_hours":50,
			 "dependencies":["Set up repo","Unknown task","build chore api"],"components_affected":["API Server"],"apis_affected":["/chores"],
			 "subtasks":[]}]},
		{"name":"Launch","description":"ship it","status":"bogus","due_date_offset":0,"tasks":[
			{"name":"Deploy","description":"fly deploy","status":"not_started","priority":"low","estimated_hours":40,
			 "dependencies":["Set up repo"],"components_affected":[],"apis_affected":[],
			 "subtasks":[{"name":"Configure DNS","description":"","status":"not_started"}]}]}]}`

	clarifyJSON = `{"questions":["Who logs in?","Web or mobile?","Any payments?","Which feature first?","Offline needed?","Notifications?","Extra?"]}`
)

// planGenerator answers every stage schema with its fixture.
func planGenerator() *testutil.FakeGenerator {
	return testutil.BySchema("fake-model", map[string]string{
		clarifySchema.Name:        clarifyJSON,
		highLevelSchema.Name:      highLevelJSON,
		architectureSchema.Name:   architectureJSON,
		apiEndpointsSchema.Name:   apiJSON,
		dataModelsSchema.Name:     dataModelsJSON,
		uiComponentsSchema.Name:   uiJSON,
		implementationSchema.Name: implementationJSON,
		"":                        "# Context\nUse Go.",
	})
}

func newPipeline(gens ...llm.Generator) *Pipeline {
	exec := llm.NewExecutor(5*time.Second, zap.NewNop())
	return NewPipeline(exec, llm.StaticChains{Chain: llm.NewChain(gens...)}, zap.NewNop())
}

func sampleInput() Input {
	return Input{
		Name:            "ChoreChamp",
		Description:     "A web app that turns family chores into a game.",
		TechStack:       []string{"Go", "React"},
		ExperienceLevel: "mid",
		TeamSize:        2,
		TimeScale:       ScaleMedium,
	}
}
