package handlers

import (
	"net/http"

	"projectron-api/internal/models"
	"projectron-api/internal/planner"
	"projectron-api/internal/progress"

	"github.com/gin-gonic/gin"
)

// GeneratePlanRequest carries the idea and the answers to the clarifying questions
type GeneratePlanRequest struct {
	Input           planner.Input     `json:"input_data"`
	ClarificationQA map[string]string `json:"clarification_qa"`
}

// LegacyPlanRequest is the body of the synchronous /ai/generate-plan endpoint
type LegacyPlanRequest struct {
	Title           string                 `json:"title" binding:"required,min=1,max=100"`
	Description     string                 `json:"description" binding:"required,min=10"`
	TechStack       []string               `json:"tech_stack"`
	ExperienceLevel models.ExperienceLevel `json:"experience_level" binding:"omitempty,oneof=junior mid senior"`
	TeamSize        int                    `json:"team_size" binding:"omitempty,min=1,max=100"`
	ClarifyingQA    map[string]string      `json:"clarifying_QA"`
}

// PlanHandler serves clarification, background plan generation and its status.
type PlanHandler struct {
	jobs    *planner.Jobs
	tracker *progress.Tracker
}

func NewPlanHandler(jobs *planner.Jobs, tracker *progress.Tracker) *PlanHandler {
	return &PlanHandler{jobs: jobs, tracker: tracker}
}

// Clarify handles POST /plan/clarify and POST /ai/clarify
func (h *PlanHandler) Clarify(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	var in planner.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	questions, err := h.jobs.Pipeline().Clarify(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, "Failed to generate clarification questions")
		return
	}
	c.JSON(http.StatusOK, questions)
}

// GeneratePlan handles POST /plan/generate-plan. The plan is generated in
// the background; clients poll the status endpoint or listen on /ws.
func (h *PlanHandler) GeneratePlan(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req GeneratePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskID, err := h.jobs.Start(c.Request.Context(), userID, req.Input, req.ClarificationQA)
	if err != nil {
		respondError(c, err, "Failed to start plan generation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "status": "started"})
}

// Status handles GET /plan/status/:task_id. The result is only included
// once the generation completed.
func (h *PlanHandler) Status(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	p, err := h.tracker.Get(c.Request.Context(), c.Param("task_id"), userID)
	if err != nil {
		respondError(c, err, "Failed to get status")
		return
	}

	var result any
	if p.Status == models.ProgressCompleted && len(p.Result) > 0 {
		result = p.Result
	}
	c.JSON(http.StatusOK, gin.H{
		"task_id":       p.TaskID,
		"status":        p.Status,
		"current_step":  p.CurrentStep,
		"step_number":   p.StepNumber,
		"total_steps":   p.TotalSteps,
		"error_message": p.ErrorMessage,
		"project_id":    p.ProjectID,
		"result":        result,
	})
}

// LegacyGeneratePlan handles POST /ai/generate-plan. It blocks until the
// whole pipeline finished.
func (h *PlanHandler) LegacyGeneratePlan(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req LegacyPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := planner.Input{
		Name:            req.Title,
		Description:     req.Description,
		TechStack:       req.TechStack,
		ExperienceLevel: req.ExperienceLevel,
		TeamSize:        req.TeamSize,
	}
	project, plan, err := h.jobs.Generate(c.Request.Context(), userID, in, req.ClarifyingQA)
	if err != nil {
		respondError(c, err, "Failed to generate project plan")
		return
	}
	c.JSON(http.StatusOK, gin.H{"structured_plan": plan, "project_id": project.ID})
}
