package handlers

import (
	"net/http"
	"time"

	"projectron-api/internal/aggregate"
	"projectron-api/internal/database"
	"projectron-api/internal/models"
	"projectron-api/internal/planner"

	"github.com/gin-gonic/gin"
)

type ContextGenerationRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
}

type UpdateContextNotesRequest struct {
	ContextNotes *string `json:"context_notes" binding:"required"`
}

// ContextHandler keeps the developer notes of a project and turns them,
// together with the plan, into a briefing for coding assistants.
type ContextHandler struct {
	pipeline *planner.Pipeline
}

func NewContextHandler(pipeline *planner.Pipeline) *ContextHandler {
	return &ContextHandler{pipeline: pipeline}
}

func (h *ContextHandler) project(c *gin.Context, projectID string) (*models.Project, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return nil, false
	}
	project, err := aggregate.Authorize(c.Request.Context(), database.GetDB(), projectID, userID)
	if err != nil {
		respondError(c, err, "Failed to load project")
		return nil, false
	}
	return project, true
}

// Generate handles POST /context/generate
func (h *ContextHandler) Generate(c *gin.Context) {
	var req ContextGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	project, ok := h.project(c, req.ProjectID)
	if !ok {
		return
	}

	message, err := h.pipeline.Contextualize(c.Request.Context(), project)
	if err != nil {
		respondError(c, err, "Failed to generate context")
		return
	}
	err = database.GetDB().WithContext(c.Request.Context()).Model(project).
		Updates(map[string]any{"last_context_message": message, "updated_at": time.Now()}).Error
	if err != nil {
		respondError(c, err, "Failed to save context")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "context_message": message})
}

// Latest handles GET /context/latest/:project_id
func (h *ContextHandler) Latest(c *gin.Context) {
	project, ok := h.project(c, c.Param("project_id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"context_message": project.LastContextMessage,
		"has_context":     project.LastContextMessage != "",
		"updated_at":      project.UpdatedAt,
	})
}

// GetNotes handles GET /context/notes/:project_id
func (h *ContextHandler) GetNotes(c *gin.Context) {
	project, ok := h.project(c, c.Param("project_id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"context_notes": project.ContextNotes})
}

// UpdateNotes handles PUT /context/notes/:project_id
func (h *ContextHandler) UpdateNotes(c *gin.Context) {
	var req UpdateContextNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	project, ok := h.project(c, c.Param("project_id"))
	if !ok {
		return
	}
	err := database.GetDB().WithContext(c.Request.Context()).Model(project).
		Updates(map[string]any{"context_notes": *req.ContextNotes, "updated_at": time.Now()}).Error
	if err != nil {
		respondError(c, err, "Failed to update context notes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Context notes updated successfully"})
}
