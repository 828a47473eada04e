package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"projectron-api/internal/aggregate"
	"projectron-api/internal/database"
	"projectron-api/internal/diagram"
	"projectron-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DiagramRequest optionally overrides the plan text and describes the change
type DiagramRequest struct {
	ProjectPlan   string `json:"project_plan"`
	ChangeRequest string `json:"change_request"`
}

// DiagramHandler generates, updates and serves project diagrams as SVG.
type DiagramHandler struct {
	workflow *diagram.Workflow
}

func NewDiagramHandler(workflow *diagram.Workflow) *DiagramHandler {
	return &DiagramHandler{workflow: workflow}
}

func diagramKind(c *gin.Context) (models.DiagramKind, bool) {
	kind := models.DiagramKind(c.Param("type"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported diagram type %q, expected sequence, class or activity", kind)})
		return "", false
	}
	return kind, true
}

// planText renders the stored plan documents as the prompt context.
func planText(p *models.Project) string {
	doc := map[string]any{
		"name":        p.Name,
		"description": p.Description,
		"tech_stack":  p.TechStack,
	}
	blobs := map[string]datatypes.JSON{
		"high_level_plan":        p.HighLevelPlan,
		"technical_architecture": p.TechnicalArchitecture,
		"api_endpoints":          p.APIEndpoints,
		"data_models":            p.DataModels,
		"ui_components":          p.UIComponents,
	}
	for k, v := range blobs {
		if len(v) > 0 {
			doc[k] = json.RawMessage(v)
		}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return p.Description
	}
	return string(b)
}

func loadDiagram(c *gin.Context, projectID string, kind models.DiagramKind) (*models.Diagram, error) {
	var d models.Diagram
	err := database.GetDB().WithContext(c.Request.Context()).
		Where("project_id = ? AND kind = ?", projectID, kind).First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Generate handles POST /diagrams/:type/:project_id and creates the diagram from scratch.
func (h *DiagramHandler) Generate(c *gin.Context) {
	h.run(c, false)
}

// Update handles PUT /diagrams/:type/:project_id and applies change_request to the stored diagram.
func (h *DiagramHandler) Update(c *gin.Context) {
	h.run(c, true)
}

func (h *DiagramHandler) run(c *gin.Context, update bool) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	kind, ok := diagramKind(c)
	if !ok {
		return
	}
	var req DiagramRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if update && req.ChangeRequest == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "change_request is required to update a diagram"})
		return
	}

	project, err := aggregate.Authorize(c.Request.Context(), database.GetDB(), c.Param("project_id"), userID)
	if err != nil {
		respondError(c, err, "Failed to load project")
		return
	}

	wreq := diagram.Request{
		Kind:          kind,
		ProjectPlan:   req.ProjectPlan,
		ChangeRequest: req.ChangeRequest,
	}
	if wreq.ProjectPlan == "" {
		wreq.ProjectPlan = planText(project)
	}
	if update {
		existing, err := loadDiagram(c, project.ID, kind)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No %s diagram exists for this project yet", kind)})
				return
			}
			respondError(c, err, "Failed to load diagram")
			return
		}
		wreq.ExistingJSON = existing.JSON
	}

	result, err := h.workflow.Generate(c.Request.Context(), wreq)
	if err != nil {
		respondError(c, err, "Failed to generate diagram")
		return
	}
	if !result.Success {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      fmt.Sprintf("Failed to generate %s diagram: %s", kind, result.Feedback),
			"iterations": result.Iterations,
		})
		return
	}

	now := time.Now()
	d := models.Diagram{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Kind:      kind,
		JSON:      datatypes.JSON(result.JSON),
		Source:    result.Source,
		SVG:       result.SVG,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = database.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"json_source", "source", "svg", "updated_at"}),
		}).Create(&d).Error
		if err != nil {
			return err
		}
		return aggregate.Touch(tx, project.ID)
	})
	if err != nil {
		respondError(c, err, "Failed to save diagram")
		return
	}

	publish(members(project), "diagram.updated", map[string]any{"project_id": project.ID, "kind": kind})
	c.Data(http.StatusOK, "image/svg+xml", []byte(result.SVG))
}

// Get handles GET /diagrams/:type/:project_id and serves the stored SVG.
func (h *DiagramHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	kind, ok := diagramKind(c)
	if !ok {
		return
	}
	project, err := aggregate.Authorize(c.Request.Context(), database.GetDB(), c.Param("project_id"), userID)
	if err != nil {
		respondError(c, err, "Failed to load project")
		return
	}
	d, err := loadDiagram(c, project.ID, kind)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No %s diagram exists for this project yet", kind)})
			return
		}
		respondError(c, err, "Failed to load diagram")
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", []byte(d.SVG))
}
