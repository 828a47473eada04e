package handlers

import (
	"errors"
	"net/http"
	"time"

	"projectron-api/internal/aggregate"
	"projectron-api/internal/database"
	"projectron-api/internal/models"
	"projectron-api/internal/ordering"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateMilestoneRequest represents the request payload for creating a milestone
type CreateMilestoneRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	DueDate     string            `json:"due_date"`
	Status      models.WorkStatus `json:"status"`
	Order       *int              `json:"order"`
}

// UpdateMilestoneRequest represents the request payload for updating a milestone.
// A non-nil Order moves the milestone.
type UpdateMilestoneRequest struct {
	Name        *string            `json:"name" binding:"omitempty,min=1"`
	Description *string            `json:"description"`
	DueDate     *string            `json:"due_date"`
	Status      *models.WorkStatus `json:"status"`
	Order       *int               `json:"order"`
}

// MilestoneResponse adds task progress to a milestone
type MilestoneResponse struct {
	models.Milestone
	TaskCount            int     `json:"task_count"`
	CompletedTaskCount   int     `json:"completed_task_count"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

var errBadStatus = errors.New("status must be one of not_started, in_progress, completed")

func parseDateFlexible(dateStr string) (time.Time, bool) {
	if dateStr == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
		"2 Jan 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dueDate parses an optional date. Empty clears it.
func dueDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, ok := parseDateFlexible(s)
	if !ok {
		return nil, errors.New("invalid due_date, expected YYYY-MM-DD or RFC3339")
	}
	return &t, nil
}

func loadMilestone(tx *gorm.DB, projectID, milestoneID string) (*models.Milestone, error) {
	var m models.Milestone
	err := tx.Where("id = ? AND project_id = ?", milestoneID, projectID).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMilestones handles GET /projects/:id/milestones
func ListMilestones(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	db := database.GetDB().WithContext(c.Request.Context())
	var milestones []models.Milestone
	if err := db.Where("project_id = ?", project.ID).Order("sort_order").Find(&milestones).Error; err != nil {
		respondError(c, err, "Failed to fetch milestones")
		return
	}

	type count struct {
		MilestoneID string
		Total       int
		Completed   int
	}
	var counts []count
	err := db.Model(&models.Task{}).
		Select("milestone_id, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed", models.StatusCompleted).
		Where("project_id = ?", project.ID).
		Group("milestone_id").
		Scan(&counts).Error
	if err != nil {
		respondError(c, err, "Failed to fetch milestones")
		return
	}
	byMilestone := make(map[string]count, len(counts))
	for _, ct := range counts {
		byMilestone[ct.MilestoneID] = ct
	}

	resp := make([]MilestoneResponse, 0, len(milestones))
	for _, m := range milestones {
		ct := byMilestone[m.ID]
		resp = append(resp, MilestoneResponse{
			Milestone:            m,
			TaskCount:            ct.Total,
			CompletedTaskCount:   ct.Completed,
			CompletionPercentage: aggregate.Percentage(ct.Completed, ct.Total),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// GetMilestone handles GET /projects/:id/milestones/:milestone_id
func GetMilestone(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}
	m, err := loadMilestone(database.GetDB().WithContext(c.Request.Context()), project.ID, c.Param("milestone_id"))
	if err != nil {
		respondError(c, err, "Failed to fetch milestone")
		return
	}
	c.JSON(http.StatusOK, m)
}

// CreateMilestone handles POST /projects/:id/milestones.
// The milestone is inserted at order (default: last) and later siblings shift down.
func CreateMilestone(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status == "" {
		req.Status = models.StatusNotStarted
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBadStatus.Error()})
		return
	}
	due, err := dueDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	milestone := models.Milestone{
		ID:          uuid.NewString(),
		ProjectID:   project.ID,
		Name:        req.Name,
		Description: req.Description,
		DueDate:     due,
		Status:      req.Status,
	}
	err = database.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		order, err := ordering.Insert(tx, ordering.Milestones(project.ID), req.Order)
		if err != nil {
			return err
		}
		milestone.Order = order
		if err := tx.Create(&milestone).Error; err != nil {
			return err
		}
		return aggregate.Touch(tx, project.ID)
	})
	if err != nil {
		respondError(c, err, "Failed to create milestone")
		return
	}

	publish(members(project), "milestone.created", map[string]any{"project_id": project.ID, "milestone_id": milestone.ID})
	c.JSON(http.StatusCreated, milestone)
}

// UpdateMilestone handles PUT /projects/:id/milestones/:milestone_id
func UpdateMilestone(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req UpdateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBadStatus.Error()})
		return
	}
	updates := map[string]any{}
	if req.DueDate != nil {
		due, err := dueDate(*req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updates["due_date"] = due
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	var milestone *models.Milestone
	err := database.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		m, err := loadMilestone(tx, project.ID, c.Param("milestone_id"))
		if err != nil {
			return err
		}
		if req.Order != nil {
			if _, err := ordering.Move(tx, ordering.Milestones(project.ID), m.ID, *req.Order); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(m).Updates(updates).Error; err != nil {
				return err
			}
		}
		if err := aggregate.Touch(tx, project.ID); err != nil {
			return err
		}
		milestone, err = loadMilestone(tx, project.ID, m.ID)
		return err
	})
	if err != nil {
		respondError(c, err, "Failed to update milestone")
		return
	}

	publish(members(project), "milestone.updated", map[string]any{"project_id": project.ID, "milestone_id": milestone.ID})
	c.JSON(http.StatusOK, milestone)
}

// DeleteMilestone handles DELETE /projects/:id/milestones/:milestone_id.
// Tasks and subtasks are removed with it and later milestones move up.
func DeleteMilestone(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	milestoneID := c.Param("milestone_id")
	err := database.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		m, err := loadMilestone(tx, project.ID, milestoneID)
		if err != nil {
			return err
		}
		taskIDs := tx.Model(&models.Task{}).Select("id").Where("milestone_id = ?", m.ID)
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.Subtask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("milestone_id = ?", m.ID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(m).Error; err != nil {
			return err
		}
		if err := ordering.CloseGap(tx, ordering.Milestones(project.ID), m.Order); err != nil {
			return err
		}
		return aggregate.Touch(tx, project.ID)
	})
	if err != nil {
		respondError(c, err, "Failed to delete milestone")
		return
	}

	publish(members(project), "milestone.deleted", map[string]any{"project_id": project.ID, "milestone_id": milestoneID})
	c.JSON(http.StatusOK, gin.H{"message": "Milestone deleted successfully"})
}
