package handlers

import (
	"net/http"

	"projectron-api/internal/aggregate"
	"projectron-api/internal/database"
	"projectron-api/internal/models"
	"projectron-api/internal/ordering"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateSubtaskRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	AssigneeID  *string           `json:"assignee_id"`
	Status      models.WorkStatus `json:"status"`
	Order       *int              `json:"order"`
}

type UpdateSubtaskRequest struct {
	Name        *string            `json:"name" binding:"omitempty,min=1"`
	Description *string            `json:"description"`
	AssigneeID  *string            `json:"assignee_id"`
	Status      *models.WorkStatus `json:"status"`
	Order       *int               `json:"order"`
}

func loadSubtask(tx *gorm.DB, taskID, subtaskID string) (*models.Subtask, error) {
	var s models.Subtask
	if err := tx.Where("id = ? AND task_id = ?", subtaskID, taskID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// subtaskParent resolves the task of the route and checks it belongs to the project.
func subtaskParent(c *gin.Context, tx *gorm.DB, project *models.Project) (*models.Task, error) {
	return loadTask(tx, project.ID, c.Param("milestone_id"), c.Param("task_id"))
}

// ListSubtasks handles GET .../tasks/:task_id/subtasks
func ListSubtasks(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	db := database.GetDB().WithContext(c.Request.Context())
	task, err := subtaskParent(c, db, project)
	if err != nil {
		respondError(c, err, "Failed to fetch subtasks")
		return
	}
	var subtasks []models.Subtask
	if err := db.Where("task_id = ?", task.ID).Order("sort_order").Find(&subtasks).Error; err != nil {
		respondError(c, err, "Failed to fetch subtasks")
		return
	}
	if subtasks == nil {
		subtasks = []models.Subtask{}
	}
	c.JSON(http.StatusOK, subtasks)
}

// GetSubtask handles GET .../subtasks/:subtask_id
func GetSubtask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	db := database.GetDB().WithContext(c.Request.Context())
	task, err := subtaskParent(c, db, project)
	if err != nil {
		respondError(c, err, "Failed to fetch subtask")
		return
	}
	s, err := loadSubtask(db, task.ID, c.Param("subtask_id"))
	if err != nil {
		respondError(c, err, "Failed to fetch subtask")
		return
	}
	c.JSON(http.StatusOK, s)
}

// CreateSubtask handles POST .../tasks/:task_id/subtasks
func CreateSubtask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateSubtaskRequest
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
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	subtask := models.Subtask{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		Status:      req.Status,
	}
	err := database.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		task, err := subtaskParent(c, tx, project)
		if err != nil {
			return err
		}
		subtask.TaskID = task.ID
		order, err := ordering.Insert(tx, ordering.Subtasks(task.ID), req.Order)
		if err != nil {
			return err
		}
		subtask.Order = order
		if err := tx.Create(&subtask).Error; err != nil {
			return err
		}
		return aggregate.Touch(tx, project.ID)
	})
	if err != nil {
		respondError(c, err, "Failed to create subtask")
		return
	}

	publish(members(project), "subtask.created", map[string]any{"project_id": project.ID, "subtask_id": subtask.ID})
	c.JSON(http.StatusCreated, subtask)
}

// UpdateSubtask handles PUT .../subtasks/:subtask_id. Completing the last
// open subtask completes the task and possibly its milestone.
func UpdateSubtask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req UpdateSubtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBadStatus.Error()})
		return
	}
	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.AssigneeID != nil {
		updates["assignee_id"] = req.AssigneeID
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	var (
		subtask  *models.Subtask
		affected aggregate.AffectedResources
	)
	err := database.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		task, err := subtaskParent(c, tx, project)
		if err != nil {
			return err
		}
		s, err := loadSubtask(tx, task.ID, c.Param("subtask_id"))
		if err != nil {
			return err
		}
		if req.Order != nil {
			if _, err := ordering.Move(tx, ordering.Subtasks(task.ID), s.ID, *req.Order); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(s).Updates(updates).Error; err != nil {
				return err
			}
		}
		if subtask, err = loadSubtask(tx, task.ID, s.ID); err != nil {
			return err
		}
		if req.Status != nil {
			if affected, err = aggregate.CascadeFromSubtask(tx, subtask); err != nil {
				return err
			}
		}
		return aggregate.Touch(tx, project.ID)
	})
	if err != nil {
		respondError(c, err, "Failed to update subtask")
		return
	}

	resp := gin.H{"subtask": subtask, "affected_resources": nil}
	if !affected.Empty() {
		resp["affected_resources"] = affected
	}
	publish(members(project), "subtask.updated", map[string]any{"project_id": project.ID, "subtask_id": subtask.ID, "affected_resources": resp["affected_resources"]})
	c.JSON(http.StatusOK, resp)
}

// DeleteSubtask handles DELETE .../subtasks/:subtask_id
func DeleteSubtask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	subtaskID := c.Param("subtask_id")
	err := database.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		task, err := subtaskParent(c, tx, project)
		if err != nil {
			return err
		}
		s, err := loadSubtask(tx, task.ID, subtaskID)
		if err != nil {
			return err
		}
		if err := tx.Delete(s).Error; err != nil {
			return err
		}
		if err := ordering.CloseGap(tx, ordering.Subtasks(task.ID), s.Order); err != nil {
			return err
		}
		return aggregate.Touch(tx, project.ID)
	})
	if err != nil {
		respondError(c, err, "Failed to delete subtask")
		return
	}

	publish(members(project), "subtask.deleted", map[string]any{"project_id": project.ID, "subtask_id": subtaskID})
	c.JSON(http.StatusOK, gin.H{"message": "Subtask deleted successfully"})
}
