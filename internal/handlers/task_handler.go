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

// CreateTaskRequest represents the request payload for creating a task
type CreateTaskRequest struct {
	Name               string              `json:"name" binding:"required"`
	Description        string              `json:"description"`
	AssigneeID         *string             `json:"assignee_id"`
	DueDate            string              `json:"due_date"`
	Status             models.WorkStatus   `json:"status"`
	Priority           models.TaskPriority `json:"priority"`
	EstimatedHours     float64             `json:"estimated_hours" binding:"gte=0"`
	Dependencies       []string            `json:"dependencies"`
	ComponentsAffected []string            `json:"components_affected"`
	APIsAffected       []string            `json:"apis_affected"`
	Order              *int                `json:"order"`
}

// UpdateTaskRequest represents the request payload for updating a task
type UpdateTaskRequest struct {
	Name               *string              `json:"name" binding:"omitempty,min=1"`
	Description        *string              `json:"description"`
	AssigneeID         *string              `json:"assignee_id"`
	DueDate            *string              `json:"due_date"`
	Status             *models.WorkStatus   `json:"status"`
	Priority           *models.TaskPriority `json:"priority"`
	EstimatedHours     *float64             `json:"estimated_hours" binding:"omitempty,gte=0"`
	Dependencies       []string             `json:"dependencies"`
	ComponentsAffected []string             `json:"components_affected"`
	APIsAffected       []string             `json:"apis_affected"`
	Order              *int                 `json:"order"`
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func loadTask(tx *gorm.DB, projectID, milestoneID, taskID string) (*models.Task, error) {
	var t models.Task
	err := tx.Where("id = ? AND milestone_id = ? AND project_id = ?", taskID, milestoneID, projectID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks handles GET /projects/:id/milestones/:milestone_id/tasks
func ListTasks(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	db := database.GetDB().WithContext(c.Request.Context())
	m, err := loadMilestone(db, project.ID, c.Param("milestone_id"))
	if err != nil {
		respondError(c, err, "Failed to fetch tasks")
		return
	}
	var tasks []models.Task
	if err := db.Where("milestone_id = ?", m.ID).Order("sort_order").Find(&tasks).Error; err != nil {
		respondError(c, err, "Failed to fetch tasks")
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

// GetTask handles GET /projects/:id/milestones/:milestone_id/tasks/:task_id
func GetTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}
	t, err := loadTask(database.GetDB().WithContext(c.Request.Context()), project.ID, c.Param("milestone_id"), c.Param("task_id"))
	if err != nil {
		respondError(c, err, "Failed to fetch task")
		return
	}
	c.JSON(http.StatusOK, t)
}

// CreateTask handles POST /projects/:id/milestones/:milestone_id/tasks
func CreateTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status == "" {
		req.Status = models.StatusNotStarted
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBadStatus.Error()})
		return
	}
	if !req.Priority.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "priority must be one of low, medium, high"})
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

	task := models.Task{
		ID:                 uuid.NewString(),
		ProjectID:          project.ID,
		Name:               req.Name,
		Description:        req.Description,
		AssigneeID:         req.AssigneeID,
		DueDate:            due,
		Status:             req.Status,
		Priority:           req.Priority,
		EstimatedHours:     req.EstimatedHours,
		DependencyIDs:      orEmpty(req.Dependencies),
		ComponentsAffected: orEmpty(req.ComponentsAffected),
		APIsAffected:       orEmpty(req.APIsAffected),
	}
	err = database.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		m, err := loadMilestone(tx, project.ID, c.Param("milestone_id"))
		if err != nil {
			return err
		}
		task.MilestoneID = m.ID
		order, err := ordering.Insert(tx, ordering.Tasks(m.ID), req.Order)
		if err != nil {
			return err
		}
		task.Order = order
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		return aggregate.Touch(tx, project.ID)
	})
	if err != nil {
		respondError(c, err, "Failed to create task")
		return
	}

	publish(members(project), "task.created", map[string]any{"project_id": project.ID, "task_id": task.ID})
	c.JSON(http.StatusCreated, task)
}

// UpdateTask handles PUT /projects/:id/milestones/:milestone_id/tasks/:task_id.
// Completing the last open task of a milestone completes the milestone; the
// completed parent is reported in affected_resources.
func UpdateTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBadStatus.Error()})
		return
	}
	if req.Priority != nil && !req.Priority.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "priority must be one of low, medium, high"})
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
	if req.AssigneeID != nil {
		updates["assignee_id"] = req.AssigneeID
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.EstimatedHours != nil {
		updates["estimated_hours"] = *req.EstimatedHours
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	var (
		task     *models.Task
		affected aggregate.AffectedResources
	)
	err := database.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		t, err := loadTask(tx, project.ID, c.Param("milestone_id"), c.Param("task_id"))
		if err != nil {
			return err
		}
		if req.Order != nil {
			if _, err := ordering.Move(tx, ordering.Tasks(t.MilestoneID), t.ID, *req.Order); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(t).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Dependencies != nil || req.ComponentsAffected != nil || req.APIsAffected != nil {
			var cols []string
			if req.Dependencies != nil {
				t.DependencyIDs = req.Dependencies
				cols = append(cols, "dependency_ids")
			}
			if req.ComponentsAffected != nil {
				t.ComponentsAffected = req.ComponentsAffected
				cols = append(cols, "components_affected")
			}
			if req.APIsAffected != nil {
				t.APIsAffected = req.APIsAffected
				cols = append(cols, "apis_affected")
			}
			if err := tx.Model(t).Select(cols).Updates(t).Error; err != nil {
				return err
			}
		}

		task, err = loadTask(tx, project.ID, t.MilestoneID, t.ID)
		if err != nil {
			return err
		}
		if req.Status != nil {
			if affected, err = aggregate.CascadeFromTask(tx, task); err != nil {
				return err
			}
		}
		return aggregate.Touch(tx, project.ID)
	})
	if err != nil {
		respondError(c, err, "Failed to update task")
		return
	}

	resp := gin.H{"task": task, "affected_resources": nil}
	if !affected.Empty() {
		resp["affected_resources"] = affected
	}
	publish(members(project), "task.updated", map[string]any{"project_id": project.ID, "task_id": task.ID, "affected_resources": resp["affected_resources"]})
	c.JSON(http.StatusOK, resp)
}

// DeleteTask handles DELETE /projects/:id/milestones/:milestone_id/tasks/:task_id
func DeleteTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	taskID := c.Param("task_id")
	err := database.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		t, err := loadTask(tx, project.ID, c.Param("milestone_id"), taskID)
		if err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", t.ID).Delete(&models.Subtask{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(t).Error; err != nil {
			return err
		}
		if err := ordering.CloseGap(tx, ordering.Tasks(t.MilestoneID), t.Order); err != nil {
			return err
		}
		return aggregate.Touch(tx, project.ID)
	})
	if err != nil {
		respondError(c, err, "Failed to delete task")
		return
	}

	publish(members(project), "task.deleted", map[string]any{"project_id": project.ID, "task_id": taskID})
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}
