package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"projectron-api/internal/aggregate"
	"projectron-api/internal/database"
	"projectron-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateProjectRequest represents the request payload for creating a project
type CreateProjectRequest struct {
	Name            string                 `json:"name" binding:"required,min=1,max=100"`
	Description     string                 `json:"description"`
	TechStack       []string               `json:"tech_stack"`
	ExperienceLevel models.ExperienceLevel `json:"experience_level" binding:"omitempty,oneof=junior mid senior"`
	TeamSize        int                    `json:"team_size" binding:"omitempty,min=1"`
	Status          models.ProjectStatus   `json:"status" binding:"omitempty,oneof=draft active completed"`
}

// UpdateProjectRequest represents the request payload for updating a project
type UpdateProjectRequest struct {
	Name            *string                 `json:"name" binding:"omitempty,min=1,max=100"`
	Description     *string                 `json:"description"`
	TechStack       []string                `json:"tech_stack"`
	ExperienceLevel *models.ExperienceLevel `json:"experience_level" binding:"omitempty,oneof=junior mid senior"`
	TeamSize        *int                    `json:"team_size" binding:"omitempty,min=1"`
	Status          *models.ProjectStatus   `json:"status" binding:"omitempty,oneof=draft active completed"`
}

type CollaboratorRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

var errDuplicateName = errors.New("a project with this name already exists")

// members are the users that receive realtime events of a project.
func members(p *models.Project) []string {
	return append([]string{p.OwnerID}, p.Collaborators...)
}

// projectAccess loads the project for a read or write by the caller.
// Collaborators may do everything but delete.
func projectAccess(c *gin.Context, userID string) (*models.Project, bool) {
	project, err := aggregate.Authorize(c.Request.Context(), database.GetDB(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Failed to load project")
		return nil, false
	}
	return project, true
}

func nameTaken(ctx context.Context, db *gorm.DB, ownerID, name, exceptID string) (bool, error) {
	var count int64
	q := db.WithContext(ctx).Model(&models.Project{}).Where("owner_id = ? AND name = ?", ownerID, name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// ListProjects handles GET /projects
// Returns the projects the caller owns or collaborates on, newest change first.
func ListProjects(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var projects []models.Project
	err := database.GetDB().WithContext(c.Request.Context()).
		Omit("high_level_plan", "technical_architecture", "api_endpoints", "data_models", "ui_components", "implementation_plan").
		Where("owner_id = ? OR collaborators LIKE ?", userID, `%"`+userID+`"%`).
		Order("updated_at desc").
		Find(&projects).Error
	if err != nil {
		respondError(c, err, "Failed to fetch projects")
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	c.JSON(http.StatusOK, projects)
}

// CreateProject handles POST /projects
func CreateProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project := models.Project{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		TechStack:       req.TechStack,
		ExperienceLevel: req.ExperienceLevel,
		TeamSize:        req.TeamSize,
		Status:          req.Status,
		OwnerID:         userID,
		Collaborators:   []string{},
	}
	if project.ExperienceLevel == "" {
		project.ExperienceLevel = models.ExperienceJunior
	}
	if project.TeamSize == 0 {
		project.TeamSize = 1
	}
	if project.Status == "" {
		project.Status = models.ProjectDraft
	}
	if project.TechStack == nil {
		project.TechStack = []string{}
	}

	db := database.GetDB()
	taken, err := nameTaken(c.Request.Context(), db, userID, project.Name, "")
	if err != nil {
		respondError(c, err, "Failed to create project")
		return
	}
	if taken {
		c.JSON(http.StatusBadRequest, gin.H{"error": errDuplicateName.Error()})
		return
	}
	if err := db.WithContext(c.Request.Context()).Create(&project).Error; err != nil {
		respondError(c, err, "Failed to create project")
		return
	}

	publish(members(&project), "project.created", map[string]any{"project_id": project.ID})
	c.JSON(http.StatusCreated, project)
}

// GetProject handles GET /projects/:id
func GetProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

// GetCompleteProject handles GET /projects/:id/complete
func GetCompleteProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	tree, err := aggregate.Complete(c.Request.Context(), database.GetDB(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Error retrieving project details")
		return
	}
	c.JSON(http.StatusOK, tree)
}

// UpdateProject handles PUT /projects/:id
func UpdateProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}

	db := database.GetDB().WithContext(c.Request.Context())
	updates := map[string]any{"updated_at": time.Now()}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		taken, err := nameTaken(c.Request.Context(), db, project.OwnerID, name, project.ID)
		if err != nil {
			respondError(c, err, "Failed to update project")
			return
		}
		if taken {
			c.JSON(http.StatusBadRequest, gin.H{"error": errDuplicateName.Error()})
			return
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ExperienceLevel != nil {
		updates["experience_level"] = *req.ExperienceLevel
	}
	if req.TeamSize != nil {
		updates["team_size"] = *req.TeamSize
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.TechStack != nil {
		project.TechStack = req.TechStack
		// serializer columns only round-trip through the struct
		if err := db.Model(project).Select("tech_stack").Updates(project).Error; err != nil {
			respondError(c, err, "Failed to update project")
			return
		}
	}
	if err := db.Model(project).Updates(updates).Error; err != nil {
		respondError(c, err, "Failed to update project")
		return
	}
	if err := db.Where("id = ?", project.ID).First(project).Error; err != nil {
		respondError(c, err, "Failed to update project")
		return
	}

	publish(members(project), "project.updated", map[string]any{"project_id": project.ID})
	c.JSON(http.StatusOK, project)
}

// DeleteProject handles DELETE /projects/:id. Only the owner may delete,
// and every milestone, task, subtask and diagram goes with the project.
func DeleteProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}
	if !project.IsOwner(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the project owner can delete this project"})
		return
	}

	err := database.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&models.Task{}).Select("id").Where("project_id = ?", project.ID)
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.Subtask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Milestone{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Diagram{}).Error; err != nil {
			return err
		}
		return tx.Delete(project).Error
	})
	if err != nil {
		respondError(c, err, "Failed to delete project")
		return
	}

	publish(members(project), "project.deleted", map[string]any{"project_id": project.ID})
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

// AddCollaborator handles POST /projects/:id/collaborators
func AddCollaborator(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.UserID == "" && req.Email == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id or email is required"})
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}
	if !project.IsOwner(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the project owner can manage collaborators"})
		return
	}

	db := database.GetDB().WithContext(c.Request.Context())
	var user models.User
	q := db.Where("id = ?", req.UserID)
	if req.UserID == "" {
		q = db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email)))
	}
	if err := q.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		respondError(c, err, "Failed to add collaborator")
		return
	}
	if user.ID == project.OwnerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The owner is already a member of the project"})
		return
	}

	if !slices.Contains(project.Collaborators, user.ID) {
		project.Collaborators = append(project.Collaborators, user.ID)
		project.UpdatedAt = time.Now()
		if err := db.Model(project).Select("collaborators", "updated_at").Updates(project).Error; err != nil {
			respondError(c, err, "Failed to add collaborator")
			return
		}
	}

	publish(members(project), "project.updated", map[string]any{"project_id": project.ID})
	c.JSON(http.StatusOK, project)
}

// RemoveCollaborator handles DELETE /projects/:id/collaborators/:user_id.
// Collaborators may remove themselves.
func RemoveCollaborator(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	project, ok := projectAccess(c, userID)
	if !ok {
		return
	}
	target := c.Param("user_id")
	if !project.IsOwner(userID) && target != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the project owner can manage collaborators"})
		return
	}
	if !slices.Contains(project.Collaborators, target) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User is not a collaborator of this project"})
		return
	}

	notify := members(project)
	project.Collaborators = slices.DeleteFunc(project.Collaborators, func(id string) bool { return id == target })
	project.UpdatedAt = time.Now()
	if err := database.GetDB().WithContext(c.Request.Context()).
		Model(project).Select("collaborators", "updated_at").Updates(project).Error; err != nil {
		respondError(c, err, "Failed to remove collaborator")
		return
	}

	publish(notify, "project.updated", map[string]any{"project_id": project.ID})
	c.JSON(http.StatusOK, project)
}
