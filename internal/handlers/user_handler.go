package handlers

import (
	"net/http"
	"strings"
	"time"

	"projectron-api/internal/auth"
	"projectron-api/internal/database"
	"projectron-api/internal/models"

	"github.com/gin-gonic/gin"
)

type UserResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// UpdateProfileRequest represents the editable profile fields
type UpdateProfileRequest struct {
	FullName string `json:"full_name" binding:"required,min=2,max=100"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// SearchUsers returns accounts matching the email query, used to pick collaborators
// GET /api/v1/users?email=
func SearchUsers(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	query := strings.ToLower(strings.TrimSpace(c.Query("email")))
	if len(query) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email query must be at least 3 characters"})
		return
	}

	var users []models.User
	err := database.GetDB().WithContext(c.Request.Context()).
		Where("email LIKE ?", "%"+query+"%").Order("email").Limit(20).Find(&users).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, UserResponse{ID: u.ID, Email: u.Email, FullName: u.FullName})
	}
	c.JSON(http.StatusOK, gin.H{
		"users": resp,
		"count": len(resp),
	})
}

func loadCurrentUser(c *gin.Context) (*models.User, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return nil, false
	}
	var user models.User
	if err := database.GetDB().WithContext(c.Request.Context()).Where("id = ?", userID).First(&user).Error; err != nil {
		respondError(c, err, "Failed to retrieve profile information")
		return nil, false
	}
	return &user, true
}

func profileResponse(c *gin.Context, user *models.User) {
	var total int64
	if err := database.GetDB().WithContext(c.Request.Context()).
		Model(&models.Project{}).Where("owner_id = ?", user.ID).Count(&total).Error; err != nil {
		respondError(c, err, "Failed to retrieve profile information")
		return
	}
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"id":             user.ID,
		"email":          user.Email,
		"full_name":      user.FullName,
		"created_at":     user.CreatedAt,
		"is_active":      true,
		"total_projects": total,
		"last_login":     user.LastLogin,
		"roles":          roles,
	})
}

// GetProfile handles GET /users/profile
func GetProfile(c *gin.Context) {
	user, ok := loadCurrentUser(c)
	if !ok {
		return
	}
	profileResponse(c, user)
}

// UpdateProfile handles PUT /users/profile
func UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := loadCurrentUser(c)
	if !ok {
		return
	}

	name := strings.TrimSpace(req.FullName)
	if len(name) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "full_name must be at least 2 characters"})
		return
	}
	if err := database.GetDB().WithContext(c.Request.Context()).Model(user).Update("full_name", name).Error; err != nil {
		respondError(c, err, "Failed to update profile")
		return
	}
	user.FullName = name
	profileResponse(c, user)
}

// ChangePassword handles POST /users/change-password
func ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := loadCurrentUser(c)
	if !ok {
		return
	}

	if !auth.CheckPassword(user.HashedPassword, req.CurrentPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Current password is incorrect"})
		return
	}
	if req.CurrentPassword == req.NewPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password must be different from current password"})
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(c, err, "Failed to change password")
		return
	}
	if err := database.GetDB().WithContext(c.Request.Context()).Model(user).Update("hashed_password", hash).Error; err != nil {
		respondError(c, err, "Failed to change password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// GetProfileStats handles GET /users/profile/stats
func GetProfileStats(c *gin.Context) {
	user, ok := loadCurrentUser(c)
	if !ok {
		return
	}

	var projects []models.Project
	err := database.GetDB().WithContext(c.Request.Context()).
		Select("id", "status", "created_at").Where("owner_id = ?", user.ID).Find(&projects).Error
	if err != nil {
		respondError(c, err, "Failed to retrieve user statistics")
		return
	}

	now := time.Now()
	monthAgo := now.AddDate(0, 0, -30)
	byStatus := map[string]int{}
	recent := 0
	for _, p := range projects {
		byStatus[string(p.Status)]++
		if !p.CreatedAt.Before(monthAgo) {
			recent++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_projects":          len(projects),
		"projects_by_status":      byStatus,
		"recent_projects_30_days": recent,
		"account_age_days":        int(now.Sub(user.CreatedAt).Hours() / 24),
		"member_since":            user.CreatedAt,
		"last_login":              user.LastLogin,
		"email_verified":          user.IsEmailVerified,
	})
}
