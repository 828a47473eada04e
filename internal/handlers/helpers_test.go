package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"projectron-api/internal/auth"
	"projectron-api/internal/database"
	"projectron-api/internal/middleware"
	"projectron-api/internal/models"
	"projectron-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMail struct {
	To, Subject, Body string
}

// recordingSender keeps every mail instead of sending it.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentMail
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (s *recordingSender) Mails() []sentMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMail(nil), s.sent...)
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, email string) models.User {
	t.Helper()
	hash, err := auth.HashPassword("Secret123")
	require.NoError(t, err)
	u := models.User{
		ID:              id,
		Email:           email,
		FullName:        "User " + id,
		HashedPassword:  hash,
		Roles:           []string{"user"},
		IsEmailVerified: true,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func tokenFor(t *testing.T, u models.User) string {
	t.Helper()
	token, err := auth.GenerateToken(u.ID, u.Email)
	require.NoError(t, err)
	return token
}

// protectedRouter mounts the project tree routes behind the JWT middleware.
func protectedRouter() *gin.Engine {
	r := gin.New()
	api := r.Group("/api/v1", middleware.JWTAuthMiddleware())

	api.GET("/users", SearchUsers)
	api.GET("/users/profile", GetProfile)
	api.PUT("/users/profile", UpdateProfile)
	api.POST("/users/change-password", ChangePassword)
	api.GET("/users/profile/stats", GetProfileStats)

	projects := api.Group("/projects")
	projects.GET("", ListProjects)
	projects.POST("", CreateProject)
	projects.GET("/:id", GetProject)
	projects.PUT("/:id", UpdateProject)
	projects.DELETE("/:id", DeleteProject)
	projects.GET("/:id/complete", GetCompleteProject)
	projects.POST("/:id/collaborators", AddCollaborator)
	projects.DELETE("/:id/collaborators/:user_id", RemoveCollaborator)

	projects.GET("/:id/milestones", ListMilestones)
	projects.POST("/:id/milestones", CreateMilestone)
	projects.GET("/:id/milestones/:milestone_id", GetMilestone)
	projects.PUT("/:id/milestones/:milestone_id", UpdateMilestone)
	projects.DELETE("/:id/milestones/:milestone_id", DeleteMilestone)

	tasks := projects.Group("/:id/milestones/:milestone_id/tasks")
	tasks.GET("", ListTasks)
	tasks.POST("", CreateTask)
	tasks.GET("/:task_id", GetTask)
	tasks.PUT("/:task_id", UpdateTask)
	tasks.DELETE("/:task_id", DeleteTask)

	subtasks := tasks.Group("/:task_id/subtasks")
	subtasks.GET("", ListSubtasks)
	subtasks.POST("", CreateSubtask)
	subtasks.GET("/:subtask_id", GetSubtask)
	subtasks.PUT("/:subtask_id", UpdateSubtask)
	subtasks.DELETE("/:subtask_id", DeleteSubtask)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
