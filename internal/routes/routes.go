package routes

import (
	"net/http"

	"projectron-api/internal/handlers"
	"projectron-api/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps carries the handlers that need injected services.
type Deps struct {
	Logger         *zap.Logger
	AllowedOrigins []string

	Auth     *handlers.AuthHandler
	Plan     *handlers.PlanHandler
	Diagrams *handlers.DiagramHandler
	Context  *handlers.ContextHandler
	Contact  *handlers.ContactHandler
	WS       *handlers.WebSocketHandler
}

func SetupRoutes(d Deps) *gin.Engine {
	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery(), middleware.RequestLogger(d.Logger), middleware.CORS(d.AllowedOrigins))

	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Projectron API is running",
		})
	})
	ginRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := ginRouter.Group("/api/v1")
	auth := middleware.JWTAuthMiddleware()

	// Public routes (no authentication required)
	{
		api.POST("/auth/register", d.Auth.Register)
		api.POST("/auth/token", d.Auth.Token)
		api.POST("/auth/logout", d.Auth.Logout)
		api.GET("/auth/verify-email", d.Auth.VerifyEmail)
		api.POST("/auth/resend-verification", d.Auth.ResendVerification)
		api.POST("/auth/forgot-password", d.Auth.ForgotPassword)
		api.POST("/auth/reset-password", d.Auth.ResetPassword)
		for _, provider := range []string{"google", "github"} {
			api.GET("/auth/"+provider, d.Auth.OAuthLogin(provider))
			api.GET("/auth/"+provider+"/callback", d.Auth.OAuthCallback(provider))
		}
		api.POST("/contact", d.Contact.Submit)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(auth)
	{
		protectedRoutes.GET("/auth/me", d.Auth.Me)
		protectedRoutes.GET("/ws", d.WS.Serve)

		protectedRoutes.GET("/users", handlers.SearchUsers)
		protectedRoutes.GET("/users/profile", handlers.GetProfile)
		protectedRoutes.PUT("/users/profile", handlers.UpdateProfile)
		protectedRoutes.POST("/users/change-password", handlers.ChangePassword)
		protectedRoutes.GET("/users/profile/stats", handlers.GetProfileStats)

		projects := protectedRoutes.Group("/projects")
		projects.GET("", handlers.ListProjects)
		projects.POST("", handlers.CreateProject)
		projects.GET("/:id", handlers.GetProject)
		projects.PUT("/:id", handlers.UpdateProject)
		projects.DELETE("/:id", handlers.DeleteProject)
		projects.GET("/:id/complete", handlers.GetCompleteProject)
		projects.POST("/:id/collaborators", handlers.AddCollaborator)
		projects.DELETE("/:id/collaborators/:user_id", handlers.RemoveCollaborator)

		projects.GET("/:id/milestones", handlers.ListMilestones)
		projects.POST("/:id/milestones", handlers.CreateMilestone)
		projects.GET("/:id/milestones/:milestone_id", handlers.GetMilestone)
		projects.PUT("/:id/milestones/:milestone_id", handlers.UpdateMilestone)
		projects.DELETE("/:id/milestones/:milestone_id", handlers.DeleteMilestone)

		tasks := projects.Group("/:id/milestones/:milestone_id/tasks")
		tasks.GET("", handlers.ListTasks)
		tasks.POST("", handlers.CreateTask)
		tasks.GET("/:task_id", handlers.GetTask)
		tasks.PUT("/:task_id", handlers.UpdateTask)
		tasks.DELETE("/:task_id", handlers.DeleteTask)

		subtasks := tasks.Group("/:task_id/subtasks")
		subtasks.GET("", handlers.ListSubtasks)
		subtasks.POST("", handlers.CreateSubtask)
		subtasks.GET("/:subtask_id", handlers.GetSubtask)
		subtasks.PUT("/:subtask_id", handlers.UpdateSubtask)
		subtasks.DELETE("/:subtask_id", handlers.DeleteSubtask)

		protectedRoutes.POST("/plan/clarify", d.Plan.Clarify)
		protectedRoutes.POST("/plan/generate-plan", d.Plan.GeneratePlan)
		protectedRoutes.GET("/plan/status/:task_id", d.Plan.Status)
		protectedRoutes.POST("/ai/clarify", d.Plan.Clarify)
		protectedRoutes.POST("/ai/generate-plan", d.Plan.LegacyGeneratePlan)

		protectedRoutes.POST("/diagrams/:type/:project_id", d.Diagrams.Generate)
		protectedRoutes.PUT("/diagrams/:type/:project_id", d.Diagrams.Update)
		protectedRoutes.GET("/diagrams/:type/:project_id", d.Diagrams.Get)

		protectedRoutes.POST("/context/generate", d.Context.Generate)
		protectedRoutes.GET("/context/latest/:project_id", d.Context.Latest)
		protectedRoutes.GET("/context/notes/:project_id", d.Context.GetNotes)
		protectedRoutes.PUT("/context/notes/:project_id", d.Context.UpdateNotes)
	}

	return ginRouter
}
