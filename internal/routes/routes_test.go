package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"projectron-api/internal/auth"
	"projectron-api/internal/cache"
	"projectron-api/internal/email"
	"projectron-api/internal/handlers"
	"projectron-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	mailer := email.NewMailer(email.LogSender{Logger: zap.NewNop()}, "http://localhost:3000", "support@example.com")
	origins := []string{"http://localhost:3000"}
	return SetupRoutes(Deps{
		Logger:         zap.NewNop(),
		AllowedOrigins: origins,
		Auth:           handlers.NewAuthHandler(mailer, map[string]*auth.Provider{}, cache.NewStateStore(time.Minute), "http://localhost:3000", false),
		Plan:           handlers.NewPlanHandler(nil, nil),
		Diagrams:       handlers.NewDiagramHandler(nil),
		Context:        handlers.NewContextHandler(nil),
		Contact:        handlers.NewContactHandler(mailer),
		WS:             handlers.NewWebSocketHandler(realtime.NewHub(), origins),
	})
}

func TestHealth(t *testing.T) {
	r := testRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestMetrics(t *testing.T) {
	r := testRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "go_goroutines")
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	r := testRouter()
	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodGet, "/api/v1/projects"},
		{http.MethodPost, "/api/v1/projects"},
		{http.MethodGet, "/api/v1/projects/p-1/milestones/m-1/tasks"},
		{http.MethodPost, "/api/v1/plan/generate-plan"},
		{http.MethodGet, "/api/v1/plan/status/job-1"},
		{http.MethodPost, "/api/v1/diagrams/sequence/p-1"},
		{http.MethodGet, "/api/v1/context/notes/p-1"},
		{http.MethodGet, "/api/v1/ws"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(p.method, p.path, nil))
			require.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r := testRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestOAuthProviderNotConfigured(t *testing.T) {
	r := testRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}
