package handlers

import (
	"errors"
	"net/http"

	"projectron-api/internal/aggregate"
	"projectron-api/internal/diagram"
	"projectron-api/internal/llm"
	"projectron-api/internal/logger"
	"projectron-api/internal/ordering"
	"projectron-api/internal/progress"
	"projectron-api/internal/ratelimit"
	"projectron-api/internal/realtime"
	"projectron-api/internal/resilience"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Events delivers realtime notifications. main replaces it with the redis
// bridge when one is configured.
var Events realtime.Publisher = realtime.GetHub()

// respondError maps a domain error to its status code and an
// {"error": ...} body. Unknown errors are logged and answered with 500.
func respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	msg := fallback

	var limit *ratelimit.LimitError
	switch {
	case errors.As(err, &limit):
		status, msg = http.StatusTooManyRequests, limit.Message
	case errors.Is(err, aggregate.ErrNotFound):
		status, msg = http.StatusNotFound, "Project not found"
	case errors.Is(err, progress.ErrNotFound):
		status, msg = http.StatusNotFound, "Task not found"
	case errors.Is(err, ordering.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		status, msg = http.StatusNotFound, "Resource not found"
	case errors.Is(err, aggregate.ErrForbidden):
		status, msg = http.StatusForbidden, "Not authorized to access this project"
	case errors.Is(err, diagram.ErrUnsupportedKind):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, diagram.ErrRendererUnavailable), errors.Is(err, resilience.ErrCircuitOpen):
		status, msg = http.StatusServiceUnavailable, "Diagram renderer is temporarily unavailable"
	case errors.Is(err, llm.ErrExhausted):
		status, msg = http.StatusBadGateway, "AI generation failed: "+err.Error()
	}

	if status == http.StatusInternalServerError {
		logger.Log.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authorized"})
		return "", false
	}
	return userID, true
}

func publish(userIDs []string, kind string, fields map[string]any) {
	ev := realtime.Event(kind, fields)
	for _, id := range userIDs {
		Events.Publish(id, ev)
	}
}
