package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"projectron-api/internal/metrics"
	"projectron-api/internal/models"

	"gorm.io/gorm"
)

const (
	MaxTotal   = 30
	MaxPerHour = 5
)

var (
	ErrLimited     = errors.New("plan generation limit reached")
	ErrUnknownUser = errors.New("user not found")
)

// LimitError explains which quota was hit.
type LimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string { return e.Message }
func (e *LimitError) Unwrap() error { return ErrLimited }

// Limiter enforces the per-user plan generation quota stored on the user row.
type Limiter struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Limiter {
	return &Limiter{db: db, now: time.Now}
}

// hourIndex numbers clock hours since the epoch, so a new index starts at
// the top of every hour.
func hourIndex(t time.Time) int64 {
	return t.Unix() / 3600
}

// Reserve records one generation for userID if both quotas allow it.
// Check and increment happen in a single conditional UPDATE, so two
// concurrent requests can never both take the last slot.
func (l *Limiter) Reserve(ctx context.Context, userID string) error {
	now := l.now().UTC()
	hour := hourIndex(now)

	res := l.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND total_plan_generations < ? AND (current_hour < ? OR plan_generations_this_hour < ?)",
			userID, MaxTotal, hour, MaxPerHour).
		UpdateColumns(map[string]any{
			"total_plan_generations":     gorm.Expr("total_plan_generations + 1"),
			"plan_generations_this_hour": gorm.Expr("CASE WHEN current_hour < ? THEN 1 ELSE plan_generations_this_hour + 1 END", hour),
			"current_hour":               hour,
		})
	if res.Error != nil {
		return fmt.Errorf("reserve plan generation: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var user models.User
	err := l.db.WithContext(ctx).Select("id", "total_plan_generations").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUnknownUser
	}
	if err != nil {
		return err
	}

	metrics.RecordRateLimitRejection()
	if user.TotalPlanGenerations >= MaxTotal {
		return &LimitError{
			Message: fmt.Sprintf("You have reached the maximum limit of %d projects. Please contact support if you need to increase your limit.", MaxTotal),
		}
	}

	next := time.Unix((hour+1)*3600, 0).UTC()
	wait := next.Sub(now)
	return &LimitError{
		Message:    fmt.Sprintf("You have reached the hourly limit of %d projects. Please try again in %d minutes.", MaxPerHour, int(wait.Minutes())),
		RetryAfter: wait,
	}
}
