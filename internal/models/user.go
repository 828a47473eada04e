package models

import "time"

// User represents an account that owns projects.
type User struct {
	ID              string            `json:"id" gorm:"primaryKey"`
	Email           string            `json:"email" gorm:"uniqueIndex;not null"`
	HashedPassword  string            `json:"-" gorm:"column:hashed_password"`
	FullName        string            `json:"full_name" gorm:"not null"`
	Roles           []string          `json:"roles" gorm:"serializer:json"`
	Preferences     map[string]string `json:"preferences" gorm:"serializer:json"`
	IsEmailVerified bool              `json:"is_email_verified" gorm:"default:false"`
	LastLogin       *time.Time        `json:"last_login"`

	VerificationToken        string     `json:"-" gorm:"index"`
	VerificationTokenExpires *time.Time `json:"-"`
	ResetPasswordToken       string     `json:"-" gorm:"index"`
	ResetPasswordExpires     *time.Time `json:"-"`

	OAuthProvider string `json:"oauth_provider,omitempty" gorm:"column:oauth_provider"`
	OAuthID       string `json:"-" gorm:"column:oauth_id;index"`

	// plan generation quota counters, see ratelimit.Limiter
	TotalPlanGenerations    int   `json:"total_plan_generations" gorm:"not null;default:0"`
	PlanGenerationsThisHour int   `json:"plan_generations_this_hour" gorm:"not null;default:0"`
	CurrentHour             int64 `json:"-" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User Model
func (User) TableName() string {
	return "users"
}
