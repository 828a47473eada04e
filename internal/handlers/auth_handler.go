package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"projectron-api/internal/auth"
	"projectron-api/internal/cache"
	"projectron-api/internal/database"
	"projectron-api/internal/email"
	"projectron-api/internal/logger"
	"projectron-api/internal/middleware"
	"projectron-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	verificationTTL = 24 * time.Hour
	resetTTL        = time.Hour
)

// RegisterRequest represents the sign-up payload
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required,min=1,max=100"`
}

// LoginRequest accepts the OAuth2 password form (username) or JSON (email).
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password" binding:"required"`
}

// TokenResponse represents the login response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// AuthHandler serves account creation, login and the OAuth redirects.
type AuthHandler struct {
	mailer        *email.Mailer
	providers     map[string]*auth.Provider
	states        *cache.StateStore
	frontendURL   string
	secureCookies bool
}

func NewAuthHandler(mailer *email.Mailer, providers map[string]*auth.Provider, states *cache.StateStore, frontendURL string, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		mailer:        mailer,
		providers:     providers,
		states:        states,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		secureCookies: secureCookies,
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB().WithContext(c.Request.Context())
	address := strings.ToLower(strings.TrimSpace(req.Email))
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", address).Count(&count).Error; err != nil {
		respondError(c, err, "Failed to register user")
		return
	}
	if count > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err, "Failed to register user")
		return
	}
	token, err := auth.NewToken()
	if err != nil {
		respondError(c, err, "Failed to register user")
		return
	}
	expires := time.Now().Add(verificationTTL)
	user := models.User{
		ID:                       uuid.NewString(),
		Email:                    address,
		HashedPassword:           hash,
		FullName:                 strings.TrimSpace(req.FullName),
		Roles:                    []string{"user"},
		VerificationToken:        token,
		VerificationTokenExpires: &expires,
	}
	if err := db.Create(&user).Error; err != nil {
		respondError(c, err, "Failed to register user")
		return
	}

	if err := h.mailer.SendVerification(c.Request.Context(), user.Email, user.FullName, token); err != nil {
		logger.Log.Warn("send verification mail", zap.String("user_id", user.ID), zap.Error(err))
	}
	c.JSON(http.StatusCreated, user)
}

// Token handles POST /auth/token
func (h *AuthHandler) Token(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}
	identity := req.Email
	if identity == "" {
		identity = req.Username
	}

	db := database.GetDB().WithContext(c.Request.Context())
	var user models.User
	err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(identity))).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, err, "Failed to log in")
		return
	}
	if err != nil || !auth.CheckPassword(user.HashedPassword, req.Password) {
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect email or password"})
		return
	}
	if !user.IsEmailVerified {
		c.JSON(http.StatusForbidden, gin.H{"error": "Email not verified. Please check your inbox to verify your email."})
		return
	}

	token, err := h.login(c, &user)
	if err != nil {
		respondError(c, err, "Failed to generate token")
		return
	}
	c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// login records the login, issues a token and stores it in the session cookie.
func (h *AuthHandler) login(c *gin.Context, user *models.User) (string, error) {
	now := time.Now()
	if err := database.GetDB().WithContext(c.Request.Context()).
		Model(user).Update("last_login", now).Error; err != nil {
		return "", err
	}
	token, err := auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, int(auth.Expiry().Seconds()), "/", "", h.secureCookies, true)
	return token, nil
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// VerifyEmail handles GET /auth/verify-email?token=
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid verification token"})
		return
	}

	db := database.GetDB().WithContext(c.Request.Context())
	var user models.User
	if err := db.Where("verification_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid verification token"})
			return
		}
		respondError(c, err, "Failed to verify email")
		return
	}
	if user.VerificationTokenExpires == nil || time.Now().After(*user.VerificationTokenExpires) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Verification token has expired"})
		return
	}

	err := db.Model(&user).Updates(map[string]any{
		"is_email_verified":          true,
		"verification_token":         "",
		"verification_token_expires": nil,
	}).Error
	if err != nil {
		respondError(c, err, "Failed to verify email")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email successfully verified"})
}

// ResendVerification handles POST /auth/resend-verification
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB().WithContext(c.Request.Context())
	var user models.User
	if err := db.Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// unknown addresses get the same answer
			c.JSON(http.StatusOK, gin.H{"message": "If your email exists, a verification link will be sent"})
			return
		}
		respondError(c, err, "Failed to resend verification")
		return
	}
	if user.IsEmailVerified {
		c.JSON(http.StatusOK, gin.H{"message": "Email already verified"})
		return
	}

	token, err := auth.NewToken()
	if err != nil {
		respondError(c, err, "Failed to resend verification")
		return
	}
	expires := time.Now().Add(verificationTTL)
	err = db.Model(&user).Updates(map[string]any{
		"verification_token":         token,
		"verification_token_expires": &expires,
	}).Error
	if err != nil {
		respondError(c, err, "Failed to resend verification")
		return
	}
	if err := h.mailer.SendVerification(c.Request.Context(), user.Email, user.FullName, token); err != nil {
		respondError(c, err, "Failed to send verification email")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification email sent"})
}

// ForgotPassword handles POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	const answer = "If an account exists for this email, a reset link has been sent"

	db := database.GetDB().WithContext(c.Request.Context())
	var user models.User
	if err := db.Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{"message": answer})
			return
		}
		respondError(c, err, "Failed to start password reset")
		return
	}

	token, err := auth.NewToken()
	if err != nil {
		respondError(c, err, "Failed to start password reset")
		return
	}
	expires := time.Now().Add(resetTTL)
	err = db.Model(&user).Updates(map[string]any{
		"reset_password_token":   token,
		"reset_password_expires": &expires,
	}).Error
	if err != nil {
		respondError(c, err, "Failed to start password reset")
		return
	}
	if err := h.mailer.SendPasswordReset(c.Request.Context(), user.Email, token); err != nil {
		logger.Log.Warn("send reset mail", zap.String("user_id", user.ID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": answer})
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB().WithContext(c.Request.Context())
	var user models.User
	err := db.Where("reset_password_token = ?", req.Token).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && (user.ResetPasswordExpires == nil || time.Now().After(*user.ResetPasswordExpires))) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset token"})
		return
	}
	if err != nil {
		respondError(c, err, "Failed to reset password")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(c, err, "Failed to reset password")
		return
	}
	err = db.Model(&user).Updates(map[string]any{
		"hashed_password":        hash,
		"reset_password_token":   "",
		"reset_password_expires": nil,
	}).Error
	if err != nil {
		respondError(c, err, "Failed to reset password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}

// OAuthLogin handles GET /auth/{provider} and answers the consent URL.
func (h *AuthHandler) OAuthLogin(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := h.providers[provider]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": provider + " login is not configured"})
			return
		}
		state, err := h.states.Issue(provider)
		if err != nil {
			respondError(c, err, "Failed to start "+provider+" login")
			return
		}
		c.JSON(http.StatusOK, gin.H{"auth_url": p.AuthCodeURL(state)})
	}
}

// OAuthCallback handles GET /auth/{provider}/callback. The browser is sent
// back to the frontend with the token, or with an error flag.
func (h *AuthHandler) OAuthCallback(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		failed := h.frontendURL + "/auth/login?error=oauth_failed"
		p, ok := h.providers[provider]
		if !ok || c.Query("code") == "" || !h.states.Consume(provider, c.Query("state")) {
			c.Redirect(http.StatusFound, failed)
			return
		}

		profile, err := p.Exchange(c.Request.Context(), c.Query("code"))
		if err != nil {
			logger.Log.Warn("oauth exchange failed", zap.String("provider", provider), zap.Error(err))
			c.Redirect(http.StatusFound, failed)
			return
		}
		user, err := upsertOAuthUser(c, profile)
		if err != nil {
			logger.Log.Error("oauth user", zap.String("provider", provider), zap.Error(err))
			c.Redirect(http.StatusFound, failed)
			return
		}
		token, err := h.login(c, user)
		if err != nil {
			logger.Log.Error("oauth token", zap.String("user_id", user.ID), zap.Error(err))
			c.Redirect(http.StatusFound, failed)
			return
		}
		c.Redirect(http.StatusFound, h.frontendURL+"/auth/success?token="+url.QueryEscape(token))
	}
}

// upsertOAuthUser finds the account by email or creates a verified one.
func upsertOAuthUser(c *gin.Context, profile *auth.Profile) (*models.User, error) {
	db := database.GetDB().WithContext(c.Request.Context())
	address := strings.ToLower(profile.Email)

	var user models.User
	err := db.Where("email = ?", address).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		name := profile.Name
		if name == "" {
			name = strings.Split(address, "@")[0]
		}
		user = models.User{
			ID:              uuid.NewString(),
			Email:           address,
			FullName:        name,
			Roles:           []string{"user"},
			IsEmailVerified: true,
			OAuthProvider:   profile.Provider,
			OAuthID:         profile.ID,
		}
		return &user, db.Create(&user).Error
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"is_email_verified": true}
	if user.OAuthProvider == "" {
		updates["oauth_provider"] = profile.Provider
		updates["oauth_id"] = profile.ID
	}
	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var user models.User
	if err := database.GetDB().WithContext(c.Request.Context()).Where("id = ?", userID).First(&user).Error; err != nil {
		respondError(c, err, "Failed to load user")
		return
	}
	c.JSON(http.StatusOK, user)
}
