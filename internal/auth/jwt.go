package auth

import (
	"errors"
	"slices"
	"sync"
	"time"

	"projectron-api/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	mu       sync.RWMutex
	settings = config.Default().JWT
)

// Configure replaces the signing settings. Called once from main.
func Configure(cfg config.JWTConfig) {
	mu.Lock()
	defer mu.Unlock()
	settings = cfg
}

func current() config.JWTConfig {
	mu.RLock()
	defer mu.RUnlock()
	return settings
}

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateToken issues an access token for the user
func GenerateToken(userID, email string) (string, error) {
	cfg := current()
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*Claims, error) {
	cfg := current()
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Issuer != cfg.Issuer {
		return nil, errors.New("invalid token issuer")
	}
	if !slices.Contains(claims.Audience, cfg.Audience) {
		return nil, errors.New("invalid token audience")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Expiry is the lifetime of issued tokens.
func Expiry() time.Duration {
	return current().Expiry
}
