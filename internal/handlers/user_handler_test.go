package handlers

import (
	"net/http"
	"testing"

	"projectron-api/internal/auth"
	"projectron-api/internal/models"

	"github.com/stretchr/testify/require"
)

func TestSearchUsers(t *testing.T) {
	db := setupDB(t)
	alice := seedUser(t, db, "u-1", "alice@example.com")
	seedUser(t, db, "u-2", "bob@example.com")
	seedUser(t, db, "u-3", "carol@other.org")
	r := protectedRouter()

	w := doJSON(t, r, http.MethodGet, "/api/v1/users?email=EXAMPLE", tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Users []UserResponse `json:"users"`
		Count int            `json:"count"`
	}](t, w)
	require.Equal(t, 2, resp.Count)
	require.Equal(t, "alice@example.com", resp.Users[0].Email)
	require.NotContains(t, w.Body.String(), "hashed_password")

	w = doJSON(t, r, http.MethodGet, "/api/v1/users?email=ab", tokenFor(t, alice), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfile(t *testing.T) {
	db := setupDB(t)
	alice := seedUser(t, db, "u-1", "alice@example.com")
	r := protectedRouter()
	token := tokenFor(t, alice)
	createProject(t, r, token, "Mine")

	w := doJSON(t, r, http.MethodGet, "/api/v1/users/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[map[string]any](t, w)
	require.Equal(t, "alice@example.com", profile["email"])
	require.EqualValues(t, 1, profile["total_projects"])
	require.Equal(t, true, profile["is_active"])

	w = doJSON(t, r, http.MethodPut, "/api/v1/users/profile", token, map[string]any{"full_name": "  Alice Smith  "})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Alice Smith", decode[map[string]any](t, w)["full_name"])

	w = doJSON(t, r, http.MethodPut, "/api/v1/users/profile", token, map[string]any{"full_name": " A "})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangePassword(t *testing.T) {
	db := setupDB(t)
	alice := seedUser(t, db, "u-1", "alice@example.com")
	r := protectedRouter()
	token := tokenFor(t, alice)

	tests := []struct {
		name     string
		current  string
		next     string
		wantCode int
	}{
		{"wrong current", "Nope12345", "Newpass123", http.StatusBadRequest},
		{"same password", "Secret123", "Secret123", http.StatusBadRequest},
		{"weak new", "Secret123", "lettersonly", http.StatusBadRequest},
		{"ok", "Secret123", "Newpass123", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/v1/users/change-password", token, map[string]any{
				"current_password": tt.current,
				"new_password":     tt.next,
			})
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}

	var stored models.User
	require.NoError(t, db.Where("id = ?", alice.ID).First(&stored).Error)
	require.True(t, auth.CheckPassword(stored.HashedPassword, "Newpass123"))
}

func TestProfileStats(t *testing.T) {
	db := setupDB(t)
	alice := seedUser(t, db, "u-1", "alice@example.com")
	r := protectedRouter()
	token := tokenFor(t, alice)

	createProject(t, r, token, "Draft one")
	w := doJSON(t, r, http.MethodPost, "/api/v1/projects", token, map[string]any{"name": "Live", "status": "active"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/users/profile/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[struct {
		TotalProjects  int            `json:"total_projects"`
		ByStatus       map[string]int `json:"projects_by_status"`
		Recent         int            `json:"recent_projects_30_days"`
		AccountAgeDays int            `json:"account_age_days"`
		EmailVerified  bool           `json:"email_verified"`
	}](t, w)
	require.Equal(t, 2, stats.TotalProjects)
	require.Equal(t, map[string]int{"draft": 1, "active": 1}, stats.ByStatus)
	require.Equal(t, 2, stats.Recent)
	require.Zero(t, stats.AccountAgeDays)
	require.True(t, stats.EmailVerified)
}
