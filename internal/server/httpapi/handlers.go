package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/jkaninda/okapi"

	"github.com/mvolkovs/passvault/internal/common"
	"github.com/mvolkovs/passvault/internal/server/models"
	"github.com/mvolkovs/passvault/internal/server/services"
)

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirmation"`
}

// RegisterResponse is the JSON response for POST /auth/register.
type RegisterResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (g *Gateway) handleRegister(c *okapi.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return c.AbortBadRequest("username, email, and password are required")
	}
	if req.Password != req.PasswordConfirm {
		return c.AbortBadRequest("passwords do not match")
	}

	user, err := g.users.Register(c.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return g.serviceError(c, err)
	}

	g.logger.Info(c.Context(), "account registered", "username", user.Username)
	return c.JSON(http.StatusCreated, RegisterResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (g *Gateway) handleLogin(c *okapi.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}

	pair, err := g.users.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			return c.AbortUnauthorized("invalid username or password")
		}
		return g.serviceError(c, err)
	}
	return c.OK(pair)
}

// RefreshRequest is the JSON body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (g *Gateway) handleRefresh(c *okapi.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.RefreshToken == "" {
		return c.AbortBadRequest("refresh_token is required")
	}

	pair, err := g.users.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrRefreshTokenExpired) {
			return c.AbortUnauthorized("invalid or expired refresh token")
		}
		return g.serviceError(c, err)
	}
	return c.OK(pair)
}

// CreatePasswordRequest is the JSON body for POST /v1/passwords.
type CreatePasswordRequest struct {
	WebsiteName  string `json:"website_name"`
	WebsiteURL   string `json:"website_url,omitempty"`
	Password     string `json:"password,omitempty"`
	Autogenerate bool   `json:"autogenerate,omitempty"`
}

// PasswordResponse is the decrypted view of one credential. It is only
// produced by the list endpoint; write operations never echo the secret.
type PasswordResponse struct {
	WebsiteName string    `json:"website_name"`
	WebsiteURL  string    `json:"website_url"`
	Password    string    `json:"password"`
	CreatedAt   time.Time `json:"created_at"`
}

func passwordResponse(entry *models.RevealedEntry) PasswordResponse {
	return PasswordResponse{
		WebsiteName: entry.SiteName,
		WebsiteURL:  entry.SiteURL,
		Password:    entry.Password,
		CreatedAt:   entry.CreatedAt,
	}
}

// MessageResponse is the JSON body for operations that acknowledge without
// returning data.
type MessageResponse struct {
	Message string `json:"message"`
}

func (g *Gateway) handleCreatePassword(c *okapi.Context) error {
	userID := c.GetString("userID")
	if userID == "" {
		return c.AbortUnauthorized("Unauthorized")
	}

	var req CreatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.WebsiteName == "" {
		return c.AbortBadRequest("website_name is required")
	}
	if req.Password == "" && !req.Autogenerate {
		return c.AbortBadRequest("password is required unless autogenerate is set")
	}

	entry, err := g.vault.CreateEntry(c.Context(), userID, services.CreateEntryParams{
		SiteName:     req.WebsiteName,
		SiteURL:      req.WebsiteURL,
		Password:     req.Password,
		Autogenerate: req.Autogenerate,
	})
	if err != nil {
		return g.serviceError(c, err)
	}

	g.logger.Info(c.Context(), "credential stored", "user_id", userID, "site", entry.SiteName)
	return c.JSON(http.StatusCreated, entry)
}

func (g *Gateway) handleListPasswords(c *okapi.Context) error {
	userID := c.GetString("userID")
	if userID == "" {
		return c.AbortUnauthorized("Unauthorized")
	}

	entries, err := g.vault.ListEntries(c.Context(), userID)
	if err != nil {
		return g.serviceError(c, err)
	}

	resp := make([]PasswordResponse, len(entries))
	for i, entry := range entries {
		resp[i] = passwordResponse(entry)
	}
	return c.OK(resp)
}

// UpdatePasswordRequest is the JSON body for PUT /v1/passwords.
type UpdatePasswordRequest struct {
	WebsiteName  string `json:"website_name"`
	WebsiteURL   string `json:"website_url,omitempty"`
	OldPassword  string `json:"old_password"`
	NewPassword  string `json:"new_password,omitempty"`
	Autogenerate bool   `json:"autogenerate,omitempty"`
}

func (g *Gateway) handleUpdatePassword(c *okapi.Context) error {
	userID := c.GetString("userID")
	if userID == "" {
		return c.AbortUnauthorized("Unauthorized")
	}

	var req UpdatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.WebsiteName == "" {
		return c.AbortBadRequest("website_name is required")
	}
	if req.OldPassword == "" {
		return c.AbortBadRequest("old_password is required")
	}
	if req.NewPassword == "" && !req.Autogenerate {
		return c.AbortBadRequest("new_password is required unless autogenerate is set")
	}

	err := g.vault.UpdateEntry(c.Context(), userID, services.UpdateEntryParams{
		SiteName:     req.WebsiteName,
		SiteURL:      req.WebsiteURL,
		OldPassword:  req.OldPassword,
		NewPassword:  req.NewPassword,
		Autogenerate: req.Autogenerate,
	})
	if err != nil {
		return g.serviceError(c, err)
	}

	g.logger.Info(c.Context(), "credential updated", "user_id", userID, "site", req.WebsiteName)
	return c.OK(MessageResponse{Message: "password updated"})
}

func (g *Gateway) handleDeletePassword(c *okapi.Context) error {
	userID := c.GetString("userID")
	if userID == "" {
		return c.AbortUnauthorized("Unauthorized")
	}

	site := c.Param("site")
	if site == "" {
		return c.AbortBadRequest("site is required")
	}

	if err := g.vault.DeleteEntry(c.Context(), userID, site); err != nil {
		return g.serviceError(c, err)
	}

	g.logger.Info(c.Context(), "credential deleted", "user_id", userID, "site", site)
	return c.OK(map[string]string{"status": "deleted"})
}

// GenerateResponse is the JSON response for GET /v1/passwords/generate.
type GenerateResponse struct {
	Password string `json:"password"`
}

func (g *Gateway) handleGeneratePassword(c *okapi.Context) error {
	return c.OK(GenerateResponse{Password: g.vault.GeneratePassword()})
}

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func (g *Gateway) handleHealth(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// serviceError maps service errors to HTTP responses. Anything unmapped is a
// 500 with a generic body; internals never leak to the caller.
func (g *Gateway) serviceError(c *okapi.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrWeakPassword),
		errors.Is(err, common.ErrBreachedPassword),
		errors.Is(err, common.ErrProofMismatch),
		errors.Is(err, common.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, okapi.M{"error": err.Error()})
	case errors.Is(err, common.ErrEntryExists):
		return c.JSON(http.StatusConflict, okapi.M{"error": "an entry for this website already exists"})
	case errors.Is(err, common.ErrNotFound):
		return c.JSON(http.StatusNotFound, okapi.M{"error": "entry not found"})
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return c.AbortUnauthorized("Unauthorized")
	default:
		g.logger.Error(c.Context(), "request failed", "error", err.Error())
		return c.AbortInternalServerError("internal error")
	}
}
