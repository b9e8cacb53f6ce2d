// Package httpapi implements the HTTP gateway for PassVault.
//
// Security:
//   - Bearer token (HS256 JWT) authentication on every /v1 request
//   - Secrets appear only in request/response bodies, never in logs
//   - Policy and proof failures map to deliberately terse error bodies
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jkaninda/okapi"

	"github.com/mvolkovs/passvault/internal/logging"
	"github.com/mvolkovs/passvault/internal/observability"
	"github.com/mvolkovs/passvault/internal/server/auth"
	"github.com/mvolkovs/passvault/internal/server/models"
	"github.com/mvolkovs/passvault/internal/server/services"
)

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP gateway.
type Config struct {
	ListenAddr string // e.g., ":8080"
	EnableDocs bool
	JWTSecret  []byte

	MetricsRegistry *prometheus.Registry // Custom Prometheus registry for /metrics.
	MetricsPath     string               // Path for metrics endpoint. Default: "/metrics".
	Metrics         *observability.Metrics
}

// Gateway is the HTTP gateway.
type Gateway struct {
	config Config
	vault  *services.VaultService
	users  *services.UserService
	logger logging.Logger
	server *http.Server

	okapi *okapi.Okapi
	group *okapi.Group
}

// NewGateway creates the HTTP gateway.
func NewGateway(cfg Config, vault *services.VaultService, users *services.UserService, logger logging.Logger) *Gateway {
	return &Gateway{
		config: cfg,
		vault:  vault,
		users:  users,
		logger: logger.With("module", "httpapi"),
		okapi:  okapi.New(),
	}
}

func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "PassVault",
			Version: "v1.0.0",
		},
	)
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is
// canceled.
func (g *Gateway) Start(ctx context.Context) error {
	if g.config.Metrics != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, next)
		})
	}

	// Account endpoints (unauthenticated).
	g.okapi.Post("/auth/register", g.handleRegister,
		okapi.DocSummary("Register a new account"),
		okapi.DocTags("Auth"),
		okapi.DocRequestBody(RegisterRequest{}),
		okapi.DocResponse(http.StatusCreated, RegisterResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusConflict, ErrorBody{}),
	)
	g.okapi.Post("/auth/login", g.handleLogin,
		okapi.DocSummary("Exchange credentials for a token pair"),
		okapi.DocTags("Auth"),
		okapi.DocRequestBody(LoginRequest{}),
		okapi.DocResponse(services.TokenPair{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
	)
	g.okapi.Post("/auth/refresh", g.handleRefresh,
		okapi.DocSummary("Rotate a refresh token"),
		okapi.DocTags("Auth"),
		okapi.DocRequestBody(RefreshRequest{}),
		okapi.DocResponse(services.TokenPair{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
	)

	// Authenticated vault endpoints.
	g.group = g.okapi.Group("/v1", g.authenticate)

	g.group.Post("/passwords", g.handleCreatePassword,
		okapi.DocSummary("Store a new credential"),
		okapi.DocTags("Passwords"),
		okapi.DocRequestBody(CreatePasswordRequest{}),
		okapi.DocResponse(http.StatusCreated, models.EntrySummary{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusConflict, ErrorBody{}),
	)
	g.group.Get("/passwords", g.handleListPasswords,
		okapi.DocSummary("List stored credentials, decrypted"),
		okapi.DocTags("Passwords"),
		okapi.DocResponse([]PasswordResponse{}),
	)
	g.group.Put("/passwords", g.handleUpdatePassword,
		okapi.DocSummary("Replace a credential, proving knowledge of the current one"),
		okapi.DocTags("Passwords"),
		okapi.DocRequestBody(UpdatePasswordRequest{}),
		okapi.DocResponse(MessageResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Delete("/passwords/{site}", g.handleDeletePassword,
		okapi.DocSummary("Delete a credential"),
		okapi.DocTags("Passwords"),
		okapi.DocPathParam("site", "string", "Website name"),
		okapi.DocResponse(map[string]string{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/passwords/generate", g.handleGeneratePassword,
		okapi.DocSummary("Generate a policy-passing secret without storing it"),
		okapi.DocTags("Passwords"),
		okapi.DocResponse(GenerateResponse{}),
	)

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleHealth)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info(ctx, "http gateway starting", "addr", g.config.ListenAddr)
	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info(ctx, "http gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// authenticate verifies the bearer token and stashes the caller identity in
// the request context.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := auth.ParseToken(token, g.config.JWTSecret)
		if err != nil {
			return c.AbortUnauthorized("invalid or expired token")
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		return next(c)
	}
}
