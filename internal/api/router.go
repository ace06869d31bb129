package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MarcosLauremiro/miKan-api/internal/app"
	iauth "github.com/MarcosLauremiro/miKan-api/internal/auth"
	"github.com/MarcosLauremiro/miKan-api/internal/handlers"
	"github.com/MarcosLauremiro/miKan-api/internal/middleware"
	"github.com/MarcosLauremiro/miKan-api/internal/monitoring"
	"github.com/MarcosLauremiro/miKan-api/internal/services"
)

// Services groups the domain services exposed over HTTP.
type Services struct {
	Auth       *services.AuthService
	Workspaces *services.WorkspaceService
	Projects   *services.ProjectService
	Lists      *services.ListService
	Tasks      *services.TaskService
	Users      *services.UserService
	Audit      *services.AuditService
}

func (s Services) validate() error {
	switch {
	case s.Auth == nil:
		return fmt.Errorf("auth service must be provided")
	case s.Workspaces == nil:
		return fmt.Errorf("workspace service must be provided")
	case s.Projects == nil:
		return fmt.Errorf("project service must be provided")
	case s.Lists == nil:
		return fmt.Errorf("list service must be provided")
	case s.Tasks == nil:
		return fmt.Errorf("task service must be provided")
	case s.Users == nil:
		return fmt.Errorf("user service must be provided")
	case s.Audit == nil:
		return fmt.Errorf("audit service must be provided")
	}
	return nil
}

// Dependencies carries everything NewRouter wires into the engine.
type Dependencies struct {
	Config    *app.Config
	JWT       *iauth.JWTService
	Services  Services
	RateStore middleware.RateStore
	Health    *monitoring.HealthManager
}

// NewRouter builds the Gin engine, wires middleware and registers the API routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if err := deps.Services.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowedOrigins...))
	r.Use(middleware.RateLimit(deps.RateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))
	r.Use(middleware.AuditContext())

	registerHealthRoutes(r, cfg, deps.Health)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	registerAuthRoutes(r, api, handlers.NewAuthHandler(deps.Services.Auth, refreshCookie(cfg), frontendURL(cfg)))
	registerWorkspaceRoutes(api, handlers.NewWorkspaceHandler(deps.Services.Workspaces))
	registerProjectRoutes(api, handlers.NewProjectHandler(deps.Services.Projects))
	registerListRoutes(api, handlers.NewListHandler(deps.Services.Lists))
	registerTaskRoutes(api, handlers.NewTaskHandler(deps.Services.Tasks))
	registerUserRoutes(api, handlers.NewUserHandler(deps.Services.Users))
	registerAuditRoutes(api, handlers.NewAuditHandler(deps.Services.Audit))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func refreshCookie(cfg *app.Config) handlers.CookieConfig {
	ttl := cfg.Auth.JWT.RefreshTTL
	if ttl <= 0 {
		ttl = iauth.DefaultRefreshTokenTTL
	}
	return handlers.CookieConfig{
		Secure: strings.HasPrefix(strings.ToLower(cfg.Server.AppURL), "https://"),
		MaxAge: ttl,
	}
}

func frontendURL(cfg *app.Config) string {
	if url := strings.TrimSpace(cfg.Server.FrontendURL); url != "" {
		return url
	}
	return cfg.Server.AppURL
}
