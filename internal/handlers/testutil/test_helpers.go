package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MarcosLauremiro/miKan-api/internal/api"
	"github.com/MarcosLauremiro/miKan-api/internal/app"
	iauth "github.com/MarcosLauremiro/miKan-api/internal/auth"
	sharedtestutil "github.com/MarcosLauremiro/miKan-api/internal/database/testutil"
	"github.com/MarcosLauremiro/miKan-api/internal/monitoring"
	"github.com/MarcosLauremiro/miKan-api/internal/services"
	"github.com/MarcosLauremiro/miKan-api/pkg/response"
)

// FrontendURL is where OAuth callbacks redirect in tests.
const FrontendURL = "http://frontend.test"

// PublishedEvent is one event captured by RecordingBus.
type PublishedEvent struct {
	Name    string
	Payload any
}

// RecordingBus is a synchronous events.Publisher that remembers every event.
type RecordingBus struct {
	mu     sync.Mutex
	events []PublishedEvent
}

func (b *RecordingBus) Publish(_ context.Context, name string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, PublishedEvent{Name: name, Payload: payload})
	return nil
}

// Last returns the most recent event published under name.
func (b *RecordingBus) Last(name string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Name == name {
			return b.events[i].Payload, true
		}
	}
	return nil, false
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Bus    *RecordingBus
	Config *app.Config
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Server: app.ServerConfig{
			AppURL:      "http://api.test",
			FrontendURL: FrontendURL,
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				AccessSecret:  "test-suite-access-secret-32-bytes!!",
				RefreshSecret: "test-suite-refresh-secret-32-bytes!",
				Issuer:        "test-suite",
				AccessTTL:     time.Hour,
				RefreshTTL:    24 * time.Hour,
			},
			BcryptCost: 4,
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true, Timeout: time.Second},
		},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)
	tokens, err := iauth.NewTokenService(db, jwtSvc, nil)
	require.NoError(t, err)

	bus := &RecordingBus{}
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	authSvc, err := services.NewAuthService(db, tokens,
		services.WithAuthEvents(bus),
		services.WithAuthAudit(audit),
		services.WithPasswordCost(cfg.Auth.BcryptCost),
	)
	require.NoError(t, err)
	workspaces, err := services.NewWorkspaceService(db, bus, audit)
	require.NoError(t, err)
	projects, err := services.NewProjectService(db, bus, audit)
	require.NoError(t, err)
	lists, err := services.NewListService(db, bus, audit)
	require.NoError(t, err)
	tasks, err := services.NewTaskService(db)
	require.NoError(t, err)
	users, err := services.NewUserService(db)
	require.NoError(t, err)

	health := monitoring.NewHealthManager(cfg.Monitoring.Health.Timeout)

	router, err := api.NewRouter(api.Dependencies{
		Config: cfg,
		JWT:    jwtSvc,
		Services: api.Services{
			Auth:       authSvc,
			Workspaces: workspaces,
			Projects:   projects,
			Lists:      lists,
			Tasks:      tasks,
			Users:      users,
			Audit:      audit,
		},
		Health: health,
	})
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Bus:    bus,
		Config: cfg,
	}
}

// UserPayload captures the subset of user fields returned from auth endpoints.
type UserPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Provider  string `json:"provider"`
	AvatarURL string `json:"avatar_url"`
}

// AuthResult bundles the JSON response from register and login.
type AuthResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	IsNewUser    bool        `json:"is_new_user"`
	User         UserPayload `json:"user"`
}

// Password is the password Register uses for every account.
const Password = "secret123"

// Register creates a local account with a random email and returns the session.
func (e *Env) Register(name string) AuthResult {
	e.T.Helper()
	return e.RegisterAs(name, uuid.NewString()[:8]+"@example.com")
}

// RegisterAs creates a local account for email and returns the session.
func (e *Env) RegisterAs(name, email string) AuthResult {
	e.T.Helper()

	payload := map[string]string{
		"name":     name,
		"email":    email,
		"password": Password,
	}
	w := e.Request(http.MethodPost, "/api/auth/register", payload, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var result AuthResult
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.NotEmpty(e.T, result.RefreshToken)
	return result
}

// Login authenticates using the local provider and returns the issued token pair.
func (e *Env) Login(email, password string) AuthResult {
	e.T.Helper()

	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result AuthResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.Equal(e.T, email, result.User.Email)
	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Cookie returns the named cookie set by a response, or nil.
func Cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
