package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"foundation_portal/internal/api/middleware"
	"foundation_portal/internal/app/service"
	"foundation_portal/internal/common/security"
	"foundation_portal/internal/domain/model"
	"foundation_portal/internal/domain/repository/memory"
	"foundation_portal/internal/platform/logging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLifetime = security.Lifetime{MaxAge: 30 * 24 * time.Hour, UpdateAge: 24 * time.Hour}

type testEnv struct {
	handler  http.Handler
	identity *service.IdentityService
	sessions *service.SessionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.Discard()

	users := memory.NewUserRepository()
	expenses := memory.NewExpenseRepository()
	tasks := memory.NewTaskRepository()

	tokens := security.NewSessionTokens([]byte("router-test-secret-0123456789abcdef"), testLifetime.MaxAge)
	sessions := service.NewSessionService(tokens, testLifetime, service.NewMemoryRevocationStore())
	identity := service.NewIdentityService(users, testLifetime, 4, logger)

	h := NewRouter(Services{
		Identity: identity,
		Sessions: sessions,
		Users:    service.NewUserService(users, sessions, logger),
		Expenses: service.NewExpenseService(expenses, service.NewMemoryVoteLocker(), logger),
		Tasks:    service.NewTaskService(tasks, users),
		Stats:    service.NewStatsService(users, expenses, tasks),
	}, Options{BaseURL: "http://portal.test", Logger: logger})

	return &testEnv{handler: h, identity: identity, sessions: sessions}
}

func (e *testEnv) seedUser(t *testing.T, role model.Role) *model.User {
	t.Helper()
	user, err := e.identity.CreateAccount(context.Background(), service.RegisterRequest{
		Name:     string(role) + " member",
		Email:    uuid.NewString() + "@example.org",
		Password: "secret1",
	}, role)
	require.NoError(t, err)
	return user
}

// tokenFor signs a session for user as if it had signed in at authAt.
func (e *testEnv) tokenFor(t *testing.T, user *model.User, authAt time.Time) string {
	t.Helper()
	token, err := e.sessions.Issue(testLifetime.New(user.Identity(), "", authAt))
	require.NoError(t, err)
	return token
}

func (e *testEnv) freshToken(t *testing.T, user *model.User) string {
	return e.tokenFor(t, user, time.Now().Add(-time.Minute))
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return env
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	register := map[string]string{"name": "Ana", "email": "Ana@Example.org", "password": "secret1"}

	rec := env.do(t, http.MethodPost, "/api/v1/users", "", register)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
	var created model.User
	decodeData(t, rec, &created)
	assert.Equal(t, "ana@example.org", created.Email)
	assert.Equal(t, model.RoleUser, created.Role)

	rec = env.do(t, http.MethodPost, "/api/v1/users", "", register)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions", "", map[string]string{"email": "ana@example.org", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email or password", decodeData(t, rec, nil).Error)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions", "", map[string]string{"email": "ANA@example.org", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login struct {
		Token       string               `json:"token"`
		User        model.Identity       `json:"user"`
		Permissions security.Permissions `json:"permissions"`
	}
	decodeData(t, rec, &login)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, created.ID, login.User.ID)
	assert.False(t, login.Permissions.CanAccessAdmin)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == security.SessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "session cookie must be set")
	assert.True(t, cookie.HttpOnly)

	// The cookie alone authenticates.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.AddCookie(cookie)
	current := httptest.NewRecorder()
	env.handler.ServeHTTP(current, req)
	assert.Equal(t, http.StatusOK, current.Code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/v1/expenses", "/api/v1/tasks", "/api/v1/stats", "/api/v1/sessions"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/expenses", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpenseApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	member := env.seedUser(t, model.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/v1/expenses", env.freshToken(t, member), map[string]interface{}{
		"amount":      "125.50",
		"description": "Printer toner",
		"category":    "Office Supplies",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var expense model.Expense
	decodeData(t, rec, &expense)
	assert.Equal(t, "office-supplies", expense.CategorySlug)
	assert.False(t, expense.IsFullyApproved)

	votePath := "/api/v1/expenses/" + expense.ID + "/approval"

	// Hierarchy does not grant voting: only admins vote.
	moderator := env.seedUser(t, model.RoleModerator)
	rec = env.do(t, http.MethodPatch, votePath, env.freshToken(t, moderator), map[string]bool{"approved": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admins := make([]*model.User, 4)
	for i := range admins {
		admins[i] = env.seedUser(t, model.RoleAdmin)
	}

	rec = env.do(t, http.MethodPatch, votePath, env.freshToken(t, admins[0]), map[string]interface{}{"approverId": admins[1].ID, "approved": true})
	assert.Equal(t, http.StatusForbidden, rec.Code, "voting on behalf of someone else")

	rec = env.do(t, http.MethodPatch, votePath, env.freshToken(t, admins[0]), map[string]interface{}{"approverId": admins[0].ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "approved is required")

	for i, admin := range admins {
		rec = env.do(t, http.MethodPatch, votePath, env.freshToken(t, admin), map[string]interface{}{"approverId": admin.ID, "approved": true})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decodeData(t, rec, &expense)
		assert.Len(t, expense.Approvals, i+1)
		assert.Equal(t, i == 3, expense.IsFullyApproved, "after vote %d", i+1)
	}

	// Re-voting replaces the approver's entry.
	rec = env.do(t, http.MethodPatch, votePath, env.freshToken(t, admins[2]), map[string]bool{"approved": false})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &expense)
	assert.Len(t, expense.Approvals, 4)
	assert.False(t, expense.IsFullyApproved)

	rec = env.do(t, http.MethodGet, "/api/v1/expenses?approved=false&category=Office%20Supplies", env.freshToken(t, member), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []model.Expense
	decodeData(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, expense.ID, listed[0].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/expenses?approved=maybe", env.freshToken(t, member), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoteOnUnknownExpense(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, model.RoleAdmin)

	for _, id := range []string{uuid.NewString(), "abc"} {
		rec := env.do(t, http.MethodPatch, "/api/v1/expenses/"+id+"/approval", env.freshToken(t, admin), map[string]bool{"approved": true})
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
	}
}

func TestMalformedTaskReferences(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, model.RoleAdmin)
	token := env.freshToken(t, admin)

	rec := env.do(t, http.MethodGet, "/api/v1/tasks/abc", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/tasks", token, map[string]string{"title": "Sort donations", "assigned_to": "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestTaskPermissions(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, model.RoleAdmin)
	editor := env.seedUser(t, model.RoleEditor)

	newTask := map[string]string{"title": "Prepare quarterly report", "priority": "high"}

	rec := env.do(t, http.MethodPost, "/api/v1/tasks", env.freshToken(t, editor), newTask)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/tasks", env.freshToken(t, admin), newTask)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var task model.Task
	decodeData(t, rec, &task)
	assert.Equal(t, model.PriorityHigh, task.Priority)

	rec = env.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/complete", env.freshToken(t, editor), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &task)
	assert.True(t, task.Completed)

	rec = env.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/complete", env.freshToken(t, editor), map[string]bool{"completed": false})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &task)
	assert.False(t, task.Completed)

	rec = env.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID, env.freshToken(t, editor), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID, env.freshToken(t, admin), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, env.freshToken(t, admin), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	member := env.seedUser(t, model.RoleUser)
	token := env.freshToken(t, member)

	rec := env.do(t, http.MethodDelete, "/api/v1/sessions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Other sessions of the same user are unaffected.
	rec = env.do(t, http.MethodGet, "/api/v1/sessions", env.freshToken(t, member), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleChangeRevokesExistingSessions(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, model.RoleAdmin)
	member := env.seedUser(t, model.RoleUser)
	oldToken := env.freshToken(t, member)

	rec := env.do(t, http.MethodPatch, "/api/v1/users/"+member.ID+"/role", env.freshToken(t, member), map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/users/"+member.ID+"/role", env.freshToken(t, admin), map[string]string{"role": "overlord"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/users/"+member.ID+"/role", env.freshToken(t, admin), map[string]string{"role": "moderator"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated model.User
	decodeData(t, rec, &updated)
	assert.Equal(t, model.RoleModerator, updated.Role)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions", oldToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/users/"+uuid.NewString()+"/role", env.freshToken(t, admin), map[string]string{"role": "editor"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsAccess(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/stats", env.freshToken(t, env.seedUser(t, model.RoleUser)), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, role := range []model.Role{model.RoleModerator, model.RoleEditor, model.RoleAdmin} {
		rec = env.do(t, http.MethodGet, "/api/v1/stats", env.freshToken(t, env.seedUser(t, role)), nil)
		require.Equal(t, http.StatusOK, rec.Code, role)
	}

	var stats service.Stats
	decodeData(t, rec, &stats)
	assert.Equal(t, 4, stats.Users)
	assert.Zero(t, stats.Expenses.Total)
	assert.Zero(t, stats.Tasks.Total)
}

func TestSessionRefreshAfterUpdateAge(t *testing.T) {
	env := newTestEnv(t)
	member := env.seedUser(t, model.RoleUser)

	rec := env.do(t, http.MethodGet, "/api/v1/sessions", env.freshToken(t, member), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(middleware.RefreshedTokenHeader))

	stale := env.tokenFor(t, member, time.Now().Add(-25*time.Hour))
	rec = env.do(t, http.MethodGet, "/api/v1/sessions", stale, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	refreshed := rec.Header().Get(middleware.RefreshedTokenHeader)
	require.NotEmpty(t, refreshed)
	session, err := env.sessions.Tokens().Parse(refreshed)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(testLifetime.MaxAge), session.ExpiresAt, 5*time.Second)
	assert.Equal(t, model.RoleUser, session.Role)
}

func TestExpiredSessionIsRejected(t *testing.T) {
	env := newTestEnv(t)
	member := env.seedUser(t, model.RoleUser)

	expired := env.tokenFor(t, member, time.Now().Add(-31*24*time.Hour))
	rec := env.do(t, http.MethodGet, "/api/v1/sessions", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
