package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"taskdesk/internal/auth"
	"taskdesk/internal/config"
	"taskdesk/internal/handler"
	"taskdesk/internal/model"
	"taskdesk/internal/router"
	"taskdesk/internal/service"
	"taskdesk/internal/storage"
)

// memUserRepository is an in-memory UserRepository for handler tests.
type memUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]model.User
}

func newMemUserRepository() *memUserRepository {
	return &memUserRepository{users: make(map[uuid.UUID]model.User)}
}

func (r *memUserRepository) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *memUserRepository) Update(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *memUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (r *memUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memUserRepository) ListNonAdmins(ctx context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var users []model.User
	for _, user := range r.users {
		if !user.IsAdmin {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *memUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

// memTaskRepository is an in-memory TaskRepository for handler tests.
type memTaskRepository struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]model.Task
	seq   int
}

func newMemTaskRepository() *memTaskRepository {
	return &memTaskRepository{tasks: make(map[uuid.UUID]model.Task)}
}

func (r *memTaskRepository) Create(ctx context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	r.seq++
	// Distinct creation times keep the recency ordering deterministic.
	task.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	r.tasks[task.ID] = *task
	return nil
}

func (r *memTaskRepository) Update(ctx context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = *task
	return nil
}

func (r *memTaskRepository) FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	return &task, nil
}

func (r *memTaskRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := []model.Task{}
	for _, task := range r.tasks {
		if task.OwnerID == ownerID {
			tasks = append(tasks, task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (r *memTaskRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return false, nil
	}
	delete(r.tasks, id)
	return true, nil
}

func (r *memTaskRepository) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, task := range r.tasks {
		if task.OwnerID == ownerID {
			delete(r.tasks, id)
		}
	}
	return nil
}

// memTokenStore records blacklisted token IDs in memory.
type memTokenStore struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{revoked: make(map[string]struct{})}
}

func (s *memTokenStore) Blacklist(ctx context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = struct{}{}
	return nil
}

func (s *memTokenStore) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[tokenID]
	return ok, nil
}

// testApp bundles the wired server with the repositories behind it.
type testApp struct {
	echo     *echo.Echo
	userRepo *memUserRepository
	taskRepo *memTaskRepository
}

// setupApp wires the full router over in-memory repositories, with caching
// disabled.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	userRepo := newMemUserRepository()
	taskRepo := newMemTaskRepository()
	tokenStore := newMemTokenStore()

	attachmentStore, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	jwtService := auth.NewJWTService("test-secret")
	authService := service.NewAuthService(userRepo, jwtService, tokenStore)
	taskService := service.NewTaskService(taskRepo, attachmentStore, nil)
	adminService := service.NewAdminService(userRepo, taskRepo, nil)

	e := echo.New()
	router.Register(
		e,
		&config.Config{UploadDir: t.TempDir()},
		jwtService,
		tokenStore,
		handler.NewAuthHandler(authService),
		handler.NewTaskHandler(taskService),
		handler.NewAdminHandler(adminService, authService),
	)
	return &testApp{echo: e, userRepo: userRepo, taskRepo: taskRepo}
}

func (a *testApp) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) registerAndLogin(t *testing.T, username, email, password string) string {
	t.Helper()

	rec := a.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	return login.Token
}

func TestTasksRequireAuthentication(t *testing.T) {
	app := setupApp(t)

	rec := app.request(t, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.request(t, http.MethodGet, "/api/tasks", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerTokenAccepted(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "alice", "a@x.com", "secret1")

	// The Bearer scheme is stripped by the middleware before verification.
	rec := app.request(t, http.MethodGet, "/api/tasks", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	app := setupApp(t)

	body := map[string]string{
		"username": "alice",
		"email":    "a@x.com",
		"password": "secret1",
	}
	rec := app.request(t, http.MethodPost, "/api/auth/register", "", body)
	assert.Equal(t, http.StatusCreated, rec.Code)

	body["username"] = "alice2"
	rec = app.request(t, http.MethodPost, "/api/auth/register", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "USER_ALREADY_EXISTS")
}

func TestLoginWrongPassword(t *testing.T) {
	app := setupApp(t)
	app.registerAndLogin(t, "alice", "a@x.com", "secret1")

	rec := app.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "a@x.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTaskLifecycle(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "alice", "a@x.com", "secret1")

	// Create
	rec := app.request(t, http.MethodPost, "/api/tasks", token, map[string]string{
		"name":        "buy milk",
		"description": "2%",
		"dueDate":     "2025-01-01",
		"priority":    "high",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.False(t, created.Completed)
	assert.Equal(t, model.PriorityHigh, created.Priority)

	// Toggle
	rec = app.request(t, http.MethodPatch, fmt.Sprintf("/api/tasks/%s/toggle", created.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var toggled model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggled))
	assert.True(t, toggled.Completed)

	// Delete
	rec = app.request(t, http.MethodDelete, fmt.Sprintf("/api/tasks/%s", created.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// List is empty again
	rec = app.request(t, http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Empty(t, tasks)
}

func TestTaskValidation(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "alice", "a@x.com", "secret1")

	// Missing dueDate is rejected and nothing is stored.
	rec := app.request(t, http.MethodPost, "/api/tasks", token, map[string]string{
		"name":        "buy milk",
		"description": "2%",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.request(t, http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Empty(t, tasks)
}

func TestTasksHiddenAcrossUsers(t *testing.T) {
	app := setupApp(t)
	aliceToken := app.registerAndLogin(t, "alice", "a@x.com", "secret1")
	bobToken := app.registerAndLogin(t, "bob", "b@x.com", "secret2")

	rec := app.request(t, http.MethodPost, "/api/tasks", aliceToken, map[string]string{
		"name":        "private task",
		"description": "alice only",
		"dueDate":     "2025-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Bob sees an empty list and gets not-found, never forbidden, on
	// Alice's task.
	rec = app.request(t, http.MethodGet, "/api/tasks", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Empty(t, tasks)

	taskPath := fmt.Sprintf("/api/tasks/%s", created.ID)
	rec = app.request(t, http.MethodPatch, taskPath+"/toggle", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.request(t, http.MethodPatch, taskPath, bobToken, map[string]string{
		"name":        "hijacked",
		"description": "x",
		"dueDate":     "2025-01-01",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.request(t, http.MethodDelete, taskPath, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Alice still owns an intact task.
	rec = app.request(t, http.MethodGet, "/api/tasks", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Len(t, tasks, 1)
	assert.Equal(t, "private task", tasks[0].Name)
}

func TestListNewestFirst(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "alice", "a@x.com", "secret1")

	for _, name := range []string{"first", "second", "third"} {
		rec := app.request(t, http.MethodPost, "/api/tasks", token, map[string]string{
			"name":        name,
			"description": "d",
			"dueDate":     "2025-01-01",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := app.request(t, http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 3)
	assert.Equal(t, "third", tasks[0].Name)
	assert.Equal(t, "first", tasks[2].Name)
}

func TestAdminRoutes(t *testing.T) {
	app := setupApp(t)
	userToken := app.registerAndLogin(t, "alice", "a@x.com", "secret1")

	// A regular user is forbidden, not unauthenticated.
	rec := app.request(t, http.MethodGet, "/api/auth/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Seed an admin directly and log in.
	adminToken := func() string {
		rec := app.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "root",
			"email":    "root@x.com",
			"password": "admin-secret",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		// Promote the account in the backing store.
		user, err := app.userRepo.FindByEmail(context.Background(), "root@x.com")
		require.NoError(t, err)
		user.IsAdmin = true
		require.NoError(t, app.userRepo.Update(context.Background(), user))

		loginRec := app.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "root@x.com",
			"password": "admin-secret",
		})
		require.Equal(t, http.StatusOK, loginRec.Code)
		var login struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(loginRec.Body.Bytes(), &login))
		return login.Token
	}()

	// Admin sees the regular users only.
	rec = app.request(t, http.MethodGet, "/api/auth/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	// Admin can inspect a user's tasks.
	recCreate := app.request(t, http.MethodPost, "/api/tasks", userToken, map[string]string{
		"name":        "inspect me",
		"description": "d",
		"dueDate":     "2025-01-01",
	})
	require.Equal(t, http.StatusCreated, recCreate.Code)

	rec = app.request(t, http.MethodGet, fmt.Sprintf("/api/auth/admin/users/%s", users[0].ID), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		User  model.User   `json:"user"`
		Tasks []model.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "alice", detail.User.Username)
	assert.Len(t, detail.Tasks, 1)

	// Deleting the user removes their tasks as well.
	rec = app.request(t, http.MethodDelete, fmt.Sprintf("/api/auth/admin/users/%s", users[0].ID), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tasks, err := app.taskRepo.ListByOwner(context.Background(), users[0].ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestLogoutRevokesToken(t *testing.T) {
	app := setupApp(t)
	token := app.registerAndLogin(t, "alice", "a@x.com", "secret1")

	rec := app.request(t, http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(t, http.MethodGet, "/api/tasks", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
