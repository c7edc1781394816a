package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"todo/internal/auth"
	"todo/internal/models"
	"todo/internal/storage/sqlite"
)

type testServer struct {
	srv    *Server
	tokens *auth.JWTManager
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "todo.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tokens, err := auth.NewJWTManager([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	sessions, err := auth.NewService(store, auth.NewBcryptHasher(bcrypt.MinCost), tokens, nil)
	require.NoError(t, err)

	return &testServer{srv: New(store, sessions, nil, opts), tokens: tokens}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(w, req)
	return w
}

// login registers a user and returns a session token for it.
func (ts *testServer) login(t *testing.T, email string) string {
	t.Helper()
	creds := gin.H{"email": email, "password": "pw123"}

	w := ts.do(t, http.MethodPost, "/api/register", "", creds)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/login", "", creds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (ts *testServer) createTask(t *testing.T, token string, body any) models.Task {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/tasks", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var task models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	return task
}

func (ts *testServer) listTasks(t *testing.T, token, query string) []models.Task {
	t.Helper()
	w := ts.do(t, http.MethodGet, "/api/tasks"+query, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tasks []models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tasks))
	return tasks
}

func taskTitles(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.do(t, http.MethodGet, "/api/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRegisterAndLoginScenario(t *testing.T) {
	ts := newTestServer(t, Options{})
	token := ts.login(t, "a@x.com")

	w := ts.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me models.Principal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "a@x.com", me.Email)
	assert.NotEmpty(t, me.UserID)

	task := ts.createTask(t, token, gin.H{"title": "Buy milk"})
	assert.Equal(t, "Buy milk", task.Title)
	assert.NotZero(t, task.SortKey)
	assert.False(t, task.Completed)
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Equal(t, me.UserID, task.UserID)

	w = ts.do(t, http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, task.ID, raw[0]["id"])
	assert.Equal(t, []any{}, raw[0]["subtasks"])
	assert.Equal(t, false, raw[0]["completed"])
	assert.Contains(t, raw[0], "sort_order")
	assert.Contains(t, raw[0], "createdAt")
}

func TestRegisterErrors(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.login(t, "a@x.com")

	tests := []struct {
		name string
		body any
		want int
	}{
		{name: "duplicate email", body: gin.H{"email": "a@x.com", "password": "x"}, want: http.StatusConflict},
		{name: "missing password", body: gin.H{"email": "b@x.com"}, want: http.StatusBadRequest},
		{name: "missing email", body: gin.H{"password": "x"}, want: http.StatusBadRequest},
		{name: "malformed json", body: `{"email":`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/register", "", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestLoginFailuresLookAlike(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.login(t, "a@x.com")

	wrong := ts.do(t, http.MethodPost, "/api/login", "", gin.H{"email": "a@x.com", "password": "nope"})
	unknown := ts.do(t, http.MethodPost, "/api/login", "", gin.H{"email": "ghost@x.com", "password": "pw123"})

	assert.Equal(t, http.StatusBadRequest, wrong.Code)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestAuthGate(t *testing.T) {
	ts := newTestServer(t, Options{})

	expiredIssuer, err := auth.NewJWTManager([]byte("test-secret"), time.Nanosecond)
	require.NoError(t, err)
	expired, err := expiredIssuer.Issue(models.Principal{UserID: "u1", Email: "a@x.com"})
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "no header", header: "", want: http.StatusUnauthorized},
		{name: "scheme only", header: "Bearer", want: http.StatusUnauthorized},
		{name: "blank token", header: "Bearer   ", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc.def.ghi", want: http.StatusForbidden},
		{name: "expired token", header: "Bearer " + expired, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			ts.srv.Engine().ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCreateTaskValidation(t *testing.T) {
	ts := newTestServer(t, Options{})
	token := ts.login(t, "a@x.com")

	tests := []struct {
		name string
		body any
	}{
		{name: "missing title", body: gin.H{}},
		{name: "blank title", body: gin.H{"title": "  "}},
		{name: "bad priority", body: gin.H{"title": "x", "priority": "Urgent"}},
		{name: "bad deadline", body: gin.H{"title": "x", "deadline": "tomorrow"}},
		{name: "malformed", body: `[`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/tasks", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestListTasksSortingAndFilters(t *testing.T) {
	ts := newTestServer(t, Options{})
	token := ts.login(t, "a@x.com")

	high := ts.createTask(t, token, gin.H{"title": "high", "priority": "High"})
	ts.createTask(t, token, gin.H{"title": "low", "priority": "Low", "deadline": "2025-01-01"})
	ts.createTask(t, token, gin.H{"title": "medium", "priority": "Medium"})

	assert.Equal(t, []string{"high", "low", "medium"}, taskTitles(ts.listTasks(t, token, "")))
	assert.Equal(t, []string{"high", "medium", "low"}, taskTitles(ts.listTasks(t, token, "?sortBy=priority")))
	assert.Equal(t, []string{"low", "high", "medium"}, taskTitles(ts.listTasks(t, token, "?sortBy=deadline")))

	w := ts.do(t, http.MethodPut, "/api/tasks/"+high.ID, token, gin.H{"completed": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, []string{"high"}, taskTitles(ts.listTasks(t, token, "?status=completed")))
	assert.Equal(t, []string{"low", "medium"}, taskTitles(ts.listTasks(t, token, "?status=active")))
	assert.Equal(t, []string{"medium"}, taskTitles(ts.listTasks(t, token, "?search=MED")))
}

func TestUpdateTask(t *testing.T) {
	ts := newTestServer(t, Options{})
	token := ts.login(t, "a@x.com")
	task := ts.createTask(t, token, gin.H{"title": "draft", "priority": "Low", "deadline": "2025-02-03"})

	w := ts.do(t, http.MethodPut, "/api/tasks/"+task.ID, token, gin.H{"title": "final"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tasks := ts.listTasks(t, token, "")
	require.Len(t, tasks, 1)
	assert.Equal(t, "final", tasks[0].Title)
	assert.Equal(t, models.PriorityLow, tasks[0].Priority)
	require.NotNil(t, tasks[0].Deadline)
	assert.Equal(t, "2025-02-03", *tasks[0].Deadline)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{name: "unknown task", path: "/api/tasks/" + uuid.NewString(), body: gin.H{"title": "x"}, want: http.StatusNotFound},
		{name: "malformed id", path: "/api/tasks/42", body: gin.H{"title": "x"}, want: http.StatusBadRequest},
		{name: "empty title", path: "/api/tasks/" + task.ID, body: gin.H{"title": ""}, want: http.StatusBadRequest},
		{name: "completed not boolean", path: "/api/tasks/" + task.ID, body: gin.H{"completed": "yes"}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPut, tt.path, token, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestCrossUserAccessIsNotFound(t *testing.T) {
	ts := newTestServer(t, Options{})
	alice := ts.login(t, "alice@x.com")
	bob := ts.login(t, "bob@x.com")

	task := ts.createTask(t, alice, gin.H{"title": "alice's"})
	w := ts.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/subtasks", alice, gin.H{"title": "step"})
	require.Equal(t, http.StatusCreated, w.Code)
	var sub models.Subtask
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))

	assert.Empty(t, ts.listTasks(t, bob, ""))

	checks := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPut, "/api/tasks/" + task.ID, gin.H{"title": "mine now"}},
		{http.MethodDelete, "/api/tasks/" + task.ID, nil},
		{http.MethodPost, "/api/tasks/" + task.ID + "/subtasks", gin.H{"title": "sneaky"}},
		{http.MethodPut, "/api/subtasks/" + sub.ID, gin.H{"completed": true}},
		{http.MethodDelete, "/api/subtasks/" + sub.ID, nil},
	}
	for _, c := range checks {
		w := ts.do(t, c.method, c.path, bob, c.body)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", c.method, c.path)
	}

	tasks := ts.listTasks(t, alice, "")
	require.Len(t, tasks, 1)
	assert.Equal(t, "alice's", tasks[0].Title)
	require.Len(t, tasks[0].Subtasks, 1)
	assert.False(t, tasks[0].Subtasks[0].Completed)
}

func TestSubtaskLifecycleAndCascade(t *testing.T) {
	ts := newTestServer(t, Options{})
	token := ts.login(t, "a@x.com")
	task := ts.createTask(t, token, gin.H{"title": "parent"})
	base := "/api/tasks/" + task.ID + "/subtasks"

	w := ts.do(t, http.MethodPost, base, token, gin.H{"title": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, base, token, gin.H{"title": "step"})
	require.Equal(t, http.StatusCreated, w.Code)
	var sub models.Subtask
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, task.ID, sub.TaskID)
	assert.False(t, sub.Completed)

	w = ts.do(t, http.MethodPut, "/api/subtasks/"+sub.ID, token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/subtasks/"+sub.ID, token, gin.H{"completed": true})
	require.Equal(t, http.StatusOK, w.Code)
	tasks := ts.listTasks(t, token, "")
	require.Len(t, tasks[0].Subtasks, 1)
	assert.True(t, tasks[0].Subtasks[0].Completed)

	w = ts.do(t, http.MethodDelete, "/api/tasks/"+task.ID, token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = ts.do(t, http.MethodPut, "/api/subtasks/"+sub.ID, token, gin.H{"completed": false})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodDelete, "/api/subtasks/"+sub.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodDelete, "/api/tasks/"+task.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSubtask(t *testing.T) {
	ts := newTestServer(t, Options{})
	token := ts.login(t, "a@x.com")
	task := ts.createTask(t, token, gin.H{"title": "parent"})

	w := ts.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/subtasks", token, gin.H{"title": "step"})
	require.Equal(t, http.StatusCreated, w.Code)
	var sub models.Subtask
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))

	w = ts.do(t, http.MethodDelete, "/api/subtasks/"+sub.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	tasks := ts.listTasks(t, token, "")
	require.Len(t, tasks, 1)
	assert.Empty(t, tasks[0].Subtasks)
}

func TestReorder(t *testing.T) {
	ts := newTestServer(t, Options{})
	token := ts.login(t, "a@x.com")

	a := ts.createTask(t, token, gin.H{"title": "a"})
	b := ts.createTask(t, token, gin.H{"title": "b"})
	c := ts.createTask(t, token, gin.H{"title": "c"})

	body := gin.H{"orderedIds": []string{c.ID, a.ID, b.ID}}
	for i := 0; i < 2; i++ {
		w := ts.do(t, http.MethodPost, "/api/tasks/reorder", token, body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, []string{"c", "a", "b"}, taskTitles(ts.listTasks(t, token, "")))
	}

	for _, bad := range []any{gin.H{}, gin.H{"orderedIds": "abc"}, gin.H{"orderedIds": nil}, `{`} {
		w := ts.do(t, http.MethodPost, "/api/tasks/reorder", token, bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v", bad)
	}

	w := ts.do(t, http.MethodPost, "/api/tasks/reorder", token, gin.H{"orderedIds": []string{}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	ts := newTestServer(t, Options{StaticDir: dir})

	w := ts.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "app")

	w = ts.do(t, http.MethodGet, "/app.js", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "console.log")

	w = ts.do(t, http.MethodGet, "/some/client/route", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<html>")

	w = ts.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"endpoint not found"}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, Options{CORSOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidInput, http.StatusBadRequest},
		{models.ErrInvalidCredentials, http.StatusBadRequest},
		{models.ErrUnauthenticated, http.StatusUnauthorized},
		{models.ErrForbidden, http.StatusForbidden},
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrDuplicateEmail, http.StatusConflict},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
