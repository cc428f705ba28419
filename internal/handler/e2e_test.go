package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ropl-btc/project-tasks/internal/auth"
	"github.com/ropl-btc/project-tasks/internal/model"
	"github.com/ropl-btc/project-tasks/internal/repo"
	"github.com/ropl-btc/project-tasks/internal/service"
	"github.com/ropl-btc/project-tasks/internal/testutil"
	"github.com/ropl-btc/project-tasks/internal/worker"
)

type e2eClient struct {
	t      *testing.T
	url    string
	token  string
	flush  func()
	client *http.Client
}

func setupE2EServer(t *testing.T) *e2eClient {
	t.Helper()
	pool := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	workers := worker.NewPool(logger, 2, 5*time.Second)
	workers.Start(context.Background())

	srv := service.NewTaskService(repo.NewTaskRepo(pool), repo.NewNoteRepo(pool), workers, nil, logger)
	verifier := auth.NewVerifier([]byte("e2e-secret"), logger)
	token, err := verifier.Issue("e2e-user", time.Hour)
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(NewTaskHandler(srv, logger), NewNoteHandler(srv, logger), verifier.Middleware))
	t.Cleanup(func() {
		server.Close()
		workers.Stop()
	})

	return &e2eClient{
		t:     t,
		url:   server.URL,
		token: token,
		flush: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			require.NoError(t, srv.Flush(ctx, "e2e-user"))
		},
		client: server.Client(),
	}
}

func (c *e2eClient) do(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.url+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestE2E_FullWorkflow(t *testing.T) {
	c := setupE2EServer(t)

	// 1. Create tasks
	created := make([]model.Task, 0, 4)
	for i := 0; i < 4; i++ {
		var task model.Task
		code := c.do(http.MethodPost, "/api/tasks", map[string]any{"text": fmt.Sprintf("Task %d", i), "priority": "medium"}, &task)
		require.Equal(t, http.StatusCreated, code)
		created = append(created, task)
	}

	// 2. Update and cycle
	var updated model.Task
	require.Equal(t, http.StatusOK, c.do(http.MethodPatch, "/api/tasks/"+created[0].ID, map[string]any{"text": "Renamed"}, &updated))
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/tasks/"+created[1].ID+"/status", map[string]any{"direction": "next"}, &updated))
	assert.Equal(t, model.StatusInProgress, updated.Status)

	// 3. Drag the last task to the top and drop it
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/tasks/reorder", map[string]any{"from": 3, "to": 1, "commit": false}, nil))
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/tasks/reorder", map[string]any{"from": 1, "to": 0, "commit": false}, nil))
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/tasks/reorder", map[string]any{"from": 0, "to": 0, "commit": true}, nil))

	// 4. Delete
	require.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/tasks/"+created[2].ID, nil, nil))

	// 5. Reload from Postgres and compare
	c.flush()
	var tasks []model.Task
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/tasks/refresh", nil, &tasks))
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"Task 3", "Renamed", "Task 1"}, []string{tasks[0].Text, tasks[1].Text, tasks[2].Text})
	for i, task := range tasks {
		assert.Equal(t, i, task.Order)
	}
	assert.Equal(t, model.StatusInProgress, tasks[2].Status)
}

func TestE2E_Notes(t *testing.T) {
	c := setupE2EServer(t)

	var note noteResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/notes", map[string]any{"content": "<p>Shopping</p>"}, &note))
	require.Equal(t, http.StatusOK, c.do(http.MethodPatch, "/api/notes/"+note.ID, map[string]any{"content": "<p>Errands</p>"}, nil))

	c.flush()
	var notes []noteResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/notes/refresh", nil, &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "Errands", notes[0].Preview)
}

func TestE2E_HealthCheck(t *testing.T) {
	c := setupE2EServer(t)

	resp, err := c.client.Get(c.url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
}
