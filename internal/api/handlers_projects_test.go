package api

import (
	"net/http"
	"testing"

	"github.com/joinhub/console/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func seedProjects(env *testEnv) {
	env.backend.PutProject(models.Project{ID: "p1", Name: "sales", CreatedAt: "2025-01-01T10:00:00Z", Status: models.ProjectStatusIdle, Files: []string{"a.csv", "b.csv"}})
	env.backend.PutProject(models.Project{ID: "p2", Name: "stock", CreatedAt: "2025-02-01T10:00:00Z", Status: models.ProjectStatusDone})
}

func TestProjectHandler_List(t *testing.T) {
	env := newTestEnv(t, false)
	seedProjects(env)

	rec := env.do(http.MethodGet, "/api/projects", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[projectListResponse](t, rec)
	require.Len(t, resp.Projects, 2)
	assert.Equal(t, "p2", resp.Projects[0].ID, "newest first")
	assert.Equal(t, models.StatusCounts{Done: 1, Idle: 1, Total: 2}, resp.Counts)

	rec = env.do(http.MethodGet, "/api/projects/counts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[models.StatusCounts](t, rec).Total)
}

func TestProjectHandler_ListMsgpack(t *testing.T) {
	env := newTestEnv(t, false)
	seedProjects(env)

	rec := env.do(http.MethodGet, "/api/projects/msgpack", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))

	var resp projectListResponse
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Projects, 2)
	assert.Equal(t, 2, resp.Counts.Total)
}

func TestProjectHandler_ListBackendDown(t *testing.T) {
	env := newTestEnv(t, false)
	env.backend.Fail("/api/projects", http.StatusInternalServerError, "")

	rec := env.do(http.MethodGet, "/api/projects", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestProjectHandler_Triggers(t *testing.T) {
	env := newTestEnv(t, false)
	seedProjects(env)

	rec := env.do(http.MethodPost, "/api/projects/p1/ci", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[models.Project](t, rec)
	assert.True(t, p.CI)
	assert.Equal(t, models.ProjectStatusActive, p.Status)

	rec = env.do(http.MethodPost, "/api/projects/p1/join", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ProjectStatusDone, decode[models.Project](t, rec).Status)

	env.backend.Fail("/api/join/:id", http.StatusInternalServerError, "join crashed")
	before := len(env.backend.Calls("/api/project/:id"))
	rec = env.do(http.MethodPost, "/api/projects/p1/join", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Len(t, env.backend.Calls("/api/project/:id"), before, "failed trigger is not followed by a refresh")
}

func TestProjectHandler_GetSelects(t *testing.T) {
	env := newTestEnv(t, false)
	seedProjects(env)

	rec := env.do(http.MethodGet, "/api/projects/selected", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/api/projects/p1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sales", decode[models.Project](t, rec).Name)

	selected, ok := env.deps.Tracker.Selected()
	require.True(t, ok)
	assert.Equal(t, "p1", selected.ID)

	rec = env.do(http.MethodPost, "/api/projects/p1/join", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/projects/selected", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[models.Project](t, rec)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, models.ProjectStatusDone, p.Status, "refresh updates the selection")

	rec = env.do(http.MethodGet, "/api/projects/missing", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	selected, _ = env.deps.Tracker.Selected()
	assert.Equal(t, "p1", selected.ID, "a failed lookup keeps the selection")

	rec = env.do(http.MethodDelete, "/api/projects/selected", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok = env.deps.Tracker.Selected()
	assert.False(t, ok)
}

func TestProjectHandler_GetUnknown(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(http.MethodGet, "/api/projects/missing", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Project not found", decode[APIError](t, rec).Details)
}

func TestProjectHandler_Result(t *testing.T) {
	env := newTestEnv(t, false)
	seedProjects(env)

	rec := env.do(http.MethodGet, "/api/projects/p1/result", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "attachment; filename=sales_result.csv", rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Equal(t, "project,id\np1,1\n", rec.Body.String())
}

func TestProjectHandler_FilePreview(t *testing.T) {
	env := newTestEnv(t, false)
	seedProjects(env)

	rec := env.do(http.MethodGet, "/api/projects/p1/files/a.csv/preview", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "preview of a.csv in p1", decode[previewResponse](t, rec).Content)
}
