// fake_backend.go - In-memory join backend for tests
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joinhub/console/internal/models"
	"github.com/labstack/echo/v4"
)

// Call is one request observed by the fake backend.
type Call struct {
	Method string
	Route  string // echo route pattern, e.g. /api/project/:id
	Path   string
	Query  string
	Fields map[string]string
	Files  []string
	Body   string
	At     time.Time
}

type failure struct {
	status int
	detail string
}

// FakeBackend mimics the join backend's HTTP surface with in-memory state.
type FakeBackend struct {
	Server *httptest.Server

	mu         sync.Mutex
	projects   map[string]models.Project
	reviews    map[string]models.ReviewEntry
	candidates models.CandidateColumnMap
	failures   map[string]failure
	calls      []Call
}

// NewFakeBackend starts a fake backend that is closed when the test ends.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()

	f := &FakeBackend{
		projects: make(map[string]models.Project),
		reviews:  make(map[string]models.ReviewEntry),
		failures: make(map[string]failure),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(f.record)

	api := e.Group("/api")
	api.POST("/find_candidate_columns", f.findCandidates)
	api.POST("/create_project", f.createProject)
	api.GET("/projects", f.listProjects)
	api.GET("/project/:id", f.getProject)
	api.GET("/create_ci/:id", f.createCI)
	api.GET("/join/:id", f.join)
	api.GET("/result/:id", f.result)
	api.GET("/file-preview/:id/:name", f.filePreview)
	api.POST("/convert", f.convert)
	api.POST("/export", f.export)
	api.GET("/admin/join-requests", f.listReviews)
	api.PATCH("/admin/join-requests/:id", f.setReview)
	api.GET("/admin/join-requests/:id/result", f.result)

	f.Server = httptest.NewServer(e)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the backend root.
func (f *FakeBackend) URL() string {
	return f.Server.URL
}

// Fail makes every request to route answer status with detail until Recover is called.
func (f *FakeBackend) Fail(route string, status int, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = failure{status: status, detail: detail}
}

// Recover clears a failure set by Fail.
func (f *FakeBackend) Recover(route string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, route)
}

// SetCandidates fixes the answer of candidate detection.
func (f *FakeBackend) SetCandidates(m models.CandidateColumnMap) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = m.Clone()
}

// PutProject stores a project under p.ID.
func (f *FakeBackend) PutProject(p models.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := p.ID
	p.ID = ""
	f.projects[id] = p
}

// Project returns the stored project with its id filled in.
func (f *FakeBackend) Project(id string) (models.Project, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	p.ID = id
	return p, ok
}

// PutReview stores a moderation entry.
func (f *FakeBackend) PutReview(e models.ReviewEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews[e.ID] = e
}

// Calls returns the requests observed for route, or every request when route is empty.
func (f *FakeBackend) Calls(route string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if route == "" || c.Route == route {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeBackend) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		call := Call{
			Method: req.Method,
			Route:  c.Path(),
			Path:   req.URL.Path,
			Query:  req.URL.RawQuery,
			Fields: map[string]string{},
			At:     time.Now(),
		}

		contentType := req.Header.Get(echo.HeaderContentType)
		if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
			if form, err := c.MultipartForm(); err == nil {
				for k, v := range form.Value {
					if len(v) > 0 {
						call.Fields[k] = v[0]
					}
				}
				for _, field := range []string{"files", "file"} {
					for _, fh := range form.File[field] {
						call.Files = append(call.Files, fh.Filename)
					}
				}
			}
		} else if req.Body != nil {
			body, _ := io.ReadAll(req.Body)
			call.Body = string(body)
			req.Body = io.NopCloser(strings.NewReader(call.Body))
		}

		f.mu.Lock()
		f.calls = append(f.calls, call)
		fail, failing := f.failures[call.Route]
		f.mu.Unlock()

		if failing {
			if fail.detail == "" {
				return c.NoContent(fail.status)
			}
			return c.JSON(fail.status, map[string]string{"detail": fail.detail})
		}
		return next(c)
	}
}

func (f *FakeBackend) findCandidates(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candidates != nil {
		return c.JSON(http.StatusOK, f.candidates)
	}
	out := models.CandidateColumnMap{}
	for _, fh := range form.File["files"] {
		out[fh.Filename] = []string{"id"}
	}
	return c.JSON(http.StatusOK, out)
}

func (f *FakeBackend) createProject(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
	}
	name := c.FormValue("projectName")
	if name == "" {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "projectName is required"})
	}

	var candidates models.CandidateColumnMap
	if raw := c.FormValue("candidateColumns"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid candidateColumns"})
		}
	}

	p := models.Project{
		Name:             name,
		CreatedAt:        time.Now().UTC().Format(time.RFC3339Nano),
		Status:           models.ProjectStatusIdle,
		CandidateColumns: candidates,
	}
	for _, fh := range form.File["files"] {
		p.Files = append(p.Files, fh.Filename)
	}

	id := uuid.New().String()
	f.mu.Lock()
	f.projects[id] = p
	f.mu.Unlock()

	return c.String(http.StatusOK, id)
}

func (f *FakeBackend) listProjects(c echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return c.JSON(http.StatusOK, f.projects)
}

func (f *FakeBackend) getProject(c echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Project not found"})
	}
	return c.JSON(http.StatusOK, p)
}

func (f *FakeBackend) createCI(c echo.Context) error {
	return f.update(c, func(p *models.Project) {
		p.CI = true
		p.Status = models.ProjectStatusActive
	})
}

func (f *FakeBackend) join(c echo.Context) error {
	return f.update(c, func(p *models.Project) {
		p.Status = models.ProjectStatusDone
	})
}

func (f *FakeBackend) update(c echo.Context, mutate func(*models.Project)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := c.Param("id")
	p, ok := f.projects[id]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Project not found"})
	}
	mutate(&p)
	f.projects[id] = p
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (f *FakeBackend) result(c echo.Context) error {
	id := c.Param("id")
	body := fmt.Sprintf("project,id\n%s,1\n", id)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(body))
}

func (f *FakeBackend) filePreview(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"content": fmt.Sprintf("preview of %s in %s", c.Param("name"), c.Param("id")),
	})
}

func (f *FakeBackend) convert(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "file is required"})
	}
	return c.JSON(http.StatusOK, map[string]string{"markdown": "# " + fh.Filename})
}

var exportContentTypes = map[string]string{
	"md":   "text/markdown",
	"html": "text/html",
	"pdf":  "application/pdf",
	"csv":  "text/csv",
	"json": "application/json",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func (f *FakeBackend) export(c echo.Context) error {
	name := c.FormValue("file_name")
	format := c.FormValue("format")
	contentType, ok := exportContentTypes[format]
	if !ok {
		contentType = "text/markdown"
	}
	return c.Blob(http.StatusOK, contentType, []byte(name+"."+format))
}

func (f *FakeBackend) listReviews(c echo.Context) error {
	status := c.QueryParam("status")

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ReviewEntry, 0, len(f.reviews))
	for _, e := range f.reviews {
		if status != "" && string(e.ModerationStatus()) != status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return c.JSON(http.StatusOK, map[string]any{"projects": out})
}

func (f *FakeBackend) setReview(c echo.Context) error {
	var body struct {
		ReviewStatus models.ReviewStatus `json:"reviewStatus"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid body"})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.reviews[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Project not found"})
	}
	e.Review = &models.Review{Status: body.ReviewStatus}
	f.reviews[e.ID] = e
	return c.JSON(http.StatusOK, e)
}
