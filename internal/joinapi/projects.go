package joinapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/joinhub/console/internal/models"
)

// CreateProjectRequest is the multipart payload of a project submission.
type CreateProjectRequest struct {
	ProjectName      string
	CandidateColumns models.CandidateColumnMap
	Files            []models.UploadedFile
}

// FindCandidateColumns uploads files and returns the join-key candidates per file.
func (c *Client) FindCandidateColumns(ctx context.Context, files []models.UploadedFile) (models.CandidateColumnMap, error) {
	const op = "find candidate columns"

	f := newForm()
	for _, file := range files {
		f.file("files", file)
	}
	body, contentType, err := f.finish()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	target, err := c.url("api", "find_candidate_columns")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var candidates models.CandidateColumnMap
	if err := c.sendJSON(op, req, &candidates); err != nil {
		return nil, err
	}
	if candidates == nil {
		candidates = models.CandidateColumnMap{}
	}
	return candidates, nil
}

// CreateProject submits a new project and returns the id assigned by the backend.
func (c *Client) CreateProject(ctx context.Context, in CreateProjectRequest) (string, error) {
	const op = "create project"

	f := newForm()
	f.field("projectName", in.ProjectName)
	if in.CandidateColumns.Len() > 0 {
		encoded, err := json.Marshal(in.CandidateColumns)
		if err != nil {
			return "", fmt.Errorf("%s: encode candidate columns: %w", op, err)
		}
		f.field("candidateColumns", string(encoded))
	}
	for _, file := range in.Files {
		f.file("files", file)
	}
	body, contentType, err := f.finish()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	target, err := c.url("api", "create_project")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, target, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(op, req)
	if err != nil {
		return "", err
	}
	raw, err := readBody(op, resp)
	if err != nil {
		return "", err
	}
	return parseProjectID(raw), nil
}

// parseProjectID accepts both a bare id and a JSON-encoded string.
func parseProjectID(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, `"`) {
		var id string
		if err := json.Unmarshal([]byte(text), &id); err == nil {
			return id
		}
	}
	return text
}

// ListProjects returns every project keyed by id.
func (c *Client) ListProjects(ctx context.Context) (map[string]models.Project, error) {
	target, err := c.url("api", "projects")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var projects map[string]models.Project
	if err := c.getJSON(ctx, "list projects", target, &projects); err != nil {
		return nil, err
	}
	if projects == nil {
		projects = map[string]models.Project{}
	}
	for id, p := range projects {
		p.ID = id
		projects[id] = p
	}
	return projects, nil
}

// GetProject fetches a single project.
func (c *Client) GetProject(ctx context.Context, id string) (models.Project, error) {
	target, err := c.url("api", "project", url.PathEscape(id))
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	var p models.Project
	if err := c.getJSON(ctx, "get project", target, &p); err != nil {
		return models.Project{}, err
	}
	p.ID = id
	return p, nil
}

// CreateCI asks the backend to compute the CI step of a project.
func (c *Client) CreateCI(ctx context.Context, id string) error {
	return c.trigger(ctx, "create ci", "api", "create_ci", url.PathEscape(id))
}

// Join asks the backend to run the join of a project.
func (c *Client) Join(ctx context.Context, id string) error {
	return c.trigger(ctx, "join", "api", "join", url.PathEscape(id))
}

// Result downloads the joined result of a project. FileName is left empty.
func (c *Client) Result(ctx context.Context, id string) (*models.Download, error) {
	return c.download(ctx, "download result", "api", "result", url.PathEscape(id))
}

// FilePreview returns the backend's text preview of one project file.
func (c *Client) FilePreview(ctx context.Context, id, fileName string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	target, err := c.url("api", "file-preview", url.PathEscape(id), url.PathEscape(fileName))
	if err != nil {
		return "", fmt.Errorf("file preview: %w", err)
	}
	if err := c.getJSON(ctx, "file preview", target, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

func (c *Client) download(ctx context.Context, op string, segments ...string) (*models.Download, error) {
	target, err := c.url(segments...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(op, req)
	if err != nil {
		return nil, err
	}
	contentType := resp.Header.Get("Content-Type")
	body, err := readBody(op, resp)
	if err != nil {
		return nil, err
	}
	return &models.Download{ContentType: contentType, Body: body}, nil
}
