package joinapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/joinhub/console/internal/models"
)

// ListReviewRequests returns the moderation queue. The status query parameter
// is sent only for a non-empty filter.
func (c *Client) ListReviewRequests(ctx context.Context, status models.ReviewStatus) ([]models.ReviewEntry, error) {
	target, err := c.url("api", "admin", "join-requests")
	if err != nil {
		return nil, fmt.Errorf("list review requests: %w", err)
	}
	if status != models.ReviewStatusAll {
		target += "?" + url.Values{"status": {string(status)}}.Encode()
	}

	var out struct {
		Projects []models.ReviewEntry `json:"projects"`
	}
	if err := c.getJSON(ctx, "list review requests", target, &out); err != nil {
		return nil, err
	}
	if out.Projects == nil {
		return []models.ReviewEntry{}, nil
	}
	return out.Projects, nil
}

// SetReviewStatus records a moderation decision for one project.
func (c *Client) SetReviewStatus(ctx context.Context, id string, status models.ReviewStatus) error {
	const op = "set review status"

	payload, err := json.Marshal(map[string]string{"reviewStatus": string(status)})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	target, err := c.url("api", "admin", "join-requests", url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req, err := c.newRequest(ctx, http.MethodPatch, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(op, req)
	if err != nil {
		return err
	}
	_, err = readBody(op, resp)
	return err
}

// ReviewResult downloads the result of a project from the admin area.
func (c *Client) ReviewResult(ctx context.Context, id string) (*models.Download, error) {
	return c.download(ctx, "download review result", "api", "admin", "join-requests", url.PathEscape(id), "result")
}
