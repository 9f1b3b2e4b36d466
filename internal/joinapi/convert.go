package joinapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joinhub/console/internal/models"
)

// Convert uploads one document and returns its markdown rendition.
func (c *Client) Convert(ctx context.Context, file models.UploadedFile) (string, error) {
	const op = "convert"

	f := newForm()
	f.file("file", file)
	body, contentType, err := f.finish()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	target, err := c.url("api", "convert")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, target, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	var out struct {
		Markdown string `json:"markdown"`
	}
	if err := c.sendJSON(op, req, &out); err != nil {
		return "", err
	}
	return out.Markdown, nil
}

// Export renders a previously converted document in the given format.
// FileName is left empty for the caller to name.
func (c *Client) Export(ctx context.Context, fileName, format string) (*models.Download, error) {
	const op = "export"

	f := newForm()
	f.field("file_name", fileName)
	f.field("format", format)
	body, contentType, err := f.finish()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	target, err := c.url("api", "export")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(op, req)
	if err != nil {
		return nil, err
	}
	ct := resp.Header.Get("Content-Type")
	raw, err := readBody(op, resp)
	if err != nil {
		return nil, err
	}
	return &models.Download{ContentType: ct, Body: raw}, nil
}
