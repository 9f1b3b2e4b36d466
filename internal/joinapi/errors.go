package joinapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrInvalidPathSegment is returned for an id or file name that cannot be
// placed in a request path, such as "" or "..".
var ErrInvalidPathSegment = errors.New("joinapi: invalid path segment")

// Error is a non-2xx answer from the join backend.
type Error struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s failed: %d, %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s failed: %d", e.Op, e.StatusCode)
}

// StatusCode returns the backend status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

// newError reads the error body of resp and extracts the backend detail.
func newError(op string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &Error{
		Op:         op,
		StatusCode: resp.StatusCode,
		Detail:     detailOf(body),
	}
}

// detailOf pulls "detail" out of a JSON error body. FastAPI sends a string for
// handled errors and a list of objects for validation failures.
func detailOf(body []byte) string {
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return ""
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		if len(body) > 200 || !isPrintable(body) {
			return ""
		}
		return string(body)
	}
	if len(envelope.Detail) == 0 || string(envelope.Detail) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}
	return string(envelope.Detail)
}

func isPrintable(b []byte) bool {
	for _, r := range string(b) {
		if r < 0x20 && r != '\n' && r != '\t' && r != '\r' {
			return false
		}
	}
	return true
}
