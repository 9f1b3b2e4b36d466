package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joinhub/console/internal/convert"
	"github.com/joinhub/console/internal/intake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startConvert(t *testing.T, env *testEnv, fields map[string]string, files ...formFile) convert.Job {
	t.Helper()
	body, contentType := multipartFiles(t, fields, files...)
	rec := env.do(http.MethodPost, "/api/convert", body, contentType)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	return decode[convert.Job](t, rec)
}

func waitJob(t *testing.T, env *testEnv, id string) convert.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := env.deps.Converter.Wait(ctx, id)
	require.NoError(t, err)
	return job
}

func TestConvertHandler_ConvertAndExport(t *testing.T) {
	env := newTestEnv(t, false)

	job := startConvert(t, env, nil,
		formFile{name: "report.docx", content: "doc"},
		formFile{name: "data.v2.csv", content: "a\n1\n"})
	assert.Equal(t, []string{"report.docx", "data.v2.csv"}, job.Files)
	waitJob(t, env, job.ID)

	rec := env.do(http.MethodGet, "/api/convert/"+job.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[convert.Job](t, rec)
	assert.Equal(t, convert.StatusComplete, done.Status)
	require.Len(t, done.Results, 2)
	assert.Equal(t, "# report.docx", done.Results[0].Markdown)

	staged, _ := env.store.List(0)
	assert.Empty(t, staged, "staged inputs are released once the batch ends")

	rec = env.doJSON(http.MethodPost, "/api/convert/"+job.ID+"/export", map[string]string{"format": "md"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[exportResponse](t, rec)
	require.Len(t, resp.Saved, 2)
	assert.Equal(t, "report_converted.md", filepath.Base(resp.Saved[0]))
	assert.Equal(t, "data.v2_converted.md", filepath.Base(resp.Saved[1]))

	data, err := os.ReadFile(resp.Saved[0])
	require.NoError(t, err)
	assert.Equal(t, "report.docx.md", string(data))

	exports := env.backend.Calls("/api/export")
	require.Len(t, exports, 2)
	assert.Equal(t, "report.docx", exports[0].Fields["file_name"])
	assert.Equal(t, "md", exports[0].Fields["format"])
}

func TestConvertHandler_LargeFilesNeedConfirmation(t *testing.T) {
	env := newTestEnv(t, false)
	big := formFile{name: "big.pdf", content: strings.Repeat("x", intake.LargeFileThreshold+1)}

	body, contentType := multipartFiles(t, nil, big, formFile{name: "small.txt", content: "hi"})
	rec := env.do(http.MethodPost, "/api/convert", body, contentType)
	require.Equal(t, http.StatusConflict, rec.Code)
	apiErr := decode[APIError](t, rec)
	assert.Equal(t, "CONFIRM_LARGE_FILES", apiErr.Code)
	assert.Equal(t, []string{"big.pdf"}, apiErr.Files)
	assert.Empty(t, env.backend.Calls("/api/convert"))

	staged, _ := env.store.List(0)
	assert.Empty(t, staged)

	job := startConvert(t, env, map[string]string{"confirmLarge": "true"}, big)
	assert.Equal(t, convert.StatusComplete, waitJob(t, env, job.ID).Status)
}

func TestConvertHandler_RejectsUnsupported(t *testing.T) {
	env := newTestEnv(t, false)

	body, contentType := multipartFiles(t, nil, formFile{name: "tool.exe", content: "x"})
	rec := env.do(http.MethodPost, "/api/convert", body, contentType)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"tool.exe"}, decode[APIError](t, rec).Files)
}

func TestConvertHandler_FailedBatchHasNoResults(t *testing.T) {
	env := newTestEnv(t, false)
	env.backend.Fail("/api/convert", http.StatusInternalServerError, "converter offline")

	job := startConvert(t, env, nil, formFile{name: "a.txt", content: "1"})
	failed := waitJob(t, env, job.ID)
	assert.Equal(t, convert.StatusError, failed.Status)
	assert.Empty(t, failed.Results)
	assert.Contains(t, failed.Error, "converter offline")

	rec := env.doJSON(http.MethodPost, "/api/convert/"+job.ID+"/export", map[string]string{"format": "md"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConvertHandler_ExportValidation(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.doJSON(http.MethodPost, "/api/convert/nope/export", map[string]string{"format": "md"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	job := startConvert(t, env, nil, formFile{name: "a.txt", content: "1"})
	waitJob(t, env, job.ID)

	rec = env.doJSON(http.MethodPost, "/api/convert/"+job.ID+"/export", map[string]string{"format": "odt"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[APIError](t, rec).Code)
}
