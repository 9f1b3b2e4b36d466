// handlers_convert.go - Document conversion handlers
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/joinhub/console/internal/convert"
	"github.com/joinhub/console/internal/export"
	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/storage"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ConvertHandlerImpl implements the ConvertHandler interface
type ConvertHandlerImpl struct {
	store     storage.Store
	jobs      *convert.Manager
	exporter  *export.Exporter
	downloads export.Sink
	logger    *zap.Logger
}

// NewConvertHandler creates a new convert handler instance
func NewConvertHandler(store storage.Store, jobs *convert.Manager, exporter *export.Exporter, downloads export.Sink, logger *zap.Logger) ConvertHandler {
	return &ConvertHandlerImpl{
		store:     store,
		jobs:      jobs,
		exporter:  exporter,
		downloads: downloads,
		logger:    logger,
	}
}

type exportRequest struct {
	Format string `json:"format" validate:"required,oneof=md html pdf docx csv json xlsx"`
}

type exportResponse struct {
	Format string   `json:"format"`
	Saved  []string `json:"saved"`
}

// HandleStartConvert stages the multipart "files" and starts a conversion
// batch. Files over 1MB need confirmLarge=true; otherwise the batch is
// refused with 409 and the names of the large files.
func (h *ConvertHandlerImpl) HandleStartConvert(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("expected multipart form", err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return NewValidationError("files")
	}

	confirmLarge := false
	if v := c.FormValue("confirmLarge"); v != "" {
		if confirmLarge, err = strconv.ParseBool(v); err != nil {
			return NewValidationError("confirmLarge")
		}
	}

	parts := make([]models.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		parts = append(parts, models.UploadedFile{Name: fh.Filename, Size: fh.Size})
	}
	if err := convert.Check(parts, confirmLarge); err != nil {
		return backendError(err)
	}

	files, err := stageFiles(h.store, headers)
	if err != nil {
		return NewInternalError("failed to stage uploaded files", err)
	}

	// the batch outlives this request
	job := h.jobs.StartJob(context.WithoutCancel(c.Request().Context()), files)
	return c.JSON(http.StatusAccepted, job)
}

// HandleGetJob returns the progress of a batch
func (h *ConvertHandlerImpl) HandleGetJob(c echo.Context) error {
	id := c.Param("jobId")
	job, ok := h.jobs.GetJob(id)
	if !ok {
		return NewNotFoundError("conversion job", id)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleExport exports every converted file of a completed batch and saves
// the documents to the downloads directory.
func (h *ConvertHandlerImpl) HandleExport(c echo.Context) error {
	id := c.Param("jobId")
	job, ok := h.jobs.GetJob(id)
	if !ok {
		return NewNotFoundError("conversion job", id)
	}
	if job.Status != convert.StatusComplete {
		return NewConflictError("conversion is not complete: " + string(job.Status))
	}

	var req exportRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	saved, err := h.exporter.SaveAll(c.Request().Context(), job.FileNames(), req.Format, h.downloads)
	if err != nil {
		h.logger.Warn("export stopped",
			zap.String("job", id),
			zap.Int("saved", len(saved)),
			zap.Error(err))
		return backendError(err)
	}
	return c.JSON(http.StatusOK, exportResponse{Format: req.Format, Saved: saved})
}
