// handlers_projects.go - Project status handlers
package api

import (
	"mime"
	"net/http"

	"github.com/joinhub/console/internal/export"
	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/tracker"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// ProjectHandlerImpl implements the ProjectHandler interface
type ProjectHandlerImpl struct {
	tracker  *tracker.Tracker
	exporter *export.Exporter
	logger   *zap.Logger
}

// NewProjectHandler creates a new project handler instance
func NewProjectHandler(t *tracker.Tracker, exporter *export.Exporter, logger *zap.Logger) ProjectHandler {
	return &ProjectHandlerImpl{
		tracker:  t,
		exporter: exporter,
		logger:   logger,
	}
}

type projectListResponse struct {
	Projects []models.Project   `json:"projects" msgpack:"projects"`
	Counts   models.StatusCounts `json:"counts" msgpack:"counts"`
}

type previewResponse struct {
	Content string `json:"content"`
}

func (h *ProjectHandlerImpl) load(c echo.Context) (projectListResponse, error) {
	if err := h.tracker.Load(c.Request().Context()); err != nil {
		return projectListResponse{}, backendError(err)
	}
	return projectListResponse{
		Projects: h.tracker.Projects(),
		Counts:   h.tracker.Counts(),
	}, nil
}

// HandleListProjects fetches every project from the join backend
func (h *ProjectHandlerImpl) HandleListProjects(c echo.Context) error {
	resp, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleListProjectsMsgpack returns the project list in MessagePack format
func (h *ProjectHandlerImpl) HandleListProjectsMsgpack(c echo.Context) error {
	resp, err := h.load(c)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(resp)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleCounts returns per-status counts of the loaded projects
func (h *ProjectHandlerImpl) HandleCounts(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.Counts())
}

// HandleGetProject refreshes one project from the join backend
func (h *ProjectHandlerImpl) HandleGetProject(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.tracker.Refresh(c.Request().Context(), id); err != nil {
		return backendError(err)
	}
	p, err := h.tracker.Select(id)
	if err != nil {
		return NewInternalError("failed to select project", err)
	}
	return c.JSON(http.StatusOK, p)
}

// HandleGetSelected returns the project last opened with HandleGetProject
func (h *ProjectHandlerImpl) HandleGetSelected(c echo.Context) error {
	p, ok := h.tracker.Selected()
	if !ok {
		return NewNotFoundError("selected project", "none")
	}
	return c.JSON(http.StatusOK, p)
}

// HandleClearSelected closes the opened project
func (h *ProjectHandlerImpl) HandleClearSelected(c echo.Context) error {
	h.tracker.ClearSelection()
	return c.NoContent(http.StatusNoContent)
}

// HandleCreateCI starts candidate inspection and returns the refreshed project
func (h *ProjectHandlerImpl) HandleCreateCI(c echo.Context) error {
	p, err := h.tracker.CreateCI(c.Request().Context(), c.Param("id"))
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// HandleJoin starts the join and returns the refreshed project
func (h *ProjectHandlerImpl) HandleJoin(c echo.Context) error {
	p, err := h.tracker.Join(c.Request().Context(), c.Param("id"))
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// HandleResult downloads the joined result as "<name>_result.csv"
func (h *ProjectHandlerImpl) HandleResult(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	p, ok := h.tracker.Get(id)
	if !ok {
		var err error
		if p, err = h.tracker.Refresh(ctx, id); err != nil {
			return backendError(err)
		}
	}

	d, err := h.exporter.Result(ctx, id, p.Name)
	if err != nil {
		return backendError(err)
	}
	h.logger.Info("result downloaded", zap.String("project", id), zap.Int("bytes", len(d.Body)))
	return sendDownload(c, d)
}

// HandleFilePreview returns the backend's preview of one project file
func (h *ProjectHandlerImpl) HandleFilePreview(c echo.Context) error {
	content, err := h.tracker.Preview(c.Request().Context(), c.Param("id"), c.Param("name"))
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusOK, previewResponse{Content: content})
}

// sendDownload writes d as an attachment.
func sendDownload(c echo.Context, d *models.Download) error {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName})
	c.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	contentType := d.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Blob(http.StatusOK, contentType, d.Body)
}
