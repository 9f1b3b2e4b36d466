// handlers_wizard.go - Project creation wizard handlers
package api

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/joinhub/console/internal/intake"
	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/preview"
	"github.com/joinhub/console/internal/session"
	"github.com/joinhub/console/internal/storage"
	"github.com/joinhub/console/internal/wizard"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WizardHandlerImpl implements the WizardHandler interface
type WizardHandlerImpl struct {
	store     storage.Store
	sessions  *session.Manager
	previewer *preview.Previewer
	logger    *zap.Logger
}

// NewWizardHandler creates a new wizard handler instance
func NewWizardHandler(store storage.Store, sessions *session.Manager, previewer *preview.Previewer, logger *zap.Logger) WizardHandler {
	return &WizardHandlerImpl{
		store:     store,
		sessions:  sessions,
		previewer: previewer,
		logger:    logger,
	}
}

type wizardResponse struct {
	ID         string       `json:"id"`
	State      wizard.State `json:"state"`
	StepName   string       `json:"stepName"`
	CanProceed bool         `json:"canProceed"`
	CanSubmit  bool         `json:"canSubmit"`
}

func newWizardResponse(id string, s wizard.State) wizardResponse {
	return wizardResponse{
		ID:         id,
		State:      s,
		StepName:   s.Step.String(),
		CanProceed: s.CanProceed(),
		CanSubmit:  s.CanSubmit(),
	}
}

type rejectedResponse struct {
	wizardResponse
	Rejected  []string `json:"rejected"`
	Supported []string `json:"supported"`
	Message   string   `json:"message"`
}

type setNameRequest struct {
	ProjectName    string `json:"projectName" validate:"max=200"`
	ProcessingType string `json:"processingType" validate:"omitempty,oneof=join"`
}

type submitResponse struct {
	ProjectID string `json:"projectId"`
}

func (h *WizardHandlerImpl) session(c echo.Context) (*session.SessionState, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}
	sess, err := h.sessions.Get(id)
	if err != nil {
		return nil, NewNotFoundError("wizard", id)
	}
	return sess, nil
}

// HandleCreateWizard opens a wizard session at step 1
func (h *WizardHandlerImpl) HandleCreateWizard(c echo.Context) error {
	sess, err := h.sessions.Create()
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusCreated, newWizardResponse(sess.ID, sess.Wizard.State()))
}

// HandleGetWizard returns the wizard state
func (h *WizardHandlerImpl) HandleGetWizard(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newWizardResponse(sess.ID, sess.Wizard.State()))
}

// HandleDeleteWizard closes a wizard and removes its staged files
func (h *WizardHandlerImpl) HandleDeleteWizard(c echo.Context) error {
	id := c.Param("id")
	if err := h.sessions.Delete(id); err != nil {
		return NewNotFoundError("wizard", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleAddFiles stages the multipart "files" and adds them to the wizard.
// Files with an unsupported extension are reported with 422; the others are
// kept.
func (h *WizardHandlerImpl) HandleAddFiles(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("expected multipart form", err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return NewValidationError("files")
	}

	accepted := make([]*multipart.FileHeader, 0, len(headers))
	var refused []models.UploadedFile
	for _, fh := range headers {
		if intake.Allowed(fh.Filename, intake.UploadExtensions) {
			accepted = append(accepted, fh)
		} else {
			refused = append(refused, models.UploadedFile{Name: fh.Filename, Size: fh.Size})
		}
	}

	state := sess.Wizard.State()
	if len(accepted) > 0 {
		files, err := stageFiles(h.store, accepted)
		if err != nil {
			return NewInternalError("failed to stage uploaded files", err)
		}
		if state, err = sess.Wizard.AddFiles(files); err != nil {
			return backendError(err)
		}
	}

	if rejected := intake.NewRejectedError(refused, intake.UploadExtensions); rejected != nil {
		h.logger.Info("rejected unsupported files",
			zap.String("session", sess.ID),
			zap.Strings("files", rejected.Names))
		return c.JSON(http.StatusUnprocessableEntity, rejectedResponse{
			wizardResponse: newWizardResponse(sess.ID, state),
			Rejected:       rejected.Names,
			Supported:      rejected.Supported,
			Message:        rejected.Error(),
		})
	}
	return c.JSON(http.StatusOK, newWizardResponse(sess.ID, state))
}

// HandleRemoveFile drops the file at :index
func (h *WizardHandlerImpl) HandleRemoveFile(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return NewValidationError("index")
	}
	return c.JSON(http.StatusOK, newWizardResponse(sess.ID, sess.Wizard.RemoveFile(index)))
}

// HandlePreviewFile shows the head of a staged file without calling the backend
func (h *WizardHandlerImpl) HandlePreviewFile(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return NewValidationError("index")
	}
	files := sess.Wizard.State().Files
	if index < 0 || index >= len(files) {
		return NewNotFoundError("file", c.Param("index"))
	}
	if h.previewer == nil {
		return NewServiceUnavailableError("preview is disabled")
	}

	p, err := h.previewer.Preview(c.Request().Context(), files[index])
	if err != nil {
		return NewBadRequestError("failed to read file", err)
	}
	return c.JSON(http.StatusOK, p)
}

// HandleNext moves to the following step when the current one is complete
func (h *WizardHandlerImpl) HandleNext(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newWizardResponse(sess.ID, sess.Wizard.Next()))
}

// HandlePrev moves to the previous step
func (h *WizardHandlerImpl) HandlePrev(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newWizardResponse(sess.ID, sess.Wizard.Prev()))
}

// HandleSetName stores the project name and processing type
func (h *WizardHandlerImpl) HandleSetName(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req setNameRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	state := sess.Wizard.SetProjectName(req.ProjectName)
	if req.ProcessingType != "" {
		if state, err = sess.Wizard.SetProcessingType(wizard.ProcessingType(req.ProcessingType)); err != nil {
			return backendError(err)
		}
	}
	return c.JSON(http.StatusOK, newWizardResponse(sess.ID, state))
}

// HandleFindCandidates runs candidate column detection on the wizard files
func (h *WizardHandlerImpl) HandleFindCandidates(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	state, err := sess.Wizard.FindCandidates(c.Request().Context())
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusOK, newWizardResponse(sess.ID, state))
}

// HandleSubmit creates the project and returns its id. The wizard is reset
// on success.
func (h *WizardHandlerImpl) HandleSubmit(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	id, err := sess.Wizard.Submit(c.Request().Context())
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusCreated, submitResponse{ProjectID: id})
}

// stageFiles copies uploaded parts into the store. On failure the parts
// staged so far are released.
func stageFiles(store storage.Store, headers []*multipart.FileHeader) ([]models.UploadedFile, error) {
	files := make([]models.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		info, err := stageFile(store, fh)
		if err != nil {
			store.Release(files)
			return nil, err
		}
		files = append(files, *info)
	}
	return files, nil
}

func stageFile(store storage.Store, fh *multipart.FileHeader) (*models.UploadedFile, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return store.Save(fh.Filename, src)
}
