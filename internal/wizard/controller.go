package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/joinhub/console/internal/intake"
	"github.com/joinhub/console/internal/joinapi"
	"github.com/joinhub/console/internal/models"
	"go.uber.org/zap"
)

var (
	ErrBusy                = errors.New("wizard: operation already in progress")
	ErrNotEnoughFiles      = fmt.Errorf("wizard: at least %d files are required", MinFiles)
	ErrNotAtFinalStep      = errors.New("wizard: submit is only available at the confirm step")
	ErrProjectNameRequired = errors.New("wizard: project name is required")
	ErrInvalidProcessing   = errors.New("wizard: unknown processing type")
	ErrReset               = errors.New("wizard: reset while the request was in flight")
	ErrUnexpected          = errors.New("wizard: unexpected failure")
)

// Backend is the part of the join API the wizard needs.
type Backend interface {
	FindCandidateColumns(ctx context.Context, files []models.UploadedFile) (models.CandidateColumnMap, error)
	CreateProject(ctx context.Context, req joinapi.CreateProjectRequest) (string, error)
}

// Controller drives one wizard. It is safe for concurrent use; a second
// detection or submission while one is running fails with ErrBusy.
type Controller struct {
	mu         sync.Mutex
	state      State
	generation uint64

	backend Backend
	logger  *zap.Logger
	release func([]models.UploadedFile)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithRelease registers a hook called with the files dropped by a reset or removal.
func WithRelease(fn func([]models.UploadedFile)) Option {
	return func(c *Controller) {
		c.release = fn
	}
}

// NewController opens a wizard at step 1.
func NewController(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		state:   Initial(),
		backend: backend,
		logger:  zap.NewNop(),
		release: func([]models.UploadedFile) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the wizard.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Dispatch applies a to the wizard and returns the new state.
func (c *Controller) Dispatch(a Action) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Reduce(c.state, a)
	return c.state.Clone()
}

// AddFiles appends the files with a supported extension. Unsupported files are
// reported together in a *intake.RejectedError; accepted ones are added anyway.
func (c *Controller) AddFiles(files []models.UploadedFile) (State, error) {
	accepted, rejected := intake.Partition(files, intake.UploadExtensions)
	state := c.Dispatch(AddFiles{Files: accepted})

	if rejectedErr := intake.NewRejectedError(rejected, intake.UploadExtensions); rejectedErr != nil {
		c.release(rejected)
		return state, rejectedErr
	}
	return state, nil
}

// RemoveFile drops the file at index. Detected candidates are kept as they are.
func (c *Controller) RemoveFile(index int) State {
	c.mu.Lock()
	var removed []models.UploadedFile
	if index >= 0 && index < len(c.state.Files) {
		removed = []models.UploadedFile{c.state.Files[index]}
	}
	c.state = Reduce(c.state, RemoveFile{Index: index})
	state := c.state.Clone()
	c.mu.Unlock()

	if removed != nil {
		c.release(removed)
	}
	return state
}

// Next moves to the following step when allowed.
func (c *Controller) Next() State {
	return c.Dispatch(Next{})
}

// Prev moves to the previous step.
func (c *Controller) Prev() State {
	return c.Dispatch(Prev{})
}

// SetProjectName stores the project name.
func (c *Controller) SetProjectName(name string) State {
	return c.Dispatch(SetProjectName{Name: name})
}

// SetProcessingType selects the processing type.
func (c *Controller) SetProcessingType(t ProcessingType) (State, error) {
	if !t.Valid() {
		return c.State(), fmt.Errorf("%w: %q", ErrInvalidProcessing, t)
	}
	return c.Dispatch(SetProcessingType{Type: t}), nil
}

// Reset clears every field and returns to step 1. Files held by the wizard
// are handed to the release hook.
func (c *Controller) Reset() State {
	c.mu.Lock()
	dropped := c.resetLocked()
	state := c.state.Clone()
	c.mu.Unlock()

	if len(dropped) > 0 {
		c.release(dropped)
	}
	return state
}

// resetLocked returns the wizard to step 1 and reports the files it held.
// c.mu must be held.
func (c *Controller) resetLocked() []models.UploadedFile {
	dropped := c.state.Files
	c.generation++
	c.state = Reduce(c.state, Reset{})
	return dropped
}

// FindCandidates sends the current files to candidate detection.
func (c *Controller) FindCandidates(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.state.Finding {
		c.mu.Unlock()
		return c.State(), ErrBusy
	}
	if len(c.state.Files) < MinFiles {
		state := c.state.Clone()
		c.mu.Unlock()
		return state, ErrNotEnoughFiles
	}
	files := append([]models.UploadedFile(nil), c.state.Files...)
	gen := c.generation
	c.state = Reduce(c.state, FindStarted{})
	c.mu.Unlock()

	c.logger.Info("detecting candidate columns", zap.Int("files", len(files)))
	candidates, err := guard(func() (models.CandidateColumnMap, error) {
		return c.backend.FindCandidateColumns(ctx, files)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Info("dropping candidate result after reset")
		return c.state.Clone(), ErrReset
	}
	if err != nil {
		c.state = Reduce(c.state, FindFailed{})
		c.logger.Warn("candidate detection failed", zap.Error(err))
		return c.state.Clone(), err
	}

	c.state = Reduce(c.state, FindSucceeded{Candidates: candidates})
	c.logger.Info("candidate columns detected", zap.Int("files", candidates.Len()))
	return c.state.Clone(), nil
}

// Submit creates the project from the current wizard and returns its id.
// On success the wizard is reset; on failure its state is kept for a retry.
func (c *Controller) Submit(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state.Submitting {
		c.mu.Unlock()
		return "", ErrBusy
	}
	if c.state.Step != StepConfirm {
		c.mu.Unlock()
		return "", ErrNotAtFinalStep
	}
	if strings.TrimSpace(c.state.ProjectName) == "" {
		c.mu.Unlock()
		return "", ErrProjectNameRequired
	}

	req := joinapi.CreateProjectRequest{
		ProjectName:      c.state.ProjectName,
		CandidateColumns: c.state.Candidates.Clone(),
		Files:            append([]models.UploadedFile(nil), c.state.Files...),
	}
	gen := c.generation
	c.state = Reduce(c.state, SubmitStarted{})
	c.mu.Unlock()

	c.logger.Info("submitting project",
		zap.String("name", req.ProjectName),
		zap.Int("files", len(req.Files)),
		zap.Int("candidates", req.CandidateColumns.Len()))

	id, err := guard(func() (string, error) {
		return c.backend.CreateProject(ctx, req)
	})

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		if err != nil {
			return "", err
		}
		return id, nil
	}
	if err != nil {
		c.state = Reduce(c.state, SubmitFailed{})
		c.mu.Unlock()
		c.logger.Warn("project submission failed", zap.Error(err))
		return "", err
	}
	dropped := c.resetLocked()
	c.mu.Unlock()

	if len(dropped) > 0 {
		c.release(dropped)
	}
	c.logger.Info("project created", zap.String("id", id))
	return id, nil
}

// guard runs fn and converts a panic into ErrUnexpected so in-flight flags
// are always cleared by the caller.
func guard[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out, err = zero, fmt.Errorf("%w: %v", ErrUnexpected, r)
		}
	}()
	return fn()
}
