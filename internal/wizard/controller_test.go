package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/joinhub/console/internal/intake"
	"github.com/joinhub/console/internal/joinapi"
	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// stubBackend answers from fields and can hold a call until released.
type stubBackend struct {
	mu         sync.Mutex
	candidates models.CandidateColumnMap
	findErr    error
	findPanic  bool
	createID   string
	createErr  error
	created    []joinapi.CreateProjectRequest
	hold       chan struct{}
	entered    chan struct{}
}

func (b *stubBackend) wait() {
	if b.hold != nil {
		b.entered <- struct{}{}
		<-b.hold
	}
}

func (b *stubBackend) FindCandidateColumns(ctx context.Context, files []models.UploadedFile) (models.CandidateColumnMap, error) {
	b.wait()
	if b.findPanic {
		panic("decoder exploded")
	}
	return b.candidates, b.findErr
}

func (b *stubBackend) CreateProject(ctx context.Context, req joinapi.CreateProjectRequest) (string, error) {
	b.wait()
	b.mu.Lock()
	b.created = append(b.created, req)
	b.mu.Unlock()
	return b.createID, b.createErr
}

func readyForSubmit(t *testing.T, c *Controller) {
	t.Helper()
	_, err := c.AddFiles(files("a.csv", "b.csv"))
	require.NoError(t, err)
	c.Next()
	c.Next()
	c.SetProjectName("demo")
	require.Equal(t, StepConfirm, c.Next().Step)
}

func TestController_AddFiles(t *testing.T) {
	var released []string
	c := NewController(&stubBackend{}, WithRelease(func(f []models.UploadedFile) {
		released = append(released, models.FileNames(f)...)
	}))

	state, err := c.AddFiles(files("a.csv", "b.csv", "virus.exe"))

	var rejected *intake.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, []string{"virus.exe"}, rejected.Names)
	assert.Equal(t, []string{"a.csv", "b.csv"}, models.FileNames(state.Files))
	assert.True(t, state.CanProceed())
	assert.Equal(t, []string{"virus.exe"}, released)

	state, err = c.AddFiles(files("a.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv", "b.csv", "a.csv"}, models.FileNames(state.Files))
}

func TestController_AddFiles_AllRejected(t *testing.T) {
	c := NewController(&stubBackend{})

	state, err := c.AddFiles(files("notes.txt", "deck.pptx"))
	require.Error(t, err)
	assert.Empty(t, state.Files)
}

func TestController_FindCandidates(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		backend := &stubBackend{candidates: models.CandidateColumnMap{"a.csv": {"id"}, "b.csv": {"id", "email"}}}
		c := NewController(backend)
		_, _ = c.AddFiles(files("a.csv", "b.csv"))

		state, err := c.FindCandidates(context.Background())
		require.NoError(t, err)
		assert.False(t, state.Finding)
		assert.True(t, state.FindCompleted)
		assert.Equal(t, 2, state.Candidates.Len())
	})

	t.Run("failure keeps completed flag", func(t *testing.T) {
		backend := &stubBackend{candidates: models.CandidateColumnMap{"a.csv": {"id"}}}
		c := NewController(backend)
		_, _ = c.AddFiles(files("a.csv", "b.csv"))
		_, err := c.FindCandidates(context.Background())
		require.NoError(t, err)

		backend.findErr = &joinapi.Error{Op: "find candidate columns", StatusCode: 500}
		state, err := c.FindCandidates(context.Background())
		require.Error(t, err)
		status, _ := joinapi.StatusCode(err)
		assert.Equal(t, 500, status)
		assert.False(t, state.Finding)
		assert.True(t, state.FindCompleted)
	})

	t.Run("failure before any success", func(t *testing.T) {
		c := NewController(&stubBackend{findErr: errors.New("connection refused")})
		_, _ = c.AddFiles(files("a.csv", "b.csv"))

		state, err := c.FindCandidates(context.Background())
		require.Error(t, err)
		assert.False(t, state.Finding)
		assert.False(t, state.FindCompleted)
	})

	t.Run("panic clears in-flight flag", func(t *testing.T) {
		c := NewController(&stubBackend{findPanic: true})
		_, _ = c.AddFiles(files("a.csv", "b.csv"))

		state, err := c.FindCandidates(context.Background())
		require.ErrorIs(t, err, ErrUnexpected)
		assert.False(t, state.Finding)
	})

	t.Run("needs two files", func(t *testing.T) {
		c := NewController(&stubBackend{})
		_, _ = c.AddFiles(files("a.csv"))

		_, err := c.FindCandidates(context.Background())
		assert.ErrorIs(t, err, ErrNotEnoughFiles)
	})
}

func TestController_FindCandidates_Busy(t *testing.T) {
	backend := &stubBackend{
		candidates: models.CandidateColumnMap{"a.csv": {"id"}},
		hold:       make(chan struct{}),
		entered:    make(chan struct{}),
	}
	c := NewController(backend)
	_, _ = c.AddFiles(files("a.csv", "b.csv"))

	done := make(chan error, 1)
	go func() {
		_, err := c.FindCandidates(context.Background())
		done <- err
	}()
	<-backend.entered

	assert.True(t, c.State().Finding)
	_, err := c.FindCandidates(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(backend.hold)
	require.NoError(t, <-done)
	assert.False(t, c.State().Finding)
}

func TestController_FindCandidates_ResetWhileInFlight(t *testing.T) {
	backend := &stubBackend{
		candidates: models.CandidateColumnMap{"a.csv": {"id"}},
		hold:       make(chan struct{}),
		entered:    make(chan struct{}),
	}
	c := NewController(backend)
	_, _ = c.AddFiles(files("a.csv", "b.csv"))

	done := make(chan error, 1)
	go func() {
		_, err := c.FindCandidates(context.Background())
		done <- err
	}()
	<-backend.entered

	c.Reset()
	close(backend.hold)

	assert.ErrorIs(t, <-done, ErrReset)
	state := c.State()
	assert.False(t, state.FindCompleted)
	assert.Equal(t, 0, state.Candidates.Len())
	assert.Empty(t, state.Files)
}

func TestController_Submit(t *testing.T) {
	t.Run("success resets the wizard", func(t *testing.T) {
		backend := &stubBackend{createID: "p-1"}
		var released int
		c := NewController(backend, WithRelease(func(f []models.UploadedFile) { released += len(f) }))
		readyForSubmit(t, c)

		id, err := c.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "p-1", id)

		state := c.State()
		assert.Equal(t, StepUpload, state.Step)
		assert.Empty(t, state.Files)
		assert.Empty(t, state.ProjectName)
		assert.False(t, state.Submitting)
		assert.Equal(t, 2, released)

		require.Len(t, backend.created, 1)
		assert.Equal(t, "demo", backend.created[0].ProjectName)
		assert.Equal(t, []string{"a.csv", "b.csv"}, models.FileNames(backend.created[0].Files))
		assert.Equal(t, 0, backend.created[0].CandidateColumns.Len())
	})

	t.Run("edits after success land on the fresh wizard", func(t *testing.T) {
		var c *Controller
		logger := zaptest.NewLogger(t).WithOptions(zap.Hooks(func(e zapcore.Entry) error {
			if e.Message == "project created" {
				c.SetProjectName("next")
			}
			return nil
		}))
		var releasedState State
		c = NewController(&stubBackend{createID: "p-2"},
			WithLogger(logger),
			WithRelease(func([]models.UploadedFile) { releasedState = c.State() }))
		readyForSubmit(t, c)

		_, err := c.Submit(context.Background())
		require.NoError(t, err)

		assert.Equal(t, StepUpload, releasedState.Step)
		assert.Empty(t, releasedState.Files)

		state := c.State()
		assert.Equal(t, StepUpload, state.Step)
		assert.Equal(t, "next", state.ProjectName)
	})

	t.Run("failure keeps state for retry", func(t *testing.T) {
		backend := &stubBackend{createErr: &joinapi.Error{Op: "create project", StatusCode: 422}}
		c := NewController(backend)
		readyForSubmit(t, c)

		_, err := c.Submit(context.Background())
		require.Error(t, err)

		state := c.State()
		assert.Equal(t, StepConfirm, state.Step)
		assert.Equal(t, "demo", state.ProjectName)
		assert.Len(t, state.Files, 2)
		assert.False(t, state.Submitting)

		backend.createErr = nil
		backend.createID = "p-2"
		id, err := c.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "p-2", id)
	})

	t.Run("only at the confirm step", func(t *testing.T) {
		backend := &stubBackend{createID: "p-1"}
		c := NewController(backend)
		_, _ = c.AddFiles(files("a.csv", "b.csv"))
		c.SetProjectName("demo")

		_, err := c.Submit(context.Background())
		assert.ErrorIs(t, err, ErrNotAtFinalStep)
		assert.Empty(t, backend.created)
	})

	t.Run("name is re-validated", func(t *testing.T) {
		backend := &stubBackend{createID: "p-1"}
		c := NewController(backend)
		readyForSubmit(t, c)
		c.SetProjectName(" ")

		_, err := c.Submit(context.Background())
		assert.ErrorIs(t, err, ErrProjectNameRequired)
		assert.Empty(t, backend.created)
	})

	t.Run("panic clears in-flight flag", func(t *testing.T) {
		c := NewController(panickyCreator{&stubBackend{}})
		readyForSubmit(t, c)

		_, err := c.Submit(context.Background())
		require.ErrorIs(t, err, ErrUnexpected)
		assert.False(t, c.State().Submitting)
	})
}

type panickyCreator struct{ *stubBackend }

func (panickyCreator) CreateProject(context.Context, joinapi.CreateProjectRequest) (string, error) {
	panic("nil response")
}

func TestController_SetProcessingType(t *testing.T) {
	c := NewController(&stubBackend{})

	_, err := c.SetProcessingType("merge")
	assert.ErrorIs(t, err, ErrInvalidProcessing)

	state, err := c.SetProcessingType(ProcessingJoin)
	require.NoError(t, err)
	assert.Equal(t, ProcessingJoin, state.ProcessingType)
}

func TestController_ResetIsIdempotent(t *testing.T) {
	var calls int
	c := NewController(&stubBackend{}, WithRelease(func([]models.UploadedFile) { calls++ }))
	readyForSubmit(t, c)

	first := c.Reset()
	second := c.Reset()

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestController_AgainstBackend(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.SetCandidates(models.CandidateColumnMap{"a.csv": {"id"}, "b.csv": {"id", "email"}})

	client, err := joinapi.New(backend.URL())
	require.NoError(t, err)

	dir := t.TempDir()
	var uploads []models.UploadedFile
	for _, name := range []string{"a.csv", "b.csv", "virus.exe"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("id\n1\n"), 0644))
		uploads = append(uploads, models.UploadedFile{ID: name, Name: name, Path: path})
	}

	c := NewController(client)
	state, err := c.AddFiles(uploads)
	require.Error(t, err)
	assert.True(t, state.CanProceed())

	c.Next()
	state, err = c.FindCandidates(context.Background())
	require.NoError(t, err)
	assert.True(t, state.FindCompleted)
	assert.Equal(t, 2, state.Candidates.Len())

	c.Next()
	c.SetProjectName("demo")
	c.Next()
	id, err := c.Submit(context.Background())
	require.NoError(t, err)

	calls := backend.Calls("/api/create_project")
	require.Len(t, calls, 1)
	assert.Equal(t, "demo", calls[0].Fields["projectName"])
	assert.Equal(t, []string{"a.csv", "b.csv"}, calls[0].Files)

	var sent models.CandidateColumnMap
	require.NoError(t, json.Unmarshal([]byte(calls[0].Fields["candidateColumns"]), &sent))
	assert.Equal(t, models.CandidateColumnMap{"a.csv": {"id"}, "b.csv": {"id", "email"}}, sent)

	p, ok := backend.Project(id)
	require.True(t, ok)
	assert.Equal(t, "demo", p.Name)
}
