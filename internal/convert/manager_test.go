package convert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joinhub/console/internal/intake"
	"github.com/joinhub/console/internal/joinapi"
	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConverter fails on names listed in failOn and records call order.
type scriptedConverter struct {
	mu     sync.Mutex
	failOn map[string]bool
	calls  []string
	gate   chan struct{}
}

func (s *scriptedConverter) Convert(ctx context.Context, f models.UploadedFile) (string, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.calls = append(s.calls, f.Name)
	s.mu.Unlock()
	if s.failOn[f.Name] {
		return "", errors.New("unreadable document")
	}
	return "# " + f.Name, nil
}

func batch(names ...string) []models.UploadedFile {
	out := make([]models.UploadedFile, len(names))
	for i, n := range names {
		out[i] = models.UploadedFile{ID: n, Name: n, Size: 10}
	}
	return out
}

func waitJob(t *testing.T, m *Manager, id string) Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := m.Wait(ctx, id)
	require.NoError(t, err)
	return job
}

func TestManager_ConvertsInOrder(t *testing.T) {
	conv := &scriptedConverter{}
	var released []string
	m := NewManager(conv, nil, WithRelease(func(f []models.UploadedFile) {
		released = append(released, models.FileNames(f)...)
	}))

	started := m.StartJob(context.Background(), batch("a.docx", "b.pdf", "c.txt"))
	assert.Equal(t, StatusConverting, started.Status)
	assert.Equal(t, 3, started.Total)

	job := waitJob(t, m, started.ID)
	assert.Equal(t, StatusComplete, job.Status)
	assert.Equal(t, float64(100), job.Progress)
	assert.Equal(t, []string{"a.docx", "b.pdf", "c.txt"}, conv.calls)
	assert.Equal(t, []string{"a.docx", "b.pdf", "c.txt"}, job.FileNames())
	assert.Equal(t, "# b.pdf", job.Results[1].Markdown)
	assert.Empty(t, job.Current)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, []string{"a.docx", "b.pdf", "c.txt"}, released)
}

func TestManager_ErrorDiscardsResults(t *testing.T) {
	conv := &scriptedConverter{failOn: map[string]bool{"b.pdf": true}}
	m := NewManager(conv, nil)

	job := waitJob(t, m, m.StartJob(context.Background(), batch("a.docx", "b.pdf", "c.txt")).ID)

	assert.Equal(t, StatusError, job.Status)
	assert.Contains(t, job.Error, "b.pdf")
	assert.Empty(t, job.Results)
	assert.Equal(t, []string{"a.docx", "b.pdf"}, conv.calls, "stops at the first failure")
}

func TestManager_CurrentLabel(t *testing.T) {
	conv := &scriptedConverter{gate: make(chan struct{})}
	m := NewManager(conv, nil)

	started := m.StartJob(context.Background(), batch("a.docx", "b.pdf"))

	require.Eventually(t, func() bool {
		job, _ := m.GetJob(started.ID)
		return job.Current == "a.docx (1/2)"
	}, time.Second, 5*time.Millisecond)

	conv.gate <- struct{}{}
	require.Eventually(t, func() bool {
		job, _ := m.GetJob(started.ID)
		return job.Current == "b.pdf (2/2)" && job.Progress == 50
	}, time.Second, 5*time.Millisecond)

	close(conv.gate)
	assert.Equal(t, StatusComplete, waitJob(t, m, started.ID).Status)
}

func TestManager_WaitUnknownJob(t *testing.T) {
	m := NewManager(&scriptedConverter{}, nil)
	_, err := m.Wait(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestManager_CleanupOldJobs(t *testing.T) {
	m := NewManager(&scriptedConverter{}, nil)
	id := m.StartJob(context.Background(), batch("a.txt")).ID
	waitJob(t, m, id)

	m.CleanupOldJobs(time.Hour)
	_, ok := m.GetJob(id)
	assert.True(t, ok)

	m.mu.Lock()
	old := time.Now().Add(-2 * time.Hour)
	m.jobs[id].CompletedAt = &old
	m.mu.Unlock()

	m.CleanupOldJobs(time.Hour)
	_, ok = m.GetJob(id)
	assert.False(t, ok)
}

func TestCheck(t *testing.T) {
	large := models.UploadedFile{Name: "big.pdf", Size: intake.LargeFileThreshold + 1}
	exact := models.UploadedFile{Name: "exact.pdf", Size: intake.LargeFileThreshold}

	tests := []struct {
		name    string
		files   []models.UploadedFile
		confirm bool
		check   func(t *testing.T, err error)
	}{
		{
			name:  "empty",
			files: nil,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNoFiles) },
		},
		{
			name:  "unsupported",
			files: batch("a.docx", "run.exe"),
			check: func(t *testing.T, err error) {
				var rejected *intake.RejectedError
				require.ErrorAs(t, err, &rejected)
				assert.Equal(t, []string{"run.exe"}, rejected.Names)
			},
		},
		{
			name:  "large needs confirmation",
			files: []models.UploadedFile{large, exact},
			check: func(t *testing.T, err error) {
				var lf *LargeFilesError
				require.ErrorAs(t, err, &lf)
				assert.Equal(t, []string{"big.pdf"}, lf.Names)
			},
		},
		{
			name:    "large confirmed",
			files:   []models.UploadedFile{large},
			confirm: true,
			check:   func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		{
			name:  "upload formats are accepted too",
			files: batch("a.csv", "b.xlsx"),
			check: func(t *testing.T, err error) { assert.NoError(t, err) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Check(tt.files, tt.confirm))
		})
	}
}

func TestManager_AgainstBackend(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	client, err := joinapi.New(backend.URL())
	require.NoError(t, err)

	dir := t.TempDir()
	files := []models.UploadedFile{
		{ID: "1", Name: "deck.pptx", Path: writeTemp(t, dir, "deck.pptx")},
		{ID: "2", Name: "memo.txt", Path: writeTemp(t, dir, "memo.txt")},
	}

	m := NewManager(client, nil)
	job := waitJob(t, m, m.StartJob(context.Background(), files).ID)
	require.Equal(t, StatusComplete, job.Status, job.Error)
	assert.Equal(t, "# deck.pptx", job.Results[0].Markdown)

	calls := backend.Calls("/api/convert")
	require.Len(t, calls, 2)
	assert.True(t, !calls[1].At.Before(calls[0].At))
}
