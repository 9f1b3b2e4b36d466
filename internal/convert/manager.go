// Package convert runs document-to-markdown conversion batches in the
// background, one file at a time.
package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joinhub/console/internal/intake"
	"github.com/joinhub/console/internal/models"
	"go.uber.org/zap"
)

// Status represents the conversion job status.
type Status string

const (
	StatusConverting Status = "converting"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

var (
	ErrNoFiles     = errors.New("convert: no files")
	ErrJobNotFound = errors.New("convert: job not found")
)

// LargeFilesError lists files above intake.LargeFileThreshold that the user
// has not confirmed.
type LargeFilesError struct {
	Names []string
}

func (e *LargeFilesError) Error() string {
	return fmt.Sprintf("files larger than 1MB may take a long time to convert: %s", strings.Join(e.Names, ", "))
}

// Check validates a batch before it is started.
func Check(files []models.UploadedFile, confirmLarge bool) error {
	if len(files) == 0 {
		return ErrNoFiles
	}
	_, rejected := intake.Partition(files, intake.ConvertExtensions)
	if err := intake.NewRejectedError(rejected, intake.ConvertExtensions); err != nil {
		return err
	}
	if large := intake.LargeFiles(files, intake.LargeFileThreshold); len(large) > 0 && !confirmLarge {
		return &LargeFilesError{Names: models.FileNames(large)}
	}
	return nil
}

// Result is the markdown rendition of one file.
type Result struct {
	FileName string `json:"fileName"`
	Markdown string `json:"markdown"`
}

// Job represents an async conversion batch.
type Job struct {
	ID          string     `json:"id"`
	Files       []string   `json:"files"`
	Status      Status     `json:"status"`
	Converted   int        `json:"converted"`
	Total       int        `json:"total"`
	Progress    float64    `json:"progress"`
	Current     string     `json:"current,omitempty"` // "name (i/n)"
	Results     []Result   `json:"results,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	done chan struct{}
}

// Converter turns one uploaded document into markdown.
type Converter interface {
	Convert(ctx context.Context, file models.UploadedFile) (string, error)
}

// Manager handles async conversion batches.
type Manager struct {
	jobs    map[string]*Job
	mu      sync.RWMutex
	conv    Converter
	logger  *zap.Logger
	release func([]models.UploadedFile)
}

// Option configures a Manager.
type Option func(*Manager)

// WithRelease registers a hook called with a batch's files once it finishes.
func WithRelease(fn func([]models.UploadedFile)) Option {
	return func(m *Manager) {
		m.release = fn
	}
}

// NewManager creates a new conversion manager.
func NewManager(conv Converter, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		jobs:    make(map[string]*Job),
		conv:    conv,
		logger:  logger,
		release: func([]models.UploadedFile) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartJob begins converting files in the background. ctx governs the whole
// batch, so it must outlive the request that started it.
func (m *Manager) StartJob(ctx context.Context, files []models.UploadedFile) Job {
	job := &Job{
		ID:        uuid.New().String(),
		Files:     models.FileNames(files),
		Status:    StatusConverting,
		Total:     len(files),
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snapshot := job.snapshot()
	m.mu.Unlock()

	go m.processJob(ctx, job, append([]models.UploadedFile(nil), files...))

	return snapshot
}

// GetJob retrieves a copy of a job by ID.
func (m *Manager) GetJob(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.snapshot(), true
}

// Wait blocks until the job finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return Job{}, ErrJobNotFound
	}

	select {
	case <-job.done:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}

	snapshot, _ := m.GetJob(id)
	return snapshot, nil
}

// processJob converts the files strictly in order. Results are published only
// when every file converted.
func (m *Manager) processJob(ctx context.Context, job *Job, files []models.UploadedFile) {
	log := m.logger.With(zap.String("job", job.ID[:8]))
	log.Info("starting conversion", zap.Int("files", len(files)))

	results := make([]Result, 0, len(files))
	var failure string
	for i, file := range files {
		m.updateJobStatus(job, fmt.Sprintf("%s (%d/%d)", file.Name, i+1, len(files)), i)

		markdown, err := m.conv.Convert(ctx, file)
		if err != nil {
			failure = fmt.Sprintf("%s: %v", file.Name, err)
			log.Warn("conversion failed", zap.String("file", file.Name), zap.Error(err))
			break
		}
		results = append(results, Result{FileName: file.Name, Markdown: markdown})
	}

	m.release(files)

	if failure != "" {
		m.markJobError(job, failure)
		return
	}
	m.markJobComplete(job, results)
	log.Info("conversion complete", zap.Int("files", len(results)))
}

// updateJobStatus updates job progress (thread-safe).
func (m *Manager) updateJobStatus(job *Job, current string, converted int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Current = current
	job.Converted = converted
	job.Progress = float64(converted) / float64(job.Total) * 100
}

// markJobComplete marks job as complete (thread-safe).
func (m *Manager) markJobComplete(job *Job, results []Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusComplete
	job.Converted = job.Total
	job.Progress = 100
	job.Current = ""
	job.Results = results
	now := time.Now()
	job.CompletedAt = &now
	close(job.done)
}

// markJobError marks job as failed and drops partial results (thread-safe).
func (m *Manager) markJobError(job *Job, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = errMsg
	job.Current = ""
	job.Results = nil
	now := time.Now()
	job.CompletedAt = &now
	close(job.done)
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Status == StatusComplete || job.Status == StatusError {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(m.jobs, id)
			}
		}
	}
}

// snapshot copies the job; callers hold m.mu.
func (j *Job) snapshot() Job {
	out := *j
	out.Files = append([]string(nil), j.Files...)
	out.Results = append([]Result(nil), j.Results...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// FileNames returns the converted file names of a completed job, in order.
func (j Job) FileNames() []string {
	names := make([]string, len(j.Results))
	for i, r := range j.Results {
		names[i] = r.FileName
	}
	return names
}
