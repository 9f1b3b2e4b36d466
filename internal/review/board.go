// Package review is the administrator's moderation board for join requests.
package review

import (
	"context"
	"sync"

	"github.com/joinhub/console/internal/export"
	"github.com/joinhub/console/internal/models"
	"go.uber.org/zap"
)

// DefaultFilter is the filter a freshly opened board shows.
const DefaultFilter = models.ReviewStatusPending

// Backend is the part of the join API the board needs.
type Backend interface {
	ListReviewRequests(ctx context.Context, status models.ReviewStatus) ([]models.ReviewEntry, error)
	SetReviewStatus(ctx context.Context, id string, status models.ReviewStatus) error
	ReviewResult(ctx context.Context, id string) (*models.Download, error)
}

// Board mirrors the server's moderation queue for one filter at a time.
type Board struct {
	mu      sync.RWMutex
	backend Backend
	logger  *zap.Logger
	filter  models.ReviewStatus
	entries []models.ReviewEntry
}

// NewBoard creates a board showing DefaultFilter. Nothing is fetched yet.
func NewBoard(backend Backend, logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Board{
		backend: backend,
		logger:  logger,
		filter:  DefaultFilter,
		entries: []models.ReviewEntry{},
	}
}

// Filter returns the active filter.
func (b *Board) Filter() models.ReviewStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter
}

// Entries returns the entries of the last successful load.
func (b *Board) Entries() []models.ReviewEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]models.ReviewEntry(nil), b.entries...)
}

// List makes filter active and loads the matching entries. A failed load
// keeps the previous entries.
func (b *Board) List(ctx context.Context, filter models.ReviewStatus) ([]models.ReviewEntry, error) {
	b.mu.Lock()
	b.filter = filter
	b.mu.Unlock()

	return b.Reload(ctx)
}

// Reload fetches the entries for the active filter.
func (b *Board) Reload(ctx context.Context) ([]models.ReviewEntry, error) {
	filter := b.Filter()
	entries, err := b.backend.ListReviewRequests(ctx, filter)
	if err != nil {
		b.logger.Warn("loading review requests failed", zap.String("filter", string(filter)), zap.Error(err))
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// a concurrent List may have switched filters while this one was in flight
	if b.filter == filter {
		b.entries = entries
	}
	return append([]models.ReviewEntry(nil), entries...), nil
}

// SetStatus records a decision, then reloads the active filter whatever the
// outcome. The update error wins over the reload error.
func (b *Board) SetStatus(ctx context.Context, id string, status models.ReviewStatus) ([]models.ReviewEntry, error) {
	setErr := b.backend.SetReviewStatus(ctx, id, status)
	if setErr != nil {
		b.logger.Warn("updating review status failed",
			zap.String("id", id),
			zap.String("status", string(status)),
			zap.Error(setErr))
	} else {
		b.logger.Info("review status updated", zap.String("id", id), zap.String("status", string(status)))
	}

	entries, loadErr := b.Reload(ctx)
	if setErr != nil {
		return b.Entries(), setErr
	}
	return entries, loadErr
}

// CanSet reports whether moving entry to target would change anything.
func CanSet(entry models.ReviewEntry, target models.ReviewStatus) bool {
	return entry.ModerationStatus() != target
}

// Result downloads the joined result of entry as "<name>_결합결과.csv".
func (b *Board) Result(ctx context.Context, entry models.ReviewEntry) (*models.Download, error) {
	d, err := b.backend.ReviewResult(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	d.FileName = export.AdminResultFileName(entry.ProjectName)
	if d.ContentType == "" {
		d.ContentType = "text/csv"
	}
	return d, nil
}
