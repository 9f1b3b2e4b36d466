// Package tracker keeps the in-memory project collection of the analysis view.
//
// The collection is only ever replaced by fetches: Load swaps the whole map,
// Refresh swaps one project by id. Nothing polls in the background.
package tracker

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/joinhub/console/internal/models"
	"go.uber.org/zap"
)

// ErrNotLoaded is returned by Select for an id missing from the collection.
var ErrNotLoaded = errors.New("tracker: project not in collection")

// Backend is the part of the join API the tracker needs.
type Backend interface {
	ListProjects(ctx context.Context) (map[string]models.Project, error)
	GetProject(ctx context.Context, id string) (models.Project, error)
	CreateCI(ctx context.Context, id string) error
	Join(ctx context.Context, id string) error
	FilePreview(ctx context.Context, id, fileName string) (string, error)
}

// Tracker holds the last fetched projects and the selected one.
type Tracker struct {
	mu       sync.RWMutex
	backend  Backend
	logger   *zap.Logger
	projects map[string]models.Project
	selected string

	subMu  sync.RWMutex
	nextID int
	subs   map[int]func(models.Project)
}

// New creates an empty tracker.
func New(backend Backend, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		backend:  backend,
		logger:   logger,
		projects: make(map[string]models.Project),
		subs:     make(map[int]func(models.Project)),
	}
}

// Load fetches every project. On failure the collection is left empty.
func (t *Tracker) Load(ctx context.Context) error {
	projects, err := t.backend.ListProjects(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.projects = make(map[string]models.Project)
		t.logger.Warn("loading projects failed", zap.Error(err))
		return err
	}

	t.projects = projects
	if _, ok := projects[t.selected]; !ok {
		t.selected = ""
	}
	t.logger.Debug("projects loaded", zap.Int("count", len(projects)))
	return nil
}

// Refresh re-fetches one project and replaces it in the collection and,
// when it is selected, as the selection.
func (t *Tracker) Refresh(ctx context.Context, id string) (models.Project, error) {
	p, err := t.backend.GetProject(ctx, id)
	if err != nil {
		t.logger.Warn("refreshing project failed", zap.String("id", id), zap.Error(err))
		return models.Project{}, err
	}

	t.mu.Lock()
	t.projects[id] = p
	t.mu.Unlock()

	t.publish(p)
	return p, nil
}

// CreateCI triggers CI generation and refreshes the project.
func (t *Tracker) CreateCI(ctx context.Context, id string) (models.Project, error) {
	if err := t.backend.CreateCI(ctx, id); err != nil {
		return models.Project{}, err
	}
	return t.Refresh(ctx, id)
}

// Join triggers the join and refreshes the project.
func (t *Tracker) Join(ctx context.Context, id string) (models.Project, error) {
	if err := t.backend.Join(ctx, id); err != nil {
		return models.Project{}, err
	}
	return t.Refresh(ctx, id)
}

// Preview returns the backend text preview of a project file.
func (t *Tracker) Preview(ctx context.Context, id, fileName string) (string, error) {
	return t.backend.FilePreview(ctx, id, fileName)
}

// Select marks a loaded project as selected.
func (t *Tracker) Select(id string) (models.Project, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.projects[id]
	if !ok {
		return models.Project{}, ErrNotLoaded
	}
	t.selected = id
	return p, nil
}

// ClearSelection drops the selection.
func (t *Tracker) ClearSelection() {
	t.mu.Lock()
	t.selected = ""
	t.mu.Unlock()
}

// Selected returns the selected project.
func (t *Tracker) Selected() (models.Project, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.selected == "" {
		return models.Project{}, false
	}
	p, ok := t.projects[t.selected]
	return p, ok
}

// Get returns one project from the collection.
func (t *Tracker) Get(id string) (models.Project, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.projects[id]
	return p, ok
}

// Projects returns the collection, newest first.
func (t *Tracker) Projects() []models.Project {
	t.mu.RLock()
	list := make([]models.Project, 0, len(t.projects))
	for _, p := range t.projects {
		list = append(list, p)
	}
	t.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Counts tallies the collection by processing status.
func (t *Tracker) Counts() models.StatusCounts {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return models.CountByStatus(t.projects)
}

// Subscribe registers fn for every refreshed project. The returned func
// removes the subscription.
func (t *Tracker) Subscribe(fn func(models.Project)) func() {
	t.subMu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.subMu.Unlock()

	return func() {
		t.subMu.Lock()
		delete(t.subs, id)
		t.subMu.Unlock()
	}
}

func (t *Tracker) publish(p models.Project) {
	t.subMu.RLock()
	defer t.subMu.RUnlock()
	for _, fn := range t.subs {
		fn(p)
	}
}
