// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/storage"
)

// ErrMockSave is returned by MockStorage.Save once the failure budget is spent.
var ErrMockSave = errors.New("mock storage: save failed")

// MockStorage implements storage.Store for testing. Files are written to a
// temp dir so the join client can still open them by path.
type MockStorage struct {
	dir       string
	files     map[string]*models.UploadedFile
	released  []string
	saves     int
	failAfter int // -1 never fails
	mu        sync.Mutex
}

// NewMockStorage creates a mock storage whose files are removed when the test ends
func NewMockStorage(t testing.TB) *MockStorage {
	t.Helper()
	return &MockStorage{
		dir:       t.TempDir(),
		files:     make(map[string]*models.UploadedFile),
		failAfter: -1,
	}
}

// FailAfter makes every Save after the first n fail with ErrMockSave. A
// negative n turns failures off.
func (m *MockStorage) FailAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.UploadedFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAfter >= 0 && m.saves >= m.failAfter {
		return nil, ErrMockSave
	}
	m.saves++

	id := uuid.New().String()
	path := filepath.Join(m.dir, id+filepath.Ext(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, err
	}
	file := &models.UploadedFile{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		Path:       path,
		UploadedAt: time.Now(),
	}
	m.files[id] = file
	return file, nil
}

func (m *MockStorage) Get(id string) (*models.UploadedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return file, nil
}

func (m *MockStorage) List(limit int) ([]*models.UploadedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var files []*models.UploadedFile
	for _, file := range m.files {
		files = append(files, file)
		if limit > 0 && len(files) >= limit {
			break
		}
	}
	return files, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	os.Remove(file.Path)
	delete(m.files, id)
	return nil
}

func (m *MockStorage) Release(files []models.UploadedFile) {
	for _, f := range files {
		if m.Delete(f.ID) == nil {
			m.mu.Lock()
			m.released = append(m.released, f.Name)
			m.mu.Unlock()
		}
	}
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// Held returns the number of files currently stored
func (m *MockStorage) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// Released returns the names of released files in release order
func (m *MockStorage) Released() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.released...)
}
