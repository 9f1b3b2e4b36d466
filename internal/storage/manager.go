// Package storage keeps uploaded files on local disk until they are forwarded
// to the join backend, and saves downloaded artifacts.
package storage

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joinhub/console/internal/models"
)

// ErrNotFound is returned for an unknown file id.
var ErrNotFound = errors.New("file not found")

var mediaTypes = map[string]string{
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".json": "application/json",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

// mediaType guesses a content type from a lower-cased extension.
func mediaType(ext string) string {
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

// Store defines the interface for staged file storage.
type Store interface {
	Save(name string, r io.Reader) (*models.UploadedFile, error)
	Get(id string) (*models.UploadedFile, error)
	List(limit int) ([]*models.UploadedFile, error)
	Delete(id string) error
	Release(files []models.UploadedFile)
}

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.UploadedFile
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.UploadedFile),
	}, nil
}

// Save copies r to disk under a fresh id. The display name is kept as given;
// the stored file keeps its extension so readers can sniff the format.
func (s *LocalStore) Save(name string, r io.Reader) (*models.UploadedFile, error) {
	id := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(name))
	path := filepath.Join(s.uploadDir, id+ext)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.UploadedFile{
		ID:         id,
		Name:       name,
		Size:       size,
		MediaType:  mediaType(ext),
		Path:       path,
		UploadedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return info, nil
}

// Describe returns the metadata of a file that stays where it is, such as a
// path given on the command line. Nothing is copied or tracked.
func Describe(path string) (*models.UploadedFile, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &models.UploadedFile{
		ID:         uuid.New().String(),
		Name:       fi.Name(),
		Size:       fi.Size(),
		MediaType:  mediaType(strings.ToLower(filepath.Ext(fi.Name()))),
		Path:       abs,
		UploadedAt: fi.ModTime(),
	}, nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return info, nil
}

// List returns the most recent files.
func (s *LocalStore) List(limit int) ([]*models.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.UploadedFile
	for _, info := range s.files {
		list = append(list, info)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := os.Remove(info.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// Release deletes every file in files, ignoring ids that are already gone.
func (s *LocalStore) Release(files []models.UploadedFile) {
	for _, f := range files {
		_ = s.Delete(f.ID)
	}
}

// CleanupOlderThan deletes files staged longer than maxAge ago and returns
// how many were removed.
func (s *LocalStore) CleanupOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, info := range s.files {
		if info.UploadedAt.Before(cutoff) {
			os.Remove(info.Path)
			delete(s.files, id)
			removed++
		}
	}
	return removed
}
