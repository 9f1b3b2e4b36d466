package models

import (
	"path/filepath"
	"strings"
	"time"
)

// UploadedFile is a user-selected local file held by a wizard.
type UploadedFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MediaType  string    `json:"mediaType,omitempty"`
	Path       string    `json:"-"` // local copy of the bytes
	UploadedAt time.Time `json:"uploadedAt"`
}

// Ext returns the lower-cased extension of the file name, including the dot.
func (f UploadedFile) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// FileNames returns the names of files in order.
func FileNames(files []UploadedFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}
