package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joinhub/console/internal/models"
)

var errEmptyName = errors.New("download has no file name")

// Downloads saves artifacts into a directory. Existing files are never
// overwritten; a " (n)" suffix is added instead.
type Downloads struct {
	dir string
}

// NewDownloads creates the directory if needed.
func NewDownloads(dir string) (*Downloads, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}
	return &Downloads{dir: dir}, nil
}

// Dir returns the target directory.
func (d *Downloads) Dir() string {
	return d.dir
}

// Save writes dl to a temp file and renames it into place.
func (d *Downloads) Save(dl *models.Download) (string, error) {
	name := safeName(dl.FileName)
	if name == "" {
		return "", errEmptyName
	}

	tmp, err := os.CreateTemp(d.dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(dl.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing download: %w", err)
	}

	target := d.freePath(name)
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("moving download into place: %w", err)
	}
	return target, nil
}

// freePath returns dir/name, or dir/"base (n).ext" for the first n not taken.
func (d *Downloads) freePath(name string) string {
	target := filepath.Join(d.dir, name)
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		target = filepath.Join(d.dir, fmt.Sprintf("%s (%d)%s", base, n, ext))
		if _, err := os.Stat(target); os.IsNotExist(err) {
			return target
		}
	}
}

// safeName strips directories so a server-chosen name cannot escape dir.
func safeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.FromSlash(name))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
