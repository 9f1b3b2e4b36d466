// Package intake filters user-selected files against an extension allow-list.
package intake

import (
	"fmt"
	"strings"

	"github.com/joinhub/console/internal/models"
)

// UploadExtensions are the formats accepted by the project wizard.
var UploadExtensions = []string{".csv", ".xlsx", ".xls", ".json", ".tsv"}

// ConvertExtensions are the formats accepted by the conversion page.
var ConvertExtensions = append(append([]string{}, UploadExtensions...), ".docx", ".pptx", ".pdf", ".txt")

// LargeFileThreshold is the size above which a conversion asks for confirmation.
const LargeFileThreshold = 1024 * 1024

// Allowed reports whether name ends with one of the extensions, ignoring case.
func Allowed(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Partition splits files into accepted and rejected, preserving input order.
// Duplicate names are kept as-is.
func Partition(files []models.UploadedFile, extensions []string) (accepted, rejected []models.UploadedFile) {
	for _, f := range files {
		if Allowed(f.Name, extensions) {
			accepted = append(accepted, f)
		} else {
			rejected = append(rejected, f)
		}
	}
	return accepted, rejected
}

// RejectedError is the aggregated notice for files with unsupported formats.
type RejectedError struct {
	Names     []string
	Supported []string
}

// NewRejectedError builds the notice for rejected files, or returns nil when there are none.
func NewRejectedError(rejected []models.UploadedFile, extensions []string) *RejectedError {
	if len(rejected) == 0 {
		return nil
	}
	return &RejectedError{
		Names:     models.FileNames(rejected),
		Supported: append([]string(nil), extensions...),
	}
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("unsupported file format:\n%s\n\nsupported: %s",
		strings.Join(e.Names, "\n"), describe(e.Supported))
}

// describe renders extensions the way the upload form labels them.
func describe(extensions []string) string {
	labels := make([]string, 0, len(extensions))
	seen := make(map[string]bool)
	for _, ext := range extensions {
		label := strings.ToUpper(strings.TrimPrefix(ext, "."))
		if label == "XLSX" || label == "XLS" {
			label = "Excel"
		}
		if seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return strings.Join(labels, ", ")
}

// LargeFiles returns the files whose size exceeds limit.
func LargeFiles(files []models.UploadedFile, limit int64) []models.UploadedFile {
	var large []models.UploadedFile
	for _, f := range files {
		if f.Size > limit {
			large = append(large, f)
		}
	}
	return large
}
