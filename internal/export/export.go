// Package export downloads backend artifacts and hands them to a Sink under
// their user-facing file names.
package export

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/joinhub/console/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultPause separates consecutive downloads of a batch export.
const DefaultPause = 500 * time.Millisecond

const (
	resultSuffix      = "_result.csv"
	adminResultSuffix = "_결합결과.csv"
	convertedSuffix   = "_converted."
)

// Formats lists the export formats offered for converted documents.
var Formats = []string{"md", "html", "pdf", "docx", "csv", "json", "xlsx"}

var (
	ErrUnknownFormat    = errors.New("export: unknown format")
	ErrNothingToExport  = errors.New("export: no converted files")
	finalExtensionRegex = regexp.MustCompile(`\.[^/.]+$`)
)

// ValidFormat reports whether format is one of Formats.
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// ResultFileName names a project's joined result.
func ResultFileName(projectName string) string {
	return projectName + resultSuffix
}

// AdminResultFileName names a result downloaded from the review board.
func AdminResultFileName(projectName string) string {
	return projectName + adminResultSuffix
}

// ConvertedFileName names an exported document: the final extension of
// fileName is replaced by "_converted.<format>".
func ConvertedFileName(fileName, format string) string {
	return finalExtensionRegex.ReplaceAllString(fileName, "") + convertedSuffix + format
}

// Backend is the part of the join API used for downloads.
type Backend interface {
	Result(ctx context.Context, id string) (*models.Download, error)
	Export(ctx context.Context, fileName, format string) (*models.Download, error)
}

// Sink persists a download and returns where it went.
type Sink interface {
	Save(d *models.Download) (string, error)
}

// Pacer blocks until the next download may be saved.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Exporter fetches artifacts and names them.
type Exporter struct {
	backend  Backend
	newPacer func() Pacer
	logger   *zap.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithPacer replaces the pacer factory used by SaveAll.
func WithPacer(fn func() Pacer) Option {
	return func(e *Exporter) {
		e.newPacer = fn
	}
}

// WithPause spaces saved downloads by d instead of DefaultPause.
func WithPause(d time.Duration) Option {
	return func(e *Exporter) {
		e.newPacer = func() Pacer {
			return rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithLogger sets the exporter logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) {
		e.logger = l
	}
}

// New creates an Exporter that spaces saved downloads by DefaultPause.
func New(backend Backend, opts ...Option) *Exporter {
	e := &Exporter{
		backend: backend,
		newPacer: func() Pacer {
			return rate.NewLimiter(rate.Every(DefaultPause), 1)
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result downloads the joined result of a project as "<name>_result.csv".
func (e *Exporter) Result(ctx context.Context, id, projectName string) (*models.Download, error) {
	d, err := e.backend.Result(ctx, id)
	if err != nil {
		return nil, err
	}
	d.FileName = ResultFileName(projectName)
	if d.ContentType == "" {
		d.ContentType = "text/csv"
	}
	return d, nil
}

// Converted exports one converted document in format.
func (e *Exporter) Converted(ctx context.Context, fileName, format string) (*models.Download, error) {
	if !ValidFormat(format) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	d, err := e.backend.Export(ctx, fileName, format)
	if err != nil {
		return nil, err
	}
	d.FileName = ConvertedFileName(fileName, format)
	return d, nil
}

// SaveAll exports every file in order and saves each to sink. The pacer is
// consulted between fetching a document and saving it, so consecutive saves
// are at least one pause apart however long the export itself took. The
// first failure stops the batch; paths of the files saved so far are
// returned with it.
func (e *Exporter) SaveAll(ctx context.Context, fileNames []string, format string, sink Sink) ([]string, error) {
	if len(fileNames) == 0 {
		return nil, ErrNothingToExport
	}
	if !ValidFormat(format) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	pacer := e.newPacer()
	saved := make([]string, 0, len(fileNames))
	for i, name := range fileNames {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		d, err := e.Converted(ctx, name, format)
		if err != nil {
			e.logger.Warn("export failed", zap.String("file", name), zap.Error(err))
			return saved, fmt.Errorf("export %s: %w", name, err)
		}
		if err := pacer.Wait(ctx); err != nil {
			return saved, err
		}
		path, err := sink.Save(d)
		if err != nil {
			return saved, fmt.Errorf("save %s: %w", d.FileName, err)
		}

		e.logger.Info("exported",
			zap.String("file", d.FileName),
			zap.Int("index", i+1),
			zap.Int("total", len(fileNames)))
		saved = append(saved, path)
	}
	return saved, nil
}
