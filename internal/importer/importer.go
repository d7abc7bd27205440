// Package importer loads CSV files into the record set. Each data row is
// normalized and inserted through the service layer, so every imported
// record gets an identifier and an INSERT entry in the change trail. The
// source file is archived after a successful pass.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"

	"pumpcore/internal/archive"
	"pumpcore/internal/observability"
	"pumpcore/internal/service"
)

// MaxReportedErrors caps how many row failures carry full detail in the
// result. Further failures are counted but not described.
const MaxReportedErrors = 10

// RowError describes one failed row. Line is 1-based and counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Result summarises an import run.
type Result struct {
	Total      int
	Succeeded  int
	Failed     int
	Errors     []RowError // capped at MaxReportedErrors
	ArchiveKey string     // empty when archiving was skipped or failed
}

// Importer drives CSV bulk loads through the service layer.
type Importer struct {
	svc     *service.Service
	archive archive.Store
	logger  observability.Logger
	clock   observability.Clock
}

// Option customises importer construction.
type Option func(*Importer)

// WithArchive stores each imported file in the archive after a run.
func WithArchive(store archive.Store) Option {
	return func(i *Importer) { i.archive = store }
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithClock substitutes the time source used for archive keys.
func WithClock(clock observability.Clock) Option {
	return func(i *Importer) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// New constructs an importer over the service.
func New(svc *service.Service, opts ...Option) *Importer {
	i := &Importer{
		svc:    svc,
		logger: observability.NopLogger{},
		clock:  observability.SystemClock(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import reads CSV content and inserts one record per data row. The first
// row is the header; its cells name the columns. A failed row is counted
// and skipped without aborting the run. The raw file content is archived
// when an archive store is configured; an archive failure is logged, not
// returned.
func (i *Importer) Import(ctx context.Context, rc service.RequestContext, filename string, r io.Reader) (Result, error) {
	var buf bytes.Buffer
	reader := csv.NewReader(io.TeeReader(r, &buf))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return Result{}, fmt.Errorf("import %s: empty file", filename)
	}
	if err != nil {
		return Result{}, fmt.Errorf("import %s: read header: %w", filename, err)
	}
	for col := range header {
		header[col] = strings.TrimSpace(header[col])
	}

	if rc.Description == "" {
		rc.Description = fmt.Sprintf("CSV import: %s", path.Base(filename))
	}

	var result Result
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Total++
			i.recordFailure(&result, line, err)
			continue
		}
		result.Total++

		raw := make(map[string]any, len(header))
		for col, name := range header {
			if name == "" || col >= len(row) {
				continue
			}
			raw[name] = row[col]
		}

		if _, fieldErrs, err := i.svc.CreateRecord(ctx, rc, raw); err != nil {
			i.recordFailure(&result, line, err)
			continue
		} else if len(fieldErrs) > 0 {
			// Field-level failures null the field but keep the record.
			for _, fe := range fieldErrs {
				i.logger.Warn("import field dropped", "file", filename, "line", line, "field", fe.Field)
			}
		}
		result.Succeeded++
	}

	i.logger.Info("import finished",
		"file", filename,
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"actor", rc.Identity.Actor(),
	)

	if i.archive != nil && buf.Len() > 0 {
		key := i.archiveKey(filename)
		info, err := i.archive.Put(ctx, key, bytes.NewReader(buf.Bytes()), archive.PutOptions{
			ContentType: "text/csv",
			Metadata: map[string]string{
				"actor":     rc.Identity.Actor(),
				"succeeded": fmt.Sprintf("%d", result.Succeeded),
				"failed":    fmt.Sprintf("%d", result.Failed),
			},
		})
		if err != nil {
			i.logger.Error("import archive failed", "file", filename, "key", key, "error", err.Error())
		} else {
			result.ArchiveKey = info.Key
		}
	}
	return result, nil
}

func (i *Importer) recordFailure(result *Result, line int, err error) {
	result.Failed++
	if len(result.Errors) < MaxReportedErrors {
		result.Errors = append(result.Errors, RowError{Line: line, Err: err})
	}
	i.logger.Warn("import row failed", "line", line, "error", err.Error())
}

func (i *Importer) archiveKey(filename string) string {
	now := i.clock.Now().UTC()
	return fmt.Sprintf("imports/%s/%s-%s",
		now.Format("2006/01"),
		now.Format("20060102T150405Z"),
		path.Base(filename),
	)
}
