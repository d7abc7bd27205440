// Package service orchestrates record mutations: input normalization,
// identifier allocation, storage, and change recording.
package service

import (
	"context"
	"fmt"
	"time"

	"pumpcore/internal/audit"
	"pumpcore/internal/observability"
	"pumpcore/internal/schema"
	"pumpcore/pkg/domain"
)

// RequestContext carries per-request state into an operation: who is acting,
// an optional pre-fetched snapshot of the record being mutated, and an
// optional free-form description for the change trail.
type RequestContext struct {
	Identity domain.Identity

	// CachedSnapshot, when set, is used as the mutation's old state instead
	// of re-reading the store. Callers that already hold the record (a UI
	// session, a bulk importer) pass it here.
	CachedSnapshot domain.Snapshot

	// Description annotates the change entry. Empty means no annotation.
	Description string
}

// Service is the record-set admin core. All mutations flow through it so
// that every insert, update and delete is normalized, validated and
// recorded.
type Service struct {
	store      domain.RecordStore
	recorder   *audit.Recorder
	viewer     *audit.Viewer
	allocator  *Allocator
	normalizer *schema.Normalizer

	logger  observability.Logger
	metrics observability.Metrics
	clock   observability.Clock

	recorderOpts []audit.RecorderOption
}

// New constructs the service over a record store and change log.
func New(store domain.RecordStore, changes domain.ChangeLog, opts ...Option) *Service {
	s := &Service{
		store:      store,
		viewer:     audit.NewViewer(changes),
		allocator:  NewAllocator(store),
		normalizer: schema.NewNormalizer(schema.PumpSelectionPolicies),
		logger:     observability.NopLogger{},
		metrics:    observability.NopMetrics{},
		clock:      observability.SystemClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = audit.NewRecorder(changes, s.recorderOpts...)
	s.recorderOpts = nil
	return s
}

// CreateRecord normalizes the raw fields, allocates an identifier, stores
// the record and records an INSERT entry. Per-field normalization failures
// are returned alongside the record; they null the offending field but do
// not abort the insert.
func (s *Service) CreateRecord(ctx context.Context, rc RequestContext, raw map[string]any) (rec domain.Record, fieldErrs []schema.FieldError, err error) {
	defer s.observe("create_record", time.Now(), &err)

	fields, fieldErrs := s.normalizer.Normalize(raw)
	for _, fe := range fieldErrs {
		s.logger.Warn("field normalization failed", "field", fe.Field, "error", fe.Err.Error())
	}
	if err = requireText(fields, schema.RequiredTextField); err != nil {
		return domain.Record{}, fieldErrs, err
	}

	id, err := s.allocator.Next(ctx)
	if err != nil {
		return domain.Record{}, fieldErrs, err
	}

	rec, err = s.store.Insert(ctx, domain.Record{RecordID: id, Fields: fields})
	if err != nil {
		return domain.Record{}, fieldErrs, fmt.Errorf("insert record %d: %w", id, err)
	}
	s.logger.Info("record inserted", "record_id", rec.RecordID, "actor", rc.Identity.Actor())

	s.recorder.Record(ctx, audit.Change{
		Table:       schema.PumpSelectionTable,
		RecordID:    rec.RecordID,
		Operation:   string(domain.OpInsert),
		New:         rec.FullSnapshot(),
		Actor:       rc.Identity,
		Description: rc.Description,
	})
	return rec, fieldErrs, nil
}

// UpdateRecord normalizes the raw fields and replaces the record's field
// set, recording an UPDATE entry with the old and new state.
func (s *Service) UpdateRecord(ctx context.Context, rc RequestContext, id int64, raw map[string]any) (rec domain.Record, fieldErrs []schema.FieldError, err error) {
	defer s.observe("update_record", time.Now(), &err)

	fields, fieldErrs := s.normalizer.Normalize(raw)
	for _, fe := range fieldErrs {
		s.logger.Warn("field normalization failed", "field", fe.Field, "error", fe.Err.Error())
	}
	if err = requireText(fields, schema.RequiredTextField); err != nil {
		return domain.Record{}, fieldErrs, err
	}

	oldState := rc.CachedSnapshot
	if oldState == nil {
		prior, getErr := s.store.Get(ctx, id)
		if getErr != nil {
			err = fmt.Errorf("load record %d: %w", id, getErr)
			return domain.Record{}, fieldErrs, err
		}
		oldState = prior.FullSnapshot()
	}

	rec, err = s.store.Update(ctx, id, fields)
	if err != nil {
		return domain.Record{}, fieldErrs, fmt.Errorf("update record %d: %w", id, err)
	}
	s.logger.Info("record updated", "record_id", id, "actor", rc.Identity.Actor())

	s.recorder.Record(ctx, audit.Change{
		Table:       schema.PumpSelectionTable,
		RecordID:    id,
		Operation:   string(domain.OpUpdate),
		Old:         oldState,
		New:         rec.FullSnapshot(),
		Actor:       rc.Identity,
		Description: rc.Description,
	})
	return rec, fieldErrs, nil
}

// DeleteRecord removes a record and records a DELETE entry carrying its
// final state.
func (s *Service) DeleteRecord(ctx context.Context, rc RequestContext, id int64) (err error) {
	defer s.observe("delete_record", time.Now(), &err)

	prior, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	s.logger.Info("record deleted", "record_id", id, "actor", rc.Identity.Actor())

	oldState := rc.CachedSnapshot
	if oldState == nil {
		oldState = prior.FullSnapshot()
	}
	s.recorder.Record(ctx, audit.Change{
		Table:       schema.PumpSelectionTable,
		RecordID:    id,
		Operation:   string(domain.OpDelete),
		Old:         oldState,
		Actor:       rc.Identity,
		Description: rc.Description,
	})
	return nil
}

// DeleteRecords removes a batch of records, recording one DELETE entry per
// record that existed. Unknown identifiers are skipped. Returns the number
// of records removed.
func (s *Service) DeleteRecords(ctx context.Context, rc RequestContext, ids []int64) (n int, err error) {
	defer s.observe("delete_records", time.Now(), &err)

	removed, err := s.store.DeleteMany(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	s.logger.Info("records deleted", "count", len(removed), "actor", rc.Identity.Actor())

	for _, prior := range removed {
		s.recorder.Record(ctx, audit.Change{
			Table:       schema.PumpSelectionTable,
			RecordID:    prior.RecordID,
			Operation:   string(domain.OpDelete),
			Old:         prior.FullSnapshot(),
			Actor:       rc.Identity,
			Description: rc.Description,
		})
	}
	return len(removed), nil
}

// GetRecord retrieves a record by identifier.
func (s *Service) GetRecord(ctx context.Context, id int64) (domain.Record, error) {
	return s.store.Get(ctx, id)
}

// ListRecords returns records matching the options.
func (s *Service) ListRecords(ctx context.Context, opts domain.ListOptions) ([]domain.Record, error) {
	return s.store.List(ctx, opts)
}

// CountRecords returns the number of stored records.
func (s *Service) CountRecords(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// History returns change entries matching the filter, most recent first.
func (s *Service) History(ctx context.Context, filter domain.ChangeFilter) ([]domain.ChangeEntry, error) {
	return s.viewer.List(ctx, filter)
}

// DiffEntry renders the field-level old-vs-new comparison for one entry.
func (s *Service) DiffEntry(entry domain.ChangeEntry) []domain.FieldDiff {
	return s.viewer.Diff(entry)
}

// Recorder exposes the change recorder for collaborators that write their
// own entries, such as the bulk importer.
func (s *Service) Recorder() *audit.Recorder { return s.recorder }

func (s *Service) observe(op string, start time.Time, err *error) {
	s.metrics.Observe(op, *err == nil, time.Since(start))
}

func requireText(fields domain.Snapshot, field string) error {
	v, ok := fields.Get(field)
	if !ok || v.IsNull() {
		return ValidationError{Field: field, Reason: "required"}
	}
	if s, isText := v.TextValue(); isText && s == "" {
		return ValidationError{Field: field, Reason: "required"}
	}
	return nil
}
